package webhook

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	analysis "github.com/voxlab/callbot/internal/analysis/speech"
	"github.com/voxlab/callbot/internal/config"
	"github.com/voxlab/callbot/internal/model/conversation"
	"github.com/voxlab/callbot/internal/model/persona"
	conversationsvc "github.com/voxlab/callbot/internal/service/conversation"
	insightsvc "github.com/voxlab/callbot/internal/service/insight"
	voicesvc "github.com/voxlab/callbot/internal/service/voice"
	"github.com/voxlab/callbot/internal/twilio"
	"github.com/voxlab/callbot/internal/twiml"
	"github.com/voxlab/callbot/pkg/utils"
)

// ReplyGenerator abstracts the completion service so the handler can be
// tested without a live model.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, callSID string, p persona.Persona, transcript []conversation.Turn, userInput string) (string, error)
}

// Handler drives the Twilio voice webhook conversation loop.
type Handler struct {
	store    *conversationsvc.Store
	ai       ReplyGenerator
	insight  *insightsvc.Service
	voice    *voicesvc.Service
	persona  persona.Persona
	voiceCfg config.VoiceConfig
}

// New creates the webhook handler. ai may be nil, in which case every reply
// falls back to the persona's spoken fallback line.
func New(store *conversationsvc.Store, ai ReplyGenerator, insight *insightsvc.Service, voice *voicesvc.Service, p persona.Persona, voiceCfg config.VoiceConfig) *Handler {
	return &Handler{
		store:    store,
		ai:       ai,
		insight:  insight,
		voice:    voice,
		persona:  p,
		voiceCfg: voiceCfg,
	}
}

// RegisterRoutes registers the Twilio-facing endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook", h.handleVoiceWebhook)
	r.Post("/webhook/status", h.handleStatusCallback)
}

// handleVoiceWebhook answers one webhook delivery with a TwiML document.
// Every error path still speaks something back to the caller: a malformed
// request must never drop the call.
func (h *Handler) handleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	callSID := r.FormValue("CallSid")
	from := r.FormValue("From")
	to := r.FormValue("To")
	speechResult := r.FormValue("SpeechResult")
	confidence := parseConfidence(r.FormValue("Confidence"))

	if callSID == "" {
		utils.RespondError(w, http.StatusBadRequest, "CallSid is required")
		return
	}

	log.Printf("[webhook] call=%s from=%s to=%s speech=%q confidence=%.2f",
		callSID, from, to, speechResult, confidence)

	sess, err := h.store.GetOrCreate(ctx, callSID, from, to, h.persona)
	if err != nil {
		if errors.Is(err, conversationsvc.ErrStoreFull) {
			log.Printf("[webhook] store at capacity, refusing call %s", callSID)
		} else {
			log.Printf("[webhook] failed to open session for call %s: %v", callSID, err)
		}
		h.respondTwiML(w, twiml.NewResponse().
			Say(h.technicalDifficulties(), h.voiceCfg.Voice, h.voiceCfg.Language).
			Hangup())
		return
	}

	switch {
	case !sess.Started() && speechResult == "":
		h.respondTwiML(w, h.greet(ctx, callSID))
	case speechResult == "":
		// Gather timed out without recognized speech.
		h.respondTwiML(w, h.clarify(confidence, "I'm listening..."))
	default:
		h.respondTwiML(w, h.converse(ctx, callSID, speechResult, confidence))
	}
}

// greet welcomes a new caller and starts listening.
func (h *Handler) greet(ctx context.Context, callSID string) *twiml.Response {
	greeting := h.persona.Greeting
	if _, err := h.store.AppendTurn(ctx, callSID, conversation.RoleBot, greeting); err != nil {
		log.Printf("[webhook] failed to record greeting for call %s: %v", callSID, err)
	}

	return twiml.NewResponse().
		Say(greeting, h.voiceCfg.Voice, h.voiceCfg.Language).
		Gather(h.gather("I'm listening..."))
}

// clarify asks the caller to repeat, with wording tiered by confidence.
func (h *Handler) clarify(confidence float64, listening string) *twiml.Response {
	return twiml.NewResponse().
		Say(h.voice.FallbackLine(confidence), h.voiceCfg.Voice, h.voiceCfg.Language).
		Gather(h.gather(listening))
}

// converse runs one full turn: record caller speech, classify it, generate
// the bot reply, record it, speak it, keep listening.
func (h *Handler) converse(ctx context.Context, callSID, speechResult string, confidence float64) *twiml.Response {
	input := h.voice.ProcessInput(speechResult, confidence)
	if !input.Valid {
		return h.clarify(confidence, "I'm listening...")
	}

	if _, err := h.store.AppendTurn(ctx, callSID, conversation.RoleCaller, speechResult); err != nil {
		log.Printf("[webhook] failed to record caller turn for call %s: %v", callSID, err)
		return twiml.NewResponse().
			Say(h.technicalDifficulties(), h.voiceCfg.Voice, h.voiceCfg.Language).
			Hangup()
	}

	transcript, err := h.store.Transcript(ctx, callSID)
	if err != nil {
		log.Printf("[webhook] failed to load transcript for call %s: %v", callSID, err)
		return twiml.NewResponse().
			Say(h.technicalDifficulties(), h.voiceCfg.Voice, h.voiceCfg.Language).
			Hangup()
	}

	ins := h.insight.Analyze(ctx, h.persona, transcript, input.Cleaned)
	log.Printf("[insight] call=%s sentiment=%s intent=%s urgency=%s confidence=%.2f",
		callSID, ins.Sentiment, ins.Intent, ins.Urgency, ins.Confidence)

	if ins.Intent == analysis.IntentGoodbye {
		goodbye := h.persona.Goodbye
		if _, err := h.store.AppendTurn(ctx, callSID, conversation.RoleBot, goodbye); err != nil {
			log.Printf("[webhook] failed to record goodbye for call %s: %v", callSID, err)
		}
		h.store.End(ctx, callSID)
		// Short pause so the farewell is not clipped by the hangup.
		return twiml.NewResponse().
			Say(goodbye, h.voiceCfg.Voice, h.voiceCfg.Language).
			Pause(1).
			Hangup()
	}

	reply := h.generateReply(ctx, callSID, transcript, speechResult)
	if _, err := h.store.AppendTurn(ctx, callSID, conversation.RoleBot, reply); err != nil {
		log.Printf("[webhook] failed to record bot turn for call %s: %v", callSID, err)
	}

	return twiml.NewResponse().
		Say(voicesvc.FormatForSpeech(reply), h.voiceCfg.Voice, h.voiceCfg.Language).
		Gather(h.gather("What else can I help you with?"))
}

// generateReply asks the completion service for the next utterance and
// degrades to the persona fallback line on any failure.
func (h *Handler) generateReply(ctx context.Context, callSID string, transcript []conversation.Turn, userInput string) string {
	if h.ai == nil {
		return h.persona.Fallback
	}

	reply, err := h.ai.GenerateReply(ctx, callSID, h.persona, transcript, userInput)
	if err != nil {
		log.Printf("[webhook] reply generation failed for call %s: %v", callSID, err)
		return h.persona.Fallback
	}
	if reply == "" {
		return h.persona.Fallback
	}
	return reply
}

// handleStatusCallback evicts the session when Twilio reports the call over.
func (h *Handler) handleStatusCallback(w http.ResponseWriter, r *http.Request) {
	callSID := r.FormValue("CallSid")
	callStatus := r.FormValue("CallStatus")

	if callSID == "" {
		utils.RespondError(w, http.StatusBadRequest, "CallSid is required")
		return
	}

	log.Printf("[webhook] status callback call=%s status=%s", callSID, callStatus)

	if twilio.Terminal(callStatus) {
		h.store.End(r.Context(), callSID)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) gather(prompt string) twiml.Gather {
	return twiml.Gather{
		Timeout:       h.voiceCfg.GatherTimeout,
		SpeechTimeout: h.voiceCfg.SpeechTimeout,
		Language:      h.voiceCfg.Language,
		Action:        "/webhook",
		Verbs: []any{
			twiml.Say{Voice: h.voiceCfg.Voice, Language: h.voiceCfg.Language, Text: prompt},
		},
	}
}

func (h *Handler) technicalDifficulties() string {
	return "I'm sorry, I'm experiencing technical difficulties. Please try again later."
}

func (h *Handler) respondTwiML(w http.ResponseWriter, resp *twiml.Response) {
	document, err := resp.Render()
	if err != nil {
		log.Printf("[webhook] failed to render twiml: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to render response")
		return
	}
	utils.RespondTwiML(w, document)
}

func parseConfidence(raw string) float64 {
	if raw == "" {
		// Twilio omits Confidence on some events; do not treat that as
		// unusable speech.
		return 1.0
	}
	confidence, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return confidence
}
