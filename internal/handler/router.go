package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voxlab/callbot/internal/config"
	"github.com/voxlab/callbot/internal/handler/dashboard"
	"github.com/voxlab/callbot/internal/handler/monitor"
	"github.com/voxlab/callbot/internal/handler/webhook"
	middlewarePkg "github.com/voxlab/callbot/internal/middleware"
	"github.com/voxlab/callbot/internal/model/persona"
	aiService "github.com/voxlab/callbot/internal/service/ai"
	conversationService "github.com/voxlab/callbot/internal/service/conversation"
	insightService "github.com/voxlab/callbot/internal/service/insight"
	voiceService "github.com/voxlab/callbot/internal/service/voice"
	"github.com/voxlab/callbot/internal/twilio"
)

// NewRouter wires HTTP routes to core services. aiSvc and twilioClient may be
// nil when their credentials are not configured; the affected routes degrade
// instead of disappearing.
func NewRouter(
	store *conversationService.Store,
	aiSvc *aiService.Service,
	insightSvc *insightService.Service,
	voiceSvc *voiceService.Service,
	twilioClient *twilio.Client,
	p persona.Persona,
	voiceCfg config.VoiceConfig,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// A nil *ai.Service must stay a nil interface so the webhook handler
	// falls back cleanly.
	var replyGen webhook.ReplyGenerator
	if aiSvc != nil {
		replyGen = aiSvc
	}
	var callAPI dashboard.CallAPI
	if twilioClient != nil {
		callAPI = twilioClient
	}

	webhookHandler := webhook.New(store, replyGen, insightSvc, voiceSvc, p, voiceCfg)
	dashboardHandler := dashboard.New(store, callAPI)
	monitorHandler := monitor.New(store)

	// Twilio posts to the root-level webhook endpoints.
	webhookHandler.RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		dashboardHandler.RegisterRoutes(api)
		monitorHandler.RegisterRoutes(api)
	})

	return r
}
