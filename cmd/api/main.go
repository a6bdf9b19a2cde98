package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"

	"github.com/voxlab/callbot/internal/config"
	"github.com/voxlab/callbot/internal/handler"
	"github.com/voxlab/callbot/internal/model/persona"
	"github.com/voxlab/callbot/internal/service/ai"
	conversationservice "github.com/voxlab/callbot/internal/service/conversation"
	insightservice "github.com/voxlab/callbot/internal/service/insight"
	voiceservice "github.com/voxlab/callbot/internal/service/voice"
	"github.com/voxlab/callbot/internal/twilio"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize the conversation store and its idle sweeper
	store := conversationservice.NewStore(conversationservice.Options{
		MaxSessions: cfg.Conversation.MaxSessions,
		IdleTTL:     cfg.Conversation.IdleTTL,
	})
	go store.RunSweeper(ctx, cfg.Conversation.SweepInterval)

	// Initialize AI service
	var aiService *ai.Service
	if cfg.AI.Enabled() {
		aiService, err = ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality - check the OpenAI environment variables")
		} else {
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("OpenAI credentials not configured, replies fall back to canned lines")
	}

	// Initialize the insight classifier (LLM-based with heuristic fallback)
	insightCfg := insightservice.Config{
		Enabled:      cfg.AI.InsightEnabled,
		HistoryLimit: cfg.AI.InsightHistoryLimit,
	}
	var chatModelForInsight model.ChatModel
	if aiService != nil {
		chatModelForInsight = aiService.GetChatModel()
	}
	insightSvc, err := insightservice.NewService(ctx, chatModelForInsight, insightCfg)
	if err != nil {
		log.Fatalf("failed to initialize insight service: %v", err)
	}
	if insightSvc.Enabled() {
		log.Println("Insight classifier service enabled")
	} else if insightCfg.Enabled {
		log.Println("Insight classifier requested but chat model unavailable, falling back to heuristics")
	} else {
		log.Println("Insight classifier disabled by configuration")
	}

	// Initialize the Twilio REST client for the dashboard endpoints
	var twilioClient *twilio.Client
	if cfg.Twilio.Enabled() {
		twilioClient, err = twilio.New(twilio.Config{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			BaseURL:    cfg.Twilio.BaseURL,
		})
		if err != nil {
			log.Fatalf("failed to initialize twilio client: %v", err)
		}
		log.Println("Twilio REST client initialized successfully")
	} else {
		log.Println("Twilio credentials not configured, call management endpoints disabled")
	}

	voiceSvc := voiceservice.NewService(cfg.Voice.ConfidenceThreshold)

	router := handler.NewRouter(store, aiService, insightSvc, voiceSvc, twilioClient, persona.Default(), cfg.Voice)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Callbot webhook service listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
