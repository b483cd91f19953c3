package main

import (
	"log"

	api "steward-backend/cmd/api"
	calRepo "steward-backend/internal/calendar/repository"
	calUsecase "steward-backend/internal/calendar/usecase"
	classifyUsecase "steward-backend/internal/classify/usecase"
	folderRepo "steward-backend/internal/folder/repository"
	folderUsecase "steward-backend/internal/folder/usecase"
	messageRepo "steward-backend/internal/message/repository"
	"steward-backend/internal/notification"
	plannerDelivery "steward-backend/internal/planner/delivery"
	plannerScheduler "steward-backend/internal/planner/scheduler"
	plannerUsecase "steward-backend/internal/planner/usecase"
	sessionRepo "steward-backend/internal/session/repository"
	sessionUsecase "steward-backend/internal/session/usecase"
	"steward-backend/pkg/ai"
	"steward-backend/pkg/config"
	"steward-backend/pkg/database"
	"steward-backend/pkg/imap"
	"steward-backend/pkg/pdf"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize repositories (dependency injection)
	messages := messageRepo.NewGormMessageRepository(db)
	hints := folderRepo.NewGormHintRepository(db)
	events := calRepo.NewGormEventRepository(db)
	conflicts := calRepo.NewGormConflictRepository(db)
	sessions := sessionRepo.NewGormSessionRepository(db)
	actions := sessionRepo.NewGormActionRepository(db)
	tokens := sessionRepo.NewGormTokenRepository(db)

	// Initialize IMAP service
	pdfExtractor := pdf.NewExtractor(5)
	imapService := imap.NewService(cfg, pdfExtractor)

	// Initialize AI classifier with rule fallback
	ollama := ai.NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.OllamaTimeout)
	adapter := classifyUsecase.NewAdapter(ollama, cfg.FallbackConfidence)

	// Initialize use cases (dependency injection)
	resolver := folderUsecase.NewResolver(hints, cfg.HintOverrideMin, cfg.FolderCreateMin, cfg.ReviewFolder)
	reconciler := calUsecase.NewReconciler(events, conflicts, cfg.Location(), cfg.DefaultEventDuration)
	reverter := plannerUsecase.NewStateReverter(messages)
	engine := sessionUsecase.NewEngine(sessions, actions, tokens, imapService, reconciler, reverter, cfg.SessionBucket, cfg.UndoTokenTTL)

	// Initialize notification service (webhook, disabled when unconfigured)
	notifier := notification.NewService(cfg)

	planner := plannerUsecase.NewPlanner(cfg, imapService, messages, adapter, resolver, reconciler, engine, notifier)

	// Start background mailbox poller
	poller := plannerScheduler.NewPollScheduler(planner, cfg.PollInterval)
	poller.Start()
	defer poller.Stop()

	// Initialize HTTP handler
	plannerHandler := plannerDelivery.NewPlannerHandler(planner, reconciler, engine, imapService)
	handler := api.NewHandler(plannerHandler)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
