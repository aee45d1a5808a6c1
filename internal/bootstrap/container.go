package bootstrap

import (
	"context"
	"log"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"commonbook-be/internal/config"
	"commonbook-be/internal/controller"
	"commonbook-be/internal/dispatch"
	"commonbook-be/internal/dto"
	"commonbook-be/internal/extract"
	"commonbook-be/internal/index"
	"commonbook-be/internal/media"
	"commonbook-be/internal/pipeline"
	"commonbook-be/internal/pkg/logger"
	"commonbook-be/internal/progress"
	"commonbook-be/internal/render"
	"commonbook-be/internal/service"
	"commonbook-be/internal/workspace"
	"commonbook-be/pkg/chunker"
	"commonbook-be/pkg/database"
	"commonbook-be/pkg/embedding"
	"commonbook-be/pkg/fusion"
	"commonbook-be/pkg/llm/factory"
	"commonbook-be/pkg/speech"
	"commonbook-be/pkg/vision"
)

type Container struct {
	// Controllers
	SessionController   controller.ISessionController
	UploadController    controller.IUploadController
	SynthesisController controller.ISynthesisController
	StatusController    controller.IStatusController
	ArtifactController  controller.IArtifactController

	// Background components (exposed for the worker binary)
	Dispatcher   dispatch.IDispatcher
	Orchestrator *pipeline.Orchestrator
	SessionSvc   service.ISessionService

	Logger logger.ILogger
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Embedding provider
	var embeddingProvider embedding.Provider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)
	} else {
		// The local provider has no natural width, so size it to the
		// pgvector column when that backend is selected.
		dims := 0
		if cfg.Vector.Backend == "pgvector" {
			dims = index.VectorDims
		}
		embeddingProvider = embedding.NewLocalProvider(dims)
		log.Printf("[INFO] Using Embedding Provider: LOCAL")
	}

	// 3. LLM provider
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Keys.Groq,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s", cfg.Ai.LLMProvider)

	// 4. Stores
	ws := workspace.NewManager(cfg.Session.WorkspaceDir, sysLogger)

	var progressStore progress.IStore
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using in-memory progress store", err)
		progressStore = progress.NewMemoryStore(cfg.Session.ProgressTTL)
	} else {
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v. Using in-memory progress store", err)
			progressStore = progress.NewMemoryStore(cfg.Session.ProgressTTL)
		} else {
			progressStore = progress.NewRedisStore(rdb, cfg.Session.ProgressTTL, sysLogger)
		}
	}

	var indexStore index.IStore
	if cfg.Vector.Backend == "pgvector" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Fatalf("[FATAL] Failed to connect to Postgres: %v", err)
		}
		if err := db.AutoMigrate(&index.SessionChunk{}); err != nil {
			log.Fatalf("[FATAL] Failed to migrate session_chunks: %v", err)
		}
		indexStore, err = index.NewPgvectorStore(db, embeddingProvider, sysLogger)
		if err != nil {
			log.Fatalf("[FATAL] Failed to open pgvector store: %v", err)
		}
		log.Printf("[INFO] Using Vector Backend: PGVECTOR")
	} else {
		indexStore, err = index.NewChromemStore(cfg.Vector.ChromemPath, embeddingProvider, sysLogger)
		if err != nil {
			log.Fatalf("[FATAL] Failed to open chromem store: %v", err)
		}
		log.Printf("[INFO] Using Vector Backend: CHROMEM")
	}

	// 5. Task queue
	limits := dispatch.Limits{
		Soft: cfg.Pipeline.TaskSoftWarning,
		Hard: cfg.Pipeline.TaskTimeLimit,
	}
	var dispatcher dispatch.IDispatcher
	if cfg.Dispatch.Backend == "channel" {
		dispatcher, err = dispatch.NewGoChannelDispatcher(limits, sysLogger)
		if err != nil {
			log.Fatalf("[FATAL] Failed to create in-process dispatcher: %v", err)
		}
		log.Printf("[INFO] Using Dispatch Backend: CHANNEL")
	} else {
		dispatcher, err = dispatch.NewNatsDispatcher(cfg.App.NatsURL, limits, sysLogger)
		if err != nil {
			log.Fatalf("[FATAL] Failed to connect to NATS: %v", err)
		}
		log.Printf("[INFO] Using Dispatch Backend: NATS")
	}

	// 6. Extraction tools
	converter := media.NewConverter(cfg.Tools.FFmpegBinary, sysLogger)
	downloader := media.NewDownloader(cfg.Tools.YtDlpBinary, sysLogger)
	transcriber := speech.NewWhisperCLI(cfg.Tools.WhisperBinary, cfg.Tools.WhisperModel)
	describer := vision.NewGroqDescriber(cfg.Keys.Groq)

	registry := extract.NewRegistry()
	registry.Register(dto.SourcePDF, extract.NewPDFAdapter())
	registry.Register(dto.SourceDOCX, extract.NewDOCXAdapter())
	registry.Register(dto.SourcePPTX, extract.NewPPTXAdapter())
	registry.Register(dto.SourceImage, extract.NewImageAdapter(describer))
	// Intermediate audio goes into the session's processed/ sibling of
	// the uploads directory the input came from.
	mediaAdapter := extract.NewMediaAdapter(converter, transcriber, func(inputPath string) string {
		return filepath.Join(filepath.Dir(filepath.Dir(inputPath)), workspace.SubdirProcessed)
	})
	registry.Register(dto.SourceAudio, mediaAdapter)
	registry.Register(dto.SourceVideo, mediaAdapter)

	// 7. Pipeline
	engine := fusion.NewEngine(llmProvider, fusion.WithDelays(cfg.Pipeline.FusionDelay, cfg.Pipeline.FusionAfterSumm))
	writer := render.NewWriter(ws, sysLogger)
	orchestrator := pipeline.NewOrchestrator(
		ws,
		progressStore,
		indexStore,
		registry,
		downloader,
		engine,
		chunker.New(cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap),
		writer,
		sysLogger,
	)

	// 8. Services
	sessionSvc := service.NewSessionService(ws, progressStore, indexStore, dispatcher, cfg.Session.TTL, sysLogger)
	uploadSvc := service.NewUploadService(ws, progressStore, sysLogger)
	synthesisSvc := service.NewSynthesisService(ws, progressStore, dispatcher, sysLogger)
	statusSvc := service.NewStatusService(progressStore, sysLogger)
	artifactSvc := service.NewArtifactService(progressStore, writer, sysLogger)

	return &Container{
		SessionController:   controller.NewSessionController(sessionSvc),
		UploadController:    controller.NewUploadController(uploadSvc),
		SynthesisController: controller.NewSynthesisController(synthesisSvc),
		StatusController:    controller.NewStatusController(statusSvc),
		ArtifactController:  controller.NewArtifactController(artifactSvc),
		Dispatcher:          dispatcher,
		Orchestrator:        orchestrator,
		SessionSvc:          sessionSvc,
		Logger:              sysLogger,
	}
}
