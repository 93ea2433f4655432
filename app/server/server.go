package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"askmydocs/app/agent"
	"askmydocs/app/api"
	"askmydocs/app/middleware"
	"askmydocs/chunker"
	"askmydocs/loader"
	"askmydocs/model"
	"askmydocs/retriever"
	"askmydocs/store"
	"askmydocs/types"
)

var fiberConfig = fiber.Config{
	ErrorHandler: api.ErrorHandler,
	BodyLimit:    50 * 1024 * 1024,
}

type Server struct {
	cfg    types.Config
	app    *fiber.App
	index  store.Indexer
	logger *slog.Logger
}

func New(cfg types.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default().With("component", "server"),
	}
}

// Run wires the whole pipeline and serves until Stop is called.
func (s *Server) Run() error {
	ctx := context.Background()

	embedder := model.NewOllamaEmbedder(s.cfg.OllamaURL, s.cfg.EmbedModel)
	generator := model.NewOllamaGenerator(s.cfg.OllamaURL, s.cfg.ChatModel)

	index, err := s.openIndex(ctx, embedder)
	if err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}
	s.index = index
	if err := index.Init(ctx); err != nil {
		return fmt.Errorf("init vector index: %w", err)
	}

	files, err := loader.NewLocalFileStorage(s.cfg.SourceDir)
	if err != nil {
		return fmt.Errorf("open file storage: %w", err)
	}

	splitter, err := chunker.NewSplitter(s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("bad chunk geometry: %w", err)
	}

	var (
		loaderSvc = loader.NewService(files, index, embedder, splitter)
		ret       = retriever.New(index, s.cfg.TopK, s.cfg.MaxDistance)
		gen       = agent.New(ret, generator, s.cfg.MaxPromptTokens)

		app          = fiber.New(fiberConfig)
		checkHandler = api.NewCheckHandler(index)
		fileHandler  = api.NewFileHandler(files, loaderSvc)
		queryHandler = api.NewQueryHandler(gen)

		check = app.Group("/check")
		apiv1 = app.Group("/api/v1")
	)
	s.app = app

	app.Use(middleware.RequestLogger())

	check.Get("/healthy", checkHandler.HandleHealthy)

	apiv1.Post("/files", fileHandler.HandleUpload)
	apiv1.Post("/files/ingest", fileHandler.HandleIngest)
	apiv1.Delete("/files", fileHandler.HandleRemove)
	apiv1.Post("/query", queryHandler.HandleQuery)
	apiv1.Post("/query/stream", queryHandler.HandleQueryStream)

	s.logger.Info("listening", "addr", s.cfg.ServerAddr, "backend", s.cfg.VectorBackend)
	return app.Listen(s.cfg.ServerAddr)
}

func (s *Server) openIndex(ctx context.Context, embedder model.Embedder) (store.Indexer, error) {
	switch s.cfg.VectorBackend {
	case "postgres":
		connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			s.cfg.PGHost, s.cfg.PGPort, s.cfg.PGUser, s.cfg.PGPass, s.cfg.PGDBName)
		return store.NewPostgresIndex(ctx, connStr, s.cfg.Collection, s.cfg.EmbedDim, embedder)
	case "qdrant":
		return store.NewQdrantIndex(s.cfg.QdrantHost, s.cfg.QdrantPort, s.cfg.Collection, s.cfg.EmbedDim, embedder)
	case "memory":
		return store.NewMemoryIndex(embedder), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", s.cfg.VectorBackend)
	}
}

func (s *Server) Stop() {
	if s.app != nil {
		if err := s.app.Shutdown(); err != nil {
			s.logger.Error("shutdown failed", "error", err)
		}
	}
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			s.logger.Error("index close failed", "error", err)
		}
	}
	s.logger.Info("server stopped")
}
