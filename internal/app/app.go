package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/censeo/internal/common"
	"github.com/ternarybob/censeo/internal/handlers"
	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/pipeline"
	"github.com/ternarybob/censeo/internal/queue"
	"github.com/ternarybob/censeo/internal/router"
	"github.com/ternarybob/censeo/internal/scoring"
	"github.com/ternarybob/censeo/internal/services/chat"
	"github.com/ternarybob/censeo/internal/services/entities"
	"github.com/ternarybob/censeo/internal/services/extraction"
	"github.com/ternarybob/censeo/internal/services/language"
	"github.com/ternarybob/censeo/internal/services/llm"
	"github.com/ternarybob/censeo/internal/services/market"
	"github.com/ternarybob/censeo/internal/services/sweeper"
	"github.com/ternarybob/censeo/internal/services/vocabulary"
	badgerstorage "github.com/ternarybob/censeo/internal/storage/badger"
)

// App holds all application components and dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	QueueManager   interfaces.QueueManager
	WorkerPool     *queue.WorkerPool

	Vocabulary  *vocabulary.Vocabulary
	Synthesizer interfaces.Synthesizer
	Router      *router.Router
	ChatService interfaces.ChatService
	Sweeper     *sweeper.Sweeper

	// HTTP handlers
	AnalyzeHandler *handlers.AnalyzeHandler
	JobHandler     *handlers.JobHandler
	ChatHandler    *handlers.ChatHandler
	HealthHandler  *handlers.HealthHandler

	ctx       context.Context
	cancelCtx context.CancelFunc
}

// New creates and wires the application.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := a.initStorage(); err != nil {
		cancel()
		return nil, err
	}
	if err := a.initServices(); err != nil {
		cancel()
		a.StorageManager.Close()
		return nil, err
	}
	a.initHandlers()

	return a, nil
}

func (a *App) initStorage() error {
	manager, err := badgerstorage.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = manager

	queueMgr, err := queue.NewBadgerManager(
		manager.DB().Badger(),
		a.Config.Queue.QueueName,
		a.Config.VisibilityTimeoutDuration(),
		a.Config.Queue.MaxReceive,
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize queue: %w", err)
	}
	a.QueueManager = queueMgr
	return nil
}

func (a *App) initServices() error {
	vocab, err := vocabulary.Load(a.Config.Vocabulary.Path, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to load vocabulary: %w", err)
	}
	a.Vocabulary = vocab

	factory := llm.NewProviderFactory(a.Config, a.Logger)
	a.Synthesizer = llm.NewSynthesizer(factory, a.Config, a.Logger)

	extractor := extraction.NewExtractor(a.Logger)
	translator := language.NewTranslator(a.Synthesizer, a.Logger)

	entityExtractor, err := entities.NewExtractor(vocab, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize entity extraction: %w", err)
	}

	companyLookup := market.NewLookup(a.Config.Market, vocab.SectorUniverse(), a.Logger)

	engine, err := scoring.NewEngine(scoring.WeightsFromConfig(a.Config.Scoring))
	if err != nil {
		return fmt.Errorf("failed to initialize scoring engine: %w", err)
	}

	jobs := a.StorageManager.JobStorage()
	documents := a.StorageManager.DocumentStorage()
	sessions := a.StorageManager.SessionStorage()

	runner := pipeline.NewRunner(jobs, a.QueueManager, a.Config, a.Logger)

	a.WorkerPool = queue.NewWorkerPool(
		a.QueueManager,
		a.Config.Queue.Concurrency,
		a.Config.PollIntervalDuration(),
		a.Logger,
	)
	a.WorkerPool.RegisterHandler(pipeline.NewExtractHandler(runner, documents, extractor, translator))
	a.WorkerPool.RegisterHandler(pipeline.NewEnrichHandler(runner, vocab, entityExtractor))
	a.WorkerPool.RegisterHandler(pipeline.NewLookupHandler(runner, companyLookup))
	a.WorkerPool.RegisterHandler(pipeline.NewDecideHandler(runner, engine, a.Synthesizer))

	a.ChatService = chat.NewSessionManager(jobs, sessions, a.Synthesizer, a.Config, a.Logger)
	a.Router = router.New(jobs, documents, a.QueueManager, extractor, a.ChatService, a.Logger)
	a.Sweeper = sweeper.New(sessions, a.Config.Chat.SweepSchedule, a.Logger)

	return nil
}

func (a *App) initHandlers() {
	a.AnalyzeHandler = handlers.NewAnalyzeHandler(a.Router, a.Logger)
	a.JobHandler = handlers.NewJobHandler(a.Router, a.Logger)
	a.ChatHandler = handlers.NewChatHandler(a.Router, a.Logger)
	a.HealthHandler = handlers.NewHealthHandler()
}

// Start launches the background workers and the retention sweeper.
func (a *App) Start() error {
	if err := a.WorkerPool.Start(); err != nil {
		return err
	}
	if err := a.Sweeper.Start(); err != nil {
		return err
	}
	a.Logger.Info().
		Int("workers", a.Config.Queue.Concurrency).
		Msg("Pipeline workers started")
	return nil
}

// Close shuts down workers, the sweeper, and storage in dependency order.
func (a *App) Close() error {
	a.cancelCtx()

	if a.WorkerPool != nil {
		a.WorkerPool.Stop()
	}
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}
	if a.Synthesizer != nil {
		a.Synthesizer.Close()
	}
	if a.QueueManager != nil {
		a.QueueManager.Close()
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	a.Logger.Info().Msg("Application shut down")
	return nil
}
