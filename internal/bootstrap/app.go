package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"scholarai/internal/ai"
	"scholarai/internal/app"
	"scholarai/internal/cache"
	"scholarai/internal/config"
	"scholarai/internal/generation"
	"scholarai/internal/logger"
	"scholarai/internal/model"
	"scholarai/internal/platform/database"
	rabbitmqClient "scholarai/internal/platform/rabbitmq"
	redisClient "scholarai/internal/platform/redis"
	"scholarai/internal/repository"
	"scholarai/internal/scholar"
	"scholarai/internal/vector"
	"scholarai/internal/worker"
)

type Services struct {
	Auth       *app.AuthService
	Projects   *app.ProjectService
	Research   *app.ResearchService
	Documents  *app.DocumentService
	Prototypes *app.PrototypeService
	Jobs       *app.JobService
}

// Collaborators are the replaceable edges of the system.
type Collaborators struct {
	Publisher app.JobPublisher
	Resolver  app.PaperResolver
	Vectors   vector.Store
	Writer    app.SectionWriter
	Coder     app.CodeWriter
	Catalog   generation.Catalog
	Denylist  app.TokenDenylist
}

type App struct {
	Config     *config.Config
	Log        *logger.Logger
	DB         *gorm.DB
	Redis      *redis.Client
	MQConn     *amqp.Connection
	Services   Services
	Dispatcher *worker.Dispatcher
	JobWorker  *worker.JobWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, cfg.Database, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.JobQueue)
	if err != nil {
		_ = redisCli.Close()
		closeDB(db)
		return nil, err
	}

	llm := ai.NewOpenAICompatibleClient(cfg.LLM)
	var embedder vector.Embedder = vector.NewHashEmbedder(cfg.Vector.Dimensions)
	if llm.Configured() {
		embedder = llm
	}
	vectors, err := vector.New(ctx, cfg.Vector, embedder)
	if err != nil {
		_ = mqConn.Close()
		_ = redisCli.Close()
		closeDB(db)
		return nil, fmt.Errorf("init vector store failed: %w", err)
	}

	lookupCache := cache.NewLookupCache(redisCli, time.Duration(cfg.Redis.LookupTTLSeconds)*time.Second)
	a := Wire(cfg, log, db, Collaborators{
		Publisher: rabbitmqClient.NewJobPublisher(mqConn, cfg.RabbitMQ.JobQueue),
		Resolver:  scholar.NewResolverFromConfig(cfg.Sources, lookupCache, log.With("component", "scholar")),
		Vectors:   vectors,
		Writer:    generation.NewSectionWriter(llm, cfg.LLM.SectionMaxTokens),
		Coder:     generation.NewCodeGenerator(llm, cfg.LLM.PrototypeMaxTokens),
		Catalog:   generation.DefaultCatalog(),
		Denylist:  cache.NewTokenDenylist(redisCli),
	})
	a.Redis = redisCli
	a.MQConn = mqConn

	log.Info("application initialised",
		"env", cfg.App.Env,
		"db_driver", cfg.Database.Driver,
		"vector_provider", cfg.Vector.Provider,
		"llm_configured", llm.Configured(),
	)
	return a, nil
}

// Wire builds repositories, services and job handlers over an open database.
func Wire(cfg *config.Config, log *logger.Logger, db *gorm.DB, c Collaborators) *App {
	if c.Catalog == nil {
		c.Catalog = generation.DefaultCatalog()
	}

	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	prototypeRepo := repository.NewPrototypeRepository(db)
	paperRepo := repository.NewPaperRepository(db)
	jobRepo := repository.NewJobRepository(db)

	jobs := app.NewJobService(jobRepo, c.Publisher, log)
	services := Services{
		Auth:       app.NewAuthService(userRepo, c.Denylist, cfg.Auth.JWTSecret, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL()),
		Projects:   app.NewProjectService(projectRepo, c.Catalog),
		Research:   app.NewResearchService(paperRepo, c.Resolver, c.Vectors, jobs, log),
		Documents:  app.NewDocumentService(documentRepo, projectRepo, paperRepo, jobs, c.Writer, c.Catalog, log),
		Prototypes: app.NewPrototypeService(prototypeRepo, projectRepo, jobs, c.Coder, log),
		Jobs:       jobs,
	}

	dispatcher := worker.NewDispatcher(jobRepo, log)
	dispatcher.Register(model.JobKindDocumentGenerate, worker.Handler{
		Run:  services.Documents.RunGeneration,
		Fail: services.Documents.FailGeneration,
	})
	dispatcher.Register(model.JobKindPrototypeBuild, worker.Handler{
		Run:  services.Prototypes.RunBuild,
		Fail: services.Prototypes.FailBuild,
	})
	dispatcher.Register(model.JobKindPaperBulkIngest, worker.Handler{
		Run: services.Research.RunBulkIngest,
	})

	return &App{
		Config:     cfg,
		Log:        log,
		DB:         db,
		Services:   services,
		Dispatcher: dispatcher,
		StartedAt:  time.Now(),
	}
}

// StartWorker consumes the job queue in this process.
func (a *App) StartWorker(ctx context.Context) error {
	if a.MQConn == nil {
		return fmt.Errorf("start job worker failed: rabbitmq not connected")
	}
	if a.JobWorker != nil {
		return nil
	}
	w := worker.NewJobWorker(a.MQConn, a.Dispatcher, a.Config.RabbitMQ.JobQueue,
		a.Config.RabbitMQ.Prefetch, a.Config.Worker.Concurrency, a.Log)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start job worker failed: %w", err)
	}
	a.JobWorker = w
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.JobWorker != nil {
		a.JobWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return closeErr
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
