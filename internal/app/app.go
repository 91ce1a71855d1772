package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/harborpoint/dealflow-backend/internal/db"
	"github.com/harborpoint/dealflow-backend/internal/jobs"
	"github.com/harborpoint/dealflow-backend/internal/logger"
	"github.com/harborpoint/dealflow-backend/internal/sse"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	SSEHub   *sse.SSEHub
	Poller   *jobs.Poller
	cancel   context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	ssehub := sse.NewSSEHub(log)

	reposet := wireRepos(theDB, log)

	clientset, err := wireClients(log, reposet)
	if err != nil {
		log.Sync()
		return nil, err
	}

	serviceset := wireServices(theDB, log, reposet, clientset)

	handlerset := wireHandlers(log, serviceset, ssehub)
	mw := wireMiddleware(log)
	router := wireRouter(handlerset, mw)

	var poller *jobs.Poller
	if cfg.EnablePoller {
		poller = jobs.NewPoller(log, reposet.MailAccount, serviceset.Poll)
	}

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Repos:    reposet,
		Clients:  clientset,
		Services: serviceset,
		SSEHub:   ssehub,
		Poller:   poller,
	}, nil
}

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Poller != nil {
		a.Poller.Start(ctx)
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Clients.SeenFilter != nil {
		_ = a.Clients.SeenFilter.Close()
	}
	if a.Clients.Graph != nil {
		_ = a.Clients.Graph.Close(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
