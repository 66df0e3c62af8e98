package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/bassista/go_gallery/internal/auth"
	"github.com/bassista/go_gallery/internal/cache"
	"github.com/bassista/go_gallery/internal/config"
	"github.com/bassista/go_gallery/internal/gallery"
	"github.com/bassista/go_gallery/internal/invalidation"
	"github.com/bassista/go_gallery/internal/logger"
	"github.com/bassista/go_gallery/internal/media"
	"github.com/bassista/go_gallery/internal/mutation"
	"github.com/bassista/go_gallery/internal/readcache"
	"github.com/bassista/go_gallery/internal/repository"
	"github.com/bassista/go_gallery/internal/session"
)

const sessionEventBuffer = 256

// Backend is the persistence wiring chosen at startup.
type Backend struct {
	Store repository.PhotoStore

	// File backend: the data file and the in-memory document serving Store.
	Repo  repository.Repository
	Cache cache.AppStore

	// Database backend: our invalidations leave through Notifier, peers' arrive on Connect.
	Notifier invalidation.Invalidator
	Connect  invalidation.Connector
	Origin   string

	// Close releases backend resources after the app stopped.
	Close func()
}

// App is the application container (immutable dependencies + lifecycle context).
// It is not a request context; handlers should still use gin's request context.
type App struct {
	Config  *config.Config
	Backend Backend

	ReadCache   *readcache.Cache
	Bus         *invalidation.Bus
	Coordinator *invalidation.Coordinator
	Views       *gallery.Service
	Mutations   *mutation.Service
	Sessions    *session.Manager
	Media       media.Store
	Tokens      *auth.Manager

	BaseCtx context.Context
	Cancel  context.CancelFunc

	persisted <-chan struct{}
}

func New(cfg *config.Config, backend Backend, mediaStore media.Store) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if backend.Store == nil {
		return nil, errors.New("photo store is nil")
	}
	if backend.Repo != nil && backend.Cache == nil {
		return nil, errors.New("cache store is nil")
	}
	if mediaStore == nil {
		return nil, errors.New("media store is nil")
	}

	rc, err := readcache.New(cfg.Cache.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("create read cache: %w", err)
	}
	bus := invalidation.NewBus()
	transports := []invalidation.Invalidator{rc, bus}
	if backend.Notifier != nil {
		transports = append(transports, backend.Notifier)
	}
	coord := invalidation.NewCoordinator(invalidation.Planner{FeedShared: cfg.Cache.FeedShared}, transports...)

	views := gallery.NewService(backend.Store, rc, cfg.Data.PageSize, cfg.Cache.FeedShared)
	sessions, err := session.NewManager(cfg.Cache.MaxSessions, views)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:      cfg,
		Backend:     backend,
		ReadCache:   rc,
		Bus:         bus,
		Coordinator: coord,
		Views:       views,
		Mutations:   mutation.NewService(backend.Store, coord, mutation.WithMediaChecker(mediaStore)),
		Sessions:    sessions,
		Media:       mediaStore,
		Tokens:      auth.NewManager([]byte(cfg.Auth.JWTKey), cfg.Auth.TokenTTL),
		BaseCtx:     ctx,
		Cancel:      cancel,
	}, nil
}

// Shutdown cancels the background work, waits for the final flush of the file
// backend and releases the backend.
func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()
	if a.persisted != nil {
		<-a.persisted
	}
	if a.Backend.Close != nil {
		a.Backend.Close()
	}
}

// StartWatchers starts the background goroutines; they stop with BaseCtx.
func (a *App) StartWatchers() error {
	log := logger.WithComponent("app")

	if a.Backend.Repo != nil {
		// a newer document written by another instance replaces ours wholesale
		onReload := func() { a.Coordinator.InvalidateAll(a.BaseCtx) }
		if err := a.Backend.Repo.StartWatcher(a.BaseCtx, a.Backend.Cache, onReload); err != nil {
			return fmt.Errorf("cannot start data file watcher: %w", err)
		}
		if !a.Config.Data.WriteThrough {
			a.persisted = cache.StartPersistenceScheduler(a.BaseCtx, a.Backend.Cache, a.Backend.Repo, a.Config.Data.PersistInterval)
		}
	}

	if a.Backend.Connect != nil {
		listener := invalidation.NewPGListener(a.Backend.Connect, a.Config.Cache.NotifyChannel, a.Backend.Origin, a.ReadCache, a.Bus)
		go listener.Run(a.BaseCtx)
		log.Infof("listening for invalidations on channel %s", a.Config.Cache.NotifyChannel)
	}

	go a.Sessions.Watch(a.BaseCtx, a.Bus.Subscribe(a.BaseCtx, sessionEventBuffer))
	return nil
}
