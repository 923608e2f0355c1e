package app

import (
	"context"
	"errors"
	"net/http"

	"agenda/pkg/config"
	"agenda/pkg/contracts"
	"agenda/pkg/middleware"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/sync/errgroup"
)

// Stopper is a background component stopped after the HTTP server drains.
type Stopper interface {
	Stop()
}

type StopFunc func()

func (f StopFunc) Stop() { f() }

// Application is the HTTP shell shared by the service binaries: health probes
// on a bare router, API handlers behind the full middleware chain.
type Application struct {
	cfg         *config.Config
	pinger      Pinger
	server      *http.Server
	idempotency *middleware.InMemoryIdempotencyStore
	stoppers    []Stopper
}

// New builds the server; pinger backs the readiness probe and is normally
// cfg.Client.Mongo.
func New(cfg *config.Config, pinger Pinger) *Application {
	a := &Application{
		cfg:         cfg,
		pinger:      pinger,
		idempotency: middleware.NewInMemoryIdempotencyStore(cfg.IdempotencyTTL),
	}
	a.server = &http.Server{
		Addr:         ":" + cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	a.mount(nil)
	return a
}

// Register installs the API handlers. It replaces any earlier registration.
func (a *Application) Register(handlers ...contracts.Handler) {
	a.mount(handlers)
	a.cfg.Log.Info("Application endpoints configured", "handlers", len(handlers))
}

// OnShutdown registers components to stop during graceful shutdown. Later
// registrations stop first, so a component may still use the ones it was
// built on while it drains.
func (a *Application) OnShutdown(s ...Stopper) {
	a.stoppers = append(a.stoppers, s...)
}

// Handler exposes the full routing tree, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

func (a *Application) mount(handlers []contracts.Handler) {
	log := a.cfg.Log

	health := httprouter.New()
	NewHealthHandler(a.pinger, log).RegisterRoutes(health)
	healthChain := middleware.Recovery(log)(middleware.RequestLogging(log)(health))

	api := httprouter.New()
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}

	// Listed outermost first.
	chain := []func(http.Handler) http.Handler{
		middleware.Recovery(log),
		middleware.RequestLogging(log),
		middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize)),
		middleware.ContentTypeValidation(log),
		middleware.RequestTimeout(a.cfg.RequestTimeout),
		middleware.Idempotency(a.idempotency),
		middleware.Identify(log),
	}
	var apiChain http.Handler = api
	for i := len(chain) - 1; i >= 0; i-- {
		apiChain = chain[i](apiChain)
	}

	mux := http.NewServeMux()
	mux.Handle("/health", healthChain)
	mux.Handle("/ready", healthChain)
	mux.Handle("/", apiChain)
	a.server.Handler = mux
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// the shutdown timeout and stops the registered components.
func (a *Application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.cfg.Log.Info("Starting graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
		defer cancel()

		err := a.server.Shutdown(shutdownCtx)
		if err != nil {
			a.cfg.Log.Error("Server shutdown failed, closing connections", "error", err)
			err = errors.Join(err, a.server.Close())
		}

		a.idempotency.Stop()
		for i := len(a.stoppers) - 1; i >= 0; i-- {
			a.stoppers[i].Stop()
		}
		a.cfg.Log.Info("Server stopped")
		return err
	})

	return g.Wait()
}
