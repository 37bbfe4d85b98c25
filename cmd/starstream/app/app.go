// Package app composes starstream's HTTP server as an fx application.
// The code cache, fixture resolver and structured logger are assembled
// by the caller (cmd/starstream's own config-driven startup path builds
// these the same way whether or not fx is in the loop) and handed in
// through Params; this package owns wiring the transaction API's gin
// router onto a listening socket and tearing it down again, the same
// Provide-plus-Lifecycle-hook shape the teacher's bootstrap layer uses
// for each of its own infrastructure/communication/application layers,
// reduced here to this service's single HTTP concern.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/PaimaStudios/starstream/internal/api"
	"github.com/PaimaStudios/starstream/internal/code"
	"github.com/PaimaStudios/starstream/internal/linker"
	"github.com/PaimaStudios/starstream/internal/platform/logging"
)

// Params are the dependencies the caller assembles before handing
// control to fx. code.NewCache and the fixture loader both depend on
// config-resolved paths the caller already reads, so fx only takes over
// from the HTTP layer down rather than constructing the whole stack
// itself.
type Params struct {
	Cache      *code.Cache
	Fixtures   linker.FixtureLoader
	Logger     logging.Logger
	ListenAddr string
	TxTimeout  time.Duration
}

// Module builds the fx options wiring Params onto a gin.Engine and an
// HTTP listener managed through an fx.Lifecycle hook.
func Module(p Params) fx.Option {
	return fx.Options(
		fx.Supply(p),
		fx.Provide(
			func(p Params) *api.Handler {
				return api.NewHandler(p.Cache, p.Fixtures, p.Logger, p.TxTimeout)
			},
			func(h *api.Handler) *gin.Engine {
				gin.SetMode(gin.ReleaseMode)
				r := gin.New()
				r.Use(gin.Recovery())
				h.Register(r)
				return r
			},
		),
		fx.Invoke(registerHTTPServer),
	)
}

// registerHTTPServer opens the listening socket during Module's
// construction (so a bind failure surfaces from fx.New itself) and
// defers actually accepting connections to the OnStart hook, stopping
// the server gracefully on OnStop.
func registerHTTPServer(lc fx.Lifecycle, p Params, router *gin.Engine) error {
	listener, err := net.Listen("tcp", p.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", p.ListenAddr, err)
	}

	server := &http.Server{Handler: router}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			p.Logger.Infof("starstream listening on %s", p.ListenAddr)
			go func() {
				if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
					p.Logger.Errorf("http server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("stopped")
			return server.Shutdown(ctx)
		},
	})

	return nil
}

func newFxApp(p Params) *fx.App {
	return fx.New(
		Module(p),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: p.Logger.Zap()}
		}),
	)
}

// Run starts the fx application described by Module, blocks until ctx
// is cancelled, then stops it within a bounded shutdown window.
func Run(ctx context.Context, p Params) error {
	fxApp := newFxApp(p)

	if err := fxApp.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop application: %w", err)
	}
	return nil
}
