// Command starstream runs the programmable-ledger execution engine's HTTP
// surface: submit a coordination-script transaction, let
// internal/scheduler drive it to completion, and serve back its
// suspended UTXO set and distilled ledger-op trace.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PaimaStudios/starstream/cmd/starstream/app"
	"github.com/PaimaStudios/starstream/cmd/starstream/cli"
	"github.com/PaimaStudios/starstream/internal/code"
	"github.com/PaimaStudios/starstream/internal/config"
	"github.com/PaimaStudios/starstream/internal/linker"
	"github.com/PaimaStudios/starstream/internal/platform/logging"
)

var cfgListenAddr string

var rootCmd = &cobra.Command{
	Use:   "starstream",
	Short: "Starstream programmable-ledger execution engine",
	Long: `starstream runs coordination scripts against suspended UTXO and
token program instances, recording a witness log that is distilled into
ledger operations.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP transaction-submission server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&cfgListenAddr, "listen", "", "HTTP listen address (overrides STARSTREAM_LISTEN_ADDR)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cli.NewTraceCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// runServe assembles the cache/logger/fixture-resolver triple cmd/starstream
// reads from config and environment, then hands control to
// cmd/starstream/app's fx application for the HTTP listener's lifecycle:
// fx owns starting the gin router once dependencies are ready and
// shutting it down again when ctx is cancelled by an interrupt signal.
func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfgListenAddr != "" {
		cfg.ListenAddr = cfgListenAddr
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()

	cache, err := code.NewCache(cfg.Cache, logger)
	if err != nil {
		return fmt.Errorf("initialize code cache: %w", err)
	}
	defer cache.Close()

	fixtures := fixtureLoaderFromDir(cache, cfg.FixturePath, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx, app.Params{
		Cache:      cache,
		Fixtures:   fixtures,
		Logger:     logger,
		ListenAddr: cfg.ListenAddr,
		TxTimeout:  cfg.TransactionTimeout,
	})
}

// fixtureLoaderFromDir resolves a debug contract name to its code.Hash by
// loading it (once, memoizing via the cache's own LoadDebugByName/badger
// store) from cfg.FixturePath's on-disk wasm file, named "<name>.wasm".
// This backs the starstream_utxo:/starstream_token: debug-fixture imports;
// production coordination scripts never resolve through it.
func fixtureLoaderFromDir(cache *code.Cache, dir string, logger logging.Logger) linker.FixtureLoader {
	return func(name string) (code.Hash, error) {
		if cc, err := cache.LoadDebugByName(name); err == nil {
			return cc.Hash(), nil
		}

		if dir == "" {
			return code.Hash{}, code.ErrFixtureNotFound
		}

		path := dir + "/" + name + ".wasm"
		wasm, err := os.ReadFile(path)
		if err != nil {
			return code.Hash{}, code.ErrFixtureNotFound
		}

		if err := cache.RegisterFixture(name, wasm); err != nil {
			logger.Warnf("register fixture %s: %v", name, err)
		}

		cc, err := cache.LoadFromBytes(wasm)
		if err != nil {
			return code.Hash{}, err
		}
		return cc.Hash(), nil
	}
}
