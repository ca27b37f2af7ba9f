package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"seqrule/internal/engine"
	"seqrule/internal/logging"
	"seqrule/internal/server"
	"seqrule/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control surface",
	Long: `Starts the rule CRUD API, loads the persisted rules into a serving
engine, and (for the file backend) watches the rules directory so edits
take effect without a restart. Shuts down gracefully on SIGINT/SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := logging.InitAudit(cwd); err != nil {
		logger.Warn("audit trail unavailable", zap.Error(err))
	}
	defer logging.CloseAudit()

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open rule store: %w", err)
	}
	defer st.Close()

	eng := engine.New()
	rules, err := st.List()
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}
	for _, r := range rules {
		if _, err := eng.LoadRule(r); err != nil {
			logger.Warn("skipping rule that failed to compile",
				zap.String("rule_id", r.ID), zap.Error(err))
		}
	}
	logger.Info("engine loaded", zap.Int("rules", len(eng.Rules())))

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(st, eng, cfg.GetTestTimeout()).Handler(),
	}

	var rw *watcher.RuleWatcher
	if cfg.Store.Backend == "file" && cfg.Store.Watch {
		rw, err = watcher.New(cfg.Store.RulesDir, eng)
		if err != nil {
			return fmt.Errorf("create rule watcher: %w", err)
		}
		if err := rw.Start(ctx); err != nil {
			return fmt.Errorf("start rule watcher: %w", err)
		}
		defer rw.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
