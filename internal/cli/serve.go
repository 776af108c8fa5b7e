package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mindfold/coalesce/internal/engine"
	"github.com/mindfold/coalesce/internal/oracle"
	"github.com/mindfold/coalesce/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and convergence scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := oracle.New(cfg.Oracle)
	if err != nil {
		log.Warn("oracle not configured, reactive convergence disabled", "err", err)
		client = &oracle.StaticClient{}
	} else {
		log.Info("oracle ready", "provider", cfg.Oracle.Provider)
	}

	eng := engine.New(db, client)
	sched := engine.NewScheduler(eng,
		time.Duration(cfg.Convergence.IntervalHours*float64(time.Hour)),
		time.Duration(cfg.Convergence.CheckMinutes)*time.Minute,
		cfg.Convergence.Threshold)
	sched.Start()
	defer sched.Stop()

	srv := server.New(db, eng, sched, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info("coalesce serving", "addr", addr, "db", db.Path)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
