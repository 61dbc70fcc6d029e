package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/metrics"
	"github.com/sells-group/leadgen-cli/internal/workflow"
)

func dialTemporal() (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    workflow.NewLogger(zap.L()),
	})
	return c, eris.Wrap(err, "temporal: dial")
}

// healthRouter serves liveness and Prometheus metrics.
func healthRouter(ping func(context.Context) error) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if err := ping(r.Context()); err != nil {
			status, code = "db unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	r.Handle("/metrics", metrics.Handler())
	return r
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Temporal worker for the scheduled pipeline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initStages(ctx, needAll)
		if err != nil {
			return err
		}
		defer env.Close()

		tc, err := dialTemporal()
		if err != nil {
			return err
		}
		defer tc.Close()

		w := worker.New(tc, cfg.Temporal.TaskQueue, worker.Options{})
		workflow.Register(w, &workflow.Activities{Schema: env.Store, Stages: env.Runner})
		if err := w.Start(); err != nil {
			return eris.Wrap(err, "temporal: start worker")
		}
		defer w.Stop()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           healthRouter(env.Store.Ping),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down worker")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("worker started",
			zap.String("task_queue", cfg.Temporal.TaskQueue),
			zap.Int("port", cfg.Server.Port),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Start one pipeline workflow run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		tc, err := dialTemporal()
		if err != nil {
			return err
		}
		defer tc.Close()

		run, err := tc.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:        "leadgen-" + uuid.NewString(),
			TaskQueue: cfg.Temporal.TaskQueue,
		}, workflow.Name, workflow.Params{StartDelayMax: cfg.Temporal.StartDelayMax})
		if err != nil {
			return eris.Wrap(err, "temporal: start workflow")
		}
		zap.L().Info("workflow started",
			zap.String("workflow_id", run.GetID()),
			zap.String("run_id", run.GetRunID()),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd, triggerCmd)
}
