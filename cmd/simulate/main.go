package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"CascadeBandit/internal/bandit"
	"CascadeBandit/internal/config"
	"CascadeBandit/internal/environment"
	"CascadeBandit/internal/notifier"
	"CascadeBandit/internal/observability"
	"CascadeBandit/internal/recorder"
	"CascadeBandit/internal/sampler"
	"CascadeBandit/internal/scheduler"
	"CascadeBandit/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] CascadeBandit starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}
	steps, err := cfg.StepKinds()
	if err != nil {
		log.Fatalf("[FATAL] cascade steps: %v", err)
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	runID := uuid.New().String()
	log.Printf("[INFO] run %s: seed=%d iterations=%d steps=%v failure=%v",
		runID, seed, cfg.Simulation.Iterations, steps, cfg.Failure.Enabled)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Init tracing
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		log.Fatalf("[FATAL] init tracing: %v", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing)

	// Init environment, strategy and bandit on one shared random source
	rng := sampler.New(seed)
	env, err := environment.New(environment.Params{
		PrimaryProba:  cfg.Arms.PrimaryProba,
		RepeatedProba: cfg.Arms.RepeatedProba,
		Constraints:   cfg.Arms.Constraints,
		Failure:       cfg.Failure.Enabled,
		FailurePolicy: environment.FailurePolicy{
			TriggerAt:     *cfg.Failure.TriggerAt,
			MinConstraint: cfg.Failure.MinConstraint,
			Downtime:      *cfg.Failure.Downtime,
			Sentinel:      cfg.Failure.Sentinel,
		},
	}, rng)
	if err != nil {
		log.Fatalf("[FATAL] init environment: %v", err)
	}
	b := bandit.New(strategy.New(env, rng, steps, cfg.Strategy.Shortlist), env)

	// Init notifier
	var n notifier.Notifier
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		n = tn
	} else {
		log.Println("[INFO] Telegram not configured, reports go to the log")
		n = notifier.NewLogNotifier()
	}

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
			log.Printf("[WARN] create database dir: %v", err)
		}
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Init metrics
	metrics, err := observability.NewBanditCollector(nil)
	if err != nil {
		log.Fatalf("[FATAL] init metrics: %v", err)
	}
	if metricsSrv := serveMetrics(cfg.Metrics.ListenAddr, metrics); metricsSrv != nil {
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, env, b, n, rec, metrics, scheduler.Options{
		RunID:         runID,
		Seed:          seed,
		Steps:         steps,
		Failure:       cfg.Failure.Enabled,
		Iterations:    cfg.Simulation.Iterations,
		FrameInterval: cfg.Simulation.FrameInterval,
		Accelerated:   cfg.Simulation.Accelerated,
		RollingWindow: cfg.Simulation.RollingWindow,
		SummaryPath:   cfg.Report.SummaryPath,
	})
	if err := sched.RegisterAll(cfg.Report.Cron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	log.Println("[INFO] CascadeBandit is running. Press Ctrl+C to stop.")
	err = sched.Run(ctx)
	sched.Stop()
	switch {
	case errors.Is(err, context.Canceled):
		log.Println("[INFO] shutdown signal received, run stopped early")
	case err != nil:
		log.Printf("[ERROR] run: %v", err)
	}
	log.Println("[INFO] CascadeBandit stopped")
}

func serveMetrics(addr string, collector *observability.BanditCollector) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[WARN] metrics server exited: %v", err)
		}
	}()

	log.Printf("[INFO] serving Prometheus metrics on %s", addr)
	return srv
}
