package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"call-console/internal/audit"
	"call-console/internal/config"
	"call-console/internal/console"
	"call-console/internal/httpapi"
	"call-console/internal/metrics"
	"call-console/internal/notify"
	"call-console/internal/playback"
	"call-console/internal/reporting"
	"call-console/internal/telephony"
	"call-console/pkg/logger"
	"call-console/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var auditRepo audit.Repository = audit.NewMemoryRepo()
	if cfg.AuditToPostgres() {
		db, err := utils.OpenPostgres(ctx, utils.PostgresDriver, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
		defer db.Close()
		pg, err := audit.NewPostgresRepo(db)
		if err != nil {
			return err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		auditRepo = pg
	}

	var sinks []notify.Sink
	if cfg.PublishToRedis() {
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
		if err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
		defer rdb.Close()
		sink, err := notify.NewRedisSink(rdb, cfg.Notify.Channel)
		if err != nil {
			return err
		}
		sinks = append(sinks, sink)
	}

	client, err := telephony.NewClient(telephony.ClientConfig{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	})
	if err != nil {
		return err
	}

	con, err := console.New(console.Options{
		Remote:             client,
		Player:             playback.ExecPlayer{Command: cfg.Player.Command},
		CallsInterval:      cfg.Polling.CallsInterval,
		TranscriptInterval: cfg.Polling.TranscriptInterval,
		Notifier: notify.NewCenter(notify.Config{
			TTL:     cfg.Notify.TTL,
			Sinks:   sinks,
			Logger:  log,
			Metrics: m,
		}),
		Audit:   audit.NewService(auditRepo),
		Metrics: m,
		Logger:  log,
	})
	if err != nil {
		return err
	}
	if err := con.Start(ctx); err != nil {
		return err
	}
	defer con.Close()

	router := httpapi.NewRouter(httpapi.Handlers{
		Console:       con.Controller,
		Notifications: con.Notifications,
		Reporting:     reporting.NewService(con.Store),
	}, log, reg)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("console listening", "addr", srv.Addr, "backend", client.BaseURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown initiated")
	case err := <-errCh:
		log.Error("http server failed", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	return nil
}
