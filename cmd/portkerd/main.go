package main

import (
	"net/http"
	"time"

	"github.com/relaysys/portkern/internal/config"
	"github.com/relaysys/portkern/internal/eventbus"
	"github.com/relaysys/portkern/internal/httpapi"
	"github.com/relaysys/portkern/internal/ipc/port"
	"github.com/relaysys/portkern/internal/ipc/task"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	log := buildLogger()
	log = log.Named("main")
	defer log.Sync()

	cfg := config.FromEnv()

	var events port.EventPublisher
	if cfg.RedisAddr != "" {
		pub := eventbus.New(log, cfg.RedisAddr, cfg.RedisDB)
		defer pub.Close()
		events = pub
	} else {
		events = eventbus.NoOp{}
	}

	table := port.NewTable(log, events)
	registry := task.NewRegistry(log, table)
	r := httpapi.NewRouter(log, table, registry, cfg.Env)

	httpserver := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,

		MaxHeaderBytes: 1 << 15,

		ErrorLog: zap.NewStdLog(log.Named("http").WithOptions(zap.AddCallerSkip(1))),
	}

	log.Info("running HTTP server", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Env))
	if err := httpserver.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server failed", zap.Error(err))
	}
}

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	return zap.Must(logConfig.Build())
}
