package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"banklink/internal/aggregator"
	"banklink/internal/backend"
	"banklink/internal/cli"
	apphttp "banklink/internal/http"
	"banklink/internal/linking"
	"banklink/internal/log"
	"banklink/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger("info", log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	logger.Info("Starting banklink server",
		log.FieldProvider, cfg.Provider,
		log.FieldLinkMode, cfg.LinkMode,
		"store", cfg.StoreBackend)

	res := cli.InitBackend(context.Background(), logger, cfg)
	spending, closeCache := cli.NewSpendingService(logger, cfg, res)

	mode, _ := linking.ParseMode(cfg.LinkMode) // validated by config

	deps := apphttp.Deps{
		Spending: spending,
		Linker:   res.Provider.Linker,
		Checks:   readinessChecks(res),
	}
	if res.Provider.Auth != nil {
		deps.Initiator = linking.NewInitiator(linking.InitiatorConfig{
			Backend:  res.Provider.Auth,
			Sessions: res.Sessions,
			Relay:    res.Relay,
			Opener:   linking.BrowserDelegated,
			Sink:     spending,
			Origin:   cfg.AppOrigin,
			Logger:   logger,
		})
		deps.Callback = linking.NewCallbackHandler(linking.CallbackConfig{
			Backend:  res.Provider.Auth,
			Sessions: res.Sessions,
			Relay:    res.Relay,
			Sink:     spending,
			Origin:   cfg.AppOrigin,
			Logger:   logger,
		})
	}

	// The page outlives the shared fetch so its error reaches the user.
	summaryTimeout := aggregator.DefaultRetryPolicy().Budget(cfg.BackendTimeout) + 5*time.Second
	srv := apphttp.NewServer(apphttp.Config{
		Addr:           ":" + cfg.Port,
		LinkMode:       mode,
		LinkTimeout:    cfg.LinkTimeout,
		SummaryTimeout: summaryTimeout,
		RateLimit:      ratelimit.DefaultConfig(),
		Logger:         logger,
	}, deps)

	// Configure server timeouts and limits; /link/wait and /ui/summary are held open for up to their own timeouts.
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = max(cfg.LinkTimeout, summaryTimeout) + 30*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		closeCache()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	go func() {
		logger.Info("Listening", "addr", srv.Addr, "origin", cfg.AppOrigin)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

type pinger interface {
	Ping(ctx context.Context) error
}

func readinessChecks(res *backend.Result) []apphttp.ReadinessCheck {
	var checks []apphttp.ReadinessCheck
	if p, ok := res.Store.(pinger); ok {
		checks = append(checks, apphttp.ReadinessCheck{Name: "store", Check: p.Ping})
	}
	if res.AMQP != nil {
		client := res.AMQP
		checks = append(checks, apphttp.ReadinessCheck{Name: "amqp", Check: func(context.Context) error {
			if !client.Healthy() {
				return errors.New("broker connection unhealthy")
			}
			return nil
		}})
	}
	return checks
}
