package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ruteri/decision-ledger/cmd/flags"
	"github.com/ruteri/decision-ledger/common"
	"github.com/ruteri/decision-ledger/decision"
	"github.com/ruteri/decision-ledger/guard"
	"github.com/ruteri/decision-ledger/httpserver"
	"github.com/ruteri/decision-ledger/inference"
	"github.com/ruteri/decision-ledger/ledger"
	"github.com/ruteri/decision-ledger/metrics"
	"github.com/urfave/cli/v2"
)

var serverFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.PortFlag,
	flags.AllowedOriginsFlag,
	flags.TrustProxyFlag,
	flags.AIServiceURLFlag,
	flags.InferenceTimeoutFlag,
	flags.ContractAddressFlag,
	flags.RpcURLFlag,
	flags.PrivateKeyFlag,
	flags.LedgerTimeoutFlag,
	flags.LedgerStartupTimeoutFlag,
	flags.RateLimitWindowFlag,
	flags.RateLimitMaxFlag,
	flags.RedisAddrFlag,
	flags.LogServiceFlagFn("decision-ledger"),
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:  "decision-ledger",
		Usage: "Serve the AI decision fingerprinting and verification API",
		Flags: serverFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			m := metrics.New(common.PackageName)

			// The ledger backend is chosen once; failures here select the local ledger.
			startupCtx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration(flags.LedgerStartupTimeoutFlag.Name))
			backend := ledger.New(startupCtx, flags.LedgerConfig(cCtx), logger)
			cancel()
			logger.Info("Ledger selected", "mode", backend.Kind().String())

			service := decision.NewService(backend, m, logger)
			inferenceClient := inference.NewClient(cCtx.String(flags.AIServiceURLFlag.Name), cCtx.Duration(flags.InferenceTimeoutFlag.Name))
			handler := httpserver.NewHandler(service, inferenceClient, cCtx.String(flags.ContractAddressFlag.Name), m, logger)

			limiter, closeLimiter := newLimiter(cCtx, logger)
			defer closeLimiter()

			cfg := flags.ConfigureServer(cCtx, logger)
			server, err := httpserver.New(cfg, handler, limiter, m)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server",
				"aiServiceUrl", cCtx.String(flags.AIServiceURLFlag.Name),
				"ledger", backend.Kind().String())
			server.RunInBackground()

			// Wait for termination signal
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newLimiter builds the Redis-backed limiter when --redis-addr is set and the
// in-memory one otherwise.
func newLimiter(cCtx *cli.Context, logger *slog.Logger) (guard.Limiter, func()) {
	window := cCtx.Duration(flags.RateLimitWindowFlag.Name)
	maxRequests := cCtx.Int(flags.RateLimitMaxFlag.Name)

	redisAddr := cCtx.String(flags.RedisAddrFlag.Name)
	if redisAddr == "" {
		return guard.NewSlidingWindowLimiter(window, maxRequests), func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	ctx, cancel := context.WithTimeout(cCtx.Context, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable, rate limiting in memory until it recovers", "err", err, "redisAddr", redisAddr)
	} else {
		logger.Info("Rate limiting with Redis", "redisAddr", redisAddr)
	}

	return guard.NewRedisLimiter(client, window, maxRequests, logger), func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close Redis client", "err", err)
		}
	}
}
