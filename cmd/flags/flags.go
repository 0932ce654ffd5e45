package flags

import (
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/decision-ledger/api"
	"github.com/ruteri/decision-ledger/common"
	"github.com/ruteri/decision-ledger/ledger"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// ListenAddr resolves the API listen address. A non-zero --port replaces the
// port of --listen-addr.
func ListenAddr(cCtx *cli.Context) string {
	listenAddr := cCtx.String(ListenAddrFlag.Name)
	port := cCtx.String(PortFlag.Name)
	if port == "" {
		return listenAddr
	}
	host, _, err := net.SplitHostPort(listenAddr)
	if err != nil {
		host = listenAddr
	}
	return net.JoinHostPort(host, port)
}

// AllowedOrigins splits the comma separated --allowed-origins value.
func AllowedOrigins(cCtx *cli.Context) []string {
	var origins []string
	for _, origin := range strings.Split(cCtx.String(AllowedOriginsFlag.Name), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *api.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &api.HTTPServerConfig{
		ListenAddr:               ListenAddr(cCtx),
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		AllowedOrigins:           AllowedOrigins(cCtx),
		TrustProxy:               cCtx.Bool(TrustProxyFlag.Name),
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

func LedgerConfig(cCtx *cli.Context) *ledger.Config {
	return &ledger.Config{
		ContractAddress: cCtx.String(ContractAddressFlag.Name),
		RPCURL:          cCtx.String(RpcURLFlag.Name),
		PrivateKey:      cCtx.String(PrivateKeyFlag.Name),
		Timeout:         cCtx.Duration(LedgerTimeoutFlag.Name),
	}
}

var AIServiceURLFlag = &cli.StringFlag{
	Name:    "ai-service-url",
	Value:   "http://127.0.0.1:5000",
	Usage:   "base URL of the AI inference service",
	EnvVars: []string{"AI_SERVICE_URL"},
}
var InferenceTimeoutFlag = &cli.DurationFlag{
	Name:    "inference-timeout",
	Usage:   "bound on each inference call, 0 for none",
	EnvVars: []string{"INFERENCE_TIMEOUT"},
}

var ContractAddressFlag = &cli.StringFlag{
	Name:    "contract-address",
	Usage:   "AIDecisionRegistry contract address. Without it decisions are kept in a local in-memory ledger",
	EnvVars: []string{"CONTRACT_ADDRESS"},
}
var RpcURLFlag = &cli.StringFlag{
	Name:    "rpc-url",
	Value:   "http://127.0.0.1:8545",
	Usage:   "address to connect to RPC",
	EnvVars: []string{"RPC_URL"},
}
var PrivateKeyFlag = &cli.StringFlag{
	Name:    "private-key",
	Usage:   "hex-encoded key used to sign decision registrations",
	EnvVars: []string{"PRIVATE_KEY"},
}
var LedgerTimeoutFlag = &cli.DurationFlag{
	Name:    "ledger-timeout",
	Usage:   "bound on each ledger call including waiting for the transaction to be mined, 0 for none",
	EnvVars: []string{"LEDGER_TIMEOUT"},
}
var LedgerStartupTimeoutFlag = &cli.DurationFlag{
	Name:    "ledger-startup-timeout",
	Value:   30 * time.Second,
	Usage:   "how long to try connecting to the ledger at startup before falling back to the local ledger",
	EnvVars: []string{"LEDGER_STARTUP_TIMEOUT"},
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:3001",
	Usage:   "address to listen on for API",
	EnvVars: []string{"LISTEN_ADDR"},
}
var PortFlag = &cli.StringFlag{
	Name:    "port",
	Usage:   "port to listen on, overrides the port of --listen-addr",
	EnvVars: []string{"PORT"},
}
var AllowedOriginsFlag = &cli.StringFlag{
	Name:    "allowed-origins",
	Value:   "*",
	Usage:   "comma separated CORS origins",
	EnvVars: []string{"ALLOWED_ORIGINS"},
}

var TrustProxyFlag = &cli.BoolFlag{
	Name:    "trust-proxy",
	Usage:   "rate limit by the client address reported in X-Forwarded-For / X-Real-IP",
	EnvVars: []string{"TRUST_PROXY"},
}

var RateLimitWindowFlag = &cli.DurationFlag{
	Name:    "rate-limit-window",
	Value:   15 * time.Minute,
	Usage:   "sliding window of the per-client rate limit",
	EnvVars: []string{"RATE_LIMIT_WINDOW"},
}
var RateLimitMaxFlag = &cli.IntFlag{
	Name:    "rate-limit-max",
	Value:   100,
	Usage:   "requests allowed per client within the window",
	EnvVars: []string{"RATE_LIMIT_MAX"},
}
var RedisAddrFlag = &cli.StringFlag{
	Name:    "redis-addr",
	Usage:   "Redis address for a rate limit shared between replicas. In-memory when empty",
	EnvVars: []string{"REDIS_ADDR"},
}

var ServerURLFlag = &cli.StringFlag{
	Name:    "server",
	Value:   "http://127.0.0.1:3001",
	Usage:   "decision ledger API base URL",
	EnvVars: []string{"DECISION_SERVER_URL"},
}

var LogJsonFlag = &cli.BoolFlag{
	Name:    "log-json",
	Value:   false,
	Usage:   "log in JSON format",
	EnvVars: []string{"LOG_JSON"},
}
var LogDebugFlag = &cli.BoolFlag{
	Name:    "log-debug",
	Value:   false,
	Usage:   "log debug messages",
	EnvVars: []string{"LOG_DEBUG"},
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait before shutting down after marking the server not ready",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics",
	EnvVars: []string{"METRICS_ADDR"},
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
