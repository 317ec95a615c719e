package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/freekieb7/bytegate/config"
	"github.com/freekieb7/bytegate/example"
	"github.com/freekieb7/bytegate/http"
	"github.com/freekieb7/bytegate/logger"
	"github.com/freekieb7/bytegate/telemetry"
)

const telemetryShutdownTimeout = 5 * time.Second

type serveOptions struct {
	configPath   string
	envFiles     []string
	host         string
	port         int
	poolSize     int
	logLevel     string
	otlpEndpoint string
	panic500     bool
	saveDelay    time.Duration
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo notes and search application",
		Long: `Run the demo application on the bytegate server.

Settings are read from the config file, then .env files and BYTEGATE_*
environment variables, then flags; later sources win.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	opts.bind(cmd)
	return cmd
}

func (opts *serveOptions) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, ".env files to load, missing files are skipped")
	flags.StringVar(&opts.host, "host", "", "interface to bind")
	flags.IntVarP(&opts.port, "port", "p", http.DefaultPort, "port to listen on")
	flags.IntVar(&opts.poolSize, "pool-size", http.DefaultPoolSize, "requested core worker count, capped at 20")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: off, error, info or debug")
	flags.StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "OTLP/gRPC collector host:port, empty disables export")
	flags.BoolVar(&opts.panic500, "panic-500", false, "answer panicking handlers with 500 instead of closing")
	flags.DurationVar(&opts.saveDelay, "save-delay", config.DefaultSaveDelay, "artificial delay when saving a note")
}

// resolve merges file, environment and explicitly set flags.
func (opts *serveOptions) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := config.LoadEnv(cfg, opts.envFiles...); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = opts.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = opts.port
	}
	if flags.Changed("pool-size") {
		cfg.Server.PoolSize = opts.poolSize
	}
	if flags.Changed("log-level") {
		level, err := logger.ParseLevel(opts.logLevel)
		if err != nil {
			return nil, errors.Wrap(err, "invalid --log-level")
		}
		cfg.Logging.Level = level
	}
	if flags.Changed("otlp-endpoint") {
		cfg.Telemetry.Endpoint = opts.otlpEndpoint
	}
	if flags.Changed("panic-500") {
		cfg.Server.Panic500 = opts.panic500
	}
	if flags.Changed("save-delay") {
		cfg.Demo.SaveDelay = opts.saveDelay
	}

	return cfg, cfg.Validate()
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    true,
	})
	if err != nil {
		return errors.Wrap(err, "set up telemetry")
	}

	log := logger.New(cfg.Logging.Level, os.Stderr)
	defer shutdownTelemetry(log, shutdown, telemetryShutdownTimeout)

	httpCfg := cfg.HTTP()
	builder := http.NewBuilder().
		Host(httpCfg.Host).
		Port(httpCfg.Port).
		PoolSize(httpCfg.PoolSize).
		LogLevel(httpCfg.LogLevel).
		Logger(log).
		RecoverPanics(httpCfg.InternalErrorOnPanic).
		IOTimeout(httpCfg.IOTimeout)
	metrics := example.Mount(builder, cfg.Demo.SaveDelay)

	server, err := builder.Build()
	if err != nil {
		return errors.Wrap(err, "build server")
	}
	metrics.Attach(server)

	log.Info("server_starting",
		"addr", httpCfg.Host,
		"port", httpCfg.Port,
		"pool", http.DefaultPoolConfig(httpCfg.PoolSize).CoreSize,
		"log_level", cfg.Logging.Level.String(),
	)
	return server.Run(ctx)
}

// shutdownTelemetry flushes exporters within timeout and logs a failure.
func shutdownTelemetry(log *slog.Logger, shutdown telemetry.ShutdownFunc, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn("telemetry_shutdown_failed", "error", err)
	}
}
