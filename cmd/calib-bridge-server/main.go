package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"calib-bridge/internal/config"
	"calib-bridge/internal/host"
	"calib-bridge/internal/logging"
	"calib-bridge/internal/models"
	"calib-bridge/internal/protocol"
	"calib-bridge/internal/queue"
	"calib-bridge/internal/server"
)

var (
	configFile      string
	bindHost        string
	port            int
	readTimeout     time.Duration
	shutdownTimeout time.Duration
	tickInterval    time.Duration
	rateLimit       float64
	rateBurst       int
	logLevel        string
	prettyLogs      bool
)

var rootCmd = &cobra.Command{
	Use:   "calib-bridge-server",
	Short: "Line-oriented TCP bridge for the screen calibration handshake",
	Long: `calib-bridge-server accepts TCP clients, acknowledges every line they send,
and feeds the lines once per tick into the calibration interpreter.

Send SIGHUP to start a new calibration. SIGINT or SIGTERM shuts down.`,
	SilenceUsage: true,
	RunE:         runServer,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configFile, "config", "", "Configuration file (JSON)")
	f.StringVar(&bindHost, "host", "", "Interface to bind (empty for all)")
	f.IntVar(&port, "port", config.DefaultPort, "TCP port to listen on")
	f.DurationVar(&readTimeout, "read-timeout", config.DefaultReadTimeout, "Per-read timeout on each connection (0 disables)")
	f.DurationVar(&shutdownTimeout, "shutdown-timeout", config.DefaultShutdownTimeout, "How long shutdown waits for connection handlers")
	f.DurationVar(&tickInterval, "tick", config.DefaultTickInterval, "Interval between queue drains")
	f.Float64Var(&rateLimit, "rate-limit", 0, "Lines per second accepted per connection (0 is unlimited)")
	f.IntVar(&rateBurst, "rate-burst", 1, "Burst size for --rate-limit")
	f.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	f.BoolVar(&prettyLogs, "pretty", true, "Human-readable console logs instead of JSON")
}

// loadConfig layers explicitly set flags over the config file.
func loadConfig(cmd *cobra.Command) (*models.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Host = bindHost
	}
	if f.Changed("port") {
		cfg.Port = port
	}
	if f.Changed("read-timeout") {
		cfg.ReadTimeout = readTimeout
	}
	if f.Changed("shutdown-timeout") {
		cfg.ShutdownTimeout = shutdownTimeout
	}
	if f.Changed("tick") {
		cfg.TickInterval = tickInterval
	}
	if f.Changed("rate-limit") {
		cfg.RateLimit = rateLimit
	}
	if f.Changed("rate-burst") {
		cfg.RateBurst = rateBurst
	}
	if f.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if f.Changed("pretty") {
		cfg.PrettyLogs = prettyLogs
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.PrettyLogs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q := queue.New()
	sink := host.NewLogSink(logger)
	interpreter := protocol.NewInterpreter(sink, sink, logger)
	loop := host.NewLoop(q, interpreter, cfg.TickInterval, logger)

	srv := server.NewServer(cfg, q, logger)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info().Msg("restarting calibration")
				loop.Restart()
			}
		}
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = loop.Run(ctx)
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout+time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("error during shutdown")
	}
	<-loopDone
	return nil
}
