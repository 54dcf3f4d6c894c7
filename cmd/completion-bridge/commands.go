package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/woxQAQ/completion-bridge/internal/bridge"
	"github.com/woxQAQ/completion-bridge/internal/config"
)

const shutdownTimeout = 10 * time.Second

// globalFlags maps command line flags onto configuration keys.
var globalFlags = map[string]string{
	"log-level": "log_level",
	"port":      "port",
	"providers": "provider_paths",
	"tracing":   "tracing",
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configPath string

	root := &cobra.Command{
		Use:   "completion-bridge",
		Short: "Serve WebAssembly completion providers to a host editor",
		Long: `completion-bridge loads completion providers compiled to WebAssembly
and answers the host editor's completion requests over JSON-RPC,
on stdio by default or on a local TCP port.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v, configPath)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to configuration file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Int("port", 0, "TCP port to listen on (0 for stdio)")
	flags.StringSlice("providers", nil, "Directories to load providers from")
	flags.String("tracing", "none", "Trace exporter (none, stdout)")
	if err := bindFlags(v, flags); err != nil {
		panic(err)
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve completions to the host editor",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), v, configPath)
			},
		},
		&cobra.Command{
			Use:   "providers",
			Short: "Load the configured providers and list them",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runProviders(cmd, v, configPath)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "completion-bridge %s (commit %s, built %s)\n", version, commit, date)
			},
		},
	)

	return root
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for flag, key := range globalFlags {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

func runServe(ctx context.Context, v *viper.Viper, configPath string) error {
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting completion-bridge",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := bridge.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to create bridge", zap.Error(err))
		return err
	}

	serveErr := b.Serve(ctx)
	if serveErr != nil {
		logger.Error("Server error", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := b.Close(shutdownCtx); err != nil && serveErr == nil {
		return err
	}
	return serveErr
}

func runProviders(cmd *cobra.Command, v *viper.Viper, configPath string) error {
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	b, err := bridge.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close(ctx)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tLANGUAGES\tRESOLVE")
	for _, p := range b.Providers() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", p.Name(), p.Version(), strings.Join(p.Languages(), ","), p.CanResolve())
	}
	return w.Flush()
}

// newLogger builds a zap logger writing to stderr, stdout may carry the
// host protocol.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zc := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build()
}
