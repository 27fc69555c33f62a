package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cognicore/markov/pkg/markov/compiler"
	"github.com/cognicore/markov/pkg/markov/config"
	"github.com/cognicore/markov/pkg/markov/store/sqlite"
)

var (
	// Global flags
	configPath string
	sourcePath string
	modelPath  string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "markov-compile",
	Short: "Compile per-user Markov chains and lexicons from a message database",
	Long: `markov-compile reads every user's messages from the source database and
rebuilds the model database: word-pair links, per-user link frequencies and
per-user word frequencies.

Every run is a full rebuild. The source database is opened read-only.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runCompile,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "markov.yaml", "YAML config file (defaults apply if missing)")
	rootCmd.PersistentFlags().StringVar(&sourcePath, "source", "", "Source message database (overrides config)")
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "Model database (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, applies flag overrides and initializes
// the package logger from the result.
func loadConfig() (*config.Config, error) {
	bootstrap, err := newLogger(config.LogConfig{Level: config.DefaultLogLevel, Format: config.DefaultLogFormat}, verbose)
	if err != nil {
		return nil, err
	}
	cfg, err := (&config.Loader{Path: configPath, Logger: bootstrap}).Load()
	if err != nil {
		_ = bootstrap.Sync()
		return nil, err
	}
	_ = bootstrap.Sync()

	if sourcePath != "" {
		cfg.Source.Path = sourcePath
	}
	if modelPath != "" {
		cfg.Model.Path = modelPath
	}

	logger, err = newLogger(cfg.Log, verbose)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(lc config.LogConfig, debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Format == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	level, levelErr := zapcore.ParseLevel(lc.Level)
	if levelErr != nil {
		level = zapcore.InfoLevel
	}
	if debug {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if levelErr != nil {
		l.Warn("ignoring invalid log level, using info", zap.String("level", lc.Level), zap.Error(levelErr))
	}
	return l, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("opening stores",
		zap.String("source", cfg.Source.Path),
		zap.String("model", cfg.Model.Path))

	// Both stores must open before the model is touched.
	src, err := sqlite.OpenSource(ctx, cfg.Source.Path)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	model, err := sqlite.OpenModel(ctx, cfg.Model.Path)
	if err != nil {
		return fmt.Errorf("open model: %w", err)
	}
	defer model.Close()

	c, err := compiler.New(compiler.Options{
		Source: src,
		Model:  model,
		Merge:  cfg.Merge,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	res, err := c.Run(ctx)
	if err != nil {
		logger.Error("compile failed", zap.String("run_id", res.RunID), zap.Int("users_written", res.Users), zap.Error(err))
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "compiled %d users, %d links in %s\n", res.Users, res.Links, res.Duration.Round(time.Millisecond))
	return nil
}
