package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vibefoundry/vibefoundry-sandbox/internal/daemon"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/project"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/utils"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/version"
)

const (
	defaultPort = 8765

	exitOK             = 0
	exitStartupFailure = 1
	exitInvalidProject = 2
)

var rootCmd = &cobra.Command{
	Use:     "vibefoundry [project-path]",
	Short:   "Local bridge daemon for the VibeFoundry browser IDE",
	Long:    "Runs the local daemon that serves the browser IDE, watches the project folder,\nruns analysis scripts, and syncs with a remote cloud sandbox.",
	Version: version.Detailed(),
	Args:    cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		projectPath := viper.GetString("project_path")
		if len(args) == 1 {
			projectPath = args[0]
		}

		cfg := &daemon.Config{
			Port:        viper.GetInt("port"),
			ProjectPath: projectPath,
			NoBrowser:   viper.GetBool("no_browser"),
		}

		d := daemon.New(cfg, slog.Default())

		defer slog.Info("bye!")
		err := d.Start(cmd.Context())
		switch {
		case err == nil, errors.Is(err, context.Canceled):
			return nil
		case errors.Is(err, project.ErrNotDirectory):
			slog.Error("invalid project path", "path", projectPath, "error", err)
			os.Exit(exitInvalidProject)
		default:
			slog.Error("daemon failed", "error", err)
		}
		return err
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().IntP("port", "p", defaultPort, "Port for the local HTTP server")
	rootCmd.Flags().Bool("no-browser", false, "Do not open the IDE window on startup")
	rootCmd.Flags().String("log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.Flags().String("log-file", "", "Also write logs to this file")
}

func loadConfig(cmd *cobra.Command) error {
	// .env first so viper's env lookup sees it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	viper.BindPFlag("port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("no_browser", cmd.Flags().Lookup("no-browser"))
	viper.BindPFlag("log_level", cmd.Flags().Lookup("log-level"))
	viper.BindPFlag("log_file", cmd.Flags().Lookup("log-file"))

	viper.SetEnvPrefix("VIBEFOUNDRY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	return setupLogging()
}

func setupLogging() error {
	level := parseLevel(viper.GetString("log_level"))

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	handlers := []slog.Handler{stdoutHandler}
	if logFile := viper.GetString("log_file"); logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		fileHandler := slog.NewTextHandler(utils.NewLogInterceptor(file), &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				// the interceptor stamps its own time
				if a.Key == slog.TimeKey && len(groups) == 0 {
					return slog.Attr{}
				}
				return a
			},
		})
		handlers = append(handlers, fileHandler)
	}

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(handlers...)))
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(exitStartupFailure)
	}
	os.Exit(exitOK)
}
