package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"songd/internal/bootstrap"
	"songd/internal/config"
	"songd/internal/httpapi"
	"songd/internal/hw"
	"songd/internal/lm"
	"songd/internal/pipeline"
	"songd/internal/policy"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "songd:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "songd",
		Short:         "Music generation demo daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd)
		},
	}

	// Flags with environment variable defaults
	fl := root.Flags()
	fl.String("config", envOr("SONGD_CONFIG", ""), "Path to config file (.yaml|.json|.toml)")
	fl.String("bind", envOr("SONGD_BIND", ""), "Bind address (defaults SONGD_BIND or 0.0.0.0)")
	fl.Int("port", envOrInt("SONGD_PORT", 0), "HTTP port (defaults SONGD_PORT or 7860)")
	fl.String("checkpoints-dir", envOr("SONGD_CHECKPOINTS_DIR", ""), "Root directory holding model checkpoints")
	fl.String("primary-model", envOr("SONGD_PRIMARY_MODEL", ""), "Music pipeline model id")
	fl.String("lm-model", envOr("SONGD_LM_MODEL", ""), "Lyric language model id")
	fl.String("lm-backend", envOr("SONGD_LM_BACKEND", ""), "Language model backend: vllm|pt")
	fl.Int("queue-size", envOrInt("SONGD_QUEUE_SIZE", 0), "Admission queue capacity (defaults 20)")
	fl.Duration("max-wait", 0, "Max time a queued request waits for a slot (defaults 30s)")
	fl.String("log-level", envOr("SONGD_LOG_LEVEL", ""), "Log level: debug|info|warn|error")
	fl.String("cors-origins", envOr("SONGD_CORS_ORIGINS", ""), "Comma-separated allowed CORS origins (empty disables CORS)")
	return root
}

func run(cmd *cobra.Command) error {
	fl := cmd.Flags()
	getS := func(name string) string { v, _ := fl.GetString(name); return v }
	getI := func(name string) int { v, _ := fl.GetInt(name); return v }

	var cfg config.Config
	if path := getS("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	}

	// Flags (and their env defaults) override the config file per field.
	if v := getS("bind"); v != "" {
		cfg.BindAddr = v
	}
	if v := getI("port"); v != 0 {
		cfg.Port = v
	}
	if v := getI("queue-size"); v != 0 {
		cfg.QueueSize = v
	}
	if v := getS("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v := getS("primary-model"); v != "" {
		cfg.Models.PrimaryModel = v
	}
	if v := getS("lm-model"); v != "" {
		cfg.Models.SecondaryModel = v
	}
	if v := getS("lm-backend"); v != "" {
		cfg.Models.Backend = v
	}
	if v := getS("checkpoints-dir"); v != "" {
		cfg.Models.CheckpointsDir = v
	}
	if cfg.BindAddr == "" {
		cfg.BindAddr = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 7860
	}

	log := newLogger(cfg.LogLevel)

	profile := hw.Probe(log)
	svc := policy.Derive(profile, cfg.Models)
	log.Info().
		Str("primary_model", svc.PrimaryModel).
		Str("lm_model", svc.SecondaryModel).
		Str("backend", svc.Backend).
		Bool("offload_primary", svc.OffloadPrimary).
		Str("checkpoints_dir", svc.CheckpointsDir).
		Msg("derived service configuration")

	primary := pipeline.New(svc.CheckpointsDir, log)
	secondary := lm.New(log)

	coord := bootstrap.NewCoordinator(primary, secondary, log)
	outcomes := coord.Run(cmd.Context(), svc)
	rec := bootstrap.Aggregate(profile, svc, outcomes)
	for _, line := range strings.Split(rec.Transcript, "\n") {
		log.Info().Msg(line)
	}
	log.Info().Bool("generation_enabled", rec.GenerationEnabled).Msg("bootstrap complete")

	maxWait, _ := fl.GetDuration("max-wait")
	api := httpapi.New(&rec, primary, secondary, httpapi.Options{
		QueueCapacity: cfg.QueueSize,
		MaxWait:       maxWait,
		CORSOrigins:   splitCSV(getS("cors-origins")),
		Logger:        log,
	})
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	api.SetBaseContext(baseCtx)

	addr := net.JoinHostPort(cfg.BindAddr, strconv.Itoa(cfg.Port))
	srv := &http.Server{Addr: addr, Handler: api.Handler()}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("songd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	log.Info().Msg("shutting down")
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	_ = primary.Close()
	_ = secondary.Close()
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// splitCSV splits a comma-separated list, trimming spaces and dropping
// empty items.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
