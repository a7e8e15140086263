package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/ytlearner/internal/content"
	"github.com/pavelanni/ytlearner/internal/handler"
	appI18n "github.com/pavelanni/ytlearner/internal/i18n"
	"github.com/pavelanni/ytlearner/internal/llm"
	"github.com/pavelanni/ytlearner/internal/metrics"
	"github.com/pavelanni/ytlearner/internal/quiz"
	"github.com/pavelanni/ytlearner/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("error reading .env file", "error", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ytlearner",
		Short: "Quiz and learning report backend for video lessons",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `ytlearner --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP quiz server",
		RunE:  runServe,
	}
	def := quiz.DefaultConfig()
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	addStoreFlags(cmd)
	f.String("content-dir", "content", "Directory with <video>.json or <video>.txt lesson material")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "Chat model for question and report drafts (empty disables)")
	f.String("embedding-model", "", "Embedding model for short-answer grading (empty uses the built-in local embedder)")
	f.StringP("lang", "l", "en", "Default report language (en, ru)")
	f.Float64("full-threshold", def.Grading.FullThreshold, "Similarity for full credit on short answers")
	f.Float64("partial-threshold", def.Grading.PartialThreshold, "Similarity for partial credit on short answers")
	f.Float64("partial-credit", def.Grading.PartialCredit, "Fraction of points given for partial credit")
	f.Float64("keyword-bonus", def.Grading.KeywordBonus, "Similarity bonus when a rubric keyword is present")
	f.Float64("point-granularity", def.Grading.PointGranularity, "Rounding step for awarded points")
	f.Duration("generation-timeout", def.Generation.Timeout, "Time limit for one question drafting call")
	f.Duration("report-timeout", def.Report.Timeout, "Time limit for one report drafting call")
	f.Int("max-exercises", def.Report.MaxMicroExercises, "Maximum micro exercises per report")
	addLogFlags(cmd)
	return cmd
}

func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("store", "sqlite", "Storage backend (sqlite, redis, memory)")
	f.String("db", "ytlearner.db", "SQLite database path")
	f.String("redis-url", "redis://localhost:6379/0", "Redis URL for the redis backend")
	f.Duration("quiz-ttl", store.DefaultQuizTTL, "How long generated quizzes are kept")
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("YTLEARNER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("ytlearner")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/ytlearner")
	v.AddConfigPath("/etc/ytlearner")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func storeConfig(v *viper.Viper) store.Config {
	return store.Config{
		Backend:  v.GetString("store"),
		Path:     v.GetString("db"),
		RedisURL: v.GetString("redis-url"),
		QuizTTL:  v.GetDuration("quiz-ttl"),
	}
}

// engineConfig reads the engine tunables, starting from the defaults.
func engineConfig(v *viper.Viper) (quiz.Config, error) {
	cfg := quiz.DefaultConfig()
	cfg.Grading.FullThreshold = v.GetFloat64("full-threshold")
	cfg.Grading.PartialThreshold = v.GetFloat64("partial-threshold")
	cfg.Grading.PartialCredit = v.GetFloat64("partial-credit")
	cfg.Grading.KeywordBonus = v.GetFloat64("keyword-bonus")
	cfg.Grading.PointGranularity = v.GetFloat64("point-granularity")
	cfg.Generation.Timeout = v.GetDuration("generation-timeout")
	cfg.Report.Timeout = v.GetDuration("report-timeout")
	cfg.Report.MaxMicroExercises = v.GetInt("max-exercises")
	if err := cfg.Validate(); err != nil {
		return quiz.Config{}, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := engineConfig(v)
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	st, err := store.Open(ctx, storeConfig(v))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	purgeExpired(ctx, st)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	llmClient := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		v.GetString("embedding-model"),
	).WithMaxExercises(cfg.Report.MaxMicroExercises)

	var gen quiz.Generative
	if llmClient.Enabled() {
		gen = llmClient
		if err := llmClient.Ping(ctx); err != nil {
			slog.Warn("LLM health check failed, drafts will fall back until it recovers", "error", err)
		} else {
			slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
		}
	} else {
		slog.Warn("no LLM model configured, using deterministic quizzes and reports")
	}

	var emb quiz.Embedder = llm.LocalEmbedder{}
	if llmClient.CanEmbed() {
		emb = llmClient
	} else {
		slog.Warn("no embedding model configured, using local embedder")
	}

	svc := quiz.NewService(st,
		quiz.NewGenerator(content.DirSource{Dir: v.GetString("content-dir")}, gen, emb, cfg.Generation),
		quiz.NewGrader(emb, cfg.Grading),
		quiz.NewReporter(gen, cfg.Report),
	)

	metrics.Register(prometheus.DefaultRegisterer)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	r.Use(metrics.Middleware)
	r.Handle("/metrics", promhttp.Handler())
	handler.New(svc).Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"store", v.GetString("store"),
			"model", v.GetString("llm-model"),
			"embedding_model", v.GetString("embedding-model"),
			"lang", lang,
			"full_threshold", cfg.Grading.FullThreshold,
			"partial_threshold", cfg.Grading.PartialThreshold,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// purgeExpired drops stale quizzes from backends without native expiry.
func purgeExpired(ctx context.Context, st store.Store) {
	p, ok := st.(interface {
		PurgeExpired(context.Context) (int64, error)
	})
	if !ok {
		return
	}
	n, err := p.PurgeExpired(ctx)
	if err != nil {
		slog.Warn("purge expired quizzes", "error", err)
		return
	}
	if n > 0 {
		slog.Info("purged expired quizzes", "count", n)
	}
}
