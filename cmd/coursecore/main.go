package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/coursecore/internal/assistant"
	"github.com/pavelanni/coursecore/internal/catalog"
	"github.com/pavelanni/coursecore/internal/handler"
	appI18n "github.com/pavelanni/coursecore/internal/i18n"
	"github.com/pavelanni/coursecore/internal/llm"
	"github.com/pavelanni/coursecore/internal/llm/prompts"
	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/service"
	"github.com/pavelanni/coursecore/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coursecore",
		Short: "Course and exam platform core",
	}

	serve := serveCmd()
	root.AddCommand(serve, migrateCmd(), importCmd(), userCmd(), reorderCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addStoreFlags registers the flags every command needs to open the database.
func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db-driver", "sqlite", "Database driver (sqlite, postgres)")
	f.String("db", "coursecore.db", "SQLite path or Postgres connection string")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default response language (en, ru)")
	f.String("summarizer", "none", "Chapter summary backend (none, assistant, llm)")
	f.String("assistant-url", "http://localhost:9000", "Assistant service base URL")
	f.String("api-url", "http://localhost:8080", "Public URL of this API, used to build video links")
	f.Duration("assistant-timeout", service.DefaultSummarizeTimeout, "Timeout for one summarization")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("summary-style", string(prompts.StyleStandard), "Summary prompt style (brief, standard, detailed)")
	f.String("admin-password", "", "Initial admin password (or set COURSECORE_ADMIN_PASSWORD)")
	f.StringSlice("catalog", nil, "Catalog files to import at startup (repeatable)")
	return cmd
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

	v.SetEnvPrefix("COURSECORE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("coursecore")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/coursecore")
	v.AddConfigPath("/etc/coursecore")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(v *viper.Viper) (*store.Store, error) {
	dialect, err := store.ParseDialect(v.GetString("db-driver"))
	if err != nil {
		return nil, err
	}
	st, err := store.New(dialect, v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

// newSummarizer builds the configured chapter summary backend. It returns
// nil when summarization is disabled.
func newSummarizer(v *viper.Viper) (service.Summarizer, error) {
	switch strings.ToLower(v.GetString("summarizer")) {
	case "", "none":
		return nil, nil
	case "assistant":
		httpClient := &http.Client{Timeout: v.GetDuration("assistant-timeout")}
		return assistant.New(v.GetString("assistant-url"), v.GetString("api-url"), httpClient), nil
	case "llm":
		style := strings.ToLower(strings.TrimSpace(v.GetString("summary-style")))
		if !prompts.IsValidStyle(style) {
			slog.Warn("invalid summary-style, using standard", "style", style)
			style = string(prompts.StyleStandard)
		}
		return llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"), prompts.Style(style))
	default:
		return nil, fmt.Errorf("unknown summarizer %q", v.GetString("summarizer"))
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	st, err := openStore(v)
	if err != nil {
		return err
	}
	defer st.Close()

	var opts []service.Option
	summarizer, err := newSummarizer(v)
	if err != nil {
		return fmt.Errorf("create summarizer: %w", err)
	}
	if summarizer != nil {
		opts = append(opts, service.WithSummarizer(summarizer, v.GetDuration("assistant-timeout")))
	}
	svc := service.New(st, opts...)

	if err := seedAdmin(cmd, st, svc, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	importer := catalog.NewImporter(svc, st)
	if err := importFiles(cmd, importer, v.GetStringSlice("catalog")); err != nil {
		return err
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())
	handler.New(svc, importer).Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db_driver", st.Dialect(),
		"lang", lang,
		"summarizer", v.GetString("summarizer"),
	)
	return http.ListenAndServe(addr, r)
}

func seedAdmin(cmd *cobra.Command, st *store.Store, svc *service.Service, password string) error {
	count, err := st.UserCount(cmd.Context())
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or COURSECORE_ADMIN_PASSWORD env var")
	}

	_, err = svc.CreateUser(cmd.Context(), service.SystemActor, service.UserInput{
		Username: "admin",
		Fullname: "Administrator",
		Password: password,
		Role:     model.UserRoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
