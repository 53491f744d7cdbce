package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ideclab/asistente-mga/internal/api"
	"github.com/ideclab/asistente-mga/internal/docgen"
	"github.com/ideclab/asistente-mga/internal/flow"
	"github.com/ideclab/asistente-mga/internal/genai"
	"github.com/ideclab/asistente-mga/internal/lockfile"
	"github.com/ideclab/asistente-mga/internal/store"
	"github.com/ideclab/asistente-mga/internal/util"
)

// Default configuration constants
const (
	// DefaultDataDir is the default directory for uploaded templates,
	// parsed trees and generated documents.
	DefaultDataDir = "data"
	// DefaultAPIAddr is the default listen address of the HTTP API.
	DefaultAPIAddr = ":8080"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	lock, err := lockfile.AcquireLock(*flags.dataDir)
	if err != nil {
		slog.Error("Failed to lock data directory", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := store.NewStore(*flags.dbDSN)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	engine, err := flow.NewEngine(flow.DefaultSteps(), slog.Default())
	if err != nil {
		slog.Error("Failed to build flow engine", "error", err)
		os.Exit(1)
	}

	genaiOpts := buildGenAIOptions(flags)
	llm := genai.NewClient(genaiOpts...)

	dataDir := *flags.dataDir
	gen := docgen.NewGenerator(llm,
		filepath.Join(dataDir, "documents"),
		filepath.Join(dataDir, "formularios_json"),
	)

	server, err := api.NewServer(engine, st, llm, gen, slog.Default(),
		api.WithAddr(*flags.apiAddr),
		api.WithDataDir(dataDir),
	)
	if err != nil {
		slog.Error("Failed to initialize API server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping Asistente MGA", "addr", *flags.apiAddr, "data_dir", dataDir, "store", store.DetectDSNType(*flags.dbDSN))
	if err := server.Run(ctx); err != nil {
		slog.Error("Asistente MGA failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Asistente MGA exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	DataDir     string
	OpenAIKey   string
	OpenAIBase  string
	OpenAIModel string
	APIAddr     string
}

// Flags holds command line flag values
type Flags struct {
	dbDSN       *string
	dataDir     *string
	openaiKey   *string
	openaiBase  *string
	openaiModel *string
	apiAddr     *string
}

// initializeLogger sets up structured logging. MGA_DEBUG=true enables debug
// level output.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("MGA_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DataDir:     os.Getenv("MGA_DATA_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBase:  os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel: os.Getenv("OPENAI_MODEL"),
		APIAddr:     os.Getenv("API_ADDR"),
	}

	if config.DataDir == "" {
		config.DataDir = DefaultDataDir
		slog.Debug("No MGA_DATA_DIR set, using default", "default_data_dir", config.DataDir)
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}
	return config
}

// parseCommandLineFlags parses command line flags with environment fallbacks
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN (empty for in-memory, file path for SQLite, URL for Postgres)"),
		dataDir:     flag.String("data-dir", config.DataDir, "base directory for uploads, trees and documents"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key"),
		openaiBase:  flag.String("openai-base-url", config.OpenAIBase, "OpenAI-compatible API base URL"),
		openaiModel: flag.String("openai-model", config.OpenAIModel, "chat completion model"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server listen address"),
	}
	flag.Parse()
	return flags
}

// buildGenAIOptions builds GenAI client options from flags
func buildGenAIOptions(flags Flags) []genai.Option {
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiBase != "" {
		opts = append(opts, genai.WithBaseURL(*flags.openaiKey, *flags.openaiBase))
	}
	if *flags.openaiModel != "" {
		opts = append(opts, genai.WithModel(*flags.openaiModel))
	}
	return opts
}
