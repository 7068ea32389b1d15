// Package main is the medrag CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/medrag/internal/cli"
	"github.com/hyperjump/medrag/internal/config"
	"github.com/hyperjump/medrag/internal/models"
	"github.com/hyperjump/medrag/internal/server"
	"github.com/hyperjump/medrag/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/medrag/config.yaml"

// loadConfig loads config from path. When path is the default and ./config.yaml
// exists, that file wins so the service runs from a checkout without flags.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "serve", "server":
		runServe()
	case "retrieve":
		runRetrieve()
	case "reindex":
		runReindex()
	case "stats":
		runStats()
	case "version", "--version", "-v":
		fmt.Printf("medrag %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds the logger; failures exit the process.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var srv *server.Server
	if cfg.Retrieval.EnabledOrDefault() {
		components, err := initializeComponents(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize components", zap.Error(err))
		}
		defer components.Close()
		if err := components.Open(ctx); err != nil {
			logger.Fatal("Failed to open knowledge collection", zap.Error(err))
		}
		if cfg.Knowledge.Watch {
			w, err := components.Watch(ctx)
			if err != nil {
				logger.Fatal("Failed to start watcher", zap.Error(err))
			}
			defer w.Stop()
		}
		srv = server.NewServer(components.Retriever, components.Manager, cfg.Retrieval.CollectionName, &cfg.Server, logger)
	} else {
		logger.Info("retrieval disabled; serving empty context")
		srv = server.NewServer(nil, nil, cfg.Retrieval.CollectionName, &cfg.Server, logger)
	}

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags that appear after the query to the front so that
// flag.Parse sees them; the flag package stops at the first positional argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runRetrieve() {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = load the collection directly)")
	limit := fs.Int("n", 0, "number of nearest passages to consider (0 = config top_k)")
	minScore := fs.Float64("min-score", -1, "minimum relevance score (negative = config min_relevance)")
	maxChunks := fs.Int("max-chunks", 0, "passages in the formatted context (0 = config max_chunks)")
	outputFormat := fs.String("output", "text", "output format: text, json, or context")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: medrag retrieve [flags] <query>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		fs.Usage()
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	out := &cli.Retrieval{Query: query, Results: []models.RetrievalResult{}}
	if *serverURL != "" {
		req := map[string]any{"query": query, "n_results": *limit, "max_chunks": *maxChunks}
		if *minScore >= 0 {
			req["min_relevance_score"] = *minScore
		}
		if err := postJSON(*serverURL+"/api/v1/retrieve", req, out); err != nil {
			fmt.Fprintf(os.Stderr, "Retrieve failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, logger := setup(*configPath, false)
		defer logger.Sync()
		if !cfg.Retrieval.EnabledOrDefault() {
			fmt.Fprintln(os.Stderr, "retrieval is disabled (RAG_ENABLED=false)")
			os.Exit(1)
		}
		ctx := context.Background()
		components, err := initializeComponents(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		if err := components.Open(ctx); err != nil {
			logger.Fatal("Failed to open knowledge collection", zap.Error(err))
		}
		out.Results = components.Retriever.RetrieveRelevantContext(ctx, query, *limit, *minScore)
		out.Context = components.Retriever.FormatContextForLLM(out.Results, *maxChunks)
	}

	if err := cli.WriteRetrieval(os.Stdout, out, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runReindex() {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = rebuild the database directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var stats models.CollectionStats
	if *serverURL != "" {
		if err := postJSON(*serverURL+"/api/v1/collection/reset", nil, &stats); err != nil {
			fmt.Fprintf(os.Stderr, "Reindex failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, logger := setup(*configPath, false)
		defer logger.Sync()
		ctx := context.Background()
		components, err := initializeComponents(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		start := time.Now()
		if _, err := components.Manager.Reset(ctx, cfg.Retrieval.CollectionName); err != nil {
			fmt.Fprintf(os.Stderr, "Reindex failed: %v\n", err)
			os.Exit(1)
		}
		if stats, err = components.Manager.Stats(ctx, cfg.Retrieval.CollectionName); err != nil {
			fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
			os.Exit(1)
		}
		logger.Info("reindex complete", zap.Duration("elapsed", time.Since(start)))
	}
	if err := cli.WriteStats(os.Stdout, stats, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the database directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var stats models.CollectionStats
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/v1/collection", &stats); err != nil {
			fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, logger := setup(*configPath, false)
		defer logger.Sync()
		ctx := context.Background()
		components, err := initializeComponents(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		if stats, err = components.Manager.Stats(ctx, cfg.Retrieval.CollectionName); err != nil {
			fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteStats(os.Stdout, stats, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func postJSON(url string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(url string, out any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Println(`medrag - medical knowledge retrieval for symptom analysis

Usage:
  medrag serve [flags]              Start the HTTP server
  medrag retrieve [flags] <query>   Retrieve relevant passages and the prompt context
  medrag reindex [flags]            Rebuild the knowledge collection from source documents
  medrag stats [flags]              Show collection statistics
  medrag version                    Show version
  medrag help                       Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/medrag/config.yaml, or ./config.yaml when present)
  --server string    Server URL; when set, retrieve/reindex/stats call the running server
  --output string    Output format: text or json (retrieve also accepts context)

Serve Flags:
  --debug            Enable debug logging

Retrieve Flags:
  --n int            Nearest passages to consider (default: config top_k)
  --min-score float  Minimum relevance score (default: config min_relevance)
  --max-chunks int   Passages in the formatted context (default: config max_chunks)

Environment:
  RAG_ENABLED, RAG_EMBEDDING_MODEL, RAG_TOP_K_RESULTS, RAG_MIN_RELEVANCE_SCORE,
  RAG_MAX_CHUNKS_IN_CONTEXT, RAG_KNOWLEDGE_BASE_PATH, REDIS_URL, CACHE_TTL, OPENAI_API_KEY
  (a .env file next to the config or in the working directory is loaded first)

Examples:
  medrag serve
  medrag retrieve "persistent headache and nausea"
  medrag retrieve --output context --max-chunks 2 "chest pain"
  medrag reindex
  medrag stats --output json`)
}
