// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/lexindex"
	"github.com/poiesic/lexindex/ai"
	"github.com/poiesic/lexindex/ai/openai"
	"github.com/poiesic/lexindex/cache"
	"github.com/poiesic/lexindex/config"
	"github.com/poiesic/lexindex/core"
	"github.com/poiesic/lexindex/filter"
	"github.com/poiesic/lexindex/reindex"
	"github.com/poiesic/lexindex/search"
	"github.com/poiesic/lexindex/store"
)

func main() {
	app := &cli.App{
		Name:  "lexindex",
		Usage: "Retrieval index for legal document corpora",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   "lexindex.yaml",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Build a fresh index from a JSON-lines document file",
				Action: buildCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "input",
						Aliases: []string{"i"},
						Usage:   "Path to JSON-lines document file (- for stdin)",
						Value:   "-",
					},
				},
			},
			{
				Name:   "add",
				Usage:  "Add documents from a JSON-lines file to the existing index",
				Action: addCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "input",
						Aliases: []string{"i"},
						Usage:   "Path to JSON-lines document file (- for stdin)",
						Value:   "-",
					},
				},
			},
			{
				Name:   "query",
				Usage:  "Query the index",
				Action: queryCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Query text",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "k",
						Aliases: []string{"n"},
						Usage:   "Number of results (0 uses the configured default)",
					},
					&cli.StringFlag{
						Name:    "strategy",
						Aliases: []string{"s"},
						Usage:   "Search strategy (semantic, lexical, hybrid, mmr)",
						Value:   "hybrid",
					},
					&cli.StringSliceFlag{
						Name:    "filter",
						Aliases: []string{"f"},
						Usage:   "Metadata filter as key=value (repeatable; same key ORs values)",
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show index composition",
				Action: statsCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed the persisted snapshot with a new embedding model",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL (defaults to the configured host)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to embed in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed embedding calls",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup(c *cli.Context) error {
	// Optional .env for local development; absence is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func openEngine(c *cli.Context) (*lexindex.Engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(cfg.Embedding.Host),
		ai.WithEmbeddingModel(cfg.Embedding.Model),
		ai.WithAPIToken(cfg.APIToken()),
	)

	opts := []lexindex.EngineOption{
		lexindex.WithAIConfig(aiConfig),
		lexindex.WithSearchOptions(
			search.WithK(cfg.Retrieval.K),
			search.WithScoreThreshold(cfg.Retrieval.ScoreThreshold),
			search.WithAlpha(cfg.Retrieval.Alpha),
			search.WithLambda(cfg.Retrieval.Lambda),
			search.WithAutoDetect(cfg.Retrieval.AutoDetect),
		),
	}
	if cfg.Ingestion.PoolSize > 0 {
		opts = append(opts, lexindex.WithPoolSize(cfg.Ingestion.PoolSize))
	}
	if cfg.Cache.TTL > 0 {
		opts = append(opts, lexindex.WithCacheTTL(cfg.Cache.TTL))
	}

	return lexindex.New(cfg.DataDir, opts...)
}

// readDocuments parses one JSON document per line:
//
//	{"content": "...", "metadata": {"source": "...", "category": "..."}}
func readDocuments(path string) ([]core.Document, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var docs []core.Document
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var doc struct {
			Content  string        `json:"content"`
			Metadata core.Metadata `json:"metadata"`
		}
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		docs = append(docs, core.Document{
			Content:  doc.Content,
			Metadata: doc.Metadata,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func parseFilters(pairs []string) (filter.Predicate, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	pred := filter.Predicate{}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid filter %q: expected key=value", pair)
		}
		pred = pred.With(key, value)
	}
	return pred, nil
}

func buildCommand(c *cli.Context) error {
	docs, err := readDocuments(c.String("input"))
	if err != nil {
		return fmt.Errorf("failed to read documents: %w", err)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	stats, err := engine.BuildIndex(context.Background(), docs)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	return printJSON(stats)
}

func addCommand(c *cli.Context) error {
	docs, err := readDocuments(c.String("input"))
	if err != nil {
		return fmt.Errorf("failed to read documents: %w", err)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	added, err := engine.AddDocuments(context.Background(), docs)
	if err != nil {
		return fmt.Errorf("add failed: %w", err)
	}

	fmt.Printf("added %d of %d documents\n", added, len(docs))
	return nil
}

func queryCommand(c *cli.Context) error {
	strategy, err := search.ParseStrategy(c.String("strategy"))
	if err != nil {
		return err
	}

	pred, err := parseFilters(c.StringSlice("filter"))
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	results, err := engine.Query(context.Background(), c.String("query"), c.Int("k"), strategy, pred)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	return printJSON(results)
}

func statsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	stats, err := engine.Stats()
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	return printJSON(stats)
}

func reindexCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	host := c.String("embedding-host")
	if host == "" {
		host = cfg.Embedding.Host
	}
	model := c.String("embedding-model")

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(host),
		ai.WithEmbeddingModel(model),
		ai.WithAPIToken(cfg.APIToken()),
	)
	provider, err := openai.NewProvider(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}
	defer provider.Close()

	embCache, err := cache.Open(filepath.Join(cfg.DataDir, "cache"))
	if err != nil {
		return fmt.Errorf("failed to open embedding cache: %w", err)
	}
	defer embCache.Close()

	embedder, err := cache.NewEmbedder(provider.Embedder(), embCache, model)
	if err != nil {
		return err
	}

	snapshots, err := store.New(filepath.Join(cfg.DataDir, "index"))
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}

	reindexConfig := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reindexConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reindexConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reindexConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reindexer := reindex.NewReindexer(snapshots, embedder, model, reindexConfig, os.Stderr)

	fmt.Fprintf(os.Stderr, "Data directory: %s\n", cfg.DataDir)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", host)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", model)
	fmt.Fprintln(os.Stderr)

	if err := reindexer.Run(context.Background()); err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
