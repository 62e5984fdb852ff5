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
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/poiesic/vecload"
	"github.com/poiesic/vecload/ai"
	"github.com/poiesic/vecload/core"
	"github.com/poiesic/vecload/embedjob"
	"github.com/poiesic/vecload/index/qdrant"
	"github.com/poiesic/vecload/loader"
	"github.com/poiesic/vecload/ratelimit"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "vecload",
		Usage: "Compute embedding jobs and bulk-load their vectors into a search index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Root directory holding embeddings/<job> vector files",
				Value: vecload.DefaultDataDir,
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the BadgerDB job store directory",
				Value:   "./data/jobs",
			},
			&cli.StringFlag{
				Name:  "metadata",
				Usage: "Path to the row metadata: a .parquet file or a SQLite database",
			},
			&cli.StringFlag{
				Name:  "metadata-table",
				Usage: "Metadata table name (SQLite only)",
				Value: "metadata",
			},
			&cli.StringFlag{
				Name:  "index",
				Usage: "Search index backend (badger, qdrant)",
				Value: "badger",
			},
			&cli.StringFlag{
				Name:  "index-path",
				Usage: "BadgerDB directory for the badger index (defaults to the job store)",
			},
			&cli.StringFlag{
				Name:    "qdrant-url",
				Usage:   "Qdrant gRPC endpoint (https enables TLS)",
				Value:   qdrant.DefaultURL,
				EnvVars: []string{"QDRANT_URL"},
			},
			&cli.StringFlag{
				Name:    "qdrant-api-key",
				Usage:   "Qdrant API key",
				EnvVars: []string{"QDRANT_API_KEY"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "create-collection",
				Usage:  "Create a collection with indexing disabled",
				Action: createCollectionCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "collection",
						Aliases:  []string{"c"},
						Usage:    "Collection name",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "dim",
						Usage:    "Vector dimension",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "recreate",
						Usage: "Delete the collection first if it exists",
					},
				},
			},
			{
				Name:   "load",
				Usage:  "Upload the vectors of a completed job into a collection",
				Action: loadCommand,
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:     "job",
						Aliases:  []string{"j"},
						Usage:    "Embedding job id",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "collection",
						Aliases:  []string{"c"},
						Usage:    "Collection name",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Rows per chunk",
						Value: loader.DefaultChunkSize,
					},
					&cli.IntFlag{
						Name:  "upload-batch-size",
						Usage: "Points per index request",
						Value: loader.DefaultUploadBatchSize,
					},
					&cli.IntFlag{
						Name:  "parallelism",
						Usage: "Index requests in flight (0 uses the CPU count)",
					},
					&cli.BoolFlag{
						Name:  "recreate",
						Usage: "Recreate the collection with its current dimension before loading",
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Continue after the last checkpointed chunk",
					},
				},
			},
			{
				Name:   "embed",
				Usage:  "Compute the embeddings of the metadata table into a new job",
				Action: embedCommand,
				Flags: append([]cli.Flag{
					&cli.Uint64Flag{
						Name:  "job",
						Usage: "Re-run an existing PENDING or FAILED job instead of creating one",
					},
					&cli.StringSliceFlag{
						Name:  "columns",
						Usage: "Text columns joined into the embedded text",
						Value: cli.NewStringSlice("title", "abstract"),
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of rows per embedding request",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-concurrent",
						Usage: "Embedding requests in flight",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed requests",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.Int64Flag{
						Name:  "requests-per-minute",
						Usage: "Embedding request budget per minute (0 disables)",
					},
					&cli.Int64Flag{
						Name:  "tokens-per-minute",
						Usage: "Estimated token budget per minute (0 disables)",
					},
					&cli.StringFlag{
						Name:    "redis-addr",
						Usage:   "Share rate limit windows through this Redis server",
						EnvVars: []string{"REDIS_ADDR"},
					},
				}, embeddingFlags()...),
			},
			{
				Name:   "job-status",
				Usage:  "Show embedding jobs",
				Action: jobStatusCommand,
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:    "job",
						Aliases: []string{"j"},
						Usage:   "Show only this job",
					},
					&cli.StringFlag{
						Name:    "status",
						Aliases: []string{"s"},
						Usage:   "Show only jobs in this state (pending, running, completed, failed)",
					},
				},
			},
			{
				Name:   "search",
				Usage:  "Embed a query and print the closest points of a collection",
				Action: searchCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "collection",
						Aliases:  []string{"c"},
						Usage:    "Collection name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Query text",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of results",
						Value: 10,
					},
				}, embeddingFlags()...),
			},
		},
	}
}

func embeddingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: ai.DefaultHost,
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: ai.DefaultEmbeddingModel,
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Embedding service API key",
			EnvVars: []string{"OPENAI_API_KEY"},
		},
	}
}

// openPipeline opens the job store and index described by the global flags.
func openPipeline(c *cli.Context, opts ...vecload.PipelineOption) (*vecload.Pipeline, error) {
	options := []vecload.PipelineOption{
		vecload.WithDataDir(c.String("data-dir")),
		vecload.WithMetadata(c.String("metadata"), c.String("metadata-table")),
	}

	switch strings.ToLower(c.String("index")) {
	case "badger":
		if path := c.String("index-path"); path != "" {
			options = append(options, vecload.WithBadgerIndex(path))
		}
	case "qdrant":
		config := qdrant.DefaultConfig()
		config.URL = c.String("qdrant-url")
		config.APIKey = c.String("qdrant-api-key")
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid qdrant configuration: %w", err)
		}
		options = append(options, vecload.WithQdrant(config))
	default:
		return nil, fmt.Errorf("invalid index %q: must be one of badger, qdrant", c.String("index"))
	}

	dbPath := c.String("db")
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	p, err := vecload.Open(dbPath, append(options, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open pipeline: %w", err)
	}
	return p, nil
}

func aiConfig(c *cli.Context) (*ai.Config, error) {
	config := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithAPIKey(c.String("api-key")),
	)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return config, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func createCollectionCommand(c *cli.Context) error {
	ctx, stop := signalContext(c)
	defer stop()

	if c.Int("dim") <= 0 {
		return fmt.Errorf("dim must be greater than 0")
	}

	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	l, err := p.NewLoader()
	if err != nil {
		return fmt.Errorf("failed to create loader: %w", err)
	}
	defer l.Close()

	name := c.String("collection")
	if err := l.CreateCollection(ctx, name, c.Int("dim"), c.Bool("recreate")); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Created collection %s (dim %d)\n", name, c.Int("dim"))
	return nil
}

func loadCommand(c *cli.Context) error {
	ctx, stop := signalContext(c)
	defer stop()

	config := loader.DefaultConfig()
	config.ChunkSize = c.Int("chunk-size")
	config.UploadBatchSize = c.Int("upload-batch-size")
	if n := c.Int("parallelism"); n > 0 {
		config.Parallelism = n
	}
	if err := config.Validate(); err != nil {
		return err
	}

	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	l, err := p.NewLoader(loader.WithConfig(config), loader.WithProgress(os.Stderr))
	if err != nil {
		return fmt.Errorf("failed to create loader: %w", err)
	}
	defer l.Close()

	jobID := core.JobID(c.Uint64("job"))
	collection := c.String("collection")
	fmt.Fprintf(os.Stderr, "Job: %d\n", jobID)
	fmt.Fprintf(os.Stderr, "Collection: %s\n", collection)
	fmt.Fprintln(os.Stderr)

	result, err := l.LoadVectors(ctx, jobID, collection, loader.LoadOptions{
		Recreate: c.Bool("recreate"),
		Resume:   c.Bool("resume"),
	})
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	if result.Skipped {
		fmt.Fprintf(c.App.Writer, "Job %d skipped: %v (status %s)\n", jobID, result.Reason, result.Status)
		return nil
	}

	fmt.Fprintf(c.App.Writer, "Loaded %d vectors into %s in %d chunks (%v)\n",
		result.Uploaded, collection, result.Chunks, result.Elapsed.Round(time.Millisecond))
	return nil
}

func embedCommand(c *cli.Context) error {
	ctx, stop := signalContext(c)
	defer stop()

	aiCfg, err := aiConfig(c)
	if err != nil {
		return err
	}
	runConfig := &embedjob.Config{
		BatchSize:      c.Int("batch-size"),
		MaxConcurrent:  c.Int("max-concurrent"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		ReportInterval: c.Int("batch-size"),
	}
	if err := runConfig.Validate(); err != nil {
		return err
	}

	p, err := openPipeline(c, vecload.WithAIConfig(aiCfg))
	if err != nil {
		return err
	}
	defer p.Close()

	opts := []embedjob.Option{embedjob.WithConfig(runConfig), embedjob.WithProgress(os.Stderr)}
	limiters, closeLimiters, err := rateLimiters(c)
	if err != nil {
		return err
	}
	defer closeLimiters()
	opts = append(opts, limiters...)

	runner, err := p.NewRunner(opts...)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	jobID := core.JobID(c.Uint64("job"))
	if jobID == 0 {
		job, err := runner.CreateJob(ctx, aiCfg.EmbeddingModel, c.String("metadata"), c.StringSlice("columns"))
		if err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}
		jobID = job.Id
	}

	metadata, err := p.OpenMetadata("")
	if err != nil {
		return fmt.Errorf("failed to open metadata: %w", err)
	}
	defer metadata.Close()

	fmt.Fprintf(os.Stderr, "Job: %d\n", jobID)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", aiCfg.EmbeddingHost)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", aiCfg.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	result, err := runner.Run(ctx, jobID, metadata)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Job %d completed: %d vectors of dimension %d written to %s (%v)\n",
		jobID, result.Rows, result.Dimension, result.Path, result.Elapsed.Round(time.Millisecond))
	return nil
}

// rateLimiters builds the request and token limiters from the embed flags.
// With --redis-addr the windows are shared by every process using that server;
// the returned func closes those connections.
func rateLimiters(c *cli.Context) ([]embedjob.Option, func(), error) {
	var stores []*ratelimit.RedisStore
	closeStores := func() {
		for _, store := range stores {
			if err := store.Close(); err != nil {
				slog.Warn("failed to close rate limit store", "key", store.Key(), "err", err)
			}
		}
	}

	newLimiter := func(name string, rate int64) (*ratelimit.Limiter, error) {
		opts := []ratelimit.Option{ratelimit.WithLogger(slog.Default())}
		if addr := c.String("redis-addr"); addr != "" {
			store := limiterStore(addr, name)
			stores = append(stores, store)
			opts = append(opts, ratelimit.WithStore(store))
		}
		return ratelimit.New(rate, time.Minute, opts...)
	}

	var opts []embedjob.Option
	if rate := c.Int64("requests-per-minute"); rate > 0 {
		limiter, err := newLimiter("requests", rate)
		if err != nil {
			closeStores()
			return nil, nil, err
		}
		opts = append(opts, embedjob.WithRequestLimiter(limiter))
	}
	if rate := c.Int64("tokens-per-minute"); rate > 0 {
		limiter, err := newLimiter("tokens", rate)
		if err != nil {
			closeStores()
			return nil, nil, err
		}
		opts = append(opts, embedjob.WithTokenLimiter(limiter))
	}
	return opts, closeStores, nil
}

// limiterStore returns the shared window store of one limiter.
// The store namespaces the key, so name is the bare limiter name.
func limiterStore(addr, name string) *ratelimit.RedisStore {
	return ratelimit.NewRedisStore(ratelimit.RedisConfig{
		Addr: addr,
		Name: name,
	})
}

func jobStatusCommand(c *cli.Context) error {
	ctx := c.Context

	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	var want core.JobStatus
	if name := c.String("status"); name != "" {
		want, err = core.ParseJobStatus(name)
		if err != nil {
			return err
		}
	}

	var jobs []*core.EmbeddingJob
	if id := c.Uint64("job"); id != 0 {
		job, err := p.JobRepository().GetJob(ctx, core.JobID(id))
		if err != nil {
			return fmt.Errorf("failed to get job %d: %w", id, err)
		}
		jobs = append(jobs, job)
	} else {
		jobs, err = p.JobRepository().ListJobs(ctx)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tMODEL\tROWS\tDIM\tUPDATED\tERROR")
	for _, job := range jobs {
		if want != 0 && job.Status != want {
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
			job.Id, job.Status, job.Model, job.Rows, job.Dimension,
			job.UpdatedAt.Format(time.RFC3339), job.Error)
	}
	return w.Flush()
}

func searchCommand(c *cli.Context) error {
	ctx, stop := signalContext(c)
	defer stop()

	aiCfg, err := aiConfig(c)
	if err != nil {
		return err
	}

	p, err := openPipeline(c, vecload.WithAIConfig(aiCfg))
	if err != nil {
		return err
	}
	defer p.Close()

	vector, err := p.EmbedQuery(ctx, c.String("query"))
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}
	hits, err := p.Search(ctx, c.String("collection"), vector, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	for i, hit := range hits {
		fmt.Fprintf(c.App.Writer, "%d. [%.4f] #%d %v\n", i+1, hit.Score, hit.ID, hit.Payload)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
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
