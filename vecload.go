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

package vecload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/vecload/ai"
	"github.com/poiesic/vecload/ai/openai"
	"github.com/poiesic/vecload/embedjob"
	"github.com/poiesic/vecload/index"
	indexbadger "github.com/poiesic/vecload/index/badger"
	"github.com/poiesic/vecload/index/qdrant"
	"github.com/poiesic/vecload/loader"
	"github.com/poiesic/vecload/source"
	"github.com/poiesic/vecload/source/local"
	"github.com/poiesic/vecload/storage"
	"github.com/poiesic/vecload/storage/badger"
)

// DefaultDataDir is the root of the job directories.
const DefaultDataDir = "./data"

// ErrSearchUnsupported is returned by Search when the index cannot query.
var ErrSearchUnsupported = errors.New("index does not support search")

// Pipeline wires the job store, the search index and the local sources
// together and hands out loaders and embedding runners over them.
type Pipeline struct {
	backend        *badger.Backend
	jobRepo        *badger.JobRepository
	checkpointRepo *badger.CheckpointRepository
	index          index.Client
	layout         source.Layout
	metadataPath   string
	metadataTable  string
	aiConfig       *ai.Config
	embedder       ai.Embedder
	logger         *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineOptions)

type pipelineOptions struct {
	dataDir       string
	metadataPath  string
	metadataTable string
	indexPath     string
	qdrantConfig  *qdrant.Config
	indexClient   index.Client
	aiConfig      *ai.Config
	embedder      ai.Embedder
	logger        *slog.Logger
}

// WithDataDir sets the root of the job directories. Default is ./data.
func WithDataDir(dir string) PipelineOption {
	return func(o *pipelineOptions) {
		o.dataDir = dir
	}
}

// WithMetadata sets the SQLite database and table holding the row metadata.
func WithMetadata(path, table string) PipelineOption {
	return func(o *pipelineOptions) {
		o.metadataPath = path
		o.metadataTable = table
	}
}

// WithBadgerIndex stores the search index in its own Badger database at path.
// Without it (and without WithQdrant) the index shares the job store.
func WithBadgerIndex(path string) PipelineOption {
	return func(o *pipelineOptions) {
		o.indexPath = path
	}
}

// WithQdrant uses a Qdrant server as the search index.
func WithQdrant(config *qdrant.Config) PipelineOption {
	return func(o *pipelineOptions) {
		o.qdrantConfig = config
	}
}

// WithIndexClient uses an already constructed index client.
// The pipeline closes it on Close.
func WithIndexClient(client index.Client) PipelineOption {
	return func(o *pipelineOptions) {
		o.indexClient = client
	}
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(config *ai.Config) PipelineOption {
	return func(o *pipelineOptions) {
		o.aiConfig = config
	}
}

// WithEmbedder uses embedder instead of an OpenAI-compatible one.
func WithEmbedder(embedder ai.Embedder) PipelineOption {
	return func(o *pipelineOptions) {
		o.embedder = embedder
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(o *pipelineOptions) {
		o.logger = logger
	}
}

// Open opens the job store at dbPath and the configured search index.
func Open(dbPath string, opts ...PipelineOption) (*Pipeline, error) {
	options := &pipelineOptions{
		dataDir:  DefaultDataDir,
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(dbPath, false)
	if err != nil {
		return nil, err
	}

	jobRepo, err := badger.NewJobRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	client, err := openIndex(backend, options)
	if err != nil {
		jobRepo.Close()
		backend.Close()
		return nil, err
	}

	return &Pipeline{
		backend:        backend,
		jobRepo:        jobRepo,
		checkpointRepo: badger.NewCheckpointRepository(backend),
		index:          client,
		layout:         source.Layout{Root: options.dataDir},
		metadataPath:   options.metadataPath,
		metadataTable:  options.metadataTable,
		aiConfig:       options.aiConfig,
		embedder:       options.embedder,
		logger:         options.logger,
	}, nil
}

func openIndex(backend *badger.Backend, options *pipelineOptions) (index.Client, error) {
	logger := options.logger
	switch {
	case options.indexClient != nil:
		return options.indexClient, nil
	case options.qdrantConfig != nil:
		return qdrant.NewClient(options.qdrantConfig, qdrant.WithLogger(logger))
	case options.indexPath != "":
		return indexbadger.Open(options.indexPath, indexbadger.WithLogger(logger))
	default:
		return indexbadger.NewClient(backend, indexbadger.WithLogger(logger))
	}
}

// Close closes the index client, the repositories and the job store.
func (p *Pipeline) Close() error {
	if err := p.index.Close(); err != nil {
		p.logger.Error("error closing index client", "err", err)
	}

	if err := p.jobRepo.Close(); err != nil {
		p.logger.Error("error closing job repository", "err", err)
		return err
	}

	if err := p.backend.Close(); err != nil {
		p.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (p *Pipeline) JobRepository() storage.JobRepository {
	return p.jobRepo
}

func (p *Pipeline) CheckpointRepository() storage.CheckpointRepository {
	return p.checkpointRepo
}

func (p *Pipeline) Index() index.Client {
	return p.index
}

func (p *Pipeline) Layout() source.Layout {
	return p.layout
}

// NewLoader creates a loader gated on the job store and reading sources
// from the data directory and the metadata table. Load checkpoints are
// recorded in the job store.
func (p *Pipeline) NewLoader(opts ...loader.Option) (*loader.Loader, error) {
	opener, err := local.NewOpener(p.layout.Root, p.metadataPath, p.metadataTable)
	if err != nil {
		return nil, err
	}
	opts = append([]loader.Option{
		loader.WithLogger(p.logger),
		loader.WithCheckpoints(p.checkpointRepo),
	}, opts...)
	return loader.NewLoader(p.index, p.jobRepo, opener, opts...)
}

// NewRunner creates an embedding job runner writing into the data directory.
func (p *Pipeline) NewRunner(opts ...embedjob.Option) (*embedjob.Runner, error) {
	embedder, err := p.textEmbedder()
	if err != nil {
		return nil, err
	}
	opts = append([]embedjob.Option{embedjob.WithLogger(p.logger)}, opts...)
	return embedjob.NewRunner(p.jobRepo, embedder, p.layout, opts...)
}

// OpenMetadata opens the metadata table at path, or the pipeline's
// metadata source when path is empty.
func (p *Pipeline) OpenMetadata(path string) (source.MetadataSource, error) {
	if path == "" {
		path = p.metadataPath
	}
	if path == "" {
		return nil, errors.New("metadata path is not configured")
	}
	return local.OpenMetadata(path, p.metadataTable)
}

// Search returns the points of collection closest to vector.
func (p *Pipeline) Search(ctx context.Context, collection string, vector []float32, limit int) ([]index.ScoredPoint, error) {
	searcher, ok := p.index.(index.Searcher)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrSearchUnsupported, p.index)
	}
	return searcher.Search(ctx, collection, vector, limit)
}

// EmbedQuery embeds text with the pipeline's embedder for use with Search.
func (p *Pipeline) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embedder, err := p.textEmbedder()
	if err != nil {
		return nil, err
	}
	return embedder.EmbedText(ctx, text)
}

// textEmbedder returns the configured embedder, creating an
// OpenAI-compatible one on first use.
func (p *Pipeline) textEmbedder() (ai.Embedder, error) {
	if p.embedder != nil {
		return p.embedder, nil
	}
	embedder, err := openai.NewEmbedder(p.aiConfig)
	if err != nil {
		return nil, err
	}
	p.embedder = embedder
	return embedder, nil
}
