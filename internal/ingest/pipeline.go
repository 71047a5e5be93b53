package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"mira/internal/model"
	"mira/internal/repository"
	"mira/internal/service"
	"mira/internal/utils"
)

// ErrDimensionMismatch means the embedder returned vectors of differing lengths
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ProgressFunc is called after each listing is embedded
type ProgressFunc func(done, total int)

// Pipeline embeds merged listings on a worker pool and replaces the stored pool.
type Pipeline struct {
	embedder service.Embedder
	writer   repository.ListingWriter
	workers  int
	progress ProgressFunc
	logger   *zap.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithWorkers sets the number of concurrent embedding calls. Default is NumCPU/2, at least 1.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithProgress sets a progress callback; calls are serialised
func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// WithLogger sets the pipeline logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = utils.OrNop(logger) }
}

// NewPipeline creates an ingestion pipeline
func NewPipeline(embedder service.Embedder, writer repository.ListingWriter, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if writer == nil {
		return nil, errors.New("listing writer is required")
	}

	p := &Pipeline{
		embedder: embedder,
		writer:   writer,
		workers:  max(runtime.NumCPU()/2, 1),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Prepare sets the inferred category and synthesised description on each listing
func Prepare(listings []model.Listing) {
	for i := range listings {
		listings[i].PropertyType = InferPropertyType(listings[i].Title)
		listings[i].Description = Describe(&listings[i])
	}
}

// Run prepares and embeds listings, then replaces the stored pool. The first
// embedding error cancels the remaining work and nothing is written.
func (p *Pipeline) Run(ctx context.Context, listings []model.Listing) error {
	if len(listings) == 0 {
		return errors.New("no listings to ingest")
	}
	Prepare(listings)

	pool, err := ants.NewPool(p.workers)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		done     int
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for i := range listings {
		l := &listings[i]
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}

			vec, err := p.embedder.Embed(ctx, l.Description)
			if err != nil {
				fail(fmt.Errorf("listing %d: %w", l.ID, err))
				return
			}
			l.Embedding = vec

			mu.Lock()
			done++
			if p.progress != nil {
				p.progress(done, len(listings))
			}
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("failed to submit listing %d: %w", l.ID, submitErr))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dim := len(listings[0].Embedding)
	for i := range listings {
		if len(listings[i].Embedding) != dim || dim == 0 {
			return fmt.Errorf("%w: listing %d has %d, want %d",
				ErrDimensionMismatch, listings[i].ID, len(listings[i].Embedding), dim)
		}
	}

	if err := p.writer.ReplaceAll(ctx, listings); err != nil {
		return fmt.Errorf("failed to store listings: %w", err)
	}

	p.logger.Info("ingestion complete",
		zap.Int("listings", len(listings)),
		zap.Int("dimensions", dim),
		zap.Int("workers", p.workers))
	return nil
}
