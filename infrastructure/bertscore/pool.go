package bertscore

import (
	"context"
	"sync"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

var _ ports.SimilarityScorer = (*ScorerPool)(nil)

// DefaultWorkers is the scorer pool size used when none is configured.
const DefaultWorkers = 2

type scoreRequest struct {
	ctx       context.Context
	reference string
	candidate string
	result    chan<- scoreResult
}

type scoreResult struct {
	score float64
	err   error
}

// ScorerPool is a fixed-size pool of workers, each owning one Embedder
// built once at pool construction. Score is synchronous: the calling
// goroutine blocks until a worker has embedded both texts and computed
// their cosine similarity. Calls are side-effect-free, so callers may
// retry failed scores independently.
type ScorerPool struct {
	requests chan scoreRequest
	stop     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewScorerPool creates a ScorerPool with the given number of workers.
// The factory runs once per worker; the first factory error aborts
// construction. Workers below one fall back to DefaultWorkers.
func NewScorerPool(workers int, factory EmbedderFactory) (*ScorerPool, error) {
	if factory == nil {
		return nil, domain.NewConfigError("embedder factory cannot be nil")
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	embedders := make([]Embedder, workers)
	for i := range embedders {
		embedder, err := factory()
		if err != nil {
			return nil, domain.NewConfigError("building embedder for worker %d: %v", i, err)
		}
		embedders[i] = embedder
	}

	p := &ScorerPool{
		requests: make(chan scoreRequest),
		stop:     make(chan struct{}),
	}
	p.wg.Add(workers)
	for _, embedder := range embedders {
		go p.worker(embedder)
	}
	return p, nil
}

// Score embeds reference and candidate on one of the pool's workers and
// returns their cosine similarity. It blocks until a worker is free.
// After Close it returns ports.ErrPoolClosed.
func (p *ScorerPool) Score(ctx context.Context, reference, candidate string) (float64, error) {
	result := make(chan scoreResult, 1)

	select {
	case p.requests <- scoreRequest{ctx: ctx, reference: reference, candidate: candidate, result: result}:
	case <-p.stop:
		return 0, ports.ErrPoolClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case res := <-result:
		return res.score, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close stops the workers and waits for any in-flight scores to finish.
// It is safe to call more than once.
func (p *ScorerPool) Close() error {
	p.once.Do(func() {
		close(p.stop)
		p.wg.Wait()
	})
	return nil
}

func (p *ScorerPool) worker(embedder Embedder) {
	defer p.wg.Done()
	for {
		select {
		case req := <-p.requests:
			req.result <- p.score(req.ctx, embedder, req.reference, req.candidate)
		case <-p.stop:
			return
		}
	}
}

func (p *ScorerPool) score(ctx context.Context, embedder Embedder, reference, candidate string) scoreResult {
	refVec, err := embedder.Embed(ctx, reference)
	if err != nil {
		return scoreResult{err: err}
	}
	candVec, err := embedder.Embed(ctx, candidate)
	if err != nil {
		return scoreResult{err: err}
	}
	score, err := cosineSimilarity(refVec, candVec)
	return scoreResult{score: score, err: err}
}
