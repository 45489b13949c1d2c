package modelrunner

import (
	"context"
	"sync"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

var _ ports.ModelRunner = (*Pool)(nil)

// DefaultPoolWorkers is the runner pool size used when none is configured.
const DefaultPoolWorkers = 4

// RunnerFactory builds one runner for one pool worker. It runs once per
// worker at pool construction.
type RunnerFactory func() (ports.ModelRunner, error)

type predictRequest struct {
	ctx    context.Context
	prompt string
	result chan<- predictResult
}

type predictResult struct {
	prediction domain.Prediction
	err        error
}

// Pool fans invocations out over a fixed set of workers, each owning
// one runner built once at construction. It implements
// ports.ModelRunner itself, so evaluation code can treat a pool and a
// single runner interchangeably; the pool bounds provider concurrency
// at its worker count regardless of how many dataset rows invoke it at
// once.
type Pool struct {
	requests chan predictRequest
	stop     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewPool creates a Pool with the given number of workers. The factory
// runs once per worker; the first factory error aborts construction.
// Workers below one fall back to DefaultPoolWorkers.
func NewPool(workers int, factory RunnerFactory) (*Pool, error) {
	if factory == nil {
		return nil, domain.NewConfigError("runner factory cannot be nil")
	}
	if workers <= 0 {
		workers = DefaultPoolWorkers
	}

	runners := make([]ports.ModelRunner, workers)
	for i := range runners {
		runner, err := factory()
		if err != nil {
			return nil, domain.NewConfigError("building runner for worker %d: %v", i, err)
		}
		runners[i] = runner
	}

	p := &Pool{
		requests: make(chan predictRequest),
		stop:     make(chan struct{}),
	}
	p.wg.Add(workers)
	for _, runner := range runners {
		go p.worker(runner)
	}
	return p, nil
}

// Predict forwards the prompt to one of the pool's runners, blocking
// until a worker is free. After Close it returns ports.ErrPoolClosed.
func (p *Pool) Predict(ctx context.Context, prompt string) (domain.Prediction, error) {
	result := make(chan predictResult, 1)

	select {
	case p.requests <- predictRequest{ctx: ctx, prompt: prompt, result: result}:
	case <-p.stop:
		return domain.Prediction{}, ports.ErrPoolClosed
	case <-ctx.Done():
		return domain.Prediction{}, ctx.Err()
	}

	select {
	case res := <-result:
		return res.prediction, res.err
	case <-ctx.Done():
		return domain.Prediction{}, ctx.Err()
	}
}

// Close stops the workers and waits for any in-flight invocations to
// finish. It is safe to call more than once.
func (p *Pool) Close() error {
	p.once.Do(func() {
		close(p.stop)
		p.wg.Wait()
	})
	return nil
}

func (p *Pool) worker(runner ports.ModelRunner) {
	defer p.wg.Done()
	for {
		select {
		case req := <-p.requests:
			prediction, err := runner.Predict(req.ctx, req.prompt)
			req.result <- predictResult{prediction: prediction, err: err}
		case <-p.stop:
			return
		}
	}
}
