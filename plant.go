package packflow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/petrijr/packflow/internal/dispatch"
	"github.com/petrijr/packflow/internal/engine"
	"github.com/petrijr/packflow/internal/fixtures"
	"github.com/petrijr/packflow/internal/persistence"
	"github.com/petrijr/packflow/internal/taskqueue"
	"github.com/petrijr/packflow/pkg/worker"
)

// LocalPlant bundles an in-memory Engine, an in-memory command queue, and a
// Worker into a single process-local plant for development and tests.
//
// Typical usage:
//
//	plant := packflow.NewLocalPlant()
//	_, _ = plant.Seed(ctx)
//
//	// Synchronous operation:
//	inst, err := plant.Execute(ctx, packflow.FlowSku, "submit", engineer, req)
//
//	// Asynchronous operation:
//	_ = plant.StartWorkers(ctx, 2)
//	id, err := plant.EnqueueAsync(ctx, packflow.FlowSku, "approve", qa, req)
//	...
//	plant.Stop()
type LocalPlant struct {
	// Engine is the in-memory flow engine used by this plant.
	Engine Engine

	// Queue is the in-memory command queue used by the Worker.
	Queue taskqueue.Queue

	// Worker executes commands from Queue against Engine.
	Worker *worker.Worker

	store  persistence.Persistence
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// PlantConfig customises NewLocalPlantWithConfig. The zero value matches
// NewLocalPlant.
type PlantConfig struct {
	Observer Observer
	Worker   worker.Config
	Logger   *slog.Logger
}

// NewLocalPlant constructs a LocalPlant with no observer and a worker that
// does not retry.
func NewLocalPlant() *LocalPlant {
	return NewLocalPlantWithConfig(PlantConfig{})
}

// NewLocalPlantWithConfig constructs a LocalPlant from cfg.
func NewLocalPlantWithConfig(cfg PlantConfig) *LocalPlant {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Worker.Logger == nil {
		cfg.Worker.Logger = logger
	}
	store := persistence.NewMemory()
	eng := engine.NewEngineWithConfig(engine.Config{
		Persistence: store,
		Observer:    cfg.Observer,
	})
	q := taskqueue.NewInMemoryQueue()

	return &LocalPlant{
		Engine: eng,
		Queue:  q,
		Worker: worker.NewWithConfig(eng, q, cfg.Worker),
		store:  store,
		logger: logger,
	}
}

// Seed loads the built-in demo plant: two active SKUs, an issued purchase
// order, a released receipt of 100 cells and two batches.
func (p *LocalPlant) Seed(ctx context.Context) (fixtures.Summary, error) {
	return fixtures.LoadDefault(ctx, p.store, time.Now())
}

// Execute runs one named flow operation synchronously. req is the
// operation's request value; its actor is replaced by actor.
func (p *LocalPlant) Execute(ctx context.Context, flow FlowID, op string, actor Actor, req any) (Instance, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return dispatch.Run(ctx, p.Engine, flow, op, actor, body)
}

// EnqueueAsync schedules one named flow operation for a worker and returns
// the command id.
func (p *LocalPlant) EnqueueAsync(ctx context.Context, flow FlowID, op string, actor Actor, req any) (string, error) {
	return p.Worker.Enqueue(ctx, flow, op, actor, req)
}

// StartWorkers starts 'concurrency' worker goroutines that continuously call
// Worker.ProcessOne(ctx) until the context is cancelled via Stop.
//
// If StartWorkers is called more than once without Stop, it returns an error.
func (p *LocalPlant) StartWorkers(ctx context.Context, concurrency int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return errors.New("packflow: LocalPlant already started")
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer p.wg.Done()

			for {
				processed, err := p.Worker.ProcessOne(ctx)
				if err == nil {
					continue
				}
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				if !processed {
					p.logger.ErrorContext(ctx, "local_plant_dequeue_failed", slog.Any("error", err))
					return
				}
				// A failed command must not stop the loop.
				p.logger.WarnContext(ctx, "local_plant_command_failed", slog.Any("error", err))
			}
		}()
	}

	return nil
}

// Stop cancels all worker goroutines started by StartWorkers and waits
// for them to exit.
func (p *LocalPlant) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}
