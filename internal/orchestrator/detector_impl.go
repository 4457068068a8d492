package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/orchestrate/internal/graph"
	"github.com/dusk-indust/orchestrate/internal/intake"
	"github.com/dusk-indust/orchestrate/internal/output"
)

// Compile-time check.
var _ Detector = (*DefaultDetector)(nil)

// DefaultDetector probes the configured worker endpoints and the code
// intelligence stack.
type DefaultDetector struct {
	client       intake.Client
	workers      []output.Worker
	probeTimeout time.Duration
	codeIntel    func() bool
	log          *zap.Logger
}

// NewDefaultDetector creates a DefaultDetector over the configured workers.
// log may be nil.
func NewDefaultDetector(client intake.Client, workers []output.Worker, log *zap.Logger) *DefaultDetector {
	if log == nil {
		log = zap.NewNop()
	}
	return &DefaultDetector{
		client:       client,
		workers:      workers,
		probeTimeout: 500 * time.Millisecond,
		codeIntel:    codeIntelAvailable,
		log:          log,
	}
}

// Detect probes every configured worker in parallel and checks whether the
// tree-sitter stack loads. Intake counts as available only when every
// configured worker answers: the collector refuses partial batches, so a
// single dark worker already forces file-based collection.
func (d *DefaultDetector) Detect(ctx context.Context) (CapabilityLevel, []output.Worker, error) {
	live := d.probeWorkers(ctx)
	hasIntake := len(d.workers) > 0 && len(live) == len(d.workers)
	hasCodeIntel := d.codeIntel()

	var level CapabilityLevel
	switch {
	case hasIntake && hasCodeIntel:
		level = CapFull
	case hasIntake:
		level = CapIntake
	case hasCodeIntel:
		level = CapCodeIntel
	default:
		level = CapBasic
	}

	d.log.Info("capability detected",
		zap.Stringer("level", level),
		zap.Int("workers_configured", len(d.workers)),
		zap.Int("workers_live", len(live)),
		zap.Bool("code_intel", hasCodeIntel))

	return level, live, nil
}

// probeWorkers concurrently probes every configured worker endpoint and
// returns the ones that answered with a usable descriptor.
func (d *DefaultDetector) probeWorkers(ctx context.Context) []output.Worker {
	var (
		mu   sync.Mutex
		live []output.Worker
		wg   sync.WaitGroup
	)

	for _, w := range d.workers {
		wg.Add(1)
		go func(w output.Worker) {
			defer wg.Done()
			if d.probeWorker(ctx, w.Endpoint) {
				mu.Lock()
				live = append(live, w)
				mu.Unlock()
			}
		}(w)
	}

	wg.Wait()
	return live
}

// probeWorker attempts to discover a worker at the given endpoint. Returns
// true if it responds within the timeout and serves submission/get.
func (d *DefaultDetector) probeWorker(ctx context.Context, endpoint string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()

	desc, err := d.client.Discover(probeCtx, endpoint)
	if err != nil || desc == nil {
		return false
	}
	for _, m := range desc.Methods {
		if m == intake.MethodGetSubmission {
			return true
		}
	}
	d.log.Debug("worker reachable but does not serve submissions",
		zap.String("endpoint", endpoint),
		zap.Strings("methods", desc.Methods))
	return false
}

// codeIntelAvailable checks that the tree-sitter grammars load. Grammar
// loading crosses into cgo, so failures may panic rather than error.
func codeIntelAvailable() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	p := graph.NewTreeSitterParser()
	defer p.Close()
	return len(p.SupportedLanguages()) > 0
}
