// Package engine runs the orchestration loops of one replica: dispatching
// queued tickets to the executor, heartbeating the leases it holds, and
// reclaiming leases other replicas let lapse.
//
// Replicas never coordinate with each other directly. Every claim, heartbeat
// and reclaim is a conditional row update, so any number of engines can run
// the same loops against the same database.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/forgeworks/swarm/pkg/config"
	"github.com/forgeworks/swarm/pkg/metrics"
	"github.com/forgeworks/swarm/pkg/models"
	"github.com/forgeworks/swarm/pkg/store"
)

// TicketExecutor performs the work of one claimed ticket. ExecuteTicket
// handles forge claims (generate, verify, open a PR); ReviewTicket handles
// sentinel claims (review the PR, merge, cascade).
//
// A nil error means the executor brought the ticket to its next resting
// state itself. An error hands the terminal bookkeeping back to the engine.
type TicketExecutor interface {
	ExecuteTicket(ctx context.Context, t *models.Ticket) error
	ReviewTicket(ctx context.Context, t *models.Ticket) error
}

// taskKind tags an in-flight task with the queue it was claimed from.
type taskKind string

const (
	taskForge  taskKind = "forge"
	taskReview taskKind = "review"
)

// taskHandle is the engine's view of one running ticket task.
type taskHandle struct {
	cancel context.CancelFunc
	kind   taskKind
}

// Engine owns the per-replica loops and the registry of running tasks.
type Engine struct {
	workerID string
	cfg      *config.EngineConfig
	store    *store.Store
	executor TicketExecutor
	metrics  *metrics.Metrics
	logger   *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	loopWG   sync.WaitGroup
	taskWG   sync.WaitGroup

	mu       sync.RWMutex
	inFlight map[string]taskHandle
	started  bool
}

// New creates an engine for one replica. workerID must be stable for the
// replica's lifetime and unique across the fleet; startup orphan recovery
// keys off it.
func New(workerID string, cfg *config.EngineConfig, st *store.Store, executor TicketExecutor, m *metrics.Metrics) *Engine {
	return &Engine{
		workerID: workerID,
		cfg:      cfg,
		store:    st,
		executor: executor,
		metrics:  m,
		logger:   slog.With("worker_id", workerID),
		stopCh:   make(chan struct{}),
		inFlight: make(map[string]taskHandle),
	}
}

// Start recovers this worker's orphaned leases and spawns the dispatch,
// heartbeat and reaper loops. It is safe to call multiple times; subsequent
// calls are no-ops.
func (e *Engine) Start(ctx context.Context) error {
	if e.started {
		e.logger.Warn("Engine already started, ignoring duplicate Start call")
		return nil
	}
	e.started = true

	// A previous run under this worker id may have died mid-ticket. Those
	// rows would sit out the stale threshold; return them to their queues
	// before claiming anything new.
	orphans, err := e.store.Tickets.ReclaimWorkerOrphans(ctx, e.workerID)
	if err != nil {
		return fmt.Errorf("failed to recover startup orphans: %w", err)
	}
	for _, o := range orphans {
		e.metrics.ReclaimsTotal.Inc()
		e.logger.Warn("Recovered orphan from previous run",
			"ticket_id", o.ID, "from_state", o.FromState, "to_state", o.ToState)
	}

	e.loopWG.Add(3)
	go e.dispatchLoop(ctx)
	go e.heartbeatLoop(ctx)
	go e.reaperLoop(ctx)

	e.logger.Info("Engine started",
		"max_concurrent", e.cfg.MaxConcurrent,
		"poll_interval", e.cfg.PollInterval,
		"recovered_orphans", len(orphans))
	return nil
}

// Stop shuts the engine down. With graceful set, in-flight tickets get up to
// GracefulShutdownTimeout to finish; whatever is still running is cancelled
// and its claims are released so another replica can pick the work up
// immediately. Without graceful, tasks are cancelled and the rows are left
// for the fleet's reapers.
func (e *Engine) Stop(graceful bool) {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.loopWG.Wait()

	if graceful {
		drained := make(chan struct{})
		go func() {
			e.taskWG.Wait()
			close(drained)
		}()
		select {
		case <-drained:
			e.logger.Info("Engine stopped, all tickets finished")
			return
		case <-time.After(e.cfg.GracefulShutdownTimeout):
			e.logger.Warn("Shutdown grace period elapsed with tickets in flight",
				"remaining", e.inFlightCount())
		}
	}

	stragglers := e.snapshotTasks()
	e.cancelAll()
	e.taskWG.Wait()

	if !graceful {
		e.logger.Info("Engine stopped")
		return
	}

	// Cancelled stragglers left their rows in an owned state. Release the
	// claims now so the work requeues without waiting out a reaper.
	ctx := context.Background()
	for id, h := range stragglers {
		var err error
		switch h.kind {
		case taskReview:
			_, err = e.store.Tickets.ReleaseReview(ctx, id, e.workerID)
		default:
			_, err = e.store.Tickets.ReleaseClaim(ctx, id, e.workerID)
		}
		if err != nil {
			e.logger.Error("Failed to release claim on shutdown", "ticket_id", id, "error", err)
			continue
		}
		e.logger.Info("Released claim on shutdown", "ticket_id", id, "kind", h.kind)
	}
	e.logger.Info("Engine stopped")
}

// CancelTicket cancels the running task for a ticket on this replica.
// Returns false when the ticket is not in flight here; the caller is
// expected to have cancelled the row already, so a miss just means another
// replica (or nobody) is running it.
func (e *Engine) CancelTicket(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.inFlight[id]
	if ok {
		h.cancel()
	}
	return ok
}

// InFlight returns the ids of tickets this replica is currently running.
func (e *Engine) InFlight() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.inFlight))
	for id := range e.inFlight {
		ids = append(ids, id)
	}
	return ids
}

// startTask launches one ticket task under the per-ticket timeout and
// registers it for cancellation and heartbeats.
func (e *Engine) startTask(ctx context.Context, t *models.Ticket, kind taskKind) {
	taskCtx, cancel := context.WithTimeout(ctx, e.cfg.TicketTimeout)
	e.register(t.ID, taskHandle{cancel: cancel, kind: kind})
	e.metrics.TicketsInFlight.Inc()

	e.taskWG.Add(1)
	go func() {
		defer e.taskWG.Done()
		defer cancel()
		defer e.unregister(t.ID)
		defer e.metrics.TicketsInFlight.Dec()
		e.runTask(taskCtx, t, kind)
	}()
}

// runTask drives the executor and records the terminal outcome when the
// executor could not. Recovery from panics lands the ticket in the same
// place a returned error would.
func (e *Engine) runTask(ctx context.Context, t *models.Ticket, kind taskKind) {
	log := e.logger.With("ticket_id", t.ID, "kind", kind)
	start := time.Now()
	outcome := "ok"

	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			log.Error("Ticket task panicked", "panic", r, "stack", string(debug.Stack()))
			e.failTicket(context.Background(), t, kind, fmt.Sprintf("panic: %v", r))
		}
		e.metrics.TaskDuration.WithLabelValues(string(kind), outcome).Observe(time.Since(start).Seconds())
	}()

	var err error
	switch kind {
	case taskReview:
		err = e.executor.ReviewTicket(ctx, t)
	default:
		err = e.executor.ExecuteTicket(ctx, t)
	}
	if err == nil {
		return
	}

	// The task context decides how a failure is recorded. A cancelled task
	// was either cancelled through the API (the row is already terminal) or
	// caught by shutdown (the row is released or reclaimed); either way the
	// engine must not touch it.
	var reason string
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		outcome = "cancelled"
		log.Info("Ticket task cancelled", "error", err)
		return
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		outcome = "timeout"
		reason = fmt.Sprintf("ticket timed out after %v", e.cfg.TicketTimeout)
	default:
		outcome = "failed"
		reason = err.Error()
	}

	log.Error("Ticket task failed", "error", err)
	e.failTicket(context.Background(), t, kind, reason)
}

// failTicket records a terminal failure with a background context; the task
// context is usually already dead when this runs. The underlying transitions
// are conditional on state and owner, so a ticket another actor moved on is
// silently left alone.
func (e *Engine) failTicket(ctx context.Context, t *models.Ticket, kind taskKind, reason string) {
	var err error
	switch kind {
	case taskReview:
		_, err = e.store.Tickets.MarkSentinelFailed(ctx, t.ID, e.workerID, reason)
	default:
		_, err = e.store.Tickets.Fail(ctx, t.ID, e.workerID, reason)
	}
	if err != nil {
		e.logger.Error("Failed to record ticket failure",
			"ticket_id", t.ID, "kind", kind, "error", err)
	}
}

func (e *Engine) register(id string, h taskHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight[id] = h
}

func (e *Engine) unregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, id)
}

func (e *Engine) inFlightCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.inFlight)
}

func (e *Engine) freeSlots() int {
	return e.cfg.MaxConcurrent - e.inFlightCount()
}

func (e *Engine) snapshotTasks() map[string]taskHandle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snapshot := make(map[string]taskHandle, len(e.inFlight))
	for id, h := range e.inFlight {
		snapshot[id] = h
	}
	return snapshot
}

func (e *Engine) cancelAll() {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, h := range e.inFlight {
		h.cancel()
	}
}
