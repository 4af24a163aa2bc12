package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zero-day-ai/conductor/internal/config"
	"github.com/zero-day-ai/conductor/internal/delegation"
	"github.com/zero-day-ai/conductor/internal/evidence"
	"github.com/zero-day-ai/conductor/internal/intake"
	"github.com/zero-day-ai/conductor/internal/llm"
	"github.com/zero-day-ai/conductor/internal/lock"
	"github.com/zero-day-ai/conductor/internal/memory"
	"github.com/zero-day-ai/conductor/internal/planner"
	"github.com/zero-day-ai/conductor/internal/types"
)

// Engine drives workflows through the node graph: fire-and-forget start,
// checkpoint before every transition, suspend on approvals, resume across
// process restarts. One workflow runs cluster-wide at a time; a second
// start is rejected, never queued.
type Engine struct {
	classifier  *intake.Classifier
	collector   *evidence.Collector
	planner     *planner.Planner
	dispatcher  *Dispatcher
	evaluator   *Evaluator
	delegator   *delegation.Executor
	synthesizer *delegation.Synthesizer
	checkpoints *Checkpointer
	locks       *lock.Controller
	contexts    *memory.ContextStore
	procedural  *memory.ProceduralMemory
	gateway     *llm.Gateway
	reporter    Reporter
	policy      config.PolicyConfig
	logger      *slog.Logger
	tracer      trace.Tracer

	mu      sync.Mutex
	cancels map[types.ID]context.CancelFunc
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithReporter sets the push-callback reporter.
func WithReporter(reporter Reporter) EngineOption {
	return func(e *Engine) { e.reporter = reporter }
}

// WithContextStore wires the hierarchical context store.
func WithContextStore(store *memory.ContextStore) EngineOption {
	return func(e *Engine) { e.contexts = store }
}

// WithProceduralMemory wires pattern recording for successful plans.
func WithProceduralMemory(mem *memory.ProceduralMemory) EngineOption {
	return func(e *Engine) { e.procedural = mem }
}

// WithEngineLogger sets the engine logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithEngineTracer sets the engine tracer.
func WithEngineTracer(tracer trace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = tracer }
}

// Deps bundles the engine's required collaborators.
type Deps struct {
	Classifier  *intake.Classifier
	Collector   *evidence.Collector
	Planner     *planner.Planner
	Dispatcher  *Dispatcher
	Evaluator   *Evaluator
	Delegator   *delegation.Executor
	Synthesizer *delegation.Synthesizer
	Checkpoints *Checkpointer
	Locks       *lock.Controller
	Gateway     *llm.Gateway
}

// New creates an engine over its collaborators and workspace policy.
func New(deps Deps, policy config.PolicyConfig, opts ...EngineOption) *Engine {
	e := &Engine{
		classifier:  deps.Classifier,
		collector:   deps.Collector,
		planner:     deps.Planner,
		dispatcher:  deps.Dispatcher,
		evaluator:   deps.Evaluator,
		delegator:   deps.Delegator,
		synthesizer: deps.Synthesizer,
		checkpoints: deps.Checkpoints,
		locks:       deps.Locks,
		gateway:     deps.Gateway,
		reporter:    NopReporter{},
		policy:      policy,
		logger:      slog.Default(),
		tracer:      noop.NewTracerProvider().Tracer("engine"),
		cancels:     make(map[types.ID]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start accepts a request, acquires the single-flight lock, checkpoints
// the initial state and returns immediately. The workflow runs in the
// background; progress is observed via Status or the reporter.
func (e *Engine) Start(ctx context.Context, req WorkflowRequest) (types.ID, error) {
	if req.Text == "" {
		return "", types.NewError(types.CONFIG_VALIDATION_FAILED, "request text is required")
	}
	if req.Mode == "" {
		req.Mode = ModeSteps
	}

	threadID := types.NewID()
	if err := e.locks.Acquire(ctx, threadID); err != nil {
		return "", err
	}

	state := NewWorkflowState(threadID, req)
	if err := e.checkpoints.Save(ctx, state); err != nil {
		_ = e.locks.Release(ctx)
		return "", err
	}

	e.logger.Info("workflow accepted", "thread_id", threadID, "mode", req.Mode)
	e.launch(state)
	return threadID, nil
}

// Status returns the caller-visible view of a workflow from its latest
// checkpoint, which is the sole source of truth.
func (e *Engine) Status(ctx context.Context, threadID types.ID) (StatusReport, error) {
	state, err := e.checkpoints.Restore(ctx, threadID)
	if err != nil {
		return StatusReport{}, err
	}
	return reportFor(state), nil
}

// Approve answers a pending approval and resumes the workflow. The
// semantics depend on the action: a rejected plan cancels the run, a
// rejected commit finalizes without ever asking about push, a rejected
// push finalizes as a partial completion, a clarification answer
// restarts classification with the answer threaded into the
// conversation.
func (e *Engine) Approve(ctx context.Context, threadID types.ID, decision ApprovalDecision) error {
	state, err := e.checkpoints.Restore(ctx, threadID)
	if err != nil {
		return err
	}
	if state.Status != types.WorkflowStatusInterrupted || state.Pending == nil {
		return types.NewError(types.WORKFLOW_NOT_INTERRUPTED,
			"workflow "+threadID.String()+" has no pending approval")
	}

	pending := state.Pending
	state.Pending = nil
	state.Decisions[string(pending.Action)] = decision
	state.Status = types.WorkflowStatusRunning
	state.Node = pending.ResumeNode

	switch pending.Action {
	case ApprovalActionPlan:
		if !decision.Approved {
			state.Status = types.WorkflowStatusCancelled
			state.FinalError = "plan rejected: " + decision.Reason
		}
	case ApprovalActionEscalation:
		if decision.Approved {
			state.UseEscalation = true
		} else {
			state.Status = types.WorkflowStatusError
			state.FinalError = "model unavailable and escalation was rejected"
		}
	case ApprovalActionClarification:
		if decision.Approved {
			state.Request.Conversation += "\nClarification: " + decision.Reason
			state.Classification = nil
			delete(state.Decisions, string(ApprovalActionClarification))
		} else {
			state.Status = types.WorkflowStatusCancelled
			state.FinalError = "clarification declined"
		}
	}

	e.logger.Info("approval decided",
		"thread_id", threadID, "action", pending.Action, "decision", decision.String())

	if state.Status.IsTerminal() {
		if err := e.checkpoints.Save(ctx, state); err != nil {
			return err
		}
		e.reporter.ReportTerminal(ctx, reportFor(state))
		return nil
	}

	// The lock was released at suspension; resuming competes with any
	// workflow started in between.
	if err := e.locks.Acquire(ctx, state.ThreadID); err != nil {
		return err
	}
	if err := e.checkpoints.Save(ctx, state); err != nil {
		_ = e.locks.Release(ctx)
		return err
	}
	e.launch(state)
	return nil
}

// Cancel stops a workflow. In-flight runs are cancelled through their
// context; suspended ones are marked cancelled in place.
func (e *Engine) Cancel(ctx context.Context, threadID types.ID) error {
	e.mu.Lock()
	cancel, running := e.cancels[threadID]
	e.mu.Unlock()
	if running {
		cancel()
		return nil
	}

	state, err := e.checkpoints.Restore(ctx, threadID)
	if err != nil {
		return err
	}
	if state.Status.IsTerminal() {
		return types.NewError(types.WORKFLOW_CANCELLED,
			"workflow "+threadID.String()+" already terminal")
	}

	state.Status = types.WorkflowStatusCancelled
	state.Pending = nil
	state.FinalError = "cancelled by caller"
	if err := e.checkpoints.Save(ctx, state); err != nil {
		return err
	}
	e.reporter.ReportTerminal(ctx, reportFor(state))
	return nil
}

// Recover resumes workflows left running by a crashed process. Called
// once at boot. Interrupted workflows stay suspended; only threads that
// died mid-run are restarted from their last checkpoint.
func (e *Engine) Recover(ctx context.Context) error {
	states, err := e.checkpoints.ListResumable(ctx)
	if err != nil {
		return err
	}

	for _, state := range states {
		if state.Status != types.WorkflowStatusRunning {
			continue
		}
		if err := e.locks.Acquire(ctx, state.ThreadID); err != nil {
			e.logger.Warn("recovery skipped, lock unavailable",
				"thread_id", state.ThreadID, "error", err)
			continue
		}
		e.logger.Info("recovering workflow",
			"thread_id", state.ThreadID, "node", state.Node, "version", state.Version)
		e.launch(state)
	}
	return nil
}

// OnLockLost cancels the thread whose single-flight lock could not be
// refreshed. Wire it as the lock controller's lost handler so a fenced
// process stops mutating shared state.
func (e *Engine) OnLockLost(threadID types.ID) {
	e.mu.Lock()
	cancel, ok := e.cancels[threadID]
	e.mu.Unlock()
	if ok {
		e.logger.Error("single-flight lock lost, cancelling workflow", "thread_id", threadID)
		cancel()
	}
}

// Busy reports whether a workflow currently holds the single-flight lock.
func (e *Engine) Busy() bool {
	return e.locks.Busy()
}

// Prune removes terminal checkpoints older than ttl and expired context
// entries.
func (e *Engine) Prune(ctx context.Context, ttl time.Duration) error {
	if _, err := e.checkpoints.Prune(ctx, ttl); err != nil {
		return err
	}
	if e.contexts != nil {
		if _, err := e.contexts.Prune(ctx); err != nil {
			return err
		}
	}
	return nil
}

// launch starts the run loop in the background with its own cancelable
// context, detached from the caller's.
func (e *Engine) launch(state *WorkflowState) {
	runCtx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.cancels[state.ThreadID] = cancel
	e.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			e.mu.Lock()
			delete(e.cancels, state.ThreadID)
			e.mu.Unlock()
		}()
		e.run(runCtx, state)
	}()
}

// run is the node loop. Invariant: the state is checkpointed before the
// cursor advances, so a crash at any point resumes without repeating a
// completed transition.
func (e *Engine) run(ctx context.Context, state *WorkflowState) {
	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("thread_id", state.ThreadID.String()),
	))
	defer span.End()

	handlers := e.handlers()
	for state.Status == types.WorkflowStatusRunning {
		if ctx.Err() != nil {
			e.finishCancelled(state)
			break
		}

		handler, ok := handlers[state.Node]
		if !ok {
			state.Status = types.WorkflowStatusError
			state.FinalError = "unknown node cursor " + state.Node
			break
		}

		callCtx := ctx
		if state.UseEscalation {
			callCtx = llm.WithEscalation(ctx)
		}

		next, pending, err := handler(callCtx, state)
		if err != nil {
			if ctx.Err() != nil {
				e.finishCancelled(state)
				break
			}
			if retryNode, p, handled := e.handleModelFailure(state, err); handled {
				if p != nil {
					pending, next = p, ""
				} else {
					next = retryNode
				}
			} else {
				state.Status = types.WorkflowStatusError
				state.FinalError = err.Error()
				e.logger.Error("workflow failed",
					"thread_id", state.ThreadID, "node", state.Node, "error", err)
				break
			}
		}

		if pending != nil {
			e.suspend(ctx, state, pending)
			return
		}
		if state.Status.IsTerminal() {
			break
		}

		if next != "" {
			state.Node = next
		}
		state.UpdatedAt = time.Now().UTC()
		if err := e.checkpoints.Save(ctx, state); err != nil {
			e.logger.Error("checkpoint failed, halting",
				"thread_id", state.ThreadID, "error", err)
			state.Status = types.WorkflowStatusError
			state.FinalError = err.Error()
			break
		}
		e.reporter.ReportProgress(ctx, reportFor(state))
	}

	e.finish(state)
}

// handleModelFailure applies the escalation policy to model availability
// and liveness errors. It returns the node to retry, or a pending
// escalation approval, or handled=false for everything else.
func (e *Engine) handleModelFailure(state *WorkflowState, err error) (string, *PendingApproval, bool) {
	code := types.CodeOf(err)
	if code != types.MODEL_UNAVAILABLE && code != types.LIVENESS_TIMEOUT {
		return "", nil, false
	}
	if state.UseEscalation || !e.gateway.CanEscalate() {
		return "", nil, false
	}

	if e.policy.AutoEscalate {
		state.UseEscalation = true
		state.Warn("escalated to " + e.gateway.EscalationProvider() + " after " + string(code))
		e.logger.Warn("auto-escalating model provider",
			"thread_id", state.ThreadID, "node", state.Node, "cause", code)
		return state.Node, nil, true
	}

	return "", &PendingApproval{
		Action: ApprovalActionEscalation,
		Description: "The default model is unavailable. Escalate to paid provider " +
			e.gateway.EscalationProvider() + "?",
		Risk:       RiskMedium,
		Details:    map[string]string{"cause": string(code)},
		ResumeNode: state.Node,
	}, true
}

// suspend parks the workflow on a pending approval and releases the
// single-flight lock so other work can run while a human decides.
func (e *Engine) suspend(ctx context.Context, state *WorkflowState, pending *PendingApproval) {
	state.Status = types.WorkflowStatusInterrupted
	state.Pending = pending
	state.Node = pending.ResumeNode
	state.UpdatedAt = time.Now().UTC()

	if err := e.checkpoints.Save(ctx, state); err != nil {
		e.logger.Error("failed to checkpoint suspension",
			"thread_id", state.ThreadID, "error", err)
	}
	if err := e.locks.Release(context.Background()); err != nil {
		e.logger.Warn("lock release failed on suspension",
			"thread_id", state.ThreadID, "error", err)
	}

	e.logger.Info("workflow suspended",
		"thread_id", state.ThreadID, "action", pending.Action, "resume_node", pending.ResumeNode)
	e.reporter.ReportTerminal(ctx, reportFor(state))
}

func (e *Engine) finishCancelled(state *WorkflowState) {
	state.Status = types.WorkflowStatusCancelled
	if state.FinalError == "" {
		state.FinalError = "cancelled by caller"
	}
}

// finish checkpoints the terminal state and releases the lock. Save uses
// a fresh context so a caller-side cancel cannot lose the final record.
func (e *Engine) finish(state *WorkflowState) {
	ctx := context.Background()
	state.UpdatedAt = time.Now().UTC()

	if err := e.checkpoints.Save(ctx, state); err != nil {
		e.logger.Error("failed to checkpoint terminal state",
			"thread_id", state.ThreadID, "error", err)
	}
	if err := e.locks.Release(ctx); err != nil {
		e.logger.Warn("lock release failed",
			"thread_id", state.ThreadID, "error", err)
	}
	if e.dispatcher != nil {
		e.dispatcher.Forget(state.ThreadID)
	}

	e.logger.Info("workflow finished",
		"thread_id", state.ThreadID, "status", state.Status,
		"committed", state.Committed, "pushed", state.Pushed)
	e.reporter.ReportTerminal(ctx, reportFor(state))
}
