package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zero-day-ai/conductor/internal/execunit"
	"github.com/zero-day-ai/conductor/internal/llm"
	"github.com/zero-day-ai/conductor/internal/memory"
	"github.com/zero-day-ai/conductor/internal/planner"
	"github.com/zero-day-ai/conductor/internal/tracker"
	"github.com/zero-day-ai/conductor/internal/types"
)

// Dispatcher routes one planned step to its executor: the model for
// RESPOND, an execution unit for EXECUTE, the tracker API for TRACKER_OP.
type Dispatcher struct {
	gateway *llm.Gateway
	pool    *execunit.Pool
	tracker tracker.Client
	scratch memory.WorkingMemory
	logger  *slog.Logger
}

// NewDispatcher creates a step dispatcher. pool and trackerClient may be
// nil when the deployment has no execution units or tracker; steps of
// those types then fail cleanly instead of panicking.
func NewDispatcher(gateway *llm.Gateway, pool *execunit.Pool, trackerClient tracker.Client, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		gateway: gateway,
		pool:    pool,
		tracker: trackerClient,
		scratch: memory.NewWorkingMemory(0),
		logger:  logger,
	}
}

// Dispatch runs one step to completion and returns its result. Infra
// failures inside the step become failed results for the evaluator;
// only context cancellation propagates as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, state *WorkflowState, step planner.Step) (*StepResult, error) {
	d.logger.Info("dispatching step",
		"thread_id", state.ThreadID, "step_id", step.ID, "type", step.Type)

	var result *StepResult
	var err error
	switch step.Type {
	case planner.StepTypeRespond:
		result, err = d.respond(ctx, state, step)
	case planner.StepTypeExecute:
		result, err = d.execute(ctx, state, step)
	case planner.StepTypeTrackerOp:
		result, err = d.trackerOp(ctx, step)
	default:
		return nil, fmt.Errorf("unknown step type %q", step.Type)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return &StepResult{StepID: step.ID, Success: false, Summary: err.Error()}, nil
	}
	result.StepID = step.ID
	return result, nil
}

// respond answers from the evidence pack and accumulated context. No side
// effects.
func (d *Dispatcher) respond(ctx context.Context, state *WorkflowState, step planner.Step) (*StepResult, error) {
	var sb strings.Builder
	sb.WriteString(step.Instructions + "\n")
	sb.WriteString(d.evidenceDigest(state))

	for _, res := range state.StepResults {
		if res.Success && res.Summary != "" {
			fmt.Fprintf(&sb, "\nEarlier step %s: %s", res.StepID, res.Summary)
		}
	}

	resp, err := d.gateway.Complete(ctx, llm.CompletionRequest{
		Messages: llm.TrimHistory([]llm.Message{
			llm.NewSystemMessage("Answer the request using the provided evidence. Be direct and complete."),
			llm.NewUserMessage(sb.String()),
		}, 24000),
	})
	if err != nil {
		return nil, err
	}
	return &StepResult{Success: true, Summary: resp.Message.Content}, nil
}

// evidenceDigest renders the evidence pack once per thread and caches it
// in working memory; the pack is immutable after collection. The LRU
// budget evicts digests of idle threads.
func (d *Dispatcher) evidenceDigest(state *WorkflowState) string {
	key := "evidence:" + state.ThreadID.String()
	if digest, ok := d.scratch.Get(key); ok {
		return digest
	}

	var sb strings.Builder
	if state.Evidence != nil {
		for _, hit := range state.Evidence.Hits {
			fmt.Fprintf(&sb, "\n[%s] %s", hit.Source, hit.Content)
		}
		for _, artifact := range state.Evidence.Artifacts {
			fmt.Fprintf(&sb, "\n[%s] %s", artifact.Ref, artifact.Content)
		}
	}
	digest := sb.String()
	d.scratch.Set(key, digest)
	return digest
}

// Forget drops a thread's cached scratch state. Called when the workflow
// reaches a terminal status.
func (d *Dispatcher) Forget(threadID types.ID) {
	d.scratch.Delete("evidence:" + threadID.String())
}

// execute hands the step to an out-of-process execution unit and follows
// it to completion.
func (d *Dispatcher) execute(ctx context.Context, state *WorkflowState, step planner.Step) (*StepResult, error) {
	if d.pool == nil {
		return nil, fmt.Errorf("no execution units configured")
	}

	handle, err := d.pool.Submit(ctx, execunit.Instruction{
		ThreadID:     state.ThreadID,
		StepID:       step.ID,
		Instructions: step.Instructions,
		Targets:      step.Targets,
		UnitClass:    step.ExecUnitClass,
		WorkspaceRef: state.Request.WorkspaceRef,
	})
	if err != nil {
		return nil, err
	}

	go func() {
		for event := range handle.Status() {
			d.logger.Debug("execution unit progress",
				"thread_id", state.ThreadID, "step_id", step.ID,
				"phase", event.Phase, "message", event.Message)
		}
	}()

	unitResult, err := handle.Result(ctx)
	if err != nil {
		return nil, err
	}
	return &StepResult{
		Success:     unitResult.Success,
		Summary:     unitResult.Summary,
		SideEffects: unitResult.ChangedArtifacts,
	}, nil
}

// VCSOp runs a version-control operation ("commit" or "push") through an
// execution unit against the workflow's workspace.
func (d *Dispatcher) VCSOp(ctx context.Context, state *WorkflowState, op string) (*StepResult, error) {
	if d.pool == nil {
		return nil, fmt.Errorf("no execution units configured for %s", op)
	}

	handle, err := d.pool.Submit(ctx, execunit.Instruction{
		ThreadID:     state.ThreadID,
		StepID:       "vcs-" + op,
		Instructions: op,
		Targets:      state.SideEffectArtifacts(),
		UnitClass:    "vcs",
		WorkspaceRef: state.Request.WorkspaceRef,
	})
	if err != nil {
		return nil, err
	}

	go func() {
		for range handle.Status() {
		}
	}()

	unitResult, err := handle.Result(ctx)
	if err != nil {
		return nil, err
	}
	return &StepResult{
		StepID:      "vcs-" + op,
		Success:     unitResult.Success,
		Summary:     unitResult.Summary,
		SideEffects: unitResult.ChangedArtifacts,
	}, nil
}

// trackerOp performs the synchronous tracker call. No target creates an
// item; the "update" unit class patches status; anything else comments.
func (d *Dispatcher) trackerOp(ctx context.Context, step planner.Step) (*StepResult, error) {
	if d.tracker == nil {
		return nil, fmt.Errorf("no tracker configured")
	}

	if len(step.Targets) == 0 {
		item, err := d.tracker.Create(ctx, tracker.Item{Title: step.Instructions})
		if err != nil {
			return nil, err
		}
		return &StepResult{
			Success:     true,
			Summary:     "created tracker item " + item.ID,
			SideEffects: []string{"tracker:" + item.ID},
		}, nil
	}

	target := step.Targets[0]
	if step.ExecUnitClass == "update" {
		if err := d.tracker.Update(ctx, target, map[string]any{"status": step.Instructions}); err != nil {
			return nil, err
		}
		return &StepResult{Success: true, Summary: "updated tracker item " + target}, nil
	}

	if err := d.tracker.Comment(ctx, target, step.Instructions); err != nil {
		return nil, err
	}
	return &StepResult{Success: true, Summary: "commented on tracker item " + target}, nil
}
