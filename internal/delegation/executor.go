package delegation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Sink persists full agent outputs. Plan state only ever sees capped
// summaries; the sink is where the complete result goes.
type Sink interface {
	Persist(ctx context.Context, msg Message, output *AgentOutput) error
}

// Executor runs an ExecutionPlan group by group: groups sequentially,
// members within a group with bounded fan-out. It also serves agents as
// their Subdelegator for recursive delegation.
type Executor struct {
	registry    *Registry
	sink        Sink
	maxParallel int
	logger      *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMaxParallel bounds concurrent members per group.
func WithMaxParallel(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxParallel = n
		}
	}
}

// WithSink sets the full-output sink.
func WithSink(sink Sink) ExecutorOption {
	return func(e *Executor) { e.sink = sink }
}

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor creates a delegation executor over the agent registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:    registry,
		maxParallel: 3,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ Subdelegator = (*Executor)(nil)

// ExecutePlan validates the whole plan, then runs it. Member failures are
// isolated into failed outputs; only context cancellation aborts the plan.
// Summaries of earlier groups thread into later members' context.
func (e *Executor) ExecutePlan(ctx context.Context, plan *ExecutionPlan) ([]*AgentOutput, error) {
	if err := ValidatePlan(plan); err != nil {
		return nil, err
	}

	var outputs []*AgentOutput
	var priorSummaries []string

	for i, group := range plan.Groups {
		if err := ctx.Err(); err != nil {
			return outputs, err
		}

		members := group.Members
		if len(priorSummaries) > 0 {
			carried := "Earlier results:\n- " + strings.Join(priorSummaries, "\n- ")
			members = make([]Message, len(group.Members))
			for j, member := range group.Members {
				member.Context = strings.TrimSpace(member.Context + "\n\n" + carried)
				members[j] = member
			}
		}

		groupOutputs := e.runGroup(ctx, members)
		outputs = append(outputs, groupOutputs...)

		for _, out := range groupOutputs {
			if out.Success {
				priorSummaries = append(priorSummaries, out.Summary())
			}
		}
		e.logger.Debug("delegation group finished",
			"group", i, "members", len(members))
	}
	return outputs, nil
}

// runGroup fans out the members of one group under the parallelism bound.
func (e *Executor) runGroup(ctx context.Context, members []Message) []*AgentOutput {
	outputs := make([]*AgentOutput, len(members))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxParallel)
	for i, member := range members {
		i, member := i, member
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outputs[i] = e.dispatch(ctx, member)
		}()
	}
	wg.Wait()
	return outputs
}

// dispatch runs one delegation. Any failure, including a panic-free agent
// error, becomes a failed AgentOutput rather than an abort.
func (e *Executor) dispatch(ctx context.Context, msg Message) *AgentOutput {
	if err := Validate(msg); err != nil {
		return e.failed(msg, err)
	}

	agent := e.registry.Resolve(msg.TargetAgent)
	if agent == nil {
		return e.failed(msg, fmt.Errorf("no agent available for %q", msg.TargetAgent))
	}

	output, err := agent.Handle(ctx, msg, e)
	if err != nil {
		return e.failed(msg, err)
	}
	if output.DelegationID.IsZero() {
		output.DelegationID = msg.ID
	}
	if output.Agent == "" {
		output.Agent = agent.Name()
	}

	e.persist(ctx, msg, output)
	return output
}

func (e *Executor) failed(msg Message, err error) *AgentOutput {
	e.logger.Warn("delegation failed",
		"delegation_id", msg.ID,
		"agent", msg.TargetAgent,
		"error", err)
	out := &AgentOutput{
		DelegationID: msg.ID,
		Agent:        msg.TargetAgent,
		Success:      false,
		Error:        err.Error(),
	}
	e.persist(context.Background(), msg, out)
	return out
}

func (e *Executor) persist(ctx context.Context, msg Message, output *AgentOutput) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Persist(ctx, msg, output); err != nil {
		e.logger.Warn("failed to persist delegation output",
			"delegation_id", msg.ID, "error", err)
	}
}

// Delegate dispatches a sub-delegation on behalf of an agent. Depth and
// cycle violations are hard errors returned to the delegating agent; a
// failing child is a failed output, not an error.
func (e *Executor) Delegate(ctx context.Context, child Message) (*AgentOutput, error) {
	if err := Validate(child); err != nil {
		return nil, err
	}
	return e.dispatch(ctx, child), nil
}
