package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zero-day-ai/conductor/internal/evidence"
	"github.com/zero-day-ai/conductor/internal/intake"
	"github.com/zero-day-ai/conductor/internal/llm"
	"github.com/zero-day-ai/conductor/internal/memory"
	"github.com/zero-day-ai/conductor/internal/types"
)

const planSystemPrompt = `You decompose a request into a JSON plan for an orchestration engine.
Output a JSON object: {"goals": [{"id", "title", "depends_on": [goal ids],
"steps": [{"id", "type", "instructions", "targets", "exec_unit_class"}]}]}.
Step types: "respond" (answer from context), "execute" (change the workspace
via an execution unit), "tracker_op" (create/update/comment on a tracker item).
Goals run in dependency order; declare depends_on only when output of another
goal is genuinely required. Keep plans as small as the request allows.`

// Planner turns a classified request plus its evidence into an executable
// plan with one model call.
type Planner struct {
	gateway    *llm.Gateway
	procedural *memory.ProceduralMemory
	logger     *slog.Logger
}

// NewPlanner creates a planner. procedural may be nil; hints are then
// skipped.
func NewPlanner(gateway *llm.Gateway, procedural *memory.ProceduralMemory, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{gateway: gateway, procedural: procedural, logger: logger}
}

// Plan builds the plan for a classified request. Advice requests never
// touch the model: they become a single respond-only goal. Epic and
// generative plans are flagged for approval before any execution.
func (p *Planner) Plan(ctx context.Context, classification *intake.Classification, pack *evidence.Pack, requestText string) (*Plan, error) {
	if classification.Category == intake.CategoryAdvice {
		return &Plan{
			Goals: []Goal{{
				ID:    "goal-1",
				Title: "Answer the request",
				Steps: []Step{{
					ID:           "step-1",
					Type:         StepTypeRespond,
					Instructions: requestText,
				}},
			}},
			Summary: "respond from evidence",
		}, nil
	}

	plan, err := p.decompose(ctx, classification, pack, requestText)
	if err != nil {
		return nil, err
	}

	switch classification.Category {
	case intake.CategoryEpic, intake.CategoryGenerative:
		plan.RequiresApproval = true
	}
	plan.Summary = plan.Shape()

	p.logger.Info("plan generated",
		"category", classification.Category,
		"goals", len(plan.Goals),
		"steps", plan.StepCount(),
		"requires_approval", plan.RequiresApproval)
	return plan, nil
}

// decompose runs the single planning model call and validates its output.
func (p *Planner) decompose(ctx context.Context, classification *intake.Classification, pack *evidence.Pack, requestText string) (*Plan, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Category: %s (complexity %s)\nRequired action: %s\nRequest:\n%s\n",
		classification.Category, classification.Complexity,
		classification.RequiredAction, requestText)

	if pack != nil {
		if len(pack.Hits) > 0 {
			sb.WriteString("\nEvidence:\n")
			for _, hit := range pack.Hits {
				fmt.Fprintf(&sb, "- [%s] %s\n", hit.Source, hit.Content)
			}
		}
		for _, artifact := range pack.Artifacts {
			fmt.Fprintf(&sb, "\nArtifact %s:\n%s\n", artifact.Ref, artifact.Content)
		}
	}

	if p.procedural != nil {
		if hints := p.procedural.PlannerHints(ctx, string(classification.Category)); len(hints) > 0 {
			sb.WriteString("\nPlan shapes that worked before:\n")
			for _, hint := range hints {
				sb.WriteString("- " + hint + "\n")
			}
		}
	}

	resp, err := p.gateway.Complete(ctx, llm.CompletionRequest{
		Messages: llm.TrimHistory([]llm.Message{
			llm.NewSystemMessage(planSystemPrompt),
			llm.NewUserMessage(sb.String()),
		}, 24000),
	})
	if err != nil {
		return nil, err
	}

	plan, err := llm.ExtractJSONAs[Plan](resp.Message.Content)
	if err != nil {
		return nil, types.WrapError(types.PLAN_GENERATION_FAILED,
			"model reply did not contain a decodable plan", err)
	}
	if err := p.validate(&plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// validate normalizes the decoded plan: ids filled in, step types checked,
// dependencies on unknown goals dropped rather than fatal.
func (p *Planner) validate(plan *Plan) error {
	if len(plan.Goals) == 0 {
		return types.NewError(types.PLAN_GENERATION_FAILED, "plan contains no goals")
	}

	known := make(map[string]bool, len(plan.Goals))
	for i := range plan.Goals {
		goal := &plan.Goals[i]
		if goal.ID == "" {
			goal.ID = fmt.Sprintf("goal-%d", i+1)
		}
		known[goal.ID] = true
	}

	for i := range plan.Goals {
		goal := &plan.Goals[i]
		if len(goal.Steps) == 0 {
			return types.NewError(types.PLAN_GENERATION_FAILED,
				fmt.Sprintf("goal %s has no steps", goal.ID))
		}
		for j := range goal.Steps {
			step := &goal.Steps[j]
			if step.ID == "" {
				step.ID = fmt.Sprintf("%s/step-%d", goal.ID, j+1)
			}
			if !step.Type.IsValid() {
				return types.NewError(types.PLAN_GENERATION_FAILED,
					fmt.Sprintf("step %s has unknown type %q", step.ID, step.Type))
			}
		}

		var deps []string
		for _, dep := range goal.DependsOn {
			if dep == goal.ID {
				continue
			}
			if !known[dep] {
				p.logger.Warn("dropping dependency on unknown goal",
					"goal", goal.ID, "dependency", dep)
				continue
			}
			deps = append(deps, dep)
		}
		goal.DependsOn = deps
	}
	return nil
}
