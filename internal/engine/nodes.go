package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/zero-day-ai/conductor/internal/intake"
	"github.com/zero-day-ai/conductor/internal/planner"
	"github.com/zero-day-ai/conductor/internal/types"
)

// Node names. The cursor stored in every checkpoint is one of these, so
// renaming a node breaks resume for in-flight workflows.
const (
	nodeClassify        = "classify"
	nodeCollectEvidence = "collect_evidence"
	nodePlan            = "plan"
	nodeExecuteStep     = "execute_step"
	nodeDelegate        = "delegate"
	nodeSynthesize      = "synthesize"
	nodeCommit          = "commit"
	nodePush            = "push"
	nodeFinalize        = "finalize"
)

// nodeHandler runs one node. It returns the next node name, or a pending
// approval to suspend on, or an error. A handler that sets a terminal
// status returns "" as next.
type nodeHandler func(ctx context.Context, state *WorkflowState) (string, *PendingApproval, error)

// handlers is the typed routing table from node cursor to handler.
func (e *Engine) handlers() map[string]nodeHandler {
	return map[string]nodeHandler{
		nodeClassify:        e.runClassify,
		nodeCollectEvidence: e.runCollectEvidence,
		nodePlan:            e.runPlan,
		nodeExecuteStep:     e.runExecuteStep,
		nodeDelegate:        e.runDelegate,
		nodeSynthesize:      e.runSynthesize,
		nodeCommit:          e.runCommit,
		nodePush:            e.runPush,
		nodeFinalize:        e.runFinalize,
	}
}

// runClassify categorizes the request. Ambiguity suspends for
// clarification; it is never an error.
func (e *Engine) runClassify(ctx context.Context, state *WorkflowState) (string, *PendingApproval, error) {
	classification, err := e.classifier.Classify(ctx, state.Request.Text, state.Request.Conversation)
	if err != nil {
		if types.CodeOf(err) == types.CLASSIFICATION_EMPTY {
			return "", &PendingApproval{
				Action:      ApprovalActionClarification,
				Description: "The request could not be understood. Please rephrase or add detail.",
				Risk:        RiskLow,
				Questions:   []string{"Could you restate what you want done, with more specifics?"},
				ResumeNode:  nodeClassify,
			}, nil
		}
		return "", nil, err
	}

	if classification.NeedsClarification() {
		return "", &PendingApproval{
			Action:      ApprovalActionClarification,
			Description: "The request is ambiguous and needs clarification before work begins.",
			Risk:        RiskLow,
			Questions:   classification.ClarificationQuestions,
			ResumeNode:  nodeClassify,
		}, nil
	}

	state.Classification = classification
	e.logger.Info("request classified",
		"thread_id", state.ThreadID,
		"category", classification.Category,
		"complexity", classification.Complexity)
	return nodeCollectEvidence, nil, nil
}

// runCollectEvidence gathers the evidence pack. Partial packs degrade the
// run with a warning instead of failing it.
func (e *Engine) runCollectEvidence(ctx context.Context, state *WorkflowState) (string, *PendingApproval, error) {
	pack, err := e.collector.Collect(ctx,
		state.Request.TenantID, state.Request.WorkspaceID,
		state.Classification.RequiredAction, state.Classification.References)
	if err != nil {
		if types.CodeOf(err) != types.EVIDENCE_FETCH_PARTIAL {
			return "", nil, err
		}
		state.Warn("evidence collection was partial: " + err.Error())
	}
	state.Evidence = pack
	return nodePlan, nil, nil
}

// runPlan decomposes the request into a plan. Epic and generative plans
// suspend for caller approval before anything executes.
func (e *Engine) runPlan(ctx context.Context, state *WorkflowState) (string, *PendingApproval, error) {
	// An approved resume re-enters here; the checkpointed plan is reused,
	// never regenerated.
	if state.Plan == nil {
		plan, err := e.planner.Plan(ctx, state.Classification, state.Evidence, state.Request.Text)
		if err != nil {
			return "", nil, err
		}
		state.Plan = plan

		if e.contexts != nil && state.Classification.Category == intake.CategoryEpic {
			if err := e.contexts.PutEpicFrame(ctx, state.ThreadID, plan.Summary); err != nil {
				state.Warn("failed to persist epic frame: " + err.Error())
			}
		}
	}
	plan := state.Plan

	next := nodeExecuteStep
	if state.Request.Mode == ModeDelegation {
		next = nodeDelegate
	}

	if plan.RequiresApproval {
		if d, ok := state.Decisions[string(ApprovalActionPlan)]; ok && d.Approved {
			return next, nil, nil
		}
		return "", &PendingApproval{
			Action:      ApprovalActionPlan,
			Description: fmt.Sprintf("Proposed plan (%s): %s", plan.Shape(), plan.Summary),
			Risk:        riskForCategory(state.Classification.Category),
			Details:     planDetails(state),
			ResumeNode:  nodePlan,
		}, nil
	}
	return next, nil, nil
}

// runExecuteStep dispatches exactly one step, so a checkpoint lands
// between every step and its successor.
func (e *Engine) runExecuteStep(ctx context.Context, state *WorkflowState) (string, *PendingApproval, error) {
	goal := e.currentGoal(state)
	if goal == nil {
		if len(state.SideEffectArtifacts()) > 0 {
			return nodeCommit, nil, nil
		}
		return nodeFinalize, nil, nil
	}

	if state.CurrentStepIdx >= len(goal.Steps) {
		e.finishGoal(ctx, state, goal)
		return nodeExecuteStep, nil, nil
	}

	step := goal.Steps[state.CurrentStepIdx]
	result, err := e.dispatcher.Dispatch(ctx, state, step)
	if err != nil {
		return "", nil, err
	}

	evaluation := e.evaluator.Evaluate(step, result)
	state.StepResults[step.ID] = result
	if e.contexts != nil && result.Summary != "" {
		if err := e.contexts.PutStepDetail(ctx, state.ThreadID, step.ID, result.Summary); err != nil {
			state.Warn("failed to persist step detail: " + err.Error())
		}
	}

	switch evaluation.Verdict {
	case VerdictFailed:
		return "", nil, types.NewError(types.STEP_FAILED, strings.Join(evaluation.Reasons, "; "))
	case VerdictBlocked:
		return "", nil, types.NewError(types.POLICY_VIOLATION, strings.Join(evaluation.Reasons, "; "))
	case VerdictWarning:
		for _, reason := range evaluation.Reasons {
			state.Warn(reason)
		}
	}

	state.CurrentStepIdx++
	return nodeExecuteStep, nil, nil
}

// currentGoal returns the goal the cursor points at, selecting the next
// one when none is in flight. Nil means every goal is complete.
func (e *Engine) currentGoal(state *WorkflowState) *planner.Goal {
	if state.Plan == nil {
		return nil
	}
	if state.CurrentGoalID != "" {
		for i := range state.Plan.Goals {
			if state.Plan.Goals[i].ID == state.CurrentGoalID {
				return &state.Plan.Goals[i]
			}
		}
	}

	selection := planner.NextGoal(state.Plan.Goals, state.CompletedGoals)
	if selection == nil || selection.Goal == nil {
		return nil
	}
	if selection.BestEffort {
		state.Warn(fmt.Sprintf("goal %s started with unmet dependencies %v",
			selection.Goal.ID, selection.UnmetDeps))
	}
	state.CurrentGoalID = selection.Goal.ID
	state.CurrentStepIdx = 0
	return selection.Goal
}

// finishGoal marks the active goal complete and persists its summary.
func (e *Engine) finishGoal(ctx context.Context, state *WorkflowState, goal *planner.Goal) {
	state.CompletedGoals[goal.ID] = true
	state.CurrentGoalID = ""
	state.CurrentStepIdx = 0

	if e.contexts != nil {
		summary := goalSummary(state, goal)
		if err := e.contexts.PutGoalSummary(ctx, state.ThreadID, goal.ID, summary); err != nil {
			state.Warn("failed to persist goal summary: " + err.Error())
		}
	}
}

// runDelegate converts the plan into a delegation DAG and runs it.
func (e *Engine) runDelegate(ctx context.Context, state *WorkflowState) (string, *PendingApproval, error) {
	plan, err := BuildExecutionPlan(state)
	if err != nil {
		return "", nil, err
	}

	outputs, err := e.delegator.ExecutePlan(ctx, plan)
	if err != nil {
		return "", nil, err
	}
	state.DelegationOutputs = outputs
	return nodeSynthesize, nil, nil
}

// runSynthesize folds delegation outputs into one answer.
func (e *Engine) runSynthesize(ctx context.Context, state *WorkflowState) (string, *PendingApproval, error) {
	objective := state.Request.Text
	if state.Plan != nil && state.Plan.Summary != "" {
		objective = state.Plan.Summary
	}

	answer, err := e.synthesizer.Synthesize(ctx, objective, state.DelegationOutputs)
	if err != nil {
		return "", nil, err
	}
	state.FinalSummary = answer

	for _, output := range state.DelegationOutputs {
		if output.Success && len(output.Artifacts) > 0 {
			return nodeCommit, nil, nil
		}
	}
	return nodeFinalize, nil, nil
}

// runCommit gates the commit on caller approval, then performs it. A
// rejected commit skips straight to finalize; push is never asked for.
func (e *Engine) runCommit(ctx context.Context, state *WorkflowState) (string, *PendingApproval, error) {
	decision, decided := state.Decisions[string(ApprovalActionCommit)]
	if !decided {
		return "", &PendingApproval{
			Action:      ApprovalActionCommit,
			Description: "Commit the workspace changes produced by this workflow?",
			Risk:        RiskMedium,
			Details:     map[string]string{"artifacts": strings.Join(changedArtifacts(state), ", ")},
			ResumeNode:  nodeCommit,
		}, nil
	}
	if !decision.Approved {
		state.Warn("commit rejected by caller; changes left uncommitted")
		return nodeFinalize, nil, nil
	}

	result, err := e.dispatcher.VCSOp(ctx, state, "commit")
	if err != nil {
		return "", nil, err
	}
	if !result.Success {
		return "", nil, types.NewError(types.STEP_FAILED, "commit failed: "+result.Summary)
	}
	state.Committed = true
	return nodePush, nil, nil
}

// runPush gates the push unless auto-push applies. A rejected push is a
// partial completion, not a failure.
func (e *Engine) runPush(ctx context.Context, state *WorkflowState) (string, *PendingApproval, error) {
	autoPush := e.policy.AutoPush || state.Request.AutoPush
	if !autoPush {
		decision, decided := state.Decisions[string(ApprovalActionPush)]
		if !decided {
			return "", &PendingApproval{
				Action:      ApprovalActionPush,
				Description: "Push the committed changes to the shared remote?",
				Risk:        RiskHigh,
				ResumeNode:  nodePush,
			}, nil
		}
		if !decision.Approved {
			state.PushSkipped = true
			state.Warn("push rejected by caller; commit retained locally")
			return nodeFinalize, nil, nil
		}
	}

	result, err := e.dispatcher.VCSOp(ctx, state, "push")
	if err != nil {
		return "", nil, err
	}
	if !result.Success {
		return "", nil, types.NewError(types.STEP_FAILED, "push failed: "+result.Summary)
	}
	state.Pushed = true
	return nodeFinalize, nil, nil
}

// runFinalize closes the workflow and records the plan shape as a
// reusable pattern on full success.
func (e *Engine) runFinalize(ctx context.Context, state *WorkflowState) (string, *PendingApproval, error) {
	if state.FinalSummary == "" {
		state.FinalSummary = summarizeResults(state)
	}
	state.Status = types.WorkflowStatusDone

	if e.procedural != nil && state.Plan != nil && len(state.Warnings) == 0 {
		e.procedural.RecordSuccess(ctx,
			string(state.Classification.Category), state.Request.Text, state.Plan.Shape())
	}
	return "", nil, nil
}

func riskForCategory(category intake.Category) RiskClass {
	switch category {
	case intake.CategoryEpic:
		return RiskHigh
	case intake.CategoryGenerative:
		return RiskMedium
	default:
		return RiskLow
	}
}

func planDetails(state *WorkflowState) map[string]string {
	details := make(map[string]string, len(state.Plan.Goals))
	for _, goal := range state.Plan.Goals {
		details[goal.ID] = goal.Title
	}
	return details
}

func changedArtifacts(state *WorkflowState) []string {
	artifacts := state.SideEffectArtifacts()
	for _, output := range state.DelegationOutputs {
		if output.Success {
			artifacts = append(artifacts, output.Artifacts...)
		}
	}
	return artifacts
}

func goalSummary(state *WorkflowState, goal *planner.Goal) string {
	var sb strings.Builder
	for _, step := range goal.Steps {
		if result, ok := state.StepResults[step.ID]; ok && result.Summary != "" {
			if sb.Len() > 0 {
				sb.WriteString("; ")
			}
			sb.WriteString(result.Summary)
		}
	}
	if sb.Len() == 0 {
		return goal.Title
	}
	return sb.String()
}

func summarizeResults(state *WorkflowState) string {
	var last string
	if state.Plan != nil {
		for _, goal := range state.Plan.Goals {
			for _, step := range goal.Steps {
				if result, ok := state.StepResults[step.ID]; ok && result.Success && result.Summary != "" {
					last = result.Summary
				}
			}
		}
	}
	if last != "" {
		return last
	}
	if state.Plan != nil && state.Plan.Summary != "" {
		return state.Plan.Summary
	}
	return "workflow completed"
}
