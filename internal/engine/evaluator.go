package engine

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/zero-day-ai/conductor/internal/planner"
)

// Verdict is the evaluator's judgment of one step outcome.
type Verdict string

const (
	VerdictOK      Verdict = "ok"
	VerdictWarning Verdict = "warning"
	VerdictBlocked Verdict = "blocked"
	VerdictFailed  Verdict = "failed"
)

// Aborts reports whether the verdict ends the run.
func (v Verdict) Aborts() bool {
	return v == VerdictBlocked || v == VerdictFailed
}

// Evaluation is the evaluator's full result for one step.
type Evaluation struct {
	Verdict Verdict  `json:"verdict"`
	Reasons []string `json:"reasons,omitempty"`
}

// Evaluator checks every EXECUTE and TRACKER_OP outcome against the
// workspace policy before the workflow advances.
type Evaluator struct {
	forbiddenPaths []string
	maxChanged     int
	logger         *slog.Logger
}

// NewEvaluator creates an evaluator. maxChanged <= 0 disables the
// changed-artifact ceiling.
func NewEvaluator(forbiddenPaths []string, maxChanged int, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		forbiddenPaths: forbiddenPaths,
		maxChanged:     maxChanged,
		logger:         logger,
	}
}

// Evaluate judges one step result. RESPOND steps pass unless they failed;
// side-effect steps additionally face the path and ceiling checks.
func (e *Evaluator) Evaluate(step planner.Step, result *StepResult) Evaluation {
	if !result.Success {
		return Evaluation{
			Verdict: VerdictFailed,
			Reasons: []string{fmt.Sprintf("step %s reported failure: %s", step.ID, result.Summary)},
		}
	}
	if step.Type == planner.StepTypeRespond {
		return Evaluation{Verdict: VerdictOK}
	}

	var reasons []string
	for _, artifact := range result.SideEffects {
		if pattern, hit := e.matchForbidden(artifact); hit {
			reasons = append(reasons,
				fmt.Sprintf("artifact %q matches forbidden path pattern %q", artifact, pattern))
		}
	}
	if len(reasons) > 0 {
		e.logger.Warn("step blocked by policy", "step_id", step.ID, "reasons", reasons)
		return Evaluation{Verdict: VerdictBlocked, Reasons: reasons}
	}

	if e.maxChanged > 0 && len(result.SideEffects) > e.maxChanged {
		return Evaluation{
			Verdict: VerdictBlocked,
			Reasons: []string{fmt.Sprintf("step %s changed %d artifacts, ceiling is %d",
				step.ID, len(result.SideEffects), e.maxChanged)},
		}
	}

	if step.Type == planner.StepTypeExecute && len(result.SideEffects) == 0 {
		return Evaluation{
			Verdict: VerdictWarning,
			Reasons: []string{fmt.Sprintf("execute step %s reported no changed artifacts", step.ID)},
		}
	}
	return Evaluation{Verdict: VerdictOK}
}

func (e *Evaluator) matchForbidden(artifact string) (string, bool) {
	for _, pattern := range e.forbiddenPaths {
		if matchPath(pattern, artifact) {
			return pattern, true
		}
	}
	return "", false
}

// matchPath matches slash-separated path patterns where "**" spans any
// number of segments and single segments use filepath.Match semantics.
func matchPath(pattern, path string) bool {
	return matchSegments(
		strings.Split(strings.Trim(pattern, "/"), "/"),
		strings.Split(strings.Trim(path, "/"), "/"),
	)
}

func matchSegments(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return len(parts) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchSegments(pattern[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	ok, err := filepath.Match(pattern[0], parts[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], parts[1:])
}
