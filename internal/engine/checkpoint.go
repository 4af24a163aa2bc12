package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/zero-day-ai/conductor/internal/database"
	"github.com/zero-day-ai/conductor/internal/types"
)

// Checkpointer persists workflow state snapshots with integrity checksums
// and optimistic version control. Every save increments the version; a
// concurrent writer loses with a version conflict instead of silently
// overwriting.
type Checkpointer struct {
	dao *database.CheckpointDAO
}

// NewCheckpointer creates a checkpointer over the checkpoint table.
func NewCheckpointer(dao *database.CheckpointDAO) *Checkpointer {
	return &Checkpointer{dao: dao}
}

// Save snapshots the state. The state's version is incremented on success.
func (c *Checkpointer) Save(ctx context.Context, state *WorkflowState) error {
	state.Version++

	payload, err := json.Marshal(state)
	if err != nil {
		state.Version--
		return types.WrapError(types.CHECKPOINT_SAVE_FAILED, "failed to serialize workflow state", err)
	}

	rec := &database.CheckpointRecord{
		ThreadID:   state.ThreadID,
		Version:    state.Version,
		NodeCursor: state.Node,
		Status:     state.Status,
		State:      payload,
		Checksum:   checksum(payload),
	}
	if err := c.dao.Save(ctx, rec); err != nil {
		state.Version--
		return err
	}
	return nil
}

// Restore loads and verifies the latest snapshot for a thread.
func (c *Checkpointer) Restore(ctx context.Context, threadID types.ID) (*WorkflowState, error) {
	rec, err := c.dao.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}

	if checksum(rec.State) != rec.Checksum {
		return nil, types.NewError(types.CHECKPOINT_CORRUPT,
			"checkpoint checksum mismatch for thread "+threadID.String())
	}

	var state WorkflowState
	if err := json.Unmarshal(rec.State, &state); err != nil {
		return nil, types.WrapError(types.CHECKPOINT_RESTORE_FAILED, "failed to deserialize workflow state", err)
	}
	if state.CompletedGoals == nil {
		state.CompletedGoals = make(map[string]bool)
	}
	if state.StepResults == nil {
		state.StepResults = make(map[string]*StepResult)
	}
	if state.Decisions == nil {
		state.Decisions = make(map[string]ApprovalDecision)
	}
	return &state, nil
}

// ListResumable returns the states of every non-terminal thread.
func (c *Checkpointer) ListResumable(ctx context.Context) ([]*WorkflowState, error) {
	records, err := c.dao.ListResumable(ctx)
	if err != nil {
		return nil, err
	}

	states := make([]*WorkflowState, 0, len(records))
	for _, rec := range records {
		state, err := c.Restore(ctx, rec.ThreadID)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

// Prune removes terminal checkpoints older than ttl.
func (c *Checkpointer) Prune(ctx context.Context, ttl time.Duration) (int64, error) {
	return c.dao.PruneTerminal(ctx, ttl)
}

func checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
