package evidence

import (
	"context"
	"time"

	"github.com/zero-day-ai/conductor/internal/types"
)

// Hit is one ranked snippet returned by the semantic-search collaborator.
type Hit struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Artifact is the fetched content of an external reference named in the
// request (ticket, document, URL).
type Artifact struct {
	Ref     string `json:"ref"`
	Content string `json:"content"`
}

// Pack is the collapsed result of evidence gathering. A pack with failures
// is still usable; Confidence tells the planner how much to trust it.
type Pack struct {
	Query               string     `json:"query"`
	Hits                []Hit      `json:"hits,omitempty"`
	Artifacts           []Artifact `json:"artifacts,omitempty"`
	ConversationSummary string     `json:"conversation_summary,omitempty"`
	Failures            []string   `json:"failures,omitempty"`
	Confidence          float64    `json:"confidence"`
	CollectedAt         time.Time  `json:"collected_at"`
}

// IsPartial reports whether any branch of the fan-out failed.
func (p *Pack) IsPartial() bool {
	return len(p.Failures) > 0
}

// Query scopes a semantic search to a tenant and workspace. Every
// retrieval call carries the scope ids from the workflow state.
type Query struct {
	TenantID    types.ID
	WorkspaceID types.ID
	Text        string
	Limit       int
}

// SemanticSearcher is the consumed semantic-retrieval collaborator.
// Indexing and search internals live outside the engine.
type SemanticSearcher interface {
	Search(ctx context.Context, q Query) ([]Hit, error)
}

// ArtifactFetcher resolves one external reference to its content.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, tenantID types.ID, ref string) (string, error)
}
