package evidence

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zero-day-ai/conductor/internal/types"
)

// maxSearchFileSize bounds how much of a workspace file the keyword
// searcher will read.
const maxSearchFileSize = 256 * 1024

// WorkspaceStore serves evidence from per-tenant workspace directories.
// It implements both retrieval collaborators: keyword search over
// workspace files and artifact fetch by relative path. Deployments with a
// real semantic index swap in their own SemanticSearcher; this keeps the
// engine usable without one.
type WorkspaceStore struct {
	root string
}

// NewWorkspaceStore creates a store rooted at root, which holds one
// subdirectory per tenant id.
func NewWorkspaceStore(root string) *WorkspaceStore {
	return &WorkspaceStore{root: root}
}

var (
	_ SemanticSearcher = (*WorkspaceStore)(nil)
	_ ArtifactFetcher  = (*WorkspaceStore)(nil)
)

// Search scores tenant workspace files by query term occurrence and
// returns the top hits. A missing tenant directory yields no hits, not an
// error.
func (s *WorkspaceStore) Search(ctx context.Context, q Query) ([]Hit, error) {
	dir, err := s.tenantDir(q.TenantID)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	terms := searchTerms(q.Text)
	if len(terms) == 0 {
		return nil, nil
	}

	var hits []Hit
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxSearchFileSize {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		content := string(data)
		score := scoreContent(content, terms)
		if score == 0 {
			return nil
		}

		rel, _ := filepath.Rel(dir, path)
		hits = append(hits, Hit{
			Source:  rel,
			Content: excerpt(content, terms[0]),
			Score:   score,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	limit := q.Limit
	if limit <= 0 || limit > len(hits) {
		limit = len(hits)
	}
	return hits[:limit], nil
}

// Fetch reads one workspace file by tenant-relative path. References
// escaping the tenant subtree are rejected.
func (s *WorkspaceStore) Fetch(ctx context.Context, tenantID types.ID, ref string) (string, error) {
	dir, err := s.tenantDir(tenantID)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, filepath.FromSlash(ref))
	if !strings.HasPrefix(filepath.Clean(path), dir+string(filepath.Separator)) {
		return "", fmt.Errorf("reference %q escapes the tenant workspace", ref)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *WorkspaceStore) tenantDir(tenantID types.ID) (string, error) {
	if tenantID.String() == "" {
		return "", fmt.Errorf("tenant id is required for workspace access")
	}
	return filepath.Join(s.root, tenantID.String()), nil
}

func searchTerms(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

func scoreContent(content string, terms []string) float64 {
	lower := strings.ToLower(content)
	score := 0.0
	for _, term := range terms {
		score += float64(strings.Count(lower, term))
	}
	return score
}

// excerpt returns the line containing the first term occurrence, or the
// first line when the term only appears case-folded elsewhere.
func excerpt(content, term string) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(strings.ToLower(line), term) {
			return strings.TrimSpace(line)
		}
	}
	if idx := strings.IndexByte(content, '\n'); idx > 0 {
		return strings.TrimSpace(content[:idx])
	}
	return strings.TrimSpace(content)
}
