package evidence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/conductor/internal/types"
)

func writeWorkspaceFile(t *testing.T, root string, tenant types.ID, rel, content string) {
	t.Helper()
	path := filepath.Join(root, tenant.String(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWorkspaceStore_SearchRanksByTermCount(t *testing.T) {
	root := t.TempDir()
	tenant := types.NewID()
	writeWorkspaceFile(t, root, tenant, "docs/retry.md", "retry policy: retry with backoff, retry budget")
	writeWorkspaceFile(t, root, tenant, "docs/other.md", "deployment checklist")
	writeWorkspaceFile(t, root, tenant, "src/client.go", "// retry once on timeout")

	store := NewWorkspaceStore(root)
	hits, err := store.Search(context.Background(), Query{
		TenantID: tenant,
		Text:     "retry behavior",
		Limit:    2,
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "docs/retry.md", hits[0].Source)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestWorkspaceStore_SearchIsTenantScoped(t *testing.T) {
	root := t.TempDir()
	tenantA := types.NewID()
	tenantB := types.NewID()
	writeWorkspaceFile(t, root, tenantA, "notes.md", "shared secret rotation")

	store := NewWorkspaceStore(root)
	hits, err := store.Search(context.Background(), Query{TenantID: tenantB, Text: "secret rotation"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestWorkspaceStore_FetchRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	tenant := types.NewID()
	writeWorkspaceFile(t, root, tenant, "readme.md", "hello")

	store := NewWorkspaceStore(root)

	content, err := store.Fetch(context.Background(), tenant, "readme.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)

	_, err = store.Fetch(context.Background(), tenant, "../"+types.NewID().String()+"/readme.md")
	require.Error(t, err)

	_, err = store.Fetch(context.Background(), tenant, "../../etc/passwd")
	require.Error(t, err)
}

func TestWorkspaceStore_FetchRequiresTenant(t *testing.T) {
	store := NewWorkspaceStore(t.TempDir())
	_, err := store.Fetch(context.Background(), types.ID(""), "readme.md")
	require.Error(t, err)
}
