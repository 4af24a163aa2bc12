package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zero-day-ai/conductor/internal/types"
)

const (
	// maxArtifactRefs bounds the artifact fan-out per request.
	maxArtifactRefs = 10

	defaultSearchLimit = 8
	defaultMaxParallel = 4
)

// Collector gathers evidence for a classified request by fanning out to
// the semantic searcher and the referenced artifacts concurrently. One
// branch failing never aborts the others.
type Collector struct {
	searcher    SemanticSearcher
	fetcher     ArtifactFetcher
	maxParallel int
	searchLimit int
	logger      *slog.Logger
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithMaxParallel bounds concurrent fetches.
func WithMaxParallel(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.maxParallel = n
		}
	}
}

// WithSearchLimit sets the semantic hit limit per query.
func WithSearchLimit(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.searchLimit = n
		}
	}
}

// WithLogger sets the collector logger.
func WithLogger(logger *slog.Logger) CollectorOption {
	return func(c *Collector) { c.logger = logger }
}

// NewCollector creates an evidence collector. Either collaborator may be
// nil; its branch is simply skipped.
func NewCollector(searcher SemanticSearcher, fetcher ArtifactFetcher, opts ...CollectorOption) *Collector {
	c := &Collector{
		searcher:    searcher,
		fetcher:     fetcher,
		maxParallel: defaultMaxParallel,
		searchLimit: defaultSearchLimit,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect builds an evidence pack for the request. refs beyond the
// artifact cap are dropped, not errored. The returned error is only ever
// the degraded-pack marker; the pack itself is always usable.
func (c *Collector) Collect(ctx context.Context, tenantID, workspaceID types.ID, query string, refs []string) (*Pack, error) {
	if len(refs) > maxArtifactRefs {
		c.logger.Warn("artifact references truncated",
			"requested", len(refs), "max", maxArtifactRefs)
		refs = refs[:maxArtifactRefs]
	}

	pack := &Pack{Query: query, CollectedAt: time.Now().UTC()}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, c.maxParallel)

	branches := 0
	run := func(name string, fn func() error) {
		branches++
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := fn(); err != nil {
				c.logger.Warn("evidence branch failed", "branch", name, "error", err)
				mu.Lock()
				pack.Failures = append(pack.Failures, fmt.Sprintf("%s: %v", name, err))
				mu.Unlock()
			}
		}()
	}

	if c.searcher != nil {
		run("semantic-search", func() error {
			hits, err := c.searcher.Search(ctx, Query{
				TenantID:    tenantID,
				WorkspaceID: workspaceID,
				Text:        query,
				Limit:       c.searchLimit,
			})
			if err != nil {
				return err
			}
			mu.Lock()
			pack.Hits = hits
			mu.Unlock()
			return nil
		})
	}

	if c.fetcher != nil {
		for _, ref := range refs {
			ref := ref
			run("artifact "+ref, func() error {
				content, err := c.fetcher.Fetch(ctx, tenantID, ref)
				if err != nil {
					return err
				}
				mu.Lock()
				pack.Artifacts = append(pack.Artifacts, Artifact{Ref: ref, Content: content})
				mu.Unlock()
				return nil
			})
		}
	}

	wg.Wait()

	if branches == 0 {
		pack.Confidence = 0
		return pack, nil
	}
	pack.Confidence = float64(branches-len(pack.Failures)) / float64(branches)

	if pack.IsPartial() {
		return pack, types.NewError(types.EVIDENCE_FETCH_PARTIAL,
			fmt.Sprintf("%d of %d evidence branches failed", len(pack.Failures), branches))
	}
	return pack, nil
}
