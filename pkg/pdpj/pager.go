package pdpj

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Query selects one search strategy: exactly one query field and its value.
type Query struct {
	// Field is the PDPJ query parameter: FieldDocument, FieldName or
	// FieldOtherName.
	Field string
	Value string
	// ClassID restricts results to a class code when non-empty.
	ClassID string
}

// Search query fields accepted by the PDPJ search endpoint.
const (
	FieldDocument  = "cpfCnpjParte"
	FieldName      = "nomeParte"
	FieldOtherName = "outroNomeParte"
)

// SearchOptions bounds a paginated search.
type SearchOptions struct {
	MaxPages int
	MaxItems int
	// OversizedThreshold flags the result when the API-reported total
	// exceeds it. Zero disables the check.
	OversizedThreshold int
	// CheckpointDir enables per-page disk checkpoints when non-empty.
	// A rerun finding page_N.json present skips the network entirely.
	CheckpointDir string
	// OnPage, when set, is called after each non-empty page is accumulated
	// with the page index and its item count. Checkpointed pages fire too.
	OnPage func(page, count int)
}

// SearchResult is the accumulated outcome of one paginated search.
type SearchResult struct {
	Items []Process
	// Total is the API-reported total from the first page (falls back to
	// len(Items) when the API never reported one).
	Total int
	// Pages is the index of the last page visited, including an empty
	// terminator page.
	Pages int
	// Oversized is set when Total exceeded the configured threshold.
	Oversized bool
	// Partial is set when pagination stopped on an unexpected non-2xx
	// status. The accumulated items are returned without retrying.
	Partial bool
	// Origins counts items per query field for merged name searches.
	Origins map[string]int
}

// Search drives cursor pagination for one query, checkpointing every page.
// Pages are strictly sequential: page N+1 is never requested before page N's
// checkpoint is written.
func (c *Client) Search(ctx context.Context, q Query, opts SearchOptions) (*SearchResult, error) {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 100
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = 1000
	}

	params := url.Values{}
	params.Set(q.Field, q.Value)
	params.Set("siglaTribunal", c.opts.Tribunal)
	params.Set("tamanhoPagina", fmt.Sprint(c.opts.PageSize))
	if q.ClassID != "" {
		params.Set("idClasse", q.ClassID)
	}

	res := &SearchResult{Total: -1}
	var cursor []any

	page := 1
	for page <= opts.MaxPages {
		if len(cursor) > 0 {
			params.Set("searchAfter", cursorString(cursor))
		}

		raw, fromDisk := loadPage(opts.CheckpointDir, page)
		if raw == nil {
			resp, err := c.Get(ctx, c.opts.BaseURL, params, "")
			if err != nil {
				return nil, eris.Wrapf(err, "pdpj: search %s page %d", q.Field, page)
			}
			if resp.StatusCode != http.StatusOK {
				// Unexpected status ends the search without retrying;
				// whatever was accumulated is returned flagged partial.
				_ = resp.Body.Close()
				zap.L().Warn("pdpj search stopped on unexpected status",
					zap.String("field", q.Field),
					zap.Int("page", page),
					zap.Int("status", resp.StatusCode),
				)
				res.Partial = true
				break
			}
			raw, err = io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if err != nil {
				return nil, eris.Wrapf(err, "pdpj: read search page %d", page)
			}
		}

		var pg Page
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&pg); err != nil {
			return nil, eris.Wrapf(err, "pdpj: decode search page %d", page)
		}

		if res.Total < 0 {
			res.Total = pg.Total
			if opts.OversizedThreshold > 0 && pg.Total > opts.OversizedThreshold {
				res.Oversized = true
				zap.L().Warn("oversized search result",
					zap.String("field", q.Field),
					zap.Int("total", pg.Total),
				)
			}
		}

		if len(pg.Content) == 0 {
			break
		}

		// Checkpoint only non-error, non-empty pages, and before any
		// further page is requested.
		if !fromDisk {
			savePage(opts.CheckpointDir, page, raw)
		}

		res.Items = append(res.Items, pg.Content...)

		c.mu.Lock()
		c.stats.PagesOK++
		c.mu.Unlock()

		if opts.OnPage != nil {
			opts.OnPage(page, len(pg.Content))
		}

		if len(res.Items) >= opts.MaxItems {
			break
		}

		cursor = extractCursor(pg)
		if len(cursor) == 0 {
			break
		}
		page++
	}

	if page > opts.MaxPages {
		page = opts.MaxPages
	}
	res.Pages = page
	if res.Total < 0 {
		res.Total = len(res.Items)
	}
	return res, nil
}

// SearchByName queries both name fields in turn and merges the results by
// process number, first discovery wins. Discovery is strictly sequential;
// only detail downloads run in parallel. Origins records the per-field item
// counts.
func (c *Client) SearchByName(ctx context.Context, name string, opts SearchOptions) (*SearchResult, error) {
	fields := []string{FieldName, FieldOtherName}
	results := make([]*SearchResult, len(fields))

	for i, field := range fields {
		sub := opts
		if opts.CheckpointDir != "" {
			sub.CheckpointDir = filepath.Join(opts.CheckpointDir, field)
		}
		res, err := c.Search(ctx, Query{Field: field, Value: name}, sub)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}

	merged := &SearchResult{Origins: make(map[string]int)}
	seen := make(map[string]struct{})
	for i, field := range fields {
		res := results[i]
		merged.Origins[field] = len(res.Items)
		merged.Pages += res.Pages
		merged.Partial = merged.Partial || res.Partial
		merged.Oversized = merged.Oversized || res.Oversized
		for _, item := range res.Items {
			if item.Number == "" {
				continue
			}
			if _, ok := seen[item.Number]; ok {
				continue
			}
			seen[item.Number] = struct{}{}
			merged.Items = append(merged.Items, item)
		}
	}

	merged.Total = len(merged.Items)
	return merged, nil
}

// extractCursor prefers the explicit searchAfter field and falls back to the
// sort key of the last item. Absence of both ends pagination.
func extractCursor(pg Page) []any {
	if len(pg.SearchAfter) > 0 {
		return pg.SearchAfter
	}
	if n := len(pg.Content); n > 0 {
		return pg.Content[n-1].Sort
	}
	return nil
}

func cursorString(cursor []any) string {
	parts := make([]string, len(cursor))
	for i, v := range cursor {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}

func pagePath(dir string, page int) string {
	return filepath.Join(dir, fmt.Sprintf("page_%d.json", page))
}

// loadPage returns the checkpointed raw page, or nil when absent/unreadable.
func loadPage(dir string, page int) ([]byte, bool) {
	if dir == "" {
		return nil, false
	}
	raw, err := os.ReadFile(pagePath(dir, page))
	if err != nil {
		return nil, false
	}
	return raw, true
}

func savePage(dir string, page int, raw []byte) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		zap.L().Warn("checkpoint dir", zap.String("dir", dir), zap.Error(err))
		return
	}
	if err := os.WriteFile(pagePath(dir, page), raw, 0o644); err != nil {
		zap.L().Warn("checkpoint write", zap.String("dir", dir), zap.Int("page", page), zap.Error(err))
	}
}
