package collect

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dividalabs/litigio-cli/internal/cache"
	"github.com/dividalabs/litigio-cli/pkg/pdpj"
)

// fakeClient serves canned search results per document/name and successful
// detail downloads, counting every call.
type fakeClient struct {
	mu          sync.Mutex
	searchCalls int
	byValue     map[string]*pdpj.SearchResult
}

func (f *fakeClient) Search(_ context.Context, q pdpj.Query, _ pdpj.SearchOptions) (*pdpj.SearchResult, error) {
	f.mu.Lock()
	f.searchCalls++
	f.mu.Unlock()
	if res, ok := f.byValue[q.Value]; ok {
		return res, nil
	}
	return &pdpj.SearchResult{Pages: 1}, nil
}

func (f *fakeClient) SearchByName(ctx context.Context, name string, opts pdpj.SearchOptions) (*pdpj.SearchResult, error) {
	return f.Search(ctx, pdpj.Query{Field: pdpj.FieldName, Value: name}, opts)
}

func (f *fakeClient) Detail(_ context.Context, number string) ([]byte, error) {
	return []byte(`{"numeroProcesso":"` + number + `"}`), nil
}

func (f *fakeClient) Stats() pdpj.Stats { return pdpj.Stats{} }

func (f *fakeClient) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searchCalls
}

// memLedger records ledger calls in memory.
type memLedger struct {
	mu       sync.Mutex
	started  []string
	finished []string
	entities map[string]string // document -> status
}

func newMemLedger() *memLedger {
	return &memLedger{entities: make(map[string]string)}
}

func (l *memLedger) StartRun(_ context.Context, runID string, _ time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, runID)
	return nil
}

func (l *memLedger) FinishRun(_ context.Context, runID string, _ time.Time, _ StatsSnapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished = append(l.finished, runID)
	return nil
}

func (l *memLedger) RecordEntity(_ context.Context, _ string, ent Entity, _, _ int, status string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entities[ent.Document] = status
	return nil
}

func newTestCollector(t *testing.T, client Client, opts Options) (*Collector, *memLedger) {
	t.Helper()
	caches, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	if opts.OutputDir == "" {
		opts.OutputDir = t.TempDir()
	}
	ledger := newMemLedger()
	c := New(client, caches, cache.NewErrorLog(100), NewBus(64), ledger, opts)
	return c, ledger
}

func TestRunExcludedEntityIssuesNoSearches(t *testing.T) {
	client := &fakeClient{}
	col, ledger := newTestCollector(t, client, Options{
		SearchDocument: true,
		SearchName:     true,
		Blacklist:      []string{"11.222.333/0001-81"},
	})

	sum, err := col.Run(context.Background(), []Entity{
		{Name: "ACME LTDA", Document: "11222333000181"},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, client.searchCount())
	assert.Equal(t, 1, sum.Run.EntitiesSkipped)
	assert.Equal(t, 0, sum.Run.Entities)
	assert.Equal(t, "excluded", ledger.entities["11222333000181"])
}

func TestRunCollectsAndSelects(t *testing.T) {
	fiscal := fiscalProc("f1")
	client := &fakeClient{byValue: map[string]*pdpj.SearchResult{
		"11222333000181": {
			Items: []pdpj.Process{fiscal, otherProc("o1"), otherProc("o2")},
			Total: 3, Pages: 2,
		},
	}}
	outDir := t.TempDir()
	col, ledger := newTestCollector(t, client, Options{
		OutputDir:         outDir,
		SearchDocument:    true,
		PriorityClassCode: 1116,
		MaxPerTier:        1,
		MaxPerEntity:      2,
		DownloadDetails:   true,
		Workers:           2,
	})

	ent := Entity{Name: "ACME LTDA", Document: "11222333000181"}
	sum, err := col.Run(context.Background(), []Entity{ent})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Run.Entities)
	assert.Equal(t, 3, sum.Run.Discovered)
	assert.Equal(t, 2, sum.Run.Selected)
	assert.Equal(t, 2, sum.Run.DetailsSaved)
	assert.Equal(t, "ok", ledger.entities["11222333000181"])
	require.Len(t, ledger.started, 1)
	assert.Equal(t, ledger.started, ledger.finished)

	entityDir := filepath.Join(outDir, "ACME_LTDA")

	raw, err := os.ReadFile(filepath.Join(entityDir, "processes.json"))
	require.NoError(t, err)
	var records []entityRecord
	require.NoError(t, json.Unmarshal(raw, &records))
	require.Len(t, records, 3)
	assert.Equal(t, TierFiscal, records[0].Tier)

	raw, err = os.ReadFile(filepath.Join(entityDir, "metadata.json"))
	require.NoError(t, err)
	var meta entityMetadata
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, 3, meta.Discovered)
	assert.Equal(t, 2, meta.Selected)
	assert.Equal(t, 1, meta.Tiers[TierFiscal])

	// the fiscal process detail was downloaded
	_, err = os.Stat(filepath.Join(entityDir, "details", "f1.json"))
	require.NoError(t, err)

	// errors.json written even when empty
	_, err = os.Stat(filepath.Join(outDir, "errors.json"))
	require.NoError(t, err)
}

func TestRunIsolatesEntityFailures(t *testing.T) {
	client := &failingSearchClient{failFor: "99999999000191"}
	col, ledger := newTestCollector(t, client, Options{SearchDocument: true})

	sum, err := col.Run(context.Background(), []Entity{
		{Name: "Bad Co", Document: "99999999000191"},
		{Name: "Good Co", Document: "11222333000181"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Run.EntitiesFailed)
	assert.Equal(t, 2, sum.Run.Entities)
	assert.Equal(t, "failed", ledger.entities["99999999000191"])
	assert.Equal(t, "ok", ledger.entities["11222333000181"])
}

type failingSearchClient struct {
	fakeClient
	failFor string
}

func (f *failingSearchClient) Search(ctx context.Context, q pdpj.Query, opts pdpj.SearchOptions) (*pdpj.SearchResult, error) {
	if q.Value == f.failFor {
		return nil, eris.New("search blew up")
	}
	return f.fakeClient.Search(ctx, q, opts)
}

type panickingSearchClient struct {
	fakeClient
	panicFor string
}

func (f *panickingSearchClient) Search(ctx context.Context, q pdpj.Query, opts pdpj.SearchOptions) (*pdpj.SearchResult, error) {
	if q.Value == f.panicFor {
		panic("searcher blew up")
	}
	return f.fakeClient.Search(ctx, q, opts)
}

func TestRunRecoversEntityPanics(t *testing.T) {
	client := &panickingSearchClient{panicFor: "99999999000191"}
	col, ledger := newTestCollector(t, client, Options{SearchDocument: true})

	sum, err := col.Run(context.Background(), []Entity{
		{Name: "Bad Co", Document: "99999999000191"},
		{Name: "Good Co", Document: "11222333000181"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Run.EntitiesFailed)
	assert.Equal(t, "failed", ledger.entities["99999999000191"])
	assert.Equal(t, "ok", ledger.entities["11222333000181"])
	// the run still finished and was closed in the ledger
	require.Len(t, ledger.finished, 1)
}

func TestCollectProcesses(t *testing.T) {
	client := &fakeClient{}
	outDir := t.TempDir()
	col, _ := newTestCollector(t, client, Options{OutputDir: outDir, Workers: 2})

	sum, err := col.CollectProcesses(context.Background(), []string{"0001", "0002"})
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Run.DetailsSaved)
	for _, n := range []string{"0001", "0002"} {
		_, err := os.Stat(filepath.Join(outDir, "details", n+".json"))
		require.NoError(t, err)
	}
}

type flakyDetailClient struct {
	fakeClient
	failFor string
}

func (f *flakyDetailClient) Detail(ctx context.Context, number string) ([]byte, error) {
	if number == f.failFor {
		return nil, eris.New("detail blew up")
	}
	return f.fakeClient.Detail(ctx, number)
}

func TestCollectProcessesWritesErrorLog(t *testing.T) {
	client := &flakyDetailClient{failFor: "0002"}
	outDir := t.TempDir()
	col, _ := newTestCollector(t, client, Options{OutputDir: outDir, Workers: 1})

	sum, err := col.CollectProcesses(context.Background(), []string{"0001", "0002"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Run.DetailsFailed)

	raw, err := os.ReadFile(filepath.Join(outDir, "errors.json"))
	require.NoError(t, err)
	var recs []cache.ErrorRecord
	require.NoError(t, json.Unmarshal(raw, &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "0002", recs[0].Process)
}
