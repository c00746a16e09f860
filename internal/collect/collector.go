package collect

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dividalabs/litigio-cli/internal/cache"
	"github.com/dividalabs/litigio-cli/internal/docid"
	"github.com/dividalabs/litigio-cli/pkg/pdpj"
)

// Client is the API surface the collector consumes. *pdpj.Client satisfies it.
type Client interface {
	Searcher
	DetailFetcher
	Stats() pdpj.Stats
}

// Ledger records runs and per-entity outcomes. A nil Ledger disables the
// run history.
type Ledger interface {
	StartRun(ctx context.Context, runID string, startedAt time.Time) error
	RecordEntity(ctx context.Context, runID string, ent Entity, discovered, selected int, status string) error
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, stats StatsSnapshot) error
}

// Options is the collector's explicit configuration. Every knob is injected
// here; the collector reads no globals.
type Options struct {
	OutputDir          string
	ClassID            string
	MaxPages           int
	MaxItems           int
	OversizedThreshold int
	PriorityClassCode  int
	MaxPerTier         int
	MaxPerEntity       int
	MaxBranches        int
	Workers            int
	DownloadDetails    bool
	SearchDocument     bool
	SearchBranches     bool
	SearchName         bool
	ShutdownTimeout    time.Duration
	// Blacklist holds normalized documents excluded from collection. An
	// excluded entity is skipped before any search is issued.
	Blacklist []string
}

// Collector drives a full collection run.
type Collector struct {
	client Client
	caches *cache.Store
	errlog *cache.ErrorLog
	stats  *RunStats
	bus    *Bus
	ledger Ledger
	opts   Options

	excluded map[string]struct{}
}

// Summary is the final accounting of one run.
type Summary struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Run        StatsSnapshot  `json:"run"`
	Client     pdpj.Stats     `json:"client"`
	Caches     map[string]int `json:"caches"`
	Dropped    int64          `json:"events_dropped"`
}

// New builds a collector. bus and ledger may be nil.
func New(client Client, caches *cache.Store, errlog *cache.ErrorLog, bus *Bus, ledger Ledger, opts Options) *Collector {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	excluded := make(map[string]struct{}, len(opts.Blacklist))
	for _, d := range opts.Blacklist {
		if n := docid.Normalize(d); n != "" {
			excluded[n] = struct{}{}
		}
	}
	return &Collector{
		client:   client,
		caches:   caches,
		errlog:   errlog,
		stats:    &RunStats{},
		bus:      bus,
		ledger:   ledger,
		opts:     opts,
		excluded: excluded,
	}
}

// Stats returns the live run counters.
func (c *Collector) Stats() StatsSnapshot { return c.stats.Snapshot() }

// Run collects every entity. Per-entity failures are isolated: one entity
// failing never aborts the run.
func (c *Collector) Run(ctx context.Context, entities []Entity) (*Summary, error) {
	runID := uuid.NewString()
	started := time.Now().UTC()

	if err := os.MkdirAll(c.opts.OutputDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "collect: create output dir")
	}
	if c.ledger != nil {
		if err := c.ledger.StartRun(ctx, runID, started); err != nil {
			return nil, err
		}
	}
	c.bus.Publish(Event{Type: EventRunStarted, Detail: runID, Count: len(entities)})
	zap.L().Info("run started", zap.String("run_id", runID), zap.Int("entities", len(entities)))

	var pool *WorkerPool
	if c.opts.DownloadDetails {
		pool = NewWorkerPool(c.opts.Workers, c.client, c.caches, c.errlog, c.stats, c.bus)
	}

	for _, ent := range entities {
		if err := ctx.Err(); err != nil {
			zap.L().Warn("run cancelled", zap.String("run_id", runID))
			break
		}
		doc := docid.Normalize(ent.Document)
		if _, skip := c.excluded[doc]; skip {
			c.stats.AddSkipped()
			c.bus.Publish(Event{Type: EventEntitySkipped, Entity: ent.Name, Document: doc})
			c.recordEntity(ctx, runID, ent, 0, 0, "excluded")
			zap.L().Info("entity excluded", zap.String("name", ent.Name), zap.String("document", doc))
			continue
		}

		c.stats.AddEntity()
		c.bus.Publish(Event{Type: EventEntityStarted, Entity: ent.Name, Document: doc})
		discovered, selected, err := c.processEntity(ctx, runID, ent, doc, pool)
		if err != nil {
			c.stats.AddFailed()
			c.errlog.Append(cache.ErrorRecord{Document: doc, Kind: "entity", Detail: err.Error()})
			c.recordEntity(ctx, runID, ent, discovered, selected, "failed")
			zap.L().Error("entity failed", zap.String("name", ent.Name), zap.Error(err))
			continue
		}
		c.recordEntity(ctx, runID, ent, discovered, selected, "ok")
		c.bus.Publish(Event{Type: EventEntityFinished, Entity: ent.Name, Document: doc, Count: discovered})
	}

	if pool != nil {
		pool.Shutdown(c.opts.ShutdownTimeout)
	}

	if err := c.errlog.WriteFile(filepath.Join(c.opts.OutputDir, "errors.json")); err != nil {
		zap.L().Warn("error log write", zap.Error(err))
	}
	if err := c.caches.Flush(); err != nil {
		zap.L().Warn("cache flush", zap.Error(err))
	}

	finished := time.Now().UTC()
	sum := &Summary{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: finished,
		Run:        c.stats.Snapshot(),
		Client:     c.client.Stats(),
		Caches:     c.caches.Sizes(),
		Dropped:    c.bus.Dropped(),
	}
	if c.ledger != nil {
		if err := c.ledger.FinishRun(ctx, runID, finished, sum.Run); err != nil {
			zap.L().Warn("ledger finish", zap.Error(err))
		}
	}
	c.bus.Publish(Event{Type: EventRunFinished, Detail: runID})
	zap.L().Info("run finished",
		zap.String("run_id", runID),
		zap.Int("discovered", sum.Run.Discovered),
		zap.Int("details_saved", sum.Run.DetailsSaved),
	)
	return sum, nil
}

func (c *Collector) processEntity(ctx context.Context, runID string, ent Entity, doc string, pool *WorkerPool) (discovered, selected int, err error) {
	// A panic in a search strategy or file write fails this entity only;
	// the run keeps going.
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("collect: entity %s panicked: %v", ent.Name, r)
		}
	}()

	entityDir := filepath.Join(c.opts.OutputDir, FileName(ent.Name))

	rep, err := Fanout(ctx, c.client, c.caches, ent, FanoutOptions{
		ClassID:            c.opts.ClassID,
		MaxPages:           c.opts.MaxPages,
		MaxItems:           c.opts.MaxItems,
		OversizedThreshold: c.opts.OversizedThreshold,
		MaxBranches:        c.opts.MaxBranches,
		ByDocument:         c.opts.SearchDocument,
		ByBranches:         c.opts.SearchBranches,
		ByName:             c.opts.SearchName,
		CheckpointDir:      entityDir,
		OnPage: func(page, count int) {
			c.bus.Publish(Event{Type: EventPageAdvanced, Entity: ent.Name, Document: doc, Page: page, Count: count})
		},
	})
	if err != nil {
		return 0, 0, err
	}
	if rep.Oversized {
		c.stats.AddOversized()
		c.caches.MarkOversized(doc, rep.Total)
	}
	if rep.Partial {
		c.stats.AddPartial()
	}

	items := rep.Pool.Items()
	c.stats.AddDiscovered(len(items))
	c.bus.Publish(Event{Type: EventSearchDone, Entity: ent.Name, Document: doc, Count: len(items)})

	sel := Classify(items, doc, c.opts.PriorityClassCode)
	picked := sel.Apply(c.opts.MaxPerTier, c.opts.MaxPerEntity)
	c.stats.AddSelected(len(picked))

	if err := c.writeEntityFiles(entityDir, runID, ent, doc, rep, sel, picked); err != nil {
		return len(items), len(picked), err
	}

	if pool != nil {
		for _, item := range picked {
			pool.Enqueue(DetailTask{
				Number:   item.Number,
				Path:     filepath.Join(entityDir, "details", FileName(item.Number)+".json"),
				Document: doc,
			})
		}
	}
	return len(items), len(picked), nil
}

type entityRecord struct {
	Number  string   `json:"numeroProcesso"`
	Tier    string   `json:"tier"`
	Origins []string `json:"origins"`
}

type entityMetadata struct {
	RunID      string         `json:"run_id"`
	Entity     Entity         `json:"entity"`
	Document   string         `json:"document"`
	Discovered int            `json:"discovered"`
	Selected   int            `json:"selected"`
	Total      int            `json:"api_total"`
	Pages      int            `json:"pages"`
	Branches   []string       `json:"branches,omitempty"`
	Tiers      map[string]int `json:"tiers"`
	Oversized  bool           `json:"oversized"`
	Partial    bool           `json:"partial"`
	At         time.Time      `json:"at"`
}

func (c *Collector) writeEntityFiles(dir, runID string, ent Entity, doc string, rep *SearchReport, sel *Selection, picked []pdpj.Process) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "collect: entity dir")
	}

	records := make([]entityRecord, 0, rep.Pool.Len())
	for _, e := range rep.Pool.Entries() {
		records = append(records, entityRecord{
			Number:  e.Item.Number,
			Tier:    sel.Tier(e.Item.Number),
			Origins: e.Origins,
		})
	}
	if err := writeFileJSON(filepath.Join(dir, "processes.json"), records); err != nil {
		return err
	}

	meta := entityMetadata{
		RunID:      runID,
		Entity:     ent,
		Document:   doc,
		Discovered: rep.Pool.Len(),
		Selected:   len(picked),
		Total:      rep.Total,
		Pages:      rep.Pages,
		Branches:   rep.Branches,
		Tiers: map[string]int{
			TierFiscal:   len(sel.Fiscal),
			TierClaimant: len(sel.Claimant),
			TierOther:    len(sel.Other),
		},
		Oversized: rep.Oversized,
		Partial:   rep.Partial,
		At:        time.Now().UTC(),
	}
	return writeFileJSON(filepath.Join(dir, "metadata.json"), meta)
}

// CollectProcesses downloads details for explicitly named processes, outside
// any entity fan-out.
func (c *Collector) CollectProcesses(ctx context.Context, numbers []string) (*Summary, error) {
	runID := uuid.NewString()
	started := time.Now().UTC()
	dir := filepath.Join(c.opts.OutputDir, "details")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "collect: create output dir")
	}

	pool := NewWorkerPool(c.opts.Workers, c.client, c.caches, c.errlog, c.stats, c.bus)
	for _, n := range numbers {
		if err := ctx.Err(); err != nil {
			break
		}
		pool.Enqueue(DetailTask{Number: n, Path: filepath.Join(dir, FileName(n)+".json")})
	}
	pool.Shutdown(c.opts.ShutdownTimeout)

	if err := c.errlog.WriteFile(filepath.Join(c.opts.OutputDir, "errors.json")); err != nil {
		zap.L().Warn("error log write", zap.Error(err))
	}
	if err := c.caches.Flush(); err != nil {
		zap.L().Warn("cache flush", zap.Error(err))
	}
	return &Summary{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Run:        c.stats.Snapshot(),
		Client:     c.client.Stats(),
		Caches:     c.caches.Sizes(),
		Dropped:    c.bus.Dropped(),
	}, nil
}

func (c *Collector) recordEntity(ctx context.Context, runID string, ent Entity, discovered, selected int, status string) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.RecordEntity(ctx, runID, ent, discovered, selected, status); err != nil {
		zap.L().Warn("ledger entity", zap.String("entity", ent.Name), zap.Error(err))
	}
}

func writeFileJSON(path string, data any) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "collect: encode %s", path)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return eris.Wrapf(err, "collect: write %s", path)
	}
	return nil
}
