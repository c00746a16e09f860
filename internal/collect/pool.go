package collect

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dividalabs/litigio-cli/internal/cache"
	"github.com/dividalabs/litigio-cli/pkg/pdpj"
)

// DetailFetcher is the slice of the API client the pool needs.
type DetailFetcher interface {
	Detail(ctx context.Context, number string) ([]byte, error)
}

// DetailTask asks a worker to download one process detail to Path.
type DetailTask struct {
	Number   string
	Path     string
	Document string
}

// WorkerPool downloads case details with bounded concurrency. A 404 is a
// permanent fact recorded in the not-found cache; any other failure is
// logged and the process left unmarked so a later run retries it.
type WorkerPool struct {
	fetcher DetailFetcher
	caches  *cache.Store
	errlog  *cache.ErrorLog
	stats   *RunStats
	bus     *Bus

	tasks   chan DetailTask
	pending sync.WaitGroup
	stop    chan struct{}
	workers errgroup.Group
}

// NewWorkerPool starts n workers (minimum 1) consuming detail tasks.
func NewWorkerPool(n int, fetcher DetailFetcher, caches *cache.Store, errlog *cache.ErrorLog, stats *RunStats, bus *Bus) *WorkerPool {
	if n < 1 {
		n = 1
	}
	p := &WorkerPool{
		fetcher: fetcher,
		caches:  caches,
		errlog:  errlog,
		stats:   stats,
		bus:     bus,
		tasks:   make(chan DetailTask, n*4),
		stop:    make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		p.workers.Go(p.worker)
	}
	return p
}

// Enqueue submits a task. Blocks when the buffer is full.
func (p *WorkerPool) Enqueue(t DetailTask) {
	p.pending.Add(1)
	p.tasks <- t
}

// Shutdown waits for every enqueued task, then stops the workers. Workers
// that fail to exit within timeout are abandoned with a warning; they hold
// no locks, so abandonment cannot deadlock the run.
func (p *WorkerPool) Shutdown(timeout time.Duration) {
	p.pending.Wait()
	close(p.stop)

	finished := make(chan struct{})
	go func() {
		_ = p.workers.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(timeout):
		zap.L().Warn("detail workers did not stop in time, abandoning", zap.Duration("timeout", timeout))
	}
}

func (p *WorkerPool) worker() error {
	for {
		select {
		case <-p.stop:
			return nil
		case t := <-p.tasks:
			p.handle(t)
			p.pending.Done()
		}
	}
}

func (p *WorkerPool) handle(t DetailTask) {
	if p.caches.IsNotFound(t.Number) {
		p.stats.AddCached()
		return
	}
	if _, err := os.Stat(t.Path); err == nil {
		p.stats.AddCached()
		p.caches.MarkProcessed(t.Number, "ok")
		return
	}

	body, err := p.fetcher.Detail(context.Background(), t.Number)
	switch {
	case err == nil:
		if werr := writeDetail(t.Path, body); werr != nil {
			p.recordFailure(t, "write", werr)
			return
		}
		p.caches.MarkProcessed(t.Number, "ok")
		p.stats.AddSaved()
		p.bus.Publish(Event{Type: EventDetailSaved, Process: t.Number, Document: t.Document})

	case eris.Is(err, pdpj.ErrNotFound):
		p.caches.MarkNotFound(t.Number)
		p.stats.AddNotFound()
		p.bus.Publish(Event{Type: EventDetailNotFound, Process: t.Number, Document: t.Document})
		zap.L().Info("process not found, cached", zap.String("process", t.Number))

	default:
		// Transient or unknown failure: log it but leave the process
		// unmarked so the next run attempts it again.
		p.recordFailure(t, "detail", err)
	}
}

func (p *WorkerPool) recordFailure(t DetailTask, kind string, err error) {
	p.stats.AddDetailFailure()
	p.errlog.Append(cache.ErrorRecord{
		Process:  t.Number,
		Document: t.Document,
		Kind:     kind,
		Detail:   err.Error(),
	})
	p.bus.Publish(Event{Type: EventDetailFailed, Process: t.Number, Document: t.Document, Detail: err.Error()})
	zap.L().Warn("detail download failed",
		zap.String("process", t.Number),
		zap.Error(err),
	)
}

func writeDetail(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "collect: detail dir")
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return eris.Wrap(err, "collect: write detail")
	}
	return nil
}
