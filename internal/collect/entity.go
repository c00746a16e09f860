// Package collect orchestrates a collection run: fan-out searches per entity,
// dedup and prioritization of the discovered processes, and the bounded
// worker pool that downloads case details.
package collect

import (
	"github.com/dividalabs/litigio-cli/internal/docid"
	"github.com/dividalabs/litigio-cli/pkg/pdpj"
)

// Entity is one subject of collection: a person or organization whose
// processes the run discovers.
type Entity struct {
	ID       string
	Name     string
	Document string
}

// Kind returns the validated document kind of the entity.
func (e Entity) Kind() docid.Kind {
	return docid.DetectKind(e.Document)
}

// PoolEntry is one deduplicated process plus every search origin that
// discovered it.
type PoolEntry struct {
	Item    pdpj.Process
	Origins []string
}

// Pool accumulates processes across search strategies, deduplicating by
// process number while preserving first-discovery order.
type Pool struct {
	order   []string
	entries map[string]*PoolEntry
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{entries: make(map[string]*PoolEntry)}
}

// Add merges one batch of items discovered by origin. A process seen before
// keeps its first record; only the origin list grows.
func (p *Pool) Add(origin string, items []pdpj.Process) {
	for _, item := range items {
		if item.Number == "" {
			continue
		}
		if e, ok := p.entries[item.Number]; ok {
			e.Origins = appendOrigin(e.Origins, origin)
			continue
		}
		p.entries[item.Number] = &PoolEntry{Item: item, Origins: []string{origin}}
		p.order = append(p.order, item.Number)
	}
}

// Len returns the number of distinct processes pooled.
func (p *Pool) Len() int {
	return len(p.order)
}

// Items returns the pooled processes in first-discovery order.
func (p *Pool) Items() []pdpj.Process {
	out := make([]pdpj.Process, 0, len(p.order))
	for _, n := range p.order {
		out = append(out, p.entries[n].Item)
	}
	return out
}

// Entries returns the pooled entries in first-discovery order.
func (p *Pool) Entries() []*PoolEntry {
	out := make([]*PoolEntry, 0, len(p.order))
	for _, n := range p.order {
		out = append(out, p.entries[n])
	}
	return out
}

func appendOrigin(origins []string, origin string) []string {
	for _, o := range origins {
		if o == origin {
			return origins
		}
	}
	return append(origins, origin)
}
