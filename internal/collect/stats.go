package collect

import "sync"

// RunStats aggregates counters across every goroutine of a run.
type RunStats struct {
	mu sync.Mutex
	s  StatsSnapshot
}

// StatsSnapshot is a point-in-time copy of the run counters.
type StatsSnapshot struct {
	Entities        int `json:"entities"`
	EntitiesSkipped int `json:"entities_skipped"`
	EntitiesFailed  int `json:"entities_failed"`
	Discovered      int `json:"discovered"`
	Selected        int `json:"selected"`
	DetailsSaved    int `json:"details_saved"`
	DetailsCached   int `json:"details_cached"`
	DetailsNotFound int `json:"details_not_found"`
	DetailsFailed   int `json:"details_failed"`
	Oversized       int `json:"oversized"`
	PartialSearches int `json:"partial_searches"`
}

func (r *RunStats) AddEntity()        { r.add(func(s *StatsSnapshot) { s.Entities++ }) }
func (r *RunStats) AddSkipped()       { r.add(func(s *StatsSnapshot) { s.EntitiesSkipped++ }) }
func (r *RunStats) AddFailed()        { r.add(func(s *StatsSnapshot) { s.EntitiesFailed++ }) }
func (r *RunStats) AddDiscovered(n int) {
	r.add(func(s *StatsSnapshot) { s.Discovered += n })
}
func (r *RunStats) AddSelected(n int)  { r.add(func(s *StatsSnapshot) { s.Selected += n }) }
func (r *RunStats) AddSaved()          { r.add(func(s *StatsSnapshot) { s.DetailsSaved++ }) }
func (r *RunStats) AddCached()         { r.add(func(s *StatsSnapshot) { s.DetailsCached++ }) }
func (r *RunStats) AddNotFound()       { r.add(func(s *StatsSnapshot) { s.DetailsNotFound++ }) }
func (r *RunStats) AddDetailFailure()  { r.add(func(s *StatsSnapshot) { s.DetailsFailed++ }) }
func (r *RunStats) AddOversized()      { r.add(func(s *StatsSnapshot) { s.Oversized++ }) }
func (r *RunStats) AddPartial()        { r.add(func(s *StatsSnapshot) { s.PartialSearches++ }) }

func (r *RunStats) add(f func(*StatsSnapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f(&r.s)
}

// Snapshot returns a copy of the counters.
func (r *RunStats) Snapshot() StatsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s
}
