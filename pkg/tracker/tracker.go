// Package tracker implements the proximity index engine: a geohash-bucketed
// spatial index over live agent positions with an incremental move protocol
// and a staged distance-filter cascade for encounter queries.
//
// Each position update moves the agent between hash buckets atomically; a
// query gathers candidates from the agent's own bucket and its eight
// neighbors, then filters them through bounding box, equirectangular
// approximation, and exact haversine, cheapest test first. Only the last
// stage confirms a hit, so almost all non-neighbors are rejected without a
// trigonometric distance computation.
package tracker

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kass/go-proximity-index/pkg/geodist"
	"github.com/kass/go-proximity-index/pkg/geohash"
	"github.com/kass/go-proximity-index/pkg/models"
)

// agent is one tracked identity. Mutated only under the tracker mutex.
type agent struct {
	history  *history
	lastSeen time.Time
	bucket   string // geohash of the latest sample, "" before first update
}

// Stats is a snapshot of the cascade counters. Each candidate that
// reaches the filter pipeline is counted exactly once: either in one of
// the rejection counters, in Stale, or in Hits.
type Stats struct {
	Candidates     uint64
	Stale          uint64
	BBoxRejected   uint64
	ApproxRejected uint64
	ExactRejected  uint64
	Hits           uint64
}

// Tracker is a thread-safe geohash-bucketed proximity index.
//
// A single mutex guards both the agent records and the bucket sets, so a
// move (remove from old bucket, append history, insert into new bucket)
// is indivisible: no reader ever observes an agent in zero or two
// buckets.
type Tracker struct {
	cfg Config

	mu      sync.RWMutex
	agents  map[string]*agent
	buckets map[string]map[string]struct{}

	now func() time.Time

	candidates     atomic.Uint64
	stale          atomic.Uint64
	bboxRejected   atomic.Uint64
	approxRejected atomic.Uint64
	exactRejected  atomic.Uint64
	hits           atomic.Uint64
}

// New creates a tracker with the given configuration.
func New(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{
		cfg:     cfg,
		agents:  make(map[string]*agent),
		buckets: make(map[string]map[string]struct{}),
		now:     time.Now,
	}, nil
}

// Config returns the tracker's configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Upsert records a position update for agentID, creating the agent on
// first sight. The agent is moved out of its previous bucket and into
// the bucket of the new position as one atomic step. A zero ts is
// stamped with the current time. Fails only on out-of-range coordinates.
func (t *Tracker) Upsert(agentID string, lat, lon float64, ts time.Time) error {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return err
	}
	if ts.IsZero() {
		ts = t.now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.agents[agentID]
	if !ok {
		a = &agent{history: newHistory(t.cfg.HistoryCapacity)}
		t.agents[agentID] = a
	}

	if a.bucket != "" {
		if members, ok := t.buckets[a.bucket]; ok {
			delete(members, agentID)
			if len(members) == 0 {
				delete(t.buckets, a.bucket)
			}
		}
	}

	a.history.push(models.LocationSample{Lat: lat, Lon: lon, Timestamp: ts})
	a.lastSeen = ts

	code := geohash.Encode(lat, lon, t.cfg.Precision)
	a.bucket = code
	members, ok := t.buckets[code]
	if !ok {
		members = make(map[string]struct{})
		t.buckets[code] = members
	}
	members[agentID] = struct{}{}
	return nil
}

// FindNearby returns every agent within thresholdMeters of agentID's
// latest position whose own last update is at most window old. Hits
// carry the exact haversine distance and are sorted by ascending
// distance. Querying an unknown agent yields an empty result, not an
// error; the error return exists for interface parity with the other
// engines and is always nil.
func (t *Tracker) FindNearby(agentID string, thresholdMeters float64, window time.Duration) ([]models.ProximityHit, error) {
	now := t.now()

	t.mu.RLock()
	defer t.mu.RUnlock()

	a, ok := t.agents[agentID]
	if !ok {
		return nil, nil
	}
	latest, ok := a.history.latest()
	if !ok {
		return nil, nil
	}

	var hits []models.ProximityHit
	seen := map[string]struct{}{agentID: {}}
	cells := append(geohash.Neighbors(a.bucket), a.bucket)
	for _, cell := range cells {
		for candidateID := range t.buckets[cell] {
			if _, dup := seen[candidateID]; dup {
				continue
			}
			seen[candidateID] = struct{}{}

			c, ok := t.agents[candidateID]
			if !ok {
				continue
			}
			sample, ok := c.history.latest()
			if !ok {
				continue
			}
			t.candidates.Add(1)
			if now.Sub(c.lastSeen) > window {
				t.stale.Add(1)
				continue
			}
			d, ok := t.cascade(latest.Lat, latest.Lon, sample.Lat, sample.Lon, thresholdMeters)
			if !ok {
				continue
			}
			t.hits.Add(1)
			hits = append(hits, models.ProximityHit{AgentID: candidateID, DistanceMeters: d})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].DistanceMeters < hits[j].DistanceMeters
	})
	return hits, nil
}

// cascade runs the three-stage distance filter and returns the exact
// distance on acceptance. The first two stages are pure rejection
// optimizations: the bounding box never computes a distance at all, and
// the equirectangular stage compares against the threshold widened by
// RelaxRatio so its approximation error does not drop true hits before
// the haversine confirmation.
func (t *Tracker) cascade(lat1, lon1, lat2, lon2, thresholdMeters float64) (float64, bool) {
	if !geodist.WithinBBox(lat1, lon1, lat2, lon2, thresholdMeters) {
		t.bboxRejected.Add(1)
		return 0, false
	}
	if geodist.Equirectangular(lat1, lon1, lat2, lon2) > thresholdMeters*t.cfg.RelaxRatio {
		t.approxRejected.Add(1)
		return 0, false
	}
	d := geodist.Haversine(lat1, lon1, lat2, lon2)
	if d > thresholdMeters {
		t.exactRejected.Add(1)
		return 0, false
	}
	return d, true
}

// Latest returns agentID's most recent sample.
func (t *Tracker) Latest(agentID string) (models.LocationSample, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.agents[agentID]
	if !ok {
		return models.LocationSample{}, false
	}
	return a.history.latest()
}

// History returns agentID's retained samples, oldest first.
func (t *Tracker) History(agentID string) []models.LocationSample {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.agents[agentID]
	if !ok {
		return nil
	}
	return a.history.snapshot()
}

// Bucket returns the geohash cell agentID currently occupies.
func (t *Tracker) Bucket(agentID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.agents[agentID]
	if !ok {
		return "", false
	}
	return a.bucket, a.bucket != ""
}

// Agents returns the number of known agents.
func (t *Tracker) Agents() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.agents)
}

// Buckets returns the number of occupied buckets.
func (t *Tracker) Buckets() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.buckets)
}

// Stats returns a snapshot of the cascade counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Candidates:     t.candidates.Load(),
		Stale:          t.stale.Load(),
		BBoxRejected:   t.bboxRejected.Load(),
		ApproxRejected: t.approxRejected.Load(),
		ExactRejected:  t.exactRejected.Load(),
		Hits:           t.hits.Load(),
	}
}

// EvictStale removes agents whose last update is older than olderThan
// and returns how many were removed. The engine never requires eviction
// for correctness (the recency window filters stale candidates at query
// time); this exists so an operator can reclaim memory from long-dead
// identities.
func (t *Tracker) EvictStale(olderThan time.Duration) int {
	cutoff := t.now().Add(-olderThan)

	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for id, a := range t.agents {
		if a.lastSeen.After(cutoff) {
			continue
		}
		if members, ok := t.buckets[a.bucket]; ok {
			delete(members, id)
			if len(members) == 0 {
				delete(t.buckets, a.bucket)
			}
		}
		delete(t.agents, id)
		evicted++
	}
	return evicted
}
