// Package rtree implements the proximity engine contract on an R-Tree.
// It keeps exact answers (bounding-box search plus haversine confirm,
// no grid approximation) and serves as the cross-check and benchmark
// counterpart to the geohash-bucketed tracker.
package rtree

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dhconnelly/rtreego"

	"github.com/kass/go-proximity-index/pkg/geodist"
	"github.com/kass/go-proximity-index/pkg/models"
	"github.com/kass/go-proximity-index/pkg/tracker"
)

const (
	tolerance   = 1e-7
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// spatialItem wraps an agent's current position for R-Tree indexing.
type spatialItem struct {
	id     string
	sample models.LocationSample
	rect   *rtreego.Rect
}

func (si *spatialItem) Bounds() *rtreego.Rect {
	return si.rect
}

// Index is a thread-safe R-Tree based proximity engine. Moves are
// delete-then-insert of the agent's current item, performed under one
// mutex so the tree never holds two positions for the same agent.
type Index struct {
	mu     sync.RWMutex
	tree   *rtreego.Rtree
	agents map[string]*spatialItem
	now    func() time.Time
}

// New creates an empty R-Tree proximity index.
func New() *Index {
	return &Index{
		tree:   rtreego.NewTree(dimensions, minChildren, maxChildren),
		agents: make(map[string]*spatialItem),
		now:    time.Now,
	}
}

// Upsert records a position update for agentID, replacing its previous
// position in the tree. A zero ts is stamped with the current time.
func (x *Index) Upsert(agentID string, lat, lon float64, ts time.Time) error {
	if err := tracker.ValidateCoordinates(lat, lon); err != nil {
		return err
	}
	if ts.IsZero() {
		ts = x.now()
	}

	p := rtreego.Point{lat, lon}
	item := &spatialItem{
		id:     agentID,
		sample: models.LocationSample{Lat: lat, Lon: lon, Timestamp: ts},
		rect:   p.ToRect(tolerance),
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if prev, ok := x.agents[agentID]; ok {
		x.tree.Delete(prev)
	}
	x.tree.Insert(item)
	x.agents[agentID] = item
	return nil
}

// FindNearby returns every other agent within thresholdMeters of
// agentID's current position, last seen at most window ago. The search
// intersects the tree with the threshold's bounding box, then confirms
// each candidate with the exact haversine distance.
func (x *Index) FindNearby(agentID string, thresholdMeters float64, window time.Duration) ([]models.ProximityHit, error) {
	now := x.now()

	x.mu.RLock()
	defer x.mu.RUnlock()

	self, ok := x.agents[agentID]
	if !ok {
		return nil, nil
	}
	lat, lon := self.sample.Lat, self.sample.Lon

	dLat, dLon := geodist.BBoxHalfWidths(lat, thresholdMeters)
	bounds, err := rtreego.NewRect(
		rtreego.Point{lat - dLat, lon - dLon},
		[]float64{2 * dLat, 2 * dLon},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid search box: %w", err)
	}

	results := x.tree.SearchIntersect(bounds)
	hits := make([]models.ProximityHit, 0, len(results))
	for _, result := range results {
		item, ok := result.(*spatialItem)
		if !ok || item.id == agentID {
			continue
		}
		if now.Sub(item.sample.Timestamp) > window {
			continue
		}
		d := geodist.Haversine(lat, lon, item.sample.Lat, item.sample.Lon)
		if d <= thresholdMeters {
			hits = append(hits, models.ProximityHit{AgentID: item.id, DistanceMeters: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].DistanceMeters < hits[j].DistanceMeters })
	return hits, nil
}

// Size returns the number of tracked agents.
func (x *Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.agents)
}

// Clear removes all agents from the index.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.tree = rtreego.NewTree(dimensions, minChildren, maxChildren)
	x.agents = make(map[string]*spatialItem)
}
