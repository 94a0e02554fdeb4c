package tracker

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-proximity-index/pkg/geodist"
	"github.com/kass/go-proximity-index/pkg/geohash"
	"github.com/kass/go-proximity-index/pkg/models"
)

// Tokyo Station forecourt; the cluster used throughout these tests.
const (
	baseLat = 35.681236
	baseLon = 139.767125
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tr, err := New(DefaultConfig())
	require.NoError(t, err)
	return tr
}

func TestNewRejectsBadConfig(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero precision", func(c *Config) { c.Precision = 0 }},
		{"negative threshold", func(c *Config) { c.ThresholdMeters = -1 }},
		{"zero window", func(c *Config) { c.TimeWindow = 0 }},
		{"relax below one", func(c *Config) { c.RelaxRatio = 0.9 }},
		{"zero history", func(c *Config) { c.HistoryCapacity = 0 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestUpsertRejectsBadCoordinates(t *testing.T) {
	tr := newTestTracker(t)

	err := tr.Upsert("alice", 91, baseLon, time.Time{})
	assert.ErrorIs(t, err, ErrInvalidLatitude)

	err = tr.Upsert("alice", baseLat, -181, time.Time{})
	assert.ErrorIs(t, err, ErrInvalidLongitude)

	// A rejected update must not create the agent.
	assert.Equal(t, 0, tr.Agents())
}

func TestUpsertCreatesAgent(t *testing.T) {
	tr := newTestTracker(t)

	require.NoError(t, tr.Upsert("alice", baseLat, baseLon, time.Time{}))

	assert.Equal(t, 1, tr.Agents())
	bucket, ok := tr.Bucket("alice")
	require.True(t, ok)
	assert.Equal(t, geohash.Encode(baseLat, baseLon, DefaultPrecision), bucket)

	latest, ok := tr.Latest("alice")
	require.True(t, ok)
	assert.Equal(t, baseLat, latest.Lat)
	assert.Equal(t, baseLon, latest.Lon)
	assert.False(t, latest.Timestamp.IsZero())
}

func TestBucketInvariant(t *testing.T) {
	// After any sequence of moves, every agent is a member of exactly
	// the bucket set matching its current position, and no other.
	tr := newTestTracker(t)
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("agent_%d", r.Intn(50))
		lat := baseLat + (r.Float64()*2-1)*0.01
		lon := baseLon + (r.Float64()*2-1)*0.01
		require.NoError(t, tr.Upsert(id, lat, lon, time.Time{}))
	}

	tr.mu.RLock()
	defer tr.mu.RUnlock()
	for id, a := range tr.agents {
		latest, ok := a.history.latest()
		require.True(t, ok)
		assert.Equal(t, geohash.Encode(latest.Lat, latest.Lon, DefaultPrecision), a.bucket)
		assert.Equal(t, latest.Timestamp, a.lastSeen)

		memberships := 0
		for code, members := range tr.buckets {
			if _, ok := members[id]; ok {
				memberships++
				assert.Equal(t, a.bucket, code)
			}
		}
		assert.Equal(t, 1, memberships, "agent %s", id)
	}

	// Empty bucket sets are pruned, never left with phantom members.
	for code, members := range tr.buckets {
		assert.NotEmpty(t, members, "bucket %s", code)
	}
}

func TestFindNearbyAdjacentAgents(t *testing.T) {
	tr := newTestTracker(t)

	require.NoError(t, tr.Upsert("alice", baseLat, baseLon, time.Time{}))
	require.NoError(t, tr.Upsert("bob", 35.681240, 139.767130, time.Time{}))

	hits, err := tr.FindNearby("alice", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "bob", hits[0].AgentID)
	assert.InDelta(t, 0.6, hits[0].DistanceMeters, 0.4)

	// Symmetric from bob's side.
	hits, err = tr.FindNearby("bob", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "alice", hits[0].AgentID)
}

func TestFindNearbyExcludesDistantAgent(t *testing.T) {
	tr := newTestTracker(t)

	require.NoError(t, tr.Upsert("alice", baseLat, baseLon, time.Time{}))
	require.NoError(t, tr.Upsert("carol", 35.690000, 139.770000, time.Time{})) // ~1 km away

	hits, err := tr.FindNearby("alice", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFindNearbySelfExclusion(t *testing.T) {
	tr := newTestTracker(t)

	require.NoError(t, tr.Upsert("alice", baseLat, baseLon, time.Time{}))
	hits, err := tr.FindNearby("alice", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, tr.Upsert("bob", baseLat, baseLon, time.Time{}))
	hits, err = tr.FindNearby("alice", 10, time.Minute)
	require.NoError(t, err)
	for _, hit := range hits {
		assert.NotEqual(t, "alice", hit.AgentID)
	}
}

func TestFindNearbyUnknownAgent(t *testing.T) {
	tr := newTestTracker(t)

	hits, err := tr.FindNearby("ghost", 10, time.Minute)
	assert.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFindNearbyRecencyFilter(t *testing.T) {
	tr := newTestTracker(t)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return clock }

	require.NoError(t, tr.Upsert("bob", 35.681240, 139.767130, time.Time{}))

	// bob's update ages past the window as the clock advances.
	clock = clock.Add(90 * time.Second)
	require.NoError(t, tr.Upsert("alice", baseLat, baseLon, time.Time{}))

	hits, err := tr.FindNearby("alice", 10, 60*time.Second)
	require.NoError(t, err)
	assert.Empty(t, hits, "stale candidate must be excluded regardless of distance")
	assert.Equal(t, uint64(1), tr.Stats().Stale)

	// A fresh report from bob makes him visible again.
	require.NoError(t, tr.Upsert("bob", 35.681240, 139.767130, time.Time{}))
	hits, err = tr.FindNearby("alice", 10, 60*time.Second)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "bob", hits[0].AgentID)
}

func TestCascadeStageCounters(t *testing.T) {
	tr := newTestTracker(t)
	dLatMax, dLonMax := geodist.BBoxHalfWidths(baseLat, 10)

	require.NoError(t, tr.Upsert("alice", baseLat, baseLon, time.Time{}))

	// ~15 m north: candidate (same or adjacent cell) but outside the
	// 10 m bounding box, so the cheapest stage rejects it.
	require.NoError(t, tr.Upsert("dave", baseLat+1.5*dLatMax, baseLon, time.Time{}))

	// ~9 m north and ~9 m east: inside the bounding box, but the
	// diagonal is ~12.7 m, past threshold*relax = 12 m, so the
	// equirectangular stage rejects it.
	require.NoError(t, tr.Upsert("erin", baseLat+0.9*dLatMax, baseLon+0.9*dLonMax, time.Time{}))

	// ~0.6 m away: survives all three stages.
	require.NoError(t, tr.Upsert("bob", 35.681240, 139.767130, time.Time{}))

	hits, err := tr.FindNearby("alice", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "bob", hits[0].AgentID)

	stats := tr.Stats()
	assert.Equal(t, uint64(3), stats.Candidates)
	assert.Equal(t, uint64(1), stats.BBoxRejected, "distant candidate must fall at the bbox stage")
	assert.Equal(t, uint64(1), stats.ApproxRejected)
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestCascadeMonotonicity(t *testing.T) {
	// The early stages must never reject a pair the exact stage would
	// accept: every randomized pair within the threshold by haversine
	// must survive the full cascade.
	tr := newTestTracker(t)
	r := rand.New(rand.NewSource(7))
	const threshold = 10.0

	confirmed := 0
	for i := 0; i < 20000; i++ {
		lat := r.Float64()*120 - 60
		lon := r.Float64()*360 - 180
		dLatMax, dLonMax := geodist.BBoxHalfWidths(lat, threshold)
		lat2 := lat + (r.Float64()*2-1)*3*dLatMax
		lon2 := lon + (r.Float64()*2-1)*3*dLonMax

		exact := geodist.Haversine(lat, lon, lat2, lon2)
		if exact > threshold {
			continue
		}
		confirmed++
		d, ok := tr.cascade(lat, lon, lat2, lon2, threshold)
		require.True(t, ok, "true hit dropped by an early stage: (%f,%f)->(%f,%f) exact=%f", lat, lon, lat2, lon2, exact)
		assert.Equal(t, exact, d)
	}
	require.Greater(t, confirmed, 100, "sample did not exercise enough true hits")
}

func TestFindNearbySortedByDistance(t *testing.T) {
	tr := newTestTracker(t)
	dLatMax, _ := geodist.BBoxHalfWidths(baseLat, 10)

	require.NoError(t, tr.Upsert("alice", baseLat, baseLon, time.Time{}))
	require.NoError(t, tr.Upsert("far", baseLat+0.8*dLatMax, baseLon, time.Time{}))
	require.NoError(t, tr.Upsert("near", baseLat+0.1*dLatMax, baseLon, time.Time{}))
	require.NoError(t, tr.Upsert("mid", baseLat+0.4*dLatMax, baseLon, time.Time{}))

	hits, err := tr.FindNearby("alice", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"near", "mid", "far"}, []string{hits[0].AgentID, hits[1].AgentID, hits[2].AgentID})
	assert.LessOrEqual(t, hits[0].DistanceMeters, hits[1].DistanceMeters)
	assert.LessOrEqual(t, hits[1].DistanceMeters, hits[2].DistanceMeters)
}

func TestHistoryBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistoryCapacity = 5
	tr, err := New(cfg)
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		require.NoError(t, tr.Upsert("alice", baseLat+float64(i)*0.0001, baseLon, time.Time{}))
	}

	hist := tr.History("alice")
	require.Len(t, hist, 5)

	// Oldest three were evicted; the retained window is ordered.
	assert.InDelta(t, baseLat+3*0.0001, hist[0].Lat, 1e-9)
	assert.InDelta(t, baseLat+7*0.0001, hist[4].Lat, 1e-9)
	for i := 1; i < len(hist); i++ {
		assert.True(t, hist[i].Lat > hist[i-1].Lat)
	}

	latest, ok := tr.Latest("alice")
	require.True(t, ok)
	assert.Equal(t, hist[4], latest)
}

func TestEvictStale(t *testing.T) {
	tr := newTestTracker(t)
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return clock }

	require.NoError(t, tr.Upsert("old", baseLat, baseLon, time.Time{}))
	clock = clock.Add(10 * time.Minute)
	require.NoError(t, tr.Upsert("fresh", baseLat, baseLon, time.Time{}))

	assert.Equal(t, 1, tr.EvictStale(5*time.Minute))
	assert.Equal(t, 1, tr.Agents())

	_, ok := tr.Bucket("old")
	assert.False(t, ok)
	_, ok = tr.Bucket("fresh")
	assert.True(t, ok)
}

func TestConcurrentUpsertsAndQueries(t *testing.T) {
	tr := newTestTracker(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(worker)))
			for i := 0; i < 500; i++ {
				id := fmt.Sprintf("agent_%d", r.Intn(100))
				lat := baseLat + (r.Float64()*2-1)*0.001
				lon := baseLon + (r.Float64()*2-1)*0.001
				assert.NoError(t, tr.Upsert(id, lat, lon, time.Time{}))

				hits, err := tr.FindNearby(id, 10, time.Minute)
				assert.NoError(t, err)
				for _, hit := range hits {
					assert.NotEqual(t, id, hit.AgentID)
					assert.LessOrEqual(t, hit.DistanceMeters, 10.0)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, tr.Agents(), 100)
}

func TestHistoryRing(t *testing.T) {
	h := newHistory(3)

	_, ok := h.latest()
	assert.False(t, ok)
	assert.Equal(t, 0, h.len())

	for i := 1; i <= 5; i++ {
		h.push(models.LocationSample{Lat: float64(i)})
	}

	assert.Equal(t, 3, h.len())
	latest, ok := h.latest()
	require.True(t, ok)
	assert.Equal(t, 5.0, latest.Lat)

	snap := h.snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []float64{3, 4, 5}, []float64{snap[0].Lat, snap[1].Lat, snap[2].Lat})
}

func BenchmarkUpsert(b *testing.B) {
	tr, _ := New(DefaultConfig())
	r := rand.New(rand.NewSource(1))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := fmt.Sprintf("agent_%d", i%10000)
		tr.Upsert(id, baseLat+r.Float64()*0.01, baseLon+r.Float64()*0.01, time.Time{})
	}
}

func BenchmarkFindNearby(b *testing.B) {
	tr, _ := New(DefaultConfig())
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		id := fmt.Sprintf("agent_%d", i)
		tr.Upsert(id, baseLat+r.Float64()*0.01, baseLon+r.Float64()*0.01, time.Time{})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr.FindNearby(fmt.Sprintf("agent_%d", i%10000), 10, time.Minute)
	}
}
