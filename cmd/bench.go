package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/kass/go-proximity-index/pkg/geodist"
	"github.com/kass/go-proximity-index/pkg/models"
	"github.com/kass/go-proximity-index/pkg/postgis"
	"github.com/kass/go-proximity-index/pkg/rtree"
	"github.com/kass/go-proximity-index/pkg/tracker"
)

var (
	benchAgents    int
	benchUpdates   int
	benchWorkers   int
	benchLat       float64
	benchLon       float64
	benchSpreadM   float64
	benchThreshold float64
	benchWindowSec float64

	benchPostGIS  bool
	postgisHost   string
	postgisPort   int
	postgisUser   string
	postgisPass   string
	postgisDBName string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the proximity engines against each other",
	Long: `Simulate a crowd of agents reporting positions and compare the
geohash-bucketed tracker against an R-Tree engine, a brute-force scan,
and optionally a PostGIS baseline. Each simulated update performs an
upsert followed by a proximity query, which is the live workload shape.`,
	Run: runBench,
}

func init() {
	benchCmd.Flags().IntVarP(&benchAgents, "agents", "a", 10000, "Number of simulated agents")
	benchCmd.Flags().IntVarP(&benchUpdates, "updates", "n", 100000, "Number of position updates")
	benchCmd.Flags().IntVarP(&benchWorkers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	benchCmd.Flags().Float64Var(&benchLat, "lat", 35.681236, "Center latitude")
	benchCmd.Flags().Float64Var(&benchLon, "lon", 139.767125, "Center longitude")
	benchCmd.Flags().Float64Var(&benchSpreadM, "spread", 2000, "Agent spread around the center in meters")
	benchCmd.Flags().Float64Var(&benchThreshold, "threshold", tracker.DefaultThresholdMeters, "Encounter threshold in meters")
	benchCmd.Flags().Float64Var(&benchWindowSec, "window", tracker.DefaultTimeWindow.Seconds(), "Recency window in seconds")

	benchCmd.Flags().BoolVar(&benchPostGIS, "postgis", false, "Include the PostGIS baseline")
	benchCmd.Flags().StringVar(&postgisHost, "postgis-host", "localhost", "PostGIS host")
	benchCmd.Flags().IntVar(&postgisPort, "postgis-port", 5432, "PostGIS port")
	benchCmd.Flags().StringVar(&postgisUser, "postgis-user", "postgres", "PostGIS user")
	benchCmd.Flags().StringVar(&postgisPass, "postgis-password", "postgres", "PostGIS password")
	benchCmd.Flags().StringVar(&postgisDBName, "postgis-db", "geodb", "PostGIS database")
}

type benchResult struct {
	Engine        string
	Updates       int
	TotalDuration time.Duration
	UpdatesPerSec float64
	TotalHits     int64
}

// update is one pre-generated workload item.
type update struct {
	agentID string
	lat     float64
	lon     float64
}

func runBench(cmd *cobra.Command, args []string) {
	fmt.Printf("Generating %d updates for %d agents (spread %.0f m, threshold %.1f m)...\n",
		benchUpdates, benchAgents, benchSpreadM, benchThreshold)

	updates := generateUpdates(benchAgents, benchUpdates, benchLat, benchLon, benchSpreadM)
	window := time.Duration(benchWindowSec * float64(time.Second))

	geoEngine, err := tracker.New(benchConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	engines := []struct {
		name   string
		engine models.Engine
	}{
		{"geohash-tracker", geoEngine},
		{"rtree", rtree.New()},
		{"brute-force", newBruteEngine()},
	}

	if benchPostGIS {
		pg, err := postgis.New(postgisHost, postgisPort, postgisUser, postgisPass, postgisDBName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "postgis unavailable: %v\n", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.InitSchema(); err != nil {
			fmt.Fprintf(os.Stderr, "postgis schema init failed: %v\n", err)
			os.Exit(1)
		}
		engines = append(engines, struct {
			name   string
			engine models.Engine
		}{"postgis", pg})
	}

	var results []benchResult
	for _, e := range engines {
		results = append(results, benchEngine(e.name, e.engine, updates, window))
	}

	fmt.Printf("\nResults (%d updates each, %d workers):\n", benchUpdates, benchWorkers)
	for _, r := range results {
		fmt.Printf("  %-16s %12v total  %10.0f updates/s  %8d hits\n",
			r.Engine, r.TotalDuration.Round(time.Millisecond), r.UpdatesPerSec, r.TotalHits)
	}

	stats := geoEngine.Stats()
	fmt.Printf("\nTracker cascade: %d candidates, %d bbox-rejected, %d approx-rejected, %d exact-rejected, %d hits\n",
		stats.Candidates, stats.BBoxRejected, stats.ApproxRejected, stats.ExactRejected, stats.Hits)

	crossCheck(geoEngine, engines[1].engine.(*rtree.Index), updates, window)
}

func benchEngine(name string, engine models.Engine, updates []update, window time.Duration) benchResult {
	fmt.Printf("Running %s...\n", name)

	var totalHits atomic.Int64
	var wg sync.WaitGroup
	perWorker := len(updates) / benchWorkers

	start := time.Now()
	for w := 0; w < benchWorkers; w++ {
		startIdx := w * perWorker
		endIdx := startIdx + perWorker
		if w == benchWorkers-1 {
			endIdx = len(updates)
		}

		wg.Add(1)
		go func(batch []update) {
			defer wg.Done()
			hits := 0
			for _, u := range batch {
				if err := engine.Upsert(u.agentID, u.lat, u.lon, time.Time{}); err != nil {
					continue
				}
				found, err := engine.FindNearby(u.agentID, benchThreshold, window)
				if err != nil {
					continue
				}
				hits += len(found)
			}
			totalHits.Add(int64(hits))
		}(updates[startIdx:endIdx])
	}
	wg.Wait()
	elapsed := time.Since(start)

	return benchResult{
		Engine:        name,
		Updates:       len(updates),
		TotalDuration: elapsed,
		UpdatesPerSec: float64(len(updates)) / elapsed.Seconds(),
		TotalHits:     totalHits.Load(),
	}
}

// crossCheck compares tracker and R-Tree answers for a sample of agents.
// The tracker may miss pairs sitting almost exactly on the threshold
// (the relax-ratio trade-off), so mismatches are reported, not fatal.
func crossCheck(geo *tracker.Tracker, rt *rtree.Index, updates []update, window time.Duration) {
	const sample = 200

	mismatches := 0
	checked := 0
	seen := make(map[string]struct{})
	for _, u := range updates {
		if _, ok := seen[u.agentID]; ok {
			continue
		}
		seen[u.agentID] = struct{}{}

		a, _ := geo.FindNearby(u.agentID, benchThreshold, window)
		b, _ := rt.FindNearby(u.agentID, benchThreshold, window)
		if !sameHitSet(a, b) {
			mismatches++
		}
		checked++
		if checked >= sample {
			break
		}
	}
	fmt.Printf("Cross-check vs R-Tree: %d/%d queries agreed\n", checked-mismatches, checked)
}

func sameHitSet(a, b []models.ProximityHit) bool {
	if len(a) != len(b) {
		return false
	}
	ids := func(hits []models.ProximityHit) []string {
		out := make([]string, len(hits))
		for i, h := range hits {
			out[i] = h.AgentID
		}
		sort.Strings(out)
		return out
	}
	ia, ib := ids(a), ids(b)
	for i := range ia {
		if ia[i] != ib[i] {
			return false
		}
	}
	return true
}

// generateUpdates spreads agents uniformly in a box around the center
// and produces a random update stream over them.
func generateUpdates(agents, n int, lat, lon, spreadM float64) []update {
	dLat := spreadM / 2 * 180 / (geodist.EarthRadiusMeters * math.Pi)
	dLon := dLat * 1.25 // widen slightly for mid-latitude convergence

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	out := make([]update, n)
	for i := range out {
		out[i] = update{
			agentID: fmt.Sprintf("agent_%d", r.Intn(agents)),
			lat:     lat + (r.Float64()*2-1)*dLat,
			lon:     lon + (r.Float64()*2-1)*dLon,
		}
	}
	return out
}

// bruteEngine is the quadratic baseline: every query scans every agent.
type bruteEngine struct {
	mu     sync.RWMutex
	agents map[string]models.LocationSample
}

func newBruteEngine() *bruteEngine {
	return &bruteEngine{agents: make(map[string]models.LocationSample)}
}

func (b *bruteEngine) Upsert(agentID string, lat, lon float64, ts time.Time) error {
	if err := tracker.ValidateCoordinates(lat, lon); err != nil {
		return err
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.agents[agentID] = models.LocationSample{Lat: lat, Lon: lon, Timestamp: ts}
	return nil
}

func (b *bruteEngine) FindNearby(agentID string, thresholdMeters float64, window time.Duration) ([]models.ProximityHit, error) {
	now := time.Now()
	b.mu.RLock()
	defer b.mu.RUnlock()

	self, ok := b.agents[agentID]
	if !ok {
		return nil, nil
	}
	var hits []models.ProximityHit
	for id, s := range b.agents {
		if id == agentID || now.Sub(s.Timestamp) > window {
			continue
		}
		d := geodist.Haversine(self.Lat, self.Lon, s.Lat, s.Lon)
		if d <= thresholdMeters {
			hits = append(hits, models.ProximityHit{AgentID: id, DistanceMeters: d})
		}
	}
	return hits, nil
}
