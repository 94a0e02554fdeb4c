// Package postgis implements the proximity engine contract on PostGIS,
// used as the external baseline in benchmarks. Each agent keeps one row
// with its current position; proximity queries use ST_DWithin on the
// geography type, which is distance-exact on the spheroid.
package postgis

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kass/go-proximity-index/pkg/models"
	"github.com/kass/go-proximity-index/pkg/tracker"
)

// Index is a PostGIS-backed proximity engine.
type Index struct {
	db *sql.DB
}

// New opens a PostGIS connection.
func New(host string, port int, user, password, dbname string) (*Index, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Index{db: db}, nil
}

// InitSchema creates the agent position table and its spatial index.
func (p *Index) InitSchema() error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,

		`DROP TABLE IF EXISTS agent_positions;`,

		`CREATE TABLE agent_positions (
			agent_id   TEXT PRIMARY KEY,
			location   GEOMETRY(POINT, 4326) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,

		`CREATE INDEX idx_agent_positions_location
			ON agent_positions USING GIST(location);`,
	}

	for _, query := range queries {
		if _, err := p.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}

	return nil
}

// Upsert records a position update for agentID, replacing any previous
// row. A zero ts is stamped with the current time.
func (p *Index) Upsert(agentID string, lat, lon float64, ts time.Time) error {
	if err := tracker.ValidateCoordinates(lat, lon); err != nil {
		return err
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := p.db.Exec(`
		INSERT INTO agent_positions (agent_id, location, updated_at)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326), $4)
		ON CONFLICT (agent_id) DO UPDATE
		SET location = EXCLUDED.location, updated_at = EXCLUDED.updated_at
	`, agentID, lon, lat, ts)
	if err != nil {
		return fmt.Errorf("failed to upsert agent %s: %w", agentID, err)
	}
	return nil
}

// FindNearby returns every other agent within thresholdMeters of
// agentID's current position, last updated at most window ago.
func (p *Index) FindNearby(agentID string, thresholdMeters float64, window time.Duration) ([]models.ProximityHit, error) {
	rows, err := p.db.Query(`
		SELECT o.agent_id,
		       ST_Distance(o.location::geography, s.location::geography) AS distance_m
		FROM agent_positions s
		JOIN agent_positions o
		  ON o.agent_id <> s.agent_id
		WHERE s.agent_id = $1
		  AND o.updated_at > now() - $2 * interval '1 second'
		  AND ST_DWithin(o.location::geography, s.location::geography, $3)
		ORDER BY distance_m
	`, agentID, window.Seconds(), thresholdMeters)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var hits []models.ProximityHit
	for rows.Next() {
		var hit models.ProximityHit
		if err := rows.Scan(&hit.AgentID, &hit.DistanceMeters); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return hits, nil
}

// Count returns the number of tracked agents.
func (p *Index) Count() (int64, error) {
	var count int64
	err := p.db.QueryRow("SELECT COUNT(*) FROM agent_positions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count agents: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (p *Index) Close() error {
	return p.db.Close()
}
