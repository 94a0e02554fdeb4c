// Package models holds the value types shared by every proximity engine.
package models

import "time"

// LocationSample is a single reported position. Immutable once created.
type LocationSample struct {
	Lat       float64   `json:"latitude"`
	Lon       float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// ProximityHit is one confirmed encounter, produced fresh per query.
type ProximityHit struct {
	AgentID        string  `json:"user"`
	DistanceMeters float64 `json:"distance_m"`
}

// BoundingBox is a geographic rectangle.
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLon float64 `json:"minLon"`
	MaxLon float64 `json:"maxLon"`
}

// Contains checks if a point is within the bounding box.
func (bb *BoundingBox) Contains(lat, lon float64) bool {
	return lat >= bb.MinLat && lat <= bb.MaxLat &&
		lon >= bb.MinLon && lon <= bb.MaxLon
}

// Engine is the contract every proximity backend implements: record a
// position update, then ask who is currently within thresholdMeters of
// the agent's latest position, skipping candidates not seen within window.
type Engine interface {
	Upsert(agentID string, lat, lon float64, ts time.Time) error
	FindNearby(agentID string, thresholdMeters float64, window time.Duration) ([]ProximityHit, error)
}
