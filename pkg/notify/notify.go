// Package notify delivers encounter events to outbound sinks: a Discord
// webhook, a Redis pub/sub channel, or the process log. Delivery is best
// effort; a failing sink never affects the update path.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kass/go-proximity-index/pkg/models"
)

// Notifier delivers the encounters detected for one agent's update.
type Notifier interface {
	Notify(ctx context.Context, agentID string, hits []models.ProximityHit) error
}

// Event is the JSON payload published to structured sinks.
type Event struct {
	AgentID    string                `json:"agent_id"`
	Hits       []models.ProximityHit `json:"hits"`
	DetectedAt time.Time             `json:"detected_at"`
}

// Discord posts encounter summaries to a Discord webhook.
type Discord struct {
	webhookURL string
	client     *http.Client
}

// NewDiscord creates a Discord webhook notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (d *Discord) Notify(ctx context.Context, agentID string, hits []models.ProximityHit) error {
	if len(hits) == 0 {
		return nil
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "**🚩 Encounter detected** for `%s`\n", agentID)
	for _, hit := range hits {
		fmt.Fprintf(&buf, "- agent: `%s` / distance: **%.2f m**\n", hit.AgentID, hit.DistanceMeters)
	}

	payload, err := json.Marshal(map[string]string{"content": buf.String()})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Redis publishes encounter events as JSON on a pub/sub channel.
type Redis struct {
	client  *redis.Client
	channel string
}

// NewRedis creates a Redis pub/sub notifier.
func NewRedis(addr, channel string) *Redis {
	return &Redis{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
	}
}

func (r *Redis) Notify(ctx context.Context, agentID string, hits []models.ProximityHit) error {
	if len(hits) == 0 {
		return nil
	}
	payload, err := json.Marshal(Event{AgentID: agentID, Hits: hits, DetectedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Slog logs encounters to the process log.
type Slog struct {
	log *slog.Logger
}

// NewSlog creates a logging notifier.
func NewSlog(log *slog.Logger) *Slog {
	return &Slog{log: log}
}

func (s *Slog) Notify(ctx context.Context, agentID string, hits []models.ProximityHit) error {
	for _, hit := range hits {
		s.log.InfoContext(ctx, "encounter detected",
			"agent", agentID,
			"other", hit.AgentID,
			"distance_m", hit.DistanceMeters,
		)
	}
	return nil
}

// Multi fans out to several sinks. Every sink is attempted; the first
// error is returned after all deliveries.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, agentID string, hits []models.ProximityHit) error {
	var firstErr error
	for _, n := range m {
		if err := n.Notify(ctx, agentID, hits); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
