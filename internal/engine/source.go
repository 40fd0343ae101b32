package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"signal-synth/internal/errors"
	"signal-synth/internal/models"
)

// Source is a connector that produces normalized alerts when polled.
// Poll returns the alerts that became available since the previous poll;
// an error marks this cycle failed without affecting other sources.
type Source interface {
	Name() string
	Type() models.AlertSource
	Poll(ctx context.Context) ([]*models.Alert, error)
}

// alertWire is the JSON shape HTTP sources return.
type alertWire struct {
	ID         string   `json:"id"`
	Symbol     string   `json:"symbol"`
	PriceLevel *float64 `json:"price_level"`
	Volume     *int64   `json:"volume"`
	Direction  string   `json:"direction"`
	Confidence float64  `json:"confidence"`
	Timestamp  string   `json:"timestamp"`
}

// HTTPSource polls an HTTP endpoint that returns a JSON array of pending
// alerts. The endpoint owns draining semantics: each poll should return
// only alerts not yet handed out.
type HTTPSource struct {
	name       string
	sourceType models.AlertSource
	endpoint   string
	client     *http.Client
}

// NewHTTPSource creates a polling source over an HTTP endpoint.
func NewHTTPSource(name string, sourceType models.AlertSource, endpoint string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		name:       name,
		sourceType: sourceType,
		endpoint:   endpoint,
		client:     &http.Client{Timeout: timeout},
	}
}

// Name returns the source name.
func (s *HTTPSource) Name() string {
	return s.name
}

// Type returns the alert source type this connector produces.
func (s *HTTPSource) Type() models.AlertSource {
	return s.sourceType
}

// Poll fetches pending alerts from the endpoint.
func (s *HTTPSource) Poll(ctx context.Context) ([]*models.Alert, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, errors.NewSourceError(s.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.NewSourceError(s.name, fmt.Errorf("%w: %v", errors.ErrSourceUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.NewSourceError(s.name, fmt.Errorf("endpoint returned status %d", resp.StatusCode))
	}

	var wire []alertWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, errors.NewSourceError(s.name, fmt.Errorf("decoding alerts: %w", err))
	}

	alerts := make([]*models.Alert, 0, len(wire))
	for _, w := range wire {
		alerts = append(alerts, s.toAlert(w))
	}
	return alerts, nil
}

// toAlert converts a wire alert into the normalized model. Missing IDs are
// assigned; validation happens at ingestion, not here.
func (s *HTTPSource) toAlert(w alertWire) *models.Alert {
	id := w.ID
	if id == "" {
		id = uuid.New().String()
	}

	ts, err := time.Parse(time.RFC3339, w.Timestamp)
	if err != nil {
		ts = time.Time{}
	}

	return &models.Alert{
		ID:         id,
		Source:     s.sourceType,
		Symbol:     w.Symbol,
		PriceLevel: w.PriceLevel,
		Volume:     w.Volume,
		Direction:  models.Direction(w.Direction),
		Confidence: w.Confidence,
		Timestamp:  ts,
	}
}

// ChannelSource is a push-fed source for embedding and tests. Alerts
// written to Push are handed out on the next poll.
type ChannelSource struct {
	name       string
	sourceType models.AlertSource
	ch         chan *models.Alert
}

// NewChannelSource creates a channel-backed source with the given buffer.
func NewChannelSource(name string, sourceType models.AlertSource, buffer int) *ChannelSource {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelSource{
		name:       name,
		sourceType: sourceType,
		ch:         make(chan *models.Alert, buffer),
	}
}

// Name returns the source name.
func (s *ChannelSource) Name() string {
	return s.name
}

// Type returns the alert source type this connector produces.
func (s *ChannelSource) Type() models.AlertSource {
	return s.sourceType
}

// Push queues an alert for the next poll. Returns false if the buffer is full.
func (s *ChannelSource) Push(alert *models.Alert) bool {
	select {
	case s.ch <- alert:
		return true
	default:
		return false
	}
}

// Poll drains everything currently queued.
func (s *ChannelSource) Poll(ctx context.Context) ([]*models.Alert, error) {
	var alerts []*models.Alert
	for {
		select {
		case a := <-s.ch:
			alerts = append(alerts, a)
		default:
			return alerts, nil
		}
	}
}
