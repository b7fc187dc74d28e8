package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cfpbot/pkg/logx"
)

// HTTPSource fetches the upcoming-CFP list from a JSON endpoint and
// buckets it with BuildSnapshot.
type HTTPSource struct {
	url    string
	client *http.Client
	log    logx.Logger
}

func NewHTTPSource(url string, timeout time.Duration, log logx.Logger) (*HTTPSource, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("source url is empty")
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}, nil
}

func (s *HTTPSource) Fetch(ctx context.Context, ref time.Time) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch cfp feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch cfp feed: unexpected status %d", resp.StatusCode)
	}

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode cfp feed: %w", err)
	}

	s.log.Debug("cfp feed fetched", logx.Int("events", len(events)))
	return BuildSnapshot(events, ref), nil
}
