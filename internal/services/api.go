// Dashboard client for querying a running daemon over HTTP
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/seniordevguy/qobuz-favorites-downloader/internal/shared"
	"github.com/seniordevguy/qobuz-favorites-downloader/internal/status"
)

// DashboardClient talks to a running daemon's dashboard endpoints. Used by
// the status/trigger/watch CLI commands.
type DashboardClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDashboardClient creates a client for the daemon at baseURL.
func NewDashboardClient(baseURL string, client *http.Client) *DashboardClient {
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &DashboardClient{
		baseURL:    baseURL,
		httpClient: client,
	}
}

// Status fetches the daemon's current pipeline snapshot.
func (c *DashboardClient) Status(ctx context.Context) (*status.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var snap status.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}

	return &snap, nil
}

// Health reports whether the daemon's ledger store is reachable.
func (c *DashboardClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}
	return nil
}

// TriggerCycle requests an immediate cycle. Returns false when the daemon
// reports a cycle already running.
func (c *DashboardClient) TriggerCycle(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/trigger", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusAccepted:
		return true, nil
	case http.StatusConflict:
		return false, nil
	default:
		return false, fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}
}
