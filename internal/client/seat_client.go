// Package client holds HTTP clients for sibling services. The
// orchestrators normally run against the in-process seat ledger, but
// when the seat service is deployed separately they talk to it over
// HTTP through SeatClient, which implements the same SeatLedger
// interface.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// SeatClient calls a remote seat service. All calls carry a bounded
// timeout; callers decide whether a timeout is surfaced (critical
// path) or merely logged (best-effort side effect).
type SeatClient struct {
	baseURL string
	http    *http.Client
}

// NewSeatClient constructs a SeatClient for the given base URL. A
// non-positive timeout falls back to 10s, the budget used for
// ordinary sibling-service calls.
func NewSeatClient(baseURL string, timeout time.Duration) *SeatClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SeatClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type seatBatchRequest struct {
	ShowtimeID string   `json:"showtime_id"`
	Seats      []string `json:"seats"`
	Status     string   `json:"status,omitempty"`
}

type seatErrorResponse struct {
	Error string `json:"error"`
	Seat  string `json:"seat,omitempty"`
}

// CheckAvailable asks the seat service whether every seat is still
// available. A 409 is translated back into a SeatUnavailableError so
// callers can treat remote and local ledgers alike.
func (c *SeatClient) CheckAvailable(ctx context.Context, showtimeID string, seatNumbers []string) error {
	_, err := c.post(ctx, "/v1/seats/check", seatBatchRequest{ShowtimeID: showtimeID, Seats: seatNumbers})
	return err
}

// Reserve performs the conditional bulk status change on the remote
// ledger and returns how many seats flipped.
func (c *SeatClient) Reserve(ctx context.Context, showtimeID string, seatNumbers []string, newStatus string) (int64, error) {
	body, err := c.post(ctx, "/v1/seats/book", seatBatchRequest{ShowtimeID: showtimeID, Seats: seatNumbers, Status: newStatus})
	if err != nil {
		return 0, err
	}
	var out struct {
		Reserved int64 `json:"reserved"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("decode reserve response: %w", err)
	}
	return out.Reserved, nil
}

// Release returns seats to available on the remote ledger.
func (c *SeatClient) Release(ctx context.Context, showtimeID string, seatNumbers []string) error {
	_, err := c.post(ctx, "/v1/seats/release", seatBatchRequest{ShowtimeID: showtimeID, Seats: seatNumbers})
	return err
}

// UpdateStatus sets the status of a single seat on the remote ledger.
func (c *SeatClient) UpdateStatus(ctx context.Context, seatID, status string) error {
	payload, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/v1/seats/%s/status", c.baseURL, seatID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("seat service: %w", err)
	}
	defer resp.Body.Close()
	return c.checkStatus(resp)
}

func (c *SeatClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("seat service: %w", err)
	}
	defer resp.Body.Close()
	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// checkStatus maps the seat service's error statuses onto the shared
// repository sentinels.
func (c *SeatClient) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return repository.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		var body seatErrorResponse
		data, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(data, &body); err == nil && body.Seat != "" {
			return &repository.SeatUnavailableError{SeatNumber: body.Seat}
		}
		return repository.ErrConflict
	default:
		return fmt.Errorf("seat service: unexpected status %d", resp.StatusCode)
	}
}
