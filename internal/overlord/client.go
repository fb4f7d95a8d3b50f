package overlord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	apiVersion            = "v1"
	heartbeatBeforeHeader = "Heartbeat-Before"
)

type Heartbeat struct {
	MACAddress string `json:"-"`
	URL        string `json:"url"`
	Mode       string `json:"mode"`
	Version    string `json:"version"`
}

// HeartbeatError is returned when the overlord answers a heartbeat with something other
// than the expected response.
type HeartbeatError struct {
	Details string
}

func (e *HeartbeatError) Error() string {
	return "error heartbeating to agent API: " + e.Details
}

// Client talks to the overlord's agent API.
type Client struct {
	baseURL string
	http    *http.Client
}

// maxDeadlineSeconds keeps the deadline representable as a time.Duration from the epoch.
const maxDeadlineSeconds = float64(math.MaxInt64 / int64(time.Second))

func NewClient(apiURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(apiURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Heartbeat reports the agent to the overlord and returns the time by which the next
// heartbeat is due.
func (c *Client) Heartbeat(ctx context.Context, hb Heartbeat) (time.Time, error) {
	body, err := json.Marshal(hb)
	if err != nil {
		return time.Time{}, fmt.Errorf("encode heartbeat: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/agents/%s", c.baseURL, apiVersion, url.PathEscape(hb.MACAddress))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return time.Time{}, fmt.Errorf("build heartbeat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("send heartbeat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return time.Time{}, &HeartbeatError{Details: fmt.Sprintf("invalid status code: %d", resp.StatusCode)}
	}

	raw := resp.Header.Get(heartbeatBeforeHeader)
	if raw == "" {
		return time.Time{}, &HeartbeatError{Details: "missing Heartbeat-Before header"}
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, &HeartbeatError{Details: "invalid Heartbeat-Before header"}
	}
	if secs < 0 || secs > maxDeadlineSeconds {
		return time.Time{}, &HeartbeatError{Details: fmt.Sprintf("Heartbeat-Before out of range: %s", raw)}
	}

	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))), nil
}
