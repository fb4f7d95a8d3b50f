package overlord

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeat(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.EscapedPath(), r.Method
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Heartbeat-Before", "1700000000.5")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	deadline, err := c.Heartbeat(context.Background(), Heartbeat{
		MACAddress: "aa:bb:cc:dd:ee:ff",
		URL:        "http://10.0.0.5:9999/",
		Mode:       "NONE",
		Version:    "1.2.3",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/v1/agents/aa:bb:cc:dd:ee:ff", gotPath)
	assert.Equal(t, map[string]string{"url": "http://10.0.0.5:9999/", "mode": "NONE", "version": "1.2.3"}, gotBody)
	assert.Equal(t, time.Unix(1700000000, int64(500*time.Millisecond)), deadline)
}

func TestHeartbeatBadResponses(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		header  string
		details string
	}{
		{"wrong status", http.StatusInternalServerError, "1700000000", "invalid status code: 500"},
		{"missing header", http.StatusNoContent, "", "missing Heartbeat-Before header"},
		{"garbage header", http.StatusNoContent, "soon", "invalid Heartbeat-Before header"},
		{"huge deadline", http.StatusNoContent, "1e300", "Heartbeat-Before out of range: 1e300"},
		{"negative deadline", http.StatusNoContent, "-5", "Heartbeat-Before out of range: -5"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if c.header != "" {
					w.Header().Set("Heartbeat-Before", c.header)
				}
				w.WriteHeader(c.status)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Heartbeat(context.Background(), Heartbeat{MACAddress: "aa"})
			var hbErr *HeartbeatError
			require.True(t, errors.As(err, &hbErr), "got %v", err)
			assert.Equal(t, c.details, hbErr.Details)
		})
	}
}

func TestHeartbeatTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).Heartbeat(context.Background(), Heartbeat{MACAddress: "aa"})
	assert.Error(t, err)
}
