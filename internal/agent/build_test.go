package agent

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-teethagent/internal/heartbeat"
)

func TestValidateAPIURL(t *testing.T) {
	cases := map[string]string{
		"http://overlord.example":         "overlord.example:80",
		"https://overlord.example":        "overlord.example:443",
		"https://overlord.example:8443/x": "overlord.example:8443",
		"http://[fd00::1]:8080":           "[fd00::1]:8080",
	}
	for in, want := range cases {
		got, err := ValidateAPIURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, bad := range []string{"ftp://overlord.example", "overlord.example:80", "http://", "://nope"} {
		_, err := ValidateAPIURL(bad)
		assert.Error(t, err, bad)
	}
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	return ln
}

func TestBuildResolvesAdvertiseHost(t *testing.T) {
	ln := listen(t)

	a, err := Build(Options{
		APIURL:           "http://" + ln.Addr().String(),
		AdvertiseAddress: Address{Port: 9999},
		ListenAddress:    Address{Port: 9999},
		Hardware:         fakeHardware{},
		Heartbeat:        heartbeat.DefaultConfig(),
	})
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9999/", a.URL())
	assert.Equal(t, Address{Host: "127.0.0.1", Port: 9999}, a.ListenAddress())
}

func TestBuildKeepsExplicitAddresses(t *testing.T) {
	a, err := Build(Options{
		APIURL:           "https://overlord.invalid",
		AdvertiseAddress: Address{Host: "10.1.2.3", Port: 8000},
		ListenAddress:    Address{Host: "0.0.0.0", Port: 9000},
		Hardware:         fakeHardware{},
		Heartbeat:        heartbeat.DefaultConfig(),
	})
	require.NoError(t, err)

	assert.Equal(t, "http://10.1.2.3:8000/", a.URL())
	assert.Equal(t, "0.0.0.0:9000", a.ListenAddress().String())
}

func TestBuildFailsOnBadScheme(t *testing.T) {
	_, err := Build(Options{APIURL: "gopher://overlord", AdvertiseAddress: Address{Host: "10.1.2.3"}})
	assert.ErrorContains(t, err, "scheme")
}

func TestBuildFailsWhenAPIUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Build(Options{APIURL: "http://" + addr, AdvertiseAddress: Address{Port: 9999}})
	assert.ErrorContains(t, err, "resolve advertise address")
}
