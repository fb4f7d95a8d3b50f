package agent

import (
	"fmt"
	"go-teethagent/pkg/logger"
	"net"
	"net/url"
	"time"
)

const dialTimeout = 30 * time.Second

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// ValidateAPIURL checks that apiURL is an absolute http or https URL and returns the
// host:port the agent would dial to reach it.
func ValidateAPIURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("parse API URL: %w", err)
	}
	defaultPort, ok := defaultPorts[u.Scheme]
	if !ok {
		return "", fmt.Errorf("API URL scheme must be one of 'http' or 'https', got %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("API URL %q has no host", apiURL)
	}

	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// apiFacingIP opens a connection to the API and reports which local address was used for
// it. There is nothing useful the agent can do if the API is unreachable, so errors are
// returned as-is for the caller to treat as fatal.
func apiFacingIP(apiURL string) (string, error) {
	target, err := ValidateAPIURL(apiURL)
	if err != nil {
		return "", err
	}

	conn, err := net.DialTimeout("tcp", target, dialTimeout)
	if err != nil {
		return "", fmt.Errorf("connect to API at %s: %w", target, err)
	}
	defer conn.Close()

	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return "", fmt.Errorf("read local address: %w", err)
	}
	return host, nil
}

// Build resolves the advertise and listen addresses and constructs the agent. An empty
// advertise host is discovered from the route to the API; an empty listen host defaults to
// the advertise host.
func Build(opts Options) (*Agent, error) {
	log := logger.Component("agent")

	if _, err := ValidateAPIURL(opts.APIURL); err != nil {
		return nil, err
	}

	if opts.AdvertiseAddress.Host == "" {
		log.Info().Msg("resolving API-facing IP address")
		ip, err := apiFacingIP(opts.APIURL)
		if err != nil {
			return nil, fmt.Errorf("resolve advertise address: %w", err)
		}
		log.Info().Str("ip_address", ip).Msg("resolved API-facing IP address")
		opts.AdvertiseAddress.Host = ip
	}

	if opts.ListenAddress.Host == "" {
		opts.ListenAddress.Host = opts.AdvertiseAddress.Host
	}

	return New(opts), nil
}
