// internal/adapter/linkresolve/http.go

package linkresolve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Config contains configuration for the link resolver
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	UserAgent    string
}

// DefaultConfig returns the default link resolver configuration
func DefaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		MaxRedirects: 10,
		UserAgent:    "tadamon-link-resolver/1.0",
	}
}

// HTTPResolver expands shortened map links by following their redirect chain
type HTTPResolver struct {
	client *http.Client
	config Config
}

// New creates a new HTTP link resolver
func New(config Config) *HTTPResolver {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRedirects <= 0 {
		config.MaxRedirects = defaults.MaxRedirects
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	client := &http.Client{
		Timeout: config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= config.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", config.MaxRedirects)
			}
			return nil
		},
	}

	return &HTTPResolver{
		client: client,
		config: config,
	}
}

// ResolveMapLink returns the final URL the link redirects to
func (h *HTTPResolver) ResolveMapLink(ctx context.Context, url string) (string, error) {
	final, err := h.follow(ctx, http.MethodHead, url)
	if errors.Is(err, errMethodNotAllowed) {
		// Some shorteners only answer GET
		final, err = h.follow(ctx, http.MethodGet, url)
	}
	if err != nil {
		return "", err
	}

	log.Debug().Str("url", url).Str("final", final).Msg("Map link expanded")
	return final, nil
}

var errMethodNotAllowed = errors.New("method not allowed")

func (h *HTTPResolver) follow(ctx context.Context, method, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return "", fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("User-Agent", h.config.UserAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error following link: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed {
		return "", errMethodNotAllowed
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("link returned status %d", resp.StatusCode)
	}

	return resp.Request.URL.String(), nil
}
