// Package content produces congratulation payloads (postcard image + text)
// for a given name.
package content

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "congratbot/pkg/logx"
)

// Card is one congratulation payload.
type Card struct {
	Image []byte
	Text  string
}

// Provider generates a Card for a name.
type Provider interface {
	Generate(ctx context.Context, name string) (Card, error)
}

type Config struct {
	// BaseURL is the postcard image endpoint; the name is passed as the
	// "name" query parameter.
	BaseURL string
	// RequestTimeout bounds a single fetch. Default 8s.
	RequestTimeout time.Duration
}

// maxImageBytes caps a fetched postcard so a misbehaving endpoint cannot
// balloon memory (Telegram rejects photos over 10 MB anyway).
const maxImageBytes = 10 << 20

// HTTPProvider fetches postcard images over HTTP and composes the greeting
// text locally.
type HTTPProvider struct {
	cfg  Config
	log  logx.Logger
	http *http.Client
}

func NewHTTP(cfg Config, log logx.Logger) (*HTTPProvider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("content base_url is empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("content base_url: %w", err)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &HTTPProvider{
		cfg:  cfg,
		log:  log,
		http: &http.Client{Timeout: timeout},
	}, nil
}

func (p *HTTPProvider) Generate(ctx context.Context, name string) (Card, error) {
	img, err := p.fetchImage(ctx, name)
	if err != nil {
		return Card{}, err
	}
	return Card{Image: img, Text: greeting(name)}, nil
}

func (p *HTTPProvider) fetchImage(ctx context.Context, name string) ([]byte, error) {
	u, err := url.Parse(p.cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("name", name)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("postcard fetch: unexpected status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxImageBytes {
		return nil, fmt.Errorf("postcard fetch: image exceeds %d bytes", maxImageBytes)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("postcard fetch: empty body")
	}
	return b, nil
}

func greeting(name string) string {
	return fmt.Sprintf("Поздравляем, %s! 🎉", name)
}
