package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

// Config bounds a single attachment download.
type Config struct {
	MaxBytes  int64
	UserAgent string
	Timeout   time.Duration
	// SkipHead disables the metadata probe.
	SkipHead bool
}

// DefaultConfig mirrors the production limits.
func DefaultConfig() Config {
	return Config{
		MaxBytes:  50 * 1024 * 1024,
		UserAgent: "rfq-summary-bot/1.0",
		Timeout:   90 * time.Second,
	}
}

// Result is a fully downloaded attachment.
type Result struct {
	Data        []byte
	ContentType string
}

// Fetcher downloads attachments over HTTP. It holds no per-request state.
type Fetcher struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

type Option func(*Fetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

func New(cfg Config, opts ...Option) *Fetcher {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultConfig().MaxBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 15 * time.Second}).DialContext,
		ResponseHeaderTimeout: 45 * time.Second,
		TLSHandshakeTimeout:   15 * time.Second,
	}
	f := &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url. It returns models.ErrSizeLimit when the attachment is
// larger than the configured ceiling, *models.HTTPStatusError on a non-2xx GET
// and models.ErrNetwork on transport failure.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	logCtx := f.logger.With("url", url)

	var headType string
	if !f.cfg.SkipHead {
		meta, err := f.head(ctx, url)
		switch {
		case errors.Is(err, models.ErrSizeLimit):
			return nil, err
		case err != nil:
			logCtx.Debug("HEAD probe failed, continuing with GET", "error", err)
		default:
			headType = meta.contentType
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build GET request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", models.ErrNetwork, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &models.HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body of %s: %v", models.ErrNetwork, url, err)
	}
	if int64(len(data)) > f.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: body of %s is larger than %d bytes", models.ErrSizeLimit, url, f.cfg.MaxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = headType
	}
	logCtx.Debug("Fetched attachment.", "bytes", len(data), "contentType", contentType)
	return &Result{Data: data, ContentType: contentType}, nil
}

type headMeta struct {
	contentType string
}

const headAttempts = 2

// head probes metadata. Transport errors are retried once; any other failure
// is returned for the caller to ignore, except a declared oversize body.
func (f *Fetcher) head(ctx context.Context, url string) (headMeta, error) {
	var lastErr error
	for attempt := 1; attempt <= headAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return headMeta{}, err
		}
		req.Header.Set("User-Agent", f.cfg.UserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: HEAD %s: %v", models.ErrTransientFetch, url, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 400 {
			return headMeta{}, fmt.Errorf("HEAD %s: status %d", url, resp.StatusCode)
		}
		if resp.ContentLength > f.cfg.MaxBytes {
			return headMeta{}, fmt.Errorf("%w: %s declares %d bytes (max %d)", models.ErrSizeLimit, url, resp.ContentLength, f.cfg.MaxBytes)
		}
		return headMeta{contentType: resp.Header.Get("Content-Type")}, nil
	}
	return headMeta{}, lastErr
}
