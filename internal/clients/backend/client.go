// Package backend is the HTTP client for the course backend: the section
// hierarchy store and the generation collaborators (text, image, video,
// transcript, exam) it fronts.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/yungbote/neurobridge-player/internal/observability"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/platform/apierr"
	"github.com/yungbote/neurobridge-player/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-player/internal/platform/httpx"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

type Config struct {
	BaseURL string
	// Timeout bounds hierarchy and save calls; GenerateTimeout bounds the
	// generation collaborators, which can take minutes.
	Timeout         time.Duration
	GenerateTimeout time.Duration
	MaxRetries      int
	// SessionCookie, when set, also forwards the caller's token as this cookie.
	SessionCookie string

	Provider    string
	Model       string
	Temperature float64
}

type Client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
	genClient  *http.Client
	maxRetries int
	cookieName string

	provider    string
	model       string
	temperature float64
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("backend base url required: %w", nberrors.ErrInvalidArgument)
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("backend base url: %v: %w", err, nberrors.ErrInvalidArgument)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 5 * time.Minute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		log:         log.With("client", "BackendClient"),
		baseURL:     base,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		genClient:   &http.Client{Timeout: cfg.GenerateTimeout},
		maxRetries:  cfg.MaxRetries,
		cookieName:  strings.TrimSpace(cfg.SessionCookie),
		provider:    cfg.Provider,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

func (c *Client) doOnce(ctx context.Context, httpClient *http.Client, method, path string, body any) (*http.Response, []byte, error) {
	var rdr io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
		rdr = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s := ctxutil.GetSession(ctx); s != nil && s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
		if c.cookieName != "" {
			req.AddCookie(&http.Cookie{Name: c.cookieName, Value: s.Token})
		}
	}
	if td := ctxutil.GetTraceData(ctx); td != nil && td.RequestID != "" {
		req.Header.Set("X-Request-ID", td.RequestID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("backend %s %s: %w: %w", method, path, nberrors.ErrNetwork, err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, fmt.Errorf("backend %s %s read: %w: %w", method, path, nberrors.ErrNetwork, readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, apierr.FromStatus(resp.StatusCode, string(raw))
	}
	return resp, raw, nil
}

// do sends one request. Only idempotent calls pass retry=true: generation
// calls have side effects and are attempted once.
func (c *Client) do(ctx context.Context, httpClient *http.Client, method, path, endpoint string, body, out any, retry bool) error {
	backoff := 500 * time.Millisecond
	start := time.Now()
	attempts := 0
	if retry {
		attempts = c.maxRetries
	}

	for attempt := 0; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("backend %s: %w: %w", endpoint, nberrors.ErrNetwork, ctx.Err())
		}

		resp, raw, err := c.doOnce(ctx, httpClient, method, path, body)
		if err == nil {
			observability.Current().ObserveBackendRequest(endpoint, resp.StatusCode, time.Since(start))
			if out == nil || len(bytes.TrimSpace(raw)) == 0 {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("backend %s decode: %v: %w", endpoint, uErr, nberrors.ErrNetwork)
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == attempts {
			observability.Current().ObserveBackendRequest(endpoint, statusOf(resp), time.Since(start))
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("Backend request retrying",
			"endpoint", endpoint,
			"attempt", attempt+1,
			"max_retries", attempts,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if sErr := httpx.Sleep(ctx, sleepFor); sErr != nil {
			return fmt.Errorf("backend %s: %w: %w", endpoint, nberrors.ErrNetwork, sErr)
		}
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
