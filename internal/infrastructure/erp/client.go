package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/jhoicas/Gatepass-api/internal/domain"
	"github.com/jhoicas/Gatepass-api/pkg/logger"
)

const maxBody = 1 << 20

// ClientConfig conexión al ERP.
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// Fallos consecutivos que abren el circuito y tiempo que permanece abierto.
	MaxFailures  uint32
	OpenInterval time.Duration
}

// Client cliente HTTP JSON del ERP protegido por un circuit breaker. Los fallos de transporte,
// los 5xx y el circuito abierto se devuelven como domain.ErrAdapterUnavailable; un 404 como
// domain.ErrNotFound y no cuenta como fallo.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	log        *logger.Logger
}

type response struct {
	status int
	body   []byte
}

// NewClient construye el cliente.
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenInterval <= 0 {
		cfg.OpenInterval = 30 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.Named("erp"),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "erp",
		MaxRequests: 1,
		Timeout:     cfg.OpenInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("cambio de estado del circuito ERP")
		},
	})
	return c
}

// do ejecuta la petición y decodifica out si la respuesta es 2xx.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("erp: marshal request: %w", err)
		}
	}

	res, err := c.breaker.Execute(func() (any, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return response{status: resp.StatusCode, body: raw}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: circuito abierto", domain.ErrAdapterUnavailable)
		}
		return fmt.Errorf("%w: %s %s: %v", domain.ErrAdapterUnavailable, method, path, err)
	}

	r := res.(response)
	switch {
	case r.status == http.StatusNotFound:
		return domain.ErrNotFound
	case r.status >= 400:
		return fmt.Errorf("erp: %s %s: HTTP %d: %s", method, path, r.status, strings.TrimSpace(string(r.body)))
	}
	if out == nil || len(r.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return fmt.Errorf("erp: decode %s: %w", path, err)
	}
	return nil
}

// State estado del circuito (closed, half-open, open).
func (c *Client) State() string {
	return c.breaker.State().String()
}
