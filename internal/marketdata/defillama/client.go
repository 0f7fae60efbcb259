package defillama

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

	"github.com/rs/zerolog"

	"github.com/defi-rag-assistant/server/internal/agent/model"
	"github.com/defi-rag-assistant/server/internal/observability/metrics"
	logx "github.com/defi-rag-assistant/server/pkg/logger"
)

const (
	defaultBaseURL   = "https://api.llama.fi"
	defaultYieldsURL = "https://yields.llama.fi/pools"
	defaultTimeout   = 15 * time.Second

	maxErrBody = 512
)

// Endpoint label values.
const (
	EndpointProtocol  = "protocol"
	EndpointProtocols = "protocols"
	EndpointChains    = "chains"
	EndpointYields    = "yields"
)

// Config is bound from DEFILLAMA_* variables.
type Config struct {
	BaseURL   string        `envconfig:"DEFILLAMA_BASE_URL" default:"https://api.llama.fi"`
	YieldsURL string        `envconfig:"DEFILLAMA_YIELDS_URL" default:"https://yields.llama.fi/pools"`
	Timeout   time.Duration `envconfig:"DEFILLAMA_TIMEOUT" default:"15s"`
}

// Client reads public DefiLlama endpoints. Every method logs and swallows
// transport, status and decoding failures, returning nil or empty results.
type Client struct {
	baseURL    string
	yieldsURL  string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a DefiLlama client, filling unset fields with public defaults.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	yieldsURL := strings.TrimSpace(cfg.YieldsURL)
	if yieldsURL == "" {
		yieldsURL = defaultYieldsURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:   baseURL,
		yieldsURL: yieldsURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logx.Component("defillama"),
	}
}

// GetProtocol returns the protocol with the given slug, or nil when it cannot be fetched.
func (c *Client) GetProtocol(ctx context.Context, slug string) *model.ProtocolRecord {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil
	}

	var rec model.ProtocolRecord
	endpoint := c.baseURL + "/protocol/" + url.PathEscape(slug)
	if err := c.getJSON(ctx, EndpointProtocol, endpoint, &rec); err != nil {
		c.log.Warn().Err(err).Str("protocol", slug).Msg("Error fetching protocol")
		return nil
	}
	return &rec
}

// ListProtocols returns every protocol in provider order.
func (c *Client) ListProtocols(ctx context.Context) []model.ProtocolRecord {
	var out []model.ProtocolRecord
	if err := c.getJSON(ctx, EndpointProtocols, c.baseURL+"/protocols", &out); err != nil {
		c.log.Warn().Err(err).Msg("Error fetching protocols")
		return []model.ProtocolRecord{}
	}
	return out
}

// ListChains returns every chain in provider order.
func (c *Client) ListChains(ctx context.Context) []model.ChainRecord {
	var out []model.ChainRecord
	if err := c.getJSON(ctx, EndpointChains, c.baseURL+"/chains", &out); err != nil {
		c.log.Warn().Err(err).Msg("Error fetching chains")
		return []model.ChainRecord{}
	}
	return out
}

// ListYields returns every yield pool. Both the {"data": [...]} envelope and a bare array are accepted.
func (c *Client) ListYields(ctx context.Context) []model.YieldRecord {
	var out yieldsPayload
	if err := c.getJSON(ctx, EndpointYields, c.yieldsURL, &out); err != nil {
		c.log.Warn().Err(err).Msg("Error fetching yields")
		return []model.YieldRecord{}
	}
	if out == nil {
		return []model.YieldRecord{}
	}
	return out
}

// GetProtocolYields returns the pools whose project matches slug, ignoring case.
func (c *Client) GetProtocolYields(ctx context.Context, slug string) []model.YieldRecord {
	all := c.ListYields(ctx)
	out := make([]model.YieldRecord, 0)
	for _, y := range all {
		if strings.EqualFold(y.Project, slug) {
			out = append(out, y)
		}
	}
	return out
}

// yieldsPayload decodes either yields response shape.
type yieldsPayload []model.YieldRecord

func (p *yieldsPayload) UnmarshalJSON(data []byte) error {
	out, err := decodeYields(data)
	if err != nil {
		return err
	}
	*p = out
	return nil
}

func decodeYields(raw []byte) ([]model.YieldRecord, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	if raw[0] == '[' {
		var out []model.YieldRecord
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	var envelope struct {
		Status string              `json:"status"`
		Data   []model.YieldRecord `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, rawURL string, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		metrics.UpstreamRequests.WithLabelValues(endpoint, metrics.Outcome(err)).Inc()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}

	c.log.Debug().Str("endpoint", endpoint).Dur("elapsed", time.Since(start)).Msg("Market data fetched")
	return nil
}
