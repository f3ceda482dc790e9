package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultIPInfoURL = "https://ipinfo.io"
	defaultTimeout   = 5 * time.Second
	maxBodyBytes     = 64 << 10
)

type ipinfoResponse struct {
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Loc      string `json:"loc"`
	Org      string `json:"org"`
	Timezone string `json:"timezone"`
	Bogon    bool   `json:"bogon"`
}

// IPInfo queries the ipinfo.io JSON API. Without a token every lookup is skipped.
type IPInfo struct {
	token   string
	baseURL string
	timeout time.Duration
	client  *http.Client
	log     *zap.Logger
}

type IPInfoOptions struct {
	Token   string
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
	Logger  *zap.Logger
}

func NewIPInfo(opts IPInfoOptions) *IPInfo {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultIPInfoURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &IPInfo{
		token:   opts.Token,
		baseURL: baseURL,
		timeout: timeout,
		client:  client,
		log:     log,
	}
}

// Configured reports whether a token is present.
func (c *IPInfo) Configured() bool {
	return c.token != ""
}

func (c *IPInfo) Lookup(ctx context.Context, ip string) *Result {
	if !c.Configured() || !IsPublic(ip) {
		return nil
	}

	res, err := c.fetch(ctx, ip)
	if err != nil {
		c.log.Warn("ipinfo lookup failed", zap.Error(err))
		return nil
	}
	return res
}

func (c *IPInfo) fetch(ctx context.Context, ip string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/json?token=%s", c.baseURL, url.PathEscape(ip), url.QueryEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// The request URL carries the token.
		if uerr, ok := err.(*url.Error); ok {
			err = uerr.Err
		}
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body ipinfoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if body.Bogon {
		return nil, nil
	}

	res := &Result{
		Country:  clean(body.Country),
		City:     clean(body.City),
		Region:   clean(body.Region),
		Timezone: clean(body.Timezone),
		ISP:      clean(body.Org),
		Loc:      clean(body.Loc),
	}
	if res.Empty() {
		return nil, nil
	}
	return res, nil
}
