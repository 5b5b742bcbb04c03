package http

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"github.com/kochabx/courier/core/tag"
	"github.com/kochabx/courier/core/validator"
	"github.com/kochabx/courier/errors"
)

// Config is the loadable configuration of a Manager.
type Config struct {
	Timeout             time.Duration     `json:"timeout" mapstructure:"timeout" default:"30s" validate:"gte=0"`
	MaxIdleConns        int               `json:"max_idle_conns" mapstructure:"max_idle_conns" default:"100" validate:"gte=0"`
	MaxIdleConnsPerHost int               `json:"max_idle_conns_per_host" mapstructure:"max_idle_conns_per_host" default:"10" validate:"gte=0"`
	IdleConnTimeout     time.Duration     `json:"idle_conn_timeout" mapstructure:"idle_conn_timeout" default:"90s" validate:"gte=0"`
	DisableRedirects    bool              `json:"disable_redirects" mapstructure:"disable_redirects"`
	MaxRedirects        int               `json:"max_redirects" mapstructure:"max_redirects" default:"10" validate:"gte=0"`
	InsecureSkipVerify  bool              `json:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
	Proxy               string            `json:"proxy" mapstructure:"proxy" validate:"omitempty,url"`
	MaxConcurrency      int               `json:"max_concurrency" mapstructure:"max_concurrency" validate:"gte=0"`
	PoolSize            int               `json:"pool_size" mapstructure:"pool_size" validate:"gte=0"`
	Headers             map[string]string `json:"headers" mapstructure:"headers"`
}

// NewManagerFromConfig applies defaults to c, validates it and builds a
// Manager around a dedicated transport. opts are applied after the config.
func NewManagerFromConfig(c Config, opts ...Option) (*Manager, error) {
	if err := tag.ApplyDefaults(&c); err != nil {
		return nil, errors.Wrap(err, errors.CodeBadRequest, "apply manager defaults")
	}
	if err := validator.Validate.Struct(&c); err != nil {
		return nil, errors.Wrap(err, errors.CodeBadRequest, "invalid manager config")
	}

	client, err := c.client()
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithClient(client),
		WithDefaultHeaders(c.Headers),
		WithMaxConcurrency(c.MaxConcurrency),
		WithPool(c.PoolSize),
	}
	return NewManager(append(base, opts...)...)
}

func (c *Config) client() (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        c.MaxIdleConns,
		MaxIdleConnsPerHost: c.MaxIdleConnsPerHost,
		IdleConnTimeout:     c.IdleConnTimeout,
	}

	if c.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if c.Proxy != "" {
		proxyURL, err := url.Parse(c.Proxy)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeBadRequest, "invalid proxy url")
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	disable, limit := c.DisableRedirects, c.MaxRedirects
	return &http.Client{
		Transport: transport,
		Timeout:   c.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if disable || len(via) >= limit {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}
