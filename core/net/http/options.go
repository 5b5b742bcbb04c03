package http

import (
	"maps"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kochabx/courier/log"
)

// Option 配置 Manager
type Option func(*Manager)

// WithClient sets the engine's underlying HTTP client.
func WithClient(client *http.Client) Option {
	return func(m *Manager) {
		if client != nil {
			m.client = client
		}
	}
}

// WithTimeout sets the client timeout for the whole exchange, body included.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithQueue sets the default completion queue.
func WithQueue(q Queue) Option {
	return func(m *Manager) {
		if q != nil {
			m.queue = q
		}
	}
}

// WithPool delivers completions on a manager-owned ants pool of the given
// size. The pool is released by Close.
func WithPool(size int) Option {
	return func(m *Manager) {
		m.poolSize = size
	}
}

// WithMaxConcurrency caps the number of transfers on the wire at once.
// Zero means unlimited.
func WithMaxConcurrency(n int) Option {
	return func(m *Manager) {
		m.maxConcurrency = n
	}
}

// WithDefaultHeader sets a header added to every request that lacks it.
func WithDefaultHeader(key, value string) Option {
	return func(m *Manager) {
		m.headers[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers.
func WithDefaultHeaders(headers map[string]string) Option {
	return func(m *Manager) {
		maps.Copy(m.headers, headers)
	}
}

// WithLogger sets the logger; log.G is used otherwise.
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics registers request metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		m.registerer = reg
	}
}

// RequestOption 单次请求的选项
type RequestOption struct {
	header   map[string]string
	encoding ParameterEncoding
}

// WithHeader sets multiple headers for the request
func WithHeader(header map[string]string) func(*RequestOption) {
	return func(opt *RequestOption) {
		maps.Copy(opt.header, header)
	}
}

// WithEncoding selects how a Parameters body is encoded. URLEncoding with
// MethodDependent is used when unset.
func WithEncoding(enc ParameterEncoding) func(*RequestOption) {
	return func(opt *RequestOption) {
		opt.encoding = enc
	}
}

func (opt *RequestOption) reset() {
	clear(opt.header)
	opt.encoding = nil
}
