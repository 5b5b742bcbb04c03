package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"github.com/kochabx/courier/core/cancel"
	"github.com/kochabx/courier/errors"
	"github.com/kochabx/courier/log"
)

const (
	// Buffer pool constants
	defaultBufferSize = 4096
	maxBufferSize     = 1024 * 1024 // 1MB
)

// Manager is the HTTP engine behind every operation. Each dispatch method
// starts the transfer immediately and returns a handle to it.
type Manager struct {
	client     *http.Client
	queue      Queue
	pool       *PoolQueue
	sem        *semaphore.Weighted
	headers    map[string]string
	logger     *log.Logger
	metrics    *metrics
	bufferPool sync.Pool
	optPool    sync.Pool

	timeout        time.Duration
	poolSize       int
	maxConcurrency int
	registerer     prometheus.Registerer
}

// NewManager creates a Manager. Without options it uses a plain http.Client,
// delivers completions inline and does not cap concurrency.
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		client:  &http.Client{},
		queue:   InlineQueue{},
		headers: make(map[string]string),
		logger:  log.G,
		bufferPool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, defaultBufferSize))
			},
		},
		optPool: sync.Pool{
			New: func() any {
				return &RequestOption{header: make(map[string]string, 8)}
			},
		},
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.timeout > 0 {
		// copy so a client passed with WithClient is left untouched
		client := *m.client
		client.Timeout = m.timeout
		m.client = &client
	}
	if m.maxConcurrency > 0 {
		m.sem = semaphore.NewWeighted(int64(m.maxConcurrency))
	}
	if m.poolSize > 0 {
		pool, err := NewPoolQueue(m.poolSize)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeBadRequest, "create completion pool")
		}
		m.pool = pool
		m.queue = pool
	}
	if m.registerer != nil {
		m.metrics = newMetrics(m.registerer)
	}

	return m, nil
}

// Close releases the manager-owned completion pool, if any. In-flight
// transfers are not cancelled.
func (m *Manager) Close() {
	if m.pool != nil {
		m.pool.Release()
	}
}

// Data sends req and buffers the response body.
func (m *Manager) Data(ctx context.Context, req *http.Request) *DataRequest {
	op := m.newOperation(ctx, KindData, req)
	go m.run(op, m.readBody)
	return &DataRequest{op}
}

// Upload sends req with body streamed as the request body.
func (m *Manager) Upload(ctx context.Context, req *http.Request, body io.Reader) *UploadRequest {
	op := m.newOperation(ctx, KindUpload, req)
	if op.prepErr == nil {
		setBody(op.req, body)
	}
	go m.run(op, m.readBody)
	return &UploadRequest{op}
}

// UploadMultipart encodes form and sends it as the body of req.
func (m *Manager) UploadMultipart(ctx context.Context, req *http.Request, form *MultipartFormData) *UploadRequest {
	op := m.newOperation(ctx, KindUpload, req)
	if op.prepErr == nil {
		body, contentType, err := form.Encode()
		if err != nil {
			op.prepErr = err
		} else {
			setBody(op.req, body)
			op.req.Header.Set(HeaderContentType, contentType)
		}
	}
	go m.run(op, m.readBody)
	return &UploadRequest{op}
}

// Download sends req and writes the response body to the file chosen by
// dest. A nil dest saves into the system temp directory.
func (m *Manager) Download(ctx context.Context, req *http.Request, dest DownloadDestination) *DownloadRequest {
	op := m.newOperation(ctx, KindDownload, req)
	if dest == nil {
		dest = SuggestedDestination("")
	}
	go m.run(op, func(resp *http.Response) ([]byte, error) {
		path, err := saveBody(resp, dest)
		if err != nil {
			return nil, err
		}
		op.setDestination(path)
		return nil, nil
	})
	return &DownloadRequest{op}
}

// Send attaches completion to op and returns a token that cancels it.
func (m *Manager) Send(op Operation, queue Queue, completion Completion) *cancel.Token {
	op.Response(queue, completion)
	return cancel.FromOperation(op)
}

// Request builds a request from method, url and body and sends it as a data
// request. Body may be nil, an io.Reader, []byte, Parameters (encoded with
// the chosen ParameterEncoding) or any value encoded as JSON.
func (m *Manager) Request(ctx context.Context, method, url string, body any, opts ...func(*RequestOption)) *DataRequest {
	return m.RequestURL(ctx, method, RawURL(url), body, opts...)
}

// RequestURL is Request with the address taken from target, e.g. a *URLBuilder.
func (m *Manager) RequestURL(ctx context.Context, method string, target URLConvertible, body any, opts ...func(*RequestOption)) *DataRequest {
	opt := m.getRequestOption()
	defer m.putRequestOption(opt)

	for _, o := range opts {
		o(opt)
	}

	req, err := m.newRequest(method, target, body, opt)
	if err != nil {
		op := m.newOperation(ctx, KindData, nil)
		op.prepErr = err
		go m.run(op, m.readBody)
		return &DataRequest{op}
	}

	for k, v := range opt.header {
		req.Header.Set(k, v)
	}
	return m.Data(ctx, req)
}

// Get 发送 GET 请求
func (m *Manager) Get(ctx context.Context, url string, opts ...func(*RequestOption)) *DataRequest {
	return m.Request(ctx, http.MethodGet, url, nil, opts...)
}

// Post sends body as a POST. See Request for the accepted body types.
func (m *Manager) Post(ctx context.Context, url string, body any, opts ...func(*RequestOption)) *DataRequest {
	return m.Request(ctx, http.MethodPost, url, body, opts...)
}

func (m *Manager) Put(ctx context.Context, url string, body any, opts ...func(*RequestOption)) *DataRequest {
	return m.Request(ctx, http.MethodPut, url, body, opts...)
}

func (m *Manager) Patch(ctx context.Context, url string, body any, opts ...func(*RequestOption)) *DataRequest {
	return m.Request(ctx, http.MethodPatch, url, body, opts...)
}

// Delete sends a DELETE without a body.
func (m *Manager) Delete(ctx context.Context, url string, opts ...func(*RequestOption)) *DataRequest {
	return m.Request(ctx, http.MethodDelete, url, nil, opts...)
}

func (m *Manager) newOperation(ctx context.Context, kind Kind, req *http.Request) *operation {
	if ctx == nil {
		ctx = context.Background()
	}
	opCtx, stop := context.WithCancel(ctx)

	op := &operation{
		id:      uuid.NewString(),
		kind:    kind,
		manager: m,
		ctx:     opCtx,
		stop:    stop,
		done:    make(chan struct{}),
		started: time.Now(),
	}

	if req == nil {
		op.prepErr = errors.BadRequest("request is nil")
		return op
	}

	op.req = req.Clone(opCtx)
	if op.req.Header.Get(HeaderRequestID) == "" {
		op.req.Header.Set(HeaderRequestID, op.id)
	}
	for k, v := range m.headers {
		if op.req.Header.Get(k) == "" {
			op.req.Header.Set(k, v)
		}
	}
	return op
}

// run performs the exchange on the calling goroutine and finishes op.
// consume owns resp.Body and must close it.
func (m *Manager) run(op *operation, consume func(*http.Response) ([]byte, error)) {
	m.metrics.begin(op.kind)

	if op.prepErr != nil {
		m.complete(op, nil, nil, op.prepErr)
		return
	}

	m.logger.Debug().
		Str("id", op.id).
		Str("kind", string(op.kind)).
		Str("method", op.req.Method).
		Str("url", op.req.URL.String()).
		Msg("request dispatched")

	if err := m.acquire(op.ctx); err != nil {
		m.complete(op, nil, nil, err)
		return
	}
	defer m.release()

	resp, err := m.client.Do(op.req)
	if err != nil {
		m.complete(op, nil, nil, err)
		return
	}

	data, err := consume(resp)
	m.complete(op, resp, data, err)
}

func (m *Manager) complete(op *operation, resp *http.Response, data []byte, err error) {
	outcome := outcomeOf(op, err)
	m.metrics.end(op.kind, outcome, time.Since(op.started))

	switch outcome {
	case outcomeSuccess:
		m.logger.Debug().
			Str("id", op.id).
			Str("kind", string(op.kind)).
			Int("status", resp.StatusCode).
			Dur("duration", time.Since(op.started)).
			Msg("request completed")
	case outcomeCancelled:
		coded := logError(outcome, err)
		m.logger.Debug().
			Str("id", op.id).
			Str("kind", string(op.kind)).
			Int("code", coded.GetCode()).
			Err(coded).
			Msg("request stopped after cancellation")
	default:
		coded := logError(outcome, err)
		m.logger.Warn().
			Str("id", op.id).
			Str("kind", string(op.kind)).
			Int("code", coded.GetCode()).
			Err(coded).
			Msg("request failed")
	}

	op.finish(resp, data, err)
}

// logError is the coded form of err attached to completion log events.
func logError(outcome string, err error) *errors.Error {
	switch {
	case outcome == outcomeCancelled:
		return errors.ClientClosed("request cancelled").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return errors.GatewayTimeout("request deadline exceeded").WithCause(err)
	default:
		return errors.FromError(err)
	}
}

func (m *Manager) acquire(ctx context.Context) error {
	if m.sem == nil {
		return nil
	}
	return m.sem.Acquire(ctx, 1)
}

func (m *Manager) release() {
	if m.sem != nil {
		m.sem.Release(1)
	}
}

// readBody drains resp.Body through a pooled buffer.
func (m *Manager) readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	buf := m.getBuffer()
	defer m.putBuffer(buf)

	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

func (m *Manager) newRequest(method string, target URLConvertible, body any, opt *RequestOption) (*http.Request, error) {
	if target == nil {
		return nil, errors.BadRequest("request url is nil")
	}
	u, err := target.URL()
	if err != nil {
		return nil, err
	}
	return m.createRequest(method, u.String(), body, opt)
}

// createRequest creates an HTTP request with the appropriate body
func (m *Manager) createRequest(method, url string, body any, opt *RequestOption) (*http.Request, error) {
	switch v := body.(type) {
	case nil:
		return http.NewRequest(method, url, nil)
	case io.Reader:
		return http.NewRequest(method, url, v)
	case []byte:
		return http.NewRequest(method, url, bytes.NewReader(v))
	case Parameters:
		req, err := http.NewRequest(method, url, nil)
		if err != nil {
			return nil, err
		}
		enc := opt.encoding
		if enc == nil {
			enc = URLEncoding{}
		}
		return enc.Encode(req, v)
	default:
		return m.createJSONRequest(method, url, v)
	}
}

// createJSONRequest creates an HTTP request with JSON body
func (m *Manager) createJSONRequest(method, url string, body any) (*http.Request, error) {
	buf := m.getBuffer()
	defer m.putBuffer(buf)

	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return nil, errors.Wrap(err, errors.CodeBadRequest, "encode json body")
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(bytes.Clone(buf.Bytes())))
	if err != nil {
		return nil, err
	}
	req.Header.Set(HeaderContentType, ContentTypeJSON)
	return req, nil
}

func (m *Manager) getRequestOption() *RequestOption {
	opt := m.optPool.Get().(*RequestOption)
	opt.reset()
	return opt
}

func (m *Manager) putRequestOption(opt *RequestOption) {
	m.optPool.Put(opt)
}

// getBuffer retrieves a buffer from the pool
func (m *Manager) getBuffer() *bytes.Buffer {
	buf := m.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// putBuffer returns a buffer to the pool unless it grew too large
func (m *Manager) putBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= maxBufferSize {
		m.bufferPool.Put(buf)
	}
}

// setBody replaces the request body. A zero ContentLength with a non-nil
// body is sent as unknown length, so only readers that report a size set it.
func setBody(req *http.Request, body io.Reader) {
	if body == nil {
		req.Body = http.NoBody
		req.ContentLength = 0
		return
	}

	req.ContentLength = 0
	if sized, ok := body.(interface{ Len() int }); ok {
		req.ContentLength = int64(sized.Len())
	}
	if rc, ok := body.(io.ReadCloser); ok {
		req.Body = rc
	} else {
		req.Body = io.NopCloser(body)
	}
	req.GetBody = nil
}
