package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/courier/errors"
	"github.com/kochabx/courier/log"
	"github.com/kochabx/courier/log/desensitize"
)

// syncBuffer collects log lines written from several goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Split(bytes.TrimSpace(b.buf.Bytes()), []byte("\n"))
}

type result struct {
	resp *http.Response
	req  *http.Request
	data []byte
	err  error
}

func await(t *testing.T, r Requestable) result {
	t.Helper()

	ch := make(chan result, 1)
	r.Response(nil, func(resp *http.Response, req *http.Request, data []byte, err error) {
		ch <- result{resp: resp, req: req, data: data, err: err}
	})

	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("completion was not delivered")
		return result{}
	}
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(append([]Option{WithLogger(log.NewNop())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

// blockingServer holds every request until the client goes away or the test ends.
func blockingServer(t *testing.T, arrived chan<- struct{}) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	return srv
}

func TestDataRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Echo-ID", r.Header.Get(HeaderRequestID))
		w.Header().Set("X-Echo-Agent", r.Header.Get("User-Agent"))
		fmt.Fprint(w, "hello")
	}))
	defer srv.Close()

	m := newTestManager(t, WithDefaultHeader("User-Agent", "courier-test"))
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/greeting", nil)
	require.NoError(t, err)

	op := m.Data(context.Background(), req)
	res := await(t, op)

	require.NoError(t, res.err)
	require.NotNil(t, res.resp)
	assert.Equal(t, http.StatusOK, res.resp.StatusCode)
	assert.Equal(t, "hello", string(res.data))
	require.NotNil(t, res.req)
	assert.Equal(t, op.ID(), res.req.Header.Get(HeaderRequestID))
	assert.Equal(t, op.ID(), res.resp.Header.Get("X-Echo-ID"))
	assert.Equal(t, "courier-test", res.resp.Header.Get("X-Echo-Agent"))
	assert.Same(t, res.req, op.Request())

	// the caller's request is not modified
	assert.Empty(t, req.Header.Get(HeaderRequestID))
}

func TestDataRequestKeepsRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.Header.Get(HeaderRequestID))
	}))
	defer srv.Close()

	m := newTestManager(t)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set(HeaderRequestID, "caller-id")

	res := await(t, m.Data(context.Background(), req))
	require.NoError(t, res.err)
	assert.Equal(t, "caller-id", string(res.data))
}

func TestDataRequestNil(t *testing.T) {
	m := newTestManager(t)
	op := m.Data(context.Background(), nil)
	res := await(t, op)

	require.Error(t, res.err)
	assert.Equal(t, errors.CodeBadRequest, errors.Code(res.err))
	assert.Nil(t, res.resp)
	assert.Nil(t, res.req)
	assert.Nil(t, res.data)
	assert.Equal(t, "data request "+op.ID(), op.String())
}

func TestEngineErrorPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m := newTestManager(t)
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	res := await(t, m.Data(context.Background(), req))

	require.Error(t, res.err)
	var coded *errors.Error
	assert.False(t, errors.As(res.err, &coded), "engine errors must not be rewrapped")
	assert.NotNil(t, res.req)
	assert.Nil(t, res.resp)
}

func TestDownloadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderContentDisposition, `attachment; filename="report.txt"`)
		fmt.Fprint(w, "quarterly numbers")
	}))
	defer srv.Close()

	dir := t.TempDir()
	m := newTestManager(t)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/files/123", nil)

	op := m.Download(context.Background(), req, SuggestedDestination(filepath.Join(dir, "nested")))
	res := await(t, op)

	require.NoError(t, res.err)
	assert.Nil(t, res.data)
	assert.Equal(t, http.StatusOK, res.resp.StatusCode)

	want := filepath.Join(dir, "nested", "report.txt")
	assert.Equal(t, want, op.Destination())
	content, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "quarterly numbers", string(content))
}

func TestDownloadExistingDestination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "new")
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "existing.bin")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	m := newTestManager(t)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	op := m.Download(context.Background(), req, FileDestination(path, DestinationOptions{}))
	res := await(t, op)
	require.Error(t, res.err)
	assert.Equal(t, errors.CodeInternal, errors.Code(res.err))
	assert.Empty(t, op.Destination())

	content, _ := os.ReadFile(path)
	assert.Equal(t, "old", string(content))

	op = m.Download(context.Background(), req, FileDestination(path, DestinationOptions{RemovePreviousFile: true}))
	res = await(t, op)
	require.NoError(t, res.err)
	content, _ = os.ReadFile(path)
	assert.Equal(t, "new", string(content))
}

func TestUploadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fmt.Fprintf(w, "%s:%d", r.Method, len(body))
	}))
	defer srv.Close()

	m := newTestManager(t)
	req, _ := http.NewRequest(http.MethodPut, srv.URL, nil)

	res := await(t, m.Upload(context.Background(), req, strings.NewReader("payload")))
	require.NoError(t, res.err)
	assert.Equal(t, "PUT:7", string(res.data))
	assert.Equal(t, int64(7), res.req.ContentLength)
}

func TestUploadMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		content, _ := io.ReadAll(file)
		fmt.Fprintf(w, "%s|%s|%s", r.FormValue("name"), header.Filename, content)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "avatar.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))

	form := NewMultipartFormData().
		Append("name", []byte("gopher")).
		AppendFile("file", path)

	m := newTestManager(t)
	req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)

	res := await(t, m.UploadMultipart(context.Background(), req, form))
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.resp.StatusCode)
	assert.Equal(t, "gopher|avatar.png|png-bytes", string(res.data))
}

func TestUploadMultipartMissingFile(t *testing.T) {
	m := newTestManager(t)
	req, _ := http.NewRequest(http.MethodPost, "http://127.0.0.1:0", nil)

	form := NewMultipartFormData().AppendFile("file", filepath.Join(t.TempDir(), "missing"))
	res := await(t, m.UploadMultipart(context.Background(), req, form))
	require.Error(t, res.err)
	assert.Equal(t, errors.CodeBadRequest, errors.Code(res.err))
}

func TestCancelInFlight(t *testing.T) {
	arrived := make(chan struct{}, 1)
	srv := blockingServer(t, arrived)

	m := newTestManager(t)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	op := m.Data(context.Background(), req)

	var calls atomic.Int32
	errCh := make(chan error, 1)
	token := m.Send(op, nil, func(_ *http.Response, _ *http.Request, _ []byte, err error) {
		calls.Add(1)
		errCh <- err
	})

	<-arrived
	assert.Equal(t, op.String(), token.String())
	for i := 0; i < 3; i++ {
		token.Cancel()
	}

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled request did not complete")
	}

	assert.True(t, token.IsCancelled())
	assert.True(t, op.IsCancelled())
	<-op.Done()
	assert.Equal(t, int32(1), calls.Load())
}

func TestCancelWaitingForSlot(t *testing.T) {
	arrived := make(chan struct{}, 2)
	srv := blockingServer(t, arrived)

	m := newTestManager(t, WithMaxConcurrency(1))

	first := m.Data(context.Background(), mustRequest(t, srv.URL))
	<-arrived

	second := m.Data(context.Background(), mustRequest(t, srv.URL))
	second.Cancel()

	res := await(t, second)
	assert.ErrorIs(t, res.err, context.Canceled)
	assert.Nil(t, res.resp)
	assert.Len(t, arrived, 0, "second request must not reach the server")

	first.Cancel()
	assert.ErrorIs(t, await(t, first).err, context.Canceled)
}

func TestParentContextCancel(t *testing.T) {
	arrived := make(chan struct{}, 1)
	srv := blockingServer(t, arrived)

	ctx, cancel := context.WithCancel(context.Background())
	m := newTestManager(t)
	op := m.Data(ctx, mustRequest(t, srv.URL))

	<-arrived
	cancel()

	res := await(t, op)
	assert.ErrorIs(t, res.err, context.Canceled)
	assert.False(t, op.IsCancelled())
}

func TestCancelAfterFinish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "done")
	}))
	defer srv.Close()

	m := newTestManager(t)
	op := m.Data(context.Background(), mustRequest(t, srv.URL))
	<-op.Done()

	op.Cancel()
	assert.False(t, op.IsCancelled())
	assert.Equal(t, "GET "+srv.URL+" (200)", op.String())

	res := await(t, op)
	require.NoError(t, res.err)
	assert.Equal(t, "done", string(res.data))
}

func TestCompletionsRunOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	m := newTestManager(t)
	op := m.Data(context.Background(), mustRequest(t, srv.URL))

	var early, late atomic.Int32
	op.Response(nil, func(*http.Response, *http.Request, []byte, error) { early.Add(1) }).
		Response(nil, func(*http.Response, *http.Request, []byte, error) { early.Add(1) })

	<-op.Done()
	op.Response(nil, func(*http.Response, *http.Request, []byte, error) { late.Add(1) })
	op.Response(nil, nil)

	assert.Eventually(t, func() bool { return early.Load() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), late.Load())
}

func TestRequestableKinds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "body")
	}))
	defer srv.Close()

	m := newTestManager(t)
	ops := []Operation{
		m.Data(context.Background(), mustRequest(t, srv.URL)),
		m.Download(context.Background(), mustRequest(t, srv.URL+"/file"), SuggestedDestination(t.TempDir())),
		m.Upload(context.Background(), mustRequest(t, srv.URL), strings.NewReader("x")),
	}

	var got []string
	for _, op := range ops {
		res := await(t, op)
		require.NoError(t, res.err)
		got = append(got, string(res.data))
	}
	assert.Equal(t, []string{"body", "", "body"}, got)
}

func TestRequestHelpers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fmt.Fprintf(w, "%s %s %s %s", r.Method, r.URL.RawQuery, r.Header.Get(HeaderContentType), body)
	}))
	defer srv.Close()

	m := newTestManager(t)
	ctx := context.Background()

	res := await(t, m.Post(ctx, srv.URL, map[string]int{"a": 1}))
	require.NoError(t, res.err)
	assert.Equal(t, "POST  application/json {\"a\":1}\n", string(res.data))

	res = await(t, m.Request(ctx, http.MethodGet, srv.URL, Parameters{"q": "go", "page": 2}))
	require.NoError(t, res.err)
	assert.Equal(t, "GET page=2&q=go  ", string(res.data))

	res = await(t, m.Request(ctx, http.MethodPost, srv.URL, Parameters{"q": "go"}, WithEncoding(JSONEncoding{})))
	require.NoError(t, res.err)
	assert.Equal(t, `POST  application/json {"q":"go"}`, string(res.data))

	res = await(t, m.Delete(ctx, srv.URL, WithHeader(map[string]string{HeaderContentType: ContentTypeText})))
	require.NoError(t, res.err)
	assert.Equal(t, "DELETE  text/plain ", string(res.data))

	res = await(t, m.Get(ctx, "://bad-url"))
	require.Error(t, res.err)
	assert.Nil(t, res.req)
}

func TestPoolDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "pooled")
	}))
	defer srv.Close()

	m := newTestManager(t, WithPool(2))
	res := await(t, m.Get(context.Background(), srv.URL))
	require.NoError(t, res.err)
	assert.Equal(t, "pooled", string(res.data))
}

func TestReleasedQueueFallsBackInline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	queue, err := NewPoolQueue(1)
	require.NoError(t, err)
	queue.Release()

	m := newTestManager(t)
	op := m.Get(context.Background(), srv.URL)
	<-op.Done()

	var ran bool
	op.Response(queue, func(*http.Response, *http.Request, []byte, error) { ran = true })
	assert.True(t, ran)
}

func TestMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			<-r.Context().Done()
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	m := newTestManager(t, WithMetrics(reg))
	// a second manager on the same registry shares the collectors
	other := newTestManager(t, WithMetrics(reg))

	require.NoError(t, await(t, m.Get(context.Background(), srv.URL)).err)
	require.NoError(t, await(t, other.Get(context.Background(), srv.URL)).err)

	slow := m.Get(context.Background(), srv.URL+"/slow")
	time.Sleep(50 * time.Millisecond)
	slow.Cancel()
	require.Error(t, await(t, slow).err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.metrics.requests.WithLabelValues("data", outcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.requests.WithLabelValues("data", outcomeCancelled)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.cancellations.WithLabelValues("data")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.metrics.inFlight.WithLabelValues("data")))
}

func TestNewManagerFromConfig(t *testing.T) {
	m, err := NewManagerFromConfig(Config{
		Timeout:        2 * time.Second,
		MaxConcurrency: 3,
		Headers:        map[string]string{"Accept": ContentTypeJSON},
	}, WithLogger(log.NewNop()))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 2*time.Second, m.client.Timeout)
	assert.NotNil(t, m.sem)
	assert.Equal(t, ContentTypeJSON, m.headers["Accept"])

	transport, ok := m.client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 100, transport.MaxIdleConns)

	_, err = NewManagerFromConfig(Config{Proxy: "not a url"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeBadRequest, errors.Code(err))
}

func TestRedirectPolicy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		fmt.Fprint(w, "end")
	}))
	defer srv.Close()

	m, err := NewManagerFromConfig(Config{DisableRedirects: true}, WithLogger(log.NewNop()))
	require.NoError(t, err)
	defer m.Close()

	res := await(t, m.Get(context.Background(), srv.URL+"/start"))
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusFound, res.resp.StatusCode)
}

func mustRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

func TestLogError(t *testing.T) {
	cancelled := logError(outcomeCancelled, context.Canceled)
	assert.Equal(t, errors.CodeClientClosed, cancelled.GetCode())
	assert.ErrorIs(t, cancelled, context.Canceled)

	timeout := logError(outcomeError, fmt.Errorf("get: %w", context.DeadlineExceeded))
	assert.Equal(t, errors.CodeTimeout, timeout.GetCode())
	assert.ErrorIs(t, timeout, context.DeadlineExceeded)

	bad := errors.BadRequest("bad")
	assert.Same(t, bad, logError(outcomeError, bad))
	assert.Equal(t, errors.UnknownCode, logError(outcomeError, io.ErrUnexpectedEOF).GetCode())
}

func TestCompletionLogCarriesCode(t *testing.T) {
	arrived := make(chan struct{}, 1)
	srv := blockingServer(t, arrived)

	buf := &syncBuffer{}
	m := newTestManager(t, WithLogger(log.NewWriter(buf)))
	op := m.Get(context.Background(), srv.URL)
	<-arrived
	op.Cancel()
	<-op.Done()

	var event map[string]any
	for _, line := range buf.lines() {
		var e map[string]any
		require.NoError(t, json.Unmarshal(line, &e))
		if e["message"] == "request stopped after cancellation" {
			event = e
		}
	}
	require.NotNil(t, event)
	assert.Equal(t, float64(errors.CodeClientClosed), event["code"])
	assert.Contains(t, event["error"], "code=499")
}

func TestWithTimeoutKeepsCallerClient(t *testing.T) {
	client := &http.Client{}
	m := newTestManager(t, WithClient(client), WithTimeout(3*time.Second))

	assert.Zero(t, client.Timeout)
	assert.Equal(t, 3*time.Second, m.client.Timeout)
	assert.NotSame(t, client, m.client)
}

func TestLoggedURLIsMasked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.URL.Query().Get("access_token"))
	}))
	defer srv.Close()

	buf := &syncBuffer{}
	hook := desensitize.NewHook(desensitize.CredentialQueryRule)
	m := newTestManager(t, WithLogger(log.NewWriter(buf, log.WithDesensitize(hook))))

	res := await(t, m.Get(context.Background(), srv.URL+"/me?access_token=abc123"))
	require.NoError(t, res.err)
	// the request itself is unchanged
	assert.Equal(t, "abc123", string(res.data))

	var dispatched bool
	for _, line := range buf.lines() {
		assert.NotContains(t, string(line), "abc123")
		if bytes.Contains(line, []byte("request dispatched")) {
			dispatched = true
			assert.Contains(t, string(line), "access_token=******")
		}
	}
	assert.True(t, dispatched)
}
