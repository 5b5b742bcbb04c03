package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Kind identifies how an operation treats the response body.
type Kind string

const (
	KindData     Kind = "data"
	KindDownload Kind = "download"
	KindUpload   Kind = "upload"
)

type handler struct {
	queue      Queue
	completion Completion
}

// operation is the state shared by all request kinds. Result fields are
// written once by finish before finished is set, and read only after.
type operation struct {
	id      string
	kind    Kind
	manager *Manager
	req     *http.Request
	ctx     context.Context
	stop    context.CancelFunc
	done    chan struct{}
	started time.Time

	// err set before dispatch makes run complete without touching the wire
	prepErr error

	mu          sync.Mutex
	finished    bool
	cancelled   bool
	handlers    []handler
	resp        *http.Response
	data        []byte
	err         error
	destination string
}

// ID returns the operation ID, also sent as the X-Request-ID header.
func (o *operation) ID() string {
	return o.id
}

// Kind returns the operation kind.
func (o *operation) Kind() Kind {
	return o.kind
}

// Request returns the request as sent.
func (o *operation) Request() *http.Request {
	return o.req
}

// Done is closed once the operation has a result.
func (o *operation) Done() <-chan struct{} {
	return o.done
}

// Cancel asks the engine to abort the transfer. It is a no-op once the
// operation has finished or was already cancelled.
func (o *operation) Cancel() {
	o.mu.Lock()
	if o.finished || o.cancelled {
		o.mu.Unlock()
		return
	}
	o.cancelled = true
	o.mu.Unlock()

	o.stop()
	o.manager.metrics.cancelled(o.kind)
	o.manager.logger.Debug().
		Str("id", o.id).
		Str("kind", string(o.kind)).
		Msg("request cancelled")
}

// IsCancelled reports whether Cancel took effect.
func (o *operation) IsCancelled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled
}

// String describes the operation as "METHOD URL", followed by the status
// code once a response arrived.
func (o *operation) String() string {
	if o.req == nil || o.req.URL == nil {
		return fmt.Sprintf("%s request %s", o.kind, o.id)
	}

	desc := o.req.Method + " " + o.req.URL.String()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finished && o.resp != nil {
		desc += fmt.Sprintf(" (%d)", o.resp.StatusCode)
	}
	return desc
}

// attach registers a completion, or delivers it at once if the result is in.
func (o *operation) attach(queue Queue, completion Completion) {
	if completion == nil {
		return
	}
	h := handler{queue: queue, completion: completion}

	o.mu.Lock()
	if !o.finished {
		o.handlers = append(o.handlers, h)
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	o.deliver(h)
}

// finish records the result and flushes pending completions. It must be
// called exactly once.
func (o *operation) finish(resp *http.Response, data []byte, err error) {
	o.mu.Lock()
	o.resp = resp
	o.data = data
	o.err = err
	o.finished = true
	pending := o.handlers
	o.handlers = nil
	o.mu.Unlock()

	o.stop()
	close(o.done)

	for _, h := range pending {
		o.deliver(h)
	}
}

func (o *operation) deliver(h handler) {
	resp, req, data, err := o.result()
	task := func() { h.completion(resp, req, data, err) }

	queue := h.queue
	if queue == nil {
		queue = o.manager.queue
	}
	if submitErr := queue.Submit(task); submitErr != nil {
		o.manager.logger.Warn().
			Err(submitErr).
			Str("id", o.id).
			Msg("completion queue rejected task, running inline")
		task()
	}
}

func (o *operation) result() (*http.Response, *http.Request, []byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var data []byte
	if o.kind != KindDownload {
		data = o.data
	}
	return o.resp, o.req, data, o.err
}

func (o *operation) setDestination(path string) {
	o.mu.Lock()
	o.destination = path
	o.mu.Unlock()
}

// DataRequest buffers the whole response body in memory.
type DataRequest struct {
	*operation
}

// Response attaches completion; data holds the response body.
func (r *DataRequest) Response(queue Queue, completion Completion) Requestable {
	r.attach(queue, completion)
	return r
}

// DownloadRequest streams the response body into a file.
type DownloadRequest struct {
	*operation
}

// Response attaches completion; data is always nil.
func (r *DownloadRequest) Response(queue Queue, completion Completion) Requestable {
	r.attach(queue, completion)
	return r
}

// Destination returns where the body was written, or "" before the
// download finished successfully.
func (r *DownloadRequest) Destination() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destination
}

// UploadRequest streams a request body and buffers the response body.
type UploadRequest struct {
	*operation
}

// Response attaches completion; data holds the response body.
func (r *UploadRequest) Response(queue Queue, completion Completion) Requestable {
	r.attach(queue, completion)
	return r
}

var (
	_ Operation = (*DataRequest)(nil)
	_ Operation = (*DownloadRequest)(nil)
	_ Operation = (*UploadRequest)(nil)
)
