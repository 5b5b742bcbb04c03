package http

import "net/http"

// Cancellable is something whose in-flight work can be asked to stop.
type Cancellable interface {
	Cancel()
	IsCancelled() bool
}

// RequestType exposes the request an operation sent, without exposing the
// operation kind. Request returns nil when the operation failed before dispatch.
type RequestType interface {
	ID() string
	Request() *http.Request
}

// Completion receives the outcome of an operation. Every slot may be nil:
// resp and req are absent when the request never reached the wire, and data
// is always nil for downloads because the body is written to disk instead.
type Completion func(resp *http.Response, req *http.Request, data []byte, err error)

// Requestable lets callers attach a completion to any operation kind.
// A nil queue delivers on the manager's default queue.
type Requestable interface {
	Response(queue Queue, completion Completion) Requestable
}

// Operation is the handle returned by every Manager dispatch method.
type Operation interface {
	Requestable
	RequestType
	Cancellable
	String() string
}

// Queue runs completion handlers.
type Queue interface {
	Submit(task func()) error
}
