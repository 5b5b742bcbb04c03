package errors

// Codes follow HTTP status semantics so they read naturally next to response codes.
const (
	CodeBadRequest   = 400
	CodeNotFound     = 404
	CodeClientClosed = 499
	CodeInternal     = 500
	CodeTimeout      = 504
)

// BadRequest reports invalid input handed to the module (parameters, forms, config).
func BadRequest(format string, args ...any) *Error {
	return New(CodeBadRequest, format, args...)
}

// NotFound reports a missing resource such as a config file.
func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, format, args...)
}

// ClientClosed marks an operation that was cancelled by its owner.
func ClientClosed(format string, args ...any) *Error {
	return New(CodeClientClosed, format, args...)
}

// Internal reports a local failure, e.g. moving a downloaded file into place.
func Internal(format string, args ...any) *Error {
	return New(CodeInternal, format, args...)
}

// GatewayTimeout 请求超过截止时间
func GatewayTimeout(format string, args ...any) *Error {
	return New(CodeTimeout, format, args...)
}
