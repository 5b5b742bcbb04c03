package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"strings"

	"github.com/kochabx/courier/errors"
)

// Parameters are request parameters handed to a ParameterEncoding.
type Parameters map[string]any

// ParameterEncoding applies parameters to a request, returning the request
// to send. Implementations may return a new request or modify req in place.
type ParameterEncoding interface {
	Encode(req *http.Request, params Parameters) (*http.Request, error)
}

// Destination selects where URLEncoding places parameters.
type Destination int

const (
	// MethodDependent uses the query string for GET, HEAD and DELETE and the
	// body for everything else.
	MethodDependent Destination = iota
	// QueryString always appends to the URL query.
	QueryString
	// HTTPBody always writes a form-encoded body.
	HTTPBody
)

// URLEncoding encodes parameters as application/x-www-form-urlencoded.
// Keys are sorted. Slices and arrays repeat the key, nested maps are written
// as key[sub]=value.
type URLEncoding struct {
	Destination Destination
}

// Encode implements ParameterEncoding
func (e URLEncoding) Encode(req *http.Request, params Parameters) (*http.Request, error) {
	if req == nil {
		return nil, errors.BadRequest("request is nil")
	}
	if len(params) == 0 {
		return req, nil
	}

	values := make(url.Values, len(params))
	for _, key := range slices.Sorted(maps.Keys(params)) {
		for _, pair := range queryComponents(key, params[key]) {
			values.Add(pair[0], pair[1])
		}
	}

	if e.inQuery(req.Method) {
		query := req.URL.Query()
		for k, vs := range values {
			for _, v := range vs {
				query.Add(k, v)
			}
		}
		req.URL.RawQuery = query.Encode()
		return req, nil
	}

	body := values.Encode()
	if req.Header.Get(HeaderContentType) == "" {
		req.Header.Set(HeaderContentType, ContentTypeForm+"; charset=utf-8")
	}
	setEncodedBody(req, []byte(body))
	return req, nil
}

func (e URLEncoding) inQuery(method string) bool {
	switch e.Destination {
	case QueryString:
		return true
	case HTTPBody:
		return false
	}
	switch method {
	case "", http.MethodGet, http.MethodHead, http.MethodDelete:
		return true
	}
	return false
}

// JSONEncoding writes parameters as a JSON body.
type JSONEncoding struct {
	// Indent pretty-prints the body when non-empty.
	Indent string
}

// Encode implements ParameterEncoding
func (e JSONEncoding) Encode(req *http.Request, params Parameters) (*http.Request, error) {
	if req == nil {
		return nil, errors.BadRequest("request is nil")
	}
	if params == nil {
		return req, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if e.Indent != "" {
		enc.SetIndent("", e.Indent)
	}
	if err := enc.Encode(params); err != nil {
		return nil, errors.Wrap(err, errors.CodeBadRequest, "encode json parameters")
	}

	if req.Header.Get(HeaderContentType) == "" {
		req.Header.Set(HeaderContentType, ContentTypeJSON)
	}
	setEncodedBody(req, bytes.TrimRight(buf.Bytes(), "\n"))
	return req, nil
}

func setEncodedBody(req *http.Request, body []byte) {
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
}

// queryComponents expands value under key. Slices and arrays repeat key,
// maps nest as key[sub] in sorted order, anything else is a single pair.
func queryComponents(key string, value any) [][2]string {
	switch t := value.(type) {
	case nil:
		return [][2]string{{key, ""}}
	case string:
		return [][2]string{{key, t}}
	case bool:
		if t {
			return [][2]string{{key, "1"}}
		}
		return [][2]string{{key, "0"}}
	case fmt.Stringer:
		return [][2]string{{key, t.String()}}
	case []byte:
		return [][2]string{{key, string(t)}}
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return [][2]string{{key, ""}}
		}
		return queryComponents(key, rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		var out [][2]string
		for i := range rv.Len() {
			out = append(out, queryComponents(key, rv.Index(i).Interface())...)
		}
		return out
	case reflect.Map:
		subs := make(map[string]reflect.Value, rv.Len())
		for iter := rv.MapRange(); iter.Next(); {
			subs[fmt.Sprint(iter.Key().Interface())] = iter.Value()
		}
		var out [][2]string
		for _, sub := range slices.Sorted(maps.Keys(subs)) {
			out = append(out, queryComponents(key+"["+sub+"]", subs[sub].Interface())...)
		}
		return out
	default:
		return [][2]string{{key, strings.TrimSpace(fmt.Sprint(value))}}
	}
}
