package http

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/kochabx/courier/errors"
)

type bodyPart struct {
	name        string
	filename    string
	contentType string
	data        []byte
	path        string
	reader      io.Reader
}

// MultipartFormData collects form parts for an upload. Parts are written in
// the order they were appended; file parts are read when Encode runs.
type MultipartFormData struct {
	boundary string
	parts    []bodyPart
}

// NewMultipartFormData creates an empty form with a random boundary.
func NewMultipartFormData() *MultipartFormData {
	return &MultipartFormData{boundary: multipart.NewWriter(io.Discard).Boundary()}
}

// Boundary returns the boundary used between parts.
func (f *MultipartFormData) Boundary() string {
	return f.boundary
}

// SetBoundary overrides the boundary, mostly for reproducible bodies.
func (f *MultipartFormData) SetBoundary(boundary string) {
	f.boundary = boundary
}

// Append adds a plain field.
func (f *MultipartFormData) Append(name string, data []byte) *MultipartFormData {
	f.parts = append(f.parts, bodyPart{name: name, data: data})
	return f
}

// AppendFile adds the file at path, named after its base name.
func (f *MultipartFormData) AppendFile(name, path string) *MultipartFormData {
	f.parts = append(f.parts, bodyPart{
		name:        name,
		filename:    filepath.Base(path),
		contentType: ContentTypeOctet,
		path:        path,
	})
	return f
}

// AppendReader adds a file part whose content is read from r.
func (f *MultipartFormData) AppendReader(name, filename, contentType string, r io.Reader) *MultipartFormData {
	if contentType == "" {
		contentType = ContentTypeOctet
	}
	f.parts = append(f.parts, bodyPart{
		name:        name,
		filename:    filename,
		contentType: contentType,
		reader:      r,
	})
	return f
}

// Len returns the number of parts.
func (f *MultipartFormData) Len() int {
	return len(f.parts)
}

// Encode renders the form into memory and returns the body with its
// Content-Type header value.
func (f *MultipartFormData) Encode() (io.Reader, string, error) {
	if f == nil {
		return nil, "", errors.BadRequest("multipart form is nil")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.SetBoundary(f.boundary); err != nil {
		return nil, "", errors.Wrap(err, errors.CodeBadRequest, "invalid multipart boundary")
	}

	for _, part := range f.parts {
		if err := writePart(writer, part); err != nil {
			return nil, "", errors.Wrap(err, errors.CodeBadRequest, "encode multipart part %q", part.name)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", errors.Wrap(err, errors.CodeBadRequest, "close multipart writer")
	}

	return body, writer.FormDataContentType(), nil
}

func writePart(writer *multipart.Writer, part bodyPart) error {
	if part.filename == "" {
		return writer.WriteField(part.name, string(part.data))
	}

	header := make(textproto.MIMEHeader)
	header.Set(HeaderContentDisposition, fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(part.name), escapeQuotes(part.filename)))
	header.Set(HeaderContentType, part.contentType)

	w, err := writer.CreatePart(header)
	if err != nil {
		return err
	}

	src := part.reader
	if part.path != "" {
		file, err := os.Open(part.path)
		if err != nil {
			return err
		}
		defer file.Close()
		src = file
	}

	if src == nil {
		return nil
	}
	_, err = io.Copy(w, src)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
