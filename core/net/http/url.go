package http

import (
	"net/url"
	"path"
	"slices"

	"github.com/kochabx/courier/errors"
)

// URLConvertible 可以转换为请求地址的值
type URLConvertible interface {
	URL() (*url.URL, error)
}

// RawURL is a URL string used where a URLConvertible is expected.
type RawURL string

// URL parses the string.
func (u RawURL) URL() (*url.URL, error) {
	parsed, err := url.Parse(string(u))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeBadRequest, "invalid url %q", string(u))
	}
	return parsed, nil
}

// URLBuilder 链式构建请求地址
type URLBuilder struct {
	scheme   string
	host     string
	port     string
	path     string
	query    url.Values
	fragment string
}

// NewURLBuilder returns an empty builder.
func NewURLBuilder() *URLBuilder {
	return &URLBuilder{query: make(url.Values)}
}

// BuildHTTP starts an http URL on host with the given path segments.
func BuildHTTP(host string, segments ...string) *URLBuilder {
	return NewURLBuilder().Scheme("http").Host(host).AppendPath(segments...)
}

// BuildHTTPS starts an https URL on host with the given path segments.
func BuildHTTPS(host string, segments ...string) *URLBuilder {
	return NewURLBuilder().Scheme("https").Host(host).AppendPath(segments...)
}

// FromURL 从已有地址创建构建器
func FromURL(rawURL string) (*URLBuilder, error) {
	u, err := RawURL(rawURL).URL()
	if err != nil {
		return nil, err
	}
	return &URLBuilder{
		scheme:   u.Scheme,
		host:     u.Hostname(),
		port:     u.Port(),
		path:     u.Path,
		query:    u.Query(),
		fragment: u.Fragment,
	}, nil
}

func (b *URLBuilder) Scheme(scheme string) *URLBuilder {
	b.scheme = scheme
	return b
}

func (b *URLBuilder) Host(host string) *URLBuilder {
	b.host = host
	return b
}

// Port sets the port; "" and "0" leave the default port.
func (b *URLBuilder) Port(port string) *URLBuilder {
	if port != "" && port != "0" {
		b.port = port
	}
	return b
}

// Path replaces the whole path.
func (b *URLBuilder) Path(p string) *URLBuilder {
	b.path = p
	return b
}

// AppendPath 追加路径段，空段被忽略
func (b *URLBuilder) AppendPath(segments ...string) *URLBuilder {
	b.path = Join(b.path, segments...)
	return b
}

// Query adds a value to key, keeping earlier values.
func (b *URLBuilder) Query(key, value string) *URLBuilder {
	b.query.Add(key, value)
	return b
}

// SetQuery replaces all values of key.
func (b *URLBuilder) SetQuery(key, value string) *URLBuilder {
	b.query.Set(key, value)
	return b
}

// QueryParameters adds params with the same expansion URLEncoding uses.
func (b *URLBuilder) QueryParameters(params Parameters) *URLBuilder {
	for key, value := range params {
		for _, pair := range queryComponents(key, value) {
			b.query.Add(pair[0], pair[1])
		}
	}
	return b
}

func (b *URLBuilder) Fragment(fragment string) *URLBuilder {
	b.fragment = fragment
	return b
}

// URL implements URLConvertible. A scheme without a host is rejected.
func (b *URLBuilder) URL() (*url.URL, error) {
	if b.scheme != "" && b.host == "" {
		return nil, errors.BadRequest("url with scheme %q has no host", b.scheme)
	}

	u := &url.URL{
		Scheme:   b.scheme,
		Host:     b.host,
		Path:     b.path,
		Fragment: b.fragment,
	}
	if b.host != "" && b.port != "" {
		u.Host = b.host + ":" + b.port
	}
	if len(b.query) > 0 {
		u.RawQuery = b.query.Encode()
	}
	return u, nil
}

// Build renders the URL string.
func (b *URLBuilder) Build() (string, error) {
	u, err := b.URL()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (b *URLBuilder) String() string {
	s, _ := b.Build()
	return s
}

// Clone 深拷贝，修改副本不影响原构建器
func (b *URLBuilder) Clone() *URLBuilder {
	c := *b
	c.query = make(url.Values, len(b.query))
	for k, v := range b.query {
		c.query[k] = slices.Clone(v)
	}
	return &c
}

// Join joins non-empty path segments onto base.
func Join(base string, segments ...string) string {
	parts := make([]string, 0, len(segments)+1)
	if base != "" {
		parts = append(parts, base)
	}
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return base
	}
	return path.Join(parts...)
}
