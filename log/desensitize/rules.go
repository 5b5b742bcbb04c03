package desensitize

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/kochabx/courier/errors"
)

// Mask replaces a hidden value.
const Mask = "******"

// Rule 脱敏规则
type Rule interface {
	Name() string
	Enabled() bool
	SetEnabled(enabled bool)
	// Process returns s with matching content masked.
	Process(s string) string
}

type toggle struct {
	disabled atomic.Bool
}

func (t *toggle) Enabled() bool {
	return !t.disabled.Load()
}

func (t *toggle) SetEnabled(enabled bool) {
	t.disabled.Store(!enabled)
}

// ContentRule 按正则替换任意内容
type ContentRule struct {
	toggle
	name        string
	pattern     *regexp.Regexp
	replacement string
}

// NewContentRule compiles pattern; replacement may reference groups as $1.
func NewContentRule(name, pattern, replacement string) (*ContentRule, error) {
	re, err := compile(name, pattern)
	if err != nil {
		return nil, err
	}
	return &ContentRule{name: name, pattern: re, replacement: replacement}, nil
}

func (r *ContentRule) Name() string {
	return r.name
}

func (r *ContentRule) Process(s string) string {
	if !r.Enabled() {
		return s
	}
	return r.pattern.ReplaceAllString(s, r.replacement)
}

// FieldRule masks the string value of a JSON field, e.g. "password":"..."
// in a log line.
type FieldRule struct {
	toggle
	name    string
	field   string
	pattern *regexp.Regexp
}

func NewFieldRule(name, field string) (*FieldRule, error) {
	if field == "" {
		return nil, errors.BadRequest("rule %q: field name cannot be empty", name)
	}
	re, err := compile(name, fmt.Sprintf(`"%s"\s*:\s*"(?:[^"\\]|\\.)*"`, regexp.QuoteMeta(field)))
	if err != nil {
		return nil, err
	}
	return &FieldRule{name: name, field: field, pattern: re}, nil
}

func (r *FieldRule) Name() string {
	return r.name
}

func (r *FieldRule) Process(s string) string {
	if !r.Enabled() {
		return s
	}
	return r.pattern.ReplaceAllLiteralString(s, fmt.Sprintf(`"%s":"%s"`, r.field, Mask))
}

// QueryRule masks the values of the named query parameters wherever a URL
// appears, such as the url field the HTTP manager logs. Names match
// case-insensitively.
type QueryRule struct {
	toggle
	name    string
	pattern *regexp.Regexp
}

func NewQueryRule(name string, params ...string) (*QueryRule, error) {
	if len(params) == 0 {
		return nil, errors.BadRequest("rule %q: no query parameters", name)
	}
	quoted := make([]string, len(params))
	for i, p := range params {
		quoted[i] = regexp.QuoteMeta(p)
	}
	re, err := compile(name, `(?i)([?&](?:`+strings.Join(quoted, "|")+`)=)[^&#"\s]*`)
	if err != nil {
		return nil, err
	}
	return &QueryRule{name: name, pattern: re}, nil
}

func (r *QueryRule) Name() string {
	return r.name
}

func (r *QueryRule) Process(s string) string {
	if !r.Enabled() {
		return s
	}
	return r.pattern.ReplaceAllString(s, "${1}"+Mask)
}

func compile(name, pattern string) (*regexp.Regexp, error) {
	if name == "" {
		return nil, errors.BadRequest("rule name cannot be empty")
	}
	if pattern == "" {
		return nil, errors.BadRequest("rule %q: pattern cannot be empty", name)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeBadRequest, "rule %q: invalid pattern", name)
	}
	return re, nil
}

func must[T Rule](rule T, err error) T {
	if err != nil {
		panic(err)
	}
	return rule
}
