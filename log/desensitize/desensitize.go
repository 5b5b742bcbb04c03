// Package desensitize masks sensitive content in log output.
package desensitize

import (
	"slices"
	"sync"
)

// Hook holds an ordered set of rules. Rules run in the order they were added.
// The slice is replaced, never modified, so Desensitize reads it without
// holding the lock.
type Hook struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewHook 创建脱敏钩子
func NewHook(rules ...Rule) *Hook {
	h := &Hook{}
	for _, r := range rules {
		h.AddRule(r)
	}
	return h
}

// AddRule adds rule, replacing a rule with the same name in place.
func (h *Hook) AddRule(rule Rule) {
	if rule == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	rules := slices.Clone(h.rules)
	if i := h.index(rule.Name()); i >= 0 {
		rules[i] = rule
	} else {
		rules = append(rules, rule)
	}
	h.rules = rules
}

func (h *Hook) AddContentRule(name, pattern, replacement string) error {
	rule, err := NewContentRule(name, pattern, replacement)
	if err != nil {
		return err
	}
	h.AddRule(rule)
	return nil
}

func (h *Hook) AddFieldRule(name, field string) error {
	rule, err := NewFieldRule(name, field)
	if err != nil {
		return err
	}
	h.AddRule(rule)
	return nil
}

func (h *Hook) AddQueryRule(name string, params ...string) error {
	rule, err := NewQueryRule(name, params...)
	if err != nil {
		return err
	}
	h.AddRule(rule)
	return nil
}

// RemoveRule 移除规则
func (h *Hook) RemoveRule(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.index(name)
	if i < 0 {
		return false
	}
	h.rules = slices.Concat(h.rules[:i], h.rules[i+1:])
	return true
}

// Rule looks a rule up by name.
func (h *Hook) Rule(name string) (Rule, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if i := h.index(name); i >= 0 {
		return h.rules[i], true
	}
	return nil, false
}

// Rules lists rule names in order.
func (h *Hook) Rules() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, len(h.rules))
	for i, r := range h.rules {
		names[i] = r.Name()
	}
	return names
}

func (h *Hook) RuleCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rules)
}

// Desensitize applies every enabled rule to s.
func (h *Hook) Desensitize(s string) string {
	if s == "" {
		return s
	}
	h.mu.RLock()
	rules := h.rules
	h.mu.RUnlock()

	for _, r := range rules {
		s = r.Process(s)
	}
	return s
}

func (h *Hook) index(name string) int {
	return slices.IndexFunc(h.rules, func(r Rule) bool { return r.Name() == name })
}
