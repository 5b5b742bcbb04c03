package desensitize

import (
	"io"
)

// Writer 写入前脱敏
type Writer struct {
	w    io.Writer
	hook *Hook
}

// NewWriter wraps w. A nil hook writes through unchanged.
func NewWriter(w io.Writer, hook *Hook) *Writer {
	return &Writer{w: w, hook: hook}
}

// Write masks p and reports len(p) on success, even when the masked line
// has a different length.
func (w *Writer) Write(p []byte) (int, error) {
	if w.hook == nil || w.hook.RuleCount() == 0 {
		return w.w.Write(p)
	}

	text := string(p)
	masked := w.hook.Desensitize(text)
	if masked == text {
		return w.w.Write(p)
	}
	if _, err := io.WriteString(w.w, masked); err != nil {
		return 0, err
	}
	return len(p), nil
}
