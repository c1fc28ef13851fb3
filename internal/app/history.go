package app

import "github.com/dkeye/voxbridge/internal/domain"

// History is a bounded chat log. Once full, the oldest entry is overwritten.
type History struct {
	buf   []domain.ChatMessage
	start int
	n     int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 500
	}
	return &History{buf: make([]domain.ChatMessage, limit)}
}

func (h *History) Append(m domain.ChatMessage) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = m
		h.n++
		return
	}
	h.buf[h.start] = m
	h.start = (h.start + 1) % len(h.buf)
}

func (h *History) Len() int { return h.n }

// Messages returns a copy, oldest first.
func (h *History) Messages() []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, h.n)
	for i := 0; i < h.n; i++ {
		out = append(out, h.buf[(h.start+i)%len(h.buf)])
	}
	return out
}
