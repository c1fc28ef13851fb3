package app

import (
	"fmt"
	"testing"
	"time"

	"github.com/dkeye/voxbridge/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestHistory(t *testing.T) {
	tests := []struct {
		name   string
		limit  int
		append int
		want   []string
	}{
		{"empty", 3, 0, []string{}},
		{"under limit", 3, 2, []string{"m0", "m1"}},
		{"exactly full", 3, 3, []string{"m0", "m1", "m2"}},
		{"wraps", 3, 7, []string{"m4", "m5", "m6"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistory(tt.limit)
			for i := 0; i < tt.append; i++ {
				h.Append(domain.NewSystemMessage(fmt.Sprintf("m%d", i), time.Now()))
			}
			got := make([]string, 0)
			for _, m := range h.Messages() {
				got = append(got, m.Text)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), h.Len())
		})
	}
}

func TestHistory_DefaultLimit(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < 600; i++ {
		h.Append(domain.NewSystemMessage("x", time.Now()))
	}
	assert.Equal(t, 500, h.Len())
}

func TestCheckLanguage(t *testing.T) {
	for _, ok := range []string{"en", "fr", "pt-BR", "zh-Hant", " es "} {
		assert.NoError(t, CheckLanguage(ok), ok)
	}
	for _, bad := range []string{"", "   ", "english language", "12"} {
		assert.ErrorIs(t, CheckLanguage(bad), ErrInvalidLanguage, bad)
	}
}
