// Package translate holds drivers for the external speech translation service.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/voxbridge/internal/config"
	"github.com/dkeye/voxbridge/internal/core"
	"github.com/rs/zerolog/log"
)

var ErrRemote = errors.New("translator returned an error")

// reply is the envelope every remote driver expects back.
type reply struct {
	Audio json.RawMessage `json:"audio"`
	Text  string          `json:"text,omitempty"`
	Error string          `json:"error,omitempty"`
}

func (r reply) result() (core.TranslationResult, error) {
	if r.Error != "" {
		return core.TranslationResult{}, fmt.Errorf("%w: %s", ErrRemote, r.Error)
	}
	return core.TranslationResult{Audio: r.Audio, Text: r.Text}, nil
}

func decodeReply(b []byte) (core.TranslationResult, error) {
	var r reply
	if err := json.Unmarshal(b, &r); err != nil {
		return core.TranslationResult{}, fmt.Errorf("decode reply: %w", err)
	}
	return r.result()
}

// New builds the driver named by cfg.Driver.
func New(ctx context.Context, cfg config.TranslatorConfig) (core.Translator, error) {
	log.Info().Str("module", "translate").Str("driver", cfg.Driver).Msg("translator driver")
	switch cfg.Driver {
	case "none":
		return Disabled{}, nil
	case "echo", "":
		return Echo{}, nil
	case "http":
		return NewHTTP(cfg.HTTP.URL, cfg.Timeout), nil
	case "nats":
		return NewNATS(cfg.NATS.URL, cfg.NATS.Subject)
	case "redis":
		return NewRedis(ctx, RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Queue:    cfg.Redis.Queue,
		})
	default:
		return nil, fmt.Errorf("unknown translator driver %q", cfg.Driver)
	}
}

// Echo hands the input audio back untouched.
type Echo struct{}

func (Echo) Translate(ctx context.Context, req core.TranslationRequest) (core.TranslationResult, error) {
	if err := ctx.Err(); err != nil {
		return core.TranslationResult{}, err
	}
	return core.TranslationResult{Audio: req.Audio}, nil
}

func (Echo) Close() error { return nil }

// Disabled rejects every request.
type Disabled struct{}

func (Disabled) Translate(context.Context, core.TranslationRequest) (core.TranslationResult, error) {
	return core.TranslationResult{}, core.ErrTranslatorDisabled
}

func (Disabled) Close() error { return nil }
