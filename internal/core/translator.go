package core

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrTranslatorDisabled = errors.New("translator disabled")

type TranslationRequest struct {
	RoomCode       string          `json:"roomCode"`
	SpeakerID      string          `json:"speakerId"`
	SourceLanguage string          `json:"sourceLanguage"`
	TargetLanguage string          `json:"targetLanguage"`
	Audio          json.RawMessage `json:"audio"`
}

type TranslationResult struct {
	Audio json.RawMessage `json:"audio"`
	Text  string          `json:"text,omitempty"`
}

// Translator is the external speech-to-speech collaborator.
// Implementations must honor ctx cancellation.
type Translator interface {
	Translate(ctx context.Context, req TranslationRequest) (TranslationResult, error)
	Close() error
}
