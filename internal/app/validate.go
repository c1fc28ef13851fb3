package app

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CheckLanguage validates a BCP 47 language tag such as "fr" or "pt-BR".
func CheckLanguage(tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return fmt.Errorf("%w: empty", ErrInvalidLanguage)
	}
	if err := validate.Var(tag, "bcp47_language_tag"); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLanguage, tag)
	}
	return nil
}
