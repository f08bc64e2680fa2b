package service

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// textSanitizer strips markup from labels and keeps safe formatting in long-form text.
type textSanitizer struct {
	plain *bluemonday.Policy
	rich  *bluemonday.Policy
}

func newTextSanitizer() textSanitizer {
	rich := bluemonday.UGCPolicy()
	rich.AllowElements("br")
	return textSanitizer{
		plain: bluemonday.StrictPolicy(),
		rich:  rich,
	}
}

func (s textSanitizer) Plain(value string) string {
	return strings.TrimSpace(s.plain.Sanitize(value))
}

func (s textSanitizer) Rich(value string) string {
	return strings.TrimSpace(s.rich.Sanitize(value))
}

// RequiredPlain sanitizes a mandatory label and fails when nothing is left.
func (s textSanitizer) RequiredPlain(value string) (string, error) {
	cleaned := s.Plain(value)
	if cleaned == "" {
		return "", ErrEmptyAfterSanitize
	}
	return cleaned, nil
}
