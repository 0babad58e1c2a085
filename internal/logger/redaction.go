package logger

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Redactor redacts sensitive information from logs and recorded tool
// arguments
type Redactor struct {
	patterns   []*regexp.Regexp
	secretKeys []string
}

// NewRedactor creates a new redactor with default patterns
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// API keys
			regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
			regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),

			// Bearer tokens
			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),

			// Passwords
			regexp.MustCompile(`password["\s:=]+[^\s"]+`),
			regexp.MustCompile(`pwd["\s:=]+[^\s"]+`),

			// Auth tokens
			regexp.MustCompile(`token["\s:=]+[a-zA-Z0-9._-]{20,}`),

			// AWS keys
			regexp.MustCompile(`AKIA[0-9A-Z]{16}`),

			// Generic secrets
			regexp.MustCompile(`secret["\s:=]+[^\s"]+`),
		},
		// Argument names whose values are masked outright
		secretKeys: []string{"password", "passwd", "secret", "token", "api_key", "apikey", "credential"},
	}
}

// AddPattern adds a custom redaction pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact redacts sensitive information from a string
func (r *Redactor) Redact(s string) string {
	result := s
	for _, pattern := range r.patterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// RedactArgs returns a copy of a tool argument map with secret-named keys
// masked and secret-shaped string values redacted. The input map is not
// modified.
func (r *Redactor) RedactArgs(args map[string]interface{}) map[string]interface{} {
	if args == nil {
		return nil
	}

	out := make(map[string]interface{}, len(args))
	for key, value := range args {
		if r.isSecretKey(key) {
			out[key] = "[REDACTED]"
			continue
		}
		switch v := value.(type) {
		case string:
			out[key] = r.Redact(v)
		case map[string]interface{}:
			out[key] = r.RedactArgs(v)
		default:
			out[key] = r.Redact(fmt.Sprintf("%v", v))
			// Non-string scalars round-trip through Sprintf only when
			// they matched a pattern; otherwise keep the original value.
			if out[key] == fmt.Sprintf("%v", v) {
				out[key] = value
			}
		}
	}

	return out
}

func (r *Redactor) isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, secret := range r.secretKeys {
		if lower == secret || strings.HasSuffix(lower, "_"+secret) {
			return true
		}
	}
	return false
}

// Wrap wraps an io.Writer to redact sensitive information
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

// redactingWriter is an io.Writer that redacts sensitive information
type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

func (w *redactingWriter) Write(p []byte) (int, error) {
	redacted := w.redactor.Redact(string(p))
	if _, err := w.writer.Write([]byte(redacted)); err != nil {
		return 0, err
	}
	// Report the original length so zerolog does not treat redaction as a
	// short write.
	return len(p), nil
}
