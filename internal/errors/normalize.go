package errors

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-graph-signin/internal/utils"
)

const debugDelimiter = "|"

// StringError is an error reported as one encoded string, "debug|message" or just "message".
// The sign-in window reports its failures this way.
type StringError string

func (e StringError) Error() string {
	return string(e)
}

// NewStringError encodes a code and description as a StringError.
func NewStringError(code, description string) StringError {
	return StringError(code + debugDelimiter + description)
}

// NormalizedError is the uniform shape in which failures are stored and displayed.
type NormalizedError struct {
	Message string  `json:"message"`
	Debug   *string `json:"debug,omitempty"`
}

// Normalize converts any error into a NormalizedError.
//
// A StringError containing "|" is split once: the first part becomes Debug and the rest
// becomes Message. Without the delimiter the whole string is the Message and Debug is nil.
// Any other error is treated as an object: Message is its Error() text and Debug its JSON
// serialization.
func Normalize(err error) NormalizedError {
	switch e := err.(type) {
	case nil:
		return NormalizedError{}
	case StringError:
		return normalizeString(string(e))
	default:
		return NormalizedError{
			Message: e.Error(),
			Debug:   utils.Ptr(serialize(e)),
		}
	}
}

func normalizeString(s string) NormalizedError {
	parts := strings.SplitN(s, debugDelimiter, 2)
	if len(parts) > 1 {
		return NormalizedError{Message: parts[1], Debug: utils.Ptr(parts[0])}
	}
	return NormalizedError{Message: s}
}

// serialize renders err as JSON. Opaque errors with nothing to marshal are described by
// their message and dynamic type instead of an empty object.
func serialize(err error) (debug string) {
	defer func() {
		if r := recover(); r != nil {
			debug = describe(err)
		}
	}()

	b, marshalErr := json.Marshal(err)
	if marshalErr != nil || string(b) == "{}" || string(b) == "null" {
		return describe(err)
	}
	return string(b)
}

func describe(err error) string {
	b, _ := json.Marshal(map[string]string{
		"message": err.Error(),
		"type":    fmt.Sprintf("%T", err),
	})
	return string(b)
}
