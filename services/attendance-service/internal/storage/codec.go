package storage

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
)

var errEmptyBlob = errors.New("empty value")

// isBlank reports values the browser revisions wrote for "nothing stored".
func isBlank(raw string) bool {
	switch strings.TrimSpace(raw) {
	case "", "null", "undefined":
		return true
	}
	return false
}

// decodeList parses a JSON array. A blank value returns errEmptyBlob; anything that is
// not an array (including an object) fails to unmarshal into a slice.
func decodeList[T any](raw string) ([]T, error) {
	if isBlank(raw) {
		return nil, errEmptyBlob
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// ParseAppointments is the strict decoder used by import and remote reads.
func ParseAppointments(raw string) ([]model.Appointment, error) {
	return decodeList[model.Appointment](raw)
}

func encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
