package records

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/storage"
)

// EncodeBlob renders a collection as base64 of its JSON array, safe to paste anywhere.
func EncodeBlob(apps []model.Appointment) (string, error) {
	if apps == nil {
		apps = []model.Appointment{}
	}
	raw, err := json.Marshal(apps)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeBlob accepts a blob from EncodeBlob or a raw JSON array.
func DecodeBlob(blob string) ([]model.Appointment, error) {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedImport)
	}
	text := blob
	if !strings.HasPrefix(blob, "[") {
		raw, err := base64.StdEncoding.DecodeString(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedImport, err)
		}
		text = string(raw)
	}
	if !strings.HasPrefix(strings.TrimSpace(text), "[") {
		return nil, fmt.Errorf("%w: not a list", ErrMalformedImport)
	}
	apps, err := storage.ParseAppointments(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}
	seen := make(map[string]struct{}, len(apps))
	for _, a := range apps {
		if a.ID == "" {
			return nil, fmt.Errorf("%w: record without id", ErrMalformedImport)
		}
		if _, dup := seen[a.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrMalformedImport, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return apps, nil
}
