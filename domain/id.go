package domain

import "github.com/google/uuid"

// DecodeID converts an external identifier into the canonical stored form.
// It only checks syntax; existence is a repository concern.
func DecodeID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", ErrInvalidID
	}
	return id.String(), nil
}

// EncodeID renders a stored identifier for the wire.
func EncodeID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return id
}

// NewID allocates a fresh identifier for an inserted task.
func NewID() string {
	return uuid.NewString()
}
