package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// Record is what the store keeps per idempotency key. A record without a
// CompletedAt is a reservation held by the request still in flight.
type Record struct {
	Fingerprint string            `json:"fingerprint"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Status      int               `json:"status,omitempty"`
	Body        []byte            `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	LockedAt    time.Time         `json:"lockedAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

// IsCompleted reports whether a response has been stored
func (r *Record) IsCompleted() bool {
	return r.CompletedAt != nil
}

// KeyStore persists idempotency records
type KeyStore interface {
	// Reserve stores rec under key unless a record exists. It returns the
	// existing record and false when the key was already taken.
	Reserve(ctx context.Context, key string, rec *Record, lockTTL time.Duration) (*Record, bool, error)
	// Complete overwrites the reservation with the final response
	Complete(ctx context.Context, key string, rec *Record, retention time.Duration) error
	// Release drops a reservation so the client may retry
	Release(ctx context.Context, key string) error
}

// MessageStore remembers processed message ids for consumer deduplication
type MessageStore interface {
	// MarkProcessed returns false when id was already marked
	MarkProcessed(ctx context.Context, id string, retention time.Duration) (bool, error)
	Forget(ctx context.Context, id string) error
}

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateKey checks format and length of a client supplied key
func ValidateKey(key string, maxLength int) error {
	switch {
	case key == "":
		return ErrKeyRequired
	case len(key) > maxLength:
		return ErrKeyTooLong
	case !keyPattern.MatchString(key):
		return ErrKeyInvalid
	}
	return nil
}

// NormalizeKey trims surrounding whitespace
func NormalizeKey(key string) string {
	return strings.TrimSpace(key)
}

// ComputeFingerprint hashes the request body so replays with a different
// payload can be rejected.
func ComputeFingerprint(body []byte) string {
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:])
}
