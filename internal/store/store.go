// Package store is the document-store collaborator: filtered list, get by id,
// and an append-only per-user conversation log.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/stupiduntilnot/pharmassist/internal/domain"
)

// ErrNotFound is returned by Get when no document has the requested id.
var ErrNotFound = errors.New("document not found")

// Document is a schemaless record. Its "id" field mirrors the store key.
type Document = map[string]any

// Filter selects documents whose top-level fields equal the given values.
// Limit <= 0 means no limit.
type Filter struct {
	Equals map[string]any
	Limit  int
}

// Where is shorthand for a single-field equality filter.
func Where(field string, value any) Filter {
	return Filter{Equals: map[string]any{field: value}}
}

// WithLimit returns a copy of f capped at n documents.
func (f Filter) WithLimit(n int) Filter {
	f.Limit = n
	return f
}

// Reader is the read side used by the context aggregator.
type Reader interface {
	List(ctx context.Context, collection string, f Filter) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	GetMany(ctx context.Context, collection string, ids []string) ([]Document, error)
}

// Transcript is the append-only per-user conversation log.
type Transcript interface {
	AppendMessage(ctx context.Context, userID string, msg domain.ConversationMessage) error
	Messages(ctx context.Context, userID string, limit int) ([]domain.ConversationMessage, error)
}

// Store is the full document-store collaborator.
type Store interface {
	Reader
	Transcript
	Put(ctx context.Context, collection, id string, doc Document) error
	Close() error
}

// String reads a string field, accepting numbers for ids stored numerically.
func String(doc Document, key string) string {
	switch v := doc[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Float reads a numeric field, returning 0 when absent or malformed.
func Float(doc Document, key string) float64 {
	switch v := doc[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// Int reads an integer field.
func Int(doc Document, key string) int {
	return int(Float(doc, key))
}

// Bool reads a boolean field.
func Bool(doc Document, key string) bool {
	b, _ := doc[key].(bool)
	return b
}

// Strings reads a list-of-strings field.
func Strings(doc Document, key string) []string {
	switch v := doc[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Documents reads a list-of-objects field, e.g. order line items.
func Documents(doc Document, key string) []Document {
	switch v := doc[key].(type) {
	case []Document:
		return v
	case []any:
		out := make([]Document, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// ID returns the document id.
func ID(doc Document) string {
	return String(doc, "id")
}
