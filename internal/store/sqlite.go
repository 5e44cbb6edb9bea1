package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stupiduntilnot/pharmassist/internal/db"
	"github.com/stupiduntilnot/pharmassist/internal/domain"
)

// SQLite keeps documents as JSON bodies in a single table and the
// transcript in an append-only messages table.
type SQLite struct {
	DB *sql.DB
}

// OpenSQLite opens the database at path and ensures the schema exists.
func OpenSQLite(path string) (*SQLite, error) {
	database, err := db.OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return &SQLite{DB: database}, nil
}

func (s *SQLite) Close() error {
	return s.DB.Close()
}

// List returns documents of a collection in insertion order.
func (s *SQLite) List(ctx context.Context, collection string, f Filter) ([]Document, error) {
	var (
		query strings.Builder
		args  = []any{collection}
	)
	query.WriteString(`SELECT body FROM documents WHERE collection = ?`)
	for _, field := range slices.Sorted(maps.Keys(f.Equals)) {
		query.WriteString(` AND json_extract(body, ?) = ?`)
		args = append(args, "$."+strconv.Quote(field), f.Equals[field])
	}
	query.WriteString(` ORDER BY rowid`)
	if f.Limit > 0 {
		query.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		doc, err := decode(body)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (Document, error) {
	var body string
	err := s.DB.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decode(body)
}

// GetMany looks up several ids in one query. Duplicate ids are collapsed,
// missing ids are skipped, and results follow the order of first mention.
func (s *SQLite) GetMany(ctx context.Context, collection string, ids []string) ([]Document, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, body FROM documents WHERE collection = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("get many %s: %w", collection, err)
	}
	defer rows.Close()

	byID := make(map[string]Document, len(ids))
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		doc, err := decode(body)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		byID[id] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Document, 0, len(byID))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Put inserts or replaces a document.
func (s *SQLite) Put(ctx context.Context, collection, id string, doc Document) error {
	withID := maps.Clone(doc)
	if withID == nil {
		withID = Document{}
	}
	withID["id"] = id
	body, err := json.Marshal(withID)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET body = excluded.body, updated_at = unixepoch()`,
		collection, id, string(body),
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *SQLite) AppendMessage(ctx context.Context, userID string, msg domain.ConversationMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO messages (id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, userID, string(msg.Role), msg.Content, msg.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append message for %s: %w", userID, err)
	}
	return nil
}

// Messages returns the most recent `limit` messages for the user, ordered
// chronologically (oldest first). limit <= 0 returns the whole transcript.
func (s *SQLite) Messages(ctx context.Context, userID string, limit int) ([]domain.ConversationMessage, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM messages WHERE user_id = ? ORDER BY seq DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("messages for %s: %w", userID, err)
	}
	defer rows.Close()

	var results []domain.ConversationMessage
	for rows.Next() {
		var (
			m       domain.ConversationMessage
			role    string
			created int64
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = domain.RoleUser
		if role == string(domain.RoleAssistant) {
			m.Role = domain.RoleAssistant
		}
		m.Timestamp = time.UnixMilli(created).UTC()
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(results)
	return results, nil
}

func decode(body string) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
