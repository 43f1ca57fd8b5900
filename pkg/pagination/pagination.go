// Package pagination implements keyset pages over (created_at, id). Cursors
// are opaque to clients: base64url of "<unix nanos>.<uuid>".
package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var ErrBadCursor = errors.New("malformed pagination cursor")

// Params is what a list endpoint accepts from the query string.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the sort key of the last row a client has seen.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Page is one slice of a newest-first listing.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer asks for one extra row so Build can tell whether another
// page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

func EncodeCursor(c Cursor) string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "." + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor returns nil for a blank cursor.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrBadCursor
	}
	nanos, id, ok := strings.Cut(string(raw), ".")
	if !ok {
		return nil, ErrBadCursor
	}
	ns, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, ErrBadCursor
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrBadCursor
	}
	return &Cursor{CreatedAt: time.Unix(0, ns).UTC(), ID: uid}, nil
}

// Apply orders q newest first and seeks past cursor. table qualifies the
// columns when q joins other tables.
func Apply(q *gorm.DB, table string, cursor *Cursor, limit int) *gorm.DB {
	createdAt, id := "created_at", "id"
	if table != "" {
		createdAt, id = table+"."+createdAt, table+"."+id
	}
	if cursor != nil {
		q = q.Where("("+createdAt+" < ? OR ("+createdAt+" = ? AND "+id+" < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	return q.Order(createdAt + " DESC").Order(id + " DESC").Limit(LimitWithBuffer(limit))
}

// Build drops the buffered row and points the next cursor at the last kept
// item. The final page carries no cursor.
func Build[T any](rows []T, limit int, key func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return Page[T]{Items: rows}
	}
	kept := rows[:limit]
	return Page[T]{Items: kept, NextCursor: EncodeCursor(key(kept[limit-1]))}
}
