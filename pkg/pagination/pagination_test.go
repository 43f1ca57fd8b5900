package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	assert.True(t, out.CreatedAt.Equal(in.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	c, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, c)

	encode := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	for _, bad := range []string{"!!!", encode("no-separator"), encode("abc." + uuid.NewString()), encode("12.not-a-uuid")} {
		_, err := ParseCursor(bad)
		assert.ErrorIs(t, err, ErrBadCursor, bad)
	}
}

func TestNormalizeLimit(t *testing.T) {
	for in, want := range map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit: MaxLimit, 1000: MaxLimit} {
		assert.Equal(t, want, NormalizeLimit(in), in)
	}
	assert.Equal(t, DefaultLimit+1, LimitWithBuffer(0))
}

func TestBuildTrimsBufferRow(t *testing.T) {
	type row struct {
		id uuid.UUID
		at time.Time
	}
	now := time.Now().UTC()
	rows := []row{{uuid.New(), now}, {uuid.New(), now.Add(-time.Minute)}, {uuid.New(), now.Add(-2 * time.Minute)}}
	key := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page := Build(rows, 2, key)
	require.Len(t, page.Items, 2)
	next, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, next.ID)

	assert.Empty(t, Build(rows[:2], 2, key).NextCursor, "final page carries no cursor")
}
