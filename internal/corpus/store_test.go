package corpus

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"cogsensor/internal/cogerr"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE messages (
		conversation_id TEXT NOT NULL,
		message_index   INTEGER NOT NULL,
		role            TEXT NOT NULL,
		text            TEXT NOT NULL,
		created_at      DATETIME NOT NULL,
		PRIMARY KEY (conversation_id, message_index)
	)`)
	require.NoError(t, err)
	return db
}

func seedConversation(t *testing.T, db *sql.DB, id string, base time.Time, turns [][2]string) {
	t.Helper()
	for i, turn := range turns {
		role, text := turn[0], turn[1]
		_, err := db.Exec(`INSERT INTO messages (conversation_id, message_index, role, text, created_at) VALUES (?, ?, ?, ?, ?)`,
			id, i, role, text, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
}

func TestListConversations_DerivesSpanAndTitle(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	seedConversation(t, db, "conv-a", base, [][2]string{
		{"user", "I want to refactor the scheduler\nmore context here"},
		{"assistant", "sure, let's look at it"},
	})
	seedConversation(t, db, "conv-b", base.Add(time.Hour), [][2]string{
		{"user", "done with the migration"},
	})

	s := NewStore(db)
	convos, err := s.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convos, 2)

	require.Equal(t, "conv-a", convos[0].ConversationID)
	require.Equal(t, "I want to refactor the scheduler", convos[0].Title)
	require.True(t, convos[0].LastAt.After(convos[0].StartedAt))

	require.Equal(t, "conv-b", convos[1].ConversationID)
	require.Equal(t, "done with the migration", convos[1].Title)
}

func TestGetMessages_NotFound(t *testing.T) {
	db := newTestDB(t)
	s := NewStore(db)

	_, err := s.GetMessages(context.Background(), "missing")
	require.Error(t, err)
	require.True(t, cogerr.Is(err, cogerr.KindNotFound))
}

func TestUserText_JoinsUserTurnsOnly(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC()
	seedConversation(t, db, "conv-a", base, [][2]string{
		{"user", "first question"},
		{"assistant", "an answer"},
		{"user", "follow up"},
	})

	s := NewStore(db)
	text, err := s.UserText(context.Background(), "conv-a")
	require.NoError(t, err)
	require.Equal(t, "first question\nfollow up", text)
}

func TestFullText_TruncatesAtWhitespace(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC()
	seedConversation(t, db, "conv-a", base, [][2]string{
		{"user", "one two three four five six seven eight nine ten"},
	})

	s := NewStore(db)
	text, err := s.FullText(context.Background(), "conv-a", 20)
	require.NoError(t, err)
	require.LessOrEqual(t, len([]rune(text)), 20)
	runes := []rune(text)
	require.NotEqual(t, ' ', runes[len(runes)-1])
}

func TestFullText_RolePrefixedAndOrdered(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC()
	seedConversation(t, db, "conv-a", base, [][2]string{
		{"user", "hello"},
		{"assistant", "hi there"},
	})

	s := NewStore(db)
	text, err := s.FullText(context.Background(), "conv-a", 5000)
	require.NoError(t, err)
	require.Equal(t, "user: hello\nassistant: hi there", text)
}

func TestFullText_DeterministicAcrossCalls(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC()
	seedConversation(t, db, "conv-a", base, [][2]string{
		{"user", "some repeated input text for determinism checking"},
	})

	s := NewStore(db)
	a, err := s.FullText(context.Background(), "conv-a", 30)
	require.NoError(t, err)
	b, err := s.FullText(context.Background(), "conv-a", 30)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestTruncateAtWhitespace_RuneSafe(t *testing.T) {
	s := "héllo wörld this is ünïcödé text"
	got := truncateAtWhitespace(s, 10)
	require.LessOrEqual(t, len([]rune(got)), 10)
	for _, r := range got {
		require.NotEqual(t, rune(0xFFFD), r, "must not produce a replacement rune from a split multi-byte char")
	}
}
