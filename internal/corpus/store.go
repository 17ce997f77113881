// Package corpus presents the message corpus as ordered, role-tagged
// conversations. It is a read-only view: the messages table is populated by
// an external producer, never written here.
package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cogsensor/internal/cogerr"
)

// Message is one immutable row of the corpus.
type Message struct {
	ConversationID string
	MessageIndex   int
	Role           string
	Text           string
	CreatedAt      time.Time
}

// Conversation is the derived view over a conversation's messages: title,
// span, but not the joined text (fetched separately via UserText/FullText,
// since materializing both eagerly for every conversation on every
// list_conversations call would be wasted work when most callers only need
// the summary).
type Conversation struct {
	ConversationID string
	Title          string
	StartedAt      time.Time
	LastAt         time.Time
}

// Store is the Message Store: a read-only view over the corpus.messages
// table.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-initialized database handle (internal/store's
// LocalStore.DB()).
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListConversations yields every conversation, ordered by conversation_id
// for stability within a run (the spec leaves order otherwise unspecified).
func (s *Store) ListConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.conversation_id,
		       MIN(m.created_at) AS started_at,
		       MAX(m.created_at) AS last_at,
		       (SELECT text FROM messages m2
		          WHERE m2.conversation_id = m.conversation_id AND m2.role = 'user'
		          ORDER BY m2.message_index ASC LIMIT 1) AS first_user_text
		FROM messages m
		GROUP BY m.conversation_id
		ORDER BY m.conversation_id
	`)
	if err != nil {
		return nil, cogerr.Wrap(cogerr.KindCorpusError, "ListConversations", "query conversations: %v", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		var firstUserText sql.NullString
		if err := rows.Scan(&c.ConversationID, &c.StartedAt, &c.LastAt, &firstUserText); err != nil {
			return nil, cogerr.Wrap(cogerr.KindCorpusError, "ListConversations", "scan conversation row: %v", err)
		}
		c.Title = deriveTitle(firstUserText.String)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, cogerr.Wrap(cogerr.KindCorpusError, "ListConversations", "iterate conversations: %v", err)
	}
	return out, nil
}

// GetMessages returns every message of conversationID, in message_index
// order. Returns NotFound if the conversation has no rows.
func (s *Store) GetMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, message_index, role, text, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY message_index ASC
	`, conversationID)
	if err != nil {
		return nil, cogerr.Wrap(cogerr.KindCorpusError, "GetMessages", "query messages for %s: %v", conversationID, err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ConversationID, &m.MessageIndex, &m.Role, &m.Text, &m.CreatedAt); err != nil {
			return nil, cogerr.Wrap(cogerr.KindCorpusError, "GetMessages", "scan message row for %s: %v", conversationID, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, cogerr.Wrap(cogerr.KindCorpusError, "GetMessages", "iterate messages for %s: %v", conversationID, err)
	}
	if len(out) == 0 {
		return nil, cogerr.New(cogerr.KindNotFound, "GetMessages", fmt.Errorf("conversation %q not found", conversationID))
	}
	return out, nil
}

// UserText concatenates the user-role messages of conversationID,
// newline-joined, in message order.
func (s *Store) UserText(ctx context.Context, conversationID string) (string, error) {
	messages, err := s.GetMessages(ctx, conversationID)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	first := true
	for _, m := range messages {
		if m.Role != "user" {
			continue
		}
		if !first {
			sb.WriteByte('\n')
		}
		sb.WriteString(m.Text)
		first = false
	}
	return sb.String(), nil
}

const defaultMaxChars = 5000

// FullText joins every message of conversationID in order, role-prefixed,
// truncated at the rightmost whitespace at or before maxChars runes. A
// maxChars of 0 uses the spec default of 5000.
func (s *Store) FullText(ctx context.Context, conversationID string, maxChars int) (string, error) {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	messages, err := s.GetMessages(ctx, conversationID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i, m := range messages {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Text)
	}
	return truncateAtWhitespace(sb.String(), maxChars), nil
}

// deriveTitle takes the first line of a user message as the conversation
// title. The corpus schema carries no explicit title metadata, so this is
// always the "first user line" branch of the spec's title rule.
func deriveTitle(firstUserText string) string {
	if firstUserText == "" {
		return ""
	}
	line := firstUserText
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	return truncateAtWhitespace(line, 120)
}

// truncateAtWhitespace returns s truncated to at most maxChars runes,
// cutting at the rightmost whitespace rune at or before that position so a
// multi-byte rune or a word is never split. If no whitespace is found in
// range, it cuts hard at maxChars runes.
func truncateAtWhitespace(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	cut := maxChars
	for i := maxChars; i > 0; i-- {
		if runes[i-1] == ' ' || runes[i-1] == '\n' || runes[i-1] == '\t' || runes[i-1] == '\r' {
			cut = i - 1
			break
		}
	}
	return strings.TrimRight(string(runes[:cut]), " \n\t\r")
}
