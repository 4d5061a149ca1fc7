package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/sqlscan"

	"todoagent/internal/chat"
)

const sessionColumns = "id, title, model, created_at, updated_at"

// --- Session Operations ---

func (s *SQLiteStore) CreateSession(ctx context.Context, sess Session) error {
	if strings.TrimSpace(sess.ID) == "" {
		sess.ID = NewSessionID()
	}
	now := nowUTC()
	if strings.TrimSpace(sess.CreatedAt) == "" {
		sess.CreatedAt = now
	}
	if strings.TrimSpace(sess.UpdatedAt) == "" {
		sess.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.Title, sess.Model, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadSession(ctx context.Context, id string) (Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Session{}, fmt.Errorf("session id is empty")
	}
	var sess Session
	err := sqlscan.Get(ctx, s.db, &sess, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]Session, error) {
	sessions := []Session{}
	err := sqlscan.Select(ctx, s.db, &sessions,
		"SELECT "+sessionColumns+" FROM sessions ORDER BY updated_at DESC, created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// --- Message Operations ---

// AppendMessages 从 startSeq 起追加消息；会话标题为空时用第一条用户消息补齐
// AppendMessages appends messages starting at startSeq and fills an empty title from the first user message
func (s *SQLiteStore) AppendMessages(ctx context.Context, sessionID string, startSeq int, messages []chat.Message) error {
	if len(messages) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (session_id, seq, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := nowUTC()
	for i, msg := range messages {
		if _, err := stmt.ExecContext(ctx, sessionID, startSeq+i, msg.Role, msg.Content, now); err != nil {
			return fmt.Errorf("insert message %d: %w", startSeq+i, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE sessions SET updated_at = ?,
			title = CASE WHEN title = '' THEN ? ELSE title END
		WHERE id = ?`, now, inferTitle(messages), sessionID)
	if err != nil {
		return fmt.Errorf("update session timestamp: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	var rows []messageRow
	err := sqlscan.Select(ctx, s.db, &rows,
		"SELECT seq, role, content FROM messages WHERE session_id = ? ORDER BY seq", sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	messages := make([]chat.Message, 0, len(rows))
	for _, r := range rows {
		messages = append(messages, chat.Message{Role: r.Role, Content: r.Content})
	}
	return messages, nil
}

// inferTitle 取第一条用户消息的文本作为标题
// inferTitle uses the text of the first user message as the title
func inferTitle(messages []chat.Message) string {
	for _, msg := range messages {
		if msg.Role != chat.RoleUser {
			continue
		}
		text := msg.Content
		if env, err := chat.ParseEnvelope(msg.Content); err == nil && env.Type == chat.TypeUser {
			text = env.User
		}
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			continue
		}
		runes := []rune(text)
		if len(runes) > 60 {
			return string(runes[:60]) + "…"
		}
		return text
	}
	return ""
}
