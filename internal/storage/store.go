package storage

import (
	"context"
	"errors"

	"todoagent/internal/chat"
)

var (
	// ErrEmptyTodo 待办内容为空
	// ErrEmptyTodo is returned when a todo has no text
	ErrEmptyTodo = errors.New("todo text is empty")

	// ErrSessionNotFound 会话不存在
	// ErrSessionNotFound is returned when a session id is unknown
	ErrSessionNotFound = errors.New("session not found")
)

// Store 持久化接口
// Store is the persistence interface
type Store interface {
	// Todo 操作 / Todo operations
	ListTodos(ctx context.Context) ([]Todo, error)
	CreateTodo(ctx context.Context, text string) (int64, error)
	SearchTodos(ctx context.Context, query string) ([]Todo, error)
	DeleteTodo(ctx context.Context, id int64) (bool, error)

	// Session 操作 / Session operations
	CreateSession(ctx context.Context, s Session) error
	LoadSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context) ([]Session, error)

	// Message 操作 / Message operations
	AppendMessages(ctx context.Context, sessionID string, startSeq int, messages []chat.Message) error
	LoadMessages(ctx context.Context, sessionID string) ([]chat.Message, error)

	// 生命周期 / Lifecycle
	Close() error
}
