package storage

import "github.com/google/uuid"

// NewSessionID 生成新的会话 ID / Generates a new session ID
func NewSessionID() string {
	return "sess_" + uuid.NewString()
}
