package storage

// Todo 待办条目
// Todo is a single row of the todos table
type Todo struct {
	ID        int64  `json:"id" db:"id"`
	Text      string `json:"todo" db:"todo"`
	CreatedAt string `json:"created_at" db:"created_at"`
	UpdatedAt string `json:"updated_at" db:"updated_at"`
}

// Session 会话元数据（对话记录）
// Session holds transcript metadata
type Session struct {
	ID        string `json:"id" db:"id"`
	Title     string `json:"title" db:"title"`
	Model     string `json:"model" db:"model"`
	CreatedAt string `json:"created_at" db:"created_at"`
	UpdatedAt string `json:"updated_at" db:"updated_at"`
}

type messageRow struct {
	Seq     int    `db:"seq"`
	Role    string `db:"role"`
	Content string `db:"content"`
}
