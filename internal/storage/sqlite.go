package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"modernc.org/sqlite"
)

// SQLiteStore 基于 SQLite (WAL 模式) 的持久化实现
// SQLiteStore implements Store using SQLite with WAL mode
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var registerFoldOnce sync.Once

// registerFold 注册 fold(x)：Unicode 小写折叠，SQLite 内置 lower() 只处理 ASCII
// registerFold registers fold(x), a Unicode lower-casing function; SQLite's lower() is ASCII-only
func registerFold() error {
	var err error
	registerFoldOnce.Do(func() {
		err = sqlite.RegisterDeterministicScalarFunction("fold", 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			switch v := args[0].(type) {
			case nil:
				return nil, nil
			case string:
				return strings.ToLower(v), nil
			case []byte:
				return strings.ToLower(string(v)), nil
			default:
				return strings.ToLower(fmt.Sprint(v)), nil
			}
		})
	})
	return err
}

// NewSQLiteStore 创建并初始化 SQLite 数据库
// NewSQLiteStore creates and initializes a SQLite database
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	if err := registerFold(); err != nil {
		return nil, fmt.Errorf("register fold: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 单连接：调用严格串行，也让 :memory: 在连接间保持同一个库
	// Single connection: calls are strictly sequential, and :memory: stays one database
	db.SetMaxOpenConns(1)

	// 启用 WAL 模式和优化 PRAGMA / Enable WAL and performance PRAGMAs
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Path 返回数据库文件路径 / Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close 关闭数据库连接 / Close the database connection
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// --- Todo Operations ---

const todoColumns = "id, todo, created_at, updated_at"

func (s *SQLiteStore) ListTodos(ctx context.Context) ([]Todo, error) {
	todos := []Todo{}
	if err := sqlscan.Select(ctx, s.db, &todos, "SELECT "+todoColumns+" FROM todos ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

func (s *SQLiteStore) CreateTodo(ctx context.Context, text string) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrEmptyTodo
	}
	now := nowUTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO todos (todo, created_at, updated_at) VALUES (?, ?, ?)",
		text, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert todo: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert todo id: %w", err)
	}
	return id, nil
}

// SearchTodos 大小写不敏感的子串匹配，查询中的 % _ 按字面匹配
// SearchTodos is a case-insensitive substring match; % and _ in the query match literally
func (s *SQLiteStore) SearchTodos(ctx context.Context, query string) ([]Todo, error) {
	todos := []Todo{}
	err := sqlscan.Select(ctx, s.db, &todos,
		"SELECT "+todoColumns+" FROM todos WHERE instr(fold(todo), fold(?)) > 0 ORDER BY id",
		query)
	if err != nil {
		return nil, fmt.Errorf("search todos: %w", err)
	}
	return todos, nil
}

// DeleteTodo 删除指定 id；不存在时返回 false
// DeleteTodo removes the row with the given id; reports false when it does not exist
func (s *SQLiteStore) DeleteTodo(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete todo %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete todo %d: %w", id, err)
	}
	return n > 0, nil
}

// --- Helpers ---

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
