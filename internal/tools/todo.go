package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"todoagent/internal/storage"
)

// TodoStore is the subset of storage the todo tools need.
type TodoStore interface {
	ListTodos(ctx context.Context) ([]storage.Todo, error)
	CreateTodo(ctx context.Context, text string) (int64, error)
	SearchTodos(ctx context.Context, query string) ([]storage.Todo, error)
	DeleteTodo(ctx context.Context, id int64) (bool, error)
}

// TodoTools returns the four todo tools in catalog order.
func TodoTools(store TodoStore) []Tool {
	return []Tool{
		NewGetAllTodosTool(store),
		NewCreateTodoTool(store),
		NewSearchTodoTool(store),
		NewDeleteTodoByIDTool(store),
	}
}

type GetAllTodosTool struct{ store TodoStore }

type CreateTodoTool struct{ store TodoStore }

type SearchTodoTool struct{ store TodoStore }

type DeleteTodoByIDTool struct{ store TodoStore }

func NewGetAllTodosTool(store TodoStore) *GetAllTodosTool { return &GetAllTodosTool{store: store} }

func NewCreateTodoTool(store TodoStore) *CreateTodoTool { return &CreateTodoTool{store: store} }

func NewSearchTodoTool(store TodoStore) *SearchTodoTool { return &SearchTodoTool{store: store} }

func NewDeleteTodoByIDTool(store TodoStore) *DeleteTodoByIDTool {
	return &DeleteTodoByIDTool{store: store}
}

func (t *GetAllTodosTool) Name() string      { return "getAllTodos" }
func (t *GetAllTodosTool) Signature() string { return "getAllTodos()" }
func (t *GetAllTodosTool) Description() string {
	return "Return all todos from database"
}

func (t *GetAllTodosTool) Execute(ctx context.Context, _ json.RawMessage) (any, error) {
	if t.store == nil {
		return nil, fmt.Errorf("todo store unavailable")
	}
	return t.store.ListTodos(ctx)
}

func (t *CreateTodoTool) Name() string      { return "createTodo" }
func (t *CreateTodoTool) Signature() string { return "createTodo(todo: string)" }
func (t *CreateTodoTool) Description() string {
	return "Create a new todo in the database and takes todo as a string and returns the ID of the created todo"
}

func (t *CreateTodoTool) Execute(ctx context.Context, input json.RawMessage) (any, error) {
	if t.store == nil {
		return nil, fmt.Errorf("todo store unavailable")
	}
	text, err := stringInput(input, "todo", "text")
	if err != nil {
		return nil, fmt.Errorf("createTodo input: %w", err)
	}
	return t.store.CreateTodo(ctx, text)
}

func (t *SearchTodoTool) Name() string      { return "searchTodo" }
func (t *SearchTodoTool) Signature() string { return "searchTodo(query: string)" }
func (t *SearchTodoTool) Description() string {
	return "Search for all todos matching the query string using iLike operator in the database"
}

func (t *SearchTodoTool) Execute(ctx context.Context, input json.RawMessage) (any, error) {
	if t.store == nil {
		return nil, fmt.Errorf("todo store unavailable")
	}
	query, err := stringInput(input, "query", "search")
	if err != nil {
		return nil, fmt.Errorf("searchTodo input: %w", err)
	}
	return t.store.SearchTodos(ctx, query)
}

func (t *DeleteTodoByIDTool) Name() string      { return "deleteTodoById" }
func (t *DeleteTodoByIDTool) Signature() string { return "deleteTodoById(id: string)" }
func (t *DeleteTodoByIDTool) Description() string {
	return "Delete a todo by ID given in the db"
}

// DeleteResult is the observation returned by deleteTodoById.
type DeleteResult struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}

func (t *DeleteTodoByIDTool) Execute(ctx context.Context, input json.RawMessage) (any, error) {
	if t.store == nil {
		return nil, fmt.Errorf("todo store unavailable")
	}
	id, err := idInput(input)
	if err != nil {
		return nil, fmt.Errorf("deleteTodoById input: %w", err)
	}
	deleted, err := t.store.DeleteTodo(ctx, id)
	if err != nil {
		return nil, err
	}
	return DeleteResult{ID: id, Deleted: deleted}, nil
}

// stringInput accepts a JSON string, a number, or an object holding one of keys.
func stringInput(input json.RawMessage, keys ...string) (string, error) {
	input = bytes.TrimSpace(input)
	if len(input) == 0 || string(input) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(input, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(input, &n); err == nil {
		return n.String(), nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(input, &obj); err == nil {
		for _, k := range keys {
			if v, ok := obj[k]; ok {
				return stringInput(v)
			}
		}
		return "", fmt.Errorf("expected one of %s", strings.Join(keys, ", "))
	}
	return "", fmt.Errorf("expected a string, got %s", string(input))
}

// idInput accepts 3, "3", or {"id": 3}.
func idInput(input json.RawMessage) (int64, error) {
	raw, err := stringInput(input, "id")
	if err != nil {
		return 0, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("id is empty")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id %q is not an integer", raw)
	}
	return id, nil
}
