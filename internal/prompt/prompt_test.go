package prompt

import (
	"strings"
	"testing"
)

type staticCatalogue []string

func (s staticCatalogue) Catalog() []string { return s }

func TestSystem_IncludesCatalog(t *testing.T) {
	got, err := System(staticCatalogue{
		"- getAllTodos(): Return all todos from database",
		"- createTodo(todo: string): Create a new todo",
	}, "")
	if err != nil {
		t.Fatalf("System: %v", err)
	}
	for _, want := range []string{
		"Available Tools:\n- getAllTodos(): Return all todos from database\n- createTodo(todo: string): Create a new todo\n",
		`{"type": "action", "function":"createTodo", "input": "Shopping Groceries milk, eggs, and bread."}`,
		"todo: String",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q\n---\n%s", want, got)
		}
	}
	if strings.Contains(got, "Additional instructions") {
		t.Fatal("empty extra should not render a section")
	}
}

func TestSystem_Extra(t *testing.T) {
	got, err := System(staticCatalogue{"- getAllTodos(): x"}, "  Answer in German.  ")
	if err != nil {
		t.Fatalf("System: %v", err)
	}
	if !strings.HasSuffix(got, "Additional instructions:\nAnswer in German.\n") {
		t.Fatalf("unexpected tail:\n%s", got)
	}
}

func TestSystem_NilCatalogue(t *testing.T) {
	if _, err := System(nil, ""); err == nil {
		t.Fatal("expected error for nil catalogue")
	}
}
