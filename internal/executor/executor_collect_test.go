package executor

import (
	"context"
	"encoding/json"
	"testing"

	schema "github.com/foyez/graphql/internal/schema"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestCollect_OrderAndAliases(t *testing.T) {
	sch := newSchemaWithQueryType(newObjectType("Query",
		schema.NewField("a", "", schema.NamedType("String")),
		schema.NewField("b", "", schema.NamedType("String")),
	))
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a": NewMockValueResolver("A"),
		"Query.b": NewMockValueResolver("B"),
	})
	got := NewExecutor(rt, sch).ExecuteRequest(context.Background(), mustParseQuery(t, "{ b a c: a __typename }"), "", nil, nil)

	want := &ExecutionResult{Data: Object{
		{Name: "b", Value: "B"},
		{Name: "a", Value: "A"},
		{Name: "c", Value: "A"},
		{Name: "__typename", Value: "Query"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}

	encoded, err := json.Marshal(got)
	require.NoError(t, err)
	require.Equal(t, `{"data":{"b":"B","a":"A","c":"A","__typename":"Query"}}`, string(encoded))

	var fields []string
	for _, c := range rt.GetCalls() {
		fields = append(fields, c.Field)
	}
	require.Equal(t, []string{"b", "a", "a"}, fields)
}

func TestCollect_SkipInclude(t *testing.T) {
	sch := newSchemaWithQueryType(newObjectType("Query",
		schema.NewField("a", "", schema.NamedType("String")),
		schema.NewField("b", "", schema.NamedType("String")),
		schema.NewField("c", "", schema.NamedType("String")),
	))
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a": NewMockValueResolver("A"),
		"Query.b": NewMockValueResolver("B"),
		"Query.c": NewMockValueResolver("C"),
	})
	doc := mustParseQuery(t, `query($s: Boolean!) { a @skip(if: $s) b @include(if: false) c }`)
	got := NewExecutor(rt, sch).ExecuteRequest(context.Background(), doc, "", map[string]any{"s": true}, nil)

	want := &ExecutionResult{Data: Object{{Name: "c", Value: "C"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, rt.GetCalls(), 1)
}

func TestCollect_FragmentsOnAbstractTypes(t *testing.T) {
	sch, err := schema.BuildFromSDL(`
interface Node { id: ID! }
type User implements Node { id: ID! name: String }
type Post implements Node { id: ID! title: String }
union SearchResult = User | Post
type Query {
  nodes: [Node!]!
  search: [SearchResult]
}
`)
	require.NoError(t, err)

	user := map[string]any{"__typename": "User", "id": "1", "name": "Arto"}
	post := map[string]any{"__typename": "Post", "id": "2", "title": "Hello"}
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.nodes":  NewMockValueResolver([]any{user, post}),
		"Query.search": NewMockValueResolver([]any{post, user}),
	})
	doc := mustParseQuery(t, `
{
  nodes { __typename ... on Node { id } ... on User { name } ...P }
  search { ... on User { name } ... on Post { title } }
}
fragment P on Post { title }
`)
	got := NewExecutor(rt, sch).ExecuteRequest(context.Background(), doc, "", nil, nil)

	want := &ExecutionResult{Data: Object{
		{Name: "nodes", Value: []any{
			Object{{Name: "__typename", Value: "User"}, {Name: "id", Value: "1"}, {Name: "name", Value: "Arto"}},
			Object{{Name: "__typename", Value: "Post"}, {Name: "id", Value: "2"}, {Name: "title", Value: "Hello"}},
		}},
		{Name: "search", Value: []any{
			Object{{Name: "title", Value: "Hello"}},
			Object{{Name: "name", Value: "Arto"}},
		}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestCollect_AbstractTypeMismatch(t *testing.T) {
	sch, err := schema.BuildFromSDL(`
interface Node { id: ID! }
type User implements Node { id: ID! }
type Other { id: ID! }
type Query { node: Node }
`)
	require.NoError(t, err)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.node": NewMockValueResolver(map[string]any{"__typename": "Other", "id": "1"}),
	})
	got := NewExecutor(rt, sch).ExecuteRequest(context.Background(), mustParseQuery(t, "{ node { id } }"), "", nil, nil)

	want := &ExecutionResult{
		Data:   Object{{Name: "node"}},
		Errors: []GraphQLError{{Message: "Runtime Object type Other is not a possible type for Node", Path: Path{"node"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestPlain(t *testing.T) {
	v := Object{
		{Name: "a", Value: []any{Object{{Name: "b", Value: 1}}}},
		{Name: "c"},
	}
	want := map[string]any{"a": []any{map[string]any{"b": 1}}, "c": nil}
	if diff := cmp.Diff(want, Plain(v)); diff != "" {
		t.Fatalf("Plain mismatch (-want +got):\n%s", diff)
	}
	got, ok := v.Get("a")
	require.True(t, ok)
	require.Len(t, got, 1)
}
