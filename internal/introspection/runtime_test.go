package introspection

import (
	"context"
	"testing"

	executor "github.com/foyez/graphql/internal/executor"
	language "github.com/foyez/graphql/internal/language"
	schema "github.com/foyez/graphql/internal/schema"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func buildSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sdl := `
type Person {
  name: String!
  nickname: String @deprecated(reason: "use name")
  phone: String @deprecated
}
type Query {
  person: Person
  hello(greeting: String = "hi"): String
}
`
	sch, err := schema.BuildFromSDL(sdl)
	require.NoError(t, err)
	return sch
}

func execute(t *testing.T, rt executor.Runtime, sch *schema.Schema, query string) *executor.ExecutionResult {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	return executor.NewExecutor(rt, sch).ExecuteRequest(context.Background(), doc, "", nil, nil)
}

func TestIntrospectionEnabled(t *testing.T) {
	wrapper := Wrap(executor.NewMockRuntime(nil), buildSchema(t))
	res := execute(t, wrapper.Runtime, wrapper.Schema, "{__schema{queryType{name} mutationType{name}}}")
	require.Empty(t, res.Errors)

	want := map[string]any{
		"__schema": map[string]any{
			"queryType":    map[string]any{"name": "Query"},
			"mutationType": nil,
		},
	}
	if diff := cmp.Diff(want, executor.Plain(res.Data)); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestDeprecationRoundTrip(t *testing.T) {
	wrapper := Wrap(executor.NewMockRuntime(nil), buildSchema(t))
	res := execute(t, wrapper.Runtime, wrapper.Schema, `{
  all: __type(name: "Person") {
    kind
    fields(includeDeprecated: true) {
      name isDeprecated deprecationReason
      type { kind name ofType { kind name } }
    }
  }
  current: __type(name: "Person") { fields { name } }
}`)
	require.Empty(t, res.Errors)

	stringType := map[string]any{"kind": "SCALAR", "name": "String", "ofType": nil}
	want := map[string]any{
		"all": map[string]any{
			"kind": "OBJECT",
			"fields": []any{
				map[string]any{
					"name": "name", "isDeprecated": false, "deprecationReason": nil,
					"type": map[string]any{"kind": "NON_NULL", "name": nil, "ofType": map[string]any{"kind": "SCALAR", "name": "String"}},
				},
				map[string]any{"name": "nickname", "isDeprecated": true, "deprecationReason": "use name", "type": stringType},
				map[string]any{"name": "phone", "isDeprecated": true, "deprecationReason": schema.DefaultDeprecationReason, "type": stringType},
			},
		},
		"current": map[string]any{
			"fields": []any{map[string]any{"name": "name"}},
		},
	}
	if diff := cmp.Diff(want, executor.Plain(res.Data)); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestArgumentDefaults(t *testing.T) {
	wrapper := Wrap(executor.NewMockRuntime(nil), buildSchema(t))
	res := execute(t, wrapper.Runtime, wrapper.Schema, `{ __type(name: "Query") { fields { name args { name defaultValue } } } }`)
	require.Empty(t, res.Errors)

	want := map[string]any{
		"__type": map[string]any{
			"fields": []any{
				map[string]any{"name": "person", "args": []any{}},
				map[string]any{"name": "hello", "args": []any{
					map[string]any{"name": "greeting", "defaultValue": `"hi"`},
				}},
			},
		},
	}
	if diff := cmp.Diff(want, executor.Plain(res.Data)); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestUnknownTypeIsNull(t *testing.T) {
	wrapper := Wrap(executor.NewMockRuntime(nil), buildSchema(t))
	res := execute(t, wrapper.Runtime, wrapper.Schema, `{ __type(name: "Nope") { name } }`)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"__type": nil}, executor.Plain(res.Data))
}

func TestTypenameField(t *testing.T) {
	// __typename works without the introspection wrapper
	res := execute(t, executor.NewMockRuntime(nil), buildSchema(t), "{__typename}")
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"__typename": "Query"}, executor.Plain(res.Data))
}

func TestAbstractTypesAndDirectives(t *testing.T) {
	sch, err := schema.BuildFromSDL(`
directive @auth(matchArg: String, role: String) on FIELD_DEFINITION
enum Color { RED GREEN BLUE @deprecated }
interface Node { id: ID! }
type User implements Node { id: ID! }
type Group implements Node { id: ID! }
type Query { node: Node color: Color }
`)
	require.NoError(t, err)
	wrapper := Wrap(executor.NewMockRuntime(nil), sch)
	res := execute(t, wrapper.Runtime, wrapper.Schema, `{
  node: __type(name: "Node") { kind possibleTypes { name kind } }
  color: __type(name: "Color") { enumValues { name } all: enumValues(includeDeprecated: true) { name isDeprecated } }
  user: __type(name: "User") { interfaces { name } }
  __schema { directives { name locations args { name } } }
}`)
	require.Empty(t, res.Errors)

	data := executor.Plain(res.Data).(map[string]any)
	wantNode := map[string]any{
		"kind": "INTERFACE",
		"possibleTypes": []any{
			map[string]any{"name": "Group", "kind": "OBJECT"},
			map[string]any{"name": "User", "kind": "OBJECT"},
		},
	}
	if diff := cmp.Diff(wantNode, data["node"]); diff != "" {
		t.Fatalf("node mismatch (-want +got):\n%s", diff)
	}
	wantColor := map[string]any{
		"enumValues": []any{map[string]any{"name": "GREEN"}, map[string]any{"name": "RED"}},
		"all": []any{
			map[string]any{"name": "BLUE", "isDeprecated": true},
			map[string]any{"name": "GREEN", "isDeprecated": false},
			map[string]any{"name": "RED", "isDeprecated": false},
		},
	}
	if diff := cmp.Diff(wantColor, data["color"]); diff != "" {
		t.Fatalf("color mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, map[string]any{"interfaces": []any{map[string]any{"name": "Node"}}}, data["user"])

	var auth map[string]any
	for _, d := range data["__schema"].(map[string]any)["directives"].([]any) {
		if d.(map[string]any)["name"] == "auth" {
			auth = d.(map[string]any)
		}
	}
	require.Equal(t, []any{"FIELD_DEFINITION"}, auth["locations"])
	require.Equal(t, []any{map[string]any{"name": "matchArg"}, map[string]any{"name": "role"}}, auth["args"])
}
