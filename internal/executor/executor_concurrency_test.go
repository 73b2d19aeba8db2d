package executor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	schema "github.com/foyez/graphql/internal/schema"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// rendezvous returns resolvers for a and b where a only succeeds if b
// starts while a is still running.
func rendezvous(wait time.Duration) map[string]MockResolver {
	bStarted := make(chan struct{})
	var once sync.Once
	return map[string]MockResolver{
		"a": func(ctx context.Context, _ any, _ map[string]any) (any, error) {
			select {
			case <-bStarted:
				return nil, fmt.Errorf("a failed")
			case <-time.After(wait):
				return nil, fmt.Errorf("b did not start")
			}
		},
		"b": func(ctx context.Context, _ any, _ map[string]any) (any, error) {
			once.Do(func() { close(bStarted) })
			return nil, fmt.Errorf("b failed")
		},
	}
}

func TestConcurrency_SiblingsMergeErrorsInOrder(t *testing.T) {
	sch := newSchemaWithQueryType(newObjectType("Query",
		schema.NewField("a", "", schema.NamedType("String")).SetConcurrent(true),
		schema.NewField("b", "", schema.NamedType("String")).SetConcurrent(true),
	))
	r := rendezvous(5 * time.Second)
	rt := NewMockRuntime(map[string]MockResolver{"Query.a": r["a"], "Query.b": r["b"]})

	got := NewExecutor(rt, sch).ExecuteRequest(context.Background(), mustParseQuery(t, "{ a b }"), "", nil, nil)

	want := &ExecutionResult{
		Data: Object{{Name: "a"}, {Name: "b"}},
		Errors: []GraphQLError{
			{Message: "a failed", Path: Path{"a"}, Extensions: internalExt},
			{Message: "b failed", Path: Path{"b"}, Extensions: internalExt},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrency_MaxConcurrencyOneIsSequential(t *testing.T) {
	sch := newSchemaWithQueryType(newObjectType("Query",
		schema.NewField("a", "", schema.NamedType("String")).SetConcurrent(true),
		schema.NewField("b", "", schema.NamedType("String")).SetConcurrent(true),
	))
	r := rendezvous(50 * time.Millisecond)
	rt := NewMockRuntime(map[string]MockResolver{"Query.a": r["a"], "Query.b": r["b"]})

	got := NewExecutor(rt, sch, WithMaxConcurrency(1)).ExecuteRequest(context.Background(), mustParseQuery(t, "{ a b }"), "", nil, nil)
	require.Len(t, got.Errors, 2)
	require.Equal(t, "b did not start", got.Errors[0].Message)
}

func TestConcurrency_MutationRootIsSerial(t *testing.T) {
	query := newObjectType("Query", schema.NewField("x", "", schema.NamedType("String")))
	mutation := newObjectType("Mutation",
		schema.NewField("a", "", schema.NamedType("String")).SetConcurrent(true),
		schema.NewField("b", "", schema.NamedType("String")).SetConcurrent(true),
	)
	sch := newSchemaWithQueryType(query, mutation)
	sch.SetMutationType("Mutation")

	r := rendezvous(50 * time.Millisecond)
	rt := NewMockRuntime(map[string]MockResolver{"Mutation.a": r["a"], "Mutation.b": r["b"]})

	got := NewExecutor(rt, sch).ExecuteRequest(context.Background(), mustParseQuery(t, "mutation { a b }"), "", nil, nil)
	require.Len(t, got.Errors, 2)
	require.Equal(t, "b did not start", got.Errors[0].Message)

	var order []string
	for _, c := range rt.GetCalls() {
		order = append(order, c.Field)
	}
	require.Equal(t, []string{"a", "b"}, order)
}
