package engine

import (
	"context"
	"testing"

	schema "github.com/foyez/graphql/internal/schema"
	"github.com/stretchr/testify/require"
)

type role string

type dog struct{ Name string }

type cat struct{}

func (cat) TypeName() string { return "Cat" }

func TestSerializeLeafValue(t *testing.T) {
	sch, err := schema.BuildFromSDL(`
enum Role { ADMIN USER }
interface Pet { name: String }
type Dog implements Pet { name: String }
type Cat implements Pet { name: String }
type Query { pet: Pet role: Role }
`)
	require.NoError(t, err)
	rt := &runtime{schema: sch}
	ctx := context.Background()

	cases := []struct {
		typ  string
		in   any
		want any
	}{
		{"String", "x", "x"},
		{"String", ptr("p"), "p"},
		{"String", role("named"), "named"},
		{"Int", int64(7), 7},
		{"Int", 3.0, 3},
		{"Float", 2, 2.0},
		{"Boolean", true, true},
		{"ID", 42, "42"},
		{"ID", "abc", "abc"},
		{"ID", int64(3749584958), "3749584958"},
		{"ID", uint64(18446744073709551615), "18446744073709551615"},
		{"ID", 5e9, "5000000000"},
		{"Role", role("ADMIN"), "ADMIN"},
		{"String", (*string)(nil), nil},
	}
	for _, c := range cases {
		got, err := rt.SerializeLeafValue(ctx, c.typ, c.in)
		require.NoError(t, err, "%s %v", c.typ, c.in)
		require.Equal(t, c.want, got, "%s %v", c.typ, c.in)
	}

	for _, c := range []struct {
		typ string
		in  any
	}{
		{"Int", 1.5},
		{"Int", int64(1) << 40},
		{"Boolean", "true"},
		{"String", 12},
		{"Role", "OWNER"},
		{"ID", 2.5},
		{"ID", true},
	} {
		_, err := rt.SerializeLeafValue(ctx, c.typ, c.in)
		require.Error(t, err, "%s %v", c.typ, c.in)
	}
}

func TestResolveType(t *testing.T) {
	sch, err := schema.BuildFromSDL(`
interface Pet { name: String }
type dog implements Pet { name: String }
type Cat implements Pet { name: String }
type Query { pet: Pet }
`)
	require.NoError(t, err)
	rt := &runtime{schema: sch}
	ctx := context.Background()

	name, err := rt.ResolveType(ctx, "Pet", cat{})
	require.NoError(t, err)
	require.Equal(t, "Cat", name)

	name, err = rt.ResolveType(ctx, "Pet", map[string]any{"__typename": "Cat"})
	require.NoError(t, err)
	require.Equal(t, "Cat", name)

	name, err = rt.ResolveType(ctx, "Pet", &dog{Name: "Rex"})
	require.NoError(t, err)
	require.Equal(t, "dog", name)

	_, err = rt.ResolveType(ctx, "Pet", 3)
	require.Error(t, err)
}
