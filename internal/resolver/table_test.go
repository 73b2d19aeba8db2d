package resolver

import (
	"context"
	"testing"

	gqlerr "github.com/foyez/graphql/internal/gqlerr"
	"github.com/stretchr/testify/require"
)

func TestTable_RegisterTwiceIsSchemaError(t *testing.T) {
	tbl := NewTable()
	fn := func(context.Context, any, map[string]any) (any, error) { return 1, nil }

	require.NoError(t, tbl.Register("Query", "personCount", fn))
	err := tbl.Register("Query", "personCount", fn)
	require.True(t, gqlerr.IsSchemaError(err))
	require.Contains(t, err.Error(), "Query.personCount is registered twice")

	require.True(t, gqlerr.IsSchemaError(tbl.Register("Query", "nilFn", nil)))
	require.Len(t, tbl.Entries(), 1)
}

func TestTable_ResolverForFallsBackToProperty(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Register("Person", "address", func(context.Context, any, map[string]any) (any, error) {
		return "custom", nil
	}, Pure()))

	e := tbl.ResolverFor("Person", "address")
	require.False(t, e.Default)
	require.True(t, e.Pure)
	v, err := e.Resolve(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, "custom", v)

	d := tbl.ResolverFor("Person", "name")
	require.True(t, d.Default)
	v, err = d.Resolve(context.Background(), map[string]any{"name": "Arto Hellas"}, nil)
	require.NoError(t, err)
	require.Equal(t, "Arto Hellas", v)
}

func TestTable_EntriesOrdered(t *testing.T) {
	tbl := NewTable()
	fn := func(context.Context, any, map[string]any) (any, error) { return nil, nil }
	require.NoError(t, tbl.Register("Query", "b", fn))
	require.NoError(t, tbl.Register("Mutation", "z", fn))
	require.NoError(t, tbl.Register("Query", "a", fn))

	var got []string
	for _, e := range tbl.Entries() {
		got = append(got, e.ObjectType+"."+e.Field)
	}
	require.Equal(t, []string{"Mutation.z", "Query.a", "Query.b"}, got)
}

type address struct {
	Street string `json:"street"`
	City   string
	Zip    string `json:"postal_code,omitempty"`
	secret string
}

type person struct {
	address
	Name  string  `json:"name"`
	Phone *string `json:"phone"`
}

func TestProperty(t *testing.T) {
	phone := "040-123543"
	p := &person{address: address{Street: "Tapiolankatu 5 A", City: "Espoo", Zip: "02100", secret: "x"}, Name: "Arto Hellas", Phone: &phone}

	tests := []struct {
		name   string
		source any
		prop   string
		want   any
		found  bool
	}{
		{"json tag", p, "name", "Arto Hellas", true},
		{"embedded json tag", p, "street", "Tapiolankatu 5 A", true},
		{"case-insensitive name", p, "city", "Espoo", true},
		{"renamed by tag", p, "postal_code", "02100", true},
		{"tag hides field name", p, "Zip", nil, false},
		{"unexported", p, "secret", nil, false},
		{"pointer field", *p, "phone", &phone, true},
		{"map", map[string]any{"id": "1"}, "id", "1", true},
		{"string map", map[string]string{"id": "1"}, "id", "1", true},
		{"typed map", map[string]int{"n": 3}, "n", 3, true},
		{"missing key", map[string]any{}, "id", nil, false},
		{"nil", nil, "id", nil, false},
		{"nil pointer", (*person)(nil), "name", nil, false},
		{"scalar", 42, "id", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Property(tt.source, tt.prop)
			require.Equal(t, tt.found, found)
			require.Equal(t, tt.want, got)
		})
	}
}
