package language

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSelection(t *testing.T) {
	sel, err := ParseSelection(`{ name phone address { city } }`)
	require.NoError(t, err)
	require.Len(t, sel, 3)
	f, ok := sel[2].(*Field)
	require.True(t, ok)
	require.Equal(t, "address", f.Name)
	require.Len(t, f.SelectionSet, 1)

	empty, err := ParseSelection("")
	require.NoError(t, err)
	require.Nil(t, empty)

	_, err = ParseSelection(`{ a } { b }`)
	require.Error(t, err)
}

func TestOperationFor(t *testing.T) {
	doc, err := ParseQuery(`query A { a } mutation B { b }`)
	require.NoError(t, err)
	require.Nil(t, OperationFor(doc, ""))
	require.Equal(t, Mutation, OperationFor(doc, "B").Operation)
	require.Nil(t, OperationFor(doc, "C"))

	single, err := ParseQuery(`{ a }`)
	require.NoError(t, err)
	require.Equal(t, Query, OperationFor(single, "").Operation)
}
