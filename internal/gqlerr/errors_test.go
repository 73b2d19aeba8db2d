package gqlerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestSchemaErrorMessage(t *testing.T) {
	err := SchemaError{
		Violationf("type %q is registered twice", "Person"),
		{Message: "unknown type Adress", File: "schema.graphql", Line: 3, Column: 12},
	}
	want := "schema violations found:\n" +
		"- type \"Person\" is registered twice\n" +
		"- unknown type Adress schema.graphql:3:12\n"
	require.Equal(t, want, err.Error())

	wrapped := fmt.Errorf("startup: %w", err)
	require.True(t, IsSchemaError(wrapped))
	require.False(t, IsSchemaError(errors.New("other")))
}

func TestResolverErrorExtensions(t *testing.T) {
	err := Conflictf("Name must be unique").WithDetail("invalidArgs", "Arto Hellas")
	want := map[string]any{
		"code":        "CONFLICT",
		"kind":        "conflict",
		"invalidArgs": "Arto Hellas",
	}
	if diff := cmp.Diff(want, err.Extensions()); diff != "" {
		t.Fatalf("extensions mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "Name must be unique", err.Error())
}

func TestAsResolverError(t *testing.T) {
	require.Nil(t, AsResolverError(nil))

	plain := errors.New("disk on fire")
	re := AsResolverError(plain)
	require.Equal(t, Internal, re.Kind)
	require.Equal(t, "disk on fire", re.Error())
	require.ErrorIs(t, re, plain)

	orig := Unauthorizedf("not authorized")
	require.Same(t, orig, AsResolverError(fmt.Errorf("wrapped: %w", orig)))
	require.Equal(t, Unauthorized, KindOf(fmt.Errorf("wrapped: %w", orig)))
	require.Equal(t, ResolverKind(""), KindOf(plain))
}

func TestArgumentError(t *testing.T) {
	err := NewArgumentError(MissingRequired, "name", "argument %q of required type String! was not provided", "name")
	require.Equal(t, `argument "name" of required type String! was not provided`, err.Error())
	require.Equal(t, "missing-required", err.Extensions()["kind"])
	require.Equal(t, "BAD_USER_INPUT", err.Extensions()["code"])
}
