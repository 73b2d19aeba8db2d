package caller

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	values := map[string]any{"tenant": "fullstack"}
	c := New("Foyez", values)
	values["tenant"] = "changed"

	ctx := NewContext(context.Background(), c)
	got := FromContext(ctx)
	require.Same(t, c, got)
	require.Equal(t, "Foyez", got.Identity())
	require.True(t, got.Authenticated())
	v, ok := got.Value("tenant")
	require.True(t, ok)
	require.Equal(t, "fullstack", v)
}

func TestFromContextDefaultsToAnonymous(t *testing.T) {
	c := FromContext(context.Background())
	require.NotNil(t, c)
	require.False(t, c.Authenticated())
	_, ok := c.Value("x")
	require.False(t, ok)

	var nilCtx *Context
	require.Equal(t, "", nilCtx.Identity())
}

func TestFromHeader(t *testing.T) {
	r := httptest.NewRequest("POST", "/graphql", nil)
	r.Header.Set("X-User", "Foyez")
	require.Equal(t, "Foyez", FromHeader("X-User")(r).Identity())
	require.Equal(t, "", FromHeader("X-Other")(r).Identity())
}
