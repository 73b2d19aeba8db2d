package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	caller "github.com/foyez/graphql/internal/caller"
	engine "github.com/foyez/graphql/internal/engine"
	pubsub "github.com/foyez/graphql/internal/pubsub"
	reqid "github.com/foyez/graphql/internal/reqid"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const testSDL = `
type Query { hello: String whoami: String fail: String! }
type Message { text: String! }
type Subscription { messages: Message! }
type Mutation { bump: Int }
`

type captured struct {
	requestID string
	identity  string
	bumps     int
}

func newTestEngine(t *testing.T, hub *pubsub.Hub, seen *captured) *engine.Engine {
	t.Helper()
	eng := engine.New()
	require.NoError(t, eng.LoadSDL("test.graphql", testSDL))
	require.NoError(t, eng.RegisterResolver("Query", "hello", func(ctx context.Context, _ any, _ map[string]any) (any, error) {
		if seen != nil {
			seen.requestID, _ = reqid.FromContext(ctx)
		}
		return "world", nil
	}))
	require.NoError(t, eng.RegisterResolver("Query", "whoami", func(ctx context.Context, _ any, _ map[string]any) (any, error) {
		return caller.FromContext(ctx).Identity(), nil
	}))
	require.NoError(t, eng.RegisterResolver("Mutation", "bump", func(context.Context, any, map[string]any) (any, error) {
		if seen != nil {
			seen.bumps++
		}
		return 1, nil
	}))
	require.NoError(t, eng.RegisterResolver("Subscription", "messages", func(context.Context, any, map[string]any) (any, error) {
		return hub.Subscribe("MESSAGES"), nil
	}))
	require.NoError(t, eng.Build())
	return eng
}

func post(t *testing.T, h http.Handler, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestQueryAndRequestID(t *testing.T) {
	seen := &captured{}
	h := New(newTestEngine(t, pubsub.NewHub(), seen))

	w := post(t, h, `{"query":"{ hello }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, map[string]any{"data": map[string]any{"hello": "world"}}, decode(t, w))
	require.NotEmpty(t, seen.requestID)
	require.Equal(t, seen.requestID, w.Header().Get("X-Request-Id"))
}

func TestContextFunc(t *testing.T) {
	eng := newTestEngine(t, pubsub.NewHub(), nil)

	w := post(t, New(eng), `{"query":"{ whoami }"}`, DefaultIdentityHeader, "Arto Hellas")
	require.Equal(t, map[string]any{"data": map[string]any{"whoami": "Arto Hellas"}}, decode(t, w))

	custom := New(eng, WithContextFunc(func(r *http.Request) *caller.Context {
		return caller.New(r.Header.Get("X-Name")+"!", nil)
	}))
	w = post(t, custom, `{"query":"{ whoami }"}`, "X-Name", "venla")
	require.Equal(t, map[string]any{"data": map[string]any{"whoami": "venla!"}}, decode(t, w))
}

func TestErrorsAndBatch(t *testing.T) {
	h := New(newTestEngine(t, pubsub.NewHub(), nil))

	w := post(t, h, `{"query":"{ hello "}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w).(map[string]any)
	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].(map[string]any), "locations")

	w = post(t, h, `[{"query":"{ hello }"},{"query":"{ fail }"},{"query":"subscription { messages { text } }"}]`)
	require.Equal(t, http.StatusOK, w.Code)
	want := []any{
		map[string]any{"data": map[string]any{"hello": "world"}},
		map[string]any{
			"data": nil,
			"errors": []any{map[string]any{
				"message": "Cannot return null for non-nullable field fail",
				"path":    []any{"fail"},
			}},
		},
		map[string]any{
			"data":   nil,
			"errors": []any{map[string]any{"message": "subscriptions cannot be batched"}},
		},
	}
	if diff := cmp.Diff(want, decode(t, w)); diff != "" {
		t.Fatalf("batch mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineNotBuilt(t *testing.T) {
	eng := engine.New()
	w := post(t, New(eng), `{"query":"{ hello }"}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORSAndPreflight(t *testing.T) {
	h := New(newTestEngine(t, pubsub.NewHub(), nil), WithCORS("*"))

	w := post(t, h, `{"query":"{ hello }"}`, "Origin", "http://example.com")
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	pre := httptest.NewRequest("OPTIONS", "/", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	require.Equal(t, http.StatusNoContent, pw.Code)
	require.Equal(t, "*", pw.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "X-Test", pw.Header().Get("Access-Control-Allow-Headers"))
}

func TestMaxBodyBytes(t *testing.T) {
	h := New(newTestEngine(t, pubsub.NewHub(), nil), WithMaxBodyBytes(10))
	w := post(t, h, `{"query":"1234567890"}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestGetRequest(t *testing.T) {
	h := New(newTestEngine(t, pubsub.NewHub(), nil))
	req := httptest.NewRequest("GET", "/?query=%7B+hello+%7D", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, map[string]any{"data": map[string]any{"hello": "world"}}, decode(t, w))

	req = httptest.NewRequest("PUT", "/", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestGetRejectsMutation(t *testing.T) {
	var seen captured
	h := New(newTestEngine(t, pubsub.NewHub(), &seen))

	req := httptest.NewRequest("GET", "/?query=mutation+%7B+bump+%7D", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	require.Equal(t, "POST", w.Header().Get("Allow"))
	require.Equal(t, map[string]any{"data": nil, "errors": []any{map[string]any{"message": "mutations must be sent with POST"}}}, decode(t, w))
	require.Zero(t, seen.bumps)

	w = post(t, h, `{"query":"mutation { bump }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, map[string]any{"data": map[string]any{"bump": float64(1)}}, decode(t, w))
	require.Equal(t, 1, seen.bumps)
}

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return ev
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func openSubscription(t *testing.T, ctx context.Context, url string) *http.Response {
	t.Helper()
	body := `{"query":"subscription { messages { text } }"}`
	req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return resp
}

func TestSubscriptionStream(t *testing.T) {
	hub := pubsub.NewHub()
	srv := httptest.NewServer(New(newTestEngine(t, hub, nil)))
	defer srv.Close()

	resp := openSubscription(t, context.Background(), srv.URL)
	defer resp.Body.Close()
	require.Eventually(t, func() bool { return hub.ListenerCount("MESSAGES") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), "MESSAGES", map[string]any{"text": "hi"}))

	reader := bufio.NewReader(resp.Body)
	ev := readEvent(t, reader)
	require.Equal(t, "next", ev.name)
	require.JSONEq(t, `{"data":{"messages":{"text":"hi"}}}`, ev.data)

	hub.Close()
	ev = readEvent(t, reader)
	require.Equal(t, "complete", ev.name)
}

func TestSubscriptionClientDisconnect(t *testing.T) {
	hub := pubsub.NewHub()
	srv := httptest.NewServer(New(newTestEngine(t, hub, nil)))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	resp := openSubscription(t, ctx, srv.URL)
	defer resp.Body.Close()
	require.Eventually(t, func() bool { return hub.ListenerCount("MESSAGES") == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return hub.ListenerCount("MESSAGES") == 0 }, time.Second, 5*time.Millisecond)
}
