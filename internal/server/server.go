// Package server exposes an engine over HTTP: JSON for queries and
// mutations, server-sent events for subscriptions.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	caller "github.com/foyez/graphql/internal/caller"
	engine "github.com/foyez/graphql/internal/engine"
	eventbus "github.com/foyez/graphql/internal/eventbus"
	events "github.com/foyez/graphql/internal/events"
	executor "github.com/foyez/graphql/internal/executor"
	language "github.com/foyez/graphql/internal/language"
	logging "github.com/foyez/graphql/internal/logging"
	reqid "github.com/foyez/graphql/internal/reqid"
	"go.uber.org/zap"
)

// DefaultIdentityHeader carries the caller identity when no ContextFunc is
// configured.
const DefaultIdentityHeader = "X-User"

// Handler is an http.Handler that serves a GraphQL endpoint.
type Handler struct {
	eng *engine.Engine
	opt Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// Subscriptions are never given one. 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// ContextFunc builds the operation context once per request.
	ContextFunc caller.Func

	Logger *zap.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithContextFunc(fn caller.Func) Option { return func(o *Options) { o.ContextFunc = fn } }
func WithLogger(l *zap.Logger) Option       { return func(o *Options) { o.Logger = l } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a handler serving eng, which must be built before requests
// arrive.
func New(eng *engine.Engine, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second}
	for _, f := range opts {
		f(&op)
	}
	if op.ContextFunc == nil {
		op.ContextFunc = caller.FromHeader(DefaultIdentityHeader)
	}
	if op.Logger == nil {
		op.Logger = zap.NewNop()
	}
	return &Handler{eng: eng, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, rid := reqid.NewContext(r.Context())
	ctx = logging.WithLogger(ctx, h.opt.Logger.With(zap.String("request_id", rid)))
	ctx = caller.NewContext(ctx, h.opt.ContextFunc(r))
	w.Header().Set("X-Request-Id", rid)

	status := http.StatusOK
	streamed := false
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r, RequestID: rid})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{
			Request:   r,
			RequestID: rid,
			Status:    status,
			Streamed:  streamed,
			Duration:  time.Since(start),
		})
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}
	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse(nil, &language.Error{Message: "method not allowed"}), h.opt.Pretty)
		return
	}

	req, batch, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != nil {
		status = http.StatusBadRequest
		if berr.Message == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(nil, berr), h.opt.Pretty)
		return
	}

	if batch == nil {
		doc, perr := parseDocument(req.Query)
		if perr != nil {
			writeJSON(w, status, errorResponse(nil, perr), h.opt.Pretty)
			return
		}
		// GET may be cached or prefetched, so it cannot carry side effects.
		if r.Method == http.MethodGet && isMutation(doc, req.OperationName) {
			status = http.StatusMethodNotAllowed
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, status, errorResponse(nil, &language.Error{Message: "mutations must be sent with POST"}), h.opt.Pretty)
			return
		}
		if engine.IsSubscription(doc, req.OperationName) {
			streamed = true
			status = h.serveStream(ctx, w, doc, req)
			return
		}
		ctx, cancel := h.withTimeout(ctx)
		defer cancel()
		var res any
		res, status = h.execute(ctx, doc, req)
		writeJSON(w, status, res, h.opt.Pretty)
		return
	}

	ctx, cancel := h.withTimeout(ctx)
	defer cancel()
	out := make([]any, len(batch))
	for i := range batch {
		doc, perr := parseDocument(batch[i].Query)
		switch {
		case perr != nil:
			out[i] = errorResponse(nil, perr)
		case engine.IsSubscription(doc, batch[i].OperationName):
			out[i] = errorResponse(nil, &language.Error{Message: "subscriptions cannot be batched"})
		default:
			var st int
			out[i], st = h.execute(ctx, doc, batch[i])
			if st != http.StatusOK {
				status = st
			}
		}
	}
	writeJSON(w, status, out, h.opt.Pretty)
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		return context.WithTimeout(ctx, h.opt.Timeout)
	}
	return ctx, func() {}
}

func isMutation(doc *language.QueryDocument, operationName string) bool {
	op := language.OperationFor(doc, operationName)
	return op != nil && op.Operation == language.Mutation
}

func parseDocument(query string) (*language.QueryDocument, *language.Error) {
	doc, err := language.ParseQuery(query)
	if err != nil {
		var ge *language.Error
		if errors.As(err, &ge) {
			return nil, ge
		}
		return nil, &language.Error{Message: err.Error()}
	}
	return doc, nil
}

func (h *Handler) execute(ctx context.Context, doc *language.QueryDocument, req GraphQLRequest) (any, int) {
	result, err := h.eng.ExecuteDocument(ctx, doc, req.OperationName, req.Variables)
	if err != nil {
		return errorResponse(nil, &language.Error{Message: err.Error()}), statusFor(err)
	}
	if len(result.Errors) > 0 {
		return toSpecResult(result), http.StatusOK
	}
	return result, http.StatusOK
}

func statusFor(err error) int {
	if errors.Is(err, engine.ErrNotBuilt) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// serveStream pumps a subscription as server-sent events until the client
// goes away or the stream ends. Returning closes the stream, which
// unsubscribes its listener.
func (h *Handler) serveStream(ctx context.Context, w http.ResponseWriter, doc *language.QueryDocument, req GraphQLRequest) int {
	flusher, ok := w.(http.Flusher)
	if !ok {
		status := http.StatusInternalServerError
		writeJSON(w, status, errorResponse(nil, &language.Error{Message: "streaming unsupported"}), h.opt.Pretty)
		return status
	}

	stream, err := h.eng.SubscribeDocument(ctx, doc, req.OperationName, req.Variables)
	if err != nil {
		var re *engine.RequestError
		if errors.As(err, &re) {
			writeJSON(w, http.StatusOK, toSpecResult(re.Result), h.opt.Pretty)
			return http.StatusOK
		}
		status := statusFor(err)
		writeJSON(w, status, errorResponse(nil, &language.Error{Message: err.Error()}), h.opt.Pretty)
		return status
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := logging.FromContext(ctx)
	for {
		res, ok := stream.Next(ctx)
		if !ok {
			break
		}
		var payload any = res
		if len(res.Errors) > 0 {
			payload = toSpecResult(res)
		}
		if err := writeEvent(w, "next", payload); err != nil {
			logger.Debug("subscription write failed", zap.Error(err))
			return http.StatusOK
		}
		flusher.Flush()
	}
	_ = writeEvent(w, "complete", nil)
	flusher.Flush()
	return http.StatusOK
}

func writeEvent(w io.Writer, event string, payload any) error {
	data := []byte("")
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "event: "+event+"\ndata: "); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n\n")
	return err
}

// ------------------ Request parsing ------------------

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, *language.Error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, &language.Error{Message: "missing 'query'"}
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, &language.Error{Message: "invalid 'variables' JSON"}
			}
		}
		op := r.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, nil
	}

	// POST
	ct := r.Header.Get("Content-Type")
	if ct == "" || ct == "application/json" || strings.HasPrefix(ct, "application/json;") {
		reader := io.Reader(r.Body)
		if maxBody > 0 {
			reader = io.LimitReader(r.Body, maxBody+1)
		}
		body, err := io.ReadAll(reader)
		if err != nil {
			return GraphQLRequest{}, nil, &language.Error{Message: "failed to read body"}
		}
		defer r.Body.Close()
		if maxBody > 0 && int64(len(body)) > maxBody {
			return GraphQLRequest{}, nil, &language.Error{Message: errBodyTooLargeMessage}
		}

		// Try array (batch)
		var arr []GraphQLRequest
		if len(body) > 0 && body[0] == '[' {
			if err := json.Unmarshal(body, &arr); err != nil {
				return GraphQLRequest{}, nil, &language.Error{Message: "invalid JSON"}
			}
			if len(arr) == 0 {
				return GraphQLRequest{}, nil, &language.Error{Message: "empty batch"}
			}
			return GraphQLRequest{}, arr, nil
		}
		// Single
		var req GraphQLRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return GraphQLRequest{}, nil, &language.Error{Message: "invalid JSON"}
		}
		if req.Query == "" {
			return GraphQLRequest{}, nil, &language.Error{Message: "missing 'query'"}
		}
		if req.Variables == nil {
			req.Variables = map[string]any{}
		}
		return req, nil, nil
	}

	return GraphQLRequest{}, nil, &language.Error{Message: "unsupported Content-Type"}
}

// ------------------ Response formatting ------------------

type specLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type specError struct {
	Message    string         `json:"message"`
	Locations  []specLocation `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type specResult struct {
	Data   any         `json:"data"`
	Errors []specError `json:"errors,omitempty"`
}

func errorResponse(data any, err *language.Error) specResult {
	se := specError{Message: err.Message}
	for _, loc := range err.Locations {
		se.Locations = append(se.Locations, specLocation{Line: loc.Line, Column: loc.Column})
	}
	return specResult{Data: data, Errors: []specError{se}}
}

func toSpecResult(res *executor.ExecutionResult) specResult {
	out := specResult{Data: res.Data}
	if len(res.Errors) == 0 {
		return out
	}
	out.Errors = make([]specError, len(res.Errors))
	for i, e := range res.Errors {
		se := specError{Message: e.Message, Extensions: e.Extensions}
		if len(e.Path) > 0 {
			se.Path = make([]any, len(e.Path))
			for j, pe := range e.Path {
				switch v := pe.(type) {
				case string:
					se.Path[j] = v
				case int:
					se.Path[j] = v
				default:
					se.Path[j] = toString(v)
				}
			}
		}
		out.Errors[i] = se
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func toString(v any) string { b, _ := json.Marshal(v); return string(b) }

const errBodyTooLargeMessage = "body too large"

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
