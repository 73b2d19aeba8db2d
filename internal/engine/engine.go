// Package engine is the host-facing entry point: it collects types,
// directives and resolvers at startup, validates them together, and then
// serves queries, mutations and subscriptions.
package engine

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	directive "github.com/foyez/graphql/internal/directive"
	eventbus "github.com/foyez/graphql/internal/eventbus"
	events "github.com/foyez/graphql/internal/events"
	executor "github.com/foyez/graphql/internal/executor"
	gqlerr "github.com/foyez/graphql/internal/gqlerr"
	introspection "github.com/foyez/graphql/internal/introspection"
	language "github.com/foyez/graphql/internal/language"
	resolver "github.com/foyez/graphql/internal/resolver"
	schema "github.com/foyez/graphql/internal/schema"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// ErrNotBuilt is returned by Execute and Subscribe before a successful Build.
var ErrNotBuilt = errors.New("engine: schema is not built")

type Engine struct {
	logger         *zap.Logger
	cache          *gocache.Cache
	introspection  bool
	maxConcurrency int

	mu         sync.RWMutex
	builder    *schema.Builder
	resolvers  *resolver.Table
	directives *directive.Registry
	violations gqlerr.SchemaError
	served     *served
}

// served is the immutable state produced by Build.
type served struct {
	schema   *schema.Schema
	base     *schema.Schema
	executor *executor.Executor
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIntrospection toggles __schema and __type. Enabled by default.
func WithIntrospection(enabled bool) Option {
	return func(e *Engine) { e.introspection = enabled }
}

// WithMaxConcurrency bounds concurrent sibling resolution per selection set.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) { e.maxConcurrency = n }
}

// WithCache sets the store used by @cached.
func WithCache(c *gocache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// New returns an engine that already knows the builtin directives.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:        zap.NewNop(),
		introspection: true,
		builder:       schema.NewBuilder(""),
		resolvers:     resolver.NewTable(),
		directives:    directive.NewRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = gocache.New(time.Minute, 5*time.Minute)
	}
	for _, def := range directive.Builtins(e.logger, e.cache) {
		// cannot fail on a fresh builder and registry
		_ = e.builder.RegisterDirective(def.Directive)
		_ = e.directives.Register(def.Directive.Name, def.Behavior)
	}
	return e
}

var errBuilt = gqlerr.NewSchemaError("schema is already built")

func (e *Engine) startup() error {
	if e.served != nil {
		return errBuilt
	}
	return nil
}

func (e *Engine) RegisterType(t *schema.Type) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.startup(); err != nil {
		return err
	}
	return e.builder.RegisterType(t)
}

func (e *Engine) RegisterField(typeName string, f *schema.Field) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.startup(); err != nil {
		return err
	}
	return e.builder.RegisterField(typeName, f)
}

// RegisterDirective declares a directive. A zero behavior makes it
// metadata only.
func (e *Engine) RegisterDirective(d *schema.Directive, b directive.Behavior) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.startup(); err != nil {
		return err
	}
	if err := e.builder.RegisterDirective(d); err != nil {
		return err
	}
	if b.IsZero() {
		return nil
	}
	if err := e.directives.Register(d.Name, b); err != nil {
		var se gqlerr.SchemaError
		if errors.As(err, &se) {
			e.violations = append(e.violations, se...)
		}
		return err
	}
	return nil
}

// RegisterResolver adds the resolver for objectType.field. A failed
// registration also fails Build.
func (e *Engine) RegisterResolver(objectType, field string, fn resolver.Func, opts ...resolver.Option) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.startup(); err != nil {
		return err
	}
	if err := e.resolvers.Register(objectType, field, fn, opts...); err != nil {
		var se gqlerr.SchemaError
		if errors.As(err, &se) {
			e.violations = append(e.violations, se...)
		}
		return err
	}
	return nil
}

// LoadSDL registers every definition of an SDL document.
func (e *Engine) LoadSDL(name, sdl string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.startup(); err != nil {
		return err
	}
	return e.builder.LoadSDL(name, sdl)
}

// Build validates the type graph and the resolver table together and
// prepares every field's effective resolver. On failure the engine stays
// unservable and the SchemaError lists every violation.
func (e *Engine) Build() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.startup(); err != nil {
		return err
	}

	sch, err := e.builder.Build()
	var violations gqlerr.SchemaError
	if err != nil && !errors.As(err, &violations) {
		return err
	}
	violations = append(append(gqlerr.SchemaError{}, violations...), e.violations...)
	if sch != nil {
		violations = append(violations, unboundResolvers(sch, e.resolvers)...)
	}
	if len(violations) > 0 {
		return violations
	}

	rt := &runtime{schema: sch, resolvers: e.effectiveResolvers(sch)}
	var execRuntime executor.Runtime = rt
	servedSchema := sch
	if e.introspection {
		w := introspection.Wrap(rt, sch)
		execRuntime, servedSchema = w.Runtime, w.Schema
	}
	e.served = &served{
		schema:   servedSchema,
		base:     sch,
		executor: executor.NewExecutor(execRuntime, servedSchema, executor.WithMaxConcurrency(e.maxConcurrency)),
	}
	e.logger.Debug("schema built",
		zap.Int("types", len(sch.Types)),
		zap.Int("resolvers", len(e.resolvers.Entries())),
	)
	return nil
}

// unboundResolvers reports resolvers registered for fields the graph does
// not declare.
func unboundResolvers(sch *schema.Schema, table *resolver.Table) gqlerr.SchemaError {
	var out gqlerr.SchemaError
	for _, entry := range table.Entries() {
		t, ok := sch.TypeOf(entry.ObjectType)
		if !ok || t.Kind != schema.TypeKindObject || t.Field(entry.Field) == nil {
			out = append(out, gqlerr.Violationf("resolver registered for unknown field %s.%s", entry.ObjectType, entry.Field))
		}
	}
	return out
}

func (e *Engine) effectiveResolvers(sch *schema.Schema) map[fieldKey]resolver.Func {
	names := make([]string, 0, len(sch.Types))
	for name := range sch.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[fieldKey]resolver.Func)
	for _, name := range names {
		t := sch.Types[name]
		if t.Kind != schema.TypeKindObject || strings.HasPrefix(name, "__") {
			continue
		}
		for _, f := range t.Fields {
			entry := e.resolvers.ResolverFor(t.Name, f.Name)
			f.Concurrent = entry.Pure && !entry.Default
			out[fieldKey{t.Name, f.Name}] = directive.Wrap(t.Name, f, entry.Resolve, e.directives)
		}
	}
	return out
}

func (e *Engine) current() (*served, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.served == nil {
		return nil, ErrNotBuilt
	}
	return e.served, nil
}

// Schema returns the served schema, including introspection types when
// enabled, or nil before Build.
func (e *Engine) Schema() *schema.Schema {
	s, err := e.current()
	if err != nil {
		return nil
	}
	return s.schema
}

// SDL renders the built schema without introspection types.
func (e *Engine) SDL() (string, error) {
	s, err := e.current()
	if err != nil {
		return "", err
	}
	return schema.Render(s.base), nil
}

// Operation names one root field with typed arguments and the selection
// to resolve on its result.
type Operation struct {
	Kind      language.Operation
	Field     string
	Alias     string
	Args      map[string]any
	Selection language.SelectionSet
}

func (op Operation) request() executor.FieldRequest {
	kind := op.Kind
	if kind == "" {
		kind = language.Query
	}
	return executor.FieldRequest{
		Operation:    kind,
		Field:        op.Field,
		Alias:        op.Alias,
		Args:         op.Args,
		SelectionSet: op.Selection,
	}
}

// Execute runs a query or mutation root field. Argument and resolver
// failures are reported in the result.
func (e *Engine) Execute(ctx context.Context, op Operation) (*executor.ExecutionResult, error) {
	s, err := e.current()
	if err != nil {
		return nil, err
	}
	req := op.request()
	return e.observe(ctx, "", op.Field, string(req.Operation), func() *executor.ExecutionResult {
		return s.executor.ExecuteField(ctx, req, nil)
	}), nil
}

// ExecuteDocument runs the named operation of a parsed document.
func (e *Engine) ExecuteDocument(ctx context.Context, doc *language.QueryDocument, operationName string, variables map[string]any) (*executor.ExecutionResult, error) {
	s, err := e.current()
	if err != nil {
		return nil, err
	}
	kind := ""
	if op := language.OperationFor(doc, operationName); op != nil {
		kind = string(op.Operation)
	}
	return e.observe(ctx, querySource(doc), operationName, kind, func() *executor.ExecutionResult {
		return s.executor.ExecuteRequest(ctx, doc, operationName, variables, nil)
	}), nil
}

func (e *Engine) observe(ctx context.Context, query, name, kind string, run func() *executor.ExecutionResult) *executor.ExecutionResult {
	start := time.Now()
	eventbus.Publish(ctx, events.OperationStart{Query: query, OperationName: name, OperationType: kind})
	res := run()
	var errs []error
	for _, ge := range res.Errors {
		errs = append(errs, ge)
	}
	eventbus.Publish(ctx, events.OperationFinish{
		Query:         query,
		OperationName: name,
		OperationType: kind,
		Errors:        errs,
		Duration:      time.Since(start),
	})
	return res
}

// querySource returns the text the document was parsed from, if known.
func querySource(doc *language.QueryDocument) string {
	if doc == nil {
		return ""
	}
	for _, op := range doc.Operations {
		if op.Position != nil && op.Position.Src != nil {
			return op.Position.Src.Input
		}
	}
	return ""
}
