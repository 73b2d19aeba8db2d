package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foyez/graphql/internal/caller"
	"github.com/foyez/graphql/internal/config"
	"github.com/foyez/graphql/internal/demo"
	"github.com/foyez/graphql/internal/engine"
	"github.com/foyez/graphql/internal/eventbus"
	"github.com/foyez/graphql/internal/logging"
	"github.com/foyez/graphql/internal/metrics"
	"github.com/foyez/graphql/internal/otel"
	"github.com/foyez/graphql/internal/pubsub"
	"github.com/foyez/graphql/internal/server"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const rootUsage = `phonebook: GraphQL phonebook server and tools

USAGE:
  phonebook <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL server with SSE subscriptions
  print-schema     Print the phonebook schema as SDL
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -config <file>                  YAML config file (default: ./config/phonebook.yaml or ./phonebook.yaml)
  -server.addr <addr>             HTTP listen address (default: :4000)
  -server.pretty                  Pretty-print JSON responses
  -server.timeout <duration>      Per-request timeout, e.g. 10s (default: 10s)
  -graphql.introspection <bool>   Enable GraphQL introspection (default: true)
  -redis.addr <host:port>         Relay subscription events through Redis
  -log.env <env>                  development, test, staging or production
  -otel.endpoint <addr>           OTLP collector endpoint
Environment variables prefixed with PHONEBOOK_ override the file,
e.g. PHONEBOOK_SERVER_ADDR=:9090. Flags override both.
`

const printSchemaUsage = `print-schema FLAGS:
  -out <file>    Write SDL to file (default: stdout)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}
	cmd, cmdArgs := args[0], args[1:]
	switch cmd {
	case "serve":
		return cmdServe(ctx, cmdArgs, stderr)
	case "print-schema":
		return cmdPrintSchema(cmdArgs, stdout, stderr)
	case "help", "-h", "-help", "--help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "print-schema":
		fmt.Fprint(stdout, printSchemaUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

// onListen is called with the bound address once serve accepts connections.
var onListen = func(net.Addr) {}

func cmdServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	configPath := fs.String("config", "", "YAML config file")
	addr := fs.String("server.addr", "", "HTTP listen address")
	pretty := fs.Bool("server.pretty", false, "Pretty-print JSON responses")
	timeout := fs.Duration("server.timeout", 0, "Per-request timeout")
	introspection := fs.Bool("graphql.introspection", true, "Enable GraphQL introspection")
	redisAddr := fs.String("redis.addr", "", "Redis address for the subscription relay")
	logEnv := fs.String("log.env", "", "Log environment")
	otelEndpoint := fs.String("otel.endpoint", "", "OTLP collector endpoint")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server.addr":
			cfg.Server.Addr = *addr
		case "server.pretty":
			cfg.Server.Pretty = *pretty
		case "server.timeout":
			cfg.Server.Timeout = *timeout
		case "graphql.introspection":
			cfg.GraphQL.Introspection = *introspection
		case "redis.addr":
			cfg.Redis.Addr = *redisAddr
		case "log.env":
			cfg.Log.Env = *logEnv
		case "otel.endpoint":
			cfg.Otel.Endpoint = *otelEndpoint
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return serve(ctx, cfg)
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	shutdown, err := otel.Setup(cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	defer m.Subscribe()()

	hub := pubsub.NewHub(pubsub.WithMaxPending(cfg.PubSub.MaxPending), pubsub.WithLogger(logger))
	defer hub.Close()
	var broker pubsub.Broker = hub
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		relay := pubsub.NewRelay(hub, client,
			pubsub.WithChannelPrefix(cfg.Redis.ChannelPrefix),
			pubsub.WithRelayLogger(logger),
			pubsub.WithDecoder(demo.DecodeEvent))
		stopRelay, err := relay.Start(ctx)
		if err != nil {
			return fmt.Errorf("start relay: %w", err)
		}
		defer stopRelay()
		broker = relay
		logger.Info("relaying subscription events", zap.String("redis", cfg.Redis.Addr))
	}

	eng := engine.New(
		engine.WithLogger(logger),
		engine.WithIntrospection(cfg.GraphQL.Introspection),
		engine.WithMaxConcurrency(cfg.GraphQL.MaxConcurrency),
		engine.WithCache(gocache.New(cfg.GraphQL.CacheTTL, 2*cfg.GraphQL.CacheTTL)),
	)
	if err := demo.Register(eng, demo.Deps{Broker: broker, Logger: logger}); err != nil {
		return fmt.Errorf("register schema: %w", err)
	}
	if err := eng.Build(); err != nil {
		return fmt.Errorf("build schema: %w", err)
	}

	sopts := []server.Option{
		server.WithLogger(logger),
		server.WithContextFunc(caller.FromHeader(cfg.Server.IdentityHeader)),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	}
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if cfg.Server.Timeout > 0 {
		sopts = append(sopts, server.WithTimeout(cfg.Server.Timeout))
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.Server.CORSOrigins...))
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", server.New(eng, sopts...))
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler(reg))
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	logger.Info("GraphQL server listening", zap.String("addr", ln.Addr().String()))
	onListen(ln.Addr())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	// Open subscription streams end once their listeners close.
	hub.Close()
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func cmdPrintSchema(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("print-schema", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	outFile := fs.String("out", "", "Write SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, printSchemaUsage)
		return err
	}

	eng := engine.New(engine.WithIntrospection(false))
	if err := demo.Register(eng, demo.Deps{}); err != nil {
		return fmt.Errorf("register schema: %w", err)
	}
	if err := eng.Build(); err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	sdl, err := eng.SDL()
	if err != nil {
		return err
	}
	if *outFile == "" {
		_, err := fmt.Fprint(stdout, sdl)
		return err
	}
	return os.WriteFile(*outFile, []byte(sdl), 0o644)
}
