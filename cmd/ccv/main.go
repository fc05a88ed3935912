package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	"github.com/reoring/ccv"
	"github.com/reoring/ccv/cache"
	"github.com/reoring/ccv/cache/memory"
	"github.com/reoring/ccv/cache/redis"
	"github.com/reoring/ccv/config"
	"github.com/reoring/ccv/internal/logctx"
	"github.com/reoring/ccv/schema"
	"github.com/reoring/ccv/server"
	"github.com/reoring/ccv/source"
	"github.com/reoring/ccv/value"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "validate":
		return validateCmd(args[1:], stdin, stdout, stderr)
	case "resolve":
		return resolveCmd(args[1:], stdin, stdout, stderr)
	case "serve":
		return serveCmd(args[1:], stderr)
	default:
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "ccv - cloud-init config validator\n\nUsage:\n  ccv validate [-kind cloudconfig|networkconfig] [-format yaml|json] [-schema file|url] [file|-]\n  ccv resolve [-kind cloudconfig|networkconfig] [schema.json|-]\n  ccv serve [-config ccv.toml]")
}

func validateCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	kind := ccv.CloudConfig
	fs.Var(&kind, "kind", "config kind: cloudconfig or networkconfig")
	format := fs.String("format", "yaml", "payload format: "+formatNames())
	schemaLoc := fs.String("schema", "", "schema file or URL (default: embedded)")
	unknownKeys := fs.String("unknown-keys", "ignore", "unknown key policy: ignore or annotate")
	dupKeys := fs.String("duplicate-keys", "error", "duplicate key policy: error, warn or ignore")
	maxErrors := fs.Int("max-errors", 0, "keep at most n errors (0: all)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return 2
	}
	path := "-"
	if fs.NArg() == 1 {
		path = fs.Arg(0)
	}

	f, err := source.ParseFormat(*format)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	uk, ok := schema.ParseUnknownKeys(*unknownKeys)
	if !ok {
		fmt.Fprintf(stderr, "unknown key policy %q\n", *unknownKeys)
		return 2
	}
	dp, err := source.ParseDuplicatePolicy(*dupKeys)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	payload, err := readInput(path, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading %q: %v\n", path, err)
		return 1
	}

	ctx := context.Background()
	eng, err := ccv.New(ctx, ccv.Locate(kind, *schemaLoc),
		ccv.WithUnknownKeys(uk), ccv.WithDuplicateKeys(dp), ccv.WithMaxErrors(*maxErrors))
	if err != nil {
		fmt.Fprintf(stderr, "Error reading the JSON Schema: %v\n", err)
		return 1
	}
	report, err := eng.Validate(ctx, f, payload)
	if err != nil {
		if _, ok := ccv.AsParseError(err); !ok {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}
	out, err := json.Marshal(report)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, string(out))
	if !report.Valid() {
		return 1
	}
	return 0
}

func resolveCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	kind := ccv.CloudConfig
	fs.Var(&kind, "kind", "embedded schema to resolve when no file is given")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var (
		raw  []byte
		err  error
		name = ccv.Embedded(kind).String()
	)
	if fs.NArg() == 0 {
		raw, err = ccv.Embedded(kind).Load(context.Background())
	} else {
		name = fs.Arg(0)
		raw, err = readInput(name, stdin)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error reading %q: %v\n", name, err)
		return 1
	}
	res, err := source.Parse(raw, source.FormatJSON)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	doc, err := schema.Resolve(res.Value)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	out, err := value.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}

func serveCmd(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "TOML configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	log, err := logctx.New(stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log); err != nil {
		log.Error("server.fail", "err", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	uk, _ := schema.ParseUnknownKeys(cfg.UnknownKeys)
	dp, _ := source.ParseDuplicatePolicy(cfg.DuplicateKeys)
	opts := []ccv.Option{
		ccv.WithLogger(log),
		ccv.WithUnknownKeys(uk),
		ccv.WithDuplicateKeys(dp),
		ccv.WithMaxErrors(cfg.MaxErrors),
		ccv.WithParseLimits(0, 0, cfg.BodyLimit),
	}
	rc, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()
	if rc != nil {
		opts = append(opts, ccv.WithCache(rc))
	}

	locations := map[ccv.ConfigKind]string{
		ccv.CloudConfig:   cfg.CloudConfigSchema,
		ccv.NetworkConfig: cfg.NetworkConfigSchema,
	}
	engines := map[ccv.ConfigKind]*ccv.Engine{}
	for _, kind := range ccv.Kinds {
		eng, err := ccv.New(ctx, ccv.Locate(kind, locations[kind]), opts...)
		if err != nil {
			return err
		}
		engines[kind] = eng
	}

	srv, err := server.New(server.Config{
		Engines:        engines,
		Logger:         log,
		MaxConcurrency: int64(cfg.MaxConcurrency),
		BodyLimit:      cfg.BodyLimit,
	})
	if err != nil {
		return err
	}
	ln, err := listen(cfg)
	if err != nil {
		return err
	}
	return srv.Serve(ctx, ln)
}

func openCache(ctx context.Context, cfg config.Config) (cache.Cache, func(), error) {
	switch cfg.Cache {
	case config.CacheMemory:
		return memory.New(cfg.CacheSize, time.Duration(cfg.CacheTTL)), func() {}, nil
	case config.CacheRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		rc, err := redis.New(redis.Config{Client: client, KeyPrefix: cfg.CachePrefix, TTL: time.Duration(cfg.CacheTTL)})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return rc, func() { _ = rc.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

func listen(cfg config.Config) (net.Listener, error) {
	if cfg.Socket == "" {
		return net.Listen("tcp", cfg.Addr())
	}
	if err := os.Remove(cfg.Socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale socket: %w", err)
	}
	return net.Listen("unix", cfg.Socket)
}

func formatNames() string {
	names := make([]string, len(source.Formats))
	for i, f := range source.Formats {
		names[i] = string(f)
	}
	return strings.Join(names, " or ")
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
