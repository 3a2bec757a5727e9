// Command mmif validates, sanitizes, summarizes and serves MMIF files.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/alecthomas/kong"

	"github.com/c360/mmif/docloc"
	"github.com/c360/mmif/docloc/httploc"
	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/health"
	"github.com/c360/mmif/metric"
	"github.com/c360/mmif/mmif"
	"github.com/c360/mmif/pkg/retry"
	"github.com/c360/mmif/pkg/tlsutil"
	"github.com/c360/mmif/schema"
	"github.com/c360/mmif/vocabulary"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "mmif"
)

// Globals are the flags shared by every command.
type Globals struct {
	LogLevel     string        `name:"log-level" default:"info" enum:"debug,info,warn,error" env:"MMIF_LOG_LEVEL" help:"Log level: debug, info, warn, error."`
	LogFormat    string        `name:"log-format" default:"json" enum:"json,text" env:"MMIF_LOG_FORMAT" help:"Log format: json, text."`
	Vocabulary   []string      `name:"vocabulary" type:"existingfile" env:"MMIF_VOCABULARY" help:"Extra YAML vocabulary files to register."`
	HTTPTimeout  time.Duration `name:"http-timeout" default:"30s" env:"MMIF_HTTP_TIMEOUT" help:"Timeout for downloading http(s) documents."`
	HTTPRetries  int           `name:"http-retries" default:"3" env:"MMIF_HTTP_RETRIES" help:"Attempts per http(s) document download."`
	HTTPCache    int           `name:"http-cache" default:"256" env:"MMIF_HTTP_CACHE" help:"Downloaded documents kept on disk."`
	HTTPCA       []string      `name:"http-ca" type:"existingfile" env:"MMIF_HTTP_CA" help:"Extra CAs trusted for https documents."`
	HTTPInsecure bool          `name:"http-insecure" help:"Skip certificate verification for https documents."`

	stdin  io.Reader `kong:"-"`
	stdout io.Writer `kong:"-"`
	stderr io.Writer `kong:"-"`

	stdinOnce sync.Once `kong:"-"`
	stdinData []byte    `kong:"-"`
	stdinErr  error     `kong:"-"`
}

// CLI is the command-line interface of mmif.
type CLI struct {
	Globals

	Validate ValidateCmd `cmd:"" help:"Check MMIF files against the schema and the object model."`
	Sanitize SanitizeCmd `cmd:"" help:"Drop stale contains entries and re-validate."`
	Describe DescribeCmd `cmd:"" help:"Summarize documents and views of an MMIF file."`
	Serve    ServeCmd    `cmd:"" help:"Serve validation, sanitizing and metrics over HTTP."`
	Version  VersionCmd  `cmd:"" help:"Print version information."`
}

// env is the runtime built from Globals.
type env struct {
	logger    *slog.Logger
	metrics   *metric.MetricsRegistry
	resolvers *docloc.Registry
	health    *health.Monitor
	stop      func()
}

func (g *Globals) out() io.Writer {
	if g.stdout == nil {
		return os.Stdout
	}
	return g.stdout
}

func (g *Globals) in() io.Reader {
	if g.stdin == nil {
		return os.Stdin
	}
	return g.stdin
}

// read returns the contents of path, or of stdin for "" and "-". Stdin is
// read once; later reads return the same bytes.
func (g *Globals) read(path string) ([]byte, error) {
	if path == "" || path == "-" {
		g.stdinOnce.Do(func() {
			g.stdinData, g.stdinErr = io.ReadAll(g.in())
		})
		if g.stdinErr != nil {
			return nil, errors.Wrap(g.stdinErr, "cli", "read", "read stdin")
		}
		return g.stdinData, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cli", "read", "read "+path)
	}
	return b, nil
}

// setup installs the logger, loads extra vocabularies and wires resolvers
// and metrics. Callers must call env.stop.
func (g *Globals) setup() (*env, error) {
	logw := g.stderr
	if logw == nil {
		logw = os.Stderr
	}
	logger := setupLogger(logw, g.LogLevel, g.LogFormat)
	slog.SetDefault(logger)

	for _, path := range g.Vocabulary {
		if err := loadVocabulary(path); err != nil {
			return nil, err
		}
		logger.Debug("vocabulary loaded", "path", path)
	}

	registry := metric.NewMetricsRegistry()
	resolvers := docloc.NewRegistry()
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = g.HTTPRetries
	opts := []httploc.Option{
		httploc.WithTimeout(g.HTTPTimeout),
		httploc.WithRetry(cfg),
		httploc.WithLogger(logger.With("component", "httploc")),
		httploc.WithCache(g.HTTPCache, 0),
		httploc.WithMetrics(registry),
	}
	if len(g.HTTPCA) > 0 || g.HTTPInsecure {
		tlsConfig, err := tlsutil.LoadClientConfig(tlsutil.ClientConfig{CAFiles: g.HTTPCA, InsecureSkipVerify: g.HTTPInsecure})
		if err != nil {
			return nil, err
		}
		opts = append(opts, httploc.WithTLS(tlsConfig))
	}
	downloads, err := httploc.Register(resolvers, opts...)
	if err != nil {
		return nil, err
	}

	stopMetrics := metric.Instrument(registry.CoreMetrics(), resolvers)
	return &env{
		logger:    logger,
		metrics:   registry,
		resolvers: resolvers,
		health:    newMonitor(resolvers),
		stop: func() {
			stopMetrics()
			downloads.Close()
		},
	}, nil
}

// newMonitor seeds a health monitor with the schema, the vocabulary and
// every registered scheme, and follows later resolutions.
func newMonitor(resolvers *docloc.Registry) *health.Monitor {
	monitor := health.NewMonitor()
	_, err := schema.New(schema.Source())
	monitor.Update("schema", health.FromError("schema", err))
	monitor.Update("vocabulary", health.New("vocabulary", health.StateHealthy,
		fmt.Sprintf("%d types registered", len(vocabulary.Names()))))
	for _, scheme := range resolvers.Schemes() {
		name := "docloc/" + scheme
		monitor.Update(name, health.New(name, health.StateHealthy, "resolver registered"))
	}
	resolvers.Observe(monitor.ObserveResolve)
	return monitor
}

// options are the Mmif options every command decodes with.
func (e *env) options() []mmif.Option {
	return []mmif.Option{
		mmif.WithResolvers(e.resolvers),
		mmif.WithObserver(e.metrics.CoreMetrics()),
	}
}

func loadVocabulary(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err), "cli", "setup", "open vocabulary")
	}
	defer f.Close()
	return vocabulary.LoadDefinitions(f)
}

// VersionCmd prints version information.
type VersionCmd struct{}

// Run prints the version.
func (c *VersionCmd) Run(g *Globals) error {
	_, err := fmt.Fprintf(g.out(), "%s version %s (build %s, %s)\n", appName, Version, BuildTime, runtime.Version())
	return err
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name(appName),
		kong.Description("Inspect and serve MMIF annotation files."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
