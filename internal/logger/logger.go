// Package logger configures the process-wide slog logger for the greenscore
// binaries. Output is JSON on stdout unless OTEL_ENABLED=true, in which case
// records are exported over OTLP/gRPC.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelFatal = slog.Level(12)
)

// DefaultSampleRate logs every warning and error. The scoring service is
// low volume; raise ERROR_SAMPLE_RATE to thin output under load.
const DefaultSampleRate = 1

// Options is the logger configuration, normally read from the environment
// by FromEnv.
type Options struct {
	Level       slog.Level
	SampleRate  int
	OTEL        bool
	ServiceName string
	Output      io.Writer
}

// Counters are incremented for every warning and error regardless of
// sampling, so they stay accurate when log output is thinned.
type Counters struct {
	Errors   atomic.Int64
	Warnings atomic.Int64
	HTTP5xx  atomic.Int64
	HTTP4xx  atomic.Int64
	HTTP400  atomic.Int64
	HTTP404  atomic.Int64
	HTTP409  atomic.Int64
	HTTP503  atomic.Int64
	Rejected atomic.Int64 // malformed assessment requests
	Reloads  atomic.Int64
	Slow     atomic.Int64
}

// Stats is a point-in-time copy of Counters.
type Stats struct {
	Errors   int64 `json:"errors"`
	Warnings int64 `json:"warnings"`
	HTTP5xx  int64 `json:"http_5xx"`
	HTTP4xx  int64 `json:"http_4xx"`
	HTTP400  int64 `json:"http_400"`
	HTTP404  int64 `json:"http_404"`
	HTTP409  int64 `json:"http_409"`
	HTTP503  int64 `json:"http_503"`
	Rejected int64 `json:"rejected"`
	Reloads  int64 `json:"reloads"`
	Slow     int64 `json:"slow_requests"`
}

// Logger is the installed logger. It is also the slog default after Init.
var Logger = slog.Default()

var (
	programLevel = new(slog.LevelVar)
	shutdownFunc func(context.Context) error
)

var (
	sampleRate atomic.Int32
	counters   Counters
)

func init() {
	sampleRate.Store(DefaultSampleRate)
}

// FromEnv reads LOG_LEVEL, ERROR_SAMPLE_RATE, OTEL_ENABLED and
// OTEL_SERVICE_NAME. Unparseable values fall back to defaults.
func FromEnv(service string) Options {
	opts := Options{
		Level:       LevelInfo,
		SampleRate:  DefaultSampleRate,
		ServiceName: service,
		Output:      os.Stdout,
	}
	if lvl, err := ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		opts.Level = lvl
	}
	if s := os.Getenv("ERROR_SAMPLE_RATE"); s != "" {
		if rate, err := strconv.Atoi(s); err == nil && rate > 0 {
			opts.SampleRate = rate
		}
	}
	opts.OTEL = strings.EqualFold(os.Getenv("OTEL_ENABLED"), "true")
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		opts.ServiceName = name
	}
	return opts
}

// Init installs the logger described by opts as the slog default. If the
// OTEL exporter cannot be created it falls back to JSON and says so on
// stderr.
func Init(ctx context.Context, opts Options) {
	programLevel.Set(opts.Level)
	if opts.SampleRate > 0 {
		sampleRate.Store(int32(opts.SampleRate))
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	if opts.OTEL {
		shutdown, err := setupOTEL(ctx, opts.ServiceName)
		if err == nil {
			shutdownFunc = shutdown
			return
		}
		fmt.Fprintf(os.Stderr, "otel logging unavailable, using JSON: %v\n", err)
	}
	setupJSON(opts.Output)
}

func setupJSON(w io.Writer) {
	Logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: programLevel}))
	slog.SetDefault(Logger)
}

func setupOTEL(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)

	Logger = slog.New(&levelHandler{
		level:   programLevel,
		handler: otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(provider)),
	})
	slog.SetDefault(Logger)
	return provider.Shutdown, nil
}

// levelHandler applies programLevel to a handler that has no level option.
type levelHandler struct {
	level   slog.Leveler
	handler slog.Handler
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithGroup(name)}
}

// Shutdown flushes the OTEL exporter, if one is installed.
func Shutdown(ctx context.Context) error {
	if shutdownFunc != nil {
		return shutdownFunc(ctx)
	}
	return nil
}

// SetLevel changes the minimum level at runtime.
func SetLevel(level slog.Level) { programLevel.Set(level) }

// GetLevel returns the minimum level.
func GetLevel() slog.Level { return programLevel.Level() }

// ParseLevel converts a level name to slog.Level. The empty string is INFO.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(s) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func shouldSample() bool {
	rate := sampleRate.Load()
	if rate <= 1 {
		return true
	}
	return rand.IntN(int(rate)) == 0
}

func Debug(msg string, args ...any) { Logger.Debug(msg, args...) }

func Info(msg string, args ...any) { Logger.Info(msg, args...) }

// Warn is sampled; the warning counter is not.
func Warn(msg string, args ...any) {
	counters.Warnings.Add(1)
	if shouldSample() {
		Logger.Warn(msg, args...)
	}
}

// Error is sampled; the error counter is not.
func Error(msg string, args ...any) {
	counters.Errors.Add(1)
	if shouldSample() {
		Logger.Error(msg, args...)
	}
}

// Fatal logs at LevelFatal, flushes OTEL and exits with status 1.
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	_ = Shutdown(context.Background())
	os.Exit(1)
}

// HTTPStatus records a response status. 5xx count as errors and 4xx as
// warnings; other statuses are ignored.
func HTTPStatus(status int) {
	switch {
	case status >= 500:
		counters.HTTP5xx.Add(1)
		counters.Errors.Add(1)
		if status == 503 {
			counters.HTTP503.Add(1)
		}
	case status >= 400:
		counters.HTTP4xx.Add(1)
		counters.Warnings.Add(1)
		switch status {
		case 400:
			counters.HTTP400.Add(1)
		case 404:
			counters.HTTP404.Add(1)
		case 409:
			counters.HTTP409.Add(1)
		}
	}
}

// RejectedInput counts an assessment refused as malformed.
func RejectedInput() { counters.Rejected.Add(1) }

// ModelReloaded counts a successful model reload.
func ModelReloaded() { counters.Reloads.Add(1) }

// SlowRequest counts a request over the slow threshold.
func SlowRequest() {
	counters.Slow.Add(1)
	counters.Warnings.Add(1)
}

// Snapshot returns the current counter values.
func Snapshot() Stats {
	return Stats{
		Errors:   counters.Errors.Load(),
		Warnings: counters.Warnings.Load(),
		HTTP5xx:  counters.HTTP5xx.Load(),
		HTTP4xx:  counters.HTTP4xx.Load(),
		HTTP400:  counters.HTTP400.Load(),
		HTTP404:  counters.HTTP404.Load(),
		HTTP409:  counters.HTTP409.Load(),
		HTTP503:  counters.HTTP503.Load(),
		Rejected: counters.Rejected.Load(),
		Reloads:  counters.Reloads.Load(),
		Slow:     counters.Slow.Load(),
	}
}
