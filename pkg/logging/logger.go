// Package logging provides structured logging on top of zap: scoped
// loggers carrying domain fields (exchange, symbol, price, latency …),
// a process-wide default instance, and thin re-exports of zap's field
// constructors so call sites never import zap directly.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig configures InitLogger.
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal (default info)
	Format      string // json or text (default json)
	Development bool
	Output      string // file path, or empty/"-" for stderr
}

// Logger wraps a zap.Logger with a cached sugared logger and domain
// helper methods. The zero value is not usable; construct with
// InitLogger.
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug", "DEBUG":
		return zapcore.DebugLevel
	case "info", "INFO":
		return zapcore.InfoLevel
	case "warn", "WARN", "warning", "WARNING":
		return zapcore.WarnLevel
	case "error", "ERROR":
		return zapcore.ErrorLevel
	case "fatal", "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func openSink(path string) zapcore.WriteSyncer {
	if path == "" || path == "-" {
		return zapcore.AddSync(os.Stderr)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zapcore.AddSync(os.Stderr)
	}
	return zapcore.AddSync(f)
}

// InitLogger builds a Logger from config. It never returns nil and
// never panics — an invalid Output path falls back to stderr.
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "text" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, openSink(cfg.Output), level)

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	zl := zap.New(core, opts...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// With returns a new Logger with the given fields attached.
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.Logger.With(fields...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

func (l *Logger) WithComponent(name string) *Logger { return l.With(Component(name)) }
func (l *Logger) WithExchange(name string) *Logger  { return l.With(Exchange(name)) }
func (l *Logger) WithSymbol(symbol string) *Logger  { return l.With(Symbol(symbol)) }

// Sugar returns the cached SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *zap.SugaredLogger { return l.sugar }

// ============================================================
// Global logger
// ============================================================

var (
	globalLogger *Logger
	globalMu     sync.Mutex
)

// GetGlobalLogger returns the process-wide logger, lazily creating a
// default (info/json/stderr) instance on first use.
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// InitGlobalLogger builds a logger from cfg, installs it as the
// global logger, and returns it.
func InitGlobalLogger(cfg LogConfig) *Logger {
	l := InitLogger(cfg)
	SetGlobalLogger(l)
	return l
}

// SetGlobalLogger installs l as the global logger.
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// L is a short alias for GetGlobalLogger.
func L() *Logger { return GetGlobalLogger() }

func Debug(msg string, fields ...zap.Field) { GetGlobalLogger().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetGlobalLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetGlobalLogger().Error(msg, fields...) }

func Debugf(format string, args ...interface{}) { GetGlobalLogger().sugar.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { GetGlobalLogger().sugar.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { GetGlobalLogger().sugar.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { GetGlobalLogger().sugar.Errorf(format, args...) }

// ============================================================
// Domain field constructors
// ============================================================

func Exchange(v string) zap.Field  { return zap.String("exchange", v) }
func Symbol(v string) zap.Field    { return zap.String("symbol", v) }
func Component(v string) zap.Field { return zap.String("component", v) }
func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Price(v float64) zap.Field     { return zap.Float64("price", v) }
func Volume(v float64) zap.Field    { return zap.Float64("volume", v) }
func Spread(v float64) zap.Field    { return zap.Float64("spread", v) }
func Latency(v float64) zap.Field   { return zap.Float64("latency_ms", v) }
func Quantity(v float64) zap.Field  { return zap.Float64("quantity_usd", v) }
func Imbalance(v float64) zap.Field { return zap.Float64("imbalance", v) }
func NetCostBps(v float64) zap.Field { return zap.Float64("net_cost_bps", v) }
func FeeTier(v string) zap.Field    { return zap.String("fee_tier", v) }

// Re-exported zap field constructors so callers never need to import
// zap directly just to log.
func String(key, val string) zap.Field         { return zap.String(key, val) }
func Int(key string, val int) zap.Field        { return zap.Int(key, val) }
func Int64(key string, val int64) zap.Field    { return zap.Int64(key, val) }
func Float64(key string, val float64) zap.Field { return zap.Float64(key, val) }
func Bool(key string, val bool) zap.Field      { return zap.Bool(key, val) }
func Err(err error) zap.Field                  { return zap.Error(err) }
func Any(key string, val interface{}) zap.Field { return zap.Any(key, val) }

// fieldsToInterface flattens zap fields into alternating key/value
// pairs, for bridging into APIs that want ...interface{}.
func fieldsToInterface(fields []zap.Field) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		enc := zapcore.NewMapObjectEncoder()
		f.AddTo(enc)
		out = append(out, f.Key, enc.Fields[f.Key])
	}
	return out
}
