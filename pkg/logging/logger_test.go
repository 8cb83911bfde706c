package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitLogger_Defaults(t *testing.T) {
	logger := InitLogger(LogConfig{})

	if logger == nil {
		t.Fatal("InitLogger returned nil")
	}
	if logger.Logger == nil {
		t.Fatal("Logger.Logger is nil")
	}
	if logger.sugar == nil {
		t.Fatal("Logger.sugar is nil")
	}
}

func TestInitLogger_JSONFormat(t *testing.T) {
	logger := InitLogger(LogConfig{Level: "info", Format: "json"})
	if logger == nil {
		t.Fatal("InitLogger returned nil")
	}
}

func TestInitLogger_TextFormat(t *testing.T) {
	logger := InitLogger(LogConfig{Level: "debug", Format: "text"})
	if logger == nil {
		t.Fatal("InitLogger returned nil")
	}
}

func TestInitLogger_DevelopmentMode(t *testing.T) {
	logger := InitLogger(LogConfig{Level: "debug", Format: "text", Development: true})
	if logger == nil {
		t.Fatal("InitLogger returned nil")
	}
}

func TestInitLogger_AllLevels(t *testing.T) {
	levels := []string{"debug", "info", "warn", "warning", "error", "fatal", "invalid"}

	for _, level := range levels {
		t.Run(level, func(t *testing.T) {
			logger := InitLogger(LogConfig{Level: level})
			if logger == nil {
				t.Fatalf("InitLogger returned nil for level %s", level)
			}
		})
	}
}

func TestInitLogger_FileOutput(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "logger_test_*.log")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	logger := InitLogger(LogConfig{Level: "info", Format: "json", Output: tmpFile.Name()})
	if logger == nil {
		t.Fatal("InitLogger returned nil")
	}

	logger.Info("Test message", zap.String("key", "value"))
	logger.Sync()

	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if len(content) == 0 {
		t.Error("Log file is empty")
	}

	var logEntry map[string]interface{}
	if err := json.Unmarshal(content, &logEntry); err != nil {
		t.Errorf("Log entry is not valid JSON: %v", err)
	}
}

func TestInitLogger_InvalidFileOutput(t *testing.T) {
	logger := InitLogger(LogConfig{Level: "info", Output: "/nonexistent/directory/log.txt"})
	if logger == nil {
		t.Fatal("InitLogger returned nil for invalid output")
	}
}

func TestGlobalLogger(t *testing.T) {
	globalMu.Lock()
	globalLogger = nil
	globalMu.Unlock()

	logger := GetGlobalLogger()
	if logger == nil {
		t.Fatal("GetGlobalLogger returned nil")
	}

	logger2 := GetGlobalLogger()
	if logger != logger2 {
		t.Error("GetGlobalLogger returned different loggers")
	}

	logger3 := L()
	if logger != logger3 {
		t.Error("L() returned different logger")
	}
}

func TestInitGlobalLogger(t *testing.T) {
	config := LogConfig{Level: "debug", Format: "text"}

	logger := InitGlobalLogger(config)
	if logger == nil {
		t.Fatal("InitGlobalLogger returned nil")
	}

	g := GetGlobalLogger()
	if g != logger {
		t.Error("Global logger was not set")
	}
}

func TestSetGlobalLogger(t *testing.T) {
	logger := InitLogger(LogConfig{Level: "warn"})
	SetGlobalLogger(logger)

	if GetGlobalLogger() != logger {
		t.Error("SetGlobalLogger did not set the logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"WARN", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"ERROR", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"invalid", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	logger := InitLogger(LogConfig{Level: "info"})

	newLogger := logger.With(zap.String("key", "value"))
	if newLogger == nil {
		t.Fatal("With returned nil")
	}
	if newLogger == logger {
		t.Error("With should return a new logger")
	}
}

func TestLogger_WithHelpers(t *testing.T) {
	logger := InitLogger(LogConfig{Level: "info"})

	tests := []struct {
		name   string
		helper func() *Logger
	}{
		{"WithComponent", func() *Logger { return logger.WithComponent("simulator") }},
		{"WithExchange", func() *Logger { return logger.WithExchange("OKX") }},
		{"WithSymbol", func() *Logger { return logger.WithSymbol("BTC-USDT") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newLogger := tt.helper()
			if newLogger == nil {
				t.Fatalf("%s returned nil", tt.name)
			}
			if newLogger == logger {
				t.Errorf("%s should return a new logger", tt.name)
			}
		})
	}
}

func TestLogger_Sugar(t *testing.T) {
	logger := InitLogger(LogConfig{Level: "info"})
	sugar := logger.Sugar()
	if sugar == nil {
		t.Fatal("Sugar returned nil")
	}
}

func newBufferLogger(buf *bytes.Buffer) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zapcore.EncoderConfig{MessageKey: "message", LevelKey: "level"}),
		zapcore.AddSync(buf),
		zapcore.DebugLevel,
	)
	return &Logger{Logger: zap.New(core), sugar: zap.New(core).Sugar()}
}

func TestGlobalLoggingFunctions(t *testing.T) {
	var buf bytes.Buffer
	testLogger := newBufferLogger(&buf)
	SetGlobalLogger(testLogger)

	Debug("debug message", zap.String("key", "debug"))
	Info("info message", zap.String("key", "info"))
	Warn("warn message", zap.String("key", "warn"))
	Error("error message", zap.String("key", "error"))

	testLogger.Sync()
	output := buf.String()

	for _, want := range []string{"debug message", "info message", "warn message", "error message"} {
		if !strings.Contains(output, want) {
			t.Errorf("%q not found in output", want)
		}
	}
}

func TestGlobalFormattedLoggingFunctions(t *testing.T) {
	var buf bytes.Buffer
	testLogger := newBufferLogger(&buf)
	SetGlobalLogger(testLogger)

	Debugf("debug %s %d", "test", 1)
	Infof("info %s %d", "test", 2)
	Warnf("warn %s %d", "test", 3)
	Errorf("error %s %d", "test", 4)

	testLogger.Sync()
	output := buf.String()

	for _, want := range []string{"debug test 1", "info test 2", "warn test 3", "error test 4"} {
		if !strings.Contains(output, want) {
			t.Errorf("%q not found in output", want)
		}
	}
}

func TestFieldConstructors(t *testing.T) {
	var buf bytes.Buffer
	testLogger := newBufferLogger(&buf)

	testLogger.Info("test",
		Exchange("OKX"),
		Symbol("BTC-USDT"),
		Price(50000.50),
		Volume(0.5),
		Spread(1.5),
		Quantity(100.0),
		Imbalance(1.333),
		NetCostBps(12.5),
		FeeTier("VIP0"),
		Latency(15.5),
		RequestID("req-789"),
		Component("simulator"),
	)

	testLogger.Sync()
	output := buf.String()

	expectedFields := []string{
		"exchange", "OKX",
		"symbol", "BTC-USDT",
		"price", "50000.5",
		"volume", "0.5",
		"spread", "1.5",
		"quantity_usd", "100",
		"imbalance", "1.333",
		"net_cost_bps", "12.5",
		"fee_tier", "VIP0",
		"latency_ms", "15.5",
		"request_id", "req-789",
		"component", "simulator",
	}

	for _, field := range expectedFields {
		if !strings.Contains(output, field) {
			t.Errorf("Field %q not found in output: %s", field, output)
		}
	}
}

func TestReexportedFieldConstructors(t *testing.T) {
	_ = String("key", "value")
	_ = Int("key", 42)
	_ = Int64("key", 42)
	_ = Float64("key", 3.14)
	_ = Bool("key", true)
	_ = Err(nil)
	_ = Any("key", struct{}{})
}

func TestFieldsToInterface(t *testing.T) {
	fields := []zap.Field{
		zap.String("key1", "value1"),
		zap.Int("key2", 42),
	}

	result := fieldsToInterface(fields)

	if len(result) != 4 {
		t.Errorf("Expected 4 elements, got %d", len(result))
	}
	if result[0] != "key1" {
		t.Errorf("Expected key1, got %v", result[0])
	}
	if result[2] != "key2" {
		t.Errorf("Expected key2, got %v", result[2])
	}
}

func BenchmarkLogger_Info(b *testing.B) {
	logger := InitLogger(LogConfig{Level: "info", Format: "json", Output: "/dev/null"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("Benchmark message", zap.String("key", "value"), zap.Int("count", i))
	}
}

func BenchmarkLogger_Sugar_Infof(b *testing.B) {
	logger := InitLogger(LogConfig{Level: "info", Format: "json", Output: "/dev/null"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.sugar.Infof("Benchmark message key=%s count=%d", "value", i)
	}
}

func BenchmarkGlobal_Info(b *testing.B) {
	InitGlobalLogger(LogConfig{Level: "info", Format: "json", Output: "/dev/null"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Info("Benchmark message", String("key", "value"), Int("count", i))
	}
}

func BenchmarkLogger_With(b *testing.B) {
	logger := InitLogger(LogConfig{Level: "info", Format: "json", Output: "/dev/null"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		childLogger := logger.With(zap.String("exchange", "OKX"), zap.String("symbol", "BTC-USDT"))
		childLogger.Info("Message")
	}
}
