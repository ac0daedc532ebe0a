package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"bidhub/shared/env"
	"bidhub/shared/notifications"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	ZapLogger      *zap.SugaredLogger
	atomicLevel    zap.AtomicLevel
	enableTelegram bool
}

type Config struct {
	Level          string
	Environment    string
	EnableTelegram bool
}

var globalLogger *Logger

func NewLogger(cfg Config) (*Logger, error) {
	logLevel := zap.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		logLevel = zap.DebugLevel
	case "info":
		logLevel = zap.InfoLevel
	case "warn", "warning":
		logLevel = zap.WarnLevel
	case "error":
		logLevel = zap.ErrorLevel
	case "fatal":
		logLevel = zap.FatalLevel
	default:
		fmt.Printf("WARN: Invalid log level '%s' specified, defaulting to INFO\n", cfg.Level)
	}

	atomicLevel := zap.NewAtomicLevelAt(logLevel)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.LevelKey = "severity"
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	core := zapcore.NewCore(
		consoleEncoder,
		zapcore.Lock(os.Stdout),
		atomicLevel,
	)

	// AddCallerSkip(1) so caller shows function calling logger methods, not logger methods themselves
	zapLogger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	sugaredLogger := zapLogger.Sugar()

	globalLogger = &Logger{
		ZapLogger:      sugaredLogger,
		atomicLevel:    atomicLevel,
		enableTelegram: cfg.EnableTelegram,
	}

	globalLogger.ZapLogger.Infof("Logger initialized. Level: %s, Telegram Enabled: %t", logLevel.String(), cfg.EnableTelegram)
	if cfg.EnableTelegram && env.TelegramGroupID == 0 {
		globalLogger.ZapLogger.Warnf("Telegram logging enabled but TELEGRAM_GROUP_ID is not set.")
	}

	return globalLogger, nil
}

func GetLogger() *Logger {
	if globalLogger == nil {
		fmt.Println("FATAL: Global logger requested before initialization.")
		os.Exit(1)
	}
	return globalLogger
}

func (l *Logger) Zap() *zap.SugaredLogger {
	return l.ZapLogger
}

// Formats key-values WITHOUT escaping them here; escaping happens in
// notifications when the message is actually sent.
func formatKeyValuesForTelegram(keysAndValues ...interface{}) string {
	if len(keysAndValues)%2 != 0 {
		keysAndValues = append(keysAndValues, "INVALID_ARGS")
	}
	if len(keysAndValues) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(" |")

	for i := 0; i < len(keysAndValues); i += 2 {
		keyStr := fmt.Sprintf("%v", keysAndValues[i])
		var valStr string
		if err, ok := keysAndValues[i+1].(error); ok {
			valStr = err.Error()
		} else {
			valStr = fmt.Sprintf("%v", keysAndValues[i+1])
		}
		sb.WriteString(fmt.Sprintf(" %s=`%s`", keyStr, valStr))
	}
	return sb.String()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.ZapLogger.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.ZapLogger.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.ZapLogger.Warnw(msg, keysAndValues...)
	if l.enableTelegram {
		formattedKeyValues := formatKeyValuesForTelegram(keysAndValues...)
		rawFormattedMsg := fmt.Sprintf("🟡 *WARN:* %s%s", msg, formattedKeyValues)
		notifications.SendTelegramMessage(rawFormattedMsg)
	}
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.ZapLogger.Errorw(msg, keysAndValues...)
	if l.enableTelegram {
		formattedKeyValues := formatKeyValuesForTelegram(keysAndValues...)
		rawFormattedMsg := fmt.Sprintf("🔴 *ERROR:* %s%s", msg, formattedKeyValues)
		notifications.SendTelegramMessage(rawFormattedMsg)
	}
}

func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.ZapLogger.Errorw(msg, keysAndValues...)

	if l.enableTelegram {
		formattedKeyValues := formatKeyValuesForTelegram(keysAndValues...)
		rawFormattedMsg := fmt.Sprintf("💀 *FATAL:* %s%s", msg, formattedKeyValues)
		notifications.SendTelegramMessage(rawFormattedMsg)
		// Give Telegram a moment to send before exiting
		time.Sleep(1 * time.Second)
	}
	l.ZapLogger.Fatalw(msg, keysAndValues...)
}

// LogToIngest mirrors ingest pipeline events to the Telegram group in
// addition to the local log.
func (l *Logger) LogToIngest(level zapcore.Level, msg string, keysAndValues ...interface{}) {
	zapFunc := l.ZapLogger.Infow
	switch level {
	case zapcore.DebugLevel:
		zapFunc = l.ZapLogger.Debugw
	case zapcore.WarnLevel:
		zapFunc = l.ZapLogger.Warnw
	case zapcore.ErrorLevel:
		zapFunc = l.ZapLogger.Errorw
	case zapcore.FatalLevel:
		zapFunc = l.ZapLogger.Errorw
	}
	zapFunc(msg, keysAndValues...)

	if l.enableTelegram && level >= zapcore.InfoLevel {
		formattedKeyValues := formatKeyValuesForTelegram(keysAndValues...)
		var prefix string
		switch level {
		case zapcore.InfoLevel:
			prefix = "ℹ️ [Ingest] INFO: "
		case zapcore.WarnLevel:
			prefix = "🟡 [Ingest] *WARN:* "
		case zapcore.ErrorLevel:
			prefix = "🔴 [Ingest] *ERROR:* "
		case zapcore.FatalLevel:
			prefix = "💀 [Ingest] *FATAL:* "
		default:
			prefix = "[Ingest] "
		}

		rawFormattedMsg := fmt.Sprintf("%s%s%s", prefix, msg, formattedKeyValues)
		notifications.SendTelegramMessage(rawFormattedMsg)

		if level == zapcore.FatalLevel {
			time.Sleep(1 * time.Second)
			l.ZapLogger.Fatalw(msg, keysAndValues...)
		}
	}
}

func (l *Logger) SetLevel(level string) {
	logLevel := zap.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		logLevel = zap.DebugLevel
	case "info":
		logLevel = zap.InfoLevel
	case "warn", "warning":
		logLevel = zap.WarnLevel
	case "error":
		logLevel = zap.ErrorLevel
	default:
		l.ZapLogger.Warnf("Invalid log level '%s' provided to SetLevel, level unchanged.", level)
		return
	}
	l.atomicLevel.SetLevel(logLevel)
	l.ZapLogger.Infof("Logger level changed to: %s", logLevel.String())
}
