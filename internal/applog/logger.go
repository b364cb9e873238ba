// Package applog provides the process-wide structured logger shared by the
// crawler, estimator and command-line front end.
package applog

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 全局日志器,在 Init 之前为零值 zerolog.Logger(丢弃所有输出)。
var Logger zerolog.Logger

// Config 控制日志级别、输出目录与轮转策略。
type Config struct {
	Level      string // trace, debug, info, warn, error, fatal, panic
	LogDir     string
	MaxSize    int // 单个日志文件最大大小(MB)
	MaxBackups int
	MaxAge     int // 保留天数
	Compress   bool
}

// DefaultConfig 返回一组合理的默认值。
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		LogDir:     "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// Init 初始化全局 logger:彩色控制台 + 滚动主日志 + 滚动错误日志。
func Init(config Config) error {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	mainLogFile := &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, "sizeprobe.log"),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}

	errorLogFile := &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, "sizeprobe_error.log"),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		NoColor:    false,
	}

	multiWriter := zerolog.MultiLevelWriter(
		consoleWriter,
		mainLogFile,
		&FilteredWriter{Writer: errorLogFile, MinLevel: zerolog.ErrorLevel},
	)

	Logger = zerolog.New(multiWriter).
		With().
		Timestamp().
		Caller().
		Logger()

	log.Logger = Logger

	Logger.Info().
		Str("level", config.Level).
		Str("log_dir", config.LogDir).
		Msg("logger initialised")

	return nil
}

// FilteredWriter only forwards records at or above MinLevel. zerolog writes
// already-rendered JSON lines, so this relies on the caller using a level
// keyed multi-writer rather than parsing the record back.
type FilteredWriter struct {
	Writer   io.Writer
	MinLevel zerolog.Level
}

func (w *FilteredWriter) Write(p []byte) (n int, err error) {
	return w.Writer.Write(p)
}

func (w *FilteredWriter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	if level >= w.MinLevel {
		return w.Writer.Write(p)
	}
	return len(p), nil
}

func Info(msg string) { Logger.Info().Msg(msg) }

func Infof(format string, args ...interface{}) { Logger.Info().Msgf(format, args...) }

func Error(err error, msg string) { Logger.Error().Err(err).Msg(msg) }

func Errorf(format string, args ...interface{}) { Logger.Error().Msgf(format, args...) }

func Warn(msg string) { Logger.Warn().Msg(msg) }

func Warnf(format string, args ...interface{}) { Logger.Warn().Msgf(format, args...) }

func Debug(msg string) { Logger.Debug().Msg(msg) }

func Debugf(format string, args ...interface{}) { Logger.Debug().Msgf(format, args...) }

func Fatal(err error, msg string) { Logger.Fatal().Err(err).Msg(msg) }
