package logging

// Package logging provides a replacement for the default golang log package. It wraps Uber's ZapCore
// logger in support for structured logging and additional logging features (e.g. logging levels)

import (
	"os"
	"sync"

	"github.com/alexflint/go-arg"
	maskTool "github.com/anu1097/golang-masking-tool"
	"github.com/anu1097/golang-masking-tool/customMasker"
	"github.com/anu1097/golang-masking-tool/filter"
	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"xaas-logging.log-shipper/pkg/cli"
)

var (
	log        *zap.Logger
	filePath   string
	logToFile  bool
	production bool
	once       sync.Once
	masker     = maskTool.NewMaskTool(filter.TagFilter(customMasker.MAddress,
		customMasker.MCreditCard,
		customMasker.MEmail,
		customMasker.MID,
		customMasker.MMobile,
		customMasker.MName,
		customMasker.MPassword,
		customMasker.MSecret,
		customMasker.MTelephone,
		customMasker.MURL),
		filter.FieldFilter("Password"),
		filter.FieldFilter("TLSKeyPath"))
)

// Setup parses the command line and installs the process-wide zap logger. It is safe to call more than once.
func Setup() {
	once.Do(func() {
		// Change default masking label of [filtered] ---> ************
		masker.UpdateFilterLabel("************")

		arg.MustParse(&cli.Args)

		filePath = cli.Args.LogfilePath
		logToFile = cli.Args.LoggingToFileEnabled
		production = !cli.Args.DebugEnabled

		var ec zapcore.EncoderConfig
		var level zapcore.Level

		// Apply one of the default encoder configs based on run-time environment (prod vs non-prod)
		if production {
			ec = zap.NewProductionEncoderConfig()
			level = zap.NewProductionConfig().Level.Level()
		} else {
			ec = zap.NewDevelopmentEncoderConfig()
			level = zap.NewDevelopmentConfig().Level.Level()
		}

		// Create a JSON encoder and customize date & time formatting
		encoder := zapcore.NewJSONEncoder(ec)
		ec.EncodeTime = zapcore.ISO8601TimeEncoder //The encoder can be customized for each output

		// Initialize logging to console. stderr keeps stdout free for the stdout output.
		consoleEncoder := zapcore.NewConsoleEncoder(ec)

		core := zapcore.NewTee(
			zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), level),
		)

		// Initialize logging to file if enabled
		var writerSyncer zapcore.WriteSyncer
		if logToFile {
			lumberJackLogger := &lumberjack.Logger{
				Filename:   filePath,
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     30,
				Compress:   false,
			}
			writerSyncer = zapcore.AddSync(lumberJackLogger)

			core = zapcore.NewTee(core, zapcore.NewCore(encoder, writerSyncer, level))
		}

		// Include additional info in the log output
		log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zap.FatalLevel))

		defer log.Sync() // flushes buffer, if any
		zap.ReplaceGlobals(log)
	})
}

/*
MaskSensitiveData takes a struct and applies masking to any sensitive fields tagged with `mask`
see the following for available mask types and masking behavior
https://github.com/anu1097/golang-masking-tool/tree/v0.0.5#custom-mask-types

e.g.

	type myRecord struct {
		ID    string
		EMail string `mask:"email"`
		Phone string `mask:"mobile"`
	}
*/
func MaskSensitiveData(v interface{}) interface{} {
	return masker.MaskDetails(v)
}

// Logger returns the process-wide sugared logger
func Logger() *zap.SugaredLogger {
	return zap.L().Sugar()
}

// LoggerWithComponent returns a logger that tags every entry with the pipeline component and its instance
// (e.g. the tailed path or the output name)
func LoggerWithComponent(component string, instance string) *zap.SugaredLogger {
	return zap.L().With(
		zap.String("component", component),
		zap.String("instance", instance),
	).Sugar()
}

// Fatal provides compatibility with golang log package. The input args will be concatenated into a single log message.
func Fatal(args ...interface{}) {
	Logger().Fatal(args...)
}

// Debugf uses fmt.Sprintf to log a templated message.
func Debugf(format string, args ...interface{}) {
	Logger().Debugf(format, args...)
}

// Infof uses fmt.Sprintf to log a templated message.
func Infof(format string, args ...interface{}) {
	Logger().Infof(format, args...)
}

// Infow logs a message with some additional context. The variadic key-value pairs are treated as they are in With.
func Infow(format string, args ...interface{}) {
	Logger().Infow(format, args...)
}

// Warnf uses fmt.Sprintf to log a templated message.
func Warnf(format string, args ...interface{}) {
	Logger().Warnf(format, args...)
}

// Warnw logs a message with some additional context. The variadic key-value pairs are treated as they are in With.
func Warnw(format string, args ...interface{}) {
	Logger().Warnw(format, args...)
}

// Errorf uses fmt.Sprintf to log a templated message.
func Errorf(format string, args ...interface{}) {
	Logger().Errorf(format, args...)
}

// Fatalf uses fmt.Sprintf to log a templated message, then calls os.Exit.
func Fatalf(format string, args ...interface{}) {
	Logger().Fatalf(format, args...)
}

// Panicf uses fmt.Sprintf to log a templated message, then panics.
func Panicf(format string, args ...interface{}) {
	Logger().Panicf(format, args...)
}
