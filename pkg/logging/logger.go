package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides leveled logging for hltvquery components.
// All loggers of a process write to one file in the log directory,
// tagged with the component name and the process session ID.
type Logger struct {
	sessionID string
	component string
	file      *os.File
	sugar     *zap.SugaredLogger
	logPath   string
	closeOnce sync.Once
}

var (
	// Global session ID for the current process
	sessionID     string
	sessionIDOnce sync.Once

	// logDir is the directory where log files are stored
	logDir string

	// dirOverride is set by SetDirectory before the first logger is created
	dirOverride string

	initOnce sync.Once
	initErr  error

	// level is shared by every logger created by this package
	level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
)

const timeLayout = "2006-01-02 15:04:05.000"

// getSessionID returns or creates the session ID for this process
func getSessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

// SetDirectory changes where log files are written. It only has an effect
// when called before the first NewLogger call.
func SetDirectory(dir string) {
	dirOverride = dir
}

// SetLevel sets the minimum level for all loggers: debug, info, warn or error.
func SetLevel(name string) error {
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return nil
}

// initLogDirectory ensures the log directory exists
func initLogDirectory() error {
	initOnce.Do(func() {
		if logDir != "" {
			initErr = os.MkdirAll(logDir, 0750)
			return
		}

		dir := dirOverride
		if dir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				initErr = fmt.Errorf("failed to get home directory: %w", err)
				return
			}
			dir = filepath.Join(homeDir, ".hltvquery", "logs")
		}

		if err := os.MkdirAll(dir, 0750); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}
		logDir = dir
	})
	return initErr
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " "
	return cfg
}

func newSugar(w io.Writer, component string) *zap.SugaredLogger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core).Sugar().With("component", component, "session", getSessionID())
}

// NewLogger creates a new logger for a specific component.
// The logger writes to <log dir>/<session-id>-hltvquery.log
//
// If the log directory cannot be created or the log file cannot be opened,
// it returns a fallback logger that writes to stderr along with the error.
func NewLogger(component string) (*Logger, error) {
	if err := initLogDirectory(); err != nil {
		return newFallbackLogger(component, err), err
	}

	sessID := getSessionID()
	logPath := filepath.Join(logDir, fmt.Sprintf("%s-hltvquery.log", sessID))

	// Multiple components append to the same file
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return newFallbackLogger(component, fmt.Errorf("failed to open log file: %w", err)), err
	}

	return &Logger{
		sessionID: sessID,
		component: component,
		file:      file,
		sugar:     newSugar(file, component),
		logPath:   logPath,
	}, nil
}

// newFallbackLogger creates a logger that writes to stderr when file logging fails
func newFallbackLogger(component string, err error) *Logger {
	l := &Logger{
		sessionID: getSessionID(),
		component: component,
		sugar:     newSugar(os.Stderr, component),
	}
	l.sugar.Warnf("failed to initialize file logging: %v", err)
	l.sugar.Warn("falling back to stderr logging")
	return l
}

// New wraps an arbitrary writer. Used by the console host to mirror logs.
func New(w io.Writer, component string) *Logger {
	return &Logger{
		sessionID: getSessionID(),
		component: component,
		sugar:     newSugar(w, component),
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{component: "nop", sugar: zap.NewNop().Sugar()}
}

// Named returns a logger for a sub-component sharing the same output.
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		sessionID: l.sessionID,
		component: component,
		sugar:     l.sugar.With("sub", component),
		logPath:   l.logPath,
	}
}

// Printf logs a formatted message at info level
func (l *Logger) Printf(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// Writer returns an io.Writer that writes to this logger's file
func (l *Logger) Writer() io.Writer {
	if l.file != nil {
		return l.file
	}
	return os.Stderr
}

// SessionID returns the process session ID
func (l *Logger) SessionID() string {
	return l.sessionID
}

// LogPath returns the path to the log file, empty for stderr loggers
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close flushes and closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		_ = l.sugar.Sync()
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

// GetSessionID returns the current global session ID
func GetSessionID() string {
	return getSessionID()
}

// GetLogDirectory returns the directory where logs are stored
func GetLogDirectory() (string, error) {
	if err := initLogDirectory(); err != nil {
		return "", err
	}
	return logDir, nil
}
