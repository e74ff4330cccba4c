package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"camnet/internal/config"
)

// Log file names inside the log directory.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to files and stdout/stderr.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	files      []*os.File
	logDir     string
	mu         sync.Mutex
}

// NewLogger creates a Logger writing into config.LogDirectory and exits the
// process when the directory cannot be prepared.
func NewLogger(config *config.Config) *Logger {
	logger, err := New(config.LogDirectory)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	return logger
}

// New creates a Logger and ensures the log directory exists.
func New(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	l := &Logger{logDir: logDir}

	info, err := l.openLogFile(InfoFile)
	if err != nil {
		return nil, err
	}
	warning, err := l.openLogFile(WarningFile)
	if err != nil {
		l.Close()
		return nil, err
	}
	errorFile, err := l.openLogFile(ErrorFile)
	if err != nil {
		l.Close()
		return nil, err
	}

	l.setupLoggers(
		io.MultiWriter(os.Stdout, info),
		io.MultiWriter(os.Stdout, warning),
		io.MultiWriter(os.Stderr, errorFile),
	)
	return l, nil
}

// Discard returns a Logger that drops every entry.
func Discard() *Logger {
	l := &Logger{}
	l.setupLoggers(io.Discard, io.Discard, io.Discard)
	return l
}

func (l *Logger) setupLoggers(info, warning, errorWriter io.Writer) {
	l.infoLog = log.New(info, "INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(warning, "WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(errorWriter, "ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(name string) (*os.File, error) {
	file, err := os.OpenFile(filepath.Join(l.logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", name, err)
	}
	l.files = append(l.files, file)
	return file, nil
}

// Dir returns the directory holding the log files, empty for Discard loggers.
func (l *Logger) Dir() string {
	return l.logDir
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.output(l.infoLog, format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.output(l.warningLog, format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.output(l.errorLog, format, v...)
}

func (l *Logger) output(target *log.Logger, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// depth 3 reports the caller of Info/Warning/Error
	target.Output(3, fmt.Sprintf(format, v...))
}

// CleanLogs truncates the named log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.OpenFile(filepath.Join(l.logDir, fileName), os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("truncate %s: %w", fileName, err)
	}
	return file.Close()
}

// Close releases the log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
