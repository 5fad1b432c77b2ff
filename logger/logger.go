// Copyright (c) 2017-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logger provides the subsystem loggers of the votepanel binaries.
// A single slog backend writes to stdout and to a rotating log file.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
	"github.com/pkg/errors"
)

// logWriter implements an io.Writer that outputs to stdout and to the
// write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator == nil {
		// Log rotator not initialized
		return len(p), nil
	}
	return logRotator.Write(p)
}

// Loggers per subsystem. A single backend logger is created and all subsytem
// loggers created from it will write to the backend. New subsystem loggers
// are added using NewSubsystemLogger.
//
// Log lines are written to stdout only until the log rotator has been
// initialized with a log file using InitLogRotator.
var (
	// backendLog is the logging backend used to create all subsystem
	// loggers.
	backendLog = slog.NewBackend(logWriter{})

	// logRotator is one of the logging outputs. It should be closed on
	// application shutdown.
	logRotator *rotator.Rotator

	// mtx protects subsystemLoggers.
	mtx sync.Mutex

	// subsystemLoggers contains all of the registered subsystem loggers.
	subsystemLoggers = map[string]slog.Logger{}
)

// InitLogRotator initializes the logging rotater to write logs to logFile and
// create roll files in the same directory. It must be called before the
// package-global log rotater variables are used.
func InitLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		return errors.Errorf("failed to create log dir %v: %v",
			logDir, err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return errors.Errorf("failed to create log file rotator: %v", err)
	}

	logRotator = r

	return nil
}

// CloseLogRotator closes the log rotator.
func CloseLogRotator() {
	if logRotator != nil {
		logRotator.Close()
	}
}

// NewSubsystemLogger registers and returns a new subsystem logger. The same
// logger is returned when a subsystem is registered more than once.
func NewSubsystemLogger(subsystemTag string) slog.Logger {
	mtx.Lock()
	defer mtx.Unlock()

	l, ok := subsystemLoggers[subsystemTag]
	if ok {
		return l
	}
	l = backendLog.Logger(subsystemTag)
	subsystemLoggers[subsystemTag] = l
	return l
}

// SupportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func SupportedSubsystems() []string {
	mtx.Lock()
	defer mtx.Unlock()

	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsytems for stable display
	sort.Strings(subsystems)
	return subsystems
}

// SetLogLevel sets the logging level for provided subsystem. Invalid
// subsystems are ignored. The log level defaults to info if an invalid log
// level is provided.
func SetLogLevel(subsystemID string, logLevel string) {
	mtx.Lock()
	logger, ok := subsystemLoggers[subsystemID]
	mtx.Unlock()
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid
	level, _ := slog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level. The log level defaults to info if an invalid log level is provided.
func SetLogLevels(logLevel string) {
	for _, subsystemID := range SupportedSubsystems() {
		SetLogLevel(subsystemID, logLevel)
	}
}

// ParseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly. The debug level is either a single log level that
// applies to all subsystems or a list of <subsystem>=<level> pairs.
func ParseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") &&
		!strings.Contains(debugLevel, "=") {
		if !ValidLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level "+
				"[%v] is invalid", debugLevel)
		}
		SetLogLevels(debugLevel)
		return nil
	}

	// Split the specified string into subsystem/level pairs while
	// detecting issues and update the log levels accordingly.
	subsystems := make(map[string]struct{})
	for _, v := range SupportedSubsystems() {
		subsystems[v] = struct{}{}
	}
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "the specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		// Extract the specified subsystem and log level
		fields := strings.SplitN(logLevelPair, "=", 2)
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := subsystems[subsysID]; !exists {
			str := "the specified subsystem [%v] is invalid -- " +
				"supported subsytems %v"
			return fmt.Errorf(str, subsysID, SupportedSubsystems())
		}
		if !ValidLogLevel(logLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		SetLogLevel(subsysID, logLevel)
	}

	return nil
}

// ValidLogLevel returns whether the logLevel is a valid debug log level.
func ValidLogLevel(logLevel string) bool {
	_, ok := slog.LevelFromString(logLevel)
	return ok
}

// LogClosure is a closure that can be printed with %v to be used to generate
// expensive-to-create data for a detailed log level and avoid doing the work
// if the data isn't printed.
type LogClosure func() string

func (c LogClosure) String() string {
	return c()
}

// NewLogClosure returns a new LogClosure.
func NewLogClosure(c func() string) LogClosure {
	return LogClosure(c)
}
