package log

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/remotechain/votesync/config"
)

const (
	DebugLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	levelCount
)

const (
	flags     = log.Ldate | log.Lmicroseconds
	callDepth = 3
	megabyte  = 1 << 20
)

var labels = [levelCount]string{
	DebugLevel: colored("1;35", "[DEBUG]"),
	InfoLevel:  colored("0;32", "[INFO ]"),
	WarnLevel:  colored("0;33", "[WARN ]"),
	ErrorLevel: colored("0;31", "[ERROR]"),
}

func colored(code, msg string) string {
	return "\033[" + code + "m" + msg + "\033[m"
}

func label(level int) string {
	if level >= 0 && level < levelCount {
		return labels[level]
	}
	return "LEVEL" + strconv.Itoa(level)
}

// goroutineID parses the current goroutine id from its stack header.
func goroutineID() uint64 {
	var buf [64]byte
	b := bytes.TrimPrefix(buf[:runtime.Stack(buf[:], false)], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

var (
	// Log is the daemon log. It writes to stdout until Init runs.
	Log = New(os.Stdout, InfoLevel)
	// WebLog receives one line per API request. It is silent until Init
	// points it at a file.
	WebLog = New(io.Discard, InfoLevel)

	initOnce sync.Once
)

type Logger struct {
	mu    sync.RWMutex
	level int
	out   *log.Logger
	file  *os.File
}

// New returns a logger writing to out, detached from the global log files.
func New(out io.Writer, level int) *Logger {
	return &Logger{level: level, out: log.New(out, "", flags)}
}

func (l *Logger) swap(out io.Writer, level int, file *os.File) {
	l.mu.Lock()
	old := l.file
	l.out = log.New(out, "", flags)
	l.level = level
	l.file = file
	l.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

func (l *Logger) SetLevel(level int) error {
	if level < 0 || level >= levelCount {
		return errors.New("invalid log level")
	}
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
	return nil
}

func (l *Logger) enabled(level int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func (l *Logger) write(level int, msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if level < l.level {
		return
	}
	line := fmt.Sprintf("%s GID %d, %s", label(level), goroutineID(), msg)
	l.out.Output(callDepth, strings.TrimSuffix(line, "\n")+"\n")
}

func (l *Logger) Debug(a ...interface{})                 { l.write(DebugLevel, fmt.Sprintln(a...)) }
func (l *Logger) Debugf(format string, a ...interface{}) { l.write(DebugLevel, fmt.Sprintf(format, a...)) }
func (l *Logger) Info(a ...interface{})                  { l.write(InfoLevel, fmt.Sprintln(a...)) }
func (l *Logger) Infof(format string, a ...interface{})  { l.write(InfoLevel, fmt.Sprintf(format, a...)) }
func (l *Logger) Warning(a ...interface{})               { l.write(WarnLevel, fmt.Sprintln(a...)) }
func (l *Logger) Warningf(format string, a ...interface{}) {
	l.write(WarnLevel, fmt.Sprintf(format, a...))
}
func (l *Logger) Error(a ...interface{}) { l.write(ErrorLevel, fmt.Sprintln(a...)) }
func (l *Logger) Errorf(format string, a ...interface{}) {
	l.write(ErrorLevel, fmt.Sprintf(format, a...))
}

// site describes the caller of a package level debug function.
func site() string {
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return "?"
	}
	name := "?"
	if f := runtime.FuncForPC(pc); f != nil {
		name = strings.TrimPrefix(filepath.Ext(f.Name()), ".")
	}
	return fmt.Sprintf("%s() %s:%d", name, filepath.Base(file), line)
}

// Debug and Debugf prefix the message with the calling function and line.
func Debug(a ...interface{}) {
	if Log.enabled(DebugLevel) {
		Log.write(DebugLevel, site()+" "+fmt.Sprintln(a...))
	}
}

func Debugf(format string, a ...interface{}) {
	if Log.enabled(DebugLevel) {
		Log.write(DebugLevel, site()+" "+fmt.Sprintf(format, a...))
	}
}

func Info(a ...interface{})                    { Log.write(InfoLevel, fmt.Sprintln(a...)) }
func Infof(format string, a ...interface{})    { Log.write(InfoLevel, fmt.Sprintf(format, a...)) }
func Warning(a ...interface{})                 { Log.write(WarnLevel, fmt.Sprintln(a...)) }
func Warningf(format string, a ...interface{}) { Log.write(WarnLevel, fmt.Sprintf(format, a...)) }
func Error(a ...interface{})                   { Log.write(ErrorLevel, fmt.Sprintln(a...)) }
func Errorf(format string, a ...interface{})   { Log.write(ErrorLevel, fmt.Sprintf(format, a...)) }

// openLogFile creates a new timestamped log file named after kind in dir.
func openLogFile(dir, kind string) (*os.File, error) {
	if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	if err := os.MkdirAll(dir, 0766); err != nil {
		return nil, err
	}
	name := time.Now().Format("2006-01-02_15.04.05") + "_" + kind + ".log"
	return os.OpenFile(filepath.Join(dir, name), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
}

// sink pairs a logger with the file kind it rotates through.
type sink struct {
	logger *Logger
	kind   string
	echo   io.Writer
}

func (s sink) open(dir string, level int) error {
	var writers []io.Writer
	var file *os.File
	if dir != "" {
		f, err := openLogFile(dir, s.kind)
		if err != nil {
			return fmt.Errorf("open %s log in %s: %v", s.kind, dir, err)
		}
		file = f
		writers = append(writers, f)
	}
	if s.echo != nil {
		writers = append(writers, s.echo)
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}
	s.logger.swap(io.MultiWriter(writers...), level, file)
	return nil
}

// full reports whether the current file has grown past limit megabytes.
func (s sink) full(limit int) bool {
	s.logger.mu.RLock()
	f := s.logger.file
	s.logger.mu.RUnlock()
	if f == nil || limit <= 0 {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Size() > int64(limit)*megabyte
}

// Init points Log and WebLog at config.Parameters.LogPath and starts size
// based rotation. Without a LogPath Log stays on stdout and WebLog is
// discarded.
func Init() error {
	var err error
	initOnce.Do(func() {
		p := config.Parameters
		sinks := []sink{
			{logger: Log, kind: "LOG", echo: os.Stdout},
			{logger: WebLog, kind: "WEBLOG"},
		}
		for _, s := range sinks {
			if err = s.open(p.LogPath, p.LogLevel); err != nil {
				return
			}
		}
		if p.LogPath == "" {
			return
		}
		go rotate(sinks, p.LogPath, p.LogLevel, int(p.MaxLogFileSize))
	})
	return err
}

func rotate(sinks []sink, dir string, level, limit int) {
	for range time.Tick(config.ConfigRotateCheckInterval) {
		for _, s := range sinks {
			if !s.full(limit) {
				continue
			}
			if err := s.open(dir, level); err != nil {
				Log.Errorf("rotate %s: %v", s.kind, err)
			}
		}
	}
}
