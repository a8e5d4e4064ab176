package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logMu             sync.Mutex
	lumberjackWriters map[string]*lumberjack.Logger
	currentDate       atomic.Value
	closed            chan struct{}
	closeOnce         *sync.Once
	DateFormat        = "2006-01-02"
	TimeFormat        = "2006-01-02 15:04:05"
)

// initLogger 初始化全局 logger，可重复调用
func initLogger(config Config) error {
	Close()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	SetLevel(config.Level)

	if config.LevelFiles.IsEmpty() {
		config.LevelFiles = LevelFiles{{Level: INFO, Path: "logs/info.log"}}
	}
	for _, p := range config.LevelFiles.GetPaths() {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
	}

	currentDate.Store(time.Now().Format(DateFormat))
	setWriter(config)

	logMu.Lock()
	closed = make(chan struct{})
	closeOnce = &sync.Once{}
	done := closed
	logMu.Unlock()

	go rotateDaily(config, done)
	return nil
}

// SetLevel 运行时调整全局级别，未知级别按 info 处理
func SetLevel(level string) {
	zerolog.SetGlobalLevel(parseLevel(level))
}

func setWriter(config Config) {
	// 已配置文件的级别位掩码
	var configured uint8
	for _, entry := range config.LevelFiles {
		configured |= 1 << parseLevel(entry.Level)
	}

	writers := make([]io.Writer, 0, len(config.LevelFiles)+1)
	files := make(map[string]*lumberjack.Logger, len(config.LevelFiles))

	for _, entry := range config.LevelFiles {
		lj := &lumberjack.Logger{
			Filename:   entry.Path,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}
		files[entry.Level] = lj
		writers = append(writers, &levelFilterWriter{
			level:      parseLevel(entry.Level),
			configured: configured,
			Writer:     &zerolog.ConsoleWriter{Out: lj, TimeFormat: TimeFormat, NoColor: true},
		})
	}

	if config.Console {
		writers = append(writers, &zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: TimeFormat})
	}

	logMu.Lock()
	defer logMu.Unlock()

	closeWriters()
	lumberjackWriters = files
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Caller().Logger()
}

// levelFilterWriter 只写本级别的日志
// info 文件兜底写入没有单独文件的级别，error 文件兜底写入 fatal
type levelFilterWriter struct {
	level      zerolog.Level
	configured uint8
	io.Writer
}

func (w *levelFilterWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level == w.level {
		return w.Writer.Write(p)
	}

	unconfigured := level >= 0 && level < 8 && w.configured&(1<<level) == 0
	switch {
	case w.level == zerolog.InfoLevel && unconfigured:
		return w.Writer.Write(p)
	case w.level == zerolog.ErrorLevel && level == zerolog.FatalLevel && unconfigured:
		return w.Writer.Write(p)
	}
	return len(p), nil
}

func parseLevel(name string) zerolog.Level {
	switch strings.ToLower(name) {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	case FATAL:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// closeWriters 调用方持有 logMu
func closeWriters() {
	for level, lj := range lumberjackWriters {
		if err := lj.Close(); err != nil {
			log.Logger.Err(err).Str("level", level).Msg("close log file failed")
		}
	}
	lumberjackWriters = nil
}

// rotateDaily 每天零点切分一次文件
func rotateDaily(config Config, done <-chan struct{}) {
	now := time.Now()
	timer := time.NewTimer(nextDay(now).Sub(now))
	defer timer.Stop()

	for {
		select {
		case <-done:
			return
		case t := <-timer.C:
			date := t.Format(DateFormat)
			if date != currentDate.Load().(string) {
				currentDate.Store(date)
				rotateAll(config)
			}
			timer.Reset(nextDay(t).Sub(t))
		}
	}
}

func rotateAll(config Config) {
	for i := 0; i < 3; i++ {
		var lastErr error

		logMu.Lock()
		for level, lj := range lumberjackWriters {
			if err := lj.Rotate(); err != nil {
				lastErr = err
				log.Logger.Err(err).Str("level", level).Msg("rotate log file failed")
			}
		}
		logMu.Unlock()

		if lastErr != nil {
			time.Sleep(200 * time.Millisecond)
			continue
		}
		setWriter(config)
		log.Logger.Info().Msg("log files rotated by date")
		return
	}
}

func nextDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}

// L 返回全局 logger
func L() zerolog.Logger {
	return log.Logger
}

func Info() *zerolog.Event {
	return log.Logger.Info()
}

func Debug() *zerolog.Event {
	return log.Logger.Debug()
}

func Error() *zerolog.Event {
	return log.Logger.Error()
}

func Warn() *zerolog.Event {
	return log.Logger.Warn()
}

func Fatal() *zerolog.Event {
	return log.Logger.Fatal()
}

// Err 按 err 是否为 nil 选择 error 或 info 级别
func Err(err error) *zerolog.Event {
	return log.Logger.Err(err)
}

// Close 停止按天切分并关闭日志文件，可重复调用
func Close() {
	logMu.Lock()
	defer logMu.Unlock()

	if closeOnce != nil {
		done := closed
		closeOnce.Do(func() { close(done) })
	}
	closeWriters()
}
