package logger

var (
	DEBUG = "debug"
	INFO  = "info"
	WARN  = "warn"
	ERROR = "error"
	FATAL = "fatal"
)

// LevelFileEntry 单个级别的日志文件
type LevelFileEntry struct {
	Level string // debug, info, warn, error, fatal
	Path  string
}

// LevelFiles 按级别拆分的日志文件
type LevelFiles []LevelFileEntry

func (lf LevelFiles) IsEmpty() bool {
	return len(lf) == 0
}

// GetPaths 所有文件路径
func (lf LevelFiles) GetPaths() []string {
	paths := make([]string, 0, len(lf))
	for _, entry := range lf {
		paths = append(paths, entry.Path)
	}
	return paths
}

type Config struct {
	LevelFiles LevelFiles // 为空时只写 logs/info.log
	MaxSize    int        // 单文件最大 MB
	MaxBackups int
	MaxAge     int // 天
	Level      string
	Compress   bool
	Console    bool // 同时输出到 stdout
}

// DefaultConfig info 和 error 分开写
func DefaultConfig() Config {
	return Config{
		LevelFiles: LevelFiles{
			{Level: ERROR, Path: "logs/err.log"},
			{Level: INFO, Path: "logs/info.log"},
		},
		MaxSize:    10,
		MaxBackups: 100,
		MaxAge:     5,
		Level:      INFO,
	}
}

type Builder struct {
	config Config
	custom bool
}

// NewBuilder 从默认配置开始构建；调用 AddLevelFile 会替换默认文件列表
func NewBuilder() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) SetMaxSize(size int) *Builder {
	b.config.MaxSize = size
	return b
}

func (b *Builder) SetMaxBackups(backups int) *Builder {
	b.config.MaxBackups = backups
	return b
}

func (b *Builder) SetMaxAge(days int) *Builder {
	b.config.MaxAge = days
	return b
}

func (b *Builder) SetLevel(level string) *Builder {
	b.config.Level = level
	return b
}

func (b *Builder) EnableCompression(enable bool) *Builder {
	b.config.Compress = enable
	return b
}

func (b *Builder) EnableConsoleOutput(enable bool) *Builder {
	b.config.Console = enable
	return b
}

// AddLevelFile 添加一个级别文件
func (b *Builder) AddLevelFile(level, path string) *Builder {
	if !b.custom {
		b.config.LevelFiles = nil
		b.custom = true
	}
	b.config.LevelFiles = append(b.config.LevelFiles, LevelFileEntry{Level: level, Path: path})
	return b
}

func (b *Builder) Build() error {
	return initLogger(b.config)
}
