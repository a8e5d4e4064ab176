package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/utrading/utrading-finnhub-stream/pkg/logger"
)

// TokenEnv token 为空时从该环境变量读取
const TokenEnv = "FINNHUB_TOKEN"

type Finnhub struct {
	WSURL               string        `toml:"ws_url"`
	Token               string        `toml:"token"`
	HandshakeTimeout    time.Duration `toml:"handshake_timeout"`
	WriteTimeout        time.Duration `toml:"write_timeout"`
	PingPeriod          time.Duration `toml:"ping_period"`
	ReadChunkSize       int           `toml:"read_chunk_size"`
	DisposeTimeout      time.Duration `toml:"dispose_timeout"`
	ProxyEnabled        bool          `toml:"proxy_enabled"`
	ProxyAddr           string        `toml:"proxy_addr"`
	TradeSymbols        []string      `toml:"trade_symbols"`
	NewsSymbols         []string      `toml:"news_symbols"`
	PressReleaseSymbols []string      `toml:"press_release_symbols"`
}

// Sizing 接收缓冲区估算参数
type Sizing struct {
	FixedOverhead    int `toml:"fixed_overhead"`
	RecordSize       int `toml:"record_size"`
	RecordsPerSymbol int `toml:"records_per_symbol"`
	PageSize         int `toml:"page_size"`
	MaxHint          int `toml:"max_hint"`
}

type Health struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type NATS struct {
	Enabled       bool          `toml:"enabled"`
	Endpoint      string        `toml:"endpoint"`
	SubjectPrefix string        `toml:"subject_prefix"`
	PoolSize      int           `toml:"pool_size"`
	FlushTimeout  time.Duration `toml:"flush_timeout"`
}

type Dedup struct {
	TTL time.Duration `toml:"ttl"`
}

type Logger struct {
	Level      string `toml:"level"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"`
	Compress   bool   `toml:"compress"`
	Console    bool   `toml:"console"`
}

type Config struct {
	Finnhub Finnhub `toml:"finnhub"`
	Sizing  Sizing  `toml:"sizing"`
	Health  Health  `toml:"health"`
	NATS    NATS    `toml:"nats"`
	Dedup   Dedup   `toml:"dedup"`
	Logger  Logger  `toml:"log"`
}

var (
	cfg         *Config
	cfgPath     string
	cfgLock     sync.RWMutex
	lastModTime time.Time
	stopChan    chan struct{}
	stopOnce    sync.Once
)

func Default() *Config {
	return &Config{
		Finnhub: Finnhub{
			WSURL:            "wss://ws.finnhub.io",
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     10 * time.Second,
			PingPeriod:       30 * time.Second,
			ReadChunkSize:    4096,
			DisposeTimeout:   5 * time.Second,
			ProxyEnabled:     false,
			ProxyAddr:        "127.0.0.1:7890",
		},
		Sizing: Sizing{
			FixedOverhead:    60,
			RecordSize:       134,
			RecordsPerSymbol: 10,
			PageSize:         4096,
			MaxHint:          1 << 20,
		},
		Health: Health{
			Enabled: true,
			Addr:    "0.0.0.0:16810",
		},
		NATS: NATS{
			Enabled:       false,
			Endpoint:      "nats://localhost:4222",
			SubjectPrefix: "finnhub",
			PoolSize:      16,
			FlushTimeout:  2 * time.Second,
		},
		Dedup: Dedup{
			TTL: 30 * time.Minute,
		},
		Logger: Logger{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 60,
			MaxAge:     7,
			Compress:   false,
			Console:    false,
		},
	}
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	var errs []error

	if c.Finnhub.WSURL == "" {
		errs = append(errs, errors.New("finnhub.ws_url is empty"))
	}
	if c.Finnhub.ProxyEnabled && c.Finnhub.ProxyAddr == "" {
		errs = append(errs, errors.New("finnhub.proxy_addr is empty while proxy is enabled"))
	}
	if c.Finnhub.ReadChunkSize < 0 {
		errs = append(errs, fmt.Errorf("finnhub.read_chunk_size %d is negative", c.Finnhub.ReadChunkSize))
	}
	if c.Sizing.MaxHint > 0 && c.Sizing.PageSize > c.Sizing.MaxHint {
		errs = append(errs, fmt.Errorf("sizing.page_size %d exceeds sizing.max_hint %d", c.Sizing.PageSize, c.Sizing.MaxHint))
	}
	if c.Health.Enabled && c.Health.Addr == "" {
		errs = append(errs, errors.New("health.addr is empty"))
	}
	if c.NATS.Enabled && c.NATS.Endpoint == "" {
		errs = append(errs, errors.New("nats.endpoint is empty"))
	}
	if c.Dedup.TTL <= 0 {
		errs = append(errs, errors.New("dedup.ttl must be positive"))
	}

	return errors.Join(errs...)
}

// ProxyAddr 启用代理时返回代理地址
func (c *Config) ProxyAddr() string {
	if !c.Finnhub.ProxyEnabled {
		return ""
	}
	return c.Finnhub.ProxyAddr
}

// decode 解析配置文件，token 为空时取环境变量
func decode(path string) (*Config, error) {
	c := Default()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, err
	}

	if strings.TrimSpace(c.Finnhub.Token) == "" {
		c.Finnhub.Token = os.Getenv(TokenEnv)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func Load(path string) error {
	c, err := decode(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	cfgLock.Lock()
	defer cfgLock.Unlock()
	cfg = c
	cfgPath = path
	lastModTime = info.ModTime()

	return nil
}

func Get() *Config {
	cfgLock.RLock()
	defer cfgLock.RUnlock()
	return cfg
}

// Init 初始化配置并启动定期重载（默认10秒）
// 重载只影响之后读取 Get() 的地方，已建立的连接不受影响
func Init(path string) error {
	return InitWithInterval(path, 10*time.Second)
}

// InitWithInterval 初始化配置并指定重载间隔
func InitWithInterval(path string, interval time.Duration) error {
	if err := Load(path); err != nil {
		return err
	}

	stopChan = make(chan struct{})
	stopOnce = sync.Once{}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				reloadIfNeeded()
			case <-stopChan:
				return
			}
		}
	}()

	return nil
}

// Stop 停止配置重载，可重复调用
func Stop() {
	if stopChan != nil {
		stopOnce.Do(func() { close(stopChan) })
	}
}

// reloadIfNeeded 仅在文件修改时重载
func reloadIfNeeded() {
	cfgLock.RLock()
	path := cfgPath
	lastMod := lastModTime
	cfgLock.RUnlock()

	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Error().Err(err).Msg("config stat failed")
		return
	}

	if info.ModTime().After(lastMod) {
		if err = Load(path); err != nil {
			logger.Error().Err(err).Msg("config reload failed, keep previous")
		} else {
			logger.Info().Msg("config reloaded")
		}
	}
}
