package server

import (
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config 进程级配置，全部来自环境变量（可选 .env 文件补充）
type Config struct {
	Port      int    `env:"PORT,default=3000"`
	StaticDir string `env:"STATIC_DIR,default=public"`

	LogFile       string `env:"LOG_FILE,default=app.log"`
	LogLevel      string `env:"LOG_LEVEL,default=debug"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB,default=10"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS,default=3"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS,default=7"`

	MinPlayers        int           `env:"MIN_PLAYERS,default=2"`
	MaxPlayers        int           `env:"MAX_PLAYERS,default=16"`
	SyncWindow        time.Duration `env:"SYNC_WINDOW,default=2s"`
	PatternResetDelay time.Duration `env:"PATTERN_RESET_DELAY,default=1s"`
	LevelAdvanceDelay time.Duration `env:"LEVEL_ADVANCE_DELAY,default=3s"`

	MoveRatePerSec float64 `env:"MOVE_RATE_PER_SEC,default=60"`
	MoveBurst      int     `env:"MOVE_BURST,default=120"`
	ChatRatePerSec float64 `env:"CHAT_RATE_PER_SEC,default=2"`
	ChatBurst      int     `env:"CHAT_BURST,default=5"`
	WSReadLimit    int64   `env:"WS_READ_LIMIT,default=65536"`
}

// LoadConfig 读取 .env（若存在，不覆盖已有环境变量）后解析环境变量
func LoadConfig(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// 文件缺失不是错误
		_ = godotenv.Load(f)
	}
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 检查配置组合是否自洽
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.MinPlayers < 1 || c.MaxPlayers < c.MinPlayers {
		return fmt.Errorf("invalid player bounds min=%d max=%d", c.MinPlayers, c.MaxPlayers)
	}
	if c.SyncWindow <= 0 || c.PatternResetDelay <= 0 || c.LevelAdvanceDelay <= 0 {
		return fmt.Errorf("timer durations must be positive")
	}
	return nil
}

// Addr 监听地址
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// Rules 返回房间使用的规则参数
func (c Config) Rules() Rules {
	return Rules{
		MinPlayers:        c.MinPlayers,
		MaxPlayers:        c.MaxPlayers,
		SyncWindow:        c.SyncWindow,
		PatternResetDelay: c.PatternResetDelay,
		LevelAdvanceDelay: c.LevelAdvanceDelay,
	}
}

// Rules 房间规则：人数上下限与各类延时
type Rules struct {
	MinPlayers        int
	MaxPlayers        int
	SyncWindow        time.Duration
	PatternResetDelay time.Duration
	LevelAdvanceDelay time.Duration
}

// DefaultRules 与环境变量默认值一致
func DefaultRules() Rules {
	return Rules{
		MinPlayers:        2,
		MaxPlayers:        16,
		SyncWindow:        2000 * time.Millisecond,
		PatternResetDelay: 1000 * time.Millisecond,
		LevelAdvanceDelay: 3000 * time.Millisecond,
	}
}
