// Package logger 基于 zap 的结构化日志，文件输出由 lumberjack 负责切割
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // console 或 json
	Filename   string `yaml:"filename"`    // 为空时只输出到终端
	MaxSize    int    `yaml:"max_size"`    // 单个文件大小上限，单位MB
	MaxDays    int    `yaml:"max_days"`    // 旧文件保留天数
	MaxBackups int    `yaml:"max_backups"` // 旧文件保留个数

	// DisableConsole 为true时不输出到终端，仅在配置了Filename时有效
	DisableConsole bool `yaml:"-"`
}

var (
	global   = zap.NewNop()
	globalMu sync.RWMutex
)

// New 根据配置创建日志记录器
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("无效的日志级别 %q: %w", cfg.Level, err)
		}
	}

	var cores []zapcore.Core
	if !cfg.DisableConsole || cfg.Filename == "" {
		cores = append(cores, zapcore.NewCore(encoder(cfg.Format, true), zapcore.Lock(os.Stderr), level))
	}
	if cfg.Filename != "" {
		if dir := filepath.Dir(cfg.Filename); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("创建日志目录失败: %w", err)
			}
		}
		cores = append(cores, zapcore.NewCore(encoder(cfg.Format, false), zapcore.AddSync(fileWriter(cfg)), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.FatalLevel)), nil
}

// Init 创建全局日志记录器
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set 替换全局日志记录器
func Set(l *zap.Logger) {
	globalMu.Lock()
	global = l
	globalMu.Unlock()
	zap.ReplaceGlobals(l)
}

// L 返回全局日志记录器，未初始化时不输出任何内容
func L() *zap.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// S 返回全局的 SugaredLogger
func S() *zap.SugaredLogger {
	return L().Sugar()
}

// Sync 刷新缓冲区
func Sync() {
	_ = L().Sync()
}

func fileWriter(cfg Config) *lumberjack.Logger {
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = 100
	}
	return &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    maxSize,
		MaxAge:     cfg.MaxDays,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
	}
}

func encoder(format string, colored bool) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	if format == "json" {
		return zapcore.NewJSONEncoder(encCfg)
	}
	if colored {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return zapcore.NewConsoleEncoder(encCfg)
}
