package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"city.newnan/mc-toolbox/internal/playtime"
)

// PlaytimeReport 一次统计的结果
type PlaytimeReport struct {
	Entries []playtime.Entry `json:"entries"`
	Updated time.Time        `json:"updated"`
}

// PlaytimeService 统计玩家在线时长，结果在 ttl 内复用
type PlaytimeService struct {
	source playtime.Source
	ttl    time.Duration
	now    func() time.Time

	mu     sync.Mutex
	cached *PlaytimeReport
}

// NewPlaytimeService 创建在线时长服务
func NewPlaytimeService(source playtime.Source, ttl time.Duration) *PlaytimeService {
	return &PlaytimeService{source: source, ttl: ttl, now: time.Now}
}

// Report 返回在线时长排行，缓存过期时重新读取日志
func (s *PlaytimeService) Report(ctx context.Context) (*PlaytimeReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cached != nil && now.Sub(s.cached.Updated) < s.ttl {
		return s.cached, nil
	}

	entries, err := playtime.Aggregate(ctx, s.source)
	if err != nil {
		return nil, err
	}
	s.cached = &PlaytimeReport{Entries: entries, Updated: now}
	return s.cached, nil
}

// WriteHTML 输出HTML页面
func (s *PlaytimeService) WriteHTML(ctx context.Context, w io.Writer) error {
	report, err := s.Report(ctx)
	if err != nil {
		return err
	}
	return playtime.Render(w, report.Entries, report.Updated)
}

// Publish 生成HTML页面并原子地替换 path
func (s *PlaytimeService) Publish(ctx context.Context, path string) error {
	var buf bytes.Buffer
	if err := s.WriteHTML(ctx, &buf); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".playtimes-*.html")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
