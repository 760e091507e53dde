package playtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"

	"city.newnan/mc-toolbox/pkg/mccontrol"
)

const dateLayout = "2006-01-02"

// Line 一行服务器日志以及它所属的日期
type Line struct {
	Date string // YYYY-MM-DD
	Text string
}

// Source 日志行的来源
type Source interface {
	Lines(ctx context.Context) ([]Line, error)
}

// DirSource 读取服务器 logs 目录
//
// latest.log 视为今天的日志，YYYY-MM-DD-N.log.gz 的日期取自文件名，其余文件忽略。
// 文件按名称排序后依次输出，压缩文件并行解压。
type DirSource struct {
	Dir     string
	Workers int              // 并行解压的文件数，默认4
	Now     func() time.Time // 用于确定 latest.log 的日期，默认 time.Now
}

type logFile struct {
	path string
	date string
	gz   bool
}

// Lines 返回目录中所有日志行
func (s *DirSource) Lines(ctx context.Context) ([]Line, error) {
	files, err := s.listFiles()
	if err != nil {
		return nil, err
	}

	workers := s.Workers
	if workers <= 0 {
		workers = 4
	}

	results := make([][]Line, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			text, err := readLogFile(file)
			if err != nil {
				return fmt.Errorf("读取日志文件 %s 失败: %w", filepath.Base(file.path), err)
			}
			results[i] = splitLines(file.date, text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var lines []Line
	for _, r := range results {
		lines = append(lines, r...)
	}
	return lines, nil
}

func (s *DirSource) listFiles() ([]logFile, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("读取日志目录失败: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	var files []logFile
	for _, name := range names {
		path := filepath.Join(s.Dir, name)
		switch {
		case name == "latest.log":
			files = append(files, logFile{path: path, date: now().Format(dateLayout)})
		case strings.HasSuffix(name, ".log.gz"):
			date, ok := dateFromName(name)
			if !ok {
				continue
			}
			files = append(files, logFile{path: path, date: date, gz: true})
		}
	}
	return files, nil
}

// dateFromName 从 2024-01-05-1.log.gz 这样的文件名中取出日期
func dateFromName(name string) (string, bool) {
	parts := strings.SplitN(name, "-", 4)
	if len(parts) < 3 {
		return "", false
	}
	date := strings.Join(parts[:3], "-")
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", false
	}
	return date, true
}

func readLogFile(file logFile) (string, error) {
	data, err := os.ReadFile(file.path)
	if err != nil {
		return "", err
	}
	if !file.gz {
		return string(data), nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer zr.Close()
	decoded, err := io.ReadAll(zr)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func splitLines(date, text string) []Line {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	lines := make([]Line, len(raw))
	for i, t := range raw {
		lines[i] = Line{Date: date, Text: strings.TrimRight(t, "\r")}
	}
	return lines
}

// LogFetcher 获取服务器Pod日志，由 mccontrol.MinecraftController 实现
type LogFetcher interface {
	FetchLogs(ctx context.Context, options mccontrol.LogOptions, callback mccontrol.LogCallback) ([]string, error)
}

// PodSource 从Kubernetes中运行的服务器读取当前容器的日志，全部视为今天的日志
type PodSource struct {
	Fetcher   LogFetcher
	TailLines *int64
	Now       func() time.Time
}

// Lines 返回Pod日志中的所有行
func (s *PodSource) Lines(ctx context.Context) ([]Line, error) {
	raw, err := s.Fetcher.FetchLogs(ctx, mccontrol.LogOptions{TailLines: s.TailLines}, nil)
	if err != nil {
		return nil, fmt.Errorf("获取Pod日志失败: %w", err)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	date := now().Format(dateLayout)

	lines := make([]Line, len(raw))
	for i, text := range raw {
		lines[i] = Line{Date: date, Text: text}
	}
	return lines, nil
}
