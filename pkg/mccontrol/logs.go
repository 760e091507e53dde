package mccontrol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// LogCallback 接收一批日志行，或者一条状态/错误信息（此时lines为nil）
type LogCallback func(lines []string, message string)

// parseLogLine 拆分Kubernetes日志行前面的RFC3339时间戳
func parseLogLine(line string) (string, time.Time, bool) {
	line = strings.TrimRight(line, "\r\n")
	if tsEnd := strings.IndexByte(line, ' '); tsEnd > 0 {
		if ts, err := time.Parse(time.RFC3339Nano, line[:tsEnd]); err == nil {
			return line[tsEnd+1:], ts, true
		}
	}
	return line, time.Time{}, false
}

// openLogStream 打开当前Pod的日志流，失败时强制更新Pod信息后重试一次
func (m *MinecraftController) openLogStream(ctx context.Context, opts corev1.PodLogOptions) (io.ReadCloser, error) {
	stream, err := m.clientset.CoreV1().Pods(m.namespace).GetLogs(m.PodName(), &opts).Stream(ctx)
	if err == nil {
		return stream, nil
	}

	if _, updateErr := m.updatePodInfoIfNeeded(true); updateErr != nil {
		return nil, fmt.Errorf("获取日志流失败，且无法更新Pod信息: %w, updateErr: %v", err, updateErr)
	}
	stream, err = m.clientset.CoreV1().Pods(m.namespace).GetLogs(m.PodName(), &opts).Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("即使更新Pod信息后，获取日志流仍然失败: %w", err)
	}
	return stream, nil
}

// FetchLogs 获取服务器Pod的日志
// callback为nil时一次性读取并返回全部日志；否则以Follow模式在后台持续读取，
// 通过callback分批返回，直到ctx取消，函数本身立即返回nil
func (m *MinecraftController) FetchLogs(ctx context.Context, options LogOptions, callback LogCallback) ([]string, error) {
	if m.clientset == nil {
		return nil, ErrNoKubernetes
	}
	if _, err := m.updatePodInfoIfNeeded(false); err != nil {
		return nil, fmt.Errorf("更新Pod信息失败: %w", err)
	}

	podLogOpts := corev1.PodLogOptions{
		Container:  options.Container,
		TailLines:  options.TailLines,
		Previous:   options.Previous,
		Timestamps: true, // 开启时间戳以支持断线后补全
		Follow:     callback != nil,
	}
	if podLogOpts.Container == "" {
		podLogOpts.Container = m.containerName
	}
	if options.SinceTime != nil {
		sinceTime := metav1.NewTime(*options.SinceTime)
		podLogOpts.SinceTime = &sinceTime
	}

	stream, err := m.openLogStream(ctx, podLogOpts)
	if err != nil {
		return nil, err
	}

	if callback == nil {
		defer stream.Close()
		return readAllLogLines(stream)
	}

	go m.followLogs(ctx, stream, podLogOpts, options, callback)
	return nil, nil
}

func readAllLogLines(stream io.Reader) ([]string, error) {
	var lines []string
	reader := bufio.NewReader(stream)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			content, _, _ := parseLogLine(line)
			lines = append(lines, content)
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return lines, fmt.Errorf("读取日志行失败: %w", err)
		}
	}
}

// followLogs 持续读取日志流，断开后从最后一条日志的时间戳处重连
func (m *MinecraftController) followLogs(ctx context.Context, stream io.ReadCloser, podLogOpts corev1.PodLogOptions, options LogOptions, callback LogCallback) {
	batchSize := options.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	maxWaitTime := options.MaxWaitTime
	if maxWaitTime <= 0 {
		maxWaitTime = time.Second
	}

	const maxRetries = 5
	retryDelay := time.Second
	maxRetryDelay := 30 * time.Second

	lines := make(chan string, batchSize)
	readErrs := make(chan error, 1)
	read := func(stream io.ReadCloser) {
		reader := bufio.NewReader(stream)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErrs <- err
				return
			}
		}
	}

	current := stream
	defer func() { current.Close() }()
	go read(current)

	var buffer []string
	var lastTimestamp time.Time
	if options.SinceTime != nil {
		lastTimestamp = *options.SinceTime
	}
	flush := func() {
		if len(buffer) > 0 {
			callback(buffer, "")
			buffer = nil
		}
	}

	ticker := time.NewTicker(maxWaitTime)
	defer ticker.Stop()

	retryCount := 0
	reconnected := false
	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-m.ctx.Done():
			flush()
			return
		case line := <-lines:
			content, ts, ok := parseLogLine(line)
			if ok && reconnected && !ts.After(lastTimestamp) {
				// 重连后补全时跳过已经发送过的行
				continue
			}
			if ok {
				lastTimestamp = ts
			}
			retryCount = 0
			buffer = append(buffer, content)
			if len(buffer) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case err := <-readErrs:
			// 把已读到的行先发出去
			for len(lines) > 0 {
				content, _, _ := parseLogLine(<-lines)
				buffer = append(buffer, content)
			}
			flush()
			current.Close()

			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			if retryCount >= maxRetries {
				callback(nil, fmt.Sprintf("日志流连接持续失败，已尝试重连%d次: %v", retryCount, err))
				return
			}
			retryCount++
			callback(nil, fmt.Sprintf("日志流连接中断，正在尝试重新连接 (尝试 %d/%d): %v", retryCount, maxRetries, err))

			delay := time.Duration(math.Min(float64(retryDelay)*math.Pow(2, float64(retryCount-1)), float64(maxRetryDelay)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}

			followOpts := podLogOpts
			followOpts.TailLines = nil
			if !lastTimestamp.IsZero() {
				since := metav1.NewTime(lastTimestamp)
				followOpts.SinceTime = &since
			}
			next, err := m.openLogStream(ctx, followOpts)
			if err != nil {
				callback(nil, fmt.Sprintf("重新连接失败 (尝试 %d/%d): %v", retryCount, maxRetries, err))
				readErrs <- err
				continue
			}
			current = next
			reconnected = true
			go read(current)
			callback(nil, "日志流连接已成功重新建立，继续监控日志...")
		}
	}
}
