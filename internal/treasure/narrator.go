package treasure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// Clue 描述宝箱位置的线索，坐标是近似值
type Clue struct {
	Biome  string `json:"biome"`
	X      int    `json:"x"`
	Z      int    `json:"z"`
	Height string `json:"height"`
	Item   string `json:"item"`
}

// Prompt 生成给叙述模型的提示词
func (c Clue) Prompt() string {
	return fmt.Sprintf(`Please give me flavor text for a treasure hunt describing a
location where a chest is hidden in a Minecraft world.

Details:
Biome: %s
X: ~%d
Z: ~%d
Height: %s
Contents: %s

Be concise. This should be no more than 3 sentences.
Make sure to include the biome, coordinates (and that they are
approximate), height, and contents. This message is broadcast to
all online players, so tailor it accordingly.
`, humanize(c.Biome), c.X, c.Z, c.Height, humanize(c.Item))
}

// Narrator 为宝箱生成广播文案
type Narrator interface {
	Narrate(ctx context.Context, clue Clue) (string, error)
}

// StaticNarrator 不依赖外部服务的固定模板文案
type StaticNarrator struct{}

// Narrate 实现 Narrator
func (StaticNarrator) Narrate(_ context.Context, clue Clue) (string, error) {
	return fmt.Sprintf("Somewhere in the %s, near X ~%d and Z ~%d (%s), a chest holding %s awaits. The coordinates are only approximate, so search carefully!",
		humanize(clue.Biome), clue.X, clue.Z, strings.ToLower(clue.Height), humanize(clue.Item)), nil
}

const narratorSystemPrompt = "You are a dungeon master narrator"

// OpenAINarrator 通过 chat completions 接口生成文案
type OpenAINarrator struct {
	APIKey  string
	Model   string // 默认 gpt-3.5-turbo
	BaseURL string // 默认 https://api.openai.com/v1
	Client  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Narrate 实现 Narrator
func (n *OpenAINarrator) Narrate(ctx context.Context, clue Clue) (string, error) {
	model := n.Model
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	baseURL := strings.TrimRight(n.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	body, err := sonic.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: narratorSystemPrompt},
			{Role: "user", Content: clue.Prompt()},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求叙述接口失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取叙述接口响应失败: %w", err)
	}

	var result chatResponse
	if err := sonic.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("解析叙述接口响应失败(HTTP %d): %w", resp.StatusCode, err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("叙述接口返回错误(HTTP %d): %s", resp.StatusCode, result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("叙述接口返回 HTTP %d", resp.StatusCode)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", errors.New("叙述接口没有返回内容")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// NewNarrator 配置了API Key时使用 OpenAINarrator，否则使用 StaticNarrator
func NewNarrator(apiKey, model, baseURL string) Narrator {
	if apiKey == "" {
		return StaticNarrator{}
	}
	return &OpenAINarrator{APIKey: apiKey, Model: model, BaseURL: baseURL}
}
