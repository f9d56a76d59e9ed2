// internal/llm/providers/qwenvl/qwenvl.go
package qwenvl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Corphon/TutorMindMCP/internal/llm"
)

func init() {
	llm.RegisterUnderstanding("qwen-vl", func() llm.UnderstandingProvider {
		return newProvider()
	})
	llm.RegisterReasoning("qwen-vl", func() llm.ReasoningProvider {
		return newProvider()
	})
}

func newProvider() *Provider {
	return &Provider{
		baseURL:      "https://dashscope.aliyuncs.com/compatible-mode/v1",
		visionModel:  "qwen-vl-plus",
		defaultModel: "qwen2.5-max",
	}
}

// Provider 通义千问提供者，同时承担多模态理解（VL模型）和推理（文本模型）
type Provider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	visionModel  string
	defaultModel string
}

// Initialize 传入配置初始化
func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("千问(Qwen) API密钥未提供")
	}

	p.apiKey = apiKey
	p.client = &http.Client{}

	if model, exists := config["vision_model"]; exists && model != "" {
		p.visionModel = model
	}
	if model, exists := config["default_model"]; exists && model != "" {
		p.defaultModel = model
	}
	if baseURL, exists := config["base_url"]; exists && baseURL != "" {
		p.baseURL = baseURL
	}

	return nil
}

// GetName 返回提供者名称
func (p *Provider) GetName() string {
	return "Qwen-VL"
}

// FuseModalities 调用VL模型做原生多模态融合理解
// 图片和文本在模型内部同时处理，不走"先OCR再理解"的老路；
// 音频输入以转写文本的形式并入文本部分
func (p *Provider) FuseModalities(ctx context.Context, req llm.UnderstandingRequest) (*llm.UnderstandingResult, error) {
	messages := buildMultimodalMessages(req)

	requestBody := map[string]interface{}{
		"model":    p.visionModel,
		"messages": messages,
		"stream":   false,
	}

	var apiResp chatResponse
	if err := p.post(ctx, "/chat/completions", requestBody, &apiResp); err != nil {
		return nil, err
	}
	if len(apiResp.Choices) == 0 {
		return nil, errors.New("千问VL响应中没有choices")
	}

	content := apiResp.Choices[0].Message.Content

	result := &llm.UnderstandingResult{
		Understanding: content,
		Confidence:    0.9,
		ModelUsed:     p.visionModel,
	}

	// 理解结果本身作为图像描述进入对齐信息，供状态容器透传
	if req.VisionInput != "" {
		result.CrossModalAlignment = map[string]interface{}{
			"image_understanding": content,
			"detected_objects":    []map[string]interface{}{},
		}
	}

	return result, nil
}

// Reason 调用文本模型基于上下文执行推理
func (p *Provider) Reason(ctx context.Context, req llm.ReasoningRequest) (*llm.ReasoningResult, error) {
	messages := make([]map[string]interface{}, 0, len(req.Context)+2)

	domain := req.Domain
	if domain == "" {
		domain = "general"
	}
	messages = append(messages, map[string]interface{}{
		"role":    "system",
		"content": fmt.Sprintf("你是一位%s学科的导学助手，请逐步推理并给出讲解。", domain),
	})

	for _, msg := range req.Context {
		messages = append(messages, map[string]interface{}{
			"role":    msg.Role,
			"content": msg.Content,
		})
	}

	messages = append(messages, map[string]interface{}{
		"role":    "user",
		"content": req.Query,
	})

	requestBody := map[string]interface{}{
		"model":    p.defaultModel,
		"messages": messages,
		"stream":   false,
	}

	var apiResp chatResponse
	if err := p.post(ctx, "/chat/completions", requestBody, &apiResp); err != nil {
		return nil, err
	}
	if len(apiResp.Choices) == 0 {
		return nil, errors.New("千问响应中没有choices")
	}

	return &llm.ReasoningResult{
		Answer:     apiResp.Choices[0].Message.Content,
		Confidence: 0.85,
	}, nil
}

// post 发送JSON请求并解析响应
func (p *Provider) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API请求失败，状态码: %d, 响应: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

// buildMultimodalMessages 构建VL格式的消息
// 视觉内容作为独立的content part，音频转写并入文本
func buildMultimodalMessages(req llm.UnderstandingRequest) []map[string]interface{} {
	var contentParts []map[string]interface{}

	if req.VisionInput != "" {
		contentParts = append(contentParts, map[string]interface{}{
			"type":      "image_url",
			"image_url": map[string]string{"url": req.VisionInput},
		})
	}

	text := req.TextInput
	if req.AudioInput != "" {
		// VL模型不直接收音频，这里只能以附注形式携带音频位置
		text = fmt.Sprintf("%s\n[语音输入: %s]", text, req.AudioInput)
	}

	instruction := req.Instruction
	if instruction == "" {
		instruction = "请理解这个多模态输入并提取关键信息"
	}

	contentParts = append(contentParts, map[string]interface{}{
		"type": "text",
		"text": fmt.Sprintf("%s\n%s", instruction, text),
	})

	return []map[string]interface{}{
		{
			"role":    "user",
			"content": contentParts,
		},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
