// internal/llm/interface.go
package llm

import (
	"context"
	"errors"
)

// 错误定义
var ErrUnknownProvider = errors.New("未知的AI提供者")

// UnderstandingRequest 多模态理解请求
// 三种模态输入均可选，Instruction 为理解指令
type UnderstandingRequest struct {
	VisionInput string `json:"vision_input,omitempty"` // 图片URL
	TextInput   string `json:"text_input,omitempty"`
	AudioInput  string `json:"audio_input,omitempty"` // 音频URL
	Instruction string `json:"instruction"`
}

// UnderstandingResult 多模态理解结果
// CrossModalAlignment 中可能包含 image_understanding、detected_objects、
// vision_text_alignment 等条目，由状态容器透传，不在此解释
type UnderstandingResult struct {
	Understanding       string                 `json:"understanding"`
	CrossModalAlignment map[string]interface{} `json:"cross_modal_alignment,omitempty"`
	ExtractedStructure  map[string]interface{} `json:"extracted_structure,omitempty"`
	Confidence          float64                `json:"confidence"`
	ModelUsed           string                 `json:"model_used,omitempty"`
}

// ContextMessage 推理上下文中的一条角色消息
type ContextMessage struct {
	Role    string                 `json:"role"` // user, assistant, system
	Content string                 `json:"content"`
	Extra   map[string]interface{} `json:"extra,omitempty"`
}

// ReasoningRequest 推理请求
type ReasoningRequest struct {
	Query   string           `json:"query"`
	Context []ContextMessage `json:"context,omitempty"`
	Domain  string           `json:"domain,omitempty"` // math, physics等，默认general
}

// ReasoningResult 推理结果
type ReasoningResult struct {
	Answer                string                   `json:"answer"`
	ReasoningTrace        []map[string]interface{} `json:"reasoning_trace,omitempty"`
	VisualizationCommands []map[string]interface{} `json:"visualization_commands,omitempty"`
	Confidence            float64                  `json:"confidence"`
}

// UnderstandingProvider 定义多模态理解提供者必须实现的接口
// 典型实现是一次VLM调用：图片像素和文本在模型内部同时处理
type UnderstandingProvider interface {
	// 初始化提供者，传入配置
	Initialize(config map[string]string) error

	// 获取提供者名称
	GetName() string

	// 多模态融合理解
	FuseModalities(ctx context.Context, req UnderstandingRequest) (*UnderstandingResult, error)
}

// ReasoningProvider 定义推理提供者必须实现的接口
// 典型实现是一次LLM调用
type ReasoningProvider interface {
	// 初始化提供者，传入配置
	Initialize(config map[string]string) error

	// 获取提供者名称
	GetName() string

	// 基于查询和上下文执行推理
	Reason(ctx context.Context, req ReasoningRequest) (*ReasoningResult, error)
}

// 注册表和工厂函数类型
type UnderstandingFactory func() UnderstandingProvider
type ReasoningFactory func() ReasoningProvider

var (
	understandingProviders = make(map[string]UnderstandingFactory)
	reasoningProviders     = make(map[string]ReasoningFactory)
)

// RegisterUnderstanding 注册理解提供者工厂
func RegisterUnderstanding(name string, factory UnderstandingFactory) {
	understandingProviders[name] = factory
}

// RegisterReasoning 注册推理提供者工厂
func RegisterReasoning(name string, factory ReasoningFactory) {
	reasoningProviders[name] = factory
}

// GetUnderstandingProvider 创建指定名称的理解提供者实例
func GetUnderstandingProvider(name string, config map[string]string) (UnderstandingProvider, error) {
	factory, exists := understandingProviders[name]
	if !exists {
		return nil, ErrUnknownProvider
	}

	provider := factory()
	if err := provider.Initialize(config); err != nil {
		return nil, err
	}
	return provider, nil
}

// GetReasoningProvider 创建指定名称的推理提供者实例
func GetReasoningProvider(name string, config map[string]string) (ReasoningProvider, error) {
	factory, exists := reasoningProviders[name]
	if !exists {
		return nil, ErrUnknownProvider
	}

	provider := factory()
	if err := provider.Initialize(config); err != nil {
		return nil, err
	}
	return provider, nil
}

// ListUnderstandingProviders 返回所有已注册的理解提供者名称
func ListUnderstandingProviders() []string {
	names := make([]string, 0, len(understandingProviders))
	for name := range understandingProviders {
		names = append(names, name)
	}
	return names
}

// ListReasoningProviders 返回所有已注册的推理提供者名称
func ListReasoningProviders() []string {
	names := make([]string, 0, len(reasoningProviders))
	for name := range reasoningProviders {
		names = append(names, name)
	}
	return names
}
