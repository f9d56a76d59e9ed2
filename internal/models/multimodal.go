// internal/models/multimodal.go
package models

import (
	"time"
)

// VisualContext 表示一张已上传图片的视觉上下文
// AssetURL 创建后不可变；ReferencedInTurns 只增不减
type VisualContext struct {
	AssetURL          string                   `json:"asset_url"`
	Description       string                   `json:"description"`
	DetectedObjects   []map[string]interface{} `json:"detected_objects"`
	ReferencedInTurns []int                    `json:"referenced_in_turns"`
}

// AudioContext 表示一段已上传音频的音频上下文
type AudioContext struct {
	AssetURL          string                 `json:"asset_url"`
	Transcription     string                 `json:"transcription"`
	SpeakerInfo       map[string]interface{} `json:"speaker_info,omitempty"`
	Emotion           string                 `json:"emotion,omitempty"`
	ReferencedInTurns []int                  `json:"referenced_in_turns"`
}

// UserInput 表示一轮中用户的多模态输入，所有字段可选
type UserInput struct {
	Text               string `json:"text,omitempty"`
	ImageAssetURL      string `json:"image_asset_url,omitempty"`
	AudioAssetURL      string `json:"audio_asset_url,omitempty"`
	AudioTranscription string `json:"audio_transcription,omitempty"`
}

// AssistantOutput 表示一轮中助手的输出
type AssistantOutput struct {
	Content               string                   `json:"content"`
	VisualizationCommands []map[string]interface{} `json:"visualization_commands,omitempty"`
	ReasoningTrace        []map[string]interface{} `json:"reasoning_trace,omitempty"`
}

// ReasoningTurn 表示一轮用户/助手交互
// TurnID 从1开始严格递增，创建后不再变化
type ReasoningTurn struct {
	TurnID              int                    `json:"turn_id"`
	UserInput           UserInput              `json:"user_input"`
	AssistantOutput     AssistantOutput        `json:"assistant_output"`
	CrossModalAlignment map[string]interface{} `json:"cross_modal_alignment,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
}

// ContextWindow 表示发送给推理提供者的多模态上下文窗口
// 窗口中的资源一定被窗口内至少一轮引用过
type ContextWindow struct {
	RecentTurns    []ReasoningTurn `json:"recent_turns"`
	VisualContexts []VisualContext `json:"visual_contexts"`
	AudioContexts  []AudioContext  `json:"audio_contexts"`
	ActiveVisual   *VisualContext  `json:"active_visual,omitempty"`
}

// ConversationSnapshot 会话状态的完整投影，用于持久化
type ConversationSnapshot struct {
	SessionID         string          `json:"session_id"`
	UserID            string          `json:"user_id"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	VisualContexts    []VisualContext `json:"visual_contexts"`
	AudioContexts     []AudioContext  `json:"audio_contexts"`
	Turns             []ReasoningTurn `json:"turns"`
	ActiveVisualIndex *int            `json:"active_visual_index"`
	ActiveAudioIndex  *int            `json:"active_audio_index"`
}
