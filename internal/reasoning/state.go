// internal/reasoning/state.go
package reasoning

import (
	"sync"
	"time"

	"github.com/Corphon/TutorMindMCP/internal/models"
)

// ConversationState 维护一个会话内的多模态推理状态
//
// 核心职责:
//  1. 维护多轮对话中的视觉/音频上下文池（只追加，索引即稳定句柄）
//  2. 追踪哪些资源在哪些轮次被引用
//  3. 指代消解（"那个三角形"指的是之前上传的图）
//  4. 组装发送给推理提供者的上下文窗口
//
// 同一会话的写操作必须串行，内部用读写锁保证；跨会话无需协调
type ConversationState struct {
	sessionID string
	userID    string
	createdAt time.Time
	updatedAt time.Time

	// 多模态上下文池（只追加）
	visualContexts []models.VisualContext
	audioContexts  []models.AudioContext

	// 推理轮次历史（只追加，按时间顺序）
	turns []models.ReasoningTurn

	// 当前活跃的模态索引
	activeVisualIndex *int
	activeAudioIndex  *int

	policy ReferencePolicy
	mu     sync.RWMutex
}

// NewConversationState 创建空的会话状态
func NewConversationState(sessionID, userID string, policy ReferencePolicy) *ConversationState {
	if policy == nil {
		policy = NewKeywordReferencePolicy()
	}
	now := time.Now()
	return &ConversationState{
		sessionID: sessionID,
		userID:    userID,
		createdAt: now,
		updatedAt: now,
		policy:    policy,
	}
}

// SessionID 返回会话ID
func (s *ConversationState) SessionID() string {
	return s.sessionID
}

// UserID 返回用户ID
func (s *ConversationState) UserID() string {
	return s.userID
}

// TurnCount 返回已记录的轮次数
func (s *ConversationState) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// VisualContextCount 返回视觉上下文池大小
func (s *ConversationState) VisualContextCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.visualContexts)
}

// ActiveVisualIndex 返回当前活跃的视觉索引，未设置时返回 (-1, false)
func (s *ConversationState) ActiveVisualIndex() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeVisualIndex == nil {
		return -1, false
	}
	return *s.activeVisualIndex, true
}

// AddTurn 记录一轮用户/助手交互
//
// 轮次ID为 len(turns)+1，从1开始稠密递增，永不复用
// 携带新图片时会追加视觉上下文并把它设为活跃图片（新图不与旧图合并）；
// 音频同理。所有输入字段均可为空，产生的轮次依然有效
func (s *ConversationState) AddTurn(input models.UserInput, output models.AssistantOutput, alignment map[string]interface{}) models.ReasoningTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turnID := len(s.turns) + 1

	if input.ImageAssetURL != "" {
		visual := models.VisualContext{
			AssetURL:          input.ImageAssetURL,
			ReferencedInTurns: []int{turnID},
		}
		if alignment != nil {
			if desc, ok := alignment["image_understanding"].(string); ok {
				visual.Description = desc
			}
			visual.DetectedObjects = detectedObjects(alignment["detected_objects"])
		}
		s.visualContexts = append(s.visualContexts, visual)
		idx := len(s.visualContexts) - 1
		s.activeVisualIndex = &idx
	}

	if input.AudioAssetURL != "" {
		audio := models.AudioContext{
			AssetURL:          input.AudioAssetURL,
			Transcription:     input.AudioTranscription,
			ReferencedInTurns: []int{turnID},
		}
		s.audioContexts = append(s.audioContexts, audio)
		idx := len(s.audioContexts) - 1
		s.activeAudioIndex = &idx
	}

	turn := models.ReasoningTurn{
		TurnID:              turnID,
		UserInput:           input,
		AssistantOutput:     output,
		CrossModalAlignment: alignment,
		CreatedAt:           time.Now(),
	}
	s.turns = append(s.turns, turn)
	s.updatedAt = time.Now()

	return turn
}

// ResolveReference 解析视觉指代
//
// 例子:
//   - "第一张图" → visualContexts[0]
//   - "那个三角形" → 当前活跃的图片
//   - 其他 → 最近上传的图片
//
// 纯查询，不修改任何状态；调用方若采用了解析结果，
// 需要另行调用 MarkReferenced 记录引用关系
func (s *ConversationState) ResolveReference(queryText string) (*models.VisualContext, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.policy.Resolve(queryText, s.visualContexts, s.activeVisualIndex)
	if !ok || idx < 0 || idx >= len(s.visualContexts) {
		return nil, -1
	}

	visual := s.visualContexts[idx]
	return &visual, idx
}

// MarkReferenced 标记某个图片在某轮被引用，并把它设为活跃图片
// 索引越界时静默忽略（与原始行为保持兼容）
func (s *ConversationState) MarkReferenced(visualIndex, turnID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if visualIndex < 0 || visualIndex >= len(s.visualContexts) {
		return
	}

	s.visualContexts[visualIndex].ReferencedInTurns = append(s.visualContexts[visualIndex].ReferencedInTurns, turnID)
	idx := visualIndex
	s.activeVisualIndex = &idx
	s.updatedAt = time.Now()
}

// GetContextWindow 组装多模态上下文窗口
//
// 与纯文本对话的区别: 除了最近 maxTurns 轮对话，还要带上这些轮次
// 实际引用过的图片/音频，从而让载荷大小只随窗口增长而不随历史总量增长
//
// maxTurns <= 0 时轮次列表为空；includeVisual 只控制视觉池，
// 音频上下文始终包含（保持既有行为）
func (s *ConversationState) GetContextWindow(maxTurns int, includeVisual bool) models.ContextWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recent []models.ReasoningTurn
	if maxTurns > 0 {
		start := len(s.turns) - maxTurns
		if start < 0 {
			start = 0
		}
		recent = append(recent, s.turns[start:]...)
	}

	// 收集窗口内轮次引用的视觉/音频索引
	referencedVisual := make(map[int]bool)
	referencedAudio := make(map[int]bool)
	for _, turn := range recent {
		for i, visual := range s.visualContexts {
			if containsTurn(visual.ReferencedInTurns, turn.TurnID) {
				referencedVisual[i] = true
			}
		}
		for i, audio := range s.audioContexts {
			if containsTurn(audio.ReferencedInTurns, turn.TurnID) {
				referencedAudio[i] = true
			}
		}
	}

	window := models.ContextWindow{
		RecentTurns:    recent,
		VisualContexts: []models.VisualContext{},
		AudioContexts:  []models.AudioContext{},
	}

	if includeVisual {
		for i := 0; i < len(s.visualContexts); i++ {
			if referencedVisual[i] {
				window.VisualContexts = append(window.VisualContexts, s.visualContexts[i])
			}
		}
	}

	for i := 0; i < len(s.audioContexts); i++ {
		if referencedAudio[i] {
			window.AudioContexts = append(window.AudioContexts, s.audioContexts[i])
		}
	}

	if s.activeVisualIndex != nil {
		active := s.visualContexts[*s.activeVisualIndex]
		window.ActiveVisual = &active
	}

	return window
}

// Snapshot 导出完整状态投影（用于持久化）
func (s *ConversationState) Snapshot() *models.ConversationSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &models.ConversationSnapshot{
		SessionID:      s.sessionID,
		UserID:         s.userID,
		CreatedAt:      s.createdAt,
		UpdatedAt:      s.updatedAt,
		VisualContexts: append([]models.VisualContext{}, s.visualContexts...),
		AudioContexts:  append([]models.AudioContext{}, s.audioContexts...),
		Turns:          append([]models.ReasoningTurn{}, s.turns...),
	}
	if s.activeVisualIndex != nil {
		idx := *s.activeVisualIndex
		snap.ActiveVisualIndex = &idx
	}
	if s.activeAudioIndex != nil {
		idx := *s.activeAudioIndex
		snap.ActiveAudioIndex = &idx
	}
	return snap
}

// RestoreState 从快照恢复会话状态
func RestoreState(snap *models.ConversationSnapshot, policy ReferencePolicy) *ConversationState {
	state := NewConversationState(snap.SessionID, snap.UserID, policy)
	state.createdAt = snap.CreatedAt
	state.updatedAt = snap.UpdatedAt
	state.visualContexts = append(state.visualContexts, snap.VisualContexts...)
	state.audioContexts = append(state.audioContexts, snap.AudioContexts...)
	state.turns = append(state.turns, snap.Turns...)
	if snap.ActiveVisualIndex != nil {
		idx := *snap.ActiveVisualIndex
		state.activeVisualIndex = &idx
	}
	if snap.ActiveAudioIndex != nil {
		idx := *snap.ActiveAudioIndex
		state.activeAudioIndex = &idx
	}
	return state
}

// detectedObjects 兼容原生构造和JSON反序列化两种形态的对象列表
func detectedObjects(raw interface{}) []map[string]interface{} {
	switch v := raw.(type) {
	case []map[string]interface{}:
		return v
	case []interface{}:
		objects := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			if obj, ok := item.(map[string]interface{}); ok {
				objects = append(objects, obj)
			}
		}
		return objects
	default:
		return nil
	}
}

func containsTurn(turnIDs []int, turnID int) bool {
	for _, id := range turnIDs {
		if id == turnID {
			return true
		}
	}
	return false
}
