// internal/services/tutoring_service.go
package services

import (
	"context"
	"fmt"

	apperrors "github.com/Corphon/TutorMindMCP/internal/errors"
	"github.com/Corphon/TutorMindMCP/internal/llm"
	"github.com/Corphon/TutorMindMCP/internal/models"
	"github.com/Corphon/TutorMindMCP/internal/reasoning"
	"github.com/Corphon/TutorMindMCP/internal/utils"
)

// QueryRequest 一次多模态导学查询
type QueryRequest struct {
	SessionID  string `json:"session_id" binding:"required"`
	UserID     string `json:"user_id"`
	Text       string `json:"text"`
	ImageURL   string `json:"image_url,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
	IsFollowUp bool   `json:"is_follow_up"`
	Domain     string `json:"domain,omitempty"`
}

// QueryResult 导学查询结果
type QueryResult struct {
	SessionID             string                   `json:"session_id"`
	TurnID                int                      `json:"turn_id"`
	Answer                string                   `json:"answer"`
	ReasoningTrace        []map[string]interface{} `json:"reasoning_trace,omitempty"`
	VisualizationCommands []map[string]interface{} `json:"visualization_commands,omitempty"`
	CrossModalAlignment   map[string]interface{}   `json:"cross_modal_alignment,omitempty"`
	ContextSummary        ContextSummary           `json:"multimodal_context_summary"`
	Confidence            float64                  `json:"confidence"`
	ModelUsed             string                   `json:"model_used,omitempty"`
	Degraded              bool                     `json:"degraded,omitempty"`
}

// ContextSummary 多模态上下文概览
type ContextSummary struct {
	TotalVisualContexts int  `json:"total_visual_contexts"`
	TotalTurns          int  `json:"total_turns"`
	ActiveVisualIndex   int  `json:"current_active_visual"`
	HasActiveVisual     bool `json:"has_active_visual"`
}

// TutoringService 多模态导学管道
//
// 一次查询的处理流程:
//  1. 获取或创建会话状态
//  2. 追问且未带新图时做指代消解
//  3. VLM多模态融合理解（失败时降级，不中断）
//  4. 组装上下文窗口并执行推理（失败时给出兜底回答）
//  5. 记录轮次、标记引用、持久化
type TutoringService struct {
	states        *reasoning.StateStore
	understanding llm.UnderstandingProvider
	reasoner      llm.ReasoningProvider
	records       *RecordsService

	maxContextTurns int
}

// NewTutoringService 创建导学服务
// records 可为nil，此时不写学习记录
func NewTutoringService(states *reasoning.StateStore, understanding llm.UnderstandingProvider, reasoner llm.ReasoningProvider, records *RecordsService, maxContextTurns int) *TutoringService {
	if maxContextTurns <= 0 {
		maxContextTurns = 5
	}
	return &TutoringService{
		states:          states,
		understanding:   understanding,
		reasoner:        reasoner,
		records:         records,
		maxContextTurns: maxContextTurns,
	}
}

// ProcessQuery 处理一次多模态查询
func (s *TutoringService) ProcessQuery(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if req.SessionID == "" {
		return nil, apperrors.NewValidationError("session_id不能为空", nil)
	}
	if req.Text == "" && req.ImageURL == "" && req.AudioURL == "" {
		return nil, apperrors.NewValidationError("查询至少需要一种模态输入", nil)
	}

	logger := utils.GetLogger()
	state := s.states.GetOrCreate(req.SessionID, req.UserID)

	// 追问且未携带新图时做指代消解
	// 消解得到的图片只送给理解模型，不作为新图写入状态，
	// 引用关系在轮次创建后由 MarkReferenced 记录
	visionInput := req.ImageURL
	resolvedIndex := -1
	if req.IsFollowUp && req.ImageURL == "" {
		if resolved, idx := state.ResolveReference(req.Text); resolved != nil {
			visionInput = resolved.AssetURL
			resolvedIndex = idx
			logger.Infof("指代消解: 会话 %s 关联到视觉上下文 #%d", req.SessionID, idx)
		}
	}

	degraded := false
	understanding, err := s.understanding.FuseModalities(ctx, llm.UnderstandingRequest{
		VisionInput: visionInput,
		TextInput:   req.Text,
		AudioInput:  req.AudioURL,
		Instruction: "请理解这个数学问题并分析解题思路",
	})
	if err != nil {
		// 理解失败不中断管道，退回纯文本继续推理
		logger.Warnf("多模态理解失败，降级为纯文本: %v", err)
		degraded = true
		understanding = &llm.UnderstandingResult{
			Understanding: req.Text,
			Confidence:    0.3,
		}
	}

	window := state.GetContextWindow(s.maxContextTurns, true)
	reasoningContext := buildReasoningContext(understanding, window)

	domain := req.Domain
	if domain == "" {
		domain = "math"
	}

	reasoningResult, err := s.reasoner.Reason(ctx, llm.ReasoningRequest{
		Query:   understanding.Understanding,
		Context: reasoningContext,
		Domain:  domain,
	})
	if err != nil {
		// 推理失败同样记录轮次，保证轮次ID连续、状态可追溯
		logger.Errorf("推理失败: %v", err)
		degraded = true
		reasoningResult = &llm.ReasoningResult{
			Answer:     "抱歉，当前无法完成推理，请稍后重试。",
			Confidence: 0,
		}
	}

	turn := state.AddTurn(
		models.UserInput{
			Text:          req.Text,
			ImageAssetURL: req.ImageURL,
			AudioAssetURL: req.AudioURL,
		},
		models.AssistantOutput{
			Content:               reasoningResult.Answer,
			VisualizationCommands: reasoningResult.VisualizationCommands,
			ReasoningTrace:        reasoningResult.ReasoningTrace,
		},
		understanding.CrossModalAlignment,
	)

	if resolvedIndex >= 0 {
		state.MarkReferenced(resolvedIndex, turn.TurnID)
	}

	// 持久化失败只影响重启后的恢复，不影响本次响应
	if err := s.states.Persist(req.SessionID); err != nil {
		logger.Warnf("会话 %s 持久化失败: %v", req.SessionID, err)
	}

	s.recordQuestion(req, turn.TurnID)

	activeIdx, hasActive := state.ActiveVisualIndex()
	return &QueryResult{
		SessionID:             req.SessionID,
		TurnID:                turn.TurnID,
		Answer:                reasoningResult.Answer,
		ReasoningTrace:        reasoningResult.ReasoningTrace,
		VisualizationCommands: reasoningResult.VisualizationCommands,
		CrossModalAlignment:   understanding.CrossModalAlignment,
		ContextSummary: ContextSummary{
			TotalVisualContexts: state.VisualContextCount(),
			TotalTurns:          state.TurnCount(),
			ActiveVisualIndex:   activeIdx,
			HasActiveVisual:     hasActive,
		},
		Confidence: reasoningResult.Confidence,
		ModelUsed:  understanding.ModelUsed,
		Degraded:   degraded,
	}, nil
}

// GetSessionHistory 获取会话的完整状态投影
// 内存中没有时尝试从持久化后端恢复
func (s *TutoringService) GetSessionHistory(sessionID string) (*models.ConversationSnapshot, error) {
	state, err := s.states.Load(sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("会话不存在: %s", sessionID), nil)
	}
	return state.Snapshot(), nil
}

// ClearSession 清空会话状态
func (s *TutoringService) ClearSession(sessionID string) bool {
	return s.states.Remove(sessionID)
}

// ActiveSessionsCount 返回内存中的活跃会话数
func (s *TutoringService) ActiveSessionsCount() int {
	return s.states.ActiveSessionCount()
}

func (s *TutoringService) recordQuestion(req QueryRequest, turnID int) {
	if s.records == nil || req.UserID == "" {
		return
	}

	title := req.Text
	if len([]rune(title)) > 30 {
		title = string([]rune(title)[:30]) + "..."
	}

	if _, err := s.records.AddRecord(req.UserID, title, "", models.RecordTypeQuestion, map[string]interface{}{
		"session_id": req.SessionID,
		"turn_id":    turnID,
	}); err != nil {
		utils.GetLogger().Warnf("写入学习记录失败: %v", err)
	}
}

// buildReasoningContext 把多模态上下文窗口转换为推理提供者的角色消息
//
// 历史轮次展开为user/assistant消息对，带图的轮次附上当轮的图像理解；
// 当前的理解结果作为最后一条system消息
func buildReasoningContext(understanding *llm.UnderstandingResult, window models.ContextWindow) []llm.ContextMessage {
	messages := make([]llm.ContextMessage, 0, len(window.RecentTurns)*2+1)

	for _, turn := range window.RecentTurns {
		userMsg := llm.ContextMessage{
			Role:    "user",
			Content: turn.UserInput.Text,
		}
		if turn.UserInput.ImageAssetURL != "" {
			extra := map[string]interface{}{"has_visual": true}
			if turn.CrossModalAlignment != nil {
				if desc, ok := turn.CrossModalAlignment["image_understanding"].(string); ok {
					extra["visual_understanding"] = desc
				}
			}
			userMsg.Extra = extra
		}
		messages = append(messages, userMsg)
		messages = append(messages, llm.ContextMessage{
			Role:    "assistant",
			Content: turn.AssistantOutput.Content,
		})
	}

	systemMsg := llm.ContextMessage{
		Role:    "system",
		Content: fmt.Sprintf("当前多模态理解: %s", understanding.Understanding),
	}
	if understanding.CrossModalAlignment != nil {
		systemMsg.Extra = map[string]interface{}{
			"cross_modal_alignment": understanding.CrossModalAlignment,
		}
	}
	messages = append(messages, systemMsg)

	return messages
}
