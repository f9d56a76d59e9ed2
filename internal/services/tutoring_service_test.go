// internal/services/tutoring_service_test.go
package services

import (
	"context"
	"fmt"
	"testing"

	apperrors "github.com/Corphon/TutorMindMCP/internal/errors"
	"github.com/Corphon/TutorMindMCP/internal/llm"
	"github.com/Corphon/TutorMindMCP/internal/reasoning"
)

// stubUnderstanding 记录请求的理解提供者桩
type stubUnderstanding struct {
	lastRequest llm.UnderstandingRequest
	fail        bool
}

func (s *stubUnderstanding) Initialize(config map[string]string) error { return nil }
func (s *stubUnderstanding) GetName() string                           { return "stub" }

func (s *stubUnderstanding) FuseModalities(ctx context.Context, req llm.UnderstandingRequest) (*llm.UnderstandingResult, error) {
	s.lastRequest = req
	if s.fail {
		return nil, fmt.Errorf("模拟理解失败")
	}
	result := &llm.UnderstandingResult{
		Understanding: "理解: " + req.TextInput,
		Confidence:    0.9,
		ModelUsed:     "stub-model",
	}
	if req.VisionInput != "" {
		result.CrossModalAlignment = map[string]interface{}{
			"image_understanding": "几何题图片",
		}
	}
	return result, nil
}

// stubReasoner 记录请求的推理提供者桩
type stubReasoner struct {
	lastRequest llm.ReasoningRequest
	fail        bool
}

func (s *stubReasoner) Initialize(config map[string]string) error { return nil }
func (s *stubReasoner) GetName() string                           { return "stub" }

func (s *stubReasoner) Reason(ctx context.Context, req llm.ReasoningRequest) (*llm.ReasoningResult, error) {
	s.lastRequest = req
	if s.fail {
		return nil, fmt.Errorf("模拟推理失败")
	}
	return &llm.ReasoningResult{
		Answer:     "回答: " + req.Query,
		Confidence: 0.85,
	}, nil
}

func newTestTutoring() (*TutoringService, *stubUnderstanding, *stubReasoner) {
	understanding := &stubUnderstanding{}
	reasoner := &stubReasoner{}
	states := reasoning.NewStateStore(nil)
	return NewTutoringService(states, understanding, reasoner, nil, 5), understanding, reasoner
}

func TestProcessQueryValidation(t *testing.T) {
	svc, _, _ := newTestTutoring()
	ctx := context.Background()

	_, err := svc.ProcessQuery(ctx, QueryRequest{Text: "问题"})
	if !apperrors.IsValidationError(err) {
		t.Errorf("缺少session_id应该返回验证错误，实际为: %v", err)
	}

	_, err = svc.ProcessQuery(ctx, QueryRequest{SessionID: "s1"})
	if !apperrors.IsValidationError(err) {
		t.Errorf("无任何模态输入应该返回验证错误，实际为: %v", err)
	}
}

func TestProcessQueryFirstRound(t *testing.T) {
	svc, _, _ := newTestTutoring()

	result, err := svc.ProcessQuery(context.Background(), QueryRequest{
		SessionID: "s1",
		UserID:    "u1",
		Text:      "这个三角形怎么求面积?",
		ImageURL:  "http://example.com/triangle.jpg",
	})
	if err != nil {
		t.Fatalf("处理查询失败: %v", err)
	}

	if result.TurnID != 1 {
		t.Errorf("第一轮TurnID应该是1，实际为%d", result.TurnID)
	}
	if result.ContextSummary.TotalVisualContexts != 1 {
		t.Errorf("视觉池大小应该是1，实际为%d", result.ContextSummary.TotalVisualContexts)
	}
	if !result.ContextSummary.HasActiveVisual || result.ContextSummary.ActiveVisualIndex != 0 {
		t.Errorf("新图应该成为活跃图片: %+v", result.ContextSummary)
	}
	if result.Degraded {
		t.Error("正常流程不应该标记为降级")
	}
}

func TestProcessQueryFollowUpResolvesReference(t *testing.T) {
	svc, understanding, _ := newTestTutoring()
	ctx := context.Background()

	if _, err := svc.ProcessQuery(ctx, QueryRequest{
		SessionID: "s1",
		UserID:    "u1",
		Text:      "这个三角形怎么求面积?",
		ImageURL:  "http://example.com/triangle.jpg",
	}); err != nil {
		t.Fatalf("第一轮失败: %v", err)
	}

	result, err := svc.ProcessQuery(ctx, QueryRequest{
		SessionID:  "s1",
		UserID:     "u1",
		Text:       "那个三角形，三边长度已知呢?",
		IsFollowUp: true,
	})
	if err != nil {
		t.Fatalf("追问失败: %v", err)
	}

	// 消解出的图片送给理解模型
	if understanding.lastRequest.VisionInput != "http://example.com/triangle.jpg" {
		t.Errorf("追问应该把消解出的图片送给理解模型，实际为: %s", understanding.lastRequest.VisionInput)
	}

	// 但不产生新的视觉上下文
	if result.ContextSummary.TotalVisualContexts != 1 {
		t.Errorf("追问不应该追加视觉上下文，池大小为%d", result.ContextSummary.TotalVisualContexts)
	}

	snapshot, err := svc.GetSessionHistory("s1")
	if err != nil {
		t.Fatalf("获取历史失败: %v", err)
	}
	refs := snapshot.VisualContexts[0].ReferencedInTurns
	if len(refs) != 2 || refs[0] != 1 || refs[1] != 2 {
		t.Errorf("图片的引用轮次应该是[1 2]，实际为%v", refs)
	}
	// 追问轮次本身不携带图片输入
	if snapshot.Turns[1].UserInput.ImageAssetURL != "" {
		t.Error("追问轮次的用户输入不应该带图片URL")
	}
}

func TestProcessQueryUnderstandingFailureDegrades(t *testing.T) {
	svc, understanding, reasoner := newTestTutoring()
	understanding.fail = true

	result, err := svc.ProcessQuery(context.Background(), QueryRequest{
		SessionID: "s1",
		UserID:    "u1",
		Text:      "这道题怎么做?",
	})
	if err != nil {
		t.Fatalf("理解失败不应该中断管道: %v", err)
	}

	if !result.Degraded {
		t.Error("理解失败应该标记为降级")
	}
	// 降级后用原始文本继续推理
	if reasoner.lastRequest.Query != "这道题怎么做?" {
		t.Errorf("降级后应该用原始文本推理，实际为: %s", reasoner.lastRequest.Query)
	}
	if result.TurnID != 1 {
		t.Errorf("降级流程仍然应该记录轮次，TurnID为%d", result.TurnID)
	}
}

func TestProcessQueryReasoningFailureStillRecordsTurn(t *testing.T) {
	svc, _, reasoner := newTestTutoring()
	reasoner.fail = true
	ctx := context.Background()

	result, err := svc.ProcessQuery(ctx, QueryRequest{
		SessionID: "s1",
		UserID:    "u1",
		Text:      "这道题怎么做?",
	})
	if err != nil {
		t.Fatalf("推理失败不应该中断管道: %v", err)
	}

	if !result.Degraded {
		t.Error("推理失败应该标记为降级")
	}
	if result.Answer == "" {
		t.Error("推理失败时应该给出兜底回答")
	}

	// 轮次依然被记录，后续轮次ID连续
	result2, err := svc.ProcessQuery(ctx, QueryRequest{SessionID: "s1", UserID: "u1", Text: "继续"})
	if err != nil {
		t.Fatalf("第二轮失败: %v", err)
	}
	if result2.TurnID != 2 {
		t.Errorf("失败轮次也应该占用轮次ID，第二轮TurnID应该是2，实际为%d", result2.TurnID)
	}
}

func TestGetSessionHistoryUnknown(t *testing.T) {
	svc, _, _ := newTestTutoring()

	_, err := svc.GetSessionHistory("unknown")
	if !apperrors.IsNotFoundError(err) {
		t.Errorf("未知会话应该返回未找到错误，实际为: %v", err)
	}
}

func TestClearSession(t *testing.T) {
	svc, _, _ := newTestTutoring()

	if _, err := svc.ProcessQuery(context.Background(), QueryRequest{
		SessionID: "s1", UserID: "u1", Text: "问题",
	}); err != nil {
		t.Fatalf("处理查询失败: %v", err)
	}

	if !svc.ClearSession("s1") {
		t.Error("清空存在的会话应该返回true")
	}
	if svc.ClearSession("s1") {
		t.Error("重复清空应该返回false")
	}
	if svc.ActiveSessionsCount() != 0 {
		t.Errorf("清空后活跃会话数应该是0，实际为%d", svc.ActiveSessionsCount())
	}
}

func TestProcessQueryBuildsContextFromHistory(t *testing.T) {
	svc, _, reasoner := newTestTutoring()
	ctx := context.Background()

	if _, err := svc.ProcessQuery(ctx, QueryRequest{SessionID: "s1", UserID: "u1", Text: "第一个问题"}); err != nil {
		t.Fatalf("第一轮失败: %v", err)
	}
	if _, err := svc.ProcessQuery(ctx, QueryRequest{SessionID: "s1", UserID: "u1", Text: "第二个问题"}); err != nil {
		t.Fatalf("第二轮失败: %v", err)
	}

	// 第二轮推理上下文: 第一轮的user/assistant消息对 + 当前理解的system消息
	msgs := reasoner.lastRequest.Context
	if len(msgs) != 3 {
		t.Fatalf("推理上下文应该有3条消息，实际为%d", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "第一个问题" {
		t.Errorf("第一条应该是历史用户消息: %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" {
		t.Errorf("第二条应该是历史助手消息: %+v", msgs[1])
	}
	if msgs[2].Role != "system" {
		t.Errorf("最后一条应该是当前理解的system消息: %+v", msgs[2])
	}
}
