// cmd/demo/main.go
// 离线演示：三轮多模态可追问导学对话
// 使用本地规则提供者，无需API密钥
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/Corphon/TutorMindMCP/internal/llm"
	"github.com/Corphon/TutorMindMCP/internal/reasoning"
	"github.com/Corphon/TutorMindMCP/internal/services"

	_ "github.com/Corphon/TutorMindMCP/internal/llm/providers/local"
)

func main() {
	fmt.Println("🚀 TutorMindMCP 多模态可追问推理演示")
	fmt.Println("========================================")

	understanding, err := llm.GetUnderstandingProvider("local", nil)
	if err != nil {
		log.Fatalf("初始化理解提供者失败: %v", err)
	}
	reasoner, err := llm.GetReasoningProvider("local", nil)
	if err != nil {
		log.Fatalf("初始化推理提供者失败: %v", err)
	}

	// 纯内存状态，不挂持久化后端
	stateStore := reasoning.NewStateStore(nil)
	tutoring := services.NewTutoringService(stateStore, understanding, reasoner, nil, 5)

	ctx := context.Background()
	sessionID := "demo_session_001"
	userID := "student_123"

	// Round 1: 上传图片 + 提问
	fmt.Println("\n【Round 1】")
	fmt.Println("User: [上传几何图] 这个三角形怎么求面积?")

	result1, err := tutoring.ProcessQuery(ctx, services.QueryRequest{
		SessionID: sessionID,
		UserID:    userID,
		Text:      "这个三角形怎么求面积?",
		ImageURL:  "http://example.com/triangle.jpg",
	})
	if err != nil {
		log.Fatalf("第一轮处理失败: %v", err)
	}
	printResult(result1)

	// Round 2: 追问，不上传图片但引用Round 1的图
	fmt.Println("\n【Round 2 - 追问】")
	fmt.Println("User: 那个三角形，如果我只知道三边长度呢?")

	result2, err := tutoring.ProcessQuery(ctx, services.QueryRequest{
		SessionID:  sessionID,
		UserID:     userID,
		Text:       "那个三角形，如果我只知道三边长度呢?",
		IsFollowUp: true,
	})
	if err != nil {
		log.Fatalf("第二轮处理失败: %v", err)
	}
	printResult(result2)

	// Round 3: 继续追问
	fmt.Println("\n【Round 3 - 继续追问】")
	fmt.Println("User: 用海伦公式怎么算?")

	result3, err := tutoring.ProcessQuery(ctx, services.QueryRequest{
		SessionID:  sessionID,
		UserID:     userID,
		Text:       "用海伦公式怎么算?",
		IsFollowUp: true,
	})
	if err != nil {
		log.Fatalf("第三轮处理失败: %v", err)
	}
	printResult(result3)

	fmt.Println("\n✅ 三轮对话完成，视觉上下文保持一致")

	snapshot, err := tutoring.GetSessionHistory(sessionID)
	if err != nil {
		log.Fatalf("获取会话历史失败: %v", err)
	}
	fmt.Printf("📦 会话快照: %d 轮对话, %d 个视觉上下文\n", len(snapshot.Turns), len(snapshot.VisualContexts))
	if len(snapshot.VisualContexts) > 0 {
		fmt.Printf("🖼️  第一张图的引用轮次: %v\n", snapshot.VisualContexts[0].ReferencedInTurns)
	}
}

func printResult(result *services.QueryResult) {
	fmt.Printf("\nAssistant: %s\n", result.Answer)
	fmt.Printf("📈 多模态上下文: 图片=%d 轮次=%d 活跃图片=#%d\n",
		result.ContextSummary.TotalVisualContexts,
		result.ContextSummary.TotalTurns,
		result.ContextSummary.ActiveVisualIndex)
	if len(result.VisualizationCommands) > 0 {
		fmt.Printf("🎨 可视化指令: %d 条\n", len(result.VisualizationCommands))
	}
}
