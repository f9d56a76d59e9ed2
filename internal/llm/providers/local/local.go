// internal/llm/providers/local/local.go
// 本地规则版提供者，无需任何API密钥即可运行
// 用于离线演示和测试，覆盖理解与推理两个角色
package local

import (
	"context"
	"fmt"
	"strings"

	"github.com/Corphon/TutorMindMCP/internal/llm"
	"github.com/Corphon/TutorMindMCP/internal/reasoning"
)

func init() {
	llm.RegisterUnderstanding("local", func() llm.UnderstandingProvider {
		return &Understanding{}
	})
	llm.RegisterReasoning("local", func() llm.ReasoningProvider {
		return &Reasoner{}
	})
}

// Understanding 基于规则的多模态理解
// 不做真正的视觉理解，只根据输入的模态组合生成确定性的描述
type Understanding struct{}

// Initialize 本地提供者无需配置
func (u *Understanding) Initialize(config map[string]string) error {
	return nil
}

// GetName 返回提供者名称
func (u *Understanding) GetName() string {
	return "Local-Rules"
}

// FuseModalities 组合各模态输入生成理解摘要
func (u *Understanding) FuseModalities(ctx context.Context, req llm.UnderstandingRequest) (*llm.UnderstandingResult, error) {
	var parts []string

	if req.VisionInput != "" {
		if isGeometryText(req.TextInput) {
			parts = append(parts, "图片中包含几何图形")
		} else {
			parts = append(parts, "收到一张题目图片")
		}
	}
	if req.TextInput != "" {
		parts = append(parts, fmt.Sprintf("用户提问: %s", req.TextInput))
	}
	if req.AudioInput != "" {
		parts = append(parts, "收到一段语音补充")
	}
	if len(parts) == 0 {
		parts = append(parts, "未收到有效输入")
	}

	result := &llm.UnderstandingResult{
		Understanding: strings.Join(parts, "；"),
		Confidence:    0.75,
		ModelUsed:     "local-rules",
	}

	if req.VisionInput != "" {
		description := "题目图片"
		if isGeometryText(req.TextInput) {
			description = "几何题图片"
		}
		result.CrossModalAlignment = map[string]interface{}{
			"image_understanding": description,
			"detected_objects":    []map[string]interface{}{},
		}
		result.ExtractedStructure = map[string]interface{}{
			"problem_type": problemType(req.TextInput),
		}
	}

	return result, nil
}

// Reasoner 基于规则的推理提供者
// 按固定流程构造推理链：问题理解、上下文关联、知识检索、推理生成、答案生成
type Reasoner struct{}

// Initialize 本地提供者无需配置
func (r *Reasoner) Initialize(config map[string]string) error {
	return nil
}

// GetName 返回提供者名称
func (r *Reasoner) GetName() string {
	return "Local-Rules"
}

// Reason 执行规则推理并返回完整推理轨迹
func (r *Reasoner) Reason(ctx context.Context, req llm.ReasoningRequest) (*llm.ReasoningResult, error) {
	chain := reasoning.NewReasoningChain(req.Query)

	understanding := map[string]interface{}{
		"intent":       "question",
		"is_follow_up": len(req.Context) > 0,
		"topics":       detectTopics(req.Query),
	}
	chain.AddStep("understanding", "理解用户问题", understanding, 0.92)

	if len(req.Context) > 0 {
		chain.AddStep("context_linking", "关联上下文信息", map[string]interface{}{
			"topic_continuation": true,
			"context_turns":      len(req.Context),
		}, 0.88)
	}

	knowledge := retrieveKnowledge(req.Query, req.Domain)
	chain.AddStep("knowledge_retrieval", "检索相关知识", knowledge, 0.9)

	visualCommands := GenerateVisualCommands(req.Query)
	chain.AddStep("reasoning", "生成推理过程", map[string]interface{}{
		"method":          knowledge["method"],
		"visual_commands": visualCommands,
	}, 0.87)

	answer := buildAnswer(req.Query, len(req.Context) > 0, knowledge)
	chain.SetFinalAnswer(answer)
	chain.AddStep("answer_generation", "生成最终答案", map[string]interface{}{
		"content": answer,
	}, 0.9)

	return &llm.ReasoningResult{
		Answer:                answer,
		ReasoningTrace:        chain.Trace(),
		VisualizationCommands: visualCommands,
		Confidence:            chain.OverallConfidence(),
	}, nil
}

// isGeometryText 检测是否为几何题
func isGeometryText(text string) bool {
	for _, keyword := range []string{"几何", "三角形", "四边形", "立方体"} {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func problemType(text string) string {
	if isGeometryText(text) {
		return "geometry"
	}
	if strings.Contains(text, "方程") {
		return "equation"
	}
	return "general"
}

func detectTopics(query string) []string {
	var topics []string
	if isGeometryText(query) {
		topics = append(topics, "几何")
	}
	if strings.Contains(query, "方程") {
		topics = append(topics, "方程求解")
	}
	if strings.Contains(query, "面积") {
		topics = append(topics, "面积计算")
	}
	if len(topics) == 0 {
		topics = append(topics, "数学")
	}
	return topics
}

func retrieveKnowledge(query, domain string) map[string]interface{} {
	if isGeometryText(query) {
		return map[string]interface{}{
			"related_concepts": []string{"三角形面积", "辅助线"},
			"formulas":         []string{"S = (1/2) × 底 × 高"},
			"method":           "几何分析法",
		}
	}
	if strings.Contains(query, "方程") {
		return map[string]interface{}{
			"related_concepts": []string{"一元二次方程", "求根公式"},
			"formulas":         []string{"x = (-b ± √(b²-4ac)) / 2a"},
			"method":           "求根公式法",
		}
	}
	return map[string]interface{}{
		"related_concepts": []string{},
		"formulas":         []string{},
		"method":           "分步讲解法",
	}
}

func buildAnswer(query string, isFollowUp bool, knowledge map[string]interface{}) string {
	method, _ := knowledge["method"].(string)
	if isFollowUp {
		return fmt.Sprintf("继续刚才的讲解，关于「%s」：我们采用%s，请先回顾上一步的结论，再看下面的推导。", query, method)
	}
	return fmt.Sprintf("关于「%s」：建议采用%s，先梳理已知条件，再逐步推导。", query, method)
}

// GenerateVisualCommands 根据题目关键词生成几何可视化指令
// 非几何题返回空列表
func GenerateVisualCommands(query string) []map[string]interface{} {
	var commands []map[string]interface{}

	if strings.Contains(query, "连接") || strings.Contains(query, "辅助线") {
		commands = append(commands, map[string]interface{}{
			"type":        "draw_line",
			"from":        "A",
			"to":          "C",
			"color":       "red",
			"animate":     true,
			"duration_ms": 1000,
			"label":       "辅助线AC",
		})
	}

	if strings.Contains(query, "角") {
		commands = append(commands, map[string]interface{}{
			"type":    "highlight_angle",
			"points":  []string{"A", "C", "B"},
			"color":   "yellow",
			"opacity": 0.3,
		})
	}

	if strings.Contains(query, "三角形") {
		commands = append(commands, map[string]interface{}{
			"type":    "draw_polygon",
			"points":  []string{"A", "B", "C"},
			"color":   "blue",
			"fill":    true,
			"opacity": 0.2,
		})
	}

	if strings.Contains(query, "标注") || strings.Contains(query, "长度") {
		commands = append(commands, map[string]interface{}{
			"type":     "add_label",
			"target":   "AB",
			"text":     "长度 = x",
			"position": "center",
		})
	}

	return commands
}
