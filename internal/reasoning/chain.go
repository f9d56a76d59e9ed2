// internal/reasoning/chain.go
package reasoning

import (
	"time"

	"github.com/google/uuid"
)

// ReasoningStep 推理链中的一个步骤
type ReasoningStep struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"` // understanding, context_linking, knowledge_retrieval, reasoning, answer_generation
	Description string      `json:"description"`
	Result      interface{} `json:"result"`
	Confidence  float64     `json:"confidence"`
	Timestamp   time.Time   `json:"timestamp"`
}

// ReasoningChain 一次推理的完整逻辑链
type ReasoningChain struct {
	ID          string
	Query       string
	Steps       []ReasoningStep
	FinalAnswer string
	CreatedAt   time.Time
}

// NewReasoningChain 创建推理链
func NewReasoningChain(query string) *ReasoningChain {
	return &ReasoningChain{
		ID:        uuid.NewString(),
		Query:     query,
		CreatedAt: time.Now(),
	}
}

// AddStep 追加一个推理步骤
func (c *ReasoningChain) AddStep(stepType, description string, result interface{}, confidence float64) ReasoningStep {
	step := ReasoningStep{
		ID:          uuid.NewString(),
		Type:        stepType,
		Description: description,
		Result:      result,
		Confidence:  confidence,
		Timestamp:   time.Now(),
	}
	c.Steps = append(c.Steps, step)
	return step
}

// SetFinalAnswer 设置最终答案
func (c *ReasoningChain) SetFinalAnswer(answer string) {
	c.FinalAnswer = answer
}

// Trace 导出推理轨迹
func (c *ReasoningChain) Trace() []map[string]interface{} {
	trace := make([]map[string]interface{}, 0, len(c.Steps))
	for _, step := range c.Steps {
		trace = append(trace, map[string]interface{}{
			"id":          step.ID,
			"type":        step.Type,
			"description": step.Description,
			"result":      step.Result,
			"confidence":  step.Confidence,
			"timestamp":   step.Timestamp.Format(time.RFC3339),
		})
	}
	return trace
}

// OverallConfidence 所有步骤置信度的平均值
func (c *ReasoningChain) OverallConfidence() float64 {
	if len(c.Steps) == 0 {
		return 0
	}
	var sum float64
	for _, step := range c.Steps {
		sum += step.Confidence
	}
	return sum / float64(len(c.Steps))
}
