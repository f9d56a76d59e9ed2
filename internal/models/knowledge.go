// internal/models/knowledge.go
package models

import (
	"time"
)

// KnowledgeItem 表示知识库中的一个知识条目
type KnowledgeItem struct {
	ID         string                 `json:"id"`
	Title      string                 `json:"title"`
	Content    string                 `json:"content"`
	Subject    string                 `json:"subject"`    // math, physics, chemistry等
	Topics     []string               `json:"topics"`     // 涉及的知识点
	Difficulty string                 `json:"difficulty"` // easy, medium, hard
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// KnowledgeSearchResult 带相关度的搜索结果
type KnowledgeSearchResult struct {
	Item           KnowledgeItem `json:"item"`
	RelevanceScore float64       `json:"relevance_score"`
}
