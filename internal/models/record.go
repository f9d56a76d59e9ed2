// internal/models/record.go
package models

import (
	"time"
)

// RecordType 学习记录类型
type RecordType string

const (
	RecordTypeQuestion    RecordType = "question"    // 提问
	RecordTypePractice    RecordType = "practice"    // 练习
	RecordTypeReview      RecordType = "review"      // 复习
	RecordTypeAchievement RecordType = "achievement" // 成就
)

// LearningRecord 表示一条学习记录
type LearningRecord struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Type        RecordType             `json:"type"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// RecordPage 分页后的学习记录
type RecordPage struct {
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Records  []LearningRecord `json:"records"`
}

// DailyActivity 某一天的学习活动汇总
type DailyActivity struct {
	Date  string         `json:"date"`
	Count int            `json:"count"`
	Types map[string]int `json:"types"`
}

// LearningStatistics 学习统计数据
type LearningStatistics struct {
	StudyDays         int             `json:"study_days"`
	TotalHours        float64         `json:"total_hours"`
	CompletedProblems int             `json:"completed_problems"`
	MasteredTopics    int             `json:"mastered_topics"`
	TypeDistribution  map[string]int  `json:"type_distribution,omitempty"`
	RecentActivity    []DailyActivity `json:"recent_activity,omitempty"`
}
