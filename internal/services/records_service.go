// internal/services/records_service.go
package services

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/TutorMindMCP/internal/errors"
	"github.com/Corphon/TutorMindMCP/internal/models"
	"github.com/Corphon/TutorMindMCP/internal/storage"
	"github.com/Corphon/TutorMindMCP/internal/utils"
)

// RecordsService 管理学习记录和统计数据
// 按用户分文件持久化：records/<userID>.json
type RecordsService struct {
	mu      sync.RWMutex
	records map[string][]models.LearningRecord

	store *storage.FileStore
}

const recordsDir = "records"

// NewRecordsService 创建学习记录服务
// store 可为nil，此时为纯内存模式
func NewRecordsService(store *storage.FileStore) *RecordsService {
	return &RecordsService{
		records: make(map[string][]models.LearningRecord),
		store:   store,
	}
}

// AddRecord 添加学习记录
func (s *RecordsService) AddRecord(userID, title, description string, recordType models.RecordType, metadata map[string]interface{}) (*models.LearningRecord, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id不能为空", nil)
	}

	record := models.LearningRecord{
		ID:          "record_" + uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Type:        recordType,
		Timestamp:   time.Now(),
		Metadata:    metadata,
	}

	s.mu.Lock()
	s.loadUserLocked(userID)
	s.records[userID] = append(s.records[userID], record)
	userRecords := append([]models.LearningRecord{}, s.records[userID]...)
	s.mu.Unlock()

	s.persist(userID, userRecords)

	return &record, nil
}

// GetRecords 分页获取学习记录，按时间倒序
// recordType 为空时不过滤类型
func (s *RecordsService) GetRecords(userID string, page, pageSize int, recordType string) models.RecordPage {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	s.mu.Lock()
	s.loadUserLocked(userID)
	userRecords := append([]models.LearningRecord{}, s.records[userID]...)
	s.mu.Unlock()

	if recordType != "" {
		filtered := userRecords[:0]
		for _, r := range userRecords {
			if string(r.Type) == recordType {
				filtered = append(filtered, r)
			}
		}
		userRecords = filtered
	}

	sort.SliceStable(userRecords, func(i, j int) bool {
		return userRecords[i].Timestamp.After(userRecords[j].Timestamp)
	})

	total := len(userRecords)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return models.RecordPage{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Records:  userRecords[start:end],
	}
}

// GetStatistics 统计用户的学习数据
func (s *RecordsService) GetStatistics(userID string) models.LearningStatistics {
	s.mu.Lock()
	s.loadUserLocked(userID)
	userRecords := append([]models.LearningRecord{}, s.records[userID]...)
	s.mu.Unlock()

	if len(userRecords) == 0 {
		return models.LearningStatistics{}
	}

	dates := make(map[string]bool)
	typeCounts := make(map[string]int)
	topics := make(map[string]bool)
	var totalMinutes float64

	for _, record := range userRecords {
		dates[record.Timestamp.Format("2006-01-02")] = true
		typeCounts[string(record.Type)]++

		if record.Metadata != nil {
			if minutes, ok := toFloat(record.Metadata["duration_minutes"]); ok {
				totalMinutes += minutes
			}
			if rawTopics, ok := record.Metadata["topics"].([]interface{}); ok {
				for _, t := range rawTopics {
					if topic, ok := t.(string); ok {
						topics[topic] = true
					}
				}
			}
		}
	}

	return models.LearningStatistics{
		StudyDays:         len(dates),
		TotalHours:        math.Round(totalMinutes/60*10) / 10,
		CompletedProblems: typeCounts[string(models.RecordTypePractice)],
		MasteredTopics:    len(topics),
		TypeDistribution:  typeCounts,
		RecentActivity:    recentActivity(userRecords, 7),
	}
}

// recentActivity 最近N天的按日活动汇总，日期倒序
func recentActivity(records []models.LearningRecord, days int) []models.DailyActivity {
	cutoff := time.Now().AddDate(0, 0, -days)

	daily := make(map[string]*models.DailyActivity)
	for _, record := range records {
		if record.Timestamp.Before(cutoff) {
			continue
		}
		dateKey := record.Timestamp.Format("2006-01-02")
		activity, exists := daily[dateKey]
		if !exists {
			activity = &models.DailyActivity{
				Date:  dateKey,
				Types: make(map[string]int),
			}
			daily[dateKey] = activity
		}
		activity.Count++
		activity.Types[string(record.Type)]++
	}

	result := make([]models.DailyActivity, 0, len(daily))
	for _, activity := range daily {
		result = append(result, *activity)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date > result[j].Date
	})
	return result
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// loadUserLocked 惰性加载用户的持久化记录，调用方必须持有写锁
func (s *RecordsService) loadUserLocked(userID string) {
	if _, exists := s.records[userID]; exists {
		return
	}
	s.records[userID] = []models.LearningRecord{}

	if s.store == nil {
		return
	}
	if !s.store.FileExists(recordsDir, userID+".json") {
		return
	}

	var loaded []models.LearningRecord
	if err := s.store.LoadJSON(recordsDir, userID+".json", &loaded); err != nil {
		utils.GetLogger().Warnf("加载学习记录失败 %s: %v", userID, err)
		return
	}
	s.records[userID] = loaded
}

func (s *RecordsService) persist(userID string, records []models.LearningRecord) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveJSON(recordsDir, userID+".json", records); err != nil {
		utils.GetLogger().Warnf("持久化学习记录失败 %s: %v", userID, err)
	}
}
