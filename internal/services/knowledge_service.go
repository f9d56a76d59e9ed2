// internal/services/knowledge_service.go
package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/TutorMindMCP/internal/errors"
	"github.com/Corphon/TutorMindMCP/internal/models"
	"github.com/Corphon/TutorMindMCP/internal/storage"
	"github.com/Corphon/TutorMindMCP/internal/utils"
)

// KnowledgeService 管理教育知识条目，支持按知识点和关键词检索
//
// 内存索引为主，文件存储做持久化；条目规模预期在千级以内，
// 不引入向量数据库
type KnowledgeService struct {
	mu    sync.RWMutex
	items map[string]models.KnowledgeItem

	indexBySubject map[string][]string
	indexByTopic   map[string][]string

	store *storage.FileStore
}

const knowledgeDir = "knowledge"

// NewKnowledgeService 创建知识库服务并加载已持久化的条目
// store 可为nil，此时为纯内存模式
func NewKnowledgeService(store *storage.FileStore) *KnowledgeService {
	s := &KnowledgeService{
		items:          make(map[string]models.KnowledgeItem),
		indexBySubject: make(map[string][]string),
		indexByTopic:   make(map[string][]string),
		store:          store,
	}

	s.loadPersisted()

	if len(s.items) == 0 {
		s.seedInitialData()
	}

	return s
}

// AddItem 添加知识条目
func (s *KnowledgeService) AddItem(title, content, subject string, topics []string, difficulty string, metadata map[string]interface{}) (*models.KnowledgeItem, error) {
	if title == "" || content == "" {
		return nil, apperrors.NewValidationError("知识条目的标题和内容不能为空", nil)
	}
	if difficulty == "" {
		difficulty = "medium"
	}

	item := models.KnowledgeItem{
		ID:         "kb_" + uuid.NewString(),
		Title:      title,
		Content:    content,
		Subject:    subject,
		Topics:     topics,
		Difficulty: difficulty,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	}

	s.mu.Lock()
	s.items[item.ID] = item
	s.indexBySubject[subject] = append(s.indexBySubject[subject], item.ID)
	for _, topic := range topics {
		s.indexByTopic[topic] = append(s.indexByTopic[topic], item.ID)
	}
	s.mu.Unlock()

	s.persist(item)

	return &item, nil
}

// GetItem 获取指定知识条目
func (s *KnowledgeService) GetItem(itemID string) (*models.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[itemID]
	if !exists {
		return nil, apperrors.NewNotFoundError("知识条目不存在: "+itemID, nil)
	}
	return &item, nil
}

// SearchByTopic 按知识点搜索，结果按命中知识点数量降序
func (s *KnowledgeService) SearchByTopic(topics []string, subject string, limit int) []models.KnowledgeItem {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var results []models.KnowledgeItem
	for _, topic := range topics {
		for _, id := range s.indexByTopic[topic] {
			if seen[id] {
				continue
			}
			seen[id] = true
			item, exists := s.items[id]
			if !exists {
				continue
			}
			if subject != "" && item.Subject != subject {
				continue
			}
			results = append(results, item)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return topicOverlap(results[i].Topics, topics) > topicOverlap(results[j].Topics, topics)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Search 混合搜索：关键词匹配和知识点索引合并去重，按相关度降序
func (s *KnowledgeService) Search(query string, topics []string, subject string, limit int) []models.KnowledgeSearchResult {
	if limit <= 0 {
		limit = 5
	}

	combined := make(map[string]models.KnowledgeSearchResult)

	// 关键词匹配：标题/内容包含查询词
	if query != "" {
		s.mu.RLock()
		for _, item := range s.items {
			if subject != "" && item.Subject != subject {
				continue
			}
			score := keywordScore(item, query)
			if score > 0 {
				combined[item.ID] = models.KnowledgeSearchResult{Item: item, RelevanceScore: score}
			}
		}
		s.mu.RUnlock()
	}

	// 知识点索引命中的条目以固定相关度并入
	for _, item := range s.SearchByTopic(topics, subject, limit) {
		if _, exists := combined[item.ID]; !exists {
			combined[item.ID] = models.KnowledgeSearchResult{Item: item, RelevanceScore: 0.7}
		}
	}

	results := make([]models.KnowledgeSearchResult, 0, len(combined))
	for _, r := range combined {
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func topicOverlap(itemTopics, queryTopics []string) int {
	count := 0
	for _, t := range itemTopics {
		for _, q := range queryTopics {
			if t == q {
				count++
			}
		}
	}
	return count
}

func keywordScore(item models.KnowledgeItem, query string) float64 {
	if strings.Contains(item.Title, query) {
		return 0.92
	}
	if strings.Contains(item.Content, query) {
		return 0.8
	}
	for _, topic := range item.Topics {
		if strings.Contains(query, topic) {
			return 0.75
		}
	}
	return 0
}

func (s *KnowledgeService) persist(item models.KnowledgeItem) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveJSON(knowledgeDir, item.ID+".json", item); err != nil {
		utils.GetLogger().Warnf("持久化知识条目失败 %s: %v", item.ID, err)
	}
}

func (s *KnowledgeService) loadPersisted() {
	if s.store == nil {
		return
	}

	files, err := s.store.ListFiles(knowledgeDir)
	if err != nil {
		utils.GetLogger().Warnf("加载知识库失败: %v", err)
		return
	}

	for _, filename := range files {
		if !strings.HasSuffix(filename, ".json") {
			continue
		}
		var item models.KnowledgeItem
		if err := s.store.LoadJSON(knowledgeDir, filename, &item); err != nil {
			utils.GetLogger().Warnf("加载知识条目失败 %s: %v", filename, err)
			continue
		}
		s.items[item.ID] = item
		s.indexBySubject[item.Subject] = append(s.indexBySubject[item.Subject], item.ID)
		for _, topic := range item.Topics {
			s.indexByTopic[topic] = append(s.indexByTopic[topic], item.ID)
		}
	}
}

// seedInitialData 空库时填充基础数学知识
func (s *KnowledgeService) seedInitialData() {
	seeds := []struct {
		title      string
		content    string
		topics     []string
		difficulty string
		metadata   map[string]interface{}
	}{
		{
			title:      "一元二次方程求根公式",
			content:    "对于方程 ax² + bx + c = 0，求根公式为 x = (-b ± √(b²-4ac)) / 2a",
			topics:     []string{"代数", "一元二次方程", "求根公式"},
			difficulty: "medium",
			metadata:   map[string]interface{}{"formula": "x = (-b ± √(b²-4ac)) / 2a"},
		},
		{
			title:      "因式分解法",
			content:    "当方程可以因式分解时，可以将其写成 (x-a)(x-b)=0 的形式",
			topics:     []string{"代数", "因式分解", "一元二次方程"},
			difficulty: "easy",
		},
		{
			title:      "三角形面积公式",
			content:    "三角形面积 S = (1/2) × 底 × 高；已知三边时可用海伦公式 S = √(p(p-a)(p-b)(p-c))",
			topics:     []string{"几何", "三角形", "面积"},
			difficulty: "easy",
			metadata:   map[string]interface{}{"formula": "S = (1/2) × 底 × 高"},
		},
	}

	for _, seed := range seeds {
		if _, err := s.AddItem(seed.title, seed.content, "math", seed.topics, seed.difficulty, seed.metadata); err != nil {
			utils.GetLogger().Warnf("初始化知识条目失败: %v", err)
		}
	}
}
