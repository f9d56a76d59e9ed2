// internal/reasoning/policy.go
package reasoning

import (
	"strings"

	"github.com/Corphon/TutorMindMCP/internal/models"
)

// ReferencePolicy 视觉指代消解策略
// 把"那个三角形"这类指代解析为视觉上下文池中的某个索引
// 隔离成接口是为了以后能换成真正的指代消解模型而不动状态容器
type ReferencePolicy interface {
	// Resolve 返回命中的视觉上下文索引
	// 池为空或无法命中时返回 (-1, false)
	Resolve(queryText string, visuals []models.VisualContext, activeIndex *int) (int, bool)
}

// KeywordReferencePolicy 基于关键词的简单指代消解
// 规则按顺序匹配，首个命中生效：
//  1. "第一"/"最开始" → 最早上传的图片
//  2. "那个"/"这个"/"刚才" → 当前活跃图片
//  3. 默认 → 最近上传的图片
type KeywordReferencePolicy struct {
	ordinalFirstMarkers []string
	proximalMarkers     []string
}

// NewKeywordReferencePolicy 创建默认关键词策略
func NewKeywordReferencePolicy() *KeywordReferencePolicy {
	return &KeywordReferencePolicy{
		ordinalFirstMarkers: []string{"第一", "最开始"},
		proximalMarkers:     []string{"那个", "这个", "刚才"},
	}
}

// Resolve 实现 ReferencePolicy
func (p *KeywordReferencePolicy) Resolve(queryText string, visuals []models.VisualContext, activeIndex *int) (int, bool) {
	if len(visuals) == 0 {
		return -1, false
	}

	if containsAny(queryText, p.ordinalFirstMarkers) {
		return 0, true
	}

	if containsAny(queryText, p.proximalMarkers) {
		if activeIndex != nil {
			return *activeIndex, true
		}
		// 活跃指针未设置时落到默认规则
	}

	// 默认返回最新的
	return len(visuals) - 1, true
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
