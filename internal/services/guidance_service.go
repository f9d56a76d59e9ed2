// internal/services/guidance_service.go
package services

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/TutorMindMCP/internal/errors"
	"github.com/Corphon/TutorMindMCP/internal/models"
)

// GuidanceService 根据题目生成结构化导学步骤
// 几何题附带3D演示数据；针对某一步骤追问时生成详细子步骤
type GuidanceService struct {
	mu       sync.RWMutex
	sessions map[string]*models.GuidanceResult
}

// NewGuidanceService 创建导学步骤服务
func NewGuidanceService() *GuidanceService {
	return &GuidanceService{
		sessions: make(map[string]*models.GuidanceResult),
	}
}

// GenerateSteps 生成导学步骤
// sessionID 为空时新建会话；stepID 非空时针对该步骤生成详细讲解
func (s *GuidanceService) GenerateSteps(userID, content, sessionID, stepID string) (*models.GuidanceResult, error) {
	if content == "" {
		return nil, apperrors.NewValidationError("题目内容不能为空", nil)
	}

	if sessionID == "" {
		sessionID = fmt.Sprintf("session_%s_%s", userID, uuid.NewString()[:8])
	}

	var steps []models.GuidanceStep
	if stepID != "" {
		steps = detailSteps(stepID)
	} else {
		steps = initialSteps(content)
	}

	result := &models.GuidanceResult{
		SessionID: sessionID,
		TaskID:    "task_" + uuid.NewString()[:12],
		Steps:     steps,
	}

	s.mu.Lock()
	s.sessions[sessionID] = result
	s.mu.Unlock()

	return result, nil
}

// GetSession 获取某会话最近生成的导学步骤
func (s *GuidanceService) GetSession(sessionID string) (*models.GuidanceResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, exists := s.sessions[sessionID]
	if !exists {
		return nil, apperrors.NewNotFoundError("导学会话不存在: "+sessionID, nil)
	}
	return result, nil
}

// initialSteps 首次生成的导学步骤，几何题走画图分支
func initialSteps(content string) []models.GuidanceStep {
	isGeometry := false
	for _, keyword := range []string{"三角形", "四边形", "圆", "立方体", "平面", "辅助线", "几何"} {
		if strings.Contains(content, keyword) {
			isGeometry = true
			break
		}
	}

	steps := []models.GuidanceStep{
		{
			StepID: "step_read_problem",
			Title:  "📖 第一步：读懂题目",
			Hint:   fmt.Sprintf("原题：%s\n\n请先用自己的话复述一遍，确保理解了题目要求。", content),
			Type:   "understand",
		},
	}

	if isGeometry {
		steps = append(steps,
			models.GuidanceStep{
				StepID:   "step_draw_diagram",
				Title:    "📐 第二步：画出图形并标注",
				Hint:     "在纸上（或脑海中）画出题目描述的几何图形，标出已知的点、线、面。下方的 3D 演示可以帮你建立空间感。",
				Type:     "geometry",
				Geometry: geometryDemo(),
			},
			models.GuidanceStep{
				StepID: "step_find_relation",
				Title:  "🔍 第三步：找出几何关系",
				Hint:   "观察图形中的角度、边长、面积等要素之间的关系。有时需要添加辅助线来构造特殊三角形或发现隐藏关系。",
				Type:   "analysis",
			},
			models.GuidanceStep{
				StepID: "step_solve",
				Title:  "✍️ 第四步：列式求解",
				Hint:   "根据几何关系列出方程或比例式，逐步求出未知量。记得每一步都写清楚理由。",
				Type:   "solve",
			},
		)
	} else {
		steps = append(steps,
			models.GuidanceStep{
				StepID: "step_list_knowns",
				Title:  "📝 第二步：列出已知和未知",
				Hint:   "把题目给出的条件（已知）和需要求的量（未知）分别列出来。",
				Type:   "analysis",
			},
			models.GuidanceStep{
				StepID: "step_choose_method",
				Title:  "💡 第三步：选择解题方法",
				Hint:   "想一想可以用哪些方法：代数、图像、公式、或者分类讨论？先选一个最有把握的试试。",
				Type:   "method",
			},
			models.GuidanceStep{
				StepID: "step_try_solve",
				Title:  "✍️ 第四步：动手尝试",
				Hint:   "开始解题！遇到卡顿的地方，可以点击「追问」按钮获得提示。",
				Type:   "solve",
			},
		)
	}

	steps = append(steps, models.GuidanceStep{
		StepID: "step_verify",
		Title:  "✅ 最后一步：检验答案",
		Hint:   "把答案代回原题检验，或者换个方法再算一遍，确保结果正确。",
		Type:   "verify",
	})

	return steps
}

// detailSteps 针对某个步骤的详细子步骤
func detailSteps(parentStepID string) []models.GuidanceStep {
	return []models.GuidanceStep{
		{
			StepID: parentStepID + "_detail_1",
			Title:  fmt.Sprintf("📌 关于「%s」的详细提示", parentStepID),
			Hint:   "这一步的核心是理解题目中隐含的条件。试着把抽象的描述转化为具体的图形或公式。",
			Type:   "detail",
		},
		{
			StepID: parentStepID + "_detail_2",
			Title:  "🔍 常见误区提醒",
			Hint:   "注意不要遗漏单位、符号，以及边界情况（比如分母为 0、负数开方等）。",
			Type:   "hint",
		},
		{
			StepID: parentStepID + "_example",
			Title:  "📚 相似例题参考",
			Hint:   "可以回忆一下之前做过的类似题目，或者查阅教材中的例题。",
			Type:   "example",
		},
	}
}

// geometryDemo 通用的"辅助线 + 点 + 面"3D演示组合
func geometryDemo() *models.GeometryDemo {
	return &models.GeometryDemo{
		Objects: []models.GeometryObject{
			{
				Type:   "line",
				Coords: [][]float64{{0.0, 0.0, 0.0}, {1.2, 1.2, 0.8}},
				Label:  "辅助线 AC",
				StepID: "step_draw_diagram",
				Color:  "#1E88E5",
			},
			{
				Type:   "point",
				Coords: [][]float64{{0.0, 0.0, 0.0}},
				Label:  "点 A",
				StepID: "step_draw_diagram",
			},
			{
				Type:   "point",
				Coords: [][]float64{{1.2, 1.2, 0.8}},
				Label:  "点 C",
				StepID: "step_draw_diagram",
			},
			{
				Type: "face",
				Coords: [][]float64{
					{0.0, 0.0, 0.0},
					{1.2, 0.0, 0.0},
					{1.2, 1.2, 0.0},
					{0.0, 1.2, 0.0},
				},
				Label:  "底面 ABCD",
				StepID: "step_draw_diagram",
				Color:  "#FFA726",
			},
		},
	}
}
