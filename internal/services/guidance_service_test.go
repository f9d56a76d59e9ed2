// internal/services/guidance_service_test.go
package services

import (
	"testing"

	apperrors "github.com/Corphon/TutorMindMCP/internal/errors"
)

func TestGenerateStepsValidation(t *testing.T) {
	svc := NewGuidanceService()

	_, err := svc.GenerateSteps("u1", "", "", "")
	if !apperrors.IsValidationError(err) {
		t.Errorf("空题目应该返回验证错误，实际为: %v", err)
	}
}

func TestGenerateGeometrySteps(t *testing.T) {
	svc := NewGuidanceService()

	result, err := svc.GenerateSteps("u1", "在三角形ABC中，连接辅助线AC求面积", "", "")
	if err != nil {
		t.Fatalf("生成导学步骤失败: %v", err)
	}

	if result.SessionID == "" || result.TaskID == "" {
		t.Error("结果应该包含会话ID和任务ID")
	}
	// 几何题: 读题 + 画图 + 找关系 + 求解 + 检验
	if len(result.Steps) != 5 {
		t.Fatalf("几何题应该生成5个步骤，实际为%d", len(result.Steps))
	}

	var hasGeometry bool
	for _, step := range result.Steps {
		if step.Type == "geometry" {
			hasGeometry = true
			if step.Geometry == nil || len(step.Geometry.Objects) == 0 {
				t.Error("几何步骤应该携带3D演示数据")
			}
		}
	}
	if !hasGeometry {
		t.Error("几何题应该包含画图步骤")
	}
	if result.Steps[len(result.Steps)-1].Type != "verify" {
		t.Error("最后一步应该是检验")
	}
}

func TestGenerateGeneralSteps(t *testing.T) {
	svc := NewGuidanceService()

	result, err := svc.GenerateSteps("u1", "求解方程 x²+5x+6=0", "", "")
	if err != nil {
		t.Fatalf("生成导学步骤失败: %v", err)
	}

	if len(result.Steps) != 5 {
		t.Fatalf("通用题应该生成5个步骤，实际为%d", len(result.Steps))
	}
	for _, step := range result.Steps {
		if step.Type == "geometry" {
			t.Error("非几何题不应该包含画图步骤")
		}
	}
}

func TestGenerateDetailSteps(t *testing.T) {
	svc := NewGuidanceService()

	first, err := svc.GenerateSteps("u1", "三角形面积", "", "")
	if err != nil {
		t.Fatalf("首次生成失败: %v", err)
	}

	// 针对某一步追问，复用会话ID
	detail, err := svc.GenerateSteps("u1", "这一步不懂", first.SessionID, "step_draw_diagram")
	if err != nil {
		t.Fatalf("生成详细步骤失败: %v", err)
	}

	if detail.SessionID != first.SessionID {
		t.Error("追问应该保持会话ID不变")
	}
	if len(detail.Steps) != 3 {
		t.Fatalf("详细讲解应该生成3个子步骤，实际为%d", len(detail.Steps))
	}
	if detail.Steps[0].StepID != "step_draw_diagram_detail_1" {
		t.Errorf("子步骤ID应该带父步骤前缀，实际为: %s", detail.Steps[0].StepID)
	}
}

func TestGetGuidanceSession(t *testing.T) {
	svc := NewGuidanceService()

	result, err := svc.GenerateSteps("u1", "三角形面积", "", "")
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}

	loaded, err := svc.GetSession(result.SessionID)
	if err != nil {
		t.Fatalf("获取会话失败: %v", err)
	}
	if loaded.TaskID != result.TaskID {
		t.Error("获取的会话应该是最近一次生成的结果")
	}

	_, err = svc.GetSession("missing_session")
	if !apperrors.IsNotFoundError(err) {
		t.Errorf("不存在的会话应该返回未找到错误，实际为: %v", err)
	}
}
