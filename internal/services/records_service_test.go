// internal/services/records_service_test.go
package services

import (
	"testing"

	apperrors "github.com/Corphon/TutorMindMCP/internal/errors"
	"github.com/Corphon/TutorMindMCP/internal/models"
)

func TestAddRecordValidation(t *testing.T) {
	svc := NewRecordsService(nil)

	_, err := svc.AddRecord("", "标题", "", models.RecordTypeQuestion, nil)
	if !apperrors.IsValidationError(err) {
		t.Errorf("空user_id应该返回验证错误，实际为: %v", err)
	}
}

func TestGetRecordsPagination(t *testing.T) {
	svc := NewRecordsService(nil)

	for i := 0; i < 25; i++ {
		if _, err := svc.AddRecord("u1", "记录", "", models.RecordTypeQuestion, nil); err != nil {
			t.Fatalf("添加记录失败: %v", err)
		}
	}

	page1 := svc.GetRecords("u1", 1, 20, "")
	if page1.Total != 25 {
		t.Errorf("记录总数应该是25，实际为%d", page1.Total)
	}
	if len(page1.Records) != 20 {
		t.Errorf("第一页应该有20条，实际为%d", len(page1.Records))
	}

	page2 := svc.GetRecords("u1", 2, 20, "")
	if len(page2.Records) != 5 {
		t.Errorf("第二页应该有5条，实际为%d", len(page2.Records))
	}

	// 越界页返回空列表
	page3 := svc.GetRecords("u1", 3, 20, "")
	if len(page3.Records) != 0 {
		t.Errorf("越界页应该返回空列表，实际为%d条", len(page3.Records))
	}
}

func TestGetRecordsTypeFilter(t *testing.T) {
	svc := NewRecordsService(nil)

	svc.AddRecord("u1", "提问", "", models.RecordTypeQuestion, nil)
	svc.AddRecord("u1", "练习", "", models.RecordTypePractice, nil)
	svc.AddRecord("u1", "练习2", "", models.RecordTypePractice, nil)

	page := svc.GetRecords("u1", 1, 20, "practice")
	if page.Total != 2 {
		t.Errorf("practice类型应该有2条，实际为%d", page.Total)
	}
	for _, record := range page.Records {
		if record.Type != models.RecordTypePractice {
			t.Errorf("过滤结果中混入了其他类型: %s", record.Type)
		}
	}
}

func TestGetStatisticsEmpty(t *testing.T) {
	svc := NewRecordsService(nil)

	stats := svc.GetStatistics("unknown_user")
	if stats.StudyDays != 0 || stats.CompletedProblems != 0 {
		t.Errorf("无记录用户的统计应该全为0: %+v", stats)
	}
}

func TestGetStatistics(t *testing.T) {
	svc := NewRecordsService(nil)

	svc.AddRecord("u1", "提问", "", models.RecordTypeQuestion, map[string]interface{}{
		"duration_minutes": float64(30),
		"topics":           []interface{}{"几何", "三角形"},
	})
	svc.AddRecord("u1", "练习", "", models.RecordTypePractice, map[string]interface{}{
		"duration_minutes": float64(30),
		"topics":           []interface{}{"几何"},
	})

	stats := svc.GetStatistics("u1")
	if stats.StudyDays != 1 {
		t.Errorf("同一天的记录学习天数应该是1，实际为%d", stats.StudyDays)
	}
	if stats.TotalHours != 1.0 {
		t.Errorf("总时长应该是1.0小时，实际为%.1f", stats.TotalHours)
	}
	if stats.CompletedProblems != 1 {
		t.Errorf("完成练习数应该是1，实际为%d", stats.CompletedProblems)
	}
	if stats.MasteredTopics != 2 {
		t.Errorf("涉及知识点应该是2个，实际为%d", stats.MasteredTopics)
	}
	if stats.TypeDistribution["question"] != 1 || stats.TypeDistribution["practice"] != 1 {
		t.Errorf("类型分布不正确: %v", stats.TypeDistribution)
	}
	if len(stats.RecentActivity) != 1 || stats.RecentActivity[0].Count != 2 {
		t.Errorf("最近活动汇总不正确: %+v", stats.RecentActivity)
	}
}
