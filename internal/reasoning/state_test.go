// internal/reasoning/state_test.go
package reasoning

import (
	"testing"

	"github.com/Corphon/TutorMindMCP/internal/models"
)

func newTestState() *ConversationState {
	return NewConversationState("session_001", "user_001", nil)
}

func addImageTurn(s *ConversationState, text, imageURL string) models.ReasoningTurn {
	return s.AddTurn(
		models.UserInput{Text: text, ImageAssetURL: imageURL},
		models.AssistantOutput{Content: "回答"},
		map[string]interface{}{"image_understanding": "几何题图片"},
	)
}

func TestAddTurnIDMonotonic(t *testing.T) {
	s := newTestState()

	for i := 1; i <= 5; i++ {
		turn := s.AddTurn(models.UserInput{Text: "问题"}, models.AssistantOutput{Content: "回答"}, nil)
		if turn.TurnID != i {
			t.Fatalf("第%d轮的TurnID应该是%d，实际为%d", i, i, turn.TurnID)
		}
	}

	if s.TurnCount() != 5 {
		t.Errorf("轮次数应该是5，实际为%d", s.TurnCount())
	}
}

func TestAddTurnWithImage(t *testing.T) {
	s := newTestState()

	turn := addImageTurn(s, "这个三角形怎么求面积?", "http://example.com/a.jpg")

	if s.VisualContextCount() != 1 {
		t.Fatalf("视觉上下文池大小应该是1，实际为%d", s.VisualContextCount())
	}

	idx, ok := s.ActiveVisualIndex()
	if !ok || idx != 0 {
		t.Errorf("新图应该成为活跃图片，活跃索引=(%d, %v)", idx, ok)
	}

	snap := s.Snapshot()
	visual := snap.VisualContexts[0]
	if visual.AssetURL != "http://example.com/a.jpg" {
		t.Errorf("视觉上下文URL不正确: %s", visual.AssetURL)
	}
	if visual.Description != "几何题图片" {
		t.Errorf("视觉上下文描述应来自对齐信息，实际为: %s", visual.Description)
	}
	if len(visual.ReferencedInTurns) != 1 || visual.ReferencedInTurns[0] != turn.TurnID {
		t.Errorf("新图的引用轮次应该是[%d]，实际为%v", turn.TurnID, visual.ReferencedInTurns)
	}
}

func TestAddTurnNewImageBecomesActive(t *testing.T) {
	s := newTestState()

	addImageTurn(s, "第一题", "http://example.com/a.jpg")
	addImageTurn(s, "第二题", "http://example.com/b.jpg")
	addImageTurn(s, "第三题", "http://example.com/c.jpg")

	if s.VisualContextCount() != 3 {
		t.Fatalf("视觉上下文池大小应该是3，实际为%d", s.VisualContextCount())
	}

	idx, ok := s.ActiveVisualIndex()
	if !ok || idx != 2 {
		t.Errorf("最新上传的图片应该是活跃图片，活跃索引=(%d, %v)", idx, ok)
	}
}

func TestResolveReferencePrecedence(t *testing.T) {
	s := newTestState()

	addImageTurn(s, "第一题", "http://example.com/a.jpg")
	addImageTurn(s, "第二题", "http://example.com/b.jpg")
	addImageTurn(s, "第三题", "http://example.com/c.jpg")

	// 把活跃指针移到中间的图
	s.MarkReferenced(1, 3)

	cases := []struct {
		query    string
		expected int
	}{
		{"第一张图里的三角形", 0},
		{"最开始那道题", 0}, // 序数规则优先于近指规则
		{"那个三角形的面积", 1},
		{"这个图形", 1},
		{"刚才的图", 1},
		{"继续讲解", 2}, // 无指代关键词时取最新
	}

	for _, tc := range cases {
		visual, idx := s.ResolveReference(tc.query)
		if visual == nil {
			t.Fatalf("查询 %q 应该命中视觉上下文", tc.query)
		}
		if idx != tc.expected {
			t.Errorf("查询 %q 应该解析到索引%d，实际为%d", tc.query, tc.expected, idx)
		}
	}
}

func TestResolveReferenceIsPure(t *testing.T) {
	s := newTestState()

	addImageTurn(s, "第一题", "http://example.com/a.jpg")
	addImageTurn(s, "第二题", "http://example.com/b.jpg")

	before := s.Snapshot()
	s.ResolveReference("第一张图")
	after := s.Snapshot()

	if len(after.VisualContexts[0].ReferencedInTurns) != len(before.VisualContexts[0].ReferencedInTurns) {
		t.Error("ResolveReference不应该修改引用轮次")
	}
	if *after.ActiveVisualIndex != *before.ActiveVisualIndex {
		t.Error("ResolveReference不应该移动活跃指针")
	}
}

func TestResolveReferenceEmptyPool(t *testing.T) {
	s := newTestState()

	visual, idx := s.ResolveReference("那个三角形")
	if visual != nil || idx != -1 {
		t.Errorf("空池时应该返回(nil, -1)，实际为(%v, %d)", visual, idx)
	}
}

func TestMarkReferenced(t *testing.T) {
	s := newTestState()

	addImageTurn(s, "第一题", "http://example.com/a.jpg")
	addImageTurn(s, "第二题", "http://example.com/b.jpg")

	s.MarkReferenced(0, 3)

	snap := s.Snapshot()
	refs := snap.VisualContexts[0].ReferencedInTurns
	if len(refs) != 2 || refs[1] != 3 {
		t.Errorf("第一张图的引用轮次应该是[1 3]，实际为%v", refs)
	}

	idx, ok := s.ActiveVisualIndex()
	if !ok || idx != 0 {
		t.Errorf("MarkReferenced应该把目标图设为活跃图片，活跃索引=(%d, %v)", idx, ok)
	}
}

func TestMarkReferencedOutOfRange(t *testing.T) {
	s := newTestState()

	addImageTurn(s, "第一题", "http://example.com/a.jpg")
	before := s.Snapshot()

	// 越界时静默忽略
	s.MarkReferenced(5, 2)
	s.MarkReferenced(-1, 2)

	after := s.Snapshot()
	if len(after.VisualContexts[0].ReferencedInTurns) != len(before.VisualContexts[0].ReferencedInTurns) {
		t.Error("越界的MarkReferenced不应该修改任何状态")
	}
	if *after.ActiveVisualIndex != *before.ActiveVisualIndex {
		t.Error("越界的MarkReferenced不应该移动活跃指针")
	}
}

func TestGetContextWindowZeroTurns(t *testing.T) {
	s := newTestState()

	addImageTurn(s, "第一题", "http://example.com/a.jpg")

	window := s.GetContextWindow(0, true)
	if len(window.RecentTurns) != 0 {
		t.Errorf("maxTurns为0时轮次列表应该为空，实际为%d条", len(window.RecentTurns))
	}
	if len(window.VisualContexts) != 0 {
		t.Errorf("窗口内没有轮次时不应该带任何引用图片，实际为%d张", len(window.VisualContexts))
	}
	// 活跃图片无条件包含
	if window.ActiveVisual == nil {
		t.Error("活跃图片应该始终包含在窗口中")
	}
}

func TestGetContextWindowOnlyReferencedAssets(t *testing.T) {
	s := newTestState()

	// 第1轮带图A，之后5轮纯文本把第1轮挤出窗口
	addImageTurn(s, "第一题", "http://example.com/a.jpg")
	for i := 0; i < 5; i++ {
		s.AddTurn(models.UserInput{Text: "继续"}, models.AssistantOutput{Content: "好的"}, nil)
	}

	window := s.GetContextWindow(3, true)
	if len(window.RecentTurns) != 3 {
		t.Fatalf("窗口应该包含3轮，实际为%d轮", len(window.RecentTurns))
	}
	if len(window.VisualContexts) != 0 {
		t.Errorf("图A未被窗口内轮次引用，不应该出现在窗口中，实际有%d张", len(window.VisualContexts))
	}
	// 但活跃图片仍然是图A，无条件包含
	if window.ActiveVisual == nil || window.ActiveVisual.AssetURL != "http://example.com/a.jpg" {
		t.Error("活跃图片应该无条件包含")
	}
}

func TestGetContextWindowReferencedByRecentTurn(t *testing.T) {
	s := newTestState()

	addImageTurn(s, "第一题", "http://example.com/a.jpg")
	for i := 0; i < 5; i++ {
		s.AddTurn(models.UserInput{Text: "继续"}, models.AssistantOutput{Content: "好的"}, nil)
	}
	// 第7轮重新引用图A
	turn := s.AddTurn(models.UserInput{Text: "那个三角形呢"}, models.AssistantOutput{Content: "好的"}, nil)
	s.MarkReferenced(0, turn.TurnID)

	window := s.GetContextWindow(3, true)
	if len(window.VisualContexts) != 1 {
		t.Fatalf("图A被窗口内第%d轮引用，应该回到窗口中，实际有%d张", turn.TurnID, len(window.VisualContexts))
	}
	if window.VisualContexts[0].AssetURL != "http://example.com/a.jpg" {
		t.Errorf("窗口中的图片URL不正确: %s", window.VisualContexts[0].AssetURL)
	}
}

func TestGetContextWindowExcludeVisual(t *testing.T) {
	s := newTestState()

	s.AddTurn(
		models.UserInput{Text: "语音题", AudioAssetURL: "http://example.com/a.mp3", AudioTranscription: "底边是5高是8"},
		models.AssistantOutput{Content: "好的"},
		nil,
	)
	addImageTurn(s, "图片题", "http://example.com/a.jpg")

	window := s.GetContextWindow(5, false)
	if len(window.VisualContexts) != 0 {
		t.Errorf("includeVisual为false时不应该带视觉池，实际有%d张", len(window.VisualContexts))
	}
	// 音频不受includeVisual开关影响
	if len(window.AudioContexts) != 1 {
		t.Errorf("音频上下文应该始终包含，实际有%d段", len(window.AudioContexts))
	}
}

func TestFollowUpScenario(t *testing.T) {
	// 完整的可追问场景: 第1轮上传图片，第2轮追问不带图，
	// 调用方用ResolveReference+MarkReferenced关联到第1轮的图
	s := newTestState()

	turn1 := addImageTurn(s, "这个三角形怎么求面积?", "http://example.com/triangle.jpg")
	if turn1.TurnID != 1 {
		t.Fatalf("第一轮TurnID应该是1，实际为%d", turn1.TurnID)
	}

	// 追问: 解析指代但不写入新图
	visual, idx := s.ResolveReference("那个三角形，三边长度已知呢?")
	if visual == nil || idx != 0 {
		t.Fatalf("追问应该解析到第一张图，实际为(%v, %d)", visual, idx)
	}

	turn2 := s.AddTurn(
		models.UserInput{Text: "那个三角形，三边长度已知呢?"},
		models.AssistantOutput{Content: "可以用海伦公式"},
		nil,
	)
	s.MarkReferenced(idx, turn2.TurnID)

	// 图片池保持1张，不产生重复条目
	if s.VisualContextCount() != 1 {
		t.Fatalf("追问不应该追加新的视觉上下文，池大小应该是1，实际为%d", s.VisualContextCount())
	}

	snap := s.Snapshot()
	refs := snap.VisualContexts[0].ReferencedInTurns
	if len(refs) != 2 || refs[0] != 1 || refs[1] != 2 {
		t.Errorf("图片的引用轮次应该是[1 2]，实际为%v", refs)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := newTestState()

	addImageTurn(s, "第一题", "http://example.com/a.jpg")
	s.AddTurn(
		models.UserInput{Text: "语音补充", AudioAssetURL: "http://example.com/a.mp3", AudioTranscription: "底边是5"},
		models.AssistantOutput{Content: "好的"},
		nil,
	)

	snap := s.Snapshot()
	restored := RestoreState(snap, nil)

	if restored.SessionID() != s.SessionID() || restored.UserID() != s.UserID() {
		t.Error("恢复后的会话标识不一致")
	}
	if restored.TurnCount() != s.TurnCount() {
		t.Errorf("恢复后的轮次数不一致: %d != %d", restored.TurnCount(), s.TurnCount())
	}
	if restored.VisualContextCount() != s.VisualContextCount() {
		t.Errorf("恢复后的视觉池大小不一致: %d != %d", restored.VisualContextCount(), s.VisualContextCount())
	}

	origIdx, origOK := s.ActiveVisualIndex()
	restIdx, restOK := restored.ActiveVisualIndex()
	if origIdx != restIdx || origOK != restOK {
		t.Errorf("恢复后的活跃索引不一致: (%d,%v) != (%d,%v)", restIdx, restOK, origIdx, origOK)
	}

	// 恢复的状态可以继续追加轮次
	turn := restored.AddTurn(models.UserInput{Text: "继续"}, models.AssistantOutput{Content: "好的"}, nil)
	if turn.TurnID != 3 {
		t.Errorf("恢复后新轮次的TurnID应该延续为3，实际为%d", turn.TurnID)
	}
}

func TestDetectedObjectsFromJSON(t *testing.T) {
	s := newTestState()

	// JSON反序列化后的对齐信息是[]interface{}形态
	alignment := map[string]interface{}{
		"image_understanding": "三角形",
		"detected_objects": []interface{}{
			map[string]interface{}{"label": "triangle", "confidence": 0.9},
		},
	}
	s.AddTurn(models.UserInput{Text: "题目", ImageAssetURL: "http://example.com/a.jpg"}, models.AssistantOutput{}, alignment)

	snap := s.Snapshot()
	objects := snap.VisualContexts[0].DetectedObjects
	if len(objects) != 1 {
		t.Fatalf("应该解析出1个检测对象，实际为%d", len(objects))
	}
	if objects[0]["label"] != "triangle" {
		t.Errorf("检测对象内容不正确: %v", objects[0])
	}
}
