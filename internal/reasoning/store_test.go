// internal/reasoning/store_test.go
package reasoning

import (
	"fmt"
	"testing"

	apperrors "github.com/Corphon/TutorMindMCP/internal/errors"
	"github.com/Corphon/TutorMindMCP/internal/models"
)

// memoryBackend 测试用的内存持久化后端
type memoryBackend struct {
	snapshots map[string]*models.ConversationSnapshot
	failSave  bool
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{snapshots: make(map[string]*models.ConversationSnapshot)}
}

func (b *memoryBackend) SaveState(sessionID string, snap *models.ConversationSnapshot) error {
	if b.failSave {
		return fmt.Errorf("模拟保存失败")
	}
	b.snapshots[sessionID] = snap
	return nil
}

func (b *memoryBackend) LoadState(sessionID string) (*models.ConversationSnapshot, error) {
	snap, exists := b.snapshots[sessionID]
	if !exists {
		return nil, nil
	}
	return snap, nil
}

func TestGetOrCreateIdempotent(t *testing.T) {
	store := NewStateStore(nil)

	state1 := store.GetOrCreate("session_001", "user_001")
	state1.AddTurn(models.UserInput{Text: "问题"}, models.AssistantOutput{Content: "回答"}, nil)

	state2 := store.GetOrCreate("session_001", "user_001")
	if state1 != state2 {
		t.Fatal("相同sessionID应该返回同一个状态实例")
	}
	if state2.TurnCount() != 1 {
		t.Errorf("重复GetOrCreate不应该丢失已有轮次，轮次数为%d", state2.TurnCount())
	}

	if store.ActiveSessionCount() != 1 {
		t.Errorf("活跃会话数应该是1，实际为%d", store.ActiveSessionCount())
	}
}

func TestGetUnknownSession(t *testing.T) {
	store := NewStateStore(nil)

	_, err := store.Get("unknown_session")
	if err == nil {
		t.Fatal("获取未知会话应该返回错误")
	}
	if !apperrors.IsInvalidSessionError(err) {
		t.Errorf("应该返回InvalidSession错误，实际为: %v", err)
	}
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	backend := newMemoryBackend()
	store := NewStateStore(backend)

	state := store.GetOrCreate("session_001", "user_001")
	state.AddTurn(
		models.UserInput{Text: "这个三角形怎么求面积?", ImageAssetURL: "http://example.com/a.jpg"},
		models.AssistantOutput{Content: "用底乘高除以二"},
		nil,
	)

	if err := store.Persist("session_001"); err != nil {
		t.Fatalf("持久化失败: %v", err)
	}

	// 新的store模拟进程重启
	store2 := NewStateStore(backend)
	restored, err := store2.Load("session_001")
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if restored == nil {
		t.Fatal("应该从后端恢复出会话状态")
	}
	if restored.TurnCount() != 1 || restored.VisualContextCount() != 1 {
		t.Errorf("恢复的状态不完整: 轮次=%d 图片=%d", restored.TurnCount(), restored.VisualContextCount())
	}
}

func TestLoadMemoryWins(t *testing.T) {
	backend := newMemoryBackend()
	// 后端有一份旧快照
	backend.snapshots["session_001"] = &models.ConversationSnapshot{
		SessionID: "session_001",
		UserID:    "user_001",
	}

	store := NewStateStore(backend)
	state := store.GetOrCreate("session_001", "user_001")
	state.AddTurn(models.UserInput{Text: "新问题"}, models.AssistantOutput{Content: "回答"}, nil)

	// 内存副本优先，不被旧快照覆盖
	loaded, err := store.Load("session_001")
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if loaded != state {
		t.Fatal("内存中已有副本时Load应该返回内存副本")
	}
	if loaded.TurnCount() != 1 {
		t.Errorf("内存副本的轮次不应该被覆盖，轮次数为%d", loaded.TurnCount())
	}
}

func TestLoadUnknownSession(t *testing.T) {
	store := NewStateStore(newMemoryBackend())

	state, err := store.Load("unknown_session")
	if err != nil {
		t.Fatalf("加载不存在的会话不应该报错: %v", err)
	}
	if state != nil {
		t.Error("不存在的会话应该返回nil")
	}
}

func TestPersistFailureNonFatal(t *testing.T) {
	backend := newMemoryBackend()
	backend.failSave = true
	store := NewStateStore(backend)

	state := store.GetOrCreate("session_001", "user_001")
	state.AddTurn(models.UserInput{Text: "问题"}, models.AssistantOutput{Content: "回答"}, nil)

	// 持久化失败返回错误，但内存副本不受影响
	if err := store.Persist("session_001"); err == nil {
		t.Error("后端保存失败时Persist应该返回错误")
	}
	if state.TurnCount() != 1 {
		t.Error("持久化失败不应该影响内存状态")
	}
}

func TestPersistUnknownSessionNoOp(t *testing.T) {
	store := NewStateStore(newMemoryBackend())

	if err := store.Persist("unknown_session"); err != nil {
		t.Errorf("持久化未知会话应该是空操作，实际报错: %v", err)
	}
}

func TestRemoveSession(t *testing.T) {
	store := NewStateStore(nil)

	store.GetOrCreate("session_001", "user_001")

	if !store.Remove("session_001") {
		t.Error("移除存在的会话应该返回true")
	}
	if store.Remove("session_001") {
		t.Error("重复移除应该返回false")
	}
	if store.ActiveSessionCount() != 0 {
		t.Errorf("移除后活跃会话数应该是0，实际为%d", store.ActiveSessionCount())
	}
}
