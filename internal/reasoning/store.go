// internal/reasoning/store.go
package reasoning

import (
	"sync"

	apperrors "github.com/Corphon/TutorMindMCP/internal/errors"
	"github.com/Corphon/TutorMindMCP/internal/models"
	"github.com/Corphon/TutorMindMCP/internal/utils"
)

// PersistenceBackend 外部持久化协作者（如文件存储/KV库）
// SaveState 保存完整快照；LoadState 在快照不存在时返回 (nil, nil)
type PersistenceBackend interface {
	SaveState(sessionID string, snap *models.ConversationSnapshot) error
	LoadState(sessionID string) (*models.ConversationSnapshot, error)
}

// StateStore 按 sessionID 管理会话状态
//
// 惰性创建（get-or-create 语义），进程生命周期内一个会话一个条目
// 多个会话可以并发访问；单个会话内的写操作由状态自身的锁串行化
type StateStore struct {
	mu      sync.RWMutex
	states  map[string]*ConversationState
	backend PersistenceBackend // 可为nil，此时只保留内存副本
	policy  ReferencePolicy
}

// NewStateStore 创建状态管理器
func NewStateStore(backend PersistenceBackend) *StateStore {
	return &StateStore{
		states:  make(map[string]*ConversationState),
		backend: backend,
		policy:  NewKeywordReferencePolicy(),
	}
}

// SetReferencePolicy 替换指代消解策略（只影响之后创建的状态）
func (m *StateStore) SetReferencePolicy(policy ReferencePolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = policy
}

// GetOrCreate 获取或创建会话状态
// 幂等：同一 sessionID 重复调用不会丢失已有轮次
func (m *StateStore) GetOrCreate(sessionID, userID string) *ConversationState {
	m.mu.RLock()
	if state, exists := m.states[sessionID]; exists {
		m.mu.RUnlock()
		return state
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// 双重检查，避免并发创建时覆盖
	if state, exists := m.states[sessionID]; exists {
		return state
	}

	state := NewConversationState(sessionID, userID, m.policy)
	m.states[sessionID] = state
	return state
}

// Get 获取已存在的会话状态
// 会话未知时返回 InvalidSession 错误，供需要既有上下文的写操作做防御
func (m *StateStore) Get(sessionID string) (*ConversationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.states[sessionID]
	if !exists {
		return nil, apperrors.NewInvalidSessionError(sessionID)
	}
	return state, nil
}

// Persist 把会话状态交给持久化协作者保存
// 会话未知或未配置后端时为空操作；失败只记录日志不向上致命，
// 内存副本在进程生命周期内始终是权威数据
func (m *StateStore) Persist(sessionID string) error {
	m.mu.RLock()
	state, exists := m.states[sessionID]
	backend := m.backend
	m.mu.RUnlock()

	if !exists || backend == nil {
		return nil
	}

	if err := backend.SaveState(sessionID, state.Snapshot()); err != nil {
		utils.GetLogger().Warnf("持久化会话状态失败 %s: %v", sessionID, err)
		return apperrors.WrapError(err, "持久化会话状态失败", apperrors.ErrorTypeProcessing)
	}
	return nil
}

// Load 加载会话状态
// 内存中已有副本时优先返回内存副本（避免被过期快照覆盖本进程状态），
// 否则从持久化协作者恢复；两处都没有时返回 (nil, nil)
func (m *StateStore) Load(sessionID string) (*ConversationState, error) {
	m.mu.RLock()
	if state, exists := m.states[sessionID]; exists {
		m.mu.RUnlock()
		return state, nil
	}
	backend := m.backend
	m.mu.RUnlock()

	if backend == nil {
		return nil, nil
	}

	snap, err := backend.LoadState(sessionID)
	if err != nil {
		return nil, apperrors.WrapError(err, "加载会话状态失败", apperrors.ErrorTypeProcessing)
	}
	if snap == nil {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// 恢复期间可能有并发请求已创建内存副本，内存优先
	if state, exists := m.states[sessionID]; exists {
		return state, nil
	}

	state := RestoreState(snap, m.policy)
	m.states[sessionID] = state
	return state, nil
}

// Remove 从内存中移除会话（清空会话接口使用）
func (m *StateStore) Remove(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.states[sessionID]; !exists {
		return false
	}
	delete(m.states, sessionID)
	return true
}

// ActiveSessionCount 返回内存中的会话数量
func (m *StateStore) ActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}
