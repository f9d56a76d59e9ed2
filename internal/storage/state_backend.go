// internal/storage/state_backend.go
package storage

import (
	"fmt"

	"github.com/Corphon/TutorMindMCP/internal/models"
)

// StateBackend 基于 FileStore 的会话快照持久化
// 每个会话一个文件：sessions/<sessionID>.json
type StateBackend struct {
	store *FileStore
	dir   string
}

// NewStateBackend 创建会话持久化后端
func NewStateBackend(store *FileStore) *StateBackend {
	return &StateBackend{
		store: store,
		dir:   "sessions",
	}
}

// SaveState 保存会话快照
func (b *StateBackend) SaveState(sessionID string, snap *models.ConversationSnapshot) error {
	if snap == nil {
		return fmt.Errorf("会话快照为空: %s", sessionID)
	}
	return b.store.SaveJSON(b.dir, sessionID+".json", snap)
}

// LoadState 加载会话快照，文件不存在时返回 (nil, nil)
func (b *StateBackend) LoadState(sessionID string) (*models.ConversationSnapshot, error) {
	filename := sessionID + ".json"
	if !b.store.FileExists(b.dir, filename) {
		return nil, nil
	}

	var snap models.ConversationSnapshot
	if err := b.store.LoadJSON(b.dir, filename, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// DeleteState 删除会话快照，文件不存在时不视为错误
func (b *StateBackend) DeleteState(sessionID string) error {
	filename := sessionID + ".json"
	if !b.store.FileExists(b.dir, filename) {
		return nil
	}
	return b.store.DeleteFile(b.dir, filename)
}
