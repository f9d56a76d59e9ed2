// internal/app/app.go
package app

import (
	"fmt"

	"github.com/Corphon/TutorMindMCP/internal/config"
	"github.com/Corphon/TutorMindMCP/internal/di"
	"github.com/Corphon/TutorMindMCP/internal/llm"
	"github.com/Corphon/TutorMindMCP/internal/reasoning"
	"github.com/Corphon/TutorMindMCP/internal/services"
	"github.com/Corphon/TutorMindMCP/internal/storage"
	"github.com/Corphon/TutorMindMCP/internal/utils"

	// 注册AI提供者
	_ "github.com/Corphon/TutorMindMCP/internal/llm/providers/local"
	_ "github.com/Corphon/TutorMindMCP/internal/llm/providers/qwenvl"
)

// InitServices 按依赖顺序初始化所有服务并注册到容器
//
// 顺序: 存储 → 会话状态 → AI提供者 → 业务服务
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()
	logger := utils.GetLogger()

	// 1. 文件存储
	fileStore, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化文件存储失败: %w", err)
	}
	container.Register("storage", fileStore)

	// 2. 会话状态管理（挂接文件持久化后端）
	stateBackend := storage.NewStateBackend(fileStore)
	stateStore := reasoning.NewStateStore(stateBackend)
	container.Register("states", stateStore)

	// 3. AI提供者，配置的提供者不可用时回退到local
	understanding, err := llm.GetUnderstandingProvider(cfg.UnderstandingProvider, cfg.UnderstandingConfig)
	if err != nil {
		logger.Warnf("理解提供者 %s 初始化失败，回退到local: %v", cfg.UnderstandingProvider, err)
		understanding, err = llm.GetUnderstandingProvider("local", nil)
		if err != nil {
			return fmt.Errorf("初始化理解提供者失败: %w", err)
		}
	}
	container.Register("understanding", understanding)

	reasoner, err := llm.GetReasoningProvider(cfg.ReasoningProvider, cfg.ReasoningConfig)
	if err != nil {
		logger.Warnf("推理提供者 %s 初始化失败，回退到local: %v", cfg.ReasoningProvider, err)
		reasoner, err = llm.GetReasoningProvider("local", nil)
		if err != nil {
			return fmt.Errorf("初始化推理提供者失败: %w", err)
		}
	}
	container.Register("reasoner", reasoner)

	logger.Infof("AI提供者就绪: 理解=%s, 推理=%s", understanding.GetName(), reasoner.GetName())

	// 4. 业务服务
	knowledgeService := services.NewKnowledgeService(fileStore)
	container.Register("knowledge", knowledgeService)

	recordsService := services.NewRecordsService(fileStore)
	container.Register("records", recordsService)

	guidanceService := services.NewGuidanceService()
	container.Register("guidance", guidanceService)

	tutoringService := services.NewTutoringService(stateStore, understanding, reasoner, recordsService, cfg.ContextMaxTurns)
	container.Register("tutoring", tutoringService)

	return nil
}
