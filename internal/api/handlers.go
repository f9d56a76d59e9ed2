// internal/api/handlers.go
package api

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Corphon/TutorMindMCP/internal/models"
	"github.com/Corphon/TutorMindMCP/internal/services"
)

// Handler 处理API请求
type Handler struct {
	TutoringService  *services.TutoringService
	KnowledgeService *services.KnowledgeService
	RecordsService   *services.RecordsService
	GuidanceService  *services.GuidanceService

	UploadDir string
}

// NewHandler 创建API处理器
func NewHandler(
	tutoringService *services.TutoringService,
	knowledgeService *services.KnowledgeService,
	recordsService *services.RecordsService,
	guidanceService *services.GuidanceService,
	uploadDir string,
) *Handler {
	return &Handler{
		TutoringService:  tutoringService,
		KnowledgeService: knowledgeService,
		RecordsService:   recordsService,
		GuidanceService:  guidanceService,
		UploadDir:        uploadDir,
	}
}

// ===============================
// 采集接口
// ===============================

// CaptureText 文本采集
func (h *Handler) CaptureText(c *gin.Context) {
	var req struct {
		UserID  string `json:"user_id" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的请求格式: "+err.Error())
		return
	}

	respondSuccess(c, gin.H{
		"capture_id": "capture_" + uuid.NewString()[:8],
		"content":    req.Content,
	}, "文本采集成功")
}

// CaptureImage 图像采集，保存上传文件并返回可引用的URL
func (h *Handler) CaptureImage(c *gin.Context) {
	userID := c.PostForm("user_id")
	if userID == "" {
		respondBadRequest(c, "缺少user_id参数")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "缺少上传文件")
		return
	}

	url, err := h.saveUpload(c, file, "images")
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, gin.H{
		"capture_id": "capture_" + uuid.NewString()[:8],
		"image_url":  url,
	}, "图像采集成功")
}

// CaptureAudio 语音采集
func (h *Handler) CaptureAudio(c *gin.Context) {
	userID := c.PostForm("user_id")
	if userID == "" {
		respondBadRequest(c, "缺少user_id参数")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "缺少上传文件")
		return
	}

	url, err := h.saveUpload(c, file, "audio")
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, gin.H{
		"capture_id": "capture_" + uuid.NewString()[:8],
		"audio_url":  url,
	}, "语音采集成功")
}

func (h *Handler) saveUpload(c *gin.Context, file *multipart.FileHeader, subdir string) (string, error) {
	ext := filepath.Ext(file.Filename)
	savedName := uuid.NewString() + ext
	dir := filepath.Join(h.UploadDir, subdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建上传目录失败: %w", err)
	}

	dst := filepath.Join(dir, savedName)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		return "", fmt.Errorf("保存上传文件失败: %w", err)
	}

	return "/uploads/" + subdir + "/" + savedName, nil
}

// ===============================
// 会话接口
// ===============================

// SendSessionMessage 发送会话消息，驱动完整的导学管道
func (h *Handler) SendSessionMessage(c *gin.Context) {
	var req services.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的请求格式: "+err.Error())
		return
	}

	result, err := h.TutoringService.ProcessQuery(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, result)
}

// GetSessionHistory 获取会话完整历史
func (h *Handler) GetSessionHistory(c *gin.Context) {
	sessionID := c.Param("session_id")

	snapshot, err := h.TutoringService.GetSessionHistory(sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, snapshot)
}

// ClearSession 清空会话
func (h *Handler) ClearSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	removed := h.TutoringService.ClearSession(sessionID)
	respondSuccess(c, gin.H{"removed": removed}, "会话已清空")
}

// ===============================
// 学习记录接口
// ===============================

// GetRecords 分页获取学习记录
func (h *Handler) GetRecords(c *gin.Context) {
	userID := c.Param("user_id")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	recordType := c.Query("type")

	result := h.RecordsService.GetRecords(userID, page, pageSize, recordType)
	respondSuccess(c, result)
}

// GetStatistics 获取学习统计数据
func (h *Handler) GetStatistics(c *gin.Context) {
	userID := c.Param("user_id")
	respondSuccess(c, h.RecordsService.GetStatistics(userID))
}

// AddRecord 添加学习记录
func (h *Handler) AddRecord(c *gin.Context) {
	var req struct {
		UserID      string                 `json:"user_id" binding:"required"`
		Title       string                 `json:"title" binding:"required"`
		Description string                 `json:"description"`
		Type        string                 `json:"type" binding:"required"`
		Metadata    map[string]interface{} `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的请求格式: "+err.Error())
		return
	}

	record, err := h.RecordsService.AddRecord(req.UserID, req.Title, req.Description, models.RecordType(req.Type), req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, record, "学习记录已添加")
}

// ===============================
// 知识库接口
// ===============================

// SearchKnowledge 知识库搜索
func (h *Handler) SearchKnowledge(c *gin.Context) {
	var req struct {
		Query   string   `json:"query"`
		Topics  []string `json:"topics"`
		Subject string   `json:"subject"`
		Limit   int      `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的请求格式: "+err.Error())
		return
	}

	results := h.KnowledgeService.Search(req.Query, req.Topics, req.Subject, req.Limit)
	respondSuccess(c, gin.H{"results": results})
}

// AddKnowledge 添加知识条目
func (h *Handler) AddKnowledge(c *gin.Context) {
	var req struct {
		Title      string                 `json:"title" binding:"required"`
		Content    string                 `json:"content" binding:"required"`
		Subject    string                 `json:"subject" binding:"required"`
		Topics     []string               `json:"topics"`
		Difficulty string                 `json:"difficulty"`
		Metadata   map[string]interface{} `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的请求格式: "+err.Error())
		return
	}

	item, err := h.KnowledgeService.AddItem(req.Title, req.Content, req.Subject, req.Topics, req.Difficulty, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, item, "知识条目已添加")
}

// ===============================
// 导学步骤接口
// ===============================

// GenerateGuidance 生成结构化导学步骤
func (h *Handler) GenerateGuidance(c *gin.Context) {
	var req struct {
		UserID    string `json:"user_id" binding:"required"`
		Content   string `json:"content" binding:"required"`
		SessionID string `json:"session_id"`
		StepID    string `json:"step_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的请求格式: "+err.Error())
		return
	}

	result, err := h.GuidanceService.GenerateSteps(req.UserID, req.Content, req.SessionID, req.StepID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, result)
}

// GetGuidanceSession 获取导学会话的最近步骤
func (h *Handler) GetGuidanceSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	result, err := h.GuidanceService.GetSession(sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, result)
}

// ===============================
// 健康检查
// ===============================

// Health 健康检查接口
func (h *Handler) Health(c *gin.Context) {
	respondSuccess(c, gin.H{
		"status":          "healthy",
		"service":         "tutormind",
		"version":         "1.0.0",
		"active_sessions": h.TutoringService.ActiveSessionsCount(),
	})
}
