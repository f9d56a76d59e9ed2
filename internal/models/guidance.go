// internal/models/guidance.go
package models

// GuidanceStep 表示一个结构化导学步骤
type GuidanceStep struct {
	StepID   string        `json:"step_id"`
	Title    string        `json:"title"`
	Hint     string        `json:"hint"`
	Type     string        `json:"type"` // understand, geometry, analysis, method, solve, verify, detail, hint, example
	Geometry *GeometryDemo `json:"geometry,omitempty"`
}

// GeometryDemo 几何演示数据（3D对象集合）
type GeometryDemo struct {
	Objects []GeometryObject `json:"objects"`
}

// GeometryObject 单个几何对象
type GeometryObject struct {
	Type   string      `json:"type"` // line, point, face
	Coords [][]float64 `json:"coords"`
	Label  string      `json:"label"`
	StepID string      `json:"step_id,omitempty"`
	Color  string      `json:"color,omitempty"`
}

// GuidanceResult 一次导学步骤生成的结果
type GuidanceResult struct {
	SessionID string         `json:"session_id"`
	TaskID    string         `json:"task_id"`
	Steps     []GuidanceStep `json:"steps"`
}
