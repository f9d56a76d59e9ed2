// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// AI提供者配置
	// 理解侧（VLM）和推理侧（LLM）可以分别配置，未配置密钥时回退到local
	UnderstandingProvider string            `json:"understanding_provider"`
	UnderstandingConfig   map[string]string `json:"understanding_config"`
	ReasoningProvider     string            `json:"reasoning_provider"`
	ReasoningConfig       map[string]string `json:"reasoning_config"`

	// 上下文装配配置
	ContextMaxTurns int `json:"context_max_turns"`
}

// Config 存储从环境变量加载的基础配置
type Config struct {
	Port         string
	DashScopeKey string
	DataDir      string
	LogDir       string
	DebugMode    bool
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &Config{
		Port:         getEnv("PORT", "8080"),
		DashScopeKey: getEnv("DASHSCOPE_API_KEY", ""),
		DataDir:      getEnvPath("DATA_DIR", "data"),
		LogDir:       getEnvPath("LOG_DIR", "logs"),
		DebugMode:    getEnvBool("DEBUG_MODE", true),
	}

	if config.DashScopeKey == "" {
		// 只记录警告，不返回错误，此时使用local规则提供者
		log.Println("警告: 未设置DASHSCOPE_API_KEY，将使用本地规则提供者")
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = os.MkdirAll(path, 0755)
		if err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = defaultAppConfig(baseConfig)

	// 尝试从文件加载已保存的配置
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				// 保留文件中的提供者设置，但基础配置始终以环境为准
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.DebugMode = baseConfig.DebugMode

				if savedConfig.UnderstandingConfig != nil && savedConfig.UnderstandingConfig["api_key"] == "" {
					savedConfig.UnderstandingConfig["api_key"] = baseConfig.DashScopeKey
				}
				if savedConfig.ReasoningConfig != nil && savedConfig.ReasoningConfig["api_key"] == "" {
					savedConfig.ReasoningConfig["api_key"] = baseConfig.DashScopeKey
				}
				if savedConfig.ContextMaxTurns <= 0 {
					savedConfig.ContextMaxTurns = 5
				}

				currentConfig = &savedConfig
			}
		}
	}

	return SaveConfig()
}

func defaultAppConfig(baseConfig *Config) *AppConfig {
	understanding := "local"
	reasoningProvider := "local"
	if baseConfig.DashScopeKey != "" {
		understanding = "qwen-vl"
		reasoningProvider = "qwen-vl"
	}

	return &AppConfig{
		Port:                  baseConfig.Port,
		DataDir:               baseConfig.DataDir,
		LogDir:                baseConfig.LogDir,
		DebugMode:             baseConfig.DebugMode,
		UnderstandingProvider: understanding,
		UnderstandingConfig: map[string]string{
			"api_key":      baseConfig.DashScopeKey,
			"vision_model": "qwen-vl-plus",
		},
		ReasoningProvider: reasoningProvider,
		ReasoningConfig: map[string]string{
			"api_key":       baseConfig.DashScopeKey,
			"default_model": "qwen2.5-max",
		},
		ContextMaxTurns: 5,
	}
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		baseConfig, _ := Load()
		return defaultAppConfig(baseConfig)
	}

	configCopy := *currentConfig
	return &configCopy
}

// UpdateProviderConfig 更新AI提供者配置
func UpdateProviderConfig(understandingProvider string, understandingConfig map[string]string, reasoningProvider string, reasoningConfig map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.UnderstandingProvider = understandingProvider
	currentConfig.UnderstandingConfig = understandingConfig
	currentConfig.ReasoningProvider = reasoningProvider
	currentConfig.ReasoningConfig = reasoningConfig

	return SaveConfig()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
