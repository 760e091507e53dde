package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 存储应用程序配置
// 配置文件中的值作为默认值，环境变量优先
type Config struct {
	// 服务器配置
	ServerPort     int      `yaml:"server_port"`
	ServerHost     string   `yaml:"server_host"`
	Mode           string   `yaml:"mode"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// 数据库配置
	DBType     string `yaml:"db_type"`
	DBHost     string `yaml:"db_host"`
	DBPort     int    `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	DBPath     string `yaml:"db_path"` // 用于SQLite

	// JWT配置
	JWTSecret         string        `yaml:"jwt_secret"`
	JWTExpireTime     time.Duration `yaml:"jwt_expire_time"`
	JWTRefreshTime    time.Duration `yaml:"jwt_refresh_time"`
	JWTIssuer         string        `yaml:"jwt_issuer"`
	JWTCookieSecure   bool          `yaml:"jwt_cookie_secure"`
	JWTCookieHTTPOnly bool          `yaml:"jwt_cookie_http_only"`

	// 日志配置
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	LogPath       string `yaml:"log_path"` // 日志目录
	LogFile       string `yaml:"log_file"` // 为空时只输出到终端
	LogMaxSize    int    `yaml:"log_max_size"`
	LogMaxDays    int    `yaml:"log_max_days"`
	LogMaxBackups int    `yaml:"log_max_backups"`

	// RCON配置
	RconHost     string        `yaml:"rcon_host"`
	RconPort     int           `yaml:"rcon_port"`
	RconPassword string        `yaml:"rcon_password"`
	RconTimeout  time.Duration `yaml:"rcon_timeout"`
	RconPacing   time.Duration `yaml:"rcon_pacing"`

	// Minecraft配置
	GamePort       int    `yaml:"game_port"`
	MCLogDir       string `yaml:"mc_log_dir"`      // 服务器 logs 目录
	PlaytimeOutput string `yaml:"playtime_output"` // 在线时长页面输出路径

	// Kubernetes配置，K8sEnabled 为false时使用固定的 RconHost
	K8sEnabled         bool   `yaml:"k8s_enabled"`
	K8sRunMode         string `yaml:"k8s_run_mode"` // InCluster 或 OutOfCluster
	K8sKubeconfig      string `yaml:"k8s_kubeconfig"`
	K8sNamespace       string `yaml:"k8s_namespace"`
	K8sPodSelector     string `yaml:"k8s_pod_selector"`
	K8sServiceSelector string `yaml:"k8s_service_selector"`
	K8sContainer       string `yaml:"k8s_container"`

	// 寻宝活动配置
	TreasureSkipOdds int    `yaml:"treasure_skip_odds"` // 每 odds+1 次触发中运行一次
	TreasureLogFile  string `yaml:"treasure_log_file"`
	NarratorAPIKey   string `yaml:"narrator_api_key"`
	NarratorModel    string `yaml:"narrator_model"`
	NarratorBaseURL  string `yaml:"narrator_base_url"`

	// 性能报表配置
	MetricsDays        int   `yaml:"metrics_days"`
	MetricsPercentiles []int `yaml:"metrics_percentiles"`
}

// FieldError 表示某个配置项无效
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("配置项 %s 无效: %s", e.Field, e.Reason)
}

// GetEnv 从环境变量中获取字符串值，如果不存在则返回默认值
func GetEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

// GetEnvInt 从环境变量中获取整数值，如果不存在或解析失败则返回默认值
func GetEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// GetEnvBool 从环境变量中获取布尔值，如果不存在则返回默认值
func GetEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// GetEnvDuration 从环境变量中获取时间间隔，如果不存在则返回默认值
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	durationValue, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return durationValue
}

// GetEnvList 从环境变量中获取逗号分隔的列表
func GetEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// GetEnvIntList 从环境变量中获取逗号分隔的整数列表，任何一项解析失败都返回默认值
func GetEnvIntList(key string, defaultValue []int) []int {
	items := GetEnvList(key, nil)
	if items == nil {
		return defaultValue
	}
	values := make([]int, 0, len(items))
	for _, item := range items {
		v, err := strconv.Atoi(item)
		if err != nil {
			return defaultValue
		}
		values = append(values, v)
	}
	return values
}

// Default 返回内置的默认配置
func Default() *Config {
	return &Config{
		ServerPort:     8080,
		ServerHost:     "0.0.0.0",
		Mode:           "debug",
		AllowedOrigins: []string{"*"},

		DBType:     "sqlite",
		DBHost:     "localhost",
		DBPort:     3306,
		DBUser:     "root",
		DBPassword: "password",
		DBName:     "mctoolbox",
		DBPath:     "mctoolbox.db",

		JWTSecret:         "your-secret-key",
		JWTExpireTime:     24 * time.Hour,
		JWTRefreshTime:    7 * 24 * time.Hour,
		JWTIssuer:         "mctoolbox",
		JWTCookieHTTPOnly: true,

		LogLevel:      "info",
		LogFormat:     "console",
		LogPath:       "logs",
		LogMaxSize:    100,
		LogMaxDays:    30,
		LogMaxBackups: 10,

		RconHost:    "127.0.0.1",
		RconPort:    25575,
		RconTimeout: 5 * time.Second,
		RconPacing:  3 * time.Millisecond,

		GamePort:       25565,
		MCLogDir:       "logs",
		PlaytimeOutput: "playtimes.html",

		K8sRunMode:   "OutOfCluster",
		K8sNamespace: "default",

		TreasureSkipOdds: 48,
		TreasureLogFile:  "treasure_hunt.log",
		NarratorModel:    "gpt-3.5-turbo",
		NarratorBaseURL:  "https://api.openai.com/v1",

		MetricsDays:        7,
		MetricsPercentiles: []int{50, 75, 90, 95, 99},
	}
}

// LoadConfig 从环境变量加载配置
func LoadConfig() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadConfigFile 先读取YAML配置文件，再用环境变量覆盖
// path为空时等同于 LoadConfig
func LoadConfigFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	// 服务器配置
	c.ServerPort = GetEnvInt("SERVER_PORT", c.ServerPort)
	c.ServerHost = GetEnv("SERVER_HOST", c.ServerHost)
	c.Mode = GetEnv("GIN_MODE", c.Mode)
	c.AllowedOrigins = GetEnvList("ALLOWED_ORIGINS", c.AllowedOrigins)

	// 数据库配置
	c.DBType = GetEnv("DB_TYPE", c.DBType)
	c.DBHost = GetEnv("DB_HOST", c.DBHost)
	c.DBPort = GetEnvInt("DB_PORT", c.DBPort)
	c.DBUser = GetEnv("DB_USER", c.DBUser)
	c.DBPassword = GetEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = GetEnv("DB_NAME", c.DBName)
	c.DBPath = GetEnv("DB_PATH", c.DBPath)

	// JWT配置
	c.JWTSecret = GetEnv("JWT_SECRET", c.JWTSecret)
	c.JWTExpireTime = GetEnvDuration("JWT_EXPIRE_TIME", c.JWTExpireTime)
	c.JWTRefreshTime = GetEnvDuration("JWT_REFRESH_TIME", c.JWTRefreshTime)
	c.JWTIssuer = GetEnv("JWT_ISSUER", c.JWTIssuer)
	c.JWTCookieSecure = GetEnvBool("JWT_COOKIE_SECURE", c.JWTCookieSecure)
	c.JWTCookieHTTPOnly = GetEnvBool("JWT_COOKIE_HTTP_ONLY", c.JWTCookieHTTPOnly)

	// 日志配置
	c.LogLevel = GetEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = GetEnv("LOG_FORMAT", c.LogFormat)
	c.LogPath = GetEnv("LOG_PATH", c.LogPath)
	c.LogFile = GetEnv("LOG_FILE", c.LogFile)
	c.LogMaxSize = GetEnvInt("LOG_MAX_SIZE", c.LogMaxSize)
	c.LogMaxDays = GetEnvInt("LOG_MAX_DAYS", c.LogMaxDays)
	c.LogMaxBackups = GetEnvInt("LOG_MAX_BACKUPS", c.LogMaxBackups)

	// RCON配置
	c.RconHost = GetEnv("RCON_HOST", c.RconHost)
	c.RconPort = GetEnvInt("RCON_PORT", c.RconPort)
	c.RconPassword = GetEnv("RCON_PASSWORD", c.RconPassword)
	c.RconTimeout = GetEnvDuration("RCON_TIMEOUT", c.RconTimeout)
	c.RconPacing = GetEnvDuration("RCON_PACING", c.RconPacing)

	// Minecraft配置
	c.GamePort = GetEnvInt("MC_GAME_PORT", c.GamePort)
	c.MCLogDir = GetEnv("MC_LOG_DIR", c.MCLogDir)
	c.PlaytimeOutput = GetEnv("PLAYTIME_OUTPUT", c.PlaytimeOutput)

	// Kubernetes配置
	c.K8sEnabled = GetEnvBool("K8S_ENABLED", c.K8sEnabled)
	c.K8sRunMode = GetEnv("K8S_RUN_MODE", c.K8sRunMode)
	c.K8sKubeconfig = GetEnv("K8S_KUBECONFIG", c.K8sKubeconfig)
	c.K8sNamespace = GetEnv("K8S_NAMESPACE", c.K8sNamespace)
	c.K8sPodSelector = GetEnv("K8S_POD_SELECTOR", c.K8sPodSelector)
	c.K8sServiceSelector = GetEnv("K8S_SERVICE_SELECTOR", c.K8sServiceSelector)
	c.K8sContainer = GetEnv("K8S_CONTAINER", c.K8sContainer)

	// 寻宝活动配置
	c.TreasureSkipOdds = GetEnvInt("TREASURE_SKIP_ODDS", c.TreasureSkipOdds)
	c.TreasureLogFile = GetEnv("TREASURE_LOG_FILE", c.TreasureLogFile)
	c.NarratorAPIKey = GetEnv("OPENAI_API_KEY", c.NarratorAPIKey)
	c.NarratorModel = GetEnv("NARRATOR_MODEL", c.NarratorModel)
	c.NarratorBaseURL = GetEnv("NARRATOR_BASE_URL", c.NarratorBaseURL)

	// 性能报表配置
	c.MetricsDays = GetEnvInt("METRICS_DAYS", c.MetricsDays)
	c.MetricsPercentiles = GetEnvIntList("METRICS_PERCENTILES", c.MetricsPercentiles)
}

// Validate 检查配置的取值范围
func (c *Config) Validate() error {
	var errs []error
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, &FieldError{"server_port", "端口必须在1-65535之间"})
	}
	if c.DBType != "sqlite" && c.DBType != "mysql" {
		errs = append(errs, &FieldError{"db_type", "仅支持 sqlite 和 mysql"})
	}
	if c.RconPort <= 0 || c.RconPort > 65535 {
		errs = append(errs, &FieldError{"rcon_port", "端口必须在1-65535之间"})
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, &FieldError{"log_format", "仅支持 console 和 json"})
	}
	if c.K8sEnabled && c.K8sPodSelector == "" {
		errs = append(errs, &FieldError{"k8s_pod_selector", "启用Kubernetes时必须指定Pod标签选择器"})
	}
	for _, p := range c.MetricsPercentiles {
		if p < 0 || p >= 100 {
			errs = append(errs, &FieldError{"metrics_percentiles", fmt.Sprintf("百分位 %d 超出范围[0,100)", p)})
			break
		}
	}
	return errors.Join(errs...)
}

// RequireRcon 检查连接RCON所需的配置
func (c *Config) RequireRcon() error {
	if !c.K8sEnabled && c.RconHost == "" {
		return &FieldError{"rcon_host", "未配置服务器地址"}
	}
	if c.RconPassword == "" {
		return &FieldError{"rcon_password", "未配置RCON密码"}
	}
	return nil
}

// GetDBConnString 根据数据库类型返回相应的连接字符串
func (c *Config) GetDBConnString() string {
	switch c.DBType {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	default:
		return c.DBPath
	}
}
