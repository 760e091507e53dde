package mccontrol

import (
	"time"
)

// CommandExecutor 命令执行器接口
type CommandExecutor interface {
	// ExecuteCommand 执行命令并返回结果
	ExecuteCommand(cmd string) (string, error)

	// Connect 连接到服务器
	Connect() error

	// Disconnect 断开与服务器的连接
	Disconnect()

	// IsConnected 检查是否已连接
	IsConnected() bool
}

// Config 控制器配置
type Config struct {
	// Host 服务器地址，K8s为nil时使用
	Host string

	GamePort     int           // 游戏端口，用于Ping
	RconPort     int           // RCON端口
	RconPassword string        // RCON密码
	RconTimeout  time.Duration // 每次RCON读写的超时时间，0使用默认值
	RconPacing   time.Duration // 每条命令之后的间隔，0使用默认值

	// K8s 非nil时从Kubernetes中发现服务器地址
	K8s *K8sConfig
}

// K8sConfig 包含Kubernetes配置选项
type K8sConfig struct {
	// 连接配置

	RunMode        string // 运行模式：InCluster（集群内）或OutOfCluster（集群外）
	KubeconfigPath string // 当RunMode为OutOfCluster时使用的kubeconfig文件路径
	Namespace      string // 命名空间

	// 资源选择器

	PodLabelSelector     string // 用于选择Pod的标签（如app=minecraft）
	ServiceLabelSelector string // 用于选择Service的标签，为空则使用PodLabelSelector

	// 容器配置

	ContainerName string // 容器名称（在Pod中）
}

// ServerStatus 包含Minecraft服务器状态信息
type ServerStatus struct {
	// 基本状态

	Online      bool      `json:"online"`
	LastChecked time.Time `json:"last_checked"`
	LastError   string    `json:"last_error,omitempty"`

	// 服务器信息

	Players     int      `json:"players"`
	MaxPlayers  int      `json:"max_players"`
	PlayerNames []string `json:"player_names,omitempty"` // Ping返回的玩家样本
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Latency     int      `json:"latency"` // 延迟，单位：毫秒

	// 地址信息

	Address    string `json:"address"`               // 实际连接的服务器地址
	PodName    string `json:"pod_name,omitempty"`    // Pod名称
	PodStatus  string `json:"pod_status,omitempty"`  // Pod状态
	ClusterIP  string `json:"cluster_ip,omitempty"`  // 集群内IP
	ExternalIP string `json:"external_ip,omitempty"` // 外部IP（如果有）
}

// LogOptions 包含日志获取的配置选项
type LogOptions struct {
	// 日志范围选项

	TailLines *int64     // 获取最近多少行日志，为nil则不限制行数
	SinceTime *time.Time // 从何时开始获取日志，为nil则不限制起始时间

	// 容器选项

	Container string // 容器名称，为空则使用默认容器
	Previous  bool   // 是否获取以前终止的容器的日志

	// 回调相关选项

	BatchSize   int           // 每收集到这么多行日志就触发一次回调，默认为10
	MaxWaitTime time.Duration // 即使缓冲区未满，过了这个时间也会触发回调，默认为1秒
}
