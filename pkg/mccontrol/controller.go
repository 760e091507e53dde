package mccontrol

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ErrNoKubernetes 控制器运行在固定地址模式，没有可用的Kubernetes客户端
var ErrNoKubernetes = errors.New("未启用Kubernetes")

// MinecraftController 管理与Minecraft服务器的交互
// 服务器地址可以是固定的，也可以从Kubernetes中的Pod和Service发现
type MinecraftController struct {
	// Kubernetes配置，固定地址模式下 clientset 为nil

	clientset            kubernetes.Interface
	namespace            string
	podLabelSelector     string
	serviceLabelSelector string
	containerName        string

	// 资源信息

	currentPodName string
	serverIP       string

	// Pod信息更新控制

	lastPodInfoUpdate     time.Time
	podInfoUpdateInterval time.Duration
	podInfoUpdateMutex    sync.Mutex

	// Minecraft服务器配置

	gamePort     int
	rconPort     int
	rconPassword string
	rconTimeout  time.Duration
	rconPacing   time.Duration

	// 状态管理

	status      ServerStatus
	statusMutex sync.Mutex

	ctx        context.Context
	cancelFunc context.CancelFunc

	sessionManager *sessionManager
}

// NewMinecraftController 创建一个新的Minecraft控制器实例
// cfg.K8s 非nil时根据运行模式创建Kubernetes客户端
func NewMinecraftController(cfg Config) (*MinecraftController, error) {
	if cfg.K8s == nil {
		return NewMinecraftControllerWithClient(cfg, nil)
	}

	var k8sConfig *rest.Config
	var err error

	// 根据运行模式选择K8s配置
	if cfg.K8s.RunMode == "InCluster" {
		k8sConfig, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("获取集群内部配置失败: %w", err)
		}
	} else {
		kubeconfigPath := cfg.K8s.KubeconfigPath
		if kubeconfigPath == "" {
			homeDir, _ := os.UserHomeDir()
			kubeconfigPath = filepath.Join(homeDir, ".kube", "config")
		}

		k8sConfig, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("加载kubeconfig失败: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(k8sConfig)
	if err != nil {
		return nil, fmt.Errorf("创建K8s客户端失败: %w", err)
	}

	return NewMinecraftControllerWithClient(cfg, clientset)
}

// NewMinecraftControllerWithClient 使用给定的Kubernetes客户端创建控制器
// clientset 为nil时使用固定地址 cfg.Host
func NewMinecraftControllerWithClient(cfg Config, clientset kubernetes.Interface) (*MinecraftController, error) {
	ctx, cancel := context.WithCancel(context.Background())

	controller := &MinecraftController{
		serverIP:              cfg.Host,
		gamePort:              cfg.GamePort,
		rconPort:              cfg.RconPort,
		rconPassword:          cfg.RconPassword,
		rconTimeout:           cfg.RconTimeout,
		rconPacing:            cfg.RconPacing,
		ctx:                   ctx,
		cancelFunc:            cancel,
		podInfoUpdateInterval: 5 * time.Minute,
		sessionManager:        newSessionManager(5 * time.Minute),
	}
	controller.status.Address = cfg.Host

	if clientset != nil && cfg.K8s != nil {
		controller.clientset = clientset
		controller.namespace = cfg.K8s.Namespace
		controller.podLabelSelector = cfg.K8s.PodLabelSelector
		controller.serviceLabelSelector = cfg.K8s.ServiceLabelSelector
		controller.containerName = cfg.K8s.ContainerName

		// 初始化时更新服务器信息
		if err := controller.findAndUpdatePodInfo(); err != nil {
			controller.Close()
			return nil, fmt.Errorf("初始化Pod信息失败: %w", err)
		}
	}

	go controller.sessionManager.run(ctx)
	return controller, nil
}

// ServerIP 返回当前使用的服务器地址
func (m *MinecraftController) ServerIP() string {
	m.podInfoUpdateMutex.Lock()
	defer m.podInfoUpdateMutex.Unlock()
	return m.serverIP
}

// PodName 返回当前选中的Pod，固定地址模式下为空
func (m *MinecraftController) PodName() string {
	m.podInfoUpdateMutex.Lock()
	defer m.podInfoUpdateMutex.Unlock()
	return m.currentPodName
}

// HasKubernetes 是否通过Kubernetes发现服务器
func (m *MinecraftController) HasKubernetes() bool {
	return m.clientset != nil
}

// updatePodInfoIfNeeded 在必要时更新Pod信息
// 返回值: 是否执行了更新操作, 更新错误（如果有）
func (m *MinecraftController) updatePodInfoIfNeeded(forceUpdate bool) (bool, error) {
	if m.clientset == nil {
		return false, nil
	}

	m.podInfoUpdateMutex.Lock()
	defer m.podInfoUpdateMutex.Unlock()

	if !forceUpdate && time.Since(m.lastPodInfoUpdate) < m.podInfoUpdateInterval {
		return false, nil
	}

	return true, m.findAndUpdatePodInfoLocked()
}

// SetPodInfoUpdateInterval 设置Pod信息更新的最小间隔
func (m *MinecraftController) SetPodInfoUpdateInterval(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	m.podInfoUpdateMutex.Lock()
	defer m.podInfoUpdateMutex.Unlock()
	m.podInfoUpdateInterval = interval
}

// ForceUpdatePodInfo 强制更新Pod信息，忽略时间间隔限制
func (m *MinecraftController) ForceUpdatePodInfo() error {
	_, err := m.updatePodInfoIfNeeded(true)
	return err
}

func (m *MinecraftController) findAndUpdatePodInfo() error {
	m.podInfoUpdateMutex.Lock()
	defer m.podInfoUpdateMutex.Unlock()
	return m.findAndUpdatePodInfoLocked()
}

// findAndUpdatePodInfoLocked 查找符合标签的Pod并更新信息，调用方持有 podInfoUpdateMutex
func (m *MinecraftController) findAndUpdatePodInfoLocked() error {
	pods, err := m.clientset.CoreV1().Pods(m.namespace).List(m.ctx, metav1.ListOptions{
		LabelSelector: m.podLabelSelector,
	})
	if err != nil {
		return fmt.Errorf("获取Pod列表失败: %w", err)
	}
	if len(pods.Items) == 0 {
		return fmt.Errorf("未找到匹配标签 '%s' 的Pod", m.podLabelSelector)
	}

	selectedPod := selectPod(pods.Items)
	externalIP := m.findExternalIP()

	m.currentPodName = selectedPod.Name
	m.serverIP = selectedPod.Status.PodIP
	m.lastPodInfoUpdate = time.Now()

	m.statusMutex.Lock()
	m.status.Address = selectedPod.Status.PodIP
	m.status.PodName = selectedPod.Name
	m.status.PodStatus = string(selectedPod.Status.Phase)
	m.status.ClusterIP = selectedPod.Status.PodIP
	m.status.ExternalIP = externalIP
	m.statusMutex.Unlock()
	return nil
}

// selectPod 选择第一个Running状态的Pod，如果没有则选最近成功运行过的，还没有就选第一个
func selectPod(pods []corev1.Pod) *corev1.Pod {
	var latestSucceeded *corev1.Pod
	for i := range pods {
		pod := &pods[i]
		switch pod.Status.Phase {
		case corev1.PodRunning:
			return pod
		case corev1.PodSucceeded:
			if latestSucceeded == nil || startTime(pod).After(startTime(latestSucceeded)) {
				latestSucceeded = pod
			}
		}
	}
	if latestSucceeded != nil {
		return latestSucceeded
	}
	return &pods[0]
}

func startTime(pod *corev1.Pod) time.Time {
	if pod.Status.StartTime == nil {
		return time.Time{}
	}
	return pod.Status.StartTime.Time
}

// findExternalIP 从LoadBalancer或NodePort类型的服务中查找游戏端口对应的外部IP
func (m *MinecraftController) findExternalIP() string {
	selector := m.serviceLabelSelector
	if selector == "" {
		selector = m.podLabelSelector
	}

	services, err := m.clientset.CoreV1().Services(m.namespace).List(m.ctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return ""
	}

	for _, service := range services.Items {
		if service.Spec.Type != corev1.ServiceTypeLoadBalancer && service.Spec.Type != corev1.ServiceTypeNodePort {
			continue
		}
		for _, port := range service.Spec.Ports {
			if port.Port != int32(m.gamePort) && port.TargetPort.IntVal != int32(m.gamePort) {
				continue
			}
			if len(service.Status.LoadBalancer.Ingress) > 0 {
				return service.Status.LoadBalancer.Ingress[0].IP
			}
			if len(service.Spec.ExternalIPs) > 0 {
				return service.Spec.ExternalIPs[0]
			}
		}
	}
	return ""
}

// StartPodInfoMonitoring 开始定期监控Pod信息
func (m *MinecraftController) StartPodInfoMonitoring(interval time.Duration) {
	if m.clientset == nil {
		return
	}
	if interval <= 0 {
		interval = m.podInfoUpdateInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				// 静默更新，忽略错误
				m.updatePodInfoIfNeeded(true)
			}
		}
	}()
}

// Close 关闭控制器并释放资源
func (m *MinecraftController) Close() {
	m.cancelFunc()
	m.CloseAllCommandSessions()
}
