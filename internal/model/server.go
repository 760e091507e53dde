package model

// CommandRequest 执行服务器命令的请求
type CommandRequest struct {
	Command string `json:"command" binding:"required,max=1000"`
}

// CommandResponse 服务器命令的执行结果
type CommandResponse struct {
	Command string `json:"command"`
	Output  string `json:"output"` // 保留 § 颜色代码
	Plain   string `json:"plain"`
}

// HuntRequest 开始寻宝活动的请求
type HuntRequest struct {
	// Force 为 true 时不做随机跳过
	Force bool `json:"force"`
}
