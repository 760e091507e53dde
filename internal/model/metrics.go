package model

// Stat 一次性能采样，主键为UTC unix时间戳
type Stat struct {
	Timestamp   int64   `gorm:"primaryKey;autoIncrement:false" json:"timestamp"`
	PlayerCount int     `gorm:"not null" json:"player_count"`
	MsptMin     float64 `gorm:"column:mspt_60s_min;not null" json:"mspt_60s_min"`
	MsptAvg     float64 `gorm:"column:mspt_60s_avg;not null" json:"mspt_60s_avg"`
	MsptMax     float64 `gorm:"column:mspt_60s_max;not null" json:"mspt_60s_max"`
}

// TableName 指定表名
func (Stat) TableName() string { return "stats" }

// PlayerSample 采样时在线的一名玩家
type PlayerSample struct {
	Timestamp int64  `gorm:"primaryKey;autoIncrement:false;index:players_timestamp_idx" json:"timestamp"`
	Name      string `gorm:"primaryKey;size:64" json:"name"`
}

// TableName 指定表名
func (PlayerSample) TableName() string { return "players" }

// PerformanceQuery 性能报表查询参数
type PerformanceQuery struct {
	Days        int    `form:"days" binding:"omitempty,min=1,max=365"`
	Percentiles []int  `form:"percentiles" binding:"omitempty,dive,min=0,max=99"`
	Format      string `form:"format"`
}
