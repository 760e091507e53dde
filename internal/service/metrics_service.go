package service

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"city.newnan/mc-toolbox/internal/metrics"
	"city.newnan/mc-toolbox/internal/model"
)

// MetricsService 保存性能采样并生成报表
type MetricsService struct {
	db  *gorm.DB
	now func() time.Time
	loc *time.Location
}

// NewMetricsService 创建性能指标服务实例
func NewMetricsService(conn *gorm.DB) *MetricsService {
	return &MetricsService{db: conn, now: time.Now, loc: time.Local}
}

// Save 在一个事务里写入一条统计和当时在线的玩家
func (s *MetricsService) Save(sample *metrics.Sample) error {
	if sample == nil {
		return errors.New("采样为空")
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		stat := model.Stat{
			Timestamp:   sample.Timestamp,
			PlayerCount: len(sample.Players),
			MsptMin:     sample.MSPT.Min,
			MsptAvg:     sample.MSPT.Avg,
			MsptMax:     sample.MSPT.Max,
		}
		if err := tx.Create(&stat).Error; err != nil {
			return fmt.Errorf("保存统计失败: %w", err)
		}
		if len(sample.Players) == 0 {
			return nil
		}

		players := make([]model.PlayerSample, 0, len(sample.Players))
		for _, name := range sample.Players {
			players = append(players, model.PlayerSample{Timestamp: sample.Timestamp, Name: name})
		}
		// 同一次采样里重复的名字只记一次
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&players).Error; err != nil {
			return fmt.Errorf("保存玩家失败: %w", err)
		}
		return nil
	})
}

// Records 返回 since 之后（含）的全部统计
func (s *MetricsService) Records(since time.Time) ([]metrics.Record, error) {
	var stats []model.Stat
	if err := s.db.Where("timestamp >= ?", since.Unix()).Order("timestamp").Find(&stats).Error; err != nil {
		return nil, err
	}

	records := make([]metrics.Record, len(stats))
	for i, st := range stats {
		records[i] = metrics.Record{
			Timestamp:   st.Timestamp,
			PlayerCount: st.PlayerCount,
			MsptMin:     st.MsptMin,
			MsptAvg:     st.MsptAvg,
			MsptMax:     st.MsptMax,
		}
	}
	return records, nil
}

// HourlyReport 汇总最近 days 天的采样，days<=0 和空分位数使用默认值
func (s *MetricsService) HourlyReport(days int, percentiles []int) (*metrics.Report, error) {
	if days <= 0 {
		days = metrics.DefaultDays
	}
	if len(percentiles) == 0 {
		percentiles = metrics.DefaultPercentiles
	}

	records, err := s.Records(s.now().Add(-time.Duration(days) * 24 * time.Hour))
	if err != nil {
		return nil, err
	}
	return metrics.BuildHourlyReport(records, percentiles, s.loc)
}

// Latest 返回最近一次采样，没有数据时返回 nil
func (s *MetricsService) Latest() (*metrics.Sample, error) {
	var stat model.Stat
	if err := s.db.Order("timestamp DESC").First(&stat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var players []model.PlayerSample
	if err := s.db.Where("timestamp = ?", stat.Timestamp).Order("name").Find(&players).Error; err != nil {
		return nil, err
	}
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name
	}

	sample := &metrics.Sample{Timestamp: stat.Timestamp, Players: names}
	sample.MSPT.Min, sample.MSPT.Avg, sample.MSPT.Max = stat.MsptMin, stat.MsptAvg, stat.MsptMax
	return sample, nil
}
