package metrics

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DefaultPercentiles 报表默认给出的 mspt 分位数
var DefaultPercentiles = []int{50, 75, 90, 95, 99}

// DefaultDays 报表默认覆盖的天数
const DefaultDays = 7

// HourLayout 报表中小时列的格式
const HourLayout = "2006-01-02 15:00"

// Record 一条已保存的采样统计
type Record struct {
	Timestamp   int64
	PlayerCount int
	MsptMin     float64
	MsptAvg     float64
	MsptMax     float64
}

// Row 报表中一个小时的统计
type Row struct {
	Hour        string    `json:"hour" yaml:"hour"`
	Players     float64   `json:"players" yaml:"players"`
	Min         float64   `json:"min" yaml:"min"`
	Percentiles []float64 `json:"percentiles" yaml:"percentiles"` // 与 Report.Percentiles 一一对应
	Max         float64   `json:"max" yaml:"max"`
	Samples     int       `json:"samples" yaml:"samples"`
}

// Report 按小时汇总的性能报表
type Report struct {
	Percentiles []int `json:"percentiles" yaml:"percentiles"`
	Rows        []Row `json:"rows" yaml:"rows"`
}

// BuildHourlyReport 把采样按 loc 时区的整点分组
//
// 每组：平均在线人数保留一位小数，最小值取 mspt 最小值中的最小者，
// 分位数取按 mspt 平均值升序排列后下标为 int(n*p/100) 的元素，
// 最大值取 mspt 最大值中的最大者。结果按小时升序排列。
func BuildHourlyReport(records []Record, percentiles []int, loc *time.Location) (*Report, error) {
	for _, p := range percentiles {
		if p < 0 || p >= 100 {
			return nil, fmt.Errorf("分位数必须在 [0, 100) 范围内: %d", p)
		}
	}
	if loc == nil {
		loc = time.Local
	}

	groups := make(map[string][]Record)
	for _, r := range records {
		hour := time.Unix(r.Timestamp, 0).In(loc).Format(HourLayout)
		groups[hour] = append(groups[hour], r)
	}

	report := &Report{
		Percentiles: append([]int(nil), percentiles...),
		Rows:        make([]Row, 0, len(groups)),
	}
	for hour, group := range groups {
		report.Rows = append(report.Rows, summarize(hour, group, percentiles))
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].Hour < report.Rows[j].Hour
	})
	return report, nil
}

func summarize(hour string, group []Record, percentiles []int) Row {
	row := Row{
		Hour:    hour,
		Min:     math.Inf(1),
		Max:     math.Inf(-1),
		Samples: len(group),
	}

	players := 0
	averages := make([]float64, 0, len(group))
	for _, r := range group {
		players += r.PlayerCount
		row.Min = math.Min(row.Min, r.MsptMin)
		row.Max = math.Max(row.Max, r.MsptMax)
		averages = append(averages, r.MsptAvg)
	}
	row.Players = math.Round(float64(players)/float64(len(group))*10) / 10

	sort.Float64s(averages)
	n := len(averages)
	row.Percentiles = make([]float64, len(percentiles))
	for i, p := range percentiles {
		row.Percentiles[i] = averages[n*p/100]
	}
	return row
}
