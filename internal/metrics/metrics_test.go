package metrics

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"city.newnan/mc-toolbox/internal/mcparse"
)

type scripted map[string]string

func (s scripted) ExecuteCommand(cmd string) (string, error) {
	resp, ok := s[cmd]
	if !ok {
		return "", errors.New("unknown command " + cmd)
	}
	return resp, nil
}

const msptReply = "§6Server tick times §e(§7avg§e/§7min§e/§7max§e)§6 from last 5s, 10s, 1m:\n" +
	"§6◴ §a12.5§6/§a3.1§6/§a40.2§6, §a11.0§6/§a2.9§6/§a45.7§6, §a10.4§6/§a2.5§6/§a51.3"

func TestCollect(t *testing.T) {
	c := NewCollector(scripted{
		"mspt": msptReply,
		"list": "There are 2 of a max of 20 players online: Alice, Bob",
	})
	c.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CST", 8*3600)) }

	sample, err := c.Collect()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 4, 0, 0, 0, time.UTC).Unix(), sample.Timestamp)
	assert.Equal(t, []string{"Alice", "Bob"}, sample.Players)
	assert.Equal(t, mcparse.TickTimes{Avg: 10.4, Min: 2.5, Max: 51.3}, sample.MSPT)
}

func TestCollectNoPlayers(t *testing.T) {
	c := NewCollector(scripted{
		"mspt": msptReply,
		"list": "There are 0 of a max of 20 players online: ",
	})
	sample, err := c.Collect()
	require.NoError(t, err)
	assert.Empty(t, sample.Players)
}

func TestCollectUnexpected(t *testing.T) {
	c := NewCollector(scripted{"mspt": "Unknown command", "list": ""})
	_, err := c.Collect()
	assert.ErrorIs(t, err, mcparse.ErrUnexpectedResponse)

	c = NewCollector(scripted{"mspt": msptReply, "list": "nope"})
	_, err = c.Collect()
	assert.ErrorIs(t, err, mcparse.ErrUnexpectedResponse)

	c = NewCollector(scripted{})
	_, err = c.Collect()
	assert.Error(t, err)
}

func at(hour, minute int) int64 {
	return time.Date(2024, 5, 1, hour, minute, 0, 0, time.UTC).Unix()
}

func TestBuildHourlyReport(t *testing.T) {
	var records []Record
	// 10点的十个采样，平均值 1..10
	for i := 0; i < 10; i++ {
		records = append(records, Record{
			Timestamp:   at(10, i*5),
			PlayerCount: i % 3,
			MsptMin:     float64(i) + 0.5,
			MsptAvg:     float64(10 - i),
			MsptMax:     float64(20 + i),
		})
	}
	records = append(records, Record{Timestamp: at(9, 59), PlayerCount: 4, MsptMin: 1, MsptAvg: 2, MsptMax: 3})

	report, err := BuildHourlyReport(records, []int{50, 90, 99}, time.UTC)
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)

	first := report.Rows[0]
	assert.Equal(t, "2024-05-01 09:00", first.Hour)
	assert.Equal(t, 4.0, first.Players)
	assert.Equal(t, []float64{2, 2, 2}, first.Percentiles)

	second := report.Rows[1]
	assert.Equal(t, "2024-05-01 10:00", second.Hour)
	assert.Equal(t, 10, second.Samples)
	// (0+1+2+0+1+2+0+1+2+0)/10 = 0.9
	assert.Equal(t, 0.9, second.Players)
	assert.Equal(t, 0.5, second.Min)
	assert.Equal(t, 29.0, second.Max)
	// 升序 1..10，下标 5、9、9
	assert.Equal(t, []float64{6, 10, 10}, second.Percentiles)
}

func TestBuildHourlyReportLocalHours(t *testing.T) {
	loc := time.FixedZone("X", 5*3600+1800)
	report, err := BuildHourlyReport([]Record{{Timestamp: at(10, 40), MsptAvg: 1}}, DefaultPercentiles, loc)
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "2024-05-01 16:00", report.Rows[0].Hour)
}

func TestBuildHourlyReportInvalidPercentile(t *testing.T) {
	_, err := BuildHourlyReport(nil, []int{100}, time.UTC)
	assert.Error(t, err)

	report, err := BuildHourlyReport(nil, DefaultPercentiles, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
}

func sampleReport() *Report {
	return &Report{
		Percentiles: []int{50, 95},
		Rows: []Row{
			{Hour: "2024-05-01 09:00", Players: 2, Min: 1.5, Percentiles: []float64{3, 7.25}, Max: 40.5, Samples: 12},
			{Hour: "2024-05-01 10:00", Players: 12.3, Min: 0.25, Percentiles: []float64{11, 18}, Max: 120, Samples: 12},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatBox, f)

	f, err = ParseFormat("Markdown")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)

	_, err = ParseFormat("html")
	assert.Error(t, err)
}

func TestWriteGrid(t *testing.T) {
	for _, format := range []Format{FormatBox, FormatTable} {
		var buf bytes.Buffer
		require.NoError(t, sampleReport().Write(&buf, format))

		lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
		require.Len(t, lines, 6, format)
		width := utf8.RuneCountInString(lines[0])
		for _, line := range lines {
			assert.Equal(t, width, utf8.RuneCountInString(line), "%s: %q", format, line)
		}
		assert.Contains(t, lines[1], "p95")
		assert.Contains(t, lines[3], "2024-05-01 09:00")
		assert.Contains(t, lines[3], "7.25")
		assert.Contains(t, lines[4], "12.3")
	}
}

func TestWriteBoxCorners(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Write(&buf, FormatBox))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "┌"))
	assert.Contains(t, out, "┼")
	assert.True(t, strings.HasSuffix(out, "┘\n"))
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Write(&buf, FormatMarkdown))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "| hour             | players |  min | p50 |  p95 |  max |", lines[0])
	assert.Equal(t, "|------------------|--------:|-----:|----:|-----:|-----:|", lines[1])
	assert.Equal(t, "| 2024-05-01 09:00 |     2.0 |  1.5 |   3 | 7.25 | 40.5 |", lines[2])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Write(&buf, FormatCSV))
	assert.Equal(t,
		"hour,players,min,p50,p95,max\n"+
			"2024-05-01 09:00,2.0,1.5,3,7.25,40.5\n"+
			"2024-05-01 10:00,12.3,0.25,11,18,120\n",
		buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Write(&buf, FormatJSON))

	out := buf.String()
	// 键按列顺序输出
	assert.Less(t, strings.Index(out, `"hour"`), strings.Index(out, `"players"`))
	assert.Less(t, strings.Index(out, `"p95"`), strings.Index(out, `"max"`))

	var rows []map[string]any
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-05-01 10:00", rows[1]["hour"])
	assert.Equal(t, 12.3, rows[1]["players"])
	assert.Equal(t, 7.25, rows[0]["p95"])
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Write(&buf, FormatYAML))

	var rows []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-05-01 09:00", rows[0]["hour"])
	assert.Equal(t, 40.5, rows[0]["max"])
	assert.True(t, strings.HasPrefix(buf.String(), "- hour: "))
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.Error(t, sampleReport().Write(&bytes.Buffer{}, Format("html")))
}
