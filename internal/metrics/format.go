package metrics

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// Format 报表输出格式
type Format string

const (
	FormatBox      Format = "box"
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// Formats 支持的全部输出格式
var Formats = []Format{FormatBox, FormatTable, FormatCSV, FormatJSON, FormatYAML, FormatMarkdown}

// ParseFormat 解析输出格式名，空字符串为 box
func ParseFormat(name string) (Format, error) {
	if name == "" {
		return FormatBox, nil
	}
	for _, f := range Formats {
		if strings.EqualFold(string(f), name) {
			return f, nil
		}
	}
	return "", fmt.Errorf("不支持的输出格式: %s", name)
}

// Columns 返回报表的列名
func (r *Report) Columns() []string {
	cols := []string{"hour", "players", "min"}
	for _, p := range r.Percentiles {
		cols = append(cols, "p"+strconv.Itoa(p))
	}
	return append(cols, "max")
}

// cells 把一行转换成与 Columns 对应的字符串
func (r *Report) cells(row Row) []string {
	cells := []string{row.Hour, strconv.FormatFloat(row.Players, 'f', 1, 64), formatMSPT(row.Min)}
	for _, v := range row.Percentiles {
		cells = append(cells, formatMSPT(v))
	}
	return append(cells, formatMSPT(row.Max))
}

func formatMSPT(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Write 以指定格式输出报表
func (r *Report) Write(w io.Writer, format Format) error {
	switch format {
	case FormatBox, "":
		return r.writeGrid(w, boxStyle)
	case FormatTable:
		return r.writeGrid(w, tableStyle)
	case FormatMarkdown:
		return r.writeMarkdown(w)
	case FormatCSV:
		return r.writeCSV(w)
	case FormatJSON:
		return r.writeJSON(w)
	case FormatYAML:
		return r.writeYAML(w)
	default:
		return fmt.Errorf("不支持的输出格式: %s", format)
	}
}

// gridStyle 文本表格的边框字符
type gridStyle struct {
	horizontal, vertical string
	top, middle, bottom  [3]string // 左、交叉、右
}

var boxStyle = gridStyle{
	horizontal: "─",
	vertical:   "│",
	top:        [3]string{"┌", "┬", "┐"},
	middle:     [3]string{"├", "┼", "┤"},
	bottom:     [3]string{"└", "┴", "┘"},
}

var tableStyle = gridStyle{
	horizontal: "-",
	vertical:   "|",
	top:        [3]string{"+", "+", "+"},
	middle:     [3]string{"+", "+", "+"},
	bottom:     [3]string{"+", "+", "+"},
}

func (r *Report) table() ([]string, [][]string, []int) {
	header := r.Columns()
	rows := make([][]string, len(r.Rows))
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for i, row := range r.Rows {
		rows[i] = r.cells(row)
		for j, cell := range rows[i] {
			widths[j] = max(widths[j], utf8.RuneCountInString(cell))
		}
	}
	return header, rows, widths
}

func (r *Report) writeGrid(w io.Writer, style gridStyle) error {
	header, rows, widths := r.table()
	if len(rows) == 0 {
		return nil
	}

	var buf bytes.Buffer
	rule := func(edge [3]string) {
		buf.WriteString(edge[0])
		for i, width := range widths {
			if i > 0 {
				buf.WriteString(edge[1])
			}
			buf.WriteString(strings.Repeat(style.horizontal, width+2))
		}
		buf.WriteString(edge[2])
		buf.WriteByte('\n')
	}
	line := func(cells []string, center bool) {
		buf.WriteString(style.vertical)
		for i, cell := range cells {
			pad := widths[i] - utf8.RuneCountInString(cell)
			left := pad
			if i == 0 {
				// 小时列左对齐，数值列右对齐
				left = 0
			}
			if center {
				left = pad / 2
			}
			buf.WriteString(" " + strings.Repeat(" ", left) + cell + strings.Repeat(" ", pad-left) + " ")
			buf.WriteString(style.vertical)
		}
		buf.WriteByte('\n')
	}

	rule(style.top)
	line(header, true)
	rule(style.middle)
	for _, cells := range rows {
		line(cells, false)
	}
	rule(style.bottom)

	_, err := w.Write(buf.Bytes())
	return err
}

func (r *Report) writeMarkdown(w io.Writer) error {
	header, rows, widths := r.table()

	var buf bytes.Buffer
	line := func(cells []string) {
		buf.WriteString("|")
		for i, cell := range cells {
			pad := strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell))
			if i == 0 {
				buf.WriteString(" " + cell + pad + " |")
			} else {
				buf.WriteString(" " + pad + cell + " |")
			}
		}
		buf.WriteByte('\n')
	}

	line(header)
	buf.WriteString("|")
	for i, width := range widths {
		if i == 0 {
			buf.WriteString(strings.Repeat("-", width+2) + "|")
		} else {
			buf.WriteString(strings.Repeat("-", width+1) + ":|")
		}
	}
	buf.WriteByte('\n')
	for _, cells := range rows {
		line(cells)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func (r *Report) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.Columns()); err != nil {
		return err
	}
	for _, row := range r.Rows {
		if err := cw.Write(r.cells(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// orderedRow 按列顺序序列化的一行
type orderedRow struct {
	keys   []string
	values []any
}

func (r *Report) orderedRows() []orderedRow {
	cols := r.Columns()
	rows := make([]orderedRow, len(r.Rows))
	for i, row := range r.Rows {
		values := []any{row.Hour, row.Players, row.Min}
		for _, v := range row.Percentiles {
			values = append(values, v)
		}
		rows[i] = orderedRow{keys: cols, values: append(values, row.Max)}
	}
	return rows
}

func (o orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := sonic.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := sonic.Marshal(o.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o orderedRow) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for i, key := range o.keys {
		var value yaml.Node
		if err := value.Encode(o.values[i]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, &value)
	}
	return node, nil
}

func (r *Report) writeJSON(w io.Writer) error {
	data, err := sonic.ConfigStd.MarshalIndent(r.orderedRows(), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func (r *Report) writeYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.orderedRows()); err != nil {
		return err
	}
	return enc.Close()
}
