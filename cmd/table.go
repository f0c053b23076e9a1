package cmd

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"DubFlow/model"
	"DubFlow/storage"
)

const timeLayout = "2006-01-02 15:04:05"

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable 渲染命令行表格，行长度不足时补空
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func voiceRows(catalog []model.VoiceInfo) [][]string {
	rows := make([][]string, 0, len(catalog))
	for _, v := range catalog {
		rows = append(rows, []string{string(v.Name), v.Characteristics, strings.Join(v.Recommendations, ", ")})
	}
	return rows
}

func resultRows(results []*model.DubbingResult) [][]string {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		rows = append(rows, []string{res.RequestID, string(res.Status), res.CreatedAt.Format(timeLayout)})
	}
	return rows
}

func objectRows(objects []storage.ObjectInfo) [][]string {
	rows := make([][]string, 0, len(objects))
	for _, obj := range objects {
		rows = append(rows, []string{obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Format(timeLayout)})
	}
	return rows
}
