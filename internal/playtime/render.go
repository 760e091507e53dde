package playtime

import (
	"html/template"
	"io"
	"time"
)

var pageTemplate = template.Must(template.New("playtimes").Funcs(template.FuncMap{
	"duration": FormatDuration,
}).Parse(`<!doctype html>
<html>
    <head>
        <title>Playtimes</title>
        <style>
            body {
                font-family: sans-serif;
                font-size: 2rem;
                background-color: #f3f4f6;
            }
            table {
                border-collapse: collapse;
                width: 100%;
                max-width: 50rem;
                margin: 3rem auto;
                overflow: hidden;
                border-radius: 0.5rem;
                background-color: white;
                box-shadow: rgba(0, 0, 0, 0.1) 0px 4px 6px -1px, rgba(0, 0, 0, 0.1) 0px 2px 4px -2px;
            }
            th {
                background-color: #3b82f6;
                color: white;
                padding: 1rem 2rem;
                text-align: left;
            }
            td {
                border-bottom: 1px solid #e2e4e8;
                padding: 1rem 2rem;
            }
            span.duration {
                color: #586069;
                font-family: monospace;
            }
            div.footer {
                max-width: 50rem;
                width: 100%;
                margin: 3rem auto;
                text-align: center;
            }
        </style>
        <link rel="icon" type="image/png" sizes="16x16" href="images/icons/favicon-16x16.png" />
        <link rel="icon" type="image/png" sizes="32x32" href="images/icons/favicon-32x32.png" />
        <link rel="apple-touch-icon" sizes="180x180" href="images/icons/apple-touch-icon.png" />
    </head>
    <body>
        <table>
            <thead>
                <tr>
                    <th>Player</th>
                    <th>Playtime (Last 30 Days)</th>
                </tr>
            </thead>
            <tbody>
{{- range .Entries}}
                <tr>
                    <td>{{.Player}}</td>
                    <td><span class="duration">{{duration .Duration}}</span></td>
                </tr>
{{- end}}
            </tbody>
        </table>
        <div class="footer">
            Last updated: {{.Updated}}
        </div>
    </body>
</html>
`))

// Render 输出在线时长排行页面
func Render(w io.Writer, entries []Entry, updated time.Time) error {
	return pageTemplate.Execute(w, struct {
		Entries []Entry
		Updated string
	}{
		Entries: entries,
		Updated: updated.Format("2006/01/02 15:04:05 MST"),
	})
}
