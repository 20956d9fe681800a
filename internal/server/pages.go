package server

import (
	"html/template"
	"net/http"
	"time"
)

type statusPage struct {
	Title    string
	Message  string
	Detail   string
	Redirect string
	Delay    int
}

type dashboardRow struct {
	Name        string
	UserInfo    string
	ConnectedAt time.Time
}

type dashboardPage struct {
	Authenticated bool
	Providers     []dashboardRow
}

var statusTmpl = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title>
{{- if .Redirect}}
<meta http-equiv="refresh" content="{{.Delay}};url={{.Redirect}}">
{{- end}}
</head><body>
<h1>{{.Title}}</h1>
{{- if .Message}}
<p>{{.Message}}</p>
{{- end}}
<p>{{.Detail}}</p>
</body></html>
`))

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>DriveBox</title></head><body>
<h1>Connected providers</h1>
{{- if .Providers}}
<ul>
{{- range .Providers}}
<li>{{.Name}}{{if .UserInfo}} ({{.UserInfo}}){{end}}{{if not .ConnectedAt.IsZero}}, connected {{.ConnectedAt.Format "2006-01-02"}}{{end}}</li>
{{- end}}
</ul>
{{- else}}
<p>No providers connected.</p>
{{- end}}
<p>You can close this window and return to the terminal.</p>
</body></html>
`))

func render(w http.ResponseWriter, status int, page statusPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = statusTmpl.Execute(w, page)
}

func renderDashboard(w http.ResponseWriter, page dashboardPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = dashboardTmpl.Execute(w, page)
}
