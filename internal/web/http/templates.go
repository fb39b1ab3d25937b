package http

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templatesFS embed.FS

func parseTemplates() (*template.Template, error) {
	return template.ParseFS(templatesFS, "templates/*.html")
}

type loginView struct {
	Title    string
	Username string
	Error    string
}

type dailyView struct {
	Title     string
	Username  string
	Captcha   string
	Error     string
	Success   string
	Remaining string
}

type profileView struct {
	Title    string
	Username string
	Balance  int64
	Days     int
}

type errorView struct {
	Title string
	Error string
}
