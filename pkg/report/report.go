// Package report renders the results of a pass as an HTML page, a plain
// text summary or a single audio file.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/pkg/config"
	"github.com/xhad/narrator/pkg/fileutil"
)

const (
	DefaultIcon  = "bi-globe"
	DefaultColor = "primary"
)

var ErrNoSegments = errors.New("no audio segments")

type page struct {
	Date   string
	Groups []group
}

type group struct {
	Category string
	Icon     string
	Color    string
	Sources  []source
}

type source struct {
	ID    string
	URL   string
	Error string
	Pages []models.PageResult
}

var tmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="de">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>News Report {{.Date}}</title>
    <link href="https://cdn.jsdelivr.net/npm/bootstrap@5.1.3/dist/css/bootstrap.min.css" rel="stylesheet">
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/bootstrap-icons@1.7.2/font/bootstrap-icons.css">
    <style>.analysis { white-space: pre-wrap; }</style>
</head>
<body>
<div class="container mt-5">
    <h1 class="mb-4">News Report {{.Date}}</h1>
{{- range .Groups}}
    <div class="card mb-4">
        <div class="card-header bg-{{.Color}} text-white">
            <i class="bi {{.Icon}}"></i> {{.Category}}
        </div>
        <div class="card-body">
{{- range .Sources}}
            <h5 class="card-title">Updates from: <a href="{{.URL}}" target="_blank">{{.URL}}</a></h5>
{{- if .Error}}
            <div class="alert alert-danger">{{.Error}}</div>
{{- else if not .Pages}}
            <p class="text-muted">No new content.</p>
{{- else}}
            <div class="accordion mb-3" id="accordion_{{.ID}}">
{{- $parent := .ID}}
{{- range $i, $p := .Pages}}
                <div class="accordion-item">
                    <h2 class="accordion-header">
                        <button class="accordion-button{{if $i}} collapsed{{end}}" type="button" data-bs-toggle="collapse" data-bs-target="#collapse_{{$parent}}_{{$i}}">
                            {{$p.URL}}
                        </button>
                    </h2>
                    <div id="collapse_{{$parent}}_{{$i}}" class="accordion-collapse collapse{{if not $i}} show{{end}}" data-bs-parent="#accordion_{{$parent}}">
                        <div class="accordion-body">
{{- if $p.Error}}
                            <div class="alert alert-warning">{{$p.Error}}</div>
{{- else}}
                            <div class="analysis">{{$p.Analysis}}</div>
{{- end}}
                        </div>
                    </div>
                </div>
{{- end}}
            </div>
{{- end}}
{{- end}}
        </div>
    </div>
{{- end}}
</div>
<script src="https://cdn.jsdelivr.net/npm/bootstrap@5.1.3/dist/js/bootstrap.bundle.min.js"></script>
</body>
</html>
`))

// WriteHTML renders results grouped by category in the order categories
// first appear. Failed sources are listed with their error.
func WriteHTML(w io.Writer, results []models.SourceResult, categories map[string]config.Category, at time.Time) error {
	p := page{Date: at.Format("02.01.2006 15:04")}

	index := make(map[string]int)
	for i, res := range results {
		name := res.Source.Category
		if name == "" {
			name = "uncategorized"
		}
		gi, ok := index[name]
		if !ok {
			cat := categories[name]
			g := group{Category: name, Icon: cat.Icon, Color: cat.Color}
			if g.Icon == "" {
				g.Icon = DefaultIcon
			}
			if g.Color == "" {
				g.Color = DefaultColor
			}
			gi = len(p.Groups)
			index[name] = gi
			p.Groups = append(p.Groups, g)
		}
		p.Groups[gi].Sources = append(p.Groups[gi].Sources, source{
			ID:    fmt.Sprintf("s%d", i),
			URL:   res.Source.ID,
			Error: res.Error,
			Pages: res.Pages,
		})
	}

	if err := tmpl.Execute(w, p); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// WriteHTMLFile renders the report to path atomically.
func WriteHTMLFile(path string, results []models.SourceResult, categories map[string]config.Category, at time.Time) error {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, results, categories, at); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// Summary lists every source and page with its analysis or error.
func Summary(results []models.SourceResult) string {
	var sb strings.Builder
	for _, res := range results {
		fmt.Fprintf(&sb, "== %s [%s]\n", res.Source.ID, res.Source.Category)
		switch {
		case res.Error != "":
			fmt.Fprintf(&sb, "error: %s\n", res.Error)
		case len(res.Pages) == 0:
			sb.WriteString("no new content\n")
		}
		for _, p := range res.Pages {
			if p.URL != res.Source.ID {
				fmt.Fprintf(&sb, "-- %s\n", p.URL)
			}
			if p.Error != "" {
				fmt.Fprintf(&sb, "error: %s\n", p.Error)
				continue
			}
			sb.WriteString(strings.TrimSpace(p.Analysis))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Transcript joins all analyses for reading aloud.
func Transcript(results []models.SourceResult) string {
	var parts []string
	for _, res := range results {
		parts = append(parts, res.Analyses()...)
	}
	return strings.Join(parts, "\n\n")
}
