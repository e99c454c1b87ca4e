// Package export renders stored reviews as standalone documents. HTML is
// produced server-side; PDF drives headless Chrome over the same HTML.
package export

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/internal/notify"
	"github.com/patchlens/patchlens/pkg/errors"
	"github.com/patchlens/patchlens/pkg/logger"
)

// Format selects the export document type
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// ParseFormat validates a format query value. Empty selects HTML.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", errors.Newf(errors.KindMalformed, "unsupported export format %q", s)
	}
}

// Exporter renders reviews into standalone documents
type Exporter struct {
	md     goldmark.Markdown
	pdf    PDFOptions
	logger *zap.Logger
}

// New creates an exporter with default PDF options
func New() *Exporter {
	return &Exporter{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		pdf:    DefaultPDFOptions(),
		logger: logger.Named("export"),
	}
}

// pageData is the document template input
type pageData struct {
	Title    string
	Project  string
	Repo     string
	Ref      string
	Author   string
	Date     string
	Provider string
	Model    string
	Body     template.HTML
}

// HTML renders a review as a self-contained document with print styling,
// served directly for format=html and fed to Chrome for format=pdf.
func (e *Exporter) HTML(record *model.ReviewRecord) ([]byte, error) {
	var converted bytes.Buffer
	if err := e.md.Convert([]byte(record.ReviewFeedback), &converted); err != nil {
		return nil, errors.Wrap(errors.KindInternal, "failed to convert review markdown", err)
	}

	data := pageData{
		Title:    notify.Subject(record),
		Project:  record.ProjectKey,
		Repo:     record.RepoSlug,
		Ref:      refLabel(record),
		Author:   record.AuthorName,
		Date:     record.CreatedAt.Format("2006-01-02 15:04"),
		Provider: record.LLMProvider,
		Model:    record.LLMModel,
		Body:     template.HTML(converted.String()),
	}

	var out bytes.Buffer
	if err := documentShell.Execute(&out, data); err != nil {
		return nil, errors.Wrap(errors.KindInternal, "failed to render export document", err)
	}
	return out.Bytes(), nil
}

func refLabel(record *model.ReviewRecord) string {
	if record.MergeReqID > 0 {
		return fmt.Sprintf("PR #%d", record.MergeReqID)
	}
	return "commit " + record.CommitID
}

var documentShell = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
* { box-sizing: border-box; margin: 0; padding: 0; }
body {
  font-family: system-ui, -apple-system, 'Segoe UI', Roboto, sans-serif;
  font-size: 15px;
  line-height: 1.6;
  color: #1a1a1a;
  background: #ffffff;
}
.container { max-width: 860px; margin: 0 auto; padding: 32px 24px; }
.review-header {
  text-align: center;
  padding-bottom: 20px;
  margin-bottom: 24px;
  border-bottom: 2px solid #2563eb;
}
.review-header h1 { font-size: 22px; font-weight: 700; color: #1e40af; margin-bottom: 8px; }
.review-meta { font-size: 13px; color: #666; }
.review-meta span { margin: 0 10px; }
.markdown-content h1 {
  font-size: 19px; font-weight: 700; color: #1e40af;
  margin: 22px 0 10px; padding-bottom: 6px; border-bottom: 2px solid #2563eb;
}
.markdown-content h2 {
  font-size: 17px; font-weight: 700; color: #1e3a8a;
  margin: 20px 0 8px; padding-bottom: 4px; border-bottom: 1px solid #e2e8f0;
}
.markdown-content h3 {
  font-size: 15px; font-weight: 600; color: #334155;
  margin: 16px 0 6px; padding-left: 10px; border-left: 3px solid #2563eb;
}
.markdown-content p { margin: 8px 0; word-wrap: break-word; }
.markdown-content ul, .markdown-content ol { margin: 8px 0; padding-left: 22px; }
.markdown-content li { margin: 3px 0; }
.markdown-content blockquote {
  border-left: 3px solid #2563eb; margin: 10px 0; padding: 8px 12px;
  color: #64748b; background: #f8fafc;
}
.markdown-content code {
  font-family: ui-monospace, 'SF Mono', Consolas, monospace;
  font-size: 86%; background: #f1f5f9; padding: 1px 4px;
  border-radius: 3px; color: #c7254e;
}
.markdown-content pre { margin: 10px 0; border-radius: 6px; overflow-x: auto; }
.markdown-content pre code {
  display: block; padding: 12px; background: #1e293b; color: #e2e8f0;
  font-size: 13px; line-height: 1.5;
}
.markdown-content table {
  width: 100%; border-collapse: collapse; margin: 10px 0; font-size: 14px;
}
.markdown-content th, .markdown-content td {
  border: 1px solid #e2e8f0; padding: 6px 10px; text-align: left;
}
.markdown-content th { background: #f1f5f9; font-weight: 600; color: #334155; }
.markdown-content tr:nth-child(even) { background: #f8fafc; }
.markdown-content a { color: #2563eb; text-decoration: none; }
.markdown-content hr { border: none; border-top: 1px solid #e2e8f0; margin: 16px 0; }
.review-footer {
  margin-top: 28px; padding-top: 12px; border-top: 1px solid #e2e8f0;
  font-size: 12px; color: #666;
}
@media print {
  body { font-size: 10pt; -webkit-print-color-adjust: exact; print-color-adjust: exact; }
  .container { max-width: 100%; padding: 0; }
  h1, h2, h3, h4 { page-break-after: avoid; }
  pre, blockquote, table { page-break-inside: avoid; }
  p, li { orphans: 3; widows: 3; }
}
</style>
</head>
<body>
<div class="container">
  <div class="review-header">
    <h1>{{.Title}}</h1>
    <div class="review-meta">
      <span>Repo: {{.Project}}/{{.Repo}}</span>
      <span>Ref: {{.Ref}}</span>
      {{with .Author}}<span>Author: {{.}}</span>{{end}}
      <span>Date: {{.Date}}</span>
    </div>
  </div>
  <div class="markdown-content">{{.Body}}</div>
  <div class="review-footer">Reviewed by {{.Provider}}/{{.Model}}. This document was generated automatically.</div>
</div>
</body>
</html>
`))
