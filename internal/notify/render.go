package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/pkg/errors"
)

// shortCommitLen is how many hash characters appear in subjects
const shortCommitLen = 10

// emailShell wraps the converted review markdown in a self-contained HTML
// document. Styling is inlined so the result survives mail clients that
// strip external resources.
var emailShell = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Subject}}</title>
<style>
body { margin: 0; padding: 24px; background: #ffffff; color: #1f2328; font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; font-size: 14px; line-height: 1.5; }
.container { max-width: 760px; margin: 0 auto; }
h1, h2, h3 { border-bottom: 1px solid #d1d9e0; padding-bottom: 4px; }
pre { background: #f6f8fa; border-radius: 6px; padding: 12px; overflow-x: auto; }
code { font-family: ui-monospace, SFMono-Regular, Consolas, "Liberation Mono", monospace; font-size: 85%; }
pre code { font-size: 100%; }
table { border-collapse: collapse; }
th, td { border: 1px solid #d1d9e0; padding: 4px 8px; }
blockquote { border-left: 3px solid #d1d9e0; margin: 0; padding-left: 12px; color: #59636e; }
.meta { color: #59636e; margin-bottom: 16px; }
.footer { color: #59636e; font-size: 12px; border-top: 1px solid #d1d9e0; padding-top: 8px; margin-top: 24px; }
</style>
</head>
<body>
<div class="container">
<p class="meta">{{.Subject}}{{with .Author}} &middot; {{.}}{{end}}</p>
{{.Body}}
<p class="footer">This review was generated automatically.{{with .Contact}} Contact: {{.}}{{end}}</p>
</div>
</body>
</html>
`))

type emailData struct {
	Subject string
	Author  string
	Contact string
	Body    template.HTML
}

// Render converts the review feedback markdown to HTML and wraps it in the
// email shell. It performs no I/O and does not depend on delivery settings
// beyond the configured contact address.
func (n *emailNotifier) Render(record *model.ReviewRecord) (string, string, error) {
	subject := Subject(record)

	var converted bytes.Buffer
	if err := n.md.Convert([]byte(record.ReviewFeedback), &converted); err != nil {
		return "", "", errors.Wrap(errors.KindInternal, "failed to convert review markdown", err)
	}

	var page bytes.Buffer
	data := emailData{
		Subject: subject,
		Author:  record.AuthorName,
		Contact: n.cfg.FromAddress,
		Body:    template.HTML(converted.String()),
	}
	if err := emailShell.Execute(&page, data); err != nil {
		return "", "", errors.Wrap(errors.KindInternal, "failed to render email body", err)
	}
	return subject, page.String(), nil
}

// Subject builds the email subject line for a review
func Subject(record *model.ReviewRecord) string {
	return fmt.Sprintf("Code Review: %s/%s %s", record.ProjectKey, record.RepoSlug, refLabel(record))
}

// refLabel names the reviewed change. Merge requests win over commits, which
// mirrors how records are classified.
func refLabel(record *model.ReviewRecord) string {
	if record.MergeReqID > 0 {
		return fmt.Sprintf("PR #%d", record.MergeReqID)
	}
	commit := record.CommitID
	if len(commit) > shortCommitLen {
		commit = commit[:shortCommitLen]
	}
	return "commit " + commit
}
