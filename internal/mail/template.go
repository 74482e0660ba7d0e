package mail

import (
	"bytes"
	"html/template"
	"net/url"

	"github.com/forgo/jobboard/internal/model"
)

const jobPostedHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 640px; margin: 0 auto; padding: 20px; }
h1 { font-size: 1.4em; margin-bottom: 4px; }
.description { white-space: pre-wrap; margin: 16px 0; }
.apply { display: inline-block; padding: 10px 18px; background: #2c7be5; color: #fff; border-radius: 4px; text-decoration: none; }
.footer { margin-top: 30px; font-size: 0.85em; color: #7f8c8d; }
</style>
</head>
<body>
<p class="greeting">Hi {{.FullName}},</p>
<p>A new job was just posted:</p>
<h1 class="title">{{.Title}}</h1>
<div class="description">{{.Description}}</div>
{{if .Link}}<p><a class="apply" href="{{.Link}}">View the job</a></p>{{end}}
<p class="footer">You are receiving this because you subscribed to new job alerts.</p>
</body>
</html>
`

var jobPostedTemplate = template.Must(template.New("job_posted").Parse(jobPostedHTML))

type jobPostedData struct {
	FullName    string
	Title       string
	Description string
	Link        template.URL
}

// JobPostedSubject returns the subject line for a new-job email
func JobPostedSubject(job *model.Job) string {
	return "New job posted: " + job.Title
}

// RenderJobPosted renders the HTML body of a new-job email. Text fields are
// escaped; the link is only emitted for absolute http(s) URLs.
func RenderJobPosted(r model.Recipient, job *model.Job) (string, error) {
	name := r.FullName
	if name == "" {
		name = "there"
	}

	data := jobPostedData{
		FullName:    name,
		Title:       job.Title,
		Description: job.Description,
	}
	if u, err := url.Parse(job.ExternalLink); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		data.Link = template.URL(u.String())
	}

	var buf bytes.Buffer
	if err := jobPostedTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
