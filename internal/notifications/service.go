package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hkmcoding/landie-next-sub000/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// mailSender is satisfied by *gomail.Dialer
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Service sends impact digests to Teams and email
type Service struct {
	config *config.Config
	client *resty.Client
	mailer mailSender
}

// Ensure Service implements Notifier
var _ Notifier = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
		mailer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
	}
}

// SendDigest sends the digest via every configured channel. Empty digests
// are skipped.
func (s *Service) SendDigest(ctx context.Context, digest *Digest) error {
	if digest.Empty() {
		logrus.Debug("Impact digest is empty, nothing to send")
		return nil
	}

	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(ctx, digest); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Successfully sent impact digest to Teams")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(digest); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent impact digest via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(ctx context.Context, digest *Digest) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(buildTeamsMessage(digest)).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func subject(digest *Digest) string {
	return fmt.Sprintf("Impact digest - %d measured, %d failed", digest.Measured, digest.Failed)
}

func buildTeamsMessage(digest *Digest) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   subject(digest),
		Text:    fmt.Sprintf("Measured suggestion impact across %d landing pages", digest.Pages),
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts: []TeamsFact{
			{Name: "Pages", Value: fmt.Sprintf("%d", digest.Pages)},
			{Name: "Measured", Value: fmt.Sprintf("%d", digest.Measured)},
			{Name: "Failed", Value: fmt.Sprintf("%d", digest.Failed)},
			{Name: "Generated", Value: digest.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		},
		Markdown: true,
	})

	if len(digest.Highlights) > 0 {
		var lines []string
		for _, h := range digest.Highlights {
			lines = append(lines, fmt.Sprintf("**%s** - %+.1f%% (%s confidence, page %s)", h.Title, h.Overall, h.Confidence, h.LandingPageID))
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Biggest changes",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	if len(digest.Errors) > 0 {
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Errors",
			ActivityText:  strings.Join(digest.Errors, "\n\n"),
		})
	}

	return message
}

func (s *Service) sendEmail(digest *Digest) error {
	htmlBody, err := buildEmailHTML(digest)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject(digest))
	m.SetBody("text/plain", buildEmailText(digest))
	m.AddAlternative("text/html", htmlBody)

	if err := s.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

const emailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Impact digest</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #4f46e5; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .item { border-left: 4px solid #605e5c; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .up { border-left-color: #107c10; }
        .down { border-left-color: #d13438; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Impact digest</h1>
        <p>Generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM MST"}}</p>
    </div>

    <div class="summary">
        <p><strong>Pages:</strong> {{.Pages}}</p>
        <p><strong>Measured:</strong> {{.Measured}}</p>
        <p><strong>Failed:</strong> {{.Failed}}</p>
    </div>

    {{if .Highlights}}
    <h2>Biggest changes</h2>
    {{range .Highlights}}
    <div class="item {{if gt .Overall 0.0}}up{{else}}down{{end}}">
        <strong>{{.Title}}</strong> {{printf "%+.1f" .Overall}}% ({{.Confidence}} confidence)
    </div>
    {{end}}
    {{end}}

    {{if .Errors}}
    <h2>Errors</h2>
    {{range .Errors}}<p>{{.}}</p>{{end}}
    {{end}}
</body>
</html>
`

var emailHTML = template.Must(template.New("email").Parse(emailTemplate))

func buildEmailHTML(digest *Digest) (string, error) {
	var buf bytes.Buffer
	if err := emailHTML.Execute(&buf, digest); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildEmailText(digest *Digest) string {
	var text strings.Builder

	text.WriteString("IMPACT DIGEST\n")
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", digest.GeneratedAt.Format("2006-01-02 15:04:05 MST")))
	text.WriteString(fmt.Sprintf("Pages: %d\nMeasured: %d\nFailed: %d\n", digest.Pages, digest.Measured, digest.Failed))

	if len(digest.Highlights) > 0 {
		text.WriteString("\nBIGGEST CHANGES\n")
		text.WriteString("===============\n")
		for i, h := range digest.Highlights {
			text.WriteString(fmt.Sprintf("%d. %s: %+.1f%% (%s confidence, page %s)\n", i+1, h.Title, h.Overall, h.Confidence, h.LandingPageID))
		}
	}

	if len(digest.Errors) > 0 {
		text.WriteString("\nERRORS\n")
		text.WriteString("======\n")
		for _, e := range digest.Errors {
			text.WriteString(fmt.Sprintf("- %s\n", e))
		}
	}

	return text.String()
}
