package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/leolhan1425/bc-tracker/internal/config"
	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

const topCountsInReport = 10

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
	dialer *gomail.Dialer
}

var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
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
	s := &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
	if cfg.NotificationEmail != "" {
		s.dialer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	}
	return s
}

// SendReport sends a pass report via every configured channel. A failing
// channel does not stop the others.
func (s *Service) SendReport(ctx context.Context, report *models.Report) error {
	var errs []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.postTeams(ctx, s.buildTeamsMessage(report)); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errs = append(errs, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Sent report to Teams")
		}
	}

	if s.dialer != nil {
		if err := s.sendEmail(report); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errs = append(errs, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Sent report via email")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SendAlert posts an alert to Teams. Alerts are not emailed.
func (s *Service) SendAlert(ctx context.Context, alert *models.Alert) error {
	logrus.Warnf("Alert: %s - %s", alert.Type, alert.Title)
	if s.config.TeamsWebhookURL == "" {
		return nil
	}

	msg := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: "d13438",
		Title:      alert.Title,
		Text:       alert.Message,
	}
	if err := s.postTeams(ctx, msg); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	return nil
}

func (s *Service) postTeams(ctx context.Context, message *TeamsMessage) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)
	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

func reportTitle(report *models.Report) string {
	title := fmt.Sprintf("Contraceptive Mentions - %s", report.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"))
	if report.Partial {
		title += " (partial)"
	}
	return title
}

func (s *Service) buildTeamsMessage(report *models.Report) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   reportTitle(report),
	}

	if sum := report.Summary; sum != nil {
		message.Text = fmt.Sprintf("Ingested %d posts (%d new) and %d new comments across %d communities",
			sum.ItemsSeen, sum.ItemsNew, sum.CommentsNew, len(sum.Communities))

		facts := []TeamsFact{
			{Name: "Posts seen", Value: fmt.Sprintf("%d", sum.ItemsSeen)},
			{Name: "New posts", Value: fmt.Sprintf("%d", sum.ItemsNew)},
			{Name: "New comments", Value: fmt.Sprintf("%d", sum.CommentsNew)},
			{Name: "Errors", Value: fmt.Sprintf("%d", sum.ErrorCount)},
			{Name: "Duration", Value: sum.Duration},
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "This run",
			Facts:         facts,
			Markdown:      true,
		})
	}

	if st := report.Stats; st != nil {
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Store",
			Facts: []TeamsFact{
				{Name: "Total posts", Value: fmt.Sprintf("%d", st.TotalPosts)},
				{Name: "Total comments", Value: fmt.Sprintf("%d", st.TotalComments)},
				{Name: "Errors (24h)", Value: fmt.Sprintf("%d", st.ErrorCount24h)},
			},
		})
	}

	if len(report.TopCounts) > 0 {
		var lines []string
		for i, c := range report.TopCounts {
			if i >= topCountsInReport {
				break
			}
			lines = append(lines, fmt.Sprintf("**%s**: %d", c.Category, c.Count))
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Most mentioned",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func (s *Service) sendEmail(report *models.Report) error {
	htmlBody, err := buildEmailHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", reportTitle(report))
	m.SetBody("text/plain", buildEmailText(report))
	m.AddAlternative("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

var emailTemplate = template.Must(template.New("email").Funcs(template.FuncMap{
	"top": func(counts []models.CategoryCount) []models.CategoryCount {
		if len(counts) > topCountsInReport {
			return counts[:topCountsInReport]
		}
		return counts
	},
}).Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Contraceptive Mentions Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #2b7a4b; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .partial { color: #d13438; font-weight: bold; }
        td { padding: 4px 12px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Contraceptive Mentions Report</h1>
        <p>Generated on {{.GeneratedAt.Format "January 2, 2006 at 15:04 UTC"}}</p>
    </div>
    {{if .Partial}}<p class="partial">Some communities could not be ingested. Figures may be stale.</p>{{end}}

    {{with .Summary}}
    <div class="summary">
        <h2>This run</h2>
        <p><strong>Posts seen:</strong> {{.ItemsSeen}} ({{.ItemsNew}} new)</p>
        <p><strong>New comments:</strong> {{.CommentsNew}}</p>
        <p><strong>Errors:</strong> {{.ErrorCount}}</p>
    </div>
    {{end}}

    {{if .TopCounts}}
    <h2>Most mentioned</h2>
    <table>
    {{range top .TopCounts}}
        <tr><td>{{.Category}}</td><td>{{.Count}}</td></tr>
    {{end}}
    </table>
    {{end}}

    <hr>
    <p><small>This report was generated automatically by the contraceptive mention tracker.</small></p>
</body>
</html>
`))

func buildEmailHTML(report *models.Report) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildEmailText(report *models.Report) string {
	var text strings.Builder

	text.WriteString(reportTitle(report) + "\n\n")
	if report.Partial {
		text.WriteString("WARNING: some communities could not be ingested. Figures may be stale.\n\n")
	}

	if sum := report.Summary; sum != nil {
		text.WriteString("THIS RUN\n")
		text.WriteString("========\n")
		text.WriteString(fmt.Sprintf("Posts seen: %d (%d new)\n", sum.ItemsSeen, sum.ItemsNew))
		text.WriteString(fmt.Sprintf("New comments: %d\n", sum.CommentsNew))
		text.WriteString(fmt.Sprintf("Errors: %d\n", sum.ErrorCount))
	}

	if len(report.TopCounts) > 0 {
		text.WriteString("\nMOST MENTIONED\n")
		text.WriteString("==============\n")
		for i, c := range report.TopCounts {
			if i >= topCountsInReport {
				break
			}
			text.WriteString(fmt.Sprintf("%2d. %-25s %d\n", i+1, c.Category, c.Count))
		}
	}

	text.WriteString("\n---\nThis report was generated automatically by the contraceptive mention tracker.\n")
	return text.String()
}
