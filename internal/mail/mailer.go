// Package mail sends the import completion notification through the HTTP
// email delivery API.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/northlink/link-importer/internal/config"
	"github.com/northlink/link-importer/internal/domain"
	"github.com/northlink/link-importer/internal/httpx"
	"github.com/northlink/link-importer/internal/logger"
)

// CompletionNotification parameterizes the one email sent per import.
type CompletionNotification struct {
	To        string
	Workspace string
	Provider  string
	Total     int64
	Domains   []string
	Links     []domain.LinkSummary
}

// completionTemplate is the email body. Kept deliberately plain; the
// dashboard owns anything fancier.
var completionTemplate = template.Must(template.New("import-complete").Parse(`
<p>Your {{.Provider}} import into <strong>{{.Workspace}}</strong> is complete.</p>
<p>We imported <strong>{{.Total}}</strong> links across the following domains:</p>
<ul>
{{- range .Domains}}
  <li>{{.}}</li>
{{- end}}
</ul>
{{- if .Links}}
<p>A few of your newest links:</p>
<ul>
{{- range .Links}}
  <li><a href="https://{{.ShortURL}}">{{.ShortURL}}</a> &rarr; {{.URL}}</li>
{{- end}}
</ul>
{{- end}}
`))

// Mailer delivers templated notifications via the configured email API.
type Mailer struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
	logger   logger.Logger
}

// NewMailer creates a Mailer from mail configuration.
func NewMailer(cfg config.MailConfig, log logger.Logger) *Mailer {
	return &Mailer{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		from:     cfg.From,
		client:   httpx.NewClient(&httpx.ClientConfig{Timeout: cfg.Timeout}),
		logger:   log,
	}
}

// SendImportComplete sends the single completion email for an import. With
// no endpoint configured (local development) the notification is logged and
// dropped.
func (m *Mailer) SendImportComplete(ctx context.Context, n CompletionNotification) error {
	if m.endpoint == "" {
		m.logger.Info("Mail endpoint not configured, skipping completion notification",
			logger.String("workspace", n.Workspace),
			logger.Int64("total", n.Total),
		)
		return nil
	}

	var body bytes.Buffer
	if err := completionTemplate.Execute(&body, n); err != nil {
		return fmt.Errorf("render completion email: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"from":    m.from,
		"to":      n.To,
		"subject": fmt.Sprintf("Your %s links have been imported", n.Provider),
		"html":    body.String(),
	})
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send completion email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("mail API returned status %d", resp.StatusCode)
	}

	m.logger.Info("Completion notification sent",
		logger.String("to", n.To),
		logger.String("provider", n.Provider),
		logger.Int64("total", n.Total),
	)

	return nil
}
