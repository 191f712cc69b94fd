package mail_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/northlink/link-importer/internal/config"
	"github.com/northlink/link-importer/internal/domain"
	"github.com/northlink/link-importer/internal/logger"
	"github.com/northlink/link-importer/internal/mail"
)

func testNotification() mail.CompletionNotification {
	return mail.CompletionNotification{
		To:        "owner@acme.test",
		Workspace: "acme",
		Provider:  "bitly",
		Total:     140,
		Domains:   []string{"nl.ink", "go.nl.ink"},
		Links: []domain.LinkSummary{
			{Domain: "nl.ink", Key: "promo", URL: "https://example.com/promo"},
		},
	}
}

func TestSendImportComplete(t *testing.T) {
	var payload map[string]string
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mailer := mail.NewMailer(config.MailConfig{
		Endpoint: server.URL,
		APIKey:   "mail-key",
		From:     "no-reply@northlink.dev",
		Timeout:  5 * time.Second,
	}, logger.NewNop())

	if err := mailer.SendImportComplete(context.Background(), testNotification()); err != nil {
		t.Fatalf("SendImportComplete() error = %v", err)
	}

	if gotAuth != "Bearer mail-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if payload["to"] != "owner@acme.test" {
		t.Errorf("to = %q", payload["to"])
	}
	if payload["from"] != "no-reply@northlink.dev" {
		t.Errorf("from = %q", payload["from"])
	}
	if payload["subject"] != "Your bitly links have been imported" {
		t.Errorf("subject = %q", payload["subject"])
	}

	html := payload["html"]
	if !strings.Contains(html, "<strong>140</strong>") {
		t.Errorf("html missing total: %s", html)
	}
	if !strings.Contains(html, "nl.ink/promo") {
		t.Errorf("html missing sample link: %s", html)
	}
	if !strings.Contains(html, "go.nl.ink") {
		t.Errorf("html missing domain list: %s", html)
	}
}

func TestSendImportCompleteSkipsWithoutEndpoint(t *testing.T) {
	mailer := mail.NewMailer(config.MailConfig{}, logger.NewNop())

	// Local development has no mail endpoint; the notification is dropped,
	// not failed.
	if err := mailer.SendImportComplete(context.Background(), testNotification()); err != nil {
		t.Errorf("SendImportComplete() error = %v, want nil", err)
	}
}

func TestSendImportCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	mailer := mail.NewMailer(config.MailConfig{Endpoint: server.URL}, logger.NewNop())

	if err := mailer.SendImportComplete(context.Background(), testNotification()); err == nil {
		t.Error("SendImportComplete() should fail on a non-2xx response")
	}
}
