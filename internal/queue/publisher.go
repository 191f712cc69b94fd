package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/northlink/link-importer/internal/domain"
	"github.com/northlink/link-importer/internal/httpx"
	"github.com/northlink/link-importer/internal/logger"
)

// Headers the queue transport reads from a published message.
const (
	// SignatureHeader carries the message authenticity token.
	SignatureHeader = "X-Queue-Signature"
	// DelayHeader asks the transport to hold the message before delivery.
	DelayHeader = "X-Queue-Delay"
	// MessageIDHeader identifies one published message for transport logs.
	MessageIDHeader = "X-Queue-Message-Id"
)

const publishTimeout = 10 * time.Second

// Publisher enqueues import job messages on the durable queue transport.
type Publisher struct {
	url    string
	signer *Signer
	client *http.Client
	logger logger.Logger
}

// NewPublisher creates a Publisher posting to the given queue endpoint.
func NewPublisher(url string, signer *Signer, log logger.Logger) *Publisher {
	return &Publisher{
		url:    url,
		signer: signer,
		client: httpx.NewClient(&httpx.ClientConfig{Timeout: publishTimeout}),
		logger: log,
	}
}

// Enqueue publishes a job message, optionally delayed. The transport delivers
// it back to the import trigger endpoint, which is how one invocation hands
// the next page of work to its successor.
func (p *Publisher) Enqueue(ctx context.Context, msg domain.JobMessage, delay time.Duration) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal job message: %w", err)
	}

	signature, err := p.signer.Sign(body)
	if err != nil {
		return fmt.Errorf("sign job message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create publish request: %w", err)
	}

	messageID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)
	req.Header.Set(MessageIDHeader, messageID)
	if delay > 0 {
		req.Header.Set(DelayHeader, delay.String())
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("queue transport returned status %d", resp.StatusCode)
	}

	p.logger.Debug("Enqueued job message",
		logger.String("message_id", messageID),
		logger.String("workspace_id", msg.WorkspaceID),
		logger.String("provider", msg.Provider),
		logger.Duration("delay", delay),
	)

	return nil
}
