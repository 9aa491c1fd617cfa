package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/warepulse/stockwatch_backend/config"
	"github.com/warepulse/stockwatch_backend/models"
	"github.com/warepulse/stockwatch_backend/utils"
)

// DeliveryResult is the outcome of one channel send to one recipient.
type DeliveryResult struct {
	Success        bool
	DeliveryTimeMs int64
	Error          string
}

// Payload is the channel-agnostic message body.
type Payload struct {
	Title    string                      `json:"title"`
	Message  string                      `json:"message"`
	Details  string                      `json:"details,omitempty"`
	Priority models.NotificationPriority `json:"priority"`
	Category models.NotificationCategory `json:"category"`
}

// ChannelSender is one delivery transport. The engine is channel-count
// agnostic: new channels register in the sender map, no engine changes.
type ChannelSender interface {
	Name() models.ChannelType
	Send(ctx context.Context, recipient string, payload Payload) DeliveryResult
}

// NewSenderRegistry builds the enabled channel senders from env. Email is on
// by default; SMS and webhook need their gateway configured.
func NewSenderRegistry() map[models.ChannelType]ChannelSender {
	senders := map[models.ChannelType]ChannelSender{}
	httpClient := &http.Client{Timeout: 15 * time.Second}

	if config.BoolFromEnv("NOTIFY_EMAIL_ENABLED", true) {
		senders[models.ChannelEmail] = &emailSender{
			relayURL: strings.TrimSpace(os.Getenv("EMAIL_RELAY_URL")),
			from:     strings.TrimSpace(os.Getenv("EMAIL_FROM")),
			http:     httpClient,
		}
	}
	if config.BoolFromEnv("NOTIFY_SMS_ENABLED", false) {
		senders[models.ChannelSMS] = &smsSender{
			gatewayURL: strings.TrimSpace(os.Getenv("SMS_GATEWAY_URL")),
			http:       httpClient,
		}
	}
	if config.BoolFromEnv("NOTIFY_WEBHOOK_ENABLED", false) {
		senders[models.ChannelWebhook] = &webhookSender{http: httpClient}
	}
	return senders
}

func timedResult(started time.Time, err error) DeliveryResult {
	elapsed := time.Since(started).Milliseconds()
	if err != nil {
		return DeliveryResult{Success: false, DeliveryTimeMs: elapsed, Error: err.Error()}
	}
	return DeliveryResult{Success: true, DeliveryTimeMs: elapsed}
}

func postJSON(ctx context.Context, client *http.Client, url string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delivery endpoint returned %d", resp.StatusCode)
	}
	return nil
}

type emailSender struct {
	relayURL string
	from     string
	http     *http.Client
}

func (s *emailSender) Name() models.ChannelType { return models.ChannelEmail }

func (s *emailSender) Send(ctx context.Context, recipient string, payload Payload) DeliveryResult {
	started := time.Now()
	if s.relayURL == "" {
		return timedResult(started, errors.New("EMAIL_RELAY_URL is not set"))
	}
	if !utils.IsValidEmail(recipient) {
		return timedResult(started, fmt.Errorf("invalid email recipient %q", recipient))
	}
	err := postJSON(ctx, s.http, s.relayURL, map[string]interface{}{
		"from":    s.from,
		"to":      recipient,
		"subject": fmt.Sprintf("[%s] %s", payload.Priority, payload.Title),
		"body":    payload.Message + "\n" + payload.Details,
	})
	return timedResult(started, err)
}

type smsSender struct {
	gatewayURL string
	http       *http.Client
}

func (s *smsSender) Name() models.ChannelType { return models.ChannelSMS }

func (s *smsSender) Send(ctx context.Context, recipient string, payload Payload) DeliveryResult {
	started := time.Now()
	if s.gatewayURL == "" {
		return timedResult(started, errors.New("SMS_GATEWAY_URL is not set"))
	}
	normalized, err := utils.FormatPhoneE164(recipient, utils.CountryCode)
	if err != nil {
		return timedResult(started, fmt.Errorf("invalid phone %q: %w", recipient, err))
	}
	err = postJSON(ctx, s.http, s.gatewayURL, map[string]interface{}{
		"to":   normalized,
		"text": fmt.Sprintf("[%s] %s: %s", payload.Priority, payload.Title, payload.Message),
	})
	return timedResult(started, err)
}

type webhookSender struct {
	http *http.Client
}

func (s *webhookSender) Name() models.ChannelType { return models.ChannelWebhook }

func (s *webhookSender) Send(ctx context.Context, recipient string, payload Payload) DeliveryResult {
	started := time.Now()
	if !strings.HasPrefix(recipient, "http://") && !strings.HasPrefix(recipient, "https://") {
		return timedResult(started, fmt.Errorf("invalid webhook url %q", recipient))
	}
	err := postJSON(ctx, s.http, recipient, payload)
	return timedResult(started, err)
}
