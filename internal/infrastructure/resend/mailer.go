package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// KeyPrefix is the prefix every Resend API key carries.
const KeyPrefix = "re_"

const defaultBaseURL = "https://api.resend.com"

// Mailer sends transactional email through the Resend HTTP API.
type Mailer struct {
	apiKey  string
	from    string
	client  *http.Client
	baseURL string
}

func NewMailer(apiKey, from string) *Mailer {
	return &Mailer{
		apiKey: strings.TrimSpace(apiKey),
		from:   from,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL: defaultBaseURL,
	}
}

// WithBaseURL points the mailer at a different API host.
func (m *Mailer) WithBaseURL(u string) *Mailer {
	m.baseURL = strings.TrimRight(u, "/")
	return m
}

func (m *Mailer) Name() string { return "resend" }

// Configured reports whether the API key is well-formed and a sender is set.
func (m *Mailer) Configured() bool {
	return len(m.apiKey) > len(KeyPrefix) && strings.HasPrefix(m.apiKey, KeyPrefix) && m.from != ""
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

func (m *Mailer) SendEmail(ctx context.Context, to, subject, body string) error {
	b, err := json.Marshal(sendRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("resend: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("resend: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("resend: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
