package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vikasavnish/gymledger/internal/config"
)

// DefaultSendTimeout bounds a single gateway call when none is configured.
const DefaultSendTimeout = 20 * time.Second

// ErrNotConfigured is returned when gateway credentials are missing.
var ErrNotConfigured = errors.New("whatsapp gateway not configured")

// Gateway sends outbound member messages.
type Gateway interface {
	SendText(ctx context.Context, to, body string) error
	SendTemplate(ctx context.Context, to, name, lang string, params []string) error
	Configured() bool
}

// SendError is a non-2xx response from the gateway.
type SendError struct {
	Status int
	Detail string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("whatsapp send failed: status %d: %s", e.Status, e.Detail)
}

// WhatsAppClient talks to the WhatsApp Cloud API.
type WhatsAppClient struct {
	token         string
	phoneNumberID string
	endpoint      string
	httpClient    *http.Client
}

func NewWhatsAppClient(cfg config.MessagingConfig) *WhatsAppClient {
	base := strings.TrimRight(cfg.APIBase, "/")
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &WhatsAppClient{
		token:         cfg.Token,
		phoneNumberID: cfg.PhoneNumberID,
		endpoint:      fmt.Sprintf("%s/%s/%s/messages", base, cfg.APIVersion, cfg.PhoneNumberID),
		httpClient:    &http.Client{Timeout: timeout},
	}
}

func (c *WhatsAppClient) Configured() bool {
	return c.token != "" && c.phoneNumberID != ""
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type templateParam struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type templateComponent struct {
	Type       string          `json:"type"`
	Parameters []templateParam `json:"parameters"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateBody struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type outboundMessage struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *textBody     `json:"text,omitempty"`
	Template         *templateBody `json:"template,omitempty"`
}

// SendText sends a free-form text message.
func (c *WhatsAppClient) SendText(ctx context.Context, to, body string) error {
	return c.post(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &textBody{Body: body},
	})
}

// SendTemplate sends a pre-approved template with positional body parameters.
func (c *WhatsAppClient) SendTemplate(ctx context.Context, to, name, lang string, params []string) error {
	tmpl := &templateBody{Name: name, Language: templateLanguage{Code: lang}}
	if len(params) > 0 {
		component := templateComponent{Type: "body"}
		for _, p := range params {
			component.Parameters = append(component.Parameters, templateParam{Type: "text", Text: p})
		}
		tmpl.Components = []templateComponent{component}
	}
	return c.post(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template:         tmpl,
	})
}

func (c *WhatsAppClient) post(ctx context.Context, msg outboundMessage) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &SendError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(detail))}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
