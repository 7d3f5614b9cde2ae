package notify

import (
	"context"
	"fmt"
	"time"

	"testudot/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
)

const DefaultAPIEndpoint = "https://api.resend.com/emails"

type APIConfig struct {
	// Endpoint defaults to DefaultAPIEndpoint.
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
}

// APISender posts messages to a transactional email HTTP API that accepts
// `{from, to, subject, html, text}` with a bearer token.
type APISender struct {
	http     *resty.Client
	endpoint string
}

type apiRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// NewAPISender returns false when no api key is configured.
func NewAPISender(config APIConfig, tel telemetry.API) (APISender, bool) {
	if config.APIKey == "" {
		return APISender{}, false
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultAPIEndpoint
	}

	client := resty.New()
	client.SetTimeout(time.Second * 30)
	client.SetAuthToken(config.APIKey)
	client.SetHeader("content-type", "application/json")
	telemetry.InstrumentResty(client, telemetry.NewScopedAPI("email_api", tel))

	return APISender{http: client, endpoint: config.Endpoint}, true
}

func (s APISender) Name() string {
	return "email api"
}

func (s APISender) Send(ctx context.Context, msg Message) error {
	res, err := s.http.R().
		SetContext(ctx).
		SetBody(apiRequest{
			From:    msg.From,
			To:      msg.To,
			Subject: msg.Subject,
			HTML:    msg.HTML,
			Text:    msg.Text,
		}).
		Post(s.endpoint)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("post message: %s: %s", res.Status(), res.String())
	}
	return nil
}
