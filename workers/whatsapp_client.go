package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"time"

	"tripwise-backend/utils"

	"github.com/juju/errors"
	"golang.org/x/time/rate"
)

// Sender delivers one rendered message to one normalized phone number.
type Sender interface {
	// Ready reports a NotProvisioned error when credentials are missing.
	Ready() error
	Send(ctx context.Context, to, message string) error
}

// WhatsAppClient posts messages to the WhatsApp gateway provider.
type WhatsAppClient struct {
	URL          string
	APIKey       string
	APIKeyHeader string
	HTTPClient   *http.Client

	limiter *rate.Limiter
}

func NewWhatsAppClient(url, apiKey, apiKeyHeader string, timeout time.Duration, perSecond float64) *WhatsAppClient {
	limit := rate.Limit(perSecond)
	burst := int(math.Ceil(perSecond))
	if perSecond <= 0 {
		limit, burst = rate.Inf, 1
	}
	if apiKeyHeader == "" {
		apiKeyHeader = "x-api-key"
	}
	return &WhatsAppClient{
		URL:          url,
		APIKey:       apiKey,
		APIKeyHeader: apiKeyHeader,
		HTTPClient:   utils.NewHTTPClient(timeout),
		limiter:      rate.NewLimiter(limit, burst),
	}
}

func (c *WhatsAppClient) Ready() error {
	if c.URL == "" || c.APIKey == "" {
		return errors.NotProvisionedf("WhatsApp API URL or key")
	}
	return nil
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type sendResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Send delivers one message. Any error means the message was not accepted.
func (c *WhatsAppClient) Send(ctx context.Context, to, message string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Annotate(err, "rate limit wait")
	}

	body, err := json.Marshal(sendRequest{To: to, Message: message})
	if err != nil {
		return errors.Trace(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Annotate(err, "create provider request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(c.APIKeyHeader, c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errors.Annotate(err, "call provider")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return errors.Annotate(err, "read provider response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := raw
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return errors.Errorf("provider returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return errors.Annotate(err, "decode provider response")
	}
	if !out.OK {
		if out.Message == "" {
			out.Message = "no reason given"
		}
		return errors.Errorf("provider rejected message: %s", out.Message)
	}
	return nil
}
