package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const contactEmailFunction = "send-contact-email"

// ContactEmail is the payload of the contact notification function.
type ContactEmail struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Service string `json:"service"`
	Message string `json:"message"`
}

// Notifier invokes the hosted backend's edge functions.
type Notifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewNotifier(supabaseURL, apiKey string) *Notifier {
	return &Notifier{
		baseURL: supabaseURL + "/functions/v1/",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SendContactEmail asks the backend to email the site owner about a new
// contact request.
func (n *Notifier) SendContactEmail(ctx context.Context, msg ContactEmail) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode contact email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+contactEmailFunction, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("apikey", n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", contactEmailFunction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", contactEmailFunction, resp.StatusCode, bytes.TrimSpace(detail))
	}
	return nil
}
