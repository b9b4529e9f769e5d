package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

const resendAPIURL = "https://api.resend.com/emails"

// Client sends transactional email through the Resend API.
type Client struct {
	apiKey     string
	fromEmail  string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient creates a Resend client. baseURL is the public URL of this
// application, used to build links embedded in emails.
func NewClient(apiKey, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendVerification sends the email-verification link to a freshly
// registered user.
func (c *Client) SendVerification(toEmail, name, token string) error {
	link := fmt.Sprintf("%s/verify?token=%s", c.baseURL, token)
	subject := "Verify your Philosophers Fridge account"
	html := fmt.Sprintf(
		`<p>Hi %s,</p><p>Welcome to Philosophers Fridge. Click the link below to verify your email address:</p><p><a href="%s">Verify my email</a></p><p>This link expires in 24 hours.</p>`,
		name, link,
	)
	return c.send(toEmail, subject, html)
}

// SendInvitation sends a household invitation link.
func (c *Client) SendInvitation(toEmail, inviterName, householdName, token string) error {
	link := fmt.Sprintf("%s/accept_invite?token=%s", c.baseURL, token)
	subject := fmt.Sprintf("%s invited you to join %s", inviterName, householdName)
	html := fmt.Sprintf(
		`<p>%s invited you to join the household <strong>%s</strong> on Philosophers Fridge.</p><p><a href="%s">Accept the invitation</a></p><p>This invitation expires in 7 days.</p>`,
		inviterName, householdName, link,
	)
	return c.send(toEmail, subject, html)
}

func (c *Client) send(toEmail, subject, html string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing API key")
	}

	payload := resendEmail{
		From:    fmt.Sprintf("Philosophers Fridge <%s>", c.fromEmail),
		To:      []string{toEmail},
		Subject: subject,
		HTML:    html,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", resendAPIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("resend API error: status %d", resp.StatusCode)
	}

	return nil
}
