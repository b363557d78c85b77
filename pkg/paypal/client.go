package paypal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nexusauctions/nexus-backend/pkg/config"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
)

const (
	sandboxEnv = "sandbox"
	liveEnv    = "live"

	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"
)

var (
	errClientIDRequired = errors.New("paypal client id is required")
	errSecretRequired   = errors.New("paypal secret is required")
	errInvalidMode      = fmt.Errorf("paypal mode must be %q or %q", sandboxEnv, liveEnv)
)

// Client talks to the PayPal Orders v2 API. Credentials are injected once at
// process start; the client never re-reads the environment.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	mode       string
}

// Order is the subset of a PayPal order the wallet flows consume.
type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

// Link is a HATEOAS link in a PayPal response.
type Link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

// Capture is the confirmed payment inside a completed order.
type Capture struct {
	ID     string
	Status string
	Amount string
	UserID string
}

// NewClient validates the gateway configuration and builds the REST client.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode != sandboxEnv && mode != liveEnv {
		return nil, errInvalidMode
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sandboxBaseURL
		if mode == liveEnv {
			baseURL = liveBaseURL
		}
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("paypal client initialized (%s)", mode))
	}

	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		clientID:   clientID,
		secret:     secret,
		mode:       mode,
	}, nil
}

// Mode reports the configured gateway environment.
func (c *Client) Mode() string {
	if c == nil {
		return ""
	}
	return c.mode
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.secret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal token request: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", errors.New("paypal token response missing access_token")
	}
	return body.AccessToken, nil
}

// CreateOrder opens a CAPTURE-intent order for a wallet deposit and returns
// the order id plus the approval URL the payer is redirected to.
func (c *Client) CreateOrder(ctx context.Context, userID, amount, returnURL, cancelURL string) (*Order, string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, "", err
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": fmt.Sprintf("DEP_%s_%d", userID, time.Now().Unix()),
			"description":  "Deposit to Nexus Auctions Wallet",
			"custom_id":    userID,
			"amount": map[string]string{
				"currency_code": "USD",
				"value":         amount,
			},
		}},
		"application_context": map[string]string{
			"return_url":  returnURL,
			"cancel_url":  cancelURL,
			"user_action": "PAY_NOW",
		},
	}

	var order Order
	if err := c.post(ctx, token, "/v2/checkout/orders", payload, &order); err != nil {
		return nil, "", err
	}

	for _, link := range order.Links {
		if link.Rel == "approve" {
			return &order, link.Href, nil
		}
	}
	return nil, "", errors.New("approval url not found in paypal response")
}

// CaptureOrder finalizes an approved order and returns the completed capture.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var body struct {
		Status        string `json:"status"`
		PurchaseUnits []struct {
			CustomID string `json:"custom_id"`
			Payments struct {
				Captures []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
					Amount struct {
						Value string `json:"value"`
					} `json:"amount"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", orderID)
	if err := c.post(ctx, token, path, map[string]any{}, &body); err != nil {
		return nil, err
	}

	if body.Status != "COMPLETED" {
		return nil, fmt.Errorf("paypal order %s not completed: %s", orderID, body.Status)
	}
	if len(body.PurchaseUnits) == 0 || len(body.PurchaseUnits[0].Payments.Captures) == 0 {
		return nil, errors.New("paypal capture response missing capture details")
	}

	unit := body.PurchaseUnits[0]
	capture := unit.Payments.Captures[0]
	return &Capture{
		ID:     capture.ID,
		Status: capture.Status,
		Amount: capture.Amount.Value,
		UserID: unit.CustomID,
	}, nil
}

func (c *Client) post(ctx context.Context, token, path string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("paypal request %s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
