/**
 * @description
 * This package provides a client for the subset of the Stripe API the
 * registry-service uses: hosted Checkout session creation (with funds
 * routed to the couple's connected account), the Connect OAuth code
 * exchange, connected-account capability lookups, and webhook signature
 * verification.
 *
 * The guest's card or iDEAL details never touch this service; Stripe hosts
 * the payment page and calls back asynchronously via webhooks.
 *
 * @dependencies
 * - bytes, context, encoding/json, net/http, net/url, strings, time: Standard Go libraries.
 */

package stripeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAPIBaseURL     = "https://api.stripe.com"
	defaultConnectBaseURL = "https://connect.stripe.com"
)

// Client is a client for the Stripe API.
type Client struct {
	APIBaseURL     string
	ConnectBaseURL string
	SecretKey      string
	HTTPClient     *http.Client
}

// NewClient creates a new Stripe API client authenticated with the secret key.
func NewClient(secretKey string) *Client {
	return &Client{
		APIBaseURL:     defaultAPIBaseURL,
		ConnectBaseURL: defaultConnectBaseURL,
		SecretKey:      secretKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CheckoutSessionParams describes one hosted payment session request.
type CheckoutSessionParams struct {
	AmountCents        int64
	Currency           string
	ProductName        string
	ProductDescription string
	// DestinationAccountID routes the payment to the couple's connected account.
	DestinationAccountID string
	SuccessURL           string
	CancelURL            string
	CustomerEmail        string
	Metadata             map[string]string
}

// CheckoutSession is the response from Stripe's session-creation endpoint.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// AccountStatus reports a connected account's payment capabilities.
type AccountStatus struct {
	AccountID        string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	Email            string
}

// Ready reports whether the account can both accept charges and receive
// payouts, the bar for onboarding_complete.
func (s AccountStatus) Ready() bool {
	return s.ChargesEnabled && s.PayoutsEnabled
}

// APIError represents an error payload from the Stripe API.
type APIError struct {
	StatusCode int
	Payload    struct {
		Error struct {
			Type    string `json:"type"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
}

func (e *APIError) Error() string {
	if e.Payload.Error.Message != "" {
		return fmt.Sprintf("stripe api error (%d): %s", e.StatusCode, e.Payload.Error.Message)
	}
	return fmt.Sprintf("stripe api error (%d)", e.StatusCode)
}

// CreateCheckoutSession creates a hosted Checkout session in payment mode
// with the contribution amount as a single line item and the couple's
// account as the transfer destination.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "eur"
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "ideal")
	form.Set("payment_method_types[1]", "card")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", params.ProductName)
	if params.ProductDescription != "" {
		form.Set("line_items[0][price_data][product_data][description]", params.ProductDescription)
	}
	form.Set("payment_intent_data[transfer_data][destination]", params.DestinationAccountID)
	form.Set("payment_intent_data[application_fee_amount]", "0")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	if params.CustomerEmail != "" {
		form.Set("customer_email", params.CustomerEmail)
	}
	// Mirrored onto the payment intent so failure events, which reference
	// the intent rather than the session, can still be traced back.
	for key, value := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
		form.Set(fmt.Sprintf("payment_intent_data[metadata][%s]", key), value)
	}

	var session CheckoutSession
	if err := c.postForm(ctx, c.APIBaseURL+"/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	if session.URL == "" {
		return nil, fmt.Errorf("stripe checkout session %s has no hosted url", session.ID)
	}
	return &session, nil
}

// GetAccountStatus retrieves a connected account's capability flags.
func (c *Client) GetAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBaseURL+"/v1/accounts/"+url.PathEscape(accountID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	var payload struct {
		ID               string `json:"id"`
		ChargesEnabled   bool   `json:"charges_enabled"`
		PayoutsEnabled   bool   `json:"payouts_enabled"`
		DetailsSubmitted bool   `json:"details_submitted"`
		Email            string `json:"email"`
	}
	if err := c.do(req, &payload); err != nil {
		return nil, err
	}

	return &AccountStatus{
		AccountID:        payload.ID,
		ChargesEnabled:   payload.ChargesEnabled,
		PayoutsEnabled:   payload.PayoutsEnabled,
		DetailsSubmitted: payload.DetailsSubmitted,
		Email:            payload.Email,
	}, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("stripe request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("stripe response read failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		// Best effort decode; the status code alone is still an error.
		_ = json.Unmarshal(body, &apiErr.Payload)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("stripe response decode failed: %w", err)
	}
	return nil
}
