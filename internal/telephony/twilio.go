package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TwilioClient dispatches calls through a Twilio-compatible REST API
// (Twilio itself or a Somleng-style gateway).
type TwilioClient struct {
	baseURL    string
	accountSID string
	authToken  string

	httpClient *http.Client
}

type TwilioConfig struct {
	// BaseURL defaults to the public Twilio API.
	BaseURL    string
	AccountSID string
	AuthToken  string
	Timeout    time.Duration
}

func NewTwilioClient(cfg TwilioConfig) (*TwilioClient, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("telephony: twilio account sid and auth token are required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.twilio.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TwilioClient{
		baseURL:    strings.TrimRight(base, "/"),
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *TwilioClient) Name() string { return "twilio" }

type twilioCallResponse struct {
	Sid     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (c *TwilioClient) Dial(ctx context.Context, req DialRequest) (DialResult, error) {
	if req.To == "" {
		return DialResult{}, errors.New("telephony: dial requires a destination number")
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	if req.StatusCallbackURL != "" {
		form.Set("StatusCallback", req.StatusCallbackURL)
		form.Set("StatusCallbackMethod", "POST")
	}
	for k, v := range req.Params {
		form.Set(k, v)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.baseURL, c.accountSID)
	var out twilioCallResponse
	if err := c.do(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()), &out); err != nil {
		return DialResult{}, err
	}
	return DialResult{RemoteCallID: out.Sid, RemoteStatus: out.Status}, nil
}

func (c *TwilioClient) FetchCallState(ctx context.Context, remoteCallID string) (CallState, error) {
	if remoteCallID == "" {
		return CallState{}, errors.New("telephony: remote call id is required")
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, remoteCallID)
	var out twilioCallResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return CallState{}, err
	}
	return CallState{RemoteCallID: out.Sid, RemoteStatus: out.Status}, nil
}

func (c *TwilioClient) do(ctx context.Context, method, endpoint string, body io.Reader, out *twilioCallResponse) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	httpReq.SetBasicAuth(c.accountSID, c.authToken)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("telephony: twilio response decode failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		msg := out.Message
		if msg == "" {
			msg = string(raw)
		}
		return fmt.Errorf("telephony: twilio request failed (%d): %s", resp.StatusCode, msg)
	}
	return nil
}
