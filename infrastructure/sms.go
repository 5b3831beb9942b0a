package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"recruit-pipeline/domain"
)

// Provider codes reported when nothing reached the provider.
const (
	SMSCodeDisabled     = "SMS_DISABLED"
	SMSCodePhoneEmpty   = "SMS_PHONE_EMPTY"
	SMSCodeRequestError = "SMS_REQUEST_ERROR"
)

// HTTPSMSSender posts templated invitations to a JSON SMS gateway.
type HTTPSMSSender struct {
	enabled  bool
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPSMSSender(enabled bool, endpoint, apiKey string) *HTTPSMSSender {
	return &HTTPSMSSender{enabled: enabled, endpoint: endpoint, apiKey: apiKey, client: &http.Client{}}
}

type smsRequest struct {
	Phone  string            `json:"phone"`
	Params map[string]string `json:"params"`
	OutID  string            `json:"out_id,omitempty"`
}

type smsResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}

// Send delivers msg. Timeouts come from ctx.
func (s *HTTPSMSSender) Send(ctx context.Context, msg domain.SMSMessage) (domain.SMSReceipt, error) {
	if !s.enabled || s.endpoint == "" {
		return domain.SMSReceipt{ProviderCode: SMSCodeDisabled}, errors.New("sms delivery is disabled")
	}
	if strings.TrimSpace(msg.Phone) == "" {
		return domain.SMSReceipt{ProviderCode: SMSCodePhoneEmpty}, errors.New("candidate phone is empty")
	}

	body, err := json.Marshal(smsRequest{Phone: msg.Phone, Params: msg.Params, OutID: msg.OutID})
	if err != nil {
		return domain.SMSReceipt{ProviderCode: SMSCodeRequestError}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.SMSReceipt{ProviderCode: SMSCodeRequestError}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.SMSReceipt{ProviderCode: SMSCodeRequestError}, fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.SMSReceipt{ProviderCode: SMSCodeRequestError}, err
	}
	var out smsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.SMSReceipt{ProviderCode: SMSCodeRequestError}, fmt.Errorf("invalid sms response (status %d): %w", resp.StatusCode, err)
	}
	receipt := domain.SMSReceipt{MessageID: out.MessageID, ProviderCode: out.Code}
	if resp.StatusCode >= 300 || !strings.EqualFold(out.Code, "OK") {
		return receipt, fmt.Errorf("sms provider rejected message: %s %s", out.Code, out.Message)
	}
	return receipt, nil
}
