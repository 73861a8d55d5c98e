package utils

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

const (
	solapiSendPath = "/messages/v4/send"
	isoMillis      = "2006-01-02T15:04:05.000Z07:00"
)

// SolapiClient sends single SMS messages through Solapi's v4 API.
type SolapiClient struct {
	APIKey    string
	APISecret string
	From      string // sender number, digits only
	BaseURL   string
	DryRun    bool // log instead of calling the API

	HTTP   *http.Client
	Logger *zap.Logger
	Now    func() time.Time
}

type SendSMSResponse struct {
	GroupID       string `json:"groupId"`
	MessageID     string `json:"messageId"`
	To            string `json:"to"`
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
}

// SolapiError is a non-2xx answer from the API.
type SolapiError struct {
	Status       int    `json:"-"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (e *SolapiError) Error() string {
	return fmt.Sprintf("solapi: status=%d code=%s message=%s", e.Status, e.ErrorCode, e.ErrorMessage)
}

func NewSolapiClient(apiKey, apiSecret, from, baseURL string, dryRun bool, logger *zap.Logger) *SolapiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SolapiClient{
		APIKey:    apiKey,
		APISecret: apiSecret,
		From:      Digits(from),
		BaseURL:   strings.TrimRight(baseURL, "/"),
		DryRun:    dryRun,
		HTTP:      &http.Client{Timeout: 10 * time.Second},
		Logger:    logger,
		Now:       time.Now,
	}
}

// Signature is hex(HMAC-SHA256(secret, date+salt)).
func Signature(secret, date, salt string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(date + salt))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authorization builds the header value with a fresh salt for every call.
func (c *SolapiClient) Authorization() (string, error) {
	salt, err := NewSalt(16)
	if err != nil {
		return "", fmt.Errorf("solapi salt: %w", err)
	}
	date := c.Now().UTC().Format(isoMillis)
	return fmt.Sprintf("HMAC-SHA256 apiKey=%s, date=%s, salt=%s, signature=%s",
		c.APIKey, date, salt, Signature(c.APISecret, date, salt)), nil
}

// SendSMS sends text to a digits-only domestic number.
func (c *SolapiClient) SendSMS(ctx context.Context, to, text string) (*SendSMSResponse, error) {
	if c.DryRun {
		c.Logger.Info("solapi dry-run", zap.String("to", to), zap.String("from", c.From))
		return &SendSMSResponse{To: to, StatusCode: "dry-run"}, nil
	}

	payload, err := jsoniter.Marshal(map[string]any{
		"message": map[string]string{"to": to, "from": c.From, "text": text},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal solapi payload: %w", err)
	}
	auth, err := c.Authorization()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+solapiSendPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build solapi request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send SMS request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	c.Logger.Debug("solapi response", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &SolapiError{Status: resp.StatusCode}
		_ = jsoniter.Unmarshal(body, apiErr)
		return nil, apiErr
	}

	var result SendSMSResponse
	if err := jsoniter.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse solapi response: %w", err)
	}
	return &result, nil
}
