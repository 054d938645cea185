package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/atomlink/stellar-marketplace-go/models"
)

// BridgeProvider speaks JSON over HTTP to the host's wallet bridge, which
// fronts the actual wallet implementation (extension, deep link, QR).
// One bridge serves every provider; requests are routed by provider id.
type BridgeProvider struct {
	id      string
	name    string
	baseURL string
	http    *http.Client
}

func NewBridgeProvider(id, name, baseURL string) *BridgeProvider {
	return &BridgeProvider{
		id:      id,
		name:    name,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *BridgeProvider) ID() string   { return p.id }
func (p *BridgeProvider) Name() string { return p.name }

type bridgeResponse struct {
	Address     string `json:"address,omitempty"`
	SignedTxXdr string `json:"signedTxXdr,omitempty"`
	Detected    bool   `json:"detected,omitempty"`
	Cancelled   bool   `json:"cancelled,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
}

func (p *BridgeProvider) Detect(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	resp, err := p.post(ctx, "detect", nil)
	if err != nil {
		return false
	}
	return resp.Detected
}

func (p *BridgeProvider) Connect(ctx context.Context) (string, error) {
	resp, err := p.post(ctx, "connect", nil)
	if err != nil {
		return "", err
	}
	if resp.Cancelled {
		return "", ErrSelectionCancelled
	}
	if resp.Error != "" {
		return "", fmt.Errorf("provider %s connect failed: %s", p.id, resp.Error)
	}
	if resp.Address == "" {
		return "", fmt.Errorf("provider %s returned no address", p.id)
	}
	return resp.Address, nil
}

func (p *BridgeProvider) Sign(ctx context.Context, envelopeXDR, address, networkPassphrase string) (string, error) {
	resp, err := p.post(ctx, "sign", map[string]string{
		"xdr":               envelopeXDR,
		"address":           address,
		"networkPassphrase": networkPassphrase,
	})
	if err != nil {
		return "", &models.SignatureError{Provider: p.id, Reason: err.Error()}
	}
	if resp.Cancelled || resp.ErrorCode == "rejected" {
		return "", &models.SignatureRejectedError{}
	}
	if resp.Error != "" {
		return "", &models.SignatureError{Provider: p.id, Reason: resp.Error}
	}
	if resp.SignedTxXdr == "" {
		return "", &models.SignatureError{Provider: p.id, Reason: "empty signed envelope"}
	}
	return resp.SignedTxXdr, nil
}

func (p *BridgeProvider) Disconnect(ctx context.Context) error {
	_, err := p.post(ctx, "disconnect", nil)
	return err
}

func (p *BridgeProvider) post(ctx context.Context, action string, payload interface{}) (*bridgeResponse, error) {
	body := []byte("{}")
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}

	url := fmt.Sprintf("%s/%s/%s", p.baseURL, p.id, action)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out bridgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("bad bridge response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("bridge error %d: %s", resp.StatusCode, out.Error)
	}
	return &out, nil
}
