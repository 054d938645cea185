package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/atomlink/stellar-marketplace-go/models"
)

// Client talks to the catalog backend: listing detail reads and the
// post-confirmation purchase recording. The backend re-checks cached
// supply on record and answers 409 when another buyer drained it first;
// that conflict is bookkeeping lag, not a purchase failure.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("component", "recorder").Logger(),
	}
}

// GetListing fetches one listing's cached detail.
func (c *Client) GetListing(ctx context.Context, listingID int64) (*models.Listing, error) {
	url := fmt.Sprintf("%s/terrenos/detalle?id=%d", c.baseURL, listingID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool           `json:"success"`
		Error   string         `json:"error"`
		Data    models.Listing `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("bad catalog response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !envelope.Success {
		return nil, fmt.Errorf("catalog error for listing %d: %s", listingID, envelope.Error)
	}
	return &envelope.Data, nil
}

// RecordPurchase posts the off-chain bookkeeping entry for a confirmed
// on-chain purchase. A supply conflict comes back as RecorderConflictError;
// everything else non-2xx is a plain error the caller may retry.
func (c *Client) RecordPurchase(ctx context.Context, record models.RecordPurchaseRequest) error {
	body, err := json.Marshal(record)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/transacciones/registrar", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("recorder request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope models.APIEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("bad recorder response: %w", err)
	}

	if resp.StatusCode == http.StatusConflict {
		return &models.RecorderConflictError{ListingID: record.ListingID, Requested: record.Amount}
	}
	if resp.StatusCode != http.StatusOK || !envelope.Success {
		return fmt.Errorf("recorder error for listing %d: %s", record.ListingID, envelope.Error)
	}

	c.log.Info().
		Int64("listing_id", record.ListingID).
		Int64("amount", record.Amount).
		Str("hash", record.Hash).
		Msg("purchase recorded")
	return nil
}
