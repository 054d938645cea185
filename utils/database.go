package utils

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/atomlink/stellar-marketplace-go/config"
	"github.com/atomlink/stellar-marketplace-go/models"
)

// IntentJournal persists every purchase intent and its state transitions.
// It is the audit trail behind the recorder reconciliation job: confirmed
// intents whose off-chain recording failed stay pending here until the
// job retires them.
type IntentJournal struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func OpenIntentJournal(ctx context.Context, log zerolog.Logger) (*IntentJournal, error) {
	databaseUrl := fmt.Sprintf("postgres://%s:%s@%s:5432/%s", config.DB_USER, config.DB_PASSWORD, config.DB_HOST, config.DB_NAME)

	poolConfig, err := pgxpool.ParseConfig(databaseUrl)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 5
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	return &IntentJournal{pool: pool, log: log.With().Str("component", "journal").Logger()}, nil
}

func (j *IntentJournal) Close() {
	j.pool.Close()
}

func (j *IntentJournal) InsertIntent(ctx context.Context, intent models.PurchaseIntent) error {
	_, err := j.pool.Exec(
		ctx,
		`INSERT INTO purchase_intents (
			id, listing_id, token_id, buyer_address, token_amount,
			unit_price_stroops, total_price_stroops, contract_id,
			state, recorder_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		intent.ID, intent.ListingID, intent.TokenID, intent.BuyerAddress, intent.TokenAmount,
		intent.UnitPrice, intent.TotalPrice, intent.ContractID,
		intent.State, intent.RecorderStatus, intent.CreatedAt, intent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting purchase intent: %w", err)
	}
	return nil
}

func (j *IntentJournal) UpdateIntentState(ctx context.Context, id uuid.UUID, state models.IntentState, txHash string) error {
	_, err := j.pool.Exec(
		ctx,
		`UPDATE purchase_intents SET
			state = $2,
			ledger_transaction_id = NULLIF($3, ''),
			updated_at = now()
		WHERE id = $1`,
		id, state, txHash,
	)
	if err != nil {
		return fmt.Errorf("error updating intent state: %w", err)
	}
	return nil
}

func (j *IntentJournal) UpdateRecorderStatus(ctx context.Context, id uuid.UUID, status models.RecorderStatus) error {
	_, err := j.pool.Exec(
		ctx,
		`UPDATE purchase_intents SET recorder_status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("error updating recorder status: %w", err)
	}
	return nil
}

func (j *IntentJournal) GetIntent(ctx context.Context, id uuid.UUID) (*models.PurchaseIntent, error) {
	row := j.pool.QueryRow(
		ctx,
		`SELECT id, listing_id, token_id, buyer_address, token_amount,
			unit_price_stroops, total_price_stroops, contract_id,
			state, COALESCE(ledger_transaction_id, ''), recorder_status,
			created_at, updated_at
		FROM purchase_intents WHERE id = $1`,
		id,
	)
	var intent models.PurchaseIntent
	err := row.Scan(
		&intent.ID, &intent.ListingID, &intent.TokenID, &intent.BuyerAddress, &intent.TokenAmount,
		&intent.UnitPrice, &intent.TotalPrice, &intent.ContractID,
		&intent.State, &intent.LedgerTransactionID, &intent.RecorderStatus,
		&intent.CreatedAt, &intent.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error loading intent %s: %w", id, err)
	}
	return &intent, nil
}

// PendingRecordings returns confirmed intents whose recorder call has not
// landed yet.
func (j *IntentJournal) PendingRecordings(ctx context.Context) ([]models.PurchaseIntent, error) {
	rows, err := j.pool.Query(
		ctx,
		`SELECT id, listing_id, token_id, buyer_address, token_amount,
			unit_price_stroops, total_price_stroops, contract_id,
			state, COALESCE(ledger_transaction_id, ''), recorder_status,
			created_at, updated_at
		FROM purchase_intents
		WHERE state = $1 AND recorder_status = $2
		ORDER BY created_at`,
		models.IntentConfirmed, models.RecorderPending,
	)
	if err != nil {
		return nil, fmt.Errorf("error scanning pending recordings: %w", err)
	}
	defer rows.Close()

	var pending []models.PurchaseIntent
	for rows.Next() {
		var intent models.PurchaseIntent
		err := rows.Scan(
			&intent.ID, &intent.ListingID, &intent.TokenID, &intent.BuyerAddress, &intent.TokenAmount,
			&intent.UnitPrice, &intent.TotalPrice, &intent.ContractID,
			&intent.State, &intent.LedgerTransactionID, &intent.RecorderStatus,
			&intent.CreatedAt, &intent.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning intent row: %w", err)
		}
		pending = append(pending, intent)
	}
	return pending, rows.Err()
}
