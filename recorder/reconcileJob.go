package recorder

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/atomlink/stellar-marketplace-go/models"
	"github.com/atomlink/stellar-marketplace-go/utils"
)

// ReconcileJob retries recorder calls that failed after on-chain
// confirmation. The on-chain transaction is the source of truth and is
// never rolled back; this job only closes the off-chain bookkeeping gap.
type ReconcileJob struct {
	journal  *utils.IntentJournal
	client   *Client
	interval time.Duration
	log      zerolog.Logger
}

func NewReconcileJob(journal *utils.IntentJournal, client *Client, interval time.Duration, log zerolog.Logger) *ReconcileJob {
	return &ReconcileJob{
		journal:  journal,
		client:   client,
		interval: interval,
		log:      log.With().Str("component", "reconcile_job").Logger(),
	}
}

// Run sweeps pending recordings until ctx is cancelled.
func (job *ReconcileJob) Run(ctx context.Context) {
	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job.sweep(ctx)
		}
	}
}

func (job *ReconcileJob) sweep(ctx context.Context) {
	pending, err := job.journal.PendingRecordings(ctx)
	if err != nil {
		job.log.Error().Err(err).Msg("could not scan pending recordings")
		return
	}

	for _, intent := range pending {
		job.record(ctx, intent)
	}
}

func (job *ReconcileJob) record(ctx context.Context, intent models.PurchaseIntent) {
	record := models.RecordPurchaseRequest{
		Wallet:          intent.BuyerAddress,
		ListingID:       intent.ListingID,
		Amount:          intent.TokenAmount,
		Hash:            intent.LedgerTransactionID,
		ContractAddress: intent.ContractID,
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	err := backoff.Retry(func() error {
		err := job.client.RecordPurchase(ctx, record)
		if models.IsRecorderConflict(err) {
			// supply raced away, retrying cannot help
			return backoff.Permanent(err)
		}
		return err
	}, policy)

	switch {
	case err == nil:
		if err := job.journal.UpdateRecorderStatus(ctx, intent.ID, models.RecorderRecorded); err != nil {
			job.log.Error().Err(err).Str("intent", intent.ID.String()).Msg("could not mark intent recorded")
			return
		}
		if err := job.journal.UpdateIntentState(ctx, intent.ID, models.IntentRecorded, intent.LedgerTransactionID); err != nil {
			job.log.Error().Err(err).Str("intent", intent.ID.String()).Msg("could not finalize intent")
		}
	case models.IsRecorderConflict(err):
		job.log.Warn().Str("intent", intent.ID.String()).Msg("purchase succeeded on-chain but cached supply conflicted")
		if err := job.journal.UpdateRecorderStatus(ctx, intent.ID, models.RecorderConflict); err != nil {
			job.log.Error().Err(err).Str("intent", intent.ID.String()).Msg("could not mark recorder conflict")
		}
	default:
		// stays pending for the next sweep
		job.log.Warn().Err(err).Str("intent", intent.ID.String()).Msg("recorder still unreachable")
	}
}
