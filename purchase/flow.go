package purchase

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"

	"github.com/atomlink/stellar-marketplace-go/config"
	"github.com/atomlink/stellar-marketplace-go/models"
	"github.com/atomlink/stellar-marketplace-go/recorder"
	"github.com/atomlink/stellar-marketplace-go/rpc"
	"github.com/atomlink/stellar-marketplace-go/utils"
)

// Wallet is the slice of the session manager the flow needs.
type Wallet interface {
	Session() models.WalletSession
	Sign(ctx context.Context, envelopeXDR string) (string, error)
}

// Journal receives intent state transitions. May be nil in which case the
// flow runs unjournaled.
type Journal interface {
	InsertIntent(ctx context.Context, intent models.PurchaseIntent) error
	UpdateIntentState(ctx context.Context, id uuid.UUID, state models.IntentState, txHash string) error
	UpdateRecorderStatus(ctx context.Context, id uuid.UUID, status models.RecorderStatus) error
}

// Request is one buy attempt. UnitPrice comes from the reconciled price
// facts at intent creation time and is never refetched mid-flight.
type Request struct {
	Listing   *models.Listing
	Contract  models.ContractReference
	Amount    int64
	UnitPrice int64
}

// Flow drives a purchase intent through
// building -> simulating -> awaiting signature -> submitting and the
// terminal states. It never retries a submission: a retry is a fresh
// intent with a fresh sequence number, started by the caller.
type Flow struct {
	wallet   Wallet
	rpc      *rpc.Client
	horizon  *horizonclient.Client
	recorder *recorder.Client
	journal  Journal
	network  config.Network
	log      zerolog.Logger

	mu      sync.Mutex
	current *models.PurchaseIntent
}

func NewFlow(wallet Wallet, rpcClient *rpc.Client, horizon *horizonclient.Client, rec *recorder.Client, journal Journal, network config.Network, log zerolog.Logger) *Flow {
	return &Flow{
		wallet:   wallet,
		rpc:      rpcClient,
		horizon:  horizon,
		recorder: rec,
		journal:  journal,
		network:  network,
		log:      log.With().Str("component", "purchase").Logger(),
	}
}

// Current returns the intent in flight, if any.
func (f *Flow) Current() *models.PurchaseIntent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil
	}
	copied := *f.current
	return &copied
}

// Execute runs one purchase intent to a terminal state. The returned
// intent is always non-nil once admission succeeds; a Rejected intent
// (user declined to sign) comes back with a nil error because cancelling
// is not a fault.
func (f *Flow) Execute(ctx context.Context, req Request) (*models.PurchaseIntent, error) {
	session := f.wallet.Session()

	f.mu.Lock()
	if f.current != nil && !f.current.State.Terminal() {
		f.mu.Unlock()
		return nil, &models.ValidationError{Field: "purchase", Reason: "another purchase is still in progress"}
	}
	now := time.Now().UTC()
	intent := &models.PurchaseIntent{
		ID:             uuid.New(),
		BuyerAddress:   session.PublicAddress,
		TokenAmount:    req.Amount,
		UnitPrice:      req.UnitPrice,
		ContractID:     req.Contract.ContractID,
		State:          models.IntentIdle,
		RecorderStatus: models.RecorderNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Listing != nil {
		intent.ListingID = req.Listing.ID
		intent.TokenID = req.Listing.TokenID
	}
	f.current = intent
	f.mu.Unlock()

	err := f.run(ctx, intent, req, session)
	return intent, err
}

func (f *Flow) run(ctx context.Context, intent *models.PurchaseIntent, req Request, session models.WalletSession) error {
	f.transition(ctx, intent, models.IntentBuilding)

	if err := f.validate(intent, req, session); err != nil {
		return f.fail(ctx, intent, err)
	}

	// total is computed exactly once, in stroops
	intent.TotalPrice = intent.TokenAmount * intent.UnitPrice

	if f.journal != nil {
		if err := f.journal.InsertIntent(ctx, *intent); err != nil {
			f.log.Error().Err(err).Str("intent", intent.ID.String()).Msg("could not journal intent")
		}
	}

	// the sequence number is fetched fresh for every intent; a stale one
	// guarantees rejection
	account, err := f.horizon.AccountDetail(horizonclient.AccountRequest{AccountID: intent.BuyerAddress})
	if err != nil {
		return f.fail(ctx, intent, &models.SubmissionError{Status: "SEQUENCE_FETCH", Diagnostic: err.Error()})
	}

	envelopeXDR, err := f.buildEnvelope(intent, req.Contract, account.Sequence, nil, 0)
	if err != nil {
		return f.fail(ctx, intent, err)
	}

	f.transition(ctx, intent, models.IntentSimulating)

	sim, err := f.rpc.SimulateTransaction(ctx, envelopeXDR)
	if err != nil {
		var simErr *models.SimulationError
		if !errors.As(err, &simErr) {
			err = &models.SimulationError{Diagnostic: err.Error()}
		}
		return f.fail(ctx, intent, err)
	}

	preparedXDR, err := f.buildEnvelope(intent, req.Contract, account.Sequence, sim, f.network.BaseFee+sim.MinResourceFee)
	if err != nil {
		return f.fail(ctx, intent, err)
	}

	f.transition(ctx, intent, models.IntentAwaitingSignature)

	signedXDR, err := f.wallet.Sign(ctx, preparedXDR)
	if err != nil {
		if models.IsSignatureRejected(err) {
			// user closed the prompt: not a fault, distinct from Failed
			f.transition(ctx, intent, models.IntentRejected)
			return nil
		}
		if ctx.Err() != nil {
			f.transition(ctx, intent, models.IntentAbandoned)
			return ctx.Err()
		}
		return f.fail(ctx, intent, err)
	}

	f.transition(ctx, intent, models.IntentSubmitting)

	hash, err := f.rpc.SendTransaction(ctx, signedXDR)
	if err != nil {
		return f.fail(ctx, intent, err)
	}
	intent.LedgerTransactionID = hash

	if err := f.rpc.AwaitTransaction(ctx, hash); err != nil {
		if ctx.Err() != nil {
			f.transition(ctx, intent, models.IntentAbandoned)
			return ctx.Err()
		}
		return f.fail(ctx, intent, err)
	}

	intent.RecorderStatus = models.RecorderPending
	f.transition(ctx, intent, models.IntentConfirmed)
	f.log.Info().
		Str("intent", intent.ID.String()).
		Str("hash", hash).
		Int64("amount", intent.TokenAmount).
		Msg("purchase confirmed on-chain")

	f.record(ctx, intent)
	return nil
}

func (f *Flow) validate(intent *models.PurchaseIntent, req Request, session models.WalletSession) error {
	if !session.Status.Active() || session.PublicAddress == "" {
		return &models.ValidationError{Field: "wallet", Reason: "no wallet session"}
	}
	if !utils.IsValidAccountAddress(intent.BuyerAddress) {
		return &models.ValidationError{Field: "buyer_address", Reason: "malformed account address"}
	}
	if intent.TokenAmount <= 0 {
		return &models.ValidationError{Field: "token_amount", Reason: "must be a positive integer"}
	}
	if intent.UnitPrice <= 0 {
		return &models.ValidationError{Field: "unit_price", Reason: "must be positive"}
	}
	if intent.TokenAmount > math.MaxInt64/intent.UnitPrice {
		return &models.ValidationError{Field: "token_amount", Reason: "total price overflows"}
	}
	if !utils.IsValidContractAddress(req.Contract.ContractID) {
		return &models.ConfigurationError{Reason: "unresolvable contract reference"}
	}
	if _, err := req.Contract.Entry(config.OpBuy); err != nil {
		return err
	}
	return nil
}

// buildEnvelope assembles the unsigned buy transaction. With a simulation
// result it also attaches the resource data and auth entries and bumps the
// fee, rebuilding from the saved sequence so the envelope still consumes
// sequence+1.
func (f *Flow) buildEnvelope(intent *models.PurchaseIntent, ref models.ContractReference, sequence int64, sim *rpc.SimulationResult, fee int64) (string, error) {
	args, functionName, err := f.buildBuyArgs(intent, ref)
	if err != nil {
		return "", err
	}

	scAddr, err := utils.ScAddressFromString(ref.ContractID)
	if err != nil {
		return "", &models.ConfigurationError{Reason: err.Error()}
	}

	invokeHostFunctionOp := &txnbuild.InvokeHostFunction{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
			InvokeContract: &xdr.InvokeContractArgs{
				ContractAddress: scAddr,
				FunctionName:    xdr.ScSymbol(functionName),
				Args:            args,
			},
		},
		SourceAccount: intent.BuyerAddress,
	}

	if sim != nil {
		if sim.TransactionDataXDR != "" {
			var sorobanData xdr.SorobanTransactionData
			if err := xdr.SafeUnmarshalBase64(sim.TransactionDataXDR, &sorobanData); err != nil {
				return "", &models.SimulationError{Diagnostic: "bad transaction data: " + err.Error()}
			}
			invokeHostFunctionOp.Ext = xdr.TransactionExt{V: 1, SorobanData: &sorobanData}
		}
		for _, authB64 := range sim.AuthXDR {
			var auth xdr.SorobanAuthorizationEntry
			if err := xdr.SafeUnmarshalBase64(authB64, &auth); err != nil {
				return "", &models.SimulationError{Diagnostic: "bad auth entry: " + err.Error()}
			}
			invokeHostFunctionOp.Auth = append(invokeHostFunctionOp.Auth, auth)
		}
	}

	baseFee := f.network.BaseFee
	if fee > baseFee {
		baseFee = fee
	}

	source := txnbuild.NewSimpleAccount(intent.BuyerAddress, sequence)
	tx, err := txnbuild.NewTransaction(
		txnbuild.TransactionParams{
			SourceAccount:        &source,
			IncrementSequenceNum: true,
			Operations:           []txnbuild.Operation{invokeHostFunctionOp},
			BaseFee:              baseFee,
			Preconditions: txnbuild.Preconditions{
				TimeBounds: txnbuild.NewInfiniteTimeout(),
			},
		},
	)
	if err != nil {
		return "", &models.SubmissionError{Status: "BUILD", Diagnostic: err.Error()}
	}

	return xdr.MarshalBase64(tx.ToXDR())
}

// buildBuyArgs shapes the call arguments for the deployment's buy entry
// point. The generations differ: the token contract takes (to, amount in
// smallest units), the marketplace takes (buyer, land id).
func (f *Flow) buildBuyArgs(intent *models.PurchaseIntent, ref models.ContractReference) ([]xdr.ScVal, string, error) {
	functionName, err := ref.Entry(config.OpBuy)
	if err != nil {
		return nil, "", err
	}

	buyer, err := utils.AddressScVal(intent.BuyerAddress)
	if err != nil {
		return nil, "", &models.ValidationError{Field: "buyer_address", Reason: err.Error()}
	}

	switch functionName {
	case "buy_tokens":
		units := intent.TokenAmount * utils.StroopsPerLumen
		return []xdr.ScVal{buyer, utils.I128ScVal(units)}, functionName, nil
	case "buy_land":
		return []xdr.ScVal{buyer, utils.U32ScVal(uint32(intent.TokenID))}, functionName, nil
	default:
		args := []xdr.ScVal{buyer, utils.U32ScVal(uint32(intent.TokenID)), utils.I128ScVal(intent.TokenAmount)}
		return args, functionName, nil
	}
}

// record makes the single off-chain bookkeeping call after confirmation.
// The recorder independently re-checks cached supply; a conflict is
// surfaced as a warning, never reverses Confirmed. A transport failure
// leaves the intent pending for the reconcile job.
func (f *Flow) record(ctx context.Context, intent *models.PurchaseIntent) {
	err := f.recorder.RecordPurchase(ctx, models.RecordPurchaseRequest{
		Wallet:          intent.BuyerAddress,
		ListingID:       intent.ListingID,
		Amount:          intent.TokenAmount,
		Hash:            intent.LedgerTransactionID,
		ContractAddress: intent.ContractID,
	})

	switch {
	case err == nil:
		intent.RecorderStatus = models.RecorderRecorded
		f.transition(ctx, intent, models.IntentRecorded)
	case models.IsRecorderConflict(err):
		intent.RecorderStatus = models.RecorderConflict
		intent.Warning = "purchase succeeded on-chain but cached availability conflicted; bookkeeping lagged"
		f.log.Warn().Str("intent", intent.ID.String()).Msg(intent.Warning)
	default:
		intent.RecorderStatus = models.RecorderPending
		intent.Warning = "purchase succeeded on-chain, bookkeeping pending"
		f.log.Warn().Err(err).Str("intent", intent.ID.String()).Msg("recorder unreachable, left for reconcile job")
	}

	if f.journal != nil {
		if err := f.journal.UpdateRecorderStatus(ctx, intent.ID, intent.RecorderStatus); err != nil {
			f.log.Error().Err(err).Str("intent", intent.ID.String()).Msg("could not journal recorder status")
		}
	}
}

func (f *Flow) transition(ctx context.Context, intent *models.PurchaseIntent, state models.IntentState) {
	intent.State = state
	intent.UpdatedAt = time.Now().UTC()
	if f.journal != nil && state != models.IntentBuilding {
		if err := f.journal.UpdateIntentState(ctx, intent.ID, state, intent.LedgerTransactionID); err != nil {
			f.log.Error().Err(err).Str("intent", intent.ID.String()).Msg("could not journal state transition")
		}
	}
}

func (f *Flow) fail(ctx context.Context, intent *models.PurchaseIntent, err error) error {
	f.transition(ctx, intent, models.IntentFailed)
	f.log.Error().Err(err).Str("intent", intent.ID.String()).Msg("purchase failed")
	return err
}
