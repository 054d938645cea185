package purchase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomlink/stellar-marketplace-go/config"
	"github.com/atomlink/stellar-marketplace-go/models"
	"github.com/atomlink/stellar-marketplace-go/recorder"
	"github.com/atomlink/stellar-marketplace-go/rpc"
	"github.com/atomlink/stellar-marketplace-go/utils"
)

const (
	buyerAddress  = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"
	tokenContract = "CBDYP24VQBEXEONDO74DDAL3LTFSPSRD7JIVBP53YKDXK7YBH2CPHFP4"
	testHash      = "a4c2e7f0b5d14e8f9c3a6b2d8e1f4a7c0b3d6e9f2a5c8b1d4e7f0a3c6b9d2e5f"
)

type fakeWallet struct {
	session models.WalletSession
	signFn  func(ctx context.Context, envelopeXDR string) (string, error)
	signs   int32
}

func (w *fakeWallet) Session() models.WalletSession { return w.session }

func (w *fakeWallet) Sign(ctx context.Context, envelopeXDR string) (string, error) {
	atomic.AddInt32(&w.signs, 1)
	if w.signFn != nil {
		return w.signFn(ctx, envelopeXDR)
	}
	return envelopeXDR, nil
}

func connectedWallet() *fakeWallet {
	return &fakeWallet{session: models.WalletSession{
		ProviderID:    "freighter",
		PublicAddress: buyerAddress,
		Status:        models.SessionConnected,
	}}
}

type flowEnv struct {
	flow   *Flow
	wallet *fakeWallet

	mu            sync.Mutex
	simCalls      int
	sendCalls     int
	horizonCalls  int
	recorderCalls []models.RecordPurchaseRequest

	failSimulation   bool
	recorderConflict bool
	recorderDown     bool

	servers []*httptest.Server
}

func (env *flowEnv) Close() {
	for _, s := range env.servers {
		s.Close()
	}
}

func newFlowEnv(t *testing.T) *flowEnv {
	t.Helper()
	env := &flowEnv{wallet: connectedWallet()}

	sorobanData, err := xdr.MarshalBase64(xdr.SorobanTransactionData{})
	require.NoError(t, err)
	boolTrue := true
	resultXDR, err := xdr.MarshalBase64(xdr.ScVal{Type: xdr.ScValTypeScvBool, B: &boolTrue})
	require.NoError(t, err)

	rpcServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		env.mu.Lock()
		defer env.mu.Unlock()

		switch req.Method {
		case "simulateTransaction":
			env.simCalls++
			if env.failSimulation {
				json.NewEncoder(w).Encode(map[string]interface{}{
					"jsonrpc": "2.0", "id": 1,
					"result": map[string]interface{}{"error": "HostError: contract trapped"},
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0", "id": 1,
				"result": map[string]interface{}{
					"transactionData": sorobanData,
					"minResourceFee":  "51234",
					"results":         []map[string]interface{}{{"xdr": resultXDR}},
				},
			})
		case "sendTransaction":
			env.sendCalls++
			json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0", "id": 1,
				"result": map[string]interface{}{"status": "PENDING", "hash": testHash},
			})
		case "getTransaction":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0", "id": 1,
				"result": map[string]interface{}{"status": "SUCCESS"},
			})
		default:
			t.Errorf("unexpected rpc method %s", req.Method)
		}
	}))
	env.servers = append(env.servers, rpcServer)

	horizonServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		env.horizonCalls++
		seq := 100 + env.horizonCalls
		env.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":         buyerAddress,
			"account_id": buyerAddress,
			"sequence":   strconv.Itoa(seq),
			"balances":   []map[string]interface{}{{"balance": "100.0000000", "asset_type": "native"}},
		})
	}))
	env.servers = append(env.servers, horizonServer)

	catalogServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		defer env.mu.Unlock()
		if env.recorderDown {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(models.APIEnvelope{Success: false, Error: "db down"})
			return
		}
		var record models.RecordPurchaseRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&record))
		env.recorderCalls = append(env.recorderCalls, record)
		if env.recorderConflict {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(models.APIEnvelope{Success: false, Error: "insufficient supply"})
			return
		}
		json.NewEncoder(w).Encode(models.APIEnvelope{Success: true})
	}))
	env.servers = append(env.servers, catalogServer)

	rpcClient := rpc.NewClient(rpcServer.URL, 5*time.Second)
	rpcClient.PollInterval = 5 * time.Millisecond

	network := config.Network{
		Name:       "Stellar Testnet",
		Passphrase: "Test SDF Network ; September 2015",
		HorizonURL: horizonServer.URL,
		BaseFee:    100,
		Timeout:    5 * time.Second,
	}

	env.flow = NewFlow(
		env.wallet,
		rpcClient,
		&horizonclient.Client{HorizonURL: horizonServer.URL},
		recorder.NewClient(catalogServer.URL, zerolog.Nop()),
		nil,
		network,
		zerolog.Nop(),
	)
	return env
}

func testRequest() Request {
	return Request{
		Listing: &models.Listing{ID: 7, TokenID: 7, Name: "Terreno Norte", Supply: 1000},
		Contract: models.ContractReference{
			ContractID: tokenContract,
			Role:       config.RoleFungibleToken,
			Functions:  map[string]string{config.OpBuy: "buy_tokens", config.OpPrice: "get_info"},
		},
		Amount:    10,
		UnitPrice: 5 * utils.StroopsPerLumen,
	}
}

func TestPurchaseHappyPath(t *testing.T) {
	env := newFlowEnv(t)
	defer env.Close()

	intent, err := env.flow.Execute(context.Background(), testRequest())
	require.NoError(t, err)
	require.NotNil(t, intent)

	assert.Equal(t, models.IntentRecorded, intent.State)
	assert.Equal(t, testHash, intent.LedgerTransactionID)
	assert.Equal(t, int64(10), intent.TokenAmount)
	assert.Equal(t, int64(500_000_000), intent.TotalPrice) // 10 * 5 XLM
	assert.Equal(t, models.RecorderRecorded, intent.RecorderStatus)

	// recorder invoked exactly once with the purchased amount
	require.Len(t, env.recorderCalls, 1)
	assert.Equal(t, int64(10), env.recorderCalls[0].Amount)
	assert.Equal(t, buyerAddress, env.recorderCalls[0].Wallet)
	assert.Equal(t, testHash, env.recorderCalls[0].Hash)
	assert.Equal(t, tokenContract, env.recorderCalls[0].ContractAddress)
}

func TestValidationFailuresNeverReachTheNetwork(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Request, *fakeWallet)
	}{
		{"zero amount", func(r *Request, w *fakeWallet) { r.Amount = 0 }},
		{"negative amount", func(r *Request, w *fakeWallet) { r.Amount = -3 }},
		{"zero price", func(r *Request, w *fakeWallet) { r.UnitPrice = 0 }},
		{"no session", func(r *Request, w *fakeWallet) { w.session = models.WalletSession{Status: models.SessionDisconnected} }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			env := newFlowEnv(t)
			defer env.Close()

			req := testRequest()
			c.mutate(&req, env.wallet)

			intent, err := env.flow.Execute(context.Background(), req)
			require.Error(t, err)
			var validationErr *models.ValidationError
			assert.ErrorAs(t, err, &validationErr)
			assert.Equal(t, models.IntentFailed, intent.State)
			assert.Zero(t, env.simCalls)
			assert.Zero(t, env.horizonCalls)
		})
	}
}

func TestSimulationFailureNeverReachesSigning(t *testing.T) {
	env := newFlowEnv(t)
	defer env.Close()
	env.failSimulation = true

	intent, err := env.flow.Execute(context.Background(), testRequest())
	require.Error(t, err)

	var simErr *models.SimulationError
	require.ErrorAs(t, err, &simErr)
	assert.Contains(t, simErr.Diagnostic, "trapped")

	assert.Equal(t, models.IntentFailed, intent.State)
	assert.Zero(t, atomic.LoadInt32(&env.wallet.signs))
	assert.Zero(t, env.sendCalls)
}

func TestUserCancelAtSigningIsRejectedNotFailed(t *testing.T) {
	env := newFlowEnv(t)
	defer env.Close()
	env.wallet.signFn = func(ctx context.Context, envelopeXDR string) (string, error) {
		return "", &models.SignatureRejectedError{}
	}

	intent, err := env.flow.Execute(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, models.IntentRejected, intent.State)
	assert.Zero(t, env.sendCalls)
	assert.Empty(t, env.recorderCalls)
}

func TestRecorderConflictKeepsConfirmed(t *testing.T) {
	env := newFlowEnv(t)
	defer env.Close()
	env.recorderConflict = true

	intent, err := env.flow.Execute(context.Background(), testRequest())
	require.NoError(t, err)

	// on-chain success is never reversed for an off-chain bookkeeping race
	assert.Equal(t, models.IntentConfirmed, intent.State)
	assert.Equal(t, models.RecorderConflict, intent.RecorderStatus)
	assert.NotEmpty(t, intent.Warning)
	assert.Equal(t, testHash, intent.LedgerTransactionID)
}

func TestRecorderOutageLeavesIntentPending(t *testing.T) {
	env := newFlowEnv(t)
	defer env.Close()
	env.recorderDown = true

	intent, err := env.flow.Execute(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, models.IntentConfirmed, intent.State)
	assert.Equal(t, models.RecorderPending, intent.RecorderStatus)
	assert.NotEmpty(t, intent.Warning)
}

func TestEachIntentFetchesAFreshSequence(t *testing.T) {
	env := newFlowEnv(t)
	defer env.Close()

	first, err := env.flow.Execute(context.Background(), testRequest())
	require.NoError(t, err)
	second, err := env.flow.Execute(context.Background(), testRequest())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, env.horizonCalls)
}

func TestSecondPurchaseWhileInFlightIsRefused(t *testing.T) {
	env := newFlowEnv(t)
	defer env.Close()

	release := make(chan struct{})
	env.wallet.signFn = func(ctx context.Context, envelopeXDR string) (string, error) {
		<-release
		return envelopeXDR, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := env.flow.Execute(context.Background(), testRequest())
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		current := env.flow.Current()
		return current != nil && current.State == models.IntentAwaitingSignature
	}, 2*time.Second, 5*time.Millisecond)

	_, err := env.flow.Execute(context.Background(), testRequest())
	require.Error(t, err)
	var validationErr *models.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	close(release)
	<-done
}
