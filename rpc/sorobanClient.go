package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	client "github.com/stellar/go/clients/rpcclient"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"

	"github.com/atomlink/stellar-marketplace-go/models"
	"github.com/atomlink/stellar-marketplace-go/utils"
)

// Client talks JSON-RPC to a soroban-rpc node. Simulation and submission
// go over raw JSON-RPC; the stellar rpcclient is only used for the health
// probe at startup.
type Client struct {
	URL          string
	Timeout      time.Duration
	PollInterval time.Duration

	http *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		URL:          url,
		Timeout:      timeout,
		PollInterval: 2 * time.Second,
		http:         &http.Client{Timeout: timeout},
	}
}

// Health checks that the rpc node is reachable and synced.
func (c *Client) Health(ctx context.Context) error {
	rpcClient := client.NewClient(c.URL, nil)
	_, err := rpcClient.GetHealth(ctx)
	return err
}

// SimulationResult carries what a successful dry run hands back: the
// resource fee, the soroban transaction data to attach to the envelope,
// the auth entries, and the return value of the invoked function.
type SimulationResult struct {
	MinResourceFee     int64
	TransactionDataXDR string
	AuthXDR            []string
	ResultXDR          string
	LatestLedger       uint32
}

// SimulateTransaction dry-runs an unsigned envelope. A simulation-level
// failure comes back as a SimulationError carrying the node's diagnostic.
func (c *Client) SimulateTransaction(ctx context.Context, envelopeXDR string) (*SimulationResult, error) {
	var response struct {
		TransactionData string `json:"transactionData"`
		MinResourceFee  string `json:"minResourceFee"`
		Error           string `json:"error,omitempty"`
		LatestLedger    uint32 `json:"latestLedger"`
		Results         []struct {
			XDR  string   `json:"xdr"`
			Auth []string `json:"auth"`
		} `json:"results"`
	}
	err := c.call(ctx, "simulateTransaction", map[string]interface{}{"transaction": envelopeXDR}, &response)
	if err != nil {
		return nil, err
	}
	if response.Error != "" {
		return nil, &models.SimulationError{Diagnostic: response.Error}
	}

	result := &SimulationResult{
		TransactionDataXDR: response.TransactionData,
		LatestLedger:       response.LatestLedger,
	}
	if response.MinResourceFee != "" {
		fee, err := strconv.ParseInt(response.MinResourceFee, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad minResourceFee %q: %w", response.MinResourceFee, err)
		}
		result.MinResourceFee = fee
	}
	if len(response.Results) > 0 {
		result.ResultXDR = response.Results[0].XDR
		result.AuthXDR = response.Results[0].Auth
	}
	return result, nil
}

// SendTransaction submits a signed envelope. Any status other than PENDING
// is a rejection.
func (c *Client) SendTransaction(ctx context.Context, signedXDR string) (string, error) {
	var response struct {
		Status         string `json:"status"`
		Hash           string `json:"hash"`
		ErrorResultXdr string `json:"errorResultXdr,omitempty"`
	}
	err := c.call(ctx, "sendTransaction", map[string]interface{}{"transaction": signedXDR}, &response)
	if err != nil {
		return "", &models.SubmissionError{Status: "NETWORK_ERROR", Diagnostic: err.Error()}
	}
	if response.Status != "PENDING" {
		return "", &models.SubmissionError{Status: response.Status, Diagnostic: response.ErrorResultXdr}
	}
	return response.Hash, nil
}

// AwaitTransaction polls getTransaction until the ledger includes or
// rejects the submission. The network's own consensus timeout bounds this;
// the caller's context is the only local bound.
func (c *Client) AwaitTransaction(ctx context.Context, hash string) error {
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		var response struct {
			Status         string `json:"status"`
			ResultXdr      string `json:"resultXdr,omitempty"`
			DiagnosticsXdr string `json:"diagnosticEventsXdr,omitempty"`
		}
		if err := c.call(ctx, "getTransaction", map[string]interface{}{"hash": hash}, &response); err != nil {
			return &models.SubmissionError{Status: "NETWORK_ERROR", Diagnostic: err.Error()}
		}

		switch response.Status {
		case "SUCCESS":
			return nil
		case "FAILED":
			return &models.SubmissionError{Status: "FAILED", Diagnostic: response.ResultXdr}
		case "NOT_FOUND":
			// still in flight
		default:
			return &models.SubmissionError{Status: response.Status}
		}
	}
}

// dummy source for read-only invocations; never signs anything.
const readOnlyAccount = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"

// ReadContract invokes a contract function through simulation only, for
// view-style calls that need no signature or fee.
func (c *Client) ReadContract(ctx context.Context, contractAddress, functionName string, args ...xdr.ScVal) (xdr.ScVal, error) {
	scAddr, err := utils.ScAddressFromString(contractAddress)
	if err != nil {
		return xdr.ScVal{}, fmt.Errorf("invalid contract address: %w", err)
	}

	invokeContractArgs := xdr.InvokeContractArgs{
		ContractAddress: scAddr,
		FunctionName:    xdr.ScSymbol(functionName),
		Args:            args,
	}

	hostFunction := xdr.HostFunction{
		Type:           xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
		InvokeContract: &invokeContractArgs,
	}

	dummySource := txnbuild.NewSimpleAccount(readOnlyAccount, 0)

	invokeHostFunctionOp := &txnbuild.InvokeHostFunction{
		HostFunction:  hostFunction,
		SourceAccount: dummySource.AccountID,
	}

	tx, err := txnbuild.NewTransaction(
		txnbuild.TransactionParams{
			SourceAccount:        &dummySource,
			IncrementSequenceNum: true,
			Operations:           []txnbuild.Operation{invokeHostFunctionOp},
			BaseFee:              100,
			Preconditions: txnbuild.Preconditions{
				TimeBounds: txnbuild.NewInfiniteTimeout(),
			},
		},
	)
	if err != nil {
		return xdr.ScVal{}, fmt.Errorf("failed to build transaction: %w", err)
	}

	txEnvelopeXDR, err := xdr.MarshalBase64(tx.ToXDR())
	if err != nil {
		return xdr.ScVal{}, fmt.Errorf("failed to marshal tx envelope: %w", err)
	}

	sim, err := c.SimulateTransaction(ctx, txEnvelopeXDR)
	if err != nil {
		return xdr.ScVal{}, err
	}
	if sim.ResultXDR == "" {
		return xdr.ScVal{}, fmt.Errorf("no results returned")
	}

	var scVal xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(sim.ResultXDR, &scVal); err != nil {
		return xdr.ScVal{}, fmt.Errorf("failed to unmarshal result XDR: %w", err)
	}
	return scVal, nil
}

func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	rpcRequest := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}

	requestBody, err := json.Marshal(rpcRequest)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.URL, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var rpcResponse struct {
		Result json.RawMessage `json:"result,omitempty"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &rpcResponse); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if rpcResponse.Error != nil {
		return fmt.Errorf("RPC error: %s", rpcResponse.Error.Message)
	}
	if out != nil && rpcResponse.Result != nil {
		if err := json.Unmarshal(rpcResponse.Result, out); err != nil {
			return fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}
	return nil
}
