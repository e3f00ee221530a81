package market

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultEtherscanURL is the public Etherscan API base.
const DefaultEtherscanURL = "https://api.etherscan.io/api"

// transactionLimit caps how many transactions one lookup returns.
const transactionLimit = 20

var weiPerEth = new(big.Float).SetFloat64(1e18)

var ethAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsEthAddress reports whether s looks like an Ethereum address.
func IsEthAddress(s string) bool {
	return ethAddressPattern.MatchString(s)
}

// Transaction is one confirmed or failed Ethereum transaction.
type Transaction struct {
	Hash      string  `json:"hash"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	ValueETH  float64 `json:"valueEth"`
	Timestamp int64   `json:"timestamp"`
	Status    string  `json:"status"`
}

// WalletClient reads Ethereum balances over JSON-RPC and transaction history
// from Etherscan. Both upstreams rate-limit free keys aggressively, so calls
// are spaced at least two seconds apart.
type WalletClient struct {
	rpcURL          string
	etherscanURL    string
	etherscanAPIKey string
	httpClient      *http.Client
	limiter         *rate.Limiter
}

// WalletOption configures the client.
type WalletOption func(*WalletClient)

// WithEtherscanURL overrides the Etherscan API base.
func WithEtherscanURL(baseURL string) WalletOption {
	return func(c *WalletClient) {
		c.etherscanURL = baseURL
	}
}

// WithWalletHTTPClient overrides the HTTP client.
func WithWalletHTTPClient(client *http.Client) WalletOption {
	return func(c *WalletClient) {
		c.httpClient = client
	}
}

// NewWalletClient creates a wallet client. rpcURL is the Ethereum JSON-RPC
// endpoint (an Infura or comparable node URL); etherscanAPIKey may be empty
// if transaction lookups are not needed.
func NewWalletClient(rpcURL, etherscanAPIKey string, options ...WalletOption) *WalletClient {
	c := &WalletClient{
		rpcURL:          rpcURL,
		etherscanURL:    DefaultEtherscanURL,
		etherscanAPIKey: etherscanAPIKey,
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		limiter:         rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Balance returns the ETH balance of an address.
func (c *WalletClient) Balance(ctx context.Context, address string) (float64, error) {
	if c.rpcURL == "" {
		return 0, fmt.Errorf("ethereum RPC URL is not configured")
	}
	if !IsEthAddress(address) {
		return 0, fmt.Errorf("invalid ethereum address format: %q", address)
	}
	if err := c.throttle(ctx); err != nil {
		return 0, err
	}

	reqBody, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "eth_getBalance",
		"params":  []string{address, "latest"},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to build rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(reqBody))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ethereum rpc request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	var rpcResp struct {
		Result string `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return 0, fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return 0, fmt.Errorf("ethereum rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	return hexWeiToEth(rpcResp.Result)
}

// Transactions returns the most recent transactions of an address, newest
// first, up to transactionLimit entries.
func (c *WalletClient) Transactions(ctx context.Context, address string) ([]Transaction, error) {
	if c.etherscanAPIKey == "" {
		return nil, fmt.Errorf("etherscan API key is not configured")
	}
	if !IsEthAddress(address) {
		return nil, fmt.Errorf("invalid ethereum address format: %q", address)
	}
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"module":     {"account"},
		"action":     {"txlist"},
		"address":    {address},
		"startblock": {"0"},
		"endblock":   {"99999999"},
		"sort":       {"desc"},
		"apikey":     {c.etherscanAPIKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.etherscanURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("etherscan request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var payload struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Result  []struct {
			Hash            string `json:"hash"`
			From            string `json:"from"`
			To              string `json:"to"`
			Value           string `json:"value"`
			TimeStamp       string `json:"timeStamp"`
			TxReceiptStatus string `json:"txreceipt_status"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode etherscan response: %w", err)
	}
	if payload.Status != "1" {
		return nil, fmt.Errorf("etherscan API error: %s", payload.Message)
	}

	count := len(payload.Result)
	if count > transactionLimit {
		count = transactionLimit
	}

	txs := make([]Transaction, 0, count)
	for _, raw := range payload.Result[:count] {
		valueEth, err := decimalWeiToEth(raw.Value)
		if err != nil {
			continue
		}
		ts, _ := strconv.ParseInt(raw.TimeStamp, 10, 64)

		status := "failed"
		if raw.TxReceiptStatus == "1" {
			status = "confirmed"
		}
		txs = append(txs, Transaction{
			Hash:      raw.Hash,
			From:      raw.From,
			To:        raw.To,
			ValueETH:  valueEth,
			Timestamp: ts,
			Status:    status,
		})
	}
	return txs, nil
}

// throttle spaces calls two seconds apart.
func (c *WalletClient) throttle(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

func hexWeiToEth(hexValue string) (float64, error) {
	trimmed := strings.TrimPrefix(hexValue, "0x")
	if trimmed == "" {
		return 0, fmt.Errorf("empty balance in rpc response")
	}
	wei, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return 0, fmt.Errorf("unparseable balance %q", hexValue)
	}
	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEth).Float64()
	return eth, nil
}

func decimalWeiToEth(value string) (float64, error) {
	wei, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return 0, fmt.Errorf("unparseable wei value %q", value)
	}
	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEth).Float64()
	return eth, nil
}
