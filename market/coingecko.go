package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultCoinGeckoURL is the public CoinGecko v3 API base.
const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// coinGeckoIDs maps ticker symbols to CoinGecko coin identifiers.
var coinGeckoIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"MATIC": "matic-network",
	"USDC":  "usd-coin",
	"ADA":   "cardano",
	"DOT":   "polkadot",
	"LINK":  "chainlink",
	"UNI":   "uniswap",
	"AVAX":  "avalanche-2",
}

// coinNames maps ticker symbols to display names.
var coinNames = map[string]string{
	"BTC":   "Bitcoin",
	"ETH":   "Ethereum",
	"SOL":   "Solana",
	"ADA":   "Cardano",
	"DOT":   "Polkadot",
	"MATIC": "Polygon",
	"AVAX":  "Avalanche",
	"LINK":  "Chainlink",
	"UNI":   "Uniswap",
	"LTC":   "Litecoin",
}

// CoinName returns the display name for a ticker symbol, falling back to the
// upper-cased symbol itself.
func CoinName(symbol string) string {
	if name, ok := coinNames[strings.ToUpper(symbol)]; ok {
		return name
	}
	return strings.ToUpper(symbol)
}

// SupportedSymbols lists the ticker symbols with a CoinGecko mapping.
func SupportedSymbols() []string {
	symbols := make([]string, 0, len(coinGeckoIDs))
	for symbol := range coinGeckoIDs {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// PricePoint is one day of price history.
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// MarketData bundles the current price with seven days of history.
type MarketData struct {
	Symbol       string       `json:"symbol"`
	CurrentPrice float64      `json:"currentPrice"`
	History      []PricePoint `json:"historicalPrices"`
}

// CoinGeckoClient queries the CoinGecko API.
type CoinGeckoClient struct {
	baseURL    string
	httpClient *http.Client
}

// CoinGeckoOption configures the client.
type CoinGeckoOption func(*CoinGeckoClient)

// WithCoinGeckoURL overrides the API base URL.
func WithCoinGeckoURL(baseURL string) CoinGeckoOption {
	return func(c *CoinGeckoClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithCoinGeckoHTTPClient overrides the HTTP client.
func WithCoinGeckoHTTPClient(client *http.Client) CoinGeckoOption {
	return func(c *CoinGeckoClient) {
		c.httpClient = client
	}
}

// NewCoinGeckoClient creates a CoinGecko client.
func NewCoinGeckoClient(options ...CoinGeckoOption) *CoinGeckoClient {
	c := &CoinGeckoClient{
		baseURL:    DefaultCoinGeckoURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Price fetches the current USD price for one ticker symbol.
func (c *CoinGeckoClient) Price(ctx context.Context, symbol string) (float64, error) {
	coinID, ok := coinGeckoIDs[strings.ToUpper(symbol)]
	if !ok {
		return 0, fmt.Errorf("unsupported coin symbol: %q", symbol)
	}

	var data map[string]map[string]float64
	params := url.Values{"ids": {coinID}, "vs_currencies": {"usd"}}
	if err := c.getJSON(ctx, "/simple/price", params, &data); err != nil {
		return 0, err
	}

	price, ok := data[coinID]["usd"]
	if !ok {
		return 0, fmt.Errorf("no usd price for %s in response", coinID)
	}
	return price, nil
}

// Prices fetches current USD prices for several symbols at once. Unsupported
// symbols are skipped; at least one must be supported.
func (c *CoinGeckoClient) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	coinIDs := make([]string, 0, len(symbols))
	idToSymbol := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		upper := strings.ToUpper(strings.TrimSpace(symbol))
		if coinID, ok := coinGeckoIDs[upper]; ok {
			coinIDs = append(coinIDs, coinID)
			idToSymbol[coinID] = upper
		}
	}
	if len(coinIDs) == 0 {
		return nil, fmt.Errorf("no supported coin symbols provided")
	}

	var data map[string]map[string]float64
	params := url.Values{"ids": {strings.Join(coinIDs, ",")}, "vs_currencies": {"usd"}}
	if err := c.getJSON(ctx, "/simple/price", params, &data); err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(data))
	for coinID, quote := range data {
		symbol := idToSymbol[coinID]
		if usd, ok := quote["usd"]; ok && symbol != "" {
			prices[symbol] = usd
		}
	}
	return prices, nil
}

// MarketData fetches the current price plus seven days of daily history.
func (c *CoinGeckoClient) MarketData(ctx context.Context, symbol string) (*MarketData, error) {
	upper := strings.ToUpper(symbol)
	coinID, ok := coinGeckoIDs[upper]
	if !ok {
		return nil, fmt.Errorf("unsupported coin symbol: %q", symbol)
	}

	price, err := c.Price(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var chart struct {
		Prices [][2]float64 `json:"prices"`
	}
	params := url.Values{"vs_currency": {"usd"}, "days": {"7"}, "interval": {"daily"}}
	if err := c.getJSON(ctx, "/coins/"+coinID+"/market_chart", params, &chart); err != nil {
		return nil, err
	}

	history := make([]PricePoint, 0, len(chart.Prices))
	for _, point := range chart.Prices {
		// chart timestamps are unix milliseconds
		day := time.Unix(int64(point[0])/1000, 0).UTC().Format("2006-01-02")
		history = append(history, PricePoint{Date: day, Price: point[1]})
	}

	return &MarketData{Symbol: upper, CurrentPrice: price, History: history}, nil
}

func (c *CoinGeckoClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coingecko request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coingecko returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
