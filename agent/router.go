package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentwire/agentwire-go/market"
)

// PriceSource answers spot price and market data questions.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (float64, error)
	Prices(ctx context.Context, symbols []string) (map[string]float64, error)
	MarketData(ctx context.Context, symbol string) (*market.MarketData, error)
}

// SentimentSource answers Fear & Greed Index questions.
type SentimentSource interface {
	Index(ctx context.Context) (*market.FearGreedIndex, error)
	History(ctx context.Context, days int) ([]market.FearGreedIndex, error)
}

// WalletSource answers Ethereum wallet questions.
type WalletSource interface {
	Balance(ctx context.Context, address string) (float64, error)
	Transactions(ctx context.Context, address string) ([]market.Transaction, error)
}

var (
	wordPattern       = regexp.MustCompile(`[A-Za-z0-9]+`)
	ethAddressInText  = regexp.MustCompile(`0x[0-9a-fA-F]{40}`)
	daysPattern       = regexp.MustCompile(`(\d+)\s*days?`)
	helpText          = "I can help with crypto prices (e.g. \"price of BTC\"), market data with 7-day history, the Fear & Greed Index, and Ethereum wallet balances, transactions, or portfolio summaries (send a 0x address)."
	errorReplyPrefix  = "Sorry, I could not complete that request: "
	transactionsShown = 5
	portfolioShown    = 3
)

// Router maps free-form chat text to a market data tool and formats the
// answer. It never returns an error; failures become readable reply text so
// the caller on the other side of the bridge always gets an answer.
type Router struct {
	prices    PriceSource
	sentiment SentimentSource
	wallet    WalletSource
	logger    *slog.Logger

	symbolAliases map[string]string
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithRouterLogger sets the logger.
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// NewRouter creates a router over the given tool sources. Any source may be
// nil; questions needing it get a capability notice instead.
func NewRouter(prices PriceSource, sentiment SentimentSource, wallet WalletSource, options ...RouterOption) *Router {
	r := &Router{
		prices:        prices,
		sentiment:     sentiment,
		wallet:        wallet,
		logger:        slog.Default(),
		symbolAliases: buildSymbolAliases(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// buildSymbolAliases maps both ticker symbols and coin display names
// (lower-cased) to the canonical ticker.
func buildSymbolAliases() map[string]string {
	aliases := make(map[string]string)
	for _, symbol := range market.SupportedSymbols() {
		aliases[strings.ToLower(symbol)] = symbol
		aliases[strings.ToLower(market.CoinName(symbol))] = symbol
	}
	return aliases
}

// Respond answers one chat message.
func (r *Router) Respond(ctx context.Context, text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return helpText
	}
	lower := strings.ToLower(trimmed)

	if address := ethAddressInText.FindString(trimmed); address != "" {
		return r.respondWallet(ctx, lower, address)
	}
	if strings.Contains(lower, "fear") || strings.Contains(lower, "greed") ||
		strings.Contains(lower, "sentiment") || strings.Contains(lower, "fgi") {
		return r.respondSentiment(ctx, lower)
	}
	if symbols := r.extractSymbols(lower); len(symbols) > 0 {
		return r.respondPrices(ctx, lower, symbols)
	}

	return helpText
}

// extractSymbols finds known tickers or coin names in the text, preserving
// first-mention order without duplicates.
func (r *Router) extractSymbols(lower string) []string {
	var symbols []string
	seen := make(map[string]bool)
	for _, word := range wordPattern.FindAllString(lower, -1) {
		if symbol, ok := r.symbolAliases[word]; ok && !seen[symbol] {
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

func (r *Router) respondPrices(ctx context.Context, lower string, symbols []string) string {
	if r.prices == nil {
		return "Price lookups are not configured on this agent."
	}

	wantHistory := strings.Contains(lower, "market data") ||
		strings.Contains(lower, "history") ||
		strings.Contains(lower, "chart") ||
		strings.Contains(lower, "trend")

	switch {
	case wantHistory:
		data, err := r.prices.MarketData(ctx, symbols[0])
		if err != nil {
			return r.failure("market data lookup", err)
		}
		return formatMarketData(data)

	case len(symbols) > 1:
		prices, err := r.prices.Prices(ctx, symbols)
		if err != nil {
			return r.failure("price lookup", err)
		}
		return formatPrices(symbols, prices)

	default:
		price, err := r.prices.Price(ctx, symbols[0])
		if err != nil {
			return r.failure("price lookup", err)
		}
		return formatPrice(symbols[0], price)
	}
}

func (r *Router) respondSentiment(ctx context.Context, lower string) string {
	if r.sentiment == nil {
		return "Market sentiment lookups are not configured on this agent."
	}

	if strings.Contains(lower, "history") || strings.Contains(lower, "last") || daysPattern.MatchString(lower) {
		days := 7
		if m := daysPattern.FindStringSubmatch(lower); m != nil {
			if parsed, err := strconv.Atoi(m[1]); err == nil {
				days = parsed
			}
		}
		history, err := r.sentiment.History(ctx, days)
		if err != nil {
			return r.failure("sentiment history lookup", err)
		}
		return formatFearGreedHistory(history)
	}

	index, err := r.sentiment.Index(ctx)
	if err != nil {
		return r.failure("sentiment lookup", err)
	}
	return formatFearGreed(index)
}

func (r *Router) respondWallet(ctx context.Context, lower, address string) string {
	if r.wallet == nil {
		return "Wallet lookups are not configured on this agent."
	}

	if strings.Contains(lower, "portfolio") {
		balance, err := r.wallet.Balance(ctx, address)
		if err != nil {
			return r.failure("portfolio lookup", err)
		}
		txs, err := r.wallet.Transactions(ctx, address)
		if err != nil {
			// balance alone still makes a summary
			r.logger.Warn("transaction history unavailable for portfolio", "error", err)
			txs = nil
		}
		return formatPortfolio(address, balance, txs, r.ethPrice(ctx))
	}

	if strings.Contains(lower, "transaction") || strings.Contains(lower, "activity") || strings.Contains(lower, "history") {
		txs, err := r.wallet.Transactions(ctx, address)
		if err != nil {
			return r.failure("transaction lookup", err)
		}
		return formatTransactions(address, txs, r.ethPrice(ctx))
	}

	balance, err := r.wallet.Balance(ctx, address)
	if err != nil {
		return r.failure("balance lookup", err)
	}
	return formatBalance(address, balance, r.ethPrice(ctx))
}

// ethPrice fetches the current ETH price for USD conversions. Zero means
// unavailable; wallet answers degrade to ETH-only figures.
func (r *Router) ethPrice(ctx context.Context) float64 {
	if r.prices == nil {
		return 0
	}
	price, err := r.prices.Price(ctx, "ETH")
	if err != nil {
		r.logger.Warn("eth price unavailable for usd conversion", "error", err)
		return 0
	}
	return price
}

func (r *Router) failure(op string, err error) string {
	r.logger.Error("tool call failed", "op", op, "error", err)
	return errorReplyPrefix + err.Error()
}

func formatPrice(symbol string, price float64) string {
	return fmt.Sprintf("Current Price Information:\nCoin: %s (%s)\nPrice: $%s USD",
		market.CoinName(symbol), symbol, formatAmount(price))
}

func formatPrices(order []string, prices map[string]float64) string {
	var b strings.Builder
	b.WriteString("Current Cryptocurrency Prices:\n")
	for _, symbol := range order {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n%s (%s): $%s USD", market.CoinName(symbol), symbol, formatAmount(price))
	}
	return b.String()
}

func formatMarketData(data *market.MarketData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market Data for %s (%s):\n", market.CoinName(data.Symbol), data.Symbol)
	fmt.Fprintf(&b, "Current Price: $%s USD\n", formatAmount(data.CurrentPrice))
	if len(data.History) > 0 {
		b.WriteString("\n7-Day Price History:\n")
		for _, point := range data.History {
			fmt.Fprintf(&b, "%s: $%s\n", point.Date, formatAmount(point.Price))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatFearGreed(index *market.FearGreedIndex) string {
	var b strings.Builder
	b.WriteString("Current Fear & Greed Index:\n")
	fmt.Fprintf(&b, "Value: %d/100\n", index.Value)
	fmt.Fprintf(&b, "Classification: %s\n", index.Classification)
	fmt.Fprintf(&b, "Interpretation: %s", market.InterpretFearGreed(index.Value))
	if index.TimeUntilUpdate != "" {
		fmt.Fprintf(&b, "\nNext update in: %s", index.TimeUntilUpdate)
	}
	return b.String()
}

func formatFearGreedHistory(history []market.FearGreedIndex) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fear & Greed Index History (Last %d days):\n", len(history))
	total := 0
	for i, entry := range history {
		total += entry.Value
		fmt.Fprintf(&b, "\nDay %d: %d/100 - %s", i+1, entry.Value, entry.Classification)
	}
	if len(history) > 0 {
		avg := float64(total) / float64(len(history))
		fmt.Fprintf(&b, "\n\nAverage FGI over %d days: %.1f/100", len(history), avg)
		fmt.Fprintf(&b, "\nAverage Sentiment: %s", market.InterpretFearGreed(int(avg)))
	}
	return b.String()
}

func formatBalance(address string, balance, ethPrice float64) string {
	var b strings.Builder
	b.WriteString("Wallet Balance Information:\n")
	fmt.Fprintf(&b, "Address: %s\n", address)
	fmt.Fprintf(&b, "ETH Balance: %g ETH\n", balance)
	if ethPrice > 0 {
		fmt.Fprintf(&b, "USD Equivalent: $%s USD (at $%s per ETH)", formatAmount(balance*ethPrice), formatAmount(ethPrice))
	} else {
		b.WriteString("USD Equivalent: Unable to fetch current ETH price")
	}
	return b.String()
}

func formatTransactions(address string, txs []market.Transaction, ethPrice float64) string {
	var b strings.Builder
	b.WriteString("Wallet Transaction Summary:\n")
	fmt.Fprintf(&b, "Address: %s\n", address)
	fmt.Fprintf(&b, "Total Transactions: %d\n", len(txs))

	if len(txs) > 0 {
		b.WriteString("\nRecent Transactions:")
		shown := len(txs)
		if shown > transactionsShown {
			shown = transactionsShown
		}
		for i, tx := range txs[:shown] {
			hash := tx.Hash
			if len(hash) > 20 {
				hash = hash[:20] + "..."
			}
			fmt.Fprintf(&b, "\n%d. Hash: %s\n   Value: %g ETH", i+1, hash, tx.ValueETH)
			if ethPrice > 0 {
				fmt.Fprintf(&b, " ($%s USD)", formatAmount(tx.ValueETH*ethPrice))
			}
			fmt.Fprintf(&b, " [%s]", tx.Status)
		}
	}
	return b.String()
}

func formatPortfolio(address string, balance float64, txs []market.Transaction, ethPrice float64) string {
	var b strings.Builder
	b.WriteString("Portfolio Summary:\n")
	fmt.Fprintf(&b, "Wallet Address: %s\n", address)
	b.WriteString("Network: Ethereum Mainnet\n\n")

	if ethPrice > 0 {
		fmt.Fprintf(&b, "Total Portfolio Value: $%s USD\n\n", formatAmount(balance*ethPrice))
	} else {
		b.WriteString("Total Portfolio Value: Unable to calculate (ETH price unavailable)\n\n")
	}

	b.WriteString("Assets:\n")
	fmt.Fprintf(&b, "ETH: %g ETH", balance)
	if ethPrice > 0 {
		fmt.Fprintf(&b, " ($%s USD, 100.0%%)\n", formatAmount(balance*ethPrice))
	} else {
		b.WriteString(" (USD value unavailable)\n")
	}

	b.WriteString("\nTransaction History:\n")
	fmt.Fprintf(&b, "Total Transactions: %d\n", len(txs))

	if len(txs) > 0 {
		b.WriteString("\nRecent Activity:")
		shown := len(txs)
		if shown > portfolioShown {
			shown = portfolioShown
		}
		for i, tx := range txs[:shown] {
			hash := tx.Hash
			if len(hash) > 10 {
				hash = hash[:10] + "..."
			}
			fmt.Fprintf(&b, "\n%d. %s - %g ETH", i+1, hash, tx.ValueETH)
			if ethPrice > 0 {
				fmt.Fprintf(&b, " ($%s USD)", formatAmount(tx.ValueETH*ethPrice))
			}
		}
		b.WriteString("\n")
	}

	if ethPrice > 0 {
		fmt.Fprintf(&b, "\nCurrent ETH Price: $%s USD", formatAmount(ethPrice))
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatAmount renders a USD amount with thousands separators and two
// decimals, e.g. 64250.125 -> "64,250.13".
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	dot := strings.Index(s, ".")
	intPart, fracPart := s[:dot], s[dot:]

	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign, intPart = "-", intPart[1:]
	}

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	return sign + strings.Join(groups, ",") + fracPart
}
