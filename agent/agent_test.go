package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/agentwire/agentwire-go/contracts"
	"github.com/agentwire/agentwire-go/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveAddress(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		assert.Equal(t, DeriveAddress("ETH"), DeriveAddress("ETH"))
	})

	t.Run("differs per seed", func(t *testing.T) {
		assert.NotEqual(t, DeriveAddress("ETH"), DeriveAddress("BTC"))
	})

	t.Run("has the agent prefix and fixed length", func(t *testing.T) {
		addr := DeriveAddress("some seed")
		assert.True(t, strings.HasPrefix(addr, "agent1"))
		assert.Len(t, addr, len("agent1")+52)
		assert.Equal(t, strings.ToLower(addr), addr)
	})
}

type fakePrices struct {
	price      float64
	prices     map[string]float64
	marketData *market.MarketData
	err        error

	lastSymbol  string
	lastSymbols []string
}

func (f *fakePrices) Price(ctx context.Context, symbol string) (float64, error) {
	f.lastSymbol = symbol
	return f.price, f.err
}

func (f *fakePrices) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	f.lastSymbols = symbols
	return f.prices, f.err
}

func (f *fakePrices) MarketData(ctx context.Context, symbol string) (*market.MarketData, error) {
	f.lastSymbol = symbol
	return f.marketData, f.err
}

type fakeSentiment struct {
	index    *market.FearGreedIndex
	history  []market.FearGreedIndex
	err      error
	lastDays int
}

func (f *fakeSentiment) Index(ctx context.Context) (*market.FearGreedIndex, error) {
	return f.index, f.err
}

func (f *fakeSentiment) History(ctx context.Context, days int) ([]market.FearGreedIndex, error) {
	f.lastDays = days
	return f.history, f.err
}

type fakeWallet struct {
	balance float64
	txs     []market.Transaction
	err     error
	txsErr  error
}

func (f *fakeWallet) Balance(ctx context.Context, address string) (float64, error) {
	return f.balance, f.err
}

func (f *fakeWallet) Transactions(ctx context.Context, address string) ([]market.Transaction, error) {
	if f.txsErr != nil {
		return nil, f.txsErr
	}
	return f.txs, f.err
}

func TestRouter(t *testing.T) {
	ctx := context.Background()

	t.Run("routes a single price question", func(t *testing.T) {
		prices := &fakePrices{price: 64250.12}
		router := NewRouter(prices, nil, nil)

		answer := router.Respond(ctx, "what is the price of BTC?")

		assert.Equal(t, "BTC", prices.lastSymbol)
		assert.Contains(t, answer, "Bitcoin (BTC)")
		assert.Contains(t, answer, "$64,250.12 USD")
	})

	t.Run("recognizes coin names as well as tickers", func(t *testing.T) {
		prices := &fakePrices{price: 3100.5}
		router := NewRouter(prices, nil, nil)

		router.Respond(ctx, "how much is ethereum worth")

		assert.Equal(t, "ETH", prices.lastSymbol)
	})

	t.Run("routes multiple symbols to a batch lookup", func(t *testing.T) {
		prices := &fakePrices{prices: map[string]float64{"BTC": 64250.0, "SOL": 150.25}}
		router := NewRouter(prices, nil, nil)

		answer := router.Respond(ctx, "prices for BTC and SOL please")

		assert.Equal(t, []string{"BTC", "SOL"}, prices.lastSymbols)
		assert.Contains(t, answer, "Bitcoin (BTC): $64,250.00 USD")
		assert.Contains(t, answer, "Solana (SOL): $150.25 USD")
	})

	t.Run("routes history questions to market data", func(t *testing.T) {
		prices := &fakePrices{marketData: &market.MarketData{
			Symbol:       "ETH",
			CurrentPrice: 3100.5,
			History:      []market.PricePoint{{Date: "2026-08-20", Price: 3050.0}},
		}}
		router := NewRouter(prices, nil, nil)

		answer := router.Respond(ctx, "show me the ETH price history")

		assert.Contains(t, answer, "Market Data for Ethereum (ETH)")
		assert.Contains(t, answer, "2026-08-20: $3,050.00")
	})

	t.Run("routes sentiment questions", func(t *testing.T) {
		sentiment := &fakeSentiment{index: &market.FearGreedIndex{Value: 21, Classification: "Extreme Fear"}}
		router := NewRouter(nil, sentiment, nil)

		answer := router.Respond(ctx, "what is the fear and greed index?")

		assert.Contains(t, answer, "Value: 21/100")
		assert.Contains(t, answer, "Extreme Fear")
	})

	t.Run("routes sentiment history with a day count", func(t *testing.T) {
		sentiment := &fakeSentiment{history: []market.FearGreedIndex{
			{Value: 70, Classification: "Greed"},
			{Value: 40, Classification: "Fear"},
		}}
		router := NewRouter(nil, sentiment, nil)

		answer := router.Respond(ctx, "fgi history for the last 14 days")

		assert.Equal(t, 14, sentiment.lastDays)
		assert.Contains(t, answer, "Day 1: 70/100 - Greed")
		assert.Contains(t, answer, "Average FGI over 2 days: 55.0/100")
	})

	t.Run("routes wallet balance questions", func(t *testing.T) {
		wallet := &fakeWallet{balance: 1.5}
		prices := &fakePrices{price: 3000.0}
		router := NewRouter(prices, nil, wallet)

		answer := router.Respond(ctx, "balance of 0x742d35Cc6634C0532925a3b844Bc454e4438f44e")

		assert.Contains(t, answer, "ETH Balance: 1.5 ETH")
		assert.Contains(t, answer, "$4,500.00 USD")
	})

	t.Run("wallet balance degrades without an eth price", func(t *testing.T) {
		wallet := &fakeWallet{balance: 1.5}
		router := NewRouter(nil, nil, wallet)

		answer := router.Respond(ctx, "check 0x742d35Cc6634C0532925a3b844Bc454e4438f44e")

		assert.Contains(t, answer, "Unable to fetch current ETH price")
	})

	t.Run("routes wallet transaction questions", func(t *testing.T) {
		wallet := &fakeWallet{txs: []market.Transaction{
			{Hash: "0xabcdef0123456789abcdef", ValueETH: 1.0, Status: "confirmed"},
			{Hash: "0xbbb", ValueETH: 0.5, Status: "failed"},
		}}
		router := NewRouter(nil, nil, wallet)

		answer := router.Respond(ctx, "transactions for 0x742d35Cc6634C0532925a3b844Bc454e4438f44e")

		assert.Contains(t, answer, "Total Transactions: 2")
		assert.Contains(t, answer, "0xabcdef0123456789ab...")
		assert.Contains(t, answer, "[confirmed]")
	})

	t.Run("routes portfolio questions to a full summary", func(t *testing.T) {
		wallet := &fakeWallet{balance: 2.0, txs: []market.Transaction{
			{Hash: "0xaaaa111122223333", ValueETH: 1.0, Status: "confirmed"},
			{Hash: "0xbbbb111122223333", ValueETH: 0.5, Status: "confirmed"},
			{Hash: "0xcccc111122223333", ValueETH: 0.25, Status: "failed"},
			{Hash: "0xdddd111122223333", ValueETH: 0.1, Status: "confirmed"},
		}}
		prices := &fakePrices{price: 3000.0}
		router := NewRouter(prices, nil, wallet)

		answer := router.Respond(ctx, "portfolio for 0x742d35Cc6634C0532925a3b844Bc454e4438f44e")

		assert.Contains(t, answer, "Portfolio Summary:")
		assert.Contains(t, answer, "Wallet Address: 0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
		assert.Contains(t, answer, "Network: Ethereum Mainnet")
		assert.Contains(t, answer, "Total Portfolio Value: $6,000.00 USD")
		assert.Contains(t, answer, "ETH: 2 ETH ($6,000.00 USD, 100.0%)")
		assert.Contains(t, answer, "Total Transactions: 4")
		assert.Contains(t, answer, "1. 0xaaaa1111... - 1 ETH ($3,000.00 USD)")
		assert.Contains(t, answer, "3. 0xcccc1111...")
		// recent activity shows only the top three
		assert.NotContains(t, answer, "0xdddd1111")
		assert.Contains(t, answer, "Current ETH Price: $3,000.00 USD")
	})

	t.Run("portfolio degrades without transactions or eth price", func(t *testing.T) {
		wallet := &fakeWallet{balance: 1.5, txsErr: errors.New("etherscan down")}
		router := NewRouter(nil, nil, wallet)

		answer := router.Respond(ctx, "portfolio summary 0x742d35Cc6634C0532925a3b844Bc454e4438f44e")

		assert.Contains(t, answer, "Total Portfolio Value: Unable to calculate (ETH price unavailable)")
		assert.Contains(t, answer, "ETH: 1.5 ETH (USD value unavailable)")
		assert.Contains(t, answer, "Total Transactions: 0")
		assert.NotContains(t, answer, "Recent Activity")
	})

	t.Run("portfolio balance failure becomes reply text", func(t *testing.T) {
		wallet := &fakeWallet{err: errors.New("rpc down")}
		router := NewRouter(nil, nil, wallet)

		answer := router.Respond(ctx, "portfolio of 0x742d35Cc6634C0532925a3b844Bc454e4438f44e")

		assert.Contains(t, answer, "Sorry, I could not complete that request")
		assert.Contains(t, answer, "rpc down")
	})

	t.Run("tool failures become reply text", func(t *testing.T) {
		prices := &fakePrices{err: errors.New("upstream down")}
		router := NewRouter(prices, nil, nil)

		answer := router.Respond(ctx, "price of BTC")

		assert.Contains(t, answer, "Sorry, I could not complete that request")
		assert.Contains(t, answer, "upstream down")
	})

	t.Run("unknown questions get the capability text", func(t *testing.T) {
		router := NewRouter(&fakePrices{}, nil, nil)
		answer := router.Respond(ctx, "tell me a joke")
		assert.Contains(t, answer, "I can help with")
	})

	t.Run("empty text gets the capability text", func(t *testing.T) {
		router := NewRouter(&fakePrices{}, nil, nil)
		answer := router.Respond(ctx, "   ")
		assert.Contains(t, answer, "I can help with")
	})

	t.Run("unconfigured sources answer with a notice", func(t *testing.T) {
		router := NewRouter(nil, nil, nil)
		assert.Contains(t, router.Respond(ctx, "price of BTC"), "not configured")
		assert.Contains(t, router.Respond(ctx, "fear and greed"), "not configured")
		assert.Contains(t, router.Respond(ctx, "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"), "not configured")
	})
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "64,250.13", formatAmount(64250.125))
	assert.Equal(t, "150.25", formatAmount(150.25))
	assert.Equal(t, "1,000,000.00", formatAmount(1e6))
	assert.Equal(t, "-1,234.50", formatAmount(-1234.5))
	assert.Equal(t, "0.00", formatAmount(0))
}

type captureSender struct {
	mu   sync.Mutex
	sent []contracts.Message
	errs map[string]error // message type -> error
}

func (s *captureSender) Send(ctx context.Context, target string, msg contracts.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[msg.GetType()]; err != nil {
		return err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *captureSender) byType(messageType string) []contracts.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []contracts.Message
	for _, msg := range s.sent {
		if msg.GetType() == messageType {
			out = append(out, msg)
		}
	}
	return out
}

func TestResponder(t *testing.T) {
	ctx := context.Background()
	router := NewRouter(&fakePrices{price: 100.0}, nil, nil)

	newChat := func(text, sender, correlationID string) *contracts.ChatMessage {
		chat := contracts.NewChatMessage(text)
		chat.Sender = sender
		chat.SetCorrelationID(correlationID)
		return chat
	}

	t.Run("requires address, sender and router", func(t *testing.T) {
		_, err := NewResponder("", &captureSender{}, router)
		assert.Error(t, err)
		_, err = NewResponder("agent1qme", nil, router)
		assert.Error(t, err)
		_, err = NewResponder("agent1qme", &captureSender{}, nil)
		assert.Error(t, err)
	})

	t.Run("acknowledges and replies to the sender", func(t *testing.T) {
		sender := &captureSender{}
		responder, err := NewResponder("agent1qme", sender, router)
		require.NoError(t, err)

		chat := newChat("price of BTC", "agent1qpeer", "corr-1")
		require.NoError(t, responder.HandleChat(ctx, chat))

		acks := sender.byType("ChatAcknowledgement")
		require.Len(t, acks, 1)
		assert.Equal(t, chat.GetID(), acks[0].(*contracts.ChatAcknowledgement).AcknowledgedMsgID)

		replies := sender.byType("ChatMessage")
		require.Len(t, replies, 1)
		reply := replies[0].(*contracts.ChatMessage)
		assert.Equal(t, "corr-1", reply.GetCorrelationID())
		assert.Contains(t, reply.Text(), "Bitcoin (BTC)")
	})

	t.Run("still replies when the acknowledgement fails", func(t *testing.T) {
		sender := &captureSender{errs: map[string]error{"ChatAcknowledgement": fmt.Errorf("broker hiccup")}}
		responder, err := NewResponder("agent1qme", sender, router)
		require.NoError(t, err)

		require.NoError(t, responder.HandleChat(ctx, newChat("price of BTC", "agent1qpeer", "corr-2")))
		assert.Len(t, sender.byType("ChatMessage"), 1)
	})

	t.Run("drops chat messages without a sender", func(t *testing.T) {
		sender := &captureSender{}
		responder, err := NewResponder("agent1qme", sender, router)
		require.NoError(t, err)

		require.NoError(t, responder.HandleChat(ctx, newChat("price of BTC", "", "corr-3")))
		assert.Empty(t, sender.sent)
	})

	t.Run("ignores non-chat messages", func(t *testing.T) {
		sender := &captureSender{}
		responder, err := NewResponder("agent1qme", sender, router)
		require.NoError(t, err)

		require.NoError(t, responder.HandleChat(ctx, contracts.NewChatAcknowledgement("x")))
		assert.Empty(t, sender.sent)
	})

	t.Run("HandleAck accepts acknowledgements quietly", func(t *testing.T) {
		responder, err := NewResponder("agent1qme", &captureSender{}, router)
		require.NoError(t, err)

		assert.NoError(t, responder.HandleAck(ctx, contracts.NewChatAcknowledgement("msg-1")))
	})
}
