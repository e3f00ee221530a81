// Package market provides the upstream data clients the responder agent
// answers with: CoinGecko for prices and market history, alternative.me for
// the crypto Fear & Greed Index, and Ethereum JSON-RPC plus Etherscan for
// wallet balances and transactions.
package market
