// Package agent implements the responder side of the chat protocol: an
// addressed agent that consumes its inbox, acknowledges every chat message,
// routes the text to a market data tool, and replies to the sender.
package agent
