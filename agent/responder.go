package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agentwire/agentwire-go/contracts"
	"github.com/agentwire/agentwire-go/messaging"
)

// Sender sends a message to a target agent address.
type Sender interface {
	Send(ctx context.Context, target string, msg contracts.Message) error
}

// Responder consumes an agent's inbox, acknowledges every chat message, and
// replies with the router's answer. The acknowledgement and the reply are
// separate messages; peers that only track acknowledgements still see the
// message was received even if answering fails.
type Responder struct {
	address string
	sender  Sender
	router  *Router
	logger  *slog.Logger
}

// ResponderOption configures the responder.
type ResponderOption func(*Responder)

// WithResponderLogger sets the logger.
func WithResponderLogger(logger *slog.Logger) ResponderOption {
	return func(r *Responder) {
		r.logger = logger
	}
}

// NewResponder creates a responder answering as the given address.
func NewResponder(address string, sender Sender, router *Router, options ...ResponderOption) (*Responder, error) {
	if address == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender cannot be nil")
	}
	if router == nil {
		return nil, fmt.Errorf("router cannot be nil")
	}

	r := &Responder{
		address: address,
		sender:  sender,
		router:  router,
		logger:  slog.Default(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Address returns the agent address the responder answers as.
func (r *Responder) Address() string {
	return r.address
}

// Register wires the responder's handlers into a message dispatcher.
func (r *Responder) Register(dispatcher *messaging.MessageDispatcher) error {
	if err := dispatcher.RegisterHandlerFunc("ChatMessage", r.HandleChat); err != nil {
		return err
	}
	return dispatcher.RegisterHandlerFunc("ChatAcknowledgement", r.HandleAck)
}

// HandleChat acknowledges the message, answers it, and replies to the
// sender. It never returns an error; failures are logged and, where
// possible, turned into reply text.
func (r *Responder) HandleChat(ctx context.Context, msg contracts.Message) error {
	chat, ok := msg.(*contracts.ChatMessage)
	if !ok {
		r.logger.Warn("ignoring non-chat message", "messageType", msg.GetType())
		return nil
	}

	peer := chat.GetSender()
	if peer == "" {
		r.logger.Warn("chat message has no sender, cannot reply", "messageId", chat.GetID())
		return nil
	}

	ack := contracts.NewChatAcknowledgement(chat.GetID())
	if err := r.sender.Send(ctx, peer, ack); err != nil {
		r.logger.Error("failed to send acknowledgement",
			"peer", peer,
			"messageId", chat.GetID(),
			"error", err,
		)
	}

	answer := r.router.Respond(ctx, chat.Text())

	reply := contracts.NewChatMessage(answer)
	reply.SetCorrelationID(chat.GetCorrelationID())
	if err := r.sender.Send(ctx, peer, reply); err != nil {
		r.logger.Error("failed to send reply",
			"peer", peer,
			"messageId", chat.GetID(),
			"error", err,
		)
		return nil
	}

	r.logger.Debug("replied to chat message",
		"peer", peer,
		"messageId", chat.GetID(),
		"replyId", reply.GetID(),
	)
	return nil
}

// HandleAck records acknowledgements of the responder's own replies.
func (r *Responder) HandleAck(ctx context.Context, msg contracts.Message) error {
	ack, ok := msg.(*contracts.ChatAcknowledgement)
	if !ok {
		return nil
	}
	r.logger.Debug("reply acknowledged",
		"peer", ack.GetSender(),
		"acknowledgedMsgId", ack.AcknowledgedMsgID,
	)
	return nil
}
