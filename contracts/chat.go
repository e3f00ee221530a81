package contracts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Content segment type tags.
const (
	ContentTypeText         = "text"
	ContentTypeStartSession = "start-session"
	ContentTypeEndSession   = "end-session"
)

// Content is a single segment of a chat message body. Segments are a tagged
// variant: the wire form is a JSON object whose "type" field selects the
// concrete shape.
type Content interface {
	ContentType() string
}

// TextContent carries plain text
type TextContent struct {
	Text string `json:"text"`
}

// ContentType returns the segment type tag
func (TextContent) ContentType() string { return ContentTypeText }

// StartSessionContent marks the beginning of a logical conversation
type StartSessionContent struct{}

// ContentType returns the segment type tag
func (StartSessionContent) ContentType() string { return ContentTypeStartSession }

// EndSessionContent marks the end of a logical conversation
type EndSessionContent struct{}

// ContentType returns the segment type tag
func (EndSessionContent) ContentType() string { return ContentTypeEndSession }

// UnknownContent preserves segments this node does not recognize so they can
// be re-serialized unchanged.
type UnknownContent struct {
	Type string
	Raw  json.RawMessage
}

// ContentType returns the segment type tag
func (c UnknownContent) ContentType() string { return c.Type }

// MarshalContent serializes a single content segment to its wire form
func MarshalContent(c Content) ([]byte, error) {
	switch v := c.(type) {
	case TextContent:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{ContentTypeText, v.Text})
	case StartSessionContent:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{ContentTypeStartSession})
	case EndSessionContent:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{ContentTypeEndSession})
	case UnknownContent:
		if len(v.Raw) > 0 {
			return v.Raw, nil
		}
		return json.Marshal(struct {
			Type string `json:"type"`
		}{v.Type})
	default:
		return nil, fmt.Errorf("unsupported content type %T", c)
	}
}

// UnmarshalContent decodes a single content segment. It is total: a segment
// that cannot be decoded comes back as UnknownContent, never as an error, so
// one bad segment cannot sink the whole message.
func UnmarshalContent(raw json.RawMessage) Content {
	var head struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return UnknownContent{Raw: append(json.RawMessage(nil), raw...)}
	}
	switch head.Type {
	case ContentTypeText:
		return TextContent{Text: head.Text}
	case ContentTypeStartSession:
		return StartSessionContent{}
	case ContentTypeEndSession:
		return EndSessionContent{}
	default:
		return UnknownContent{Type: head.Type, Raw: append(json.RawMessage(nil), raw...)}
	}
}

// ChatMessage is the chat protocol request/response message. The body is an
// ordered list of content segments; this module typically sends a single text
// segment but must accept anything a remote agent produces.
type ChatMessage struct {
	BaseMessage
	Content []Content `json:"content"`
}

// NewChatMessage creates a chat message with a single text segment
func NewChatMessage(text string) *ChatMessage {
	return &ChatMessage{
		BaseMessage: NewBaseMessage("ChatMessage"),
		Content:     []Content{TextContent{Text: text}},
	}
}

// Text concatenates every text segment in order. Extraction is total:
// unrecognized segments are skipped and an empty string is a valid result.
func (m *ChatMessage) Text() string {
	var sb strings.Builder
	for _, c := range m.Content {
		if t, ok := c.(TextContent); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

type chatMessageJSON struct {
	BaseMessage
	Content []json.RawMessage `json:"content"`
}

// MarshalJSON serializes the message with its tagged content segments
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	out := chatMessageJSON{BaseMessage: m.BaseMessage}
	for _, c := range m.Content {
		raw, err := MarshalContent(c)
		if err != nil {
			return nil, err
		}
		out.Content = append(out.Content, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the message, tolerating unknown segment variants
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var in chatMessageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	m.BaseMessage = in.BaseMessage
	m.Content = nil
	for _, raw := range in.Content {
		m.Content = append(m.Content, UnmarshalContent(raw))
	}
	return nil
}

// ChatAcknowledgement confirms receipt of a chat message. The chat protocol
// requires one per inbound message, whether or not a caller consumed it.
type ChatAcknowledgement struct {
	BaseMessage
	AcknowledgedMsgID string `json:"acknowledgedMsgId"`
}

// NewChatAcknowledgement creates an acknowledgement for the given message ID
func NewChatAcknowledgement(acknowledgedMsgID string) *ChatAcknowledgement {
	return &ChatAcknowledgement{
		BaseMessage:       NewBaseMessage("ChatAcknowledgement"),
		AcknowledgedMsgID: acknowledgedMsgID,
	}
}
