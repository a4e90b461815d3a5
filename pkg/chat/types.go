package chat

import (
	"encoding/json"
	"strconv"
)

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a chat message as produced by the server. It is rendered and
// never mutated locally.
type Message struct {
	Role          Role     `json:"role"`
	Content       string   `json:"content"`
	SpellingScore *float64 `json:"spelling_score,omitempty"`
	OriginalText  *string  `json:"original_text,omitempty"`
	ExpectedWord  *string  `json:"expected_word,omitempty"`
}

// HasScore reports whether the server attached a spelling score.
func (m Message) HasScore() bool {
	return m.SpellingScore != nil
}

// FormatScore renders the score without trailing zeros ("85", "72.5").
func (m Message) FormatScore() string {
	if m.SpellingScore == nil {
		return ""
	}
	return strconv.FormatFloat(*m.SpellingScore, 'f', -1, 64)
}

// Field names one of the message slots of a Response.
type Field string

const (
	FieldUser         Field = "user_message"
	FieldAssistant    Field = "assistant_message"
	FieldFeedback     Field = "feedback_message"
	FieldContinuation Field = "continuation_message"
)

// RenderOrder is the fixed order in which message slots are rendered.
var RenderOrder = []Field{FieldUser, FieldAssistant, FieldFeedback, FieldContinuation}

// Response is the body returned by the message endpoint for text, audio and
// word-generation submissions. Every field is optional.
type Response struct {
	UserMessage         *Message `json:"user_message,omitempty"`
	AssistantMessage    *Message `json:"assistant_message,omitempty"`
	FeedbackMessage     *Message `json:"feedback_message,omitempty"`
	ContinuationMessage *Message `json:"continuation_message,omitempty"`

	CurrentExchangeIndex *int    `json:"current_exchange_index,omitempty"`
	TotalExchanges       *int    `json:"total_exchanges,omitempty"`
	ExpectedResponse     *string `json:"expected_response,omitempty"`

	ConversationCompleted bool `json:"conversation_completed,omitempty"`
}

// Slot returns the message stored under f, or nil.
func (r Response) Slot(f Field) *Message {
	switch f {
	case FieldUser:
		return r.UserMessage
	case FieldAssistant:
		return r.AssistantMessage
	case FieldFeedback:
		return r.FeedbackMessage
	case FieldContinuation:
		return r.ContinuationMessage
	default:
		return nil
	}
}

// Messages returns the present messages in RenderOrder.
func (r Response) Messages() []Message {
	out := make([]Message, 0, len(RenderOrder))
	for _, f := range RenderOrder {
		if m := r.Slot(f); m != nil {
			out = append(out, *m)
		}
	}
	return out
}

// Progress returns the exchange position when both progress fields are set.
func (r Response) Progress() (Progress, bool) {
	if r.CurrentExchangeIndex == nil || r.TotalExchanges == nil {
		return Progress{}, false
	}
	return Progress{CurrentIndex: *r.CurrentExchangeIndex, Total: *r.TotalExchanges}, true
}

// Progress is the position inside a scripted conversation. CurrentIndex is
// zero-based.
type Progress struct {
	CurrentIndex int
	Total        int
}

// FrameTypeChatMessage is the only push frame type the client reacts to.
const FrameTypeChatMessage = "chat_message"

// Frame is a server push received over the websocket channel.
type Frame struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

// DecodeFrame parses a websocket text frame.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}

// ScoreResult is the response of the single-word recorder endpoint.
type ScoreResult struct {
	Transcribed string  `json:"transcribed"`
	Score       float64 `json:"score"`
}

// TextRequest is the JSON body for typed messages.
type TextRequest struct {
	Content      string `json:"content"`
	ExpectedWord string `json:"expected_word,omitempty"`
}

// ActionGenerateWords asks the server for a new prompt word.
const ActionGenerateWords = "generate_words"

// ActionRequest is the JSON body for non-message actions.
type ActionRequest struct {
	Action string `json:"action"`
}

// Ptr returns a pointer to v. Handy for building optional fields.
func Ptr[T any](v T) *T {
	return &v
}
