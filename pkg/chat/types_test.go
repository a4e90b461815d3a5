package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResponse_MessagesFollowRenderOrder(t *testing.T) {
	// JSON key order is deliberately scrambled.
	body := `{
		"continuation_message": {"role": "assistant", "content": "next"},
		"feedback_message": {"role": "assistant", "content": "good"},
		"user_message": {"role": "user", "content": "hello", "spelling_score": 85, "original_text": "helo"},
		"assistant_message": {"role": "assistant", "content": "hi there"}
	}`
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(body), &resp))

	msgs := resp.Messages()
	require.Len(t, msgs, 4)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, "hi there", msgs[1].Content)
	require.Equal(t, "good", msgs[2].Content)
	require.Equal(t, "next", msgs[3].Content)
	require.Equal(t, "85", msgs[0].FormatScore())
}

func TestResponse_MissingSlotsAreSkipped(t *testing.T) {
	resp := Response{
		UserMessage:     &Message{Role: RoleUser, Content: "u"},
		FeedbackMessage: &Message{Role: RoleAssistant, Content: "f"},
	}
	msgs := resp.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "u", msgs[0].Content)
	require.Equal(t, "f", msgs[1].Content)
	require.Nil(t, resp.Slot(Field("unknown")))
}

func TestResponse_ProgressNeedsBothFields(t *testing.T) {
	_, ok := Response{CurrentExchangeIndex: Ptr(2)}.Progress()
	require.False(t, ok)

	p, ok := Response{CurrentExchangeIndex: Ptr(2), TotalExchanges: Ptr(5)}.Progress()
	require.True(t, ok)
	require.Equal(t, Progress{CurrentIndex: 2, Total: 5}, p)
}

func TestDecodeFrame(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"type":"chat_message","message":{"role":"assistant","content":"pushed"}}`))
	require.NoError(t, err)
	require.Equal(t, FrameTypeChatMessage, f.Type)
	require.Equal(t, RoleAssistant, f.Message.Role)
	require.Equal(t, "pushed", f.Message.Content)

	_, err = DecodeFrame([]byte("not json"))
	require.Error(t, err)
}

func TestMessage_FormatScore(t *testing.T) {
	require.Equal(t, "", Message{}.FormatScore())
	require.Equal(t, "72.5", Message{SpellingScore: Ptr(72.5)}.FormatScore())
}
