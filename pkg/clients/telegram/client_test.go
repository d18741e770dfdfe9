package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/hedgefund-labs/fund-settler/pkg/logger"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *Client {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	client := NewClient("bot-token", "chat-1", l)
	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func Test_SendMessage(t *testing.T) {
	t.Run("Should post the message to the chat", func(t *testing.T) {
		client := setup(t)
		httpmock.RegisterResponder("POST", DefaultBaseUrl+"/botbot-token/sendMessage",
			func(req *http.Request) (*http.Response, error) {
				var body map[string]string
				_ = json.NewDecoder(req.Body).Decode(&body)
				assert.Equal(t, "chat-1", body["chat_id"])
				assert.Equal(t, "step 1 failed", body["text"])
				return httpmock.NewStringResponse(200, `{"ok": true}`), nil
			})

		require.NoError(t, client.SendMessage(context.Background(), "step 1 failed"))
	})
	t.Run("Should truncate long messages", func(t *testing.T) {
		client := setup(t)
		httpmock.RegisterResponder("POST", DefaultBaseUrl+"/botbot-token/sendMessage",
			func(req *http.Request) (*http.Response, error) {
				var body map[string]string
				_ = json.NewDecoder(req.Body).Decode(&body)
				assert.Len(t, body["text"], maxMessageLength)
				return httpmock.NewStringResponse(200, `{"ok": true}`), nil
			})

		require.NoError(t, client.SendMessage(context.Background(), strings.Repeat("a", maxMessageLength+10)))
	})
	t.Run("Should return the telegram description on failure", func(t *testing.T) {
		client := setup(t)
		httpmock.RegisterResponder("POST", DefaultBaseUrl+"/botbot-token/sendMessage",
			httpmock.NewStringResponder(400, `{"ok": false, "description": "chat not found"}`))

		err := client.SendMessage(context.Background(), "hello")
		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "chat not found")
	})
}
