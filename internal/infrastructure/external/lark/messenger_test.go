package lark

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOpenAPI struct {
	mu       sync.Mutex
	messages []map[string]string
	failCode int
}

func (f *fakeOpenAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/tenant_access_token/internal"):
		_, _ = io.WriteString(w, `{"code":0,"msg":"ok","tenant_access_token":"t-test","expire":7200}`)
	case r.URL.Path == "/open-apis/im/v1/messages":
		if f.failCode != 0 {
			_, _ = io.WriteString(w, `{"code":230013,"msg":"Bot has NO availability to this user."}`)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		body["receive_id_type"] = r.URL.Query().Get("receive_id_type")
		f.mu.Lock()
		f.messages = append(f.messages, body)
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"code":0,"msg":"success","data":{"message_id":"om_1"}}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestMessenger(t *testing.T, api *fakeOpenAPI) *Messenger {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	client := NewSDKClient(Config{AppID: "cli_test", AppSecret: "secret", BaseURL: srv.URL}, zap.NewNop())
	return NewMessenger(client, zap.NewNop())
}

func TestMessenger_SendText(t *testing.T) {
	api := &fakeOpenAPI{}
	m := newTestMessenger(t, api)

	err := m.SendText(context.Background(), "ou_123", "Approval requested: CTR-2026-000001\n\n\"Поставка\" awaits you")
	require.NoError(t, err)

	require.Len(t, api.messages, 1)
	msg := api.messages[0]
	assert.Equal(t, "open_id", msg["receive_id_type"])
	assert.Equal(t, "ou_123", msg["receive_id"])
	assert.Equal(t, "text", msg["msg_type"])

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(msg["content"]), &content))
	assert.Equal(t, "Approval requested: CTR-2026-000001\n\n\"Поставка\" awaits you", content["text"])
}

func TestMessenger_SendTextErrors(t *testing.T) {
	api := &fakeOpenAPI{failCode: 230013}
	m := newTestMessenger(t, api)

	assert.Error(t, m.SendText(context.Background(), "", "hi"))
	assert.Error(t, m.SendText(context.Background(), "ou_1", ""))

	err := m.SendText(context.Background(), "ou_1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "230013")
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{AppID: "cli"}.Enabled())
	assert.True(t, Config{AppID: "cli", AppSecret: "s"}.Enabled())
}
