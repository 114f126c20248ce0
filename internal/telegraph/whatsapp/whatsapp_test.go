package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/productif/internal/telegraph"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type graphCall struct {
	path string
	auth string
	body sendRequest
}

// fakeGraph records message posts and answers with status.
type fakeGraph struct {
	mu     sync.Mutex
	calls  []graphCall
	status int
	reply  string
}

func (g *fakeGraph) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body sendRequest
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		g.mu.Lock()
		g.calls = append(g.calls, graphCall{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body})
		status, reply := g.status, g.reply
		g.mu.Unlock()
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}
}

func (g *fakeGraph) recorded() []graphCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]graphCall(nil), g.calls...)
}

func (g *fakeGraph) fail(status int, reply string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status, g.reply = status, reply
}

func newTestAdapter(t *testing.T, opts AdapterOpts) (*Adapter, *fakeGraph) {
	t.Helper()
	g := &fakeGraph{reply: `{"messages":[{"id":"wamid.out"}]}`}
	srv := httptest.NewServer(g.handler(t))
	t.Cleanup(srv.Close)

	if opts.PhoneNumberID == "" {
		opts.PhoneNumberID = "PN1"
	}
	if opts.AccessToken == "" {
		opts.AccessToken = "tok"
	}
	opts.GraphURL = srv.URL
	a, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, a.Connect(context.Background()))
	t.Cleanup(func() { a.Close() })
	return a, g
}

func router(a *Adapter) *gin.Engine {
	r := gin.New()
	a.Register(r, "/webhooks/whatsapp")
	return r
}

const textPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "changes": [{
      "field": "messages",
      "value": {
        "contacts": [{"profile": {"name": "Alice"}, "wa_id": "33612345678"}],
        "messages": [
          {"from": "33612345678", "id": "wamid.1", "timestamp": "1760000000", "type": "text", "text": {"body": "mes tâches"}},
          {"from": "33612345678", "id": "wamid.2", "timestamp": "1760000001", "type": "image"}
        ]
      }
    }]
  }]
}`

func post(r http.Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(AdapterOpts{AccessToken: "tok"})
	assert.ErrorContains(t, err, "phone number id is required")

	_, err = New(AdapterOpts{PhoneNumberID: "PN1"})
	assert.ErrorContains(t, err, "access token is required")

	a, err := New(AdapterOpts{PhoneNumberID: "PN1", AccessToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "https://graph.facebook.com/v20.0/PN1/messages", a.endpoint)
}

func TestListen_RequiresConnect(t *testing.T) {
	a, err := New(AdapterOpts{PhoneNumberID: "PN1", AccessToken: "tok"})
	require.NoError(t, err)
	_, err = a.Listen(context.Background())
	assert.ErrorContains(t, err, "not connected")
}

func TestVerify(t *testing.T) {
	a, _ := newTestAdapter(t, AdapterOpts{VerifyToken: "secret-verify"})
	r := router(a)

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"valid", "hub.mode=subscribe&hub.verify_token=secret-verify&hub.challenge=42", http.StatusOK, "42"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", http.StatusForbidden, "forbidden"},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=secret-verify&hub.challenge=42", http.StatusForbidden, "forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?"+tt.query, nil))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}

func TestReceive_TextMessage(t *testing.T) {
	a, _ := newTestAdapter(t, AdapterOpts{})
	ch, err := a.Listen(context.Background())
	require.NoError(t, err)

	w := post(router(a), textPayload, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	select {
	case msg := <-ch:
		assert.Equal(t, telegraph.PlatformWhatsApp, msg.Platform)
		assert.Equal(t, "wamid.1", msg.MessageID)
		assert.Equal(t, "33612345678", msg.UserID)
		assert.Equal(t, "33612345678", msg.ChannelID)
		assert.Equal(t, "Alice", msg.UserName)
		assert.Equal(t, "mes tâches", msg.Text)
		assert.Equal(t, time.Unix(1760000000, 0), msg.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for inbound message")
	}

	// The image is acknowledged but never queued.
	assert.Len(t, ch, 0)
}

func TestReceive_DeduplicatesRedelivery(t *testing.T) {
	a, _ := newTestAdapter(t, AdapterOpts{})
	ch, _ := a.Listen(context.Background())
	r := router(a)

	post(r, textPayload, nil)
	post(r, textPayload, nil)

	assert.Len(t, ch, 1)
}

func TestReceive_BadJSON(t *testing.T) {
	a, _ := newTestAdapter(t, AdapterOpts{})
	w := post(router(a), "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReceive_Signature(t *testing.T) {
	a, _ := newTestAdapter(t, AdapterOpts{AppSecret: "app-secret"})
	ch, _ := a.Listen(context.Background())
	r := router(a)

	w := post(r, textPayload, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "missing signature")

	w = post(r, textPayload, map[string]string{signatureHeader: sign(textPayload, "other")})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "wrong secret")
	assert.Len(t, ch, 0)

	w = post(r, textPayload, map[string]string{signatureHeader: sign(textPayload, "app-secret")})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, ch, 1)
}

func TestReceive_AfterCloseDropped(t *testing.T) {
	a, _ := newTestAdapter(t, AdapterOpts{})
	_, _ = a.Listen(context.Background())
	require.NoError(t, a.Close())

	w := post(router(a), textPayload, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSend_PostsText(t *testing.T) {
	a, g := newTestAdapter(t, AdapterOpts{AccessToken: "bearer-123"})

	err := a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "33612345678", Text: "C'est noté !"})
	require.NoError(t, err)

	calls := g.recorded()
	require.Len(t, calls, 1)
	call := calls[0]
	assert.Equal(t, "/v20.0/PN1/messages", call.path)
	assert.Equal(t, "Bearer bearer-123", call.auth)
	assert.Equal(t, "whatsapp", call.body.MessagingProduct)
	assert.Equal(t, "33612345678", call.body.To)
	assert.Equal(t, "text", call.body.Type)
	assert.Equal(t, "C'est noté !", call.body.Text.Body)
}

func TestSend_SplitsLongText(t *testing.T) {
	a, g := newTestAdapter(t, AdapterOpts{})

	long := strings.Repeat("une ligne de plan\n", 600)
	require.NoError(t, a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "336", Text: long}))

	calls := g.recorded()
	require.GreaterOrEqual(t, len(calls), 3)
	for _, c := range calls {
		assert.LessOrEqual(t, len([]rune(c.body.Text.Body)), telegraph.LimitWhatsApp)
	}
}

func TestSend_Errors(t *testing.T) {
	a, g := newTestAdapter(t, AdapterOpts{})

	err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "hello"})
	assert.ErrorContains(t, err, "no recipient")

	g.fail(http.StatusBadRequest, `{"error":{"message":"Invalid parameter","code":100}}`)
	err = a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "336", Text: "hello"})
	assert.ErrorContains(t, err, "Invalid parameter")
	assert.ErrorContains(t, err, "code 100")

	require.NoError(t, a.Close())
	err = a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "336", Text: "hello"})
	assert.ErrorContains(t, err, "not connected")
}

func TestValidSignature(t *testing.T) {
	body := `{"a":1}`
	assert.True(t, validSignature([]byte(body), sign(body, "s"), "s"))
	assert.False(t, validSignature([]byte(body), "sha256=zz", "s"))
	assert.False(t, validSignature([]byte(body), strings.TrimPrefix(sign(body, "s"), "sha256="), "s"))
}

var _ telegraph.Adapter = (*Adapter)(nil)
