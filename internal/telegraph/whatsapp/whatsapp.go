// Package whatsapp implements the telegraph Adapter for the WhatsApp Cloud
// API. Inbound messages arrive on a webhook served by internal/server;
// replies are posted to the Graph API.
package whatsapp

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/productif/internal/telegraph"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// maxBody caps the webhook payload we accept.
	maxBody = 1 << 20
	// dedupeSize is how many recent message IDs are remembered. Meta
	// redelivers a webhook until it gets a 200.
	dedupeSize = 1024
	// signatureHeader carries the HMAC-SHA256 of the raw body.
	signatureHeader = "X-Hub-Signature-256"
)

// Adapter implements telegraph.Adapter for WhatsApp.
type Adapter struct {
	phoneNumberID string
	verifyToken   string
	appSecret     string
	endpoint      string
	http          *http.Client
	log           *zap.Logger

	mu        sync.Mutex
	connected bool
	closed    bool
	inbound   chan telegraph.InboundMessage
	seen      map[string]struct{}
	seenOrder []string
}

// AdapterOpts holds parameters for creating a WhatsApp Adapter.
type AdapterOpts struct {
	PhoneNumberID string // sender phone number ID
	AccessToken   string // Graph API bearer token
	VerifyToken   string // echoed back during webhook verification
	AppSecret     string // optional; when set, webhook signatures are checked
	GraphURL      string // defaults to https://graph.facebook.com
	APIVersion    string // defaults to v20.0
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

// New creates a WhatsApp Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.PhoneNumberID == "" {
		return nil, fmt.Errorf("whatsapp: phone number id is required")
	}
	if opts.AccessToken == "" {
		return nil, fmt.Errorf("whatsapp: access token is required")
	}
	if opts.GraphURL == "" {
		opts.GraphURL = "https://graph.facebook.com"
	}
	if opts.APIVersion == "" {
		opts.APIVersion = "v20.0"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken, TokenType: "Bearer"})
	return &Adapter{
		phoneNumberID: opts.PhoneNumberID,
		verifyToken:   opts.VerifyToken,
		appSecret:     opts.AppSecret,
		endpoint: fmt.Sprintf("%s/%s/%s/messages",
			strings.TrimRight(opts.GraphURL, "/"), opts.APIVersion, opts.PhoneNumberID),
		http: &http.Client{
			Transport: &oauth2.Transport{Source: src, Base: opts.HTTPClient.Transport},
			Timeout:   opts.HTTPClient.Timeout,
		},
		log:     opts.Logger.Named("whatsapp"),
		inbound: make(chan telegraph.InboundMessage, 100),
		seen:    make(map[string]struct{}),
	}, nil
}

// Connect marks the adapter ready. The Cloud API has no session to open;
// bad credentials surface on the first Send.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("whatsapp: adapter already closed")
	}
	a.connected = true
	return nil
}

// Listen returns the channel fed by the webhook handler.
func (a *Adapter) Listen(ctx context.Context) (<-chan telegraph.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("whatsapp: not connected")
	}
	return a.inbound, nil
}

// Close stops delivery and closes the inbound channel.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	close(a.inbound)
	return nil
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send posts a text message to the phone number in msg.ChannelID, split to
// the platform size limit.
func (a *Adapter) Send(ctx context.Context, msg telegraph.OutboundMessage) error {
	a.mu.Lock()
	connected := a.connected
	a.mu.Unlock()
	if !connected {
		return fmt.Errorf("whatsapp: not connected")
	}
	if msg.ChannelID == "" {
		return fmt.Errorf("whatsapp: no recipient specified")
	}

	for _, part := range telegraph.Chunk(msg.Text, telegraph.LimitWhatsApp) {
		if err := a.post(ctx, sendRequest{
			MessagingProduct: "whatsapp",
			RecipientType:    "individual",
			To:               msg.ChannelID,
			Type:             "text",
			Text:             sendText{Body: part},
		}); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) post(ctx context.Context, body sendRequest) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("whatsapp: encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("whatsapp: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var ge graphError
		if json.Unmarshal(raw, &ge) == nil && ge.Error.Message != "" {
			return fmt.Errorf("whatsapp: send message: status %d: %s (code %d)", resp.StatusCode, ge.Error.Message, ge.Error.Code)
		}
		return fmt.Errorf("whatsapp: send message: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

// Register mounts the webhook verification and delivery handlers on path.
func (a *Adapter) Register(r gin.IRoutes, path string) {
	r.GET(path, a.handleVerify)
	r.POST(path, a.handleReceive)
}

// handleVerify answers Meta's subscription handshake.
func (a *Adapter) handleVerify(c *gin.Context) {
	if c.Query("hub.mode") != "subscribe" || a.verifyToken == "" ||
		!hmac.Equal([]byte(c.Query("hub.verify_token")), []byte(a.verifyToken)) {
		c.String(http.StatusForbidden, "forbidden")
		return
	}
	c.String(http.StatusOK, c.Query("hub.challenge"))
}

type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// handleReceive parses a webhook delivery and queues its text messages.
// Status updates and non-text messages are acknowledged and ignored.
func (a *Adapter) handleReceive(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	if a.appSecret != "" && !validSignature(raw, c.GetHeader(signatureHeader), a.appSecret) {
		a.log.Warn("rejecting webhook with bad signature")
		c.Status(http.StatusUnauthorized)
		return
	}

	var p webhookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	for _, e := range p.Entry {
		for _, ch := range e.Changes {
			names := make(map[string]string, len(ch.Value.Contacts))
			for _, ct := range ch.Value.Contacts {
				names[ct.WaID] = ct.Profile.Name
			}
			for _, m := range ch.Value.Messages {
				if m.Type != "text" {
					a.log.Debug("ignoring non-text message", zap.String("type", m.Type), zap.String("id", m.ID))
					continue
				}
				a.deliver(telegraph.InboundMessage{
					Platform:  telegraph.PlatformWhatsApp,
					MessageID: m.ID,
					ChannelID: m.From,
					UserID:    m.From,
					UserName:  names[m.From],
					Text:      m.Text.Body,
					Timestamp: parseTimestamp(m.Timestamp),
				})
			}
		}
	}
	c.Status(http.StatusOK)
}

// deliver queues msg unless it was already seen or the adapter is closed.
func (a *Adapter) deliver(msg telegraph.InboundMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || !a.connected {
		return
	}
	if _, dup := a.seen[msg.MessageID]; dup {
		return
	}
	a.seen[msg.MessageID] = struct{}{}
	a.seenOrder = append(a.seenOrder, msg.MessageID)
	if len(a.seenOrder) > dedupeSize {
		delete(a.seen, a.seenOrder[0])
		a.seenOrder = a.seenOrder[1:]
	}

	select {
	case a.inbound <- msg:
	default:
		a.log.Warn("inbound queue full, dropping message", zap.String("id", msg.MessageID))
	}
}

func validSignature(body []byte, header, secret string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func parseTimestamp(ts string) time.Time {
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
