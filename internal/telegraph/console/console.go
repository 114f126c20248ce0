// Package console implements the telegraph Adapter on a local terminal, so
// the agent can be exercised without a chat platform. Each line typed is
// one inbound message from a fixed contact.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zulandar/productif/internal/telegraph"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const (
	userPrompt = "vous> "
	botPrefix  = "pio> "
)

// Adapter implements telegraph.Adapter over stdin and stdout.
type Adapter struct {
	in        io.Reader
	out       io.Writer
	platform  string
	senderID  string
	channelID string
	userName  string
	log       *zap.Logger

	mu        sync.Mutex
	connected bool
	closed    bool
	inbound   chan telegraph.InboundMessage
	done      chan struct{}
	closeOnce sync.Once

	// Set when in is an interactive terminal.
	term     *term.Terminal
	fd       int
	oldState *term.State
	writeMu  sync.Mutex
	lines    func() (string, error)
}

// AdapterOpts holds parameters for creating a console Adapter.
type AdapterOpts struct {
	In        io.Reader // defaults to os.Stdin
	Out       io.Writer // defaults to os.Stdout
	Platform  string    // contact namespace; defaults to console
	SenderID  string    // required; identifies the contact
	ChannelID string    // reply address recorded on the contact; defaults to SenderID
	UserName  string
	Logger    *zap.Logger
}

// New creates a console Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.SenderID == "" {
		return nil, fmt.Errorf("console: sender id is required")
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Platform == "" {
		opts.Platform = telegraph.PlatformConsole
	}
	if opts.ChannelID == "" {
		opts.ChannelID = opts.SenderID
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Adapter{
		in:        opts.In,
		out:       opts.Out,
		platform:  opts.Platform,
		senderID:  opts.SenderID,
		channelID: opts.ChannelID,
		userName:  opts.UserName,
		log:       opts.Logger.Named("console"),
		inbound:   make(chan telegraph.InboundMessage, 16),
		done:      make(chan struct{}),
	}, nil
}

// Connect prepares line reading. An interactive terminal is switched to raw
// mode for line editing; any other input is read line by line.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("console: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("console: raw mode: %w", err)
		}
		a.fd, a.oldState = fd, state
		a.term = term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{a.in, a.out}, userPrompt)
		a.lines = a.term.ReadLine
	} else {
		sc := bufio.NewScanner(a.in)
		a.lines = func() (string, error) {
			if sc.Scan() {
				return sc.Text(), nil
			}
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
	}
	a.connected = true
	return nil
}

// Listen starts reading lines. The inbound channel closes when input ends
// or the adapter is closed.
func (a *Adapter) Listen(ctx context.Context) (<-chan telegraph.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("console: not connected")
	}
	go a.read()
	return a.inbound, nil
}

func (a *Adapter) read() {
	defer a.Close()
	for seq := 1; ; seq++ {
		line, err := a.lines()
		if err != nil {
			if err != io.EOF {
				a.log.Warn("read input", zap.Error(err))
			}
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return
		}
		if !a.deliver(telegraph.InboundMessage{
			Platform:  a.platform,
			MessageID: strconv.Itoa(seq),
			ChannelID: a.channelID,
			UserID:    a.senderID,
			UserName:  a.userName,
			Text:      line,
			Timestamp: time.Now(),
		}) {
			return
		}
	}
}

// deliver blocks until msg is queued or the adapter closes.
func (a *Adapter) deliver(msg telegraph.InboundMessage) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	select {
	case a.inbound <- msg:
		return true
	case <-a.done:
		return false
	}
}

// Send prints a reply. The channel is ignored: there is a single reader.
// Replies still print after input ends so the last answer is not lost.
func (a *Adapter) Send(ctx context.Context, msg telegraph.OutboundMessage) error {
	a.mu.Lock()
	ready := a.lines != nil
	a.mu.Unlock()
	if !ready {
		return fmt.Errorf("console: not connected")
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	text := botPrefix + strings.ReplaceAll(msg.Text, "\n", "\n"+strings.Repeat(" ", len(botPrefix)))
	var err error
	if a.term != nil {
		_, err = a.term.Write([]byte(text + "\n"))
	} else {
		_, err = fmt.Fprintln(a.out, text)
	}
	if err != nil {
		return fmt.Errorf("console: write: %w", err)
	}
	return nil
}

// Close restores the terminal and closes the inbound channel.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.done)
		a.mu.Lock()
		defer a.mu.Unlock()
		a.closed = true
		close(a.inbound)
		if a.oldState != nil {
			if rerr := term.Restore(a.fd, a.oldState); rerr != nil {
				err = fmt.Errorf("console: restore terminal: %w", rerr)
			}
		}
	})
	return err
}
