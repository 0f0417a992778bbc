package exchange

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gennadis/ragdesk/internal/chat"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("an exchange is already in flight")
)

// Completer performs one chat exchange with the service.
type Completer interface {
	Chat(ctx context.Context, request *chat.ChatRequest) (string, error)
}

// Transcript is the part of the session manager the coordinator drives.
type Transcript interface {
	Active() *chat.Session
	AppendMessage(ctx context.Context, msg chat.ChatMessage) error
}

// Reply is the outcome of Send. Message is what was appended after the
// user's turn: the model reply, or the apology when the exchange failed.
// Err carries the exchange failure; SaveErr a persistence failure.
type Reply struct {
	Message chat.ChatMessage
	Err     error
	SaveErr error
}

// Failed reports whether the service did not produce a reply.
func (r Reply) Failed() bool {
	return r.Err != nil
}

// Coordinator sends user turns and appends replies, one at a time.
type Coordinator struct {
	completer  Completer
	transcript Transcript
	timeout    time.Duration
	busy       atomic.Bool
}

func NewCoordinator(completer Completer, transcript Transcript, timeout time.Duration) *Coordinator {
	return &Coordinator{
		completer:  completer,
		transcript: transcript,
		timeout:    timeout,
	}
}

// Busy reports whether an exchange is in flight. The send affordance is
// disabled while it is true.
func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

// Send appends the user's text to the active session, asks the service
// for a reply and appends it. Any failure of the exchange appends a fixed
// system apology instead; the user's message is kept either way.
func (c *Coordinator) Send(ctx context.Context, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}
	if !c.busy.CompareAndSwap(false, true) {
		return Reply{}, ErrBusy
	}
	defer c.busy.Store(false)

	var reply Reply
	prior := c.transcript.Active()
	if err := c.transcript.AppendMessage(ctx, chat.ChatMessage{Role: chat.ChatRoleUser, Content: text}); err != nil {
		reply.SaveErr = err
	}
	request := chat.NewChatRequest(text, prior.Messages, prior.Files)

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	response, err := c.completer.Chat(reqCtx, request)
	if err != nil {
		slog.Error("Chat exchange failed", "session", prior.ID, "error", err)
		reply.Err = err
		reply.Message = chat.ChatMessage{Role: chat.ChatRoleSystem, Content: chat.ApologyText}
	} else {
		reply.Message = chat.ChatMessage{Role: chat.ChatRoleModel, Content: response}
	}

	if err := c.transcript.AppendMessage(ctx, reply.Message); err != nil && reply.SaveErr == nil {
		reply.SaveErr = err
	}

	slog.Debug("chat exchange settled",
		slog.String("session", prior.ID),
		slog.Int("history", len(request.History)),
		slog.Int("files", len(request.FileIDs)),
		slog.Bool("failed", reply.Failed()),
	)
	return reply, nil
}
