package handshake

import (
	"errors"
	"sync"
)

var ErrSurfaceNotLoaded = errors.New("payment frame is not loaded")

type CommandType string

const (
	CommandLoad     CommandType = "load"
	CommandPost     CommandType = "post"
	CommandResize   CommandType = "resize"
	CommandTearDown CommandType = "teardown"
	CommandSuccess  CommandType = "render_success"
	CommandFailure  CommandType = "render_failure"
	CommandConfirm  CommandType = "confirm"
)

// Command is one instruction for the page script to replay.
type Command struct {
	Type         CommandType      `json:"type"`
	URL          string           `json:"url,omitempty"`
	TargetOrigin string           `json:"target_origin,omitempty"`
	Message      *OutboundMessage `json:"message,omitempty"`
	Height       int              `json:"height,omitempty"`
	Receipt      *Receipt         `json:"receipt,omitempty"`
	Failure      *FailureNotice   `json:"failure,omitempty"`
	Confirm      *ConfirmControl  `json:"confirm,omitempty"`
}

// Outbox is a Surface and Renderer that records commands instead of touching
// a DOM. The page drains it after every call and replays the commands.
type Outbox struct {
	mu       sync.Mutex
	commands []Command
	loaded   bool
	url      string
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) push(cmd Command) {
	o.mu.Lock()
	o.commands = append(o.commands, cmd)
	o.mu.Unlock()
}

func (o *Outbox) Load(url string) {
	o.mu.Lock()
	o.loaded = true
	o.url = url
	o.mu.Unlock()
	o.push(Command{Type: CommandLoad, URL: url})
}

func (o *Outbox) Post(msg OutboundMessage, targetOrigin string) error {
	if !o.Loaded() {
		return ErrSurfaceNotLoaded
	}
	o.push(Command{Type: CommandPost, Message: &msg, TargetOrigin: targetOrigin})
	return nil
}

func (o *Outbox) Resize(height int) {
	o.push(Command{Type: CommandResize, Height: height})
}

func (o *Outbox) TearDown() {
	o.mu.Lock()
	wasLoaded := o.loaded
	o.loaded = false
	o.url = ""
	o.mu.Unlock()
	if wasLoaded {
		o.push(Command{Type: CommandTearDown})
	}
}

func (o *Outbox) Loaded() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loaded
}

func (o *Outbox) URL() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.url
}

func (o *Outbox) RenderSuccess(r Receipt) {
	o.push(Command{Type: CommandSuccess, Receipt: &r})
}

func (o *Outbox) RenderFailure(f FailureNotice) {
	o.push(Command{Type: CommandFailure, Failure: &f})
}

func (o *Outbox) SetConfirm(c ConfirmControl) {
	o.push(Command{Type: CommandConfirm, Confirm: &c})
}

// Drain returns the pending commands and clears them.
func (o *Outbox) Drain() []Command {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.commands
	o.commands = nil
	if out == nil {
		out = []Command{}
	}
	return out
}
