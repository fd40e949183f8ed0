package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/atelier/internal/reliability"
)

const (
	gatewayWriteTimeout     = 3 * time.Second
	gatewayReconnectBase    = time.Second
	gatewayReconnectCap     = 30 * time.Second
	defaultHeartbeatEveryMS = 30000
)

// CommandOptions carries the raw option values of a slash command. Absent
// options arrive as zero values and are defaulted downstream.
type CommandOptions struct {
	Prompt   string  `json:"prompt"`
	Negative string  `json:"negative"`
	Shape    string  `json:"shape"`
	Sampler  string  `json:"sampler"`
	Model    string  `json:"model"`
	CFG      float64 `json:"cfg"`
	Steps    int     `json:"steps"`
	Batch    int     `json:"batch"`
	// Seed is a pointer: zero is a valid seed, so absence must be nil.
	Seed     *int64 `json:"seed"`
	Type     string `json:"type"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// InteractionEvent is one user interaction delivered by the gateway.
type InteractionEvent struct {
	Kind    string // "command" or "approve"
	Command string
	TaskID  string
	UserID  string
	Options CommandOptions
	Origin  ReplyContext
}

// Handler consumes dispatched interactions.
type Handler interface {
	HandleInteraction(ctx context.Context, ev InteractionEvent)
}

// Gateway maintains the websocket connection to the platform's event
// gateway and dispatches interaction events to the handler.
type Gateway struct {
	url      string
	token    string
	clientID string
	rest     *RESTClient
	handler  Handler
	log      *slog.Logger
	dialer   websocket.Dialer
}

func NewGateway(url, token string, rest *RESTClient, handler Handler, log *slog.Logger) (*Gateway, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("gateway url is required")
	}
	if handler == nil {
		return nil, errors.New("gateway handler is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		url:      url,
		token:    strings.TrimSpace(token),
		clientID: uuid.NewString(),
		rest:     rest,
		handler:  handler,
		log:      log,
		dialer:   websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

type gatewayFrame struct {
	Op string          `json:"op"`
	T  string          `json:"t,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

type helloPayload struct {
	HeartbeatIntervalMS int `json:"heartbeat_interval_ms"`
}

type identifyPayload struct {
	Token    string `json:"token"`
	ClientID string `json:"client_id"`
}

type interactionPayload struct {
	ID                string         `json:"id"`
	Token             string         `json:"token"`
	Kind              string         `json:"kind"`
	Command           string         `json:"command"`
	TaskID            string         `json:"task_id"`
	UserID            string         `json:"user_id"`
	ChannelID         string         `json:"channel_id"`
	ChannelRestricted bool           `json:"channel_restricted"`
	CreatedAtMS       int64          `json:"created_at_ms"`
	Options           CommandOptions `json:"options"`
}

// Run connects and reconnects until the context is cancelled. Dispatch
// errors never abort the loop; connection errors back off exponentially.
func (g *Gateway) Run(ctx context.Context) error {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := g.runConn(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return ctx.Err()
		}
		delay := reliability.ExponentialBackoff(attempt, gatewayReconnectBase, gatewayReconnectCap)
		attempt++
		g.log.Warn("gateway connection lost", "error", err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (g *Gateway) runConn(ctx context.Context) error {
	conn, _, err := g.dialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close()

	if err := g.writeFrame(conn, gatewayFrame{Op: "identify", D: mustJSON(identifyPayload{
		Token:    g.token,
		ClientID: g.clientID,
	})}); err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	var hello helloPayload
	frame, err := readFrame(conn)
	if err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if frame.Op != "hello" {
		return fmt.Errorf("expected hello frame, got %q", frame.Op)
	}
	if err := json.Unmarshal(frame.D, &hello); err != nil {
		return fmt.Errorf("decode hello: %w", err)
	}
	if hello.HeartbeatIntervalMS <= 0 {
		hello.HeartbeatIntervalMS = defaultHeartbeatEveryMS
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	defer hbCancel()
	go g.heartbeatLoop(hbCtx, conn, time.Duration(hello.HeartbeatIntervalMS)*time.Millisecond)

	// Close the socket when the parent context ends so ReadJSON unblocks.
	go func() {
		<-hbCtx.Done()
		_ = conn.Close()
	}()

	for {
		frame, err := readFrame(conn)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		switch frame.Op {
		case "dispatch":
			if frame.T != "interaction" {
				continue
			}
			var p interactionPayload
			if err := json.Unmarshal(frame.D, &p); err != nil {
				g.log.Warn("bad interaction payload", "error", err)
				continue
			}
			go g.dispatch(ctx, p)
		case "heartbeat_ack", "hello":
			// Nothing to do.
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, p interactionPayload) {
	ev := InteractionEvent{
		Kind:    strings.ToLower(strings.TrimSpace(p.Kind)),
		Command: strings.ToLower(strings.TrimSpace(p.Command)),
		TaskID:  strings.TrimSpace(p.TaskID),
		UserID:  strings.TrimSpace(p.UserID),
		Options: p.Options,
	}
	createdAt := time.UnixMilli(p.CreatedAtMS)
	if p.CreatedAtMS <= 0 {
		createdAt = time.Now()
	}
	if g.rest != nil {
		ev.Origin = g.rest.Interaction(p.ID, p.Token, p.ChannelID, p.ChannelRestricted, createdAt)
	}
	g.handler.HandleInteraction(ctx, ev)
}

func (g *Gateway) heartbeatLoop(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.writeFrame(conn, gatewayFrame{Op: "heartbeat"}); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) writeFrame(conn *websocket.Conn, frame gatewayFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(gatewayWriteTimeout))
	return conn.WriteJSON(frame)
}

func readFrame(conn *websocket.Conn) (gatewayFrame, error) {
	var frame gatewayFrame
	if err := conn.ReadJSON(&frame); err != nil {
		return gatewayFrame{}, err
	}
	return frame, nil
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
