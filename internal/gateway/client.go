// Package gateway implements the duplex websocket channel to the remote
// conversational model.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voice_assistant_client/internal/config"
	"voice_assistant_client/pkg/utils"
)

// Client is the websocket client for one duplex session. A transport
// failure is terminal: the client never reconnects on its own.
type Client struct {
	cfg    *config.GatewayConfig
	logger zerolog.Logger

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	handler EventHandler
	setup   Setup

	closing atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewClient creates a gateway client.
func NewClient(cfg *config.GatewayConfig, logger zerolog.Logger) *Client {
	return &Client{cfg: cfg, logger: logger}
}

// Connect dials the gateway, sends the setup message, and starts the read
// and keepalive loops. Inbound events flow to handler until the channel
// closes or fails.
func (c *Client) Connect(ctx context.Context, setup Setup, handler EventHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("gateway already connected")
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
		conn.Close()
		return fmt.Errorf("set read deadline: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	loopCtx, cancel := context.WithCancel(context.Background())
	c.conn = conn
	c.handler = handler
	c.setup = setup
	c.cancel = cancel
	c.closing.Store(false)

	if err := c.writeJSON(conn, clientEnvelope{
		ID:     utils.NewRequestID(),
		Action: actionSetup,
		Data: setupPayload{
			SystemPrompt:     setup.SystemPrompt,
			Voice:            setup.Voice,
			InputSampleRate:  setup.InputSampleRate,
			OutputSampleRate: setup.OutputSampleRate,
		},
	}); err != nil {
		cancel()
		conn.Close()
		c.conn = nil
		return fmt.Errorf("send setup: %w", err)
	}

	c.wg.Add(2)
	go c.readLoop(conn)
	go c.pingLoop(loopCtx, conn)

	c.logger.Debug().Str("url", c.cfg.URL).Msg("gateway connected")
	return nil
}

// IsConnected reports whether the channel is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SendAudioFrame sends one captured frame as base64 PCM.
func (c *Client) SendAudioFrame(pcm []byte) error {
	c.mu.Lock()
	rate := c.setup.InputSampleRate
	c.mu.Unlock()

	return c.send(clientEnvelope{
		Action: actionAudioStream,
		Data: audioPayload{
			MimeType: fmt.Sprintf("audio/pcm;rate=%d", rate),
			Data:     base64.StdEncoding.EncodeToString(pcm),
		},
	})
}

// SendToolResponse sends the response for one tool call.
func (c *Client) SendToolResponse(resp ToolResponse) error {
	body := toolResponseBody{ID: resp.ID, Name: resp.Name}
	body.Response.Result = resp.Result
	return c.send(clientEnvelope{
		Action: actionToolResponse,
		Data:   toolResponsePayload{Responses: []toolResponseBody{body}},
	})
}

func (c *Client) send(msg clientEnvelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("gateway not connected")
	}
	return c.writeJSON(conn, msg)
}

func (c *Client) writeJSON(conn *websocket.Conn, msg clientEnvelope) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Close tears the channel down. Safe to call at any point, including when
// the connection was never established.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	c.conn = nil
	c.cancel = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.closing.Store(true)
	if cancel != nil {
		cancel()
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := conn.Close()
	c.wg.Wait()
	c.logger.Debug().Msg("gateway disconnected")
	return err
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closing.Load() {
				return
			}
			c.handler.HandleTransportError(err)
			return
		}
		if err := c.dispatch(message); err != nil {
			// Malformed messages are logged and skipped; they do not
			// tear the session down.
			c.logger.Warn().Err(err).Msg("skipping unreadable gateway message")
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(message []byte) error {
	var env serverEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return fmt.Errorf("parse envelope: %w", err)
	}

	switch env.Action {
	case actionSetupComplete:
		c.handler.HandleSetupComplete()

	case actionAudioStream:
		var payload serverAudioPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return fmt.Errorf("parse audio payload: %w", err)
		}
		pcm, err := base64.StdEncoding.DecodeString(payload.Data)
		if err != nil {
			return fmt.Errorf("decode audio payload: %w", err)
		}
		c.handler.HandleAudio(pcm)

	case actionToolCall:
		var payload serverToolCallPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return fmt.Errorf("parse tool call payload: %w", err)
		}
		c.handler.HandleToolCalls(payload.Calls)

	case actionInterrupted:
		c.handler.HandleInterrupted()

	case actionMetadata:
		var payload serverMetadataPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return fmt.Errorf("parse metadata payload: %w", err)
		}
		c.handler.HandleMetadata(payload.References)

	case actionTurnComplete:
		c.handler.HandleTurnComplete()

	case actionError:
		var payload serverErrorPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return fmt.Errorf("parse error payload: %w", err)
		}
		c.handler.HandleTransportError(fmt.Errorf("gateway error: %s", payload.Message))

	default:
		c.logger.Debug().Str("action", env.Action).Msg("ignoring unknown gateway action")
	}

	return nil
}
