package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/visionassist/server/domain/entities"
	"github.com/visionassist/server/domain/repositories"
	"github.com/visionassist/server/internal/observability"
	"github.com/visionassist/server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Recordings arrive base64
	// encoded in one frame.
	maxMessageSize = 8 * 1024 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Devices authenticate with a JWT before upgrading.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SessionDeps are the shared services a new device session's orchestrator
// is wired with. Vision and Relay may be nil when unconfigured.
type SessionDeps struct {
	Vision  repositories.VisionModel
	Relay   repositories.TranscriptionRelay
	Config  usecase.Config
	Metrics *observability.GatewayMetrics
}

// Hub maintains the set of connected device sessions.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	deps   SessionDeps
	logger *zap.Logger
}

// NewHub creates a hub.
func NewHub(deps SessionDeps, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deps:       deps,
		logger:     logger,
	}
}

// Run processes registration until the process exits. A reconnecting device
// replaces its previous session.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.deviceID]; ok {
				old.shutdown()
			}
			h.clients[client.deviceID] = client
			h.mu.Unlock()
			if h.deps.Metrics != nil {
				h.deps.Metrics.ActiveSessions.Inc()
			}
			h.logger.Info("Device session registered", zap.String("deviceID", client.deviceID))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.deviceID]; ok && current == client {
				delete(h.clients, client.deviceID)
			}
			h.mu.Unlock()
			client.shutdown()
			if h.deps.Metrics != nil {
				h.deps.Metrics.ActiveSessions.Dec()
			}
			h.logger.Info("Device session unregistered", zap.String("deviceID", client.deviceID))
		}
	}
}

// Client is one connected device session: the websocket connection, its
// capability bridge, and the orchestrator driving it.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	deviceID string
	logger   *zap.Logger

	bridge     *Bridge
	classifier *usecase.Classifier

	mu           sync.Mutex
	orchestrator *usecase.Orchestrator
	cancel       context.CancelFunc
	closed       bool
}

// HandleConnection upgrades an authenticated request and starts the session
// pumps. The orchestrator is created once the device's hello arrives with
// its capability set.
func HandleConnection(hub *Hub, c echo.Context, deviceID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		deviceID: deviceID,
		logger:   logger.With(zap.String("deviceID", deviceID)),
	}
	client.bridge = NewBridge(client.enqueue, client.logger)

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return nil
}

// enqueue is the bridge's outbound path. It never blocks the caller; a
// stalled connection drops the frame and the read pump will notice the dead
// peer soon after. The check and send hold the mutex together so a frame
// can never race shutdown's close of the channel.
func (c *Client) enqueue(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errSessionClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn("Send buffer full, dropping frame")
		return errSendBufferFull
	}
}

var (
	errSessionClosed  = &sessionError{"session closed"}
	errSendBufferFull = &sessionError{"send buffer full"}
)

type sessionError struct{ msg string }

func (e *sessionError) Error() string { return e.msg }

// shutdown tears the session down exactly once. The send channel is closed
// under the same mutex enqueue holds, so no frame is ever written to it
// afterwards.
func (c *Client) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.cancel
	classifier := c.classifier
	close(c.send)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if classifier != nil {
		classifier.Close()
	}
	c.bridge.Close()
}

// readPump pumps protocol messages from the device.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}
		c.processMessage(message)
	}
}

// writePump pumps outbound frames to the device.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Error("Failed to write frame", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage demultiplexes one inbound frame.
func (c *Client) processMessage(message []byte) {
	env, err := ParseEnvelope(message)
	if err != nil {
		c.logger.Warn("Dropping malformed message", zap.Error(err))
		return
	}

	if env.Type == MessageTypeHello {
		c.handleHello(env)
		return
	}

	c.mu.Lock()
	ready := c.orchestrator != nil
	c.mu.Unlock()
	if !ready {
		c.logger.Warn("Message before hello handshake, dropping",
			zap.String("type", string(env.Type)))
		return
	}

	switch env.Type {
	case MessageTypeTouch:
		var p TouchPayload
		if err := env.DecodePayload(&p); err != nil {
			c.logger.Warn("Bad touch payload", zap.Error(err))
			return
		}
		if m := c.hub.deps.Metrics; m != nil {
			m.Gestures.WithLabelValues(p.Kind).Inc()
		}
		c.classifier.Handle(entities.TouchEvent{
			Surface: entities.Surface(p.Surface),
			Kind:    entities.TouchKind(p.Kind),
			At:      time.Now(),
		})

	case MessageTypeCaptureResult:
		var p CaptureResultPayload
		if err := env.DecodePayload(&p); err != nil {
			c.logger.Warn("Bad capture result", zap.Error(err))
			return
		}
		c.bridge.deliverCaptureResult(p)

	case MessageTypeSpeechEvent:
		var p SpeechEventPayload
		if err := env.DecodePayload(&p); err != nil {
			c.logger.Warn("Bad speech event", zap.Error(err))
			return
		}
		c.bridge.deliverSpeechEvent(p)

	case MessageTypeRecognitionResult:
		var p RecognitionResultPayload
		if err := env.DecodePayload(&p); err != nil {
			c.logger.Warn("Bad recognition result", zap.Error(err))
			return
		}
		c.bridge.deliverRecognitionResult(p)

	case MessageTypeRecognitionError:
		var p RecognitionErrorPayload
		if err := env.DecodePayload(&p); err != nil {
			c.logger.Warn("Bad recognition error", zap.Error(err))
			return
		}
		c.bridge.deliverRecognitionError(p)

	case MessageTypeRecordingResult:
		var p RecordingResultPayload
		if err := env.DecodePayload(&p); err != nil {
			c.logger.Warn("Bad recording result", zap.Error(err))
			return
		}
		c.bridge.deliverRecordingResult(p)

	default:
		c.logger.Warn("Unknown message type", zap.String("type", string(env.Type)))
	}
}

// handleHello finishes session setup: capabilities are cached, the
// orchestrator is built and its event loop started, and the usage
// instructions are announced.
func (c *Client) handleHello(env Envelope) {
	var hello HelloPayload
	if err := env.DecodePayload(&hello); err != nil {
		c.logger.Warn("Bad hello payload", zap.Error(err))
		return
	}

	c.mu.Lock()
	if c.orchestrator != nil {
		c.mu.Unlock()
		c.logger.Warn("Duplicate hello, ignoring")
		return
	}

	c.bridge.SetCapabilities(hello)

	orch := usecase.New(usecase.Deps{
		Capture:    c.bridge,
		Vision:     c.hub.deps.Vision,
		Speech:     c.bridge.Speech(),
		Recognizer: c.bridge.Recognizer(),
		Recorder:   c.bridge.Recorder(),
		Relay:      c.hub.deps.Relay,
		Presenter:  c.bridge,
	}, c.hub.deps.Config, c.logger)

	ctx, cancel := context.WithCancel(context.Background())
	c.orchestrator = orch
	c.cancel = cancel
	c.classifier = usecase.NewClassifier(usecase.ClassifierConfig{}, func(g entities.Gesture) {
		if m := c.hub.deps.Metrics; m != nil {
			m.Intents.WithLabelValues(string(g.Type)).Inc()
		}
		orch.HandleGesture(g)
	}, c.logger)
	c.mu.Unlock()

	go orch.Run(ctx)
	orch.AnnounceUsage()

	c.logger.Info("Device session ready",
		zap.Bool("liveRecognition", hello.Capabilities.LiveRecognition),
		zap.String("appVersion", hello.AppVersion))
}
