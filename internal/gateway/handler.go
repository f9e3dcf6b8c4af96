// Package gateway carries players between websocket connections and zones.
// It authenticates the upgrade, joins the zone, forwards JSON inputs, and
// streams tick frames back.
package gateway

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"math/bits"
	"net/http"
	"net/url"
	"sync"
	"time"

	"realm-server/internal/middleware"
	"realm-server/internal/shared/errors"
	"realm-server/internal/shared/response"
	"realm-server/internal/zone"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Zones resolves the zone a connection asks for. *zone.Manager satisfies it.
type Zones interface {
	Zone(id string) (*zone.Zone, error)
}

type Config struct {
	// AllowedOrigin is the only browser origin allowed to upgrade. Empty
	// allows every origin.
	AllowedOrigin    string
	RateLimitEnabled bool
	InputsPerSecond  float64
	InputBurst       int
	JoinTimeout      time.Duration
	SendBuffer       int
}

func (c Config) withDefaults() Config {
	if c.InputsPerSecond <= 0 {
		c.InputsPerSecond = 60
	}
	if c.InputBurst <= 0 {
		c.InputBurst = 30
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = 10 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	return c
}

type Handler struct {
	zones    Zones
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	conns   map[*conn]struct{}
	closing bool
	wg      sync.WaitGroup
}

func NewHandler(zones Zones, cfg Config) *Handler {
	cfg = cfg.withDefaults()
	h := &Handler{
		zones:  zones,
		cfg:    cfg,
		logger: slog.With("component", "gateway"),
		conns:  make(map[*conn]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if h.cfg.AllowedOrigin == "" || origin == "" {
		return true
	}
	want, err := url.Parse(h.cfg.AllowedOrigin)
	if err != nil {
		return false
	}
	got, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return got.Scheme == want.Scheme && got.Host == want.Host
}

// ServeHTTP expects to run behind middleware.JWTMiddleware.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	zoneID := r.URL.Query().Get("zone")
	logger := h.logger.With("operation", "connect", "remote_addr", r.RemoteAddr, "zone", zoneID)

	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}
	logger = logger.With("username", claims.Username)

	z, err := h.zones.Zone(zoneID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		logger.Debug("Websocket upgrade failed", "error", err)
		return
	}

	c := newConn(ws, h.cfg.SendBuffer)
	if !h.track(c) {
		reject(ws, websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer h.untrack(c)

	h.serve(c, z, claims.Username, logger)
}

func (h *Handler) serve(c *conn, z *zone.Zone, username string, logger *slog.Logger) {
	id := uuid.New()
	logger = logger.With("session", id)

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.JoinTimeout)
	res, err := z.Join(ctx, id, username, c)
	cancel()
	if err != nil {
		logger.Info("Join refused", "error", err)
		code, text := closeFor(err)
		reject(c.ws, code, text)
		return
	}

	// The welcome goes out before the writer starts so it is always the
	// first message on the wire.
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(envelope{Type: "welcome", Payload: welcome{
		Zone:        z.ID(),
		Session:     id.String(),
		Entity:      res.Entity,
		CharacterID: res.CharacterID,
		Name:        res.Name,
		Class:       res.Class,
		Created:     res.Created,
	}}); err != nil {
		logger.Debug("Failed to send welcome", "error", err)
		h.leave(z, id, logger)
		c.ws.Close()
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()

	h.readPump(c, z, id, logger)
	h.leave(z, id, logger)
	c.close(websocket.CloseNormalClosure, "")
	<-done
	logger.Info("Connection closed")
}

func (h *Handler) readPump(c *conn, z *zone.Zone, id uuid.UUID, logger *slog.Logger) {
	ws := c.ws
	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	var limiter *rate.Limiter
	if h.cfg.RateLimitEnabled {
		limiter = rate.NewLimiter(rate.Limit(h.cfg.InputsPerSecond), h.cfg.InputBurst)
	}
	var throttled uint64

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Websocket read failed", "error", err)
			}
			return
		}

		if limiter != nil && !limiter.Allow() {
			throttled++
			if bits.OnesCount64(throttled) == 1 {
				logger.Warn("Input rate limit exceeded", "throttled", throttled)
			}
			continue
		}

		var in zone.Input
		if err := json.Unmarshal(payload, &in); err != nil {
			logger.Debug("Discarding malformed input", "error", err)
			continue
		}

		if err := z.Submit(id, in); err != nil {
			if stderrors.Is(err, zone.ErrInputDropped) {
				continue
			}
			// The zone let go of the session, usually during shutdown.
			logger.Debug("Input refused, closing", "error", err)
			code, text := closeFor(err)
			c.close(code, text)
			return
		}
	}
}

func (h *Handler) leave(z *zone.Zone, id uuid.UUID, logger *slog.Logger) {
	if err := z.Leave(id); err != nil && !stderrors.Is(err, zone.ErrNotActive) && !stderrors.Is(err, zone.ErrSessionNotFound) {
		logger.Error("Failed to leave zone", "error", err)
	}
}

func (h *Handler) track(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.conns[c] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Handler) untrack(c *conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	h.wg.Done()
}

// Connections reports how many websockets are open.
func (h *Handler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close refuses new connections, tells every open one the server is going
// away, and waits for their handlers to return or ctx to end. Zones should
// be shut down first so sessions are already saved.
func (h *Handler) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	for c := range h.conns {
		c.close(websocket.CloseGoingAway, "server shutting down")
		// Unblock a reader waiting on a silent client.
		c.ws.SetReadDeadline(time.Now())
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
