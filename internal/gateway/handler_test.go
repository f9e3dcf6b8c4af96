package gateway

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"realm-server/internal/auth"
	"realm-server/internal/character"
	"realm-server/internal/event"
	"realm-server/internal/gamedata"
	"realm-server/internal/middleware"
	"realm-server/internal/savequeue"
	"realm-server/internal/shared/errors"
	"realm-server/internal/zone"

	"github.com/gorilla/websocket"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// memStore keeps players and characters in memory.
type memStore struct {
	mu         sync.Mutex
	players    map[string]*character.Player
	characters map[int64]*character.Character
	saves      int
	next       int64
}

func newMemStore() *memStore {
	return &memStore{
		players:    make(map[string]*character.Player),
		characters: make(map[int64]*character.Character),
	}
}

func (m *memStore) FindOrCreatePlayer(_ context.Context, username string) (*character.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[username]
	if !ok {
		m.next++
		p = &character.Player{ID: m.next, Username: username}
		m.players[username] = p
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) LoadCharacter(_ context.Context, playerID int64) (*character.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.characters {
		if c.PlayerID == playerID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateCharacter(_ context.Context, nc character.NewCharacter) (*character.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	c := &character.Character{
		ID: m.next, PlayerID: nc.PlayerID, Name: nc.Name, Class: nc.Class, Level: 1,
		Strength: nc.Strength, Dexterity: nc.Dexterity, Intellect: nc.Intellect, Vitality: nc.Vitality,
		HP: nc.HP, MP: nc.MP, ZoneID: nc.ZoneID, X: nc.X, Y: nc.Y, Z: nc.Z,
	}
	m.characters[c.ID] = c
	cp := *c
	return &cp, nil
}

func (m *memStore) SaveCharacter(_ context.Context, id int64, upd character.CharacterUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if upd.X != nil {
		m.characters[id].X = *upd.X
	}
	m.saves++
	return nil
}

func (m *memStore) SaveCharactersBatch(_ context.Context, _ []character.BatchEntry) error {
	return nil
}

func (m *memStore) ban(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[username] = &character.Player{ID: 999, Username: username, Banned: true}
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type harness struct {
	store   *memStore
	tokens  *auth.Tokens
	handler *Handler
	server  *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newMemStore()
	def := zone.Definition{ID: "test", Name: "Test", DefaultClass: "warrior", Spawn: []float64{0, 0, 0}}
	manager := zone.NewManager([]zone.Definition{def}, zone.Config{TickRate: 50, Seed: 1}, gamedata.Default(), store, savequeue.New(nil, "test:saves"))

	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)

	tokens, err := auth.NewTokens(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("expected tokens, got %v", err)
	}
	handler := NewHandler(manager, Config{})

	mux := http.NewServeMux()
	mux.Handle("/ws", middleware.JWTMiddleware(tokens)(handler))
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 3*time.Second)
		defer done()
		manager.Shutdown(shutdownCtx)
		handler.Close(shutdownCtx)
		srv.Close()
		cancel()
		manager.Wait()
	})
	return &harness{store: store, tokens: tokens, handler: handler, server: srv}
}

func (h *harness) dial(t *testing.T, username, query string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	header := http.Header{}
	if username != "" {
		token, err := h.tokens.Generate(username)
		if err != nil {
			t.Fatalf("expected token, got %v", err)
		}
		header.Set("Authorization", "Bearer "+token)
	}
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws" + query
	return websocket.DefaultDialer.Dial(url, header)
}

func (h *harness) mustDial(t *testing.T, username string) *websocket.Conn {
	t.Helper()
	conn, resp, err := h.dial(t, username, "")
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type rawEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (rawEnvelope, error) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env rawEnvelope
	err := conn.ReadJSON(&env)
	return env, err
}

func mustWelcome(t *testing.T, conn *websocket.Conn) welcome {
	t.Helper()
	env, err := readEnvelope(t, conn)
	if err != nil {
		t.Fatalf("failed to read welcome: %v", err)
	}
	if env.Type != "welcome" {
		t.Fatalf("expected welcome first, got %q", env.Type)
	}
	var w welcome
	if err := json.Unmarshal(env.Payload, &w); err != nil {
		t.Fatalf("failed to decode welcome: %v", err)
	}
	return w
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	for {
		_, err := readEnvelope(t, conn)
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		if !stderrors.As(err, &closeErr) {
			t.Fatalf("expected close %d, got %v", code, err)
		}
		if closeErr.Code != code {
			t.Fatalf("expected close code %d, got %d (%s)", code, closeErr.Code, closeErr.Text)
		}
		return
	}
}

func TestRejectsUnauthenticatedUpgrade(t *testing.T) {
	h := newHarness(t)
	_, resp, err := h.dial(t, "", "")
	if err == nil {
		t.Fatalf("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
	resp.Body.Close()
}

func TestRejectsUnknownZone(t *testing.T) {
	h := newHarness(t)
	_, resp, err := h.dial(t, "alice", "?zone=atlantis")
	if err == nil {
		t.Fatalf("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", resp)
	}
	resp.Body.Close()
}

func TestJoinMoveAndLeave(t *testing.T) {
	h := newHarness(t)
	conn := h.mustDial(t, "alice")

	w := mustWelcome(t, conn)
	if w.Name != "alice" || w.Zone != "test" || !w.Created || w.Entity == 0 {
		t.Fatalf("unexpected welcome %+v", w)
	}

	if err := conn.WriteJSON(zone.Input{Kind: zone.InputMove, Move: [3]float64{1, 0, 0}}); err != nil {
		t.Fatalf("failed to send input: %v", err)
	}

	moved := false
	for !moved {
		env, err := readEnvelope(t, conn)
		if err != nil {
			t.Fatalf("failed to read frame: %v", err)
		}
		if env.Type != "frame" {
			t.Fatalf("expected frame, got %q", env.Type)
		}
		var frame event.Frame
		if err := json.Unmarshal(env.Payload, &frame); err != nil {
			t.Fatalf("failed to decode frame: %v", err)
		}
		if frame.You != w.Entity {
			t.Fatalf("expected frame addressed to entity %d, got %d", w.Entity, frame.You)
		}
		for _, e := range frame.Entities {
			if e.ID == w.Entity && e.X > 0 {
				moved = true
			}
		}
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	deadline := time.Now().Add(3 * time.Second)
	for h.store.saveCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected character to be saved after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDuplicateJoinClosedWithConflict(t *testing.T) {
	h := newHarness(t)
	first := h.mustDial(t, "alice")
	mustWelcome(t, first)

	second := h.mustDial(t, "alice")
	expectClose(t, second, CloseConflict)
}

func TestBannedPlayerClosedWithForbidden(t *testing.T) {
	h := newHarness(t)
	h.store.ban("mallory")

	conn := h.mustDial(t, "mallory")
	expectClose(t, conn, CloseForbidden)
}

func TestCloseSendsGoingAway(t *testing.T) {
	h := newHarness(t)
	conn := h.mustDial(t, "alice")
	mustWelcome(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.handler.Close(ctx); err != nil {
		t.Fatalf("expected handler to close, got %v", err)
	}
	expectClose(t, conn, websocket.CloseGoingAway)
	if got := h.handler.Connections(); got != 0 {
		t.Fatalf("expected no open connections, got %d", got)
	}

	late := h.mustDial(t, "bob")
	expectClose(t, late, websocket.CloseGoingAway)
}

func TestCheckOrigin(t *testing.T) {
	h := NewHandler(nil, Config{AllowedOrigin: "https://play.example.com"})
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://play.example.com", true},
		{"http://play.example.com", false},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := h.checkOrigin(r); got != tt.want {
			t.Fatalf("expected %v for origin %q, got %v", tt.want, tt.origin, got)
		}
	}
}

func TestCloseFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"conflict", errors.WrapConflict("already playing", zone.ErrAlreadyInZone), CloseConflict},
		{"forbidden", errors.WrapForbidden("player is banned", character.ErrPlayerBanned), CloseForbidden},
		{"validation", errors.Validation("bad username"), CloseBadRequest},
		{"zone closed", zone.ErrZoneClosed, websocket.CloseGoingAway},
		{"external", errors.External("database down"), websocket.CloseTryAgainLater},
		{"plain", stderrors.New("boom"), websocket.CloseInternalServerErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, text := closeFor(tt.err)
			if code != tt.code {
				t.Fatalf("expected code %d, got %d", tt.code, code)
			}
			if len(text) > maxCloseText {
				t.Fatalf("expected reason to fit a close frame, got %d bytes", len(text))
			}
		})
	}
}

func TestCloseReasonKeepsRunesWhole(t *testing.T) {
	msg := strings.Repeat("a", maxCloseText-1) + "é"
	_, text := closeFor(errors.WrapConflict(msg, zone.ErrAlreadyInZone))
	if !utf8.ValidString(text) {
		t.Fatalf("expected valid UTF-8 reason, got %q", text)
	}
	if len(text) != maxCloseText-1 {
		t.Fatalf("expected %d bytes, got %d", maxCloseText-1, len(text))
	}
	if got := truncateReason("short"); got != "short" {
		t.Fatalf("expected short reason untouched, got %q", got)
	}
}

func TestSendDropsWhenBufferFull(t *testing.T) {
	c := newConn(nil, 1)
	if !c.Send(&event.Frame{Tick: 1}) {
		t.Fatalf("expected first frame to be buffered")
	}
	if c.Send(&event.Frame{Tick: 2}) {
		t.Fatalf("expected second frame to be dropped")
	}
	<-c.frames
	c.close(websocket.CloseNormalClosure, "")
	if c.Send(&event.Frame{Tick: 3}) {
		t.Fatalf("expected send after close to fail")
	}
}
