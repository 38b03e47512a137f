// Who Plays First
//
// Everyone at the table puts one finger on the host's screen. Each finger gets
// a colored circle. Once the chosen number of fingers is down, the circles
// light up one at a time for a few seconds and then a single winner is left.
//
// Routes:
// - $path                  redirects to a new random game (8-char ID)
// - $path/:gameid          browser client
// - $path/:gameid/ws       websocket for that game
// - $path/:gameid/qr       PNG QR code for the game URL
// - $path/:gameid/state    current game state as JSON
//
// The first cookie to connect to a game is its host, the device lying on the
// table. Anyone else who opens the link is a spectator and only sees state
// updates. Games are reaped after the configured idle timeout.

package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/whoplaysfirst/games/firstplayer"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const (
	playerCookieName = "whoplaysfirst_id"

	gameIDLength  = 8
	gameIDLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 32
)

var errGameEnded = errors.New("game has ended")

// Messages coming from clients
type ClientMessage struct {
	Type    string  `json:"type"` // "touch", "reset", "player_count", "remove"
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Phase   string  `json:"phase,omitempty"`   // touch: "begin" or "move"
	Pointer int     `json:"pointer,omitempty"` // touch: client pointer that produced it
	Count   int     `json:"count,omitempty"`   // player_count
	SlotID  string  `json:"slot_id,omitempty"` // remove
}

// SessionInfoMessage is sent immediately on connect so the client knows
// whether it drives the game or only watches.
type SessionInfoMessage struct {
	Type   string `json:"type"` // "session_info"
	GameID string `json:"game_id"`
	IsHost bool   `json:"is_host"`
}

type StateMessage struct {
	Type  string           `json:"type"` // "state"
	State firstplayer.View `json:"state"`
}

// AcceptedMessage tells the host which slot a pointer created, so it can
// report that player lifting off during the selection.
type AcceptedMessage struct {
	Type    string `json:"type"` // "accepted"
	SlotID  string `json:"slot_id"`
	Pointer int    `json:"pointer"`
}

// RejectedMessage goes only to the client whose request was turned down.
type RejectedMessage struct {
	Type    string `json:"type"` // "rejected"
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// SimpleMessage is for generic notifications ("not_host", etc.)
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

type clientInput struct {
	client *Client
	msg    ClientMessage
}

// Hub owns one game. Every session call happens on the goroutine running
// run, including the highlight timer.
type Hub struct {
	id      string
	clock   clockwork.Clock
	log     zerolog.Logger
	session *firstplayer.Session
	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	inputs   chan clientInput
	views    chan chan firstplayer.View
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu         sync.RWMutex
	createdAt  time.Time
	lastActive time.Time

	hostPlayerID string
}

func newHub(gameID string, session *firstplayer.Session, clock clockwork.Clock, logger zerolog.Logger) *Hub {
	now := clock.Now()
	return &Hub{
		id:         gameID,
		clock:      clock,
		log:        logger,
		session:    session,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		inputs:     make(chan clientInput),
		views:      make(chan chan firstplayer.View),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}
}

func (h *Hub) run() {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-h.quit:
			return

		case c := <-h.register:
			h.touch()

			// First connection becomes host
			if h.hostPlayerID == "" {
				h.hostPlayerID = c.playerID
				h.log.Info().Str("player", c.playerID).Msg("host connected")
			}

			h.clients[c] = true

			h.sendTo(c, SessionInfoMessage{
				Type:   "session_info",
				GameID: h.id,
				IsHost: c.playerID == h.hostPlayerID,
			})
			h.sendTo(c, h.stateMessage())

		case c := <-h.unreg:
			h.touch()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case in := <-h.inputs:
			h.handleInput(in)

		case reply := <-h.views:
			reply <- h.session.View()

		case <-h.session.Wake():
			if err := h.session.Fire(); err != nil {
				h.log.Debug().Err(err).Msg("selection stopped")
			}
			h.broadcast(h.stateMessage())
		}
	}
}

func (h *Hub) handleInput(in clientInput) {
	c := in.client
	msg := in.msg

	h.touch()

	if c.playerID != h.hostPlayerID {
		h.sendTo(c, SimpleMessage{
			Type:    "not_host",
			Message: "Only the device that started this game can pick a player.",
		})
		return
	}

	switch msg.Type {
	case "touch":
		var phase firstplayer.TouchPhase
		switch msg.Phase {
		case "begin":
			phase = firstplayer.TouchBegin
		case "move":
			phase = firstplayer.TouchMove
		default:
			h.sendTo(c, RejectedMessage{
				Type:    "rejected",
				Reason:  "phase",
				Message: "Unknown touch phase.",
			})
			return
		}

		d, err := h.session.Touch(firstplayer.Touch{
			Point: firstplayer.Point{X: msg.X, Y: msg.Y},
			Phase: phase,
		})
		if err != nil && !errors.Is(err, firstplayer.ErrPaletteExhausted) {
			h.log.Error().Err(err).Msg("touch failed")
		}

		if !d.Accepted() {
			if d.Verdict != firstplayer.RejectMoved {
				h.sendTo(c, RejectedMessage{
					Type:    "rejected",
					Reason:  d.Verdict.String(),
					Message: rejectionText(d.Verdict),
				})
			}
			return
		}

		h.sendTo(c, AcceptedMessage{
			Type:    "accepted",
			SlotID:  d.SlotID,
			Pointer: msg.Pointer,
		})

	case "reset":
		h.session.Reset()

	case "player_count":
		if err := h.session.SetPlayerCount(msg.Count); err != nil {
			h.sendTo(c, RejectedMessage{
				Type:    "rejected",
				Reason:  "player_count",
				Message: err.Error(),
			})
			return
		}

	case "remove":
		err := h.session.RemoveSlot(msg.SlotID)
		if err != nil && !errors.Is(err, firstplayer.ErrSelectionDisrupted) {
			h.sendTo(c, RejectedMessage{
				Type:    "rejected",
				Reason:  "remove",
				Message: err.Error(),
			})
			return
		}

	default:
		return
	}

	h.broadcast(h.stateMessage())
}

func rejectionText(v firstplayer.Verdict) string {
	switch v {
	case firstplayer.RejectFull:
		return "Everyone is already in."
	case firstplayer.RejectTooClose:
		return "Too close to another player."
	case firstplayer.RejectBusy:
		return "A player is being picked. Reset to start again."
	case firstplayer.RejectExhausted:
		return "No colors left."
	default:
		return "Touch ignored."
	}
}

func (h *Hub) stateMessage() StateMessage {
	return StateMessage{
		Type:  "state",
		State: h.session.View(),
	}
}

// sendTo never blocks; a client that cannot keep up is dropped.
func (h *Hub) sendTo(c *Client, msg any) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(msg any) {
	for client := range h.clients {
		h.sendTo(client, msg)
	}
}

func (h *Hub) closeAll() {
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = h.clock.Now()
	h.mu.Unlock()
}

func (h *Hub) LastActive() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive
}

// join hands c to the hub. It reports false once the game has ended.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unreg <- c:
	case <-h.done:
	}
}

func (h *Hub) submit(c *Client, msg ClientMessage) bool {
	select {
	case h.inputs <- clientInput{client: c, msg: msg}:
		return true
	case <-h.done:
		return false
	}
}

// View asks the hub goroutine for the current state.
func (h *Hub) View(ctx context.Context) (firstplayer.View, error) {
	reply := make(chan firstplayer.View, 1)

	select {
	case h.views <- reply:
	case <-h.done:
		return firstplayer.View{}, errGameEnded
	case <-ctx.Done():
		return firstplayer.View{}, ctx.Err()
	}

	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return firstplayer.View{}, ctx.Err()
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
}

func newUpgrader(cfg *Config) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			u, err := url.Parse(origin)
			if err == nil && strings.EqualFold(u.Host, r.Host) {
				return true
			}

			for _, allowed := range cfg.corsOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}

			return false
		},
	}
}

// playerCookie returns the caller's player ID, minting a new cookie when the
// request did not carry one.
func playerCookie(cfg *Config, r *http.Request) (string, *http.Cookie) {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	id := uuid.NewString()

	return id, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     cfg.prefix + "/",
		HttpOnly: true,
		Secure:   cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	}
}

func validGameID(id string) bool {
	if len(id) != gameIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if !strings.ContainsRune(gameIDLetters, rune(id[i])) {
			return false
		}
	}
	return true
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated table.
type GameManager struct {
	cfg   *Config
	clock clockwork.Clock

	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
}

// newGameManager stops every game once ctx is done.
func newGameManager(ctx context.Context, cfg *Config, clock clockwork.Clock) *GameManager {
	gm := &GameManager{
		cfg:         cfg,
		clock:       clock,
		hubs:        make(map[string]*Hub),
		idleTimeout: cfg.sessionTimeout,
	}

	if gm.idleTimeout > 0 {
		go gm.reaperLoop(ctx)
	}

	go func() {
		<-ctx.Done()
		gm.stopAll()
	}()

	return gm
}

func (gm *GameManager) getHub(gameID string) (*Hub, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub, nil
	}

	logger := log.Logger.With().Str("game", gameID).Logger()

	session, err := firstplayer.NewSession(gm.cfg.game(), gm.clock, nil, logger)
	if err != nil {
		return nil, err
	}

	hub := newHub(gameID, session, gm.clock, logger)
	gm.hubs[gameID] = hub
	go hub.run()

	logger.Info().Int("players", gm.cfg.players).Msg("game started")

	return hub, nil
}

func (gm *GameManager) lookup(gameID string) (*Hub, bool) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	hub, ok := gm.hubs[gameID]
	return hub, ok
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	// Largest multiple of len(gameIDLetters) below 256, so every letter is
	// equally likely.
	const limit = 256 - 256%len(gameIDLetters)

	for {
		out := make([]byte, 0, gameIDLength)
		var buf [gameIDLength * 2]byte

		for len(out) < gameIDLength {
			if _, err := rand.Read(buf[:]); err != nil {
				panic("crypto/rand failure: " + err.Error())
			}
			for _, b := range buf {
				if int(b) >= limit || len(out) == gameIDLength {
					continue
				}
				out = append(out, gameIDLetters[int(b)%len(gameIDLetters)])
			}
		}
		id := string(out)

		if _, exists := gm.lookup(id); !exists {
			return id
		}
	}
}

func (gm *GameManager) reaperLoop(ctx context.Context) {
	ticker := gm.clock.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			gm.reap()
		}
	}
}

// reap ends games idle for longer than idleTimeout and reports how many.
func (gm *GameManager) reap() int {
	cutoff := gm.clock.Now().Add(-gm.idleTimeout)

	gm.mu.Lock()
	defer gm.mu.Unlock()

	reaped := 0
	for id, hub := range gm.hubs {
		if hub.LastActive().Before(cutoff) {
			delete(gm.hubs, id)
			hub.stop()
			reaped++

			hub.log.Info().Msg("game ended after idle timeout")
		}
	}

	return reaped
}

func (gm *GameManager) stopAll() {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		delete(gm.hubs, id)
		hub.stop()
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWS(cfg *Config, gm *GameManager) httprouter.Handle {
	upgrader := newUpgrader(cfg)

	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if !validGameID(gameID) {
			http.NotFound(w, r)
			return
		}

		hub, err := gm.getHub(gameID)
		if err != nil {
			log.Error().Err(err).Str("game", gameID).Msg("failed to create game")
			http.Error(w, "unable to create game", http.StatusInternalServerError)
			return
		}

		playerID, cookie := playerCookie(cfg, r)

		header := http.Header{}
		if cookie != nil {
			header.Add("Set-Cookie", cookie.String())
		}

		conn, err := upgrader.Upgrade(w, r, header)
		if err != nil {
			log.Debug().Err(err).Str("ip", realIP(r)).Msg("websocket upgrade failed")
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, sendBuffer),
			playerID: playerID,
		}

		if !hub.join(client) {
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.leave(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("websocket closed")
			}
			return
		}

		if !h.submit(c, msg) {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !validGameID(ps.ByName("gameid")) {
			http.NotFound(w, r)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		gameURL := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

		const qrSize = 320
		png, err := qrcode.Encode(gameURL, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		_, _ = w.Write(png)
	}
}

var pickerPage = template.Must(template.ParseFS(assets, "assets/picker/index.html"))

type pickerPageData struct {
	Prefix  string
	Path    string
	GameID  string
	Favicon template.HTML
}

func serveGame(cfg *Config, path string, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if !validGameID(gameID) {
			http.NotFound(w, r)
			return
		}

		if _, cookie := playerCookie(cfg, r); cookie != nil {
			http.SetCookie(w, cookie)
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		err := pickerPage.Execute(w, pickerPageData{
			Prefix:  cfg.prefix,
			Path:    cfg.prefix + path,
			GameID:  gameID,
			Favicon: template.HTML(getFavicon(cfg.prefix)),
		})
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveState(cfg *Config, gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		hub, ok := gm.lookup(ps.ByName("gameid"))
		if !ok {
			http.NotFound(w, r)
			return
		}

		view, err := hub.View(r.Context())
		if err != nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		if err := json.NewEncoder(w).Encode(view); err != nil {
			errs <- err

			return
		}
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()

		log.Info().Str("game", gameID).Str("ip", realIP(r)).Msg("created game")

		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

func registerPickerGame(ctx context.Context, cfg *Config, path string, mux *httprouter.Router, clock clockwork.Clock, errs chan<- error) *GameManager {
	gm := newGameManager(ctx, cfg, clock)

	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))
	mux.GET(cfg.prefix+path+"/:gameid", serveGame(cfg, path, errs))
	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWS(cfg, gm))
	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler(cfg))
	mux.GET(cfg.prefix+path+"/:gameid/state", serveState(cfg, gm, errs))

	return gm
}
