// Package ground serves ground-support equipment over a websocket: it
// streams every routed packet as a JSON record and accepts injected
// command packets for the routing queue.
package ground

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"flightd/pkg/engine"
	"flightd/pkg/protocol"
)

type Server struct {
	cfg     Config
	hub     *engine.Hub
	inject  func(protocol.Packet)
	clients map[*client]struct{}
	mu      sync.RWMutex
	log     *log.Entry
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewServer builds the bridge. inject places a ground-injected packet
// onto the central routing queue; pass nil to disable injection.
func NewServer(cfg Config, hub *engine.Hub, inject func(protocol.Packet)) *Server {
	defaults := DefaultConfig()
	if cfg.WSAddr == "" {
		cfg.WSAddr = defaults.WSAddr
	}
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = defaults.SendBuf
	}
	return &Server{
		cfg:     cfg,
		hub:     hub,
		inject:  inject,
		clients: make(map[*client]struct{}),
		log:     log.WithField("source", "bridge"),
	}
}

func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)

	httpServer := &http.Server{
		Addr:    s.cfg.WSAddr,
		Handler: mux,
	}

	sub := s.hub.Subscribe()
	go s.broadcastLoop(ctx, sub)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, s.cfg.SendBuf),
	}
	s.addClient(c)

	hello := HelloMsg{
		Op:        OpHello,
		Name:      s.cfg.Name,
		SessionID: fmt.Sprintf("%d", time.Now().UTC().UnixNano()),
	}
	if err := conn.WriteJSON(hello); err != nil {
		c.close()
		s.removeClient(c)
		return
	}

	go c.writeLoop()
	s.readLoop(c)

	c.close()
	s.removeClient(c)
}

func (s *Server) readLoop(c *client) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var header struct {
			Op string `json:"op"`
		}
		if err := json.Unmarshal(data, &header); err != nil {
			continue
		}
		if header.Op != OpInject || s.inject == nil {
			continue
		}

		var msg InjectMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		raw, err := hex.DecodeString(msg.FrameHex)
		if err != nil {
			s.log.WithError(err).Debug("bad inject hex")
			continue
		}
		p, err := protocol.Decode(raw)
		if err != nil {
			s.log.WithError(err).Debug("bad inject packet")
			continue
		}
		s.inject(p)
	}
}

func (s *Server) broadcastLoop(ctx context.Context, sub <-chan engine.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			s.broadcast(ev)
		}
	}
}

func (s *Server) broadcast(ev engine.Event) {
	p := ev.Packet
	rec := RecordMsg{
		Op:         OpRecord,
		TS:         ev.At.UTC().Format(time.RFC3339Nano),
		Type:       p.Type.String(),
		Orig:       p.NodeOrig.String(),
		Dest:       p.NodeDest.String(),
		PayloadHex: hex.EncodeToString(p.Data),
	}
	if p.ChanOut != protocol.ChanNone {
		rec.ChanOut = p.ChanOut.String()
	}
	if p.Type == protocol.TypeBeacon {
		if data, err := protocol.ParseBeacon(p.Data); err == nil {
			rec.Data = data
		}
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}
	for _, c := range s.snapshotClients() {
		c.trySend(payload)
	}
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *Server) snapshotClients() []*client {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	return clients
}

func (c *client) writeLoop() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.close()
			return
		}
	}
}

func (c *client) trySend(msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}
