// Package server exposes live runner progress over a websocket and the
// prometheus metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/pkg/logger"
	"github.com/xhad/narrator/pkg/metrics"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local tool, no browser sessions to protect
	},
}

// Message is the envelope of everything sent over the socket. Clients send
// {"type": "run", "content": "<pass>"} to start a pass.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

const (
	TypeRun    = "run"
	TypeStatus = "status"
	TypeEvent  = "event"
	TypeError  = "error"
)

// Pass runs one pass of a runner; events go to the sink it was built with.
type Pass func(ctx context.Context) error

type Config struct {
	Addr string
	// Passes are the runs clients may trigger, by name.
	Passes map[string]Pass
}

type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

type WSServer struct {
	config  Config
	log     logger.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
	running map[string]bool

	ctx context.Context
	wg  sync.WaitGroup
}

func NewWSServer(config Config, m *metrics.Metrics, log logger.Logger) *WSServer {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &WSServer{
		config:  config,
		log:     log,
		metrics: m,
		clients: make(map[*client]struct{}),
		running: make(map[string]bool),
		ctx:     context.Background(),
	}
}

// Publish broadcasts a runner event to every connected client.
func (s *WSServer) Publish(evt models.Event) {
	s.broadcast(Message{Type: TypeEvent, Content: string(evt.Kind), Data: evt})
}

func (s *WSServer) broadcast(msg Message) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.send(msg); err != nil {
			s.log.Debug("dropping client", logger.Error(err))
			s.remove(c)
		}
	}
}

func (s *WSServer) remove(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.conn.Close()
}

// Handler routes /ws, /health and /metrics.
func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logger.Error(err))
		return
	}
	c := &client{conn: conn}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	defer s.remove(c)

	c.send(Message{Type: TypeStatus, Content: "connected", Data: s.passNames()})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read failed", logger.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(Message{Type: TypeError, Content: fmt.Sprintf("invalid message: %v", err)})
			continue
		}
		s.handleMessage(c, msg)
	}
}

func (s *WSServer) handleMessage(c *client, msg Message) {
	if msg.Type != TypeRun {
		c.send(Message{Type: TypeError, Content: fmt.Sprintf("unknown message type %q", msg.Type)})
		return
	}
	if err := s.start(msg.Content); err != nil {
		c.send(Message{Type: TypeError, Content: err.Error()})
		return
	}
	s.broadcast(Message{Type: TypeStatus, Content: "started " + msg.Content})
}

// start launches a pass unless it is already running.
func (s *WSServer) start(name string) error {
	pass, ok := s.config.Passes[name]
	if !ok {
		return fmt.Errorf("unknown pass %q", name)
	}

	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		return fmt.Errorf("%s is already running", name)
	}
	s.running[name] = true
	ctx := s.ctx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := pass(ctx)

		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()

		if err != nil {
			s.log.Error("pass failed", logger.String("pass", name), logger.Error(err))
			s.broadcast(Message{Type: TypeError, Content: fmt.Sprintf("%s failed: %v", name, err)})
			return
		}
		s.broadcast(Message{Type: TypeStatus, Content: "finished " + name})
	}()
	return nil
}

func (s *WSServer) passNames() []string {
	names := make([]string, 0, len(s.config.Passes))
	for name := range s.config.Passes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListenAndServe serves until ctx is done, then waits for running passes.
func (s *WSServer) ListenAndServe(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("starting server", logger.String("addr", s.config.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdown)

	s.mu.Lock()
	for c := range s.clients {
		c.conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
