package signaling

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// peerConn is one registered client of the relay.
type peerConn struct {
	id         string
	clientType string

	mu   sync.Mutex
	conn *websocket.Conn
	// viewers tracks, for a host, the viewers that sent it an offer.
	viewers map[string]bool
}

func (p *peerConn) send(msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return p.conn.WriteJSON(msg)
}

// Server relays signaling messages between registered clients. It
// implements http.Handler; mount it on the WebSocket endpoint.
type Server struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu      sync.Mutex
	clients map[string]*peerConn
	conns   map[*websocket.Conn]bool
	closed  bool
	wg      sync.WaitGroup
}

var _ http.Handler = (*Server)(nil)

// NewServer creates a relay. Any origin is accepted.
func NewServer(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:     log.With(zap.String("component", "relay")),
		clients: make(map[string]*peerConn),
		conns:   make(map[*websocket.Conn]bool),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[conn] = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()
	s.serve(conn)
}

// Close disconnects every client and waits for their handlers to return.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Hosts returns the registered hosts sorted by ID.
func (s *Server) Hosts() []HostInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostsLocked()
}

func (s *Server) hostsLocked() []HostInfo {
	var hosts []HostInfo
	for id, c := range s.clients {
		if c.clientType == ClientTypeHost {
			hosts = append(hosts, HostInfo{ID: id, Online: true})
		}
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].ID < hosts[j].ID })
	return hosts
}

func (s *Server) serve(conn *websocket.Conn) {
	var first Message
	if err := conn.ReadJSON(&first); err != nil {
		return
	}
	self := &peerConn{conn: conn, viewers: make(map[string]bool)}
	if err := s.register(self, first); err != nil {
		_ = self.send(Message{Type: TypeError, Msg: err.Error()})
		return
	}
	defer s.unregister(self)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.handle(self, msg)
	}
}

func (s *Server) register(self *peerConn, msg Message) error {
	if msg.Type != TypeRegister {
		return fmt.Errorf("expected %s, got %q", TypeRegister, msg.Type)
	}
	if msg.ID == "" {
		return fmt.Errorf("register: missing id")
	}
	if msg.ClientType != ClientTypeHost && msg.ClientType != ClientTypeViewer {
		return fmt.Errorf("register: unknown client type %q", msg.ClientType)
	}
	self.id = msg.ID
	self.clientType = msg.ClientType

	s.mu.Lock()
	if _, taken := s.clients[self.id]; taken {
		s.mu.Unlock()
		return fmt.Errorf("register: id %q already in use", self.id)
	}
	s.clients[self.id] = self
	s.mu.Unlock()

	s.log.Info("client registered", zap.String("id", self.id), zap.String("type", self.clientType))
	_ = self.send(Message{Type: TypeRegistered, ID: self.id})
	if self.clientType == ClientTypeHost {
		s.broadcastHosts()
	}
	return nil
}

func (s *Server) unregister(self *peerConn) {
	s.mu.Lock()
	delete(s.clients, self.id)
	var notify []*peerConn
	for _, c := range s.clients {
		switch {
		case self.clientType == ClientTypeHost && c.clientType == ClientTypeViewer:
			notify = append(notify, c)
		case self.clientType == ClientTypeViewer && c.clientType == ClientTypeHost:
			c.mu.Lock()
			if c.viewers[self.id] {
				notify = append(notify, c)
				delete(c.viewers, self.id)
			}
			c.mu.Unlock()
		}
	}
	s.mu.Unlock()

	s.log.Info("client left", zap.String("id", self.id), zap.String("type", self.clientType))
	for _, c := range notify {
		if self.clientType == ClientTypeHost {
			_ = c.send(Message{Type: TypeHostDisconnected, HostID: self.id})
		} else {
			_ = c.send(Message{Type: TypePeerLeft, From: self.id})
		}
	}
	if self.clientType == ClientTypeHost {
		s.broadcastHosts()
	}
}

func (s *Server) handle(self *peerConn, msg Message) {
	switch msg.Type {
	case TypePing:
		_ = self.send(Message{Type: TypePong, Timestamp: time.Now().UnixMilli()})
	case TypeListHosts:
		_ = self.send(Message{Type: TypeHosts, List: s.Hosts()})
	case TypeOffer, TypeAnswer, TypeICECandidate:
		s.forward(self, msg)
	default:
		_ = self.send(Message{Type: TypeError, Msg: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

func (s *Server) forward(self *peerConn, msg Message) {
	s.mu.Lock()
	target, ok := s.clients[msg.Target]
	s.mu.Unlock()
	if !ok {
		_ = self.send(Message{Type: TypeError, Msg: fmt.Sprintf("unknown target %q", msg.Target)})
		return
	}

	if msg.Type == TypeOffer && target.clientType == ClientTypeHost {
		target.mu.Lock()
		target.viewers[self.id] = true
		target.mu.Unlock()
	}
	s.log.Debug("relay", zap.String("type", msg.Type), zap.String("from", self.id), zap.String("to", target.id))
	_ = target.send(Message{Type: msg.Type, From: self.id, Payload: msg.Payload})
}

func (s *Server) broadcastHosts() {
	s.mu.Lock()
	hosts := s.hostsLocked()
	var viewers []*peerConn
	for _, c := range s.clients {
		if c.clientType == ClientTypeViewer {
			viewers = append(viewers, c)
		}
	}
	s.mu.Unlock()

	for _, v := range viewers {
		_ = v.send(Message{Type: TypeHostsUpdated, List: hosts})
	}
}
