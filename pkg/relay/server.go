package relay

import (
	"net/http"
	"sync"
	"time"

	"github.com/giongto35/touchcoop/pkg/com"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	maxMessageSize = 64 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second
	sendQueue      = 64
	maxIdLength    = 64
)

var (
	peersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "touchcoop_relay_peers",
		Help: "Connected relay peers.",
	})
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "touchcoop_relay_messages_total",
		Help: "Messages handled by the relay, by type.",
	}, []string{"type"})
)

type Server struct {
	peers    *com.Map[string, *client]
	upgrader websocket.Upgrader
	log      *logger.Logger
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	log  *logger.Logger

	mu       sync.Mutex
	contacts map[string]struct{}
	closed   bool
}

func NewServer(log *logger.Logger) *Server {
	return &Server{
		peers: com.NewMap[string, *client](),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// gamepad pages are served from anywhere
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log.Tag("relay"),
	}
}

// Peers returns the number of connected peers.
func (s *Server) Peers() int { return s.peers.Len() }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	want := r.URL.Query().Get(IdParam)
	if len(want) > maxIdLength {
		http.Error(w, "id is too long", http.StatusBadRequest)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := want
	if id == "" {
		id = com.NewUid().String()
	}
	c := &client{
		id:       id,
		conn:     conn,
		send:     make(chan []byte, sendQueue),
		log:      s.log.Extend(s.log.With().Str("peer", id)),
		contacts: make(map[string]struct{}),
	}
	if _, ok := s.peers.PutIfAbsent(id, c); !ok {
		messagesTotal.WithLabelValues(TypeIdTaken).Inc()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.TextMessage, Message{Type: TypeIdTaken, Dst: id}.Marshal())
		_ = conn.Close()
		return
	}
	peersGauge.Inc()
	c.log.Debug().Msg("peer connected")

	go c.writer()
	c.enqueue(Message{Type: TypeOpen, Dst: id}.Marshal())
	messagesTotal.WithLabelValues(TypeOpen).Inc()
	go s.reader(c)
}

// reader pumps messages from the peer and routes them.
// Blocking, must be called as goroutine.
func (s *Server) reader(c *client) {
	defer s.remove(c)
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTime))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongTime)) })
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("read")
			}
			return
		}
		m, err := Parse(data)
		if err != nil || m.Type == "" {
			c.log.Warn().Msg("malformed relay message")
			messagesTotal.WithLabelValues(TypeError).Inc()
			continue
		}
		s.route(c, m)
	}
}

// typeLabel keeps the metric labels to the known message types.
func typeLabel(t string) string {
	switch t {
	case TypeOpen, TypeIdTaken, TypeExpire, TypeLeave, TypeOffer, TypeAnswer, TypeError:
		return t
	}
	return "other"
}

func (s *Server) route(from *client, m Message) {
	messagesTotal.WithLabelValues(typeLabel(m.Type)).Inc()
	if m.Dst == "" {
		return
	}
	to, err := s.peers.Find(m.Dst)
	if err != nil {
		from.enqueue(Message{Type: TypeExpire, Src: m.Dst}.Marshal())
		messagesTotal.WithLabelValues(TypeExpire).Inc()
		return
	}
	m.Src = from.id
	from.touch(to.id)
	to.touch(from.id)
	to.enqueue(m.Marshal())
}

func (s *Server) remove(c *client) {
	if current, err := s.peers.Find(c.id); err == nil && current == c {
		s.peers.Remove(c.id)
		peersGauge.Dec()
	}
	contacts := c.stop()
	leave := Message{Type: TypeLeave, Src: c.id}.Marshal()
	for id := range contacts {
		if peer, err := s.peers.Find(id); err == nil {
			peer.enqueue(leave)
			messagesTotal.WithLabelValues(TypeLeave).Inc()
		}
	}
	c.log.Debug().Msg("peer left")
}

// Close disconnects everyone.
func (s *Server) Close() {
	for _, c := range s.peers.Clear() {
		peersGauge.Dec()
		_ = c.conn.Close()
	}
}

func (c *client) touch(id string) {
	c.mu.Lock()
	c.contacts[id] = struct{}{}
	c.mu.Unlock()
}

// enqueue never blocks, a peer that can't keep up is dropped.
func (c *client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn().Msg("send queue is full, disconnecting")
		_ = c.conn.Close()
	}
}

func (c *client) stop() map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	contacts := make(map[string]struct{}, len(c.contacts))
	for id := range c.contacts {
		contacts[id] = struct{}{}
	}
	return contacts
}

// writer pumps messages from the send channel to the websocket connection.
// Blocking, must be called as goroutine. Serializes all websocket writes.
func (c *client) writer() {
	ticker := time.NewTicker(pingTime)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
