package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
)

// LogEntry represents a structured log entry for JSON serialization
type LogEntry struct {
	Time       string          `json:"time"`
	Event      string          `json:"event"`
	URI        string          `json:"uri,omitempty"`
	Language   string          `json:"language,omitempty"`
	Line       *int            `json:"line,omitempty"`
	Character  *int            `json:"character,omitempty"`
	Items      *int            `json:"items,omitempty"`
	Components *int            `json:"components,omitempty"`
	Remaining  *int            `json:"remaining,omitempty"`
	Status     *int            `json:"status,omitempty"`
	Source     string          `json:"source,omitempty"`
	Client     string          `json:"client,omitempty"`
	Method     string          `json:"method,omitempty"`
	Path       string          `json:"path,omitempty"`
	Took       string          `json:"took,omitempty"`
	Error      string          `json:"error,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	InstanceID string          `json:"instance_id,omitempty"`
	Seq        uint64          `json:"seq,omitempty"`
	StartedAt  string          `json:"started_at,omitempty"`
	UptimeSec  *int64          `json:"uptime_s,omitempty"`
	LastSeq    *uint64         `json:"last_seq,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// EventRingBuffer maintains a fixed-size buffer of recent events
type EventRingBuffer struct {
	events []LogEntry
	head   int
	tail   int
	size   int
	count  int
	mutex  sync.RWMutex
	full   bool
}

// NewEventRingBuffer creates a new ring buffer with the specified size
func NewEventRingBuffer(size int) *EventRingBuffer {
	if size <= 0 {
		size = 2048
	}
	return &EventRingBuffer{
		events: make([]LogEntry, size),
		size:   size,
	}
}

// Add adds a new event to the ring buffer
func (rb *EventRingBuffer) Add(event LogEntry) {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()

	rb.events[rb.head] = event
	rb.head = (rb.head + 1) % rb.size

	if rb.full {
		rb.tail = (rb.tail + 1) % rb.size
	} else {
		rb.count++
		if rb.head == rb.tail && rb.count > 0 {
			rb.full = true
		}
	}
}

// GetAll returns all events in chronological order (oldest first)
func (rb *EventRingBuffer) GetAll() []LogEntry {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()

	if rb.count == 0 {
		return []LogEntry{}
	}

	result := make([]LogEntry, rb.count)
	if !rb.full {
		copy(result, rb.events[:rb.count])
	} else {
		tailToEnd := rb.size - rb.tail
		copy(result, rb.events[rb.tail:])
		copy(result[tailToEnd:], rb.events[:rb.head])
	}
	return result
}

// GetTail returns up to the last n events (chronological order).
func (rb *EventRingBuffer) GetTail(n int) []LogEntry {
	all := rb.GetAll()
	if n <= 0 {
		return []LogEntry{}
	}
	if n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// GetCount returns the current number of events in the buffer
func (rb *EventRingBuffer) GetCount() int {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()
	return rb.count
}

// encodeNDJSONLimited encodes the newest events that fit in maxBytes as
// NDJSON, oldest first. maxBytes <= 0 means no limit.
func encodeNDJSONLimited(events []LogEntry, maxBytes int) ([]byte, int) {
	encoded := make([][]byte, 0, len(events))
	for _, e := range events {
		if data, err := json.Marshal(e); err == nil {
			encoded = append(encoded, data)
		}
	}

	start := 0
	if maxBytes > 0 {
		budget := maxBytes
		start = len(encoded)
		for i := len(encoded) - 1; i >= 0; i-- {
			cost := len(encoded[i]) + 1
			if cost > budget {
				break
			}
			budget -= cost
			start = i
		}
	}

	var sb strings.Builder
	for _, data := range encoded[start:] {
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return []byte(sb.String()), len(encoded) - start
}

// Hub manages websocket client connections, broadcasts daemon events and
// hands inbound client messages to the daemon.
type Hub struct {
	clients     map[string]*client
	broadcast   chan []byte
	register    chan *client
	unregister  chan *client
	unicast     chan clientSend
	incoming    chan ClientMessage
	mutex       sync.RWMutex
	eventBuffer *EventRingBuffer
	instanceID  string
	seq         uint64
	startTime   time.Time
	// limits for the initial bulk send on new connections
	bulkMaxEvents int
	bulkMaxBytes  int
}

const writeDeadline = 5 * time.Second
const heartbeatInterval = 10 * time.Second
const pongWait = 60 * time.Second
const pingInterval = 30 * time.Second

var upgrader = gws.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	id      string
	conn    *gws.Conn
	send    chan []byte
	hub     *Hub
	closed  chan struct{}
	closeMu sync.Mutex
}

type clientSend struct {
	clientID string
	payload  []byte
}

// ClientMessage represents an inbound message from a websocket client.
type ClientMessage struct {
	ClientID string
	Payload  []byte
}

// NewHub creates a hub keeping bufferSize recent events for replay to new
// clients.
func NewHub(bufferSize int, bulkMaxEvents int, bulkMaxBytes int) *Hub {
	hub := &Hub{
		clients:       make(map[string]*client),
		broadcast:     make(chan []byte, 256),
		register:      make(chan *client),
		unregister:    make(chan *client),
		unicast:       make(chan clientSend, 128),
		incoming:      make(chan ClientMessage, 256),
		eventBuffer:   NewEventRingBuffer(bufferSize),
		instanceID:    uuid.NewString(),
		startTime:     time.Now(),
		bulkMaxEvents: bulkMaxEvents,
		bulkMaxBytes:  bulkMaxBytes,
	}

	hub.emitHello()

	return hub
}

// Run starts the hub's main loop. It returns when done is closed.
func (h *Hub) Run(done <-chan struct{}) {
	heartbeatTicker := time.NewTicker(heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-done:
			for _, c := range h.snapshotClients() {
				h.removeClient(c.id)
			}
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mutex.Unlock()
			log.Printf("event=ws.connect client=%s clients=%d", client.id, total)

		case client := <-h.unregister:
			h.removeClient(client.id)

		case message := <-h.broadcast:
			for _, client := range h.snapshotClients() {
				h.enqueue(client, message)
			}

		case msg := <-h.unicast:
			if c := h.getClient(msg.clientID); c != nil {
				h.enqueue(c, msg.payload)
			}

		case <-heartbeatTicker.C:
			h.emitHeartbeat()
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) snapshotClients() []*client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	clients := make([]*client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

func (h *Hub) getClient(id string) *client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.clients[id]
}

// enqueue hands payload to the client's writer. A closed client is skipped;
// a full buffer drops its oldest message.
func (h *Hub) enqueue(client *client, payload []byte) {
	client.closeMu.Lock()
	defer client.closeMu.Unlock()

	select {
	case <-client.closed:
		return
	default:
	}

	for {
		select {
		case client.send <- payload:
			return
		default:
		}
		select {
		case <-client.send:
			log.Printf("event=ws.drop client=%s reason=%q", client.id, "send buffer full")
		default:
		}
	}
}

func (h *Hub) removeClient(id string) {
	h.mutex.Lock()
	client, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	total := len(h.clients)
	h.mutex.Unlock()

	if ok && client != nil {
		client.close()
		log.Printf("event=ws.disconnect client=%s clients=%d", id, total)
	}
}

func (h *Hub) historicalEvents() ([]byte, int) {
	maxEvents := h.bulkMaxEvents
	if maxEvents <= 0 {
		maxEvents = h.eventBuffer.GetCount()
	}
	return encodeNDJSONLimited(h.eventBuffer.GetTail(maxEvents), h.bulkMaxBytes)
}

// EmitJSON publishes a structured event with the provided payload to all clients.
func (h *Hub) EmitJSON(event string, payload any) {
	if strings.TrimSpace(event) == "" {
		return
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("event=ws.marshal_error name=%s error=%q", event, err.Error())
			return
		}
		raw = data
	}

	h.emit(LogEntry{Event: event, Payload: raw})
}

// Incoming returns a channel for consuming raw messages from clients.
func (h *Hub) Incoming() <-chan ClientMessage {
	return h.incoming
}

// SendToClient queues a payload to a specific client by ID.
func (h *Hub) SendToClient(clientID string, payload []byte) error {
	if clientID == "" {
		return fmt.Errorf("client id required")
	}
	if h.getClient(clientID) == nil {
		return fmt.Errorf("client %s not found", clientID)
	}
	h.unicast <- clientSend{
		clientID: clientID,
		payload:  payload,
	}
	return nil
}

// SendJSONToClient marshals the value and sends it to the client.
func (h *Hub) SendJSONToClient(clientID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToClient(clientID, data)
}

// BroadcastLog sends a logfmt log entry to all connected clients.
func (h *Hub) BroadcastLog(logfmtEntry string) {
	h.emit(parseLogfmt(logfmtEntry))
}

func (h *Hub) emit(entry LogEntry) {
	if entry.Time == "" {
		entry.Time = time.Now().Format(time.RFC3339)
	}
	entry.InstanceID = h.instanceID
	entry.Seq = atomic.AddUint64(&h.seq, 1)

	h.eventBuffer.Add(entry)

	if jsonData, err := json.Marshal(entry); err == nil {
		select {
		case h.broadcast <- jsonData:
		default:
		}
	}
}

// RecentEvents returns the newest events from the ring buffer. When limit <= 0
// all buffered events are returned.
func (h *Hub) RecentEvents(limit int) []LogEntry {
	if limit <= 0 {
		return h.eventBuffer.GetAll()
	}
	return h.eventBuffer.GetTail(limit)
}

func (h *Hub) emitHello() {
	h.emit(LogEntry{
		Time:      time.Now().Format(time.RFC3339),
		Event:     "mdc.hello",
		StartedAt: h.startTime.Format(time.RFC3339),
	})
}

func (h *Hub) emitHeartbeat() {
	lastSeq := atomic.LoadUint64(&h.seq)
	uptime := int64(time.Since(h.startTime).Seconds())
	h.emit(LogEntry{
		Time:      time.Now().Format(time.RFC3339),
		Event:     "mdc.heartbeat",
		UptimeSec: &uptime,
		LastSeq:   &lastSeq,
	})
}

// HandleWebSocket upgrades the connection, replays recent events as one NDJSON
// message and then streams live events.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("event=ws.upgrade_error error=%q", err.Error())
		return
	}

	bulkEvents, included := h.historicalEvents()
	if err := conn.WriteMessage(gws.TextMessage, bulkEvents); err != nil {
		log.Printf("event=ws.bulk_error error=%q", err.Error())
		conn.Close()
		return
	}
	log.Printf("event=ws.bulk events=%d bytes=%d", included, len(bulkEvents))

	c := newClient(h, conn)
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func newClient(h *Hub, conn *gws.Conn) *client {
	return &client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    h,
		closed: make(chan struct{}),
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()

	c.conn.SetReadLimit(1 << 22) // documents travel whole
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if gws.IsUnexpectedCloseError(err, gws.CloseGoingAway, gws.CloseAbnormalClosure) {
				log.Printf("event=ws.read_error client=%s error=%q", c.id, err.Error())
			}
			break
		}
		if msgType != gws.TextMessage {
			continue
		}

		select {
		case c.hub.incoming <- ClientMessage{ClientID: c.id, Payload: payload}:
		default:
			log.Printf("event=ws.drop client=%s reason=%q", c.id, "incoming channel full")
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = c.conn.WriteMessage(gws.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(gws.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(gws.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			return
		}
	}
}

func (c *client) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	select {
	case <-c.closed:
	default:
		close(c.closed)
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
}

var logfmtPairRe = regexp.MustCompile(`(\w+)=("(?:[^"\\]|\\.)*"|[^\s]+)`)

// parseLogfmt converts an eventlog line into a LogEntry.
func parseLogfmt(line string) LogEntry {
	entry := LogEntry{}
	for _, match := range logfmtPairRe.FindAllStringSubmatch(line, -1) {
		key, value := match[1], match[2]
		if strings.HasPrefix(value, `"`) {
			if unquoted, err := strconv.Unquote(value); err == nil {
				value = unquoted
			}
		}

		switch key {
		case "time":
			entry.Time = value
		case "event":
			entry.Event = value
		case "uri":
			entry.URI = value
		case "language":
			entry.Language = value
		case "line":
			entry.Line = parseInt(value)
		case "character":
			entry.Character = parseInt(value)
		case "items":
			entry.Items = parseInt(value)
		case "components":
			entry.Components = parseInt(value)
		case "remaining":
			entry.Remaining = parseInt(value)
		case "status":
			entry.Status = parseInt(value)
		case "source":
			entry.Source = value
		case "client":
			entry.Client = value
		case "method":
			entry.Method = value
		case "path":
			entry.Path = value
		case "took":
			entry.Took = value
		case "error":
			entry.Error = value
		case "reason":
			entry.Reason = value
		}
	}
	return entry
}

func parseInt(value string) *int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &n
}
