package network

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"autotyper/internal/control"
	"autotyper/internal/protocol"

	"github.com/gorilla/websocket"
)

// WSClient subscribes to the service's websocket event stream and
// reconnects when the connection drops
type WSClient struct {
	wsURL     string
	token     string
	retry     time.Duration
	send      chan protocol.Message
	done      chan struct{}
	closeOnce sync.Once

	// Callbacks
	OnEvent  func(ev protocol.EventPayload)
	OnStatus func(st control.Status)

	mu          sync.Mutex
	isConnected bool
}

// NewWSClient creates a subscriber for the service at baseURL
func NewWSClient(baseURL, token string) *WSClient {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	case !strings.Contains(u, "://"):
		u = "ws://" + u
	}
	return &WSClient{
		wsURL: u + "/ws",
		token: token,
		retry: 5 * time.Second,
		send:  make(chan protocol.Message, 100),
		done:  make(chan struct{}),
	}
}

// Start begins the client loop (connect & process)
func (c *WSClient) Start() {
	go c.loop()
}

func (c *WSClient) loop() {
	for {
		c.connect()

		// If connect returns, it means we disconnected. Wait a bit and retry.
		select {
		case <-c.done:
			return
		case <-time.After(c.retry):
			log.Println("WS Client: Attempting reconnection...")
			continue
		}
	}
}

func (c *WSClient) connect() {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		log.Printf("WS Client: Invalid URL %q: %v", c.wsURL, err)
		return
	}
	log.Printf("WS Client: Connecting to %s", u.Redacted())

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Printf("WS Client: Connection failed: %v", err)
		return
	}
	defer conn.Close()

	c.mu.Lock()
	c.isConnected = true
	c.mu.Unlock()

	log.Println("WS Client: Connected")

	// specific done channel for this connection
	connDone := make(chan struct{})
	stopWrite := make(chan struct{})

	go func() {
		defer close(connDone)
		c.writePump(conn, stopWrite)
	}()

	// Close the connection when the client is closed so the read unblocks
	go func() {
		select {
		case <-c.done:
			conn.Close()
		case <-connDone:
		}
	}()

	c.readPump(conn)

	// Cleanup
	c.mu.Lock()
	c.isConnected = false
	c.mu.Unlock()

	// Ensure write pump stops
	close(stopWrite)
	<-connDone
}

func (c *WSClient) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS Client: Read error: %v", err)
			}
			break
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("WS Client: Invalid message: %v", err)
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *WSClient) writePump(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(30 * time.Second) // Ping ticker
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			jsonMsg, err := json.Marshal(msg)
			if err != nil {
				log.Printf("WS Client: Marshal error: %v", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, jsonMsg); err != nil {
				log.Printf("WS Client: Write error: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-stop:
			return

		case <-c.done:
			return
		}
	}
}

func (c *WSClient) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeEvent:
		var payload protocol.EventPayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			log.Printf("WS Client: Invalid event payload: %v", err)
			return
		}
		if c.OnEvent != nil {
			c.OnEvent(payload)
		}

	case protocol.TypeStatus:
		var payload control.Status
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			log.Printf("WS Client: Invalid status payload: %v", err)
			return
		}
		if c.OnStatus != nil {
			c.OnStatus(payload)
		}
	}
}

// RequestStatus asks the service for a fresh status message
func (c *WSClient) RequestStatus() {
	select {
	case c.send <- protocol.Message{Type: protocol.TypeStatusRequest}:
	default:
	}
}

// IsConnected returns true if the client is connected
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// Close stops the client
func (c *WSClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
