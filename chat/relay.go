package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rexlx/bookify/backend"
)

const writeTimeout = 10 * time.Second

// Overridable for faster tests
var pingInterval = time.Minute

// outbound is what the browser sends: a typing notice or a message.
type outbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// upstreamFrame is what the backend expects, stamped with both ids.
type upstreamFrame struct {
	Type       string `json:"type,omitempty"`
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	Content    string `json:"content,omitempty"`
}

// Relay holds one backend socket per browser socket. Closing either side
// closes the other.
type Relay struct {
	Dialer   *websocket.Dialer
	Upgrader websocket.Upgrader
	url      func(self int64) string
}

func NewRelay(c *backend.Client) *Relay {
	return &Relay{
		Dialer:   &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		Upgrader: websocket.Upgrader{HandshakeTimeout: 5 * time.Second},
		url: func(self int64) string {
			return c.WebSocketURL(fmt.Sprintf("/ws/private-chat/%d", self))
		},
	}
}

// Serve dials the backend for conv.Self with the request's backend
// cookies, upgrades the browser connection and pumps frames both ways
// until one side goes away.
func (rl *Relay) Serve(w http.ResponseWriter, r *http.Request, conv *Conversation) {
	id := uuid.NewString()
	fields := []log.Field{log.F("conn", id), log.F("self", conv.Self), log.F("peer", conv.Peer)}

	header := http.Header{}
	if creds := backend.CredentialsFrom(r.Context()); len(creds) > 0 {
		header.Set("Cookie", creds.Header())
	}
	upstream, res, err := rl.Dialer.DialContext(r.Context(), rl.url(conv.Self), header)
	if err != nil {
		if res != nil {
			res.Body.Close()
		}
		log.WithFields(fields...).Errorf("chat: dialing backend: %s", err)
		http.Error(w, "Chat is unavailable", http.StatusBadGateway)
		return
	}

	browser, err := rl.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		upstream.Close()
		log.WithFields(fields...).Warnf("chat: upgrade: %s", err)
		return
	}
	log.WithFields(fields...).Infof("chat: relay opened")

	var once sync.Once
	closeBoth := func() {
		once.Do(func() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			deadline := time.Now().Add(time.Second)
			browser.WriteControl(websocket.CloseMessage, msg, deadline)
			upstream.WriteControl(websocket.CloseMessage, msg, deadline)
			browser.Close()
			upstream.Close()
		})
	}

	done := make(chan struct{})
	go ping(done, browser, upstream)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer closeBoth()
		if err := rl.down(browser, upstream, conv); err != nil && !closedNormally(err) {
			log.WithFields(fields...).Warnf("chat: backend side: %s", err)
		}
	}()
	go func() {
		defer wg.Done()
		defer closeBoth()
		if err := rl.up(browser, upstream, conv); err != nil && !closedNormally(err) {
			log.WithFields(fields...).Warnf("chat: browser side: %s", err)
		}
	}()
	wg.Wait()
	close(done)
	log.WithFields(fields...).Infof("chat: relay closed")
}

func ping(done <-chan struct{}, conns ...*websocket.Conn) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			for _, c := range conns {
				c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			}
		}
	}
}

// down forwards backend events that concern conv to the browser.
func (rl *Relay) down(browser, upstream *websocket.Conn, conv *Conversation) error {
	for {
		typ, msg, err := upstream.ReadMessage()
		if err != nil {
			return err
		}
		if typ != websocket.TextMessage {
			continue
		}
		var e Event
		if err := json.Unmarshal(msg, &e); err != nil {
			log.Warnf("chat: skipping malformed backend frame: %s", err)
			continue
		}
		if !conv.Apply(e) {
			continue
		}
		browser.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := browser.WriteMessage(websocket.TextMessage, msg); err != nil {
			return err
		}
	}
}

// up stamps browser frames with both ids and sends them to the backend.
func (rl *Relay) up(browser, upstream *websocket.Conn, conv *Conversation) error {
	for {
		typ, msg, err := browser.ReadMessage()
		if err != nil {
			return err
		}
		if typ != websocket.TextMessage {
			continue
		}
		var in outbound
		if err := json.Unmarshal(msg, &in); err != nil {
			continue
		}
		frame := upstreamFrame{SenderID: conv.Self, ReceiverID: conv.Peer}
		switch {
		case in.Type == "typing":
			frame.Type = "typing"
		case strings.TrimSpace(in.Content) != "":
			frame.Content = in.Content
		default:
			continue
		}
		upstream.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := upstream.WriteJSON(frame); err != nil {
			return err
		}
	}
}

func closedNormally(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
		errors.Is(err, net.ErrClosed)
}
