package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bitfrost-api/pkg/market"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	writeWait               = 5 * time.Second
)

type subscribeMessage struct {
	Method       string       `json:"method"`
	Subscription subscription `json:"subscription"`
}

type subscription struct {
	Type string `json:"type"`
	Coin string `json:"coin"`
}

type streamFrame struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// Streamer opens websocket subscriptions against the Hyperliquid ws endpoint.
type Streamer struct {
	url    string
	dialer *websocket.Dialer
}

// NewStreamer builds a streamer for url, defaulting to the public endpoint.
func NewStreamer(url string) *Streamer {
	if strings.TrimSpace(url) == "" {
		url = market.DefaultWSURL
	}
	return &Streamer{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout},
	}
}

// TradeStream is one open trades subscription. Next must be called from a single goroutine.
type TradeStream struct {
	conn *websocket.Conn
	coin string

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// DialTrades connects and subscribes to the trades channel of coin.
func (s *Streamer) DialTrades(ctx context.Context, coin string) (*TradeStream, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, market.Unavailable(sourceName, fmt.Errorf("hyperliquid: dial %s: %w", s.url, err))
	}
	stream := &TradeStream{conn: conn, coin: coin}
	sub := subscribeMessage{Method: "subscribe", Subscription: subscription{Type: "trades", Coin: coin}}
	if err := stream.writeJSON(sub); err != nil {
		_ = stream.Close()
		return nil, market.Unavailable(sourceName, fmt.Errorf("hyperliquid: subscribe trades coin=%s: %w", coin, err))
	}
	return stream, nil
}

// Next blocks until the next batch of trades for the subscribed coin arrives.
// Subscription acks and pongs are skipped.
func (s *TradeStream) Next() ([]Trade, error) {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		var frame streamFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			return nil, market.Malformed(sourceName, fmt.Errorf("hyperliquid: decode ws frame: %w", err))
		}
		if frame.Channel != "trades" {
			continue
		}
		var trades []Trade
		if err := json.Unmarshal(frame.Data, &trades); err != nil {
			return nil, market.Malformed(sourceName, fmt.Errorf("hyperliquid: decode trades: %w", err))
		}
		filtered := trades[:0]
		for _, t := range trades {
			if strings.EqualFold(t.Coin, s.coin) {
				filtered = append(filtered, t)
			}
		}
		if len(filtered) == 0 {
			continue
		}
		return filtered, nil
	}
}

// Ping keeps the connection alive; the server drops connections idle for a minute.
func (s *TradeStream) Ping() error {
	return s.writeJSON(map[string]string{"method": "ping"})
}

// Close shuts the connection down. Safe to call more than once.
func (s *TradeStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *TradeStream) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}
