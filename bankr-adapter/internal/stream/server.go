package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/bankr-adapter/internal/orders"
	"github.com/Checker-Finance/orders/bankr-adapter/internal/pricing"
)

const (
	// PricePath is the websocket endpoint for live market prices.
	PricePath = "/ws/price"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 16
)

// PriceFunc fetches the market price for a prospective order.
type PriceFunc func(ctx context.Context, pq orders.PriceQuery) (decimal.Decimal, error)

// Server streams debounced market prices over websocket. Every query frame a
// client sends restarts its debounce timer; the client receives a loading
// frame when a fetch starts and then the result of the latest query only.
type Server struct {
	logger   *zap.Logger
	price    PriceFunc
	debounce time.Duration
	upgrader websocket.Upgrader
}

// NewServer creates a price stream server. A zero debounce uses
// pricing.DefaultDebounce.
func NewServer(logger *zap.Logger, price PriceFunc, debounce time.Duration) *Server {
	return &Server{
		logger:   logger,
		price:    price,
		debounce: debounce,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler serving PricePath.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(PricePath, s.ServePrice)
	return mux
}

// ServePrice upgrades the connection and serves price queries until the
// client disconnects.
func (s *Server) ServePrice(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("stream.upgrade_failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan pricing.Result, sendBuffer)
	watcher := pricing.NewWatcher(s.logger, s.debounce, pricing.FetchFunc[orders.PriceQuery](s.price), func(res pricing.Result) {
		select {
		case out <- res:
		case <-ctx.Done():
		}
	})

	writerDone := make(chan struct{})
	go s.writeLoop(ctx, conn, out, writerDone)

	s.logger.Debug("stream.connected", zap.String("remote", r.RemoteAddr))
	s.readLoop(ctx, conn, watcher, out)

	cancel()
	watcher.Close()
	<-writerDone
	s.logger.Debug("stream.disconnected", zap.String("remote", r.RemoteAddr))
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, watcher *pricing.Watcher[orders.PriceQuery], out chan<- pricing.Result) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("stream.read_failed", zap.Error(err))
			}
			return
		}

		var pq orders.PriceQuery
		if err := json.Unmarshal(message, &pq); err != nil {
			select {
			case out <- pricing.Result{Status: pricing.StatusError, Error: "invalid price query"}:
			case <-ctx.Done():
				return
			}
			continue
		}

		if incomplete(pq) {
			watcher.Clear()
			continue
		}
		watcher.Update(ctx, pq)
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan pricing.Result, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case res := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(res); err != nil {
				s.logger.Debug("stream.write_failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// incomplete reports whether pq lacks the inputs a price needs. Such a
// query cancels the pending one instead of fetching.
func incomplete(pq orders.PriceQuery) bool {
	amount := strings.TrimSpace(pq.SellAmount)
	return pq.SellToken == "" || pq.BuyToken == "" || amount == "" || amount == "0"
}
