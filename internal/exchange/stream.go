package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/model"
)

const binanceBaseWsURL = "wss://stream.binance.com:9443/ws"

// BinanceStream is the public trade-stream client. One stream carries
// every subscribed symbol; per-symbol filtering happens in the observer.
type BinanceStream struct {
	wss *ws.WebSocket
}

func NewBinanceStream(ctx context.Context) *BinanceStream {
	return &BinanceStream{
		wss: ws.New(ctx, binanceBaseWsURL),
	}
}

func (s *BinanceStream) Start(ctx context.Context) error {
	if err := s.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

func (s *BinanceStream) Close() {
	s.wss.Close()
}

type binanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type binanceSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

// SubscribeTrade subscribes the symbol's raw trade stream.
func (s *BinanceStream) SubscribeTrade(ctx context.Context, symbol string) error {
	appendIntoRegister := true
	if err := s.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := binanceSubscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{
					fmt.Sprintf("%s@trade", strings.ToLower(symbol)),
				},
				ID: 1,
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp binanceSubscribeResponse
			if err := m.Unmarshal(&resp); err != nil || resp.ID != 1 {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

type binanceTrade struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

// ObserveTrade forwards trade events for the symbol into handler until
// the context ends or the stream closes.
func (s *BinanceStream) ObserveTrade(ctx context.Context, symbol string, handler func(t model.Tick)) (unsubscribe func()) {
	ch, cancel := s.wss.Subscribe()
	symbol = strings.ToUpper(symbol)

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				resp, ok := ws.ReadMessage[binanceTrade](m)
				if !ok || resp.EventType != "trade" || resp.Symbol != symbol {
					continue
				}

				price, err := strconv.ParseFloat(resp.Price, 64)
				if err != nil {
					logs.Warnf("parse trade price, symbol: %s, raw: %s", resp.Symbol, resp.Price)
					continue
				}

				handler(model.Tick{
					Timestamp: resp.TradeTime,
					Symbol:    resp.Symbol,
					Price:     price,
				})
			}
		}
	}()

	return cancel
}
