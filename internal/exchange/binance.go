package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

const (
	defaultBinanceBaseURL = "https://api.binance.com"
	defaultBinanceTimeout = 10 * time.Second

	// basis points, per the account endpoint
	commissionDenominator = 10000.0
)

// BinanceConfig carries the REST endpoint and the signed-request
// credentials. Public market-data calls work without keys.
type BinanceConfig struct {
	BaseURL   string
	APIKey    string
	SecretKey string
	Timeout   time.Duration
}

func (c BinanceConfig) withDefaults() BinanceConfig {
	if c.BaseURL == "" {
		c.BaseURL = defaultBinanceBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultBinanceTimeout
	}
	return c
}

// BinanceClient is the Binance spot REST client. It implements both
// SpotClient and the kline provider used by the backfill pipeline.
type BinanceClient struct {
	cfg        BinanceConfig
	httpClient *http.Client
}

func NewBinanceClient(cfg BinanceConfig) *BinanceClient {
	cfg = cfg.withDefaults()

	return &BinanceClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *BinanceClient) PlatformName() string {
	return "binance"
}

type binanceAPIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// mapAPIError converts Binance business rejections into sentinel errors
// so the retry decorator stops on them.
func mapAPIError(status int, apiErr binanceAPIError) error {
	switch apiErr.Code {
	case -2010:
		return errors.Wrap(exception.ErrInsufficientBalance, apiErr.Msg)
	case -2013:
		return errors.Wrap(exception.ErrOrderNotFound, apiErr.Msg)
	case -1121:
		return errors.Wrap(exception.ErrSymbolNotFound, apiErr.Msg)
	default:
		return errors.Errorf("binance error, status: %d, code: %d, msg: %s", status, apiErr.Code, apiErr.Msg)
	}
}

func (c *BinanceClient) get(ctx context.Context, path string, params url.Values, out any) error {
	return c.request(ctx, http.MethodGet, path, params, false, out)
}

func (c *BinanceClient) signedGet(ctx context.Context, path string, params url.Values, out any) error {
	return c.request(ctx, http.MethodGet, path, params, true, out)
}

func (c *BinanceClient) signedPost(ctx context.Context, path string, params url.Values, out any) error {
	return c.request(ctx, http.MethodPost, path, params, true, out)
}

func (c *BinanceClient) request(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	if params == nil {
		params = url.Values{}
	}

	query := params.Encode()

	if signed {
		if c.cfg.APIKey == "" || c.cfg.SecretKey == "" {
			return errors.Wrap(exception.ErrInvalidArgument, "binance api credentials are empty")
		}

		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

		// the signature covers the sorted payload and is appended after
		// it, outside the signed bytes
		query = params.Encode()
		mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
		mac.Write([]byte(query))
		query += "&signature=" + hex.EncodeToString(mac.Sum(nil))
	}

	endpoint := c.cfg.BaseURL + path
	if query != "" {
		endpoint += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}

	if signed {
		req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response body")
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr binanceAPIError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != 0 {
			return mapAPIError(resp.StatusCode, apiErr)
		}
		return errors.Errorf("binance error, status: %d, body: %s", resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}

	return nil
}

type binanceAccount struct {
	MakerCommission float64 `json:"makerCommission"`
	TakerCommission float64 `json:"takerCommission"`
	CanTrade        bool    `json:"canTrade"`
	Balances        []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

func (c *BinanceClient) GetAccount(ctx context.Context) (model.AccountInformation, error) {
	var resp binanceAccount
	if err := c.signedGet(ctx, "/api/v3/account", nil, &resp); err != nil {
		return model.AccountInformation{}, err
	}

	return model.AccountInformation{
		MakerCommissionRate: resp.MakerCommission / commissionDenominator,
		TakerCommissionRate: resp.TakerCommission / commissionDenominator,
		CanTrade:            resp.CanTrade,
	}, nil
}

func (c *BinanceClient) GetBalance(ctx context.Context, asset string) (model.Balance, error) {
	var resp binanceAccount
	if err := c.signedGet(ctx, "/api/v3/account", nil, &resp); err != nil {
		return model.Balance{}, err
	}

	for _, b := range resp.Balances {
		if b.Asset != asset {
			continue
		}

		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil {
			return model.Balance{}, errors.Wrapf(err, "parse free balance: %s", b.Free)
		}

		locked, err := strconv.ParseFloat(b.Locked, 64)
		if err != nil {
			return model.Balance{}, errors.Wrapf(err, "parse locked balance: %s", b.Locked)
		}

		return model.Balance{Asset: asset, Free: free, Locked: locked}, nil
	}

	return model.Balance{}, errors.Wrapf(exception.ErrAssetNotFound, "asset: %s", asset)
}

func (c *BinanceClient) GetSymbolInfo(ctx context.Context, baseAsset, quoteAsset string) (model.SymbolInformation, error) {
	symbol := baseAsset + quoteAsset

	params := url.Values{}
	params.Set("symbol", symbol)

	var resp struct {
		Symbols []struct {
			Symbol              string `json:"symbol"`
			Status              string `json:"status"`
			BaseAsset           string `json:"baseAsset"`
			QuoteAsset          string `json:"quoteAsset"`
			BaseAssetPrecision  int    `json:"baseAssetPrecision"`
			QuoteAssetPrecision int    `json:"quoteAssetPrecision"`
		} `json:"symbols"`
	}

	if err := c.get(ctx, "/api/v3/exchangeInfo", params, &resp); err != nil {
		return model.SymbolInformation{}, err
	}

	for _, s := range resp.Symbols {
		if s.Symbol != symbol {
			continue
		}

		if s.Status != "TRADING" {
			return model.SymbolInformation{}, errors.Wrapf(exception.ErrTradingDisabled, "symbol: %s, status: %s", symbol, s.Status)
		}

		return model.SymbolInformation{
			BaseAsset:           s.BaseAsset,
			QuoteAsset:          s.QuoteAsset,
			BaseAssetPrecision:  int32(s.BaseAssetPrecision),
			QuoteAssetPrecision: int32(s.QuoteAssetPrecision),
		}, nil
	}

	return model.SymbolInformation{}, errors.Wrapf(exception.ErrSymbolNotFound, "symbol: %s", symbol)
}

type binanceOrder struct {
	OrderID      int64  `json:"orderId"`
	Status       string `json:"status"`
	Side         string `json:"side"`
	Type         string `json:"type"`
	Price        string `json:"price"`
	OrigQty      string `json:"origQty"`
	ExecutedQty  string `json:"executedQty"`
	TransactTime int64  `json:"transactTime"`
	Time         int64  `json:"time"`
	Fills        []struct {
		Price           string `json:"price"`
		Qty             string `json:"qty"`
		Commission      string `json:"commission"`
		CommissionAsset string `json:"commissionAsset"`
	} `json:"fills"`
}

func parseOrderSide(s string) enum.OrderSide {
	if s == "SELL" {
		return enum.OrderSideSell
	}
	return enum.OrderSideBuy
}

func parseOrderType(s string) enum.OrderType {
	if s == "LIMIT" {
		return enum.OrderTypeLimit
	}
	return enum.OrderTypeMarket
}

func parseOrderStatus(s string) enum.OrderStatus {
	switch s {
	case "NEW":
		return enum.OrderStatusNew
	case "PARTIALLY_FILLED":
		return enum.OrderStatusPartiallyFilled
	case "FILLED":
		return enum.OrderStatusFilled
	case "CANCELED", "EXPIRED", "REJECTED":
		return enum.OrderStatusCanceled
	default:
		return enum.OrderStatusNew
	}
}

func (c *BinanceClient) toOrder(raw binanceOrder, baseAsset, quoteAsset string) (model.Order, error) {
	origQty, err := strconv.ParseFloat(raw.OrigQty, 64)
	if err != nil {
		return model.Order{}, errors.Wrapf(err, "parse orig qty: %s", raw.OrigQty)
	}

	executedQty, err := strconv.ParseFloat(raw.ExecutedQty, 64)
	if err != nil {
		return model.Order{}, errors.Wrapf(err, "parse executed qty: %s", raw.ExecutedQty)
	}

	price, _ := strconv.ParseFloat(raw.Price, 64)

	// market orders report price 0; derive the volume-weighted fill price
	var (
		commission      float64
		commissionAsset string
		fillVolume      float64
		fillQty         float64
	)
	for _, fill := range raw.Fills {
		p, err := strconv.ParseFloat(fill.Price, 64)
		if err != nil {
			return model.Order{}, errors.Wrapf(err, "parse fill price: %s", fill.Price)
		}
		q, err := strconv.ParseFloat(fill.Qty, 64)
		if err != nil {
			return model.Order{}, errors.Wrapf(err, "parse fill qty: %s", fill.Qty)
		}
		fee, err := strconv.ParseFloat(fill.Commission, 64)
		if err != nil {
			return model.Order{}, errors.Wrapf(err, "parse fill commission: %s", fill.Commission)
		}

		fillVolume += p * q
		fillQty += q
		commission += fee
		commissionAsset = fill.CommissionAsset
	}

	if price == 0 && fillQty > 0 {
		price = fillVolume / fillQty
	}

	timestamp := raw.TransactTime
	if timestamp == 0 {
		timestamp = raw.Time
	}

	return model.Order{
		OrderID:         strconv.FormatInt(raw.OrderID, 10),
		Exchange:        c.PlatformName(),
		BaseAsset:       baseAsset,
		QuoteAsset:      quoteAsset,
		Side:            parseOrderSide(raw.Side),
		Type:            parseOrderType(raw.Type),
		Status:          parseOrderStatus(raw.Status),
		Price:           price,
		OrigQty:         origQty,
		ExecutedQty:     executedQty,
		Commission:      commission,
		CommissionAsset: commissionAsset,
		Timestamp:       timestamp,
	}, nil
}

func (c *BinanceClient) GetOrder(ctx context.Context, baseAsset, quoteAsset, orderID string) (model.Order, error) {
	params := url.Values{}
	params.Set("symbol", baseAsset+quoteAsset)
	params.Set("orderId", orderID)

	var resp binanceOrder
	if err := c.signedGet(ctx, "/api/v3/order", params, &resp); err != nil {
		return model.Order{}, err
	}

	return c.toOrder(resp, baseAsset, quoteAsset)
}

func (c *BinanceClient) placeOrder(ctx context.Context, baseAsset, quoteAsset, side string, orderType string, qty, price float64) (model.Order, error) {
	params := url.Values{}
	params.Set("symbol", baseAsset+quoteAsset)
	params.Set("side", side)
	params.Set("type", orderType)
	params.Set("quantity", strconv.FormatFloat(qty, 'f', -1, 64))
	params.Set("newOrderRespType", "FULL")
	// tag every submission so fills can be reconciled against our logs
	params.Set("newClientOrderId", uuid.NewString())

	if orderType == "LIMIT" {
		params.Set("price", strconv.FormatFloat(price, 'f', -1, 64))
		params.Set("timeInForce", "GTC")
	}

	var resp binanceOrder
	if err := c.signedPost(ctx, "/api/v3/order", params, &resp); err != nil {
		return model.Order{}, err
	}

	return c.toOrder(resp, baseAsset, quoteAsset)
}

func (c *BinanceClient) MarketBuy(ctx context.Context, baseAsset, quoteAsset string, qty float64) (model.Order, error) {
	return c.placeOrder(ctx, baseAsset, quoteAsset, "BUY", "MARKET", qty, 0)
}

func (c *BinanceClient) MarketSell(ctx context.Context, baseAsset, quoteAsset string, qty float64) (model.Order, error) {
	return c.placeOrder(ctx, baseAsset, quoteAsset, "SELL", "MARKET", qty, 0)
}

func (c *BinanceClient) LimitBuy(ctx context.Context, baseAsset, quoteAsset string, qty, price float64) (model.Order, error) {
	return c.placeOrder(ctx, baseAsset, quoteAsset, "BUY", "LIMIT", qty, price)
}

func (c *BinanceClient) LimitSell(ctx context.Context, baseAsset, quoteAsset string, qty, price float64) (model.Order, error) {
	return c.placeOrder(ctx, baseAsset, quoteAsset, "SELL", "LIMIT", qty, price)
}

func (c *BinanceClient) GetPrice(ctx context.Context, baseAsset, quoteAsset string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", baseAsset+quoteAsset)

	var resp struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}

	if err := c.get(ctx, "/api/v3/ticker/price", params, &resp); err != nil {
		return 0, err
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse price: %s", resp.Price)
	}

	return price, nil
}

// Klines fetches one page of historical bars. The response rows are
// positional arrays, numeric fields arrive as strings.
func (c *BinanceClient) Klines(ctx context.Context, market enum.Market, symbol, interval string, startMs, endMs int64, limit int) ([]model.Kline, error) {
	if market != enum.MarketSpot {
		return nil, errors.Wrapf(exception.ErrInvalidArgument, "market: %d", market)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("startTime", strconv.FormatInt(startMs, 10))
	params.Set("endTime", strconv.FormatInt(endMs, 10))
	params.Set("limit", strconv.Itoa(limit))

	var rows [][]json.RawMessage
	if err := c.get(ctx, "/api/v3/klines", params, &rows); err != nil {
		return nil, err
	}

	klines := make([]model.Kline, 0, len(rows))
	for _, row := range rows {
		kline, err := c.parseKlineRow(row, market, symbol, interval)
		if err != nil {
			return nil, err
		}
		klines = append(klines, kline)
	}

	return klines, nil
}

func (c *BinanceClient) parseKlineRow(row []json.RawMessage, market enum.Market, symbol, interval string) (model.Kline, error) {
	if len(row) < 6 {
		return model.Kline{}, errors.Errorf("malformed kline row, fields: %d", len(row))
	}

	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return model.Kline{}, errors.Wrap(err, "parse kline open time")
	}

	fields := make([]float64, 5)
	for i := range fields {
		var raw string
		if err := json.Unmarshal(row[i+1], &raw); err != nil {
			return model.Kline{}, errors.Wrapf(err, "parse kline field %d", i+1)
		}

		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.Kline{}, errors.Wrapf(err, "parse kline value: %s", raw)
		}
		fields[i] = v
	}

	return model.Kline{
		Exchange: c.PlatformName(),
		Market:   market,
		Symbol:   strings.ToUpper(symbol),
		Interval: interval,
		OpenTime: openTime,
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}, nil
}
