package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"perp_bot/internal/models"
	"perp_bot/pkg/logger"
)

// PlaceMarketOrder открывает рыночный ордер, возвращает orderId.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side models.Side, qty string) (int64, error) {
	if qty == "" {
		return 0, fmt.Errorf("PlaceMarketOrder: empty qty")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", "MARKET")
	params.Set("quantity", qty)

	data, err := c.doMutate(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return 0, fmt.Errorf("PlaceMarketOrder: %w", err)
	}

	var r orderResponse
	if err := unmarshal(data, &r); err != nil {
		return 0, fmt.Errorf("PlaceMarketOrder decode: %w; body=%s", err, string(data))
	}
	if r.OrderID == 0 {
		return 0, fmt.Errorf("PlaceMarketOrder: empty orderId RAW=%s", string(data))
	}
	return r.OrderID, nil
}

// PlaceStopMarket ставит STOP_MARKET по mark price. qty="" + closePosition
// закрывает всю позицию по срабатыванию.
func (c *Client) PlaceStopMarket(ctx context.Context, symbol string, side models.Side, stopPrice string, qty string, closePosition bool) (int64, error) {
	return c.placeTrigger(ctx, "STOP_MARKET", symbol, side, stopPrice, qty, closePosition)
}

// PlaceTakeProfitMarket ставит TAKE_PROFIT_MARKET. Частичные ноги передают
// qty и closePosition=false — иначе биржа закроет весь остаток.
func (c *Client) PlaceTakeProfitMarket(ctx context.Context, symbol string, side models.Side, stopPrice string, qty string, closePosition bool) (int64, error) {
	return c.placeTrigger(ctx, "TAKE_PROFIT_MARKET", symbol, side, stopPrice, qty, closePosition)
}

func (c *Client) placeTrigger(ctx context.Context, ordType, symbol string, side models.Side, stopPrice, qty string, closePosition bool) (int64, error) {
	if stopPrice == "" {
		return 0, fmt.Errorf("%s: empty stopPrice", ordType)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", ordType)
	params.Set("stopPrice", stopPrice)
	params.Set("workingType", "MARK_PRICE")

	if closePosition {
		params.Set("closePosition", "true")
	} else if qty != "" {
		params.Set("quantity", qty)
	} else {
		return 0, fmt.Errorf("%s: neither qty nor closePosition", ordType)
	}

	data, err := c.doMutate(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", ordType, err)
	}

	var r orderResponse
	if err := unmarshal(data, &r); err != nil {
		return 0, fmt.Errorf("%s decode: %w; body=%s", ordType, err, string(data))
	}
	if r.OrderID == 0 {
		return 0, fmt.Errorf("%s: empty orderId RAW=%s", ordType, string(data))
	}
	return r.OrderID, nil
}

func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	if _, err := c.doMutate(ctx, http.MethodDelete, "/fapi/v1/order", params); err != nil {
		return fmt.Errorf("CancelOrder %s/%d: %w", symbol, orderID, err)
	}
	return nil
}

func (c *Client) OpenOrders(ctx context.Context) ([]models.OpenOrder, error) {
	data, err := c.doRead(ctx, "/fapi/v1/openOrders", url.Values{}, true)
	if err != nil {
		return nil, fmt.Errorf("OpenOrders: %w", err)
	}

	var items []openOrderItem
	if err := unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("OpenOrders decode: %w; body=%s", err, string(data))
	}

	out := make([]models.OpenOrder, 0, len(items))
	for _, it := range items {
		out = append(out, models.OpenOrder(it))
	}
	return out, nil
}

// CancelOpenEntryOrders снимает висящие лимитки входа. Вызывается на старте
// и при остановке, чтобы не оставлять сиротскую экспозицию.
func (c *Client) CancelOpenEntryOrders(ctx context.Context) error {
	orders, err := c.OpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("CancelOpenEntryOrders: %w", err)
	}

	cancelled := 0
	for _, o := range orders {
		if o.Type != "LIMIT" {
			continue
		}
		if err := c.CancelOrder(ctx, o.Symbol, o.OrderID); err != nil {
			logger.Error("[%s] cancel entry order %d: %v", o.Symbol, o.OrderID, err)
			continue
		}
		cancelled++
	}
	if cancelled > 0 {
		logger.Info("cancelled %d pending entry orders", cancelled)
	}
	return nil
}
