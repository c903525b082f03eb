package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"perp_bot/internal/models"
)

func (c *Client) LastPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	data, err := c.doRead(ctx, "/fapi/v1/ticker/price", params, false)
	if err != nil {
		return 0, fmt.Errorf("LastPrice %s: %w", symbol, err)
	}

	var r struct {
		Price string `json:"price"`
	}
	if err := unmarshal(data, &r); err != nil {
		return 0, fmt.Errorf("LastPrice decode: %w; body=%s", err, string(data))
	}

	px, err := strconv.ParseFloat(r.Price, 64)
	if err != nil || px <= 0 {
		return 0, fmt.Errorf("LastPrice %s: bad price %q", symbol, r.Price)
	}
	return px, nil
}

// OpenPositions возвращает только позиции с ненулевым объёмом.
func (c *Client) OpenPositions(ctx context.Context) ([]models.PositionInfo, error) {
	data, err := c.doRead(ctx, "/fapi/v2/positionRisk", url.Values{}, true)
	if err != nil {
		return nil, fmt.Errorf("OpenPositions: %w", err)
	}

	var items []positionRiskItem
	if err := unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("OpenPositions decode: %w; body=%s", err, string(data))
	}

	out := make([]models.PositionInfo, 0, len(items))
	for _, it := range items {
		amt, _ := strconv.ParseFloat(it.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(it.EntryPrice, 64)
		mark, _ := strconv.ParseFloat(it.MarkPrice, 64)
		upl, _ := strconv.ParseFloat(it.UnRealizedProfit, 64)
		lev, _ := strconv.Atoi(it.Leverage)
		liq, _ := strconv.ParseFloat(it.LiquidationPrice, 64)

		out = append(out, models.PositionInfo{
			Symbol:           it.Symbol,
			PositionAmt:      amt,
			EntryPrice:       entry,
			MarkPrice:        mark,
			UnrealizedProfit: upl,
			Leverage:         lev,
			LiquidationPrice: liq,
		})
	}
	return out, nil
}

// AccountEquity — totalWalletBalance в USDT.
func (c *Client) AccountEquity(ctx context.Context) (float64, error) {
	data, err := c.doRead(ctx, "/fapi/v2/account", url.Values{}, true)
	if err != nil {
		return 0, fmt.Errorf("AccountEquity: %w", err)
	}

	var r struct {
		TotalWalletBalance string `json:"totalWalletBalance"`
	}
	if err := unmarshal(data, &r); err != nil {
		return 0, fmt.Errorf("AccountEquity decode: %w; body=%s", err, string(data))
	}

	eq, err := strconv.ParseFloat(r.TotalWalletBalance, 64)
	if err != nil {
		return 0, fmt.Errorf("AccountEquity parse: %w (%q)", err, r.TotalWalletBalance)
	}
	return eq, nil
}
