package service

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"perp_bot/internal/models"

	"github.com/shopspring/decimal"
)

const defaultMaxLeverage = 125

// FilterResolver резолвит правила квантования символа и кеширует их
// навсегда: тики и шаги биржа на лету не меняет.
type FilterResolver struct {
	client *Client

	mu    sync.RWMutex
	cache map[string]models.SymbolFilters
}

func NewFilterResolver(client *Client) *FilterResolver {
	return &FilterResolver{
		client: client,
		cache:  make(map[string]models.SymbolFilters),
	}
}

func (r *FilterResolver) Resolve(ctx context.Context, symbol string) (models.SymbolFilters, error) {
	r.mu.RLock()
	f, ok := r.cache[symbol]
	r.mu.RUnlock()
	if ok {
		return f, nil
	}

	f, err := r.fetch(ctx, symbol)
	if err != nil {
		return models.SymbolFilters{}, err
	}

	r.mu.Lock()
	r.cache[symbol] = f
	r.mu.Unlock()
	return f, nil
}

func (r *FilterResolver) fetch(ctx context.Context, symbol string) (models.SymbolFilters, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	data, err := r.client.doRead(ctx, "/fapi/v1/exchangeInfo", params, false)
	if err != nil {
		return models.SymbolFilters{}, fmt.Errorf("exchangeInfo %s: %w", symbol, err)
	}

	var info exchangeInfoResponse
	if err := unmarshal(data, &info); err != nil {
		return models.SymbolFilters{}, fmt.Errorf("exchangeInfo decode: %w", err)
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}

		f := models.SymbolFilters{
			Symbol:      symbol,
			TickSize:    decimal.NewFromFloat(0.01),
			StepSize:    decimal.NewFromFloat(0.001),
			MaxLeverage: defaultMaxLeverage,
		}
		for _, flt := range s.Filters {
			switch flt.FilterType {
			case "PRICE_FILTER":
				if v, err := decimal.NewFromString(flt.TickSize); err == nil && v.IsPositive() {
					f.TickSize = v
					f.PriceDecimals = models.DecimalsFromStep(flt.TickSize)
				}
			case "LOT_SIZE", "MARKET_LOT_SIZE":
				if v, err := decimal.NewFromString(flt.StepSize); err == nil && v.IsPositive() {
					f.StepSize = v
					f.QtyDecimals = models.DecimalsFromStep(flt.StepSize)
				}
				if v, err := decimal.NewFromString(flt.MinQty); err == nil {
					f.MinQty = v
				}
			case "MIN_NOTIONAL":
				if v, err := decimal.NewFromString(flt.Notional); err == nil {
					f.MinNotional = v
				}
			}
		}
		if lev, err := r.maxLeverage(ctx, symbol); err == nil && lev > 0 {
			f.MaxLeverage = lev
		}
		return f, nil
	}

	return models.SymbolFilters{}, fmt.Errorf("exchangeInfo: symbol %s not found", symbol)
}

func (r *FilterResolver) maxLeverage(ctx context.Context, symbol string) (int, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	data, err := r.client.doRead(ctx, "/fapi/v1/leverageBracket", params, true)
	if err != nil {
		return 0, err
	}

	var items []leverageBracketItem
	if err := unmarshal(data, &items); err != nil {
		return 0, err
	}

	max := 0
	for _, it := range items {
		if it.Symbol != symbol && len(items) > 1 {
			continue
		}
		for _, b := range it.Brackets {
			if b.InitialLeverage > max {
				max = b.InitialLeverage
			}
		}
	}
	if max == 0 {
		return 0, fmt.Errorf("leverageBracket: no brackets for %s", symbol)
	}
	return max, nil
}
