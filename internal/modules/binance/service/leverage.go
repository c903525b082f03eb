package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"perp_bot/pkg/logger"
)

func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage < 1 {
		return fmt.Errorf("SetLeverage: leverage %d < 1", leverage)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))

	if _, err := c.doMutate(ctx, http.MethodPost, "/fapi/v1/leverage", params); err != nil {
		return fmt.Errorf("SetLeverage %s->%d: %w", symbol, leverage, err)
	}
	logger.Info("[%s] leverage set to %d", symbol, leverage)
	return nil
}

// SetMarginTypeCrossed переводит символ на кросс-маржу. "No need to change"
// от биржи — не ошибка.
func (c *Client) SetMarginTypeCrossed(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("marginType", "CROSSED")

	_, err := c.doMutate(ctx, http.MethodPost, "/fapi/v1/marginType", params)
	if err != nil {
		if strings.Contains(err.Error(), "No need to change margin type") {
			return nil
		}
		return fmt.Errorf("SetMarginTypeCrossed %s: %w", symbol, err)
	}
	return nil
}
