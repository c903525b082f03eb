package service

import "github.com/bytedance/sonic"

func unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

type positionRiskItem struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	UnRealizedProfit string `json:"unRealizedProfit"`
	Leverage         string `json:"leverage"`
	LiquidationPrice string `json:"liquidationPrice"`
}

type orderResponse struct {
	OrderID int64  `json:"orderId"`
	Symbol  string `json:"symbol"`
	Status  string `json:"status"`
	Type    string `json:"type"`
	Side    string `json:"side"`
}

type openOrderItem struct {
	OrderID int64  `json:"orderId"`
	Symbol  string `json:"symbol"`
	Type    string `json:"type"`
	Status  string `json:"status"`
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Filters []struct {
			FilterType string `json:"filterType"`
			TickSize   string `json:"tickSize"`
			StepSize   string `json:"stepSize"`
			MinQty     string `json:"minQty"`
			Notional   string `json:"notional"`
		} `json:"filters"`
	} `json:"symbols"`
}

type leverageBracketItem struct {
	Symbol   string `json:"symbol"`
	Brackets []struct {
		Bracket          int `json:"bracket"`
		InitialLeverage  int `json:"initialLeverage"`
	} `json:"brackets"`
}
