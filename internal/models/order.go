package models

// OpenOrder — открытый ордер с биржи (для кеша pending-входов).
type OpenOrder struct {
	OrderID int64
	Symbol  string
	Type    string
	Status  string
}
