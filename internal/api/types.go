package api

import "github.com/saifu-wallet/gateway/internal/wallet"

type BalanceResponse struct {
	Balance float64 `json:"balance"`
}

type TokenBalancesResponse struct {
	Tokens []wallet.TokenDescriptor `json:"tokens"`
}

// PriceResponse carries a null price when the oracle has none.
type PriceResponse struct {
	Price *float64 `json:"price"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
