package wallet

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// NativeDecimals is log10 of lamports per SOL.
const NativeDecimals = 9

// MaxTokenDecimals is the largest decimals value a mint can declare (u8).
const MaxTokenDecimals = 255

const (
	DefaultSymbol = "Unknown"
	DefaultName   = "Unknown Token"
)

type Unit string

const (
	UnitNative Unit = "native"
	UnitToken  Unit = "token"
)

// Balance is a human-readable amount derived from a smallest-unit integer.
type Balance struct {
	Amount decimal.Decimal
	Unit   Unit
}

// Float returns the amount as a JSON-friendly float.
func (b Balance) Float() float64 {
	return b.Amount.InexactFloat64()
}

// TokenDescriptor is one normalized token holding. Symbol and Name are never
// empty.
type TokenDescriptor struct {
	Mint    string
	Symbol  string
	Name    string
	Logo    *string
	Balance Balance
}

type tokenDescriptorJSON struct {
	Mint    string  `json:"mint"`
	Symbol  string  `json:"symbol"`
	Name    string  `json:"name"`
	Logo    *string `json:"logo"`
	Balance float64 `json:"balance"`
}

func (t TokenDescriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(tokenDescriptorJSON{
		Mint:    t.Mint,
		Symbol:  t.Symbol,
		Name:    t.Name,
		Logo:    t.Logo,
		Balance: t.Balance.Float(),
	})
}

// fromSmallestUnit divides amount by 10^decimals without losing precision.
func fromSmallestUnit(amount decimal.Decimal, decimals int32) decimal.Decimal {
	return amount.Shift(-decimals)
}
