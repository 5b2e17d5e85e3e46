// Package wallet implements the read-only balance and price queries.
package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/saifu-wallet/gateway/internal/apierr"
	"github.com/saifu-wallet/gateway/internal/upstream/helius"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type NodeClient interface {
	GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error)
}

type Indexer interface {
	GetBalances(ctx context.Context, address string) (*helius.Balances, error)
}

type PriceOracle interface {
	SolanaUSD(ctx context.Context) (*float64, error)
}

type BalanceService struct {
	node    NodeClient
	indexer Indexer
	logger  *zap.SugaredLogger
}

func NewBalanceService(node NodeClient, indexer Indexer, logger *zap.SugaredLogger) *BalanceService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &BalanceService{node: node, indexer: indexer, logger: logger}
}

// NativeBalance returns the SOL balance of address. The address is
// validated before any upstream call.
func (s *BalanceService) NativeBalance(ctx context.Context, address string) (Balance, error) {
	owner, err := solana.PublicKeyFromBase58(strings.TrimSpace(address))
	if err != nil {
		return Balance{}, apierr.Validation(fmt.Sprintf("Invalid address: %s", address))
	}

	lamports, err := s.node.GetBalance(ctx, owner)
	if err != nil {
		return Balance{}, err
	}

	amount := decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0)
	return Balance{Amount: fromSmallestUnit(amount, NativeDecimals), Unit: UnitNative}, nil
}

// TokenBalances returns every token holding reported by the indexer.
// Entries without an amount or decimals are dropped.
func (s *BalanceService) TokenBalances(ctx context.Context, address string) ([]TokenDescriptor, error) {
	raw, err := s.indexer.GetBalances(ctx, address)
	if err != nil {
		return nil, err
	}

	entries := raw.TokenList()
	tokens := make([]TokenDescriptor, 0, len(entries))
	for i, entry := range entries {
		tok, reason := normalizeToken(entry)
		if reason != "" {
			s.logger.Warnw("Dropping token entry", "address", address, "index", i, "reason", reason)
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func normalizeToken(entry *helius.Token) (TokenDescriptor, string) {
	if entry == nil {
		return TokenDescriptor{}, "entry is not an object"
	}
	if entry.Decimals == nil {
		return TokenDescriptor{}, "missing decimals"
	}
	if *entry.Decimals < 0 {
		return TokenDescriptor{}, "negative decimals"
	}
	if *entry.Decimals > MaxTokenDecimals {
		return TokenDescriptor{}, "decimals out of range"
	}
	if entry.Amount == "" {
		return TokenDescriptor{}, "missing amount"
	}
	amount, err := decimal.NewFromString(entry.Amount.String())
	if err != nil {
		return TokenDescriptor{}, "amount is not numeric"
	}

	return TokenDescriptor{
		Mint:   entry.Mint,
		Symbol: orDefault(entry.Symbol, DefaultSymbol),
		Name:   orDefault(entry.Name, DefaultName),
		Logo:   entry.Logo,
		Balance: Balance{
			Amount: fromSmallestUnit(amount, int32(*entry.Decimals)),
			Unit:   UnitToken,
		},
	}, ""
}

func orDefault(s *string, def string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return def
	}
	return *s
}

type PriceService struct {
	oracle PriceOracle
}

func NewPriceService(oracle PriceOracle) *PriceService {
	return &PriceService{oracle: oracle}
}

// NativeAssetPriceUSD returns the SOL/USD price, or nil when unavailable.
func (s *PriceService) NativeAssetPriceUSD(ctx context.Context) (*float64, error) {
	return s.oracle.SolanaUSD(ctx)
}
