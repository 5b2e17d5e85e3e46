package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/saifu-wallet/gateway/internal/apierr"
	"github.com/saifu-wallet/gateway/internal/upstream/helius"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const owner = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

type MockNode struct {
	mock.Mock
}

func (m *MockNode) GetBalance(ctx context.Context, pk solana.PublicKey) (uint64, error) {
	args := m.Called(ctx, pk)
	return args.Get(0).(uint64), args.Error(1)
}

type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) GetBalances(ctx context.Context, address string) (*helius.Balances, error) {
	args := m.Called(ctx, address)
	b, _ := args.Get(0).(*helius.Balances)
	return b, args.Error(1)
}

type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) SolanaUSD(ctx context.Context) (*float64, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).(*float64)
	return p, args.Error(1)
}

func TestNativeBalance(t *testing.T) {
	tests := []struct {
		name     string
		lamports uint64
		want     string
	}{
		{"zero", 0, "0"},
		{"one and a half", 1_500_000_000, "1.5"},
		{"one lamport", 1, "0.000000001"},
		{"max", ^uint64(0), "18446744073.709551615"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := new(MockNode)
			node.On("GetBalance", mock.Anything, solana.MustPublicKeyFromBase58(owner)).Return(tt.lamports, nil)

			svc := NewBalanceService(node, nil, zap.NewNop().Sugar())
			got, err := svc.NativeBalance(context.Background(), owner)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Amount.String())
			assert.Equal(t, UnitNative, got.Unit)
		})
	}
}

func TestNativeBalance_InvalidAddressMakesNoCall(t *testing.T) {
	node := new(MockNode)
	svc := NewBalanceService(node, nil, nil)

	for _, addr := range []string{"", "not-base58-0OIl", "abc"} {
		_, err := svc.NativeBalance(context.Background(), addr)
		require.Error(t, err)
		assert.True(t, apierr.Is(err, apierr.KindValidation), addr)
	}
	node.AssertNotCalled(t, "GetBalance", mock.Anything, mock.Anything)
}

func TestNativeBalance_UpstreamFailure(t *testing.T) {
	node := new(MockNode)
	node.On("GetBalance", mock.Anything, mock.Anything).Return(uint64(0), apierr.Upstream(errors.New("connection refused")))

	_, err := NewBalanceService(node, nil, nil).NativeBalance(context.Background(), owner)
	require.Error(t, err)
	assert.Equal(t, 500, apierr.StatusOf(err))
	node.AssertNumberOfCalls(t, "GetBalance", 1)
}

func TestTokenBalances_Normalizes(t *testing.T) {
	indexer := new(MockIndexer)
	indexer.On("GetBalances", mock.Anything, owner).Return(&helius.Balances{Tokens: json.RawMessage(`[
		{"mint":"USDC","amount":2500000,"decimals":6,"symbol":"USDC","name":"USD Coin","logo":"https://logo"},
		{"mint":"BARE","amount":42,"decimals":0},
		{"mint":"BLANK","amount":5,"decimals":1,"symbol":"  ","name":""},
		{"mint":"NODEC","amount":5},
		{"mint":"NOAMT","decimals":2},
		{"mint":"WIDE","amount":5,"decimals":4294967296},
		{"mint":"HUGE","amount":5,"decimals":20000000},
		7
	]`)}, nil)

	core, logs := observer.New(zapcore.WarnLevel)
	svc := NewBalanceService(nil, indexer, zap.New(core).Sugar())

	tokens, err := svc.TokenBalances(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, tokens, 3)

	assert.Equal(t, "USDC", tokens[0].Symbol)
	assert.Equal(t, "2.5", tokens[0].Balance.Amount.String())
	require.NotNil(t, tokens[0].Logo)

	assert.Equal(t, "BARE", tokens[1].Mint)
	assert.Equal(t, DefaultSymbol, tokens[1].Symbol)
	assert.Equal(t, DefaultName, tokens[1].Name)
	assert.Nil(t, tokens[1].Logo)
	assert.Equal(t, "42", tokens[1].Balance.Amount.String())

	assert.Equal(t, DefaultSymbol, tokens[2].Symbol)
	assert.Equal(t, DefaultName, tokens[2].Name)
	assert.Equal(t, "0.5", tokens[2].Balance.Amount.String())

	assert.Equal(t, 5, logs.Len())

	out, err := json.Marshal(tokens[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"mint":"BARE","symbol":"Unknown","name":"Unknown Token","logo":null,"balance":42}`, string(out))
}

func TestTokenBalances_AbsentList(t *testing.T) {
	for _, raw := range []string{``, `null`, `{"x":1}`} {
		indexer := new(MockIndexer)
		indexer.On("GetBalances", mock.Anything, owner).Return(&helius.Balances{Tokens: json.RawMessage(raw)}, nil)

		tokens, err := NewBalanceService(nil, indexer, nil).TokenBalances(context.Background(), owner)
		require.NoError(t, err)
		assert.NotNil(t, tokens)
		assert.Empty(t, tokens)
	}
}

func TestTokenBalances_PropagatesErrors(t *testing.T) {
	indexer := new(MockIndexer)
	indexer.On("GetBalances", mock.Anything, owner).Return(nil, apierr.ErrMissingCredential)

	_, err := NewBalanceService(nil, indexer, nil).TokenBalances(context.Background(), owner)
	assert.ErrorIs(t, err, apierr.ErrMissingCredential)
}

func TestNativeAssetPriceUSD(t *testing.T) {
	price := 150.25
	oracle := new(MockOracle)
	oracle.On("SolanaUSD", mock.Anything).Return(&price, nil).Once()
	oracle.On("SolanaUSD", mock.Anything).Return(nil, nil).Once()

	svc := NewPriceService(oracle)

	got, err := svc.NativeAssetPriceUSD(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 150.25, *got)

	got, err = svc.NativeAssetPriceUSD(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}
