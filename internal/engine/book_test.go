package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skuldlabs/clob/internal/common"
)

func newTestBook(tradingEnabled bool) (*Book, *recordingSink) {
	sink := &recordingSink{}
	return NewBook("TEST", tradingEnabled, sink), sink
}

func TestBook_EmptyBookRest(t *testing.T) {
	book, sink := newTestBook(true)

	result := book.AddLimitOrder(common.Buy, 100, 50, 1, 1, common.GTC)

	require.NoError(t, result.Err)
	assert.Equal(t, []string{"A, 1, 1", "B, B, 50, 100"}, sink.events)
	assert.Equal(t, uint64(50), book.Bids.MaxPrice())
	assert.Equal(t, uint64(100), book.Bids.Volume)
}

func TestBook_SimpleCrossEqualSize(t *testing.T) {
	book, sink := newTestBook(true)
	book.AddLimitOrder(common.Buy, 100, 50, 1, 1, common.GTC)
	sink.events = nil

	result := book.AddLimitOrder(common.Sell, 100, 50, 2, 2, common.GTC)

	require.NoError(t, result.Err)
	assert.Equal(t, []string{
		"A, 2, 2",
		"T, 2, 2, 1, 1, 50, 100",
		"B, B, -, -",
	}, sink.events)
	assert.Equal(t, uint64(0), book.Bids.Volume)
	assert.Equal(t, uint64(0), book.Asks.Volume)
}

func TestBook_PartialTakerRestingRemainder(t *testing.T) {
	book, sink := newTestBook(true)
	book.AddLimitOrder(common.Sell, 5, 10, 1, 1, common.GTC)
	sink.events = nil

	result := book.AddLimitOrder(common.Buy, 8, 12, 2, 2, common.GTC)

	require.NoError(t, result.Err)
	assert.Equal(t, []string{
		"A, 2, 2",
		"T, 2, 2, 1, 1, 10, 5",
		"B, S, -, -",
		"A, 2, 2",
		"B, B, 12, 3",
	}, sink.events)
	assert.Equal(t, uint64(12), book.Bids.MaxPrice())
	assert.Equal(t, uint64(3), book.Bids.Volume)
	assert.Equal(t, uint64(0), book.Asks.Volume)
}

func TestBook_PartialMakerHeadTrimmed(t *testing.T) {
	book, sink := newTestBook(true)
	book.AddLimitOrder(common.Sell, 10, 10, 1, 1, common.GTC)
	sink.events = nil

	result := book.AddLimitOrder(common.Buy, 4, 10, 2, 2, common.GTC)

	require.NoError(t, result.Err)
	assert.Equal(t, []string{
		"A, 2, 2",
		"T, 2, 2, 1, 1, 10, 4",
		"B, S, 10, 6",
	}, sink.events)
	assert.Equal(t, uint64(6), book.Asks.Volume)
	assert.Equal(t, uint64(0), book.Bids.Volume)
}

func TestBook_TradingDisabledReject(t *testing.T) {
	book, sink := newTestBook(false)
	book.AddLimitOrder(common.Sell, 5, 10, 1, 1, common.GTC)
	sink.events = nil

	result := book.AddLimitOrder(common.Buy, 5, 10, 9, 9, common.GTC)

	assert.ErrorIs(t, result.Err, ErrTradingNotEnabled)
	assert.Equal(t, []string{"R, 9, 9"}, sink.events)
	assert.Equal(t, uint64(5), book.Asks.Volume, "state must be unchanged by a rejected order")
}

func TestBook_CancelWithBestPriceChange(t *testing.T) {
	book, sink := newTestBook(true)
	book.AddLimitOrder(common.Buy, 5, 10, 1, 1, common.GTC)
	book.AddLimitOrder(common.Buy, 3, 9, 1, 2, common.GTC)
	sink.events = nil

	removed, ok := book.CancelOrderUser(1, 1)

	require.True(t, ok)
	assert.Equal(t, uint64(1), removed.ID)
	assert.Equal(t, []string{"A, 1, 1", "B, B, 9, 5"}, sink.events)
	assert.Equal(t, uint64(9), book.Bids.MaxPrice())
}

func TestBook_DuplicateOrderIDIsRejected(t *testing.T) {
	book, sink := newTestBook(true)
	book.AddLimitOrder(common.Buy, 5, 10, 1, 1, common.GTC)
	sink.events = nil

	result := book.AddLimitOrder(common.Buy, 5, 10, 1, 1, common.GTC)

	assert.ErrorIs(t, result.Err, ErrOrderAlreadyExists)
	assert.Empty(t, sink.events, "a rejected duplicate emits no events")
}

func TestBook_CancelUnknownIDIsNoop(t *testing.T) {
	book, sink := newTestBook(true)

	_, ok := book.CancelOrderUser(1, 404)

	assert.False(t, ok)
	assert.Empty(t, sink.events)
}

func TestBook_Flush_ResetsToGroundState(t *testing.T) {
	book, _ := newTestBook(true)
	book.AddLimitOrder(common.Buy, 5, 10, 1, 1, common.GTC)
	book.AddLimitOrder(common.Sell, 5, 11, 2, 2, common.GTC)

	book.Flush()

	assert.Equal(t, uint64(0), book.Bids.MaxPrice())
	assert.Equal(t, sentinelMaxPrice, book.Asks.MinPrice())
	assert.Equal(t, uint64(0), book.Bids.NumOrders)
	assert.Equal(t, uint64(0), book.Asks.NumOrders)
}

func TestBook_MarketOrder_IgnoresTradingEnabled(t *testing.T) {
	book, sink := newTestBook(false)
	book.AddLimitOrder(common.Sell, 5, 10, 1, 1, common.GTC)
	sink.events = nil

	result := book.AddMarketOrder(common.Buy, 5, 2, 2)

	assert.NoError(t, result.Err)
	assert.Equal(t, uint64(0), result.QuantityLeft)
	assert.Contains(t, sink.events, "T, 2, 2, 1, 1, 10, 5")
}

func TestBook_MarketOrder_PartialFillReportsLeftover(t *testing.T) {
	book, _ := newTestBook(true)
	book.AddLimitOrder(common.Sell, 5, 10, 1, 1, common.GTC)

	result := book.AddMarketOrder(common.Buy, 8, 2, 2)

	assert.Equal(t, uint64(3), result.QuantityLeft)
}
