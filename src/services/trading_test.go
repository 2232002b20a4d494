package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/webhook-trader/src/alpaca"
	"github.com/jiaming2012/webhook-trader/src/eventpubsub"
	"github.com/jiaming2012/webhook-trader/src/models"
)

func TestMain(m *testing.M) {
	eventpubsub.Init()
	m.Run()
}

func newTestService(broker *alpaca.MockBroker, testMode bool) (*TradingService, *models.MockStore) {
	store := models.NewMockStore()
	service := NewTradingService(store, map[string]alpaca.Broker{"paper1": broker}, testMode)
	return service, store
}

func webhookOrder() *models.Order {
	return &models.Order{
		Ticker:         "TSLA",
		Action:         models.TradeActionBuy,
		MarketPosition: models.MarketPositionLong,
		Price:          100,
		BuyingPowerPct: 0.5,
		AssetClass:     models.AssetClassStock,
	}
}

func webErrorCode(t *testing.T, err error) int {
	t.Helper()

	var webErr *models.WebError
	require.True(t, errors.As(err, &webErr), "expected WebError, got %v", err)
	return webErr.StatusCode
}

func TestProcessWebhookGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown account", func(t *testing.T) {
		service, _ := newTestService(alpaca.NewMockBroker(), false)

		_, err := service.ProcessWebhook(ctx, "nope", webhookOrder())
		assert.Equal(t, 404, webErrorCode(t, err))
	})

	t.Run("invalid order", func(t *testing.T) {
		service, _ := newTestService(alpaca.NewMockBroker(), false)

		order := webhookOrder()
		order.Action = "hold"
		_, err := service.ProcessWebhook(ctx, "paper1", order)
		assert.Equal(t, 400, webErrorCode(t, err))
	})

	t.Run("test mode echoes without broker calls", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		service, store := newTestService(broker, true)

		order := webhookOrder()
		result, err := service.ProcessWebhook(ctx, "paper1", order)
		require.NoError(t, err)

		assert.Equal(t, "paper1", result.Nickname)
		assert.Empty(t, result.OrderID)
		assert.Len(t, store.Orders, 1)
		assert.Empty(t, broker.Requests)
	})

	t.Run("pattern day trader", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		broker.Account.DaytradeCount = 3
		broker.Account.Equity = 20000
		service, store := newTestService(broker, false)

		_, err := service.ProcessWebhook(ctx, "paper1", webhookOrder())
		assert.Equal(t, 429, webErrorCode(t, err))

		// the rejected order is still logged
		assert.Len(t, store.Orders, 1)
	})

	t.Run("slippage too high", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		broker.Quotes["TSLA"] = &alpaca.Quote{BidPrice: 109, AskPrice: 110}
		service, _ := newTestService(broker, false)

		order := webhookOrder()
		order.MaxSlippage = 0.01
		_, err := service.ProcessWebhook(ctx, "paper1", order)
		assert.Equal(t, 412, webErrorCode(t, err))
		assert.Empty(t, broker.Requests)
	})

	t.Run("quote fetch failure is a 502", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		service, _ := newTestService(broker, false)

		// no quote registered for the ticker
		order := webhookOrder()
		order.MaxSlippage = 0.01
		_, err := service.ProcessWebhook(ctx, "paper1", order)
		assert.Equal(t, 502, webErrorCode(t, err))
	})

	t.Run("slippage within bounds", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		broker.Quotes["TSLA"] = &alpaca.Quote{BidPrice: 99.9, AskPrice: 100.5}
		service, _ := newTestService(broker, false)

		order := webhookOrder()
		order.MaxSlippage = 0.01
		result, err := service.ProcessWebhook(ctx, "paper1", order)
		require.NoError(t, err)
		assert.NotEmpty(t, result.OrderID)
	})
}

func TestProcessWebhookPositions(t *testing.T) {
	ctx := context.Background()

	t.Run("same side is a no-op", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		broker.Positions["TSLA"] = &alpaca.Position{Symbol: "TSLA", Side: alpaca.PositionSideLong, Qty: 10, AvgEntryPrice: 95}
		service, _ := newTestService(broker, false)

		result, err := service.ProcessWebhook(ctx, "paper1", webhookOrder())
		require.NoError(t, err)

		assert.Empty(t, result.OrderID)
		assert.Empty(t, broker.Requests)
		assert.Empty(t, broker.ClosedSymbols)
	})

	t.Run("flat is a no-op", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		broker.Positions["TSLA"] = &alpaca.Position{Symbol: "TSLA", Side: alpaca.PositionSideShort, Qty: 10, AvgEntryPrice: 95}
		service, _ := newTestService(broker, false)

		order := webhookOrder()
		order.MarketPosition = models.MarketPositionFlat
		_, err := service.ProcessWebhook(ctx, "paper1", order)
		require.NoError(t, err)
		assert.Empty(t, broker.ClosedSymbols)
	})

	t.Run("reversal closes then opens", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		broker.Positions["TSLA"] = &alpaca.Position{Symbol: "TSLA", Side: alpaca.PositionSideShort, Qty: 10, AvgEntryPrice: 95}
		service, store := newTestService(broker, false)

		result, err := service.ProcessWebhook(ctx, "paper1", webhookOrder())
		require.NoError(t, err)

		assert.Equal(t, []string{"TSLA"}, broker.ClosedSymbols)
		require.Len(t, broker.Requests, 1)
		assert.Equal(t, alpaca.OrderSideBuy, broker.Requests[0].Side)
		assert.NotEmpty(t, result.OrderID)
		assert.Equal(t, result.OrderID, store.Orders[0].OrderID)
	})
}

func TestExecTradeSizing(t *testing.T) {
	ctx := context.Background()

	t.Run("notional market order from buying power", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		service, _ := newTestService(broker, false)

		_, err := service.ProcessWebhook(ctx, "paper1", webhookOrder())
		require.NoError(t, err)

		require.Len(t, broker.Requests, 1)
		req := broker.Requests[0]
		assert.Equal(t, "10000", req.Notional) // 20000 * 0.5
		assert.Empty(t, req.Qty)
		assert.Equal(t, alpaca.OrderTypeMarket, req.Type)
		assert.Equal(t, alpaca.TimeInForceDay, req.TimeInForce)
	})

	t.Run("leveraged uses non-marginable buying power", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		service, _ := newTestService(broker, false)

		order := webhookOrder()
		order.Leveraged = true
		_, err := service.ProcessWebhook(ctx, "paper1", order)
		require.NoError(t, err)

		require.Len(t, broker.Requests, 1)
		assert.Equal(t, "5000", broker.Requests[0].Notional) // 10000 * 0.5
	})

	t.Run("crypto is GTC", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		service, _ := newTestService(broker, false)

		order := webhookOrder()
		order.Ticker = "BTC/USD"
		order.AssetClass = models.AssetClassCrypto
		order.Price = 64000
		_, err := service.ProcessWebhook(ctx, "paper1", order)
		require.NoError(t, err)

		require.Len(t, broker.Requests, 1)
		assert.Equal(t, alpaca.TimeInForceGTC, broker.Requests[0].TimeInForce)
		assert.Equal(t, "5000", broker.Requests[0].Notional)
	})

	t.Run("notional below a dollar is refused", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		broker.Account.BuyingPower = 1
		service, _ := newTestService(broker, false)

		_, err := service.ProcessWebhook(ctx, "paper1", webhookOrder())
		assert.Equal(t, 500, webErrorCode(t, err))
		assert.Empty(t, broker.Requests)
	})
}

func TestExecTradeExits(t *testing.T) {
	ctx := context.Background()

	t.Run("bracket order for tp and sl", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		service, _ := newTestService(broker, false)

		order := webhookOrder()
		order.TakeProfit = 0.1
		order.StopLoss = 0.05
		_, err := service.ProcessWebhook(ctx, "paper1", order)
		require.NoError(t, err)

		require.Len(t, broker.Requests, 1)
		req := broker.Requests[0]
		assert.Equal(t, alpaca.OrderClassBracket, req.OrderClass)
		assert.Equal(t, "100", req.Qty) // floor(10000 / 100)
		assert.Equal(t, alpaca.TimeInForceGTC, req.TimeInForce)
		require.NotNil(t, req.TakeProfit)
		require.NotNil(t, req.StopLoss)
		assert.Equal(t, "110", req.TakeProfit.LimitPrice)
		assert.Equal(t, "95", req.StopLoss.StopPrice)
	})

	t.Run("stop loss only places entry then stop", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		service, store := newTestService(broker, false)

		order := webhookOrder()
		order.StopLoss = 0.05
		result, err := service.ProcessWebhook(ctx, "paper1", order)
		require.NoError(t, err)

		require.Len(t, broker.Requests, 2)

		entry := broker.Requests[0]
		assert.Equal(t, alpaca.OrderTypeMarket, entry.Type)
		assert.Equal(t, "100", entry.Qty)

		exit := broker.Requests[1]
		assert.Equal(t, alpaca.OrderTypeStop, exit.Type)
		assert.Equal(t, alpaca.OrderSideSell, exit.Side)
		// stop is derived from the fill price, the mock fills at 100
		assert.Equal(t, "95", exit.StopPrice)

		// the stored order tracks the resting exit
		assert.Equal(t, result.OrderID, store.Orders[0].OrderID)
	})

	t.Run("take profit only places stop limit", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		service, _ := newTestService(broker, false)

		order := webhookOrder()
		order.TakeProfit = 0.1
		_, err := service.ProcessWebhook(ctx, "paper1", order)
		require.NoError(t, err)

		require.Len(t, broker.Requests, 2)
		exit := broker.Requests[1]
		assert.Equal(t, alpaca.OrderTypeStopLimit, exit.Type)
		assert.Equal(t, "110", exit.LimitPrice)
		assert.Equal(t, "90", exit.StopPrice)
	})

	t.Run("trailing stop converts fraction to percent", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		service, _ := newTestService(broker, false)

		order := webhookOrder()
		order.TrailingStop = 0.08
		_, err := service.ProcessWebhook(ctx, "paper1", order)
		require.NoError(t, err)

		require.Len(t, broker.Requests, 2)
		exit := broker.Requests[1]
		assert.Equal(t, alpaca.OrderTypeTrailingStop, exit.Type)
		assert.Equal(t, "8", exit.TrailPercent)
	})

	t.Run("entry fill is polled", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		broker.FillAfterPolls = 2
		service, _ := newTestService(broker, false)

		order := webhookOrder()
		order.StopLoss = 0.05
		_, err := service.ProcessWebhook(ctx, "paper1", order)
		require.NoError(t, err)
		require.Len(t, broker.Requests, 2)
	})

	t.Run("sell exits skip the protective order", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		service, _ := newTestService(broker, false)

		order := webhookOrder()
		order.Action = models.TradeActionSell
		order.MarketPosition = models.MarketPositionShort
		order.StopLoss = 0.05
		_, err := service.ProcessWebhook(ctx, "paper1", order)
		require.NoError(t, err)

		require.Len(t, broker.Requests, 1)
		assert.Equal(t, alpaca.OrderSideSell, broker.Requests[0].Side)
	})
}

func TestExecTradeFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("failed exit submission liquidates the fill", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		broker.SubmitErr = errors.New("insufficient qty available")
		broker.SubmitErrAt = 2 // entry fills, the protective exit is refused
		service, _ := newTestService(broker, false)

		order := webhookOrder()
		order.StopLoss = 0.05
		_, err := service.ProcessWebhook(ctx, "paper1", order)
		assert.Equal(t, 500, webErrorCode(t, err))

		require.Len(t, broker.Requests, 2)

		entry := broker.Requests[0]
		assert.Equal(t, alpaca.OrderSideBuy, entry.Side)

		liquidation := broker.Requests[1]
		assert.Equal(t, alpaca.OrderSideSell, liquidation.Side)
		assert.Equal(t, alpaca.OrderTypeMarket, liquidation.Type)
		// the mock fills entries at qty 1
		assert.Equal(t, "1", liquidation.Qty)
	})

	t.Run("unfilled entry is canceled after the wait budget", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		broker.FillAfterPolls = 1000
		service, store := newTestService(broker, false)
		service.fillWait = 50 * time.Millisecond
		service.fillPoll = 5 * time.Millisecond

		order := webhookOrder()
		order.StopLoss = 0.05
		result, err := service.ProcessWebhook(ctx, "paper1", order)
		require.NoError(t, err)

		// only the entry was submitted, then canceled
		require.Len(t, broker.Requests, 1)
		require.Len(t, broker.CanceledOrders, 1)
		assert.Equal(t, broker.CanceledOrders[0], result.OrderID)
		assert.Equal(t, result.OrderID, store.Orders[0].OrderID)
	})

	t.Run("liquidate unwinds a partial fill", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		service, _ := newTestService(broker, false)

		entry, err := broker.SubmitOrder(ctx, &alpaca.OrderRequest{
			Symbol:      "TSLA",
			Qty:         "100",
			Side:        alpaca.OrderSideBuy,
			Type:        alpaca.OrderTypeMarket,
			TimeInForce: alpaca.TimeInForceDay,
		})
		require.NoError(t, err)

		entry.Status = alpaca.OrderStatusPartiallyFilled
		entry.FilledQty = 40

		cause := errors.New("exit rejected")
		assert.Equal(t, cause, service.liquidate(ctx, broker, entry, cause))

		assert.Equal(t, []string{entry.ID}, broker.CanceledOrders)
		require.Len(t, broker.Requests, 2)
		liquidation := broker.Requests[1]
		assert.Equal(t, alpaca.OrderSideSell, liquidation.Side)
		assert.Equal(t, alpaca.OrderTypeMarket, liquidation.Type)
		assert.Equal(t, "40", liquidation.Qty)
	})

	t.Run("entry submission failure places nothing", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		broker.SubmitErr = errors.New("account is restricted")
		service, _ := newTestService(broker, false)

		order := webhookOrder()
		order.StopLoss = 0.05
		_, err := service.ProcessWebhook(ctx, "paper1", order)
		assert.Equal(t, 500, webErrorCode(t, err))
		assert.Empty(t, broker.Requests)
	})
}

func TestExecTradeExtendedHours(t *testing.T) {
	ctx := context.Background()

	t.Run("limit order during extended hours", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		broker.Clock.IsOpen = false
		// 08:00, before the open
		broker.Clock.Timestamp = broker.Clock.Timestamp.Add(-2*time.Hour - 30*time.Minute)
		service, _ := newTestService(broker, false)

		order := webhookOrder()
		order.High = 101.5
		_, err := service.ProcessWebhook(ctx, "paper1", order)
		require.NoError(t, err)

		require.Len(t, broker.Requests, 1)
		req := broker.Requests[0]
		assert.Equal(t, alpaca.OrderTypeLimit, req.Type)
		assert.True(t, req.ExtendedHours)
		assert.Equal(t, "101.5", req.LimitPrice)
		assert.Equal(t, "100", req.Qty)
	})

	t.Run("overnight close falls back to market order", func(t *testing.T) {
		broker := alpaca.NewMockBroker()
		broker.Clock.IsOpen = false
		broker.Clock.Timestamp = time.Date(2024, 6, 3, 22, 0, 0, 0, time.UTC)
		service, _ := newTestService(broker, false)

		_, err := service.ProcessWebhook(ctx, "paper1", webhookOrder())
		require.NoError(t, err)

		require.Len(t, broker.Requests, 1)
		assert.Equal(t, alpaca.OrderTypeMarket, broker.Requests[0].Type)
		assert.False(t, broker.Requests[0].ExtendedHours)
	})
}

func TestIsExtendedHours(t *testing.T) {
	clock := func(hour int, open bool) *alpaca.Clock {
		return &alpaca.Clock{
			Timestamp: time.Date(2024, 6, 3, hour, 0, 0, 0, time.UTC),
			IsOpen:    open,
		}
	}

	assert.False(t, IsExtendedHours(clock(10, true)))
	assert.True(t, IsExtendedHours(clock(8, false)))
	assert.True(t, IsExtendedHours(clock(19, false)))
	assert.False(t, IsExtendedHours(clock(22, false)))
	assert.False(t, IsExtendedHours(clock(2, false)))
}
