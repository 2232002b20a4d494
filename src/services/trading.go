package services

import (
	"context"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/webhook-trader/src/alpaca"
	"github.com/jiaming2012/webhook-trader/src/eventpubsub"
	"github.com/jiaming2012/webhook-trader/src/models"
)

const (
	maxFillWait      = 30 * time.Second
	fillPollInterval = 250 * time.Millisecond

	// Buying gets unrestricted but selling does not once the day trade limit
	// is hit, so orders are refused before we end up in a position we cannot
	// exit.
	pdtMaxDayTrades = 3
	pdtMinEquity    = 25_000
)

// TradingService turns persisted webhook orders into brokerage orders.
type TradingService struct {
	store    models.OrderStore
	brokers  map[string]alpaca.Broker
	testMode bool

	fillWait time.Duration
	fillPoll time.Duration
}

func NewTradingService(store models.OrderStore, brokers map[string]alpaca.Broker, testMode bool) *TradingService {
	return &TradingService{
		store:    store,
		brokers:  brokers,
		testMode: testMode,
		fillWait: maxFillWait,
		fillPoll: fillPollInterval,
	}
}

func (s *TradingService) Broker(name string) (alpaca.Broker, bool) {
	broker, found := s.brokers[name]
	return broker, found
}

// ProcessWebhook persists the incoming order, applies the account guards and
// forwards it to the broker. The stored order is returned with the broker
// order id attached once execution succeeds.
func (s *TradingService) ProcessWebhook(ctx context.Context, name string, order *models.Order) (*models.Order, error) {
	broker, found := s.brokers[name]
	if !found {
		return nil, models.NewWebError(404, "account not found", nil)
	}

	if order.Nickname == "" {
		order.Nickname = name
	}

	if err := order.Validate(); err != nil {
		return nil, models.NewWebError(400, "invalid order", err)
	}

	// The order is logged before any broker interaction so that rejected and
	// failed orders still leave a record.
	if err := s.store.SaveOrder(order); err != nil {
		return nil, models.NewWebError(500, "failed to save order", err)
	}

	eventpubsub.Publish(eventpubsub.OrderReceivedEvent, models.NewOrderEvent(models.OrderEventReceived, name, order, nil))

	if s.testMode {
		log.WithField("account", name).Infof("test mode: echoing order %d for %s", order.ID, order.Ticker)
		return order, nil
	}

	clock, err := broker.GetClock(ctx)
	if err != nil {
		return nil, s.reject(name, order, models.NewWebError(502, "failed to fetch market clock", err))
	}

	extendedHours := IsExtendedHours(clock)

	account, err := broker.GetAccount(ctx)
	if err != nil {
		return nil, s.reject(name, order, models.NewWebError(502, "failed to fetch account", err))
	}

	if account.DaytradeCount >= pdtMaxDayTrades && account.Equity < pdtMinEquity {
		return nil, s.reject(name, order, models.NewWebError(429, "pattern day trader", nil))
	}

	position, err := broker.GetOpenPosition(ctx, order.Ticker)
	if err != nil {
		return nil, s.reject(name, order, models.NewWebError(502, "failed to fetch position", err))
	}

	if position == nil {
		if order.MaxSlippage > 0 {
			if err := s.checkSlippage(ctx, broker, order); err != nil {
				return nil, s.reject(name, order, err)
			}
		}

		return s.execute(ctx, name, broker, order, extendedHours)
	}

	// Flat alerts and alerts matching the held side are no-ops.
	if positionMatches(position.Side, order.MarketPosition) || order.MarketPosition == models.MarketPositionFlat {
		return order, nil
	}

	// Reversal: close the held position, then open the new one.
	if _, err := s.closePosition(ctx, broker, order.Ticker, 100, true); err != nil {
		return nil, s.reject(name, order, models.NewWebError(502, "failed to close position", err))
	}

	return s.execute(ctx, name, broker, order, extendedHours)
}

func (s *TradingService) execute(ctx context.Context, name string, broker alpaca.Broker, order *models.Order, extendedHours bool) (*models.Order, error) {
	brokerOrder, err := s.execTrade(ctx, broker, order, extendedHours)
	if err != nil {
		return nil, s.reject(name, order, models.NewWebError(500, "failed to execute trade", err))
	}

	order.OrderID = brokerOrder.ID
	if err := s.store.UpdateOrder(order); err != nil {
		return nil, models.NewWebError(500, "failed to update order", err)
	}

	eventpubsub.Publish(eventpubsub.OrderExecutedEvent, models.NewOrderEvent(models.OrderEventExecuted, name, order, nil))

	log.WithField("account", name).Infof("executed %s %s, broker order %s", order.Action, order.Ticker, order.OrderID)

	return order, nil
}

func (s *TradingService) reject(name string, order *models.Order, webErr *models.WebError) error {
	eventpubsub.Publish(eventpubsub.OrderRejectedEvent, models.NewOrderEvent(models.OrderEventRejected, name, order, webErr))
	return webErr
}

func (s *TradingService) checkSlippage(ctx context.Context, broker alpaca.Broker, order *models.Order) *models.WebError {
	quote, err := broker.GetLatestQuote(ctx, order.Ticker, string(order.AssetClass))
	if err != nil {
		return models.NewWebError(502, "failed to fetch quote", err)
	}

	// Buys fill near the ask, sells near the bid.
	price := quote.AskPrice
	if order.Action == models.TradeActionSell {
		price = quote.BidPrice
	}

	slippage := math.Abs((price - order.Price) / order.Price)
	if slippage > order.MaxSlippage {
		return models.NewWebError(412, "slippage too high", fmt.Errorf("slippage %.4f exceeds limit %.4f", slippage, order.MaxSlippage))
	}

	return nil
}

// execTrade sizes and submits the brokerage order. When a protective exit
// (stop loss, take profit or trailing stop) cannot be combined into a bracket
// order, the entry is filled first and the exit order is submitted against
// the fill; the returned order is the resting exit in that case.
func (s *TradingService) execTrade(ctx context.Context, broker alpaca.Broker, order *models.Order, extendedHours bool) (*alpaca.Order, error) {
	account, err := broker.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("execTrade: failed to fetch account: %w", err)
	}

	buyingPower := account.BuyingPower
	if order.Leveraged || order.AssetClass == models.AssetClassCrypto {
		buyingPower = account.NonMarginableBuyingPower
	}

	notional := round2(buyingPower * order.BuyingPowerPct)
	if notional < 1 {
		return nil, fmt.Errorf("execTrade: notional value %.2f is less than $1, cannot trade", notional)
	}

	qty := math.Floor(notional / order.Price)

	side := alpaca.OrderSideBuy
	if order.Action == models.TradeActionSell {
		side = alpaca.OrderSideSell
	}

	timeInForce := alpaca.TimeInForceDay
	if order.AssetClass == models.AssetClassCrypto {
		timeInForce = alpaca.TimeInForceGTC
	}

	req := &alpaca.OrderRequest{
		Symbol:      order.Ticker,
		Notional:    alpaca.FormatFloat(notional),
		Side:        side,
		Type:        alpaca.OrderTypeMarket,
		TimeInForce: timeInForce,
	}

	hasExit := order.StopLoss > 0 || order.TakeProfit > 0 || order.TrailingStop > 0

	// Protective exits cannot ride on fractional fills.
	if hasExit {
		if qty < 1 {
			return nil, fmt.Errorf("execTrade: whole-share orders must have an integer quantity greater than 0")
		}

		req = &alpaca.OrderRequest{
			Symbol:      order.Ticker,
			Qty:         alpaca.FormatFloat(qty),
			Side:        side,
			Type:        alpaca.OrderTypeMarket,
			TimeInForce: timeInForce,
		}
	}

	if !extendedHours && order.TakeProfit > 0 && order.StopLoss > 0 {
		if qty < 1 {
			return nil, fmt.Errorf("execTrade: whole-share orders must have an integer quantity greater than 0")
		}

		req = &alpaca.OrderRequest{
			Symbol:      order.Ticker,
			Qty:         alpaca.FormatFloat(qty),
			Side:        side,
			Type:        alpaca.OrderTypeMarket,
			TimeInForce: alpaca.TimeInForceGTC,
			OrderClass:  alpaca.OrderClassBracket,
			TakeProfit: &alpaca.TakeProfitRequest{
				LimitPrice: alpaca.FormatFloat(round2(order.Price * (1 + order.TakeProfit))),
			},
			StopLoss: &alpaca.StopLossRequest{
				StopPrice: alpaca.FormatFloat(round2(order.Price * (1 - order.StopLoss))),
			},
		}
	}

	if extendedHours && order.AssetClass != models.AssetClassCrypto {
		if qty < 1 {
			return nil, fmt.Errorf("execTrade: whole-share orders must have an integer quantity greater than 0")
		}

		limitPrice := order.High
		if limitPrice == 0 {
			limitPrice = order.Price
		}

		req = &alpaca.OrderRequest{
			Symbol:        order.Ticker,
			Qty:           alpaca.FormatFloat(qty),
			Side:          side,
			Type:          alpaca.OrderTypeLimit,
			TimeInForce:   alpaca.TimeInForceDay,
			LimitPrice:    alpaca.FormatFloat(limitPrice),
			ExtendedHours: true,
		}
	}

	if hasExit && req.OrderClass != alpaca.OrderClassBracket && order.Action == models.TradeActionBuy {
		exitReq, entryOrder, exitErr := s.placeEntryAndBuildExit(ctx, broker, order, req)
		if exitErr != nil {
			return nil, exitErr
		}

		// A nil exit request means the entry never filled and was canceled.
		if exitReq == nil {
			return entryOrder, nil
		}

		// If the filled entry cannot be protected, unwind it.
		exitOrder, err := broker.SubmitOrder(ctx, exitReq)
		if err != nil {
			return nil, s.liquidate(ctx, broker, entryOrder, fmt.Errorf("execTrade: failed to submit exit order: %w", err))
		}

		return exitOrder, nil
	}

	brokerOrder, err := broker.SubmitOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execTrade: failed to submit order: %w", err)
	}

	return brokerOrder, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func positionMatches(side alpaca.PositionSide, position models.MarketPosition) bool {
	return (side == alpaca.PositionSideLong && position == models.MarketPositionLong) ||
		(side == alpaca.PositionSideShort && position == models.MarketPositionShort)
}

// IsExtendedHours reports whether the market is closed but pre/after-market
// trading is active (between 04:00 and 20:00 exchange time).
func IsExtendedHours(clock *alpaca.Clock) bool {
	if clock.IsOpen {
		return false
	}

	hour := clock.Timestamp.Hour()
	return hour < 20 && hour >= 4
}
