package services

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/webhook-trader/src/alpaca"
	"github.com/jiaming2012/webhook-trader/src/models"
)

// placeEntryAndBuildExit submits the entry order, waits for it to fill and
// derives the protective exit order from the fill price. When the entry does
// not fill within the wait budget it is canceled and (nil, entry, nil) is
// returned. If the entry filled but the exit cannot be built, the position is
// liquidated before the error is returned.
func (s *TradingService) placeEntryAndBuildExit(ctx context.Context, broker alpaca.Broker, order *models.Order, entryReq *alpaca.OrderRequest) (*alpaca.OrderRequest, *alpaca.Order, error) {
	entryOrder, err := broker.SubmitOrder(ctx, entryReq)
	if err != nil {
		return nil, nil, fmt.Errorf("placeEntryAndBuildExit: failed to submit entry order: %w", err)
	}

	entryOrder, err = s.waitForFill(ctx, broker, entryOrder)
	if err != nil {
		return nil, nil, s.liquidate(ctx, broker, entryOrder, fmt.Errorf("placeEntryAndBuildExit: failed to wait for fill: %w", err))
	}

	if entryOrder.Status != alpaca.OrderStatusFilled {
		if err := broker.CancelOrderByID(ctx, entryOrder.ID); err != nil {
			return nil, nil, fmt.Errorf("placeEntryAndBuildExit: failed to cancel unfilled entry: %w", err)
		}

		entryOrder.Status = alpaca.OrderStatusCanceled
		log.Warnf("entry order %s for %s did not fill within %s, canceled", entryOrder.ID, order.Ticker, s.fillWait)
		return nil, entryOrder, nil
	}

	fillPrice := entryOrder.FilledAvgPrc
	qty := alpaca.FormatFloat(entryOrder.FilledQty)

	var exitReq *alpaca.OrderRequest
	switch {
	case order.StopLoss > 0:
		exitReq = &alpaca.OrderRequest{
			Symbol:      entryOrder.Symbol,
			Qty:         qty,
			Side:        alpaca.OrderSideSell,
			Type:        alpaca.OrderTypeStop,
			TimeInForce: alpaca.TimeInForceGTC,
			StopPrice:   alpaca.FormatFloat(round2(fillPrice * (1 - order.StopLoss))),
		}
	case order.TakeProfit > 0:
		exitReq = &alpaca.OrderRequest{
			Symbol:      entryOrder.Symbol,
			Qty:         qty,
			Side:        alpaca.OrderSideSell,
			Type:        alpaca.OrderTypeStopLimit,
			TimeInForce: alpaca.TimeInForceGTC,
			LimitPrice:  alpaca.FormatFloat(round2(fillPrice * (1 + order.TakeProfit))),
			StopPrice:   alpaca.FormatFloat(round2(fillPrice * (1 - order.TakeProfit))),
		}
	case order.TrailingStop > 0:
		exitReq = &alpaca.OrderRequest{
			Symbol:      entryOrder.Symbol,
			Qty:         qty,
			Side:        alpaca.OrderSideSell,
			Type:        alpaca.OrderTypeTrailingStop,
			TimeInForce: alpaca.TimeInForceGTC,
			// The broker wants the trail as a percentage, every other input
			// is a fraction.
			TrailPercent: alpaca.FormatFloat(round2(order.TrailingStop * 100)),
		}
	}

	return exitReq, entryOrder, nil
}

// liquidate unwinds whatever filled of a partially processed entry order and
// returns cause.
func (s *TradingService) liquidate(ctx context.Context, broker alpaca.Broker, entryOrder *alpaca.Order, cause error) error {
	if entryOrder == nil {
		return cause
	}

	switch entryOrder.Status {
	case alpaca.OrderStatusPartiallyFilled:
		if err := broker.CancelOrderByID(ctx, entryOrder.ID); err != nil {
			log.Errorf("liquidate: failed to cancel partially filled order %s: %v", entryOrder.ID, err)
		}
		fallthrough
	case alpaca.OrderStatusFilled:
		if entryOrder.FilledQty <= 0 {
			return cause
		}

		_, err := broker.SubmitOrder(ctx, &alpaca.OrderRequest{
			Symbol:      entryOrder.Symbol,
			Qty:         alpaca.FormatFloat(entryOrder.FilledQty),
			Side:        alpaca.OrderSideSell,
			Type:        alpaca.OrderTypeMarket,
			TimeInForce: alpaca.TimeInForceGTC,
		})
		if err != nil {
			log.Errorf("liquidate: failed to sell %s: %v", entryOrder.Symbol, err)
		}
	}

	return cause
}

func (s *TradingService) closePosition(ctx context.Context, broker alpaca.Broker, symbol string, percentage float64, waitForFill bool) (*alpaca.Order, error) {
	order, err := broker.ClosePosition(ctx, symbol, percentage)
	if err != nil {
		return nil, fmt.Errorf("closePosition: %w", err)
	}

	if !waitForFill {
		return order, nil
	}

	order, err = s.waitForFill(ctx, broker, order)
	if err != nil {
		return nil, fmt.Errorf("closePosition: %w", err)
	}

	return order, nil
}

// waitForFill polls the order until it reaches a terminal status or the wait
// budget runs out. The last observed order state is returned either way.
func (s *TradingService) waitForFill(ctx context.Context, broker alpaca.Broker, order *alpaca.Order) (*alpaca.Order, error) {
	deadline := time.Now().Add(s.fillWait)

	for !order.Status.IsFinished() {
		if time.Now().After(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			return order, ctx.Err()
		case <-time.After(s.fillPoll):
		}

		next, err := broker.GetOrderByID(ctx, order.ID)
		if err != nil {
			return order, fmt.Errorf("waitForFill: %w", err)
		}

		order = next
	}

	return order, nil
}
