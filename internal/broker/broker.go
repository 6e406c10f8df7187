// Package broker implements the simulated order and position model: order
// lifecycle, kind-specific fill rules, commission, cash accounting, and the
// closed-trade ledger events.
package broker

import (
	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/internal/logger"
	"github.com/quantforge/backtest/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// pendingOrder wraps a live order with the broker-side state its fill rule
// needs between bars.
type pendingOrder struct {
	order types.Order
	// highWater is the highest close seen since placement; trailing stops
	// trail it by the configured percent.
	highWater float64
}

// Broker owns every order from submission to terminal status, the single net
// position, and the cash balance. One broker serves exactly one run; parallel
// runs each construct their own.
type Broker struct {
	cash       float64
	commission CommissionFee
	position   types.Position
	pending    []*pendingOrder
	log        *logger.Logger

	// Round-trip accumulators for the trade emitted when the position
	// returns to flat.
	tripEntryFees  float64
	tripExitFees   float64
	tripExitQty    int64
	tripExitAmount float64
}

// NewBroker creates a broker with the given starting cash and commission model.
func NewBroker(initialCash float64, commission CommissionFee, log *logger.Logger) *Broker {
	return &Broker{
		cash:       initialCash,
		commission: commission,
		position:   types.Position{},
		pending:    nil,
		log:        log,
	}
}

// Cash returns the current cash balance.
func (b *Broker) Cash() float64 {
	return b.cash
}

// Position returns a copy of the current position.
func (b *Broker) Position() types.Position {
	return b.position
}

// Equity marks the account to the given close price: cash + size*close.
func (b *Broker) Equity(close float64) float64 {
	return b.cash + b.position.MarketValue(close)
}

// PendingOrders returns copies of all live orders.
func (b *Broker) PendingOrders() []types.Order {
	orders := make([]types.Order, 0, len(b.pending))
	for _, p := range b.pending {
		orders = append(orders, p.order)
	}

	return orders
}

// Submit validates the order, assigns it an id and acknowledges it in the
// same bar (SUBMITTED then ACCEPTED; no broker round trip is modeled). The
// order fills, at the earliest, against the next resolved bar.
func (b *Broker) Submit(order types.Order) (types.Order, error) {
	order.ID = uuid.New().String()
	order.Status = types.OrderStatusSubmitted

	if err := order.Validate(); err != nil {
		return types.Order{}, err
	}

	order.Status = types.OrderStatusAccepted
	b.pending = append(b.pending, &pendingOrder{order: order, highWater: 0})

	b.log.Debug("order accepted",
		zap.String("id", order.ID),
		zap.String("side", string(order.Side)),
		zap.String("kind", string(order.Kind)),
		zap.Int64("size", order.Size),
	)

	return order, nil
}

// Cancel cancels a live order. Orders already in a terminal status are left
// untouched and None is returned.
func (b *Broker) Cancel(orderID string) optional.Option[types.Order] {
	for i, p := range b.pending {
		if p.order.ID != orderID {
			continue
		}

		p.order.Status = types.OrderStatusCanceled
		canceled := p.order
		b.pending = append(b.pending[:i], b.pending[i+1:]...)

		b.log.Debug("order canceled", zap.String("id", orderID))

		return optional.Some(canceled)
	}

	return optional.None[types.Order]()
}

// CancelAll cancels every live order and returns them in submission order.
func (b *Broker) CancelAll() []types.Order {
	canceled := make([]types.Order, 0, len(b.pending))

	for _, p := range b.pending {
		p.order.Status = types.OrderStatusCanceled
		canceled = append(canceled, p.order)
	}

	b.pending = nil

	return canceled
}

// ResolveBar resolves every pending order against the given bar per its
// kind-specific rule and returns the orders that reached a terminal status
// plus any round trips closed by those fills. When a bracket member fills,
// its surviving siblings are canceled here, never left dangling. Orders whose
// trigger condition is not met stay ACCEPTED into the next bar.
func (b *Broker) ResolveBar(bar types.Bar, barIndex int) ([]types.Order, []types.Trade) {
	var (
		terminal []types.Order
		trades   []types.Trade
		filled   []types.Order
	)

	remaining := b.pending[:0]

	for _, p := range b.pending {
		fillPrice, fills := b.evaluate(p, bar)
		if !fills {
			remaining = append(remaining, p)

			continue
		}

		order, trade := b.applyFill(p.order, fillPrice, bar, barIndex)

		terminal = append(terminal, order)
		if order.Status == types.OrderStatusCompleted {
			filled = append(filled, order)
		}

		if trade.IsSome() {
			trades = append(trades, trade.Unwrap())
		}
	}

	b.pending = remaining

	// Bracket semantics: an exit fill retires its sibling orders.
	for _, order := range filled {
		if order.BracketGroup.IsNone() {
			continue
		}

		group := order.BracketGroup.Unwrap()
		for _, sibling := range b.cancelGroup(group) {
			terminal = append(terminal, sibling)
		}
	}

	return terminal, trades
}

// evaluate applies the kind-specific trigger rule and returns the fill price
// when the order fills against this bar.
func (b *Broker) evaluate(p *pendingOrder, bar types.Bar) (float64, bool) {
	order := &p.order

	switch order.Kind {
	case types.OrderKindMarket:
		// Market orders fill at the next bar's open.
		return bar.Open, true

	case types.OrderKindLimit:
		limit := order.TriggerPrice.Unwrap()
		if order.IsBuy() && bar.Low <= limit {
			return limit, true
		}

		if !order.IsBuy() && bar.High >= limit {
			return limit, true
		}

	case types.OrderKindStop:
		stop := order.TriggerPrice.Unwrap()
		if !order.IsBuy() && bar.Low <= stop {
			return stop, true
		}

		if order.IsBuy() && bar.High >= stop {
			return stop, true
		}

	case types.OrderKindStopTrail:
		trail := order.TrailPercent.Unwrap()
		if p.highWater > 0 {
			stop := p.highWater * (1 - trail)
			if bar.Low <= stop {
				return stop, true
			}
		}

		if bar.Close > p.highWater {
			p.highWater = bar.Close
		}
	}

	return 0, false
}

// applyFill settles a triggered order: commission, cash movement, position
// mutation, and, when the position returns to flat, the closed trade record.
func (b *Broker) applyFill(order types.Order, price float64, bar types.Bar, barIndex int) (types.Order, optional.Option[types.Trade]) {
	none := optional.None[types.Trade]()

	if order.IsBuy() {
		fee := b.commission.Calculate(order.Size, price)

		cost, _ := decimal.NewFromFloat(price).
			Mul(decimal.NewFromInt(order.Size)).
			Add(decimal.NewFromFloat(fee)).
			Float64()

		if cost > b.cash {
			// Insufficient cash: margin failure, no position change.
			order.Size = 0
			order.Status = types.OrderStatusMargin
			order.FilledAt = bar.Time
			order.FillIndex = barIndex

			b.log.Debug("buy rejected on margin",
				zap.String("id", order.ID),
				zap.Float64("cost", cost),
				zap.Float64("cash", b.cash),
			)

			return order, none
		}

		if b.position.IsFlat() {
			b.position.OpenedAt = bar.Time
			b.position.OpenedIndex = barIndex
			b.tripEntryFees = 0
			b.tripExitFees = 0
			b.tripExitQty = 0
			b.tripExitAmount = 0
		}

		// Weighted-average entry price on same-direction adds.
		oldNotional := decimal.NewFromFloat(b.position.AvgEntryPrice).Mul(decimal.NewFromInt(b.position.Size))
		addNotional := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(order.Size))
		newSize := b.position.Size + order.Size
		b.position.AvgEntryPrice, _ = oldNotional.Add(addNotional).Div(decimal.NewFromInt(newSize)).Float64()
		b.position.Size = newSize

		b.cash, _ = decimal.NewFromFloat(b.cash).Sub(decimal.NewFromFloat(cost)).Float64()
		b.tripEntryFees += fee

		order.Status = types.OrderStatusCompleted
		order.FillPrice = price
		order.FilledAt = bar.Time
		order.FillIndex = barIndex
		order.Fee = fee

		return order, none
	}

	// Sell side. Only position netting is modeled: a sell never opens a
	// short, so oversized exits are clamped to the current holding.
	if b.position.Size <= 0 {
		order.Status = types.OrderStatusRejected
		order.FilledAt = bar.Time
		order.FillIndex = barIndex

		b.log.Debug("sell rejected, no shares held", zap.String("id", order.ID))

		return order, none
	}

	if order.Size > b.position.Size {
		order.Size = b.position.Size
	}

	fee := b.commission.Calculate(order.Size, price)

	proceeds, _ := decimal.NewFromFloat(price).
		Mul(decimal.NewFromInt(order.Size)).
		Sub(decimal.NewFromFloat(fee)).
		Float64()

	b.cash, _ = decimal.NewFromFloat(b.cash).Add(decimal.NewFromFloat(proceeds)).Float64()

	b.position.Size -= order.Size
	b.tripExitFees += fee
	b.tripExitQty += order.Size
	b.tripExitAmount, _ = decimal.NewFromFloat(b.tripExitAmount).
		Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(order.Size))).
		Float64()

	order.Status = types.OrderStatusCompleted
	order.FillPrice = price
	order.FilledAt = bar.Time
	order.FillIndex = barIndex
	order.Fee = fee

	if !b.position.IsFlat() {
		return order, none
	}

	trade := b.closeTrade(order, bar, barIndex)
	b.position.AvgEntryPrice = 0

	return order, optional.Some(trade)
}

// closeTrade builds the immutable round-trip record at the moment the
// position returns to flat.
func (b *Broker) closeTrade(exit types.Order, bar types.Bar, barIndex int) types.Trade {
	entryPrice := b.position.AvgEntryPrice
	exitPrice, _ := decimal.NewFromFloat(b.tripExitAmount).Div(decimal.NewFromInt(b.tripExitQty)).Float64()
	commission := b.tripEntryFees + b.tripExitFees

	gross, _ := decimal.NewFromFloat(exitPrice).
		Sub(decimal.NewFromFloat(entryPrice)).
		Mul(decimal.NewFromInt(b.tripExitQty)).
		Float64()

	net, _ := decimal.NewFromFloat(gross).Sub(decimal.NewFromFloat(commission)).Float64()

	trade := types.Trade{
		EntryIndex:   b.position.OpenedIndex,
		ExitIndex:    barIndex,
		EntryTime:    b.position.OpenedAt,
		ExitTime:     bar.Time,
		EntryPrice:   entryPrice,
		ExitPrice:    exitPrice,
		Size:         b.tripExitQty,
		GrossPnL:     gross,
		NetPnL:       net,
		Commission:   commission,
		DurationBars: barIndex - b.position.OpenedIndex,
		ExitReason:   exit.Reason,
		StrategyName: exit.StrategyName,
	}

	b.log.Debug("trade closed",
		zap.Float64("entry", trade.EntryPrice),
		zap.Float64("exit", trade.ExitPrice),
		zap.Int64("size", trade.Size),
		zap.Float64("net_pnl", trade.NetPnL),
	)

	return trade
}

// cancelGroup cancels all live orders in a bracket group.
func (b *Broker) cancelGroup(group string) []types.Order {
	var canceled []types.Order

	remaining := b.pending[:0]

	for _, p := range b.pending {
		if p.order.BracketGroup.IsSome() && p.order.BracketGroup.Unwrap() == group {
			p.order.Status = types.OrderStatusCanceled
			canceled = append(canceled, p.order)

			continue
		}

		remaining = append(remaining, p)
	}

	b.pending = remaining

	return canceled
}

// Reset returns the broker to a fresh state with the given starting cash.
func (b *Broker) Reset(initialCash float64) {
	b.cash = initialCash
	b.position = types.Position{}
	b.pending = nil
	b.tripEntryFees = 0
	b.tripExitFees = 0
	b.tripExitQty = 0
	b.tripExitAmount = 0
}

// NewBracketGroup returns a fresh bracket group id for linking exit orders.
func NewBracketGroup() string {
	return uuid.New().String()
}
