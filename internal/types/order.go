package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/quantforge/backtest/pkg/errors"
)

type Side string

type OrderKind string

type OrderStatus string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	OrderKindMarket    OrderKind = "MARKET"
	OrderKindLimit     OrderKind = "LIMIT"
	OrderKindStop      OrderKind = "STOP"
	OrderKindStopTrail OrderKind = "STOP_TRAIL"
)

const (
	// OrderStatusSubmitted is the initial status assigned by Submit.
	OrderStatusSubmitted OrderStatus = "SUBMITTED"
	// OrderStatusAccepted is acknowledged by the broker, same bar as submission.
	OrderStatusAccepted OrderStatus = "ACCEPTED"
	// OrderStatusCompleted means the order filled.
	OrderStatusCompleted OrderStatus = "COMPLETED"
	// OrderStatusCanceled means the order was canceled before filling.
	OrderStatusCanceled OrderStatus = "CANCELED"
	// OrderStatusRejected means the broker refused the order at submission.
	OrderStatusRejected OrderStatus = "REJECTED"
	// OrderStatusMargin means a buy fill failed for insufficient cash.
	OrderStatusMargin OrderStatus = "MARGIN"
)

const (
	OrderReasonEntry        string = "entry"
	OrderReasonClose        string = "close"
	OrderReasonStopLoss     string = "stop_loss"
	OrderReasonTakeProfit   string = "take_profit"
	OrderReasonTrailingStop string = "trailing_stop"
	OrderReasonTimedExit    string = "timed_exit"
)

// Reason records why an order exists, e.g. which signal produced it.
type Reason struct {
	Reason  string `yaml:"reason" json:"reason" validate:"required"`
	Message string `yaml:"message" json:"message"`
}

// Order is owned exclusively by the broker from submission until it reaches a
// terminal status. Trigger price is required for LIMIT and STOP orders; trail
// percent is required for STOP_TRAIL orders.
type Order struct {
	ID           string                   `yaml:"id" json:"id" validate:"omitempty,uuid"`
	Side         Side                     `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Kind         OrderKind                `yaml:"kind" json:"kind" validate:"required,oneof=MARKET LIMIT STOP STOP_TRAIL"`
	TriggerPrice optional.Option[float64] `yaml:"trigger_price" json:"trigger_price"`
	TrailPercent optional.Option[float64] `yaml:"trail_percent" json:"trail_percent"`
	Size         int64                    `yaml:"size" json:"size" validate:"required,gt=0"`
	Status       OrderStatus              `yaml:"status" json:"status"`
	Reason       Reason                   `yaml:"reason" json:"reason" validate:"required"`
	// BracketGroup links paired exit orders. When one member fills, the
	// broker cancels the surviving siblings.
	BracketGroup optional.Option[string] `yaml:"bracket_group" json:"bracket_group"`
	StrategyName string                  `yaml:"strategy_name" json:"strategy_name"`

	SubmittedAt    time.Time `yaml:"submitted_at" json:"submitted_at"`
	SubmittedIndex int       `yaml:"submitted_index" json:"submitted_index"`

	// Fill fields are populated only when Status is COMPLETED.
	FillPrice float64   `yaml:"fill_price" json:"fill_price"`
	FilledAt  time.Time `yaml:"filled_at" json:"filled_at"`
	FillIndex int       `yaml:"fill_index" json:"fill_index"`
	Fee       float64   `yaml:"fee" json:"fee"`
}

// IsTerminal reports whether the order can no longer change state.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusCompleted, OrderStatusCanceled, OrderStatusRejected, OrderStatusMargin:
		return true
	default:
		return false
	}
}

// IsBuy reports whether the order is on the buy side.
func (o *Order) IsBuy() bool {
	return o.Side == SideBuy
}

// Validate validates the Order struct, including kind/trigger coherence.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	switch o.Kind {
	case OrderKindLimit, OrderKindStop:
		price, err := o.TriggerPrice.Take()
		if err != nil || price <= 0 {
			return errors.Newf(errors.ErrCodeInvalidTriggerPrice, "%s order requires a positive trigger price", o.Kind)
		}
	case OrderKindStopTrail:
		trail, err := o.TrailPercent.Take()
		if err != nil || trail <= 0 || trail >= 1 {
			return errors.New(errors.ErrCodeInvalidTrailPercent, "STOP_TRAIL order requires a trail percent in (0, 1)")
		}
	case OrderKindMarket:
		// No trigger fields.
	}

	return nil
}
