package broker

import "github.com/invopop/jsonschema"

// CommissionFee computes the fee charged on a fill, in account currency.
type CommissionFee interface {
	Calculate(size int64, price float64) float64
}

type CommissionModel string

const (
	CommissionModelZero CommissionModel = "zero_commission"
	// CommissionModelFixedRate charges price * size * rate per fill.
	CommissionModelFixedRate CommissionModel = "fixed_rate"
	// CommissionModelInteractiveBroker charges per share with a $1 minimum.
	CommissionModelInteractiveBroker CommissionModel = "interactive_broker"
)

var AllCommissionModels = []any{
	CommissionModelZero,
	CommissionModelFixedRate,
	CommissionModelInteractiveBroker,
}

// JSONSchema restricts the schema to the known commission models.
func (CommissionModel) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "string",
		Enum: AllCommissionModels,
	}
}

// ZeroCommissionFee implements CommissionFee with zero commission.
type ZeroCommissionFee struct{}

// NewZeroCommissionFee creates a new zero commission fee.
func NewZeroCommissionFee() CommissionFee {
	return &ZeroCommissionFee{}
}

// Calculate returns 0 for any fill.
func (c *ZeroCommissionFee) Calculate(size int64, price float64) float64 {
	return 0.0
}

// FixedRateCommissionFee charges a fraction of the fill notional.
type FixedRateCommissionFee struct {
	rate float64
}

// NewFixedRateCommissionFee creates a commission fee of price*size*rate.
func NewFixedRateCommissionFee(rate float64) CommissionFee {
	return &FixedRateCommissionFee{rate: rate}
}

func (c *FixedRateCommissionFee) Calculate(size int64, price float64) float64 {
	return price * float64(size) * c.rate
}

type InteractiveBrokerCommissionFee struct {
}

func NewInteractiveBrokerCommissionFee() CommissionFee {
	return &InteractiveBrokerCommissionFee{}
}

func (c *InteractiveBrokerCommissionFee) Calculate(size int64, price float64) float64 {
	fee := 0.005 * float64(size)
	if fee < 1.0 {
		return 1.0
	}

	return fee
}

// GetCommissionFeeHandler maps a configured model to its implementation.
// The rate parameter is only meaningful for the fixed-rate model.
func GetCommissionFeeHandler(model CommissionModel, rate float64) CommissionFee {
	switch model {
	case CommissionModelFixedRate:
		return NewFixedRateCommissionFee(rate)
	case CommissionModelInteractiveBroker:
		return NewInteractiveBrokerCommissionFee()
	case CommissionModelZero:
		return NewZeroCommissionFee()
	default:
		return NewZeroCommissionFee()
	}
}
