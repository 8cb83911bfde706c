package simulator

import (
	"fmt"

	"costsim/internal/validation"
)

// ParameterKind identifies which field of Parameters a ParameterChange
// carries. The set is closed to the six fields spec.md names; it is
// not meant to grow without revisiting the whole control surface.
type ParameterKind int

const (
	ParamExchange ParameterKind = iota
	ParamSpotAsset
	ParamOrderType
	ParamQuantity
	ParamVolatility
	ParamFeeTier
)

func (k ParameterKind) String() string {
	switch k {
	case ParamExchange:
		return "exchange"
	case ParamSpotAsset:
		return "spot_asset"
	case ParamOrderType:
		return "order_type"
	case ParamQuantity:
		return "quantity"
	case ParamVolatility:
		return "volatility"
	case ParamFeeTier:
		return "fee_tier"
	default:
		return "unknown"
	}
}

// ParameterChange is a tagged union over the closed parameter set:
// exactly one of StringValue/FloatValue is meaningful, selected by
// Kind. Construct only through the named constructors below or
// ParseParameterChange — never build the struct literal directly at a
// call site, so the Kind/value pairing can't drift apart.
type ParameterChange struct {
	Kind        ParameterKind
	StringValue string
	FloatValue  float64
}

func ExchangeChange(v string) ParameterChange  { return ParameterChange{Kind: ParamExchange, StringValue: v} }
func SpotAssetChange(v string) ParameterChange { return ParameterChange{Kind: ParamSpotAsset, StringValue: v} }
func OrderTypeChange(v string) ParameterChange { return ParameterChange{Kind: ParamOrderType, StringValue: v} }
func QuantityChange(v float64) ParameterChange { return ParameterChange{Kind: ParamQuantity, FloatValue: v} }
func VolatilityChange(v float64) ParameterChange {
	return ParameterChange{Kind: ParamVolatility, FloatValue: v}
}
func FeeTierChange(v string) ParameterChange { return ParameterChange{Kind: ParamFeeTier, StringValue: v} }

// ParseParameterChange validates name against the closed set {exchange,
// spot_asset, order_type, quantity, volatility, fee_tier} and coerces
// value, for control-surface callers (HTTP handlers) that receive
// untyped name/value pairs.
func ParseParameterChange(name string, value interface{}) (ParameterChange, error) {
	switch name {
	case "exchange":
		s, err := asString(value)
		if err != nil {
			return ParameterChange{}, err
		}
		return ExchangeChange(s), nil
	case "spot_asset":
		s, err := asString(value)
		if err != nil {
			return ParameterChange{}, err
		}
		if err := validation.ValidateSymbol(s); err != nil {
			return ParameterChange{}, fmt.Errorf("simulator: %w", err)
		}
		return SpotAssetChange(s), nil
	case "order_type":
		s, err := asString(value)
		if err != nil {
			return ParameterChange{}, err
		}
		return OrderTypeChange(s), nil
	case "quantity":
		f, err := asFloat(value)
		if err != nil {
			return ParameterChange{}, err
		}
		if err := validation.ValidateVolume(f); err != nil {
			return ParameterChange{}, fmt.Errorf("simulator: %w", err)
		}
		return QuantityChange(f), nil
	case "volatility":
		f, err := asFloat(value)
		if err != nil {
			return ParameterChange{}, err
		}
		if f < 0 || f > 1 {
			return ParameterChange{}, fmt.Errorf("simulator: volatility must be in [0, 1], got %v", f)
		}
		return VolatilityChange(f), nil
	case "fee_tier":
		s, err := asString(value)
		if err != nil {
			return ParameterChange{}, err
		}
		return FeeTierChange(s), nil
	default:
		return ParameterChange{}, fmt.Errorf("simulator: unknown parameter %q", name)
	}
}

func asString(value interface{}) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("simulator: expected a string value, got %T", value)
	}
	return s, nil
}

func asFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("simulator: expected a numeric value, got %T", value)
	}
}

// Parameters is the active control-surface parameter set the
// simulator reads at the start of every full simulation.
type Parameters struct {
	Exchange    string  `json:"exchange"`
	SpotAsset   string  `json:"spotAsset"`
	OrderType   string  `json:"orderType"`
	QuantityUSD float64 `json:"quantityUsd"`
	Volatility  float64 `json:"volatility"`
	FeeTier     string  `json:"feeTier"`
}

func (p Parameters) apply(c ParameterChange) Parameters {
	switch c.Kind {
	case ParamExchange:
		p.Exchange = c.StringValue
	case ParamSpotAsset:
		p.SpotAsset = c.StringValue
	case ParamOrderType:
		p.OrderType = c.StringValue
	case ParamQuantity:
		p.QuantityUSD = c.FloatValue
	case ParamVolatility:
		p.Volatility = c.FloatValue
	case ParamFeeTier:
		p.FeeTier = c.StringValue
	}
	return p
}
