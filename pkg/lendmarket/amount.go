package lendmarket

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/rotisserie/eris"
)

// wadScale is the fixed-point scale the market service uses on the wire.
const wadScale = 18

type amountKind int

const (
	amountRaw    amountKind = iota // integer scaled by 10^18
	amountScaled                   // integer with an explicit scale
)

// Amount is a fixed-point decimal as the market service encodes it. The
// service is inconsistent about shapes — raw JSON numbers, decimal strings,
// big-integer strings, and {"value": ..., "scale": n} wrappers all appear —
// so all decoding funnels through UnmarshalJSON and all conversion through
// Float. No other code inspects the wire shape.
type Amount struct {
	kind  amountKind
	value *big.Int
	scale int
}

// AmountFromRaw builds an Amount from a 10^18-scaled integer. Used by fakes
// and tests.
func AmountFromRaw(v *big.Int) Amount {
	return Amount{kind: amountRaw, value: new(big.Int).Set(v)}
}

// AmountFromScaled builds an Amount from an integer with an explicit scale.
func AmountFromScaled(v *big.Int, scale int) Amount {
	return Amount{kind: amountScaled, value: new(big.Int).Set(v), scale: scale}
}

// IsZero reports whether the amount is unset or exactly zero.
func (a Amount) IsZero() bool {
	return a.value == nil || a.value.Sign() == 0
}

// Float converts to display units (USD), scaling down by 10^scale.
func (a Amount) Float() float64 {
	if a.value == nil {
		return 0
	}
	scale := wadScale
	if a.kind == amountScaled {
		scale = a.scale
	}
	f := new(big.Float).SetInt(a.value)
	if scale > 0 {
		div := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil))
		f.Quo(f, div)
	}
	out, _ := f.Float64()
	return out
}

// UnmarshalJSON accepts every shape the service emits.
func (a *Amount) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*a = Amount{}
		return nil
	}

	// Wrapper object: {"value": <number|string>, "scale": n}.
	if strings.HasPrefix(trimmed, "{") {
		var wrapper struct {
			Value json.RawMessage `json:"value"`
			Scale *int            `json:"scale"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return eris.Wrap(err, "lendmarket: unmarshal amount wrapper")
		}
		if wrapper.Value == nil {
			return eris.New("lendmarket: amount wrapper missing value")
		}
		var inner Amount
		if err := inner.UnmarshalJSON(wrapper.Value); err != nil {
			return err
		}
		if wrapper.Scale != nil {
			inner.kind = amountScaled
			inner.scale = *wrapper.Scale
		}
		*a = inner
		return nil
	}

	// Quoted string: big-integer or decimal digits.
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "lendmarket: unmarshal amount string")
		}
		return a.setFromString(s)
	}

	// Bare number. Decode through json.Number so integer precision beyond
	// float64 is preserved.
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return eris.Wrap(err, "lendmarket: unmarshal amount number")
	}
	return a.setFromString(n.String())
}

func (a *Amount) setFromString(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*a = Amount{}
		return nil
	}

	// Integer fast path covers the common big-integer encoding.
	if v, ok := new(big.Int).SetString(s, 10); ok {
		*a = Amount{kind: amountRaw, value: v}
		return nil
	}

	// Fractional string: parse exactly and rescale to 10^18.
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return eris.Errorf("lendmarket: cannot parse amount %q", s)
	}
	wad := new(big.Int).Exp(big.NewInt(10), big.NewInt(wadScale), nil)
	r.Mul(r, new(big.Rat).SetInt(wad))
	// Truncate any remaining fraction; it is below display precision.
	v := new(big.Int).Quo(r.Num(), r.Denom())
	*a = Amount{kind: amountRaw, value: v}
	return nil
}

// MarshalJSON emits the canonical big-integer string encoding.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.value == nil {
		return []byte(`"0"`), nil
	}
	if a.kind == amountScaled {
		return json.Marshal(map[string]any{
			"value": a.value.String(),
			"scale": a.scale,
		})
	}
	return json.Marshal(a.value.String())
}
