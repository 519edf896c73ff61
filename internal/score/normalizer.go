package score

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/ppiankov/provenance-radar/internal/model"
)

// Record fields written by ApplyTo
const (
	FieldRiskScore      = "risk_score"            // Raw on input, normalized 0-1 on output
	FieldRiskRaw        = "risk_score_raw"        // Original raw ratio
	FieldRiskScaled     = "risk_score_norm_0_99"  // 0-99 reference scale
	FieldRiskNormalized = "risk_score_normalized" // Alias of the normalized value
)

// Curve anchors on the 0-99 scale, in the percent domain (ratio*100)
const (
	ceiling     = 99.0
	anchorLow   = 55.0 // reached at 100%
	anchorMid   = 80.0 // reached at 200%
	lowExponent = 0.7
	midExponent = 0.8
	tailSpan    = 1800.0 // percent span over which the tail gap shrinks 100x
)

// Normalizer rescales unbounded raw risk ratios into a bounded, monotone score
type Normalizer struct {
	tailRate float64
}

// NewNormalizer creates a new normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{
		tailRate: math.Log(100) / tailSpan,
	}
}

// Normalize maps a raw ratio (1.0 = 100%) to a score in [0, 0.99]
func (n *Normalizer) Normalize(ratio float64) float64 {
	pct := ratio * 100
	if pct < 0 || math.IsNaN(pct) {
		pct = 0
	}
	out := n.scaled(pct)
	return round(out/100, 6)
}

// scaled evaluates the piecewise curve on the 0-99 scale:
//
//	[0,100]    55 * (p/100)^0.7
//	(100,200]  55 + 25 * ((p-100)/100)^0.8
//	>200       99 - 19 * exp(-k * (p-200)),  k = ln(100)/1800
func (n *Normalizer) scaled(pct float64) float64 {
	var out float64
	switch {
	case pct <= 100:
		out = anchorLow * math.Pow(pct/100, lowExponent)
	case pct <= 200:
		out = anchorLow + (anchorMid-anchorLow)*math.Pow((pct-100)/100, midExponent)
	default:
		out = ceiling - (ceiling-anchorMid)*math.Exp(-n.tailRate*(pct-200))
	}
	return math.Max(0, math.Min(out, ceiling))
}

// Score returns the raw ratio together with both observable scales
func (n *Normalizer) Score(ratio float64) model.RiskScore {
	normalized := n.Normalize(ratio)
	return model.RiskScore{
		Raw:        ratio,
		Scaled:     round(normalized*100, 2),
		Normalized: normalized,
	}
}

// ApplyTo rewrites a row's risk_score in place. The raw ratio moves to
// risk_score_raw; risk_score and risk_score_normalized both carry the 0-1
// value because clients read either name. Rows without a usable ratio are
// left untouched and false is returned.
func (n *Normalizer) ApplyTo(record map[string]any) bool {
	if record == nil {
		return false
	}
	raw, ok := CoerceRatio(record[FieldRiskScore])
	if !ok {
		return false
	}
	s := n.Score(raw)
	record[FieldRiskRaw] = s.Raw
	record[FieldRiskScaled] = s.Scaled
	record[FieldRiskScore] = s.Normalized
	record[FieldRiskNormalized] = s.Normalized
	return true
}

// CoerceRatio extracts a raw ratio from loosely typed input. Numbers,
// json.Number and numeric strings (with an optional "%") are accepted;
// anything else reports no ratio.
func CoerceRatio(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case *float64:
		if x == nil {
			return 0, false
		}
		f = *x
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(x, "%", "")), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case []byte:
		return CoerceRatio(string(x))
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
