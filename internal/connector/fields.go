package connector

import "strconv"

// Upstream market objects arrive with heterogeneous schemas depending on the
// endpoint that produced them. Each logical attribute is looked up through an
// ordered list of field-name candidates, tried until one parses.
var (
	tickerAliases   = []string{"ticker", "market_ticker"}
	titleAliases    = []string{"title", "subtitle", "question"}
	yesBidAliases   = []string{"yes_bid", "yes_best_bid", "best_yes_bid"}
	yesAskAliases   = []string{"yes_ask", "yes_best_ask", "best_yes_ask"}
	yesPriceAliases = []string{"yes_price", "yes_mid", "mid_yes"}
	lastAliases     = []string{"last_price", "last_trade_price"}
	volumeAliases   = []string{"volume", "volume_24h", "volume24h", "volume_total"}
	obPriceAliases  = []string{"price", "px"}
	obQtyAliases    = []string{"quantity", "qty", "size"}
)

// firstFloat returns the first alias whose value parses as a number.
func firstFloat(m map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := toFloat(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// firstString returns the first alias with a non-empty string value.
func firstString(m map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// toFloat converts a decoded JSON value to float64. Upstream encodes numbers
// both natively and as strings.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// asMaps narrows a decoded JSON array to its object elements.
func asMaps(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
