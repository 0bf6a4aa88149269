package provider

import "strings"

// quoteCurrencies are the suffixes recognised when splitting a canonical symbol.
// Longer suffixes come first so BTCUSDT never matches a shorter code.
var quoteCurrencies = []string{"USDT", "JPY"}

// Canonical upper-cases s and removes the "/", "-" and "_" separators:
// "btc/jpy", "BTC-JPY" and "BTC_JPY" all become "BTCJPY".
func Canonical(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("/", "", "-", "", "_", "").Replace(s)
}

// SplitSymbol returns base and quote currency for a canonical symbol.
// ok is false when no recognised quote currency suffix is present.
func SplitSymbol(canonical string) (base, quote string, ok bool) {
	for _, q := range quoteCurrencies {
		if len(canonical) > len(q) && strings.HasSuffix(canonical, q) {
			return strings.TrimSuffix(canonical, q), q, true
		}
	}
	return "", "", false
}

// FormatSymbol converts s to a source-specific form joined by sep,
// e.g. FormatSymbol("BTCJPY", "_") == "BTC_JPY". Symbols whose suffix is not
// recognised are returned canonicalised but otherwise unchanged.
func FormatSymbol(s, sep string) string {
	c := Canonical(s)
	base, quote, ok := SplitSymbol(c)
	if !ok {
		return c
	}
	return base + sep + quote
}
