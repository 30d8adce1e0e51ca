package exchange

import (
	"strings"

	"github.com/samber/lo"
)

// quotes are checked longest first so "FDUSD" wins over "USD"
var quotes = []string{"FDUSD", "USDT", "USDC", "TUSD", "BUSD", "BTC", "ETH", "BNB", "EUR", "BRL", "TRY", "USD"}

// SplitAssetQuote splits a pair symbol such as BTCUSDT into base and quote.
// Unknown quotes leave the whole symbol as base.
func SplitAssetQuote(pair string) (asset string, quote string) {
	pair = strings.ToUpper(pair)
	if base, q, found := strings.Cut(pair, "/"); found {
		return base, q
	}

	quote, ok := lo.Find(quotes, func(q string) bool {
		return len(pair) > len(q) && strings.HasSuffix(pair, q)
	})
	if !ok {
		return pair, ""
	}
	return strings.TrimSuffix(pair, quote), quote
}
