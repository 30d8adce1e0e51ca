package core

// AssetInfo contains market information about a trading pair
type AssetInfo struct {
	BaseAsset  string
	QuoteAsset string

	MinPrice float64
	MaxPrice float64
	TickSize float64

	QuotePrecision int
}

// GetTickSize returns the tick size for price increments
func (a AssetInfo) GetTickSize() float64 { return a.TickSize }

// GetQuotePrecision returns the precision of the quote asset
func (a AssetInfo) GetQuotePrecision() int { return a.QuotePrecision }
