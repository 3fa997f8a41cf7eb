package model

// AccountInformation describes the trading account commission setup.
type AccountInformation struct {
	MakerCommissionRate float64
	TakerCommissionRate float64
	CanTrade            bool
}

// Balance is the free/locked amount of one asset.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// Total returns free + locked.
func (b Balance) Total() float64 {
	return b.Free + b.Locked
}

// SymbolInformation carries the precision setup of one trading pair.
type SymbolInformation struct {
	BaseAsset           string
	QuoteAsset          string
	BaseAssetPrecision  int32
	QuoteAssetPrecision int32
}

// Symbol returns the concatenated exchange symbol.
func (s SymbolInformation) Symbol() string {
	return s.BaseAsset + s.QuoteAsset
}
