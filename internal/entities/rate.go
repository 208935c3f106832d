package entities

import "time"

// RateData is a normalized rate as returned by a provider: Ratio units of
// TargetCurrency for one unit of SourceCurrency.
type RateData struct {
	SourceCurrency string
	TargetCurrency string
	Ratio          float64
	ObservedAt     time.Time
}

func NewRateData(source, target string, ratio float64, observedAt time.Time) RateData {
	return RateData{
		SourceCurrency: source,
		TargetCurrency: target,
		Ratio:          ratio,
		ObservedAt:     observedAt,
	}
}

type Currency struct {
	ID   int64
	Code string
}

// ExchangeRate is the persisted rate of an ordered currency pair.
type ExchangeRate struct {
	ID        int64
	Source    Currency
	Target    Currency
	Ratio     float64
	UpdatedAt time.Time
}
