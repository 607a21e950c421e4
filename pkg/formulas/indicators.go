package formulas

import (
	"github.com/markcheno/go-talib"
)

// SMA returns the simple moving average of values over period.
// The result starts at values[period-1]; nil when there is not enough data.
func SMA(values []float64, period int) []float64 {
	if period < 1 || len(values) < period {
		return nil
	}
	sma := talib.Sma(values, period)
	return sma[period-1:]
}

// RollingStdDev returns the rolling population standard deviation of values
// over period, aligned like SMA.
func RollingStdDev(values []float64, period int) []float64 {
	if period < 1 || len(values) < period {
		return nil
	}
	std := talib.StdDev(values, period, 1.0)
	return std[period-1:]
}
