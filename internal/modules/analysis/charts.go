package analysis

import (
	"encoding/json"
	"math"
	"time"

	"github.com/aristath/finmetrics/internal/domain"
	"github.com/aristath/finmetrics/pkg/formulas"
	"gonum.org/v1/gonum/mat"
)

const (
	// HistogramBins is the number of bins in the returns distribution
	HistogramBins = 50
	// IndicatorWindow is the look-back of the moving average and rolling volatility
	IndicatorWindow = 20
)

// CorrelationLabels are the correlation matrix rows and columns, in order
var CorrelationLabels = []string{"Open", "High", "Low", "Close", "Volume", "Returns"}

// LinePoint pairs a close price with the return realized on that date.
// Return is NaN on the first date.
type LinePoint struct {
	Date   time.Time
	Close  float64
	Return float64
}

// MarshalJSON encodes a NaN return as null
func (p LinePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date   time.Time `json:"date"`
		Close  float64   `json:"close"`
		Return *float64  `json:"return"`
	}{p.Date, p.Close, nullable(p.Return)})
}

// SeriesPoint is one value of a derived time series
type SeriesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// CorrelationMatrix is a labelled Pearson correlation matrix. Entries involving
// a constant column are NaN.
type CorrelationMatrix struct {
	Labels []string
	Values [][]float64
}

// At returns the correlation between two labels, NaN if either is unknown
func (c CorrelationMatrix) At(row, col string) float64 {
	i, j := indexOf(c.Labels, row), indexOf(c.Labels, col)
	if i < 0 || j < 0 {
		return math.NaN()
	}
	return c.Values[i][j]
}

// MarshalJSON encodes NaN entries as null
func (c CorrelationMatrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(c.Values))
	for i, row := range c.Values {
		values[i] = make([]*float64, len(row))
		for j, v := range row {
			values[i][j] = nullable(v)
		}
	}
	return json.Marshal(struct {
		Labels []string     `json:"labels"`
		Values [][]*float64 `json:"values"`
	}{c.Labels, values})
}

// Histogram is the distribution of returns. len(Edges) == len(Counts)+1.
type Histogram struct {
	Edges  []float64 `json:"edges"`
	Counts []float64 `json:"counts"`
}

// ChartData holds the data series behind the dashboard charts. Rendering is
// left to the consumer.
type ChartData struct {
	Line              []LinePoint        `json:"line"`
	Correlation       *CorrelationMatrix `json:"correlation,omitempty"`
	Histogram         Histogram          `json:"histogram"`
	MovingAverage     []SeriesPoint      `json:"moving_average"`
	RollingVolatility []SeriesPoint      `json:"rolling_volatility"`
}

// BuildCharts derives chart data from prices and their returns. rets must
// have been computed from prices.
func BuildCharts(prices domain.PriceSeries, rets domain.ReturnSeries) ChartData {
	values := rets.Values()
	dates := prices.Dates()
	closes := prices.Closes()

	charts := ChartData{
		Line:              make([]LinePoint, len(prices.Bars)),
		MovingAverage:     []SeriesPoint{},
		RollingVolatility: []SeriesPoint{},
	}

	for i, bar := range prices.Bars {
		r := math.NaN()
		if i > 0 && i-1 < len(values) {
			r = values[i-1]
		}
		charts.Line[i] = LinePoint{Date: bar.Date, Close: bar.Close, Return: r}
	}

	charts.Correlation = correlation(prices, values)

	edges, counts := formulas.Histogram(values, HistogramBins)
	charts.Histogram = Histogram{Edges: edges, Counts: counts}

	if sma := formulas.SMA(closes, IndicatorWindow); sma != nil {
		charts.MovingAverage = toSeries(dates[IndicatorWindow-1:], sma)
	}
	if vol := formulas.RollingStdDev(values, IndicatorWindow); vol != nil {
		charts.RollingVolatility = toSeries(rets.Dates()[IndicatorWindow-1:], vol)
	}

	return charts
}

// correlation builds the OHLCV+Returns matrix over the bars that have a
// return, i.e. all but the first. Nil with fewer than two such bars.
func correlation(prices domain.PriceSeries, values []float64) *CorrelationMatrix {
	rows := len(values)
	if rows < 2 || rows != prices.Len()-1 {
		return nil
	}

	data := mat.NewDense(rows, len(CorrelationLabels), nil)
	for i := 0; i < rows; i++ {
		bar := prices.Bars[i+1]
		data.SetRow(i, []float64{bar.Open, bar.High, bar.Low, bar.Close, float64(bar.Volume), values[i]})
	}

	corr := formulas.CorrelationMatrix(data)
	n := len(CorrelationLabels)
	out := &CorrelationMatrix{
		Labels: append([]string(nil), CorrelationLabels...),
		Values: make([][]float64, n),
	}
	for i := 0; i < n; i++ {
		out.Values[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out.Values[i][j] = corr.At(i, j)
		}
	}
	return out
}

func toSeries(dates []time.Time, values []float64) []SeriesPoint {
	out := make([]SeriesPoint, len(values))
	for i, v := range values {
		out[i] = SeriesPoint{Date: dates[i], Value: v}
	}
	return out
}

func indexOf(labels []string, label string) int {
	for i, l := range labels {
		if l == label {
			return i
		}
	}
	return -1
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
