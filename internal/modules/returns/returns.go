// Package returns derives period return series from price series and lines
// up several series on common dates.
package returns

import (
	"fmt"
	"time"

	"github.com/aristath/finmetrics/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// MinPrices is the number of bars needed to produce one return
const MinPrices = 2

// Compute derives simple period returns close[t]/close[t-1] - 1 from prices.
// The first period has no predecessor and is dropped, so the result is one
// element shorter than the input and each point carries the later bar's date.
func Compute(prices domain.PriceSeries) (domain.ReturnSeries, error) {
	if prices.Len() < MinPrices {
		return domain.ReturnSeries{}, &domain.InsufficientDataError{
			What:     "prices",
			Required: MinPrices,
			Got:      prices.Len(),
		}
	}

	points := make([]domain.ReturnPoint, prices.Len()-1)
	for i := 1; i < prices.Len(); i++ {
		prev := prices.Bars[i-1].Close
		points[i-1] = domain.ReturnPoint{
			Date:  prices.Bars[i].Date,
			Value: prices.Bars[i].Close/prev - 1,
		}
	}

	return domain.ReturnSeries{Symbol: prices.Symbol, Points: points}, nil
}

// dayKey normalizes a timestamp to its UTC calendar day
func dayKey(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Align inner-joins a and b on calendar date. Dates present in only one
// series are dropped; the results keep a's ordering and share their dates.
func Align(a, b domain.ReturnSeries) (domain.ReturnSeries, domain.ReturnSeries) {
	byDay := make(map[time.Time]float64, b.Len())
	for _, p := range b.Points {
		byDay[dayKey(p.Date)] = p.Value
	}

	outA := domain.ReturnSeries{Symbol: a.Symbol}
	outB := domain.ReturnSeries{Symbol: b.Symbol}
	for _, p := range a.Points {
		v, ok := byDay[dayKey(p.Date)]
		if !ok {
			continue
		}
		outA.Points = append(outA.Points, p)
		outB.Points = append(outB.Points, domain.ReturnPoint{Date: p.Date, Value: v})
	}

	return outA, outB
}

// Matrix builds a returns matrix with one column per asset and one row per
// date common to every series. It returns the common dates alongside.
func Matrix(assets []string, series []domain.ReturnSeries) (*mat.Dense, []time.Time, error) {
	if len(assets) == 0 {
		return nil, nil, fmt.Errorf("no assets supplied")
	}
	if len(assets) != len(series) {
		return nil, nil, fmt.Errorf("asset count %d does not match series count %d", len(assets), len(series))
	}

	// Count how many series carry each day; keep days seen in all of them
	counts := make(map[time.Time]int)
	for _, s := range series {
		for _, p := range s.Points {
			counts[dayKey(p.Date)]++
		}
	}

	var dates []time.Time
	for _, p := range series[0].Points {
		if counts[dayKey(p.Date)] == len(series) {
			dates = append(dates, dayKey(p.Date))
		}
	}
	if len(dates) < 2 {
		return nil, nil, &domain.InsufficientDataError{What: "common return dates", Required: 2, Got: len(dates)}
	}

	rowOf := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		rowOf[d] = i
	}

	m := mat.NewDense(len(dates), len(assets), nil)
	for j, s := range series {
		for _, p := range s.Points {
			if i, ok := rowOf[dayKey(p.Date)]; ok {
				m.Set(i, j, p.Value)
			}
		}
	}

	return m, dates, nil
}

// FromValues wraps raw return values in a single-column matrix
func FromValues(values []float64) *mat.Dense {
	data := make([]float64, len(values))
	copy(data, values)
	return mat.NewDense(len(values), 1, data)
}
