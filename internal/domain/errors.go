package domain

import "fmt"

// InsufficientDataError is returned when a computation needs more observations
// than were supplied
type InsufficientDataError struct {
	What     string // e.g. "prices", "returns"
	Required int
	Got      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need at least %d %s, got %d", e.Required, e.What, e.Got)
}

// DataUnavailableError is returned when market data cannot be retrieved
type DataUnavailableError struct {
	Symbol string
	Reason string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	msg := fmt.Sprintf("data unavailable for %s", e.Symbol)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

// OptimizationFailure is returned when the portfolio solver does not converge.
// LastWeights holds the last iterate mapped onto the feasible set.
type OptimizationFailure struct {
	Status      string
	LastWeights map[string]float64
	Err         error
}

func (e *OptimizationFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("optimization did not converge: status=%s: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("optimization did not converge: status=%s", e.Status)
}

func (e *OptimizationFailure) Unwrap() error {
	return e.Err
}

// ValidationError reports an invalid input parameter
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
