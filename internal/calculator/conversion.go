package calculator

import (
	"errors"
	"math"
)

// Conversion returns success/payments as a percentage rounded to two
// decimals, or 0 when there were no payments.
func Conversion(success, payments int) float64 {
	if payments <= 0 {
		return 0
	}
	return math.Round(float64(success)/float64(payments)*100*100) / 100
}

// CalculateSMA computes the simple moving average of the given values over the specified period.
func CalculateSMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(values) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), nil
}

// RollingConversion is the cascade conversion over the last window outcomes,
// as a percentage. With fewer outcomes than window it averages what it has.
func RollingConversion(outcomes []int, window int) (float64, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}
	if len(outcomes) == 0 {
		return 0, nil
	}
	if len(outcomes) < window {
		window = len(outcomes)
	}
	values := make([]float64, len(outcomes))
	for i, o := range outcomes {
		values[i] = float64(o)
	}
	sma, err := CalculateSMA(values, window)
	if err != nil {
		return 0, err
	}
	return math.Round(sma*100*100) / 100, nil
}
