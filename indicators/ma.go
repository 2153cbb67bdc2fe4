package indicators

import (
	"fmt"
	"math"
)

// MA calculates the simple moving average of the last period values.
func MA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(values) < period {
		return 0, fmt.Errorf("not enough values: need %d, got %d", period, len(values))
	}
	return mean(values[len(values)-period:]), nil
}

// EMAClosedForm evaluates the SMA-seeded EMA of values without recursion:
//
//	ema_n = (1-k)^(n-p) * SMA_p + sum_{i=p+1..n} k*(1-k)^(n-i) * v_i
func EMAClosedForm(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(values) < period {
		return 0, fmt.Errorf("not enough values: need %d, got %d", period, len(values))
	}

	k := 2.0 / float64(period+1)
	n := len(values)
	seed := mean(values[:period])

	ema := math.Pow(1-k, float64(n-period)) * seed
	for i := period; i < n; i++ {
		ema += k * math.Pow(1-k, float64(n-1-i)) * values[i]
	}
	return ema, nil
}

// StdDev is the population standard deviation of the last period values.
func StdDev(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(values) < period {
		return 0, fmt.Errorf("not enough values: need %d, got %d", period, len(values))
	}
	return popStd(values[len(values)-period:]), nil
}

// PctReturns converts prices to percentage returns, one fewer than given.
// A zero price makes the following return undefined and is reported.
func PctReturns(prices []float64) ([]float64, error) {
	if len(prices) < 2 {
		return nil, nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			return nil, fmt.Errorf("zero price at %d", i-1)
		}
		out = append(out, (prices[i]-prices[i-1])/prices[i-1]*100)
	}
	return out, nil
}
