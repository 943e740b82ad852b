package indicators

import "fmt"

// EMA computes the exponential moving average of values with smoothing factor
// alpha = 2/(period+1). The series is seeded with the first value and defined at
// every index: ema[0] = v[0], ema[i] = alpha*v[i] + (1-alpha)*ema[i-1].
func EMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid EMA period %d: must be positive", period)
	}
	if len(values) == 0 {
		return nil, nil
	}

	alpha := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out, nil
}

// SMA computes a simple moving average series. Indices before the first full
// window average the values seen so far.
func SMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid SMA period %d: must be positive", period)
	}
	if len(values) == 0 {
		return nil, nil
	}

	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		n := period
		if i+1 < period {
			n = i + 1
		}
		out[i] = sum / float64(n)
	}
	return out, nil
}
