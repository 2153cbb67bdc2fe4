package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow(t *testing.T) {
	w := NewWindow(3)
	for i := 1; i <= 5; i++ {
		w.Push(float64(i))
		assert.LessOrEqual(t, w.Len(), 3)
	}
	assert.Equal(t, []float64{3, 4, 5}, w.Values)
	assert.Equal(t, []float64{4, 5}, w.Last(2))
	assert.Nil(t, w.Last(4))

	oldest, ok := w.Oldest()
	assert.True(t, ok)
	assert.Equal(t, 3.0, oldest)

	c := w.clone()
	c.Push(6)
	assert.Equal(t, []float64{3, 4, 5}, w.Values)
}

func TestMovingAverageAndStdDev(t *testing.T) {
	closes := []float64{102, 105, 106, 108, 110}

	t.Run("moving average of the newest values", func(t *testing.T) {
		v, err := MA(closes, 3)
		assert.NoError(t, err)
		assert.InDelta(t, (106.0+108.0+110.0)/3.0, v, 1e-12)

		w := NewWindow(3)
		for _, c := range closes {
			w.Push(c)
		}
		assert.InDelta(t, v, *smaOf(&w, 3), 1e-12)
		assert.Nil(t, smaOf(&w, 4))
	})

	t.Run("population standard deviation", func(t *testing.T) {
		v, err := StdDev([]float64{1, 2, 3, 4}, 2)
		assert.NoError(t, err)
		assert.InDelta(t, 0.5, v, 1e-12)

		v, err = StdDev([]float64{5, 5, 5}, 3)
		assert.NoError(t, err)
		assert.Equal(t, 0.0, v)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := MA(closes, 0)
		assert.Error(t, err)
		_, err = MA(closes, 6)
		assert.Error(t, err)
		_, err = StdDev(closes, -1)
		assert.Error(t, err)
		_, err = StdDev(closes, 6)
		assert.Error(t, err)
	})
}

func TestExponentialMAStreaming(t *testing.T) {
	t.Run("seeded by sma", func(t *testing.T) {
		ema := NewEMA(3)
		ema.Update(2)
		ema.Update(4)
		assert.False(t, ema.Ready())
		ema.Update(6)
		assert.True(t, ema.Ready())
		assert.InDelta(t, 4.0, ema.Value(), 1e-12)

		// k = 0.5
		ema.Update(8)
		assert.InDelta(t, 6.0, ema.Value(), 1e-12)
	})

	t.Run("matches closed form", func(t *testing.T) {
		closes := make([]float64, 0, 200)
		for i := 0; i < 200; i++ {
			closes = append(closes, 100+10*float64(i%7)-3*float64(i%5)+0.01*float64(i))
		}
		for _, period := range []int{12, 26} {
			ema := NewEMA(period)
			for n, c := range closes {
				ema.Update(c)
				if n+1 < period {
					continue
				}
				want, err := EMAClosedForm(closes[:n+1], period)
				assert.NoError(t, err)
				assert.InEpsilon(t, want, ema.Value(), 1e-9)
			}
		}
	})

	t.Run("errors", func(t *testing.T) {
		_, err := EMAClosedForm([]float64{1, 2}, 3)
		assert.Error(t, err)
		_, err = EMAClosedForm([]float64{1, 2}, 0)
		assert.Error(t, err)
	})
}

func TestRSIWilder(t *testing.T) {
	t.Run("all gains is 100", func(t *testing.T) {
		r := NewRSI(14)
		for i := 1; i <= 15; i++ {
			r.Update(float64(i))
			if i < 15 {
				assert.False(t, r.Ready(), "close %d", i)
			}
		}
		assert.True(t, r.Ready())
		assert.Equal(t, 100.0, r.Value())
	})

	t.Run("wilder smoothing", func(t *testing.T) {
		r := NewRSI(2)
		for _, c := range []float64{10, 12, 11} {
			r.Update(c)
		}
		// changes +2, -1
		assert.InDelta(t, 1.0, r.AvgGain, 1e-12)
		assert.InDelta(t, 0.5, r.AvgLoss, 1e-12)
		assert.InDelta(t, 100-100/(1+2.0), r.Value(), 1e-12)

		r.Update(14) // +3
		assert.InDelta(t, (1.0*1+3)/2, r.AvgGain, 1e-12)
		assert.InDelta(t, (0.5*1+0)/2, r.AvgLoss, 1e-12)
	})

	t.Run("bounded", func(t *testing.T) {
		r := NewRSI(14)
		for i := 0; i < 100; i++ {
			r.Update(100 + 5*float64((i*7)%11) - 20*float64(i%3))
			if r.Ready() {
				v := r.Value()
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 100.0)
			}
		}
	})
}

func TestPctReturns(t *testing.T) {
	rets, err := PctReturns([]float64{100, 110, 99})
	assert.NoError(t, err)
	assert.InDeltaSlice(t, []float64{10, -10}, rets, 1e-12)

	_, err = PctReturns([]float64{0, 1})
	assert.Error(t, err)

	rets, err = PctReturns([]float64{1})
	assert.NoError(t, err)
	assert.Nil(t, rets)
}
