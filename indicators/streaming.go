package indicators

import "math"

// Window is a fixed-capacity sliding window of values, oldest first.
// Pushing onto a full window evicts the oldest value.
type Window struct {
	Cap    int       `json:"cap"`
	Values []float64 `json:"values"`
}

func NewWindow(capacity int) Window {
	return Window{Cap: capacity, Values: make([]float64, 0, capacity)}
}

func (w *Window) Push(v float64) {
	if w.Cap <= 0 {
		return
	}
	if len(w.Values) < w.Cap {
		w.Values = append(w.Values, v)
		return
	}
	copy(w.Values, w.Values[1:])
	w.Values[len(w.Values)-1] = v
}

func (w *Window) Len() int { return len(w.Values) }

// Last returns the newest n values, oldest first. It returns nil when
// fewer than n values are held.
func (w *Window) Last(n int) []float64 {
	if n <= 0 || len(w.Values) < n {
		return nil
	}
	return w.Values[len(w.Values)-n:]
}

// Oldest returns the oldest value held.
func (w *Window) Oldest() (float64, bool) {
	if len(w.Values) == 0 {
		return 0, false
	}
	return w.Values[0], true
}

func (w Window) clone() Window {
	c := Window{Cap: w.Cap, Values: make([]float64, len(w.Values), w.Cap)}
	copy(c.Values, w.Values)
	return c
}

// EMA is a streaming exponential moving average seeded with the SMA of
// its first Period values.
type EMA struct {
	Period    int     `json:"period"`
	Count     int     `json:"count"`
	WarmupSum float64 `json:"warmup_sum"`
	Current   float64 `json:"value"`
}

func NewEMA(period int) *EMA {
	return &EMA{Period: period}
}

// Multiplier is k = 2/(n+1).
func (e *EMA) Multiplier() float64 {
	return 2.0 / float64(e.Period+1)
}

func (e *EMA) Update(v float64) {
	if e.Count < e.Period {
		e.WarmupSum += v
		e.Count++
		if e.Count == e.Period {
			e.Current = e.WarmupSum / float64(e.Period)
		}
		return
	}
	k := e.Multiplier()
	e.Current = v*k + e.Current*(1-k)
	e.Count++
}

func (e *EMA) Ready() bool { return e.Period > 0 && e.Count >= e.Period }

func (e *EMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.Current
}

// RSI is Wilder's relative strength index. The first average gain and
// loss are simple means of the first Period changes; later ones use
// avg = (avg*(n-1) + current) / n.
type RSI struct {
	Period    int     `json:"period"`
	Changes   int     `json:"changes"`
	PrevClose float64 `json:"prev_close"`
	HasPrev   bool    `json:"has_prev"`
	SumGain   float64 `json:"sum_gain"`
	SumLoss   float64 `json:"sum_loss"`
	AvgGain   float64 `json:"avg_gain"`
	AvgLoss   float64 `json:"avg_loss"`
}

func NewRSI(period int) *RSI {
	return &RSI{Period: period}
}

func (r *RSI) Update(v float64) {
	if !r.HasPrev {
		r.PrevClose = v
		r.HasPrev = true
		return
	}
	change := v - r.PrevClose
	r.PrevClose = v

	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	r.Changes++
	n := float64(r.Period)
	switch {
	case r.Changes < r.Period:
		r.SumGain += gain
		r.SumLoss += loss
	case r.Changes == r.Period:
		r.SumGain += gain
		r.SumLoss += loss
		r.AvgGain = r.SumGain / n
		r.AvgLoss = r.SumLoss / n
	default:
		r.AvgGain = (r.AvgGain*(n-1) + gain) / n
		r.AvgLoss = (r.AvgLoss*(n-1) + loss) / n
	}
}

func (r *RSI) Ready() bool { return r.Period > 0 && r.Changes >= r.Period }

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	if r.AvgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+r.AvgGain/r.AvgLoss)
}

func mean(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// popStd is the population standard deviation of vs.
func popStd(vs []float64) float64 {
	m := mean(vs)
	ss := 0.0
	for _, v := range vs {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vs)))
}
