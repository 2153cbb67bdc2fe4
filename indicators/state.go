package indicators

import (
	"time"

	"github.com/rustyeddy/candlestream/market"
)

// State is the rolling indicator state of one series after its most
// recent closed candle. It is owned by the StateStore; the machine only
// ever works on copies.
type State struct {
	Version           int64     `json:"version"`
	Count             int64     `json:"count"`
	LastIntervalStart time.Time `json:"last_interval_start"`

	Closes Window `json:"closes"`
	Opens  Window `json:"opens"`

	EMAFast EMA `json:"ema_fast"`
	EMASlow EMA `json:"ema_slow"`
	Signal  EMA `json:"signal"`
	RSI     RSI `json:"rsi"`
}

// NewState returns the empty state for p.
func NewState(p Params) State {
	return State{
		Closes:  NewWindow(p.closeCap()),
		Opens:   NewWindow(p.PriceChangeWindow),
		EMAFast: *NewEMA(p.EMAFast),
		EMASlow: *NewEMA(p.EMASlow),
		Signal:  *NewEMA(p.Signal),
		RSI:     *NewRSI(p.RSIPeriod),
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	c := s
	c.Closes = s.Closes.clone()
	c.Opens = s.Opens.clone()
	return c
}

// Checkpoint is the state after applying Candle, stored per closed
// interval so any interval can be rolled back to and replayed from.
type Checkpoint struct {
	Candle market.Candle `json:"candle"`
	State  State         `json:"state"`
}
