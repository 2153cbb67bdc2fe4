package market

import (
	"sort"
	"strings"
)

// SymbolMeta describes one tradable pair on one exchange.
type SymbolMeta struct {
	Exchange      string `json:"exchange" yaml:"exchange"`
	Symbol        string `json:"symbol" yaml:"symbol"`
	BaseCurrency  string `json:"base_currency,omitempty" yaml:"base_currency,omitempty"`
	QuoteCurrency string `json:"quote_currency,omitempty" yaml:"quote_currency,omitempty"`
}

// Registry is the set of (exchange, symbol) pairs the engine accepts.
// It is built once at startup and only read afterwards.
type Registry struct {
	pairs map[PartitionKey]SymbolMeta
}

// NewRegistry builds a registry from metas. Exchange names are lowercased.
func NewRegistry(metas ...SymbolMeta) *Registry {
	r := &Registry{pairs: make(map[PartitionKey]SymbolMeta, len(metas))}
	for _, m := range metas {
		m.Exchange = strings.ToLower(m.Exchange)
		r.pairs[PartitionKey{Exchange: m.Exchange, Symbol: m.Symbol}] = m
	}
	return r
}

// Contains reports whether the pair is registered.
func (r *Registry) Contains(exchange, symbol string) bool {
	if r == nil {
		return false
	}
	_, ok := r.pairs[PartitionKey{Exchange: strings.ToLower(exchange), Symbol: symbol}]
	return ok
}

// Partitions returns every registered pair, sorted.
func (r *Registry) Partitions() []PartitionKey {
	if r == nil {
		return nil
	}
	out := make([]PartitionKey, 0, len(r.pairs))
	for k := range r.pairs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.pairs)
}

// DefaultSymbols is the registry used when configuration lists none.
var DefaultSymbols = []SymbolMeta{
	{Exchange: "binance", Symbol: "BTCUSDT", BaseCurrency: "BTC", QuoteCurrency: "USDT"},
	{Exchange: "binance", Symbol: "ETHUSDT", BaseCurrency: "ETH", QuoteCurrency: "USDT"},
	{Exchange: "coinbase", Symbol: "BTC-USD", BaseCurrency: "BTC", QuoteCurrency: "USD"},
	{Exchange: "coinbase", Symbol: "ETH-USD", BaseCurrency: "ETH", QuoteCurrency: "USD"},
	{Exchange: "kraken", Symbol: "XBT/USD", BaseCurrency: "XBT", QuoteCurrency: "USD"},
	{Exchange: "kraken", Symbol: "ETH/USD", BaseCurrency: "ETH", QuoteCurrency: "USD"},
}
