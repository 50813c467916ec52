// Package coins defines the supported coins and the per-coin interface used to
// convert between base units and display amounts.
package coins

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/klingon-exchange/swapapi/pkg/helpers"
)

// ID identifies a coin on the wire and in the engine.
type ID int

// Any is the filter sentinel meaning "no coin restriction".
const Any ID = -1

// Coin identifiers.
const (
	PART ID = 1
	BTC  ID = 2
	LTC  ID = 3
	NMC  ID = 5
	XMR  ID = 6
)

// Balance types of the native coin.
const (
	BalancePlain = "plain"
	BalanceBlind = "blind"
	BalanceAnon  = "anon"
)

// Params holds the static parameters of a coin.
type Params struct {
	ID           ID
	Ticker       string
	Name         string
	Decimals     uint8
	Native       bool     // Native coin of the swap network, supports typed balances
	BalanceTypes []string // Only set for the native coin
	NoScript     bool     // Coin has no script support (adaptor-signature swaps only)
}

// SupportedCoins defines all supported coins keyed by ID.
var SupportedCoins = map[ID]Params{
	PART: {
		ID:           PART,
		Ticker:       "PART",
		Name:         "Particl",
		Decimals:     8,
		Native:       true,
		BalanceTypes: []string{BalancePlain, BalanceBlind, BalanceAnon},
	},
	BTC: {
		ID:       BTC,
		Ticker:   "BTC",
		Name:     "Bitcoin",
		Decimals: 8,
	},
	LTC: {
		ID:       LTC,
		Ticker:   "LTC",
		Name:     "Litecoin",
		Decimals: 8,
	},
	NMC: {
		ID:       NMC,
		Ticker:   "NMC",
		Name:     "Namecoin",
		Decimals: 8,
	},
	XMR: {
		ID:       XMR,
		Ticker:   "XMR",
		Name:     "Monero",
		Decimals: 12,
		NoScript: true,
	},
}

// Interface is the per-coin service used for display formatting.
type Interface interface {
	ID() ID
	Ticker() string
	CoinName() string
	// COIN returns the number of base units in one whole coin.
	COIN() int64
	FormatAmount(amount int64) string
	ParseAmount(s string) (int64, error)
	IsNative() bool
	Params() Params
}

// Registry resolves tickers and identifiers to coin interfaces.
type Registry interface {
	// Lookup resolves a ticker (case-insensitive) or a decimal coin id.
	Lookup(s string) (Interface, bool)
	ByID(id ID) (Interface, bool)
	List() []Interface
}

type coin struct {
	p    Params
	unit int64
}

func newCoin(p Params) *coin {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(p.Decimals)), nil)
	return &coin{p: p, unit: unit.Int64()}
}

func (c *coin) ID() ID           { return c.p.ID }
func (c *coin) Ticker() string   { return c.p.Ticker }
func (c *coin) CoinName() string { return c.p.Name }
func (c *coin) COIN() int64      { return c.unit }
func (c *coin) IsNative() bool   { return c.p.Native }
func (c *coin) Params() Params   { return c.p }

func (c *coin) FormatAmount(amount int64) string {
	return helpers.FormatAmount(amount, c.p.Decimals)
}

func (c *coin) ParseAmount(s string) (int64, error) {
	v, err := helpers.ParseAmount(s, c.p.Decimals)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", c.p.Ticker, err)
	}
	return v, nil
}

// StaticRegistry is a read-only registry over a fixed coin table.
type StaticRegistry struct {
	byID     map[ID]*coin
	byTicker map[string]*coin
}

// NewRegistry creates a registry over the given coin parameters.
func NewRegistry(params map[ID]Params) *StaticRegistry {
	r := &StaticRegistry{
		byID:     make(map[ID]*coin, len(params)),
		byTicker: make(map[string]*coin, len(params)),
	}
	for id, p := range params {
		c := newCoin(p)
		r.byID[id] = c
		r.byTicker[strings.ToUpper(p.Ticker)] = c
	}
	return r
}

// DefaultRegistry returns a registry over SupportedCoins.
func DefaultRegistry() *StaticRegistry {
	return NewRegistry(SupportedCoins)
}

// Lookup resolves a ticker or decimal coin id.
func (r *StaticRegistry) Lookup(s string) (Interface, bool) {
	s = strings.TrimSpace(s)
	if c, ok := r.byTicker[strings.ToUpper(s)]; ok {
		return c, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return r.ByID(ID(n))
	}
	return nil, false
}

// ByID returns the coin with the given id.
func (r *StaticRegistry) ByID(id ID) (Interface, bool) {
	c, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return c, true
}

// List returns all coins ordered by id.
func (r *StaticRegistry) List() []Interface {
	out := make([]Interface, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ErrAmountOverflow is returned when a derived amount does not fit in int64.
var ErrAmountOverflow = errors.New("amount overflow")

// AmountTo returns floor(amountFrom * rate / from.COIN()). The multiplication
// happens first, in big integers, so non-exact rates round the same way as the
// engine does.
func AmountTo(from Interface, amountFrom, rate int64) (int64, error) {
	v := new(big.Int).Mul(big.NewInt(amountFrom), big.NewInt(rate))
	v.Quo(v, big.NewInt(from.COIN()))
	if !v.IsInt64() {
		return 0, fmt.Errorf("%w: %d * %d / %d", ErrAmountOverflow, amountFrom, rate, from.COIN())
	}
	return v.Int64(), nil
}

// RateFor returns the rate, in units of the to-coin per whole from-coin, at
// which amountFrom buys amountTo: floor(amountTo * from.COIN() / amountFrom).
// A non-positive amountFrom yields 0.
func RateFor(from Interface, amountFrom, amountTo int64) (int64, error) {
	if amountFrom <= 0 {
		return 0, nil
	}
	v := new(big.Int).Mul(big.NewInt(amountTo), big.NewInt(from.COIN()))
	v.Quo(v, big.NewInt(amountFrom))
	if !v.IsInt64() {
		return 0, fmt.Errorf("%w: rate for %d / %d", ErrAmountOverflow, amountTo, amountFrom)
	}
	return v.Int64(), nil
}
