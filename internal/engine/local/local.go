// Package local implements a standalone swap engine backed by SQLite. It
// keeps offers, bids and balances locally and never talks to a peer network
// or coin daemon, so the API can be run and exercised without an external
// engine.
package local

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"

	"github.com/klingon-exchange/swapapi/internal/coins"
	"github.com/klingon-exchange/swapapi/internal/engine"
	"github.com/klingon-exchange/swapapi/internal/storage"
	"github.com/klingon-exchange/swapapi/pkg/helpers"
	"github.com/klingon-exchange/swapapi/pkg/logging"
)

// Defaults for offers and bids created without explicit timing.
const (
	DefaultOfferValidity = 2 * time.Hour
	DefaultBidValidity   = 10 * time.Minute
	DefaultLockSeconds   = 2 * 60 * 60

	// WithdrawFee is the flat fee, in base units, charged per withdrawal.
	WithdrawFee int64 = 10000

	// Fee rates reported on adaptor-signature offers.
	defaultFeeRate int64 = 20000
)

// Engine errors
var (
	ErrSameCoin           = errors.New("coin_from and coin_to must differ")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidRate        = errors.New("rate must be positive")
	ErrInvalidAddress     = errors.New("address is required")
	ErrInvalidType        = errors.New("invalid balance type")
	ErrOfferInactive      = errors.New("offer is not active")
	ErrOfferNotOwned      = errors.New("offer was not created by this node")
	ErrBidOutOfRange      = errors.New("bid amount outside offer range")
	ErrSwapTypeMismatch   = errors.New("bid protocol does not match offer")
	ErrBidNotAcceptable   = errors.New("bid cannot be accepted")
	ErrNoScriptSecretHash = errors.New("scriptless coins require an adaptor-signature swap")
)

// Config holds local engine configuration.
type Config struct {
	// Balances seeds the plain balance of each coin, as human amounts keyed
	// by ticker. Existing balances are not overwritten.
	Balances map[string]string
}

// Engine is a single-node swap engine persisted in SQLite.
type Engine struct {
	store  *storage.Storage
	coins  coins.Registry
	log    *logging.Logger
	nodeID string
	now    func() time.Time

	// Serializes read-then-write sequences such as bid creation.
	mu sync.Mutex
}

var _ engine.Engine = (*Engine)(nil)

// New creates a local engine over store.
func New(store *storage.Storage, reg coins.Registry, cfg *Config) (*Engine, error) {
	e := &Engine{
		store:  store,
		coins:  reg,
		log:    logging.GetDefault().Component("engine"),
		nodeID: uuid.New().String(),
		now:    time.Now,
	}

	if cfg != nil {
		for ticker, amount := range cfg.Balances {
			c, ok := reg.Lookup(ticker)
			if !ok {
				return nil, fmt.Errorf("unknown coin in balances: %s", ticker)
			}
			v, err := c.ParseAmount(amount)
			if err != nil {
				return nil, fmt.Errorf("invalid balance for %s: %w", ticker, err)
			}
			if err := store.SeedBalance(c.ID(), coins.BalancePlain, v); err != nil {
				return nil, err
			}
		}
	}

	return e, nil
}

// SetClock replaces the time source. Used by tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) coin(id coins.ID) (coins.Interface, error) {
	c, ok := e.coins.ByID(id)
	if !ok {
		return nil, fmt.Errorf("unknown coin id %d", id)
	}
	return c, nil
}

// newTxID returns a random transaction hash in display order.
func newTxID() (string, error) {
	b, err := helpers.GenerateSecureRandom(chainhash.HashSize)
	if err != nil {
		return "", err
	}
	h, err := chainhash.NewHash(b)
	if err != nil {
		return "", err
	}
	return h.String(), nil
}

// mapNotFound converts storage lookups into the engine contract sentinel.
func mapNotFound(err error) error {
	if errors.Is(err, storage.ErrOfferNotFound) || errors.Is(err, storage.ErrBidNotFound) {
		return fmt.Errorf("%w: %v", engine.ErrNotFound, err)
	}
	return err
}

// =============================================================================
// Wallets
// =============================================================================

// WalletsInfo returns the info of every wallet keyed by coin id.
func (e *Engine) WalletsInfo(ctx context.Context) (engine.Info, error) {
	out := make(engine.Info)
	for _, c := range e.coins.List() {
		info, err := e.walletInfo(c)
		if err != nil {
			return nil, err
		}
		out[strconv.Itoa(int(c.ID()))] = info
	}
	return out, nil
}

// WalletInfo returns the info of a single wallet.
func (e *Engine) WalletInfo(ctx context.Context, id coins.ID) (engine.Info, error) {
	c, err := e.coin(id)
	if err != nil {
		return nil, err
	}
	return e.walletInfo(c)
}

func (e *Engine) walletInfo(c coins.Interface) (engine.Info, error) {
	balances, err := e.store.GetBalances(c.ID())
	if err != nil {
		return nil, err
	}

	info := engine.Info{
		"name":        c.CoinName(),
		"ticker":      c.Ticker(),
		"balance":     c.FormatAmount(balances[coins.BalancePlain]),
		"unconfirmed": c.FormatAmount(0),
		"synced":      true,
	}
	if c.IsNative() {
		info["blind_balance"] = c.FormatAmount(balances[coins.BalanceBlind])
		info["anon_balance"] = c.FormatAmount(balances[coins.BalanceAnon])
	}
	return info, nil
}

// WithdrawCoin sends amount of coin to address from the plain balance.
func (e *Engine) WithdrawCoin(ctx context.Context, id coins.ID, amount, address string, subtractFee bool) (string, error) {
	c, err := e.coin(id)
	if err != nil {
		return "", err
	}
	return e.withdraw(c, coins.BalancePlain, "", amount, address, subtractFee)
}

// WithdrawParticl sends from one native balance type to another, or to an
// external address.
func (e *Engine) WithdrawParticl(ctx context.Context, typeFrom, typeTo, amount, address string, subtractFee bool) (string, error) {
	c, err := e.coin(coins.PART)
	if err != nil {
		return "", err
	}
	if !validBalanceType(c, typeFrom) {
		return "", fmt.Errorf("%w: %s", ErrInvalidType, typeFrom)
	}
	if !validBalanceType(c, typeTo) {
		return "", fmt.Errorf("%w: %s", ErrInvalidType, typeTo)
	}
	return e.withdraw(c, typeFrom, typeTo, amount, address, subtractFee)
}

func validBalanceType(c coins.Interface, t string) bool {
	for _, bt := range c.Params().BalanceTypes {
		if bt == t {
			return true
		}
	}
	return false
}

func (e *Engine) withdraw(c coins.Interface, typeFrom, typeTo, amount, address string, subtractFee bool) (string, error) {
	value, err := c.ParseAmount(amount)
	if err != nil {
		return "", err
	}
	if value <= 0 {
		return "", ErrInvalidAmount
	}
	if address == "" {
		return "", ErrInvalidAddress
	}
	if subtractFee && value <= WithdrawFee {
		return "", fmt.Errorf("%w: amount does not cover fee", ErrInvalidAmount)
	}

	txid, err := newTxID()
	if err != nil {
		return "", err
	}

	w := &storage.Withdrawal{
		TxID:        txid,
		Coin:        c.ID(),
		TypeFrom:    typeFrom,
		TypeTo:      typeTo,
		Amount:      value,
		Address:     address,
		SubtractFee: subtractFee,
		CreatedAt:   e.now().Unix(),
	}
	if err := e.store.RecordWithdrawal(w, WithdrawFee); err != nil {
		return "", err
	}

	e.log.Info("Withdrawal sent", "coin", c.Ticker(), "amount", c.FormatAmount(value), "txid", txid)
	return txid, nil
}

// =============================================================================
// Network
// =============================================================================

// NetworkInfo reports the local node. It never has peers.
func (e *Engine) NetworkInfo(ctx context.Context) (engine.Info, error) {
	return engine.Info{
		"node_id":   e.nodeID,
		"network":   "local",
		"num_peers": 0,
		"peers":     []interface{}{},
	}, nil
}

// Summary returns offer and bid counts.
func (e *Engine) Summary(ctx context.Context) (engine.Info, error) {
	numOffers, numSentOffers, err := e.store.CountOffers(e.now().Unix())
	if err != nil {
		return nil, err
	}
	numRecvBids, numSentBids, numSwapping, err := e.store.CountBids()
	if err != nil {
		return nil, err
	}
	return engine.Info{
		"network":            "local",
		"num_network_offers": numOffers,
		"num_sent_offers":    numSentOffers,
		"num_recv_bids":      numRecvBids,
		"num_sent_bids":      numSentBids,
		"num_swapping":       numSwapping,
	}, nil
}
