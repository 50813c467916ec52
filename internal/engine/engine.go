// Package engine defines the contract between the JSON API and the swap
// engine that owns protocol state, wallets and peer communication.
package engine

import (
	"context"
	"errors"

	"github.com/klingon-exchange/swapapi/internal/coins"
)

// ErrNotFound is returned when an offer or bid id is unknown to the engine.
var ErrNotFound = errors.New("not found")

// Info is an opaque status structure passed through to clients verbatim.
type Info map[string]interface{}

// Engine is the swap engine call contract. Implementations must be safe for
// concurrent use; the API layer adds no locking of its own.
type Engine interface {
	WalletsInfo(ctx context.Context) (Info, error)
	WalletInfo(ctx context.Context, coin coins.ID) (Info, error)
	WithdrawCoin(ctx context.Context, coin coins.ID, amount, address string, subtractFee bool) (string, error)
	WithdrawParticl(ctx context.Context, typeFrom, typeTo, amount, address string, subtractFee bool) (string, error)

	PostOffer(ctx context.Context, req *NewOffer) (ID, error)
	ListOffers(ctx context.Context, sent bool, filter *ListingFilter) ([]*Offer, error)
	GetOffer(ctx context.Context, id ID) (*Offer, error)
	RevokeOffer(ctx context.Context, id ID) error

	PostBid(ctx context.Context, offerID ID, amount int64, addrFrom string) (ID, error)
	PostXmrBid(ctx context.Context, offerID ID, amount int64, addrFrom string) (ID, error)
	SetBidDebugInd(ctx context.Context, id ID, value int) error
	AcceptBid(ctx context.Context, id ID) error
	GetBidDetail(ctx context.Context, id ID) (*BidDetail, error)
	ListBids(ctx context.Context, sent bool) ([]*Bid, error)

	NetworkInfo(ctx context.Context) (Info, error)
	Summary(ctx context.Context) (Info, error)
}
