package local

import (
	"context"
	"fmt"
	"time"

	"github.com/klingon-exchange/swapapi/internal/engine"
)

// PostOffer validates and stores an offer made by this node.
func (e *Engine) PostOffer(ctx context.Context, req *engine.NewOffer) (engine.ID, error) {
	var id engine.ID

	from, err := e.coin(req.CoinFrom)
	if err != nil {
		return id, err
	}
	to, err := e.coin(req.CoinTo)
	if err != nil {
		return id, err
	}
	if req.CoinFrom == req.CoinTo {
		return id, ErrSameCoin
	}
	if req.AmountFrom <= 0 {
		return id, ErrInvalidAmount
	}
	if req.Rate <= 0 {
		return id, ErrInvalidRate
	}
	if req.MinBidAmount < 0 || req.MinBidAmount > req.AmountFrom {
		return id, fmt.Errorf("%w: min_bid_amount", ErrBidOutOfRange)
	}
	switch req.SwapType {
	case engine.SwapSecretHash:
		if from.Params().NoScript || to.Params().NoScript {
			return id, ErrNoScriptSecretHash
		}
	case engine.SwapAdaptorSig:
	default:
		return id, fmt.Errorf("unsupported swap type: %s", req.SwapType)
	}

	id, err = engine.NewRandomID()
	if err != nil {
		return id, err
	}

	lockSeconds := req.LockSeconds
	if lockSeconds <= 0 {
		lockSeconds = DefaultLockSeconds
	}
	validFor := time.Duration(req.ValidForSeconds) * time.Second
	if validFor <= 0 {
		validFor = DefaultOfferValidity
	}

	var xo *engine.XmrOffer
	if req.SwapType == engine.SwapAdaptorSig {
		xo = &engine.XmrOffer{
			LockTime1: lockSeconds,
			LockTime2: lockSeconds,
			AFeeRate:  defaultFeeRate,
			BFeeRate:  defaultFeeRate,
		}
	}

	now := e.now()
	o := &engine.Offer{
		ID:           id,
		CoinFrom:     req.CoinFrom,
		CoinTo:       req.CoinTo,
		AmountFrom:   req.AmountFrom,
		Rate:         req.Rate,
		MinBidAmount: req.MinBidAmount,
		SwapType:     req.SwapType,
		AddrFrom:     req.AddrFrom,
		LockSeconds:  lockSeconds,
		CreatedAt:    now.Unix(),
		ExpireAt:     now.Add(validFor).Unix(),
		WasSent:      true,
		Active:       true,
		AutoAccept:   req.AutoAccept,
	}
	if err := e.store.CreateOffer(o, xo); err != nil {
		return engine.ID{}, err
	}

	e.log.Info("Offer created", "offer_id", id, "swap_type", req.SwapType)
	return id, nil
}

// ListOffers returns active offers matching filter. With sent set only this
// node's offers are listed.
func (e *Engine) ListOffers(ctx context.Context, sent bool, filter *engine.ListingFilter) ([]*engine.Offer, error) {
	return e.store.ListOffers(filter, sent, e.now().Unix())
}

// GetOffer returns an offer by id.
func (e *Engine) GetOffer(ctx context.Context, id engine.ID) (*engine.Offer, error) {
	o, err := e.store.GetOffer(id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return o, nil
}

// RevokeOffer deactivates an offer made by this node.
func (e *Engine) RevokeOffer(ctx context.Context, id engine.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, err := e.store.GetOffer(id)
	if err != nil {
		return mapNotFound(err)
	}
	if !o.WasSent {
		return ErrOfferNotOwned
	}
	if err := e.store.RevokeOffer(id); err != nil {
		return mapNotFound(err)
	}

	e.log.Info("Offer revoked", "offer_id", id)
	return nil
}
