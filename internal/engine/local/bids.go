package local

import (
	"context"
	"fmt"
	"strconv"

	"github.com/klingon-exchange/swapapi/internal/engine"
)

// Bid event types.
const (
	EventBidSent     = "bid_sent"
	EventBidReceived = "bid_received"
	EventBidAccepted = "bid_accepted"
	EventDebugInd    = "debug_ind"
)

// PostBid places a secret-hash bid on an offer.
func (e *Engine) PostBid(ctx context.Context, offerID engine.ID, amount int64, addrFrom string) (engine.ID, error) {
	return e.postBid(offerID, amount, addrFrom, engine.SwapSecretHash)
}

// PostXmrBid places an adaptor-signature bid on an offer.
func (e *Engine) PostXmrBid(ctx context.Context, offerID engine.ID, amount int64, addrFrom string) (engine.ID, error) {
	return e.postBid(offerID, amount, addrFrom, engine.SwapAdaptorSig)
}

func (e *Engine) postBid(offerID engine.ID, amount int64, addrFrom string, swapType engine.SwapType) (engine.ID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var id engine.ID

	o, err := e.store.GetOffer(offerID)
	if err != nil {
		return id, mapNotFound(err)
	}
	now := e.now()
	if !o.Active || o.ExpireAt <= now.Unix() {
		return id, ErrOfferInactive
	}
	if o.SwapType != swapType {
		return id, fmt.Errorf("%w: offer is %s", ErrSwapTypeMismatch, o.SwapType)
	}
	if amount <= 0 || amount < o.MinBidAmount || amount > o.AmountFrom {
		return id, ErrBidOutOfRange
	}

	id, err = engine.NewRandomID()
	if err != nil {
		return id, err
	}

	// Bids on this node's own offers are both sent and received.
	b := &engine.Bid{
		ID:          id,
		OfferID:     offerID,
		CoinFrom:    o.CoinFrom,
		Amount:      amount,
		State:       engine.BidSent,
		CreatedAt:   now.Unix(),
		ExpireAt:    now.Add(DefaultBidValidity).Unix(),
		WasSent:     true,
		WasReceived: o.WasSent,
		AddrFrom:    addrFrom,
	}
	ev := &engine.Event{CreatedAt: now.Unix(), Type: EventBidSent, Description: "Bid sent"}
	if b.WasReceived {
		b.State = engine.BidReceived
		ev = &engine.Event{CreatedAt: now.Unix(), Type: EventBidReceived, Description: "Bid received"}
	}

	var xs *engine.XmrSwap
	if swapType == engine.SwapAdaptorSig {
		xs = &engine.XmrSwap{}
	}

	if err := e.store.CreateBid(b, xs, ev); err != nil {
		return engine.ID{}, err
	}
	e.log.Info("Bid created", "bid_id", id, "offer_id", offerID, "swap_type", swapType)

	if o.AutoAccept && b.WasReceived {
		if err := e.acceptBid(id); err != nil {
			e.log.Warn("Auto-accept failed", "bid_id", id, "error", err)
		}
	}

	return id, nil
}

// AcceptBid accepts a received bid.
func (e *Engine) AcceptBid(ctx context.Context, id engine.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.acceptBid(id)
}

func (e *Engine) acceptBid(id engine.ID) error {
	b, err := e.store.GetBid(id)
	if err != nil {
		return mapNotFound(err)
	}
	if !b.WasReceived || b.State != engine.BidReceived {
		return fmt.Errorf("%w: state %s", ErrBidNotAcceptable, b.State)
	}

	ev := &engine.Event{CreatedAt: e.now().Unix(), Type: EventBidAccepted, Description: "Bid accepted"}
	if err := e.store.UpdateBidState(id, engine.BidAccepted, ev); err != nil {
		return mapNotFound(err)
	}

	e.log.Info("Bid accepted", "bid_id", id)
	return nil
}

// SetBidDebugInd sets the debug indicator of a bid.
func (e *Engine) SetBidDebugInd(ctx context.Context, id engine.ID, value int) error {
	ev := &engine.Event{
		CreatedAt:   e.now().Unix(),
		Type:        EventDebugInd,
		Description: "Debug indicator set to " + strconv.Itoa(value),
	}
	if err := e.store.SetBidDebugInd(id, value, ev); err != nil {
		return mapNotFound(err)
	}
	return nil
}

// GetBidDetail returns a bid with its offer, protocol state and history.
func (e *Engine) GetBidDetail(ctx context.Context, id engine.ID) (*engine.BidDetail, error) {
	b, err := e.store.GetBid(id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	o, err := e.store.GetOffer(b.OfferID)
	if err != nil {
		return nil, fmt.Errorf("offer of bid %s: %w", id, mapNotFound(err))
	}
	xs, err := e.store.GetXmrSwap(id)
	if err != nil {
		return nil, err
	}
	xo, err := e.store.GetXmrOffer(o.ID)
	if err != nil {
		return nil, err
	}
	events, err := e.store.GetBidEvents(id)
	if err != nil {
		return nil, err
	}

	return &engine.BidDetail{
		Bid:      b,
		XmrSwap:  xs,
		Offer:    o,
		XmrOffer: xo,
		Events:   events,
	}, nil
}

// ListBids returns bids sent by this node, or received by it.
func (e *Engine) ListBids(ctx context.Context, sent bool) ([]*engine.Bid, error) {
	return e.store.ListBids(sent)
}
