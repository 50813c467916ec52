package protocol

import (
	"errors"

	"github.com/klingon-exchange/swapapi/internal/apierr"
	"github.com/klingon-exchange/swapapi/internal/coins"
	"github.com/klingon-exchange/swapapi/internal/engine"
	"github.com/klingon-exchange/swapapi/pkg/helpers"
)

// BidDescription is the detailed view of a single bid.
type BidDescription struct {
	BidID       string             `json:"bid_id"`
	OfferID     string             `json:"offer_id"`
	SwapType    string             `json:"swap_type"`
	BidState    string             `json:"bid_state"`
	Active      bool               `json:"active"`
	CoinFrom    string             `json:"coin_from"`
	CoinTo      string             `json:"coin_to"`
	AmountFrom  string             `json:"amount_from"`
	AmountTo    string             `json:"amount_to"`
	Rate        string             `json:"rate"`
	AddrFrom    string             `json:"addr_from,omitempty"`
	CreatedAt   string             `json:"created_at"`
	ExpireAt    string             `json:"expire_at,omitempty"`
	WasSent     bool               `json:"was_sent"`
	WasReceived bool               `json:"was_received"`
	DebugInd    int                `json:"debug_ind,omitempty"`
	Swap        interface{}        `json:"swap"`
	Events      []EventDescription `json:"events"`
}

// EventDescription is a formatted bid history entry.
type EventDescription struct {
	At          string `json:"at"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Describe builds the description of a bid from its full engine detail.
func Describe(reg coins.Registry, d *engine.BidDetail) (*BidDescription, error) {
	if d == nil || d.Bid == nil || d.Offer == nil {
		return nil, errors.New("incomplete bid detail")
	}
	bid, offer := d.Bid, d.Offer

	v, err := For(offer.SwapType)
	if err != nil {
		return nil, err
	}
	ciFrom, ok := reg.ByID(offer.CoinFrom)
	if !ok {
		return nil, apierr.New(apierr.KindUnknownCoin, "unknown coin id: %d", offer.CoinFrom)
	}
	ciTo, ok := reg.ByID(offer.CoinTo)
	if !ok {
		return nil, apierr.New(apierr.KindUnknownCoin, "unknown coin id: %d", offer.CoinTo)
	}

	amountTo, err := coins.AmountTo(ciFrom, bid.Amount, offer.Rate)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindEngineFailure, err, "bid %s", bid.ID)
	}

	desc := &BidDescription{
		BidID:       bid.ID.String(),
		OfferID:     bid.OfferID.String(),
		SwapType:    v.Name(),
		BidState:    bid.State.String(),
		Active:      bid.State.IsActive(),
		CoinFrom:    ciFrom.CoinName(),
		CoinTo:      ciTo.CoinName(),
		AmountFrom:  ciFrom.FormatAmount(bid.Amount),
		AmountTo:    ciTo.FormatAmount(amountTo),
		Rate:        ciTo.FormatAmount(offer.Rate),
		AddrFrom:    bid.AddrFrom,
		CreatedAt:   helpers.FormatTimestamp(bid.CreatedAt),
		ExpireAt:    helpers.FormatTimestamp(bid.ExpireAt),
		WasSent:     bid.WasSent,
		WasReceived: bid.WasReceived,
		DebugInd:    bid.DebugInd,
		Swap:        v.DescribeSwap(d),
		Events:      make([]EventDescription, 0, len(d.Events)),
	}
	for _, ev := range d.Events {
		desc.Events = append(desc.Events, EventDescription{
			At:          helpers.FormatTimestamp(ev.CreatedAt),
			Type:        ev.Type,
			Description: ev.Description,
		})
	}
	return desc, nil
}
