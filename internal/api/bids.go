package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/klingon-exchange/swapapi/internal/apierr"
	"github.com/klingon-exchange/swapapi/internal/engine"
	"github.com/klingon-exchange/swapapi/internal/protocol"
	"github.com/klingon-exchange/swapapi/pkg/helpers"
)

// BidSummary is the listing view of a bid.
type BidSummary struct {
	BidID      string `json:"bid_id"`
	OfferID    string `json:"offer_id"`
	CreatedAt  string `json:"created_at"`
	CoinFrom   int    `json:"coin_from"`
	AmountFrom string `json:"amount_from"`
	BidState   string `json:"bid_state"`
}

// NewBidResult is returned when a bid is placed.
type NewBidResult struct {
	BidID string `json:"bid_id"`
}

func (s *Server) handleBids(ctx context.Context, req *Request) (interface{}, error) {
	switch req.Seg3 {
	case "":
		return s.listBids(ctx, false)
	case "new":
		return s.newBid(ctx, req)
	}
	return s.bidDetail(ctx, req)
}

func (s *Server) handleSentBids(ctx context.Context, req *Request) (interface{}, error) {
	return s.listBids(ctx, true)
}

func (s *Server) listBids(ctx context.Context, sent bool) (interface{}, error) {
	bids, err := s.engine.ListBids(ctx, sent)
	if err != nil {
		return nil, err
	}

	out := make([]*BidSummary, 0, len(bids))
	for _, b := range bids {
		ci, ok := s.coins.ByID(b.CoinFrom)
		if !ok {
			return nil, apierr.New(apierr.KindUnknownCoin, "unknown coin id: %d", b.CoinFrom)
		}
		out = append(out, &BidSummary{
			BidID:      b.ID.String(),
			OfferID:    b.OfferID.String(),
			CreatedAt:  helpers.FormatTimestamp(b.CreatedAt),
			CoinFrom:   int(b.CoinFrom),
			AmountFrom: ci.FormatAmount(b.Amount),
			BidState:   b.State.String(),
		})
	}
	return out, nil
}

// newBid places a bid on an offer using the offer's swap protocol.
func (s *Server) newBid(ctx context.Context, req *Request) (interface{}, error) {
	if err := req.requirePost("bids/new"); err != nil {
		return nil, err
	}
	if !req.HasBody() {
		return nil, apierr.MalformedInput("no post data")
	}
	p, err := req.Payload()
	if err != nil {
		return nil, err
	}

	idHex, err := p.String("offer_id")
	if err != nil {
		return nil, err
	}
	offerID, err := parseID(idHex, "offer_id")
	if err != nil {
		return nil, err
	}

	offer, err := s.engine.GetOffer(ctx, offerID)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return nil, apierr.NotFound("offer not found: %s", offerID)
		}
		return nil, err
	}

	ciFrom, ok := s.coins.ByID(offer.CoinFrom)
	if !ok {
		return nil, apierr.New(apierr.KindUnknownCoin, "unknown coin id: %d", offer.CoinFrom)
	}
	amountStr, err := p.String("amount_from")
	if err != nil {
		return nil, err
	}
	amount, err := ciFrom.ParseAmount(amountStr)
	if err != nil {
		return nil, apierr.Validation("invalid amount_from: %v", err)
	}
	if amount <= 0 {
		return nil, apierr.Validation("amount_from must be positive")
	}

	addrFrom := p.StringOr("addr_from", "")
	if addrFrom == addrUnset {
		addrFrom = ""
	}

	var debugInd *int
	if p.Has("debugind") {
		v, err := p.Int("debugind")
		if err != nil {
			return nil, err
		}
		debugInd = &v
	}

	variant, err := protocol.For(offer.SwapType)
	if err != nil {
		return nil, apierr.Validation("%v", err)
	}

	bidID, err := variant.PostBid(ctx, s.engine, offerID, amount, addrFrom)
	if err != nil {
		return nil, err
	}
	s.log.Info("Bid created", "bid_id", bidID, "offer_id", offerID, "swap_type", variant.Name(), "request_id", RequestID(ctx))
	s.wsHub.Broadcast(EventBidCreated, map[string]string{"bid_id": bidID.String(), "offer_id": offerID.String()})

	if debugInd != nil {
		if err := s.engine.SetBidDebugInd(ctx, bidID, *debugInd); err != nil {
			s.log.Warn("Bid created but debug indicator not set", "bid_id", bidID, "error", err, "request_id", RequestID(ctx))
			return nil, fmt.Errorf("bid %s created, setting debug indicator failed: %w", bidID, err)
		}
	}

	return &NewBidResult{BidID: bidID.String()}, nil
}

// bidDetail serves /bids/{bid_id}. An accept field takes precedence over
// debugind; at most one action runs before the detail is fetched.
func (s *Server) bidDetail(ctx context.Context, req *Request) (interface{}, error) {
	bidID, err := parseID(req.Seg3, "bid_id")
	if err != nil {
		return nil, err
	}

	if req.HasBody() {
		p, err := req.Payload()
		if err != nil {
			return nil, err
		}
		switch {
		case p.Has("accept"):
			if err := req.requirePost("accept"); err != nil {
				return nil, err
			}
			if err := s.engine.AcceptBid(ctx, bidID); err != nil {
				return nil, err
			}
			s.log.Info("Bid accepted", "bid_id", bidID, "request_id", RequestID(ctx))
			s.wsHub.Broadcast(EventBidAccepted, map[string]string{"bid_id": bidID.String()})
		case p.Has("debugind"):
			if err := req.requirePost("debugind"); err != nil {
				return nil, err
			}
			v, err := p.Int("debugind")
			if err != nil {
				return nil, err
			}
			if err := s.engine.SetBidDebugInd(ctx, bidID, v); err != nil {
				return nil, err
			}
			s.wsHub.Broadcast(EventBidDebugSet, map[string]interface{}{"bid_id": bidID.String(), "debug_ind": v})
		}
	}

	detail, err := s.engine.GetBidDetail(ctx, bidID)
	if err != nil {
		return nil, err
	}
	return protocol.Describe(s.coins, detail)
}
