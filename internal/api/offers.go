package api

import (
	"context"

	"github.com/klingon-exchange/swapapi/internal/apierr"
	"github.com/klingon-exchange/swapapi/internal/coins"
	"github.com/klingon-exchange/swapapi/internal/engine"
	"github.com/klingon-exchange/swapapi/internal/request"
	"github.com/klingon-exchange/swapapi/pkg/helpers"
)

// OfferSummary is the listing view of an offer.
type OfferSummary struct {
	OfferID    string `json:"offer_id"`
	CreatedAt  string `json:"created_at"`
	CoinFrom   string `json:"coin_from"`
	CoinTo     string `json:"coin_to"`
	AmountFrom string `json:"amount_from"`
	AmountTo   string `json:"amount_to"`
	Rate       string `json:"rate"`
}

// NewOfferResult is returned when an offer is created.
type NewOfferResult struct {
	OfferID string `json:"offer_id"`
}

func (s *Server) handleOffers(ctx context.Context, req *Request) (interface{}, error) {
	return s.offers(ctx, req, false)
}

func (s *Server) handleSentOffers(ctx context.Context, req *Request) (interface{}, error) {
	return s.offers(ctx, req, true)
}

// offers serves:
//
//	/offers                      list offers, filtered by the body
//	/offers/{offer_id}           list the single matching offer
//	/offers/new                  create an offer
//	/offers/revoke/{offer_id}    revoke an offer
func (s *Server) offers(ctx context.Context, req *Request, sent bool) (interface{}, error) {
	switch req.Seg3 {
	case "new":
		return s.newOffer(ctx, req)
	case "revoke":
		return s.revokeOffer(ctx, req, req.Seg4)
	}

	var offerID *engine.ID
	if req.Seg3 != "" {
		id, err := parseID(req.Seg3, "offer_id")
		if err != nil {
			return nil, err
		}
		offerID = &id
	}

	var p *request.Payload
	if req.HasBody() {
		var err error
		if p, err = req.Payload(); err != nil {
			return nil, err
		}
	}

	f, err := s.filters.Build(p, offerID)
	if err != nil {
		return nil, err
	}

	offers, err := s.engine.ListOffers(ctx, sent, f)
	if err != nil {
		return nil, err
	}

	out := make([]*OfferSummary, 0, len(offers))
	for _, o := range offers {
		summary, err := s.summarizeOffer(o)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *Server) summarizeOffer(o *engine.Offer) (*OfferSummary, error) {
	ciFrom, ok := s.coins.ByID(o.CoinFrom)
	if !ok {
		return nil, apierr.New(apierr.KindUnknownCoin, "unknown coin id: %d", o.CoinFrom)
	}
	ciTo, ok := s.coins.ByID(o.CoinTo)
	if !ok {
		return nil, apierr.New(apierr.KindUnknownCoin, "unknown coin id: %d", o.CoinTo)
	}

	amountTo, err := coins.AmountTo(ciFrom, o.AmountFrom, o.Rate)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindEngineFailure, err, "offer %s", o.ID)
	}

	return &OfferSummary{
		OfferID:    o.ID.String(),
		CreatedAt:  helpers.FormatTimestamp(o.CreatedAt),
		CoinFrom:   ciFrom.CoinName(),
		CoinTo:     ciTo.CoinName(),
		AmountFrom: ciFrom.FormatAmount(o.AmountFrom),
		AmountTo:   ciTo.FormatAmount(amountTo),
		Rate:       ciTo.FormatAmount(o.Rate),
	}, nil
}

// newOffer creates and publishes an offer. The body is required.
func (s *Server) newOffer(ctx context.Context, req *Request) (interface{}, error) {
	if err := req.requirePost("offers/new"); err != nil {
		return nil, err
	}
	if !req.HasBody() {
		return nil, apierr.MalformedInput("no post data")
	}
	p, err := req.Payload()
	if err != nil {
		return nil, err
	}

	offer, err := s.parseOfferForm(p)
	if err != nil {
		return nil, err
	}

	id, err := s.engine.PostOffer(ctx, offer)
	if err != nil {
		return nil, err
	}

	s.log.Info("Offer created", "offer_id", id, "swap_type", offer.SwapType, "request_id", RequestID(ctx))
	s.wsHub.Broadcast(EventOfferCreated, map[string]string{"offer_id": id.String()})

	return &NewOfferResult{OfferID: id.String()}, nil
}

// parseID decodes a hex offer or bid id.
func parseID(s, name string) (engine.ID, error) {
	id, err := engine.ParseID(s)
	if err != nil {
		return id, apierr.Validation("invalid %s: %v", name, err)
	}
	return id, nil
}
