package api

import (
	"github.com/klingon-exchange/swapapi/internal/apierr"
	"github.com/klingon-exchange/swapapi/internal/coins"
	"github.com/klingon-exchange/swapapi/internal/engine"
	"github.com/klingon-exchange/swapapi/internal/request"
)

// addrUnset is the form value meaning "no address preference".
const addrUnset = "-1"

// parseOfferForm reads the offer creation fields.
//
// Either rate or amt_to must be given. When only amt_to is given the rate is
// derived from the two amounts.
func (s *Server) parseOfferForm(p *request.Payload) (*engine.NewOffer, error) {
	ciFrom, err := s.formCoin(p, "coin_from")
	if err != nil {
		return nil, err
	}
	ciTo, err := s.formCoin(p, "coin_to")
	if err != nil {
		return nil, err
	}
	if ciFrom.ID() == ciTo.ID() {
		return nil, apierr.Validation("coin_to must differ from coin_from")
	}

	amountFrom, err := formAmount(p, ciFrom, "amt_from", "amount_from")
	if err != nil {
		return nil, err
	}
	if amountFrom <= 0 {
		return nil, apierr.Validation("amount_from must be positive")
	}

	var rate int64
	switch {
	case p.Has("rate"):
		if rate, err = formAmount(p, ciTo, "rate"); err != nil {
			return nil, err
		}
	case p.Has("amt_to") || p.Has("amount_to"):
		amountTo, err := formAmount(p, ciTo, "amt_to", "amount_to")
		if err != nil {
			return nil, err
		}
		if rate, err = coins.RateFor(ciFrom, amountFrom, amountTo); err != nil {
			return nil, apierr.Validation("invalid amount_to: %v", err)
		}
	default:
		return nil, apierr.MissingField("rate")
	}
	if rate <= 0 {
		return nil, apierr.Validation("rate must be positive")
	}
	if _, err := coins.AmountTo(ciFrom, amountFrom, rate); err != nil {
		return nil, apierr.Validation("amount_to out of range: %v", err)
	}

	offer := &engine.NewOffer{
		CoinFrom:   ciFrom.ID(),
		CoinTo:     ciTo.ID(),
		AmountFrom: amountFrom,
		Rate:       rate,
		AutoAccept: p.BoolOr("autoaccept", p.BoolOr("auto_accept", false)),
	}

	if p.Has("min_bid_amount") || p.Has("amt_bid_min") {
		if offer.MinBidAmount, err = formAmount(p, ciFrom, "min_bid_amount", "amt_bid_min"); err != nil {
			return nil, err
		}
		if offer.MinBidAmount > amountFrom {
			return nil, apierr.Validation("min_bid_amount exceeds amount_from")
		}
	}

	if addr := p.StringOr("addr_from", ""); addr != addrUnset {
		offer.AddrFrom = addr
	}

	switch {
	case p.Has("lock_seconds"):
		n, err := formSeconds(p, "lock_seconds")
		if err != nil {
			return nil, err
		}
		offer.LockSeconds = n
	case p.Has("lockhrs"):
		n, err := formSeconds(p, "lockhrs")
		if err != nil {
			return nil, err
		}
		offer.LockSeconds = n * 3600
	}
	if p.Has("valid_for_seconds") {
		if offer.ValidForSeconds, err = formSeconds(p, "valid_for_seconds"); err != nil {
			return nil, err
		}
	}

	noScript := ciFrom.Params().NoScript || ciTo.Params().NoScript
	if p.Has("swap_type") {
		switch t := p.StringOr("swap_type", ""); t {
		case "secret_hash", "1":
			if noScript {
				return nil, apierr.Validation("secret_hash swaps need script support on both coins")
			}
			offer.SwapType = engine.SwapSecretHash
		case "adaptor_sig", "xmr_swap", "2":
			offer.SwapType = engine.SwapAdaptorSig
		default:
			return nil, apierr.Validation("unknown swap_type: %s", t)
		}
	} else if noScript {
		offer.SwapType = engine.SwapAdaptorSig
	} else {
		offer.SwapType = engine.SwapSecretHash
	}

	return offer, nil
}

func (s *Server) formCoin(p *request.Payload, name string) (coins.Interface, error) {
	v, err := p.String(name)
	if err != nil {
		return nil, err
	}
	ci, ok := s.coins.Lookup(v)
	if !ok {
		return nil, apierr.UnknownCoin(v)
	}
	return ci, nil
}

// formAmount parses the first present of names as a human amount of ci.
func formAmount(p *request.Payload, ci coins.Interface, names ...string) (int64, error) {
	for _, name := range names {
		if !p.Has(name) {
			continue
		}
		v, _ := p.String(name)
		n, err := ci.ParseAmount(v)
		if err != nil {
			return 0, apierr.Validation("invalid %s: %v", name, err)
		}
		return n, nil
	}
	return 0, apierr.MissingField(names[0])
}

func formSeconds(p *request.Payload, name string) (int64, error) {
	n, err := p.Int(name)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, apierr.Validation("%s must not be negative", name)
	}
	return int64(n), nil
}
