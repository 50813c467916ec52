package api

import (
	"context"

	"github.com/klingon-exchange/swapapi/internal/apierr"
)

// RevokeResult is returned when an offer is revoked.
type RevokeResult struct {
	RevokedOffer string `json:"revoked_offer"`
}

func (s *Server) handleNetwork(ctx context.Context, req *Request) (interface{}, error) {
	return s.engine.NetworkInfo(ctx)
}

func (s *Server) handleIndex(ctx context.Context, req *Request) (interface{}, error) {
	return s.engine.Summary(ctx)
}

// handleRevokeOffer serves /revokeoffer/{offer_id}.
func (s *Server) handleRevokeOffer(ctx context.Context, req *Request) (interface{}, error) {
	return s.revokeOffer(ctx, req, req.Seg3)
}

func (s *Server) revokeOffer(ctx context.Context, req *Request, idHex string) (interface{}, error) {
	if err := req.requirePost("revokeoffer"); err != nil {
		return nil, err
	}
	if idHex == "" {
		return nil, apierr.MissingField("offer_id")
	}
	id, err := parseID(idHex, "offer_id")
	if err != nil {
		return nil, err
	}

	if err := s.engine.RevokeOffer(ctx, id); err != nil {
		return nil, err
	}

	s.log.Info("Offer revoked", "offer_id", id, "request_id", RequestID(ctx))
	s.wsHub.Broadcast(EventOfferRevoked, map[string]string{"offer_id": id.String()})

	return &RevokeResult{RevokedOffer: id.String()}, nil
}
