package local

import (
	"context"
	"errors"
	"testing"

	"github.com/klingon-exchange/swapapi/internal/coins"
	"github.com/klingon-exchange/swapapi/internal/engine"
)

func testNewOffer(swapType engine.SwapType) *engine.NewOffer {
	req := &engine.NewOffer{
		CoinFrom:   coins.PART,
		CoinTo:     coins.BTC,
		AmountFrom: 100000000,
		Rate:       5000000,
		SwapType:   swapType,
	}
	if swapType == engine.SwapAdaptorSig {
		req.CoinTo = coins.XMR
		req.Rate = 10000000000
	}
	return req
}

func testFilter() *engine.ListingFilter {
	return &engine.ListingFilter{
		CoinFrom: coins.Any,
		CoinTo:   coins.Any,
		PageNo:   1,
		Limit:    50,
		SortBy:   engine.SortCreatedAt,
		SortDir:  engine.SortDesc,
	}
}

func TestPostOffer(t *testing.T) {
	eng, store := newTestEngine(t, nil)
	ctx := context.Background()

	id, err := eng.PostOffer(ctx, testNewOffer(engine.SwapSecretHash))
	if err != nil {
		t.Fatalf("PostOffer() error = %v", err)
	}

	o, err := eng.GetOffer(ctx, id)
	if err != nil {
		t.Fatalf("GetOffer() error = %v", err)
	}
	if !o.WasSent || !o.Active {
		t.Errorf("offer flags: sent=%v active=%v", o.WasSent, o.Active)
	}
	if o.CreatedAt != testNow.Unix() {
		t.Errorf("CreatedAt = %d, want %d", o.CreatedAt, testNow.Unix())
	}
	if o.ExpireAt != testNow.Add(DefaultOfferValidity).Unix() {
		t.Errorf("ExpireAt = %d", o.ExpireAt)
	}
	if o.LockSeconds != DefaultLockSeconds {
		t.Errorf("LockSeconds = %d, want %d", o.LockSeconds, DefaultLockSeconds)
	}

	xo, _ := store.GetXmrOffer(id)
	if xo != nil {
		t.Error("secret-hash offer has an adaptor-signature extension")
	}

	xmrID, err := eng.PostOffer(ctx, testNewOffer(engine.SwapAdaptorSig))
	if err != nil {
		t.Fatalf("PostOffer() adaptor error = %v", err)
	}
	xo, _ = store.GetXmrOffer(xmrID)
	if xo == nil || xo.LockTime1 != DefaultLockSeconds {
		t.Errorf("GetXmrOffer() = %+v", xo)
	}
}

func TestPostOfferErrors(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		modify  func(r *engine.NewOffer)
		wantErr error
	}{
		{"same coin", func(r *engine.NewOffer) { r.CoinTo = r.CoinFrom }, ErrSameCoin},
		{"zero amount", func(r *engine.NewOffer) { r.AmountFrom = 0 }, ErrInvalidAmount},
		{"zero rate", func(r *engine.NewOffer) { r.Rate = 0 }, ErrInvalidRate},
		{"min bid too large", func(r *engine.NewOffer) { r.MinBidAmount = r.AmountFrom + 1 }, ErrBidOutOfRange},
		{"secret hash with XMR", func(r *engine.NewOffer) { r.CoinTo = coins.XMR }, ErrNoScriptSecretHash},
		{"unknown coin", func(r *engine.NewOffer) { r.CoinTo = 99 }, nil},
		{"unknown swap type", func(r *engine.NewOffer) { r.SwapType = 9 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testNewOffer(engine.SwapSecretHash)
			tt.modify(req)
			_, err := eng.PostOffer(ctx, req)
			if err == nil {
				t.Fatal("PostOffer() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("PostOffer() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestListAndRevokeOffers(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ctx := context.Background()

	id, _ := eng.PostOffer(ctx, testNewOffer(engine.SwapSecretHash))

	offers, err := eng.ListOffers(ctx, false, testFilter())
	if err != nil {
		t.Fatalf("ListOffers() error = %v", err)
	}
	if len(offers) != 1 || offers[0].ID != id {
		t.Fatalf("ListOffers() = %v", offers)
	}

	if err := eng.RevokeOffer(ctx, id); err != nil {
		t.Fatalf("RevokeOffer() error = %v", err)
	}

	offers, _ = eng.ListOffers(ctx, true, testFilter())
	if len(offers) != 0 {
		t.Errorf("ListOffers() after revoke = %v", offers)
	}

	if err := eng.RevokeOffer(ctx, engine.ID{1}); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("RevokeOffer() unknown error = %v, want ErrNotFound", err)
	}
	if _, err := eng.GetOffer(ctx, engine.ID{1}); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("GetOffer() unknown error = %v, want ErrNotFound", err)
	}
}
