package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/klingon-exchange/swapapi/internal/apierr"
	"github.com/klingon-exchange/swapapi/internal/coins"
	"github.com/klingon-exchange/swapapi/internal/engine"
)

const contentTypeJSON = "application/json"

func newTestServer(t *testing.T) (*Server, *mockEngine) {
	t.Helper()
	eng := newMockEngine()
	s := NewServer(eng, coins.DefaultRegistry(), Options{PageLimit: 50})
	t.Cleanup(func() { s.Stop() })
	return s, eng
}

func doRequest(t *testing.T, s *Server, method, path, body, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func addTestOffer(eng *mockEngine, swapType engine.SwapType) *engine.Offer {
	o := &engine.Offer{
		ID:         eng.newID(),
		CoinFrom:   coins.PART,
		CoinTo:     coins.BTC,
		AmountFrom: 150000000,
		Rate:       1000000,
		SwapType:   swapType,
		CreatedAt:  1700000000,
		Active:     true,
	}
	eng.addOffer(o)
	return o
}

func TestUnknownResource(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/json/nosuch", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if resp := decodeError(t, rec); resp.Code != int(apierr.KindUnknownCommand) {
		t.Errorf("code = %d, want %d", resp.Code, apierr.KindUnknownCommand)
	}
}

func TestIndexAndNetwork(t *testing.T) {
	s, eng := newTestServer(t)

	for _, path := range []string{"/json", "/json/", "/json/network"} {
		rec := doRequest(t, s, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, body %s", path, rec.Code, rec.Body.String())
		}
	}
	if !eng.called("Summary") || !eng.called("NetworkInfo") {
		t.Errorf("calls = %v", eng.Calls())
	}
}

func TestRequestIDHeader(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/json/network", "", "")
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestListOffersValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode apierr.Kind
	}{
		{"limit too large", `{"limit": 51}`, apierr.KindValidation},
		{"limit zero", `{"limit": 0}`, apierr.KindValidation},
		{"bad sort key", `{"sort_by": "amount"}`, apierr.KindValidation},
		{"bad sort dir", `{"sort_dir": "up"}`, apierr.KindValidation},
		{"negative offset", `{"offset": -1}`, apierr.KindValidation},
		{"malformed json", `{"limit":`, apierr.KindMalformedInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, eng := newTestServer(t)

			rec := doRequest(t, s, http.MethodPost, "/json/offers", tt.body, contentTypeJSON)
			if rec.Code != tt.wantCode.HTTPStatus() {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode.HTTPStatus())
			}
			if resp := decodeError(t, rec); resp.Code != int(tt.wantCode) {
				t.Errorf("code = %d, want %d", resp.Code, tt.wantCode)
			}
			if eng.called("ListOffers") {
				t.Error("engine should not be called on invalid input")
			}
		})
	}
}

func TestListOffersFilter(t *testing.T) {
	s, eng := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/json/offers",
		`{"coin_from": "part", "coin_to": "XMR", "limit": 10, "sort_by": "rate", "sort_dir": "asc"}`, contentTypeJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	f := eng.lastFilter
	if f.CoinFrom != coins.PART || f.CoinTo != coins.XMR {
		t.Errorf("coins = %d/%d", f.CoinFrom, f.CoinTo)
	}
	if f.Limit != 10 || f.SortBy != engine.SortRate || f.SortDir != engine.SortAsc {
		t.Errorf("filter = %+v", f)
	}
}

func TestListOffersQueryString(t *testing.T) {
	s, eng := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/json/offers?coin_from=BTC&limit=5", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if eng.lastFilter.CoinFrom != coins.BTC || eng.lastFilter.Limit != 5 {
		t.Errorf("filter = %+v", eng.lastFilter)
	}
	if eng.lastFilter.CoinTo != coins.Any {
		t.Errorf("coin_to = %d, want any", eng.lastFilter.CoinTo)
	}
}

func TestListOffersSummary(t *testing.T) {
	s, eng := newTestServer(t)
	o := addTestOffer(eng, engine.SwapSecretHash)

	rec := doRequest(t, s, http.MethodGet, "/json/offers", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got []OfferSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	want := OfferSummary{
		OfferID:    o.ID.String(),
		CreatedAt:  "2023-11-14 22:13:20",
		CoinFrom:   "Particl",
		CoinTo:     "Bitcoin",
		AmountFrom: "1.50000000",
		AmountTo:   "0.01500000",
		Rate:       "0.01000000",
	}
	if got[0] != want {
		t.Errorf("summary = %+v, want %+v", got[0], want)
	}
}

func TestGetOfferByID(t *testing.T) {
	s, eng := newTestServer(t)
	o := addTestOffer(eng, engine.SwapSecretHash)
	addTestOffer(eng, engine.SwapSecretHash)

	path := "/json/offers/" + o.ID.String()
	first := doRequest(t, s, http.MethodGet, path, "", "")
	second := doRequest(t, s, http.MethodGet, path, "", "")

	if first.Code != http.StatusOK {
		t.Fatalf("status = %d", first.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("repeated get differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}

	var got []OfferSummary
	if err := json.Unmarshal(first.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].OfferID != o.ID.String() {
		t.Errorf("got %+v", got)
	}
}

func TestGetOfferIdempotent(t *testing.T) {
	s, eng := newTestServer(t)
	o := addTestOffer(eng, engine.SwapSecretHash)

	path := "/json/offers/" + o.ID.String()
	want := doRequest(t, s, http.MethodGet, path, "", "").Body.Bytes()
	for i := 0; i < 2; i++ {
		got := doRequest(t, s, http.MethodGet, path, "", "").Body.Bytes()
		if !bytes.Equal(got, want) {
			t.Fatalf("call %d body differs:\n%s\n%s", i+2, got, want)
		}
	}
	if n := eng.count("ListOffers"); n != 3 {
		t.Errorf("ListOffers called %d times, want 3", n)
	}
}

func TestIDLengthValidation(t *testing.T) {
	paths := []string{
		"/json/offers/abcd",
		"/json/offers/" + strings.Repeat("ab", 29),
		"/json/sentoffers/zz",
		"/json/bids/" + strings.Repeat("ab", 27),
		"/json/revokeoffer/1234",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			s, eng := newTestServer(t)

			rec := doRequest(t, s, http.MethodPost, path, "", "")
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
			}
			if calls := eng.Calls(); len(calls) != 0 {
				t.Errorf("engine called: %v", calls)
			}
		})
	}
}

func TestNewOfferThenGet(t *testing.T) {
	s, eng := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/json/offers/new",
		`{"coin_from": "PART", "coin_to": "XMR", "amount_from": "1.5", "rate": "0.01"}`, contentTypeJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created NewOfferResult
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(created.OfferID) != 2*engine.IDSize {
		t.Fatalf("offer_id = %q", created.OfferID)
	}

	id, _ := engine.ParseID(created.OfferID)
	if got := eng.offers[id].SwapType; got != engine.SwapAdaptorSig {
		t.Errorf("swap type = %s, want adaptor_sig", got)
	}
	if got := eng.offers[id].Rate; got != 10000000000 {
		t.Errorf("rate = %d", got)
	}

	rec = doRequest(t, s, http.MethodGet, "/json/offers/"+created.OfferID, "", "")
	var got []OfferSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].OfferID != created.OfferID {
		t.Errorf("got %+v", got)
	}
	if got[0].AmountTo != "0.015000000000" {
		t.Errorf("amount_to = %s", got[0].AmountTo)
	}
}

func TestNewOfferValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode apierr.Kind
	}{
		{"empty body", ``, apierr.KindMalformedInput},
		{"missing coin_to", `{"coin_from": "PART", "amount_from": "1", "rate": "1"}`, apierr.KindMissingField},
		{"unknown coin", `{"coin_from": "DOGE", "coin_to": "BTC", "amount_from": "1", "rate": "1"}`, apierr.KindUnknownCoin},
		{"same coin", `{"coin_from": "BTC", "coin_to": "btc", "amount_from": "1", "rate": "1"}`, apierr.KindValidation},
		{"bad amount", `{"coin_from": "PART", "coin_to": "BTC", "amount_from": "1.123456789", "rate": "1"}`, apierr.KindValidation},
		{"negative amount", `{"coin_from": "PART", "coin_to": "BTC", "amount_from": "-1", "rate": "1"}`, apierr.KindValidation},
		{"missing rate", `{"coin_from": "PART", "coin_to": "BTC", "amount_from": "1"}`, apierr.KindMissingField},
		{"zero rate", `{"coin_from": "PART", "coin_to": "BTC", "amount_from": "1", "rate": "0"}`, apierr.KindValidation},
		{"secret hash with xmr", `{"coin_from": "PART", "coin_to": "XMR", "amount_from": "1", "rate": "1", "swap_type": "secret_hash"}`, apierr.KindValidation},
		{"unknown swap type", `{"coin_from": "PART", "coin_to": "BTC", "amount_from": "1", "rate": "1", "swap_type": "atomic"}`, apierr.KindValidation},
		{"negative lock", `{"coin_from": "PART", "coin_to": "BTC", "amount_from": "1", "rate": "1", "lock_seconds": -5}`, apierr.KindValidation},
		{"amount_to overflow", `{"coin_from": "PART", "coin_to": "XMR", "amount_from": "40000", "rate": "300"}`, apierr.KindValidation},
		{"min bid too large", `{"coin_from": "PART", "coin_to": "BTC", "amount_from": "1", "rate": "1", "min_bid_amount": "2"}`, apierr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, eng := newTestServer(t)

			rec := doRequest(t, s, http.MethodPost, "/json/offers/new", tt.body, contentTypeJSON)
			if resp := decodeError(t, rec); resp.Code != int(tt.wantCode) {
				t.Errorf("code = %d (%s), want %d", resp.Code, resp.Error, tt.wantCode)
			}
			if eng.called("PostOffer") {
				t.Error("engine should not be called on invalid input")
			}
		})
	}
}

func TestNewOfferFormBody(t *testing.T) {
	s, eng := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/json/offers/new",
		"coin_from=BTC&coin_to=LTC&amt_from=2&amt_to=1&lockhrs=2&addr_from=-1&autoaccept=true",
		"application/x-www-form-urlencoded")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created NewOfferResult
	json.Unmarshal(rec.Body.Bytes(), &created)
	id, _ := engine.ParseID(created.OfferID)
	o := eng.offers[id]
	if o.Rate != 50000000 {
		t.Errorf("rate = %d, want 50000000", o.Rate)
	}
	if o.SwapType != engine.SwapSecretHash {
		t.Errorf("swap type = %s", o.SwapType)
	}
}

func TestRevokeOffer(t *testing.T) {
	for _, prefix := range []string{"/json/revokeoffer/", "/json/offers/revoke/"} {
		t.Run(prefix, func(t *testing.T) {
			s, eng := newTestServer(t)
			o := addTestOffer(eng, engine.SwapSecretHash)

			rec := doRequest(t, s, http.MethodPost, prefix+o.ID.String(), "", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			var got RevokeResult
			json.Unmarshal(rec.Body.Bytes(), &got)
			if got.RevokedOffer != o.ID.String() {
				t.Errorf("revoked_offer = %s", got.RevokedOffer)
			}
			if o.Active {
				t.Error("offer still active")
			}
		})
	}
}

func TestRevokeUnknownOffer(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/json/revokeoffer/"+strings.Repeat("00", engine.IDSize), "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != int(apierr.KindNotFound) {
		t.Errorf("code = %d", resp.Code)
	}
}

func TestListBidsEmpty(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/json/bids", "/json/sentbids"} {
		rec := doRequest(t, s, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
			t.Errorf("%s: body = %s, want []", path, got)
		}
	}
}

func TestNewBidDispatch(t *testing.T) {
	tests := []struct {
		swapType engine.SwapType
		wantCall string
	}{
		{engine.SwapSecretHash, "PostBid"},
		{engine.SwapAdaptorSig, "PostXmrBid"},
	}

	for _, tt := range tests {
		t.Run(tt.swapType.String(), func(t *testing.T) {
			s, eng := newTestServer(t)
			o := addTestOffer(eng, tt.swapType)

			body := `{"offer_id": "` + o.ID.String() + `", "amount_from": "0.5", "addr_from": "-1", "debugind": 7}`
			rec := doRequest(t, s, http.MethodPost, "/json/bids/new", body, contentTypeJSON)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}

			var got NewBidResult
			json.Unmarshal(rec.Body.Bytes(), &got)
			id, err := engine.ParseID(got.BidID)
			if err != nil {
				t.Fatalf("bid_id: %v", err)
			}

			calls := eng.Calls()
			if calls[len(calls)-2] != tt.wantCall || calls[len(calls)-1] != "SetBidDebugInd" {
				t.Errorf("calls = %v", calls)
			}
			if eng.bids[id].Amount != 50000000 {
				t.Errorf("amount = %d", eng.bids[id].Amount)
			}
			if eng.debugInd[id] != 7 {
				t.Errorf("debug ind = %d", eng.debugInd[id])
			}
		})
	}
}

func TestNewBidErrors(t *testing.T) {
	s, eng := newTestServer(t)
	o := addTestOffer(eng, engine.SwapSecretHash)
	unknown := strings.Repeat("ff", engine.IDSize)

	tests := []struct {
		name     string
		body     string
		wantCode apierr.Kind
	}{
		{"missing offer id", `{"amount_from": "1"}`, apierr.KindMissingField},
		{"short offer id", `{"offer_id": "abcd", "amount_from": "1"}`, apierr.KindValidation},
		{"unknown offer", `{"offer_id": "` + unknown + `", "amount_from": "1"}`, apierr.KindNotFound},
		{"bad amount", `{"offer_id": "` + o.ID.String() + `", "amount_from": "one"}`, apierr.KindValidation},
		{"bad debugind", `{"offer_id": "` + o.ID.String() + `", "amount_from": "1", "debugind": "x"}`, apierr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/json/bids/new", tt.body, contentTypeJSON)
			if resp := decodeError(t, rec); resp.Code != int(tt.wantCode) {
				t.Errorf("code = %d (%s), want %d", resp.Code, resp.Error, tt.wantCode)
			}
		})
	}
	if eng.called("PostBid") {
		t.Error("bid posted on invalid input")
	}
}

func TestBidDetailActions(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantAccept bool
		wantDebug  bool
		wantState  string
	}{
		{"no body", ``, false, false, "Sent"},
		{"debugind only", `{"debugind": 3}`, false, true, "Sent"},
		{"accept", `{"accept": true}`, true, false, "Accepted"},
		{"accept wins over debugind", `{"accept": true, "debugind": 3}`, true, false, "Accepted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, eng := newTestServer(t)
			o := addTestOffer(eng, engine.SwapSecretHash)
			bid := &engine.Bid{ID: eng.newID(), OfferID: o.ID, CoinFrom: o.CoinFrom, Amount: 1000, State: engine.BidSent}
			eng.addBid(bid)

			rec := doRequest(t, s, http.MethodPost, "/json/bids/"+bid.ID.String(), tt.body, contentTypeJSON)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if eng.called("AcceptBid") != tt.wantAccept {
				t.Errorf("accept called = %v, want %v", eng.called("AcceptBid"), tt.wantAccept)
			}
			if eng.called("SetBidDebugInd") != tt.wantDebug {
				t.Errorf("debugind called = %v, want %v", eng.called("SetBidDebugInd"), tt.wantDebug)
			}

			var desc map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &desc); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if desc["bid_state"] != tt.wantState {
				t.Errorf("bid_state = %v, want %s", desc["bid_state"], tt.wantState)
			}
			if desc["swap_type"] != "secret_hash" {
				t.Errorf("swap_type = %v", desc["swap_type"])
			}
		})
	}
}

func TestBidDetailNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/json/bids/"+strings.Repeat("01", engine.IDSize), "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListBidsSummary(t *testing.T) {
	s, eng := newTestServer(t)
	o := addTestOffer(eng, engine.SwapSecretHash)
	bid := &engine.Bid{
		ID:        eng.newID(),
		OfferID:   o.ID,
		CoinFrom:  coins.PART,
		Amount:    25000000,
		State:     engine.BidReceived,
		CreatedAt: 1700000000,
	}
	eng.addBid(bid)

	rec := doRequest(t, s, http.MethodGet, "/json/bids", "", "")
	var got []BidSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := BidSummary{
		BidID:      bid.ID.String(),
		OfferID:    o.ID.String(),
		CreatedAt:  "2023-11-14 22:13:20",
		CoinFrom:   int(coins.PART),
		AmountFrom: "0.25000000",
		BidState:   "Received",
	}
	if len(got) != 1 || got[0] != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestWallets(t *testing.T) {
	s, eng := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/json/wallets", "", "")
	if rec.Code != http.StatusOK || !eng.called("WalletsInfo") {
		t.Errorf("wallets: status = %d, calls = %v", rec.Code, eng.Calls())
	}

	rec = doRequest(t, s, http.MethodGet, "/json/wallets/ltc", "", "")
	if rec.Code != http.StatusOK || !eng.called("WalletInfo") {
		t.Errorf("wallet: status = %d, calls = %v", rec.Code, eng.Calls())
	}

	rec = doRequest(t, s, http.MethodGet, "/json/wallets/doge", "", "")
	if resp := decodeError(t, rec); resp.Code != int(apierr.KindUnknownCoin) {
		t.Errorf("unknown coin code = %d", resp.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/json/wallets/btc/sweep", "", "")
	if resp := decodeError(t, rec); resp.Code != int(apierr.KindUnknownCommand) {
		t.Errorf("unknown command code = %d", resp.Code)
	}
}

func TestWithdraw(t *testing.T) {
	s, eng := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/json/wallets/btc/withdraw",
		`{"value": "0.1", "address": "bc1qexample", "subfee": true}`, contentTypeJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got WithdrawResult
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.TxID != fmt.Sprintf("%064x", 1) {
		t.Errorf("txid = %s", got.TxID)
	}
	want := []interface{}{coins.BTC, "0.1", "bc1qexample", true}
	for i := range want {
		if eng.lastWithdraw[i] != want[i] {
			t.Errorf("withdraw arg %d = %v, want %v", i, eng.lastWithdraw[i], want[i])
		}
	}
}

func TestWithdrawNotDeduplicated(t *testing.T) {
	s, eng := newTestServer(t)
	body := `{"value": "0.1", "address": "bc1qexample", "subfee": false}`

	seen := make(map[string]bool)
	for i := 0; i < 2; i++ {
		rec := doRequest(t, s, http.MethodPost, "/json/wallets/btc/withdraw", body, contentTypeJSON)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var got WithdrawResult
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		seen[got.TxID] = true
	}

	if n := eng.count("WithdrawCoin"); n != 2 {
		t.Errorf("WithdrawCoin called %d times, want 2", n)
	}
	if len(seen) != 2 {
		t.Errorf("got %d distinct txids, want 2", len(seen))
	}
}

func TestWithdrawParticl(t *testing.T) {
	s, eng := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/json/wallets/part/withdraw",
		"value=1&address=pabc&subfee=false&type_to=anon", "application/x-www-form-urlencoded")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	want := []interface{}{"plain", "anon", "1", "pabc", false}
	for i := range want {
		if eng.lastWithdraw[i] != want[i] {
			t.Errorf("withdraw arg %d = %v, want %v", i, eng.lastWithdraw[i], want[i])
		}
	}
}

func TestWithdrawMissingField(t *testing.T) {
	s, eng := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/json/wallets/btc/withdraw",
		`{"value": "0.1", "subfee": true}`, contentTypeJSON)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != int(apierr.KindMissingField) {
		t.Errorf("code = %d", resp.Code)
	}
	if eng.called("WithdrawCoin") {
		t.Error("withdraw called")
	}
}

func TestEngineFailure(t *testing.T) {
	s, eng := newTestServer(t)
	eng.failWith = errors.New("wallet locked")

	rec := doRequest(t, s, http.MethodGet, "/json/wallets", "", "")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Code != int(apierr.KindEngineFailure) || resp.Error != "wallet locked" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCORS(t *testing.T) {
	eng := newMockEngine()
	s := NewServer(eng, coins.DefaultRegistry(), Options{PageLimit: 50, CORSOrigins: []string{"http://localhost:3000"}})
	defer s.Stop()

	req := httptest.NewRequest(http.MethodGet, "/json/network", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestWebSocketEvents(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.WSHub().ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post(ts.URL+"/json/offers/new", contentTypeJSON,
		strings.NewReader(`{"coin_from": "BTC", "coin_to": "LTC", "amount_from": "1", "rate": "2"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var event WSEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Type != EventOfferCreated {
		t.Errorf("event type = %s, want %s", event.Type, EventOfferCreated)
	}
}

func TestStateChangesRequirePost(t *testing.T) {
	id := strings.Repeat("0a", engine.IDSize)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"withdraw", "/json/wallets/BTC/withdraw?value=0.5&address=bc1qother&subfee=true", ""},
		{"new offer", "/json/offers/new?coin_from=BTC&coin_to=LTC&amount_from=1&rate=1", ""},
		{"new bid", "/json/bids/new?offer_id=" + id + "&amount_from=1", ""},
		{"accept", "/json/bids/" + id + "?accept=1", ""},
		{"debugind", "/json/bids/" + id + "?debugind=2", ""},
		{"accept in body", "/json/bids/" + id, `{"accept": true}`},
		{"revokeoffer", "/json/revokeoffer/" + id, ""},
		{"offers revoke", "/json/offers/revoke/" + id, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, eng := newTestServer(t)

			rec := doRequest(t, s, http.MethodGet, tt.path, tt.body, contentTypeJSON)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if resp := decodeError(t, rec); resp.Code != int(apierr.KindMalformedInput) {
				t.Errorf("code = %d, want %d", resp.Code, apierr.KindMalformedInput)
			}
			if calls := eng.Calls(); len(calls) != 0 {
				t.Errorf("engine called: %v", calls)
			}
		})
	}
}

func TestPostIgnoresQueryString(t *testing.T) {
	s, eng := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/json/offers?limit=500", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if eng.lastFilter.Limit != 50 {
		t.Errorf("limit = %d, want default 50", eng.lastFilter.Limit)
	}
}

func TestNewBidDebugIndFailureReportsBid(t *testing.T) {
	s, eng := newTestServer(t)
	o := addTestOffer(eng, engine.SwapSecretHash)
	eng.failDebugInd = errors.New("debug hooks disabled")

	body := `{"offer_id": "` + o.ID.String() + `", "amount_from": "0.5", "debugind": 4}`
	rec := doRequest(t, s, http.MethodPost, "/json/bids/new", body, contentTypeJSON)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if !eng.called("PostBid") {
		t.Fatal("bid was not posted")
	}

	var bidID string
	for id := range eng.bids {
		bidID = id.String()
	}
	if resp := decodeError(t, rec); !strings.Contains(resp.Error, bidID) {
		t.Errorf("error %q does not name bid %s", resp.Error, bidID)
	}
}
