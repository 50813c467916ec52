// Package rpcclient implements the swap engine contract by forwarding each
// call to a remote engine over JSON-RPC 2.0.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"

	"github.com/klingon-exchange/swapapi/internal/coins"
	"github.com/klingon-exchange/swapapi/internal/engine"
	"github.com/klingon-exchange/swapapi/pkg/logging"
)

// CodeNotFound is the remote error code for unknown offer and bid ids.
const CodeNotFound = -32001

// DefaultTimeout bounds a single call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Client errors
var (
	ErrInvalidTxID = errors.New("engine returned an invalid txid")
	ErrIDMismatch  = errors.New("response id does not match request")
	ErrEmptyResult = errors.New("empty result")
)

// RPCError is an error returned by the remote engine.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Config holds client configuration.
type Config struct {
	URL     string
	User    string
	Pass    string
	Timeout time.Duration
}

// Client is a JSON-RPC swap engine client.
type Client struct {
	url        string
	user       string
	pass       string
	httpClient *http.Client
	log        *logging.Logger
}

var _ engine.Engine = (*Client)(nil)

// New creates a new engine client.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:  cfg.URL,
		user: cfg.User,
		pass: cfg.Pass,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logging.GetDefault().Component("rpcclient"),
	}
}

type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      string      `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
	ID      string          `json:"id"`
}

// call performs a single request and decodes the result into out, which may
// be nil when the result is ignored.
func (c *Client) call(ctx context.Context, method string, params, out interface{}) error {
	id := uuid.New().String()

	data, err := json.Marshal(request{JSONRPC: "2.0", Method: method, Params: params, ID: id})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	c.log.Debug("RPC call", "method", method, "id", id, "status", resp.StatusCode, "duration", time.Since(start))

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return fmt.Errorf("%s: failed to parse response (HTTP %d): %w", method, resp.StatusCode, err)
	}

	if r.Error != nil {
		if r.Error.Code == CodeNotFound {
			return fmt.Errorf("%w: %s", engine.ErrNotFound, r.Error.Message)
		}
		return fmt.Errorf("%s: %w", method, r.Error)
	}
	if r.ID != id {
		return fmt.Errorf("%s: %w", method, ErrIDMismatch)
	}

	if out == nil {
		return nil
	}
	if len(r.Result) == 0 || string(r.Result) == "null" {
		return fmt.Errorf("%s: %w", method, ErrEmptyResult)
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("%s: failed to decode result: %w", method, err)
	}
	return nil
}

// validateTxID checks that txid is a full transaction hash and returns it in
// canonical form.
func validateTxID(txid string) (string, error) {
	if len(txid) != chainhash.MaxHashStringSize {
		return "", fmt.Errorf("%w: %q", ErrInvalidTxID, txid)
	}
	h, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTxID, err)
	}
	return h.String(), nil
}

// =============================================================================
// Wallets
// =============================================================================

type coinParams struct {
	CoinID coins.ID `json:"coin_id"`
}

type withdrawParams struct {
	CoinID   coins.ID `json:"coin_id,omitempty"`
	TypeFrom string   `json:"type_from,omitempty"`
	TypeTo   string   `json:"type_to,omitempty"`
	Amount   string   `json:"amount"`
	Address  string   `json:"address"`
	SubFee   bool     `json:"subfee"`
}

type txidResult struct {
	TxID string `json:"txid"`
}

// WalletsInfo returns the info of every wallet.
func (c *Client) WalletsInfo(ctx context.Context) (engine.Info, error) {
	var info engine.Info
	if err := c.call(ctx, "wallets_info", nil, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// WalletInfo returns the info of one wallet.
func (c *Client) WalletInfo(ctx context.Context, coin coins.ID) (engine.Info, error) {
	var info engine.Info
	if err := c.call(ctx, "wallet_info", coinParams{CoinID: coin}, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// WithdrawCoin sends coins to an address and returns the txid.
func (c *Client) WithdrawCoin(ctx context.Context, coin coins.ID, amount, address string, subtractFee bool) (string, error) {
	return c.withdraw(ctx, "wallet_withdraw", &withdrawParams{
		CoinID:  coin,
		Amount:  amount,
		Address: address,
		SubFee:  subtractFee,
	})
}

// WithdrawParticl sends native coins between balance types or to an address.
func (c *Client) WithdrawParticl(ctx context.Context, typeFrom, typeTo, amount, address string, subtractFee bool) (string, error) {
	return c.withdraw(ctx, "wallet_withdrawParticl", &withdrawParams{
		TypeFrom: typeFrom,
		TypeTo:   typeTo,
		Amount:   amount,
		Address:  address,
		SubFee:   subtractFee,
	})
}

func (c *Client) withdraw(ctx context.Context, method string, params *withdrawParams) (string, error) {
	var res txidResult
	if err := c.call(ctx, method, params, &res); err != nil {
		return "", err
	}
	return validateTxID(res.TxID)
}

// =============================================================================
// Offers
// =============================================================================

type offerIDParams struct {
	OfferID engine.ID `json:"offer_id"`
}

type offerIDResult struct {
	OfferID engine.ID `json:"offer_id"`
}

type listOffersParams struct {
	Sent   bool                  `json:"sent"`
	Filter *engine.ListingFilter `json:"filter"`
}

// PostOffer creates an offer and returns its id.
func (c *Client) PostOffer(ctx context.Context, req *engine.NewOffer) (engine.ID, error) {
	var res offerIDResult
	if err := c.call(ctx, "offers_new", req, &res); err != nil {
		return engine.ID{}, err
	}
	return res.OfferID, nil
}

// ListOffers returns offers matching filter.
func (c *Client) ListOffers(ctx context.Context, sent bool, filter *engine.ListingFilter) ([]*engine.Offer, error) {
	var offers []*engine.Offer
	if err := c.call(ctx, "offers_list", listOffersParams{Sent: sent, Filter: filter}, &offers); err != nil {
		return nil, err
	}
	if offers == nil {
		offers = make([]*engine.Offer, 0)
	}
	return offers, nil
}

// GetOffer returns an offer by id.
func (c *Client) GetOffer(ctx context.Context, id engine.ID) (*engine.Offer, error) {
	var o engine.Offer
	if err := c.call(ctx, "offers_get", offerIDParams{OfferID: id}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// RevokeOffer revokes an offer.
func (c *Client) RevokeOffer(ctx context.Context, id engine.ID) error {
	return c.call(ctx, "offers_revoke", offerIDParams{OfferID: id}, nil)
}

// =============================================================================
// Bids
// =============================================================================

type bidIDParams struct {
	BidID engine.ID `json:"bid_id"`
}

type bidIDResult struct {
	BidID engine.ID `json:"bid_id"`
}

type newBidParams struct {
	OfferID  engine.ID `json:"offer_id"`
	Amount   int64     `json:"amount"`
	AddrFrom string    `json:"addr_from,omitempty"`
}

type debugIndParams struct {
	BidID    engine.ID `json:"bid_id"`
	DebugInd int       `json:"debug_ind"`
}

type listBidsParams struct {
	Sent bool `json:"sent"`
}

// PostBid places a secret-hash bid.
func (c *Client) PostBid(ctx context.Context, offerID engine.ID, amount int64, addrFrom string) (engine.ID, error) {
	return c.postBid(ctx, "bids_new", offerID, amount, addrFrom)
}

// PostXmrBid places an adaptor-signature bid.
func (c *Client) PostXmrBid(ctx context.Context, offerID engine.ID, amount int64, addrFrom string) (engine.ID, error) {
	return c.postBid(ctx, "bids_newXmr", offerID, amount, addrFrom)
}

func (c *Client) postBid(ctx context.Context, method string, offerID engine.ID, amount int64, addrFrom string) (engine.ID, error) {
	var res bidIDResult
	params := newBidParams{OfferID: offerID, Amount: amount, AddrFrom: addrFrom}
	if err := c.call(ctx, method, params, &res); err != nil {
		return engine.ID{}, err
	}
	return res.BidID, nil
}

// SetBidDebugInd sets the debug indicator of a bid.
func (c *Client) SetBidDebugInd(ctx context.Context, id engine.ID, value int) error {
	return c.call(ctx, "bids_setDebugInd", debugIndParams{BidID: id, DebugInd: value}, nil)
}

// AcceptBid accepts a bid.
func (c *Client) AcceptBid(ctx context.Context, id engine.ID) error {
	return c.call(ctx, "bids_accept", bidIDParams{BidID: id}, nil)
}

// GetBidDetail returns the full view of a bid.
func (c *Client) GetBidDetail(ctx context.Context, id engine.ID) (*engine.BidDetail, error) {
	var d engine.BidDetail
	if err := c.call(ctx, "bids_get", bidIDParams{BidID: id}, &d); err != nil {
		return nil, err
	}
	if d.Bid == nil || d.Offer == nil {
		return nil, fmt.Errorf("bids_get: %w", ErrEmptyResult)
	}
	return &d, nil
}

// ListBids returns sent or received bids.
func (c *Client) ListBids(ctx context.Context, sent bool) ([]*engine.Bid, error) {
	var bids []*engine.Bid
	if err := c.call(ctx, "bids_list", listBidsParams{Sent: sent}, &bids); err != nil {
		return nil, err
	}
	if bids == nil {
		bids = make([]*engine.Bid, 0)
	}
	return bids, nil
}

// =============================================================================
// Network
// =============================================================================

// NetworkInfo returns the engine's network status.
func (c *Client) NetworkInfo(ctx context.Context) (engine.Info, error) {
	var info engine.Info
	if err := c.call(ctx, "network_info", nil, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// Summary returns the engine's aggregate summary.
func (c *Client) Summary(ctx context.Context) (engine.Info, error) {
	var info engine.Info
	if err := c.call(ctx, "summary", nil, &info); err != nil {
		return nil, err
	}
	return info, nil
}
