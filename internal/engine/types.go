package engine

import (
	"encoding/hex"
	"fmt"

	"github.com/klingon-exchange/swapapi/internal/coins"
	"github.com/klingon-exchange/swapapi/pkg/helpers"
)

// IDSize is the length in bytes of offer and bid ids.
const IDSize = 28

// ID is an offer or bid identifier.
type ID [IDSize]byte

// ParseID decodes a hex id. Any decoded length other than IDSize is an error.
func ParseID(s string) (ID, error) {
	var id ID
	b, err := helpers.DecodeFixedHex(s, IDSize)
	if err != nil {
		return id, fmt.Errorf("invalid id %q: %w", s, err)
	}
	copy(id[:], b)
	return id, nil
}

// NewRandomID returns a random id.
func NewRandomID() (ID, error) {
	var id ID
	b, err := helpers.GenerateSecureRandom(IDSize)
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

// String returns the lowercase hex encoding of the id.
func (id ID) String() string { return hex.EncodeToString(id[:]) }

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool { return id == ID{} }

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// SwapType is the swap protocol variant of an offer.
type SwapType int

const (
	// SwapSecretHash is the standard HTLC swap.
	SwapSecretHash SwapType = 1
	// SwapAdaptorSig is the non-interactive adaptor-signature ("XMR-style") swap.
	SwapAdaptorSig SwapType = 2
)

func (t SwapType) String() string {
	switch t {
	case SwapSecretHash:
		return "secret_hash"
	case SwapAdaptorSig:
		return "adaptor_sig"
	default:
		return fmt.Sprintf("swap_type(%d)", int(t))
	}
}

// Sort keys and directions accepted by ListOffers.
const (
	SortCreatedAt = "created_at"
	SortRate      = "rate"
	SortAsc       = "asc"
	SortDesc      = "desc"
)

// ListingFilter restricts and orders an offer listing.
type ListingFilter struct {
	CoinFrom coins.ID `json:"coin_from"`
	CoinTo   coins.ID `json:"coin_to"`
	PageNo   int      `json:"page_no"`
	Limit    int      `json:"limit"`
	SortBy   string   `json:"sort_by"`
	SortDir  string   `json:"sort_dir"`
	Offset   *int     `json:"offset,omitempty"`
	OfferID  *ID      `json:"offer_id,omitempty"`
}

// NewOffer holds the parameters for creating an offer.
type NewOffer struct {
	CoinFrom        coins.ID `json:"coin_from"`
	CoinTo          coins.ID `json:"coin_to"`
	AmountFrom      int64    `json:"amount_from"`
	Rate            int64    `json:"rate"`
	MinBidAmount    int64    `json:"min_bid_amount"`
	SwapType        SwapType `json:"swap_type"`
	AddrFrom        string   `json:"addr_from,omitempty"`
	LockSeconds     int64    `json:"lock_seconds"`
	ValidForSeconds int64    `json:"valid_for_seconds"`
	AutoAccept      bool     `json:"auto_accept"`
}

// Offer is an engine offer record.
type Offer struct {
	ID           ID       `json:"offer_id"`
	CoinFrom     coins.ID `json:"coin_from"`
	CoinTo       coins.ID `json:"coin_to"`
	AmountFrom   int64    `json:"amount_from"`
	Rate         int64    `json:"rate"`
	MinBidAmount int64    `json:"min_bid_amount"`
	SwapType     SwapType `json:"swap_type"`
	AddrFrom     string   `json:"addr_from,omitempty"`
	LockSeconds  int64    `json:"lock_seconds"`
	CreatedAt    int64    `json:"created_at"`
	ExpireAt     int64    `json:"expire_at"`
	WasSent      bool     `json:"was_sent"`
	Active       bool     `json:"active"`
	AutoAccept   bool     `json:"auto_accept"`
}

// Bid is an engine bid record.
type Bid struct {
	ID              ID       `json:"bid_id"`
	OfferID         ID       `json:"offer_id"`
	CoinFrom        coins.ID `json:"coin_from"`
	Amount          int64    `json:"amount"`
	State           BidState `json:"state"`
	CreatedAt       int64    `json:"created_at"`
	ExpireAt        int64    `json:"expire_at"`
	WasSent         bool     `json:"was_sent"`
	WasReceived     bool     `json:"was_received"`
	AddrFrom        string   `json:"addr_from,omitempty"`
	DebugInd        int      `json:"debug_ind"`
	InitiateTxID    string   `json:"initiate_txid,omitempty"`
	ParticipateTxID string   `json:"participate_txid,omitempty"`
}

// XmrSwap holds the adaptor-signature protocol state of a bid.
type XmrSwap struct {
	ScriptLockTxID       string `json:"script_lock_txid,omitempty"`
	ScriptLockSpendTxID  string `json:"script_lock_spend_txid,omitempty"`
	NoScriptLockTxID     string `json:"noscript_lock_txid,omitempty"`
	ScriptLockRefundTxID string `json:"script_lock_refund_txid,omitempty"`
}

// XmrOffer holds the adaptor-signature extension of an offer.
type XmrOffer struct {
	LockTime1 int64 `json:"lock_time_1"`
	LockTime2 int64 `json:"lock_time_2"`
	AFeeRate  int64 `json:"a_fee_rate"`
	BFeeRate  int64 `json:"b_fee_rate"`
}

// Event is an entry in a bid's history.
type Event struct {
	CreatedAt   int64  `json:"created_at"`
	Type        string `json:"event_type"`
	Description string `json:"description"`
}

// BidDetail is the full view of a bid. XmrSwap and XmrOffer are nil for
// secret-hash swaps.
type BidDetail struct {
	Bid      *Bid      `json:"bid"`
	XmrSwap  *XmrSwap  `json:"xmr_swap,omitempty"`
	Offer    *Offer    `json:"offer"`
	XmrOffer *XmrOffer `json:"xmr_offer,omitempty"`
	Events   []Event   `json:"events"`
}
