// Package protocol holds the swap protocol variants. Each variant knows how
// to place a bid on an offer of its type and how to describe a bid's
// protocol-specific state.
package protocol

import (
	"context"
	"fmt"

	"github.com/klingon-exchange/swapapi/internal/engine"
)

// Variant is a swap protocol.
type Variant interface {
	Type() engine.SwapType
	Name() string
	// PostBid places a bid on offerID through the engine call for this protocol.
	PostBid(ctx context.Context, eng engine.Engine, offerID engine.ID, amount int64, addrFrom string) (engine.ID, error)
	// DescribeSwap returns the protocol-specific section of a bid description.
	DescribeSwap(detail *engine.BidDetail) interface{}
}

var variants = map[engine.SwapType]Variant{
	engine.SwapSecretHash: secretHash{},
	engine.SwapAdaptorSig: adaptorSig{},
}

// For returns the variant handling swap type t.
func For(t engine.SwapType) (Variant, error) {
	v, ok := variants[t]
	if !ok {
		return nil, fmt.Errorf("unsupported swap type: %s", t)
	}
	return v, nil
}

// secretHash is the standard HTLC swap.
type secretHash struct{}

func (secretHash) Type() engine.SwapType { return engine.SwapSecretHash }
func (secretHash) Name() string          { return "secret_hash" }

func (secretHash) PostBid(ctx context.Context, eng engine.Engine, offerID engine.ID, amount int64, addrFrom string) (engine.ID, error) {
	return eng.PostBid(ctx, offerID, amount, addrFrom)
}

// SecretHashSwap is the description section of a secret-hash swap.
type SecretHashSwap struct {
	InitiateTxID    string `json:"initiate_txid,omitempty"`
	ParticipateTxID string `json:"participate_txid,omitempty"`
	LockSeconds     int64  `json:"lock_seconds"`
}

func (secretHash) DescribeSwap(d *engine.BidDetail) interface{} {
	s := &SecretHashSwap{
		InitiateTxID:    d.Bid.InitiateTxID,
		ParticipateTxID: d.Bid.ParticipateTxID,
	}
	if d.Offer != nil {
		s.LockSeconds = d.Offer.LockSeconds
	}
	return s
}

// adaptorSig is the non-interactive adaptor-signature swap used with
// scriptless coins.
type adaptorSig struct{}

func (adaptorSig) Type() engine.SwapType { return engine.SwapAdaptorSig }
func (adaptorSig) Name() string          { return "adaptor_sig" }

func (adaptorSig) PostBid(ctx context.Context, eng engine.Engine, offerID engine.ID, amount int64, addrFrom string) (engine.ID, error) {
	return eng.PostXmrBid(ctx, offerID, amount, addrFrom)
}

// AdaptorSigSwap is the description section of an adaptor-signature swap.
type AdaptorSigSwap struct {
	ScriptLockTxID       string `json:"script_lock_txid,omitempty"`
	ScriptLockSpendTxID  string `json:"script_lock_spend_txid,omitempty"`
	ScriptLockRefundTxID string `json:"script_lock_refund_txid,omitempty"`
	NoScriptLockTxID     string `json:"noscript_lock_txid,omitempty"`
	LockTime1            int64  `json:"lock_time_1,omitempty"`
	LockTime2            int64  `json:"lock_time_2,omitempty"`
	AFeeRate             int64  `json:"a_fee_rate,omitempty"`
	BFeeRate             int64  `json:"b_fee_rate,omitempty"`
}

func (adaptorSig) DescribeSwap(d *engine.BidDetail) interface{} {
	s := &AdaptorSigSwap{}
	if d.XmrSwap != nil {
		s.ScriptLockTxID = d.XmrSwap.ScriptLockTxID
		s.ScriptLockSpendTxID = d.XmrSwap.ScriptLockSpendTxID
		s.ScriptLockRefundTxID = d.XmrSwap.ScriptLockRefundTxID
		s.NoScriptLockTxID = d.XmrSwap.NoScriptLockTxID
	}
	if d.XmrOffer != nil {
		s.LockTime1 = d.XmrOffer.LockTime1
		s.LockTime2 = d.XmrOffer.LockTime2
		s.AFeeRate = d.XmrOffer.AFeeRate
		s.BFeeRate = d.XmrOffer.BFeeRate
	}
	return s
}
