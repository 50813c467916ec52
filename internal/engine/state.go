package engine

import "fmt"

// BidState is the engine's internal bid state code.
type BidState int

// Bid states.
const (
	BidSent BidState = iota + 1
	BidReceiving
	BidReceived
	BidReceivingAccept
	BidAccepted
	SwapInitiated
	SwapParticipating
	SwapCompleted
	SwapTimedOut
	BidAbandoned
	BidError
	BidStalledForTest
	BidRejected
	BidStateUnknown
	XmrSwapMsgScriptLockTxSigs
	XmrSwapMsgScriptLockSpendTx
	XmrSwapScriptCoinLocked
	XmrSwapHaveScriptCoinSpendTx
	XmrSwapNoScriptCoinLocked
	XmrSwapSecretShared
	XmrSwapScriptTxRedeemed
	XmrSwapNoScriptTxRedeemed
	XmrSwapNoScriptTxRecovered
	XmrSwapFailedRefunded
	XmrSwapFailedSwiped
	XmrSwapFailed
)

var bidStateLabels = map[BidState]string{
	BidSent:                      "Sent",
	BidReceiving:                 "Receiving",
	BidReceived:                  "Received",
	BidReceivingAccept:           "Receiving accept",
	BidAccepted:                  "Accepted",
	SwapInitiated:                "Initiated",
	SwapParticipating:            "Participating",
	SwapCompleted:                "Completed",
	SwapTimedOut:                 "Timed-out",
	BidAbandoned:                 "Abandoned",
	BidError:                     "Error",
	BidStalledForTest:            "Stalled (debug)",
	BidRejected:                  "Rejected",
	BidStateUnknown:              "Unknown bid state",
	XmrSwapMsgScriptLockTxSigs:   "Exchanged script lock tx sigs msg",
	XmrSwapMsgScriptLockSpendTx:  "Exchanged script lock spend tx msg",
	XmrSwapScriptCoinLocked:      "Script coin locked",
	XmrSwapHaveScriptCoinSpendTx: "Script coin spend tx valid",
	XmrSwapNoScriptCoinLocked:    "Scriptless coin locked",
	XmrSwapSecretShared:          "Script coin lock released",
	XmrSwapScriptTxRedeemed:      "Script tx redeemed",
	XmrSwapNoScriptTxRedeemed:    "Scriptless tx redeemed",
	XmrSwapNoScriptTxRecovered:   "Scriptless tx recovered",
	XmrSwapFailedRefunded:        "Failed, refunded",
	XmrSwapFailedSwiped:          "Failed, swiped",
	XmrSwapFailed:                "Failed",
}

// String returns the human-readable label for the state.
func (s BidState) String() string {
	if label, ok := bidStateLabels[s]; ok {
		return label
	}
	return fmt.Sprintf("Unknown state %d", int(s))
}

// IsActive reports whether a swap in this state is still in progress.
func (s BidState) IsActive() bool {
	switch s {
	case BidAccepted, SwapInitiated, SwapParticipating,
		XmrSwapMsgScriptLockTxSigs, XmrSwapMsgScriptLockSpendTx,
		XmrSwapScriptCoinLocked, XmrSwapHaveScriptCoinSpendTx,
		XmrSwapNoScriptCoinLocked, XmrSwapSecretShared,
		XmrSwapScriptTxRedeemed:
		return true
	}
	return false
}
