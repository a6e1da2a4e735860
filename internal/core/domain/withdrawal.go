package domain

// WithdrawalSig is this verifier's signature over one withdrawal payout.
// An index is bound to exactly one bridge fund txid; a second request with a
// different txid is a double claim.
type WithdrawalSig struct {
	Index              uint32
	BridgeFundTxid     string
	DestinationAddress string
	// Sig is the 64-byte BIP-340 signature over the withdrawal sighash.
	Sig []byte
}
