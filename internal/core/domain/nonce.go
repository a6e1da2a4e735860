package domain

// NonceSet is the MuSig2 nonce state of one signing slot of a deposit.
// Slots 0 and 1 belong to the move commit and reveal transactions, slot i+2
// to the operator take chain of kickoff i. The secret half never leaves the
// verifier process.
type NonceSet struct {
	DepositOutpoint Outpoint
	Index           uint32
	PubNonce        []byte
	SecNonce        []byte
	// AggNonce is nil until the peer aggregation round delivers it.
	AggNonce []byte
}

func (n NonceSet) Key() string {
	return nonceKey(n.DepositOutpoint, n.Index)
}
