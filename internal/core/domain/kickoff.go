package domain

// Kickoff is an operator-declared UTXO funding one claim attempt for a
// deposit. One batch is registered per deposit, validated before persisting.
type Kickoff struct {
	DepositOutpoint Outpoint
	Index           uint32
	Outpoint        Outpoint
	// Amount in satoshis, at least the minimum claim value.
	Amount uint64
}

func (k Kickoff) Key() string {
	return kickoffKey(k.DepositOutpoint, k.Index)
}
