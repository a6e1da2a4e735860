package domain

// Signing roles identifying which protocol transaction a partial signature
// belongs to.
const (
	RoleOperatorTake = "operator_take"
	RoleMoveCommit   = "move_commit"
	RoleMoveReveal   = "move_reveal"
)

// PartialSig is one verifier's MuSig2 partial signature over a protocol
// transaction, cached so retried requests return the same value.
type PartialSig struct {
	DepositOutpoint Outpoint
	Role            string
	Index           uint32
	// Sig is the 32-byte partial signature scalar.
	Sig []byte
}

func (p PartialSig) Key() string {
	return partialSigKey(p.DepositOutpoint, p.Role, p.Index)
}
