package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Outpoint references a transaction output as txid:vout.
type Outpoint struct {
	Txid string
	VOut uint32
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.Txid, o.VOut)
}

func OutpointFromString(s string) (Outpoint, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 64 {
		return Outpoint{}, fmt.Errorf("invalid outpoint %q", s)
	}
	vout, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Outpoint{}, fmt.Errorf("invalid outpoint vout: %s", err)
	}
	return Outpoint{Txid: parts[0], VOut: uint32(vout)}, nil
}
