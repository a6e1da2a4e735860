package rest

import (
	"encoding/hex"
	"fmt"

	"github.com/bitvmbridge/bridged/internal/core/application"
	"github.com/bitvmbridge/bridged/internal/core/domain"
)

type outpoint struct {
	Txid string `json:"txid"`
	Vout uint32 `json:"vout"`
}

func (o outpoint) toDomain() domain.Outpoint {
	return domain.Outpoint{Txid: o.Txid, VOut: o.Vout}
}

type newDepositRequest struct {
	DepositOutpoint outpoint `json:"deposit_outpoint"`
	RecoveryAddress string   `json:"recovery_address"`
	DestinationID   string   `json:"destination_id"`
}

type newDepositResponse struct {
	PubNonces []string `json:"pub_nonces"`
}

type kickoffsRequest struct {
	DepositOutpoint  outpoint   `json:"deposit_outpoint"`
	KickoffOutpoints []outpoint `json:"kickoff_outpoints"`
	OperatorSigs     []string   `json:"operator_sigs"`
	AggNonces        []string   `json:"agg_nonces"`
}

type burnTxsRequest struct {
	DepositOutpoint outpoint `json:"deposit_outpoint"`
	BurnSigs        []string `json:"burn_sigs"`
}

type partialSigsResponse struct {
	PartialSigs []string `json:"partial_sigs"`
}

type takeTxsRequest struct {
	DepositOutpoint  outpoint `json:"deposit_outpoint"`
	OperatorTakeSigs []string `json:"operator_take_sigs"`
}

type moveSigsResponse struct {
	MoveCommitSig string `json:"move_commit_sig"`
	MoveRevealSig string `json:"move_reveal_sig"`
}

type withdrawalRequest struct {
	Index              uint32 `json:"index"`
	BridgeFundTxid     string `json:"bridge_fund_txid"`
	DestinationAddress string `json:"destination_address"`
}

type withdrawalResponse struct {
	Sig string `json:"sig"`
}

type depositAddressResponse struct {
	Address string `json:"address"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func decodeHexList(field string, values []string) ([][]byte, error) {
	out := make([][]byte, 0, len(values))
	for i, value := range values {
		buf, err := hex.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s at index %d: %s", field, i, err)
		}
		out = append(out, buf)
	}
	return out, nil
}

func encodeHexList(values [][]byte) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, hex.EncodeToString(value))
	}
	return out
}

func outpointsToDomain(outpoints []outpoint) []domain.Outpoint {
	out := make([]domain.Outpoint, 0, len(outpoints))
	for _, o := range outpoints {
		out = append(out, o.toDomain())
	}
	return out
}

func (r kickoffsRequest) toDomain() (application.KickoffsRequest, error) {
	sigs, err := decodeHexList("operator signature", r.OperatorSigs)
	if err != nil {
		return application.KickoffsRequest{}, err
	}
	nonces, err := decodeHexList("aggregated nonce", r.AggNonces)
	if err != nil {
		return application.KickoffsRequest{}, err
	}
	return application.KickoffsRequest{
		DepositOutpoint:  r.DepositOutpoint.toDomain(),
		KickoffOutpoints: outpointsToDomain(r.KickoffOutpoints),
		OperatorSigs:     sigs,
		AggNonces:        nonces,
	}, nil
}
