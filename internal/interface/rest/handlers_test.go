package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bitvmbridge/bridged/internal/core/application"
	"github.com/bitvmbridge/bridged/internal/core/domain"
	"github.com/stretchr/testify/require"
)

// stubService scripts the application layer so handler behavior can be
// asserted in isolation.
type stubService struct {
	pubNonces [][]byte
	err       error
}

func (s *stubService) NewDeposit(
	_ context.Context, _ application.NewDepositRequest,
) ([][]byte, error) {
	return s.pubNonces, s.err
}

func (s *stubService) OperatorKickoffsGenerated(
	_ context.Context, _ application.KickoffsRequest,
) error {
	return s.err
}

func (s *stubService) BurnTxsSigned(
	_ context.Context, _ application.BurnTxsRequest,
) ([][]byte, error) {
	return nil, s.err
}

func (s *stubService) OperatorTakeTxsSigned(
	_ context.Context, _ application.TakeTxsRequest,
) (*application.MoveSigs, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &application.MoveSigs{
		MoveCommit: []byte{0x01}, MoveReveal: []byte{0x02},
	}, nil
}

func (s *stubService) NewWithdrawalDirect(
	_ context.Context, _ application.WithdrawalRequest,
) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte{0x03}, nil
}

func (s *stubService) DepositAddress(string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "bcrt1p...", nil
}

func post(
	t *testing.T, router http.Handler, path string, body interface{},
) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestNewDepositHandler(t *testing.T) {
	router := newRouter(&stubService{pubNonces: [][]byte{{0xaa}, {0xbb}}})

	rec := post(t, router, "/v1/deposits", newDepositRequest{
		DepositOutpoint: outpoint{Txid: "00", Vout: 0},
		RecoveryAddress: "bcrt1p...",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp newDepositResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, []string{"aa", "bb"}, resp.PubNonces)
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	router := newRouter(&stubService{})

	req := httptest.NewRequest("POST", "/v1/deposits", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidHexIsBadRequest(t *testing.T) {
	router := newRouter(&stubService{})

	rec := post(t, router, "/v1/kickoffs", kickoffsRequest{
		OperatorSigs: []string{"not-hex"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown deposit", domain.ErrDepositInfoNotFound, http.StatusNotFound},
		{"invalid deposit utxo", domain.ErrInvalidDepositUtxo, http.StatusBadRequest},
		{"invalid kickoff utxo", domain.ErrInvalidKickoffUtxo, http.StatusBadRequest},
		{"bad signature", domain.ErrSignatureVerificationFailed, http.StatusBadRequest},
		{"double claim", domain.ErrAlreadySpentWithdrawal, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(&stubService{err: tt.err})
			rec := post(t, router, "/v1/withdrawals", withdrawalRequest{Index: 1})
			require.Equal(t, tt.status, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.NotEmpty(t, resp.Error)
		})
	}
}

func TestDepositAddressHandler(t *testing.T) {
	router := newRouter(&stubService{})

	req := httptest.NewRequest("GET", "/v1/deposit-address?user_pubkey=aa", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest("GET", "/v1/deposit-address", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
