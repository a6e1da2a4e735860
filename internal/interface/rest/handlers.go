package rest

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/bitvmbridge/bridged/internal/core/application"
	"github.com/bitvmbridge/bridged/internal/core/domain"
	log "github.com/sirupsen/logrus"
)

type handler struct {
	svc application.Service
}

func newRouter(svc application.Service) *http.ServeMux {
	h := &handler{svc: svc}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/deposits", h.newDeposit)
	mux.HandleFunc("POST /v1/kickoffs", h.operatorKickoffs)
	mux.HandleFunc("POST /v1/burn-txs", h.burnTxsSigned)
	mux.HandleFunc("POST /v1/operator-take-txs", h.operatorTakeTxsSigned)
	mux.HandleFunc("POST /v1/withdrawals", h.newWithdrawal)
	mux.HandleFunc("GET /v1/deposit-address", h.depositAddress)
	return mux
}

func (h *handler) newDeposit(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	var req newDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, reqID, err)
		return
	}

	pubNonces, err := h.svc.NewDeposit(r.Context(), application.NewDepositRequest{
		DepositOutpoint: req.DepositOutpoint.toDomain(),
		RecoveryAddress: req.RecoveryAddress,
		DestinationID:   req.DestinationID,
	})
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, newDepositResponse{
		PubNonces: encodeHexList(pubNonces),
	})
}

func (h *handler) operatorKickoffs(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	var req kickoffsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, reqID, err)
		return
	}
	domainReq, err := req.toDomain()
	if err != nil {
		writeBadRequest(w, reqID, err)
		return
	}

	if err := h.svc.OperatorKickoffsGenerated(r.Context(), domainReq); err != nil {
		writeError(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *handler) burnTxsSigned(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	var req burnTxsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, reqID, err)
		return
	}
	burnSigs, err := decodeHexList("burn signature", req.BurnSigs)
	if err != nil {
		writeBadRequest(w, reqID, err)
		return
	}

	sigs, err := h.svc.BurnTxsSigned(r.Context(), application.BurnTxsRequest{
		DepositOutpoint: req.DepositOutpoint.toDomain(),
		BurnSigs:        burnSigs,
	})
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, partialSigsResponse{
		PartialSigs: encodeHexList(sigs),
	})
}

func (h *handler) operatorTakeTxsSigned(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	var req takeTxsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, reqID, err)
		return
	}
	takeSigs, err := decodeHexList("operator take signature", req.OperatorTakeSigs)
	if err != nil {
		writeBadRequest(w, reqID, err)
		return
	}

	moveSigs, err := h.svc.OperatorTakeTxsSigned(r.Context(), application.TakeTxsRequest{
		DepositOutpoint:  req.DepositOutpoint.toDomain(),
		OperatorTakeSigs: takeSigs,
	})
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, moveSigsResponse{
		MoveCommitSig: hex.EncodeToString(moveSigs.MoveCommit),
		MoveRevealSig: hex.EncodeToString(moveSigs.MoveReveal),
	})
}

func (h *handler) newWithdrawal(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	var req withdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, reqID, err)
		return
	}

	sig, err := h.svc.NewWithdrawalDirect(r.Context(), application.WithdrawalRequest{
		Index:              req.Index,
		BridgeFundTxid:     req.BridgeFundTxid,
		DestinationAddress: req.DestinationAddress,
	})
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawalResponse{Sig: hex.EncodeToString(sig)})
}

func (h *handler) depositAddress(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	userPk := r.URL.Query().Get("user_pubkey")
	if userPk == "" {
		writeBadRequest(w, reqID, errors.New("missing user_pubkey query param"))
		return
	}

	addr, err := h.svc.DepositAddress(userPk)
	if err != nil {
		writeBadRequest(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, depositAddressResponse{Address: addr})
}

func requestID(r *http.Request) string {
	id := uuid.NewString()
	log.WithField("request_id", id).Debugf("%s %s", r.Method, r.URL.Path)
	return id
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nolint:all
	json.NewEncoder(w).Encode(body)
}

func writeBadRequest(w http.ResponseWriter, reqID string, err error) {
	log.WithField("request_id", reqID).WithError(err).Warn("rejected request")
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, reqID string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrDepositInfoNotFound),
		errors.Is(err, domain.ErrKickoffOutpointsNotFound),
		errors.Is(err, domain.ErrNoncesNotFound),
		errors.Is(err, domain.ErrPublicKeyNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidDepositUtxo),
		errors.Is(err, domain.ErrInvalidKickoffUtxo),
		errors.Is(err, domain.ErrAggNonceMissing),
		errors.Is(err, domain.ErrSignatureVerificationFailed):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadySpentWithdrawal):
		status = http.StatusConflict
	}

	entry := log.WithField("request_id", reqID).WithError(err)
	if status == http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
