package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"

	"github.com/r3e-network/qvl/pkg/qvl"
)

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message, details string) {
	respondJSON(w, status, apiError{Code: status, Message: message, Details: details})
}

// mapVerifyError turns a pkg/qvl error into an HTTP status and message.
// Collateral-fetch failures are a 502 (the problem is upstream, not in
// the request); the other pkg/qvl error types reflect a property of the
// quote itself and are a 422; any other error is a 500.
func mapVerifyError(err error) (int, string) {
	var unavailable *qvl.CollateralUnavailable
	if errors.As(err, &unavailable) {
		return http.StatusBadGateway, "collateral unavailable"
	}
	var malformed *qvl.MalformedQuote
	if errors.As(err, &malformed) {
		return http.StatusUnprocessableEntity, "malformed quote"
	}
	var unsupported *qvl.UnsupportedQuote
	if errors.As(err, &unsupported) {
		return http.StatusUnprocessableEntity, "unsupported quote"
	}
	var chainErr *qvl.ChainError
	if errors.As(err, &chainErr) {
		return http.StatusUnprocessableEntity, "certificate chain rejected"
	}
	var mismatch *qvl.SignatureMismatch
	if errors.As(err, &mismatch) {
		return http.StatusUnprocessableEntity, "signature verification failed"
	}
	var binding *qvl.ReportDataBindingFailed
	if errors.As(err, &binding) {
		return http.StatusUnprocessableEntity, "report data binding failed"
	}
	var qeRej *qvl.QeIdentityRejected
	if errors.As(err, &qeRej) {
		return http.StatusUnprocessableEntity, "QE identity rejected"
	}
	var tcbRej *qvl.TcbRejected
	if errors.As(err, &tcbRej) {
		return http.StatusUnprocessableEntity, "TCB level rejected"
	}
	return http.StatusInternalServerError, "internal error"
}

// handleHealthz handles GET /healthz
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// issueTokenRequest carries the caller's identity for the demo token
// endpoint. This server never authenticates callers against a real
// identity provider; it exists so the /v1/verify routes have something
// to require a bearer token against.
type issueTokenRequest struct {
	ClientID string `json:"client_id"`
}

// handleIssueToken handles POST /v1/token
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.ClientID == "" {
		respondError(w, http.StatusBadRequest, "client_id is required", "")
		return
	}

	_, token, err := s.tokenAuth.Encode(map[string]interface{}{
		"sub": req.ClientID,
		"jti": uuid.NewString(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to issue token", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// verifyRequest is the request body for /v1/verify/{sgx,tdx}. Quote and
// collateral fields are base64 so the whole request stays plain JSON.
type verifyRequest struct {
	Quote         string   `json:"quote"`
	PinnedRootPEM string   `json:"pinned_root_pem,omitempty"`
	CRLs          []string `json:"crls,omitempty"`
	Date          string   `json:"date,omitempty"`
}

type verifyResponse struct {
	Fmspc                string `json:"fmspc"`
	TcbStatus            string `json:"tcb_status"`
	TcbDate              string `json:"tcb_date"`
	TcbInfoFresh         bool   `json:"tcb_info_fresh"`
	MrEnclave            string `json:"mr_enclave,omitempty"`
	MrSigner             string `json:"mr_signer,omitempty"`
	MrTd                 string `json:"mr_td,omitempty"`
	ReportData           string `json:"report_data"`
	AttestationPublicKey string `json:"attestation_public_key"`
}

func hexOrEmpty(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return hex.EncodeToString(b)
}

// handleVerify handles POST /v1/verify/sgx and /v1/verify/tdx.
func (s *Server) handleVerify(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, claims, _ := jwtauth.FromContext(r.Context())

		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}

		raw, err := base64.StdEncoding.DecodeString(req.Quote)
		if err != nil {
			respondError(w, http.StatusBadRequest, "quote is not valid base64", err.Error())
			return
		}

		cfg := qvl.Config{
			FetchTcbInfo:    s.client.FetchTcbInfo,
			FetchQeIdentity: s.client.FetchQeIdentity,
		}
		if req.PinnedRootPEM != "" {
			pem, err := base64.StdEncoding.DecodeString(req.PinnedRootPEM)
			if err != nil {
				respondError(w, http.StatusBadRequest, "pinned_root_pem is not valid base64", err.Error())
				return
			}
			cfg.PinnedRootCerts = [][]byte{pem}
		}
		for _, c := range req.CRLs {
			der, err := base64.StdEncoding.DecodeString(c)
			if err != nil {
				respondError(w, http.StatusBadRequest, "crls entry is not valid base64", err.Error())
				return
			}
			cfg.CRLs = append(cfg.CRLs, der)
		}
		if req.Date != "" {
			t, err := time.Parse(time.RFC3339, req.Date)
			if err != nil {
				respondError(w, http.StatusBadRequest, "date must be RFC3339", err.Error())
				return
			}
			cfg.Date = t
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		var result *qvl.Result
		if kind == "sgx" {
			result, err = qvl.VerifySGX(ctx, raw, cfg)
		} else {
			result, err = qvl.VerifyTDX(ctx, raw, cfg)
		}

		sub, _ := claims["sub"].(string)
		if err != nil {
			s.metrics.verifyResult.WithLabelValues(kind, "rejected").Inc()
			s.log.Info().Str("kind", kind).Str("client", sub).Err(err).Msg("quote rejected")
			status, msg := mapVerifyError(err)
			respondError(w, status, msg, err.Error())
			return
		}

		s.metrics.verifyResult.WithLabelValues(kind, "accepted").Inc()
		s.log.Info().Str("kind", kind).Str("client", sub).Str("fmspc", result.Fmspc).Msg("quote verified")
		respondJSON(w, http.StatusOK, verifyResponse{
			Fmspc:                result.Fmspc,
			TcbStatus:            result.TcbStatus,
			TcbDate:              result.TcbDate.Format(time.RFC3339),
			TcbInfoFresh:         result.TcbInfoFresh,
			MrEnclave:            hexOrEmpty(result.MrEnclave),
			MrSigner:             hexOrEmpty(result.MrSigner),
			MrTd:                 hexOrEmpty(result.MrTd),
			ReportData:           base64.StdEncoding.EncodeToString(result.ReportData),
			AttestationPublicKey: base64.StdEncoding.EncodeToString(result.AttestationPublicKey),
		})
	}
}
