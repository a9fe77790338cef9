package qvl

import "fmt"

// MalformedQuote mirrors internal/decode.MalformedQuote: the quote
// bytes could not be decoded at all.
type MalformedQuote struct {
	Reason string
}

func (e *MalformedQuote) Error() string { return fmt.Sprintf("malformed quote: %s", e.Reason) }

// UnsupportedQuote mirrors internal/decode.UnsupportedQuote: the input
// decoded structurally but falls outside the supported version/tee
// type/key type/cert data type matrix.
type UnsupportedQuote struct {
	Version      uint16
	TeeType      uint32
	AttKeyType   uint16
	CertDataType uint16
}

func (e *UnsupportedQuote) Error() string {
	return fmt.Sprintf("unsupported quote: version=%d tee_type=0x%x att_key_type=%d cert_data_type=%d",
		e.Version, e.TeeType, e.AttKeyType, e.CertDataType)
}

// ChainErrorKind enumerates certificate-chain failure modes, spec §7.
type ChainErrorKind string

const (
	ChainIncomplete    ChainErrorKind = "Incomplete"
	ChainUntrustedRoot ChainErrorKind = "UntrustedRoot"
	ChainExpired       ChainErrorKind = "Expired"
	ChainRevoked       ChainErrorKind = "Revoked"
	ChainBadSignature  ChainErrorKind = "BadSignature"
)

// ChainError is raised for any failure building or validating the PCK
// certificate chain.
type ChainError struct {
	Kind   ChainErrorKind
	Detail string
}

func (e *ChainError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("certificate chain error: %s", e.Kind)
	}
	return fmt.Sprintf("certificate chain error: %s: %s", e.Kind, e.Detail)
}

// SignatureStage identifies which of the quote's internal signatures
// failed to verify.
type SignatureStage string

const (
	StageAttestation SignatureStage = "attestation"
	StageQEReport    SignatureStage = "qe_report"
)

// SignatureMismatch is raised when an ECDSA verification over the
// signed region or the QE report fails.
type SignatureMismatch struct {
	Stage SignatureStage
}

func (e *SignatureMismatch) Error() string {
	return fmt.Sprintf("signature mismatch at stage %q", e.Stage)
}

// ReportDataBindingFailed is raised when the QE report's report_data
// does not bind the attestation public key and QE auth data (spec §3
// invariant, §4.D step 5).
type ReportDataBindingFailed struct{}

func (e *ReportDataBindingFailed) Error() string { return "report data binding failed" }

// QeIdentityRejected is raised when the QE report fails to match the
// QE Identity collateral.
type QeIdentityRejected struct {
	Detail string
}

func (e *QeIdentityRejected) Error() string {
	return fmt.Sprintf("qe identity rejected: %s", e.Detail)
}

// TcbRejected is raised when no TCB level matches the platform, when
// the matched level's status is not in the accepted set, or when the
// matched level is accepted but the TCB Info collateral is stale
// (spec §7: "TcbRejected{status, fresh}").
type TcbRejected struct {
	Fmspc  string
	Status string
	Fresh  bool
}

func (e *TcbRejected) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("no tcb level matches platform for fmspc %s", e.Fmspc)
	}
	if !e.Fresh {
		return fmt.Sprintf("tcb info stale for fmspc %s (matched status %q)", e.Fmspc, e.Status)
	}
	return fmt.Sprintf("tcb status %q rejected for fmspc %s", e.Status, e.Fmspc)
}

// CollateralUnavailable is raised when a Config collateral-fetch hook
// fails. It is the one error kind the core verification logic never
// raises on its own (spec §7) — it only ever comes back from a hook.
type CollateralUnavailable struct {
	Kind  string
	Cause error
}

func (e *CollateralUnavailable) Error() string {
	return fmt.Sprintf("collateral unavailable (%s): %v", e.Kind, e.Cause)
}

func (e *CollateralUnavailable) Unwrap() error { return e.Cause }
