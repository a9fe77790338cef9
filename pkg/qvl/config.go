package qvl

import (
	"context"
	"time"
)

// FetchTcbInfoFunc retrieves the raw signed TCB Info JSON envelope for
// the given lowercase-hex FMSPC. Implementations are responsible for
// verifying the envelope's own signature before returning it — the
// core verifier trusts whatever bytes this hook returns (spec §9 Open
// Question 3): internal/intelclient.Client.FetchTcbInfo is the
// reference implementation, wrapping network/parse failures in
// CollateralUnavailable.
type FetchTcbInfoFunc func(ctx context.Context, fmspc string) ([]byte, error)

// FetchQeIdentityFunc retrieves the raw signed QE Identity JSON
// envelope. See FetchTcbInfoFunc for the signature-verification
// contract.
type FetchQeIdentityFunc func(ctx context.Context) ([]byte, error)

// Config controls one VerifySGX/VerifyTDX call.
type Config struct {
	// Date is the evaluation time for certificate validity and
	// collateral freshness checks. Zero means time.Now().
	Date time.Time

	// PinnedRootCerts, when non-empty, are PEM-encoded root
	// certificates; the quote's chain root must SHA-256-match one of
	// them (spec §4.C). When empty, root pinning is skipped entirely —
	// callers that want Intel's SGX Root CA enforced must supply it
	// themselves (see internal/certchain.DefaultRootHint).
	PinnedRootCerts [][]byte

	// CRLs are DER-encoded certificate revocation lists checked against
	// every certificate in the built chain.
	CRLs [][]byte

	// ExtraCertData is appended to the quote's own embedded PEM chain
	// before chain building, for quotes whose cert_data omits an
	// intermediate the caller has out-of-band.
	ExtraCertData []byte

	// FetchTcbInfo and FetchQeIdentity are the only network-shaped
	// hooks the verifier calls. Both required; a nil hook is treated as
	// CollateralUnavailable when the corresponding evaluation step is
	// reached.
	FetchTcbInfo    FetchTcbInfoFunc
	FetchQeIdentity FetchQeIdentityFunc

	// AcceptedTcbStatuses overrides the default accepted set
	// ({UpToDate, ConfigurationNeeded}, spec §9 Open Question 2). Nil
	// uses the default.
	AcceptedTcbStatuses []string

	// AllowStaleTcb opts out of the default accept policy's freshness
	// requirement (spec §4.F: "fresh ∧ status ∈ {...}"): by default,
	// TCB Info collateral outside its issueDate/nextUpdate window fails
	// the call with TcbRejected even when the matched status is
	// accepted. QE Identity freshness has no such override (spec §4.E
	// lists it as the first, mandatory check).
	AllowStaleTcb bool
}

func (c Config) evalTime() time.Time {
	if c.Date.IsZero() {
		return time.Now()
	}
	return c.Date
}

func (c Config) acceptedStatusSet() map[string]bool {
	if c.AcceptedTcbStatuses == nil {
		return nil // nil signals "use collateral package's default"
	}
	out := make(map[string]bool, len(c.AcceptedTcbStatuses))
	for _, s := range c.AcceptedTcbStatuses {
		out[s] = true
	}
	return out
}
