package qvl

import "time"

// Result is the successful outcome of VerifySGX or VerifyTDX: every
// check in the pipeline passed, and the returned fields describe which
// platform and TCB level the quote was matched against.
type Result struct {
	// Fmspc is the platform's lowercase-hex FMSPC, from the PCK leaf
	// certificate's SGX extension.
	Fmspc string

	// TcbStatus is the tcbStatus of the matched TCB level (e.g.
	// "UpToDate", "ConfigurationNeeded").
	TcbStatus string

	// TcbDate is the matched TCB level's tcbDate.
	TcbDate time.Time

	// TcbInfoFresh is false when the TCB Info collateral was outside
	// its issueDate/nextUpdate window at the evaluation time (and
	// Config.AllowStaleTcb was set, which is the only way a stale
	// result reaches here instead of failing the call with
	// TcbRejected).
	TcbInfoFresh bool

	// MrEnclave/MrSigner/MrTd identify the measured code, populated for
	// SGX and TDX respectively (the other is left zero-length).
	MrEnclave []byte
	MrSigner  []byte
	MrTd      []byte

	// ReportData is the 64-byte report_data field the attesting
	// enclave/TD chose to bind into the quote.
	ReportData []byte

	// AttestationPublicKey is the quote's raw 64-byte (x||y)
	// attestation key, already confirmed to be bound into the QE
	// report's report_data (spec §3 invariant).
	AttestationPublicKey []byte
}
