// Package qvl is the public entry point of the quote verification
// library: VerifySGX and VerifyTDX run the full decode, signature,
// certificate-chain, QE identity, and TCB pipeline (spec §4.G) over a
// raw DCAP ECDSA-P256 quote and either return a Result or one of the
// errors in errors.go. The package performs no logging of its own — a
// verification failure is reported purely through its returned error,
// never written to a log stream, so that embedding applications keep
// full control over observability.
package qvl

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/r3e-network/qvl/internal/certchain"
	"github.com/r3e-network/qvl/internal/collateral"
	"github.com/r3e-network/qvl/internal/decode"
	"github.com/r3e-network/qvl/internal/quotesig"
)

// VerifySGX runs the full verification pipeline over raw SGX (version
// 3) quote bytes.
func VerifySGX(ctx context.Context, raw []byte, cfg Config) (*Result, error) {
	q, err := decode.ParseSgxQuote(raw)
	if err != nil {
		return nil, translateDecodeErr(err)
	}
	return verify(ctx, q, cfg)
}

// VerifyTDX runs the full verification pipeline over raw TDX (version
// 4 or 5) quote bytes.
func VerifyTDX(ctx context.Context, raw []byte, cfg Config) (*Result, error) {
	q, err := decode.ParseTdxQuote(raw)
	if err != nil {
		return nil, translateDecodeErr(err)
	}
	return verify(ctx, q, cfg)
}

// Verify auto-detects SGX vs. TDX from the quote header and dispatches
// to VerifySGX or VerifyTDX.
func Verify(ctx context.Context, raw []byte, cfg Config) (*Result, error) {
	switch {
	case decode.IsSgxQuote(raw):
		return VerifySGX(ctx, raw, cfg)
	case decode.IsTdxQuote(raw):
		return VerifyTDX(ctx, raw, cfg)
	default:
		q, err := decode.Parse(raw)
		if err != nil {
			return nil, translateDecodeErr(err)
		}
		return verify(ctx, q, cfg)
	}
}

func verify(ctx context.Context, q *decode.Quote, cfg Config) (*Result, error) {
	// §4.D step 3: attestation-key signature over the signed region.
	signedRegion := decode.SignedRegion(q)
	if err := quotesig.VerifyAttestationSignature(signedRegion, q.Signature.EcdsaSignature, q.Signature.AttestationKey); err != nil {
		return nil, translateSigErr(err)
	}

	// §4.C: build and validate the PCK certificate chain from the
	// quote's embedded PEM set plus any caller-supplied extras.
	certData := q.Signature.CertData
	if len(cfg.ExtraCertData) > 0 {
		certData = append(append([]byte{}, certData...), cfg.ExtraCertData...)
	}
	pemBlocks := decode.ExtractPEMCerts(certData)

	revoked, err := certchain.RevokedSerialsFromCRLs(cfg.CRLs)
	if err != nil {
		return nil, &ChainError{Kind: ChainIncomplete, Detail: err.Error()}
	}

	var pinnedRoots []*certchain.Cert
	for i, pemBlock := range cfg.PinnedRootCerts {
		c, err := certchain.ParsePEM(pemBlock)
		if err != nil {
			return nil, &ChainError{Kind: ChainIncomplete, Detail: fmt.Sprintf("pinned root %d: %v", i, err)}
		}
		pinnedRoots = append(pinnedRoots, c)
	}

	chain, err := certchain.VerifyPckChain(pemBlocks, certchain.Options{
		Date:            cfg.evalTime(),
		PinnedRootCerts: pinnedRoots,
		RevokedSerials:  revoked,
	})
	if err != nil {
		return nil, translateChainErr(err)
	}

	// §4.D step 4: PCK leaf signature over the QE report.
	if err := quotesig.VerifyQEReportSignature(q.Signature.QeReport, q.Signature.QeReportSignature, chain.Leaf.EcdsaVerify); err != nil {
		return nil, translateSigErr(err)
	}

	qeReport, err := decode.ParseSgxReportBody(q.Signature.QeReport)
	if err != nil {
		return nil, translateDecodeErr(err)
	}

	// §4.D step 5: attestation key / QE auth data binding.
	if err := quotesig.VerifyReportDataBinding(qeReport.ReportData(), q.Signature.AttestationKey, q.Signature.QeAuthData); err != nil {
		return nil, &ReportDataBindingFailed{}
	}

	// §4.E: QE Identity evaluation.
	if cfg.FetchQeIdentity == nil {
		return nil, &CollateralUnavailable{Kind: "qe_identity", Cause: fmt.Errorf("no FetchQeIdentity hook configured")}
	}
	qeIdentityJSON, err := cfg.FetchQeIdentity(ctx)
	if err != nil {
		return nil, &CollateralUnavailable{Kind: "qe_identity", Cause: err}
	}
	var qeIdentity collateral.QeIdentity
	if err := json.Unmarshal(qeIdentityJSON, &qeIdentity); err != nil {
		return nil, &CollateralUnavailable{Kind: "qe_identity", Cause: fmt.Errorf("parse qe identity: %w", err)}
	}

	var attrs [16]byte
	copy(attrs[:], qeReport.Attributes())
	var misc [4]byte
	miscBytesLE(misc[:], qeReport.MiscSelect())
	var mrsigner [32]byte
	copy(mrsigner[:], qeReport.MrSigner())

	qeMeasurements := collateral.QeReportMeasurements{
		Attributes: attrs,
		MiscSelect: misc,
		MrSigner:   mrsigner,
		IsvProdID:  qeReport.IsvProdID(),
		IsvSvn:     qeReport.IsvSVN(),
	}
	if err := collateral.EvaluateQeIdentity(&qeIdentity, qeMeasurements, collateral.EvaluateQeIdentityOptions{
		Now: cfg.evalTime(),
	}); err != nil {
		if rej, ok := err.(*collateral.QeIdentityRejected); ok {
			return nil, &QeIdentityRejected{Detail: rej.Detail}
		}
		return nil, &QeIdentityRejected{Detail: err.Error()}
	}

	// §4.F: TCB evaluation. FMSPC/PCESVN/CPUSVN come from the PCK leaf
	// extension (SGX) or combine with the TD's own tee_tcb_svn (TDX).
	pckExt, err := certchain.ParsePCKExtensions(chain.Leaf)
	if err != nil {
		return nil, &ChainError{Kind: ChainIncomplete, Detail: err.Error()}
	}
	fmspcHex := hex.EncodeToString(pckExt.FMSPC[:])

	platform := collateral.PlatformTcb{
		CPUSvnComponents: pckExt.TCB.CPUSvnComponents,
		PceSvn:           pckExt.TCB.PceSvn,
	}

	result := &Result{
		ReportData:           make([]byte, 64),
		AttestationPublicKey: append([]byte{}, q.Signature.AttestationKey...),
	}

	switch q.Body.Kind {
	case decode.BodySgx:
		copy(result.ReportData, q.Body.Sgx.ReportData())
		result.MrEnclave = append([]byte{}, q.Body.Sgx.MrEnclave()...)
		result.MrSigner = append([]byte{}, q.Body.Sgx.MrSigner()...)
	case decode.BodyTdxV10, decode.BodyTdxV15:
		copy(result.ReportData, q.Body.Td.ReportData())
		result.MrTd = append([]byte{}, q.Body.Td.MrTd()...)
		platform.TdxTcbComponents = append([]byte{}, q.Body.Td.TeeTcbSvn()...)
	}

	if cfg.FetchTcbInfo == nil {
		return nil, &CollateralUnavailable{Kind: "tcb_info", Cause: fmt.Errorf("no FetchTcbInfo hook configured")}
	}
	tcbInfoJSON, err := cfg.FetchTcbInfo(ctx, fmspcHex)
	if err != nil {
		return nil, &CollateralUnavailable{Kind: "tcb_info", Cause: err}
	}
	var tcbInfo collateral.TcbInfo
	if err := json.Unmarshal(tcbInfoJSON, &tcbInfo); err != nil {
		return nil, &CollateralUnavailable{Kind: "tcb_info", Cause: fmt.Errorf("parse tcb info: %w", err)}
	}

	tcbRef, err := collateral.EvaluateTcb(&tcbInfo, platform, collateral.EvaluateTcbOptions{
		Now:              cfg.evalTime(),
		AcceptedStatuses: cfg.acceptedStatusSet(),
		AllowStale:       cfg.AllowStaleTcb,
	})
	if err != nil {
		if rej, ok := err.(*collateral.TcbRejected); ok {
			return nil, &TcbRejected{Fmspc: rej.Fmspc, Status: rej.Status, Fresh: rej.Fresh}
		}
		return nil, &TcbRejected{Fmspc: fmspcHex}
	}

	result.Fmspc = tcbRef.Fmspc
	result.TcbStatus = tcbRef.Status
	result.TcbDate = tcbRef.TcbDate
	result.TcbInfoFresh = tcbRef.TcbInfoFresh
	return result, nil
}

// miscBytesLE writes a little-endian uint32 into a 4-byte destination.
func miscBytesLE(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

func translateDecodeErr(err error) error {
	switch e := err.(type) {
	case *decode.MalformedQuote:
		return &MalformedQuote{Reason: e.Reason}
	case *decode.UnsupportedQuote:
		return &UnsupportedQuote{Version: e.Version, TeeType: e.TeeType, AttKeyType: e.AttKeyType, CertDataType: e.CertDataType}
	default:
		return &MalformedQuote{Reason: err.Error()}
	}
}

func translateSigErr(err error) error {
	if e, ok := err.(*quotesig.SignatureMismatch); ok {
		return &SignatureMismatch{Stage: SignatureStage(e.Stage)}
	}
	return &SignatureMismatch{Stage: StageAttestation}
}

func translateChainErr(err error) error {
	if e, ok := err.(*certchain.ChainError); ok {
		return &ChainError{Kind: ChainErrorKind(e.Kind), Detail: e.Detail}
	}
	return &ChainError{Kind: ChainIncomplete, Detail: err.Error()}
}

