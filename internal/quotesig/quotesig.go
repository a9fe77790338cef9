// Package quotesig implements the §4.D quote-signature pipeline: the
// attestation-key signature over the signed region, the PCK-leaf
// signature over the QE report, and the attestation-key/QE-auth-data
// binding into the QE report's report_data. All signatures inside a
// quote are raw 64-byte (r||s) ECDSA-P256-over-SHA256 values; this
// package is responsible for the raw<->DER conversion the certificate
// layer's DER-only verifier needs.
package quotesig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
)

// Stage identifies which of the two quote-internal signatures failed.
type Stage string

const (
	StageAttestation Stage = "attestation"
	StageQEReport     Stage = "qe_report"
)

// SignatureMismatch is raised when an ECDSA verification over the
// signed region or the QE report fails.
type SignatureMismatch struct {
	Stage Stage
}

func (e *SignatureMismatch) Error() string {
	return fmt.Sprintf("signature mismatch at stage %q", e.Stage)
}

// ErrReportDataBindingFailed is raised when the attestation-key/QE
// report_data binding (spec §3 invariant, §4.D step 5) does not hold.
var ErrReportDataBindingFailed = errors.New("report data binding failed")

// rawToPublicKey reconstructs an *ecdsa.PublicKey from the quote's raw
// 64-byte x||y attestation public key.
func rawToPublicKey(raw []byte) (*ecdsa.PublicKey, error) {
	if len(raw) != 64 {
		return nil, errors.New("quotesig: attestation public key must be 64 bytes")
	}
	x := new(big.Int).SetBytes(raw[0:32])
	y := new(big.Int).SetBytes(raw[32:64])
	curve := elliptic.P256()
	if !curve.IsOnCurve(x, y) {
		return nil, errors.New("quotesig: attestation public key is not on P-256")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// RawSigToASN1 converts a raw 64-byte (r||s) ECDSA-P256 signature to
// the ASN.1/DER form crypto/ecdsa.VerifyASN1 and crypto/x509 expect.
// Exported for internal/intelclient, which verifies Intel PCS's
// detached raw-hex envelope signatures the same way.
func RawSigToASN1(raw []byte) ([]byte, error) {
	return rawSigToASN1(raw)
}

func rawSigToASN1(raw []byte) ([]byte, error) {
	if len(raw) != 64 {
		return nil, errors.New("quotesig: signature must be 64 bytes")
	}
	r := new(big.Int).SetBytes(raw[0:32])
	s := new(big.Int).SetBytes(raw[32:64])
	return asn1.Marshal(struct {
		R, S *big.Int
	}{r, s})
}

// VerifyAttestationSignature checks ecdsaSignature (raw r||s) against
// attestationPubKey (raw x||y) over SHA256(signedRegion).
func VerifyAttestationSignature(signedRegion, ecdsaSignature, attestationPubKey []byte) error {
	pub, err := rawToPublicKey(attestationPubKey)
	if err != nil {
		return &SignatureMismatch{Stage: StageAttestation}
	}
	der, err := rawSigToASN1(ecdsaSignature)
	if err != nil {
		return &SignatureMismatch{Stage: StageAttestation}
	}
	digest := sha256.Sum256(signedRegion)
	if !ecdsa.VerifyASN1(pub, digest[:], der) {
		return &SignatureMismatch{Stage: StageAttestation}
	}
	return nil
}

// VerifyQEReportSignature checks qeReportSignature (raw r||s) against
// the PCK leaf's public key over SHA256(qeReport). leafEcdsaVerify is the
// PCK leaf certificate's DER-signature verifier (internal/certchain.Cert).
func VerifyQEReportSignature(qeReport, qeReportSignature []byte, leafEcdsaVerify func(message, derSignature []byte) bool) error {
	der, err := rawSigToASN1(qeReportSignature)
	if err != nil {
		return &SignatureMismatch{Stage: StageQEReport}
	}
	if !leafEcdsaVerify(qeReport, der) {
		return &SignatureMismatch{Stage: StageQEReport}
	}
	return nil
}

// VerifyReportDataBinding checks that qeReportData[0:32] ==
// SHA256(attestationPubKey || qeAuthData) and qeReportData[32:64] is
// all zero (spec §3 invariant).
func VerifyReportDataBinding(qeReportData, attestationPubKey, qeAuthData []byte) error {
	if len(qeReportData) != 64 {
		return ErrReportDataBindingFailed
	}
	h := sha256.New()
	h.Write(attestationPubKey)
	h.Write(qeAuthData)
	expected := h.Sum(nil)

	if subtle.ConstantTimeCompare(qeReportData[0:32], expected) != 1 {
		return ErrReportDataBindingFailed
	}
	for _, b := range qeReportData[32:64] {
		if b != 0 {
			return ErrReportDataBindingFailed
		}
	}
	return nil
}
