package quotesig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func genKeyRaw(t *testing.T) (*ecdsa.PrivateKey, []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	raw := make([]byte, 64)
	xb := key.PublicKey.X.FillBytes(make([]byte, 32))
	yb := key.PublicKey.Y.FillBytes(make([]byte, 32))
	copy(raw[0:32], xb)
	copy(raw[32:64], yb)
	return key, raw
}

func signRaw(t *testing.T, key *ecdsa.PrivateKey, message []byte) []byte {
	t.Helper()
	digest := sha256.Sum256(message)
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	require.NoError(t, err)
	sig := make([]byte, 64)
	r.FillBytes(sig[0:32])
	s.FillBytes(sig[32:64])
	return sig
}

func TestVerifyAttestationSignature(t *testing.T) {
	key, pubRaw := genKeyRaw(t)
	region := []byte("signed region bytes")
	sig := signRaw(t, key, region)

	require.NoError(t, VerifyAttestationSignature(region, sig, pubRaw))

	mutated := append([]byte{}, region...)
	mutated[0] ^= 0xFF
	err := VerifyAttestationSignature(mutated, sig, pubRaw)
	require.Error(t, err)
	var mismatch *SignatureMismatch
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, StageAttestation, mismatch.Stage)
}

func TestVerifyQEReportSignature(t *testing.T) {
	key, _ := genKeyRaw(t)
	report := make([]byte, 384)
	sig := signRaw(t, key, report)

	leafVerify := func(message, der []byte) bool {
		digest := sha256.Sum256(message)
		return ecdsa.VerifyASN1(&key.PublicKey, digest[:], der)
	}

	require.NoError(t, VerifyQEReportSignature(report, sig, leafVerify))

	badVerify := func(message, der []byte) bool { return false }
	err := VerifyQEReportSignature(report, sig, badVerify)
	require.Error(t, err)
	var mismatch *SignatureMismatch
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, StageQEReport, mismatch.Stage)
}

func TestVerifyReportDataBinding(t *testing.T) {
	_, pubRaw := genKeyRaw(t)
	authData := []byte("auth-data")

	h := sha256.New()
	h.Write(pubRaw)
	h.Write(authData)
	digest := h.Sum(nil)

	reportData := make([]byte, 64)
	copy(reportData[0:32], digest)

	require.NoError(t, VerifyReportDataBinding(reportData, pubRaw, authData))

	// Property 3: flipping any bit of the pub key or auth data breaks it.
	flippedPub := append([]byte{}, pubRaw...)
	flippedPub[0] ^= 0xFF
	require.ErrorIs(t, VerifyReportDataBinding(reportData, flippedPub, authData), ErrReportDataBindingFailed)

	flippedAuth := append([]byte{}, authData...)
	flippedAuth[0] ^= 0xFF
	require.ErrorIs(t, VerifyReportDataBinding(reportData, pubRaw, flippedAuth), ErrReportDataBindingFailed)

	// Scenario S7: zeroed report_data[0:32].
	zeroed := make([]byte, 64)
	copy(zeroed, reportData)
	for i := 0; i < 32; i++ {
		zeroed[i] = 0
	}
	require.ErrorIs(t, VerifyReportDataBinding(zeroed, pubRaw, authData), ErrReportDataBindingFailed)
}
