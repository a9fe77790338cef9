// Package certchain provides a narrow X.509 façade over the standard
// library: PEM/DER parsing, PCK custom-extension decoding, chain
// building from an unordered PEM set, and the temporal/CRL/pinning
// checks the quote verifier's pipeline needs. It never verifies a
// quote-internal (raw r||s) signature; that is internal/quotesig's job.
package certchain

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// Cert wraps a parsed X.509 certificate, restricted to ECDSA-P256 keys.
type Cert struct {
	raw  *x509.Certificate
	pub  *ecdsa.PublicKey
}

// ParsePEM parses a single PEM-encoded certificate block.
func ParsePEM(block []byte) (*Cert, error) {
	p, _ := pem.Decode(block)
	if p == nil {
		return nil, errors.New("certchain: no PEM block found")
	}
	return ParseDER(p.Bytes)
}

// ParseDER parses a single DER-encoded certificate.
func ParseDER(der []byte) (*Cert, error) {
	c, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("certchain: parse certificate: %w", err)
	}
	pub, ok := c.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("certchain: certificate public key is not ECDSA")
	}
	if pub.Curve != elliptic.P256() {
		return nil, errors.New("certchain: certificate public key is not on secp256r1")
	}
	return &Cert{raw: c, pub: pub}, nil
}

func (c *Cert) Subject() string            { return c.raw.Subject.String() }
func (c *Cert) Issuer() string             { return c.raw.Issuer.String() }
func (c *Cert) SerialNumber() *big.Int     { return c.raw.SerialNumber }
func (c *Cert) NotBefore() time.Time       { return c.raw.NotBefore }
func (c *Cert) NotAfter() time.Time        { return c.raw.NotAfter }
func (c *Cert) PublicKey() *ecdsa.PublicKey { return c.pub }
func (c *Cert) Raw() []byte                { return c.raw.Raw }
func (c *Cert) X509() *x509.Certificate    { return c.raw }

func (c *Cert) isSelfSigned() bool {
	return bytesEqual(c.raw.RawSubject, c.raw.RawIssuer)
}

// subjectDER/issuerDER expose the raw DER-encoded Name fields for exact
// (non-rendered) issuer/subject matching during chain building.
func (c *Cert) subjectDER() []byte { return c.raw.RawSubject }
func (c *Cert) issuerDER() []byte  { return c.raw.RawIssuer }

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// VerifySignedBy reports whether c's TBS-signature validates under
// issuer's ECDSA public key.
func (c *Cert) VerifySignedBy(issuer *Cert) error {
	return c.raw.CheckSignatureFrom(issuer.raw)
}

// EcdsaVerify checks a DER-encoded ECDSA signature over message under
// this certificate's public key, hashing message with SHA-256.
func (c *Cert) EcdsaVerify(message []byte, derSignature []byte) bool {
	digest := sha256.Sum256(message)
	return ecdsa.VerifyASN1(c.pub, digest[:], derSignature)
}

// ComputeCertSha256Hex returns the lowercase hex SHA-256 digest of the
// certificate's DER encoding, used for root pinning.
func ComputeCertSha256Hex(c *Cert) string {
	h := sha256.Sum256(c.Raw())
	return hex.EncodeToString(h[:])
}
