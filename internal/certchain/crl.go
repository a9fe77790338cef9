package certchain

import (
	"crypto/x509"
	"fmt"
)

// RevokedSerialsFromCRLs parses a set of DER-encoded CRLs and returns
// the union of their revoked serial numbers, keyed the same way
// Options.RevokedSerials expects. Full CRL signature verification is
// not required by spec (§4.C): only the revoked-serial list is used.
func RevokedSerialsFromCRLs(ders [][]byte) (map[string]bool, error) {
	out := make(map[string]bool)
	for i, der := range ders {
		crl, err := x509.ParseRevocationList(der)
		if err != nil {
			return nil, fmt.Errorf("certchain: parse CRL %d: %w", i, err)
		}
		for _, rc := range crl.RevokedCertificateEntries {
			out[serialKey(rc.SerialNumber)] = true
		}
	}
	return out, nil
}
