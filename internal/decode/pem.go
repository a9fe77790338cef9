package decode

import "bytes"

var (
	pemBegin = []byte("-----BEGIN CERTIFICATE-----")
	pemEnd   = []byte("-----END CERTIFICATE-----")
)

// ExtractPEMCerts scans cert_data (a concatenation of PEM blocks, leaf
// first) for "-----BEGIN CERTIFICATE-----" ... "-----END CERTIFICATE-----"
// blocks and returns each, including its delimiters, in order.
func ExtractPEMCerts(certData []byte) [][]byte {
	var out [][]byte
	rest := certData
	for {
		start := bytes.Index(rest, pemBegin)
		if start < 0 {
			break
		}
		endRel := bytes.Index(rest[start:], pemEnd)
		if endRel < 0 {
			break
		}
		end := start + endRel + len(pemEnd)
		out = append(out, rest[start:end])
		rest = rest[end:]
	}
	return out
}
