package qvl

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/binary"
	"encoding/pem"
	"math/big"
	"time"
)

var (
	oidSgxExtensions = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1}
	oidSgxTCB        = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 2}
	oidSgxPCEID      = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 3}
	oidSgxFMSPC      = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 4}
	oidSgxType       = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 5}
	oidSgxTCBPCESVN  = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 2, 17}
)

type testChain struct {
	leafKey  *ecdsa.PrivateKey
	leafPEM  []byte
	rootPEM  []byte
	interPEM []byte
}

func buildTestChain(fmspc [6]byte, cpusvn [16]byte, pcesvn uint16) *testChain {
	now := time.Now()
	notBefore := now.Add(-time.Hour)
	notAfter := now.Add(365 * 24 * time.Hour)

	rootKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	rootTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "Test SGX Root CA"},
		NotBefore: notBefore, NotAfter: notAfter, IsCA: true, BasicConstraintsValid: true,
		KeyUsage: x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	rootDER, _ := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	rootCert, _ := x509.ParseCertificate(rootDER)
	rootPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: rootDER})

	interKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	interTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2), Subject: pkix.Name{CommonName: "Test SGX PCK Platform CA"},
		NotBefore: notBefore, NotAfter: notAfter, IsCA: true, BasicConstraintsValid: true,
		KeyUsage: x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	interDER, _ := x509.CreateCertificate(rand.Reader, interTmpl, rootCert, &interKey.PublicKey, rootKey)
	interCert, _ := x509.ParseCertificate(interDER)
	interPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: interDER})

	leafKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(3), Subject: pkix.Name{CommonName: "Test SGX PCK Certificate"},
		NotBefore: notBefore, NotAfter: notAfter,
		ExtraExtensions: []pkix.Extension{sgxExtension(fmspc, cpusvn, pcesvn)},
	}
	leafDER, _ := x509.CreateCertificate(rand.Reader, leafTmpl, interCert, &leafKey.PublicKey, interKey)
	leafPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: leafDER})

	return &testChain{leafKey: leafKey, leafPEM: leafPEM, rootPEM: rootPEM, interPEM: interPEM}
}

func sgxExtension(fmspc [6]byte, cpusvn [16]byte, pcesvn uint16) pkix.Extension {
	marshalOctet := func(b []byte) []byte { v, _ := asn1.Marshal(b); return v }
	marshalInt := func(n int) []byte { v, _ := asn1.Marshal(n); return v }

	type rawElem struct {
		ID    asn1.ObjectIdentifier
		Value asn1.RawValue
	}
	mkElem := func(oid asn1.ObjectIdentifier, der []byte) rawElem {
		var rv asn1.RawValue
		asn1.Unmarshal(der, &rv)
		return rawElem{ID: oid, Value: rv}
	}

	var tcbElems []rawElem
	for i := 0; i < 16; i++ {
		oid := append(asn1.ObjectIdentifier{}, oidSgxTCB...)
		oid = append(oid, i+1)
		tcbElems = append(tcbElems, mkElem(oid, marshalInt(int(cpusvn[i]))))
	}
	tcbElems = append(tcbElems, mkElem(oidSgxTCBPCESVN, marshalInt(int(pcesvn))))
	tcbDER, _ := asn1.Marshal(tcbElems)

	elems := []rawElem{
		mkElem(oidSgxFMSPC, marshalOctet(fmspc[:])),
		mkElem(oidSgxPCEID, marshalOctet([]byte{0, 0})),
		mkElem(oidSgxType, marshalInt(0)),
		mkElem(oidSgxTCB, tcbDER),
	}
	fullDER, _ := asn1.Marshal(elems)
	return pkix.Extension{Id: oidSgxExtensions, Critical: false, Value: fullDER}
}

// buildSgxQuote assembles a fully self-consistent, synthetic DCAP SGX
// quote: the attestation key signs [header||body], the PCK leaf signs
// the QE report, and the QE report's report_data binds the attestation
// key and qe_auth_data — every invariant a real quote carries, using
// freshly generated test keys instead of an Intel-issued chain.
func buildSgxQuote(tc *testChain, reportData [64]byte, mrEnclave, mrSigner [32]byte) []byte {
	attestKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	attestPubRaw := make([]byte, 64)
	attestKey.PublicKey.X.FillBytes(attestPubRaw[0:32])
	attestKey.PublicKey.Y.FillBytes(attestPubRaw[32:64])

	header := make([]byte, 48)
	binary.LittleEndian.PutUint16(header[0:2], 3)  // version
	binary.LittleEndian.PutUint16(header[2:4], 2)  // att_key_type ECDSA-P256
	binary.LittleEndian.PutUint32(header[4:8], 0)  // tee_type SGX

	body := make([]byte, 384)
	copy(body[64:96], mrEnclave[:])
	copy(body[128:160], mrSigner[:])
	copy(body[320:384], reportData[:])

	signedRegion := append(append([]byte{}, header...), body...)
	digest := sha256.Sum256(signedRegion)
	r, s, _ := ecdsa.Sign(rand.Reader, attestKey, digest[:])
	attestSig := make([]byte, 64)
	r.FillBytes(attestSig[0:32])
	s.FillBytes(attestSig[32:64])

	authData := []byte("test-auth-data")
	h := sha256.New()
	h.Write(attestPubRaw)
	h.Write(authData)
	qeReportDataDigest := h.Sum(nil)

	qeReport := make([]byte, 384)
	copy(qeReport[320:352], qeReportDataDigest)

	leafDigest := sha256.Sum256(qeReport)
	lr, ls, _ := ecdsa.Sign(rand.Reader, tc.leafKey, leafDigest[:])
	qeReportSig := make([]byte, 64)
	lr.FillBytes(qeReportSig[0:32])
	ls.FillBytes(qeReportSig[32:64])

	certData := append(append([]byte{}, tc.leafPEM...), tc.interPEM...)
	certData = append(certData, tc.rootPEM...)

	var sigSection []byte
	sigSection = append(sigSection, attestSig...)
	sigSection = append(sigSection, attestPubRaw...)
	sigSection = append(sigSection, qeReport...)
	sigSection = append(sigSection, qeReportSig...)

	authLen := make([]byte, 2)
	binary.LittleEndian.PutUint16(authLen, uint16(len(authData)))
	sigSection = append(sigSection, authLen...)
	sigSection = append(sigSection, authData...)

	certTypeAndLen := make([]byte, 6)
	binary.LittleEndian.PutUint16(certTypeAndLen[0:2], 5) // PCK cert chain
	binary.LittleEndian.PutUint32(certTypeAndLen[2:6], uint32(len(certData)))
	sigSection = append(sigSection, certTypeAndLen...)
	sigSection = append(sigSection, certData...)

	sigLenField := make([]byte, 4)
	binary.LittleEndian.PutUint32(sigLenField, uint32(len(sigSection)))

	quote := append([]byte{}, header...)
	quote = append(quote, body...)
	quote = append(quote, sigLenField...)
	quote = append(quote, sigSection...)
	return quote
}
