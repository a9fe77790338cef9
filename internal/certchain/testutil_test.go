package certchain

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"math/big"
	"time"
)

type testChain struct {
	rootKey   *ecdsa.PrivateKey
	rootPEM   []byte
	rootCert  *x509.Certificate
	interKey  *ecdsa.PrivateKey
	interPEM  []byte
	interCert *x509.Certificate
	leafKey   *ecdsa.PrivateKey
	leafPEM   []byte
	leafCert  *x509.Certificate
}

func buildTestChain(fmspc [6]byte, pceid [2]byte, cpusvn [16]byte, pcesvn uint16) *testChain {
	now := time.Now()
	notBefore := now.Add(-time.Hour)
	notAfter := now.Add(365 * 24 * time.Hour)

	rootKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test SGX Root CA"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	rootDER, _ := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	rootCert, _ := x509.ParseCertificate(rootDER)
	rootPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: rootDER})

	interKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	interTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(2),
		Subject:               pkix.Name{CommonName: "Test SGX PCK Platform CA"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	interDER, _ := x509.CreateCertificate(rand.Reader, interTmpl, rootCert, &interKey.PublicKey, rootKey)
	interCert, _ := x509.ParseCertificate(interDER)
	interPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: interDER})

	leafKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	leafTmpl := &x509.Certificate{
		SerialNumber:    big.NewInt(3),
		Subject:         pkix.Name{CommonName: "Test SGX PCK Certificate"},
		NotBefore:       notBefore,
		NotAfter:        notAfter,
		ExtraExtensions: []pkix.Extension{sgxExtension(fmspc, pceid, cpusvn, pcesvn)},
	}
	leafDER, _ := x509.CreateCertificate(rand.Reader, leafTmpl, interCert, &leafKey.PublicKey, interKey)
	leafCert, _ := x509.ParseCertificate(leafDER)
	leafPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: leafDER})

	return &testChain{
		rootKey: rootKey, rootPEM: rootPEM, rootCert: rootCert,
		interKey: interKey, interPEM: interPEM, interCert: interCert,
		leafKey: leafKey, leafPEM: leafPEM, leafCert: leafCert,
	}
}

// sgxExtension builds a minimal Intel SGX extension tree carrying
// fmspc, pceid, and the tcb (cpusvn components + pcesvn), enough for
// ParsePCKExtensions to round-trip.
func sgxExtension(fmspc [6]byte, pceid [2]byte, cpusvn [16]byte, pcesvn uint16) pkix.Extension {
	marshalOctet := func(b []byte) []byte {
		v, _ := asn1.Marshal(b)
		return v
	}
	marshalInt := func(n int) []byte {
		v, _ := asn1.Marshal(n)
		return v
	}

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
		mkElem(oidSgxPCEID, marshalOctet(pceid[:])),
		mkElem(oidSgxType, marshalInt(0)),
		mkElem(oidSgxTCB, tcbDER),
	}
	fullDER, _ := asn1.Marshal(elems)

	return pkix.Extension{Id: oidSgxExtensions, Critical: false, Value: fullDER}
}
