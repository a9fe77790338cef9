package decode

import "encoding/binary"

// buildSgxQuote assembles a syntactically valid, arbitrary-content SGX
// (version 3) quote for decoder tests. It does not produce a
// cryptographically valid signature; decode tests only exercise parsing.
func buildSgxQuote(certData []byte) []byte {
	header := make([]byte, HeaderLen)
	binary.LittleEndian.PutUint16(header[0:2], 3)
	binary.LittleEndian.PutUint16(header[2:4], AttKeyTypeECDSAP256)
	binary.LittleEndian.PutUint32(header[4:8], TeeTypeSGX)

	body := make([]byte, SgxBodyLen)
	for i := range body {
		body[i] = byte(i)
	}

	sigSection, sigLen := buildSigSection(certData)

	buf := make([]byte, 0, len(header)+len(body)+4+len(sigSection))
	buf = append(buf, header...)
	buf = append(buf, body...)
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, sigLen)
	buf = append(buf, lenBuf...)
	buf = append(buf, sigSection...)
	return buf
}

// buildTdxQuote assembles a syntactically valid TDX quote, version 4
// (v1.0 report) or version 5 (v1.5 report via body descriptor).
func buildTdxQuote(version uint16, certData []byte) []byte {
	header := make([]byte, HeaderLen)
	binary.LittleEndian.PutUint16(header[0:2], version)
	binary.LittleEndian.PutUint16(header[2:4], AttKeyTypeECDSAP256)
	binary.LittleEndian.PutUint32(header[4:8], TeeTypeTDX)

	sigSection, sigLen := buildSigSection(certData)
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, sigLen)

	buf := make([]byte, 0)
	buf = append(buf, header...)

	if version == 4 {
		body := make([]byte, TdBodyV10Len)
		for i := range body {
			body[i] = byte(i)
		}
		buf = append(buf, body...)
	} else {
		desc := make([]byte, BodyDescLen)
		binary.LittleEndian.PutUint16(desc[0:2], BodyTypeTdReport15)
		binary.LittleEndian.PutUint32(desc[2:6], TdBodyV15Len)
		buf = append(buf, desc...)

		body := make([]byte, TdBodyV15Len)
		for i := range body {
			body[i] = byte(i)
		}
		buf = append(buf, body...)
	}

	buf = append(buf, lenBuf...)
	buf = append(buf, sigSection...)
	return buf
}

// buildTdxQuoteV5WithV10Body assembles a version-5 TDX quote whose body
// descriptor selects the v1.0 (584-byte) TD report layout, a
// combination outside the spec's enumerated v4->v1.0 / v5->v1.5 matrix
// but one the decoder still has to size its signed region correctly
// for.
func buildTdxQuoteV5WithV10Body(certData []byte) []byte {
	header := make([]byte, HeaderLen)
	binary.LittleEndian.PutUint16(header[0:2], 5)
	binary.LittleEndian.PutUint16(header[2:4], AttKeyTypeECDSAP256)
	binary.LittleEndian.PutUint32(header[4:8], TeeTypeTDX)

	desc := make([]byte, BodyDescLen)
	binary.LittleEndian.PutUint16(desc[0:2], BodyTypeTdReport10)
	binary.LittleEndian.PutUint32(desc[2:6], TdBodyV10Len)

	body := make([]byte, TdBodyV10Len)
	for i := range body {
		body[i] = byte(i)
	}

	sigSection, sigLen := buildSigSection(certData)
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, sigLen)

	buf := make([]byte, 0)
	buf = append(buf, header...)
	buf = append(buf, desc...)
	buf = append(buf, body...)
	buf = append(buf, lenBuf...)
	buf = append(buf, sigSection...)
	return buf
}

func buildSigSection(certData []byte) ([]byte, uint32) {
	ecdsaSig := make([]byte, EcdsaSigLen)
	attestKey := make([]byte, AttestKeyLen)
	qeReport := make([]byte, QeReportLen)
	qeReportSig := make([]byte, EcdsaSigLen)
	qeAuthData := []byte("auth")

	sec := make([]byte, 0)
	sec = append(sec, ecdsaSig...)
	sec = append(sec, attestKey...)
	sec = append(sec, qeReport...)
	sec = append(sec, qeReportSig...)

	qeAuthLenBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(qeAuthLenBuf, uint16(len(qeAuthData)))
	sec = append(sec, qeAuthLenBuf...)
	sec = append(sec, qeAuthData...)

	certTypeBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(certTypeBuf, CertDataTypePCKCertChain)
	sec = append(sec, certTypeBuf...)

	certLenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(certLenBuf, uint32(len(certData)))
	sec = append(sec, certLenBuf...)
	sec = append(sec, certData...)

	return sec, uint32(len(sec))
}
