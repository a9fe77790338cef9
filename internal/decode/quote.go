// Package decode turns raw Intel DCAP quote bytes into typed, immutable
// views. It performs no cryptographic verification of its own; it only
// rejects input that cannot be a well-formed quote of a supported
// version/variant.
package decode

import (
	"encoding/binary"
	"fmt"
)

// Wire-format constants, little-endian throughout.
const (
	HeaderLen      = 48
	SgxBodyLen     = 384
	TdBodyV10Len   = 584
	TdBodyV15Len   = 648
	BodyDescLen    = 6
	QeReportLen    = 384
	EcdsaSigLen    = 64
	AttestKeyLen   = 64
	SigLenFieldLen = 4

	// att_key_type values
	AttKeyTypeECDSAP256 = 2

	// tee_type values
	TeeTypeSGX = 0x00000000
	TeeTypeTDX = 0x00000081

	// cert_data_type values
	CertDataTypePCKCertChain = 5

	// body_type values carried in the v5 body descriptor
	BodyTypeSgxReport   = 1
	BodyTypeTdReport10  = 2
	BodyTypeTdReport15  = 3
)

// BodyKind tags which report variant a quote carries.
type BodyKind int

const (
	BodySgx BodyKind = iota
	BodyTdxV10
	BodyTdxV15
)

// MalformedQuote is returned whenever the input cannot be decoded at all.
type MalformedQuote struct {
	Reason string
}

func (e *MalformedQuote) Error() string {
	return fmt.Sprintf("malformed quote: %s", e.Reason)
}

// UnsupportedQuote is returned for structurally valid input outside the
// supported matrix (version, tee type, key type, cert data type).
type UnsupportedQuote struct {
	Version      uint16
	TeeType      uint32
	AttKeyType   uint16
	CertDataType uint16
}

func (e *UnsupportedQuote) Error() string {
	return fmt.Sprintf("unsupported quote: version=%d tee_type=0x%x att_key_type=%d cert_data_type=%d",
		e.Version, e.TeeType, e.AttKeyType, e.CertDataType)
}

// Header is the fixed 48-byte quote header, decoded in place.
type Header struct {
	raw []byte
}

func (h Header) Version() uint16    { return binary.LittleEndian.Uint16(h.raw[0:2]) }
func (h Header) AttKeyType() uint16 { return binary.LittleEndian.Uint16(h.raw[2:4]) }
func (h Header) TeeType() uint32    { return binary.LittleEndian.Uint32(h.raw[4:8]) }
func (h Header) QeSvn() uint16      { return binary.LittleEndian.Uint16(h.raw[8:10]) }
func (h Header) PceSvn() uint16     { return binary.LittleEndian.Uint16(h.raw[10:12]) }
func (h Header) QeVendorID() []byte { return h.raw[12:28] }
func (h Header) UserData() []byte  { return h.raw[28:48] }
func (h Header) Bytes() []byte     { return h.raw }

// SgxReport is a 384-byte view over an SGX enclave report body.
type SgxReport struct {
	raw []byte
}

// ParseSgxReportBody wraps a standalone 384-byte SGX report body — the
// quote's own Body.Sgx, or the QE report embedded in the signature
// section, which shares the identical layout.
func ParseSgxReportBody(raw []byte) (SgxReport, error) {
	if len(raw) != SgxBodyLen {
		return SgxReport{}, &MalformedQuote{Reason: "sgx report body must be 384 bytes"}
	}
	return SgxReport{raw: raw}, nil
}

func (r SgxReport) CPUSVN() []byte      { return r.raw[0:16] }
func (r SgxReport) MiscSelect() uint32  { return binary.LittleEndian.Uint32(r.raw[16:20]) }
func (r SgxReport) Attributes() []byte  { return r.raw[48:64] }
func (r SgxReport) MrEnclave() []byte   { return r.raw[64:96] }
func (r SgxReport) MrSigner() []byte    { return r.raw[128:160] }
func (r SgxReport) IsvProdID() uint16   { return binary.LittleEndian.Uint16(r.raw[256:258]) }
func (r SgxReport) IsvSVN() uint16      { return binary.LittleEndian.Uint16(r.raw[258:260]) }
func (r SgxReport) ReportData() []byte  { return r.raw[320:384] }
func (r SgxReport) Bytes() []byte       { return r.raw }

// TdReport is a view over a TD report body, either v1.0 (584 bytes) or
// v1.5 (648 bytes, the 64-byte v1.5 tail appended).
type TdReport struct {
	raw []byte
	v15 bool
}

func (r TdReport) IsV15() bool          { return r.v15 }
func (r TdReport) TeeTcbSvn() []byte    { return r.raw[0:16] }
func (r TdReport) MrSeam() []byte       { return r.raw[16:64] }
func (r TdReport) MrSeamSigner() []byte { return r.raw[64:112] }
func (r TdReport) SeamAttributes() []byte { return r.raw[112:120] }
func (r TdReport) TdAttributes() []byte   { return r.raw[120:128] }
func (r TdReport) Xfam() []byte           { return r.raw[128:136] }
func (r TdReport) MrTd() []byte           { return r.raw[136:184] }
func (r TdReport) MrConfigID() []byte     { return r.raw[184:232] }
func (r TdReport) MrOwner() []byte        { return r.raw[232:280] }
func (r TdReport) MrOwnerConfig() []byte  { return r.raw[280:328] }
func (r TdReport) Rtmr(i int) []byte {
	off := 328 + i*48
	return r.raw[off : off+48]
}
func (r TdReport) ReportData() []byte { return r.raw[520:584] }
func (r TdReport) Bytes() []byte      { return r.raw }

// TeeTcbSvn2 is only present on a v1.5 report; it returns nil otherwise.
func (r TdReport) TeeTcbSvn2() []byte {
	if !r.v15 {
		return nil
	}
	return r.raw[584:600]
}

// MrServiceTd is only present on a v1.5 report; it returns nil otherwise.
func (r TdReport) MrServiceTd() []byte {
	if !r.v15 {
		return nil
	}
	return r.raw[600:648]
}

// Body is the tagged variant over the three supported report layouts.
// Exactly one of Sgx/Td is populated, selected by Kind.
type Body struct {
	Kind BodyKind
	Sgx  SgxReport
	Td   TdReport
}

// Signature is the ECDSA-P256 attestation-key signature section.
type Signature struct {
	EcdsaSignature      []byte // 64 bytes, raw r||s
	AttestationKey      []byte // 64 bytes, raw x||y
	QeReport            []byte // 384 bytes
	QeReportSignature   []byte // 64 bytes, raw r||s, signed by the PCK leaf
	QeAuthData          []byte // variable
	CertDataType        uint16
	CertData            []byte // variable; PEM chain when CertDataType==5
	bodyDescriptorBytes []byte // only set for v5; the raw 6-byte body descriptor
}

// Quote is the fully decoded, immutable view of a parsed quote.
type Quote struct {
	Raw       []byte
	Header    Header
	Body      Body
	Signature Signature

	// bodyDescOffset/bodyDescLen describe the v5 body descriptor region
	// within Raw; the signed-region extractor reads bodyDescLen. Zero
	// when unused.
	bodyDescOffset int
	bodyDescLen    int
}

func readU16(b []byte, off int) uint16 { return binary.LittleEndian.Uint16(b[off : off+2]) }
func readU32(b []byte, off int) uint32 { return binary.LittleEndian.Uint32(b[off : off+4]) }

// decodeHeader validates and slices the fixed header.
func decodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderLen {
		return Header{}, &MalformedQuote{Reason: "truncated header"}
	}
	return Header{raw: data[0:HeaderLen]}, nil
}

// decodeSignature parses the variable-length signature section starting
// at off, which must point just past the 4-byte sig_data_len field.
// fixedLen is the sig_data_len value read from that field.
func decodeSignature(data []byte, off int, fixedLen uint32) (Signature, int, error) {
	end := off + int(fixedLen)
	if end > len(data) || end < off {
		return Signature{}, 0, &MalformedQuote{Reason: "signature section length exceeds input"}
	}
	sec := data[off:end]

	const fixedPrefix = EcdsaSigLen + AttestKeyLen + QeReportLen + EcdsaSigLen + 2
	if len(sec) < fixedPrefix {
		return Signature{}, 0, &MalformedQuote{Reason: "truncated signature section"}
	}

	p := 0
	sig := Signature{}
	sig.EcdsaSignature = sec[p : p+EcdsaSigLen]
	p += EcdsaSigLen
	sig.AttestationKey = sec[p : p+AttestKeyLen]
	p += AttestKeyLen
	sig.QeReport = sec[p : p+QeReportLen]
	p += QeReportLen
	sig.QeReportSignature = sec[p : p+EcdsaSigLen]
	p += EcdsaSigLen
	qeAuthLen := int(readU16(sec, p))
	p += 2

	if p+qeAuthLen+6 > len(sec) {
		return Signature{}, 0, &MalformedQuote{Reason: "truncated qe auth data / cert data header"}
	}
	sig.QeAuthData = sec[p : p+qeAuthLen]
	p += qeAuthLen

	sig.CertDataType = readU16(sec, p)
	p += 2
	certDataLen := int(readU32(sec, p))
	p += 4

	if p+certDataLen > len(sec) {
		return Signature{}, 0, &MalformedQuote{Reason: "cert data length exceeds signature section"}
	}
	sig.CertData = sec[p : p+certDataLen]
	p += certDataLen

	if p != len(sec) {
		return Signature{}, 0, &MalformedQuote{Reason: "declared inner lengths do not sum to signature section length"}
	}

	return sig, end, nil
}

func validateCommon(h Header, sig Signature) error {
	if h.AttKeyType() != AttKeyTypeECDSAP256 {
		return &UnsupportedQuote{Version: h.Version(), TeeType: h.TeeType(), AttKeyType: h.AttKeyType(), CertDataType: sig.CertDataType}
	}
	if sig.CertDataType != CertDataTypePCKCertChain {
		return &UnsupportedQuote{Version: h.Version(), TeeType: h.TeeType(), AttKeyType: h.AttKeyType(), CertDataType: sig.CertDataType}
	}
	return nil
}

// IsSgxQuote reports whether the raw bytes look like an SGX quote
// (version 3 and tee_type SGX) without fully decoding it.
func IsSgxQuote(data []byte) bool {
	h, err := decodeHeader(data)
	if err != nil {
		return false
	}
	return h.Version() == 3 && h.TeeType() == TeeTypeSGX
}

// IsTdxQuote reports whether the raw bytes look like a TDX quote
// (version 4 or 5 and tee_type TDX) without fully decoding it.
func IsTdxQuote(data []byte) bool {
	h, err := decodeHeader(data)
	if err != nil {
		return false
	}
	return (h.Version() == 4 || h.Version() == 5) && h.TeeType() == TeeTypeTDX
}

// ParseSgxQuote decodes an SGX (version 3) quote.
func ParseSgxQuote(data []byte) (*Quote, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Version() != 3 {
		return nil, &UnsupportedQuote{Version: h.Version(), TeeType: h.TeeType()}
	}
	if h.TeeType() != TeeTypeSGX {
		return nil, &UnsupportedQuote{Version: h.Version(), TeeType: h.TeeType()}
	}

	bodyEnd := HeaderLen + SgxBodyLen
	if len(data) < bodyEnd+SigLenFieldLen {
		return nil, &MalformedQuote{Reason: "truncated SGX body"}
	}
	body := Body{Kind: BodySgx, Sgx: SgxReport{raw: data[HeaderLen:bodyEnd]}}

	sigLen := readU32(data, bodyEnd)
	sig, end, err := decodeSignature(data, bodyEnd+SigLenFieldLen, sigLen)
	if err != nil {
		return nil, err
	}
	if err := validateCommon(h, sig); err != nil {
		return nil, err
	}
	if end != len(data) {
		return nil, &MalformedQuote{Reason: "trailing bytes after signature section"}
	}

	return &Quote{Raw: data, Header: h, Body: body, Signature: sig}, nil
}

// ParseTdxQuote decodes a TDX quote, version 4 (TD report v1.0, fixed
// 584-byte body) or version 5 (body preceded by a body descriptor,
// body_type selects v1.0 or v1.5 layout).
func ParseTdxQuote(data []byte) (*Quote, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Version() != 4 && h.Version() != 5 {
		return nil, &UnsupportedQuote{Version: h.Version(), TeeType: h.TeeType()}
	}
	if h.TeeType() != TeeTypeTDX {
		return nil, &UnsupportedQuote{Version: h.Version(), TeeType: h.TeeType()}
	}

	if h.Version() == 4 {
		bodyEnd := HeaderLen + TdBodyV10Len
		if len(data) < bodyEnd+SigLenFieldLen {
			return nil, &MalformedQuote{Reason: "truncated TD report v1.0 body"}
		}
		body := Body{Kind: BodyTdxV10, Td: TdReport{raw: data[HeaderLen:bodyEnd], v15: false}}

		sigLen := readU32(data, bodyEnd)
		sig, end, err := decodeSignature(data, bodyEnd+SigLenFieldLen, sigLen)
		if err != nil {
			return nil, err
		}
		if err := validateCommon(h, sig); err != nil {
			return nil, err
		}
		if end != len(data) {
			return nil, &MalformedQuote{Reason: "trailing bytes after signature section"}
		}
		return &Quote{Raw: data, Header: h, Body: body, Signature: sig}, nil
	}

	// Version 5: header | body descriptor | body | sig_len | signature.
	descOff := HeaderLen
	if len(data) < descOff+BodyDescLen {
		return nil, &MalformedQuote{Reason: "truncated body descriptor"}
	}
	bodyType := readU16(data, descOff)
	bodySize := int(readU32(data, descOff+2))

	bodyOff := descOff + BodyDescLen
	bodyEnd := bodyOff + bodySize
	if len(data) < bodyEnd+SigLenFieldLen {
		return nil, &MalformedQuote{Reason: "truncated TD report body (v5)"}
	}

	var body Body
	switch bodyType {
	case BodyTypeTdReport10:
		if bodySize != TdBodyV10Len {
			return nil, &MalformedQuote{Reason: "body descriptor size mismatch for TD report v1.0"}
		}
		body = Body{Kind: BodyTdxV10, Td: TdReport{raw: data[bodyOff:bodyEnd], v15: false}}
	case BodyTypeTdReport15:
		if bodySize != TdBodyV15Len {
			return nil, &MalformedQuote{Reason: "body descriptor size mismatch for TD report v1.5"}
		}
		body = Body{Kind: BodyTdxV15, Td: TdReport{raw: data[bodyOff:bodyEnd], v15: true}}
	default:
		return nil, &UnsupportedQuote{Version: h.Version(), TeeType: h.TeeType()}
	}

	sigLen := readU32(data, bodyEnd)
	sig, end, err := decodeSignature(data, bodyEnd+SigLenFieldLen, sigLen)
	if err != nil {
		return nil, err
	}
	sig.bodyDescriptorBytes = data[descOff:bodyOff]
	if err := validateCommon(h, sig); err != nil {
		return nil, err
	}
	if end != len(data) {
		return nil, &MalformedQuote{Reason: "trailing bytes after signature section"}
	}

	return &Quote{
		Raw: data, Header: h, Body: body, Signature: sig,
		bodyDescOffset: descOff, bodyDescLen: BodyDescLen,
	}, nil
}

// Parse auto-detects SGX vs. TDX from the header and dispatches.
func Parse(data []byte) (*Quote, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	switch {
	case h.Version() == 3 && h.TeeType() == TeeTypeSGX:
		return ParseSgxQuote(data)
	case (h.Version() == 4 || h.Version() == 5) && h.TeeType() == TeeTypeTDX:
		return ParseTdxQuote(data)
	default:
		return nil, &UnsupportedQuote{Version: h.Version(), TeeType: h.TeeType()}
	}
}
