package certchain

import (
	"encoding/asn1"
	"errors"
	"fmt"
)

// Intel SGX PCK certificate extension OIDs (id-sgx-extensions and its
// children), per Intel's SGX PCK Certificate specification.
var (
	oidSgxExtensions   = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1}
	oidSgxPPID         = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 1}
	oidSgxTCB          = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 2}
	oidSgxPCEID        = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 3}
	oidSgxFMSPC        = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 4}
	oidSgxType         = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 5}
	oidSgxPlatInstID   = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 6}
	oidSgxConfig       = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 7}
	oidSgxTCBPCESVN    = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 2, 17}
	oidSgxTCBCPUSVN    = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 2, 18}
)

// asn1Element is a generic {oid, value} pair as the SGX extension tree
// nests them (SEQUENCE OF SEQUENCE { OID, ANY }).
type asn1Element struct {
	ID    asn1.ObjectIdentifier
	Value asn1.RawValue
}

// TCB holds the per-component SVN vector and PCESVN carried in the
// leaf's SGX TCB extension.
type TCB struct {
	CPUSvnComponents [16]byte // sgxtcbcompSVN01..16, indices 0..15
	PceSvn           uint16
}

// PCKExtensions is the decoded form of the Intel SGX OID extension tree
// carried by a PCK leaf certificate.
type PCKExtensions struct {
	FMSPC              [6]byte
	PCEID              [2]byte
	SgxType            int
	PlatformInstanceID []byte
	TCB                TCB
}

func oidEqual(a, b asn1.ObjectIdentifier) bool { return a.Equal(b) }

func oidHasPrefix(oid, prefix asn1.ObjectIdentifier) bool {
	if len(oid) < len(prefix) {
		return false
	}
	for i := range prefix {
		if oid[i] != prefix[i] {
			return false
		}
	}
	return true
}

// ParsePCKExtensions locates and decodes the Intel SGX extension tree
// within c's certificate extensions.
func ParsePCKExtensions(c *Cert) (*PCKExtensions, error) {
	var sgxExtDER []byte
	for _, ext := range c.raw.Extensions {
		if ext.Id.Equal(oidSgxExtensions) {
			sgxExtDER = ext.Value
			break
		}
	}
	if sgxExtDER == nil {
		return nil, errors.New("certchain: certificate is missing the Intel SGX extension")
	}

	var elems []asn1Element
	if _, err := asn1.Unmarshal(sgxExtDER, &elems); err != nil {
		return nil, fmt.Errorf("certchain: parse SGX extension tree: %w", err)
	}

	out := &PCKExtensions{}
	for _, e := range elems {
		switch {
		case oidEqual(e.ID, oidSgxFMSPC):
			var b []byte
			if _, err := asn1.Unmarshal(e.Value.FullBytes, &b); err != nil {
				return nil, fmt.Errorf("certchain: parse fmspc: %w", err)
			}
			if len(b) != 6 {
				return nil, fmt.Errorf("certchain: fmspc has length %d, want 6", len(b))
			}
			copy(out.FMSPC[:], b)

		case oidEqual(e.ID, oidSgxPCEID):
			var b []byte
			if _, err := asn1.Unmarshal(e.Value.FullBytes, &b); err != nil {
				return nil, fmt.Errorf("certchain: parse pceid: %w", err)
			}
			if len(b) != 2 {
				return nil, fmt.Errorf("certchain: pceid has length %d, want 2", len(b))
			}
			copy(out.PCEID[:], b)

		case oidEqual(e.ID, oidSgxType):
			var n int
			if _, err := asn1.Unmarshal(e.Value.FullBytes, &n); err != nil {
				return nil, fmt.Errorf("certchain: parse sgx type: %w", err)
			}
			out.SgxType = n

		case oidEqual(e.ID, oidSgxPlatInstID):
			var b []byte
			if _, err := asn1.Unmarshal(e.Value.FullBytes, &b); err != nil {
				return nil, fmt.Errorf("certchain: parse platform instance id: %w", err)
			}
			out.PlatformInstanceID = b

		case oidEqual(e.ID, oidSgxTCB):
			var tcbElems []asn1Element
			if _, err := asn1.Unmarshal(e.Value.FullBytes, &tcbElems); err != nil {
				return nil, fmt.Errorf("certchain: parse tcb extension: %w", err)
			}
			for _, te := range tcbElems {
				switch {
				case oidEqual(te.ID, oidSgxTCBPCESVN):
					var v int
					if _, err := asn1.Unmarshal(te.Value.FullBytes, &v); err != nil {
						return nil, fmt.Errorf("certchain: parse pcesvn: %w", err)
					}
					out.TCB.PceSvn = uint16(v)
				case oidHasPrefix(te.ID, oidSgxTCB) && len(te.ID) == len(oidSgxTCB)+1 && te.ID[len(te.ID)-1] >= 1 && te.ID[len(te.ID)-1] <= 16:
					idx := te.ID[len(te.ID)-1] - 1
					var v int
					if _, err := asn1.Unmarshal(te.Value.FullBytes, &v); err != nil {
						return nil, fmt.Errorf("certchain: parse sgxtcbcompsvn%02d: %w", idx+1, err)
					}
					out.TCB.CPUSvnComponents[idx] = byte(v)
				}
			}
		}
	}

	return out, nil
}
