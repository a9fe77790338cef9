package collateral

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// QeIdentityRejected is raised when a QE report fails to match the
// enclave identity collateral on any of the masked-attribute,
// MRSIGNER, ISVPRODID, ISVSVN, or freshness checks.
type QeIdentityRejected struct {
	Detail string
}

func (e *QeIdentityRejected) Error() string {
	return fmt.Sprintf("collateral: qe identity rejected: %s", e.Detail)
}

// QeReportMeasurements is the subset of the QE's own report body the
// evaluator compares against the enclave identity collateral.
type QeReportMeasurements struct {
	Attributes [16]byte
	MiscSelect [4]byte
	MrSigner   [32]byte
	IsvProdID  uint16
	IsvSvn     uint16
}

// EvaluateQeIdentityOptions configures EvaluateQeIdentity.
type EvaluateQeIdentityOptions struct {
	Now time.Time
}

// EvaluateQeIdentity checks report against identity's masked ATTRIBUTES
// and MISCSELECT, MRSIGNER, and ISVPRODID, then selects one tcbLevels
// entry — the first whose tcbStatus is UpToDate, or the first entry
// when none is — and requires its isvsvn to equal report.IsvSvn
// (spec §4.E). The issueDate/nextUpdate
// freshness window is the first, mandatory check — unlike §4.F's TCB
// evaluator, the spec gives callers no override for it.
func EvaluateQeIdentity(identity *QeIdentity, report QeReportMeasurements, opts EvaluateQeIdentityOptions) error {
	body := identity.EnclaveIdentity

	if opts.Now.Before(body.IssueDate) || opts.Now.After(body.NextUpdate) {
		return &QeIdentityRejected{Detail: "enclave identity collateral outside issueDate/nextUpdate validity window"}
	}

	attrs, attrsMask, err := decodeHexPair(body.Attributes, body.AttributesMask)
	if err != nil {
		return &QeIdentityRejected{Detail: "malformed attributes/attributesMask: " + err.Error()}
	}
	if !maskedEqual(report.Attributes[:], attrs, attrsMask) {
		return &QeIdentityRejected{Detail: "attributes do not match masked enclave identity"}
	}

	if body.Miscselect != "" {
		misc, miscMask, err := decodeHexPair(body.Miscselect, body.MiscselectMask)
		if err != nil {
			return &QeIdentityRejected{Detail: "malformed miscselect/miscselectMask: " + err.Error()}
		}
		if !maskedEqual(report.MiscSelect[:], misc, miscMask) {
			return &QeIdentityRejected{Detail: "miscselect does not match masked enclave identity"}
		}
	}

	mrsigner, err := hex.DecodeString(strings.TrimSpace(body.Mrsigner))
	if err != nil || len(mrsigner) != 32 {
		return &QeIdentityRejected{Detail: "malformed mrsigner in enclave identity"}
	}
	if !bytes.Equal(report.MrSigner[:], mrsigner) {
		return &QeIdentityRejected{Detail: "mrsigner mismatch"}
	}

	if body.Isvprodid != nil && int(report.IsvProdID) != *body.Isvprodid {
		return &QeIdentityRejected{Detail: "isvprodid mismatch"}
	}

	if len(body.TcbLevels) == 0 {
		return &QeIdentityRejected{Detail: "enclave identity has no tcb levels"}
	}
	selected := body.TcbLevels[0]
	for _, level := range body.TcbLevels {
		if level.TcbStatus == StatusUpToDate {
			selected = level
			break
		}
	}
	if int(report.IsvSvn) != selected.Tcb.Isvsvn {
		return &QeIdentityRejected{Detail: fmt.Sprintf("isvsvn %d does not match qe tcb level isvsvn %d", report.IsvSvn, selected.Tcb.Isvsvn)}
	}

	return nil
}

func decodeHexPair(value, mask string) (v, m []byte, err error) {
	v, err = hex.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return nil, nil, err
	}
	m, err = hex.DecodeString(strings.TrimSpace(mask))
	if err != nil {
		return nil, nil, err
	}
	if len(v) != len(m) {
		return nil, nil, fmt.Errorf("value/mask length mismatch: %d vs %d", len(v), len(m))
	}
	return v, m, nil
}

// maskedEqual compares actual against expected, ignoring bits cleared
// in mask. actual may be longer than expected/mask (trailing bytes are
// ignored); a shorter actual fails.
func maskedEqual(actual, expected, mask []byte) bool {
	if len(actual) < len(expected) {
		return false
	}
	for i := range expected {
		if actual[i]&mask[i] != expected[i]&mask[i] {
			return false
		}
	}
	return true
}
