// Package collateral decodes Intel's signed JSON TCB Info and QE
// Identity collateral and evaluates a platform's reported measurements
// against it (spec §4.E, §4.F). It never fetches collateral itself —
// that is the caller's hook (or internal/intelclient's reference
// implementation).
package collateral

import "time"

// TcbComponent is one entry of a modern sgxtcbcomponents/tdxtcbcomponents
// array.
type TcbComponent struct {
	Svn      int    `json:"svn"`
	Category string `json:"category,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Tcb is the SVN threshold record carried by one TCB level. Exactly
// one of the legacy/modern SGX schemas, or the TDX schema, is expected
// to be populated for a given collateral document, but both may
// coexist (spec §4.F: "Both schemas may coexist in one level").
type Tcb struct {
	PceSvn *int `json:"pcesvn,omitempty"`

	// Legacy SGX schema: sgxtcbcompNNsvn, NN = 01..16.
	SgxTcbComp01Svn *int `json:"sgxtcbcomp01svn,omitempty"`
	SgxTcbComp02Svn *int `json:"sgxtcbcomp02svn,omitempty"`
	SgxTcbComp03Svn *int `json:"sgxtcbcomp03svn,omitempty"`
	SgxTcbComp04Svn *int `json:"sgxtcbcomp04svn,omitempty"`
	SgxTcbComp05Svn *int `json:"sgxtcbcomp05svn,omitempty"`
	SgxTcbComp06Svn *int `json:"sgxtcbcomp06svn,omitempty"`
	SgxTcbComp07Svn *int `json:"sgxtcbcomp07svn,omitempty"`
	SgxTcbComp08Svn *int `json:"sgxtcbcomp08svn,omitempty"`
	SgxTcbComp09Svn *int `json:"sgxtcbcomp09svn,omitempty"`
	SgxTcbComp10Svn *int `json:"sgxtcbcomp10svn,omitempty"`
	SgxTcbComp11Svn *int `json:"sgxtcbcomp11svn,omitempty"`
	SgxTcbComp12Svn *int `json:"sgxtcbcomp12svn,omitempty"`
	SgxTcbComp13Svn *int `json:"sgxtcbcomp13svn,omitempty"`
	SgxTcbComp14Svn *int `json:"sgxtcbcomp14svn,omitempty"`
	SgxTcbComp15Svn *int `json:"sgxtcbcomp15svn,omitempty"`
	SgxTcbComp16Svn *int `json:"sgxtcbcomp16svn,omitempty"`

	// Modern schemas.
	SgxTcbComponents []TcbComponent `json:"sgxtcbcomponents,omitempty"`
	TdxTcbComponents []TcbComponent `json:"tdxtcbcomponents,omitempty"`

	// TDX level also carries an isvsvn-like tee_tcb_svn reference in
	// some collateral revisions; unused by this evaluator but decoded
	// so unknown-but-documented fields don't fail strict decoding.
	Isvsvn *int `json:"isvsvn,omitempty"`
}

// legacySvn returns the legacy sgxtcbcompNNsvn threshold for 1-based
// component index idx (1..16), and whether that field was present.
func (t Tcb) legacySvn(idx int) (int, bool) {
	fields := [16]*int{
		t.SgxTcbComp01Svn, t.SgxTcbComp02Svn, t.SgxTcbComp03Svn, t.SgxTcbComp04Svn,
		t.SgxTcbComp05Svn, t.SgxTcbComp06Svn, t.SgxTcbComp07Svn, t.SgxTcbComp08Svn,
		t.SgxTcbComp09Svn, t.SgxTcbComp10Svn, t.SgxTcbComp11Svn, t.SgxTcbComp12Svn,
		t.SgxTcbComp13Svn, t.SgxTcbComp14Svn, t.SgxTcbComp15Svn, t.SgxTcbComp16Svn,
	}
	p := fields[idx-1]
	if p == nil {
		return 0, false
	}
	return *p, true
}

// TcbLevel is one entry of tcbLevels, newest first.
type TcbLevel struct {
	Tcb       Tcb       `json:"tcb"`
	TcbDate   time.Time `json:"tcbDate"`
	TcbStatus string    `json:"tcbStatus"`
}

// TCB status values, spec §3.
const (
	StatusUpToDate                         = "UpToDate"
	StatusSWHardeningNeeded                = "SWHardeningNeeded"
	StatusConfigurationNeeded              = "ConfigurationNeeded"
	StatusConfigurationAndSWHardeningNeeded = "ConfigurationAndSWHardeningNeeded"
	StatusOutOfDate                        = "OutOfDate"
	StatusOutOfDateConfigurationNeeded      = "OutOfDateConfigurationNeeded"
	StatusRevoked                           = "Revoked"
)

// TcbInfoBody is the inner "tcbInfo" object of the signed envelope.
type TcbInfoBody struct {
	ID                      string     `json:"id"`
	Version                 int        `json:"version"`
	IssueDate               time.Time  `json:"issueDate"`
	NextUpdate              time.Time  `json:"nextUpdate"`
	Fmspc                   string     `json:"fmspc"`
	PceID                   string     `json:"pceId"`
	TcbType                 int        `json:"tcbType"`
	TcbEvaluationDataNumber int        `json:"tcbEvaluationDataNumber"`
	TcbLevels               []TcbLevel `json:"tcbLevels"`
}

// TcbInfo is the signed JSON envelope Intel's PCS /tcb endpoint returns.
type TcbInfo struct {
	TcbInfo   TcbInfoBody `json:"tcbInfo"`
	Signature string      `json:"signature,omitempty"`
}

// QeTcbLevel is one entry of enclaveIdentity.tcbLevels.
type QeTcbLevel struct {
	Tcb       struct {
		Isvsvn int `json:"isvsvn"`
	} `json:"tcb"`
	TcbDate   time.Time `json:"tcbDate"`
	TcbStatus string    `json:"tcbStatus"`
}

// EnclaveIdentityBody is the inner "enclaveIdentity" object.
type EnclaveIdentityBody struct {
	ID                      string       `json:"id"`
	Version                 int          `json:"version"`
	IssueDate               time.Time    `json:"issueDate"`
	NextUpdate              time.Time    `json:"nextUpdate"`
	TcbEvaluationDataNumber int          `json:"tcbEvaluationDataNumber"`
	Miscselect              string       `json:"miscselect,omitempty"`
	MiscselectMask          string       `json:"miscselectMask,omitempty"`
	Attributes              string       `json:"attributes"`
	AttributesMask          string       `json:"attributesMask"`
	Mrsigner                string       `json:"mrsigner"`
	Isvprodid               *int         `json:"isvprodid,omitempty"`
	TcbLevels               []QeTcbLevel `json:"tcbLevels"`
}

// QeIdentity is the signed JSON envelope Intel's PCS /qe/identity
// endpoint returns.
type QeIdentity struct {
	EnclaveIdentity EnclaveIdentityBody `json:"enclaveIdentity"`
	Signature       string              `json:"signature,omitempty"`
}
