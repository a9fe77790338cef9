package collateral

import (
	"fmt"
	"time"
)

// TcbRejected is raised when no tcbLevels entry matches the platform's
// SVN vector, when the matched level is not in the caller's
// accepted-status set, or when the matched level is accepted but the
// TCB Info collateral itself is stale (spec §7: "TcbRejected{status,
// fresh}").
type TcbRejected struct {
	Fmspc  string
	Status string // status of the best-matching level, "" if none matched
	Fresh  bool
}

func (e *TcbRejected) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("collateral: no tcb level matches platform for fmspc %s", e.Fmspc)
	}
	if !e.Fresh {
		return fmt.Sprintf("collateral: tcb info stale for fmspc %s (matched status %q)", e.Fmspc, e.Status)
	}
	return fmt.Sprintf("collateral: tcb status %q rejected for fmspc %s", e.Status, e.Fmspc)
}

// TcbRef records the outcome of a successful TCB evaluation.
type TcbRef struct {
	Fmspc        string
	Status       string
	TcbDate      time.Time
	TcbInfoFresh bool
}

// DefaultAcceptedStatuses is the default accepted-status set: only
// UpToDate and ConfigurationNeeded. ConfigurationAndSWHardeningNeeded
// is deliberately excluded by default — a caller wanting to accept it
// must opt in explicitly via EvaluateTcbOptions.AcceptedStatuses.
func DefaultAcceptedStatuses() map[string]bool {
	return map[string]bool{
		StatusUpToDate:            true,
		StatusConfigurationNeeded: true,
	}
}

// PlatformTcb is the platform's reported SVN vector, extracted by the
// orchestrator from the quote's PCK certificate extensions (SGX) or
// combined with the TD report's tee_tcb_svn (TDX).
type PlatformTcb struct {
	// CPUSvnComponents are the 16 legacy CPU SVN components, taken from
	// the PCK certificate's TCB extension for both SGX and TDX quotes
	// (the TD's own tee_tcb_svn is matched separately below).
	CPUSvnComponents [16]byte
	PceSvn           uint16

	// TdxTcbComponents holds the TD's tee_tcb_svn bytes (16 bytes) when
	// evaluating a TDX quote; nil for SGX.
	TdxTcbComponents []byte
}

// EvaluateTcbOptions configures EvaluateTcb.
type EvaluateTcbOptions struct {
	Now              time.Time
	AcceptedStatuses map[string]bool // nil uses DefaultAcceptedStatuses()

	// AllowStale opts out of the default accept policy's freshness
	// requirement (spec §4.F: "fresh ∧ status ∈ {...}"). TcbInfoFresh on
	// the returned TcbRef always reflects the true freshness regardless
	// of this flag.
	AllowStale bool
}

// EvaluateTcb walks info's tcbLevels (expected newest-first, per Intel's
// documented ordering) and returns the first level whose SVN thresholds
// the platform vector meets or exceeds (spec §4.F, property 6: "TCB
// ordering — a platform vector that meets level N's thresholds also
// meets every level M>N with lower thresholds").
//
// A level's SGX thresholds are checked first against the legacy
// sgxtcbcompNNsvn fields if present, then against the modern
// sgxtcbcomponents[] array if present (spec §9 Open Question 1: legacy
// checked first, then modern, for parity with both schemas appearing
// in the same document). TDX thresholds, when platform.TdxTcbComponents
// is set, are checked against tdxtcbcomponents[].
func EvaluateTcb(info *TcbInfo, platform PlatformTcb, opts EvaluateTcbOptions) (*TcbRef, error) {
	accepted := opts.AcceptedStatuses
	if accepted == nil {
		accepted = DefaultAcceptedStatuses()
	}

	body := info.TcbInfo
	fresh := !opts.Now.Before(body.IssueDate) && !opts.Now.After(body.NextUpdate)

	for _, level := range body.TcbLevels {
		if !tcbLevelSatisfied(level.Tcb, platform) {
			continue
		}
		// First satisfied level is the platform's matched level
		// (levels are ordered newest/highest-first).
		if !accepted[level.TcbStatus] {
			return nil, &TcbRejected{Fmspc: body.Fmspc, Status: level.TcbStatus, Fresh: fresh}
		}
		if !fresh && !opts.AllowStale {
			return nil, &TcbRejected{Fmspc: body.Fmspc, Status: level.TcbStatus, Fresh: fresh}
		}
		return &TcbRef{
			Fmspc:        body.Fmspc,
			Status:       level.TcbStatus,
			TcbDate:      level.TcbDate,
			TcbInfoFresh: fresh,
		}, nil
	}

	return nil, &TcbRejected{Fmspc: body.Fmspc, Fresh: fresh}
}

// tcbLevelSatisfied reports whether platform's SVN vector meets or
// exceeds every threshold in level.
func tcbLevelSatisfied(level Tcb, platform PlatformTcb) bool {
	if level.PceSvn != nil && int(platform.PceSvn) < *level.PceSvn {
		return false
	}

	for i := 1; i <= 16; i++ {
		threshold, ok := level.legacySvn(i)
		if !ok {
			continue
		}
		if int(platform.CPUSvnComponents[i-1]) < threshold {
			return false
		}
	}

	if len(level.SgxTcbComponents) > 0 {
		for i, comp := range level.SgxTcbComponents {
			if i >= len(platform.CPUSvnComponents) {
				break
			}
			if int(platform.CPUSvnComponents[i]) < comp.Svn {
				return false
			}
		}
	}

	if len(level.TdxTcbComponents) > 0 {
		if platform.TdxTcbComponents == nil {
			return false
		}
		for i, comp := range level.TdxTcbComponents {
			if i >= len(platform.TdxTcbComponents) {
				break
			}
			if int(platform.TdxTcbComponents[i]) < comp.Svn {
				return false
			}
		}
	}

	return true
}
