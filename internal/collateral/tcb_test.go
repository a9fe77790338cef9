package collateral

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func buildTcbInfo(fmspc string, levels []TcbLevel) *TcbInfo {
	return &TcbInfo{
		TcbInfo: TcbInfoBody{
			Fmspc:      fmspc,
			NextUpdate: time.Now().Add(30 * 24 * time.Hour),
			TcbLevels:  levels,
		},
	}
}

func legacyTcb(svn int, pcesvn int) Tcb {
	return Tcb{
		PceSvn:          intp(pcesvn),
		SgxTcbComp01Svn: intp(svn),
		SgxTcbComp02Svn: intp(svn),
	}
}

// TestEvaluateTcbOrdering is spec property 6: a platform vector that
// satisfies the higher-threshold level also satisfies every lower one,
// and the evaluator returns the first (highest) level it meets.
func TestEvaluateTcbOrdering(t *testing.T) {
	info := buildTcbInfo("00906ED50000", []TcbLevel{
		{Tcb: legacyTcb(5, 10), TcbStatus: StatusUpToDate, TcbDate: time.Now()},
		{Tcb: legacyTcb(3, 5), TcbStatus: StatusOutOfDate, TcbDate: time.Now()},
		{Tcb: legacyTcb(0, 0), TcbStatus: StatusOutOfDate, TcbDate: time.Now()},
	})

	platform := PlatformTcb{PceSvn: 10}
	for i := range platform.CPUSvnComponents {
		platform.CPUSvnComponents[i] = 5
	}

	ref, err := EvaluateTcb(info, platform, EvaluateTcbOptions{Now: time.Now()})
	require.NoError(t, err)
	require.Equal(t, StatusUpToDate, ref.Status)
}

func TestEvaluateTcbFallsThroughToLowerLevel(t *testing.T) {
	info := buildTcbInfo("00906ED50000", []TcbLevel{
		{Tcb: legacyTcb(5, 10), TcbStatus: StatusUpToDate, TcbDate: time.Now()},
		{Tcb: legacyTcb(3, 5), TcbStatus: StatusOutOfDate, TcbDate: time.Now()},
	})

	platform := PlatformTcb{PceSvn: 5}
	for i := range platform.CPUSvnComponents {
		platform.CPUSvnComponents[i] = 3
	}

	// The matched level is OutOfDate, which the default policy rejects.
	_, err := EvaluateTcb(info, platform, EvaluateTcbOptions{Now: time.Now()})
	require.Error(t, err)
	var rej *TcbRejected
	require.ErrorAs(t, err, &rej)
	require.Equal(t, StatusOutOfDate, rej.Status)
}

func TestEvaluateTcbNoMatch(t *testing.T) {
	info := buildTcbInfo("00906ED50000", []TcbLevel{
		{Tcb: legacyTcb(5, 10), TcbStatus: StatusUpToDate, TcbDate: time.Now()},
	})
	platform := PlatformTcb{PceSvn: 1}

	_, err := EvaluateTcb(info, platform, EvaluateTcbOptions{Now: time.Now()})
	require.Error(t, err)
	var rej *TcbRejected
	require.ErrorAs(t, err, &rej)
	require.Equal(t, "", rej.Status)
}

func TestEvaluateTcbRejectedStatus(t *testing.T) {
	info := buildTcbInfo("00906ED50000", []TcbLevel{
		{Tcb: legacyTcb(0, 0), TcbStatus: StatusRevoked, TcbDate: time.Now()},
	})
	_, err := EvaluateTcb(info, PlatformTcb{}, EvaluateTcbOptions{Now: time.Now()})
	require.Error(t, err)
	var rej *TcbRejected
	require.ErrorAs(t, err, &rej)
	require.Equal(t, StatusRevoked, rej.Status)
}

func TestEvaluateTcbConfigurationAndSWHardeningExcludedByDefault(t *testing.T) {
	info := buildTcbInfo("00906ED50000", []TcbLevel{
		{Tcb: legacyTcb(0, 0), TcbStatus: StatusConfigurationAndSWHardeningNeeded, TcbDate: time.Now()},
	})
	_, err := EvaluateTcb(info, PlatformTcb{}, EvaluateTcbOptions{Now: time.Now()})
	require.Error(t, err)

	accepted := DefaultAcceptedStatuses()
	accepted[StatusConfigurationAndSWHardeningNeeded] = true
	ref, err := EvaluateTcb(info, PlatformTcb{}, EvaluateTcbOptions{Now: time.Now(), AcceptedStatuses: accepted})
	require.NoError(t, err)
	require.Equal(t, StatusConfigurationAndSWHardeningNeeded, ref.Status)
}

// TestEvaluateTcbFreshnessBoundary is spec property 7. The default
// accept policy is fresh ∧ status ∈ accepted, so stale collateral is
// rejected unless the caller opts into AllowStale; either way
// TcbInfoFresh reports the true freshness.
func TestEvaluateTcbFreshnessBoundary(t *testing.T) {
	info := buildTcbInfo("00906ED50000", []TcbLevel{
		{Tcb: legacyTcb(0, 0), TcbStatus: StatusUpToDate, TcbDate: time.Now()},
	})
	info.TcbInfo.NextUpdate = time.Now().Add(-time.Hour)

	_, err := EvaluateTcb(info, PlatformTcb{}, EvaluateTcbOptions{Now: time.Now()})
	require.Error(t, err)
	var rej *TcbRejected
	require.ErrorAs(t, err, &rej)
	require.False(t, rej.Fresh)

	ref, err := EvaluateTcb(info, PlatformTcb{}, EvaluateTcbOptions{Now: time.Now(), AllowStale: true})
	require.NoError(t, err)
	require.False(t, ref.TcbInfoFresh)
}

// TestEvaluateTcbIssueDateLowerBound checks the issueDate side of
// property 7: collateral published in the future is not yet fresh.
func TestEvaluateTcbIssueDateLowerBound(t *testing.T) {
	info := buildTcbInfo("00906ED50000", []TcbLevel{
		{Tcb: legacyTcb(0, 0), TcbStatus: StatusUpToDate, TcbDate: time.Now()},
	})
	info.TcbInfo.IssueDate = time.Now().Add(time.Hour)

	_, err := EvaluateTcb(info, PlatformTcb{}, EvaluateTcbOptions{Now: time.Now()})
	require.Error(t, err)
	var rej *TcbRejected
	require.ErrorAs(t, err, &rej)
	require.False(t, rej.Fresh)
}

func TestEvaluateTcbModernComponentsSchema(t *testing.T) {
	info := buildTcbInfo("00906ED50000", []TcbLevel{
		{
			Tcb: Tcb{
				PceSvn:           intp(10),
				SgxTcbComponents: []TcbComponent{{Svn: 4}, {Svn: 4}},
			},
			TcbStatus: StatusUpToDate,
			TcbDate:   time.Now(),
		},
	})
	platform := PlatformTcb{PceSvn: 10}
	platform.CPUSvnComponents[0] = 4
	platform.CPUSvnComponents[1] = 4

	ref, err := EvaluateTcb(info, platform, EvaluateTcbOptions{Now: time.Now()})
	require.NoError(t, err)
	require.Equal(t, StatusUpToDate, ref.Status)
}

func TestEvaluateTcbTdxComponents(t *testing.T) {
	info := buildTcbInfo("00906ED50000", []TcbLevel{
		{
			Tcb: Tcb{
				TdxTcbComponents: []TcbComponent{{Svn: 2}, {Svn: 2}},
			},
			TcbStatus: StatusUpToDate,
			TcbDate:   time.Now(),
		},
	})
	platform := PlatformTcb{TdxTcbComponents: []byte{2, 3}}

	ref, err := EvaluateTcb(info, platform, EvaluateTcbOptions{Now: time.Now()})
	require.NoError(t, err)
	require.Equal(t, StatusUpToDate, ref.Status)

	platform2 := PlatformTcb{TdxTcbComponents: nil}
	_, err = EvaluateTcb(info, platform2, EvaluateTcbOptions{Now: time.Now()})
	require.Error(t, err)
}
