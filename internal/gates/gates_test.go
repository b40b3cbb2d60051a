package gates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanobs/chanharvest/internal/series"
	"github.com/oceanobs/chanharvest/pkg/types"
)

func compliantDataset() *series.Dataset {
	return &series.Dataset{
		Attrs: map[string]string{
			series.AttrSiteCode:     "NRSDAR",
			series.AttrPlatformCode: "NRSDAR",
			series.AttrChannelID:    "84329",
			series.AttrParameter:    "water_temperature",
			series.AttrUnits:        "Celsius",
			series.AttrFillValue:    "-999.0",
		},
		Times: []time.Time{
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC),
		},
		Values: []float64{24.5, 24.7},
	}
}

func compliantArtifact() types.Artifact {
	return types.Artifact{
		LocalPath: "/tmp/work/chunk-1/IMOS_ANMN_T_20240101T000000Z_NRSDAR_FV01_END-20240201.csv",
		ChannelID: "84329",
		Stage:     types.StageTransformed,
	}
}

func TestDefaultChainPasses(t *testing.T) {
	res := Default().Validate(compliantArtifact(), compliantDataset())
	require.True(t, res.Passed, res.Reason)
	assert.Len(t, res.Outcomes, 5)
	for _, o := range res.Outcomes {
		assert.True(t, o.Passed, o.Gate)
	}
}

func TestChainShortCircuits(t *testing.T) {
	ds := compliantDataset()
	ds.Times = nil
	ds.Values = nil

	res := Default().Validate(compliantArtifact(), ds)
	require.False(t, res.Passed)
	assert.Equal(t, "series_not_empty", res.FailedGate)
	// only the failing gate ran
	assert.Len(t, res.Outcomes, 1)
}

func TestGateOrderIsStable(t *testing.T) {
	res := Default().Validate(compliantArtifact(), compliantDataset())
	got := make([]string, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		got = append(got, o.Gate)
	}
	assert.Equal(t, []string{
		"series_not_empty",
		"not_all_fill",
		"site_recognized",
		"time_monotonic",
		"convention_compliance",
	}, got)
}

func TestNotAllFill(t *testing.T) {
	ds := compliantDataset()
	ds.Values = []float64{-999.0, -999.0}

	res := Default().Validate(compliantArtifact(), ds)
	require.False(t, res.Passed)
	assert.Equal(t, "not_all_fill", res.FailedGate)
}

func TestSiteRecognized(t *testing.T) {
	t.Run("missing code", func(t *testing.T) {
		ds := compliantDataset()
		delete(ds.Attrs, series.AttrSiteCode)
		res := Default().Validate(compliantArtifact(), ds)
		require.False(t, res.Passed)
		assert.Equal(t, "site_recognized", res.FailedGate)
	})

	t.Run("unknown code", func(t *testing.T) {
		ds := compliantDataset()
		ds.Attrs[series.AttrSiteCode] = "XXXXXX"
		res := Default().Validate(compliantArtifact(), ds)
		require.False(t, res.Passed)
		assert.Equal(t, "site_recognized", res.FailedGate)
		assert.Contains(t, res.Reason, "XXXXXX")
	})
}

func TestTimeMonotonic(t *testing.T) {
	ds := compliantDataset()
	ds.Times[1] = ds.Times[0]

	res := Default().Validate(compliantArtifact(), ds)
	require.False(t, res.Passed)
	assert.Equal(t, "time_monotonic", res.FailedGate)
}

func TestConventionCompliance(t *testing.T) {
	t.Run("missing attribute", func(t *testing.T) {
		ds := compliantDataset()
		delete(ds.Attrs, series.AttrUnits)
		res := Default().Validate(compliantArtifact(), ds)
		require.False(t, res.Passed)
		assert.Equal(t, "convention_compliance", res.FailedGate)
		assert.Contains(t, res.Reason, "units")
	})

	t.Run("bad filename", func(t *testing.T) {
		a := compliantArtifact()
		a.LocalPath = "/tmp/work/chunk-1/download.csv"
		res := Default().Validate(a, compliantDataset())
		require.False(t, res.Passed)
		assert.Equal(t, "convention_compliance", res.FailedGate)
	})
}

// recordingGate verifies a chain never runs gates past the first failure.
type recordingGate struct {
	name string
	pass bool
	ran  *[]string
}

func (g recordingGate) Name() string { return g.name }

func (g recordingGate) Check(types.Artifact, *series.Dataset) (bool, string) {
	*g.ran = append(*g.ran, g.name)
	if !g.pass {
		return false, "forced failure"
	}
	return true, ""
}

func TestCustomChainStopsAtFirstFailure(t *testing.T) {
	var ran []string
	chain := NewChain(
		recordingGate{name: "a", pass: true, ran: &ran},
		recordingGate{name: "b", pass: false, ran: &ran},
		recordingGate{name: "c", pass: true, ran: &ran},
	)

	res := chain.Validate(compliantArtifact(), compliantDataset())
	require.False(t, res.Passed)
	assert.Equal(t, "b", res.FailedGate)
	assert.Equal(t, []string{"a", "b"}, ran)
}
