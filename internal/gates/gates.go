// Package gates runs the ordered validation checks a transformed series
// must clear before it can be published. The chain short-circuits: once a
// gate fails, later gates do not run.
package gates

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/oceanobs/chanharvest/internal/series"
	"github.com/oceanobs/chanharvest/pkg/types"
)

// Gate is one validation check over a transformed artifact.
type Gate interface {
	Name() string
	Check(artifact types.Artifact, ds *series.Dataset) (bool, string)
}

// Result is the outcome of running a chain over one artifact. Outcomes
// holds one entry per gate that ran, in order.
type Result struct {
	Outcomes []types.GateOutcome
	Passed   bool
	// FailedGate and Reason describe the first failing gate, when any.
	FailedGate string
	Reason     string
}

// Chain runs gates in a fixed order and stops at the first failure.
type Chain struct {
	gates []Gate
}

// NewChain builds a chain over the given gates, run in argument order.
func NewChain(gates ...Gate) *Chain {
	return &Chain{gates: gates}
}

// Default returns the standard publication chain.
func Default() *Chain {
	return NewChain(
		NotEmpty{},
		NotAllFill{},
		SiteRecognized{},
		TimeMonotonic{},
		ConventionCompliance{},
	)
}

// Validate runs the chain over one artifact.
func (c *Chain) Validate(artifact types.Artifact, ds *series.Dataset) Result {
	res := Result{Passed: true}
	for _, g := range c.gates {
		ok, reason := g.Check(artifact, ds)
		res.Outcomes = append(res.Outcomes, types.GateOutcome{
			Gate:   g.Name(),
			Passed: ok,
			Reason: reason,
		})
		if !ok {
			res.Passed = false
			res.FailedGate = g.Name()
			res.Reason = reason
			break
		}
	}
	return res
}

// NotEmpty rejects a series with no records.
type NotEmpty struct{}

func (NotEmpty) Name() string { return "series_not_empty" }

func (NotEmpty) Check(_ types.Artifact, ds *series.Dataset) (bool, string) {
	if ds.Empty() {
		return false, "series contains no records"
	}
	return true, ""
}

// NotAllFill rejects a series in which every value is the fill value.
type NotAllFill struct{}

func (NotAllFill) Name() string { return "not_all_fill" }

func (NotAllFill) Check(_ types.Artifact, ds *series.Dataset) (bool, string) {
	if ds.AllFill() {
		return false, "every value equals the fill value"
	}
	return true, ""
}

// SiteRecognized rejects a series whose site code is absent or unknown.
type SiteRecognized struct{}

var knownSiteCodes = map[string]bool{
	"NRSDAR": true,
	"NRSYON": true,
	"DARBGF": true,
}

func (SiteRecognized) Name() string { return "site_recognized" }

func (SiteRecognized) Check(_ types.Artifact, ds *series.Dataset) (bool, string) {
	code := ds.Attr(series.AttrSiteCode)
	if code == "" {
		return false, "site_code attribute missing"
	}
	if !knownSiteCodes[code] {
		return false, fmt.Sprintf("unknown site code %q", code)
	}
	return true, ""
}

// TimeMonotonic rejects a series whose timestamps are not strictly
// increasing.
type TimeMonotonic struct{}

func (TimeMonotonic) Name() string { return "time_monotonic" }

func (TimeMonotonic) Check(_ types.Artifact, ds *series.Dataset) (bool, string) {
	if !ds.Monotonic() {
		return false, "timestamps are not strictly increasing"
	}
	return true, ""
}

// ConventionCompliance is the final gate: the artifact must carry the
// required attributes and a conventionally named file.
type ConventionCompliance struct{}

var compliantName = regexp.MustCompile(`^IMOS_ANMN_[A-Z]_`)

var requiredAttrs = []string{
	series.AttrSiteCode,
	series.AttrPlatformCode,
	series.AttrChannelID,
	series.AttrParameter,
	series.AttrUnits,
}

func (ConventionCompliance) Name() string { return "convention_compliance" }

func (ConventionCompliance) Check(artifact types.Artifact, ds *series.Dataset) (bool, string) {
	for _, attr := range requiredAttrs {
		if ds.Attr(attr) == "" {
			return false, fmt.Sprintf("required attribute %s missing", attr)
		}
	}
	name := filepath.Base(artifact.LocalPath)
	if !compliantName.MatchString(name) {
		return false, fmt.Sprintf("file name %q does not follow convention", name)
	}
	return true, ""
}
