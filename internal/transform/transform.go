// Package transform normalizes a raw downloaded series into publishable
// form: site and platform codes resolved, channel identity stamped into the
// attributes, and the file renamed to the canonical convention.
package transform

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/oceanobs/chanharvest/internal/series"
	"github.com/oceanobs/chanharvest/pkg/types"
)

// notAvailable is the placeholder the catalog uses for channels without a
// metadata record. It must not leak into published attributes.
const notAvailable = "Not Available"

// siteCodes maps catalog site names to publishable site codes.
var siteCodes = map[string]string{
	"Darwin":  "NRSDAR",
	"Yongala": "NRSYON",
	"Beagle":  "DARBGF",
}

// dataCodes maps catalog parameter names to filename data-code letters.
var dataCodes = map[string]string{
	"water_temperature": "T",
	"salinity":          "S",
	"chlorophyll":       "B",
	"turbidity":         "U",
	"dissolved_oxygen":  "O",
	"air_temperature":   "M",
	"wind_speed":        "M",
	"pressure":          "Z",
}

const (
	nameTimeFormat = "20060102T150405Z"
	nameDateFormat = "20060102"
)

// Normalize rewrites the dataset attributes and filename for one raw
// artifact. The file is renamed in place inside its temp directory. An
// unrecognized site or parameter is an error; the caller treats it as a
// failed chunk.
func Normalize(artifact types.Artifact, ds *series.Dataset, ch types.ChannelRecord, qcLevel int) (types.Artifact, error) {
	siteCode, ok := siteCodes[ch.SiteName]
	if !ok {
		return types.Artifact{}, fmt.Errorf("unrecognized site %q for channel %s", ch.SiteName, ch.ID)
	}
	dataCode, ok := dataCodes[ch.Parameter]
	if !ok {
		return types.Artifact{}, fmt.Errorf("unrecognized parameter %q for channel %s", ch.Parameter, ch.ID)
	}

	ds.SetAttr(series.AttrSiteCode, siteCode)
	ds.SetAttr(series.AttrPlatformCode, siteCode)
	ds.SetAttr(series.AttrChannelID, ch.ID)
	ds.SetAttr(series.AttrParameter, ch.Parameter)
	if ch.Units != "" {
		ds.SetAttr(series.AttrUnits, ch.Units)
	}
	if ch.MetadataUUID != "" && ch.MetadataUUID != notAvailable {
		ds.SetAttr(series.AttrMetadataUUID, ch.MetadataUUID)
	}
	// Above-water sensors export no depth at all, so only rename when present.
	if depth := ds.Attr("depth"); depth != "" {
		ds.SetAttr(series.AttrNominalDepth, depth)
		delete(ds.Attrs, "depth")
	}

	name := fmt.Sprintf("IMOS_ANMN_%s_%s_%s_FV0%d_END-%s.csv",
		dataCode,
		artifact.Chunk.Start.UTC().Format(nameTimeFormat),
		siteCode,
		qcLevel,
		artifact.Chunk.End.UTC().Format(nameDateFormat))

	dst := filepath.Join(filepath.Dir(artifact.LocalPath), name)
	if err := ds.Save(dst); err != nil {
		return types.Artifact{}, fmt.Errorf("save %s: %w", name, err)
	}
	if dst != artifact.LocalPath {
		if err := os.Remove(artifact.LocalPath); err != nil {
			return types.Artifact{}, fmt.Errorf("remove raw %s: %w", artifact.LocalPath, err)
		}
	}

	out := artifact
	out.LocalPath = dst
	out.Stage = types.StageTransformed
	return out, nil
}
