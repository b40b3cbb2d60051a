// Package series models the feed's channel CSV export: a block of
// "# key: value" attribute lines followed by a time,value table. Gates and
// the transformer operate on the parsed form; the publisher only ever sees
// bytes.
package series

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Well-known attribute keys.
const (
	AttrChannelID    = "channel_id"
	AttrSiteName     = "site_name"
	AttrSiteCode     = "site_code"
	AttrPlatformCode = "platform_code"
	AttrParameter    = "parameter"
	AttrUnits        = "units"
	AttrFillValue    = "fill_value"
	AttrMetadataUUID = "metadata_uuid"
	AttrNominalDepth = "nominal_depth"
)

const header = "time,value"

// Dataset is one parsed channel export.
type Dataset struct {
	Attrs  map[string]string
	Times  []time.Time
	Values []float64
}

// Parse reads a channel export from r.
func Parse(r io.Reader) (*Dataset, error) {
	ds := &Dataset{Attrs: make(map[string]string)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	sawHeader := false
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "#") {
			if sawHeader {
				return nil, fmt.Errorf("line %d: attribute after data header", line)
			}
			key, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(text, "#")), ":")
			if !ok {
				return nil, fmt.Errorf("line %d: malformed attribute %q", line, text)
			}
			ds.Attrs[strings.TrimSpace(key)] = strings.TrimSpace(value)
			continue
		}

		if !sawHeader {
			if text != header {
				return nil, fmt.Errorf("line %d: expected %q header, got %q", line, header, text)
			}
			sawHeader = true
			continue
		}

		tsText, valText, ok := strings.Cut(text, ",")
		if !ok {
			return nil, fmt.Errorf("line %d: malformed row %q", line, text)
		}
		ts, err := time.Parse(time.RFC3339, tsText)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad timestamp: %w", line, err)
		}
		val, err := strconv.ParseFloat(valText, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad value: %w", line, err)
		}
		ds.Times = append(ds.Times, ts)
		ds.Values = append(ds.Values, val)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	if !sawHeader {
		return nil, fmt.Errorf("missing %q header", header)
	}
	return ds, nil
}

// Load parses the export at path.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Save writes the dataset back to path with attributes in sorted order,
// so a rewrite is deterministic.
func (d *Dataset) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)

	keys := make([]string, 0, len(d.Attrs))
	for k := range d.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "# %s: %s\n", k, d.Attrs[k])
	}

	fmt.Fprintln(w, header)
	for i, ts := range d.Times {
		fmt.Fprintf(w, "%s,%s\n", ts.UTC().Format(time.RFC3339), strconv.FormatFloat(d.Values[i], 'g', -1, 64))
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return f.Sync()
}

// Attr returns the named attribute, or "".
func (d *Dataset) Attr(key string) string { return d.Attrs[key] }

// SetAttr sets an attribute.
func (d *Dataset) SetAttr(key, value string) {
	if d.Attrs == nil {
		d.Attrs = make(map[string]string)
	}
	d.Attrs[key] = value
}

// Empty reports whether the primary time series carries no samples.
func (d *Dataset) Empty() bool { return len(d.Times) == 0 }

// Monotonic reports whether timestamps are strictly increasing.
func (d *Dataset) Monotonic() bool {
	for i := 1; i < len(d.Times); i++ {
		if !d.Times[i].After(d.Times[i-1]) {
			return false
		}
	}
	return true
}

// FillValue returns the declared fill/sentinel value, if any.
func (d *Dataset) FillValue() (float64, bool) {
	raw, ok := d.Attrs[AttrFillValue]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// AllFill reports whether the primary measurement is uniformly the fill value.
func (d *Dataset) AllFill() bool {
	fill, ok := d.FillValue()
	if !ok || len(d.Values) == 0 {
		return false
	}
	for _, v := range d.Values {
		if v != fill {
			return false
		}
	}
	return true
}
