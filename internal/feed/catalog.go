package feed

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"time"

	"github.com/oceanobs/chanharvest/pkg/types"
)

// ErrCatalogUnavailable indicates the channel catalog for a qc level could
// not be fetched or parsed. Without a full catalog there is nothing safe to
// harvest at that level, so callers skip the whole level.
var ErrCatalogUnavailable = errors.New("channel catalog unavailable")

type rssDoc struct {
	XMLName xml.Name  `xml:"rss"`
	Items   []rssItem `xml:"channel>item"`
}

type rssItem struct {
	ChannelID    string `xml:"channelId"`
	FromDate     string `xml:"fromDate"`
	ThruDate     string `xml:"thruDate"`
	SiteName     string `xml:"siteName"`
	PlatformName string `xml:"platformName"`
	Parameter    string `xml:"parameter"`
	Units        string `xml:"uom"`
	MetadataUUID string `xml:"metadataUuid"`
}

// FetchCatalog retrieves the list of harvestable channels at the given
// qc level. Any fetch or parse failure is reported as ErrCatalogUnavailable;
// a partially parsed catalog is never returned.
func (c *Client) FetchCatalog(ctx context.Context, qcLevel int) ([]types.ChannelRecord, error) {
	url := fmt.Sprintf("%s/rss/netcdf/level%d/%d", c.baseURL, qcLevel, c.categoryID)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: qc level %d: %v", ErrCatalogUnavailable, qcLevel, err)
	}

	var doc rssDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: qc level %d: %v", ErrCatalogUnavailable, qcLevel, err)
	}

	channels := make([]types.ChannelRecord, 0, len(doc.Items))
	for _, item := range doc.Items {
		rec, err := item.toRecord()
		if err != nil {
			return nil, fmt.Errorf("%w: qc level %d: %v", ErrCatalogUnavailable, qcLevel, err)
		}
		channels = append(channels, rec)
	}

	c.logger.Debug("catalog fetched", "qc_level", qcLevel, "channels", len(channels))
	return channels, nil
}

func (it rssItem) toRecord() (types.ChannelRecord, error) {
	if it.ChannelID == "" {
		return types.ChannelRecord{}, errors.New("catalog item missing channelId")
	}
	from, err := time.Parse(time.RFC3339, it.FromDate)
	if err != nil {
		return types.ChannelRecord{}, fmt.Errorf("channel %s: bad fromDate %q", it.ChannelID, it.FromDate)
	}
	thru, err := time.Parse(time.RFC3339, it.ThruDate)
	if err != nil {
		return types.ChannelRecord{}, fmt.Errorf("channel %s: bad thruDate %q", it.ChannelID, it.ThruDate)
	}
	return types.ChannelRecord{
		ID:           it.ChannelID,
		FromDate:     from,
		ThruDate:     thru,
		SiteName:     it.SiteName,
		PlatformName: it.PlatformName,
		Parameter:    it.Parameter,
		Units:        it.Units,
		MetadataUUID: it.MetadataUUID,
	}, nil
}
