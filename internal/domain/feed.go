package domain

import "encoding/json"

// FeedRecord is one upstream advisory as delivered by the feed, before
// normalization. Scalar fields hold the upstream text verbatim (numbers are
// rendered without quotes); absent fields are empty.
type FeedRecord struct {
	ID          string
	EventName   string
	Level       string
	Probability string
	ValidFrom   string
	ValidTo     string
	PublishedAt string
	Content     string
	Comment     string
	Office      string
	Regions     []string

	Raw json.RawMessage
}

// RegionMatch is a geocoder answer for a point.
type RegionMatch struct {
	Code string
	Name string
}
