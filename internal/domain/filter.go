package domain

import "time"

// PostingFilter narrows reads from the posting store. Zero fields match all.
type PostingFilter struct {
	Source      Portal
	Location    string
	ScrapedFrom time.Time
	ScrapedTo   time.Time
	PostedFrom  time.Time
	PostedTo    time.Time
	Limit       int
}

// Dimension is a column postings can be grouped by.
type Dimension string

const (
	DimensionSource   Dimension = "source"
	DimensionLocation Dimension = "location"
	DimensionCategory Dimension = "category"
	DimensionJobLevel Dimension = "job_level"
	DimensionCompany  Dimension = "company"
)

func (d Dimension) Valid() bool {
	switch d {
	case DimensionSource, DimensionLocation, DimensionCategory, DimensionJobLevel, DimensionCompany:
		return true
	}
	return false
}

// Bucket is one group of a CountBy aggregate.
type Bucket struct {
	Label string `db:"label" json:"label"`
	Total int    `db:"total" json:"total"`
}
