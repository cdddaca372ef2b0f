package domain

import (
	"time"

	"github.com/google/uuid"
)

// Portal identifies a scraped job portal.
type Portal string

const (
	PortalMeroJob   Portal = "merojob"
	PortalKumariJob Portal = "kumarijob"
)

func (p Portal) Valid() bool {
	switch p {
	case PortalMeroJob, PortalKumariJob:
		return true
	}
	return false
}

// postingNamespace seeds the name-based posting ids.
var postingNamespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

// Key is the dedup identity of a posting.
type Key struct {
	Source   Portal
	SourceID string
}

func (k Key) String() string {
	return string(k.Source) + ":" + k.SourceID
}

// PostingID derives the stable posting id for a key.
func PostingID(k Key) string {
	return uuid.NewSHA1(postingNamespace, []byte(k.String())).String()
}

// RawJob is a scraped listing before cleaning. Every field is text exactly
// as the portal returned it.
type RawJob struct {
	Source     Portal
	SourceID   string
	Title      string
	Company    string
	Location   string
	Salary     string
	SalaryMin  string
	SalaryMax  string
	Currency   string
	Category   string
	JobLevel   string
	Experience string
	Education  string
	Skills     string
	Vacancies  string
	PostedDate string
	Deadline   string
	URL        string
}

type Salary struct {
	Raw      string   `json:"raw,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Currency string   `json:"currency,omitempty"`
}

type JobPosting struct {
	ID         string     `json:"id"`
	Source     Portal     `json:"source"`
	SourceID   string     `json:"source_id"`
	Title      string     `json:"title"`
	Company    string     `json:"company"`
	Location   string     `json:"location"`
	Category   string     `json:"category"`
	JobLevel   string     `json:"job_level"`
	Experience string     `json:"experience,omitempty"`
	Education  string     `json:"education,omitempty"`
	Skills     string     `json:"skills,omitempty"`
	Vacancies  int        `json:"vacancies,omitempty"`
	Salary     *Salary    `json:"salary,omitempty"`
	PostedDate *time.Time `json:"posted_date,omitempty"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	URL        string     `json:"url,omitempty"`
	ScrapedAt  time.Time  `json:"scraped_at"`
}

func (j *JobPosting) Key() Key {
	return Key{Source: j.Source, SourceID: j.SourceID}
}

// FetchResult is what a source returns for one run.
type FetchResult struct {
	Jobs         []RawJob
	PagesFetched int
	PagesFailed  int
	RecordErrors int
}

// SourceState tracks per-source run bookkeeping. Zero times mean never.
type SourceState struct {
	Source              Portal
	LastRunAt           time.Time
	LastSuccessAt       time.Time
	TotalStored         int64
	ConsecutiveFailures int
}
