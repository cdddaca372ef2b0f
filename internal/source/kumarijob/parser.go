package kumarijob

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"nepal_jobs/internal/domain"
	apperrors "nepal_jobs/internal/errors"
)

// Detail holds the fields read from a job's detail page.
type Detail struct {
	Industry   string
	JobLevel   string
	Education  string
	Experience string
}

// Listing is the result of parsing one listing page. Jobs are unique by
// source id, in order of first appearance.
type Listing struct {
	Jobs    []domain.RawJob
	Skipped int
}

// ParseListing extracts job cards from a listing page. Relative links are
// resolved against base.
func ParseListing(body []byte, base *url.URL) (*Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Parse("parse listing html", err)
	}

	listing := &Listing{}
	index := make(map[string]int)

	doc.Find("[data-jobid]").Each(func(_ int, card *goquery.Selection) {
		job, ok := parseCard(card, base)
		if !ok {
			listing.Skipped++
			return
		}

		if i, seen := index[job.SourceID]; seen {
			mergeInto(&listing.Jobs[i], job)
			return
		}
		index[job.SourceID] = len(listing.Jobs)
		listing.Jobs = append(listing.Jobs, job)
	})

	return listing, nil
}

func parseCard(card *goquery.Selection, base *url.URL) (domain.RawJob, bool) {
	id := strings.TrimSpace(card.AttrOr("data-jobid", ""))
	if id == "" {
		return domain.RawJob{}, false
	}

	job := domain.RawJob{
		Source:   domain.PortalKumariJob,
		SourceID: id,
	}
	var link string

	if h5 := card.Find("h5").First(); h5.Length() > 0 {
		// Standard card.
		job.Title = text(h5)
		link = h5.Find("a").First().AttrOr("href", "")
		job.Company = text(card.Find("h6").First())
	} else if info := card.Find(".job-info").First(); info.Length() > 0 {
		// Featured card.
		job.Title = text(info)
		link = info.AttrOr("href", "")
		if name := card.Find(".featured-job-company-name").First(); name.Length() > 0 {
			job.Company = text(name)
		} else {
			job.Company = strings.TrimSpace(card.Find(".featured-job-company-logo img").First().AttrOr("alt", ""))
		}
	}

	if job.Title == "" && link == "" {
		return domain.RawJob{}, false
	}
	job.URL = resolve(base, link)

	card.Find("ul.description li").Each(func(_ int, li *goquery.Selection) {
		t := text(li)
		switch {
		case strings.Contains(t, "Year") || strings.Contains(t, "Fresher"):
			job.Experience = t
		case strings.Contains(t, "Nrs.") || strings.Contains(t, "Negotiable"):
			job.Salary = t
		}
	})

	return job, true
}

// mergeInto fills empty fields of dst from a later card with the same id.
func mergeInto(dst *domain.RawJob, src domain.RawJob) {
	fill := func(field *string, value string) {
		if *field == "" {
			*field = value
		}
	}
	fill(&dst.Title, src.Title)
	fill(&dst.URL, src.URL)
	fill(&dst.Company, src.Company)
	fill(&dst.Salary, src.Salary)
	fill(&dst.Experience, src.Experience)
}

// ParseDetail reads the info block of a job detail page. Both the premium
// card layout and the basic list layout are supported.
func ParseDetail(body []byte) (Detail, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Detail{}, apperrors.Parse("parse detail html", err)
	}

	var d Detail

	if cards := doc.Find(".premium-info-card"); cards.Length() > 0 {
		cards.Each(func(_ int, card *goquery.Selection) {
			title := card.Find(".premium-info-card-title").First()
			value := card.Find(".premium-info-card-text").First()
			if title.Length() == 0 || value.Length() == 0 {
				return
			}
			switch text(title) {
			case "Industry":
				d.Industry = text(value)
			case "Job Level":
				d.JobLevel = text(value)
			case "Education":
				d.Education = text(value)
			case "Experience":
				d.Experience = text(value)
			}
		})
		return d, nil
	}

	doc.Find("ul.job-detail-box li.row").Each(func(_ int, row *goquery.Selection) {
		left := row.Find("span.basic-item__left").First()
		right := row.Find("span.basic-item__right").First()
		if left.Length() == 0 || right.Length() == 0 {
			return
		}
		label, value := text(left), text(right)
		switch {
		case strings.Contains(label, "Industry"):
			d.Industry = value
		case strings.Contains(label, "Job Level"):
			d.JobLevel = value
		case strings.Contains(label, "Education"):
			d.Education = value
		case strings.Contains(label, "Experience"):
			d.Experience = value
		}
	})

	return d, nil
}

// Apply copies non-empty detail fields onto job. Industry becomes the category.
func (d Detail) Apply(job *domain.RawJob) {
	set := func(field *string, value string) {
		if value != "" {
			*field = value
		}
	}
	set(&job.Category, d.Industry)
	set(&job.JobLevel, d.JobLevel)
	set(&job.Education, d.Education)
	set(&job.Experience, d.Experience)
}

func (d Detail) empty() bool {
	return d == Detail{}
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func resolve(base *url.URL, link string) string {
	link = strings.TrimSpace(link)
	if link == "" || base == nil {
		return link
	}
	u, err := base.Parse(link)
	if err != nil {
		return link
	}
	return u.String()
}
