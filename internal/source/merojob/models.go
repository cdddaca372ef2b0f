package merojob

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// APIResponse represents one page of the MeroJob jobs API.
// Results are decoded one by one so a malformed record only costs itself.
type APIResponse struct {
	Count   int               `json:"count"`
	Next    *string           `json:"next"`
	Results []json.RawMessage `json:"results"`
}

type Job struct {
	ID            Text          `json:"id"`
	Title         Text          `json:"title"`
	Client        *Client       `json:"client"`
	JobLocations  []JobLocation `json:"job_locations"`
	Categories    []Text        `json:"categories"`
	JobLevel      Text          `json:"job_level"`
	Education     Text          `json:"education"`
	Experience    Text          `json:"experience"`
	Skills        []Text        `json:"skills"`
	Vacancies     Text          `json:"vacancies"`
	OfferedSalary *Salary       `json:"offered_salary"`
	PublishedDate Text          `json:"published_date"`
	Deadline      Text          `json:"deadline"`
	AbsoluteURL   string        `json:"absolute_url"`
}

type Client struct {
	ClientName Text `json:"client_name"`
	Location   Text `json:"location"`
}

type JobLocation struct {
	Address Text `json:"address"`
}

type Salary struct {
	Minimum  Text `json:"minimum"`
	Maximum  Text `json:"maximum"`
	Currency Text `json:"currency"`
}

// Text accepts the shapes the API uses interchangeably for a scalar: a
// string, a number, null, or an object carrying a name.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '{':
		var obj struct {
			Name  string `json:"name"`
			Title string `json:"title"`
			Label string `json:"label"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*t = Text(firstNonEmpty(obj.Name, obj.Title, obj.Label))
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*t = Text(strconv.FormatBool(b))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*t = Text(n.String())
	}
	return nil
}

func (t Text) String() string {
	return string(t)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
