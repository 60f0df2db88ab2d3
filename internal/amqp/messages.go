package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cityteam/stats-sub000/internal/core"
)

// SummaryUpdated announces that the values of one section on one date
// changed. Consumers fetch whatever they need from the API or database.
type SummaryUpdated struct {
	FacilityID int64     `json:"facilityId"`
	SectionID  int64     `json:"sectionId"`
	Date       string    `json:"date"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewSummaryUpdated(facilityID, sectionID int64, date string) SummaryUpdated {
	return SummaryUpdated{
		FacilityID: facilityID,
		SectionID:  sectionID,
		Date:       date,
		Timestamp:  time.Now().UTC(),
	}
}

// Month returns the YYYY-MM month of the updated date.
func (m SummaryUpdated) Month() string {
	if len(m.Date) < len(core.MonthLayout) {
		return m.Date
	}
	return m.Date[:len(core.MonthLayout)]
}

// ToJSON converts the message to JSON bytes
func (m SummaryUpdated) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SummaryUpdatedFromJSON decodes and checks a message body.
func SummaryUpdatedFromJSON(data []byte) (SummaryUpdated, error) {
	var msg SummaryUpdated
	if err := json.Unmarshal(data, &msg); err != nil {
		return SummaryUpdated{}, err
	}
	if msg.FacilityID <= 0 || msg.SectionID <= 0 {
		return SummaryUpdated{}, fmt.Errorf("message missing facility or section id")
	}
	if _, err := core.ParseDate(msg.Date); err != nil {
		return SummaryUpdated{}, fmt.Errorf("message date: %w", err)
	}
	return msg, nil
}
