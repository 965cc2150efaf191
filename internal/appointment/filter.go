package appointment

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Filter is the read-side projection used by list views.
type Filter struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Status    AppointmentStatus
	// Search matches a date substring or the other party's name, case-insensitive.
	Search string
	Sort   SortOrder
	Limit  int // 0 means no limit
	Offset int
}

func (f Filter) query() Query {
	return Query{PatientID: f.PatientID, DoctorID: f.DoctorID, Status: f.Status}
}

func sortByDate(appts []Appointment, order SortOrder) {
	sort.SliceStable(appts, func(i, j int) bool {
		if order == SortDesc {
			return appts[i].Date.After(appts[j].Date)
		}
		return appts[i].Date.Before(appts[j].Date)
	})
}

func paginate(appts []Appointment, limit, offset int) []Appointment {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(appts) {
		return []Appointment{}
	}
	appts = appts[offset:]
	if limit > 0 && limit < len(appts) {
		appts = appts[:limit]
	}
	return appts
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}
