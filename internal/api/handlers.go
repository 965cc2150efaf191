package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/belle-designer/AppointmentSystem/internal/appointment"
	"github.com/belle-designer/AppointmentSystem/internal/booking"
	"github.com/belle-designer/AppointmentSystem/internal/directory"
	"github.com/belle-designer/AppointmentSystem/internal/lifecycle"
	"github.com/belle-designer/AppointmentSystem/internal/triage"
)

type handlers struct {
	svc      *appointment.Service
	dir      directory.Directory
	sessions booking.SessionStore
	actions  *lifecycle.Actions
	log      *zap.Logger
	now      func() time.Time
}

func (h *handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	v := h.svc.Validator()
	writeJSON(w, http.StatusOK, SlotsResponse{
		Times:         v.Catalog().Times(),
		Holidays:      v.Catalog().Holidays(),
		DailyCapacity: v.Capacity(),
	})
}

func (h *handlers) slotAvailability(w http.ResponseWriter, r *http.Request) {
	date, err := appointment.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	avail, err := h.svc.Availability(r.Context(), date)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{Date: date.String(), Slots: avail})
}

func (h *handlers) listSpecializations(w http.ResponseWriter, r *http.Request) {
	specs, err := h.dir.Specializations(r.Context())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if specs == nil {
		specs = []string{}
	}
	writeJSON(w, http.StatusOK, specs)
}

func (h *handlers) listDoctors(w http.ResponseWriter, r *http.Request) {
	docs, err := h.dir.DoctorsBySpecialization(r.Context(), strings.TrimSpace(r.URL.Query().Get("specialization")))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if docs == nil {
		docs = []appointment.Doctor{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	actor, _ := GetActor(r.Context())

	var req CreateAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	date, _ := appointment.ParseDate(req.Date)
	appt, err := h.svc.CreateAppointment(r.Context(), appointment.NewAppointment{
		PatientID: actor.ID,
		DoctorID:  uuid.MustParse(req.DoctorID),
		Date:      date,
		Time:      req.Time,
		Notes:     req.Notes,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.detail(r, *appt))
}

// listAppointments shows the caller's own appointments: by patient or by doctor depending on role.
func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pageParams(r)

	f := appointment.Filter{
		Search: q.Get("search"),
		Sort:   appointment.SortAsc,
		Limit:  limit,
		Offset: offset,
	}
	if strings.EqualFold(q.Get("sort"), string(appointment.SortDesc)) {
		f.Sort = appointment.SortDesc
	}
	if raw := q.Get("status"); raw != "" {
		st, err := appointment.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}
		f.Status = st
	}

	actor, ok := GetActor(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_actor", "X-Actor-ID and X-Actor-Role are required")
		return
	}
	if actor.Role == RoleDoctor {
		f.DoctorID = actor.ID
	} else {
		f.PatientID = actor.ID
	}

	appts, err := h.svc.ListAppointments(r.Context(), f)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, AppointmentListResponse{
		Items:  h.svc.Hydrate(r.Context(), appts, h.now()),
		Limit:  limit,
		Offset: offset,
	})
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor, ok := GetActor(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_actor", "X-Actor-ID and X-Actor-Role are required")
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if appt.PatientID != actor.ID && appt.DoctorID != actor.ID {
		handleError(w, r, h.log, appointment.ErrNotOwner)
		return
	}

	writeJSON(w, http.StatusOK, h.detail(r, *appt))
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor, _ := GetActor(r.Context())

	appt, err := h.actions.Cancel(r.Context(), actor.ID, id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, h.detail(r, *appt))
}

func (h *handlers) rescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor, _ := GetActor(r.Context())

	wiz, err := h.actions.Reschedule(r.Context(), actor.ID, id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if err := h.sessions.Save(r.Context(), wiz.Session()); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(wiz))
}

func (h *handlers) listTriage(w http.ResponseWriter, r *http.Request) {
	actor, _ := GetActor(r.Context())

	pending, err := triage.NewWorkflow(actor.ID, h.svc, h.log).Load(r.Context())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Hydrate(r.Context(), pending, h.now()))
}

func (h *handlers) confirmAppointment(w http.ResponseWriter, r *http.Request) {
	h.triage(w, r, triage.Confirm)
}

func (h *handlers) declineAppointment(w http.ResponseWriter, r *http.Request) {
	h.triage(w, r, triage.Decline)
}

// triage applies a doctor's decision. The HTTP call is the confirmed answer to the prompt.
func (h *handlers) triage(w http.ResponseWriter, r *http.Request, action triage.Action) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor, _ := GetActor(r.Context())
	wf := triage.NewWorkflow(actor.ID, h.svc, h.log)

	prompt, err := wf.Request(r.Context(), id, action)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	appt, err := wf.Resolve(r.Context(), *prompt, true)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, h.detail(r, *appt))
}

func (h *handlers) detail(r *http.Request, a appointment.Appointment) appointment.AppointmentDetail {
	return h.svc.Hydrate(r.Context(), []appointment.Appointment{a}, h.now())[0]
}
