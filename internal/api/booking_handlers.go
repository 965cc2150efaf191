package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/belle-designer/AppointmentSystem/internal/appointment"
	"github.com/belle-designer/AppointmentSystem/internal/booking"
)

func (h *handlers) startBooking(w http.ResponseWriter, r *http.Request) {
	actor, _ := GetActor(r.Context())

	wiz := booking.New(actor.ID, h.dir, h.svc)
	if err := h.sessions.Save(r.Context(), wiz.Session()); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(wiz))
}

func (h *handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.loadBooking(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(wiz))
}

func (h *handlers) updateBooking(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.loadBooking(w, r)
	if !ok {
		return
	}

	var req UpdateBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Specialization != nil {
		wiz.SetSpecialization(*req.Specialization)
	}
	if req.DoctorID != nil {
		if err := wiz.SelectDoctor(r.Context(), uuid.MustParse(*req.DoctorID)); err != nil {
			handleError(w, r, h.log, err)
			return
		}
	}
	if req.Date != nil || req.Time != nil {
		d := wiz.Draft()
		date, t := d.Date, d.Time
		if req.Date != nil {
			date, _ = appointment.ParseDate(*req.Date)
		}
		if req.Time != nil {
			t = *req.Time
		}
		wiz.SetSlot(date, t)
	}
	if req.Notes != nil {
		wiz.SetNotes(*req.Notes)
	}

	h.saveBooking(w, r, wiz, http.StatusOK)
}

func (h *handlers) nextBooking(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.loadBooking(w, r)
	if !ok {
		return
	}
	if err := wiz.Next(); err != nil {
		h.saveThenFail(w, r, wiz, err)
		return
	}
	h.saveBooking(w, r, wiz, http.StatusOK)
}

func (h *handlers) backBooking(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.loadBooking(w, r)
	if !ok {
		return
	}
	if err := wiz.Back(); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	h.saveBooking(w, r, wiz, http.StatusOK)
}

func (h *handlers) reviewBooking(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.loadBooking(w, r)
	if !ok {
		return
	}
	summary, err := wiz.Review(r.Context())
	if err != nil {
		h.saveThenFail(w, r, wiz, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handlers) submitBooking(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.loadBooking(w, r)
	if !ok {
		return
	}

	var req SubmitBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := wiz.Submit(r.Context(), req.Confirmed)
	if err != nil {
		h.saveThenFail(w, r, wiz, err)
		return
	}
	if err := h.sessions.Save(r.Context(), wiz.Session()); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	status := http.StatusOK
	if res.Outcome == booking.OutcomeBooked {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// loadBooking resumes the caller's wizard; another patient's session reads as forbidden.
func (h *handlers) loadBooking(w http.ResponseWriter, r *http.Request) (*booking.Wizard, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	actor, _ := GetActor(r.Context())

	s, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return nil, false
	}
	if s.PatientID != actor.ID {
		handleError(w, r, h.log, appointment.ErrNotOwner)
		return nil, false
	}
	return booking.Resume(*s, h.dir, h.svc), true
}

func (h *handlers) saveBooking(w http.ResponseWriter, r *http.Request, wiz *booking.Wizard, status int) {
	if err := h.sessions.Save(r.Context(), wiz.Session()); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, status, toBookingResponse(wiz))
}

// saveThenFail keeps the wizard's new stage and message before reporting err.
func (h *handlers) saveThenFail(w http.ResponseWriter, r *http.Request, wiz *booking.Wizard, err error) {
	if saveErr := h.sessions.Save(r.Context(), wiz.Session()); saveErr != nil {
		handleError(w, r, h.log, saveErr)
		return
	}
	handleError(w, r, h.log, err)
}
