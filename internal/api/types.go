package api

import (
	"github.com/go-playground/validator/v10"

	"github.com/belle-designer/AppointmentSystem/internal/appointment"
	"github.com/belle-designer/AppointmentSystem/internal/booking"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("date", validateDate)
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := appointment.ParseDate(fl.Field().String())
	return err == nil
}

type CreateAppointmentRequest struct {
	DoctorID string `json:"doctor_id" validate:"required,uuid"`
	Date     string `json:"date" validate:"required,date"`
	Time     string `json:"time" validate:"required"`
	Notes    string `json:"notes" validate:"max=1000"`
}

type UpdateBookingRequest struct {
	Specialization *string `json:"specialization,omitempty"`
	DoctorID       *string `json:"doctor_id,omitempty" validate:"omitempty,uuid"`
	Date           *string `json:"date,omitempty" validate:"omitempty,date"`
	Time           *string `json:"time,omitempty"`
	Notes          *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type SubmitBookingRequest struct {
	Confirmed bool `json:"confirmed"`
}

type SlotsResponse struct {
	Times         []string `json:"times"`
	Holidays      []string `json:"holidays"`
	DailyCapacity int      `json:"daily_capacity"`
}

type AvailabilityResponse struct {
	Date  string                         `json:"date"`
	Slots []appointment.SlotAvailability `json:"slots"`
}

type AppointmentListResponse struct {
	Items  []appointment.AppointmentDetail `json:"items"`
	Limit  int                             `json:"limit"`
	Offset int                             `json:"offset"`
}

type BookingResponse struct {
	ID         string        `json:"id"`
	Stage      booking.Stage `json:"stage"`
	StageName  string        `json:"stage_name"`
	Draft      booking.Draft `json:"draft"`
	Message    string        `json:"message,omitempty"`
	CanAdvance bool          `json:"can_advance"`
}

func toBookingResponse(w *booking.Wizard) BookingResponse {
	return BookingResponse{
		ID:         w.ID().String(),
		Stage:      w.Stage(),
		StageName:  w.Stage().String(),
		Draft:      w.Draft(),
		Message:    w.Message(),
		CanAdvance: w.CanAdvance(),
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
