package model

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	// StatusCancelled is accepted on the wire but no operation produces it.
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Appointment is one recorded visitor attendance.
// UserName is a copy of the owner's display name taken at creation time and is not
// refreshed when the owner later renames themselves.
type Appointment struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	UserName     string `json:"userName,omitempty"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Neighborhood string `json:"neighborhood"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Church       string `json:"church"`
	Notes        string `json:"notes"`
	Status       Status `json:"status"`
	CreatedAt    int64  `json:"createdAt"`
}

// AppointmentFields are the form fields a volunteer submits.
type AppointmentFields struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Neighborhood string `json:"neighborhood"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Church       string `json:"church"`
	Notes        string `json:"notes"`
}

func (f AppointmentFields) Normalize() AppointmentFields {
	return AppointmentFields{
		Name:         strings.TrimSpace(f.Name),
		Phone:        strings.TrimSpace(f.Phone),
		Neighborhood: strings.TrimSpace(f.Neighborhood),
		Date:         strings.TrimSpace(f.Date),
		Time:         strings.TrimSpace(f.Time),
		Church:       strings.TrimSpace(f.Church),
		Notes:        strings.TrimSpace(f.Notes),
	}
}

func (f AppointmentFields) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if f.Phone == "" {
		return fmt.Errorf("phone is required")
	}
	if !IsChurch(f.Church) {
		return fmt.Errorf("unknown church %q", f.Church)
	}
	if !IsValidDate(f.Date) {
		return fmt.Errorf("invalid date %q", f.Date)
	}
	if !IsServiceTime(f.Time) {
		return fmt.Errorf("unknown service time %q", f.Time)
	}
	return nil
}

// AppointmentPatch is a partial update. Nil fields are left as they are.
type AppointmentPatch struct {
	Name         *string `json:"name,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Neighborhood *string `json:"neighborhood,omitempty"`
	Date         *string `json:"date,omitempty"`
	Time         *string `json:"time,omitempty"`
	Church       *string `json:"church,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	Status       *Status `json:"status,omitempty"`
}

// Validate checks only the fields that are present.
func (p AppointmentPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if p.Phone != nil && strings.TrimSpace(*p.Phone) == "" {
		return fmt.Errorf("phone cannot be empty")
	}
	if p.Church != nil && !IsChurch(strings.TrimSpace(*p.Church)) {
		return fmt.Errorf("unknown church %q", *p.Church)
	}
	if p.Date != nil && !IsValidDate(strings.TrimSpace(*p.Date)) {
		return fmt.Errorf("invalid date %q", *p.Date)
	}
	if p.Time != nil && !IsServiceTime(strings.TrimSpace(*p.Time)) {
		return fmt.Errorf("unknown service time %q", *p.Time)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("unknown status %q", *p.Status)
	}
	return nil
}

// Merge returns a copy of a with the present patch fields applied.
// Identity fields and status are the caller's concern.
func (p AppointmentPatch) Merge(a Appointment) Appointment {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&a.Name, p.Name)
	set(&a.Phone, p.Phone)
	set(&a.Neighborhood, p.Neighborhood)
	set(&a.Date, p.Date)
	set(&a.Time, p.Time)
	set(&a.Church, p.Church)
	set(&a.Notes, p.Notes)
	return a
}

// CloneAppointments copies the slice so callers cannot alias stored state.
func CloneAppointments(in []Appointment) []Appointment {
	out := make([]Appointment, len(in))
	copy(out, in)
	return out
}
