package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPayload = errors.New("invalid payload")

// Payload — типизированные поля сущности с фиксированной схемой для каждого типа.
type Payload interface {
	EntityType() Type
	Normalize() error
}

// Client — владелец животного.
type Client struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Address   string `json:"address,omitempty"`
}

func (Client) EntityType() Type { return TypeClient }

func (c *Client) Normalize() error {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Address = strings.TrimSpace(c.Address)
	if c.FirstName == "" && c.LastName == "" {
		return fmt.Errorf("%w: client name is required", ErrInvalidPayload)
	}
	return nil
}

// FullName — отображаемое имя клиента.
func (c Client) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type Pet struct {
	Name      string `json:"name"`
	Species   string `json:"species,omitempty"`
	Breed     string `json:"breed,omitempty"`
	Sex       string `json:"sex,omitempty"`
	BirthDate string `json:"birth_date,omitempty"`
	Weight    Number `json:"weight,omitempty"`
	OwnerID   Ref    `json:"owner_id"`
	OwnerName string `json:"owner_name,omitempty"`
}

func (Pet) EntityType() Type { return TypePet }

func (p *Pet) Normalize() error {
	p.Name = strings.TrimSpace(p.Name)
	p.Species = strings.ToLower(strings.TrimSpace(p.Species))
	p.Breed = strings.TrimSpace(p.Breed)
	p.Sex = strings.ToLower(strings.TrimSpace(p.Sex))
	if p.Name == "" {
		return fmt.Errorf("%w: pet name is required", ErrInvalidPayload)
	}
	if p.Weight < 0 {
		return fmt.Errorf("%w: negative weight", ErrInvalidPayload)
	}
	d, err := NormalizeDate(p.BirthDate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	p.BirthDate = d
	return nil
}

// Статусы приёма.
const (
	AppointmentScheduled = "scheduled"
	AppointmentConfirmed = "confirmed"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
	AppointmentNoShow    = "no_show"
)

type Appointment struct {
	PetID           Ref    `json:"pet_id"`
	ClientID        Ref    `json:"client_id"`
	VetID           Ref    `json:"vet_id,omitempty"`
	StartsAt        string `json:"starts_at"`
	DurationMinutes Number `json:"duration_minutes,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Status          string `json:"status"`
	PetName         string `json:"pet_name,omitempty"`
	ClientName      string `json:"client_name,omitempty"`
}

func (Appointment) EntityType() Type { return TypeAppointment }

func (a *Appointment) Normalize() error {
	a.Reason = strings.TrimSpace(a.Reason)
	a.Status = strings.ToLower(strings.TrimSpace(a.Status))
	if a.Status == "" {
		a.Status = AppointmentScheduled
	}
	switch a.Status {
	case AppointmentScheduled, AppointmentConfirmed, AppointmentCompleted, AppointmentCancelled, AppointmentNoShow:
	default:
		return fmt.Errorf("%w: unknown appointment status %q", ErrInvalidPayload, a.Status)
	}
	startsAt, err := NormalizeDateTime(a.StartsAt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	a.StartsAt = startsAt
	if a.DurationMinutes < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidPayload)
	}
	return nil
}

// SoapNote — запись осмотра (Subjective, Objective, Assessment, Plan).
type SoapNote struct {
	PetID         Ref    `json:"pet_id"`
	AppointmentID Ref    `json:"appointment_id,omitempty"`
	Subjective    string `json:"subjective,omitempty"`
	Objective     string `json:"objective,omitempty"`
	Assessment    string `json:"assessment,omitempty"`
	Plan          string `json:"plan,omitempty"`
	Temperature   Number `json:"temperature,omitempty"`
	HeartRate     Number `json:"heart_rate,omitempty"`
	Weight        Number `json:"weight,omitempty"`
	RecordedAt    string `json:"recorded_at"`
	PetName       string `json:"pet_name,omitempty"`
}

func (SoapNote) EntityType() Type { return TypeSoapNote }

func (n *SoapNote) Normalize() error {
	n.Subjective = strings.TrimSpace(n.Subjective)
	n.Objective = strings.TrimSpace(n.Objective)
	n.Assessment = strings.TrimSpace(n.Assessment)
	n.Plan = strings.TrimSpace(n.Plan)
	if n.PetID == "" {
		return fmt.Errorf("%w: pet is required", ErrInvalidPayload)
	}
	recordedAt, err := NormalizeDateTime(n.RecordedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	n.RecordedAt = recordedAt
	return nil
}

type Charge struct {
	Description string `json:"description"`
	Amount      Number `json:"amount"`
}

// Статусы госпитализации.
const (
	AdmissionActive     = "active"
	AdmissionDischarged = "discharged"
)

type Admission struct {
	PetID        Ref      `json:"pet_id"`
	ClientID     Ref      `json:"client_id"`
	AdmittedAt   string   `json:"admitted_at"`
	DischargedAt string   `json:"discharged_at,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	Ward         string   `json:"ward,omitempty"`
	Status       string   `json:"status"`
	Charges      []Charge `json:"charges,omitempty"`
	// TotalCharges вычисляется сервером.
	TotalCharges Number `json:"total_charges,omitempty"`
	PetName      string `json:"pet_name,omitempty"`
	ClientName   string `json:"client_name,omitempty"`
}

func (Admission) EntityType() Type { return TypeAdmission }

func (a *Admission) Normalize() error {
	a.Reason = strings.TrimSpace(a.Reason)
	a.Ward = strings.TrimSpace(a.Ward)
	a.Status = strings.ToLower(strings.TrimSpace(a.Status))
	if a.PetID == "" {
		return fmt.Errorf("%w: pet is required", ErrInvalidPayload)
	}
	var err error
	if a.AdmittedAt, err = NormalizeDateTime(a.AdmittedAt); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if a.DischargedAt, err = NormalizeDateTime(a.DischargedAt); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if a.Status == "" {
		a.Status = AdmissionActive
		if a.DischargedAt != "" {
			a.Status = AdmissionDischarged
		}
	}
	for i := range a.Charges {
		a.Charges[i].Description = strings.TrimSpace(a.Charges[i].Description)
		if a.Charges[i].Amount < 0 {
			return fmt.Errorf("%w: negative charge amount", ErrInvalidPayload)
		}
	}
	return nil
}

// Total суммирует начисления.
func (a Admission) Total() Number {
	var total Number
	for _, c := range a.Charges {
		total += c.Amount
	}
	return total
}

// Decode разбирает сохранённые данные в типизированную сущность.
func Decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, fmt.Errorf("%w: empty data", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return v, nil
}
