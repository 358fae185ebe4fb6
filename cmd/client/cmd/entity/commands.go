package entity

import (
	"strconv"

	"github.com/spf13/cobra"

	"vetsync/internal/app/client/facade"
	domain "vetsync/internal/domain/entity"
)

// Commands возвращает команды для всех типов записей клиники.
func Commands() []*cobra.Command {
	return []*cobra.Command{
		resource[domain.Client, *domain.Client]{
			use:     "client",
			aliases: []string{"clients"},
			pick:    func(s *facade.Set) *facade.Clients { return s.Clients },
			columns: []string{"ФАМИЛИЯ", "ИМЯ", "ТЕЛЕФОН"},
			row: func(c *domain.Client) []string {
				return []string{c.LastName, c.FirstName, c.Phone}
			},
		}.command(),
		resource[domain.Pet, *domain.Pet]{
			use:     "pet",
			aliases: []string{"pets"},
			pick:    func(s *facade.Set) *facade.Pets { return s.Pets },
			columns: []string{"КЛИЧКА", "ВИД", "ВЛАДЕЛЕЦ"},
			row: func(p *domain.Pet) []string {
				return []string{p.Name, p.Species, orRef(p.OwnerName, p.OwnerID)}
			},
		}.command(),
		resource[domain.Appointment, *domain.Appointment]{
			use:     "appointment",
			aliases: []string{"appointments", "appt"},
			pick:    func(s *facade.Set) *facade.Appointments { return s.Appointments },
			columns: []string{"НАЧАЛО", "ПАЦИЕНТ", "ВЛАДЕЛЕЦ", "СОСТОЯНИЕ"},
			row: func(a *domain.Appointment) []string {
				return []string{a.StartsAt, orRef(a.PetName, a.PetID), orRef(a.ClientName, a.ClientID), a.Status}
			},
		}.command(),
		resource[domain.SoapNote, *domain.SoapNote]{
			use:     "soap",
			aliases: []string{"soap-notes", "note"},
			pick:    func(s *facade.Set) *facade.SoapNotes { return s.SoapNotes },
			columns: []string{"ДАТА", "ПАЦИЕНТ", "ОЦЕНКА"},
			row: func(n *domain.SoapNote) []string {
				return []string{n.RecordedAt, orRef(n.PetName, n.PetID), truncate(n.Assessment, 40)}
			},
		}.command(),
		resource[domain.Admission, *domain.Admission]{
			use:     "admission",
			aliases: []string{"admissions"},
			pick:    func(s *facade.Set) *facade.Admissions { return s.Admissions },
			columns: []string{"ПОСТУПЛЕНИЕ", "ПАЦИЕНТ", "ПАЛАТА", "СОСТОЯНИЕ", "СУММА"},
			row: func(a *domain.Admission) []string {
				return []string{
					a.AdmittedAt,
					orRef(a.PetName, a.PetID),
					a.Ward,
					a.Status,
					strconv.FormatFloat(a.TotalCharges.Float64(), 'f', 2, 64),
				}
			},
		}.command(),
	}
}

// orRef показывает имя связанной записи, а без него её идентификатор.
func orRef(name string, ref domain.Ref) string {
	if name != "" {
		return name
	}
	return ref.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
