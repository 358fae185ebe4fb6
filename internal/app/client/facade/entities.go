package facade

import (
	"context"

	"vetsync/internal/domain/entity"
)

type (
	Clients      = Facade[entity.Client, *entity.Client]
	Pets         = Facade[entity.Pet, *entity.Pet]
	Appointments = Facade[entity.Appointment, *entity.Appointment]
	SoapNotes    = Facade[entity.SoapNote, *entity.SoapNote]
	Admissions   = Facade[entity.Admission, *entity.Admission]
)

// Set — фасады всех типов сущностей.
type Set struct {
	Clients      *Clients
	Pets         *Pets
	Appointments *Appointments
	SoapNotes    *SoapNotes
	Admissions   *Admissions
}

func NewSet(d Deps) *Set {
	names := &names{store: d.Store}
	return &Set{
		Clients: newFacade[entity.Client](d, nil),
		Pets: newFacade[entity.Pet](d, func(ctx context.Context, p *entity.Pet) {
			p.OwnerName = names.client(ctx, p.OwnerID)
		}),
		Appointments: newFacade[entity.Appointment](d, func(ctx context.Context, a *entity.Appointment) {
			a.PetName = names.pet(ctx, a.PetID)
			a.ClientName = names.client(ctx, a.ClientID)
		}),
		SoapNotes: newFacade[entity.SoapNote](d, func(ctx context.Context, n *entity.SoapNote) {
			n.PetName = names.pet(ctx, n.PetID)
		}),
		Admissions: newFacade[entity.Admission](d, func(ctx context.Context, a *entity.Admission) {
			a.PetName = names.pet(ctx, a.PetID)
			a.ClientName = names.client(ctx, a.ClientID)
			// Предварительное значение до ответа сервера.
			a.TotalCharges = a.Total()
		}),
	}
}

// names подставляет отображаемые имена связанных записей из локального хранилища.
type names struct {
	store Store
}

func (n *names) client(ctx context.Context, ref entity.Ref) string {
	c, ok := lookup[entity.Client](ctx, n.store, entity.TypeClient, ref)
	if !ok {
		return ""
	}
	return c.FullName()
}

func (n *names) pet(ctx context.Context, ref entity.Ref) string {
	p, ok := lookup[entity.Pet](ctx, n.store, entity.TypePet, ref)
	if !ok {
		return ""
	}
	return p.Name
}

func lookup[T any](ctx context.Context, store Store, typ entity.Type, ref entity.Ref) (T, bool) {
	var zero T
	if ref == "" {
		return zero, false
	}
	rec, err := store.GetByID(ctx, typ, ref.String())
	if err != nil || rec == nil {
		return zero, false
	}
	v, err := entity.Decode[T](rec.Data)
	if err != nil {
		return zero, false
	}
	return v, true
}
