package practice

import (
	"encoding/json"
	"fmt"

	"vetsync/internal/domain/entity"
)

// prepare проверяет данные по схеме типа и дополняет вычисляемые сервером поля.
func prepare(typ entity.Type, data json.RawMessage) (json.RawMessage, error) {
	switch typ {
	case entity.TypeClient:
		return normalized[entity.Client](data, nil)
	case entity.TypePet:
		return normalized[entity.Pet](data, nil)
	case entity.TypeAppointment:
		return normalized[entity.Appointment](data, nil)
	case entity.TypeSoapNote:
		return normalized[entity.SoapNote](data, nil)
	case entity.TypeAdmission:
		return normalized(data, func(a *entity.Admission) {
			a.TotalCharges = a.Total()
		})
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidData, typ)
}

func normalized[T any, P interface {
	*T
	entity.Payload
}](data json.RawMessage, derive func(P)) (json.RawMessage, error) {
	v, err := entity.Decode[T](data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	p := P(&v)
	if err := p.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if derive != nil {
		derive(p)
	}
	out, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return out, nil
}
