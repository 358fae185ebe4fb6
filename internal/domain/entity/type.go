package entity

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"
)

// Type — вид сущности клиники. Каждый тип хранится в своём разделе локального хранилища.
type Type string

const (
	TypeAppointment Type = "appointments"
	TypePet         Type = "pets"
	TypeClient      Type = "clients"
	TypeSoapNote    Type = "soap_notes"
	TypeAdmission   Type = "admissions"
)

// AllTypes возвращает типы в порядке зависимостей: владельцы раньше питомцев, питомцы раньше приёмов.
func AllTypes() []Type {
	return []Type{TypeClient, TypePet, TypeAppointment, TypeSoapNote, TypeAdmission}
}

func (Type) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type: "string",
		Enum: []any{
			string(TypeAppointment),
			string(TypePet),
			string(TypeClient),
			string(TypeSoapNote),
			string(TypeAdmission),
		},
		Description: "Тип сущности клиники",
		Examples:    []any{TypePet},
	}
}

// Validate проверяет, что тип известен.
func (t Type) Validate() error {
	switch t {
	case TypeAppointment, TypePet, TypeClient, TypeSoapNote, TypeAdmission:
		return nil
	}
	return fmt.Errorf("неверный тип сущности: %s", t)
}

func (t Type) String() string {
	return string(t)
}

// DisplayName возвращает человекочитаемое название типа.
func (t Type) DisplayName() string {
	switch t {
	case TypeAppointment:
		return "Приёмы"
	case TypePet:
		return "Питомцы"
	case TypeClient:
		return "Клиенты"
	case TypeSoapNote:
		return "SOAP-записи"
	case TypeAdmission:
		return "Госпитализации"
	default:
		return "Неизвестный тип"
	}
}
