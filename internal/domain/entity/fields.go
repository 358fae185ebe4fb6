package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

type refField struct {
	name string
	// target — тип сущности, на которую ссылается поле; пусто для ссылок вне синхронизации.
	target Type
}

// Поля, содержащие ссылки на другие сущности.
var refFields = []refField{
	{name: "owner_id", target: TypeClient},
	{name: "pet_id", target: TypePet},
	{name: "client_id", target: TypeClient},
	{name: "appointment_id", target: TypeAppointment},
	{name: "vet_id"},
}

// RemapRefs заменяет ссылки oldID на newID в полях документа, ссылающихся на сущности typ.
// Поля, указывающие на другие типы, не трогаются, даже если значение совпадает.
func RemapRefs(data json.RawMessage, typ Type, oldID, newID string) (json.RawMessage, bool, error) {
	if len(data) == 0 {
		return data, false, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, false, fmt.Errorf("decode fields: %w", err)
	}

	changed := false
	for _, f := range refFields {
		if f.target != typ {
			continue
		}
		raw, ok := fields[f.name]
		if !ok {
			continue
		}
		var ref Ref
		if err := json.Unmarshal(raw, &ref); err != nil || string(ref) != oldID {
			continue
		}
		enc, err := json.Marshal(Ref(newID))
		if err != nil {
			return nil, false, err
		}
		fields[f.name] = enc
		changed = true
	}
	if !changed {
		return data, false, nil
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, false, fmt.Errorf("encode fields: %w", err)
	}
	return out, true, nil
}

// TempRefs возвращает временные id из полей-ссылок документа.
func TempRefs(data json.RawMessage) []string {
	if len(data) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}

	var out []string
	for _, f := range refFields {
		raw, ok := fields[f.name]
		if !ok {
			continue
		}
		var ref Ref
		if err := json.Unmarshal(raw, &ref); err == nil && IsTempID(string(ref)) {
			out = append(out, string(ref))
		}
	}
	return out
}

// MergeFields накладывает поля partial поверх base. Слияние только верхнего уровня:
// вложенные объекты заменяются целиком.
func MergeFields(base, partial json.RawMessage) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &fields); err != nil {
			return nil, fmt.Errorf("decode base: %w", err)
		}
	}
	if len(partial) > 0 {
		var patch map[string]json.RawMessage
		if err := json.Unmarshal(partial, &patch); err != nil {
			return nil, fmt.Errorf("decode partial: %w", err)
		}
		for k, v := range patch {
			fields[k] = v
		}
	}
	return json.Marshal(fields)
}

// RemoteRecord — каноническая запись удалённого сервиса.
type RemoteRecord struct {
	ID        int64           `json:"id"`
	Type      Type            `json:"type"`
	ClientID  string          `json:"client_id,omitempty"`
	Data      json.RawMessage `json:"data"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Deleted   bool            `json:"deleted,omitempty"`
}

// Key — идентификатор записи в локальном хранилище.
func (r RemoteRecord) Key() string {
	return FormatID(r.ID)
}
