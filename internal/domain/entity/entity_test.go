package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTempID(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	id := NewTempID(now)

	assert.True(t, IsTempID(id))
	assert.Regexp(t, `^temp_1700000000000_[0-9a-f]{9}$`, id)
	assert.NotEqual(t, id, NewTempID(now))

	_, ok := ServerID(id)
	assert.False(t, ok)

	n, ok := ServerID("42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)
}

func TestRef_JSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Ref
	}{
		{name: "number", in: `42`, want: "42"},
		{name: "numeric string", in: `" 42 "`, want: "42"},
		{name: "temp id", in: `"temp_1_abc"`, want: "temp_1_abc"},
		{name: "null", in: `null`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Ref
			require.NoError(t, json.Unmarshal([]byte(tt.in), &r))
			assert.Equal(t, tt.want, r)
		})
	}

	out, err := json.Marshal(struct {
		A Ref `json:"a"`
		B Ref `json:"b"`
	}{A: "42", B: "temp_1_abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":42,"b":"temp_1_abc"}`, string(out))
}

func TestNumber_Coercion(t *testing.T) {
	var p Pet
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Барсик","weight":"4,5","owner_id":"7"}`), &p))
	assert.Equal(t, Number(4.5), p.Weight)
	assert.Equal(t, Ref("7"), p.OwnerID)

	var n Number
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &n))
}

func TestNormalizeDates(t *testing.T) {
	got, err := NormalizeDateTime("2024-03-05 14:30")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05T14:30:00Z", got)

	got, err = NormalizeDate("05.03.2024")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", got)

	_, err = NormalizeDateTime("вчера")
	assert.Error(t, err)
}

func TestPayload_Normalize(t *testing.T) {
	a := &Appointment{StartsAt: "2024-03-05T10:00", Status: " Cancelled "}
	require.NoError(t, a.Normalize())
	assert.Equal(t, AppointmentCancelled, a.Status)
	assert.Equal(t, "2024-03-05T10:00:00Z", a.StartsAt)

	assert.ErrorIs(t, (&Appointment{Status: "lost"}).Normalize(), ErrInvalidPayload)
	assert.ErrorIs(t, (&Pet{}).Normalize(), ErrInvalidPayload)

	adm := &Admission{PetID: "1", AdmittedAt: "2024-03-05", Charges: []Charge{{Amount: 10}, {Amount: 2.5}}}
	require.NoError(t, adm.Normalize())
	assert.Equal(t, AdmissionActive, adm.Status)
	assert.Equal(t, Number(12.5), adm.Total())
}

func TestRemapRefs(t *testing.T) {
	data := json.RawMessage(`{"name":"Рекс","owner_id":"temp_1_abc","pet_id":5}`)

	out, changed, err := RemapRefs(data, TypeClient, "temp_1_abc", "17")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.JSONEq(t, `{"name":"Рекс","owner_id":17,"pet_id":5}`, string(out))

	out, changed, err = RemapRefs(data, TypeClient, "temp_9_zzz", "18")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, data, out)
}

func TestRemapRefs_OnlyFieldsOfType(t *testing.T) {
	data := json.RawMessage(`{"pet_id":9,"client_id":9,"vet_id":9}`)

	tests := []struct {
		name string
		typ  Type
		want string
	}{
		{name: "pet", typ: TypePet, want: `{"pet_id":101,"client_id":9,"vet_id":9}`},
		{name: "client", typ: TypeClient, want: `{"pet_id":9,"client_id":101,"vet_id":9}`},
		{name: "unreferenced type", typ: TypeSoapNote, want: `{"pet_id":9,"client_id":9,"vet_id":9}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := RemapRefs(data, tt.typ, "9", "101")
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(out))
		})
	}
}

func TestMergeFields(t *testing.T) {
	out, err := MergeFields(json.RawMessage(`{"status":"scheduled","reason":"осмотр"}`), json.RawMessage(`{"status":"cancelled"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"cancelled","reason":"осмотр"}`, string(out))
}

func TestType_Validate(t *testing.T) {
	for _, typ := range AllTypes() {
		assert.NoError(t, typ.Validate())
		assert.NotEqual(t, "Неизвестный тип", typ.DisplayName())
	}
	assert.Error(t, Type("invoices").Validate())
}
