package schedule

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Legacy clients send appointment records in several shapes: nested actor
// objects ({"patient":{"id":...}}), flat camelCase ("patientId") or flat
// snake_case ("patient_id"), and half a dozen date encodings. This adapter
// maps any accepted shape into the canonical record in one place, with an
// explicit precedence order per field, instead of fallback chains scattered
// across call sites.
//
// Field precedence (first present wins):
//
//	patient:  patient.id, patientId, patient_id
//	doctor:   doctor.id, doctorId, doctor_id, medecin.id, medecin_id
//	start:    startDateTime, start_date_time, dateTime, date, start
//	type:     appointmentType, appointment_type, type
//	case:     caseType, case_type, case
//	notes:    notes, note, comment
var (
	patientKeys = []string{"patientId", "patient_id"}
	doctorKeys  = []string{"doctorId", "doctor_id", "medecin_id"}
	startKeys   = []string{"startDateTime", "start_date_time", "dateTime", "date", "start"}
	typeKeys    = []string{"appointmentType", "appointment_type", "type"}
	caseKeys    = []string{"caseType", "case_type", "case"}
	notesKeys   = []string{"notes", "note", "comment"}
)

// AppointmentRecord is the canonical decoded form of a legacy payload. Start
// has already passed strict normalization; id fields are resolved through the
// precedence tables above.
type AppointmentRecord struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Start     json.RawMessage // fed to NormalizeStrict by the caller
	Type      AppointmentType
	Case      CaseType
	Notes     *string
}

// DecodeLegacyAppointment normalizes a heterogeneous appointment payload.
// Missing patient or doctor references are an error here, never a sentinel
// value; the old "-1 means unknown" convention does not survive the boundary.
func DecodeLegacyAppointment(raw []byte) (*AppointmentRecord, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: malformed appointment payload: %v", ErrValidation, err)
	}

	rec := &AppointmentRecord{}

	patientID, err := resolveID(obj, "patient", patientKeys)
	if err != nil {
		return nil, err
	}
	rec.PatientID = patientID

	doctorID, err := resolveID(obj, "doctor", doctorKeys)
	if err != nil {
		if nested, nestedErr := resolveNestedID(obj, "medecin"); nestedErr == nil {
			doctorID = nested
		} else {
			return nil, err
		}
	}
	rec.DoctorID = doctorID

	for _, k := range startKeys {
		if v, ok := obj[k]; ok {
			rec.Start = v
			break
		}
	}
	if rec.Start == nil {
		return nil, fmt.Errorf("%w: appointment payload has no start time", ErrValidation)
	}

	if s, ok := firstString(obj, typeKeys); ok {
		rec.Type = AppointmentType(strings.ToUpper(s))
	}
	if s, ok := firstString(obj, caseKeys); ok {
		rec.Case = CaseType(strings.ToUpper(s))
	}
	if s, ok := firstString(obj, notesKeys); ok && s != "" {
		rec.Notes = &s
	}

	return rec, nil
}

// resolveID tries the nested object form first, then the flat keys in order.
func resolveID(obj map[string]json.RawMessage, nested string, flat []string) (uuid.UUID, error) {
	if id, err := resolveNestedID(obj, nested); err == nil {
		return id, nil
	}
	for _, k := range flat {
		if v, ok := obj[k]; ok {
			return parseUUIDValue(v, k)
		}
	}
	return uuid.Nil, fmt.Errorf("%w: appointment payload has no %s reference", ErrValidation, nested)
}

func resolveNestedID(obj map[string]json.RawMessage, key string) (uuid.UUID, error) {
	v, ok := obj[key]
	if !ok {
		return uuid.Nil, fmt.Errorf("no nested %s", key)
	}
	var inner struct {
		ID *uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(v, &inner); err != nil || inner.ID == nil {
		return uuid.Nil, fmt.Errorf("nested %s has no id", key)
	}
	return *inner.ID, nil
}

func parseUUIDValue(raw json.RawMessage, key string) (uuid.UUID, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a string id", ErrValidation, key)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a valid uuid", ErrValidation, key)
	}
	return id, nil
}

func firstString(obj map[string]json.RawMessage, keys []string) (string, bool) {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s, true
		}
	}
	return "", false
}
