package patient

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Verdict values derived from BMI.
const (
	VerdictUnderweight = "Underweight"
	VerdictNormal      = "Normal"
	VerdictOverweight  = "Overweight"
	VerdictObese       = "Obese"
)

// Fields is the persisted part of a patient record. The ID is the store key
// and is never duplicated here; BMI and verdict are never stored.
type Fields struct {
	Name   string  `json:"name"`
	City   string  `json:"city"`
	Age    int     `json:"age"`
	Gender string  `json:"gender"`
	Height float64 `json:"height"` // centimeters
	Weight float64 `json:"weight"` // kilograms
}

// Patient is a validated record. Construct it with New or Payload.Record.
type Patient struct {
	ID string
	Fields
}

// New validates fields and returns the record for id.
func New(id string, f Fields) (*Patient, error) {
	var errs []FieldError
	if strings.TrimSpace(id) == "" {
		errs = append(errs, FieldError{Field: "id", Message: "must not be empty"})
	}
	errs = append(errs, f.Validate()...)
	if len(errs) > 0 {
		return nil, validationError(errs)
	}
	return &Patient{ID: id, Fields: f}, nil
}

// Validate reports every constraint f violates.
func (f Fields) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(f.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "must not be empty"})
	}
	if strings.TrimSpace(f.City) == "" {
		errs = append(errs, FieldError{Field: "city", Message: "must not be empty"})
	}
	if f.Age <= 0 {
		errs = append(errs, FieldError{Field: "age", Message: "must be greater than 0"})
	}
	if !(f.Height > 0) {
		errs = append(errs, FieldError{Field: "height", Message: "must be greater than 0"})
	}
	if !(f.Weight > 0) {
		errs = append(errs, FieldError{Field: "weight", Message: "must be greater than 0"})
	}
	return errs
}

// BMI is weight / (height in meters)^2, rounded to two decimals. Rounding
// works on the exact binary value with ties to even.
func BMI(heightCM, weightKG float64) float64 {
	m := heightCM / 100
	return round2(weightKG / (m * m))
}

func round2(x float64) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 2, 64), 64)
	return v
}

// VerdictFor classifies a BMI value.
func VerdictFor(bmi float64) string {
	switch {
	case bmi >= 30:
		return VerdictObese
	case bmi >= 25:
		return VerdictOverweight
	case bmi >= 18.5:
		return VerdictNormal
	default:
		return VerdictUnderweight
	}
}

// BMI is computed from the current height and weight on every call.
func (p *Patient) BMI() float64 { return BMI(p.Height, p.Weight) }

func (p *Patient) Verdict() string { return VerdictFor(p.BMI()) }

type patientJSON struct {
	ID string `json:"id"`
	Fields
	BMI     float64 `json:"bmi"`
	Verdict string  `json:"verdict"`
}

// MarshalJSON emits the stored fields together with the derived ones.
func (p Patient) MarshalJSON() ([]byte, error) {
	bmi := p.BMI()
	return json.Marshal(patientJSON{ID: p.ID, Fields: p.Fields, BMI: bmi, Verdict: VerdictFor(bmi)})
}

// Payload is a create or update request body. Pointer fields distinguish an
// absent field from a zero value.
type Payload struct {
	ID     *string  `json:"id"`
	Name   *string  `json:"name"`
	City   *string  `json:"city"`
	Age    *int     `json:"age"`
	Gender *string  `json:"gender"`
	Height *float64 `json:"height"`
	Weight *float64 `json:"weight"`
}

// DecodePayload reads a JSON payload from r. Malformed JSON and fields of
// the wrong type are reported as validation errors. Field names are matched
// exactly; keys differing only in case are ignored.
func DecodePayload(r io.Reader) (Payload, error) {
	var p Payload
	body, err := io.ReadAll(r)
	if err != nil {
		e := validationError([]FieldError{{Field: "body", Message: "could not read request body"}})
		e.Err = err
		return p, e
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return p, validationError([]FieldError{{Field: "body", Message: "field required"}})
	}
	if !gjson.ValidBytes(body) {
		return p, validationError([]FieldError{{Field: "body", Message: "invalid JSON"}})
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return p, validationError([]FieldError{{Field: "body", Message: "must be an object"}})
	}

	var errs []FieldError
	decode := func(name string, dst interface{}, typeName string) {
		v := doc.Get(name)
		if !v.Exists() || v.Type == gjson.Null {
			return
		}
		if err := json.Unmarshal([]byte(v.Raw), dst); err != nil {
			errs = append(errs, FieldError{Field: name, Message: "must be " + typeName})
		}
	}
	decode("id", &p.ID, "a string")
	decode("name", &p.Name, "a string")
	decode("city", &p.City, "a string")
	decode("age", &p.Age, "an integer")
	decode("gender", &p.Gender, "a string")
	decode("height", &p.Height, "a number")
	decode("weight", &p.Weight, "a number")
	if len(errs) > 0 {
		return Payload{}, validationError(errs)
	}
	return p, nil
}

// Record checks that every field is present and valid and builds the record.
func (p Payload) Record() (*Patient, error) {
	var missing []FieldError
	require := func(name string, present bool) {
		if !present {
			missing = append(missing, FieldError{Field: name, Message: "field required"})
		}
	}
	require("id", p.ID != nil)
	require("name", p.Name != nil)
	require("city", p.City != nil)
	require("age", p.Age != nil)
	require("gender", p.Gender != nil)
	require("height", p.Height != nil)
	require("weight", p.Weight != nil)
	if len(missing) > 0 {
		return nil, validationError(missing)
	}

	return New(*p.ID, Fields{
		Name:   *p.Name,
		City:   *p.City,
		Age:    *p.Age,
		Gender: *p.Gender,
		Height: *p.Height,
		Weight: *p.Weight,
	})
}
