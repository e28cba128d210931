package patient

import (
	"net/http"

	"github.com/ehr/pms/internal/platform/openapi"
)

// DescribeRoutes adds the operations and schemas served by RegisterRoutes to g.
func DescribeRoutes(g *openapi.Generator) {
	idParam := []openapi.Param{{Name: "id", In: "path", Description: "Patient ID, e.g. P001"}}
	notFound := openapi.Response{Description: "Patient not found", Schema: "ErrorResponse"}
	invalid := openapi.Response{Description: "Validation error", Schema: "ErrorResponse"}

	g.AddOperations(
		openapi.Operation{
			Method:      http.MethodGet,
			Path:        "/",
			OperationID: "home",
			Tag:         "meta",
			Summary:     "Service liveness message",
			Responses: map[int]openapi.Response{
				200: {Description: "Running", Schema: "Message"},
			},
		},
		openapi.Operation{
			Method:      http.MethodGet,
			Path:        "/about",
			OperationID: "about",
			Tag:         "meta",
			Summary:     "Service description",
			Responses: map[int]openapi.Response{
				200: {Description: "About", Schema: "Message"},
			},
		},
		openapi.Operation{
			Method:      http.MethodGet,
			Path:        "/view",
			OperationID: "listPatients",
			Tag:         "patients",
			Summary:     "All stored patients keyed by ID",
			Responses: map[int]openapi.Response{
				200: {Description: "Stored patients", Schema: "PatientList"},
				500: {Description: "Store unreadable", Schema: "ErrorResponse"},
			},
		},
		openapi.Operation{
			Method:      http.MethodGet,
			Path:        "/patient/:id",
			OperationID: "getPatient",
			Tag:         "patients",
			Summary:     "One patient with computed BMI and verdict",
			Params:      idParam,
			Responses: map[int]openapi.Response{
				200: {Description: "Patient", Schema: "Patient"},
				404: notFound,
			},
		},
		openapi.Operation{
			Method:      http.MethodGet,
			Path:        "/sort",
			OperationID: "sortPatients",
			Tag:         "patients",
			Summary:     "Patients ordered by height, weight or BMI",
			Params: []openapi.Param{
				{Name: "sort_by", In: "query", Required: true, Enum: []string{"height", "weight", "bmi"}},
				{Name: "order", In: "query", Enum: []string{"asc", "desc"}, Description: "Defaults to asc"},
			},
			Responses: map[int]openapi.Response{
				200: {Description: "Sorted patients", Schema: "Patient", Array: true},
				400: {Description: "Invalid sort_by or order", Schema: "ErrorResponse"},
			},
		},
		openapi.Operation{
			Method:      http.MethodPost,
			Path:        "/create",
			OperationID: "createPatient",
			Tag:         "patients",
			Summary:     "Create a patient",
			RequestBody: "PatientInput",
			Responses: map[int]openapi.Response{
				201: {Description: "Created", Schema: "Message"},
				400: {Description: "Patient already exists", Schema: "ErrorResponse"},
				422: invalid,
			},
		},
		openapi.Operation{
			Method:      http.MethodPut,
			Path:        "/update/:id",
			OperationID: "updatePatient",
			Tag:         "patients",
			Summary:     "Replace a patient's fields",
			Params:      idParam,
			RequestBody: "PatientInput",
			Responses: map[int]openapi.Response{
				200: {Description: "Updated", Schema: "Message"},
				404: notFound,
				422: invalid,
			},
		},
		openapi.Operation{
			Method:      http.MethodDelete,
			Path:        "/delete/:id",
			OperationID: "deletePatient",
			Tag:         "patients",
			Summary:     "Delete a patient",
			Params:      idParam,
			Responses: map[int]openapi.Response{
				200: {Description: "Deleted", Schema: "Message"},
				404: notFound,
			},
		},
	)

	fields := map[string]interface{}{
		"name":   prop("string", "Name of the patient"),
		"city":   prop("string", "City where the patient lives"),
		"age":    map[string]interface{}{"type": "integer", "minimum": 1},
		"gender": prop("string", "Gender of the patient"),
		"height": map[string]interface{}{"type": "number", "exclusiveMinimum": true, "minimum": 0, "description": "Height in centimeters"},
		"weight": map[string]interface{}{"type": "number", "exclusiveMinimum": true, "minimum": 0, "description": "Weight in kilograms"},
	}
	fieldNames := []string{"name", "city", "age", "gender", "height", "weight"}

	g.AddSchema("PatientFields", object(fields, fieldNames))
	g.AddSchema("PatientInput", object(with(fields, map[string]interface{}{
		"id": prop("string", "ID of the patient"),
	}), append([]string{"id"}, fieldNames...)))
	g.AddSchema("Patient", object(with(fields, map[string]interface{}{
		"id":      prop("string", "ID of the patient"),
		"bmi":     map[string]interface{}{"type": "number", "readOnly": true},
		"verdict": map[string]interface{}{"type": "string", "readOnly": true, "enum": []string{VerdictUnderweight, VerdictNormal, VerdictOverweight, VerdictObese}},
	}), append([]string{"id"}, fieldNames...)))
	g.AddSchema("PatientList", map[string]interface{}{
		"type":                 "object",
		"additionalProperties": map[string]interface{}{"$ref": "#/components/schemas/PatientFields"},
	})
	g.AddSchema("Message", object(map[string]interface{}{
		"message":    prop("string", ""),
		"patient_id": prop("string", "Set on create"),
	}, []string{"message"}))
	g.AddSchema("ErrorResponse", object(map[string]interface{}{
		"kind":   map[string]interface{}{"type": "string", "enum": []string{string(KindValidation), string(KindNotFound), string(KindConflict), string(KindInvalidArgument), string(KindStorage)}},
		"detail": prop("string", ""),
		"errors": map[string]interface{}{
			"type": "array",
			"items": object(map[string]interface{}{
				"field":   prop("string", ""),
				"message": prop("string", ""),
			}, []string{"field", "message"}),
		},
	}, []string{"kind", "detail"}))
}

func prop(typ, desc string) map[string]interface{} {
	p := map[string]interface{}{"type": typ}
	if desc != "" {
		p["description"] = desc
	}
	return p
}

func object(props map[string]interface{}, required []string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func with(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
