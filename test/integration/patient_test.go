package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/ehr/pms/internal/domain/patient"
)

func TestPatientCRUD(t *testing.T) {
	for _, f := range backends() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			svc := newService(f.open(t))

			t.Run("Create", func(t *testing.T) {
				createTestPatient(t, ctx, svc, "P001", 175, 70)

				got, err := svc.GetPatient(ctx, "P001")
				if err != nil {
					t.Fatalf("GetPatient: %v", err)
				}
				if got.BMI() != 22.86 || got.Verdict() != patient.VerdictNormal {
					t.Errorf("derived values = %v %s", got.BMI(), got.Verdict())
				}
			})

			t.Run("Duplicate", func(t *testing.T) {
				p, _ := patient.New("P001", patient.Fields{Name: "Other", City: "Goa", Age: 40, Gender: "Male", Height: 160, Weight: 60})
				err := svc.CreatePatient(ctx, p)
				if !errors.Is(err, patient.ErrConflict) {
					t.Fatalf("expected conflict, got %v", err)
				}
			})

			t.Run("Update", func(t *testing.T) {
				p, _ := patient.New("P001", patient.Fields{Name: "Patient P001", City: "Mumbai", Age: 31, Gender: "Female", Height: 175, Weight: 95})
				if err := svc.UpdatePatient(ctx, "P001", p); err != nil {
					t.Fatalf("UpdatePatient: %v", err)
				}
				got, err := svc.GetPatient(ctx, "P001")
				if err != nil {
					t.Fatalf("GetPatient: %v", err)
				}
				if got.City != "Mumbai" || got.Verdict() != patient.VerdictObese {
					t.Errorf("update not persisted: %+v", got)
				}
			})

			t.Run("Delete", func(t *testing.T) {
				if err := svc.DeletePatient(ctx, "P001"); err != nil {
					t.Fatalf("DeletePatient: %v", err)
				}
				if _, err := svc.GetPatient(ctx, "P001"); !errors.Is(err, patient.ErrNotFound) {
					t.Fatalf("expected not found after delete, got %v", err)
				}
			})
		})
	}
}

func TestPatientOrderSurvivesReload(t *testing.T) {
	for _, f := range backends() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			backend := f.open(t)
			svc := newService(backend)

			for _, id := range []string{"P003", "P001", "P002"} {
				createTestPatient(t, ctx, svc, id, 170, 65)
			}

			// a fresh service sees the document exactly as written
			records, err := newService(backend).ListPatients(ctx)
			if err != nil {
				t.Fatalf("ListPatients: %v", err)
			}
			ids := records.IDs()
			if len(ids) != 3 || ids[0] != "P003" || ids[1] != "P001" || ids[2] != "P002" {
				t.Errorf("document order = %v, want [P003 P001 P002]", ids)
			}

			// equal weights keep document order in both directions
			for _, order := range []string{"asc", "desc"} {
				sorted, err := svc.SortPatients(ctx, "weight", order)
				if err != nil {
					t.Fatalf("SortPatients: %v", err)
				}
				if sorted[0].ID != "P003" || sorted[2].ID != "P002" {
					t.Errorf("%s: ties reordered: %s %s %s", order, sorted[0].ID, sorted[1].ID, sorted[2].ID)
				}
			}
		})
	}
}

func TestPatientSortByBMI(t *testing.T) {
	for _, f := range backends() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			svc := newService(f.open(t))

			createTestPatient(t, ctx, svc, "A", 200, 72)
			createTestPatient(t, ctx, svc, "B", 200, 124)
			createTestPatient(t, ctx, svc, "C", 200, 96)

			sorted, err := svc.SortPatients(ctx, "bmi", "desc")
			if err != nil {
				t.Fatalf("SortPatients: %v", err)
			}
			var bmis []float64
			for _, p := range sorted {
				bmis = append(bmis, p.BMI())
			}
			if len(bmis) != 3 || bmis[0] != 31 || bmis[1] != 24 || bmis[2] != 18 {
				t.Errorf("bmi desc = %v, want [31 24 18]", bmis)
			}
		})
	}
}
