package patient

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// SortField names a sortable attribute.
type SortField string

const (
	SortByHeight SortField = "height"
	SortByWeight SortField = "weight"
	SortByBMI    SortField = "bmi"
)

// Order is a sort direction.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ParseSortField validates a sort_by value.
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(s); f {
	case SortByHeight, SortByWeight, SortByBMI:
		return f, nil
	}
	return "", invalidArgumentError("sort_by must be one of height, weight, bmi")
}

// ParseOrder validates an order value; empty means ascending.
func ParseOrder(s string) (Order, error) {
	switch o := Order(s); o {
	case "":
		return OrderAsc, nil
	case OrderAsc, OrderDesc:
		return o, nil
	}
	return "", invalidArgumentError("order must be asc or desc")
}

func (f SortField) value(p *Patient) float64 {
	switch f {
	case SortByHeight:
		return p.Height
	case SortByWeight:
		return p.Weight
	default:
		return p.BMI()
	}
}

// Service implements the patient operations. Every call reads the store
// afresh; mutating calls write it back in full.
type Service struct {
	repo Repository

	// mu serializes load-modify-save cycles within this process.
	mu sync.Mutex
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListPatients returns the store exactly as persisted, without derived fields.
func (s *Service) ListPatients(ctx context.Context) (*Records, error) {
	return s.repo.Load(ctx)
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	records, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	f, ok := records.Get(id)
	if !ok {
		return nil, notFoundError()
	}
	return storedPatient(id, f)
}

// CreatePatient stores p under p.ID. The store is left untouched when the ID
// is already taken.
func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if _, err := New(p.ID, p.Fields); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	if records.Has(p.ID) {
		return conflictError()
	}
	records.Put(p.ID, p.Fields)
	if err := s.repo.Save(ctx, records); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().Str("op", "create").Str("patient_id", p.ID).Msg("patient created")
	return nil
}

// UpdatePatient replaces every stored field of id with those of p. The key
// is always id; p.ID is validated but never used to re-key the record.
func (s *Service) UpdatePatient(ctx context.Context, id string, p *Patient) error {
	if _, err := New(p.ID, p.Fields); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	if !records.Has(id) {
		return notFoundError()
	}
	records.Put(id, p.Fields)
	if err := s.repo.Save(ctx, records); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().Str("op", "update").Str("patient_id", id).Msg("patient updated")
	return nil
}

func (s *Service) DeletePatient(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	if !records.Delete(id) {
		return notFoundError()
	}
	if err := s.repo.Save(ctx, records); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().Str("op", "delete").Str("patient_id", id).Msg("patient deleted")
	return nil
}

// SortPatients returns every record ordered by sortBy. The sort is stable:
// records with equal values keep their document order in either direction.
func (s *Service) SortPatients(ctx context.Context, sortBy, order string) ([]*Patient, error) {
	field, err := ParseSortField(sortBy)
	if err != nil {
		return nil, err
	}
	dir, err := ParseOrder(order)
	if err != nil {
		return nil, err
	}

	records, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	patients, err := allPatients(records)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(patients, func(i, j int) bool {
		a, b := field.value(patients[i]), field.value(patients[j])
		if dir == OrderDesc {
			return a > b
		}
		return a < b
	})
	return patients, nil
}

// CheckPatients builds a record for every stored entry and reports the IDs
// whose stored fields no longer validate.
func (s *Service) CheckPatients(ctx context.Context) ([]*Patient, map[string]error, error) {
	records, err := s.repo.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	var valid []*Patient
	invalid := make(map[string]error)
	records.Each(func(id string, f Fields) {
		p, err := New(id, f)
		if err != nil {
			invalid[id] = err
			return
		}
		valid = append(valid, p)
	})
	return valid, invalid, nil
}

func allPatients(records *Records) ([]*Patient, error) {
	patients := make([]*Patient, 0, records.Len())
	for _, id := range records.IDs() {
		f, _ := records.Get(id)
		p, err := storedPatient(id, f)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, nil
}

// storedPatient rebuilds a record from persisted fields. A stored entry that
// fails validation means the document was edited outside the service.
func storedPatient(id string, f Fields) (*Patient, error) {
	p, err := New(id, f)
	if err != nil {
		return nil, storageError("stored patient "+id+" is invalid", err)
	}
	return p, nil
}
