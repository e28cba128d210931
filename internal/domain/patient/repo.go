package patient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ehr/pms/internal/platform/docstore"
)

// Repository loads and saves the whole patient store at once.
type Repository interface {
	Load(ctx context.Context) (*Records, error)
	Save(ctx context.Context, records *Records) error
}

// documentIndent matches the layout of hand-maintained patient files.
const documentIndent = "    "

// DocumentRepo keeps the store as one JSON document in a docstore backend.
type DocumentRepo struct {
	backend docstore.Backend
}

func NewDocumentRepo(backend docstore.Backend) *DocumentRepo {
	return &DocumentRepo{backend: backend}
}

// Load returns the stored records. A document that was never written loads
// as an empty store.
func (r *DocumentRepo) Load(ctx context.Context) (*Records, error) {
	data, err := r.backend.Read(ctx)
	if errors.Is(err, docstore.ErrNotExist) {
		return NewRecords(), nil
	}
	if err != nil {
		return nil, r.fail(ctx, "failed to read patient store", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewRecords(), nil
	}

	records := NewRecords()
	if err := json.Unmarshal(data, records); err != nil {
		return nil, r.fail(ctx, "patient store is corrupt", err)
	}
	return records, nil
}

// Save replaces the stored document with records.
func (r *DocumentRepo) Save(ctx context.Context, records *Records) error {
	// A caller that has already given up must not see its change land later.
	if err := ctx.Err(); err != nil {
		return r.fail(ctx, "patient store write abandoned", err)
	}
	data, err := json.MarshalIndent(records, "", documentIndent)
	if err != nil {
		return r.fail(ctx, "failed to encode patient store", err)
	}
	if err := r.backend.Write(ctx, data); err != nil {
		return r.fail(ctx, "failed to write patient store", err)
	}
	return nil
}

func (r *DocumentRepo) fail(ctx context.Context, msg string, err error) error {
	zerolog.Ctx(ctx).Error().Err(err).Str("driver", r.backend.Driver()).Msg(msg)
	return storageError(msg, err)
}
