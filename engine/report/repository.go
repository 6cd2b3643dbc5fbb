package report

import (
	"fmt"

	"github.com/centinela-gamma/centinela/engine/docstore"
	"github.com/centinela-gamma/centinela/engine/domain"
)

// Repository loads and saves reports and collections through a docstore.
type Repository struct {
	store *docstore.Store
}

// NewRepository wraps store.
func NewRepository(store *docstore.Store) *Repository {
	return &Repository{store: store}
}

// LoadLatestReport returns the newest report. It wraps domain.ErrNotFound
// when no report has been written yet.
func (r *Repository) LoadLatestReport() (Report, error) {
	var rep Report
	if _, err := r.store.LoadLatest(docstore.KindReport, &rep); err != nil {
		return Report{}, fmt.Errorf("load latest report: %w", err)
	}
	return rep, nil
}

// LoadLatestCollection returns the newest collection document and its file
// info.
func (r *Repository) LoadLatestCollection() (Input, error) {
	var c domain.Collection
	fi, err := r.store.LoadLatest(docstore.KindCollection, &c)
	if err != nil {
		return Input{}, fmt.Errorf("load latest collection: %w", err)
	}
	return Input{Collection: c, File: fi}, nil
}

// SaveReport persists rep.
func (r *Repository) SaveReport(rep Report) (docstore.FileInfo, error) {
	return r.store.Save(docstore.KindReport, rep)
}

// SaveCollection persists c.
func (r *Repository) SaveCollection(c domain.Collection) (docstore.FileInfo, error) {
	return r.store.Save(docstore.KindCollection, c)
}
