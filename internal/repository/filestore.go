package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hackvento/portal-api/internal/models"
	"github.com/hackvento/portal-api/pkg/storage"
)

// fileDocument is the on-disk shape of the file-backed store.
type fileDocument struct {
	ProblemStatements map[string]models.ProblemStatement `json:"problemStatements"`
	Registrations     map[string]models.Registration     `json:"registrations"`
}

// FileStore is the file-backed storage backend. It implements both Catalog
// and Ledger behind a single mutex: the lock is the serialization point that
// makes the allocation check-and-commit sequence indivisible. State is
// persisted with an atomic replace after every mutation.
type FileStore struct {
	mu   sync.RWMutex
	doc  fileDocument
	file *storage.DocumentFile
}

// NewFileStore loads (or initialises) the document at path.
func NewFileStore(path string) (*FileStore, error) {
	file, err := storage.NewDocumentFile(path)
	if err != nil {
		return nil, err
	}
	s := &FileStore{
		doc: fileDocument{
			ProblemStatements: make(map[string]models.ProblemStatement),
			Registrations:     make(map[string]models.Registration),
		},
		file: file,
	}
	if _, err := file.Load(&s.doc); err != nil {
		return nil, fmt.Errorf("load file store: %w", err)
	}
	if s.doc.ProblemStatements == nil {
		s.doc.ProblemStatements = make(map[string]models.ProblemStatement)
	}
	if s.doc.Registrations == nil {
		s.doc.Registrations = make(map[string]models.Registration)
	}
	return s, nil
}

func (s *FileStore) persist() error {
	if err := s.file.Save(s.doc); err != nil {
		return fmt.Errorf("persist file store: %w", err)
	}
	return nil
}

// List returns all problem statements with live-derived counts.
func (s *FileStore) List(ctx context.Context) ([]models.ProblemStatementView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(s.doc.ProblemStatements))
	for _, reg := range s.doc.Registrations {
		counts[reg.ProblemStatementID]++
	}

	views := make([]models.ProblemStatementView, 0, len(s.doc.ProblemStatements))
	for _, ps := range s.doc.ProblemStatements {
		view := models.ProblemStatementView{
			ProblemStatement: ps,
			SelectedCount:    counts[ps.ID],
		}
		view.IsAvailable = view.SelectedCount < view.MaxSelections
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].ID < views[j].ID
		}
		return views[i].CreatedAt.Before(views[j].CreatedAt)
	})
	return views, nil
}

// FindByID returns a problem statement by its ID.
func (s *FileStore) FindByID(ctx context.Context, id string) (*models.ProblemStatement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps, ok := s.doc.ProblemStatements[id]
	if !ok {
		return nil, ErrProblemNotFound
	}
	return &ps, nil
}

// Create inserts a new problem statement, rejecting duplicate IDs.
func (s *FileStore) Create(ctx context.Context, ps *models.ProblemStatement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.ProblemStatements[ps.ID]; ok {
		return ErrAlreadyExists
	}
	ps.ClampMaxSelections()
	if ps.CreatedAt.IsZero() {
		ps.CreatedAt = time.Now().UTC()
	}
	if ps.Technologies == nil {
		ps.Technologies = []string{}
	}
	s.doc.ProblemStatements[ps.ID] = *ps
	if err := s.persist(); err != nil {
		delete(s.doc.ProblemStatements, ps.ID)
		return err
	}
	return nil
}

// Update merges only the provided fields and returns the changed row count.
func (s *FileStore) Update(ctx context.Context, id string, update models.ProblemStatementUpdate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.doc.ProblemStatements[id]
	if !ok || update.Empty() {
		return 0, nil
	}
	prev := ps
	if update.Title != nil {
		ps.Title = *update.Title
	}
	if update.Description != nil {
		ps.Description = *update.Description
	}
	if update.MaxSelections != nil {
		ps.MaxSelections = *update.MaxSelections
		ps.ClampMaxSelections()
	}
	if update.Category != nil {
		ps.Category = update.Category
	}
	if update.Difficulty != nil {
		ps.Difficulty = update.Difficulty
	}
	if update.Technologies != nil {
		ps.Technologies = *update.Technologies
	}
	s.doc.ProblemStatements[id] = ps
	if err := s.persist(); err != nil {
		s.doc.ProblemStatements[id] = prev
		return 0, err
	}
	return 1, nil
}

// Delete removes a problem statement and cascades to its registrations.
func (s *FileStore) Delete(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.ProblemStatements[id]; !ok {
		return 0, nil
	}
	removed := make(map[string]models.Registration)
	for team, reg := range s.doc.Registrations {
		if reg.ProblemStatementID == id {
			removed[team] = reg
			delete(s.doc.Registrations, team)
		}
	}
	prev := s.doc.ProblemStatements[id]
	delete(s.doc.ProblemStatements, id)
	if err := s.persist(); err != nil {
		s.doc.ProblemStatements[id] = prev
		for team, reg := range removed {
			s.doc.Registrations[team] = reg
		}
		return 0, err
	}
	return 1, nil
}

// BulkImport inserts statements whose IDs are not already present.
func (s *FileStore) BulkImport(ctx context.Context, statements []models.ProblemStatement) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := make([]string, 0, len(statements))
	for i := range statements {
		ps := statements[i]
		if _, ok := s.doc.ProblemStatements[ps.ID]; ok {
			continue
		}
		ps.ClampMaxSelections()
		if ps.CreatedAt.IsZero() {
			ps.CreatedAt = time.Now().UTC()
		}
		if ps.Technologies == nil {
			ps.Technologies = []string{}
		}
		s.doc.ProblemStatements[ps.ID] = ps
		inserted = append(inserted, ps.ID)
	}
	if len(inserted) == 0 {
		return 0, nil
	}
	if err := s.persist(); err != nil {
		for _, id := range inserted {
			delete(s.doc.ProblemStatements, id)
		}
		return 0, err
	}
	return len(inserted), nil
}

// Allocate atomically validates and commits a registration under the store
// lock. Precondition order: duplicate team, unknown problem, capacity.
func (s *FileStore) Allocate(ctx context.Context, reg *models.Registration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Registrations[reg.TeamNumber]; ok {
		return ErrDuplicateTeam
	}
	ps, ok := s.doc.ProblemStatements[reg.ProblemStatementID]
	if !ok {
		return ErrProblemNotFound
	}
	selected := 0
	for _, existing := range s.doc.Registrations {
		if existing.ProblemStatementID == reg.ProblemStatementID {
			selected++
		}
	}
	if selected >= ps.MaxSelections {
		return ErrProblemFull
	}

	if reg.RegistrationDateTime.IsZero() {
		reg.RegistrationDateTime = time.Now().UTC()
	}
	s.doc.Registrations[reg.TeamNumber] = *reg
	if err := s.persist(); err != nil {
		delete(s.doc.Registrations, reg.TeamNumber)
		return err
	}
	return nil
}

// DeleteByTeam removes a registration and returns the deleted row count.
func (s *FileStore) DeleteByTeam(ctx context.Context, teamNumber string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.doc.Registrations[teamNumber]
	if !ok {
		return 0, nil
	}
	delete(s.doc.Registrations, teamNumber)
	if err := s.persist(); err != nil {
		s.doc.Registrations[teamNumber] = reg
		return 0, err
	}
	return 1, nil
}

// Ledger returns the ledger facade over the shared store state. The facade
// exists because Catalog and Ledger both expose a List operation.
func (s *FileStore) Ledger() *FileLedger {
	return &FileLedger{store: s}
}

// FileLedger adapts FileStore to the Ledger interface.
type FileLedger struct {
	store *FileStore
}

// Allocate delegates to the store's atomic allocation.
func (l *FileLedger) Allocate(ctx context.Context, reg *models.Registration) error {
	return l.store.Allocate(ctx, reg)
}

// DeleteByTeam delegates to the store.
func (l *FileLedger) DeleteByTeam(ctx context.Context, teamNumber string) (int64, error) {
	return l.store.DeleteByTeam(ctx, teamNumber)
}

// List delegates to the store's registration listing.
func (l *FileLedger) List(ctx context.Context) ([]models.RegistrationDetail, error) {
	return l.store.ListRegistrations(ctx)
}

// ListRegistrations returns all registrations joined with problem statement
// display fields; the join tolerates statements deleted since registration.
func (s *FileStore) ListRegistrations(ctx context.Context) ([]models.RegistrationDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	details := make([]models.RegistrationDetail, 0, len(s.doc.Registrations))
	for _, reg := range s.doc.Registrations {
		detail := models.RegistrationDetail{Registration: reg}
		if ps, ok := s.doc.ProblemStatements[reg.ProblemStatementID]; ok {
			title := ps.Title
			detail.ProblemTitle = &title
			detail.ProblemCategory = ps.Category
			detail.ProblemDifficulty = ps.Difficulty
		}
		details = append(details, detail)
	}
	sort.Slice(details, func(i, j int) bool {
		if details[i].RegistrationDateTime.Equal(details[j].RegistrationDateTime) {
			return details[i].TeamNumber < details[j].TeamNumber
		}
		return details[i].RegistrationDateTime.Before(details[j].RegistrationDateTime)
	})
	return details, nil
}
