package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackvento/portal-api/internal/models"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "portal.json"))
	require.NoError(t, err)
	return store
}

func seedProblem(t *testing.T, store *FileStore, id string, maxSelections int) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &models.ProblemStatement{
		ID:            id,
		Title:         "Problem " + id,
		MaxSelections: maxSelections,
	}))
}

func TestFileStoreAllocateCapacityUnderContention(t *testing.T) {
	store := newTestFileStore(t)
	seedProblem(t, store, "ps1", 3)
	ledger := store.Ledger()

	const attempts = 10
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = ledger.Allocate(context.Background(), &models.Registration{
				TeamNumber:         fmt.Sprintf("T%02d", i),
				ProblemStatementID: "ps1",
			})
		}(i)
	}
	wg.Wait()

	successes, full := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case err == ErrProblemFull:
			full++
		default:
			t.Fatalf("unexpected allocation error: %v", err)
		}
	}
	assert.Equal(t, 3, successes)
	assert.Equal(t, attempts-3, full)

	views, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 3, views[0].SelectedCount)
	assert.False(t, views[0].IsAvailable)
}

func TestFileStoreAllocateDuplicateTeamUnderContention(t *testing.T) {
	store := newTestFileStore(t)
	seedProblem(t, store, "ps1", 100)
	ledger := store.Ledger()

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = ledger.Allocate(context.Background(), &models.Registration{
				TeamNumber:         "T1",
				ProblemStatementID: "ps1",
			})
		}(i)
	}
	wg.Wait()

	successes, duplicates := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case err == ErrDuplicateTeam:
			duplicates++
		default:
			t.Fatalf("unexpected allocation error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, duplicates)
}

func TestFileStoreAllocateUnknownProblem(t *testing.T) {
	store := newTestFileStore(t)
	err := store.Ledger().Allocate(context.Background(), &models.Registration{
		TeamNumber:         "T1",
		ProblemStatementID: "ps999",
	})
	assert.Equal(t, ErrProblemNotFound, err)
}

func TestFileStoreDuplicateRejectionIsIdempotent(t *testing.T) {
	store := newTestFileStore(t)
	seedProblem(t, store, "ps1", 5)
	seedProblem(t, store, "ps2", 5)
	ledger := store.Ledger()

	require.NoError(t, ledger.Allocate(context.Background(), &models.Registration{TeamNumber: "T1", ProblemStatementID: "ps1"}))
	assert.Equal(t, ErrDuplicateTeam, ledger.Allocate(context.Background(), &models.Registration{TeamNumber: "T1", ProblemStatementID: "ps2"}))

	// Unrelated mutation in between must not change the answer.
	require.NoError(t, ledger.Allocate(context.Background(), &models.Registration{TeamNumber: "T2", ProblemStatementID: "ps2"}))
	assert.Equal(t, ErrDuplicateTeam, ledger.Allocate(context.Background(), &models.Registration{TeamNumber: "T1", ProblemStatementID: "ps2"}))
}

func TestFileStoreDeleteCascadesRegistrations(t *testing.T) {
	store := newTestFileStore(t)
	seedProblem(t, store, "ps1", 2)
	seedProblem(t, store, "ps2", 2)
	ledger := store.Ledger()

	require.NoError(t, ledger.Allocate(context.Background(), &models.Registration{TeamNumber: "T1", ProblemStatementID: "ps1"}))
	require.NoError(t, ledger.Allocate(context.Background(), &models.Registration{TeamNumber: "T2", ProblemStatementID: "ps1"}))
	assert.Equal(t, ErrProblemFull, ledger.Allocate(context.Background(), &models.Registration{TeamNumber: "T3", ProblemStatementID: "ps1"}))
	require.NoError(t, ledger.Allocate(context.Background(), &models.Registration{TeamNumber: "T4", ProblemStatementID: "ps2"}))

	deleted, err := store.Delete(context.Background(), "ps1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	details, err := ledger.List(context.Background())
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "T4", details[0].TeamNumber)
}

func TestFileStoreProjectionCounts(t *testing.T) {
	store := newTestFileStore(t)
	seedProblem(t, store, "ps1", 3)
	ledger := store.Ledger()

	require.NoError(t, ledger.Allocate(context.Background(), &models.Registration{TeamNumber: "T1", ProblemStatementID: "ps1"}))
	require.NoError(t, ledger.Allocate(context.Background(), &models.Registration{TeamNumber: "T2", ProblemStatementID: "ps1"}))

	views, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 2, views[0].SelectedCount)
	assert.True(t, views[0].IsAvailable)
}

func TestFileStoreListRegistrationsTolerant(t *testing.T) {
	store := newTestFileStore(t)
	seedProblem(t, store, "ps1", 1)
	ledger := store.Ledger()
	require.NoError(t, ledger.Allocate(context.Background(), &models.Registration{TeamNumber: "T1", ProblemStatementID: "ps1"}))

	details, err := ledger.List(context.Background())
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.NotNil(t, details[0].ProblemTitle)
	assert.Equal(t, "Problem ps1", *details[0].ProblemTitle)
}

func TestFileStoreCreateRejectsDuplicateID(t *testing.T) {
	store := newTestFileStore(t)
	seedProblem(t, store, "ps1", 1)
	err := store.Create(context.Background(), &models.ProblemStatement{ID: "ps1", Title: "again"})
	assert.Equal(t, ErrAlreadyExists, err)
}

func TestFileStoreCreateClampsMaxSelections(t *testing.T) {
	store := newTestFileStore(t)
	require.NoError(t, store.Create(context.Background(), &models.ProblemStatement{ID: "ps1", MaxSelections: -2}))
	ps, err := store.FindByID(context.Background(), "ps1")
	require.NoError(t, err)
	assert.Equal(t, 1, ps.MaxSelections)
}

func TestFileStoreUpdateMergesPartialFields(t *testing.T) {
	store := newTestFileStore(t)
	seedProblem(t, store, "ps1", 4)

	title := "New Title"
	changed, err := store.Update(context.Background(), "ps1", models.ProblemStatementUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	ps, err := store.FindByID(context.Background(), "ps1")
	require.NoError(t, err)
	assert.Equal(t, "New Title", ps.Title)
	assert.Equal(t, 4, ps.MaxSelections)

	changed, err = store.Update(context.Background(), "missing", models.ProblemStatementUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, int64(0), changed)
}

func TestFileStoreBulkImportSkipsExisting(t *testing.T) {
	store := newTestFileStore(t)
	seedProblem(t, store, "ps1", 2)

	imported, err := store.BulkImport(context.Background(), []models.ProblemStatement{
		{ID: "ps1", Title: "overwrite attempt"},
		{ID: "ps2", Title: "fresh"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, imported)

	ps, err := store.FindByID(context.Background(), "ps1")
	require.NoError(t, err)
	assert.Equal(t, "Problem ps1", ps.Title)
}

func TestFileStoreBulkImportRollsBackOnPersistFailure(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	store, err := NewFileStore(filepath.Join(dataDir, "portal.json"))
	require.NoError(t, err)
	seedProblem(t, store, "ps1", 2)

	// Break persistence out from under the store.
	require.NoError(t, os.RemoveAll(dataDir))

	imported, err := store.BulkImport(context.Background(), []models.ProblemStatement{
		{ID: "ps2", Title: "Two"},
		{ID: "ps3", Title: "Three"},
	})
	require.Error(t, err)
	assert.Equal(t, 0, imported)

	// The failed batch must not be visible afterwards.
	views, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "ps1", views[0].ID)
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portal.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), &models.ProblemStatement{ID: "ps1", Title: "Persistent", MaxSelections: 2}))
	require.NoError(t, store.Ledger().Allocate(context.Background(), &models.Registration{TeamNumber: "T1", ProblemStatementID: "ps1"}))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	views, err := reopened.List(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 1, views[0].SelectedCount)

	details, err := reopened.Ledger().List(context.Background())
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "T1", details[0].TeamNumber)
}
