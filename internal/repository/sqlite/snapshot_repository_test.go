package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"langarhall/internal/model"
	"langarhall/internal/repository"
)

var _ repository.SnapshotRepository = (*SnapshotRepository)(nil)

func setupTestDB(t *testing.T) (*DB, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, dbPath
}

func record(session string, occupancy int, exceeded bool, ts time.Time) *model.OccupancyRecord {
	return &model.OccupancyRecord{
		SessionID:        session,
		Source:           "Camera 0",
		Occupancy:        occupancy,
		HallCapacity:     5,
		CapacityExceeded: exceeded,
		Timestamp:        ts,
		Resources: []model.ResourceQuantity{
			{Name: "Plates", Quantity: float64(occupancy)},
			{Name: "Rice (kg)", Quantity: float64(occupancy) * 0.25},
			{Name: "Dal (liters)", Quantity: 0.8},
		},
	}
}

var base = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func TestDatabase_Connection(t *testing.T) {
	_, dbPath := setupTestDB(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestSnapshotRepository_InsertAndGet(t *testing.T) {
	db, _ := setupTestDB(t)
	repo := NewSnapshotRepository(db)

	id, err := repo.Insert(record("s1", 4, false, base))
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := repo.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "s1", got.SessionID)
	require.Equal(t, 4, got.Occupancy)
	require.False(t, got.CapacityExceeded)
	require.True(t, base.Equal(got.Timestamp))
	require.Equal(t, []model.ResourceQuantity{
		{Name: "Plates", Quantity: 4},
		{Name: "Rice (kg)", Quantity: 1},
		{Name: "Dal (liters)", Quantity: 0.8},
	}, got.Resources)

	missing, err := repo.GetByID(id + 100)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestSnapshotRepository_GetLatest(t *testing.T) {
	db, _ := setupTestDB(t)
	repo := NewSnapshotRepository(db)

	latest, err := repo.GetLatest()
	require.NoError(t, err)
	require.Nil(t, latest)

	for i, occ := range []int{4, 5, 6} {
		_, err := repo.Insert(record("s1", occ, occ > 5, base.Add(time.Duration(i)*5*time.Second)))
		require.NoError(t, err)
	}

	latest, err = repo.GetLatest()
	require.NoError(t, err)
	require.Equal(t, 6, latest.Occupancy)
	require.True(t, latest.CapacityExceeded)
	require.Len(t, latest.Resources, 3)
}

func TestSnapshotRepository_GetAllFilters(t *testing.T) {
	db, _ := setupTestDB(t)
	repo := NewSnapshotRepository(db)

	for i := 0; i < 6; i++ {
		session := "s1"
		if i >= 4 {
			session = "s2"
		}
		_, err := repo.Insert(record(session, i+3, i+3 > 5, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	all, err := repo.GetAll(&model.OccupancyFilter{})
	require.NoError(t, err)
	require.Len(t, all, 6)
	require.Equal(t, 8, all[0].Occupancy, "newest first")
	for _, rec := range all {
		require.Len(t, rec.Resources, 3)
	}

	limited, err := repo.GetAll(&model.OccupancyFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)

	bySession, err := repo.GetAll(&model.OccupancyFilter{SessionID: "s2"})
	require.NoError(t, err)
	require.Len(t, bySession, 2)

	exceeded, err := repo.GetAll(&model.OccupancyFilter{ExceededOnly: true})
	require.NoError(t, err)
	require.Len(t, exceeded, 3)

	since, err := repo.GetAll(&model.OccupancyFilter{Since: base.Add(3 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, since, 3)

	bySource, err := repo.GetAll(&model.OccupancyFilter{Source: "Camera 9"})
	require.NoError(t, err)
	require.Empty(t, bySource)
}

func TestSnapshotRepository_CountAndDeleteAll(t *testing.T) {
	db, _ := setupTestDB(t)
	repo := NewSnapshotRepository(db)

	for i := 0; i < 3; i++ {
		_, err := repo.Insert(record("s1", i, false, base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	count, err := repo.Count()
	require.NoError(t, err)
	require.Equal(t, 3, count)

	require.NoError(t, repo.DeleteAll())

	count, err = repo.Count()
	require.NoError(t, err)
	require.Zero(t, count)

	// resources cascade with their snapshot
	var resources int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM snapshot_resources`).Scan(&resources))
	require.Zero(t, resources)
}

func TestSnapshotRepository_ConcurrentInserts(t *testing.T) {
	db, _ := setupTestDB(t)
	repo := NewSnapshotRepository(db)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(idx int) {
			_, err := repo.Insert(record("s1", idx, false, base.Add(time.Duration(idx)*time.Second)))
			if err != nil {
				t.Errorf("Concurrent insert %d failed: %v", idx, err)
			}
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	count, err := repo.Count()
	require.NoError(t, err)
	require.Equal(t, 10, count)
}

func TestSnapshotRepository_GetAllLoadsResourcesInBatches(t *testing.T) {
	db, _ := setupTestDB(t)
	repo := NewSnapshotRepository(db)

	total := 2*resourceBatchSize + 7
	for i := 0; i < total; i++ {
		_, err := repo.Insert(record("s1", i%9, i%9 > 5, base.Add(time.Duration(i)*5*time.Second)))
		require.NoError(t, err)
	}

	records, err := repo.GetAll(&model.OccupancyFilter{})
	require.NoError(t, err)
	require.Len(t, records, total)

	for _, rec := range records {
		require.Len(t, rec.Resources, 3, "snapshot %d", rec.ID)
		require.Equal(t, "Plates", rec.Resources[0].Name)
		require.Equal(t, float64(rec.Occupancy), rec.Resources[0].Quantity)
	}
}
