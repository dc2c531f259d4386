package inventory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	sqlite, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "inv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sqlite": sqlite,
	}
}

func newService(repo Repository) (*Service, *time.Time) {
	now := t0
	s := NewService(repo)
	s.now = func() time.Time { return now }
	return s, &now
}

type placement struct {
	year    *Year
	zone    *Zone
	subzone *Subzone
}

func createPlacement(t *testing.T, s *Service) placement {
	t.Helper()
	ctx := context.Background()
	y, err := s.CreateYear(ctx, "2025")
	require.NoError(t, err)
	z, err := s.CreateZone(ctx, y.ID, "Nord")
	require.NoError(t, err)
	sz, err := s.CreateSubzone(ctx, z.ID, "Lille")
	require.NoError(t, err)
	return placement{year: y, zone: z, subzone: sz}
}

func createActivityAt(t *testing.T, s *Service, p placement, label string, start time.Time) *Activity {
	t.Helper()
	a, err := s.CreateActivity(context.Background(), Activity{
		Label:     label,
		YearID:    p.year.ID,
		ZoneID:    p.zone.ID,
		SubzoneID: p.subzone.ID,
		StartDate: start,
		EndDate:   start.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	return a
}

func createActivity(t *testing.T, s *Service) *Activity {
	t.Helper()
	return createActivityAt(t, s, createPlacement(t, s), "Camp d'été", t0)
}

func TestRecountFollowsItemWrites(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, now := newService(repo)
			a := createActivity(t, s)

			_, c, err := s.WriteItem(ctx, a.ID, "med", "kit", ItemInput{Name: "First aid kit", Qty: 2, SortieChecked: true})
			require.NoError(t, err)
			assert.Equal(t, Counts{Total: 1, Returned: 0, Complete: false}, c)

			_, c, err = s.WriteItem(ctx, a.ID, "log", "tent", ItemInput{Name: "Tent", Qty: 1, SortieChecked: true})
			require.NoError(t, err)
			assert.Equal(t, 2, c.Total)

			*now = t0.Add(time.Hour)
			it, c, err := s.WriteItem(ctx, a.ID, "med", "kit", ItemInput{Name: "First aid kit", Qty: 2, SortieChecked: true, RetourChecked: true})
			require.NoError(t, err)
			require.NotNil(t, it.RetourAt)
			assert.True(t, it.RetourAt.Equal(t0.Add(time.Hour)))
			require.NotNil(t, it.SortieAt)
			assert.True(t, it.SortieAt.Equal(t0), "check-out time kept")
			assert.Equal(t, Counts{Total: 2, Returned: 1, Complete: false}, c)

			c, err = s.DeleteItem(ctx, a.ID, "log", "tent")
			require.NoError(t, err)
			assert.Equal(t, Counts{Total: 1, Returned: 1, Complete: true}, c)

			view, err := s.Activity(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, view.Activity.ItemsTotal)
			assert.Equal(t, 1, view.Activity.ItemsReturned)
			assert.True(t, view.Activity.IsComplete)
			assert.True(t, view.Activity.UpdatedAt.Equal(t0.Add(time.Hour)))
			require.Len(t, view.Services["med"], 1)
			assert.Empty(t, view.Services["log"])
		})
	}
}

func TestEmptyActivityIsNotComplete(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := newService(repo)
			a := createActivity(t, s)

			_, _, err := s.WriteItem(ctx, a.ID, "med", "kit", ItemInput{Name: "Kit", Qty: 1, RetourChecked: true})
			require.NoError(t, err)
			c, err := s.DeleteItem(ctx, a.ID, "med", "kit")
			require.NoError(t, err)
			assert.Equal(t, Counts{}, c)
		})
	}
}

func TestUncheckingReturnClearsTimestamp(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := newService(repo)
			a := createActivity(t, s)

			_, _, err := s.WriteItem(ctx, a.ID, "med", "kit", ItemInput{Name: "Kit", Qty: 1, RetourChecked: true})
			require.NoError(t, err)
			it, c, err := s.WriteItem(ctx, a.ID, "med", "kit", ItemInput{Name: "Kit", Qty: 1})
			require.NoError(t, err)
			assert.Nil(t, it.RetourAt)
			assert.False(t, c.Complete)
		})
	}
}

func TestWriteItemErrors(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := newService(repo)
			a := createActivity(t, s)

			_, _, err := s.WriteItem(ctx, "missing", "med", "kit", ItemInput{Name: "Kit", Qty: 1})
			assert.ErrorIs(t, err, ErrNotFound)

			_, _, err = s.WriteItem(ctx, a.ID, "med", "kit", ItemInput{Name: " ", Qty: 1})
			assert.ErrorIs(t, err, ErrInvalidInput)

			_, err = s.DeleteItem(ctx, a.ID, "med", "nope")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = s.Activity(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestCreateActivityValidation(t *testing.T) {
	s, _ := newService(NewMemoryRepository())
	_, err := s.CreateActivity(context.Background(), Activity{Label: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.CreateActivity(context.Background(), Activity{
		Label: "x", YearID: "y", ZoneID: "z", SubzoneID: "s",
		StartDate: t0, EndDate: t0.Add(-time.Hour),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateActivityChecksPlacement(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := newService(repo)
			p := createPlacement(t, s)

			other, err := s.CreateYear(ctx, "2024")
			require.NoError(t, err)
			otherZone, err := s.CreateZone(ctx, other.ID, "Sud")
			require.NoError(t, err)
			otherSub, err := s.CreateSubzone(ctx, otherZone.ID, "Nice")
			require.NoError(t, err)

			cases := map[string]Activity{
				"unknown year":            {YearID: "nope", ZoneID: p.zone.ID, SubzoneID: p.subzone.ID},
				"unknown zone":            {YearID: p.year.ID, ZoneID: "nope", SubzoneID: p.subzone.ID},
				"unknown subzone":         {YearID: p.year.ID, ZoneID: p.zone.ID, SubzoneID: "nope"},
				"zone of another year":    {YearID: p.year.ID, ZoneID: otherZone.ID, SubzoneID: otherSub.ID},
				"subzone of another zone": {YearID: p.year.ID, ZoneID: p.zone.ID, SubzoneID: otherSub.ID},
			}
			for label, a := range cases {
				a.Label = label
				a.StartDate = t0
				_, err := s.CreateActivity(ctx, a)
				assert.ErrorIs(t, err, ErrInvalidInput, label)
			}

			list, err := s.Activities(ctx, 0)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestHierarchyRequiresParents(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := newService(repo)

			_, err := s.CreateYear(ctx, "  ")
			assert.ErrorIs(t, err, ErrInvalidInput)
			_, err = s.CreateZone(ctx, "missing", "Nord")
			assert.ErrorIs(t, err, ErrInvalidInput)
			_, err = s.CreateSubzone(ctx, "missing", "Lille")
			assert.ErrorIs(t, err, ErrInvalidInput)

			p := createPlacement(t, s)
			second, err := s.CreateYear(ctx, "2026")
			require.NoError(t, err)
			_, err = s.CreateZone(ctx, second.ID, "Est")
			require.NoError(t, err)

			years, err := s.Years(ctx)
			require.NoError(t, err)
			require.Len(t, years, 2)
			assert.Equal(t, "2026", years[0].Label)

			zones, err := s.Zones(ctx, p.year.ID)
			require.NoError(t, err)
			require.Len(t, zones, 1)
			assert.Equal(t, "Nord", zones[0].Name)

			all, err := s.Zones(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 2)

			subs, err := s.Subzones(ctx, p.zone.ID)
			require.NoError(t, err)
			require.Len(t, subs, 1)
			assert.Equal(t, p.subzone.ID, subs[0].ID)
		})
	}
}

func TestActivitiesNewestFirst(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s, now := newService(repo)
			p := createPlacement(t, s)

			old := createActivityAt(t, s, p, "Old", t0.Add(-72*time.Hour))
			late := createActivityAt(t, s, p, "Late", t0.Add(72*time.Hour))
			*now = t0.Add(time.Minute)
			sameDay := createActivityAt(t, s, p, "Same day, created later", t0)
			*now = t0
			first := createActivityAt(t, s, p, "Same day", t0)

			list, err := s.Activities(ctx, 0)
			require.NoError(t, err)
			require.Len(t, list, 4)
			assert.Equal(t, late.ID, list[0].ID)
			assert.Equal(t, sameDay.ID, list[1].ID)
			assert.Equal(t, first.ID, list[2].ID)
			assert.Equal(t, old.ID, list[3].ID)

			list, err = s.Activities(ctx, 2)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, late.ID, list[0].ID)
		})
	}
}

func TestActivitiesDefaultLimit(t *testing.T) {
	s, _ := newService(NewMemoryRepository())
	p := createPlacement(t, s)
	for i := 0; i < DefaultActivityLimit+2; i++ {
		createActivityAt(t, s, p, "a", t0.Add(time.Duration(i)*time.Hour))
	}

	list, err := s.Activities(context.Background(), MaxActivityLimit+1)
	require.NoError(t, err)
	assert.Len(t, list, DefaultActivityLimit)
}

func TestSQLiteRepositoryPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inv.db")
	ctx := context.Background()

	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	s, _ := newService(repo)
	a := createActivity(t, s)
	_, _, err = s.WriteItem(ctx, a.ID, "med", "kit", ItemInput{Name: "Kit", Qty: 3, SortieChecked: true})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.GetActivity(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Camp d'été", got.Label)
	assert.Equal(t, 1, got.ItemsTotal)

	it, err := repo.GetItem(ctx, a.ID, "med", "kit")
	require.NoError(t, err)
	assert.Equal(t, 3, it.Qty)
	require.NotNil(t, it.SortieAt)
	assert.True(t, it.SortieAt.Equal(t0))
}
