package inmemdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/diemdanh/core/attendance"
)

func newTestRepo(n int) attendance.Repository {
	repo := NewUnitRepository(Open())
	for i := 0; i < n; i++ {
		repo.AddUnit(time.Now().UTC())
	}
	return repo
}

func ids(units []attendance.Unit) []int {
	res := make([]int, 0, len(units))
	for _, u := range units {
		res = append(res, u.ID)
	}
	return res
}

func TestUnitRepository_AddUnit(t *testing.T) {
	repo := newTestRepo(0)

	for want := 1; want <= 3; want++ {
		u := repo.AddUnit(time.Now().UTC())
		assert.Equal(t, want, u.ID)
		assert.Equal(t, attendance.LessonTheory, u.Lesson)
		assert.Equal(t, attendance.StatusIdle, u.Status)
		assert.Equal(t, "Class "+string(rune('0'+want)), u.DisplayName())
	}
	assert.Equal(t, []int{1, 2, 3}, ids(repo.QueryAllUnits()))
}

func TestUnitRepository_DeleteUnit(t *testing.T) {
	sess := attendance.NewFakeSession(attendance.TestSettings().Locators)

	tests := []struct {
		name      string
		count     int
		id        int
		wantErr   error
		wantNames []string
	}{
		{name: "middle", count: 3, id: 2, wantNames: []string{"a", "c"}},
		{name: "first", count: 3, id: 1, wantNames: []string{"b", "c"}},
		{name: "last", count: 3, id: 3, wantNames: []string{"a", "b"}},
		{name: "only", count: 1, id: 1, wantNames: []string{}},
		{name: "unknown", count: 2, id: 3, wantErr: attendance.ErrUnitNotFound, wantNames: []string{"a", "b"}},
		{name: "zero", count: 2, id: 0, wantErr: attendance.ErrUnitNotFound, wantNames: []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepo(tt.count)
			for i, u := range repo.QueryAllUnits() {
				u.Name = string(rune('a' + i))
				_, err := repo.UpdateUnit(u)
				require.NoError(t, err)
			}
			if tt.wantErr == nil {
				require.NoError(t, repo.SetSession(tt.id, sess))
			}

			deleted, gotSess, err := repo.DeleteUnit(tt.id)
			assert.Equal(t, tt.wantErr, err)
			if err == nil {
				assert.Equal(t, tt.id, deleted.ID)
				assert.Equal(t, sess, gotSess)
			}

			units := repo.QueryAllUnits()
			names := make([]string, 0)
			for i, u := range units {
				assert.Equal(t, i+1, u.ID, "identities must stay contiguous")
				assert.False(t, u.HasBrowser)
				names = append(names, u.Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestUnitRepository_keyFollowsRenumbering(t *testing.T) {
	repo := newTestRepo(3)
	third, err := repo.GetUnit(3)
	require.NoError(t, err)

	_, _, err = repo.DeleteUnit(1)
	require.NoError(t, err)

	repo.SetProgress(third.Key, 4, 10)
	repo.EndRun(third.Key, attendance.StatusFailed)

	u, err := repo.GetUnit(2)
	require.NoError(t, err)
	assert.Equal(t, third.Key, u.Key)
	assert.Equal(t, 4, u.Done)
	assert.Equal(t, 10, u.Total)
	assert.Equal(t, attendance.StatusFailed, u.Status)

	// a stale copy cannot overwrite the unit now holding its old identity
	_, err = repo.UpdateUnit(third)
	assert.Equal(t, attendance.ErrUnitNotFound, err)
}

func TestUnitRepository_sessions(t *testing.T) {
	locators := attendance.TestSettings().Locators
	repo := newTestRepo(2)
	s1, s2 := attendance.NewFakeSession(locators), attendance.NewFakeSession(locators)

	_, err := repo.GetSession(1)
	assert.Equal(t, attendance.ErrNoSession, err)
	_, err = repo.GetSession(5)
	assert.Equal(t, attendance.ErrUnitNotFound, err)

	require.NoError(t, repo.SetSession(1, s1))
	require.NoError(t, repo.SetSession(2, s2))
	got, err := repo.GetSession(1)
	require.NoError(t, err)
	assert.Equal(t, s1, got)

	u1, _ := repo.GetUnit(1)
	assert.True(t, u1.HasBrowser)
	assert.False(t, repo.DropSession(u1.Key, s2), "dropped another unit's session")
	assert.True(t, repo.DropSession(u1.Key, s1))
	assert.False(t, repo.DropSession(u1.Key, s1))

	all := repo.DropAllSessions()
	assert.Equal(t, []attendance.Session{s2}, all)
	assert.Empty(t, repo.DropAllSessions())
}

func TestUnitRepository_BeginRun(t *testing.T) {
	repo := newTestRepo(3)
	sess := attendance.NewFakeSession(attendance.TestSettings().Locators)
	require.NoError(t, repo.SetSession(2, sess))

	entries, err := repo.BeginRun(1, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Unit.ID)
	assert.Nil(t, entries[0].Session)
	assert.Equal(t, 2, entries[1].Unit.ID)
	assert.Equal(t, sess, entries[1].Session)
	assert.Equal(t, attendance.StatusRunning, entries[1].Unit.Status)

	// all or nothing
	_, err = repo.BeginRun(3, 2)
	assert.Equal(t, attendance.ErrUnitBusy, err)
	u3, _ := repo.GetUnit(3)
	assert.Equal(t, attendance.StatusIdle, u3.Status)

	_, _, err = repo.DeleteUnit(1)
	assert.Equal(t, attendance.ErrUnitBusy, err)
	assert.Equal(t, attendance.ErrUnitBusy, repo.SetSession(2, sess))

	repo.EndRun(entries[0].Unit.Key, attendance.StatusDone)
	_, _, err = repo.DeleteUnit(1)
	assert.NoError(t, err)
}

func TestUnitRepository_BeginRunAll(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		entries, err := newTestRepo(0).BeginRunAll()
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	repo := newTestRepo(3)
	_, _, err := repo.DeleteUnit(1)
	require.NoError(t, err)

	entries, err := repo.BeginRunAll()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Unit.ID)
		assert.Equal(t, uint64(i+2), e.Unit.Key)
		assert.Equal(t, attendance.StatusRunning, e.Unit.Status)
	}

	_, err = repo.BeginRunAll()
	assert.Equal(t, attendance.ErrUnitBusy, err)
	_, err = repo.BeginRun(2)
	assert.Equal(t, attendance.ErrUnitBusy, err)

	repo.EndRun(entries[0].Unit.Key, attendance.StatusDone)
	_, err = repo.BeginRunAll()
	assert.Equal(t, attendance.ErrUnitBusy, err, "unit 2 is still running")
	u1, _ := repo.GetUnit(1)
	assert.Equal(t, attendance.StatusDone, u1.Status)
}
