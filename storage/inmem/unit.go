package inmemdb

import (
	"time"

	"github.com/trezcool/diemdanh/core/attendance"
)

type unitRepository struct {
	db *unitTable
}

var _ attendance.Repository = (*unitRepository)(nil)

func NewUnitRepository(db *DB) attendance.Repository {
	return &unitRepository{db: db.unit}
}

// view copies the row's unit with its derived fields set.
func (r *unitRow) view(pos int) attendance.Unit {
	u := r.unit
	u.ID = pos + 1
	u.HasBrowser = r.session != nil
	return u
}

func (repo *unitRepository) get(id int) (*unitRow, error) {
	if id < 1 || id > len(repo.db.rows) {
		return nil, attendance.ErrUnitNotFound
	}
	return repo.db.rows[id-1], nil
}

func (repo *unitRepository) getByKey(key uint64) (int, *unitRow) {
	for i, row := range repo.db.rows {
		if row.unit.Key == key {
			return i, row
		}
	}
	return -1, nil
}

func (repo *unitRepository) AddUnit(now time.Time) attendance.Unit {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.lastKey++
	row := &unitRow{unit: attendance.Unit{
		Key:       repo.db.lastKey,
		Lesson:    attendance.LessonTheory,
		Status:    attendance.StatusIdle,
		UpdatedAt: now,
	}}
	repo.db.rows = append(repo.db.rows, row)
	return row.view(len(repo.db.rows) - 1)
}

func (repo *unitRepository) GetUnit(id int) (attendance.Unit, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	row, err := repo.get(id)
	if err != nil {
		return attendance.Unit{}, err
	}
	return row.view(id - 1), nil
}

func (repo *unitRepository) QueryAllUnits() []attendance.Unit {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	units := make([]attendance.Unit, 0, len(repo.db.rows))
	for i, row := range repo.db.rows {
		units = append(units, row.view(i))
	}
	return units
}

// UpdateUnit only saves the form fields; run state belongs to BeginRun/SetProgress/EndRun.
func (repo *unitRepository) UpdateUnit(u attendance.Unit) (attendance.Unit, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, err := repo.get(u.ID)
	if err != nil {
		return attendance.Unit{}, err
	}
	if u.Key != 0 && u.Key != row.unit.Key {
		// renumbered since it was read
		return attendance.Unit{}, attendance.ErrUnitNotFound
	}
	row.unit.Name = u.Name
	row.unit.Roster = u.Roster
	row.unit.Online = u.Online
	row.unit.Lesson = u.Lesson
	row.unit.UpdatedAt = u.UpdatedAt
	return row.view(u.ID - 1), nil
}

func (repo *unitRepository) DeleteUnit(id int) (attendance.Unit, attendance.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, err := repo.get(id)
	if err != nil {
		return attendance.Unit{}, nil, err
	}
	if row.unit.Status == attendance.StatusRunning {
		return attendance.Unit{}, nil, attendance.ErrUnitBusy
	}
	u := row.view(id - 1)
	repo.db.rows = append(repo.db.rows[:id-1], repo.db.rows[id:]...)
	return u, row.session, nil
}

func (repo *unitRepository) GetSession(id int) (attendance.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	row, err := repo.get(id)
	if err != nil {
		return nil, err
	}
	if row.session == nil {
		return nil, attendance.ErrNoSession
	}
	return row.session, nil
}

func (repo *unitRepository) SetSession(id int, sess attendance.Session) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, err := repo.get(id)
	if err != nil {
		return err
	}
	if row.unit.Status == attendance.StatusRunning {
		return attendance.ErrUnitBusy
	}
	row.session = sess
	return nil
}

func (repo *unitRepository) DropSession(key uint64, sess attendance.Session) bool {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	_, row := repo.getByKey(key)
	if row == nil || row.session == nil || row.session != sess {
		return false
	}
	row.session = nil
	return true
}

func (repo *unitRepository) DropAllSessions() []attendance.Session {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sessions := make([]attendance.Session, 0)
	for _, row := range repo.db.rows {
		if row.session != nil {
			sessions = append(sessions, row.session)
			row.session = nil
		}
	}
	return sessions
}

func (repo *unitRepository) BeginRun(ids ...int) ([]attendance.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	positions := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, err := repo.get(id); err != nil {
			return nil, err
		}
		positions = append(positions, id-1)
	}
	return repo.begin(positions)
}

func (repo *unitRepository) BeginRunAll() ([]attendance.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	positions := make([]int, 0, len(repo.db.rows))
	for i := range repo.db.rows {
		positions = append(positions, i)
	}
	return repo.begin(positions)
}

// begin marks the rows at `positions` running, or none of them if one already is. Lock held.
func (repo *unitRepository) begin(positions []int) ([]attendance.Entry, error) {
	for _, pos := range positions {
		if repo.db.rows[pos].unit.Status == attendance.StatusRunning {
			return nil, attendance.ErrUnitBusy
		}
	}

	entries := make([]attendance.Entry, 0, len(positions))
	for _, pos := range positions {
		row := repo.db.rows[pos]
		row.unit.Status = attendance.StatusRunning
		row.unit.Done, row.unit.Total = 0, 0
		entries = append(entries, attendance.Entry{Unit: row.view(pos), Session: row.session})
	}
	return entries, nil
}

func (repo *unitRepository) SetProgress(key uint64, done, total int) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, row := repo.getByKey(key); row != nil {
		row.unit.Done, row.unit.Total = done, total
	}
}

func (repo *unitRepository) EndRun(key uint64, status attendance.UnitStatus) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, row := repo.getByKey(key); row != nil {
		row.unit.Status = status
	}
}
