// Package inmemdb holds the in-memory unit registry. Units and their browser
// sessions live only as long as the process.
package inmemdb

import (
	"sync"

	"github.com/trezcool/diemdanh/core/attendance"
)

type (
	DB struct {
		unit *unitTable
	}

	unitRow struct {
		unit    attendance.Unit
		session attendance.Session
	}

	// unitTable keeps rows in display order: a row's identity is its position + 1.
	unitTable struct {
		rows    []*unitRow
		lastKey uint64
		mutex   sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		unit: &unitTable{rows: make([]*unitRow, 0)},
	}
}
