// Package dbtypes holds column types gorm cannot map on its own.
package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UUIDArray maps a Postgres uuid[] column. Element parsing goes through
// pq's array codec with uuid.UUID as the element scanner.
type UUIDArray []uuid.UUID

func (a *UUIDArray) Scan(src any) error {
	ids := []uuid.UUID{}
	if src != nil {
		if err := (pq.GenericArray{A: &ids}).Scan(src); err != nil {
			return fmt.Errorf("uuid array: %w", err)
		}
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	*a = ids
	return nil
}

func (a UUIDArray) Value() (driver.Value, error) {
	if a == nil {
		a = UUIDArray{}
	}
	return pq.GenericArray{A: []uuid.UUID(a)}.Value()
}

// Contains reports whether id is present in the array.
func (a UUIDArray) Contains(id uuid.UUID) bool {
	return slices.Contains(a, id)
}
