package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockForUpdate adds a SELECT ... FOR UPDATE clause on dialects that support
// row locks. The sqlite driver used in tests has no such clause; exclusion
// there comes from the in-process key locks the services hold around their
// transactions.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
