package repository

import (
	"errors"

	"crowdfund/pkg/errno"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// amountExpr casts a decimal parameter so every dialect does fixed-point
// arithmetic on it instead of coercing the string to a float.
const amountExpr = "CAST(? AS DECIMAL(20,2))"

// addAmount renders "ROUND(col + ?, 2)". The ROUND is a no-op on real
// DECIMAL columns and keeps sqlite's REAL storage on cent boundaries.
func addAmount(col string) string {
	return "ROUND(" + col + " + " + amountExpr + ", 2)"
}

// forUpdate adds SELECT ... FOR UPDATE. sqlite has no row locks; a write
// transaction there already holds the whole database.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// storageErr classifies a gorm error that is not a business outcome.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errno.ErrDuplicateEntry
	}
	return errno.Storage(err)
}

func pick(tx, db *gorm.DB) *gorm.DB {
	if tx == nil {
		return db
	}
	return tx
}
