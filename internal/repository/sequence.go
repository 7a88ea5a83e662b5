package repository

import (
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// nextNumber returns prefix followed by a 5-digit sequence one past the
// highest number already stored under that prefix. Longer numbers sort first
// so the sequence keeps climbing past 99999. On PostgreSQL the caller's
// transaction holds an advisory lock on the prefix until commit.
func nextNumber(db *gorm.DB, table, column, prefix string) (string, error) {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix).Error; err != nil {
			return "", fmt.Errorf("failed to lock sequence %s: %w", prefix, err)
		}
	}

	var last []string
	if err := db.Table(table).
		Where(column+" LIKE ?", prefix+"%").
		Order("LENGTH("+column+") DESC, "+column+" DESC").
		Limit(1).
		Pluck(column, &last).Error; err != nil {
		return "", err
	}

	seq := 0
	if len(last) > 0 {
		n, err := strconv.Atoi(strings.TrimPrefix(last[0], prefix))
		if err != nil {
			return "", fmt.Errorf("malformed number %q: %w", last[0], err)
		}
		seq = n
	}

	return fmt.Sprintf("%s%05d", prefix, seq+1), nil
}
