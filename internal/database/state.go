package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"git.sr.ht/~jakintosh/authcode/internal/service"
)

func (s *SQLiteStore) StateStore() service.StateStore {
	return s
}

func (s *SQLiteStore) InsertState(
	state string,
	created time.Time,
	expiration time.Time,
) error {
	_, err := s.db.Exec(`
		INSERT INTO pending_state (state, created, expiration)
		VALUES (?1, ?2, ?3);`,
		state,
		created.UnixMilli(),
		expiration.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("couldn't insert into pending_state: %v", err)
	}
	return nil
}

// ConsumeState removes state and reports whether it was present and not yet
// expired at now. A state can be consumed once.
func (s *SQLiteStore) ConsumeState(
	state string,
	now time.Time,
) (
	bool,
	error,
) {
	row := s.db.QueryRow(`
		DELETE FROM pending_state
		WHERE state=?1
		RETURNING expiration;`,
		state,
	)

	var expiration int64
	err := row.Scan(&expiration)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("couldn't delete from pending_state: %v", err)
	}
	return expiration > now.UnixMilli(), nil
}

func (s *SQLiteStore) PurgeExpiredStates(now time.Time) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM pending_state
		WHERE expiration<=?1;`,
		now.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("couldn't purge pending_state: %v", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return count, nil
}
