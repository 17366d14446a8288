package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/staticforge/staticforge/internal/xerrors"
)

// classify maps a raw driver error to the §7 taxonomy: unique/foreign
// key violations are fatal ConfigError-class, connection and timeout
// errors are TransientUpstream so the queue retries them.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503": // unique_violation, foreign_key_violation
			return xerrors.New(xerrors.ConfigError, "store", "", pgErr.Message, err)
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return xerrors.New(xerrors.TransientUpstream, "store", "", pgErr.Message, err)
		}
	}
	return xerrors.New(xerrors.TransientUpstream, "store", "", err.Error(), err)
}
