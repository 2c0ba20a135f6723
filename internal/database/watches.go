package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"stockwatch-telegram-bot/internal/types"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func storeErr(op string, err error) error {
	return &types.StoreError{Op: op, Err: err}
}

// Add saves a watch and returns its freshly assigned id. AUTOINCREMENT
// keeps ids from being handed out again after deletion.
func (s *Store) Add(ctx context.Context, ownerID int64, symbol string, target float64, kind types.Kind) (int64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, errors.New("symbol is required")
	}
	kind, err := types.ParseKind(string(kind))
	if err != nil {
		return 0, err
	}
	if kind.IsPercent() && target < 0 {
		return 0, errors.Errorf("percent target must be non-negative, got %v", target)
	}

	query := `
	INSERT INTO watches (owner_id, symbol, target, kind, created_at)
	VALUES (?, ?, ?, ?, ?);`

	res, err := s.db.ExecContext(ctx, query, ownerID, symbol, target, string(kind), time.Now().Unix())
	if err != nil {
		return 0, storeErr("add", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storeErr("add", err)
	}

	log.Debugf("Watch inserted: ID: %d, Owner: %d, Symbol: %s, Target: %v, Kind: %s", id, ownerID, symbol, target, kind)
	return id, nil
}

// ListByOwner returns the owner's watches in insertion order.
func (s *Store) ListByOwner(ctx context.Context, ownerID int64) ([]types.Watch, error) {
	query := `SELECT id, owner_id, symbol, target, kind, created_at FROM watches WHERE owner_id = ? ORDER BY id;`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, storeErr("list by owner", err)
	}
	watches, err := scanWatches(rows)
	if err != nil {
		return nil, storeErr("list by owner", err)
	}
	return watches, nil
}

// ListAll fetches every stored watch for one alert cycle.
func (s *Store) ListAll(ctx context.Context) ([]types.Watch, error) {
	query := `SELECT id, owner_id, symbol, target, kind, created_at FROM watches;`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeErr("list all", err)
	}
	watches, err := scanWatches(rows)
	if err != nil {
		return nil, storeErr("list all", err)
	}
	return watches, nil
}

// DeleteByID removes the watch only if it belongs to ownerID and reports
// whether a row was removed.
func (s *Store) DeleteByID(ctx context.Context, id, ownerID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watches WHERE id = ? AND owner_id = ?;`, id, ownerID)
	if err != nil {
		return false, storeErr("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("delete", err)
	}
	return n > 0, nil
}

// DeleteByIDUnconditional removes a fired watch. A row that is already gone
// is not an error.
func (s *Store) DeleteByIDUnconditional(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM watches WHERE id = ?;`, id); err != nil {
		return storeErr("delete unconditional", err)
	}
	return nil
}

// ClearByOwner removes all of the owner's watches and returns how many went.
func (s *Store) ClearByOwner(ctx context.Context, ownerID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watches WHERE owner_id = ?;`, ownerID)
	if err != nil {
		return 0, storeErr("clear", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("clear", err)
	}
	return n, nil
}

func scanWatches(rows *sql.Rows) ([]types.Watch, error) {
	defer rows.Close()

	watches := []types.Watch{}
	for rows.Next() {
		var (
			w         types.Watch
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.Symbol, &w.Target, &kind, &createdAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		w.Kind = types.Kind(kind)
		w.CreatedAt = time.Unix(createdAt, 0)
		watches = append(watches, w)
	}
	return watches, rows.Err()
}
