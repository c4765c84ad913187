package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miadp/fmrgate/internal/model"
)

// ErrEmptyCode is returned by UpsertSubproject when the natural key is blank.
var ErrEmptyCode = errors.New("subproject code is required")

// UpsertSubproject creates the subproject identified by sp.Code, or fully
// replaces every attribute of the existing one. Attributes that are absent
// on sp are written as NULL, so a re-import never leaves stale values
// behind. The statement is a single write and is atomic at the database.
//
// CreatedAt and UpdatedAt on sp are set to the time of the call; on update
// the stored created_at is preserved.
func (s *Store) UpsertSubproject(ctx context.Context, sp *model.Subproject) error {
	if strings.TrimSpace(sp.Code) == "" {
		return ErrEmptyCode
	}

	now := time.Now().UTC()
	sp.CreatedAt = now
	sp.UpdatedAt = now

	if _, err := s.db.NamedExecContext(ctx, s.upsertSubprojectSQL(), sp); err != nil {
		return fmt.Errorf("upsert subproject %s: %w", sp.Code, err)
	}
	return nil
}

// GetSubproject returns the subproject with the given code.
func (s *Store) GetSubproject(ctx context.Context, code string) (*model.Subproject, error) {
	var sp model.Subproject
	q := s.db.Rebind(selectSubprojects + " WHERE code = ?")
	if err := s.db.GetContext(ctx, &sp, q, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get subproject: %w", err)
	}
	return &sp, nil
}

// ListSubprojects returns every subproject, most recently created first.
func (s *Store) ListSubprojects(ctx context.Context) ([]model.Subproject, error) {
	items := []model.Subproject{}
	if err := s.db.SelectContext(ctx, &items, selectSubprojects+" ORDER BY created_at DESC, id DESC"); err != nil {
		return nil, fmt.Errorf("list subprojects: %w", err)
	}
	return items, nil
}

// CountSubprojects returns the number of stored subprojects.
func (s *Store) CountSubprojects(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM subprojects"); err != nil {
		return 0, fmt.Errorf("count subprojects: %w", err)
	}
	return n, nil
}

var selectSubprojects = "SELECT id, code, " +
	strings.Join(columnNames(subprojectColumns), ", ") +
	", created_at, updated_at FROM subprojects"

func (s *Store) upsertSubprojectSQL() string {
	return s.dialect.upsert("subprojects", "code", columnNames(subprojectColumns))
}
