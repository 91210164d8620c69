// Package postgres implements the relational storage engine on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
	"github.com/hbnb-network/catalog_layer/internal/app/storage"
	"github.com/hbnb-network/catalog_layer/pkg/logger"
)

const backendName = "postgres"

// PostgreSQL error codes mapped onto storage errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store implements storage.Engine backed by PostgreSQL. Sessions share only
// the connection pool; each Save runs in its own transaction.
type Store struct {
	db  *sqlx.DB
	log *logger.Logger
}

var _ storage.Engine = (*Store)(nil)
var _ storage.Driver = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewDefault("storage.postgres")
	}
	return &Store{db: db, log: log}
}

// NewFromDB wraps a plain *sql.DB opened with the postgres driver.
func NewFromDB(db *sql.DB, log *logger.Logger) *Store {
	return New(sqlx.NewDb(db, "postgres"), log)
}

// DB exposes the underlying pool.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Name() string { return backendName }

func (s *Store) Backend() string { return backendName }

// Reload only checks connectivity; sessions always read committed rows.
func (s *Store) Reload(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Open(ctx context.Context) (storage.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return storage.NewSession(s), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load implements storage.Driver.
func (s *Store) Load(ctx context.Context, kind rental.Kind, id string) (rental.Entity, bool, error) {
	tbl, ok := tableFor(kind)
	if !ok {
		return nil, false, nil
	}
	rows, err := s.query(ctx, s.db, kind, tbl.selectBy("id = $1"), id)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// LoadAll implements storage.Driver.
func (s *Store) LoadAll(ctx context.Context, kind rental.Kind) ([]rental.Entity, error) {
	tbl, ok := tableFor(kind)
	if !ok {
		return nil, nil
	}
	return s.query(ctx, s.db, kind, tbl.selectBy(""))
}

// LoadChildren implements storage.Driver.
func (s *Store) LoadChildren(ctx context.Context, rel rental.Relation, parentID string) ([]rental.Entity, error) {
	tbl, ok := tableFor(rel.Child)
	if !ok {
		return nil, nil
	}
	return s.query(ctx, s.db, rel.Child, tbl.selectBy(rel.Field+" = $1"), parentID)
}

// LoadLinked implements storage.Driver.
func (s *Store) LoadLinked(ctx context.Context, placeID string) ([]rental.Entity, error) {
	tbl := tables[rental.KindAmenity]
	q := fmt.Sprintf(
		"SELECT %s FROM amenities a JOIN place_amenity pa ON pa.amenity_id = a.id WHERE pa.place_id = $1 ORDER BY a.id",
		tbl.selectList("a"),
	)
	return selectInto[rental.Amenity](ctx, s.db, q, placeID)
}

// Count implements storage.Driver.
func (s *Store) Count(ctx context.Context, kind rental.Kind) (int, error) {
	tbl, ok := tableFor(kind)
	if !ok {
		return 0, nil
	}
	var n int
	if err := sqlx.GetContext(ctx, s.db, &n, tbl.countSQL()); err != nil {
		return 0, err
	}
	return n, nil
}

// Commit implements storage.Driver. The whole changeset is applied in one
// transaction and rolled back on the first failure.
func (s *Store) Commit(ctx context.Context, cs storage.Changeset) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.log.WithError(rbErr).Warn("rollback failed")
			}
		}
	}()

	for _, e := range cs.Inserts {
		tbl := tables[e.Kind()]
		if _, err = tx.ExecContext(ctx, tbl.insertSQL(), tbl.values(e)...); err != nil {
			return classify(err)
		}
	}
	// Links go in after every row so amenities created in the same save
	// already exist.
	for _, e := range cs.Inserts {
		if p, ok := e.(*rental.Place); ok {
			if err = linkAmenities(ctx, tx, p.ID, p.AmenityIDs); err != nil {
				return classify(err)
			}
		}
	}

	for _, u := range cs.Updates {
		tbl := tables[u.Entity.Kind()]
		res, execErr := tx.ExecContext(ctx, tbl.updateSQL(), tbl.updateArgs(u.Entity)...)
		if execErr != nil {
			return classify(execErr)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			err = fmt.Errorf("%s %s: %w", u.Entity.Kind(), u.Entity.Meta().ID, storage.ErrNotFound)
			return err
		}
		if p, ok := u.Entity.(*rental.Place); ok {
			if err = syncLinks(ctx, tx, p, u.Previous); err != nil {
				return classify(err)
			}
		}
	}

	for _, e := range cs.Deletes {
		tbl := tables[e.Kind()]
		if _, err = tx.ExecContext(ctx, tbl.deleteSQL(), e.Meta().ID); err != nil {
			return classify(err)
		}
	}

	if err = tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func linkAmenities(ctx context.Context, tx *sqlx.Tx, placeID string, amenityIDs []string) error {
	for _, aid := range amenityIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO place_amenity (place_id, amenity_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			placeID, aid,
		); err != nil {
			return err
		}
	}
	return nil
}

func syncLinks(ctx context.Context, tx *sqlx.Tx, p *rental.Place, previous rental.Entity) error {
	var before []string
	if prev, ok := previous.(*rental.Place); ok {
		before = prev.AmenityIDs
	}
	removed, added := rental.DiffLinks(before, p.AmenityIDs)
	if len(removed) > 0 {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM place_amenity WHERE place_id = $1 AND amenity_id = ANY($2)",
			p.ID, pq.Array(removed),
		); err != nil {
			return err
		}
	}
	return linkAmenities(ctx, tx, p.ID, added)
}

// classify maps integrity violations onto the storage sentinels.
func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case codeUniqueViolation:
		return fmt.Errorf("%s: %w", pqErr.Message, storage.ErrConflict)
	case codeForeignKeyViolation:
		return fmt.Errorf("%s: %w", pqErr.Message, storage.ErrMissingReference)
	default:
		return err
	}
}

// query selects rows of kind and, for places, attaches their link sets.
func (s *Store) query(ctx context.Context, q sqlx.QueryerContext, kind rental.Kind, query string, args ...any) ([]rental.Entity, error) {
	var (
		out []rental.Entity
		err error
	)
	switch kind {
	case rental.KindState:
		out, err = selectInto[rental.State](ctx, q, query, args...)
	case rental.KindCity:
		out, err = selectInto[rental.City](ctx, q, query, args...)
	case rental.KindUser:
		out, err = selectInto[rental.User](ctx, q, query, args...)
	case rental.KindPlace:
		out, err = selectInto[rental.Place](ctx, q, query, args...)
		if err == nil {
			err = attachLinks(ctx, q, out)
		}
	case rental.KindReview:
		out, err = selectInto[rental.Review](ctx, q, query, args...)
	case rental.KindAmenity:
		out, err = selectInto[rental.Amenity](ctx, q, query, args...)
	}
	return out, err
}

func selectInto[T any, P interface {
	*T
	rental.Entity
}](ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]rental.Entity, error) {
	var rows []*T
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]rental.Entity, 0, len(rows))
	for _, r := range rows {
		out = append(out, P(r))
	}
	return out, nil
}

type linkRow struct {
	PlaceID   string `db:"place_id"`
	AmenityID string `db:"amenity_id"`
}

func attachLinks(ctx context.Context, q sqlx.QueryerContext, places []rental.Entity) error {
	if len(places) == 0 {
		return nil
	}
	byID := make(map[string]*rental.Place, len(places))
	ids := make([]string, 0, len(places))
	for _, e := range places {
		p := e.(*rental.Place)
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	var links []linkRow
	if err := sqlx.SelectContext(ctx, q, &links,
		"SELECT place_id, amenity_id FROM place_amenity WHERE place_id = ANY($1) ORDER BY place_id, amenity_id",
		pq.Array(ids),
	); err != nil {
		return err
	}
	for _, l := range links {
		if p, ok := byID[l.PlaceID]; ok {
			p.AmenityIDs = append(p.AmenityIDs, l.AmenityID)
		}
	}
	return nil
}
