package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hisabkitab/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type CategoryRepository struct {
	db     *pgxpool.Pool
	cache  *CategoryCache
	logger *zap.Logger
}

func NewCategoryRepository(db *pgxpool.Pool, cache *CategoryCache, logger *zap.Logger) *CategoryRepository {
	return &CategoryRepository{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// ResolveGlobal finds the global category whose name matches case-insensitively.
// It returns nil when nothing matches; categories are never created here.
func (r *CategoryRepository) ResolveGlobal(ctx context.Context, q querier, name string) (*uuid.UUID, error) {
	key := cacheKey(name)
	if key == "" {
		return nil, nil
	}
	if id, ok := r.cache.Get(key); ok {
		return &id, nil
	}

	query := squirrel.Select("id").
		From("categories").
		Where(squirrel.Eq{"LOWER(name)": key, "user_id": nil}).
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var id uuid.UUID
	err = q.QueryRow(ctx, sql, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		r.logger.Debug("Unknown category", zap.String("category", name))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve category %q: %w", name, err)
	}

	r.cache.Put(key, id)
	return &id, nil
}

// ListForUser returns the global categories plus the user's own, by name.
func (r *CategoryRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Category, error) {
	query := squirrel.Select("id", "user_id", "name", "COALESCE(icon, '')", "COALESCE(color, '')").
		From("categories").
		Where(squirrel.Or{squirrel.Eq{"user_id": nil}, squirrel.Eq{"user_id": userID}}).
		OrderBy("name").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []*models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Icon, &c.Color); err != nil {
			return nil, err
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

// VisibleTo reports whether the category is global or owned by userID.
func (r *CategoryRepository) VisibleTo(ctx context.Context, userID, categoryID uuid.UUID) (bool, error) {
	query := squirrel.Select("1").
		From("categories").
		Where(squirrel.Eq{"id": categoryID}).
		Where(squirrel.Or{squirrel.Eq{"user_id": nil}, squirrel.Eq{"user_id": userID}}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return false, err
	}

	var one int
	err = r.db.QueryRow(ctx, sql, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// SeedDefaults inserts any missing global categories and returns how many were added.
func (r *CategoryRepository) SeedDefaults(ctx context.Context) (int64, error) {
	builder := squirrel.Insert("categories").
		Columns("id", "name", "icon", "color").
		Suffix("ON CONFLICT (LOWER(name)) WHERE user_id IS NULL DO NOTHING").
		PlaceholderFormat(squirrel.Dollar)

	for _, c := range models.DefaultCategories {
		builder = builder.Values(uuid.New(), strings.TrimSpace(c.Name), c.Icon, c.Color)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to seed categories: %w", err)
	}
	return tag.RowsAffected(), nil
}
