package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-account/pkg/simpleaccount"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simpleaccount.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) simpleaccount.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) simpleaccount.Repository {
	return &Repository{db: pool}
}

// handlePostgresError maps constraint violations to the package sentinels
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			switch {
			case strings.Contains(pgErr.ConstraintName, "profiles_handle"):
				return simpleaccount.ErrHandleTaken
			case strings.Contains(pgErr.ConstraintName, "categories_name"):
				return simpleaccount.ErrCategoryNameTaken
			}
			return fmt.Errorf("duplicate entry in %s: %s", operation, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			switch {
			case strings.Contains(pgErr.ConstraintName, "content_id"):
				return simpleaccount.ErrContentNotFound
			case strings.Contains(pgErr.ConstraintName, "category_id"):
				return simpleaccount.ErrCategoryNotFound
			}
			return fmt.Errorf("referenced record not found in %s", operation)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Profile operations

func (r *Repository) HandleExists(ctx context.Context, handle string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM profiles WHERE lower(handle) = lower($1))`

	var exists bool
	if err := r.db.QueryRow(ctx, query, handle).Scan(&exists); err != nil {
		return false, r.handlePostgresError("check handle", err)
	}
	return exists, nil
}

func (r *Repository) CreateProfile(ctx context.Context, profile *simpleaccount.Profile) error {
	query := `
		INSERT INTO profiles (
			id, handle, display_name, bio, avatar_ref, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		profile.ID, profile.Handle, profile.DisplayName, profile.Bio,
		profile.AvatarRef, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create profile", err)
	}
	return nil
}

func (r *Repository) GetProfile(ctx context.Context, id uuid.UUID) (*simpleaccount.Profile, error) {
	query := `
		SELECT id, handle, display_name, bio, avatar_ref, created_at, updated_at
		FROM profiles WHERE id = $1`

	var p simpleaccount.Profile
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Handle, &p.DisplayName, &p.Bio, &p.AvatarRef, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleaccount.ErrProfileNotFound
		}
		return nil, r.handlePostgresError("get profile", err)
	}
	return &p, nil
}

func (r *Repository) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id); err != nil {
		return r.handlePostgresError("delete profile", err)
	}
	return nil
}

// Category operations

func (r *Repository) CreateCategory(ctx context.Context, category *simpleaccount.Category) error {
	query := `INSERT INTO categories (id, name, creator_id, created_at) VALUES ($1, $2, $3, $4)`

	if _, err := r.db.Exec(ctx, query, category.ID, category.Name, category.CreatorID, category.CreatedAt); err != nil {
		return r.handlePostgresError("create category", err)
	}
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id uuid.UUID) (*simpleaccount.Category, error) {
	query := `SELECT id, name, creator_id, created_at FROM categories WHERE id = $1`

	var c simpleaccount.Category
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.CreatorID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleaccount.ErrCategoryNotFound
		}
		return nil, r.handlePostgresError("get category", err)
	}
	return &c, nil
}

func (r *Repository) ListCategoryIDsByCreator(ctx context.Context, creatorID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT id FROM categories WHERE creator_id = $1 ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, creatorID)
	if err != nil {
		return nil, r.handlePostgresError("list categories by creator", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, r.handlePostgresError("list categories by creator", err)
	}
	return ids, nil
}

func (r *Repository) ListForeignCategoryAuthors(ctx context.Context, categoryIDs []uuid.UUID, excludeAuthor uuid.UUID) ([]simpleaccount.CategoryAuthor, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT cc.category_id, c.author_id
		FROM content_categories cc
		JOIN content c ON c.id = cc.content_id
		WHERE cc.category_id = ANY($1) AND c.author_id <> $2
		ORDER BY cc.category_id, c.author_id`

	rows, err := r.db.Query(ctx, query, categoryIDs, excludeAuthor)
	if err != nil {
		return nil, r.handlePostgresError("list foreign category authors", err)
	}
	defer rows.Close()

	var result []simpleaccount.CategoryAuthor
	for rows.Next() {
		var ca simpleaccount.CategoryAuthor
		if err := rows.Scan(&ca.CategoryID, &ca.AuthorID); err != nil {
			return nil, r.handlePostgresError("scan category author", err)
		}
		result = append(result, ca)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list foreign category authors", err)
	}
	return result, nil
}

func (r *Repository) ReassignCategoryCreator(ctx context.Context, categoryID, creatorID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE categories SET creator_id = $2 WHERE id = $1`, categoryID, creatorID)
	if err != nil {
		return r.handlePostgresError("reassign category", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleaccount.ErrCategoryNotFound
	}
	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	// content_categories rows go with it through ON DELETE CASCADE
	if _, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
		return r.handlePostgresError("delete category", err)
	}
	return nil
}

// Content operations

func (r *Repository) CreateContent(ctx context.Context, content *simpleaccount.Content) error {
	query := `INSERT INTO content (id, author_id, title, body, created_at) VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.Exec(ctx, query, content.ID, content.AuthorID, content.Title, content.Body, content.CreatedAt); err != nil {
		return r.handlePostgresError("create content", err)
	}
	return nil
}

func (r *Repository) LinkContentCategory(ctx context.Context, link simpleaccount.ContentCategoryLink) error {
	query := `
		INSERT INTO content_categories (content_id, category_id) VALUES ($1, $2)
		ON CONFLICT (content_id, category_id) DO NOTHING`

	if _, err := r.db.Exec(ctx, query, link.ContentID, link.CategoryID); err != nil {
		return r.handlePostgresError("link content category", err)
	}
	return nil
}

func (r *Repository) ListContentCategoryLinks(ctx context.Context, contentID uuid.UUID) ([]simpleaccount.ContentCategoryLink, error) {
	query := `SELECT content_id, category_id FROM content_categories WHERE content_id = $1 ORDER BY category_id`

	rows, err := r.db.Query(ctx, query, contentID)
	if err != nil {
		return nil, r.handlePostgresError("list content categories", err)
	}
	defer rows.Close()

	var result []simpleaccount.ContentCategoryLink
	for rows.Next() {
		var link simpleaccount.ContentCategoryLink
		if err := rows.Scan(&link.ContentID, &link.CategoryID); err != nil {
			return nil, r.handlePostgresError("scan content category", err)
		}
		result = append(result, link)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list content categories", err)
	}
	return result, nil
}

func (r *Repository) CountContentByAuthor(ctx context.Context, authorID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM content WHERE author_id = $1`, authorID).Scan(&n); err != nil {
		return 0, r.handlePostgresError("count content", err)
	}
	return n, nil
}

func (r *Repository) DeleteContentByAuthor(ctx context.Context, authorID uuid.UUID) (int64, error) {
	// One statement: category links cascade through the foreign key and
	// reactions on the removed posts are deleted by the second CTE.
	query := `
		WITH removed AS (
			DELETE FROM content WHERE author_id = $1 RETURNING id
		), removed_reactions AS (
			DELETE FROM reactions
			WHERE subject_type = 'post' AND subject_id IN (SELECT id FROM removed)
		)
		SELECT count(*) FROM removed`

	var n int64
	if err := r.db.QueryRow(ctx, query, authorID).Scan(&n); err != nil {
		return 0, r.handlePostgresError("delete content by author", err)
	}
	return n, nil
}

// Reaction operations

func (r *Repository) CreateReaction(ctx context.Context, reaction *simpleaccount.Reaction) error {
	query := `
		INSERT INTO reactions (subject_id, user_id, subject_type, created_at)
		SELECT $1::uuid, $2::uuid, $3::text, $4::timestamptz
		WHERE $3::text <> 'post' OR EXISTS (SELECT 1 FROM content WHERE id = $1::uuid)
		ON CONFLICT (subject_id, user_id, subject_type) DO UPDATE SET created_at = EXCLUDED.created_at`

	tag, err := r.db.Exec(ctx, query,
		reaction.SubjectID, reaction.UserID, string(reaction.SubjectType), reaction.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create reaction", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleaccount.ErrContentNotFound
	}
	return nil
}

func (r *Repository) CountReactionsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM reactions WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, r.handlePostgresError("count reactions", err)
	}
	return n, nil
}

func (r *Repository) DeleteReactionsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM reactions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, r.handlePostgresError("delete reactions", err)
	}
	return tag.RowsAffected(), nil
}
