package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"roombooking/internal/domain"
)

const userColumns = `id, name, email, role, password_hash, salt, created_at, updated_at`

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) domain.UserRepository {
	return &userRepository{db: db}
}

// Create inserts u and fills in its generated id. Names are unique
// case-sensitively; a clash yields domain.ErrDuplicateName.
func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (name, email, role, password_hash, salt, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		u.Name, nullString(u.Email), string(u.Role), u.PasswordHash, u.Salt, u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
	switch {
	case err == nil:
		return nil
	case pqCode(err) == codeUniqueViolation:
		return fmt.Errorf("%w: %q", domain.ErrDuplicateName, u.Name)
	default:
		return fmt.Errorf("insert user: %w", err)
	}
}

func (r *userRepository) GetByName(ctx context.Context, name string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE name = $1`, name)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// List matches f.Query against names with ILIKE, so % and _ in the query
// are escaped first.
func (r *userRepository) List(ctx context.Context, f domain.UserFilter, page domain.PaginationParams) ([]*domain.User, int, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		add(`name ILIKE $%d`, "%"+likeEscaper.Replace(q)+"%")
	}
	if len(f.Roles) > 0 {
		roles := make([]string, len(f.Roles))
		for i, role := range f.Roles {
			roles[i] = string(role)
		}
		add(`role = ANY($%d)`, pq.Array(roles))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY name LIMIT $%d OFFSET $%d`, userColumns, where, n+1, n+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, limitArg(page.PageSize), page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("select users: %w", err)
	}
	list, err := collect(rows, scanUser)
	if err != nil {
		return nil, 0, fmt.Errorf("scan users: %w", err)
	}
	return list, total, nil
}

func (r *userRepository) Update(ctx context.Context, u *domain.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = $2, email = $3, role = $4, password_hash = $5, salt = $6, updated_at = $7 WHERE id = $1`,
		u.ID, u.Name, nullString(u.Email), string(u.Role), u.PasswordHash, u.Salt, u.UpdatedAt,
	)
	switch {
	case isInvalidID(err):
		return domain.ErrNotFound
	case pqCode(err) == codeUniqueViolation:
		return fmt.Errorf("%w: %q", domain.ErrDuplicateName, u.Name)
	case err != nil:
		return fmt.Errorf("update user: %w", err)
	}
	return affectedOne(result)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u     domain.User
		email sql.NullString
		role  string
	)
	if err := row.Scan(&u.ID, &u.Name, &email, &role, &u.PasswordHash, &u.Salt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Email = email.String
	u.Role = domain.Role(role)
	return &u, nil
}
