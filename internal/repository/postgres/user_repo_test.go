package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombooking/internal/domain"
)

var userCols = []string{"id", "name", "email", "role", "password_hash", "salt", "created_at", "updated_at"}

func TestUserRepository_Create(t *testing.T) {
	ts := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		user   domain.User
		result func(*sqlmock.ExpectedQuery)
		wantID string
		errIs  error
	}{
		{
			name: "student without email stores NULL",
			user: domain.User{Name: "alice", Role: domain.RoleStudent, PasswordHash: "h", Salt: "s", CreatedAt: ts, UpdatedAt: ts},
			result: func(q *sqlmock.ExpectedQuery) {
				q.WithArgs("alice", nil, "student", "h", "s", ts, ts).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user-1"))
			},
			wantID: "user-1",
		},
		{
			name: "teacher with email",
			user: domain.User{Name: "mr.smith", Email: "smith@school.test", Role: domain.RoleTeacher, CreatedAt: ts, UpdatedAt: ts},
			result: func(q *sqlmock.ExpectedQuery) {
				q.WithArgs("mr.smith", "smith@school.test", "teacher", "", "", ts, ts).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user-2"))
			},
			wantID: "user-2",
		},
		{
			name:   "name taken",
			user:   domain.User{Name: "alice", Role: domain.RoleStudent},
			result: func(q *sqlmock.ExpectedQuery) { q.WillReturnError(&pq.Error{Code: "23505"}) },
			errIs:  domain.ErrDuplicateName,
		},
		{
			name:   "connection lost",
			user:   domain.User{Name: "bob", Role: domain.RoleStudent},
			result: func(q *sqlmock.ExpectedQuery) { q.WillReturnError(sql.ErrConnDone) },
			errIs:  sql.ErrConnDone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.result(mock.ExpectQuery(`INSERT INTO users \(name, email, role, password_hash, salt, created_at, updated_at\)`))

			u := tt.user
			err = NewUserRepository(db).Create(context.Background(), &u)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, u.ID)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_Lookup(t *testing.T) {
	ts := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		pattern string
		lookup  func(domain.UserRepository) (*domain.User, error)
		rows    *sqlmock.Rows
		err     error
		want    *domain.User
		errIs   error
	}{
		{
			name:    "by name",
			pattern: `FROM users WHERE name = \$1`,
			lookup: func(r domain.UserRepository) (*domain.User, error) {
				return r.GetByName(context.Background(), "root")
			},
			rows: sqlmock.NewRows(userCols).AddRow("user-1", "root", nil, "admin", "h", "s", ts, ts),
			want: &domain.User{ID: "user-1", Name: "root", Role: domain.RoleAdmin, PasswordHash: "h", Salt: "s", CreatedAt: ts, UpdatedAt: ts},
		},
		{
			name:    "by id with email",
			pattern: `FROM users WHERE id = \$1`,
			lookup: func(r domain.UserRepository) (*domain.User, error) {
				return r.GetByID(context.Background(), "user-2")
			},
			rows: sqlmock.NewRows(userCols).AddRow("user-2", "alice", "a@school.test", "student", "h", "s", ts, ts),
			want: &domain.User{ID: "user-2", Name: "alice", Email: "a@school.test", Role: domain.RoleStudent, PasswordHash: "h", Salt: "s", CreatedAt: ts, UpdatedAt: ts},
		},
		{
			name:    "unknown name",
			pattern: `FROM users WHERE name = \$1`,
			lookup: func(r domain.UserRepository) (*domain.User, error) {
				return r.GetByName(context.Background(), "nobody")
			},
			err:   sql.ErrNoRows,
			errIs: domain.ErrNotFound,
		},
		{
			name:    "malformed uuid",
			pattern: `FROM users WHERE id = \$1`,
			lookup: func(r domain.UserRepository) (*domain.User, error) {
				return r.GetByID(context.Background(), "not-a-uuid")
			},
			err:   &pq.Error{Code: "22P02"},
			errIs: domain.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			q := mock.ExpectQuery(tt.pattern)
			if tt.err != nil {
				q.WillReturnError(tt.err)
			} else {
				q.WillReturnRows(tt.rows)
			}

			got, err := tt.lookup(NewUserRepository(db))
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_List(t *testing.T) {
	ts := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	roles := pq.Array([]string{"student", "teacher"})
	mock.ExpectQuery(`SELECT count\(\*\) FROM users WHERE name ILIKE \$1 AND role = ANY\(\$2\)`).
		WithArgs(`%al\_1%`, roles).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`FROM users WHERE name ILIKE \$1 AND role = ANY\(\$2\) ORDER BY name LIMIT \$3 OFFSET \$4`).
		WithArgs(`%al\_1%`, roles, 2, 2).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("user-3", "sal_1", nil, "teacher", "h", "s", ts, ts))

	list, total, err := NewUserRepository(db).List(context.Background(),
		domain.UserFilter{Query: " al_1 ", Roles: []domain.Role{domain.RoleStudent, domain.RoleTeacher}},
		domain.PaginationParams{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 1)
	assert.Equal(t, "sal_1", list[0].Name)
	assert.Equal(t, domain.RoleTeacher, list[0].Role)
	assert.Empty(t, list[0].Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListUnfiltered(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT count\(\*\) FROM users$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM users ORDER BY name LIMIT \$1 OFFSET \$2`).
		WithArgs(nil, 0).
		WillReturnRows(sqlmock.NewRows(userCols))

	list, total, err := NewUserRepository(db).List(context.Background(), domain.UserFilter{}, domain.PaginationParams{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, list)
	assert.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Update(t *testing.T) {
	ts := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	user := domain.User{ID: "user-1", Name: "alice", Role: domain.RoleTeacher, PasswordHash: "h2", Salt: "s2", UpdatedAt: ts}

	tests := []struct {
		name   string
		result func(*sqlmock.ExpectedExec)
		errIs  error
	}{
		{
			name:   "updated",
			result: func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 1)) },
		},
		{
			name:   "unknown id",
			result: func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 0)) },
			errIs:  domain.ErrNotFound,
		},
		{
			name:   "malformed id",
			result: func(e *sqlmock.ExpectedExec) { e.WillReturnError(&pq.Error{Code: "22P02"}) },
			errIs:  domain.ErrNotFound,
		},
		{
			name:   "name taken",
			result: func(e *sqlmock.ExpectedExec) { e.WillReturnError(&pq.Error{Code: "23505"}) },
			errIs:  domain.ErrDuplicateName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.result(mock.ExpectExec(`UPDATE users SET name = \$2, email = \$3, role = \$4, password_hash = \$5, salt = \$6, updated_at = \$7 WHERE id = \$1`).
				WithArgs("user-1", "alice", nil, "teacher", "h2", "s2", ts))

			u := user
			err = NewUserRepository(db).Update(context.Background(), &u)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
