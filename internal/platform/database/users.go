package database

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/vortechron/nightwatch-testing/internal/domain"
)

// UserDirectory reads and seeds rows of the users table.
type UserDirectory struct {
	db    *DB
	table string
}

// NewUserDirectory creates a UserDirectory over table.
func NewUserDirectory(db *DB, table string) *UserDirectory {
	return &UserDirectory{db: db, table: table}
}

func (d *UserDirectory) from() *goqu.SelectDataset {
	return d.db.Goqu.From(goqu.T(d.table)).
		Select("id", "name", "email", "password_hash").
		Prepared(true)
}

// FirstUser returns the user with the lowest id, or nil when the table is
// empty.
func (d *UserDirectory) FirstUser(ctx context.Context) (*domain.User, error) {
	var row userRow
	found, err := d.from().Order(goqu.C("id").Asc()).ScanStructContext(ctx, &row)
	if err != nil {
		return nil, MapError(err)
	}
	if !found {
		return nil, nil
	}
	return row.toDomain(), nil
}

// FindByEmail returns the user with the given email.
func (d *UserDirectory) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var row userRow
	found, err := d.from().Where(goqu.C("email").Eq(email)).ScanStructContext(ctx, &row)
	if err != nil {
		return nil, MapError(err)
	}
	if !found {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, email)
	}
	return row.toDomain(), nil
}

// FindByID returns the user with the given id.
func (d *UserDirectory) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	var row userRow
	found, err := d.from().Where(goqu.C("id").Eq(id)).ScanStructContext(ctx, &row)
	if err != nil {
		return nil, MapError(err)
	}
	if !found {
		return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	return row.toDomain(), nil
}

// Seed creates a user with a bcrypt hash of password and returns it.
func (d *UserDirectory) Seed(ctx context.Context, name, email, password string) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{Name: name, Email: email, HashedPassword: string(hash)}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	record := goqu.Record{
		"name":          user.Name,
		"email":         user.Email,
		"password_hash": user.HashedPassword,
	}
	insert := d.db.Goqu.Insert(goqu.T(d.table)).Rows(record).Prepared(true)

	if d.db.driver == DriverPostgres {
		if _, err := insert.Returning("id").Executor().ScanValContext(ctx, &user.ID); err != nil {
			return nil, MapError(err)
		}
		return user, nil
	}

	res, err := insert.Executor().ExecContext(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	if user.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read new user id: %w", err)
	}
	return user, nil
}

// CheckPassword reports whether password matches the user's stored hash.
func CheckPassword(user *domain.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) == nil
}

func (r userRow) toDomain() *domain.User {
	return &domain.User{
		ID:             r.ID,
		Name:           r.Name,
		Email:          r.Email,
		HashedPassword: r.PasswordHash,
	}
}
