package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
	"github.com/garyjia/contract-approvals/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// RoleRepository implements port.RoleRepository
type RoleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *sql.DB, logger *zap.Logger) port.RoleRepository {
	return &RoleRepository{db: db, logger: logger}
}

func (r *RoleRepository) Create(ctx context.Context, role *entity.Role) error {
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `INSERT INTO roles (name) VALUES (?)`, role.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: role %q already exists", entity.ErrValidation, role.Name)
		}
		return fmt.Errorf("failed to create role: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	role.ID = id
	return nil
}

func (r *RoleRepository) GetByID(ctx context.Context, id int64) (*entity.Role, error) {
	var role entity.Role
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT id, name FROM roles WHERE id = ?`, id).
		Scan(&role.ID, &role.Name)
	if err != nil {
		return nil, wrapNotFound(err, "role", id)
	}
	return &role, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]*entity.Role, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `SELECT id, name FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var out []*entity.Role
	for rows.Next() {
		var role entity.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		out = append(out, &role)
	}
	return out, rows.Err()
}

const userColumns = `id, name, email, role_id, department_id, lark_open_id, active, created_at, updated_at`

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{db: db, logger: logger}
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO users (name, email, role_id, department_id, lark_open_id, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Name, u.Email, nullInt64(u.RoleID), nullInt64(u.DepartmentID), u.LarkOpenID, u.Active, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("name", u.Name), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	u.ID = id
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, wrapNotFound(err, "user", id)
	}
	return u, nil
}

// List returns users ordered by id, so role fan-out is deterministic
func (r *UserRepository) List(ctx context.Context, filter entity.UserFilter) ([]*entity.User, error) {
	var w where
	if filter.RoleID > 0 {
		w.add("role_id = ?", filter.RoleID)
	}
	if filter.DepartmentID > 0 {
		w.add("department_id = ?", filter.DepartmentID)
	}
	if filter.ActiveOnly {
		w.add("active = 1")
	}

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+userColumns+` FROM users`+w.String()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var out []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	u.UpdatedAt = time.Now().UTC()
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE users SET name = ?, email = ?, role_id = ?, department_id = ?, lark_open_id = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		u.Name, u.Email, nullInt64(u.RoleID), nullInt64(u.DepartmentID), u.LarkOpenID, u.Active, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireAffected(res, "user", u.ID)
}

func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET active = ?, updated_at = ? WHERE id = ?`, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireAffected(res, "user", id)
}

func scanUser(s rowScanner) (*entity.User, error) {
	var u entity.User
	var roleID, deptID sql.NullInt64
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &roleID, &deptID, &u.LarkOpenID, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.RoleID = int64Ptr(roleID)
	u.DepartmentID = int64Ptr(deptID)
	return &u, nil
}

const departmentColumns = `id, name, code, parent_id, head_user_id, created_at, updated_at`

// DepartmentRepository implements port.DepartmentRepository
type DepartmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDepartmentRepository creates a new department repository
func NewDepartmentRepository(db *sql.DB, logger *zap.Logger) port.DepartmentRepository {
	return &DepartmentRepository{db: db, logger: logger}
}

func (r *DepartmentRepository) Create(ctx context.Context, d *entity.Department) error {
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO departments (name, code, parent_id, head_user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.Name, d.Code, nullInt64(d.ParentID), nullInt64(d.HeadUserID), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create department: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	d.ID = id
	return nil
}

func (r *DepartmentRepository) GetByID(ctx context.Context, id int64) (*entity.Department, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id = ?`, id)
	d, err := scanDepartment(row)
	if err != nil {
		return nil, wrapNotFound(err, "department", id)
	}
	return d, nil
}

func (r *DepartmentRepository) List(ctx context.Context) ([]*entity.Department, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `SELECT `+departmentColumns+` FROM departments ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query departments: %w", err)
	}
	defer rows.Close()

	var out []*entity.Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DepartmentRepository) Update(ctx context.Context, d *entity.Department) error {
	d.UpdatedAt = time.Now().UTC()
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE departments SET name = ?, code = ?, parent_id = ?, head_user_id = ?, updated_at = ? WHERE id = ?`,
		d.Name, d.Code, nullInt64(d.ParentID), nullInt64(d.HeadUserID), d.UpdatedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update department: %w", err)
	}
	return requireAffected(res, "department", d.ID)
}

func (r *DepartmentRepository) Delete(ctx context.Context, id int64) error {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM departments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete department: %w", err)
	}
	return requireAffected(res, "department", id)
}

func scanDepartment(s rowScanner) (*entity.Department, error) {
	var d entity.Department
	var parent, head sql.NullInt64
	if err := s.Scan(&d.ID, &d.Name, &d.Code, &parent, &head, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.ParentID = int64Ptr(parent)
	d.HeadUserID = int64Ptr(head)
	return &d, nil
}

const delegationColumns = `id, from_user_id, to_user_id, starts_at, ends_at, active, reason, created_at`

// DelegationRepository implements port.DelegationRepository
type DelegationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDelegationRepository creates a new delegation repository
func NewDelegationRepository(db *sql.DB, logger *zap.Logger) port.DelegationRepository {
	return &DelegationRepository{db: db, logger: logger}
}

func (r *DelegationRepository) Create(ctx context.Context, d *entity.DelegationRule) error {
	d.CreatedAt = time.Now().UTC()
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO delegation_rules (from_user_id, to_user_id, starts_at, ends_at, active, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.FromUserID, d.ToUserID, d.StartsAt.UTC(), d.EndsAt.UTC(), d.Active, d.Reason, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create delegation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	d.ID = id
	return nil
}

func (r *DelegationRepository) GetByID(ctx context.Context, id int64) (*entity.DelegationRule, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+delegationColumns+` FROM delegation_rules WHERE id = ?`, id)
	d, err := scanDelegation(row)
	if err != nil {
		return nil, wrapNotFound(err, "delegation", id)
	}
	return d, nil
}

func (r *DelegationRepository) List(ctx context.Context, activeOnly bool) ([]*entity.DelegationRule, error) {
	var w where
	if activeOnly {
		w.add("active = 1")
	}
	return r.query(ctx, `SELECT `+delegationColumns+` FROM delegation_rules`+w.String()+` ORDER BY id`, w.args...)
}

func (r *DelegationRepository) Deactivate(ctx context.Context, id int64) error {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `UPDATE delegation_rules SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate delegation: %w", err)
	}
	return requireAffected(res, "delegation", id)
}

// FindActive evaluates the date range in Go; stored timestamps are compared as instants, not strings
func (r *DelegationRepository) FindActive(ctx context.Context, fromUserID int64, at time.Time) (*entity.DelegationRule, error) {
	rules, err := r.query(ctx,
		`SELECT `+delegationColumns+` FROM delegation_rules WHERE from_user_id = ? AND active = 1 ORDER BY id`,
		fromUserID)
	if err != nil {
		return nil, err
	}
	for _, d := range rules {
		if d.Covers(at) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("delegation for user %d: %w", fromUserID, entity.ErrNotFound)
}

func (r *DelegationRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.DelegationRule, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query delegations: %w", err)
	}
	defer rows.Close()

	var out []*entity.DelegationRule
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delegation: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDelegation(s rowScanner) (*entity.DelegationRule, error) {
	var d entity.DelegationRule
	if err := s.Scan(&d.ID, &d.FromUserID, &d.ToUserID, &d.StartsAt, &d.EndsAt, &d.Active, &d.Reason, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

var (
	_ port.RoleRepository       = (*RoleRepository)(nil)
	_ port.UserRepository       = (*UserRepository)(nil)
	_ port.DepartmentRepository = (*DepartmentRepository)(nil)
	_ port.DelegationRepository = (*DelegationRepository)(nil)
)
