package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"groupgate.org/internal/groups"
)

const roleColumns = `id, group_id, name, permissions, priority, parent_role_id, is_owner, created_at, updated_at`

func scanRole(row rowScanner) (groups.Role, error) {
	var (
		r      groups.Role
		perms  []byte
		parent sql.NullString
	)
	if err := row.Scan(&r.ID, &r.GroupID, &r.Name, &perms, &r.Priority, &parent, &r.Owner, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return groups.Role{}, err
	}
	r.Permissions = []groups.Permission{}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &r.Permissions); err != nil {
			return groups.Role{}, fmt.Errorf("decode permissions: %w", err)
		}
	}
	r.ParentRoleID = parent.String
	return r, nil
}

func insertRole(ctx context.Context, tx *sql.Tx, r groups.Role) error {
	perms, err := encodePermissions(r.Permissions)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		insert into roles (id, group_id, name, permissions, priority, parent_role_id, is_owner, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.ID, r.GroupID, r.Name, perms, r.Priority, nullIfEmpty(r.ParentRoleID), r.Owner, r.CreatedAt, r.UpdatedAt)
	return translate(err)
}

func (s *Store) CreateRole(ctx context.Context, role groups.Role) (groups.Role, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return insertRole(ctx, tx, role)
	})
	if err != nil {
		return groups.Role{}, err
	}
	if role.Permissions == nil {
		role.Permissions = []groups.Permission{}
	}
	return role, nil
}

func (s *Store) GetRole(ctx context.Context, roleID string) (groups.Role, error) {
	if s.db == nil {
		return groups.Role{}, errNoDB
	}
	r, err := scanRole(s.db.QueryRowContext(ctx, `select `+roleColumns+` from roles where id = $1`, roleID))
	if errors.Is(err, sql.ErrNoRows) {
		return groups.Role{}, groups.ErrRoleNotFound
	}
	return r, err
}

func (s *Store) UpdateRole(ctx context.Context, roleID string, upd groups.RoleUpdate) (groups.Role, error) {
	var out groups.Role
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := scanRole(tx.QueryRowContext(ctx, `select `+roleColumns+` from roles where id = $1 for update`, roleID))
		if errors.Is(err, sql.ErrNoRows) {
			return groups.ErrRoleNotFound
		}
		if err != nil {
			return err
		}
		if upd.GroupID != nil && *upd.GroupID != current.GroupID {
			return groups.ErrGroupChange
		}
		if current.Owner && (upd.Name != nil || upd.Permissions != nil) {
			return groups.ErrOwnerRoleProtected
		}

		var (
			sets []string
			args []any
			idx  = 1
		)
		if upd.Name != nil {
			sets = append(sets, fmt.Sprintf("name = $%d", idx))
			args = append(args, *upd.Name)
			idx++
		}
		if upd.Permissions != nil {
			perms, err := encodePermissions(*upd.Permissions)
			if err != nil {
				return err
			}
			sets = append(sets, fmt.Sprintf("permissions = $%d", idx))
			args = append(args, perms)
			idx++
		}
		if upd.Priority != nil {
			sets = append(sets, fmt.Sprintf("priority = $%d", idx))
			args = append(args, *upd.Priority)
			idx++
		}
		if upd.ParentRoleID != nil {
			if *upd.ParentRoleID == roleID {
				return fmt.Errorf("%w: a role cannot be its own parent", groups.ErrInvalidInput)
			}
			sets = append(sets, fmt.Sprintf("parent_role_id = $%d", idx))
			args = append(args, nullIfEmpty(*upd.ParentRoleID))
			idx++
		}
		if len(sets) == 0 {
			out = current
			return nil
		}
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update roles set %s where id = $%d returning %s`, strings.Join(sets, ", "), idx, roleColumns)
		args = append(args, roleID)
		out, err = scanRole(tx.QueryRowContext(ctx, query, args...))
		return translate(err)
	})
	if err != nil {
		return groups.Role{}, err
	}
	return out, nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var owner bool
		err := tx.QueryRowContext(ctx, `select is_owner from roles where id = $1 for update`, roleID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return groups.ErrRoleNotFound
		}
		if err != nil {
			return err
		}
		if owner {
			return groups.ErrOwnerRoleProtected
		}
		var inUse bool
		if err := tx.QueryRowContext(ctx, `select exists(select 1 from memberships where role_id = $1)`, roleID).Scan(&inUse); err != nil {
			return err
		}
		if inUse {
			return groups.ErrRoleInUse
		}
		if _, err := tx.ExecContext(ctx, `
			update roles set parent_role_id = null, updated_at = now()
			where parent_role_id = $1
		`, roleID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `delete from roles where id = $1`, roleID); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return groups.ErrRoleInUse
			}
			return err
		}
		return nil
	})
}

// ListRoles relies on every group holding its undeletable owner role: no
// rows means no group.
func (s *Store) ListRoles(ctx context.Context, groupID string) ([]groups.Role, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+roleColumns+`
		from roles
		where group_id = $1
		order by priority desc, created_at asc, id asc
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []groups.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, groups.ErrGroupNotFound
	}
	return out, nil
}
