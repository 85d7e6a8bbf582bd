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

const groupColumns = `id, name, description, owner_id, created_at, updated_at`

func scanGroup(row rowScanner) (groups.Group, error) {
	var g groups.Group
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.OwnerID, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func (s *Store) CreateGroup(ctx context.Context, ng groups.NewGroup) (groups.Group, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		g := ng.Group
		if _, err := tx.ExecContext(ctx, `
			insert into groups (id, name, description, owner_id, created_at, updated_at)
			values ($1, $2, $3, $4, $5, $6)
		`, g.ID, g.Name, g.Description, g.OwnerID, g.CreatedAt, g.UpdatedAt); err != nil {
			return translate(err)
		}
		for _, r := range ng.Roles {
			if err := insertRole(ctx, tx, r); err != nil {
				return err
			}
		}
		o := ng.Owner
		if _, err := tx.ExecContext(ctx, `
			insert into memberships (id, group_id, user_id, role_id, joined_at, updated_at)
			values ($1, $2, $3, $4, $5, $6)
		`, o.ID, o.GroupID, o.UserID, o.RoleID, o.JoinedAt, o.UpdatedAt); err != nil {
			return translate(err)
		}
		return nil
	})
	if err != nil {
		return groups.Group{}, err
	}
	return ng.Group, nil
}

func (s *Store) GetGroup(ctx context.Context, groupID string) (groups.Group, error) {
	if s.db == nil {
		return groups.Group{}, errNoDB
	}
	g, err := scanGroup(s.db.QueryRowContext(ctx, `select `+groupColumns+` from groups where id = $1`, groupID))
	if errors.Is(err, sql.ErrNoRows) {
		return groups.Group{}, groups.ErrGroupNotFound
	}
	return g, err
}

func (s *Store) UpdateGroup(ctx context.Context, groupID string, upd groups.GroupUpdate) (groups.Group, error) {
	if s.db == nil {
		return groups.Group{}, errNoDB
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
	if upd.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", idx))
		args = append(args, *upd.Description)
		idx++
	}
	if len(sets) == 0 {
		return s.GetGroup(ctx, groupID)
	}
	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf(`update groups set %s where id = $%d returning %s`, strings.Join(sets, ", "), idx, groupColumns)
	args = append(args, groupID)
	g, err := scanGroup(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return groups.Group{}, groups.ErrGroupNotFound
	}
	return g, err
}

// DeleteGroup removes dependents before the group itself; there are no
// ON DELETE CASCADE rules in the schema.
func (s *Store) DeleteGroup(ctx context.Context, groupID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, `select id from groups where id = $1 for update`, groupID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return groups.ErrGroupNotFound
		}
		if err != nil {
			return err
		}
		for _, stmt := range []string{
			`delete from join_requests where group_id = $1`,
			`delete from memberships where group_id = $1`,
			`delete from roles where group_id = $1`,
			`delete from groups where id = $1`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, groupID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListGroupsForUser(ctx context.Context, userID string) ([]groups.UserGroup, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select g.id, g.name, g.description, g.owner_id, g.created_at, g.updated_at, r.id, r.name
		from memberships m
		join groups g on g.id = m.group_id
		join roles r on r.id = m.role_id
		where m.user_id = $1
		order by m.joined_at, m.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []groups.UserGroup{}
	for rows.Next() {
		var ug groups.UserGroup
		g := &ug.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.OwnerID, &g.CreatedAt, &g.UpdatedAt, &ug.RoleID, &ug.RoleName); err != nil {
			return nil, err
		}
		out = append(out, ug)
	}
	return out, rows.Err()
}

func groupOwner(ctx context.Context, q querier, groupID string) (string, error) {
	var owner string
	err := q.QueryRowContext(ctx, `select owner_id from groups where id = $1`, groupID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", groups.ErrGroupNotFound
	}
	return owner, err
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func encodePermissions(perms []groups.Permission) ([]byte, error) {
	if perms == nil {
		perms = []groups.Permission{}
	}
	b, err := json.Marshal(perms)
	if err != nil {
		return nil, fmt.Errorf("marshal permissions: %w", err)
	}
	return b, nil
}
