package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"groupgate.org/internal/groups"
)

const membershipColumns = `id, group_id, user_id, role_id, joined_at, updated_at`

func scanMembership(row rowScanner) (groups.Membership, error) {
	var m groups.Membership
	err := row.Scan(&m.ID, &m.GroupID, &m.UserID, &m.RoleID, &m.JoinedAt, &m.UpdatedAt)
	return m, err
}

// bindableRole resolves roleID and checks it may be given to userID in groupID.
func bindableRole(ctx context.Context, tx *sql.Tx, groupID, ownerID, userID, roleID string) error {
	var (
		roleGroup string
		name      string
		owner     bool
	)
	err := tx.QueryRowContext(ctx, `select group_id, name, is_owner from roles where id = $1`, roleID).Scan(&roleGroup, &name, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return groups.ErrRoleNotFound
	}
	if err != nil {
		return err
	}
	if roleGroup != groupID {
		return groups.ErrCrossGroupRole
	}
	isOwnerRole := owner || strings.EqualFold(strings.TrimSpace(name), "owner")
	switch {
	case userID == ownerID && !isOwnerRole:
		return groups.ErrOwnerProtected
	case userID != ownerID && isOwnerRole:
		return groups.ErrOwnerRoleProtected
	}
	return nil
}

// AddMember inserts with ON CONFLICT DO NOTHING so a lost race on the
// (group_id, user_id) constraint reads as ErrAlreadyMember.
func (s *Store) AddMember(ctx context.Context, m groups.Membership) (groups.Membership, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		ownerID, err := groupOwner(ctx, tx, m.GroupID)
		if err != nil {
			return err
		}
		if m.UserID == ownerID {
			return groups.ErrAlreadyMember
		}
		if err := bindableRole(ctx, tx, m.GroupID, ownerID, m.UserID, m.RoleID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			insert into memberships (id, group_id, user_id, role_id, joined_at, updated_at)
			values ($1, $2, $3, $4, $5, $6)
			on conflict (group_id, user_id) do nothing
		`, m.ID, m.GroupID, m.UserID, m.RoleID, m.JoinedAt, m.UpdatedAt)
		if err != nil {
			return translate(err)
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if aff == 0 {
			return groups.ErrAlreadyMember
		}
		return nil
	})
	if err != nil {
		return groups.Membership{}, err
	}
	return m, nil
}

func (s *Store) GetMember(ctx context.Context, groupID, userID string) (groups.Member, error) {
	if s.db == nil {
		return groups.Member{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		select m.id, m.group_id, m.user_id, m.role_id, m.joined_at, m.updated_at,
		       r.id, r.group_id, r.name, r.permissions, r.priority, r.parent_role_id, r.is_owner, r.created_at, r.updated_at
		from memberships m
		join roles r on r.id = m.role_id
		where m.group_id = $1 and m.user_id = $2
	`, groupID, userID)
	mem, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return groups.Member{}, groups.ErrMemberNotFound
	}
	return mem, err
}

// memberRow adapts a joined row so scanRole can read the role half.
type memberRow struct {
	rowScanner
	m *groups.Membership
}

func (r memberRow) Scan(dest ...any) error {
	head := []any{&r.m.ID, &r.m.GroupID, &r.m.UserID, &r.m.RoleID, &r.m.JoinedAt, &r.m.UpdatedAt}
	return r.rowScanner.Scan(append(head, dest...)...)
}

func scanMember(row rowScanner) (groups.Member, error) {
	var mem groups.Member
	role, err := scanRole(memberRow{rowScanner: row, m: &mem.Membership})
	if err != nil {
		return groups.Member{}, err
	}
	mem.Role = role
	return mem, nil
}

// UpdateMemberRole locks the membership row before validating the new role,
// so a missing member reads as ErrMemberNotFound whatever roleID is.
func (s *Store) UpdateMemberRole(ctx context.Context, groupID, userID, roleID string) (groups.Membership, error) {
	var out groups.Membership
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		ownerID, err := groupOwner(ctx, tx, groupID)
		if err != nil {
			return err
		}
		var current string
		err = tx.QueryRowContext(ctx, `
			select role_id from memberships
			where group_id = $1 and user_id = $2
			for update
		`, groupID, userID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return groups.ErrMemberNotFound
		}
		if err != nil {
			return err
		}
		if err := bindableRole(ctx, tx, groupID, ownerID, userID, roleID); err != nil {
			return err
		}
		out, err = scanMembership(tx.QueryRowContext(ctx, `
			update memberships set role_id = $1, updated_at = now()
			where group_id = $2 and user_id = $3
			returning `+membershipColumns, roleID, groupID, userID))
		if errors.Is(err, sql.ErrNoRows) {
			return groups.ErrMemberNotFound
		}
		return translate(err)
	})
	if err != nil {
		return groups.Membership{}, err
	}
	return out, nil
}

func (s *Store) RemoveMember(ctx context.Context, groupID, userID string) error {
	if s.db == nil {
		return errNoDB
	}
	ownerID, err := groupOwner(ctx, s.db, groupID)
	if err != nil {
		return err
	}
	if userID == ownerID {
		return groups.ErrOwnerProtected
	}
	res, err := s.db.ExecContext(ctx, `delete from memberships where group_id = $1 and user_id = $2`, groupID, userID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return groups.ErrMemberNotFound
	}
	return nil
}

// ListMembers treats an empty result as a missing group: the owner's
// membership cannot be removed.
func (s *Store) ListMembers(ctx context.Context, groupID string) ([]groups.Member, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select m.id, m.group_id, m.user_id, m.role_id, m.joined_at, m.updated_at,
		       r.id, r.group_id, r.name, r.permissions, r.priority, r.parent_role_id, r.is_owner, r.created_at, r.updated_at
		from memberships m
		join roles r on r.id = m.role_id
		where m.group_id = $1
		order by m.joined_at, m.id
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []groups.Member
	for rows.Next() {
		mem, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, groups.ErrGroupNotFound
	}
	return out, nil
}

func (s *Store) PurgeUser(ctx context.Context, userID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var owns bool
		if err := tx.QueryRowContext(ctx, `select exists(select 1 from groups where owner_id = $1)`, userID).Scan(&owns); err != nil {
			return err
		}
		if owns {
			return groups.ErrOwnerProtected
		}
		if _, err := tx.ExecContext(ctx, `delete from join_requests where user_id = $1`, userID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `delete from memberships where user_id = $1`, userID); err != nil {
			return err
		}
		return nil
	})
}
