package pg

import (
	"context"
	"database/sql"
	"errors"

	"groupgate.org/internal/groups"
)

const joinRequestColumns = `id, group_id, user_id, status, coalesce(resolved_by, ''), created_at, updated_at`

func scanJoinRequest(row rowScanner) (groups.JoinRequest, error) {
	var (
		r      groups.JoinRequest
		status string
	)
	err := row.Scan(&r.ID, &r.GroupID, &r.UserID, &status, &r.ResolvedBy, &r.CreatedAt, &r.UpdatedAt)
	r.Status = groups.JoinStatus(status)
	return r, err
}

func (s *Store) CreateJoinRequest(ctx context.Context, req groups.JoinRequest) (groups.JoinRequest, error) {
	var out groups.JoinRequest
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := groupOwner(ctx, tx, req.GroupID); err != nil {
			return err
		}
		var member bool
		if err := tx.QueryRowContext(ctx, `
			select exists(select 1 from memberships where group_id = $1 and user_id = $2)
		`, req.GroupID, req.UserID).Scan(&member); err != nil {
			return err
		}
		if member {
			return groups.ErrAlreadyMember
		}
		var err error
		out, err = scanJoinRequest(tx.QueryRowContext(ctx, `
			insert into join_requests (id, group_id, user_id, status, created_at, updated_at)
			values ($1, $2, $3, 'PENDING', $4, $5)
			returning `+joinRequestColumns,
			req.ID, req.GroupID, req.UserID, req.CreatedAt, req.UpdatedAt))
		return translate(err)
	})
	if err != nil {
		return groups.JoinRequest{}, err
	}
	return out, nil
}

func (s *Store) GetJoinRequest(ctx context.Context, groupID, requestID string) (groups.JoinRequest, error) {
	if s.db == nil {
		return groups.JoinRequest{}, errNoDB
	}
	r, err := scanJoinRequest(s.db.QueryRowContext(ctx, `
		select `+joinRequestColumns+` from join_requests where id = $1 and group_id = $2
	`, requestID, groupID))
	if errors.Is(err, sql.ErrNoRows) {
		return groups.JoinRequest{}, groups.ErrRequestNotFound
	}
	return r, err
}

func (s *Store) ListJoinRequests(ctx context.Context, groupID string) ([]groups.JoinRequest, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	if _, err := groupOwner(ctx, s.db, groupID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+joinRequestColumns+`
		from join_requests
		where group_id = $1
		order by created_at desc, id desc
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []groups.JoinRequest{}
	for rows.Next() {
		r, err := scanJoinRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResolveJoinRequest flips the status with a conditional update so that of
// two concurrent resolutions only one matches a PENDING row. Approval then
// creates the membership in the same transaction.
func (s *Store) ResolveJoinRequest(ctx context.Context, d groups.Decision) (groups.Resolution, error) {
	if !d.Status.Terminal() {
		return groups.Resolution{}, groups.ErrInvalidInput
	}
	var res groups.Resolution
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		req, err := scanJoinRequest(tx.QueryRowContext(ctx, `
			update join_requests
			set status = $1, resolved_by = $2, updated_at = $3
			where id = $4 and group_id = $5 and status = 'PENDING'
			returning `+joinRequestColumns,
			string(d.Status), nullIfEmpty(d.ResolvedBy), d.At, d.RequestID, d.GroupID))
		if errors.Is(err, sql.ErrNoRows) {
			return notPendingOrMissing(ctx, tx, d.GroupID, d.RequestID)
		}
		if err != nil {
			return err
		}
		res.Request = req
		if d.Status != groups.JoinApproved {
			return nil
		}

		var roleID string
		err = tx.QueryRowContext(ctx, `
			select id from roles where group_id = $1 and name = $2
			order by created_at, id
			limit 1
		`, d.GroupID, groups.DefaultRoleName).Scan(&roleID)
		if errors.Is(err, sql.ErrNoRows) {
			return groups.ErrDefaultRoleMissing
		}
		if err != nil {
			return err
		}

		m := groups.Membership{
			ID:        d.MembershipID,
			GroupID:   d.GroupID,
			UserID:    req.UserID,
			RoleID:    roleID,
			JoinedAt:  d.At,
			UpdatedAt: d.At,
		}
		result, err := tx.ExecContext(ctx, `
			insert into memberships (id, group_id, user_id, role_id, joined_at, updated_at)
			values ($1, $2, $3, $4, $5, $6)
			on conflict (group_id, user_id) do nothing
		`, m.ID, m.GroupID, m.UserID, m.RoleID, m.JoinedAt, m.UpdatedAt)
		if err != nil {
			return translate(err)
		}
		aff, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if aff == 0 {
			return groups.ErrAlreadyMember
		}
		res.Membership = &m
		return nil
	})
	if err != nil {
		return groups.Resolution{}, err
	}
	return res, nil
}

func notPendingOrMissing(ctx context.Context, tx *sql.Tx, groupID, requestID string) error {
	var status string
	err := tx.QueryRowContext(ctx, `select status from join_requests where id = $1 and group_id = $2`, requestID, groupID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return groups.ErrRequestNotFound
	}
	if err != nil {
		return err
	}
	return groups.ErrNotPending
}
