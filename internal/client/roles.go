package client

import (
	"context"
	"net/http"

	"groupgate.org/internal/groups"
)

func permStrings(perms []groups.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func (c *Client) ListRoles(ctx context.Context, groupID string) ([]groups.Role, error) {
	var out struct {
		Roles []groups.Role `json:"roles"`
	}
	err := c.do(ctx, http.MethodGet, groupPath(groupID, "roles"), nil, &out)
	return out.Roles, err
}

func (c *Client) GetRole(ctx context.Context, groupID, roleID string) (groups.Role, error) {
	var r groups.Role
	err := c.do(ctx, http.MethodGet, groupPath(groupID, "roles", roleID), nil, &r)
	return r, err
}

func (c *Client) CreateRole(ctx context.Context, groupID string, in groups.RoleInput) (groups.Role, error) {
	var r groups.Role
	err := c.do(ctx, http.MethodPost, groupPath(groupID, "roles"), map[string]any{
		"name":           in.Name,
		"permissions":    permStrings(in.Permissions),
		"priority":       in.Priority,
		"parent_role_id": in.ParentRoleID,
	}, &r)
	return r, err
}

func (c *Client) UpdateRole(ctx context.Context, groupID, roleID string, upd groups.RoleUpdate) (groups.Role, error) {
	body := map[string]any{}
	if upd.GroupID != nil {
		body["group_id"] = *upd.GroupID
	}
	if upd.Name != nil {
		body["name"] = *upd.Name
	}
	if upd.Permissions != nil {
		body["permissions"] = permStrings(*upd.Permissions)
	}
	if upd.Priority != nil {
		body["priority"] = *upd.Priority
	}
	if upd.ParentRoleID != nil {
		body["parent_role_id"] = *upd.ParentRoleID
	}
	var r groups.Role
	err := c.do(ctx, http.MethodPut, groupPath(groupID, "roles", roleID), body, &r)
	return r, err
}

func (c *Client) UpdatePermissions(ctx context.Context, groupID, roleID string, perms []groups.Permission) (groups.Role, error) {
	var r groups.Role
	err := c.do(ctx, http.MethodPut, groupPath(groupID, "roles", roleID, "permissions"), map[string]any{
		"permissions": permStrings(perms),
	}, &r)
	return r, err
}

func (c *Client) UpdatePriority(ctx context.Context, groupID, roleID string, priority int) (groups.Role, error) {
	var r groups.Role
	err := c.do(ctx, http.MethodPut, groupPath(groupID, "roles", roleID, "priority"), map[string]int{
		"priority": priority,
	}, &r)
	return r, err
}

func (c *Client) DeleteRole(ctx context.Context, groupID, roleID string) error {
	return c.do(ctx, http.MethodDelete, groupPath(groupID, "roles", roleID), nil, nil)
}
