package client

import (
	"context"
	"net/http"

	"groupgate.org/internal/groups"
)

func (c *Client) CreateGroup(ctx context.Context, name, description string) (groups.Group, error) {
	var g groups.Group
	err := c.do(ctx, http.MethodPost, "/v1/groups", map[string]string{
		"name":        name,
		"description": description,
	}, &g)
	return g, err
}

func (c *Client) ListMyGroups(ctx context.Context) ([]groups.UserGroup, error) {
	var out struct {
		Groups []groups.UserGroup `json:"groups"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/groups", nil, &out)
	return out.Groups, err
}

func (c *Client) GetGroup(ctx context.Context, groupID string) (groups.Group, error) {
	var g groups.Group
	err := c.do(ctx, http.MethodGet, groupPath(groupID), nil, &g)
	return g, err
}

func (c *Client) UpdateGroup(ctx context.Context, groupID string, upd groups.GroupUpdate) (groups.Group, error) {
	body := map[string]*string{}
	if upd.Name != nil {
		body["name"] = upd.Name
	}
	if upd.Description != nil {
		body["description"] = upd.Description
	}
	var g groups.Group
	err := c.do(ctx, http.MethodPut, groupPath(groupID), body, &g)
	return g, err
}

func (c *Client) DeleteGroup(ctx context.Context, groupID string) error {
	return c.do(ctx, http.MethodDelete, groupPath(groupID), nil, nil)
}

func (c *Client) LeaveGroup(ctx context.Context, groupID string) error {
	return c.do(ctx, http.MethodDelete, groupPath(groupID, "membership"), nil, nil)
}

func (c *Client) ListMembers(ctx context.Context, groupID string) ([]groups.Member, error) {
	var out struct {
		Members []groups.Member `json:"members"`
	}
	err := c.do(ctx, http.MethodGet, groupPath(groupID, "members"), nil, &out)
	return out.Members, err
}

func (c *Client) AddMember(ctx context.Context, groupID, userID, roleID string) (groups.Membership, error) {
	var m groups.Membership
	err := c.do(ctx, http.MethodPost, groupPath(groupID, "members"), map[string]string{
		"user_id": userID,
		"role_id": roleID,
	}, &m)
	return m, err
}

func (c *Client) RemoveMember(ctx context.Context, groupID, userID string) error {
	return c.do(ctx, http.MethodDelete, groupPath(groupID, "members", userID), nil, nil)
}

func (c *Client) UpdateMemberRole(ctx context.Context, groupID, userID, roleID string) (groups.Membership, error) {
	var m groups.Membership
	err := c.do(ctx, http.MethodPut, groupPath(groupID, "members", userID, "role"), map[string]string{
		"role_id": roleID,
	}, &m)
	return m, err
}

func (c *Client) ListJoinRequests(ctx context.Context, groupID string) ([]groups.JoinRequest, error) {
	var out struct {
		JoinRequests []groups.JoinRequest `json:"join_requests"`
	}
	err := c.do(ctx, http.MethodGet, groupPath(groupID, "join-requests"), nil, &out)
	return out.JoinRequests, err
}

func (c *Client) CreateJoinRequest(ctx context.Context, groupID string) (groups.JoinRequest, error) {
	var jr groups.JoinRequest
	err := c.do(ctx, http.MethodPost, groupPath(groupID, "join-requests"), nil, &jr)
	return jr, err
}

func (c *Client) ApproveJoinRequest(ctx context.Context, groupID, requestID string) (groups.Resolution, error) {
	var res groups.Resolution
	err := c.do(ctx, http.MethodPut, groupPath(groupID, "join-requests", requestID, "approve"), nil, &res)
	return res, err
}

func (c *Client) RejectJoinRequest(ctx context.Context, groupID, requestID string) (groups.JoinRequest, error) {
	var jr groups.JoinRequest
	err := c.do(ctx, http.MethodPut, groupPath(groupID, "join-requests", requestID, "reject"), nil, &jr)
	return jr, err
}
