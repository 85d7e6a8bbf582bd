package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"groupgate.org/internal/groups"
)

type createGroupRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

type updateGroupRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

type addMemberRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
	RoleID string `json:"role_id" validate:"required"`
}

type updateMemberRoleRequest struct {
	RoleID string `json:"role_id" validate:"required"`
}

func (a *API) createGroup(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var req createGroupRequest
	if !a.bind(w, r, &req) {
		return
	}
	g, err := a.svc.CreateGroup(r.Context(), actorID, req.Name, req.Description)
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/groups/%s", g.ID))
	writeJSON(w, http.StatusCreated, g)
}

func (a *API) listMyGroups(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	list, err := a.svc.ListGroupsForUser(r.Context(), actorID)
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": list})
}

func (a *API) getGroup(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	g, err := a.svc.GetGroup(r.Context(), actorID, chi.URLParam(r, "groupID"))
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (a *API) updateGroup(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var req updateGroupRequest
	if !a.bind(w, r, &req) {
		return
	}
	g, err := a.svc.UpdateGroup(r.Context(), actorID, chi.URLParam(r, "groupID"), groups.GroupUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (a *API) deleteGroup(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	if err := a.svc.DeleteGroup(r.Context(), actorID, chi.URLParam(r, "groupID")); err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) leaveGroup(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	if err := a.svc.LeaveGroup(r.Context(), actorID, chi.URLParam(r, "groupID")); err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listMembers(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	members, err := a.svc.ListMembers(r.Context(), actorID, chi.URLParam(r, "groupID"))
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (a *API) addMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var req addMemberRequest
	if !a.bind(w, r, &req) {
		return
	}
	groupID := chi.URLParam(r, "groupID")
	m, err := a.svc.AddMember(r.Context(), actorID, groupID, req.UserID, req.RoleID)
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/groups/%s/members/%s", groupID, m.UserID))
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) removeMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	err := a.svc.RemoveMember(r.Context(), actorID, chi.URLParam(r, "groupID"), chi.URLParam(r, "userID"))
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var req updateMemberRoleRequest
	if !a.bind(w, r, &req) {
		return
	}
	m, err := a.svc.UpdateMemberRole(r.Context(), actorID, chi.URLParam(r, "groupID"), chi.URLParam(r, "userID"), req.RoleID)
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
