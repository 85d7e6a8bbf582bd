package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"groupgate.org/internal/groups"
)

type createRoleRequest struct {
	Name         string   `json:"name" validate:"required,max=100"`
	Permissions  []string `json:"permissions" validate:"dive,required"`
	Priority     int      `json:"priority"`
	ParentRoleID string   `json:"parent_role_id"`
}

type updateRoleRequest struct {
	GroupID      *string   `json:"group_id"`
	Name         *string   `json:"name" validate:"omitempty,max=100"`
	Permissions  *[]string `json:"permissions" validate:"omitempty,dive,required"`
	Priority     *int      `json:"priority"`
	ParentRoleID *string   `json:"parent_role_id"`
}

type updatePermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required,dive,required"`
}

type updatePriorityRequest struct {
	Priority *int `json:"priority" validate:"required"`
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	roles, err := a.svc.ListRoles(r.Context(), actorID, chi.URLParam(r, "groupID"))
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (a *API) getRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	role, err := a.svc.GetRole(r.Context(), actorID, chi.URLParam(r, "groupID"), chi.URLParam(r, "roleID"))
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) createRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var req createRoleRequest
	if !a.bind(w, r, &req) {
		return
	}
	perms, err := groups.ParsePermissions(req.Permissions)
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	groupID := chi.URLParam(r, "groupID")
	role, err := a.svc.CreateRole(r.Context(), actorID, groupID, groups.RoleInput{
		Name:         req.Name,
		Permissions:  perms,
		Priority:     req.Priority,
		ParentRoleID: req.ParentRoleID,
	})
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/groups/%s/roles/%s", groupID, role.ID))
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) updateRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if !a.bind(w, r, &req) {
		return
	}
	upd := groups.RoleUpdate{
		GroupID:      req.GroupID,
		Name:         req.Name,
		Priority:     req.Priority,
		ParentRoleID: req.ParentRoleID,
	}
	if req.Permissions != nil {
		perms, err := groups.ParsePermissions(*req.Permissions)
		if err != nil {
			a.handleGroupError(w, r, err)
			return
		}
		upd.Permissions = &perms
	}
	role, err := a.svc.UpdateRole(r.Context(), actorID, chi.URLParam(r, "groupID"), chi.URLParam(r, "roleID"), upd)
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) updatePermissions(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var req updatePermissionsRequest
	if !a.bind(w, r, &req) {
		return
	}
	perms, err := groups.ParsePermissions(req.Permissions)
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	role, err := a.svc.UpdatePermissions(r.Context(), actorID, chi.URLParam(r, "groupID"), chi.URLParam(r, "roleID"), perms)
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) updatePriority(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var req updatePriorityRequest
	if !a.bind(w, r, &req) {
		return
	}
	role, err := a.svc.UpdatePriority(r.Context(), actorID, chi.URLParam(r, "groupID"), chi.URLParam(r, "roleID"), *req.Priority)
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) deleteRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	if err := a.svc.DeleteRole(r.Context(), actorID, chi.URLParam(r, "groupID"), chi.URLParam(r, "roleID")); err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
