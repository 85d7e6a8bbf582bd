package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *API) listJoinRequests(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	list, err := a.svc.ListJoinRequests(r.Context(), actorID, chi.URLParam(r, "groupID"))
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"join_requests": list})
}

// createJoinRequest files a request for the caller; the body is ignored.
func (a *API) createJoinRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	groupID := chi.URLParam(r, "groupID")
	req, err := a.svc.CreateJoinRequest(r.Context(), actorID, groupID)
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/groups/%s/join-requests/%s", groupID, req.ID))
	writeJSON(w, http.StatusCreated, req)
}

func (a *API) approveJoinRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	res, err := a.svc.ApproveJoinRequest(r.Context(), actorID, chi.URLParam(r, "groupID"), chi.URLParam(r, "requestID"))
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) rejectJoinRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	req, err := a.svc.RejectJoinRequest(r.Context(), actorID, chi.URLParam(r, "groupID"), chi.URLParam(r, "requestID"))
	if err != nil {
		a.handleGroupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
