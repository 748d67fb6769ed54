package api

import (
	"net/http"

	"github.com/platinummonkey/gatehouse/pkg/httputil"
	"github.com/platinummonkey/gatehouse/pkg/identity"
)

type updateUserRequest struct {
	IsActive *bool     `json:"is_active"`
	IsAdmin  *bool     `json:"is_admin"`
	Groups   *[]string `json:"groups"`
}

type createGroupRequest struct {
	Name        string   `json:"name" validate:"required"`
	Permissions []string `json:"permissions"`
}

type updateGroupRequest struct {
	Name        *string   `json:"name"`
	Permissions *[]string `json:"permissions"`
}

// parsePaging extracts and validates the shared paging query parameters
// against the given page constructor.
func parsePaging(w http.ResponseWriter, r *http.Request,
	newPage func(limit, offset int, orderBy, orderDir string) (identity.Page, error)) (identity.Page, bool) {
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteUnprocessable(w, err.Error())
		return identity.Page{}, false
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteUnprocessable(w, err.Error())
		return identity.Page{}, false
	}
	orderBy := httputil.ParseQueryString(r, "order_by", "")
	orderDir := httputil.ParseQueryString(r, "order_dir", "")

	page, err := newPage(limit, offset, orderBy, orderDir)
	if err != nil {
		writeError(w, err)
		return identity.Page{}, false
	}
	return page, true
}

// pathIdentifier parses the {ident} path segment as an ID or a name
func pathIdentifier(w http.ResponseWriter, r *http.Request) (identity.Identifier, bool) {
	raw, err := httputil.ParsePathString(r, "ident")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return identity.Identifier{}, false
	}
	return identity.ParseIdentifier(raw), true
}

// listUsers handles GET /admin/users
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePaging(w, r, identity.NewUserPage)
	if !ok {
		return
	}

	isActive, err := httputil.ParseQueryBoolPtr(r, "is_active")
	if err != nil {
		httputil.WriteUnprocessable(w, err.Error())
		return
	}
	isAdmin, err := httputil.ParseQueryBoolPtr(r, "is_admin")
	if err != nil {
		httputil.WriteUnprocessable(w, err.Error())
		return
	}

	total, users, err := s.store.ListUsers(r.Context(), identity.UserFilter{IsActive: isActive, IsAdmin: isAdmin}, page)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, identity.Paginated[identity.User]{Total: total, Items: users})
}

// getUser handles GET /admin/users/{ident}; the segment is an ID or an email
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	ident, ok := pathIdentifier(w, r)
	if !ok {
		return
	}
	user, err := s.store.GetUser(r.Context(), ident)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// updateUser handles PUT /admin/users/{ident}
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	ident, ok := pathIdentifier(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := s.store.GetUser(r.Context(), ident)
	if err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.store.UpdateUser(r.Context(), user.ID, identity.UserUpdate{
		IsActive: req.IsActive,
		IsAdmin:  req.IsAdmin,
		Groups:   req.Groups,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

// listGroups handles GET /admin/groups
func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePaging(w, r, identity.NewGroupPage)
	if !ok {
		return
	}
	name := httputil.ParseQueryString(r, "name", "")

	total, groups, err := s.store.ListGroups(r.Context(), identity.NameFilter{Name: name}, page)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, identity.Paginated[identity.Group]{Total: total, Items: groups})
}

// createGroup handles POST /admin/groups
func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		httputil.WriteUnprocessable(w, err.Error())
		return
	}

	group, err := s.store.CreateGroup(r.Context(), req.Name, req.Permissions)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteCreated(w, group)
}

// getGroup handles GET /admin/groups/{ident}
func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	ident, ok := pathIdentifier(w, r)
	if !ok {
		return
	}
	group, err := s.store.GetGroup(r.Context(), ident)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, group)
}

// updateGroup handles PUT /admin/groups/{ident}
func (s *Server) updateGroup(w http.ResponseWriter, r *http.Request) {
	ident, ok := pathIdentifier(w, r)
	if !ok {
		return
	}

	var req updateGroupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	group, err := s.store.GetGroup(r.Context(), ident)
	if err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.store.UpdateGroup(r.Context(), group.ID, identity.GroupUpdate{
		Name:        req.Name,
		Permissions: req.Permissions,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

// listPermissions handles GET /admin/permissions
func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePaging(w, r, identity.NewPermissionPage)
	if !ok {
		return
	}
	name := httputil.ParseQueryString(r, "name", "")

	total, perms, err := s.store.ListPermissions(r.Context(), identity.NameFilter{Name: name}, page)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, identity.Paginated[identity.Permission]{Total: total, Items: perms})
}

// getPermission handles GET /admin/permissions/{ident}
func (s *Server) getPermission(w http.ResponseWriter, r *http.Request) {
	ident, ok := pathIdentifier(w, r)
	if !ok {
		return
	}
	perm, err := s.store.GetPermission(r.Context(), ident)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, perm)
}
