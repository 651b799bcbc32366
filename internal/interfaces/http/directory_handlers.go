package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

// ListReferences handles GET /api/references
func (h *Handlers) ListReferences(c *gin.Context) {
	active, ok := queryBool(c, "active")
	if !ok {
		return
	}
	refs, err := h.svc.References.List(c.Request.Context(), entity.ReferenceFilter{Kind: c.Query("kind"), ActiveOnly: active})
	if err != nil {
		h.fail(c, "list references", err)
		return
	}
	respond(c, http.StatusOK, refs)
}

// GetReference handles GET /api/references/:id
func (h *Handlers) GetReference(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ref, err := h.svc.References.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get reference", err)
		return
	}
	respond(c, http.StatusOK, ref)
}

// CreateReference handles POST /api/references
func (h *Handlers) CreateReference(c *gin.Context) {
	var ref entity.Reference
	if !bindJSON(c, &ref) {
		return
	}
	if err := h.svc.References.Create(c.Request.Context(), &ref); err != nil {
		h.fail(c, "create reference", err)
		return
	}
	respond(c, http.StatusCreated, ref)
}

// UpdateReference handles PUT /api/references/:id
func (h *Handlers) UpdateReference(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var ref entity.Reference
	if !bindJSON(c, &ref) {
		return
	}
	ref.ID = id
	if err := h.svc.References.Update(c.Request.Context(), &ref); err != nil {
		h.fail(c, "update reference", err)
		return
	}
	respond(c, http.StatusOK, ref)
}

// DeleteReference handles DELETE /api/references/:id
func (h *Handlers) DeleteReference(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.References.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, "delete reference", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListDepartments handles GET /api/departments
func (h *Handlers) ListDepartments(c *gin.Context) {
	depts, err := h.svc.Directory.ListDepartments(c.Request.Context())
	if err != nil {
		h.fail(c, "list departments", err)
		return
	}
	respond(c, http.StatusOK, depts)
}

// GetDepartment handles GET /api/departments/:id
func (h *Handlers) GetDepartment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	dept, err := h.svc.Directory.GetDepartment(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get department", err)
		return
	}
	respond(c, http.StatusOK, dept)
}

// CreateDepartment handles POST /api/departments
func (h *Handlers) CreateDepartment(c *gin.Context) {
	var dept entity.Department
	if !bindJSON(c, &dept) {
		return
	}
	if err := h.svc.Directory.CreateDepartment(c.Request.Context(), &dept); err != nil {
		h.fail(c, "create department", err)
		return
	}
	respond(c, http.StatusCreated, dept)
}

// UpdateDepartment handles PUT /api/departments/:id
func (h *Handlers) UpdateDepartment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var dept entity.Department
	if !bindJSON(c, &dept) {
		return
	}
	dept.ID = id
	if err := h.svc.Directory.UpdateDepartment(c.Request.Context(), &dept); err != nil {
		h.fail(c, "update department", err)
		return
	}
	respond(c, http.StatusOK, dept)
}

// DeleteDepartment handles DELETE /api/departments/:id
func (h *Handlers) DeleteDepartment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Directory.DeleteDepartment(c.Request.Context(), id); err != nil {
		h.fail(c, "delete department", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListUsers handles GET /api/users
func (h *Handlers) ListUsers(c *gin.Context) {
	roleID, ok := queryInt64(c, "roleId")
	if !ok {
		return
	}
	deptID, ok := queryInt64(c, "departmentId")
	if !ok {
		return
	}
	active, ok := queryBool(c, "active")
	if !ok {
		return
	}

	users, err := h.svc.Directory.ListUsers(c.Request.Context(), entity.UserFilter{
		RoleID:       roleID,
		DepartmentID: deptID,
		ActiveOnly:   active,
	})
	if err != nil {
		h.fail(c, "list users", err)
		return
	}
	respond(c, http.StatusOK, users)
}

// GetUser handles GET /api/users/:id
func (h *Handlers) GetUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := h.svc.Directory.GetUser(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get user", err)
		return
	}
	respond(c, http.StatusOK, user)
}

// CreateUser handles POST /api/users
func (h *Handlers) CreateUser(c *gin.Context) {
	user := entity.User{Active: true}
	if !bindJSON(c, &user) {
		return
	}
	if err := h.svc.Directory.CreateUser(c.Request.Context(), &user); err != nil {
		h.fail(c, "create user", err)
		return
	}
	respond(c, http.StatusCreated, user)
}

// UpdateUser handles PUT /api/users/:id
func (h *Handlers) UpdateUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var user entity.User
	if !bindJSON(c, &user) {
		return
	}
	user.ID = id
	if err := h.svc.Directory.UpdateUser(c.Request.Context(), &user); err != nil {
		h.fail(c, "update user", err)
		return
	}
	respond(c, http.StatusOK, user)
}

// DeactivateUser handles DELETE /api/users/:id; users are soft-deleted
func (h *Handlers) DeactivateUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Directory.DeactivateUser(c.Request.Context(), id); err != nil {
		h.fail(c, "deactivate user", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListRoles handles GET /api/roles
func (h *Handlers) ListRoles(c *gin.Context) {
	roles, err := h.svc.Directory.ListRoles(c.Request.Context())
	if err != nil {
		h.fail(c, "list roles", err)
		return
	}
	respond(c, http.StatusOK, roles)
}

// CreateRole handles POST /api/roles
func (h *Handlers) CreateRole(c *gin.Context) {
	var role entity.Role
	if !bindJSON(c, &role) {
		return
	}
	if err := h.svc.Directory.CreateRole(c.Request.Context(), &role); err != nil {
		h.fail(c, "create role", err)
		return
	}
	respond(c, http.StatusCreated, role)
}

// ListDelegations handles GET /api/delegations
func (h *Handlers) ListDelegations(c *gin.Context) {
	active, ok := queryBool(c, "active")
	if !ok {
		return
	}
	rules, err := h.svc.Directory.ListDelegations(c.Request.Context(), active)
	if err != nil {
		h.fail(c, "list delegations", err)
		return
	}
	respond(c, http.StatusOK, rules)
}

// CreateDelegation handles POST /api/delegations
func (h *Handlers) CreateDelegation(c *gin.Context) {
	var rule entity.DelegationRule
	if !bindJSON(c, &rule) {
		return
	}
	if err := h.svc.Directory.CreateDelegation(c.Request.Context(), &rule); err != nil {
		h.fail(c, "create delegation", err)
		return
	}
	respond(c, http.StatusCreated, rule)
}

// DeactivateDelegation handles DELETE /api/delegations/:id
func (h *Handlers) DeactivateDelegation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Directory.DeactivateDelegation(c.Request.Context(), id); err != nil {
		h.fail(c, "deactivate delegation", err)
		return
	}
	c.Status(http.StatusNoContent)
}
