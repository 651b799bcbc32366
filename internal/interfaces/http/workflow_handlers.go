package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/contract-approvals/internal/application/service"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

type decisionRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
	ActorID *int64 `json:"actor_id"`
}

// ListWorkflows handles GET /api/workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	workflows, err := h.svc.Workflows.List(c.Request.Context())
	if err != nil {
		h.fail(c, "list workflows", err)
		return
	}
	respond(c, http.StatusOK, workflows)
}

// GetWorkflow handles GET /api/workflows/:id
func (h *Handlers) GetWorkflow(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	wf, err := h.svc.Workflows.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get workflow", err)
		return
	}
	respond(c, http.StatusOK, wf)
}

// CreateWorkflow handles POST /api/workflows
func (h *Handlers) CreateWorkflow(c *gin.Context) {
	var wf entity.WorkflowDefinition
	if !bindJSON(c, &wf) {
		return
	}
	if err := h.svc.Workflows.Create(c.Request.Context(), &wf); err != nil {
		h.fail(c, "create workflow", err)
		return
	}
	respond(c, http.StatusCreated, wf)
}

// UpdateWorkflow handles PUT /api/workflows/:id
func (h *Handlers) UpdateWorkflow(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var wf entity.WorkflowDefinition
	if !bindJSON(c, &wf) {
		return
	}
	wf.ID = id
	if err := h.svc.Workflows.Update(c.Request.Context(), &wf); err != nil {
		h.fail(c, "update workflow", err)
		return
	}
	respond(c, http.StatusOK, wf)
}

// DeleteWorkflow handles DELETE /api/workflows/:id
func (h *Handlers) DeleteWorkflow(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Workflows.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, "delete workflow", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListRules handles GET /api/workflow-rules
func (h *Handlers) ListRules(c *gin.Context) {
	active, ok := queryBool(c, "active")
	if !ok {
		return
	}
	rules, err := h.svc.Workflows.ListRules(c.Request.Context(), active)
	if err != nil {
		h.fail(c, "list workflow rules", err)
		return
	}
	respond(c, http.StatusOK, rules)
}

// CreateRule handles POST /api/workflow-rules
func (h *Handlers) CreateRule(c *gin.Context) {
	rule := entity.WorkflowRule{Active: true}
	if !bindJSON(c, &rule) {
		return
	}
	if err := h.svc.Workflows.CreateRule(c.Request.Context(), &rule); err != nil {
		h.fail(c, "create workflow rule", err)
		return
	}
	respond(c, http.StatusCreated, rule)
}

// DeleteRule handles DELETE /api/workflow-rules/:id
func (h *Handlers) DeleteRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Workflows.DeleteRule(c.Request.Context(), id); err != nil {
		h.fail(c, "delete workflow rule", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListApprovals handles GET /api/approvals
func (h *Handlers) ListApprovals(c *gin.Context) {
	approverID, ok := queryInt64(c, "approverId")
	if !ok {
		return
	}
	contractID, ok := queryInt64(c, "contractId")
	if !ok {
		return
	}
	approvals, err := h.svc.Router.ListApprovals(c.Request.Context(), entity.ApprovalFilter{
		ApproverID: approverID,
		ContractID: contractID,
		Status:     c.Query("status"),
	})
	if err != nil {
		h.fail(c, "list approvals", err)
		return
	}
	respond(c, http.StatusOK, approvals)
}

// Decide handles POST /api/approvals/:id/decision
func (h *Handlers) Decide(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req decisionRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.svc.Router.RecordDecision(c.Request.Context(), service.DecisionRequest{
		ApprovalID: id,
		Status:     req.Status,
		Comment:    req.Comment,
		ActorID:    req.ActorID,
	})
	if err != nil {
		h.fail(c, "record decision", err)
		return
	}
	respond(c, http.StatusOK, result)
}

// AutoAssign handles POST /api/approvals/auto-assign
func (h *Handlers) AutoAssign(c *gin.Context) {
	report, err := h.svc.Router.AutoAssignApprovers(c.Request.Context())
	if err != nil {
		h.fail(c, "auto-assign approvers", err)
		return
	}
	respond(c, http.StatusOK, report)
}

// Escalate handles POST /api/approvals/escalate
func (h *Handlers) Escalate(c *gin.Context) {
	report, err := h.svc.Escalation.Scan(c.Request.Context())
	if err != nil {
		h.fail(c, "escalation scan", err)
		return
	}
	respond(c, http.StatusOK, report)
}

// ListNotifications handles GET /api/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	userID, ok := queryInt64(c, "userId")
	if !ok {
		return
	}
	unread, ok := queryBool(c, "unread")
	if !ok {
		return
	}

	items, err := h.svc.Notifications.List(c.Request.Context(), entity.NotificationFilter{UserID: userID, UnreadOnly: unread})
	if err != nil {
		h.fail(c, "list notifications", err)
		return
	}
	count, err := h.svc.Notifications.CountUnread(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "count unread notifications", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"items": items, "unread": count})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Notifications.MarkRead(c.Request.Context(), id); err != nil {
		h.fail(c, "mark notification read", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.UserID <= 0 {
		badRequest(c, "user_id is required")
		return
	}
	n, err := h.svc.Notifications.MarkAllRead(c.Request.Context(), req.UserID)
	if err != nil {
		h.fail(c, "mark all notifications read", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"updated": n})
}
