package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

type createContractRequest struct {
	entity.Contract
	ActorID *int64 `json:"actor_id"`
}

type submitRequest struct {
	WorkflowID int64  `json:"workflow_id"`
	ActorID    *int64 `json:"actor_id"`
}

// ListContracts handles GET /api/contracts
func (h *Handlers) ListContracts(c *gin.Context) {
	initiatorID, ok := queryInt64(c, "initiatorId")
	if !ok {
		return
	}
	counterpartyID, ok := queryInt64(c, "counterpartyId")
	if !ok {
		return
	}
	contracts, err := h.svc.Contracts.List(c.Request.Context(), entity.ContractFilter{
		Status:         c.Query("status"),
		InitiatorID:    initiatorID,
		CounterpartyID: counterpartyID,
	})
	if err != nil {
		h.fail(c, "list contracts", err)
		return
	}
	respond(c, http.StatusOK, contracts)
}

// GetContract handles GET /api/contracts/:id
func (h *Handlers) GetContract(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	contract, err := h.svc.Contracts.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get contract", err)
		return
	}
	respond(c, http.StatusOK, contract)
}

// CreateContract handles POST /api/contracts
func (h *Handlers) CreateContract(c *gin.Context) {
	var req createContractRequest
	if !bindJSON(c, &req) {
		return
	}
	contract := req.Contract
	if err := h.svc.Contracts.Create(c.Request.Context(), &contract, req.ActorID); err != nil {
		h.fail(c, "create contract", err)
		return
	}
	respond(c, http.StatusCreated, contract)
}

// UpdateContract handles PUT /api/contracts/:id
func (h *Handlers) UpdateContract(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req createContractRequest
	if !bindJSON(c, &req) {
		return
	}
	contract := req.Contract
	contract.ID = id
	if err := h.svc.Contracts.Update(c.Request.Context(), &contract, req.ActorID); err != nil {
		h.fail(c, "update contract", err)
		return
	}
	respond(c, http.StatusOK, contract)
}

// DeleteContract handles DELETE /api/contracts/:id
func (h *Handlers) DeleteContract(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Contracts.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, "delete contract", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitContract handles POST /api/contracts/:id/submit
func (h *Handlers) SubmitContract(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req submitRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.WorkflowID <= 0 {
		badRequest(c, "workflow_id is required")
		return
	}
	result, err := h.svc.Router.StartApprovalProcess(c.Request.Context(), id, req.WorkflowID, req.ActorID)
	if err != nil {
		h.fail(c, "submit contract", err)
		return
	}
	respond(c, http.StatusOK, result)
}

// SignContract handles POST /api/contracts/:id/sign
func (h *Handlers) SignContract(c *gin.Context) {
	h.contractAction(c, "sign contract", h.svc.Contracts.Sign)
}

// ArchiveContract handles POST /api/contracts/:id/archive
func (h *Handlers) ArchiveContract(c *gin.Context) {
	h.contractAction(c, "archive contract", h.svc.Contracts.Archive)
}

// ResubmitContract handles POST /api/contracts/:id/resubmit
func (h *Handlers) ResubmitContract(c *gin.Context) {
	h.contractAction(c, "resubmit contract", h.svc.Contracts.Resubmit)
}

func (h *Handlers) contractAction(c *gin.Context, op string, action func(ctx context.Context, id int64, actorID *int64, comment string) (*entity.Contract, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req actionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	contract, err := action(c.Request.Context(), id, req.ActorID, req.Comment)
	if err != nil {
		h.fail(c, op, err)
		return
	}
	respond(c, http.StatusOK, contract)
}

// ContractHistory handles GET /api/contracts/:id/history
func (h *Handlers) ContractHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	history, err := h.svc.Contracts.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "contract history", err)
		return
	}
	respond(c, http.StatusOK, history)
}

// ContractApprovals handles GET /api/contracts/:id/approvals
func (h *Handlers) ContractApprovals(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := h.svc.Contracts.Get(c.Request.Context(), id); err != nil {
		h.fail(c, "contract approvals", err)
		return
	}
	approvals, err := h.svc.Router.ListApprovals(c.Request.Context(), entity.ApprovalFilter{ContractID: id})
	if err != nil {
		h.fail(c, "contract approvals", err)
		return
	}
	respond(c, http.StatusOK, approvals)
}
