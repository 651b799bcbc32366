package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

// ListDocuments handles GET /api/documents?contractId=
func (h *Handlers) ListDocuments(c *gin.Context) {
	contractID, ok := queryInt64(c, "contractId")
	if !ok {
		return
	}
	docs, err := h.svc.Documents.List(c.Request.Context(), contractID)
	if err != nil {
		h.fail(c, "list documents", err)
		return
	}
	respond(c, http.StatusOK, docs)
}

// GetDocument handles GET /api/documents/:id
func (h *Handlers) GetDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	doc, err := h.svc.Documents.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get document", err)
		return
	}
	respond(c, http.StatusOK, doc)
}

// RegisterDocument handles POST /api/documents
func (h *Handlers) RegisterDocument(c *gin.Context) {
	var doc entity.Document
	if !bindJSON(c, &doc) {
		return
	}
	if err := h.svc.Documents.Register(c.Request.Context(), &doc); err != nil {
		h.fail(c, "register document", err)
		return
	}
	respond(c, http.StatusCreated, doc)
}

// DeleteDocument handles DELETE /api/documents/:id
func (h *Handlers) DeleteDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Documents.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, "delete document", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GenerateRegistry handles POST /api/reports/contracts
func (h *Handlers) GenerateRegistry(c *gin.Context) {
	var req struct {
		Status      string `json:"status"`
		InitiatorID int64  `json:"initiator_id"`
	}
	if !bindOptionalJSON(c, &req) {
		return
	}
	path, err := h.svc.Reports.GenerateRegistry(c.Request.Context(), entity.ContractFilter{
		Status:      req.Status,
		InitiatorID: req.InitiatorID,
	})
	if err != nil {
		h.fail(c, "generate registry", err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"path": path})
}
