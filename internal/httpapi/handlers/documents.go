package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gopherchat/gopherchat/internal/common"
)

// Uploads larger than the service limit are rejected there; the reader is
// capped slightly above it so oversized bodies are not buffered whole.
const maxUploadReadBytes = (5 << 20) + 1

func (h *Handler) UploadDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.Fail(c, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, "could not read uploaded file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadReadBytes))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	result, err := h.DocSvc.Upload(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.DocSvc.List(c.Request.Context())
	if err != nil {
		common.FailErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "total": len(docs)})
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.DocSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		common.FailErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type retrieveReq struct {
	Query           string   `json:"query"`
	RetrievalMethod string   `json:"retrieval_method"`
	K               int      `json:"k"`
	DocumentIDs     []string `json:"document_ids"`
}

func (h *Handler) RetrieveDocuments(c *gin.Context) {
	var req retrieveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	result, err := h.DocSvc.Retrieve(c.Request.Context(), req.Query, req.RetrievalMethod, req.K, req.DocumentIDs)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
