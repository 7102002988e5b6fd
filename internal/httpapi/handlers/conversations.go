package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gopherchat/gopherchat/internal/common"
)

type createConversationReq struct {
	Title string `json:"title"`
}

func (h *Handler) CreateConversation(c *gin.Context) {
	var req createConversationReq
	_ = c.ShouldBindJSON(&req) // empty body means default title

	conv, err := h.ConvSvc.Create(c.Request.Context(), req.Title)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *Handler) ListConversations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	includeArchived := c.Query("include_archived") == "true"

	convs, err := h.ConvSvc.List(c.Request.Context(), limit, includeArchived)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs, "total": len(convs)})
}

func (h *Handler) GetConversation(c *gin.Context) {
	conv, err := h.ConvSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

type updateConversationReq struct {
	Title    *string `json:"title"`
	Archived *bool   `json:"archived"`
}

func (h *Handler) UpdateConversation(c *gin.Context) {
	var req updateConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Title == nil && req.Archived == nil {
		common.Fail(c, http.StatusBadRequest, "nothing to update: provide title or archived")
		return
	}

	id := c.Param("id")
	ctx := c.Request.Context()

	conv, err := h.ConvSvc.Get(ctx, id)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	if req.Title != nil {
		if conv, err = h.ConvSvc.Rename(ctx, id, *req.Title); err != nil {
			common.FailErr(c, err)
			return
		}
	}
	if req.Archived != nil {
		if conv, err = h.ConvSvc.SetArchived(ctx, id, *req.Archived); err != nil {
			common.FailErr(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, conv)
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	if err := h.ConvSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		common.FailErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.ConvSvc.Messages(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) ExportConversation(c *gin.Context) {
	format := c.Query("format")
	if format == "" {
		common.Fail(c, http.StatusBadRequest, "format query parameter is required")
		return
	}

	data, filename, contentType, err := h.ConvSvc.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		common.FailErr(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handler) SearchConversations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	convs, err := h.ConvSvc.Search(c.Request.Context(), c.Query("query"), limit)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs, "total": len(convs)})
}

type shareReq struct {
	ExpiresInDays *int `json:"expires_in_days"`
}

func (h *Handler) ShareConversation(c *gin.Context) {
	var req shareReq
	_ = c.ShouldBindJSON(&req) // empty body means the default expiry

	link, err := h.ConvSvc.Share(c.Request.Context(), c.Param("id"), req.ExpiresInDays)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

func (h *Handler) GetSharedConversation(c *gin.Context) {
	view, err := h.ConvSvc.AccessShared(c.Request.Context(), c.Param("token"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
