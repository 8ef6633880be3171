package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"form-builder-service/internal/app"
	"form-builder-service/internal/domain"
	"github.com/gin-gonic/gin"
)

const sessionHeader = "X-Session-ID"

type responseHandler struct {
	service *app.ResponseService
	resp    responder
}

func newResponseHandler(service *app.ResponseService, resp responder) *responseHandler {
	return &responseHandler{service: service, resp: resp}
}

func (h *responseHandler) register(rg *gin.RouterGroup) {
	rg.POST("", h.submit)
	rg.GET("/form/:formId", h.listByForm)
	rg.GET("/form/:formId/analytics", h.analytics)
	rg.GET("/analytics/:formId", h.analytics)
	rg.GET("/:id", h.get)
	rg.DELETE("/:id", h.delete)
}

func (h *responseHandler) submit(c *gin.Context) {
	var in app.SubmissionInput
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		h.resp.badRequest(c, "Invalid request body", err)
		return
	}
	if in.SessionID == "" {
		in.SessionID = c.GetHeader(sessionHeader)
	}
	in.UserInfo = &domain.UserInfo{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	resp, err := h.service.Submit(c.Request.Context(), in)
	if err != nil {
		h.resp.fail(c, err, "Server error while submitting response")
		return
	}
	okCreated(c, "Response submitted successfully", resp)
}

func (h *responseHandler) listByForm(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, pagination, err := h.service.ListByForm(c.Request.Context(), c.Param("formId"), app.PageRequest{
		Page:      page,
		Limit:     limit,
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	})
	if err != nil {
		h.resp.fail(c, err, "Server error while fetching responses")
		return
	}
	c.JSON(http.StatusOK, envelope{Success: true, Data: items, Pagination: &pagination})
}

func (h *responseHandler) analytics(c *gin.Context) {
	report, err := h.service.Analytics(c.Request.Context(), c.Param("formId"))
	if err != nil {
		h.resp.fail(c, err, "Server error while fetching analytics")
		return
	}
	ok(c, http.StatusOK, "", report)
}

func (h *responseHandler) get(c *gin.Context) {
	resp, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.resp.fail(c, err, "Server error while fetching response")
		return
	}
	ok(c, http.StatusOK, "", resp)
}

func (h *responseHandler) delete(c *gin.Context) {
	id := domain.NormalizeID(c.Param("id"))
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.resp.fail(c, err, "Server error while deleting response")
		return
	}
	okMessage(c, "Response deleted successfully", gin.H{"id": id})
}
