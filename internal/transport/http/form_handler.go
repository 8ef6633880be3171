package http

import (
	"errors"
	"io"
	"net/http"

	"form-builder-service/internal/app"
	"form-builder-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type formHandler struct {
	service *app.FormService
	resp    responder
}

func newFormHandler(service *app.FormService, resp responder) *formHandler {
	return &formHandler{service: service, resp: resp}
}

func (h *formHandler) register(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.GET("/published", h.listPublished)
	rg.GET("/:id", h.get)
	rg.GET("/:id/fill", h.fill)
	rg.POST("", h.create)
	rg.PUT("/:id", h.update)
	rg.DELETE("/:id", h.delete)
	rg.PUT("/:id/publish", h.togglePublish)
}

func (h *formHandler) list(c *gin.Context) {
	forms, err := h.service.List(c.Request.Context())
	if err != nil {
		h.resp.fail(c, err, "Server error while fetching forms")
		return
	}
	okList(c, forms, len(forms))
}

func (h *formHandler) listPublished(c *gin.Context) {
	forms, err := h.service.ListPublished(c.Request.Context())
	if err != nil {
		h.resp.fail(c, err, "Server error while fetching published forms")
		return
	}
	okList(c, forms, len(forms))
}

func (h *formHandler) get(c *gin.Context) {
	form, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.resp.fail(c, err, "Server error while fetching form")
		return
	}
	ok(c, http.StatusOK, "", form)
}

// fill serves the respondent view: published forms only, answer keys removed.
func (h *formHandler) fill(c *gin.Context) {
	form, err := h.service.RespondentView(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.resp.fail(c, err, "Server error while fetching form")
		return
	}
	ok(c, http.StatusOK, "", form)
}

func (h *formHandler) create(c *gin.Context) {
	in, bound := h.bindForm(c)
	if !bound {
		return
	}
	form, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.resp.fail(c, err, "Server error while creating form")
		return
	}
	okCreated(c, "Form created successfully", form)
}

func (h *formHandler) update(c *gin.Context) {
	in, bound := h.bindForm(c)
	if !bound {
		return
	}
	form, err := h.service.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.resp.fail(c, err, "Server error while updating form")
		return
	}
	okMessage(c, "Form updated successfully", form)
}

func (h *formHandler) delete(c *gin.Context) {
	id := domain.NormalizeID(c.Param("id"))
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.resp.fail(c, err, "Server error while deleting form")
		return
	}
	okMessage(c, "Form deleted successfully", gin.H{"id": id})
}

func (h *formHandler) togglePublish(c *gin.Context) {
	form, err := h.service.TogglePublish(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.resp.fail(c, err, "Server error while updating form publish status")
		return
	}
	message := "Form unpublished successfully"
	if form.IsPublished {
		message = "Form published successfully"
	}
	okMessage(c, message, form)
}

// bindForm decodes a form body. An empty body decodes to an empty input so
// that it is reported through validation.
func (h *formHandler) bindForm(c *gin.Context) (app.FormInput, bool) {
	var in app.FormInput
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		h.resp.badRequest(c, "Invalid request body", err)
		return app.FormInput{}, false
	}
	return in, true
}

func okCreated(c *gin.Context, message string, data any) {
	ok(c, http.StatusCreated, message, data)
}

func okMessage(c *gin.Context, message string, data any) {
	ok(c, http.StatusOK, message, data)
}
