package handler

import (
	"garmentflow/internal/middleware"
	"garmentflow/internal/service"
	"garmentflow/pkg/pagination"
	"garmentflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// MasterHandler serves buyers and styles
type MasterHandler struct {
	masterService service.MasterService
}

func NewMasterHandler(masterService service.MasterService) *MasterHandler {
	return &MasterHandler{masterService: masterService}
}

func (h *MasterHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := middleware.RequirePermission(service.PermMasterRead)
	write := middleware.RequirePermission(service.PermMasterWrite)

	buyers := router.Group("/buyers")
	{
		buyers.GET("", read, h.ListBuyers)
		buyers.POST("", write, h.CreateBuyer)
		buyers.GET("/:id", read, h.GetBuyer)
		buyers.PUT("/:id", write, h.UpdateBuyer)
		buyers.DELETE("/:id", write, h.DeleteBuyer)
	}

	styles := router.Group("/styles")
	{
		styles.GET("", read, h.ListStyles)
		styles.POST("", write, h.CreateStyle)
		styles.GET("/:id", read, h.GetStyle)
		styles.PUT("/:id", write, h.UpdateStyle)
		styles.DELETE("/:id", write, h.DeleteStyle)
	}
}

// ListBuyers
// @Summary      List buyers
// @Tags         master
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Code or name"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Router       /buyers [get]
func (h *MasterHandler) ListBuyers(c *gin.Context) {
	p := pagination.Parse(c)
	buyers, total, err := h.masterService.ListBuyers(c.Request.Context(), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	paged(c, "buyers", buyers, total, p)
}

// GetBuyer
// @Summary      Get buyer
// @Tags         master
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Buyer ID"
// @Success      200  {object}  response.Response{data=model.Buyer}
// @Failure      404  {object}  response.Response
// @Router       /buyers/{id} [get]
func (h *MasterHandler) GetBuyer(c *gin.Context) {
	buyer, err := h.masterService.GetBuyer(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, buyer)
}

// CreateBuyer
// @Summary      Create buyer
// @Tags         master
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.BuyerRequest  true  "Buyer"
// @Success      201      {object}  response.Response{data=model.Buyer}
// @Failure      400      {object}  response.Response
// @Router       /buyers [post]
func (h *MasterHandler) CreateBuyer(c *gin.Context) {
	var req service.BuyerRequest
	if !bindJSON(c, &req) {
		return
	}
	buyer, err := h.masterService.CreateBuyer(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, buyer)
}

// UpdateBuyer
// @Summary      Update buyer
// @Tags         master
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "Buyer ID"
// @Param        payload  body      service.BuyerRequest  true  "Buyer"
// @Success      200      {object}  response.Response{data=model.Buyer}
// @Router       /buyers/{id} [put]
func (h *MasterHandler) UpdateBuyer(c *gin.Context) {
	var req service.BuyerRequest
	if !bindJSON(c, &req) {
		return
	}
	buyer, err := h.masterService.UpdateBuyer(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, buyer)
}

// DeleteBuyer refuses buyers that still have orders
// @Summary      Delete buyer
// @Tags         master
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Buyer ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /buyers/{id} [delete]
func (h *MasterHandler) DeleteBuyer(c *gin.Context) {
	if err := h.masterService.DeleteBuyer(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "Buyer deleted successfully")
}

// ListStyles
// @Summary      List styles
// @Tags         master
// @Security     BearerAuth
// @Produce      json
// @Param        buyer_id  query     string  false  "Buyer ID"
// @Param        search    query     string  false  "Style code or name"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Items per page (default 20)"
// @Success      200       {object}  response.Response{data=object}
// @Router       /styles [get]
func (h *MasterHandler) ListStyles(c *gin.Context) {
	p := pagination.Parse(c)
	styles, total, err := h.masterService.ListStyles(c.Request.Context(), c.Query("buyer_id"), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	paged(c, "styles", styles, total, p)
}

// GetStyle
// @Summary      Get style
// @Tags         master
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Style ID"
// @Success      200  {object}  response.Response{data=model.Style}
// @Router       /styles/{id} [get]
func (h *MasterHandler) GetStyle(c *gin.Context) {
	style, err := h.masterService.GetStyle(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, style)
}

// CreateStyle
// @Summary      Create style
// @Tags         master
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.StyleRequest  true  "Style"
// @Success      201      {object}  response.Response{data=model.Style}
// @Router       /styles [post]
func (h *MasterHandler) CreateStyle(c *gin.Context) {
	var req service.StyleRequest
	if !bindJSON(c, &req) {
		return
	}
	style, err := h.masterService.CreateStyle(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, style)
}

// UpdateStyle
// @Summary      Update style
// @Tags         master
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "Style ID"
// @Param        payload  body      service.StyleRequest  true  "Style"
// @Success      200      {object}  response.Response{data=model.Style}
// @Router       /styles/{id} [put]
func (h *MasterHandler) UpdateStyle(c *gin.Context) {
	var req service.StyleRequest
	if !bindJSON(c, &req) {
		return
	}
	style, err := h.masterService.UpdateStyle(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, style)
}

// DeleteStyle
// @Summary      Delete style
// @Tags         master
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Style ID"
// @Success      200  {object}  response.Response
// @Router       /styles/{id} [delete]
func (h *MasterHandler) DeleteStyle(c *gin.Context) {
	if err := h.masterService.DeleteStyle(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "Style deleted successfully")
}
