package handler

import (
	"garmentflow/internal/middleware"
	"garmentflow/internal/repository"
	"garmentflow/internal/service"
	"garmentflow/pkg/pagination"
	"garmentflow/pkg/response"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orderService   service.OrderService
	processService service.ProcessService
	stockService   service.StockService
}

func NewOrderHandler(orderService service.OrderService, processService service.ProcessService, stockService service.StockService) *OrderHandler {
	return &OrderHandler{
		orderService:   orderService,
		processService: processService,
		stockService:   stockService,
	}
}

func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	orders := router.Group("/orders")
	{
		orders.GET("", middleware.RequirePermission(service.PermOrdersRead), h.ListOrders)
		orders.POST("", middleware.RequirePermission(service.PermOrdersWrite), h.CreateOrder)
		orders.GET("/:id", middleware.RequirePermission(service.PermOrdersRead), h.GetOrder)
		orders.PUT("/:id", middleware.RequirePermission(service.PermOrdersWrite), h.UpdateOrder)
		orders.DELETE("/:id", middleware.RequireAuth(), h.DeleteOrder)
		orders.GET("/:id/timeline", middleware.RequirePermission(service.PermOrdersRead), h.Timeline)
		orders.POST("/:id/hold", middleware.RequirePermission(service.PermProcessUpdate), h.Hold)
		orders.POST("/:id/resume", middleware.RequirePermission(service.PermProcessUpdate), h.Resume)
		orders.GET("/:id/barcodes", middleware.RequirePermission(service.PermBarcodesRead), h.Barcodes)

		orders.GET("/:id/materials", middleware.RequirePermission(service.PermInventoryRead), h.ListMaterials)
		orders.PUT("/:id/material-requirements", middleware.RequirePermission(service.PermOrdersWrite), h.SetRequirements)
		orders.POST("/:id/materials", middleware.RequirePermission(service.PermInventoryWrite), h.IssueMaterials)
		orders.POST("/:id/materials/return", middleware.RequirePermission(service.PermInventoryWrite), h.ReturnMaterials)
	}

	router.POST("/barcodes/scan", middleware.RequirePermission(service.PermBarcodesRead), h.Scan)
}

// CreateOrder registers a new production order
// @Summary      Create order
// @Description  Creates an order with its size breakdown. The order starts at PPIC waiting for its first process.
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateOrderRequest  true  "Order"
// @Success      201      {object}  response.Response{data=model.Order}
// @Failure      400      {object}  response.Response
// @Router       /orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, order)
}

// ListOrders returns a filtered page of orders
// @Summary      List orders
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        phase    query     string  false  "production or delivery"
// @Param        state    query     string  false  "at_ppic, in_progress, on_hold, delivered"
// @Param        process  query     string  false  "Current process"
// @Param        buyer_id query     string  false  "Buyer ID"
// @Param        search   query     string  false  "Order number or article"
// @Param        page     query     int     false  "Page number (default 1)"
// @Param        limit    query     int     false  "Items per page (default 20)"
// @Success      200      {object}  response.Response{data=object}
// @Router       /orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	p := pagination.Parse(c)
	filter := repository.OrderFilter{
		Phase:   c.Query("phase"),
		State:   c.Query("state"),
		Process: c.Query("process"),
		BuyerID: c.Query("buyer_id"),
		Search:  c.Query("search"),
	}

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), filter, p.Page, p.Limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	paged(c, "orders", orders, total, p)
}

// GetOrder returns an order with sizes, steps and transfers
// @Summary      Get order
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=model.Order}
// @Failure      404  {object}  response.Response
// @Router       /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, order)
}

// UpdateOrder changes deadlines, priority or notes
// @Summary      Update order
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Order ID"
// @Param        payload  body      service.UpdateOrderRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=model.Order}
// @Failure      400      {object}  response.Response
// @Router       /orders/{id} [put]
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	var req service.UpdateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderService.UpdateOrder(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, order)
}

// DeleteOrder removes an order and everything recorded against it. Admin only.
// @Summary      Delete order
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /orders/{id} [delete]
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	if err := h.orderService.DeleteOrder(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "Order deleted successfully")
}

// Timeline returns the order's process transitions, oldest first
// @Summary      Order timeline
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=[]model.ProcessTransition}
// @Router       /orders/{id}/timeline [get]
func (h *OrderHandler) Timeline(c *gin.Context) {
	transitions, err := h.orderService.Timeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, transitions)
}

// Hold stops all process movement on an order
// @Summary      Put order on hold
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Order ID"
// @Param        payload  body      service.HoldRequest  false "Reason"
// @Success      200      {object}  response.Response{data=model.Order}
// @Router       /orders/{id}/hold [post]
func (h *OrderHandler) Hold(c *gin.Context) {
	h.setHold(c, true)
}

// Resume lifts a hold and restores the previous state
// @Summary      Resume order
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Order ID"
// @Param        payload  body      service.HoldRequest  false "Reason"
// @Success      200      {object}  response.Response{data=model.Order}
// @Router       /orders/{id}/resume [post]
func (h *OrderHandler) Resume(c *gin.Context) {
	h.setHold(c, false)
}

func (h *OrderHandler) setHold(c *gin.Context, hold bool) {
	var req service.HoldRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	req.PerformedBy = orActor(c, req.PerformedBy)

	var err error
	var result interface{}
	if hold {
		result, err = h.processService.HoldOrder(c.Request.Context(), c.Param("id"), req)
	} else {
		result, err = h.processService.ResumeOrder(c.Request.Context(), c.Param("id"), req)
	}
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, result)
}

// Barcodes lists the order code and one code per bundle
// @Summary      Order barcodes
// @Tags         barcodes
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=service.OrderBarcodes}
// @Router       /orders/{id}/barcodes [get]
func (h *OrderHandler) Barcodes(c *gin.Context) {
	codes, err := h.orderService.Barcodes(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, codes)
}

// Scan resolves a scanned order or bundle code
// @Summary      Scan barcode
// @Tags         barcodes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ScanRequest  true  "Scanned code"
// @Success      200      {object}  response.Response{data=service.ScanResult}
// @Failure      404      {object}  response.Response
// @Router       /barcodes/scan [post]
func (h *OrderHandler) Scan(c *gin.Context) {
	var req service.ScanRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.orderService.Scan(c.Request.Context(), req.Code)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, result)
}

// ListMaterials returns the order's material and accessory requirements
// @Summary      Order materials
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=[]service.RequirementResponse}
// @Router       /orders/{id}/materials [get]
func (h *OrderHandler) ListMaterials(c *gin.Context) {
	reqs, err := h.stockService.ListRequirements(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, reqs)
}

// SetRequirements sets how much of each item the order needs
// @Summary      Set material requirements
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true  "Order ID"
// @Param        payload  body      service.SetRequirementsRequest  true  "Requirements"
// @Success      200      {object}  response.Response{data=[]service.RequirementResponse}
// @Router       /orders/{id}/material-requirements [put]
func (h *OrderHandler) SetRequirements(c *gin.Context) {
	var req service.SetRequirementsRequest
	if !bindJSON(c, &req) {
		return
	}

	reqs, err := h.stockService.SetRequirements(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, reqs)
}

// IssueMaterials issues every outstanding requirement, all or nothing
// @Summary      Issue materials to order
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Order ID"
// @Param        payload  body      service.IssueMaterialsRequest  false "Issuer"
// @Success      200      {object}  response.Response{data=service.IssueResult}
// @Failure      400      {object}  response.Response
// @Router       /orders/{id}/materials [post]
func (h *OrderHandler) IssueMaterials(c *gin.Context) {
	var req service.IssueMaterialsRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	req.PerformedBy = orActor(c, req.PerformedBy)

	result, err := h.stockService.IssueForOrder(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, result)
}

// ReturnMaterials books leftovers back into stock
// @Summary      Return order leftovers
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true  "Order ID"
// @Param        payload  body      service.ReturnMaterialsRequest  true  "Returned quantities"
// @Success      200      {object}  response.Response{data=[]service.RequirementResponse}
// @Router       /orders/{id}/materials/return [post]
func (h *OrderHandler) ReturnMaterials(c *gin.Context) {
	var req service.ReturnMaterialsRequest
	if !bindJSON(c, &req) {
		return
	}
	req.PerformedBy = orActor(c, req.PerformedBy)

	reqs, err := h.stockService.ReturnForOrder(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, reqs)
}
