package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"garmentflow/internal/middleware"
	"garmentflow/internal/model"
	"garmentflow/internal/repository"
	"garmentflow/internal/service"
	"garmentflow/pkg/pagination"
	"garmentflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// StockHandler serves the material and accessory ledgers. Both kinds share
// one set of endpoints under their own prefix.
type StockHandler struct {
	stockService service.StockService
}

func NewStockHandler(stockService service.StockService) *StockHandler {
	return &StockHandler{stockService: stockService}
}

func (h *StockHandler) RegisterRoutes(router *gin.RouterGroup) {
	h.registerKind(router.Group("/materials"), model.KindMaterial)
	h.registerKind(router.Group("/accessories"), model.KindAccessory)
}

func (h *StockHandler) registerKind(g *gin.RouterGroup, kind model.StockItemKind) {
	read := middleware.RequirePermission(service.PermInventoryRead)
	write := middleware.RequirePermission(service.PermInventoryWrite)

	g.GET("", read, h.ListItems(kind))
	g.POST("", write, h.CreateItem(kind))
	g.GET("/low-stock", read, h.LowStock(kind))
	g.GET("/export", read, h.Export(kind))
	g.GET("/:id", read, h.GetItem(kind))
	g.PUT("/:id", write, h.UpdateItem(kind))
	g.DELETE("/:id", write, h.DeleteItem(kind))
	g.GET("/:id/transactions", read, h.ListTransactions(kind))
	g.POST("/:id/transactions", write, h.RecordTransaction(kind))
}

// ListItems returns items with their ledger balance
// @Summary      List stock items
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        search    query     string  false  "Code or name"
// @Param        category  query     string  false  "Category"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Items per page (default 20)"
// @Success      200       {object}  response.Response{data=object}
// @Router       /materials [get]
// @Router       /accessories [get]
func (h *StockHandler) ListItems(kind model.StockItemKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := pagination.Parse(c)
		filter := repository.ItemFilter{Search: c.Query("search"), Category: c.Query("category")}

		items, total, err := h.stockService.ListItems(c.Request.Context(), kind, filter, p.Page, p.Limit)
		if err != nil {
			response.Fail(c, err)
			return
		}
		paged(c, "items", items, total, p)
	}
}

// GetItem returns one item with its balance
// @Summary      Get stock item
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Item ID"
// @Success      200  {object}  response.Response{data=service.StockItemResponse}
// @Failure      404  {object}  response.Response
// @Router       /materials/{id} [get]
// @Router       /accessories/{id} [get]
func (h *StockHandler) GetItem(kind model.StockItemKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := h.stockService.GetItem(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, item)
	}
}

// CreateItem adds an item to the catalogue with an empty ledger
// @Summary      Create stock item
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateStockItemRequest  true  "Item"
// @Success      201      {object}  response.Response{data=service.StockItemResponse}
// @Failure      400      {object}  response.Response
// @Router       /materials [post]
// @Router       /accessories [post]
func (h *StockHandler) CreateItem(kind model.StockItemKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CreateStockItemRequest
		if !bindJSON(c, &req) {
			return
		}

		item, err := h.stockService.CreateItem(c.Request.Context(), actorFrom(c), kind, req)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.Created(c, item)
	}
}

// UpdateItem changes item master data; the balance only moves through transactions
// @Summary      Update stock item
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true  "Item ID"
// @Param        payload  body      service.UpdateStockItemRequest  true  "Item"
// @Success      200      {object}  response.Response{data=service.StockItemResponse}
// @Router       /materials/{id} [put]
// @Router       /accessories/{id} [put]
func (h *StockHandler) UpdateItem(kind model.StockItemKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.UpdateStockItemRequest
		if !bindJSON(c, &req) {
			return
		}

		item, err := h.stockService.UpdateItem(c.Request.Context(), actorFrom(c), kind, c.Param("id"), req)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, item)
	}
}

// DeleteItem removes an item whose balance is zero
// @Summary      Delete stock item
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Item ID"
// @Success      200  {object}  response.Response
// @Router       /materials/{id} [delete]
// @Router       /accessories/{id} [delete]
func (h *StockHandler) DeleteItem(kind model.StockItemKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.stockService.DeleteItem(c.Request.Context(), actorFrom(c), kind, c.Param("id")); err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, "Item deleted successfully")
	}
}

// LowStock lists items at or below their minimum
// @Summary      Low-stock items
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.StockItemResponse}
// @Router       /materials/low-stock [get]
// @Router       /accessories/low-stock [get]
func (h *StockHandler) LowStock(kind model.StockItemKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := h.stockService.LowStockItems(c.Request.Context(), kind)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.OK(c, items)
	}
}

// ListTransactions returns the item's ledger, newest first
// @Summary      Item ledger
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true   "Item ID"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /materials/{id}/transactions [get]
// @Router       /accessories/{id}/transactions [get]
func (h *StockHandler) ListTransactions(kind model.StockItemKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := pagination.Parse(c)
		entries, total, err := h.stockService.ListTransactions(c.Request.Context(), kind, c.Param("id"), p.Page, p.Limit)
		if err != nil {
			response.Fail(c, err)
			return
		}
		paged(c, "transactions", entries, total, p)
	}
}

// RecordTransaction appends one ledger row for the item
// @Summary      Record stock transaction
// @Description  in and return add stock, out removes it, adjustment is signed. Removals never take stock below zero.
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                            true  "Item ID"
// @Param        payload  body      service.RecordTransactionRequest  true  "Movement"
// @Success      201      {object}  response.Response{data=service.LedgerEntryResponse}
// @Failure      400      {object}  response.Response
// @Router       /materials/{id}/transactions [post]
// @Router       /accessories/{id}/transactions [post]
func (h *StockHandler) RecordTransaction(kind model.StockItemKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.RecordTransactionRequest
		if !bindJSON(c, &req) {
			return
		}

		entry, err := h.stockService.RecordTransaction(c.Request.Context(), actorFrom(c), kind, c.Param("id"), req)
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.Created(c, entry)
	}
}

// Export streams the stock report as an xlsx workbook
// @Summary      Export stock report
// @Tags         inventory
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success      200
// @Router       /materials/export [get]
// @Router       /accessories/export [get]
func (h *StockHandler) Export(kind model.StockItemKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var buf bytes.Buffer
		if err := h.stockService.ExportItems(c.Request.Context(), kind, &buf); err != nil {
			response.Fail(c, err)
			return
		}

		filename := fmt.Sprintf("%s-stock-%s.xlsx", kind, time.Now().Format("20060102"))
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	}
}
