package handler

import (
	"garmentflow/internal/middleware"
	"garmentflow/internal/repository"
	"garmentflow/internal/service"
	"garmentflow/pkg/pagination"
	"garmentflow/pkg/response"

	"github.com/gin-gonic/gin"
)

type ProcessHandler struct {
	processService service.ProcessService
}

func NewProcessHandler(processService service.ProcessService) *ProcessHandler {
	return &ProcessHandler{processService: processService}
}

func (h *ProcessHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/processes", middleware.RequirePermission(service.PermOrdersRead), h.Catalog)

	steps := router.Group("/process-steps")
	{
		steps.GET("", middleware.RequirePermission(service.PermOrdersRead), h.ListSteps)
		steps.POST("/assign-next", middleware.RequirePermission(service.PermProcessAssign), h.AssignNext)
		steps.GET("/:id", middleware.RequirePermission(service.PermOrdersRead), h.GetStep)
		steps.POST("/:id/start", middleware.RequirePermission(service.PermProcessUpdate), h.StartStep)
		steps.POST("/:id/complete", middleware.RequirePermission(service.PermProcessUpdate), h.CompleteStep)
		steps.POST("/:id/reject", middleware.RequirePermission(service.PermQualityWrite), h.RecordReject)
		steps.GET("/:id/rejects", middleware.RequirePermission(service.PermOrdersRead), h.ListRejects)
	}

	router.POST("/rejects/:id/rework-complete", middleware.RequirePermission(service.PermQualityWrite), h.CompleteRework)

	transfers := router.Group("/transfers")
	{
		transfers.GET("", middleware.RequirePermission(service.PermOrdersRead), h.ListTransfers)
		transfers.GET("/:id", middleware.RequirePermission(service.PermOrdersRead), h.GetTransfer)
		transfers.POST("/:id/receive", middleware.RequirePermission(service.PermProcessUpdate), h.ReceiveTransfer)
	}
}

// Catalog lists every process with its department and legal successors
// @Summary      Process catalogue
// @Tags         process
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.ProcessDefinition}
// @Router       /processes [get]
func (h *ProcessHandler) Catalog(c *gin.Context) {
	response.OK(c, h.processService.Catalog())
}

// AssignNext routes an order to its next process
// @Summary      Assign next process
// @Description  Creates the next process step, the transfer to its department and a transition record in one transaction.
// @Tags         process
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.AssignNextRequest  true  "Assignment"
// @Success      200      {object}  response.Response{data=service.AssignResult}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /process-steps/assign-next [post]
func (h *ProcessHandler) AssignNext(c *gin.Context) {
	var req service.AssignNextRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.processService.AssignNext(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, result)
}

// ListSteps returns process steps, optionally for one order
// @Summary      List process steps
// @Tags         process
// @Security     BearerAuth
// @Produce      json
// @Param        order_id    query     string  false  "Order ID"
// @Param        process     query     string  false  "Process name"
// @Param        status      query     string  false  "pending, in_progress, completed"
// @Param        department  query     string  false  "Department"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Items per page (default 20)"
// @Success      200         {object}  response.Response{data=object}
// @Router       /process-steps [get]
func (h *ProcessHandler) ListSteps(c *gin.Context) {
	p := pagination.Parse(c)
	filter := repository.StepFilter{
		OrderID:     c.Query("order_id"),
		ProcessName: c.Query("process"),
		Status:      c.Query("status"),
		Department:  c.Query("department"),
	}

	steps, total, err := h.processService.ListSteps(c.Request.Context(), filter, p.Page, p.Limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	paged(c, "process_steps", steps, total, p)
}

// GetStep returns one step with its rejects
// @Summary      Get process step
// @Tags         process
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Step ID"
// @Success      200  {object}  response.Response{data=service.StepDetail}
// @Failure      404  {object}  response.Response
// @Router       /process-steps/{id} [get]
func (h *ProcessHandler) GetStep(c *gin.Context) {
	detail, err := h.processService.GetStep(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, detail)
}

// StartStep records that the department received the goods
// @Summary      Start process step
// @Tags         process
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "Step ID"
// @Param        payload  body      service.StartStepRequest  false "Received quantity"
// @Success      200      {object}  response.Response{data=model.ProcessStep}
// @Failure      400      {object}  response.Response
// @Router       /process-steps/{id}/start [post]
func (h *ProcessHandler) StartStep(c *gin.Context) {
	var req service.StartStepRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	req.ReceivedBy = orActor(c, req.ReceivedBy)

	step, err := h.processService.StartStep(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, step)
}

// CompleteStep closes a step and hands the order back to PPIC
// @Summary      Complete process step
// @Tags         process
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Step ID"
// @Param        payload  body      service.CompleteStepRequest  true  "Completed quantities"
// @Success      200      {object}  response.Response{data=model.ProcessStep}
// @Failure      400      {object}  response.Response
// @Router       /process-steps/{id}/complete [post]
func (h *ProcessHandler) CompleteStep(c *gin.Context) {
	var req service.CompleteStepRequest
	if !bindJSON(c, &req) {
		return
	}
	req.CompletedBy = orActor(c, req.CompletedBy)

	step, err := h.processService.CompleteStep(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, step)
}

// RecordReject books a reject or rework against a step
// @Summary      Record reject
// @Tags         quality
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Step ID"
// @Param        payload  body      service.RecordRejectRequest  true  "Reject"
// @Success      201      {object}  response.Response{data=model.RejectLog}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /process-steps/{id}/reject [post]
func (h *ProcessHandler) RecordReject(c *gin.Context) {
	var req service.RecordRejectRequest
	if !bindJSON(c, &req) {
		return
	}

	reject, err := h.processService.RecordReject(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, reject)
}

// ListRejects returns the rejects recorded against a step
// @Summary      List step rejects
// @Tags         quality
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Step ID"
// @Success      200  {object}  response.Response{data=[]model.RejectLog}
// @Router       /process-steps/{id}/rejects [get]
func (h *ProcessHandler) ListRejects(c *gin.Context) {
	detail, err := h.processService.GetStep(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, detail.Rejects)
}

// CompleteRework marks a rework entry as done
// @Summary      Complete rework
// @Tags         quality
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Reject ID"
// @Param        payload  body      service.CompleteReworkRequest  false "Who finished the rework"
// @Success      200      {object}  response.Response{data=model.RejectLog}
// @Router       /rejects/{id}/rework-complete [post]
func (h *ProcessHandler) CompleteRework(c *gin.Context) {
	var req service.CompleteReworkRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	req.PerformedBy = orActor(c, req.PerformedBy)

	reject, err := h.processService.CompleteRework(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, reject)
}

// ListTransfers returns transfer logs
// @Summary      List transfers
// @Tags         process
// @Security     BearerAuth
// @Produce      json
// @Param        order_id       query     string  false  "Order ID"
// @Param        status         query     string  false  "pending or received"
// @Param        to_department  query     string  false  "Receiving department"
// @Param        page           query     int     false  "Page number (default 1)"
// @Param        limit          query     int     false  "Items per page (default 20)"
// @Success      200            {object}  response.Response{data=object}
// @Router       /transfers [get]
func (h *ProcessHandler) ListTransfers(c *gin.Context) {
	p := pagination.Parse(c)
	filter := repository.TransferFilter{
		OrderID:      c.Query("order_id"),
		Status:       c.Query("status"),
		ToDepartment: c.Query("to_department"),
	}

	transfers, total, err := h.processService.ListTransfers(c.Request.Context(), filter, p.Page, p.Limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	paged(c, "transfers", transfers, total, p)
}

// GetTransfer returns one transfer with its size lines
// @Summary      Get transfer
// @Tags         process
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Transfer ID"
// @Success      200  {object}  response.Response{data=model.TransferLog}
// @Failure      404  {object}  response.Response
// @Router       /transfers/{id} [get]
func (h *ProcessHandler) GetTransfer(c *gin.Context) {
	transfer, err := h.processService.GetTransfer(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, transfer)
}

// ReceiveTransfer confirms arrival of a transfer and starts the destination step
// @Summary      Receive transfer
// @Tags         process
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "Transfer ID"
// @Param        payload  body      service.StartStepRequest  false "Received quantity"
// @Success      200      {object}  response.Response{data=model.TransferLog}
// @Router       /transfers/{id}/receive [post]
func (h *ProcessHandler) ReceiveTransfer(c *gin.Context) {
	var req service.StartStepRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	req.ReceivedBy = orActor(c, req.ReceivedBy)

	transfer, err := h.processService.ReceiveTransfer(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, transfer)
}
