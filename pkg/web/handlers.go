// Package web provides HTTP handlers and REST API endpoints for agent and
// pipeline management.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/stackconsult/interfaceAgent/pkg/audit"
	"github.com/stackconsult/interfaceAgent/pkg/models"
	"github.com/stackconsult/interfaceAgent/pkg/registry"
	"github.com/stackconsult/interfaceAgent/pkg/services"
)

// defaultActor is recorded when the request carries no X-Actor header.
const defaultActor = "api"

type APIHandlers struct {
	agentService     *services.Agent
	pipelineService  *services.Pipeline
	executionService *services.Execution
	auditLog         *audit.Logger
	validator        *validator.Validate
	registry         *registry.Registry
}

func NewAPIHandlers(
	agentService *services.Agent,
	pipelineService *services.Pipeline,
	executionService *services.Execution,
	auditLog *audit.Logger,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		agentService:     agentService,
		pipelineService:  pipelineService,
		executionService: executionService,
		auditLog:         auditLog,
		validator:        validator,
		registry:         registry,
	}
}

// RegisterRoutes mounts all API routes on the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	app.Get("/agents", h.GetAgents)
	app.Post("/agents", h.CreateAgent)
	app.Get("/agents/types", h.GetAgentTypes)
	app.Get("/agents/:id", h.GetAgent)
	app.Patch("/agents/:id", h.UpdateAgent)
	app.Delete("/agents/:id", h.DeleteAgent)
	app.Post("/agents/:id/activate", h.ActivateAgent)
	app.Post("/agents/:id/deactivate", h.DeactivateAgent)

	app.Get("/pipelines", h.GetPipelines)
	app.Post("/pipelines", h.CreatePipeline)
	app.Get("/pipelines/:id", h.GetPipeline)
	app.Patch("/pipelines/:id", h.UpdatePipeline)
	app.Delete("/pipelines/:id", h.DeletePipeline)
	app.Post("/pipelines/:id/steps", h.AddStep)
	app.Delete("/pipelines/:id/steps/:stepId", h.RemoveStep)
	app.Post("/pipelines/:id/status", h.SetPipelineStatus)
	app.Post("/pipelines/:id/execute", h.ExecutePipeline)

	app.Get("/executions", h.GetExecutions)
	app.Get("/executions/:id", h.GetExecution)

	app.Get("/audit", h.GetAuditRecords)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.pipelineService.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetAgents(c fiber.Ctx) error {
	agents, err := h.agentService.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(agents)
}

func (h *APIHandlers) GetAgentTypes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"types":   h.registry.Types(),
		"plugins": h.registry.LoadedPlugins(),
	})
}

func (h *APIHandlers) GetAgent(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Agent ID is required")
	}

	agent, err := h.agentService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(agent)
}

func (h *APIHandlers) CreateAgent(c fiber.Ctx) error {
	var req CreateAgentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	agent := &models.Agent{
		TypeName:      req.TypeName,
		Name:          req.Name,
		Description:   req.Description,
		Category:      models.AgentCategory(req.Category),
		Version:       req.Version,
		Configuration: req.Configuration,
	}

	created, err := h.agentService.Create(c.Context(), actor(c), agent)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateAgent(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Agent ID is required")
	}

	var req UpdateAgentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.agentService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Version != nil {
		existing.Version = *req.Version
	}

	if req.Configuration != nil {
		existing.Configuration = req.Configuration
	}

	updated, err := h.agentService.Update(c.Context(), actor(c), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteAgent(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Agent ID is required")
	}

	if err := h.agentService.Delete(c.Context(), actor(c), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ActivateAgent(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Agent ID is required")
	}

	agent, err := h.agentService.Activate(c.Context(), actor(c), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(agent)
}

func (h *APIHandlers) DeactivateAgent(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Agent ID is required")
	}

	agent, err := h.agentService.Deactivate(c.Context(), actor(c), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(agent)
}

func (h *APIHandlers) GetPipelines(c fiber.Ctx) error {
	pipelines, err := h.pipelineService.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(pipelines)
}

func (h *APIHandlers) GetPipeline(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	pipeline, err := h.pipelineService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(pipeline)
}

func (h *APIHandlers) CreatePipeline(c fiber.Ctx) error {
	var req CreatePipelineRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	pipeline := &models.Pipeline{
		Name:          req.Name,
		Description:   req.Description,
		Configuration: req.Configuration,
		Steps:         []*models.PipelineStep{},
	}

	created, err := h.pipelineService.Create(c.Context(), actor(c), pipeline)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdatePipeline(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	var req UpdatePipelineRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.pipelineService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Configuration != nil {
		existing.Configuration = req.Configuration
	}

	updated, err := h.pipelineService.Update(c.Context(), actor(c), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeletePipeline(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	if err := h.pipelineService.Delete(c.Context(), actor(c), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) AddStep(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	var req AddStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	step := &models.PipelineStep{
		AgentID:       req.AgentID,
		Order:         req.Order,
		Configuration: req.Configuration,
		Critical:      req.Critical,
		TimeoutMs:     req.TimeoutMs,
	}

	pipeline, err := h.pipelineService.AddStep(c.Context(), actor(c), id, step)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(pipeline)
}

func (h *APIHandlers) RemoveStep(c fiber.Ctx) error {
	id := c.Params("id")
	stepID := c.Params("stepId")

	if id == "" || stepID == "" {
		return badRequest(c, "Pipeline ID and step ID are required")
	}

	pipeline, err := h.pipelineService.RemoveStep(c.Context(), actor(c), id, stepID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(pipeline)
}

func (h *APIHandlers) SetPipelineStatus(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	var req SetPipelineStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	pipeline, err := h.pipelineService.SetStatus(c.Context(), actor(c), id, req.Status)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(pipeline)
}

// ExecutePipeline accepts an execution request and returns 202 with the
// execution record; the run completes asynchronously.
func (h *APIHandlers) ExecutePipeline(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Pipeline ID is required")
	}

	var req ExecutePipelineRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	execution, err := h.executionService.Execute(c.Context(), id, req.Input)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(execution)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.executionService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	req := services.ListExecutionsRequest{
		PipelineID: c.Query("pipeline_id"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit parameter")
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return badRequest(c, "Invalid offset parameter")
		}

		req.Offset = offset
	}

	executions, err := h.executionService.List(c.Context(), req)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(executions)
}

func (h *APIHandlers) GetAuditRecords(c fiber.Ctx) error {
	limit := 50

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit parameter")
		}

		limit = parsed
	}

	records, err := h.auditLog.Records(c.Context(), limit)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(records)
}

func actor(c fiber.Ctx) string {
	if value := c.Get("X-Actor"); value != "" {
		return value
	}

	return defaultActor
}
