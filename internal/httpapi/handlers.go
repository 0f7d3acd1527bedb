package httpapi

import (
	"errors"
	"net/http"
	"time"

	"outreach-platform/internal/audit"
	"outreach-platform/internal/auth"
	"outreach-platform/internal/calls"
	"outreach-platform/internal/events"
	"outreach-platform/internal/leads"
	"outreach-platform/internal/pipeline"
	"outreach-platform/internal/rbac"
	"outreach-platform/internal/reporting"
	"outreach-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Calls     calls.Repository
	Leads     leads.Repository
	Reporting *reporting.Service
	Audit     *audit.Service
	Publisher *events.Publisher
	Processor *pipeline.Processor
}

// --- Auth ---

type loginRequest struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.OrganizationID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, organization_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.OrganizationID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Voice webhook ---

type callStatusWebhook struct {
	CallID          string `json:"call_id"`
	OrganizationID  string `json:"organization_id"`
	CampaignID      string `json:"campaign_id,omitempty"`
	Status          string `json:"status"`
	DurationSeconds int    `json:"duration_seconds"`
	Transcript      string `json:"transcript,omitempty"`
	Customer        struct {
		Phone string `json:"phone"`
		Name  string `json:"name,omitempty"`
	} `json:"customer"`
}

// CallStatusWebhook receives call lifecycle signals from the voice provider.
// Terminal statuses kick off the analysis pipeline. The endpoint is idempotent
// against provider redeliveries.
func (h Handlers) CallStatusWebhook(c *gin.Context) {
	if h.Calls == nil || h.Processor == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "pipeline not configured"})
		return
	}
	var req callStatusWebhook
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.CallID == "" || req.OrganizationID == "" || req.Status == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id, organization_id, status required"})
		return
	}

	call := calls.Call{
		ID:              req.CallID,
		OrganizationID:  req.OrganizationID,
		CampaignID:      req.CampaignID,
		CustomerPhone:   req.Customer.Phone,
		CustomerName:    req.Customer.Name,
		Status:          calls.CallStatus(req.Status),
		DurationSeconds: req.DurationSeconds,
		Transcript:      req.Transcript,
	}
	if _, err := h.Calls.Upsert(c.Request.Context(), call); err != nil {
		if errors.Is(err, calls.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid call payload"})
			return
		}
		logger.FromGin(c).Error("call upsert failed", "call_id", req.CallID, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call persistence failed"})
		return
	}

	if !call.Status.IsTerminal() {
		c.JSON(http.StatusAccepted, gin.H{"call_id": req.CallID, "processed": false})
		return
	}

	if err := h.Processor.ProcessCompletedCall(c.Request.Context(), req.OrganizationID, req.CallID); err != nil {
		if errors.Is(err, pipeline.ErrBusy) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "analysis capacity reached, retry later"})
			return
		}
		logger.FromGin(c).Error("call processing failed", "call_id", req.CallID, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_id": req.CallID, "processed": true})
}

// --- Dashboard queries ---

func (h Handlers) GetActiveCalls(c *gin.Context) {
	organizationID, err := auth.OrganizationID(c.Request.Context())
	if err != nil || organizationID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
		return
	}
	rows, err := h.Calls.ListActive(c.Request.Context(), organizationID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": rows})
}

func (h Handlers) GetQualifiedLeads(c *gin.Context) {
	organizationID, err := auth.OrganizationID(c.Request.Context())
	if err != nil || organizationID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
		return
	}
	rows, err := h.Leads.ListQualified(c.Request.Context(), organizationID, c.Query("campaign_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lead lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": rows})
}

func (h Handlers) GetCampaignMetrics(c *gin.Context) {
	organizationID, err := auth.OrganizationID(c.Request.Context())
	if err != nil || organizationID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
		return
	}
	campaignID := c.Param("campaign_id")
	if campaignID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign_id required"})
		return
	}
	m, err := h.Reporting.CampaignMetrics(c.Request.Context(), organizationID, campaignID)
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "metrics aggregation failed"})
		return
	}
	c.JSON(http.StatusOK, m)
}

// --- Exports ---

type createExportRequest struct {
	Kind       string `json:"kind"`
	CampaignID string `json:"campaign_id,omitempty"`
}

// CreateExport queues a data export, audits who asked for it, and announces
// it on the exports channel.
func (h Handlers) CreateExport(c *gin.Context) {
	organizationID, err := auth.OrganizationID(c.Request.Context())
	if err != nil || organizationID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
		return
	}
	var req createExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Kind == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "kind required"})
		return
	}

	userID, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	exportID := uuid.NewString()

	if h.Audit != nil {
		if err := h.Audit.LogExport(c.Request.Context(), organizationID, userID, role, exportID, req.CampaignID, "export: "+req.Kind); err != nil {
			logger.FromGin(c).Warn("export audit failed", "export_id", exportID, "error", err)
		}
	}
	if h.Publisher != nil {
		h.Publisher.ExportStatus(c.Request.Context(), organizationID, exportID, "queued")
	}
	c.JSON(http.StatusAccepted, gin.H{"export_id": exportID, "status": "queued"})
}

func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Convenience middleware bundles.

func RequireOrganizationAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireOrganization(), rbac.RequireAnyRole(roles...)}
}
