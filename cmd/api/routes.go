package main

import (
	"outreach-platform/internal/httpapi"
	"outreach-platform/internal/rbac"
	"outreach-platform/internal/realtime"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, ws *realtime.Handler, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", httpapi.Healthz)

	// Voice provider webhooks (public).
	// NOTE: This endpoint should be protected by provider signature validation in production.
	r.POST("/webhooks/voice/call-status", h.CallStatusWebhook)

	// Realtime dashboard socket; token is verified before the upgrade.
	r.GET("/ws", ws.Serve)

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	v1.Use(rbac.RequireOrganization())
	{
		callsGroup := v1.Group("/calls")
		callsGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleAnalyst, rbac.RoleSuperAdmin))
		{
			callsGroup.GET("/active", h.GetActiveCalls)
		}

		leadsGroup := v1.Group("/leads")
		leadsGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleAnalyst, rbac.RoleSuperAdmin))
		{
			leadsGroup.GET("/qualified", h.GetQualifiedLeads)
		}

		campaigns := v1.Group("/campaigns")
		campaigns.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAnalyst, rbac.RoleSuperAdmin))
		{
			campaigns.GET("/:campaign_id/metrics", h.GetCampaignMetrics)
		}

		exports := v1.Group("/exports")
		exports.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAnalyst, rbac.RoleSuperAdmin))
		{
			exports.POST("", h.CreateExport)
		}
	}
}
