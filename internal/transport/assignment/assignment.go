package assignment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainassign "github.com/jmoreland/lead-mesh/internal/domain/assignment"
	"github.com/jmoreland/lead-mesh/internal/domain/identity"
	portdir "github.com/jmoreland/lead-mesh/internal/port/directory"
	portpolicy "github.com/jmoreland/lead-mesh/internal/port/policy"
	assignersvc "github.com/jmoreland/lead-mesh/internal/service/assigner"
	settingssvc "github.com/jmoreland/lead-mesh/internal/service/settings"
)

// Register mounts the assignment trigger plus the administrative surface.
// dir may be nil when no directory service is configured; assignment then
// runs in the degraded (stub-identity) mode.
func Register(api *gin.RouterGroup, assigner *assignersvc.Service, settings *settingssvc.Service, dir portdir.Directory) {
	api.POST("/assignments", triggerAssign(assigner, dir))
	api.POST("/leads/:id/assign", manualAssign(settings))

	integ := api.Group("/integrations/:type/:id/assignment")
	integ.GET("/settings", getSettings(settings))
	integ.PUT("/settings", putSettings(settings))
	integ.GET("/preview", previewNext(assigner, dir))
	integ.GET("/eligible", listEligible(assigner, dir))
	integ.POST("/reset", resetCursor(settings))
}

func integrationKey(c *gin.Context) (domainassign.Key, bool) {
	key := domainassign.Key{
		Type: domainassign.IntegrationType(c.Param("type")),
		ID:   c.Param("id"),
	}
	if !key.Type.Valid() || key.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid integration type or id"})
		return domainassign.Key{}, false
	}
	return key, true
}

type triggerReq struct {
	LeadID          string `json:"lead_id" binding:"required"`
	IntegrationType string `json:"integration_type" binding:"required"`
	IntegrationID   string `json:"integration_id" binding:"required"`
	OrgID           string `json:"org_id" binding:"required"`
}

func triggerAssign(svc *assignersvc.Service, dir portdir.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req triggerReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		key := domainassign.Key{Type: domainassign.IntegrationType(req.IntegrationType), ID: req.IntegrationID}
		outcome, err := svc.Assign(c.Request.Context(), req.LeadID, key, req.OrgID, dir)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, portpolicy.ErrNotFound) {
				status = http.StatusNotFound
			}
			if errors.Is(err, assignersvc.ErrMissingOrgID) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, outcome)
	}
}

func getSettings(svc *settingssvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := integrationKey(c)
		if !ok {
			return
		}
		p, err := svc.Get(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, portpolicy.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

type putSettingsReq struct {
	OrgID     string                 `json:"org_id" binding:"required"`
	Enabled   bool                   `json:"enabled"`
	Mode      domainassign.Mode      `json:"mode" binding:"required"`
	Algorithm domainassign.Algorithm `json:"algorithm"`
	Targets   []domainassign.Target  `json:"targets"`
}

func putSettings(svc *settingssvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := integrationKey(c)
		if !ok {
			return
		}
		var req putSettingsReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p := domainassign.Policy{
			Enabled:   req.Enabled,
			Mode:      req.Mode,
			Algorithm: req.Algorithm,
			Targets:   req.Targets,
		}
		if err := svc.Update(c.Request.Context(), key, req.OrgID, p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": true})
	}
}

func previewNext(svc *assignersvc.Service, dir portdir.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := integrationKey(c)
		if !ok {
			return
		}
		next, err := svc.Preview(c.Request.Context(), key, c.Query("org_id"), dir)
		if err != nil {
			if errors.Is(err, portpolicy.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if next == nil {
			c.JSON(http.StatusOK, gin.H{"next": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"next": next})
	}
}

func listEligible(svc *assignersvc.Service, dir portdir.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := integrationKey(c)
		if !ok {
			return
		}
		users, err := svc.Eligible(c.Request.Context(), key, c.Query("org_id"), dir)
		if err != nil {
			if errors.Is(err, portpolicy.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if users == nil {
			users = []identity.EligibleUser{}
		}
		c.JSON(http.StatusOK, users)
	}
}

func resetCursor(svc *settingssvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := integrationKey(c)
		if !ok {
			return
		}
		if err := svc.ResetCursor(c.Request.Context(), key); err != nil {
			if errors.Is(err, portpolicy.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reset": true})
	}
}

type manualAssignReq struct {
	Assignee string `json:"assignee" binding:"required"`
}

func manualAssign(svc *settingssvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		leadID := c.Param("id")
		var req manualAssignReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.ManualAssign(c.Request.Context(), leadID, req.Assignee); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"assigned": true, "assignee": req.Assignee})
	}
}
