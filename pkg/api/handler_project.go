package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forgeworks/swarm/pkg/models"
)

// createProjectHandler handles POST /api/v1/projects.
func (s *Server) createProjectHandler(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := s.store.Projects.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// getProjectHandler handles GET /api/v1/projects/:id.
func (s *Server) getProjectHandler(c *gin.Context) {
	project, err := s.store.Projects.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// listProjectsHandler handles GET /api/v1/projects. Listing is tenant-scoped;
// there is no cross-tenant view.
func (s *Server) listProjectsHandler(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id query parameter is required"})
		return
	}

	projects, err := s.store.Projects.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, &ProjectListResponse{Projects: projects})
}
