package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rnProCoder/ControlledBrowsing/internal/control/common/urlnorm"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/domain"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/repos/rules"
)

// Website rules

func (s *Server) listRules(c *gin.Context) {
	ruleList, err := s.store.ListWebsiteRules(c.Request.Context())
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ruleList)
}

// createRuleRequest omits createdBy on purpose: attribution always goes to
// the calling admin, never to a client-supplied id.
type createRuleRequest struct {
	Domain        string `json:"domain"`
	IsAllowed     bool   `json:"isAllowed"`
	IsTimeLimited bool   `json:"isTimeLimited"`
	AppliedTo     string `json:"appliedTo"`
}

func (s *Server) createRule(c *gin.Context) {
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid data", "error": err.Error()})
		return
	}
	rule, err := s.store.CreateWebsiteRule(c.Request.Context(), rules.NewWebsiteRule{
		Domain:        req.Domain,
		IsAllowed:     req.IsAllowed,
		IsTimeLimited: req.IsTimeLimited,
		AppliedTo:     req.AppliedTo,
		CreatedBy:     currentUser(c).ID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			s.storeError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid data", "error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (s *Server) updateRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var patch rules.WebsiteRulePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid data", "error": err.Error()})
		return
	}
	rule, err := s.store.UpdateWebsiteRule(c.Request.Context(), id, patch)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "rule not found"})
		case errors.Is(err, domain.ErrStoreUnavailable):
			s.storeError(c, err)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid data", "error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) deleteRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.store.DeleteWebsiteRule(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "rule not found"})
			return
		}
		s.storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Users

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.store.ListUsers(c.Request.Context())
	if err != nil {
		s.storeError(c, err)
		return
	}
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Sanitized())
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createUser(c *gin.Context) {
	var in rules.NewUser
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid data", "error": err.Error()})
		return
	}
	user, err := s.store.CreateUser(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"message": "username already taken"})
		case errors.Is(err, domain.ErrStoreUnavailable):
			s.storeError(c, err)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid data", "error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, user.Sanitized())
}

// Browsing activities

func (s *Server) listActivities(c *gin.Context) {
	user := currentUser(c)

	var (
		activities []domain.BrowsingActivity
		err        error
	)
	if user.IsAdmin {
		activities, err = s.store.ListActivities(c.Request.Context())
	} else {
		activities, err = s.store.ListUserActivities(c.Request.Context(), user.ID)
	}
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}

func (s *Server) listRecentActivities(c *gin.Context) {
	limit := 5
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	activities, err := s.store.ListRecentActivities(c.Request.Context(), limit)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}

// Access checks

type checkAccessRequest struct {
	Domain string `json:"domain"`
}

// checkAccess wraps the engine for the browsing client: normalize the
// user-entered input to a hostname, evaluate, record the outcome, respond.
// When rule data cannot be read the client gets an explicit blocked state,
// never a silent allow.
func (s *Server) checkAccess(c *gin.Context) {
	var req checkAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Domain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "domain is required"})
		return
	}
	user := currentUser(c)
	host := urlnorm.HostnameFromURL(req.Domain)

	verdict, err := s.engine.Evaluate(c.Request.Context(), user.ID, host)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidDomain) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "domain is required"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"isAllowed": false,
			"message":   "cannot verify access, blocked",
		})
		return
	}

	// Recording is gated on the logging setting inside the recorder and
	// never blocks the response.
	s.recorder.Record(user.ID, host, verdict.Status())

	c.JSON(http.StatusOK, verdict)
}

// Settings

func (s *Server) getSettings(c *gin.Context) {
	settings, err := s.store.GetAppSettings(c.Request.Context())
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) updateSettings(c *gin.Context) {
	var patch domain.AppSettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid data", "error": err.Error()})
		return
	}
	settings, err := s.store.UpdateAppSettings(c.Request.Context(), patch)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// helpers

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return 0, false
	}
	return id, true
}

func (s *Server) storeError(c *gin.Context, err error) {
	s.logger.Error(map[string]any{
		"error": err,
		"path":  c.Request.URL.Path,
	}, "store operation failed")
	if errors.Is(err, domain.ErrStoreUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "storage unavailable"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
}
