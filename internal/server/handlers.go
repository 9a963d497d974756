package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/inovacc/gitkeeper/internal/gitsync"
	"github.com/inovacc/gitkeeper/internal/giturl"
	"github.com/inovacc/gitkeeper/internal/model"
	"github.com/inovacc/gitkeeper/internal/store"
)

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.Fail("Invalid request body"))
		return
	}

	user, err := s.store.GetUser(req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, model.Fail("Invalid credentials"))
			return
		}
		s.logger.Error("login lookup failed", "username", req.Username, "error", err)
		c.JSON(http.StatusInternalServerError, model.Fail("Internal server error"))
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, model.Fail("Invalid credentials"))
		return
	}

	token := s.sessions.Create(user.Username)

	c.JSON(http.StatusOK, model.OK(loginResponse{Token: token, Username: user.Username}))
}

func (s *Server) handleLogout(c *gin.Context) {
	s.sessions.Remove(c.GetString(ctxKeyToken))
	c.JSON(http.StatusOK, model.APIResponse{Success: true, Message: "Logged out"})
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, model.Fail("database unreachable"))
		return
	}
	c.JSON(http.StatusOK, model.OK(gin.H{"status": "ok"}))
}

func (s *Server) handleListRepositories(c *gin.Context) {
	var q model.PaginationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, model.Fail("Invalid pagination parameters"))
		return
	}

	// Without paging parameters the full list comes back, matching
	// clients that predate pagination.
	if q.Page <= 0 && q.Limit <= 0 {
		repos, err := s.store.ListRepos()
		if err != nil {
			s.logger.Error("list repositories failed", "error", err)
			c.JSON(http.StatusInternalServerError, model.Fail("Internal server error"))
			return
		}
		c.JSON(http.StatusOK, model.OK(repos))
		return
	}

	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}

	total, err := s.store.CountRepos()
	if err != nil {
		s.logger.Error("count repositories failed", "error", err)
		c.JSON(http.StatusInternalServerError, model.Fail("Internal server error"))
		return
	}

	repos, err := s.store.ListReposPage((q.Page-1)*q.Limit, q.Limit)
	if err != nil {
		s.logger.Error("list repositories failed", "error", err)
		c.JSON(http.StatusInternalServerError, model.Fail("Internal server error"))
		return
	}

	totalPages := int((total + int64(q.Limit) - 1) / int64(q.Limit))

	c.JSON(http.StatusOK, model.OK(model.PaginatedResponse{
		Items:      repos,
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: totalPages,
	}))
}

func (s *Server) handleAddRepository(c *gin.Context) {
	var req model.AddRepositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.Fail("Invalid request body"))
		return
	}

	// Reject a malformed URL before the engine does any network I/O.
	if _, err := giturl.CanonicalName(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, model.Fail(fmt.Sprintf("Invalid repository URL: %v", err)))
		return
	}

	// The engine derives the canonical name and the clone path together;
	// the record persists that pair rather than a second derivation.
	name, localPath, err := s.cloner.Clone(c.Request.Context(), req.URL)
	if err != nil {
		if errors.Is(err, gitsync.ErrExists) {
			c.JSON(http.StatusConflict, model.Fail("Repository already exists on disk"))
			return
		}
		c.JSON(http.StatusBadRequest, model.Fail(fmt.Sprintf("Failed to clone repository: %v", err)))
		return
	}

	rec, err := s.store.InsertRepo(req.URL, name, localPath)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, model.Fail("Repository already registered"))
			return
		}
		s.logger.Error("insert repository failed", "url", req.URL, "error", err)
		c.JSON(http.StatusInternalServerError, model.Fail("Internal server error"))
		return
	}

	s.logger.Info("repository added", "url", rec.URL, "path", rec.LocalPath)

	c.JSON(http.StatusCreated, model.OK(rec))
}

func (s *Server) handleRemoveRepository(c *gin.Context) {
	repoURL := pathParamURL(c)

	rec, err := s.store.GetRepoByURL(repoURL)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, model.Fail("Repository not found"))
			return
		}
		s.logger.Error("get repository failed", "url", repoURL, "error", err)
		c.JSON(http.StatusInternalServerError, model.Fail("Internal server error"))
		return
	}

	// Best effort: a missing or stubborn directory must not strand the
	// registry row.
	if err := os.RemoveAll(rec.LocalPath); err != nil {
		s.logger.Warn("could not remove repository directory", "path", rec.LocalPath, "error", err)
	}

	if err := s.store.DeleteRepoByURL(repoURL); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, model.Fail("Repository not found"))
			return
		}
		s.logger.Error("delete repository failed", "url", repoURL, "error", err)
		c.JSON(http.StatusInternalServerError, model.Fail("Internal server error"))
		return
	}

	s.logger.Info("repository removed", "url", repoURL)

	c.JSON(http.StatusOK, model.APIResponse{Success: true, Message: "Repository removed"})
}

func (s *Server) handleSyncRepository(c *gin.Context) {
	repoURL := pathParamURL(c)

	outcome, err := s.syncer.SyncOne(c.Request.Context(), repoURL)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, model.Fail("Repository not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, model.Fail(fmt.Sprintf("Failed to sync repository: %v", err)))
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{Success: true, Message: outcome.String()})
}

func (s *Server) handleSyncAll(c *gin.Context) {
	failed, err := s.syncer.SyncAll(c.Request.Context())
	if err != nil {
		s.logger.Error("sync sweep failed", "error", err)
		c.JSON(http.StatusInternalServerError, model.Fail("Internal server error"))
		return
	}

	msg := "All repositories synced"
	if failed > 0 {
		msg = fmt.Sprintf("Sweep finished with %d failure(s)", failed)
	}

	c.JSON(http.StatusOK, model.APIResponse{Success: true, Message: msg})
}

// pathParamURL returns the :url parameter decoded; an undecodable value
// is used verbatim so lookups still get a definitive not-found.
func pathParamURL(c *gin.Context) string {
	raw := c.Param("url")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
