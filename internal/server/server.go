// Package server exposes the engine's query operations over HTTP. It is
// serving-only: no sync or schema endpoints, and training is reachable
// only as a fire-and-forget enqueue.
package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidora/recgraph/internal/engine"
	"github.com/vidora/recgraph/internal/logger"
)

const defaultLimit = 10

type Server struct {
	engine *engine.Engine
	log    *logger.Logger
}

func New(e *engine.Engine, log *logger.Logger) *Server {
	return &Server{engine: e, log: log}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/recommendations/:user_id", s.Recommendations)
	r.GET("/recommendations/:user_id/followed", s.RecommendationsFromFollowed)
	r.GET("/recommendations/category/:parent_category_id", s.RecommendationsByCategory)
	r.GET("/users/:user_id/stats", s.UserStats)
	r.GET("/status", s.Status)
	r.POST("/train", s.Train)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func limitParam(c *gin.Context) int {
	raw := c.DefaultQuery("limit", "")
	if raw == "" {
		return defaultLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	return limit
}

func (s *Server) Recommendations(c *gin.Context) {
	userID := c.Param("user_id")

	recs, err := s.engine.GetRecommendations(c.Request.Context(), userID, limitParam(c))
	if err != nil {
		s.log.Error("recommendation request failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute recommendations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "video_ids": recs})
}

func (s *Server) RecommendationsFromFollowed(c *gin.Context) {
	userID := c.Param("user_id")

	recs, err := s.engine.GetRecommendationsFromFollowed(c.Request.Context(), userID, limitParam(c))
	if err != nil {
		s.log.Error("followed-creator request failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute recommendations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "video_ids": recs})
}

func (s *Server) RecommendationsByCategory(c *gin.Context) {
	parentCategoryID := c.Param("parent_category_id")
	userID := c.Query("user_id")

	recs, err := s.engine.GetRecommendationsByCategory(c.Request.Context(), userID, parentCategoryID, limitParam(c))
	if err != nil {
		s.log.Error("category request failed", "parent_category_id", parentCategoryID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute recommendations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"parent_category_id": parentCategoryID, "video_ids": recs})
}

func (s *Server) UserStats(c *gin.Context) {
	userID := c.Param("user_id")

	stats, err := s.engine.GetUserStats(c.Request.Context(), userID)
	if err != nil {
		s.log.Error("user stats request failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) Status(c *gin.Context) {
	status, err := s.engine.Status(c.Request.Context())
	if err != nil {
		s.log.Error("status request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load status"})
		return
	}

	c.JSON(http.StatusOK, status)
}

type trainRequest struct {
	Epochs    int  `json:"epochs"`
	HiddenDim int  `json:"hidden_dim"`
	Force     bool `json:"force"`
}

// Train enqueues a background training run and returns immediately; a
// run already in flight is joined, not duplicated.
func (s *Server) Train(c *gin.Context) {
	var req trainRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	s.engine.RequestTraining(engine.TrainOptions{
		Epochs:    req.Epochs,
		HiddenDim: req.HiddenDim,
		Force:     req.Force,
	})

	c.JSON(http.StatusAccepted, gin.H{"status": "training enqueued"})
}
