package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/services"
	"github.com/gin-gonic/gin"
	ozzo "github.com/go-ozzo/ozzo-validation"
)

const (
	defaultEntryLimit = 100
	maxEntryLimit     = 1000
)

type AnalysisController struct {
	analyzer *services.LogAnalyzer
}

func NewAnalysisController(analyzer *services.LogAnalyzer) *AnalysisController {
	return &AnalysisController{analyzer: analyzer}
}

// AnalyzeLogFile forces a fresh analysis
func (ac *AnalysisController) AnalyzeLogFile(c *gin.Context) {
	analysis, err := ac.analyzer.Analyze(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "analysis_controller")
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (ac *AnalysisController) GetAnalysis(c *gin.Context) {
	analysis, err := ac.analyzer.Analysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "analysis_controller")
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (ac *AnalysisController) GetPatterns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	analysis, err := ac.analyzer.Analysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "analysis_controller")
		return
	}
	patterns := analysis.ErrorPatterns
	if limit > 0 && len(patterns) > limit {
		patterns = patterns[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"patterns": patterns, "total": len(analysis.ErrorPatterns)})
}

func (ac *AnalysisController) GetStats(c *gin.Context) {
	analysis, err := ac.analyzer.Analysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "analysis_controller")
		return
	}
	c.JSON(http.StatusOK, services.StatsOf(analysis))
}

type entriesRequest struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

func (r entriesRequest) Validate() error {
	return ozzo.ValidateStruct(&r,
		ozzo.Field(&r.Offset, ozzo.Min(0)),
		ozzo.Field(&r.Limit, ozzo.Required, ozzo.Min(1), ozzo.Max(maxEntryLimit)),
	)
}

func (ac *AnalysisController) GetEntries(c *gin.Context) {
	req := entriesRequest{Limit: defaultEntryLimit}
	var err error
	if raw := c.Query("offset"); raw != "" {
		if req.Offset, err = strconv.Atoi(raw); err != nil {
			badRequest(c, "offset must be an integer")
			return
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if req.Limit, err = strconv.Atoi(raw); err != nil {
			badRequest(c, "limit must be an integer")
			return
		}
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}

	page, err := ac.analyzer.Entries(c.Request.Context(), c.Param("id"), services.EntryQuery{
		Offset:  req.Offset,
		Limit:   req.Limit,
		Level:   c.Query("level"),
		Service: c.Query("service"),
		Search:  c.Query("search"),
	})
	if err != nil {
		respondError(c, err, "analysis_controller")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (ac *AnalysisController) GetTimeline(c *gin.Context) {
	var interval time.Duration
	if raw := c.Query("interval"); raw != "" {
		d, err := services.ParseInterval(raw)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		interval = d
	}

	series, used, err := ac.analyzer.Timeline(c.Request.Context(), c.Param("id"), interval)
	if err != nil {
		respondError(c, err, "analysis_controller")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"interval":    services.FormatInterval(used),
		"time_series": series,
	})
}

// GetChatContext returns the condensed view used to prompt a chat model
func (ac *AnalysisController) GetChatContext(c *gin.Context) {
	cc, err := ac.analyzer.ChatContext(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "analysis_controller")
		return
	}
	c.JSON(http.StatusOK, gin.H{"context": cc, "summary": cc.Summary()})
}
