package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"call-insights-go/internal/ledger"
	"call-insights-go/internal/types"
)

type Handler struct {
	Store  *Store
	Ledger *ledger.Ledger
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// callListItem is the list-view projection: metadata and analysis only,
// never transcripts. Downstream consumers that need transcripts must ask
// for the detail view explicitly.
type callListItem struct {
	File     string             `json:"file"`
	Metadata types.CallMetadata `json:"metadata"`
	Analysis types.CallAnalysis `json:"analysis"`
}

func (h *Handler) CallsList(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	skip := intQuery(c, "skip", 0)
	if skip < 0 {
		skip = 0
	}

	artifacts, err := h.Store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot read artifacts"})
		return
	}

	items := []callListItem{}
	for i := skip; i < len(artifacts) && len(items) < limit; i++ {
		a := artifacts[i]
		items = append(items, callListItem{File: a.File, Metadata: a.Data.Metadata, Analysis: a.Data.Analysis})
	}
	c.JSON(http.StatusOK, gin.H{"calls": items, "total": len(artifacts)})
}

func (h *Handler) CallDetail(c *gin.Context) {
	name := c.Param("file")
	artifact, err := h.Store.Get(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	c.JSON(http.StatusOK, artifact.Data)
}

func (h *Handler) AnalyticsSummary(c *gin.Context) {
	artifacts, err := h.Store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot read artifacts"})
		return
	}

	var scoreSum, durationSum float64
	sentiments := map[string]int{}
	for _, a := range artifacts {
		scoreSum += float64(a.Data.Analysis.PartnerSatisfactionScore.Score)
		durationSum += float64(a.Data.Metadata.CallDuration)
		if s := a.Data.Analysis.PartnerSentiment.Overall; s != "" {
			sentiments[s]++
		}
	}

	out := gin.H{
		"totalCalls":            len(artifacts),
		"avgSatisfactionScore":  0.0,
		"avgDurationSeconds":    0.0,
		"sentimentDistribution": sentiments,
	}
	if n := len(artifacts); n > 0 {
		out["avgSatisfactionScore"] = round2(scoreSum / float64(n))
		out["avgDurationSeconds"] = round2(durationSum / float64(n))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) RunsList(c *gin.Context) {
	limit := intQuery(c, "limit", 20)
	runs, err := h.Ledger.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot read ledger"})
		return
	}
	if runs == nil {
		runs = []ledger.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func intQuery(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
