package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/f9-o/beamfleet/api/v1"
)

// badRequest renders a plain {err: Reason} without going through
// statusForResult — used for request-decoding failures the Core layer
// never sees.
func badRequest(c *gin.Context, reason string) {
	c.JSON(http.StatusBadRequest, v1.ErrResult(reason))
}

type startNodeRequest struct {
	Name   string      `json:"name" binding:"required"`
	Type   v1.NodeType `json:"type" binding:"required"`
	Cookie string      `json:"cookie"`
	Host   string      `json:"host"`
}

func (s *Server) startNode(c *gin.Context) {
	var req startNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	respondResult(c, s.core.StartNode(c.Request.Context(), req.Name, req.Type, req.Cookie, req.Host))
}

type nodeNameRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) stopNode(c *gin.Context) {
	var req nodeNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	respondResult(c, s.core.StopNode(req.Name))
}

func (s *Server) restartNode(c *gin.Context) {
	var req nodeNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	respondResult(c, s.core.RestartNode(c.Request.Context(), req.Name))
}

// listNodes takes no input but is still POST-routed, matching every
// other entry on the operation surface (spec §6) for a uniform
// tool-dispatch shape.
func (s *Server) listNodes(c *gin.Context) {
	c.JSON(http.StatusOK, s.core.ListNodes(c.Request.Context()))
}

func (s *Server) inspectNode(c *gin.Context) {
	var req nodeNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	view, result := s.core.InspectNode(c.Request.Context(), req.Name)
	if result.IsErr() {
		respondResult(c, result)
		return
	}
	c.JSON(http.StatusOK, view)
}

type deployModuleRequest struct {
	Name     string `json:"name" binding:"required"`
	Code     string `json:"code" binding:"required"`
	Language string `json:"language" binding:"required"`
}

func (s *Server) deployModule(c *gin.Context) {
	var req deployModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	respondResult(c, s.core.DeployModule(c.Request.Context(), req.Name, req.Code, req.Language))
}

type startGenserverRequest struct {
	Name       string `json:"name" binding:"required"`
	Module     string `json:"module" binding:"required"`
	Args       string `json:"args"`
	RegisterAs string `json:"registerAs"`
}

func (s *Server) startGenserver(c *gin.Context) {
	var req startGenserverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	respondResult(c, s.core.StartGenserver(c.Request.Context(), req.Name, req.Module, req.Args, req.RegisterAs))
}

type callGenserverRequest struct {
	Name      string `json:"name" binding:"required"`
	Server    string `json:"server" binding:"required"`
	Message   string `json:"message" binding:"required"`
	TimeoutMS int    `json:"timeoutMs"`
}

func (s *Server) callGenserver(c *gin.Context) {
	var req callGenserverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.TimeoutMS < 0 || req.TimeoutMS > 60000 {
		badRequest(c, "timeout must be within [1, 60000] ms")
		return
	}
	respondResult(c, s.core.CallGenserver(c.Request.Context(), req.Name, req.Server, req.Message, req.TimeoutMS))
}

type stopGenserverRequest struct {
	Name   string `json:"name" binding:"required"`
	Server string `json:"server" binding:"required"`
}

func (s *Server) stopGenserver(c *gin.Context) {
	var req stopGenserverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	respondResult(c, s.core.StopGenserver(c.Request.Context(), req.Name, req.Server))
}

func (s *Server) startTrace(c *gin.Context) {
	var req nodeNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	respondResult(c, s.core.StartTrace(c.Request.Context(), req.Name))
}

func (s *Server) stopTrace(c *gin.Context) {
	var req nodeNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	respondResult(c, s.core.StopTrace(c.Request.Context(), req.Name))
}

func (s *Server) pollTrace(c *gin.Context) {
	var req nodeNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	view, result := s.core.PollTrace(req.Name)
	if result.IsErr() {
		respondResult(c, result)
		return
	}
	c.JSON(http.StatusOK, view)
}
