package server

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jnieblas/openai-response-api-demo/internal/logger"
	"github.com/jnieblas/openai-response-api-demo/internal/models"
	"github.com/jnieblas/openai-response-api-demo/internal/responses"
	"go.uber.org/zap"
)

// ==================== Generation ====================

// generate handles the generate endpoints. kind forces the format type and
// selects the matching client wrapper; "" uses the request's format as is.
func (s *Server) generate(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, err)
			return
		}

		genReq, err := s.buildRequest(kind, &req)
		if err != nil {
			s.writeError(c, err)
			return
		}

		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}
		if req.Continue && genReq.PreviousResponseID == "" {
			last, err := s.history.LastResponseID(req.SessionID)
			if err != nil {
				s.writeError(c, err)
				return
			}
			genReq.PreviousResponseID = last
		}

		apiKey := req.APIKey
		if apiKey == "" {
			apiKey = s.cfg.OpenAI.APIKey
		}
		client, err := responses.New(s.clientOptions(apiKey)...)
		if err != nil {
			s.writeError(c, err)
			return
		}
		defer client.Close()

		ctx, cancel := s.generationContext(c)
		defer cancel()

		res, err := s.dispatch(ctx, client, kind, genReq)
		if err != nil {
			s.logger.Warn("Generation failed",
				zap.String("session_id", req.SessionID),
				zap.String("model", genReq.Model),
				zap.Error(err))
			if uerr := s.usageStore.RecordError(genReq.Model); uerr != nil {
				s.logger.Error("Failed to record usage", zap.Error(uerr))
			}
			s.writeError(c, err)
			return
		}

		s.record(req.SessionID, genReq, res)
		c.JSON(200, models.NewGenerateResponse(req.SessionID, res, s.cfg.OpenAI.IncludeRaw))
	}
}

// generationContext bounds a generation so its reply, error or not, is
// written before the server's write deadline.
func (s *Server) generationContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if budget := generationBudget(s.cfg.Server.WriteTimeout); budget > 0 {
		return context.WithTimeout(c.Request.Context(), budget)
	}
	return context.WithCancel(c.Request.Context())
}

// generationBudget leaves a tenth of the write timeout, at most 5s, for
// writing the reply. Zero means no write timeout.
func generationBudget(writeTimeout time.Duration) time.Duration {
	if writeTimeout <= 0 {
		return 0
	}
	margin := writeTimeout / 10
	if margin > 5*time.Second {
		margin = 5 * time.Second
	}
	return writeTimeout - margin
}

func (s *Server) dispatch(ctx context.Context, client *responses.Client, kind string, req responses.GenerateRequest) (*responses.Result, error) {
	switch kind {
	case "email":
		return client.Email(ctx, req)
	case "letter":
		return client.Letter(ctx, req)
	case "message":
		return client.Message(ctx, req)
	default:
		return client.Generate(ctx, req)
	}
}

// buildRequest converts the web body into a client request
func (s *Server) buildRequest(kind string, req *models.GenerateRequest) (responses.GenerateRequest, error) {
	out := responses.GenerateRequest{
		Prompt:             req.Prompt,
		Model:              strings.TrimSpace(req.Model),
		PreviousResponseID: req.PreviousResponseID,
		MaxOutputTokens:    req.MaxOutputTokens,
	}
	if out.Model == "" {
		out.Model = s.cfg.Defaults.Model
	}
	if out.MaxOutputTokens == 0 {
		out.MaxOutputTokens = s.cfg.Defaults.MaxOutputTokens
	}

	format, err := parseFormat(kind, req.Format)
	if err != nil {
		return out, err
	}
	out.Format = format

	out.Parameters = s.parameters(out.Model, req)

	if len(req.Tools) > 0 {
		items := make([]any, len(req.Tools))
		for i, t := range req.Tools {
			// hosted tools may be given by name only
			if name, ok := t.(string); ok {
				items[i] = responses.HostedTool(name)
				continue
			}
			items[i] = t
		}
		tools, err := responses.NormalizeTools(items)
		if err != nil {
			return out, err
		}
		out.Tools = tools
	}

	choice, err := responses.ParseToolChoice(req.ToolChoice)
	if err != nil {
		return out, err
	}
	out.ToolChoice = choice
	return out, nil
}

// parseFormat reads the loose format object. A fixed kind overrides the
// type; style and tone left empty get the wrapper defaults.
func parseFormat(kind string, raw map[string]any) (responses.ResponseFormat, error) {
	if kind == "" {
		return responses.ParseFormat(raw)
	}
	m := make(map[string]any, len(raw)+1)
	for k, v := range raw {
		m[k] = v
	}
	m["type"] = kind
	return responses.ParseFormat(m)
}

// parameters picks the parameter block. Explicit sampling fields win, then
// explicit reasoning fields, then the configured defaults for the model family.
func (s *Server) parameters(model string, req *models.GenerateRequest) responses.Parameters {
	d := s.cfg.Defaults
	switch {
	case req.Temperature != nil || req.TopP != nil:
		p := responses.SamplingParams{Temperature: d.Temperature, TopP: d.TopP}
		if req.Temperature != nil {
			p.Temperature = *req.Temperature
		}
		if req.TopP != nil {
			p.TopP = *req.TopP
		}
		return p
	case req.Effort != "" || req.Verbosity != "":
		p := responses.ReasoningParams{Effort: d.Effort, Verbosity: d.Verbosity}
		if req.Effort != "" {
			p.Effort = req.Effort
		}
		if req.Verbosity != "" {
			p.Verbosity = req.Verbosity
		}
		return p
	case responses.FamilyOf(model) == responses.FamilyReasoning:
		return responses.ReasoningParams{Effort: d.Effort, Verbosity: d.Verbosity}
	default:
		return responses.SamplingParams{Temperature: d.Temperature, TopP: d.TopP}
	}
}

// record stores history and usage of a completed exchange
func (s *Server) record(sessionID string, req responses.GenerateRequest, res *responses.Result) {
	usage := res.Usage()
	model := res.Model()
	if model == "" {
		model = req.Model
	}

	if _, err := s.history.Append(models.HistoryEntry{
		SessionID:  sessionID,
		ResponseID: res.ID(),
		Prompt:     req.Prompt,
		Format:     req.Format.Type,
		Model:      model,
		Content:    res.Content(),
		Usage:      usage,
		ToolCalls:  len(res.ToolCalls()),
	}); err != nil {
		s.logger.Error("Failed to record history", zap.String("session_id", sessionID), zap.Error(err))
	}

	if err := s.usageStore.RecordUsage(model, int64(usage.PromptTokens), int64(usage.CompletionTokens)); err != nil {
		s.logger.Error("Failed to record usage", zap.Error(err))
	}

	s.logger.Info("Response generated",
		zap.String("session_id", sessionID),
		zap.String("response_id", res.ID()),
		zap.String("model", model),
		zap.Int("total_tokens", usage.TotalTokens))
}

// ==================== Options ====================

func (s *Server) getOptions(c *gin.Context) {
	c.JSON(200, models.DefaultOptions(s.cfg.Defaults.Model))
}

func (s *Server) getTemplates(c *gin.Context) {
	c.JSON(200, gin.H{"templates": models.Templates})
}

func (s *Server) estimateTokens(c *gin.Context) {
	var req models.TokenEstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	n, encoding, err := countTokens(req.Text)
	if err != nil {
		s.logger.Error("Token estimate failed", zap.Error(err))
		s.writeError(c, fmt.Errorf("token estimate: %w", err))
		return
	}
	c.JSON(200, models.TokenEstimateResponse{Encoding: encoding, Tokens: n})
}

// ==================== Sessions ====================

func (s *Server) listSessions(c *gin.Context) {
	sessions, err := s.history.List()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"sessions": sessions})
}

func (s *Server) getHistory(c *gin.Context) {
	history, err := s.history.Load(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(200, history)
}

func (s *Server) clearHistory(c *gin.Context) {
	if err := s.history.Clear(c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"success": true})
}

// ==================== Usage, logs and status ====================

func (s *Server) getUsageHistory(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 || days > 365 {
		c.JSON(400, models.ErrorResponse{Error: models.ErrorDetail{
			Message: "days must be an integer between 1 and 365",
			Type:    "invalid_request_error",
			Param:   "days",
		}})
		return
	}

	records, err := s.usageStore.GetUsageHistory(days)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var total struct {
		Requests     int64 `json:"requests"`
		Errors       int64 `json:"errors"`
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
		TotalTokens  int64 `json:"total_tokens"`
	}
	for _, r := range records {
		total.Requests += r.RequestCount
		total.Errors += r.ErrorCount
		total.InputTokens += r.InputTokens
		total.OutputTokens += r.OutputTokens
		total.TotalTokens += r.TotalTokens
	}

	c.JSON(200, gin.H{"days": days, "data": records, "summary": total})
}

func (s *Server) getLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	c.JSON(200, gin.H{"logs": logger.GlobalBuffer.GetRecent(limit)})
}

func (s *Server) clearLogs(c *gin.Context) {
	logger.GlobalBuffer.Clear()
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) getStatus(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(200, gin.H{
		"version":            s.version,
		"uptime":             time.Since(s.startTime).Round(time.Second).String(),
		"credential_set":     responses.ResolveAPIKey(s.cfg.OpenAI.APIKey) != "",
		"default_model":      s.cfg.Defaults.Model,
		"base_url":           s.cfg.OpenAI.BaseURL,
		"max_retries":        s.cfg.OpenAI.MaxRetries,
		"rate_limit_enabled": s.limiter != nil,
		"memory_alloc":       fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
		"goroutines":         runtime.NumGoroutine(),
	})
}
