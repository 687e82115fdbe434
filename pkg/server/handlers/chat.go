package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/voicecode-ai/mentor/pkg/core"
	"github.com/voicecode-ai/mentor/pkg/server/mentor"
	"github.com/voicecode-ai/mentor/pkg/server/metrics"
	"github.com/voicecode-ai/mentor/pkg/server/mw"
	"github.com/voicecode-ai/mentor/pkg/server/ratelimit"
	"github.com/voicecode-ai/mentor/pkg/server/session"
)

// MentorService is the slice of the Gemini service the chat handler needs.
type MentorService interface {
	GenerateReply(ctx context.Context, in mentor.PromptInput) (*mentor.Reply, error)
	Model() string
}

// ChatHandler serves POST /api/chat.
type ChatHandler struct {
	Store   session.Store
	Mentor  MentorService
	Limiter *ratelimit.Limiter
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type chatRequest struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	ProblemID string `json:"problem_id"`
	Language  string `json:"language"`
	HintLevel int    `json:"hint_level"`
}

type chatResponse struct {
	Response   string `json:"response"`
	TokensUsed int    `json:"tokens_used"`
	Model      string `json:"model"`
	SessionID  string `json:"session_id,omitempty"`
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Limiter != nil {
		d := h.Limiter.Allow(ratelimit.ClientIP(r), time.Now())
		if !d.Allowed {
			h.count("rate_limited")
			mw.WriteError(w, http.StatusTooManyRequests,
				core.NewRateLimitError("Too many requests. Please wait before asking again.", d.RetryAfter))
			return
		}
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.count("invalid")
		mw.WriteErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.count("invalid")
		mw.WriteError(w, http.StatusBadRequest,
			core.NewInvalidRequestErrorWithParam("message is required", "message"))
		return
	}

	in := mentor.PromptInput{
		Message:   req.Message,
		Code:      req.Code,
		ProblemID: req.ProblemID,
		Language:  req.Language,
		HintLevel: req.HintLevel,
	}

	// Fill gaps from the synced session so voice and editor context carry
	// over into text chat.
	sessionID := strings.TrimSpace(r.Header.Get(headerSessionID))
	if sessionID != "" {
		sess, err := h.Store.Get(r.Context(), sessionID)
		switch {
		case errors.Is(err, session.ErrNotFound):
			sessionID = ""
		case err != nil:
			h.Logger.Warn("session lookup failed, continuing without context", "error", err)
		default:
			if in.Code == "" {
				in.Code = sess.Code
			}
			if in.ProblemID == "" {
				in.ProblemID = sess.ProblemID
			}
			if in.Language == "" {
				in.Language = sess.Language
			}
			if in.HintLevel == 0 {
				in.HintLevel = sess.HintLevel
			}
			in.History = sess.ConversationSummary(summaryTurns, summaryMaxChars)
		}
	}

	if h.Mentor == nil {
		h.count("error")
		mw.WriteError(w, http.StatusServiceUnavailable,
			core.NewUnavailableError("AI service is not configured"))
		return
	}

	reply, err := h.Mentor.GenerateReply(r.Context(), in)
	if err != nil {
		h.count("error")
		var apiErr *core.Error
		if errors.As(err, &apiErr) {
			status := http.StatusInternalServerError
			if apiErr.Type == core.ErrUnavailable {
				status = http.StatusServiceUnavailable
			}
			mw.WriteError(w, status, apiErr)
			return
		}
		h.Logger.Error("mentor reply failed", "error", err)
		mw.WriteError(w, http.StatusInternalServerError, core.NewAIServiceError("gemini", err))
		return
	}

	if mentor.LooksLikeFullSolution(reply.Response) {
		h.Logger.Warn("mentor reply looks like a full solution", "session_id", sessionID)
	}

	// Record the exchange so follow-up questions see it.
	if sessionID != "" {
		if _, err := h.Store.AddMessage(r.Context(), sessionID, "user", req.Message); err != nil {
			h.Logger.Warn("failed to record user message", "error", err)
		}
		if _, err := h.Store.AddMessage(r.Context(), sessionID, "assistant", reply.Response); err != nil {
			h.Logger.Warn("failed to record assistant message", "error", err)
		}
	}

	h.count("ok")
	mw.WriteJSON(w, http.StatusOK, chatResponse{
		Response:   reply.Response,
		TokensUsed: reply.TokensUsed,
		Model:      reply.Model,
		SessionID:  sessionID,
	})
}

func (h *ChatHandler) count(outcome string) {
	if h.Metrics != nil {
		h.Metrics.ChatRequests.WithLabelValues(outcome).Inc()
	}
}
