package cmd

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"prmerit/internal/bootstrap/logging"
	"prmerit/internal/domain/scoring"
	"prmerit/internal/errs"
	"prmerit/internal/ports"
	"prmerit/internal/usecase/pipeline"
	"prmerit/internal/usecase/rewards"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook receiver and admin API",
	RunE: withApp(func(cmd *cobra.Command, svcs services) error {
		ctx := cmd.Context()

		addr := strings.TrimSpace(svcs.App.Config.Server.Addr)
		if flagAddr, _ := cmd.Flags().GetString("addr"); strings.TrimSpace(flagAddr) != "" {
			addr = strings.TrimSpace(flagAddr)
		}
		if addr == "" {
			addr = ":8030"
		}

		server := &http.Server{
			Addr: addr,
			Handler: newServerHandler(
				svcs.Pipeline,
				svcs.Rewards,
				svcs.App.Config.GitHub.WebhookSecret,
			),
		}

		logging.Info(ctx, "server started", slog.String("addr", addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve http")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}

type serverHandler struct {
	pipeline      *pipeline.Service
	rewards       *rewards.Service
	webhookSecret string
}

func newServerHandler(pipelineSvc *pipeline.Service, rewardsSvc *rewards.Service, webhookSecret string) http.Handler {
	h := &serverHandler{
		pipeline:      pipelineSvc,
		rewards:       rewardsSvc,
		webhookSecret: webhookSecret,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/webhooks/github", h.handleGitHubWebhook)
	r.Route("/api", func(r chi.Router) {
		r.Post("/sync", h.handleSync)
		r.Post("/backfill", h.handleBackfill)
		r.Post("/programs/{programID}/compute", h.handleComputeProgram)
		r.Post("/programs/{programID}/commit", h.handleCommitProgram)
	})
	return r
}

type webhookAck struct {
	Status    string  `json:"status"`
	Reason    string  `json:"reason,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Component string  `json:"component,omitempty"`
}

func (h *serverHandler) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	if err := validateGitHubSignature(h.webhookSecret, r.Header.Get("X-Hub-Signature-256"), payload); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	if event := r.Header.Get("X-GitHub-Event"); event != "" && event != "pull_request" {
		writeJSON(w, http.StatusOK, webhookAck{Status: "ignored", Reason: "event is not pull_request"})
		return
	}

	result, err := h.pipeline.HandleWebhook(r.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrOrgNotFound), errors.Is(err, ports.ErrRepoNotTracked):
			writeError(w, http.StatusNotFound, err.Error())
		case isUnparseableVerdict(err):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if result.Ignored {
		writeJSON(w, http.StatusOK, webhookAck{Status: "ignored", Reason: result.Reason})
		return
	}
	writeJSON(w, http.StatusOK, webhookAck{
		Status:    "evaluated",
		Score:     result.Evaluation.FinalScore,
		Component: result.Evaluation.ComponentKey,
	})
}

func isUnparseableVerdict(err error) bool {
	var unparseable *scoring.UnparseableVerdictError
	return errors.As(err, &unparseable)
}

type runRequest struct {
	OrgID          uint64 `json:"org_id"`
	RepoID         uint64 `json:"repo_id"`
	LookbackMonths int    `json:"lookback_months,omitempty"`
}

func (h *serverHandler) handleSync(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrgID == 0 || req.RepoID == 0 {
		writeError(w, http.StatusBadRequest, "org_id and repo_id are required")
		return
	}

	result, err := h.pipeline.SyncRepo(r.Context(), req.OrgID, req.RepoID, req.LookbackMonths)
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *serverHandler) handleBackfill(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrgID == 0 {
		writeError(w, http.StatusBadRequest, "org_id is required")
		return
	}

	result, err := h.pipeline.Backfill(r.Context(), req.OrgID, req.RepoID)
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *serverHandler) handleComputeProgram(w http.ResponseWriter, r *http.Request) {
	programID, err := strconv.ParseUint(chi.URLParam(r, "programID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid program id")
		return
	}

	assignments, err := h.rewards.ComputeRewards(r.Context(), programID)
	if err != nil {
		if errors.Is(err, ports.ErrProgramNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (h *serverHandler) handleCommitProgram(w http.ResponseWriter, r *http.Request) {
	programID, err := strconv.ParseUint(chi.URLParam(r, "programID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid program id")
		return
	}

	committed, err := h.rewards.CommitRewards(r.Context(), programID)
	if err != nil {
		if errors.Is(err, ports.ErrProgramNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, committed)
}

func writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ports.ErrOrgNotFound),
		errors.Is(err, ports.ErrRepoNotTracked),
		errors.Is(err, ports.ErrRulesetNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ports.ErrNoActiveConnection):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func validateGitHubSignature(secret string, signatureHeader string, payload []byte) error {
	normalizedSecret := strings.TrimSpace(secret)
	if normalizedSecret == "" {
		return nil
	}

	signature := strings.TrimSpace(signatureHeader)
	if signature == "" {
		return errors.New("missing X-Hub-Signature-256")
	}

	const prefix = "sha256="
	if len(signature) <= len(prefix) || !strings.EqualFold(signature[:len(prefix)], prefix) {
		return errors.New("invalid X-Hub-Signature-256 format")
	}

	decoded, err := hex.DecodeString(strings.TrimSpace(signature[len(prefix):]))
	if err != nil {
		return errors.New("invalid X-Hub-Signature-256 digest")
	}

	mac := hmac.New(sha256.New, []byte(normalizedSecret))
	if _, err := mac.Write(payload); err != nil {
		return errs.Wrap(err, "compute github webhook signature")
	}

	if !hmac.Equal(decoded, mac.Sum(nil)) {
		return errors.New("invalid X-Hub-Signature-256")
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
