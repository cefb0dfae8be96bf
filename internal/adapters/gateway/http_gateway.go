package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/mikey/llm-email-classifier/internal/core"
	"go.uber.org/zap"
)

// ServiceVersion is reported in every classification response
const ServiceVersion = "1.0.0"

// HTTPGateway exposes the classification workflow over HTTP. It owns input
// validation and the overall per-request deadline; the engine assumes
// validated input.
type HTTPGateway struct {
	service        *core.ClassificationService
	logger         *zap.Logger
	listenAddr     string
	requestTimeout time.Duration
	server         *http.Server
}

// NewHTTPGateway creates a new HTTP gateway
func NewHTTPGateway(
	service *core.ClassificationService,
	logger *zap.Logger,
	listenAddr string,
	requestTimeout time.Duration,
) *HTTPGateway {
	return &HTTPGateway{
		service:        service,
		logger:         logger,
		listenAddr:     listenAddr,
		requestTimeout: requestTimeout,
	}
}

// emailInput is the inbound request payload
type emailInput struct {
	EmailID string `json:"email_id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Sender  string `json:"sender"`
}

// classificationBody is the nested classification block of a response
type classificationBody struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Keywords   []string `json:"keywords"`
}

// processingResponse is the complete response envelope
type processingResponse struct {
	EmailID          string             `json:"email_id"`
	Classification   classificationBody `json:"classification"`
	Decision         core.Decision      `json:"decision"`
	PathTaken        []core.AttemptKind `json:"path_taken"`
	Anomalous        bool               `json:"anomalous,omitempty"`
	ProcessingTimeMs float64            `json:"processing_time_ms"`
	Timestamp        time.Time          `json:"timestamp"`
	ServiceVersion   string             `json:"service_version"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns the gateway's HTTP handler
func (g *HTTPGateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/classify", g.handleClassify)
	mux.HandleFunc("/health", g.handleHealth)
	return mux
}

// Start starts the HTTP server
func (g *HTTPGateway) Start() error {
	g.server = &http.Server{
		Addr:         g.listenAddr,
		Handler:      g.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: g.requestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g.logger.Info("HTTP gateway starting", zap.String("address", g.listenAddr))

	go func() {
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			g.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (g *HTTPGateway) Stop() error {
	if g.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return g.server.Shutdown(ctx)
}

func (g *HTTPGateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "healthy",
		"service_version": ServiceVersion,
	})
}

func (g *HTTPGateway) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var in emailInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	if msg := validateInput(&in); msg != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
		return
	}

	input := &core.ClassificationInput{
		EmailID: in.EmailID,
		Subject: in.Subject,
		Body:    in.Body,
		Sender:  in.Sender,
	}

	// The overall deadline bounds the whole run; cancellation stops the
	// engine from scheduling further provider calls.
	ctx, cancel := context.WithTimeout(r.Context(), g.requestTimeout)
	defer cancel()

	g.logger.Info("Received classification request", zap.String("email_id", in.EmailID))

	result, err := g.service.Classify(ctx, input)
	if err != nil {
		g.writeClassifyError(w, in.EmailID, err)
		return
	}

	writeJSON(w, http.StatusOK, processingResponse{
		EmailID: result.EmailID,
		Classification: classificationBody{
			Category:   result.Category,
			Confidence: result.Confidence,
			Reasoning:  result.Reasoning,
			Keywords:   result.Keywords,
		},
		Decision:         result.Decision,
		PathTaken:        result.PathTaken,
		Anomalous:        result.Anomalous,
		ProcessingTimeMs: result.ProcessingTimeMs,
		Timestamp:        time.Now().UTC(),
		ServiceVersion:   ServiceVersion,
	})
}

// writeClassifyError distinguishes deadline overruns from upstream model
// failures; a best-effort guess is never returned as a confident result.
func (g *HTTPGateway) writeClassifyError(w http.ResponseWriter, emailID string, err error) {
	var wfErr *core.WorkflowError
	switch {
	case errors.Is(err, core.ErrRequestTimedOut):
		g.logger.Warn("Classification deadline exceeded", zap.String("email_id", emailID))
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "classification deadline exceeded"})
	case errors.As(err, &wfErr):
		g.logger.Error("Classification workflow failed", zap.String("email_id", emailID), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream model unavailable"})
	default:
		g.logger.Error("Classification failed", zap.String("email_id", emailID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// validateInput returns a reason string when the payload is unusable
func validateInput(in *emailInput) string {
	if in.EmailID == "" {
		return "email_id is required"
	}
	if in.Subject == "" {
		return "subject is required"
	}
	if in.Body == "" {
		return "body is required"
	}
	if _, err := mail.ParseAddress(in.Sender); err != nil {
		return "sender must be a well-formed email address"
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
