package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/creatorrr/sonnun/pkg/crypto"
	"github.com/creatorrr/sonnun/pkg/envelope"
	"github.com/creatorrr/sonnun/pkg/manifest"
	"github.com/creatorrr/sonnun/pkg/provenance"
	"github.com/creatorrr/sonnun/pkg/store/ledger"
	"github.com/creatorrr/sonnun/pkg/verifier"
)

// Server wires the ledger, signer, and assistant proxy behind HTTP
// handlers. All collaborators are constructor-injected.
type Server struct {
	ledger       ledger.Ledger
	signer       *crypto.Signer
	excerptLimit int
	assistant    *AssistantProxy
	logger       *slog.Logger
}

// NewServer creates a Server. signer and assistant may be nil, disabling
// /v1/sign and /v1/assistant respectively.
func NewServer(led ledger.Ledger, signer *crypto.Signer, excerptLimit int, assistant *AssistantProxy, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if excerptLimit <= 0 {
		excerptLimit = manifest.DefaultExcerptLimit
	}
	return &Server{
		ledger:       led,
		signer:       signer,
		excerptLimit: excerptLimit,
		assistant:    assistant,
		logger:       logger,
	}
}

// Routes registers all handlers on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/manifest", s.handleManifest)
	mux.HandleFunc("/v1/sign", s.handleSign)
	mux.HandleFunc("/v1/verify", s.handleVerify)
	if s.assistant != nil {
		mux.HandleFunc("/v1/assistant", s.assistant.Handle)
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// eventRequest accepts plain text from the editor; the digest is computed
// here so raw text never reaches the ledger.
type eventRequest struct {
	Timestamp  string `json:"timestamp"`
	Kind       string `json:"event_type"`
	Text       string `json:"text"`
	Source     string `json:"source"`
	SpanLength int64  `json:"span_length"`
}

type eventResponse struct {
	ID            int64  `json:"id"`
	ContentDigest string `json:"text_hash"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.appendEvent(w, r)
	case http.MethodGet:
		s.listEvents(w, r)
	default:
		WriteMethodNotAllowed(w)
	}
}

func (s *Server) appendEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}

	kind, err := provenance.ParseKind(req.Kind)
	if err != nil {
		WriteUnprocessable(w, err.Error())
		return
	}

	event := provenance.Event{
		Timestamp:     req.Timestamp,
		Kind:          kind,
		ContentDigest: provenance.DigestText(req.Text),
		Source:        req.Source,
		SpanLength:    req.SpanLength,
	}
	if err := event.Validate(); err != nil {
		WriteUnprocessable(w, err.Error())
		return
	}

	id, err := s.ledger.Append(r.Context(), event)
	if err != nil {
		WriteInternal(w, err)
		return
	}

	s.logger.Info("event appended", "id", id, "kind", kind, "span_length", event.SpanLength)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(eventResponse{ID: id, ContentDigest: event.ContentDigest})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	var kind *provenance.Kind
	if v := r.URL.Query().Get("kind"); v != "" {
		k, err := provenance.ParseKind(v)
		if err != nil {
			WriteUnprocessable(w, err.Error())
			return
		}
		kind = &k
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := s.ledger.Query(r.Context(), kind, limit)
	if err != nil {
		WriteInternal(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}

	data, err := manifest.Build(r.Context(), s.ledger, s.excerptLimit)
	if err != nil {
		WriteInternal(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	if s.signer == nil {
		WriteError(w, http.StatusServiceUnavailable, "Signer Not Configured", "No signing key is loaded")
		return
	}

	data, err := manifest.Build(r.Context(), s.ledger, s.excerptLimit)
	if err != nil {
		WriteInternal(w, err)
		return
	}

	env, err := envelope.Seal(data, s.signer)
	if err != nil {
		WriteInternal(w, err)
		return
	}

	s.logger.Info("manifest sealed", "key_id", s.signer.KeyID, "total_characters", data.TotalCharacters)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(env)
}

type verifyRequest struct {
	Document    string `json:"document"`
	ExpectedKey string `json:"expected_key,omitempty"`
}

type verifyResponse struct {
	verifier.Result
	Error string `json:"error,omitempty"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Document == "" {
		WriteBadRequest(w, "document is required")
		return
	}

	result, err := verifier.VerifyDocument(req.Document, req.ExpectedKey)
	if err != nil {
		// Verification failures are results, not server errors. The
		// claimed manifest and key still come back for display.
		status := http.StatusUnprocessableEntity
		if errors.Is(err, verifier.ErrNotFound) {
			status = http.StatusNotFound
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(verifyResponse{Result: result, Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(verifyResponse{Result: result})
}
