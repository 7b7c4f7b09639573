package mdcd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/strongdm/mdc/internal/autocomplete"
	"github.com/strongdm/mdc/internal/catalog"
	"github.com/strongdm/mdc/internal/document"
	"github.com/strongdm/mdc/internal/scan"
	"github.com/strongdm/mdc/internal/session"
	"github.com/strongdm/mdc/internal/telemetry/otel"
	websockethub "github.com/strongdm/mdc/internal/websocket"
)

const maxRequestBytes = 8 << 20

type eventSource interface {
	RecentEvents(limit int) []websockethub.LogEntry
}

// api serves document sync, completion, folding and catalog endpoints.
type api struct {
	session     *session.Session
	catalog     *catalog.Manager
	instruments *otel.Instruments
	events      eventSource
}

func newAPI(sess *session.Session, mgr *catalog.Manager, inst *otel.Instruments, events eventSource) *api {
	return &api{session: sess, catalog: mgr, instruments: inst, events: events}
}

func (a *api) register(mux *http.ServeMux) {
	mux.HandleFunc("/api/documents", a.handleDocuments)
	mux.HandleFunc("/api/complete", a.handleComplete)
	mux.HandleFunc("/api/fold", a.handleFold)
	mux.HandleFunc("/api/catalog", a.handleCatalog)
	mux.HandleFunc("/api/catalog/refresh", a.handleCatalogRefresh)
	mux.HandleFunc("/api/events", a.handleEvents)
}

type documentRequest struct {
	URI        string `json:"uri"`
	Text       string `json:"text"`
	LanguageID string `json:"languageId,omitempty"`
}

type completeRequest struct {
	URI        string  `json:"uri"`
	Text       *string `json:"text,omitempty"`
	LanguageID string  `json:"languageId,omitempty"`
	Line       int     `json:"line"`
	Character  int     `json:"character"`
	Trigger    string  `json:"trigger,omitempty"`
}

type foldRequest struct {
	URI        string  `json:"uri"`
	Text       *string `json:"text,omitempty"`
	LanguageID string  `json:"languageId,omitempty"`
}

type catalogResponse struct {
	Source     string         `json:"source,omitempty"`
	Components int            `json:"components"`
	Names      []string       `json:"names"`
	LoadedAt   string         `json:"loaded_at,omitempty"`
	TTLMinutes int            `json:"ttl_minutes"`
	Error      string         `json:"error,omitempty"`
	Index      map[string]int `json:"index"`
}

func (a *api) handleDocuments(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPost, http.MethodPut:
		var req documentRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.URI) == "" {
			writeError(w, http.StatusBadRequest, "uri required")
			return
		}
		tracked := a.session.Change(document.Text{ID: req.URI, Content: req.Text, LanguageID: req.LanguageID})
		writeJSON(w, http.StatusOK, map[string]any{"uri": req.URI, "tracked": tracked})
	case http.MethodDelete:
		uri := strings.TrimSpace(r.URL.Query().Get("uri"))
		if uri == "" {
			writeError(w, http.StatusBadRequest, "uri required")
			return
		}
		a.session.Close(uri)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"documents": a.session.Documents()})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *api) handleComplete(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req completeRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	items, err := complete(r.Context(), a.session, a.instruments, "http", req)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *api) handleFold(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req foldRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	ranges, err := fold(r.Context(), a.session, a.instruments, "http", req)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ranges": ranges})
}

func (a *api) handleCatalog(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, a.catalogStatus())
}

func (a *api) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := a.catalog.Get(r.Context(), true); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, catalog.ErrNoSource) {
			status = http.StatusConflict
		}
		resp := a.catalogStatus()
		resp.Error = err.Error()
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, a.catalogStatus())
}

func (a *api) handleEvents(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": a.events.RecentEvents(limit)})
}

func (a *api) catalogStatus() catalogResponse {
	cat := a.session.Index().Catalog()
	names := cat.Names()
	if names == nil {
		names = []string{}
	}
	resp := catalogResponse{
		Components: len(cat),
		Names:      names,
		TTLMinutes: int(a.catalog.TTL() / time.Minute),
		Index:      a.session.Index().Stats(),
	}
	if src := a.catalog.Source(); src != nil {
		resp.Source = src.String()
	}
	loadedAt, lastErr := a.catalog.Status()
	if !loadedAt.IsZero() {
		resp.LoadedAt = loadedAt.UTC().Format(time.RFC3339)
	}
	if lastErr != nil {
		resp.Error = lastErr.Error()
	}
	return resp
}

// complete syncs the document when text is supplied and runs a completion,
// recording the request on inst.
func complete(ctx context.Context, sess *session.Session, inst *otel.Instruments, transport string, req completeRequest) ([]autocomplete.Item, error) {
	h, _ := inst.Start(ctx, otel.RequestInfo{Operation: "complete", Transport: transport, Trigger: req.Trigger})
	if req.Text != nil {
		sess.Change(document.Text{ID: req.URI, Content: *req.Text, LanguageID: req.LanguageID})
	}
	items, err := sess.Complete(req.URI, autocomplete.Position{Line: req.Line, Character: req.Character}, autocomplete.Trigger(req.Trigger))
	if items == nil && err == nil {
		items = []autocomplete.Item{}
	}
	inst.Finish(h, len(items), err)
	return items, err
}

func fold(ctx context.Context, sess *session.Session, inst *otel.Instruments, transport string, req foldRequest) ([]scan.Range, error) {
	h, _ := inst.Start(ctx, otel.RequestInfo{Operation: "fold", Transport: transport})
	if req.Text != nil {
		sess.Change(document.Text{ID: req.URI, Content: *req.Text, LanguageID: req.LanguageID})
	}
	ranges, err := sess.Fold(req.URI)
	if ranges == nil && err == nil {
		ranges = []scan.Range{}
	}
	inst.Finish(h, len(ranges), err)
	return ranges, err
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrUnknownDocument) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
