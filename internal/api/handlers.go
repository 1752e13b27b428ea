package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/regdata/docbridge/internal/ingest"
)

// runIngest executes one synchronous ingestion cycle and returns its stats.
// only_active defaults to true; pass only_active=false to include disabled
// sources.
func (s *Server) runIngest(w http.ResponseWriter, r *http.Request) {
	onlyActive, err := boolQuery(r, "only_active", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "only_active must be a boolean")
		return
	}

	stats, err := s.runner.RunOnce(r.Context(), onlyActive)
	if err != nil {
		s.logger.Error("ingest run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "ingest run failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.ListSources(r.Context())
	if err != nil {
		s.logger.Error("list sources failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list sources")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

type sourceRequest struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	Type         string `json:"type"`
	Jurisdiction string `json:"jurisdiction"`
	Active       *bool  `json:"active"`
}

func (s *Server) upsertSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, "name and url are required")
		return
	}
	typ := ingest.SourceType(req.Type)
	if err := s.dispatcher.ValidateSourceType(typ); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	src := ingest.Source{
		Name:         req.Name,
		URL:          req.URL,
		Type:         typ,
		Jurisdiction: req.Jurisdiction,
		Active:       req.Active == nil || *req.Active,
	}
	stored, err := s.store.UpsertSource(r.Context(), src)
	if err != nil {
		s.logger.Error("upsert source failed", zap.String("source", req.Name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store source")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": stored})
}

func (s *Server) listVersions(w http.ResponseWriter, r *http.Request) {
	docID, err := strconv.ParseInt(chi.URLParam(r, "doc_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "doc_id must be an integer")
		return
	}

	versions, err := s.store.ListVersions(r.Context(), docID)
	if err != nil {
		if errors.Is(err, ingest.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("list versions failed", zap.Int64("doc_id", docID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list versions")
		return
	}
	// A document with no history has never been ingested.
	if len(versions) == 0 {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "versions": versions})
}

type scraperInfo struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (s *Server) listScrapers(w http.ResponseWriter, _ *http.Request) {
	scrapers := s.registry.List()
	infos := make([]scraperInfo, 0, len(scrapers))
	for _, sc := range scrapers {
		infos = append(infos, scraperInfo{ID: sc.ID(), URL: sc.URL()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"scrapers": infos})
}

func (s *Server) runAllScrapers(w http.ResponseWriter, r *http.Request) {
	force, err := boolQuery(r, "force", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "force must be a boolean")
		return
	}
	results := s.scrapers.CheckAll(r.Context(), force, nil)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) runScraper(w http.ResponseWriter, r *http.Request) {
	force, err := boolQuery(r, "force", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "force must be a boolean")
		return
	}
	id := chi.URLParam(r, "scraper_id")

	res, err := s.scrapers.Check(r.Context(), id, force)
	if err != nil {
		if errors.Is(err, ingest.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scraper not found")
			return
		}
		// Failed checks still carry the scraper's own error text in the
		// result; surface it rather than a bare 500.
		s.logger.Warn("scraper check failed", zap.String("scraper", id), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, res)
}

func boolQuery(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseBool(raw)
}
