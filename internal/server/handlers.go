package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/foodscope/foodscope/pkg/barcode"
	"github.com/foodscope/foodscope/pkg/fetcherr"
	"github.com/foodscope/foodscope/pkg/product"
)

// writeError translates the shared error taxonomy into HTTP responses. The
// mapping is by code, never by message text; upstream statuses are not
// forwarded verbatim because a provider's 401 is not the caller's 401.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	if apiErr, ok := fetcherr.AsAPIError(err); ok {
		code = apiErr.Code
		switch apiErr.Code {
		case fetcherr.CodeInvalidInput:
			status = http.StatusBadRequest
		case fetcherr.CodeRateLimited, fetcherr.CodeRateLimitedLocal:
			status = http.StatusTooManyRequests
		case fetcherr.CodeFeatureUnavailable:
			status = http.StatusNotImplemented
		case fetcherr.CodeAuthFailed, fetcherr.CodeUpstream:
			status = http.StatusBadGateway
		}
	} else if fetcherr.IsNetwork(err) {
		status = http.StatusBadGateway
		code = fetcherr.CodeUpstream
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": err.Error()},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("barcode")
	p, err := s.Resolver.ResolveByBarcode(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	if p == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]string{"code": "not_found", "message": "no product matches this barcode"},
		})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	results, err := s.Resolver.ResolveByName(r.Context(), q.Get("q"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []product.Data{}
	}
	writeJSON(w, http.StatusOK, results)
}

type AddProductRequest struct {
	product.NutritionalInfo

	Barcode     string          `json:"barcode"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Serving     product.Serving `json:"serving"`
	Ingredients string          `json:"ingredients"`
}

// handleAddProduct stores a user-submitted product. Manual entries get an
// internal UUID and are never marked verified.
func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var req AddProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fetcherr.NewAPIError(http.StatusBadRequest, fetcherr.CodeInvalidInput, err.Error()))
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, fetcherr.NewAPIError(http.StatusBadRequest, fetcherr.CodeInvalidInput,
			"product name is required"))
		return
	}
	code := strings.TrimSpace(req.Barcode)
	if code != "" {
		if !barcode.IsValid(code) {
			writeError(w, fetcherr.NewAPIError(http.StatusBadRequest, fetcherr.CodeInvalidInput,
				"barcode must be 8 to 14 digits"))
			return
		}
		code = barcode.Normalize(code)
	}

	p := product.Data{
		NutritionalInfo: req.NutritionalInfo,
		ID:              uuid.NewString(),
		Barcode:         code,
		Name:            req.Name,
		Brand:           strings.TrimSpace(req.Brand),
		Serving:         req.Serving,
		Ingredients:     req.Ingredients,
		Verified:        false,
	}
	p.NutriGrade = product.CalculateNutriGrade(p.NutritionalInfo)
	p.MissingCritical = p.NutritionalInfo.MissingCritical()

	if err := s.DB.UpsertProduct(r.Context(), &p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recent, err := s.DB.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if recent == nil {
		recent = []product.Data{}
	}
	writeJSON(w, http.StatusOK, recent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.DB.GetStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
