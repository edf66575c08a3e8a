package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/forecast"
	"github.com/go-playground/validator/v10"
)

// coordinateRequest is the body of POST /api/predict and the parsed query of
// GET /api/v1/forecast.
type coordinateRequest struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lon *float64 `json:"lon" validate:"required,longitude"`
}

type predictResponse struct {
	Status string                   `json:"status"`
	Data   *domain.ForecastResponse `json:"data,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

type statusResponse struct {
	Imagery   imageryStatus `json:"imagery"`
	Generator string        `json:"generator"`
	Geocoder  bool          `json:"geocoder"`
}

type imageryStatus struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req coordinateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object with lat and lon")
		return
	}

	resp, status, err := s.produce(r, req)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, predictResponse{Status: "success", Data: &resp})
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	var req coordinateRequest
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  **float64
	}{{"lat", &req.Lat}, {"lon", &req.Lon}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a number", p.name))
			return
		}
		*p.dst = &v
	}

	resp, status, err := s.produce(r, req)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) produce(r *http.Request, req coordinateRequest) (domain.ForecastResponse, int, error) {
	if err := s.validate.Struct(req); err != nil {
		return domain.ForecastResponse{}, http.StatusBadRequest, validationError(err)
	}

	result, err := s.forecaster.Produce(r.Context(), *req.Lat, *req.Lon)
	if errors.Is(err, forecast.ErrInvalidCoordinate) {
		return domain.ForecastResponse{}, http.StatusBadRequest, err
	}
	if err != nil {
		s.logger.Error("forecast failed", "request_id", requestIDFrom(r.Context()), "error", err)
		return domain.ForecastResponse{}, http.StatusInternalServerError, errors.New("forecast unavailable")
	}

	s.logger.Debug("forecast issued",
		"request_id", requestIDFrom(r.Context()),
		"lat", *req.Lat,
		"lon", *req.Lon,
		"global_status", result.OverallStatus.Label(),
		"source", result.Metadata.DataSource,
	)
	return domain.NewForecastResponse(result), http.StatusOK, nil
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		writeError(w, http.StatusServiceUnavailable, "geocoding is disabled")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	places, err := s.geocoder.Search(r.Context(), query)
	if err != nil {
		s.logger.Warn("place search failed", "request_id", requestIDFrom(r.Context()), "query", query, "error", err)
		writeError(w, http.StatusBadGateway, "geocoding provider unavailable")
		return
	}
	if places == nil {
		places = []domain.Place{}
	}
	writeJSON(w, http.StatusOK, places)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.forecaster.Status()
	writeJSON(w, http.StatusOK, statusResponse{
		Imagery:   imageryStatus{Available: st.Available, Reason: st.Reason},
		Generator: s.forecaster.Digest().Version(),
		Geocoder:  s.geocoder != nil,
	})
}

// validationError names the offending fields without exposing validator internals.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "latitude":
			msgs = append(msgs, field+" must be between -90 and 90")
		case "longitude":
			msgs = append(msgs, field+" must be between -180 and 180")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, predictResponse{Status: "error", Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
