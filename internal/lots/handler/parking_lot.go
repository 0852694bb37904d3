package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"parkwatch/internal/lots/service"
	apperrors "parkwatch/pkg/errors"
	httputil "parkwatch/pkg/http"
	"parkwatch/pkg/logger"
	"parkwatch/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ParkingLotHandler struct {
	service service.ParkingLotService
	log     *logger.Logger
}

func NewParkingLotHandler(service service.ParkingLotService, log *logger.Logger) *ParkingLotHandler {
	return &ParkingLotHandler{
		service: service,
		log:     log,
	}
}

func (h *ParkingLotHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var lot model.ParkingLot
	if err := json.NewDecoder(r.Body).Decode(&lot); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	actor := httputil.ExtractActor(r)
	if err := h.service.Create(r.Context(), actor, &lot); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, lot); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ParkingLotHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	lot, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, lot); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ParkingLotHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	page, limit, err := httputil.ExtractPageLimit(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	lots, total, err := h.service.GetAll(r.Context(), page, limit)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePage(w, lots, total, page, limit); err != nil {
		h.log.Error("failed to write page response", "handler", "GetAll", "operation", "WritePage", "error", err)
	}
}

func (h *ParkingLotHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	page, limit, err := httputil.ExtractPageLimit(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Search", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	filter, err := h.buildFilter(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Search", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	summaries, total, err := h.service.Search(r.Context(), filter, page, limit)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Search", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePage(w, summaries, total, page, limit); err != nil {
		h.log.Error("failed to write page response", "handler", "Search", "operation", "WritePage", "error", err)
	}
}

func (h *ParkingLotHandler) Nearby(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	lat, hasLat, err := httputil.ExtractFloat(r, "lat")
	if err == nil && !hasLat {
		err = missingParam("lat")
	}
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Nearby", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	lon, hasLon, err := httputil.ExtractFloat(r, "lon")
	if err == nil && !hasLon {
		err = missingParam("lon")
	}
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Nearby", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	radiusKm, _, err := httputil.ExtractFloat(r, "radius_km")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Nearby", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	summaries, err := h.service.Nearby(r.Context(), lat, lon, radiusKm)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Nearby", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, summaries); err != nil {
		h.log.Error("failed to write success response", "handler", "Nearby", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ParkingLotHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var updates model.ParkingLotUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	actor := httputil.ExtractActor(r)
	lot, err := h.service.Update(r.Context(), actor, id, &updates)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, lot); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ParkingLotHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	actor := httputil.ExtractActor(r)
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Delete", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ParkingLotHandler) UpdateAvailability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var update model.AvailabilityUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "UpdateAvailability", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	actor := httputil.ExtractActor(r)
	lot, err := h.service.UpdateAvailability(r.Context(), actor, id, &update)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "UpdateAvailability", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, lot); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateAvailability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ParkingLotHandler) GetStats(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	stats, err := h.service.GetStats(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetStats", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, stats); err != nil {
		h.log.Error("failed to write success response", "handler", "GetStats", "operation", "WriteSuccess", "error", err)
	}
}

func missingParam(name string) error {
	return apperrors.InvalidInput("missing required parameter: " + name)
}

func (h *ParkingLotHandler) buildFilter(r *http.Request) (*model.SearchFilter, error) {
	query := r.URL.Query()

	filter := &model.SearchFilter{
		Query:         query.Get("q"),
		City:          query.Get("city"),
		State:         query.Get("state"),
		AvailableOnly: query.Get("available") == "true",
	}

	if amenities := query.Get("amenities"); amenities != "" {
		filter.Amenities = strings.Split(amenities, ",")
	}

	if minRate, ok, err := httputil.ExtractFloat(r, "min_rate"); err != nil {
		return nil, err
	} else if ok {
		filter.MinRate = &minRate
	}

	if maxRate, ok, err := httputil.ExtractFloat(r, "max_rate"); err != nil {
		return nil, err
	} else if ok {
		filter.MaxRate = &maxRate
	}

	return filter, nil
}

func (h *ParkingLotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/lots", h.Create)
	router.GET("/api/v1/lots", h.GetAll)
	router.GET("/api/v1/lots/search", h.Search)
	router.GET("/api/v1/lots/nearby", h.Nearby)
	router.GET("/api/v1/lots/id/:id", h.GetByID)
	router.GET("/api/v1/lots/id/:id/stats", h.GetStats)
	router.PATCH("/api/v1/lots/id/:id", h.Update)
	router.DELETE("/api/v1/lots/id/:id", h.Delete)
	router.PUT("/api/v1/lots/id/:id/availability", h.UpdateAvailability)
}
