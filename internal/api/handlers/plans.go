package handlers

import (
	"collection-route-service/internal/api/dto"
	"collection-route-service/internal/services"
	"context"
	"net/http"
	"strings"
)

// Planner is the service the plan endpoints drive.
type Planner interface {
	Plan(ctx context.Context, req services.PlanRequest) (*services.Plan, error)
	Reoptimize(ctx context.Context, req services.ReoptimizeRequest) (*services.Plan, error)
	Get(ctx context.Context, id string) (*services.Plan, error)
}

type PlanHandler struct {
	Planner Planner
}

// Create solves a new plan from the posted entities.
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.PlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	limit, err := seconds("time_limit_seconds", req.TimeLimitSeconds)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.Planner.Plan(r.Context(), services.PlanRequest{
		Entities:          req.Entities,
		DisabledVehicles:  req.DisabledVehicles,
		BlockArcs:         req.BlockArcs,
		TimeLimit:         limit,
		MIPGap:            req.MIPGap,
		AllowDirectReturn: req.AllowDirectReturn,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/plans/"+plan.ID)
	writeJSON(w, r, http.StatusCreated, dto.NewPlanResponse(plan))
}

func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))

	plan, err := h.Planner.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.NewPlanResponse(plan))
}

// Reoptimize applies a changeset to a stored plan and returns the new plan.
// The parent plan is left untouched.
func (h *PlanHandler) Reoptimize(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))

	var req dto.ReoptimizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	limit, err := seconds("time_limit_seconds", req.TimeLimitSeconds)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.Planner.Reoptimize(r.Context(), services.ReoptimizeRequest{
		PlanID:          id,
		Changeset:       req.Changeset,
		TimeLimit:       limit,
		StabilityWeight: req.StabilityWeight,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/plans/"+plan.ID)
	writeJSON(w, r, http.StatusCreated, dto.NewPlanResponse(plan))
}
