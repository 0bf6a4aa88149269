package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"ratefeed/internal/power"
)

type powerRequest struct {
	Group       string           `json:"group" validate:"required,max=64"`
	Power       *decimal.Decimal `json:"power" validate:"omitempty,gte=0"`
	Description string           `json:"description"`
	ID          json.RawMessage  `json:"id,omitempty"` // ignored, the store assigns ids
}

func (p powerRequest) config() power.Config {
	c := power.Config{Group: p.Group, Power: power.DefaultPower, Description: p.Description}
	if p.Power != nil {
		c.Power = *p.Power
	}
	return c
}

type batchPowerRequest struct {
	Power *decimal.Decimal `json:"power" validate:"required,gte=0"`
}

func (h *handlers) listPowers(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Powers.List(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if cs == nil {
		cs = []power.Config{}
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *handlers) getPower(w http.ResponseWriter, r *http.Request) {
	c, err := h.Powers.GetByGroup(r.Context(), mux.Vars(r)["group"])
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handlers) createPower(w http.ResponseWriter, r *http.Request) {
	var req powerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.Powers.Create(r.Context(), req.config())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.log.Info("power config created", "group", c.Group, "config_id", c.ID, "power", c.Power.String())
	writeJSON(w, http.StatusOK, c)
}

// updatePower takes the group from the path; a group in the body is only
// checked for presence and length.
func (h *handlers) updatePower(w http.ResponseWriter, r *http.Request) {
	group := mux.Vars(r)["group"]
	var req powerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.Powers.Update(r.Context(), group, req.config())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.log.Info("power config updated", "group", c.Group, "power", c.Power.String())
	writeJSON(w, http.StatusOK, c)
}

func (h *handlers) deletePower(w http.ResponseWriter, r *http.Request) {
	group := mux.Vars(r)["group"]
	if err := h.Powers.Delete(r.Context(), group); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.log.Info("power config deleted", "group", group)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Configuration deleted successfully"})
}

func (h *handlers) setAllPowers(w http.ResponseWriter, r *http.Request) {
	var req batchPowerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cs, err := h.Powers.SetAllPowers(r.Context(), *req.Power)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.log.Info("power updated for all configs", "power", req.Power.String(), "count", len(cs))
	writeJSON(w, http.StatusOK, cs)
}
