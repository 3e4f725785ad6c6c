package handler

import (
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

type shiftView struct {
	*domain.Shift
	Status       domain.ShiftStatus `json:"status"`
	DurationHour float64            `json:"durationHours"`
}

func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	shiftID, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	shift, err := h.service.GetShift(r.Context(), shiftID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取班次成功", shiftView{
		Shift:        shift,
		Status:       shift.Status(time.Now()),
		DurationHour: shift.DurationHours(),
	})
}
