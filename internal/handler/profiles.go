package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

func (h *Handler) GetProfileSkills(w http.ResponseWriter, r *http.Request) {
	profileID, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	skills, err := h.service.ListProfileSkills(r.Context(), profileID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取技能时长成功", skillsOrEmpty(skills))
}

func (h *Handler) RebuildProfileSkills(w http.ResponseWriter, r *http.Request) {
	profileID, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	skills, err := h.service.RebuildProfileSkills(r.Context(), profileID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "重新计算技能时长成功", skillsOrEmpty(skills))
}

func (h *Handler) CheckProfileSkills(w http.ResponseWriter, r *http.Request) {
	profileID, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	drifts, err := h.service.CheckProfileSkills(r.Context(), profileID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	if drifts == nil {
		drifts = []domain.SkillDrift{}
	}

	h.successResponse(w, r, "检查技能时长成功", drifts)
}

func (h *Handler) RunReconciliationSweep(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.RunReconciliationSweep(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "清理过期报名成功", map[string]int{"count": count})
}
