package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	me, err := actorID(r)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	myInfo, err := h.users.GetUserByID(r.Context(), me)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取个人信息成功", myInfo)
}

func (h *Handler) GetMyParticipations(w http.ResponseWriter, r *http.Request) {
	me, err := actorID(r)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	query, err := h.parseListQuery(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	query.filter.AccountID = &me

	records, err := h.service.ListParticipation(r.Context(), query.filter, query.page)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取我的报名记录成功", records)
}

func (h *Handler) GetMySkills(w http.ResponseWriter, r *http.Request) {
	me, err := actorID(r)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	skills, err := h.service.ListProfileSkills(r.Context(), me)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取我的技能时长成功", skillsOrEmpty(skills))
}

func skillsOrEmpty(skills []domain.ProfileSkill) []domain.ProfileSkill {
	if skills == nil {
		return []domain.ProfileSkill{}
	}
	return skills
}
