package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/participation"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type listQuery struct {
	filter domain.VolunteerShiftFilter
	page   domain.Page
}

func parseOptionalID(r *http.Request, key string) (*int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%s 无效", key)
	}
	return &id, nil
}

// parseListQuery 解析 shiftId、accountId、status（逗号分隔）、after、limit
func (h *Handler) parseListQuery(r *http.Request) (*listQuery, error) {
	q := r.URL.Query()
	query := &listQuery{page: domain.Page{Limit: defaultPageLimit}}

	var err error
	if query.filter.ShiftID, err = parseOptionalID(r, "shiftId"); err != nil {
		return nil, err
	}
	if query.filter.AccountID, err = parseOptionalID(r, "accountId"); err != nil {
		return nil, err
	}

	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := domain.VolunteerShiftStatus(strings.TrimSpace(s))
			if !status.Valid() {
				return nil, fmt.Errorf("未知的报名状态 %q", s)
			}
			query.filter.Statuses = append(query.filter.Statuses, status)
		}
	}

	if raw := q.Get("after"); raw != "" {
		if query.page.After, err = strconv.ParseInt(raw, 10, 64); err != nil || query.page.After < 0 {
			return nil, errors.New("after 无效")
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if query.page.Limit, err = strconv.Atoi(raw); err != nil {
			return nil, errors.New("limit 无效")
		}
	}
	if err := h.validate.Var(query.page.Limit, fmt.Sprintf("min=1,max=%d", maxPageLimit)); err != nil {
		return nil, err
	}

	return query, nil
}

func (h *Handler) ListParticipations(w http.ResponseWriter, r *http.Request) {
	query, err := h.parseListQuery(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 志愿者只能查看自己的报名
	if actorRole(r) == domain.RoleVolunteer {
		me, err := actorID(r)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		query.filter.AccountID = &me
	}

	records, err := h.service.ListParticipation(r.Context(), query.filter, query.page)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取报名记录成功", records)
}

func (h *Handler) GetParticipation(w http.ResponseWriter, r *http.Request) {
	recordID, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	me, err := actorID(r)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	record, err := h.service.ViewParticipation(r.Context(), recordID, me)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取报名记录成功", record)
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	shiftID, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	var req struct {
		Attendant bool `json:"attendant"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	me, err := actorID(r)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	record, err := h.service.SignUp(r.Context(), me, shiftID, req.Attendant)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "报名成功", record)
}

// recordAction 解析路径中的报名 ID 和当前账号，执行 fn 并返回更新后的记录
func (h *Handler) recordAction(w http.ResponseWriter, r *http.Request, msg string, fn func(recordID, actorID int64) (*domain.VolunteerShift, error)) {
	recordID, err := idParam(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	me, err := actorID(r)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	record, err := fn(recordID, me)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, msg, record)
}

func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Outcome string `json:"outcome" validate:"required,oneof=approve reject"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	h.recordAction(w, r, "审核成功", func(recordID, actorID int64) (*domain.VolunteerShift, error) {
		return h.service.Decide(r.Context(), recordID, actorID, participation.Transition(req.Outcome))
	})
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Outcome string `json:"outcome" validate:"required,oneof=cancel leave"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	h.recordAction(w, r, "退出成功", func(recordID, actorID int64) (*domain.VolunteerShift, error) {
		return h.service.Withdraw(r.Context(), recordID, actorID, participation.Transition(req.Outcome))
	})
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	h.recordAction(w, r, "移除成功", func(recordID, actorID int64) (*domain.VolunteerShift, error) {
		return h.service.Remove(r.Context(), recordID, actorID)
	})
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.recordAction(w, r, "签到成功", func(recordID, actorID int64) (*domain.VolunteerShift, error) {
		return h.service.CheckIn(r.Context(), recordID, actorID)
	})
}

func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.recordAction(w, r, "签退成功", func(recordID, actorID int64) (*domain.VolunteerShift, error) {
		return h.service.CheckOut(r.Context(), recordID, actorID)
	})
}

func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Completion *float64 `json:"completion" validate:"required,gte=0,lte=100"`
		ReviewNote *string  `json:"reviewNote" validate:"omitempty,max=500"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	h.recordAction(w, r, "评定成功", func(recordID, actorID int64) (*domain.VolunteerShift, error) {
		return h.service.Review(r.Context(), recordID, actorID, *req.Completion, req.ReviewNote)
	})
}
