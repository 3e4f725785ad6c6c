package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"go.uber.org/zap"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/participation"
)

// UserStore 提供登录和个人信息需要的查询
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
}

// ParticipationService 由 *participation.Service 实现
type ParticipationService interface {
	SignUp(ctx context.Context, accountID, shiftID int64, attendant bool) (*domain.VolunteerShift, error)
	Decide(ctx context.Context, recordID, actorID int64, outcome participation.Transition) (*domain.VolunteerShift, error)
	Withdraw(ctx context.Context, recordID, actorID int64, outcome participation.Transition) (*domain.VolunteerShift, error)
	Remove(ctx context.Context, recordID, actorID int64) (*domain.VolunteerShift, error)
	CheckIn(ctx context.Context, recordID, actorID int64) (*domain.VolunteerShift, error)
	CheckOut(ctx context.Context, recordID, actorID int64) (*domain.VolunteerShift, error)
	Review(ctx context.Context, recordID, actorID int64, completion float64, reviewNote *string) (*domain.VolunteerShift, error)
	RunReconciliationSweep(ctx context.Context) (int, error)

	GetShift(ctx context.Context, shiftID int64) (*domain.Shift, error)
	ViewParticipation(ctx context.Context, recordID, actorID int64) (*domain.VolunteerShift, error)
	ListParticipation(ctx context.Context, filter domain.VolunteerShiftFilter, page domain.Page) ([]*domain.VolunteerShift, error)

	ListProfileSkills(ctx context.Context, profileID int64) ([]domain.ProfileSkill, error)
	RebuildProfileSkills(ctx context.Context, profileID int64) ([]domain.ProfileSkill, error)
	CheckProfileSkills(ctx context.Context, profileID int64) ([]domain.SkillDrift, error)
}

var _ ParticipationService = (*participation.Service)(nil)

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	logger     *zap.Logger
	users      UserStore
	service    ParticipationService
	translator ut.Translator

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, users UserStore, service ParticipationService, logger *zap.Logger) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		logger:     logger,
		users:      users,
		service:    service,
		translator: trans,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.requestLogger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Route("/my-info", func(r chi.Router) {
			r.Get("/", h.GetMyInfo)
			r.Get("/participations", h.GetMyParticipations)
			r.Get("/skills", h.GetMySkills)
		})

		r.Route("/shifts/{id}", func(r chi.Router) {
			r.Get("/", h.GetShift)
			r.Post("/participations", h.SignUp)
		})

		r.Route("/participations", func(r chi.Router) {
			r.Get("/", h.ListParticipations)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetParticipation)
				r.Post("/decision", h.Decide)
				r.Post("/withdrawal", h.Withdraw)
				r.Post("/removal", h.Remove)
				r.Put("/check-in", h.CheckIn)
				r.Put("/check-out", h.CheckOut)
				r.Post("/review", h.Review)
			})
		})

		r.Route("/profiles/{id}/skills", func(r chi.Router) {
			r.Get("/", h.GetProfileSkills)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/rebuild", h.RebuildProfileSkills)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Get("/consistency", h.CheckProfileSkills)
		})

		r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/reconciliation/sweeps", h.RunReconciliationSweep)
	})
}
