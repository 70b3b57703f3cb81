package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/config"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/repository"
)

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  *repository.Repository
	translator  ut.Translator
	mailChannel *amqp.Channel
	redisClient *redis.Client
	metrics     *metrics.Metrics

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, mailCh *amqp.Channel, rdb *redis.Client, m *metrics.Metrics) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		mailChannel: mailCh,
		redisClient: rdb,
		metrics:     m,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Handle("/metrics", promhttp.Handler())

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	adminOnly := h.RequiredRole([]domain.Role{domain.RoleAdmin})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(adminOnly).Post("/", h.CreateUser)
			r.Get("/", h.GetAllUserInfo)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUserInfo)
				r.With(h.preventOperateInitialAdmin).With(adminOnly).Patch("/", h.UpdateUser)
				r.With(h.preventOperateInitialAdmin).With(adminOnly).Delete("/", h.DeleteUser)
			})
		})

		r.Route("/allocation-plans", func(r chi.Router) {
			r.With(adminOnly).Post("/", h.CreateAllocationPlan)
			r.Get("/", h.GetAllAllocationPlans)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.allocationPlan)
				r.Get("/", h.GetAllocationPlan)
				r.With(adminOnly).Patch("/", h.UpdateAllocationPlan)
				r.With(adminOnly).Delete("/", h.DeleteAllocationPlan)

				r.Route("/respondents", func(r chi.Router) {
					r.Get("/", h.GetRespondents)
					r.Post("/", h.SubmitRespondent)
					r.Route("/{respondentID}", func(r chi.Router) {
						r.Use(h.respondent)
						r.Get("/", h.GetRespondent)
						r.Put("/exclusions", h.UpdateRespondentExclusions)
						r.With(adminOnly).Delete("/", h.DeleteRespondent)
					})
				})

				r.Route("/allocation", func(r chi.Router) {
					r.Get("/", h.GetAllocationResult)
					r.With(adminOnly).Post("/generate", h.GenerateAllocationResult)
					r.With(adminOnly).Post("/publish", h.PublishAllocationResult)
				})
			})
		})
	})
}
