package http

import (
	"log/slog"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-payroll-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Logger      *slog.Logger
	CORSOrigins []string
}

func NewRouter(
	cfg RouterConfig,
	JWTService jwt.Service,
	payrollHandler PayrollHandler,
	taxTableHandler TaxTableHandler,
	eventHandler EventHandler,
	healthHandler HealthHandler,
) *chi.Mux {
	r := chi.NewRouter()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1/payroll", func(r chi.Router) {
		// EventSource authenticates with a short-lived token in the query string
		r.Get("/events", eventHandler.Stream)

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired)

			// Calculator previews do not touch company data
			r.With(middleware.RequirePermission(user.PermissionPayrollCalculate)).Post("/calculate", payrollHandler.Calculate)
			r.With(middleware.RequirePermission(user.PermissionPayrollCalculate)).Post("/quick-paye", payrollHandler.QuickEstimate)

			// Tax tables are global
			r.Route("/tax-tables", func(r chi.Router) {
				r.With(middleware.RequirePermission(user.PermissionTaxTableView)).Get("/", taxTableHandler.GetTaxTable)
				r.With(middleware.RequirePermission(user.PermissionTaxTableView)).Get("/versions", taxTableHandler.ListVersions)
				r.With(middleware.RequirePermission(user.PermissionTaxTableManage)).Post("/", taxTableHandler.Publish)
			})

			// Company scoped
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCompany)

				r.With(middleware.RequirePermission(user.PermissionPayrollView)).Post("/events/token", eventHandler.GetSSEToken)

				r.Route("/runs", func(r chi.Router) {
					r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/", payrollHandler.ListRuns)
					r.With(middleware.RequirePermission(user.PermissionPayrollProcess)).Post("/", payrollHandler.CreateRun)

					r.Route("/{id}", func(r chi.Router) {
						r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/", payrollHandler.GetRun)
						r.With(middleware.RequirePermission(user.PermissionPayrollProcess)).Post("/process", payrollHandler.ProcessRun)
						r.With(middleware.RequirePermission(user.PermissionPayrollApprove)).Post("/approve", payrollHandler.ApproveRun)
						r.With(middleware.RequirePermission(user.PermissionPayrollPay)).Post("/mark-paid", payrollHandler.MarkRunPaid)
						r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/remittances", payrollHandler.ListRunRemittances)
						r.With(middleware.RequirePermission(user.PermissionPayrollProcess)).Post("/remittances", payrollHandler.GenerateRemittances)
					})
				})

				r.Route("/remittances", func(r chi.Router) {
					r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/overdue", payrollHandler.ListOverdueRemittances)
					r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/upcoming", payrollHandler.ListUpcomingRemittances)
					r.With(middleware.RequirePermission(user.PermissionPayrollPay)).Post("/{id}/mark-paid", payrollHandler.MarkRemittancePaid)
				})

				r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/payslips/{id}", payrollHandler.GetPayslip)
			})
		})
	})
	return r
}
