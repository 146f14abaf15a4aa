package routers

import (
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"clinreg-service/internal/app/config"
	"clinreg-service/internal/app/delivery/http/controllers"
	"clinreg-service/internal/app/delivery/http/middlewares"
)

func SetupRoutes(
	router *chi.Mux,
	internalConfig *config.InternalConfig,
	log *zap.Logger,
	registryController *controllers.RegistryController,
	clinicalController *controllers.ClinicalController,
	expressionController *controllers.ExpressionController,
	patientController *controllers.PatientController,
	fileController *controllers.FileController,
) {
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id", "x-api-key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	router.Use(cors.Handler(corsOptions))
	router.Use(httprate.LimitByIP(internalConfig.App.MaxRequests, time.Second))
	router.Use(middlewares.RequestID)
	router.Use(middlewares.RequestLogger(log))

	authenticated := middlewares.Authenticate(internalConfig, log)
	adminOnly := middlewares.AdminAPIKey(internalConfig, log)

	endpointPrefix := fmt.Sprintf("/%s", internalConfig.App.EndpointPrefix)
	versionPrefix := fmt.Sprintf("/%s", internalConfig.App.Version)

	router.Route(endpointPrefix, func(r chi.Router) {
		r.Route(versionPrefix, func(r chi.Router) {
			r.Route("/registries", func(r chi.Router) {
				r.With(adminOnly).Post("/", registryController.CreateRegistry)
				r.Route("/{registryCode}", func(r chi.Router) {
					r.With(authenticated).Get("/", registryController.GetRegistryDefinition)
					r.With(adminOnly).Put("/forms", registryController.UpsertForm)
				})
				r.With(adminOnly).Put("/sections", registryController.UpsertSection)
				r.With(adminOnly).Put("/cdes", registryController.UpsertCde)
			})

			r.Route("/patients", func(r chi.Router) {
				r.With(authenticated).Post("/", patientController.CreatePatient)
				r.Route("/{patientID}", func(r chi.Router) {
					r.Use(authenticated)
					r.Get("/", patientController.GetPatient)

					r.Route("/registries/{registryCode}", func(r chi.Router) {
						r.Route("/contexts/{contextID}", func(r chi.Router) {
							r.Get("/forms/{formName}", clinicalController.LoadFormData)
							r.Put("/forms/{formName}", clinicalController.SaveFormData)
							r.Delete("/record", clinicalController.DeletePatientRecord)
						})
						r.Get("/cdes/{formName}/{sectionCode}/{cdeCode}/history", clinicalController.GetCdeHistory)
						r.Get("/field-expressions", expressionController.Evaluate)
						r.Post("/field-expressions", expressionController.UpdateFieldExpressions)
					})
				})
			})

			r.With(authenticated).Get("/files/{referenceID}", fileController.FetchFile)
		})
	})
}
