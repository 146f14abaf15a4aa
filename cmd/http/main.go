package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/minio/minio-go/v7"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"clinreg-service/internal/app/config"
	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/app/delivery/http/controllers"
	"clinreg-service/internal/app/delivery/http/routers"
	"clinreg-service/internal/app/drivers/database"
	"clinreg-service/internal/app/drivers/logger"
	"clinreg-service/internal/app/drivers/messaging"
	"clinreg-service/internal/app/drivers/storage"
	"clinreg-service/internal/app/models"
	"clinreg-service/internal/app/services/clinicaldata"
	"clinreg-service/internal/app/services/consents"
	"clinreg-service/internal/app/services/contexts"
	"clinreg-service/internal/app/services/expressions"
	"clinreg-service/internal/app/services/patients"
	"clinreg-service/internal/app/services/registries"
	"clinreg-service/internal/app/services/shared/events"
	redisrepo "clinreg-service/internal/app/services/shared/redis"
	miniostorage "clinreg-service/internal/app/services/shared/storage"
)

func main() {
	driverConfig := config.NewDriverConfig()
	internalConfig := config.NewInternalConfig()

	location, err := time.LoadLocation(internalConfig.App.Timezone)
	if err != nil {
		logrus.Fatalf("Error loading location: %v", err)
	}
	time.Local = location

	zapLogger := logger.NewZapLogger(driverConfig, internalConfig)
	defer zapLogger.Sync()

	mongoDB := database.NewMongoDB(driverConfig)
	redisClient := database.NewRedisClient(driverConfig)
	rabbitConn := messaging.NewRabbitMQ(driverConfig)
	minioClient := storage.NewMinioClient(driverConfig)

	chiRouter := chi.NewRouter()
	bootstrapApp(chiRouter, driverConfig, internalConfig, zapLogger, mongoDB, redisClient, rabbitConn, minioClient)

	server := &http.Server{
		Addr:    internalConfig.App.Port,
		Handler: chiRouter,
	}

	go func() {
		logrus.Printf("Server listening on %s", internalConfig.App.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Server failed: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logrus.Println("Waiting for pending requests to finish..")
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Second*time.Duration(internalConfig.App.ShutdownTimeoutInSeconds),
	)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Fatalf("Server forced to shutdown: %v", err)
	}
	logrus.Println("Server exiting")
}

func bootstrapApp(
	router *chi.Mux,
	driverConfig *config.DriverConfig,
	internalConfig *config.InternalConfig,
	zapLogger *zap.Logger,
	mongoDB *mongo.Client,
	redisClient *redis.Client,
	rabbitConn *amqp091.Connection,
	minioClient *minio.Client,
) {
	dbName := driverConfig.MongoDB.DbName

	// Shared infrastructure
	redisRepository := redisrepo.NewRedisRepository(redisClient)
	fileStorage := miniostorage.NewMinioFileStorage(minioClient, internalConfig)
	eventPublisher, err := events.NewRabbitEventPublisher(rabbitConn, internalConfig, zapLogger)
	if err != nil {
		logrus.Fatalf("Failed to initialize event publisher: %v", err)
	}

	// Registries
	registryRepository := registries.NewRegistryMongoRepository(mongoDB, dbName)
	registryUsecase := registries.NewRegistryUsecase(registryRepository, redisRepository, internalConfig, zapLogger)
	registryController := controllers.NewRegistryController(zapLogger, registryUsecase)

	// Patients
	patientRepository := patients.NewPatientMongoRepository(mongoDB, dbName)
	patientUsecase := patients.NewPatientUsecase(patientRepository, zapLogger)
	ownerRegistry := patients.NewOwnerRegistry(patientUsecase)
	patientController := controllers.NewPatientController(zapLogger, patientUsecase)

	// Contexts and consents
	contextRepository := contexts.NewContextMongoRepository(mongoDB, dbName)
	contextService := contexts.NewContextUsecase(contextRepository, zapLogger)
	consentRepository := consents.NewConsentMongoRepository(mongoDB, dbName)
	consentService := consents.NewConsentUsecase(consentRepository, zapLogger)

	// Clinical data
	clinicalRepository := clinicaldata.NewClinicalMongoRepository(mongoDB, dbName)
	dynamicDataService := clinicaldata.NewDynamicDataService(
		clinicalRepository,
		registryUsecase,
		contextService,
		fileStorage,
		eventPublisher,
		zapLogger,
	)
	clinicalController := controllers.NewClinicalController(zapLogger, dynamicDataService)

	// Field expressions
	expressionUsecase := expressions.NewExpressionUsecase(
		registryUsecase,
		clinicalRepository,
		contextService,
		consentService,
		ownerRegistry,
		patientUsecase,
		reportFunctions(),
		zapLogger,
	)
	expressionController := controllers.NewExpressionController(zapLogger, expressionUsecase)

	fileController := controllers.NewFileController(zapLogger, fileStorage)

	routers.SetupRoutes(
		router,
		internalConfig,
		zapLogger,
		registryController,
		clinicalController,
		expressionController,
		patientController,
		fileController,
	)
}

// reportFunctions is the closed set of computed columns addressable as
// "@name" in field expressions.
func reportFunctions() map[string]contracts.ReportFunction {
	return map[string]contracts.ReportFunction{
		"age": func(ctx context.Context, owner contracts.FieldOwner) (interface{}, error) {
			patient, ok := owner.(*models.Patient)
			if !ok || patient.DateOfBirth.IsZero() {
				return nil, nil
			}
			years := time.Now().Year() - patient.DateOfBirth.Year()
			if time.Now().YearDay() < patient.DateOfBirth.YearDay() {
				years--
			}
			return years, nil
		},
	}
}
