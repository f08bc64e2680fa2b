package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/bargeh-api/internal/config"
	"github.com/noah-isme/bargeh-api/internal/database"
	"github.com/noah-isme/bargeh-api/internal/handler"
	"github.com/noah-isme/bargeh-api/internal/middleware"
	"github.com/noah-isme/bargeh-api/internal/repository"
	"github.com/noah-isme/bargeh-api/internal/router"
	"github.com/noah-isme/bargeh-api/internal/service"
	cloud "github.com/noah-isme/bargeh-api/pkg/cloudinary"
	"github.com/noah-isme/bargeh-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "production" {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured; statistics cache disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		// Bulk uploads carry up to ten PDFs plus form fields.
		BodyLimit: (cfg.UploadMaxSizeMB + 1) * 10 * 1024 * 1024,
	})
	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	jwtMiddleware := middleware.JWTProtected(cfg.JWTSecret)

	fileStorage, err := newFileStorage(app, cfg, jwtMiddleware, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise file storage")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventBus := service.NewGradeEventBus(redisClient, natsConn, cfg.EventsChannel, logger)
	eventBus.Start(ctx)

	deps := buildDependencies(db, redisClient, eventBus, fileStorage, cfg, logger)
	deps.JWTMiddleware = jwtMiddleware
	deps.ExposeMetrics = true
	deps.HealthProbes = healthProbes(db, redisClient, natsConn)
	router.Register(app, cfg, deps)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
}

func buildDependencies(db *gorm.DB, redisClient *redis.Client, eventBus service.GradeEventBus, fileStorage service.FileStorage, cfg config.Config, logger zerolog.Logger) router.Dependencies {
	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	rubricRepo := repository.NewRubricItemRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gradeRepo := repository.NewSubmissionGradeRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, courseRepo, logger)
	statsService := service.NewGradingStatsService(service.GradingStatsDeps{
		Grades:      gradeRepo,
		Submissions: submissionRepo,
		Questions:   questionRepo,
		Assignments: assignmentRepo,
		Courses:     courseRepo,
		Cache:       redisClient,
		CacheTTL:    cfg.StatisticsCacheTTL,
	}, logger)
	gradingService := service.NewGradingService(service.GradingDeps{
		Grades:      gradeRepo,
		Submissions: submissionRepo,
		Questions:   questionRepo,
		RubricItems: rubricRepo,
		Assignments: assignmentRepo,
		Courses:     courseRepo,
		Activity:    activityService,
		Events:      eventBus,
		Stats:       statsService,
	}, validate, logger)
	submissionService := service.NewSubmissionService(service.SubmissionDeps{
		Submissions: submissionRepo,
		Questions:   questionRepo,
		Assignments: assignmentRepo,
		Courses:     courseRepo,
		Users:       userRepo,
		Storage:     fileStorage,
		MaxUploadMB: cfg.UploadMaxSizeMB,
		Stats:       statsService,
		Activity:    activityService,
	}, validate, logger)
	pageMapService, err := service.NewPageMapService(submissionRepo, questionRepo, assignmentRepo, courseRepo, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to compile page map schema")
	}

	return router.Dependencies{
		UserHandler: handler.NewUserHandler(service.NewUserService(userRepo, validate, logger), logger),
		CourseHandler: handler.NewCourseHandler(
			service.NewCourseService(courseRepo, userRepo, activityService, validate, logger),
			activityService, logger),
		AssignmentHandler: handler.NewAssignmentHandler(
			service.NewAssignmentService(assignmentRepo, courseRepo, fileStorage, cfg.UploadMaxSizeMB, validate, logger),
			logger),
		QuestionHandler: handler.NewQuestionHandler(
			service.NewQuestionService(service.QuestionDeps{
				Questions:   questionRepo,
				Assignments: assignmentRepo,
				Courses:     courseRepo,
				Grades:      gradeRepo,
				Activity:    activityService,
				Stats:       statsService,
			}, validate, logger),
			service.NewRubricService(service.RubricDeps{
				RubricItems: rubricRepo,
				Questions:   questionRepo,
				Assignments: assignmentRepo,
				Courses:     courseRepo,
				Grades:      gradeRepo,
				Activity:    activityService,
				Stats:       statsService,
			}, validate, logger),
			logger),
		SubmissionHandler:  handler.NewSubmissionHandler(submissionService, pageMapService, logger),
		GradingHandler:     handler.NewGradingHandler(gradingService, statsService, logger),
		GradingFeedHandler: handler.NewGradingFeedHandler(gradingService, eventBus, logger),
	}
}

// newFileStorage prefers Cloudinary and falls back to the local filesystem,
// served to authenticated callers under the configured public URL.
func newFileStorage(app *fiber.App, cfg config.Config, auth fiber.Handler, logger zerolog.Logger) (service.FileStorage, error) {
	if cfg.CloudinaryEnabled() {
		return cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	}

	store, err := storage.NewFSStore(cfg.LocalStorageDir, cfg.StoragePublicURL)
	if err != nil {
		return nil, err
	}
	app.Group(cfg.StoragePublicURL, auth).Static("/", store.Dir())
	logger.Warn().Str("dir", store.Dir()).Msg("cloudinary not configured; storing uploads locally")
	return store, nil
}

func healthProbes(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return probes
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
