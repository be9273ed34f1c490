package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/course-enrollment/api"
	"github.com/sahilchouksey/course-enrollment/config"
	"github.com/sahilchouksey/course-enrollment/database"
	"github.com/sahilchouksey/course-enrollment/handlers"
	"github.com/sahilchouksey/course-enrollment/router"
	"github.com/sahilchouksey/course-enrollment/services"
	"github.com/sahilchouksey/course-enrollment/services/cron"
	"github.com/sahilchouksey/course-enrollment/services/lock"
	"github.com/sahilchouksey/course-enrollment/services/notify"
	"github.com/sahilchouksey/course-enrollment/services/students"
	"github.com/sahilchouksey/course-enrollment/utils"
	"github.com/sahilchouksey/course-enrollment/utils/cache"
	"github.com/sahilchouksey/course-enrollment/utils/middleware"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func SetupAndRunServer() error {

	// Load ENV
	env, err := loadEnv()
	if err != nil {
		return err
	}

	logFile, err := utils.SetupLogger(env.GO_ENV, env.LOG_FILE)
	if err != nil {
		return err
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize course store
	store, err := database.Open(ctx, env)
	if err != nil {
		print(storeHint(env.STORE_DRIVER))
		return err
	}

	if err := store.Init(ctx); err != nil {
		print("Failed to initialize the course store\n")
		store.Close()
		return err
	}

	redisCache := connectRedis(env)

	// Redis, when present, carries the course locks across replicas and the
	// enrollment notifications to the mailer
	var locker lock.Locker = lock.NewKeyedMutex(env.ENROLLMENT_LOCK_WAIT)
	var publisher notify.Publisher = notify.LogPublisher{}
	if redisCache != nil {
		locker = lock.NewRedisLocker(redisCache, env.ENROLLMENT_LOCK_TTL, env.ENROLLMENT_LOCK_WAIT)
		publisher = notify.NewStreamPublisher(redisCache)
	}

	directory := students.New(env.STUDENT_SERVICE_URL, env.STUDENT_SERVICE_TIMEOUT)
	opts := services.ServiceOptions{
		MaxAttempts:   env.ENROLLMENT_MAX_ATTEMPTS,
		LookupTimeout: env.STUDENT_SERVICE_TIMEOUT,
	}

	courseService := services.NewCourseService(store, locker, directory, opts)
	enrollmentService := services.NewEnrollmentService(store, locker, directory,
		services.NewNotificationService(publisher, env.NOTIFICATION_STREAM), opts)

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if env.CRON_ENABLED {
		var db *gorm.DB
		if gormStore, ok := store.(*database.GORMStore); ok {
			db = gormStore.GetDB()
		}
		cronManager = cron.NewCronManager(db, enrollmentService, cron.Config{
			FinishSchedule: env.ENROLLMENT_FINISH_SCHEDULE,
			FinishLead:     env.ENROLLMENT_FINISH_LEAD,
		})
		if err := cronManager.Start(); err != nil {
			// Don't fail the app, just log the warning
			log.Warnf("Failed to start cron jobs: %v", err)
			cronManager = nil
		}
	}

	// Defer closing the store, redis and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		if redisCache != nil {
			redisCache.Close()
		}
		if err := store.Close(); err != nil {
			log.Warnf("Failed to close store: %v", err)
		}
	}()

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", env.PORT), "course-enrollment")
	app := server.GetEngine()

	// Attach Middleware
	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    env.ALLOWED_ORIGINS,
		RateLimitRequests: env.RATE_LIMIT_REQUESTS,
		RateLimitWindow:   time.Minute,
	})

	// Setup Routes
	router.SetupRoutes(app, courseService, enrollmentService, healthChecks(store, redisCache))

	return serve(ctx, server)
}

func loadEnv() (*config.EnviornmentVariable, error) {
	if err := config.LoadENV(); err != nil {
		return nil, err
	}
	return config.Get()
}

// connectRedis returns nil when redis is not configured or not reachable
func connectRedis(env *config.EnviornmentVariable) *cache.RedisCache {
	if env.REDIS_URL == "" {
		log.Info("REDIS_URL not set. Using in-process course locks and logging notifications instead of publishing them.")
		return nil
	}

	redisCache, err := cache.NewRedisCache(env.REDIS_URL)
	if err != nil {
		log.Warnf("Failed to connect to Redis: %v. Falling back to in-process course locks.", err)
		return nil
	}
	return redisCache
}

func healthChecks(store database.CourseStore, redisCache *cache.RedisCache) map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{"store": store.HealthCheck}
	if redisCache != nil {
		checks["redis"] = redisCache.Ping
	}
	return checks
}

// serve runs the server until it fails or ctx is cancelled
func serve(ctx context.Context, server *api.APIServer) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("Shutdown signal received")
		return server.Shutdown(shutdownTimeout)
	}
}

// storeHint tells the operator which settings the selected store reads
func storeHint(driver string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Check whether the %s store is running or not\n", driver)
	switch driver {
	case database.DriverMongo:
		b.WriteString("The mongo store connects with MONGO_URI and MONGO_DATABASE\n")
	case database.DriverPostgres, "":
		b.WriteString("The postgres store connects with DB_HOST, DB_PORT, DB_USER_NAME, DB_PASSWORD and DB_NAME\n")
	}
	b.WriteString("Set STORE_DRIVER to postgres, mongo or memory to pick another store\n")
	return b.String()
}
