package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/course-enrollment/api"
	"github.com/sahilchouksey/course-enrollment/handlers"
	"github.com/sahilchouksey/course-enrollment/router"
	"github.com/sahilchouksey/course-enrollment/services"
	"github.com/sahilchouksey/course-enrollment/services/notify"
	"github.com/sahilchouksey/course-enrollment/utils"
	"github.com/sahilchouksey/course-enrollment/utils/middleware"
)

// SetupAndRunMailer runs the notification consumer next to the mailer's HTTP API
func SetupAndRunMailer() error {
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

	emailService := services.NewEmailService(env)
	if !emailService.IsConfigured() {
		log.Warn("[MAILER] SMTP_HOST not set. Emails will not be delivered.")
	}

	checks := map[string]handlers.HealthCheck{}
	var wg sync.WaitGroup

	redisCache := connectRedis(env)
	if redisCache != nil {
		defer redisCache.Close()
		checks["redis"] = redisCache.Ping

		hostname, _ := os.Hostname()
		consumer := notify.NewStreamConsumer(redisCache, env.NOTIFICATION_STREAM, env.NOTIFICATION_GROUP).
			WithName(hostname)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx, emailService.HandleEnrollmentFinished); err != nil {
				log.Errorf("[MAILER] Notification consumer stopped: %v", err)
			}
		}()
	} else {
		log.Warn("[MAILER] No notification stream available. Only POST /email is served.")
	}

	server := api.NewAPIServer(fmt.Sprintf(":%d", env.MAILER_PORT), "course-mailer")
	app := server.GetEngine()
	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    env.ALLOWED_ORIGINS,
		RateLimitRequests: env.RATE_LIMIT_REQUESTS,
		RateLimitWindow:   time.Minute,
	})
	router.SetupMailerRoutes(app, emailService, checks)

	err = serve(ctx, server)
	stop()
	wg.Wait()
	return err
}
