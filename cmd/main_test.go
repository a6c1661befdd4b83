package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/nudge/internal/adapters/http/api"
	app "github.com/okian/nudge/internal/app"
	"github.com/okian/nudge/internal/commands"
	"github.com/okian/nudge/internal/config"
	"github.com/okian/nudge/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("NUDGE_ADDR", ":8080")
			_ = os.Setenv("NUDGE_QUEUE_SIZE", "1000")
			_ = os.Setenv("NUDGE_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("NUDGE_ADDR")
				_ = os.Unsetenv("NUDGE_QUEUE_SIZE")
				_ = os.Unsetenv("NUDGE_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := app.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable with custom options", func() {
				svc := app.New(
					app.WithWorkerCount(8),
					app.WithQueueSize(2000),
					app.WithGuardSize(1000),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When wiring the full HTTP stack", func() {
			svc := app.New(
				app.WithStorePath(filepath.Join(t.TempDir(), "nudge.json")),
			)
			convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
			defer svc.Stop()

			mux := http.NewServeMux()
			router := commands.New(svc)
			api.NewServer(router, svc).Register(context.Background(), mux)

			srv := &http.Server{
				Addr:              ":0",
				Handler:           mux,
				ReadTimeout:       readTimeout,
				WriteTimeout:      writeTimeout,
				IdleTimeout:       idleTimeout,
				ReadHeaderTimeout: readHeaderTimeout,
			}

			convey.Convey("Then the server carries the configured timeouts", func() {
				convey.So(srv.ReadTimeout, convey.ShouldEqual, 10*time.Second)
				convey.So(srv.WriteTimeout, convey.ShouldEqual, 10*time.Second)
				convey.So(srv.IdleTimeout, convey.ShouldEqual, 60*time.Second)
				convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, 5*time.Second)
			})
		})
	})
}
