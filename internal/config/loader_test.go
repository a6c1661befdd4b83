package config_test

import (
	"context"
	"os"
	"runtime"
	"testing"

	"github.com/okian/nudge/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.StorePath, convey.ShouldEqual, "nudge.json")
				convey.So(cfg.SweepSchedule, convey.ShouldEqual, "* * * * *")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
				convey.So(cfg.GuardSize, convey.ShouldEqual, 10_000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("NUDGE_ADDR", ":8080")
			_ = os.Setenv("NUDGE_STORE_PATH", "/var/lib/nudge/events.json")
			_ = os.Setenv("NUDGE_WEBHOOK_URL", "https://hooks.example.com/nudge")
			_ = os.Setenv("NUDGE_QUEUE_SIZE", "2048")
			_ = os.Setenv("NUDGE_WORKER_COUNT", "4")
			_ = os.Setenv("NUDGE_GUARD_SIZE", "5000")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StorePath, convey.ShouldEqual, "/var/lib/nudge/events.json")
				convey.So(cfg.WebhookURL, convey.ShouldEqual, "https://hooks.example.com/nudge")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 2048)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.GuardSize, convey.ShouldEqual, 5000)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
store_path: "/tmp/events.json"
sweep_schedule: "*/5 * * * *"
worker_count: 8
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("NUDGE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file and keep defaults elsewhere", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StorePath, convey.ShouldEqual, "/tmp/events.json")
				convey.So(cfg.SweepSchedule, convey.ShouldEqual, "*/5 * * * *")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
				convey.So(cfg.GuardSize, convey.ShouldEqual, 10_000)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
queue_size: 4096
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("NUDGE_CONFIG", tmpFile)
			_ = os.Setenv("NUDGE_ADDR", ":8080") // This should override the file
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")   // Overridden by env
				convey.So(cfg.QueueSize, convey.ShouldEqual, 4096) // From file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			invalidYaml := `invalid: yaml: content: [`
			tmpFile := createTempConfigFile(invalidYaml)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("NUDGE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldWrap, config.ErrLoadConfig)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("NUDGE_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("NUDGE_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldWrap, config.ErrInvalidConfig)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a non-positive size", func() {
			_ = os.Setenv("NUDGE_QUEUE_SIZE", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldWrap, config.ErrInvalidConfig)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// clearConfigEnvVars removes every NUDGE_ variable the tests set.
func clearConfigEnvVars() {
	for _, key := range []string{
		"NUDGE_CONFIG",
		"NUDGE_ADDR",
		"NUDGE_STORE_PATH",
		"NUDGE_WEBHOOK_URL",
		"NUDGE_SWEEP_SCHEDULE",
		"NUDGE_QUEUE_SIZE",
		"NUDGE_WORKER_COUNT",
		"NUDGE_GUARD_SIZE",
	} {
		_ = os.Unsetenv(key)
	}
}

// createTempConfigFile writes YAML content to a temp file and returns
// its path.
func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "nudge-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	_ = f.Close()
	return f.Name()
}
