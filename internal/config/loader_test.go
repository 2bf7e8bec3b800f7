package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/csvmerge/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, "memory")
				convey.So(cfg.SweepSchedule, convey.ShouldEqual, "@every 1m")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CSVMERGE_ADDR", ":8080")
			_ = os.Setenv("CSVMERGE_MAX_WINDOW_DAYS", "400")
			_ = os.Setenv("CSVMERGE_DUPLICATE_POLICY", "sum")
			_ = os.Setenv("CSVMERGE_STRICT_ENTITIES", "true")
			_ = os.Setenv("CSVMERGE_REDIS_DB", "3")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.MaxWindowDays, convey.ShouldEqual, 400)
				convey.So(cfg.DuplicatePolicy, convey.ShouldEqual, "sum")
				convey.So(cfg.StrictEntities, convey.ShouldBeTrue)
				convey.So(cfg.RedisDB, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
# deployment overrides
addr: ":9090"
log_format: json
store_backend: sqlite
sqlite_path: /tmp/records.db
retention_minutes: 60
sweep_schedule: "*/5 * * * *"
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CSVMERGE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, "sqlite")
				convey.So(cfg.SQLitePath, convey.ShouldEqual, "/tmp/records.db")
				convey.So(cfg.RetentionMinutes, convey.ShouldEqual, 60)
				convey.So(cfg.MaxWindowDays, convey.ShouldEqual, 3660) // From defaults
			})
		})

		convey.Convey("When an explicit path is given alongside env overrides", func() {
			tmpFile := createTempConfigFile("addr: \":9090\"\nmerge_parallelism: 2\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CSVMERGE_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, tmpFile)

			convey.Convey("Then env wins over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.MergeParallelism, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			cfg, err := config.Load(ctx, tmpFile)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			cfg, err := config.Load(ctx, "/non/existent/file.yaml")

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("CSVMERGE_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("CSVMERGE_MAX_WINDOW_DAYS", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a negative retention", func() {
			_ = os.Setenv("CSVMERGE_RETENTION_MINUTES", "-5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"CSVMERGE_CONFIG",
		"CSVMERGE_ADDR",
		"CSVMERGE_MAX_WINDOW_DAYS",
		"CSVMERGE_DUPLICATE_POLICY",
		"CSVMERGE_STRICT_ENTITIES",
		"CSVMERGE_REDIS_DB",
		"CSVMERGE_RETENTION_MINUTES",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "csvmerge-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
