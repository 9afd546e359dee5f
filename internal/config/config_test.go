package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hibiki-gg/scoretrack/internal/config"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	Convey("Given no environment or file overrides", t, func() {
		cfg, err := config.Load(ctx)
		So(err, ShouldBeNil)

		Convey("Then the defaults apply", func() {
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.Addr, ShouldEqual, ":9090")
			So(cfg.QueueSize, ShouldEqual, 10_000)
			So(cfg.WorkerCount, ShouldEqual, runtime.NumCPU()*2)
			So(cfg.DedupeSize, ShouldEqual, 50_000)
			So(cfg.DataDir, ShouldBeEmpty)
			So(cfg.CatalogPath, ShouldBeEmpty)
		})
	})
}

func TestLoadEnv(t *testing.T) {
	ctx := context.Background()

	t.Setenv("SCORETRACK_QUEUE_SIZE", "128")
	t.Setenv("SCORETRACK_LOG_LEVEL", "debug")
	t.Setenv("SCORETRACK_DATA_DIR", "/var/lib/scoretrack")

	Convey("Given environment overrides", t, func() {
		cfg, err := config.Load(ctx)
		So(err, ShouldBeNil)

		Convey("Then env values win over the defaults", func() {
			So(cfg.QueueSize, ShouldEqual, 128)
			So(cfg.LogLevel, ShouldEqual, "debug")
			So(cfg.DataDir, ShouldEqual, "/var/lib/scoretrack")
		})

		Convey("Then untouched fields keep their defaults", func() {
			So(cfg.Addr, ShouldEqual, ":9090")
		})
	})
}

func TestLoadFile(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "addr: \":8081\"\nqueue_size: 64\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCORETRACK_CONFIG", path)

	Convey("Given a YAML config file", t, func() {
		cfg, err := config.Load(ctx)
		So(err, ShouldBeNil)
		So(cfg.Addr, ShouldEqual, ":8081")
		So(cfg.QueueSize, ShouldEqual, 64)
	})

	Convey("Given an env var shadowing the file", t, func() {
		t.Setenv("SCORETRACK_ADDR", ":9999")

		cfg, err := config.Load(ctx)
		So(err, ShouldBeNil)

		Convey("Then env takes precedence over the file", func() {
			So(cfg.Addr, ShouldEqual, ":9999")
			So(cfg.QueueSize, ShouldEqual, 64)
		})
	})
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("SCORETRACK_CONFIG", "/nonexistent/config.yaml")

	Convey("Given a config file that does not exist", t, func() {
		_, err := config.Load(context.Background())
		So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
	})
}

func TestLoadInvalidQueueSize(t *testing.T) {
	t.Setenv("SCORETRACK_QUEUE_SIZE", "0")

	Convey("Given an invalid queue size", t, func() {
		_, err := config.Load(context.Background())
		So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
	})
}

func TestLoadInvalidWorkerCount(t *testing.T) {
	t.Setenv("SCORETRACK_WORKER_COUNT", "-1")

	Convey("Given an invalid worker count", t, func() {
		_, err := config.Load(context.Background())
		So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
	})
}
