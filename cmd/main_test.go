package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"

	"github.com/okian/csvmerge/internal/config"
	"github.com/okian/csvmerge/internal/domain/merge"
)

// execute runs the root command with args and returns stdout.
func execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeInputs(t *testing.T) (daily, companies string) {
	dir := t.TempDir()
	daily = filepath.Join(dir, "daily.csv")
	companies = filepath.Join(dir, "companies.csv")
	if err := os.WriteFile(daily, []byte("A,3/1/20,10\nA,3/3/20,15\nB,3/2/20,4\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(companies, []byte("A,Acme\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return daily, companies
}

func TestMergeCommand(t *testing.T) {
	convey.Convey("Given daily and companies files on disk", t, func() {
		daily, companies := writeInputs(t)
		args := []string{"merge", "--daily", daily, "--companies", companies, "--start", "3/1/20", "--end", "3/3/20", "-n", "1"}

		convey.Convey("When merging to stdout", func() {
			out, err := execute(args...)

			convey.Convey("Then the dense lagged series is printed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldEqual, "Acme,3/1/20,10,\nAcme,3/2/20,0,-10\nAcme,3/3/20,15,15")
			})
		})

		convey.Convey("When merging to an xlsx file", func() {
			target := filepath.Join(t.TempDir(), "merged.xlsx")
			_, err := execute(append(args, "--format", "xlsx", "-o", target)...)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the workbook holds a header and one row per day", func() {
				f, err := excelize.OpenFile(target)
				convey.So(err, convey.ShouldBeNil)
				defer func() { _ = f.Close() }()
				rows, err := f.GetRows(f.GetSheetName(0))
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(rows), convey.ShouldEqual, 4)
				convey.So(rows[2], convey.ShouldResemble, []string{"Acme", "3/2/20", "0", "-10"})
			})
		})

		convey.Convey("When strict mode meets an unknown company", func() {
			_, err := execute(append(args, "--strict")...)

			convey.Convey("Then the merge is rejected as invalid input", func() {
				convey.So(errors.Is(err, merge.ErrInvalidInput), convey.ShouldBeTrue)
				convey.So(errors.Is(err, merge.ErrUnknownEntity), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the window is reversed", func() {
			_, err := execute("merge", "--daily", daily, "--companies", companies, "--start", "3/3/20", "--end", "3/1/20")
			convey.So(errors.Is(err, merge.ErrWindow), convey.ShouldBeTrue)
		})

		convey.Convey("When a required flag is missing", func() {
			_, err := execute("merge", "--daily", daily)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestVersionCommand(t *testing.T) {
	convey.Convey("Given the version command", t, func() {
		out, err := execute("version")
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldStartWith, "csvmerge "+version)
		convey.So(out, convey.ShouldContainSubstring, "go: go")
	})
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		convey.Convey("An invalid log format is rejected", func() {
			_, err := execute("--log-format", "xml", "version")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("An invalid log level is rejected", func() {
			_, err := execute("--log-level", "loud", "version")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("Every subcommand is registered", func() {
			names := map[string]bool{}
			for _, c := range newRootCmd().Commands() {
				names[c.Name()] = true
			}
			for _, want := range []string{"serve", "merge", "probe", "version"} {
				convey.So(names[want], convey.ShouldBeTrue)
			}
		})
	})
}

func TestServiceWiring(t *testing.T) {
	convey.Convey("Given configuration from the environment", t, func() {
		t.Setenv("CSVMERGE_ADDR", "127.0.0.1:0")
		t.Setenv("CSVMERGE_DUPLICATE_POLICY", "sum")
		cfg, err := config.Load(context.Background(), "")
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.Addr, convey.ShouldEqual, "127.0.0.1:0")

		convey.Convey("When the service and HTTP server are built from it", func() {
			svc, err := newService(cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
			defer svc.Stop()

			srv := newHTTPServer(context.Background(), cfg, svc)

			convey.Convey("Then the upload page, health, docs and request ids are served", func() {
				for _, path := range []string{"/", "/healthz", "/api-docs", "/openapi.yaml", "/metrics", "/stats"} {
					w := httptest.NewRecorder()
					srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
					convey.So(w.Header().Get("X-Request-ID"), convey.ShouldNotBeEmpty)
				}
			})

			convey.Convey("And the configured timeouts are applied", func() {
				convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)
				convey.So(srv.WriteTimeout, convey.ShouldEqual, writeTimeout)
			})
		})

		convey.Convey("When the duplicate policy is unknown", func() {
			cfg.DuplicatePolicy = "average"
			_, err := newService(cfg)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestServe(t *testing.T) {
	convey.Convey("Given a config listening on an ephemeral port", t, func() {
		cfg := config.New()
		cfg.Addr = "127.0.0.1:0"

		convey.Convey("Serve returns cleanly when its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			convey.So(serve(ctx, cfg), convey.ShouldBeNil)
		})

		convey.Convey("Serve reports a listener failure", func() {
			cfg.Addr = "invalid-address"
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := serve(ctx, cfg)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(strings.Contains(err.Error(), "HTTP server failed"), convey.ShouldBeTrue)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metrics updaters", t, func() {
		cfg := config.New()
		svc, err := newService(cfg)
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
		defer svc.Stop()

		convey.Convey("They update without panicking and stop with their context", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(context.Background(), svc) }, convey.ShouldNotPanic)

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			convey.So(func() {
				startSystemMetricsUpdater(ctx)
				startServiceMetricsUpdater(ctx, svc)
			}, convey.ShouldNotPanic)
		})
	})
}
