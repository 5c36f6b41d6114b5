package util_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gatewaylabs/logwatch/pkg/util"
)

var _ = Describe("StartMetricsServer", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	})

	Context("when the server is disabled", func() {
		It("should return a nil server", func() {
			server, err := util.StartMetricsServer(util.MetricsServerConfig{
				Enabled: false,
			}, logger)

			Expect(err).ToNot(HaveOccurred())
			Expect(server).To(BeNil())
		})
	})

	Context("when the server is enabled", func() {
		var server *http.Server

		startServer := func() {
			var err error
			// Port 0 binds a random free port; Addr reports the real one.
			server, err = util.StartMetricsServer(util.MetricsServerConfig{
				Enabled:       true,
				ListenAddress: "127.0.0.1",
				ListenPort:    0,
			}, logger)
			Expect(err).ToNot(HaveOccurred())
			Expect(server).ToNot(BeNil())
		}

		AfterEach(func() {
			if server != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = server.Shutdown(ctx)
			}
		})

		It("should serve prometheus metrics on /metrics", func() {
			startServer()

			resp, err := http.Get(fmt.Sprintf("http://%s/metrics", server.Addr))
			Expect(err).ToNot(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("# HELP"))
		})

		It("should return 404 for other paths", func() {
			startServer()

			resp, err := http.Get(fmt.Sprintf("http://%s/nonexistent", server.Addr))
			Expect(err).ToNot(HaveOccurred())
			defer func() {
				_ = resp.Body.Close()
			}()

			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should stop serving after shutdown", func() {
			startServer()

			resp, err := http.Get(fmt.Sprintf("http://%s/metrics", server.Addr))
			Expect(err).ToNot(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			Expect(server.Shutdown(ctx)).To(Succeed())

			_, err = http.Get(fmt.Sprintf("http://%s/metrics", server.Addr))
			Expect(err).To(HaveOccurred())

			server = nil
		})
	})

	Context("when the listen address is invalid", func() {
		It("should return an error instead of a server", func() {
			server, err := util.StartMetricsServer(util.MetricsServerConfig{
				Enabled:       true,
				ListenAddress: "invalid-address",
				ListenPort:    9999,
			}, logger)

			Expect(err).To(HaveOccurred())
			Expect(server).To(BeNil())
		})
	})
})
