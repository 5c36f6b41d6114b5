package logwatch_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gatewaylabs/logwatch/pkg/logwatch"
	"github.com/gatewaylabs/logwatch/pkg/testutil"
)

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		dir     string
		logPath string
		base    time.Time
	)

	newService := func(mutate func(*logwatch.Config)) *logwatch.Service {
		cfg := logwatch.Config{
			Logger:         slog.New(slog.NewJSONHandler(GinkgoWriter, nil)),
			LogPath:        logPath,
			DatabasePath:   filepath.Join(dir, "events.db"),
			CheckpointPath: filepath.Join(dir, "checkpoint.json"),
			AlertWindow:    10 * time.Minute,
		}
		if mutate != nil {
			mutate(&cfg)
		}
		service, err := logwatch.NewService(ctx, cfg)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(service.Close)
		return service
	}

	BeforeEach(func() {
		ctx = context.Background()
		base = time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

		var err error
		dir, err = os.MkdirTemp("", "logwatch-service-")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = os.RemoveAll(dir) })

		logPath = filepath.Join(dir, "access.log")
	})

	It("should ingest pending lines before serving a summary", func() {
		Expect(testutil.WriteLogFile(logPath,
			combinedLine(base, "10.0.0.5", "GET", "/api/chat", 200, 512),
			combinedLine(base.Add(time.Minute), "10.0.0.5", "GET", "/api/chat", 200, 512),
			combinedLine(base.Add(2*time.Minute), "8.8.8.8", "GET", "/missing", 404, 64),
		)).To(Succeed())

		service := newService(nil)

		summary, err := service.GetSummary(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Totals.Requests).To(Equal(3))
		Expect(summary.Totals.UniqueClients).To(Equal(2))
		Expect(summary.StatusFamilies).To(Equal(map[string]int{"2xx": 2, "4xx": 1}))
		Expect(summary.TopClients[0].Client).To(Equal("10.0.0.5"))
		Expect(summary.TopClients[0].Count).To(Equal(2))
	})

	It("should pick up lines appended between reads", func() {
		Expect(testutil.WriteLogFile(logPath,
			combinedLine(base, "10.0.0.5", "GET", "/a", 200, 100),
		)).To(Succeed())

		service := newService(nil)

		summary, err := service.GetSummary(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Totals.Requests).To(Equal(1))

		Expect(testutil.AppendLogLines(logPath,
			combinedLine(base.Add(time.Minute), "10.0.0.5", "GET", "/b", 200, 100),
		)).To(Succeed())

		summary, err = service.GetSummary(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Totals.Requests).To(Equal(2))
	})

	It("should exclude ignored clients from results but count them", func() {
		Expect(testutil.WriteLogFile(logPath,
			combinedLine(base, "10.0.0.5", "GET", "/a", 200, 100),
			combinedLine(base.Add(time.Minute), "5.5.5.5", "GET", "/probe", 200, 100),
			combinedLine(base.Add(2*time.Minute), "5.5.5.5", "GET", "/probe", 200, 100),
		)).To(Succeed())

		service := newService(func(cfg *logwatch.Config) {
			cfg.IgnoredClients = []string{"5.5.5.5"}
		})

		result, err := service.GetEvents(ctx, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Total).To(Equal(int64(1)))
		Expect(result.TotalIncludingIgnored).To(Equal(int64(3)))
		Expect(result.IgnoredCount).To(Equal(int64(2)))
		Expect(result.Events).To(HaveLen(1))
		Expect(result.Events[0].ClientIP).To(Equal("10.0.0.5"))

		summary, err := service.GetSummary(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Totals.Requests).To(Equal(1))
		Expect(summary.TopClients).To(HaveLen(1))
	})

	It("should list events newest first and flag truncation", func() {
		Expect(testutil.WriteLogFile(logPath,
			combinedLine(base, "10.0.0.5", "GET", "/a", 200, 100),
			combinedLine(base.Add(time.Minute), "10.0.0.5", "GET", "/b", 200, 100),
			combinedLine(base.Add(2*time.Minute), "10.0.0.5", "GET", "/c", 200, 100),
		)).To(Succeed())

		service := newService(nil)

		result, err := service.GetEvents(ctx, 2, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Total).To(Equal(int64(3)))
		Expect(result.Events).To(HaveLen(2))
		Expect(result.Truncated).To(BeTrue())
		Expect(result.Events[0].RequestURI).To(Equal("/c"))
		Expect(result.Events[1].RequestURI).To(Equal("/b"))
	})

	It("should restrict the listing to a trailing window", func() {
		Expect(testutil.WriteLogFile(logPath,
			combinedLine(base.Add(-2*time.Hour), "10.0.0.5", "GET", "/old", 200, 100),
			combinedLine(base, "10.0.0.5", "GET", "/new", 200, 100),
		)).To(Succeed())

		service := newService(nil)

		result, err := service.GetEvents(ctx, 0, 60)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Total).To(Equal(int64(1)))
		Expect(result.Events).To(HaveLen(1))
		Expect(result.Events[0].RequestURI).To(Equal("/new"))
		Expect(result.Truncated).To(BeFalse())
	})

	It("should serve empty results when nothing was ever ingested", func() {
		service := newService(nil)

		summary, err := service.GetSummary(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Totals.Requests).To(BeZero())

		result, err := service.GetEvents(ctx, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Total).To(BeZero())
		Expect(result.Events).To(BeEmpty())
		Expect(result.Truncated).To(BeFalse())
	})

	It("should serve last committed data when the log becomes unreadable", func() {
		Expect(testutil.WriteLogFile(logPath,
			combinedLine(base, "10.0.0.5", "GET", "/a", 200, 100),
		)).To(Succeed())

		service := newService(nil)

		summary, err := service.GetSummary(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Totals.Requests).To(Equal(1))

		// The log disappearing is a no-op sync; reads keep working.
		Expect(os.Remove(logPath)).To(Succeed())

		summary, err = service.GetSummary(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Totals.Requests).To(Equal(1))
	})

	It("should persist the checkpoint across service restarts", func() {
		Expect(testutil.WriteLogFile(logPath,
			combinedLine(base, "10.0.0.5", "GET", "/a", 200, 100),
		)).To(Succeed())

		service := newService(nil)
		first, err := service.Sync(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.EventsInserted).To(Equal(int64(1)))
		Expect(service.Close()).To(Succeed())

		reopened := newService(nil)
		second, err := reopened.Sync(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.LinesRead).To(BeZero())
		Expect(second.EventsInserted).To(BeZero())
	})
})
