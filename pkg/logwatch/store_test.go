package logwatch_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gatewaylabs/logwatch/pkg/logwatch"
	"github.com/gatewaylabs/logwatch/pkg/testutil"
)

func testEvent(ts time.Time, client string, status int, uri string) logwatch.AccessEvent {
	return logwatch.AccessEvent{
		Timestamp:     ts,
		RemoteAddr:    client,
		ClientIP:      client,
		NetworkScope:  logwatch.ClassifyScope(client),
		RequestMethod: "GET",
		RequestURI:    uri,
		RequestPath:   uri,
		Status:        status,
		StatusFamily:  logwatch.StatusFamily(status),
		APIKey:        logwatch.AnonymousAPIKey,
		UserAgent:     "test-agent",
	}
}

var _ = Describe("EventStore", func() {
	var (
		ctx    context.Context
		helper *testutil.SQLiteTestHelper
		store  *logwatch.EventStore
		base   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		base = time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

		var err error
		helper, err = testutil.NewSQLiteTestHelper(ctx)
		Expect(err).NotTo(HaveOccurred())

		store = logwatch.NewEventStore(helper.Client, 0)
	})

	AfterEach(func() {
		if helper != nil {
			_ = helper.Close()
		}
	})

	Describe("CommitBatch", func() {
		It("should insert new events", func() {
			result, err := store.CommitBatch(ctx, []logwatch.AccessEvent{
				testEvent(base, "1.2.3.4", 200, "/a"),
				testEvent(base.Add(time.Second), "1.2.3.4", 200, "/b"),
			}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Inserted).To(Equal(int64(2)))
		})

		It("should ignore duplicate tuples", func() {
			batch := []logwatch.AccessEvent{testEvent(base, "1.2.3.4", 200, "/a")}

			result, err := store.CommitBatch(ctx, batch, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Inserted).To(Equal(int64(1)))

			result, err = store.CommitBatch(ctx, batch, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Inserted).To(BeZero())

			count, err := store.Count(ctx, logwatch.QueryOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
		})

		It("should distinguish events differing only in one tuple field", func() {
			result, err := store.CommitBatch(ctx, []logwatch.AccessEvent{
				testEvent(base, "1.2.3.4", 200, "/a"),
				testEvent(base, "1.2.3.4", 404, "/a"),
			}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Inserted).To(Equal(int64(2)))
		})

		It("should purge events beyond the retention age", func() {
			_, err := store.CommitBatch(ctx, []logwatch.AccessEvent{
				testEvent(base.Add(-48*time.Hour), "1.2.3.4", 200, "/old"),
				testEvent(base, "1.2.3.4", 200, "/new"),
			}, 24*time.Hour)
			Expect(err).NotTo(HaveOccurred())

			events, err := store.Query(ctx, logwatch.QueryOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].RequestURI).To(Equal("/new"))
		})

		It("should anchor the purge cutoff to the latest stored event", func() {
			// Nothing in this replayed slice is older than 24h relative
			// to its own newest entry, so nothing is purged.
			_, err := store.CommitBatch(ctx, []logwatch.AccessEvent{
				testEvent(base.Add(-365*24*time.Hour), "1.2.3.4", 200, "/a"),
				testEvent(base.Add(-365*24*time.Hour+time.Hour), "1.2.3.4", 200, "/b"),
			}, 24*time.Hour)
			Expect(err).NotTo(HaveOccurred())

			count, err := store.Count(ctx, logwatch.QueryOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(2)))
		})

		It("should not purge when retention is disabled", func() {
			result, err := store.CommitBatch(ctx, []logwatch.AccessEvent{
				testEvent(base.Add(-1000*24*time.Hour), "1.2.3.4", 200, "/ancient"),
				testEvent(base, "1.2.3.4", 200, "/new"),
			}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Purged).To(BeZero())
		})
	})

	Describe("Query", func() {
		BeforeEach(func() {
			_, err := store.CommitBatch(ctx, []logwatch.AccessEvent{
				testEvent(base, "1.2.3.4", 200, "/a"),
				testEvent(base.Add(time.Minute), "5.5.5.5", 200, "/b"),
				testEvent(base.Add(2*time.Minute), "1.2.3.4", 404, "/c"),
			}, 0)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return events newest-first", func() {
			events, err := store.Query(ctx, logwatch.QueryOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(3))
			Expect(events[0].RequestURI).To(Equal("/c"))
			Expect(events[2].RequestURI).To(Equal("/a"))
		})

		It("should round-trip every stored field", func() {
			event := testEvent(base.Add(time.Hour), "9.9.9.9", 502, "/v1/chat?x=1")
			event.ForwardedFor = "9.9.9.9, 10.0.0.1"
			event.RequestPath = "/v1/chat"
			event.RequestTimeMs = 1234
			event.BodyBytesSent = 10
			event.BytesSent = 99
			event.APIKey = "key-1"
			event.Referer = "https://ref.example"
			event.UpstreamAddr = "10.1.1.1:8000"
			event.UpstreamStatus = "502"
			event.UpstreamResponseTimeMs = 1200
			event.Flags = []string{logwatch.FlagUpstreamError}

			_, err := store.CommitBatch(ctx, []logwatch.AccessEvent{event}, 0)
			Expect(err).NotTo(HaveOccurred())

			events, err := store.Query(ctx, logwatch.QueryOptions{Limit: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0]).To(Equal(event))
		})

		It("should apply the limit", func() {
			events, err := store.Query(ctx, logwatch.QueryOptions{Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(2))
		})

		It("should filter by since", func() {
			events, err := store.Query(ctx, logwatch.QueryOptions{
				Since: base.Add(time.Minute),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(2))
		})

		It("should exclude listed clients", func() {
			events, err := store.Query(ctx, logwatch.QueryOptions{
				ExcludeClients: []string{"5.5.5.5"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(2))
			for _, e := range events {
				Expect(e.ClientIP).NotTo(Equal("5.5.5.5"))
			}
		})
	})

	Describe("Count", func() {
		BeforeEach(func() {
			_, err := store.CommitBatch(ctx, []logwatch.AccessEvent{
				testEvent(base, "1.2.3.4", 200, "/a"),
				testEvent(base.Add(time.Minute), "5.5.5.5", 200, "/b"),
				testEvent(base.Add(2*time.Minute), "1.2.3.4", 404, "/c"),
			}, 0)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should match the filter shape of Query", func() {
			count, err := store.Count(ctx, logwatch.QueryOptions{
				Since:          base.Add(time.Minute),
				ExcludeClients: []string{"5.5.5.5"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
		})

		It("should clamp to the max scan bound", func() {
			capped := logwatch.NewEventStore(helper.Client, 2)
			count, err := capped.Count(ctx, logwatch.QueryOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(2)))
		})
	})

	Describe("LatestTimestamp", func() {
		It("should return a zero time for an empty store", func() {
			latest, err := store.LatestTimestamp(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.IsZero()).To(BeTrue())
		})

		It("should return the newest stored event time", func() {
			_, err := store.CommitBatch(ctx, []logwatch.AccessEvent{
				testEvent(base, "1.2.3.4", 200, "/a"),
				testEvent(base.Add(time.Minute), "1.2.3.4", 200, "/b"),
			}, 0)
			Expect(err).NotTo(HaveOccurred())

			latest, err := store.LatestTimestamp(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest).To(Equal(base.Add(time.Minute)))
		})
	})
})
