package handler_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/gstats/internal/handler"
)

type fakeQuerier struct {
	body  []byte
	err   error
	calls int
}

func (q *fakeQuerier) Query(ctx context.Context) ([]byte, error) {
	q.calls++
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("query without deadline")
	}
	return q.body, q.err
}

var _ = Describe("StatusHandler", func() {
	const report = `{"my_app":{"started":3,"finished":2,"processing":1,"processing_time":{"avg":20,"std":8.16496580927726}}}`

	var (
		querier *fakeQuerier
		mux     *http.ServeMux
	)

	BeforeEach(func() {
		querier = &fakeQuerier{body: []byte(report)}
		allowed, err := handler.NewAllowList([]string{"127.0.0.1"})
		Expect(err).NotTo(HaveOccurred())

		log := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		status := handler.NewStatusHandler(log, querier, allowed, time.Second)
		exporter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		})
		mux = handler.NewStatusMux(status, exporter)
	})

	do := func(method, path, remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	It("should relay the collector reply verbatim", func() {
		w := do(http.MethodGet, handler.StatusPath, "127.0.0.1:5000")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(Equal("application/json"))
		Expect(w.Body.String()).To(Equal(report))
		Expect(querier.calls).To(Equal(1))
	})

	It("should relay an ERROR reply untouched", func() {
		querier.body = []byte("ERROR")
		w := do(http.MethodGet, handler.StatusPath, "127.0.0.1:5000")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("ERROR"))
		Expect(w.Header().Get("Content-Type")).To(Equal("text/plain; charset=utf-8"))
	})

	It("should forbid callers outside the allow-list without querying", func() {
		w := do(http.MethodGet, handler.StatusPath, "10.0.0.7:5000")

		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(querier.calls).To(BeZero())
	})

	It("should answer 502 when the collector cannot be reached", func() {
		querier.err = errors.New("circuit open")
		w := do(http.MethodGet, handler.StatusPath, "127.0.0.1:5000")

		Expect(w.Code).To(Equal(http.StatusBadGateway))
	})

	It("should refuse other methods", func() {
		w := do(http.MethodPost, handler.StatusPath, "127.0.0.1:5000")

		Expect(w.Code).To(Equal(http.StatusMethodNotAllowed))
		Expect(querier.calls).To(BeZero())
	})

	It("should answer unknown paths with 404", func() {
		w := do(http.MethodGet, "/status", "127.0.0.1:5000")
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("should guard /metrics with the same allow-list", func() {
		Expect(do(http.MethodGet, "/metrics", "127.0.0.1:5000").Code).To(Equal(http.StatusOK))
		Expect(do(http.MethodGet, "/metrics", "10.0.0.7:5000").Code).To(Equal(http.StatusForbidden))
	})
})
