package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "kc_ladder_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry     *prometheus.Registry
	cyclesRun    prometheus.Counter
	cyclesFailed *prometheus.CounterVec
	ordersPlaced prometheus.Counter
	ordersFailed prometheus.Counter
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	cyclesRun := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cycles_total",
		Help:      "Total number of trading cycles started.",
	})
	cyclesFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cycles_failed_total",
		Help:      "Total number of failed trading cycles by error kind.",
	}, []string{"kind"})
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_placed_total",
		Help:      "Total number of orders accepted by the exchange.",
	})
	ordersFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_failed_total",
		Help:      "Total number of orders rejected by the exchange.",
	})

	registry.MustRegister(cyclesRun, cyclesFailed, ordersPlaced, ordersFailed)

	m := &Metrics{
		CyclesRun:    promCounter{cyclesRun},
		CyclesFailed: promCounter{cyclesFailed.WithLabelValues("transient")},
		ConfigErrors: promCounter{cyclesFailed.WithLabelValues("config")},
		OrdersPlaced: promCounter{ordersPlaced},
		OrdersFailed: promCounter{ordersFailed},
	}

	return &Prometheus{
		Metrics:      m,
		registry:     registry,
		cyclesRun:    cyclesRun,
		cyclesFailed: cyclesFailed,
		ordersPlaced: ordersPlaced,
		ordersFailed: ordersFailed,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Serve exposes the registry on addr at path until ctx is done. Listener
// errors other than a clean shutdown are passed to onErr.
func (p *Prometheus) Serve(ctx context.Context, addr, path string, onErr func(error)) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, p.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && onErr != nil {
			onErr(err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv
}
