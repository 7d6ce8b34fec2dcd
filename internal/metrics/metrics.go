package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	CyclesRun    Counter
	CyclesFailed Counter
	ConfigErrors Counter
	OrdersPlaced Counter
	OrdersFailed Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		CyclesRun:    n,
		CyclesFailed: n,
		ConfigErrors: n,
		OrdersPlaced: n,
		OrdersFailed: n,
	}
}
