package metrics

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// Register registers every collector with the default registry.
// Safe to call more than once; collectors already registered are skipped.
func Register() error {
	registerOnce.Do(func() {
		registerErr = RegisterWith(prometheus.DefaultRegisterer)
	})
	return registerErr
}

// RegisterWith registers every collector with reg.
func RegisterWith(reg prometheus.Registerer) error {
	all := make([]prometheus.Collector, 0, 16)
	all = append(all, embeddingCollectors()...)
	all = append(all, loaderCollectors()...)
	all = append(all, httpCollectors()...)

	for _, c := range all {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("register collector: %w", err)
		}
	}
	return nil
}
