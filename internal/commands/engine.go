package commands

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/soypat/invertify/filters"
)

// newInverter returns the GPU inverter when requested and available, the CPU
// inverter otherwise. GPU failures on a single image fall back to the CPU. The returned func releases backend resources.
func newInverter(useGPU bool, log zerolog.Logger) (filters.Inverter, func()) {
	if !useGPU {
		return filters.CPUInverter{}, func() {}
	}
	gpu, err := filters.NewGPUInverter()
	if err != nil {
		ev := log.Warn()
		if !errors.Is(err, filters.ErrNoGPU) {
			ev = log.Error()
		}
		ev.Err(err).Msg("gpu backend unavailable, using cpu")
		return filters.CPUInverter{}, func() {}
	}
	log.Debug().Msg("using gpu backend")
	inv := filters.FallbackInverter{
		Primary:   gpu,
		Secondary: filters.CPUInverter{},
		OnFallback: func(err error) {
			log.Warn().Err(err).Msg("gpu invert failed, retrying on cpu")
		},
	}
	return inv, gpu.Close
}
