package app

import "github.com/kilianp07/rcpsched/core/factory"

func moduleConfig(typ string) factory.ModuleConfig {
	return factory.ModuleConfig{Type: typ}
}
