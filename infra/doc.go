// Package infra contains technical adapters around the solver: the MQTT
// progress feed, metrics exporters, error reporting and the zerolog
// backed logger. These packages should depend only on the interfaces
// defined in the core packages.
package infra
