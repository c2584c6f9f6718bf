package gpu

// TemperatureProbe reports a discrete GPU's core temperature. It is read
// for logs and metrics only; the fan policy ignores it.
type TemperatureProbe interface {
	Temperature() (int, error)
	Name() string
	Shutdown() error
}
