package logic

// ReferenceTemperatureC is the temperature the TDS curve is calibrated at.
const ReferenceTemperatureC = 25.0

// TempCoefficient is the per-degree conductivity drift used for compensation.
const TempCoefficient = 0.02

// Calibration converts a filtered ADC reading into a TDS concentration.
//
// The curve is the empirical cubic shipped with the common analog TDS probe
// boards. Its coefficients are configuration, not something derived here.
// The cubic has no real stationary point, so the result is monotonically
// increasing in the raw value as long as the compensation coefficient stays
// positive (water above -25 °C).
type Calibration struct {
	VRef              float64 `yaml:"vref"`
	ADCMax            int     `yaml:"adc_max"`
	AttenCompensation float64 `yaml:"atten_compensation"`

	Cubic     float64 `yaml:"cubic"`
	Quadratic float64 `yaml:"quadratic"`
	Linear    float64 `yaml:"linear"`
	Scale     float64 `yaml:"scale"`
}

// DefaultCalibration matches an ADS1115 at ±4.096 V full scale feeding the
// stock probe curve.
func DefaultCalibration() Calibration {
	return Calibration{
		VRef:              4.096,
		ADCMax:            32768,
		AttenCompensation: 1.0,
		Cubic:             133.42,
		Quadratic:         255.86,
		Linear:            857.39,
		Scale:             0.5,
	}
}

// Voltage returns the measured voltage for a raw ADC value.
func (c Calibration) Voltage(raw int) float64 {
	vPerDiv := (c.VRef / float64(c.ADCMax)) * c.AttenCompensation
	return float64(raw) * vPerDiv
}

// CompensatedVoltage normalises the measured voltage to 25 °C.
func (c Calibration) CompensatedVoltage(raw int, temperatureC float64) float64 {
	coef := 1.0 + TempCoefficient*(temperatureC-ReferenceTemperatureC)
	return c.Voltage(raw) / coef
}

// PPM converts a median raw reading taken at temperatureC into ppm.
// Out-of-range inputs are not rejected; callers may clamp downstream.
func (c Calibration) PPM(raw int, temperatureC float64) float64 {
	v := c.CompensatedVoltage(raw, temperatureC)
	return (c.Cubic*v*v*v - c.Quadratic*v*v + c.Linear*v) * c.Scale
}
