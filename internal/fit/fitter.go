package fit

import (
	"errors"
	"math"

	"heater_host/internal/logger"
)

// infeasibleCost is the sentinel returned for non-positive model
// parameters, keeping the minimizer out of the undefined region.
const infeasibleCost = 9.9e99

// defaultDelaySeed is the initial guess for the delay parameter.
const defaultDelaySeed = 10.0

// Parameter names handed to the minimizer.
const (
	ParamGain         = "gain"
	ParamTimeConstant = "time_constant"
	ParamDelay        = "delay"
)

var (
	ErrNoPWMEdges    = errors.New("fit: need heater on and off PWM edges")
	ErrNoTempSamples = errors.New("fit: no temperature samples recorded")
	ErrNoIdleSamples = errors.New("fit: no samples before the first power-on edge")
)

// Minimizer is a derivative-free optimizer over named parameters. It must
// tolerate sentinel-valued costs for infeasible points.
type Minimizer interface {
	Minimize(names []string, guess map[string]float64, cost func(params map[string]float64) float64) map[string]float64
}

// Result is a fitted first-order-plus-delay thermal model.
type Result struct {
	Gain         float64 // °C per unit power
	TimeConstant float64 // seconds
	DelayTime    float64 // seconds
	Ambient      float64 // °C baseline during the test
}

// Fitter fits the FOPDT model to the samples recorded by a bump test.
type Fitter struct {
	pwmSamples  []Sample
	tempSamples []Sample
	ambient     float64
	min         Minimizer
	log         *logger.Logger
}

// NewFitter validates the sample streams and precomputes the ambient
// temperature as the mean of all samples recorded before the first
// power-on edge.
func NewFitter(pwmSamples, tempSamples []Sample, min Minimizer, log *logger.Logger) (*Fitter, error) {
	if len(pwmSamples) < 2 {
		return nil, ErrNoPWMEdges
	}
	if len(tempSamples) == 0 {
		return nil, ErrNoTempSamples
	}
	heaterOnTime := pwmSamples[0].Time
	sum, n := 0.0, 0
	for _, s := range tempSamples {
		if s.Time <= heaterOnTime {
			sum += s.Value
			n++
		}
	}
	if n == 0 {
		return nil, ErrNoIdleSamples
	}
	return &Fitter{
		pwmSamples:  pwmSamples,
		tempSamples: tempSamples,
		ambient:     sum / float64(n),
		min:         min,
		log:         log,
	}, nil
}

// Ambient returns the baseline temperature estimated from the pre-heat
// samples.
func (f *Fitter) Ambient() float64 { return f.ambient }

// Simulate predicts the absolute temperature at every recorded sample
// timestamp for the given model parameters: exponential rise toward
// gain*power inside the heating window, exponential decay from the peak
// afterwards, smoothed over the delay time.
func (f *Fitter) Simulate(gain, timeConstant, delay float64) []float64 {
	heaterOnTime := f.pwmSamples[0].Time
	heaterOffTime := f.pwmSamples[1].Time
	gain *= f.pwmSamples[0].Value
	invTimeConstant := 1.0 / timeConstant
	invDelay := 1.0 / delay
	heatTime := heaterOffTime - heaterOnTime
	peakTemp := gain * (1.0 - math.Exp(-heatTime*invTimeConstant))
	smoothTemp, lastTime := 0.0, 0.0
	out := make([]float64, 0, len(f.tempSamples))
	for _, s := range f.tempSamples {
		relTemp := 0.0
		if s.Time > heaterOffTime {
			coolTime := s.Time - heaterOffTime
			relTemp = peakTemp * math.Exp(-coolTime*invTimeConstant)
		} else if s.Time > heaterOnTime {
			relTemp = gain * (1.0 - math.Exp(-(s.Time-heaterOnTime)*invTimeConstant))
		}
		timeDiff := s.Time - lastTime
		lastTime = s.Time
		smoothFactor := 1.0 - math.Exp(-timeDiff*invDelay)
		smoothTemp += (relTemp - smoothTemp) * smoothFactor
		out = append(out, f.ambient+smoothTemp)
	}
	return out
}

// Cost is the sum of squared residuals between measured and simulated
// temperatures, or the infeasible sentinel for non-positive parameters.
func (f *Fitter) Cost(params map[string]float64) float64 {
	gain := params[ParamGain]
	timeConstant := params[ParamTimeConstant]
	delay := params[ParamDelay]
	if gain <= 0 || timeConstant <= 0 || delay <= 0 {
		return infeasibleCost
	}
	model := f.Simulate(gain, timeConstant, delay)
	err := 0.0
	for i, s := range f.tempSamples {
		diff := s.Value - model[i]
		err += diff * diff
	}
	return err
}

// Fit seeds the model from the recorded extremes and runs the minimizer.
func (f *Fitter) Fit() (Result, error) {
	maxTemp, maxTempTime := f.tempSamples[0].Value, f.tempSamples[0].Time
	for _, s := range f.tempSamples {
		if s.Value >= maxTemp {
			maxTemp = s.Value
			maxTempTime = s.Time
		}
	}
	guess := map[string]float64{
		ParamGain:         maxTemp * 2.0,
		ParamTimeConstant: f.tempSamples[len(f.tempSamples)-1].Time - maxTempTime,
		ParamDelay:        defaultDelaySeed,
	}
	fitted := f.min.Minimize([]string{ParamGain, ParamTimeConstant, ParamDelay}, guess, f.Cost)
	res := Result{
		Gain:         fitted[ParamGain],
		TimeConstant: fitted[ParamTimeConstant],
		DelayTime:    fitted[ParamDelay],
		Ambient:      f.ambient,
	}
	f.log.Infow("fopdt_fit", "ambient", res.Ambient, "gain", res.Gain,
		"time_constant", res.TimeConstant, "delay_time", res.DelayTime)
	return res, nil
}
