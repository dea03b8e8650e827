// Package sandbox evaluates user strategy code inside an embedded
// ECMAScript interpreter. Each evaluation gets a fresh runtime with no
// host capabilities registered: no filesystem, no network, no process
// access. The only bridge into Go is the read-only "ta" indicator
// helper namespace.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
	logger "github.com/sirupsen/logrus"

	"forwardtester/src/indicators"
	"forwardtester/src/model"
)

// entrypointName is the function every strategy source must define.
const entrypointName = "strategyLogic"

// TimeoutError marks an evaluation killed by the hard deadline.
type TimeoutError struct {
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("strategy evaluation exceeded %s", e.Limit)
}

// RuntimeError marks a script failure: a thrown exception, a missing
// entrypoint, or a result with the wrong shape.
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string {
	return "strategy runtime error: " + e.Message
}

// Sandbox runs strategy sources against candle history. Safe for
// concurrent use; every call builds its own interpreter.
type Sandbox struct {
	timeout time.Duration
}

func NewSandbox() *Sandbox {
	return &Sandbox{timeout: GetConfig().Timeout}
}

func NewSandboxWithTimeout(timeout time.Duration) *Sandbox {
	return &Sandbox{timeout: timeout}
}

// Evaluate runs the strategy source against the candle series. On any
// failure it returns an all-false series carrying the error marker plus
// the typed error; the caller always gets a series it can interpret.
func (s *Sandbox) Evaluate(ctx context.Context, source string, candles *model.CandleSeries) (*model.SignalSeries, error) {
	n := candles.Len()

	vm := goja.New()
	registerIndicators(vm)

	timer := time.AfterFunc(s.timeout, func() {
		vm.Interrupt("deadline exceeded")
	})
	defer timer.Stop()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	series, err := run(vm, source, candles)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			// An interrupt can come from the caller's context as well as
			// the evaluation deadline. Only blame the strategy when the
			// deadline actually fired.
			if ctxErr := ctx.Err(); ctxErr != nil {
				cancelled := fmt.Errorf("strategy evaluation cancelled: %w", ctxErr)
				return model.EmptySignalSeries(n, cancelled.Error()), cancelled
			}
			logger.WithFields(map[string]interface{}{
				"timeout": s.timeout.String(),
			}).Warn("Strategy evaluation interrupted")
			timeoutErr := &TimeoutError{Limit: s.timeout}
			return model.EmptySignalSeries(n, timeoutErr.Error()), timeoutErr
		}

		runtimeErr := &RuntimeError{Message: err.Error()}
		return model.EmptySignalSeries(n, runtimeErr.Error()), runtimeErr
	}

	return series, nil
}

// run executes the source and extracts the signal series. Panics from
// the interpreter or the native helpers stay inside this frame.
func run(vm *goja.Runtime, source string, candles *model.CandleSeries) (series *model.SignalSeries, err error) {
	defer func() {
		if r := recover(); r != nil {
			if recovered, ok := r.(error); ok {
				err = recovered
				return
			}
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()

	if _, err := vm.RunString(source); err != nil {
		return nil, err
	}

	entrypoint, ok := goja.AssertFunction(vm.Get(entrypointName))
	if !ok {
		return nil, fmt.Errorf("source does not define a %s function", entrypointName)
	}

	// goja wraps Go slices by reference, so the script gets copies;
	// writes inside the VM must never reach the host series.
	result, err := entrypoint(goja.Undefined(), vm.ToValue(map[string]interface{}{
		"open":   copyFloats(candles.Open),
		"high":   copyFloats(candles.High),
		"low":    copyFloats(candles.Low),
		"close":  copyFloats(candles.Close),
		"volume": copyFloats(candles.Volume),
	}))
	if err != nil {
		return nil, err
	}

	return extractSeries(result, candles.Len())
}

func copyFloats(src []float64) []float64 {
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

func extractSeries(result goja.Value, n int) (*model.SignalSeries, error) {
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, errors.New("strategyLogic returned no result")
	}

	obj, ok := result.Export().(map[string]interface{})
	if !ok {
		return nil, errors.New("strategyLogic result is not an object")
	}

	entry, err := toBoolSlice(obj["entry"], "entry", n)
	if err != nil {
		return nil, err
	}
	exit, err := toBoolSlice(obj["exit"], "exit", n)
	if err != nil {
		return nil, err
	}
	direction, err := toDirectionSlice(obj["direction"], n)
	if err != nil {
		return nil, err
	}

	return &model.SignalSeries{Entry: entry, Exit: exit, Direction: direction}, nil
}

func toBoolSlice(raw interface{}, field string, n int) ([]bool, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("result field %q is not an array", field)
	}
	if len(items) != n {
		return nil, fmt.Errorf("result field %q has length %d, want %d", field, len(items), n)
	}

	out := make([]bool, n)
	for i, item := range items {
		b, ok := item.(bool)
		if !ok {
			return nil, fmt.Errorf("result field %q[%d] is not a boolean", field, i)
		}
		out[i] = b
	}
	return out, nil
}

func toDirectionSlice(raw interface{}, n int) ([]model.Direction, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, errors.New(`result field "direction" is not an array`)
	}
	if len(items) != n {
		return nil, fmt.Errorf(`result field "direction" has length %d, want %d`, len(items), n)
	}

	out := make([]model.Direction, n)
	for i, item := range items {
		if item == nil {
			continue
		}
		str, ok := item.(string)
		if !ok || (str != string(model.DirectionBuy) && str != string(model.DirectionSell)) {
			return nil, fmt.Errorf(`result field "direction"[%d] must be "BUY", "SELL" or null`, i)
		}
		out[i] = model.Direction(str)
	}
	return out, nil
}

// registerIndicators exposes the fixed helper library under "ta".
func registerIndicators(vm *goja.Runtime) {
	ta := vm.NewObject()

	_ = ta.Set("ema", func(values []float64, period int) []float64 {
		return indicators.EMA(values, period)
	})
	_ = ta.Set("sma", func(values []float64, period int) []float64 {
		return indicators.SMA(values, period)
	})
	_ = ta.Set("rsi", func(values []float64, period int) []float64 {
		return indicators.RSI(values, period)
	})
	_ = ta.Set("atr", func(high, low, closes []float64, period int) []float64 {
		return indicators.ATR(high, low, closes, period)
	})
	_ = ta.Set("fractals", func(high, low []float64, period int) map[string][]bool {
		up, down := indicators.Fractals(high, low, period)
		return map[string][]bool{"up": up, "down": down}
	})

	_ = vm.Set("ta", ta)
}
