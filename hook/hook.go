// Package hook runs a unit of work with try/catch/finally semantics so that callers which
// must not panic (step executions) can convert every failure into a value.
package hook

import "github.com/pkg/errors"

// Interface is a unit of work with its error handler and cleanup.
type Interface interface {
	Try() error
	// Catch receives the error of Try, including a recovered panic.
	Catch(err error) error
	// Finally always runs last.
	Finally()
}

// Funcs adapts plain functions to Interface. Nil functions are skipped.
type Funcs struct {
	TryFn     func() error
	CatchFn   func(err error) error
	FinallyFn func()
}

func (f Funcs) Try() error {
	if f.TryFn == nil {
		return nil
	}
	return f.TryFn()
}

func (f Funcs) Catch(err error) error {
	if f.CatchFn == nil {
		return err
	}
	return f.CatchFn(err)
}

func (f Funcs) Finally() {
	if f.FinallyFn != nil {
		f.FinallyFn()
	}
}

// Call runs hook.Try, hands its error to hook.Catch and always runs hook.Finally.
// Panics in Try are recovered and passed to Catch as errors; a panic in Catch is
// returned as an error.
func Call(hook Interface) (err error) {
	if hook == nil {
		return errors.New("hook cannot be nil")
	}

	defer hook.Finally()

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic occurred during hook error handling: %v", r)
		}
	}()

	if tryErr := try(hook); tryErr != nil {
		return hook.Catch(tryErr)
	}
	return nil
}

func try(hook Interface) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return hook.Try()
}
