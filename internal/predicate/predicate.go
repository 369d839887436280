// Package predicate compiles user supplied boolean expressions over a status
// snapshot, such as
//
//	AllActive("postgresql") && Apps["postgresql"].Scale == 3
package predicate

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/melih-ucgun/vigil/internal/status"
)

// Env is what an expression can see.
type Env struct {
	Model        status.ModelStatus
	Machines     map[string]status.MachineStatus
	Apps         map[string]status.AppStatus
	Offers       map[string]status.OfferStatus
	AppEndpoints map[string]status.RemoteAppStatus

	st *status.Status
}

func newEnv(st *status.Status) Env {
	return Env{
		Model:        st.Model,
		Machines:     st.Machines,
		Apps:         st.Apps,
		Offers:       st.Offers,
		AppEndpoints: st.AppEndpoints,
		st:           st,
	}
}

func (e Env) AllActive(apps ...string) bool      { return status.AllActive(e.st, apps...) }
func (e Env) AllBlocked(apps ...string) bool     { return status.AllBlocked(e.st, apps...) }
func (e Env) AllError(apps ...string) bool       { return status.AllError(e.st, apps...) }
func (e Env) AllMaintenance(apps ...string) bool { return status.AllMaintenance(e.st, apps...) }
func (e Env) AllWaiting(apps ...string) bool     { return status.AllWaiting(e.st, apps...) }
func (e Env) AnyActive(apps ...string) bool      { return status.AnyActive(e.st, apps...) }
func (e Env) AnyBlocked(apps ...string) bool     { return status.AnyBlocked(e.st, apps...) }
func (e Env) AnyError(apps ...string) bool       { return status.AnyError(e.st, apps...) }
func (e Env) AnyMaintenance(apps ...string) bool { return status.AnyMaintenance(e.st, apps...) }
func (e Env) AnyWaiting(apps ...string) bool     { return status.AnyWaiting(e.st, apps...) }

// AnyFailed reports whether any node was reported with a status-error.
func (e Env) AnyFailed() bool { return status.AnyFailed(e.st) }

// Predicate is a compiled expression.
type Predicate struct {
	Source  string
	program *vm.Program
}

// Compile checks src against Env and requires it to produce a bool.
func Compile(src string) (*Predicate, error) {
	program, err := expr.Compile(src, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile predicate %q: %w", src, err)
	}
	return &Predicate{Source: src, program: program}, nil
}

// Eval runs the expression against st.
func (p *Predicate) Eval(st *status.Status) (bool, error) {
	if st == nil {
		return false, fmt.Errorf("evaluate predicate %q: no status", p.Source)
	}
	out, err := expr.Run(p.program, newEnv(st))
	if err != nil {
		return false, fmt.Errorf("evaluate predicate %q: %w", p.Source, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("evaluate predicate %q: got %T, want bool", p.Source, out)
	}
	return b, nil
}

// Func adapts p to a plain predicate. Evaluation errors are passed to onErr
// (when not nil) and count as false.
func (p *Predicate) Func(onErr func(error)) func(*status.Status) bool {
	return func(st *status.Status) bool {
		ok, err := p.Eval(st)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return false
		}
		return ok
	}
}

func (p *Predicate) String() string { return p.Source }
