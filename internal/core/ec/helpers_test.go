package ec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []string
}

func (r *recorder) add(event string) { r.events = append(r.events, event) }
func (r *recorder) reset()           { r.events = nil }

type spy struct {
	Base
	name       string
	rec        *recorder
	dts        []float64
	failUpdate error
	panicOn    bool
	onAttach   func(e *Entity) error
}

func (p *spy) OnAttach(e *Entity, _ Args) error {
	p.rec.add("attach:" + p.name)
	if p.onAttach != nil {
		return p.onAttach(e)
	}
	return nil
}

func (p *spy) OnUpdate(dt float64) error {
	p.rec.add("update:" + p.name)
	p.dts = append(p.dts, dt)
	if p.panicOn {
		panic(p.name + " exploded")
	}
	return p.failUpdate
}

func (p *spy) OnDetach() { p.rec.add("detach:" + p.name) }

type alpha struct{ spy }
type beta struct{ spy }
type gamma struct{ spy }

// faulty fails its attach according to the construction args.
type faulty struct{ spy }

func (f *faulty) OnAttach(_ *Entity, args Args) error {
	f.rec.add("attach:" + f.name)
	if msg, ok := Value[string](args, "panic"); ok {
		panic(msg)
	}
	if err, ok := Value[error](args, "attachErr"); ok {
		return err
	}
	return nil
}

type greeter interface {
	Greeting() string
}

func (g *gamma) Greeting() string { return "hello from gamma" }

var errBoom = errors.New("boom")

func newFixture(t *testing.T) (*EntityManager, *recorder) {
	t.Helper()
	rec := &recorder{}
	m := NewEntityManager(8, "test")

	require.NoError(t, RegisterComponent(m, "alpha", func() *alpha {
		rec.add("new:alpha")
		return &alpha{spy{name: "alpha", rec: rec}}
	}))
	require.NoError(t, RegisterComponent(m, "beta", func() *beta {
		rec.add("new:beta")
		return &beta{spy{name: "beta", rec: rec}}
	}))
	require.NoError(t, RegisterComponent(m, "gamma", func() *gamma {
		rec.add("new:gamma")
		return &gamma{spy{name: "gamma", rec: rec}}
	}))
	require.NoError(t, RegisterComponent(m, "faulty", func() *faulty {
		rec.add("new:faulty")
		return &faulty{spy{name: "faulty", rec: rec}}
	}))

	require.NoError(t, m.DefineEntity("Trio", TypeOf[*alpha](), TypeOf[*beta](), TypeOf[*gamma]()))
	require.NoError(t, m.DefineEntity("Solo", ByName("beta")))
	require.NoError(t, m.DefineEntity("Broken", ByName("alpha"), ByName("beta"), ByName("faulty"), ByName("gamma")))
	return m, rec
}
