package main

import (
	"fmt"

	"github.com/vango-dev/reactive/pkg/reactive"
)

// panelEvery is how many ticks a panel scope lives before it is replaced.
const panelEvery = 5

// tickGraph is the graph the inspector drives. A tick signal feeds two
// memos and an effect on the root scope; a panel scope holding its own
// memo and effect is disposed and rebuilt every few ticks so the event
// stream shows scope churn too.
type tickGraph struct {
	rt      *reactive.Runtime
	tick    reactive.ReadSignal[int]
	setTick reactive.WriteSignal[int]
	sum     reactive.ReadSignal[int]
	panel   *reactive.Scope
	status  string
}

func newTickGraph(rt *reactive.Runtime) *tickGraph {
	root := rt.Root()
	g := &tickGraph{rt: rt}

	g.tick, g.setTick = reactive.CreateSignal(root, 0, reactive.Named("tick"))
	even := reactive.CreateMemo(root, func() bool { return g.tick.Get()%2 == 0 }, reactive.Named("even"))
	g.sum = reactive.CreateMemo(root, func() int {
		n := g.tick.Get()
		return n * (n + 1) / 2
	}, reactive.Named("sum"))

	reactive.CreateEffect(root, func() reactive.Cleanup {
		parity := "odd"
		if even.Get() {
			parity = "even"
		}
		g.status = fmt.Sprintf("tick %d is %s", g.tick.Peek(), parity)
		return nil
	}, reactive.EffectName("status"))

	g.panel = g.newPanel()
	return g
}

func (g *tickGraph) newPanel() *reactive.Scope {
	panel := g.rt.CreateScope(g.rt.Root())
	label := reactive.CreateMemo(panel, func() string {
		return fmt.Sprintf("sum=%d", g.sum.Get())
	}, reactive.Named("label"))
	reactive.CreateEffect(panel, func() reactive.Cleanup {
		_ = label.Get()
		return nil
	}, reactive.EffectName("panel"))
	return panel
}

// step advances the tick and replaces the panel every panelEvery ticks.
func (g *tickGraph) step() error {
	next := g.tick.Peek() + 1
	err := g.setTick.Set(next)
	if next%panelEvery == 0 {
		g.panel.Dispose()
		g.panel = g.newPanel()
	}
	return err
}
