package workflow

import (
	"context"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/backfill"
	"main/internal/bus"
	"main/internal/exchange"
	"main/internal/model"
	"main/internal/node"
	"main/internal/nodes"
	"main/internal/rates"
	"main/internal/stats"
	"main/pkg/exception"
)

// Dependencies are the shared collaborators the builder hands to nodes.
// Client and Stream may be nil for pure backtest graphs; StatsRepo may
// be nil to keep statistics in memory only.
type Dependencies struct {
	Client    exchange.SpotClient
	Provider  backfill.KlineProvider
	Stream    nodes.TradeStream
	Store     nodes.KlineReplayStore
	Rates     *rates.Engine
	StatsRepo stats.Repository
}

// Graph is a fully wired workflow ready to run.
type Graph struct {
	workflowID string
	nodes      []node.Node

	mu       sync.Mutex
	statuses map[string]model.Status
}

// barrierParties counts the startup rendezvous members: every tick
// producer plus every tick consumer.
func barrierParties(def Definition) int {
	parties := 0
	for _, nd := range def.Nodes {
		switch nd.Type {
		case TypeBinanceTicker, TypeBacktestTicker, TypeSpotGrid, TypeRateSource:
			parties++
		}
	}

	return parties
}

// Build validates the definition, constructs every node and wires the
// links. Any failure leaves nothing running.
func Build(def Definition, deps Dependencies) (*Graph, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	barrier, err := node.NewBarrier(barrierParties(def))
	if err != nil {
		return nil, errors.Wrap(err, "create startup barrier")
	}

	built := make(map[string]node.Node, len(def.Nodes))
	nodeTypes := make(map[string]string, len(def.Nodes))
	graph := &Graph{
		workflowID: def.ID,
		statuses:   make(map[string]model.Status, len(def.Nodes)),
	}

	for _, nd := range def.Nodes {
		n, err := buildNode(def.ID, nd, deps, barrier)
		if err != nil {
			return nil, errors.Wrapf(err, "build node: %s", nd.ID)
		}

		built[nd.ID] = n
		nodeTypes[nd.ID] = nd.Type
		graph.nodes = append(graph.nodes, n)
		graph.statuses[nd.ID] = model.StatusInitializing()
	}

	for _, link := range def.Links {
		if err := wire(link, built, nodeTypes); err != nil {
			return nil, err
		}
	}

	return graph, nil
}

func buildNode(workflowID string, nd NodeDefinition, deps Dependencies, barrier *node.Barrier) (node.Node, error) {
	switch nd.Type {
	case TypeBinanceTicker:
		cfg, err := binanceTickerConfig(nd.Params)
		if err != nil {
			return nil, err
		}
		return nodes.NewBinanceTicker(nd.ID, cfg, deps.Provider, deps.Store, deps.Stream, barrier)
	case TypeBacktestTicker:
		cfg, err := backtestTickerConfig(nd.Params)
		if err != nil {
			return nil, err
		}
		return nodes.NewBacktestTicker(nd.ID, cfg, deps.Provider, deps.Store, barrier)
	case TypeSpotClient:
		return nodes.NewSpotClientNode(nd.ID, deps.Client)
	case TypeBacktestSpotClient:
		cfg, err := backtestSpotClientConfig(nd.Params)
		if err != nil {
			return nil, err
		}
		return nodes.NewBacktestSpotClientNode(nd.ID, cfg)
	case TypeSpotGrid:
		cfg, err := spotGridConfig(nd.Params)
		if err != nil {
			return nil, err
		}
		tracker := stats.NewTracker(workflowID, nd.ID, deps.StatsRepo)
		return nodes.NewSpotGrid(nd.ID, cfg, tracker, barrier)
	case TypeRateSource:
		cfg, err := rateSourceConfig(nd.Params)
		if err != nil {
			return nil, err
		}
		return nodes.NewRateSourceNode(nd.ID, cfg, deps.Rates, barrier)
	default:
		return nil, errors.Wrapf(exception.ErrInvalidArgument, "unknown node type: %s", nd.Type)
	}
}

// wire connects one link through the slot registry, typed by the slot
// kind the origin node type declares for that slot.
func wire(link LinkDefinition, built map[string]node.Node, nodeTypes map[string]string) error {
	origin, ok := built[link.OriginID]
	if !ok {
		return errors.Wrapf(exception.ErrNodeNotFound, "link origin: %s", link.OriginID)
	}

	target, ok := built[link.TargetID]
	if !ok {
		return errors.Wrapf(exception.ErrNodeNotFound, "link target: %s", link.TargetID)
	}

	var err error
	switch nodeOutputSlots[nodeTypes[link.OriginID]][link.OriginSlot] {
	case slotKindTick:
		err = node.Connect[bus.Hub[model.Tick]](origin, link.OriginSlot, target, link.TargetSlot)
	case slotKindClient:
		err = node.Connect[exchange.SpotClient](origin, link.OriginSlot, target, link.TargetSlot)
	case slotKindPriceSink:
		err = node.Connect[nodes.PriceSink](origin, link.OriginSlot, target, link.TargetSlot)
	default:
		err = errors.Wrapf(exception.ErrSlotNotConnected,
			"node %s has no output slot %d", link.OriginID, link.OriginSlot)
	}
	if err != nil {
		return errors.Wrapf(err, "wire %s:%d -> %s:%d",
			link.OriginID, link.OriginSlot, link.TargetID, link.TargetSlot)
	}

	return nil
}

// Run executes every node on its own goroutine. The first node failure
// cancels the rest; a canceled context is a clean stop, not a failure.
func (g *Graph) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg    sync.WaitGroup
		errCh = make(chan error, len(g.nodes))
	)

	for _, n := range g.nodes {
		wg.Add(1)
		go func(n node.Node) {
			defer wg.Done()

			g.setStatus(n.ID(), model.StatusRunning())

			err := n.Execute(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logs.Errorf("node failed, workflow: %s, node: %s, err: %+v", g.workflowID, n.ID(), err)
				g.setStatus(n.ID(), model.StatusFailed(err.Error()))
				errCh <- errors.Wrapf(err, "node: %s", n.ID())
				cancel()
				return
			}

			g.setStatus(n.ID(), model.StatusFinished())
		}(n)
	}

	wg.Wait()
	close(errCh)

	return <-errCh
}

// Status reports one node's last observed lifecycle state.
func (g *Graph) Status(nodeID string) (model.Status, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	status, ok := g.statuses[nodeID]
	return status, ok
}

func (g *Graph) setStatus(nodeID string, status model.Status) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.statuses[nodeID] = status
}
