package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/elfogo/elfo/internal/elfo"
)

// ProducerConfig is the decoded config for the "producer" group.
type ProducerConfig struct {
	IntervalMillis int `yaml:"interval_millis"`
}

// AggregatorConfig is the decoded config for the "aggregator" group.
type AggregatorConfig struct {
	LogEvery int `yaml:"log_every"`
}

// SampleMeasurement is a fire-and-forget message a producer sends toward
// the aggregator group, the worked example from spec.md §8 scenarios 1-2.
type SampleMeasurement struct {
	elfo.BaseMessage
	Value int
}

// MessageType implements elfo.Message.
func (SampleMeasurement) MessageType() string { return "demo.SampleMeasurement" }

// SumRequest asks the aggregator for its running total.
type SumRequest struct {
	elfo.BaseMessage
}

// MessageType implements elfo.Message.
func (SumRequest) MessageType() string { return "demo.SumRequest" }

// SumReply answers a SumRequest.
type SumReply struct {
	Total int
	Count int
}

// buildDemoTopology wires the producer -> aggregator example used by
// `elfod run`: a ticking producer group emits SampleMeasurement envelopes,
// routed via a static topology connection to a singleton aggregator group
// that folds them into a running total and answers SumRequest asks.
func buildDemoTopology() *elfo.Topology {
	topo := elfo.Empty()

	aggregator := topo.Local("aggregator")
	aggregator.Entrypoint()
	aggregator.Mount(elfo.NewSchema(
		runAggregator,
		elfo.WithConfigFactory(func() any { return &AggregatorConfig{LogEvery: 10} }),
	))

	producer := topo.Local("producer")
	producer.Entrypoint()
	producer.Mount(elfo.NewSchema(
		runProducer,
		elfo.WithConfigFactory(func() any { return &ProducerConfig{IntervalMillis: 500} }),
	))
	producer.RouteAllTo(aggregator)

	return topo
}

// runProducer is the ExecFunc for the "producer" group: it attaches an
// Interval source and forwards each tick as a SampleMeasurement.
func runProducer(ctx context.Context, actorCtx *elfo.Context) error {
	period := 500 * time.Millisecond
	if cfg, ok := actorCtx.Config().(*ProducerConfig); ok && cfg.IntervalMillis > 0 {
		period = time.Duration(cfg.IntervalMillis) * time.Millisecond
	}

	interval := elfo.NewInterval(period)
	defer interval.Close()
	actorCtx.With(interval)

	var count int64
	for {
		env, ok := actorCtx.Recv(ctx)
		if !ok {
			return nil
		}
		switch env.Message.(type) {
		case elfo.IntervalTick:
			n := atomic.AddInt64(&count, 1)
			_ = actorCtx.Send(ctx, SampleMeasurement{Value: int(n)})
		case elfo.Terminate:
			return nil
		}
	}
}

// runAggregator is the ExecFunc for the "aggregator" group: it folds
// incoming SampleMeasurement values into a running total and answers
// SumRequest asks directly via Context.Respond.
func runAggregator(ctx context.Context, actorCtx *elfo.Context) error {
	logEvery := 10
	if cfg, ok := actorCtx.Config().(*AggregatorConfig); ok && cfg.LogEvery > 0 {
		logEvery = cfg.LogEvery
	}

	total, count := 0, 0
	for {
		env, ok := actorCtx.Recv(ctx)
		if !ok {
			return nil
		}

		switch msg := env.Message.(type) {
		case SampleMeasurement:
			total += msg.Value
			count++
			if count%logEvery == 0 {
				fmt.Printf("aggregator: %d samples, total=%d\n", count, total)
			}
		case SumRequest:
			if env.IsRequest() {
				actorCtx.Respond(
					env.Kind.Token,
					SumReply{Total: total, Count: count},
					nil,
				)
			}
		case elfo.Terminate:
			return nil
		}
	}
}
