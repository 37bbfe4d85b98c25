package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_TracksWitnessesFuelAndActivePrograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ProgramStarted()
	c.ProgramStarted()
	c.WitnessAppended("resume")
	c.WitnessAppended("resume")
	c.WitnessAppended("yield")
	c.SetFuelConsumed(42)
	c.ProgramFinished()

	families, err := reg.Gather()
	require.NoError(t, err)

	metricsByName := map[string]*dto.MetricFamily{}
	for _, mf := range families {
		metricsByName[mf.GetName()] = mf
	}

	active := metricsByName["starstream_scheduler_active_programs"]
	require.NotNil(t, active)
	assert.Equal(t, float64(1), active.Metric[0].GetGauge().GetValue())

	fuel := metricsByName["starstream_scheduler_fuel_consumed"]
	require.NotNil(t, fuel)
	assert.Equal(t, float64(42), fuel.Metric[0].GetGauge().GetValue())

	witnesses := metricsByName["starstream_scheduler_witnesses_total"]
	require.NotNil(t, witnesses)
	var resumeCount, yieldCount float64
	for _, m := range witnesses.Metric {
		for _, l := range m.Label {
			if l.GetName() == "kind" && l.GetValue() == "resume" {
				resumeCount = m.GetCounter().GetValue()
			}
			if l.GetName() == "kind" && l.GetValue() == "yield" {
				yieldCount = m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), resumeCount)
	assert.Equal(t, float64(1), yieldCount)
}

func TestCollector_NilIsANoOp(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.WitnessAppended("resume")
		c.SetFuelConsumed(1)
		c.ProgramStarted()
		c.ProgramFinished()
	})
}
