package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
)

// StatsResult is the output of stats.
type StatsResult struct {
	Driver    string         `json:"driver"`
	SizeBytes int64          `json:"size_bytes"`
	Records   []TypeCount    `json:"records"`
	Metrics   []MetricSample `json:"metrics,omitempty"`
}

// TypeCount is the number of stored records of one type.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// MetricSample is one gathered metric value.
type MetricSample struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

func (s StatsResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "driver: %s\nsize: %d bytes", s.Driver, s.SizeBytes)
	for _, tc := range s.Records {
		fmt.Fprintf(&b, "\n%s: %d", tc.Type, tc.Count)
	}
	for _, m := range s.Metrics {
		keys := make([]string, 0, len(m.Labels))
		for k := range m.Labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("%s=%q", k, m.Labels[k])
		}
		fmt.Fprintf(&b, "\n%s{%s} %g", m.Name, strings.Join(pairs, ","), m.Value)
	}
	return b.String()
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	var metrics bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show record counts and store size",
		Long: `Show record counts per type and the approximate store size.

With --metrics the backend operation counters recorded while this command
ran are printed too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(ctx context.Context, s *Session, f *OutputFormatter) error {
				out := StatsResult{Driver: s.Repo.Driver(), Records: []TypeCount{}}
				for _, t := range s.Repo.Types() {
					ids, err := s.Repo.TypeList(ctx, t.Name)
					if err != nil {
						return err
					}
					out.Records = append(out.Records, TypeCount{Type: t.Name, Count: len(ids)})
				}
				size, err := s.Repo.SizeInBytes(ctx)
				if err != nil {
					return err
				}
				out.SizeBytes = size

				if metrics {
					families, err := s.Registry.Gather()
					if err != nil {
						return fmt.Errorf("gather metrics: %w", err)
					}
					out.Metrics = metricSamples(families)
				}
				return f.Success(out)
			})
		},
	}
	cmd.Flags().BoolVar(&metrics, "metrics", false, "include backend operation metrics")
	return cmd
}

// metricSamples flattens counters and histogram counts.
func metricSamples(families []*dto.MetricFamily) []MetricSample {
	var out []MetricSample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out = append(out, MetricSample{Name: mf.GetName(), Labels: labels, Value: m.GetCounter().GetValue()})
			case dto.MetricType_GAUGE:
				out = append(out, MetricSample{Name: mf.GetName(), Labels: labels, Value: m.GetGauge().GetValue()})
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				out = append(out,
					MetricSample{Name: mf.GetName() + "_count", Labels: labels, Value: float64(h.GetSampleCount())},
					MetricSample{Name: mf.GetName() + "_sum", Labels: labels, Value: h.GetSampleSum()},
				)
			}
		}
	}
	return out
}
