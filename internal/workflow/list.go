package workflow

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/relaycore/channel-console/internal/model"
)

// DefaultState is the state of a channel with no dashboard status.
const DefaultState = "STOPPED"

// ListChannels fetches the channel list and enriches it with statistics and
// dashboard status. Only the base list is required; enrichment failures are
// logged and leave the affected fields at their defaults.
func (r *Runner) ListChannels(ctx context.Context) ([]model.ChannelSummary, error) {
	var out []model.ChannelSummary
	err := r.observe(ctx, "list_channels", nil, func(ctx context.Context) error {
		items, err := r.engine.ListChannels(ctx)
		if err != nil {
			return fmt.Errorf("Failed to fetch channels: %w", err)
		}

		stats, err := r.engine.Statistics(ctx)
		if err != nil {
			r.logger.Warn("channel statistics unavailable, continuing without statistics", "error", err)
			stats = nil
		}
		statuses, err := r.engine.Statuses(ctx)
		if err != nil {
			r.logger.Warn("channel statuses unavailable, continuing without status", "error", err)
			statuses = nil
		}

		out = Summarize(items, stats, statuses)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Summarize joins channels with their statistics and statuses by channel id.
// A later record for the same id replaces an earlier one.
func Summarize(items []model.ChannelListItem, stats []model.ChannelStatistics, statuses []model.DashboardStatus) []model.ChannelSummary {
	statsByID := make(map[string]model.ChannelStatistics, len(stats))
	for _, s := range stats {
		statsByID[s.ChannelID] = s
	}
	statusByID := make(map[string]model.DashboardStatus, len(statuses))
	for _, s := range statuses {
		statusByID[s.ChannelID] = s
	}

	out := make([]model.ChannelSummary, 0, len(items))
	for _, it := range items {
		row := model.ChannelSummary{
			ID:           it.ID,
			Name:         it.Name,
			Description:  it.Description,
			State:        it.State,
			Revision:     int64(it.Revision),
			LastModified: it.LastModifiedMillis(),
			Tags:         it.TagNames(),
		}
		if st, ok := statusByID[it.ID]; ok {
			if st.State != "" {
				row.State = st.State
			}
			row.Deployed = st.DeployedRevisionDelta != nil && *st.DeployedRevisionDelta == 0
			row.Queued = int64(st.Queued)
		}
		if row.State == "" {
			row.State = DefaultState
		}
		if s, ok := statsByID[it.ID]; ok {
			row.Statistics = s.Counters()
		}
		out = append(out, row)
	}
	return out
}

func channelAttrs(id string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String("channel.id", id)}
}
