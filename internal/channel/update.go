// Package channel implements the edit operations on a channel document.
//
// Every operation takes the current document and returns a new one in which
// only the objects along the edited path are fresh allocations; every other
// subtree is shared with the input. Operations never fail: an edit aimed at a
// connector variant or destination the document does not have returns the
// input unchanged. Documents are expected to have been through model.Hydrate.
package channel

import (
	"encoding/json"

	"github.com/relaycore/channel-console/internal/model"
)

// cp returns a shallow copy of *p, or a zero value when p is nil.
func cp[T any](p *T) *T {
	var v T
	if p != nil {
		v = *p
	}
	return &v
}

func withChannel(c *model.Channel, fn func(out *model.Channel)) *model.Channel {
	out := *c
	fn(&out)
	return &out
}

func withProperties(c *model.Channel, fn func(p *model.ChannelProperties)) *model.Channel {
	return withChannel(c, func(out *model.Channel) {
		p := cp(c.Properties)
		fn(p)
		out.Properties = p
	})
}

func withMetadata(c *model.Channel, fn func(m *model.Metadata)) *model.Channel {
	return withChannel(c, func(out *model.Channel) {
		e := cp(c.ExportData)
		m := cp(e.Metadata)
		fn(m)
		e.Metadata = m
		out.ExportData = e
	})
}

func withPruning(c *model.Channel, fn func(p *model.PruningSettings)) *model.Channel {
	return withMetadata(c, func(m *model.Metadata) {
		p := cp(m.PruningSettings)
		fn(p)
		m.PruningSettings = p
	})
}

func SetName(c *model.Channel, name string) *model.Channel {
	return withChannel(c, func(out *model.Channel) { out.Name = name })
}

func SetDescription(c *model.Channel, description string) *model.Channel {
	return withChannel(c, func(out *model.Channel) { out.Description = description })
}

// SetEnabled sets exportData.metadata.enabled.
func SetEnabled(c *model.Channel, enabled bool) *model.Channel {
	return withMetadata(c, func(m *model.Metadata) { m.Enabled = enabled })
}

func SetClearGlobalChannelMap(c *model.Channel, v bool) *model.Channel {
	return withProperties(c, func(p *model.ChannelProperties) { p.ClearGlobalChannelMap = v })
}

func SetInitialState(c *model.Channel, state string) *model.Channel {
	return withProperties(c, func(p *model.ChannelProperties) { p.InitialState = state })
}

// SetAttachmentType sets properties.attachmentProperties.type.
func SetAttachmentType(c *model.Channel, typ string) *model.Channel {
	return withProperties(c, func(p *model.ChannelProperties) {
		a := cp(p.AttachmentProperties)
		a.Type = typ
		p.AttachmentProperties = a
	})
}

func SetStoreAttachments(c *model.Channel, v bool) *model.Channel {
	return withProperties(c, func(p *model.ChannelProperties) { p.StoreAttachments = v })
}

func SetMessageStorageMode(c *model.Channel, mode string) *model.Channel {
	return withProperties(c, func(p *model.ChannelProperties) { p.MessageStorageMode = mode })
}

func SetEncryptData(c *model.Channel, v bool) *model.Channel {
	return withProperties(c, func(p *model.ChannelProperties) { p.EncryptData = v })
}

func SetEncryptAttachments(c *model.Channel, v bool) *model.Channel {
	return withProperties(c, func(p *model.ChannelProperties) { p.EncryptAttachments = v })
}

func SetEncryptCustomMetaData(c *model.Channel, v bool) *model.Channel {
	return withProperties(c, func(p *model.ChannelProperties) { p.EncryptCustomMetaData = v })
}

func SetRemoveContentOnCompletion(c *model.Channel, v bool) *model.Channel {
	return withProperties(c, func(p *model.ChannelProperties) { p.RemoveContentOnCompletion = v })
}

func SetRemoveOnlyFilteredOnCompletion(c *model.Channel, v bool) *model.Channel {
	return withProperties(c, func(p *model.ChannelProperties) { p.RemoveOnlyFilteredOnCompletion = v })
}

func SetRemoveAttachmentsOnCompletion(c *model.Channel, v bool) *model.Channel {
	return withProperties(c, func(p *model.ChannelProperties) { p.RemoveAttachmentsOnCompletion = v })
}

// SetMetaDataColumns replaces the custom metadata column list.
func SetMetaDataColumns(c *model.Channel, cols []model.MetaDataColumn) *model.Channel {
	return withProperties(c, func(p *model.ChannelProperties) {
		p.MetaDataColumns = &model.MetaDataColumns{MetaDataColumn: cols}
	})
}

// SetPruneMetaDataDays sets the metadata retention. nil stores indefinitely.
func SetPruneMetaDataDays(c *model.Channel, days *model.Int) *model.Channel {
	return withPruning(c, func(p *model.PruningSettings) { p.PruneMetaDataDays = days })
}

// SetPruneContentDays sets the content retention. nil keeps content until the
// metadata is pruned.
func SetPruneContentDays(c *model.Channel, days *model.Int) *model.Channel {
	return withPruning(c, func(p *model.PruningSettings) { p.PruneContentDays = days })
}

func SetArchiveEnabled(c *model.Channel, v bool) *model.Channel {
	return withPruning(c, func(p *model.PruningSettings) { p.ArchiveEnabled = v })
}

func SetPruneErroredMessages(c *model.Channel, v bool) *model.Channel {
	return withPruning(c, func(p *model.PruningSettings) { p.PruneErroredMessages = v })
}

// SetChannelTags stores tags as free text.
func SetChannelTags(c *model.Channel, tags string) *model.Channel {
	raw, _ := json.Marshal(tags)
	return withChannel(c, func(out *model.Channel) {
		e := cp(c.ExportData)
		e.ChannelTags = raw
		out.ExportData = e
	})
}

func SetPreprocessingScript(c *model.Channel, script string) *model.Channel {
	return withChannel(c, func(out *model.Channel) { out.PreprocessingScript = &script })
}

func SetPostprocessingScript(c *model.Channel, script string) *model.Channel {
	return withChannel(c, func(out *model.Channel) { out.PostprocessingScript = &script })
}

func SetDeployScript(c *model.Channel, script string) *model.Channel {
	return withChannel(c, func(out *model.Channel) { out.DeployScript = &script })
}

func SetUndeployScript(c *model.Channel, script string) *model.Channel {
	return withChannel(c, func(out *model.Channel) { out.UndeployScript = &script })
}

func withSource(c *model.Channel, fn func(s *model.SourceConnector)) *model.Channel {
	if c.SourceConnector == nil {
		return c
	}
	return withChannel(c, func(out *model.Channel) {
		s := *c.SourceConnector
		fn(&s)
		out.SourceConnector = &s
	})
}

// UpdateSource applies fn to a copy of the source properties when they hold
// variant P. fn may assign fields of the copy; nested objects it changes must
// be copied first.
func UpdateSource[P model.SourceProperties](c *model.Channel, fn func(p P)) *model.Channel {
	if c.SourceConnector == nil {
		return c
	}
	cur, ok := c.SourceConnector.Properties.(P)
	if !ok {
		return c
	}
	next := cur.CloneSource().(P)
	fn(next)
	return withSource(c, func(s *model.SourceConnector) { s.Properties = next })
}

func withSourceBase(c *model.Channel, fn func(b *model.SourceBase)) *model.Channel {
	if c.SourceConnector == nil || c.SourceConnector.Properties == nil || c.SourceConnector.Properties.Common() == nil {
		return c
	}
	next := c.SourceConnector.Properties.CloneSource()
	fn(next.Common())
	return withSource(c, func(s *model.SourceConnector) { s.Properties = next })
}

func withSourceConnectorProperties(c *model.Channel, fn func(p *model.SourceConnectorProperties)) *model.Channel {
	return withSourceBase(c, func(b *model.SourceBase) {
		p := cp(b.SourceConnectorProperties)
		fn(p)
		b.SourceConnectorProperties = p
	})
}

func withListener(c *model.Channel, fn func(l *model.ListenerConnectorProperties)) *model.Channel {
	return withSourceBase(c, func(b *model.SourceBase) {
		if b.ListenerConnectorProperties == nil {
			return
		}
		l := cp(b.ListenerConnectorProperties)
		fn(l)
		b.ListenerConnectorProperties = l
	})
}

func withPoll(c *model.Channel, fn func(p *model.PollConnectorProperties)) *model.Channel {
	return withSourceBase(c, func(b *model.SourceBase) {
		if b.PollConnectorProperties == nil {
			return
		}
		p := cp(b.PollConnectorProperties)
		fn(p)
		b.PollConnectorProperties = p
	})
}

// SetSourceType replaces the source properties with the defaults of kind and
// sets the transport name. The previous properties are discarded, not merged.
// Unknown kinds leave c unchanged.
func SetSourceType(c *model.Channel, kind model.SourceKind) *model.Channel {
	props := model.DefaultSourceProperties(kind)
	if props == nil {
		return c
	}
	if c.SourceConnector == nil {
		return withChannel(c, func(out *model.Channel) { out.SourceConnector = model.NewSourceConnector(kind) })
	}
	return withSource(c, func(s *model.SourceConnector) {
		s.Properties = props
		s.TransportName = string(kind)
	})
}

func SetResponseVariable(c *model.Channel, v string) *model.Channel {
	return withSourceConnectorProperties(c, func(p *model.SourceConnectorProperties) { p.ResponseVariable = v })
}

// SetRespondAfterProcessing sets the source queue: false queues messages and
// responds before processing.
func SetRespondAfterProcessing(c *model.Channel, v bool) *model.Channel {
	return withSourceConnectorProperties(c, func(p *model.SourceConnectorProperties) { p.RespondAfterProcessing = v })
}

func SetProcessBatch(c *model.Channel, v bool) *model.Channel {
	return withSourceConnectorProperties(c, func(p *model.SourceConnectorProperties) { p.ProcessBatch = v })
}

func SetFirstResponse(c *model.Channel, v bool) *model.Channel {
	return withSourceConnectorProperties(c, func(p *model.SourceConnectorProperties) { p.FirstResponse = v })
}

func SetProcessingThreads(c *model.Channel, n model.Int) *model.Channel {
	return withSourceConnectorProperties(c, func(p *model.SourceConnectorProperties) { p.ProcessingThreads = n })
}

func SetSourceQueueBufferSize(c *model.Channel, n model.Int) *model.Channel {
	return withSourceConnectorProperties(c, func(p *model.SourceConnectorProperties) { p.QueueBufferSize = n })
}

func SetListenerHost(c *model.Channel, host string) *model.Channel {
	return withListener(c, func(l *model.ListenerConnectorProperties) { l.Host = host })
}

func SetListenerPort(c *model.Channel, port model.Text) *model.Channel {
	return withListener(c, func(l *model.ListenerConnectorProperties) { l.Port = port })
}

func SetPollingType(c *model.Channel, typ string) *model.Channel {
	return withPoll(c, func(p *model.PollConnectorProperties) { p.PollingType = typ })
}

// SetPollingFrequency sets the polling interval in milliseconds.
func SetPollingFrequency(c *model.Channel, ms model.Int) *model.Channel {
	return withPoll(c, func(p *model.PollConnectorProperties) { p.PollingFrequency = ms })
}

func SetPollingHour(c *model.Channel, hour model.Int) *model.Channel {
	return withPoll(c, func(p *model.PollConnectorProperties) { p.PollingHour = hour })
}

func SetPollingMinute(c *model.Channel, minute model.Int) *model.Channel {
	return withPoll(c, func(p *model.PollConnectorProperties) { p.PollingMinute = minute })
}

func SetPollOnStart(c *model.Channel, v bool) *model.Channel {
	return withPoll(c, func(p *model.PollConnectorProperties) { p.PollOnStart = v })
}

// SetCronJobs replaces the cron schedule list.
func SetCronJobs(c *model.Channel, jobs []model.CronProperty) *model.Channel {
	return withPoll(c, func(p *model.PollConnectorProperties) {
		p.CronJobs = &model.CronJobs{CronProperty: jobs}
	})
}

// SetSourceTransmissionMode sets the frame mode of a TCP listener. Only the
// plugin point name changes; the framing bytes are kept.
func SetSourceTransmissionMode(c *model.Channel, mode string) *model.Channel {
	return UpdateSource(c, func(p *model.TCPListenerProperties) {
		t := cp(p.TransmissionModeProperties)
		t.PluginPointName = mode
		p.TransmissionModeProperties = t
	})
}
