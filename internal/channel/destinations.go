package channel

import (
	"fmt"

	"github.com/relaycore/channel-console/internal/model"
)

// QueueMode is the destination queueing choice offered as one radio group.
type QueueMode string

const (
	QueueNever     QueueMode = "never"
	QueueOnFailure QueueMode = "onFailure"
	QueueAlways    QueueMode = "always"
)

// Flags returns the queueEnabled and sendFirst values of m.
func (m QueueMode) Flags() (queueEnabled, sendFirst bool, ok bool) {
	switch m {
	case QueueNever:
		return false, false, true
	case QueueOnFailure:
		return true, true, true
	case QueueAlways:
		return true, false, true
	}
	return false, false, false
}

// QueueModeOf reports the mode a destination's flags encode.
func QueueModeOf(p *model.DestinationConnectorProperties) QueueMode {
	switch {
	case p == nil || !p.QueueEnabled:
		return QueueNever
	case p.SendFirst:
		return QueueOnFailure
	default:
		return QueueAlways
	}
}

// FileExistsPolicy is what a file writer does when the target exists.
type FileExistsPolicy string

const (
	FileExistsAppend    FileExistsPolicy = "append"
	FileExistsOverwrite FileExistsPolicy = "overwrite"
	FileExistsError     FileExistsPolicy = "error"
)

// Flags returns the outputAppend and errorOnExists values of f.
func (f FileExistsPolicy) Flags() (outputAppend, errorOnExists bool, ok bool) {
	switch f {
	case FileExistsAppend:
		return true, false, true
	case FileExistsOverwrite:
		return false, false, true
	case FileExistsError:
		return false, true, true
	}
	return false, false, false
}

// FileExistsPolicyOf reports the policy a file writer's flags encode.
func FileExistsPolicyOf(p *model.FileWriterProperties) FileExistsPolicy {
	switch {
	case p.OutputAppend:
		return FileExistsAppend
	case p.ErrorOnExists:
		return FileExistsError
	default:
		return FileExistsOverwrite
	}
}

// UpdateDestinationConnector applies fn to a copy of the destination whose
// metaDataId is id. The list keeps its order and every other connector pointer.
// An unknown id returns c itself.
func UpdateDestinationConnector(c *model.Channel, id int64, fn func(d *model.DestinationConnector)) *model.Channel {
	return updateConnector(c, id, func(d *model.DestinationConnector) bool {
		fn(d)
		return true
	})
}

func updateConnector(c *model.Channel, id int64, fn func(d *model.DestinationConnector) bool) *model.Channel {
	if c.DestinationConnectors == nil {
		return c
	}
	conns := c.DestinationConnectors.Connector
	for i, d := range conns {
		if d == nil || int64(d.MetaDataID) != id {
			continue
		}
		next := *d
		if !fn(&next) {
			return c
		}
		list := make(model.List[*model.DestinationConnector], len(conns))
		copy(list, conns)
		list[i] = &next
		return withChannel(c, func(out *model.Channel) {
			out.DestinationConnectors = &model.DestinationConnectors{Connector: list}
		})
	}
	return c
}

// UpdateDestination applies fn to a copy of the properties of destination id
// when they hold variant P. Other variants and unknown ids return c itself.
func UpdateDestination[P model.DestinationProperties](c *model.Channel, id int64, fn func(p P)) *model.Channel {
	return updateConnector(c, id, func(d *model.DestinationConnector) bool {
		cur, ok := d.Properties.(P)
		if !ok {
			return false
		}
		next := cur.CloneDestination().(P)
		fn(next)
		d.Properties = next
		return true
	})
}

func withDestinationConnectorProperties(c *model.Channel, id int64, fn func(p *model.DestinationConnectorProperties)) *model.Channel {
	return updateConnector(c, id, func(d *model.DestinationConnector) bool {
		if d.Properties == nil || d.Properties.Common() == nil {
			return false
		}
		next := d.Properties.CloneDestination()
		base := next.Common()
		p := cp(base.DestinationConnectorProperties)
		fn(p)
		base.DestinationConnectorProperties = p
		d.Properties = next
		return true
	})
}

// SetQueueMode sets queueEnabled and sendFirst together.
func SetQueueMode(c *model.Channel, id int64, mode QueueMode) *model.Channel {
	queueEnabled, sendFirst, ok := mode.Flags()
	if !ok {
		return c
	}
	return withDestinationConnectorProperties(c, id, func(p *model.DestinationConnectorProperties) {
		p.QueueEnabled = queueEnabled
		p.SendFirst = sendFirst
	})
}

// SetFileExistsPolicy sets outputAppend and errorOnExists together.
func SetFileExistsPolicy(c *model.Channel, id int64, policy FileExistsPolicy) *model.Channel {
	outputAppend, errorOnExists, ok := policy.Flags()
	if !ok {
		return c
	}
	return UpdateDestination(c, id, func(p *model.FileWriterProperties) {
		p.OutputAppend = outputAppend
		p.ErrorOnExists = errorOnExists
	})
}

func SetValidateResponse(c *model.Channel, id int64, v bool) *model.Channel {
	return withDestinationConnectorProperties(c, id, func(p *model.DestinationConnectorProperties) { p.ValidateResponse = v })
}

func SetReattachAttachments(c *model.Channel, id int64, v bool) *model.Channel {
	return withDestinationConnectorProperties(c, id, func(p *model.DestinationConnectorProperties) { p.ReattachAttachments = v })
}

func SetRetryCount(c *model.Channel, id int64, n model.Int) *model.Channel {
	return withDestinationConnectorProperties(c, id, func(p *model.DestinationConnectorProperties) { p.RetryCount = n })
}

func SetRetryIntervalMillis(c *model.Channel, id int64, ms model.Int) *model.Channel {
	return withDestinationConnectorProperties(c, id, func(p *model.DestinationConnectorProperties) { p.RetryIntervalMillis = ms })
}

func SetRotate(c *model.Channel, id int64, v bool) *model.Channel {
	return withDestinationConnectorProperties(c, id, func(p *model.DestinationConnectorProperties) { p.Rotate = v })
}

func SetThreadCount(c *model.Channel, id int64, n model.Int) *model.Channel {
	return withDestinationConnectorProperties(c, id, func(p *model.DestinationConnectorProperties) { p.ThreadCount = n })
}

func SetDestinationQueueBufferSize(c *model.Channel, id int64, n model.Int) *model.Channel {
	return withDestinationConnectorProperties(c, id, func(p *model.DestinationConnectorProperties) { p.QueueBufferSize = n })
}

func SetRegenerateTemplate(c *model.Channel, id int64, v bool) *model.Channel {
	return withDestinationConnectorProperties(c, id, func(p *model.DestinationConnectorProperties) { p.RegenerateTemplate = v })
}

func SetIncludeFilterTransformer(c *model.Channel, id int64, v bool) *model.Channel {
	return withDestinationConnectorProperties(c, id, func(p *model.DestinationConnectorProperties) { p.IncludeFilterTransformer = v })
}

func SetDestinationName(c *model.Channel, id int64, name string) *model.Channel {
	return UpdateDestinationConnector(c, id, func(d *model.DestinationConnector) { d.Name = name })
}

func SetDestinationEnabled(c *model.Channel, id int64, v bool) *model.Channel {
	return UpdateDestinationConnector(c, id, func(d *model.DestinationConnector) { d.Enabled = v })
}

func SetDestinationWaitForPrevious(c *model.Channel, id int64, v bool) *model.Channel {
	return UpdateDestinationConnector(c, id, func(d *model.DestinationConnector) { d.WaitForPrevious = v })
}

// SetDestinationType replaces the properties of destination id with the
// defaults of kind. Unknown kinds leave c unchanged.
func SetDestinationType(c *model.Channel, id int64, kind model.DestinationKind) *model.Channel {
	props := model.DefaultDestinationProperties(kind)
	if props == nil {
		return c
	}
	return UpdateDestinationConnector(c, id, func(d *model.DestinationConnector) {
		d.Properties = props
		d.TransportName = string(kind)
	})
}

// SetDestinationTransmissionMode sets the frame mode of a TCP sender.
func SetDestinationTransmissionMode(c *model.Channel, id int64, mode string) *model.Channel {
	return UpdateDestination(c, id, func(p *model.TCPSenderProperties) {
		t := cp(p.TransmissionModeProperties)
		t.PluginPointName = mode
		p.TransmissionModeProperties = t
	})
}

// SetDestinations replaces the whole destination list.
func SetDestinations(c *model.Channel, conns []*model.DestinationConnector) *model.Channel {
	return withChannel(c, func(out *model.Channel) {
		out.DestinationConnectors = &model.DestinationConnectors{Connector: conns}
	})
}

// AddDestination appends a destination of kind using the next free
// metaDataId and returns the new document and that id. An empty name becomes
// "Destination N".
func AddDestination(c *model.Channel, name string, kind model.DestinationKind) (*model.Channel, int64) {
	if model.DefaultDestinationProperties(kind) == nil {
		kind = model.DestinationChannelWriter
	}
	dests := c.Destinations()
	id := int64(c.NextMetaDataID)
	for _, d := range dests {
		if d != nil && int64(d.MetaDataID) >= id {
			id = int64(d.MetaDataID) + 1
		}
	}
	if id < 1 {
		id = 1
	}
	if name == "" {
		name = fmt.Sprintf("Destination %d", len(dests)+1)
	}
	list := make(model.List[*model.DestinationConnector], len(dests), len(dests)+1)
	copy(list, dests)
	list = append(list, model.NewDestinationConnector(id, name, kind))
	out := withChannel(c, func(out *model.Channel) {
		out.DestinationConnectors = &model.DestinationConnectors{Connector: list}
		out.NextMetaDataID = model.Int(id + 1)
	})
	return out, id
}

// RemoveDestination drops destination id. metaDataIds are never reused, so
// nextMetaDataId is left alone. Unknown ids return c itself.
func RemoveDestination(c *model.Channel, id int64) *model.Channel {
	dests := c.Destinations()
	list := make(model.List[*model.DestinationConnector], 0, len(dests))
	for _, d := range dests {
		if d == nil || int64(d.MetaDataID) != id {
			list = append(list, d)
		}
	}
	if len(list) == len(dests) {
		return c
	}
	return SetDestinations(c, list)
}
