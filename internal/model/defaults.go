package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Versions stamped on documents the console creates.
const (
	ConnectorVersion = "4.4.1"
	ChannelVersion   = "4.5.2"
)

// Common literal values.
const (
	DefaultEncoding        = "DEFAULT_ENCODING"
	DefaultBinaryMimes     = "application/.*(?<!json|xml)$|image/.*|video/.*|audio/.*"
	DefaultMessageTemplate = "${message.encodedData}"
	noneHTTPAuthClass      = "com.mirth.connect.plugins.httpauth.NoneHttpAuthProperties"
	mllpModeClass          = "com.mirth.connect.plugins.mllpmode.MLLPModeProperties"
	rawDataTypeClass       = "com.mirth.connect.plugins.datatypes.raw.RawDataTypeProperties"
	rawBatchClass          = "com.mirth.connect.plugins.datatypes.raw.RawBatchProperties"
)

func sourceBase(kind SourceKind) SourceBase {
	class, _ := SourceClass(kind)
	return SourceBase{
		Class:   class,
		Version: ConnectorVersion,
		SourceConnectorProperties: &SourceConnectorProperties{
			Version:                ConnectorVersion,
			ResponseVariable:       "None",
			RespondAfterProcessing: true,
			ProcessingThreads:      1,
			ResourceIDs:            DefaultResourceIDs(),
			QueueBufferSize:        1000,
		},
	}
}

func listener(host string, port Text) *ListenerConnectorProperties {
	return &ListenerConnectorProperties{Version: ConnectorVersion, Host: host, Port: port}
}

// DefaultPollConnectorProperties is the schedule new polling sources start with.
func DefaultPollConnectorProperties() *PollConnectorProperties {
	return &PollConnectorProperties{
		Version:          ConnectorVersion,
		PollingType:      "INTERVAL",
		PollingFrequency: 5000,
		PollConnectorPropertiesAdvanced: &PollAdvanced{
			Weekly:       true,
			InactiveDays: &Booleans{Boolean: make(List[bool], 8)},
			DayOfMonth:   1,
			AllDay:       true,
			StartingHour: 8,
			EndingHour:   17,
		},
	}
}

func noneHTTPAuth() json.RawMessage {
	return json.RawMessage(`{"` + noneHTTPAuthClass + `":{"@version":"` + ConnectorVersion + `","authType":"NONE"}}`)
}

// DefaultTransmissionMode returns the framing a TCP connector starts with.
func DefaultTransmissionMode() *TransmissionModeProperties {
	useV2 := false
	return &TransmissionModeProperties{
		Class:               mllpModeClass,
		PluginPointName:     "MLLP",
		StartOfMessageBytes: "0B",
		EndOfMessageBytes:   "1C0D",
		UseMLLPv2:           &useV2,
		AckBytes:            "06",
		NackBytes:           "15",
		MaxRetries:          IntPtr(2),
	}
}

// DefaultSourceProperties returns the fully-populated property set of a source
// kind, or nil for a kind the console does not model.
func DefaultSourceProperties(kind SourceKind) SourceProperties {
	switch kind {
	case SourceChannelReader:
		return &ChannelReaderProperties{SourceBase: sourceBase(kind)}

	case SourceDICOMListener:
		b := sourceBase(kind)
		b.ListenerConnectorProperties = listener("0.0.0.0", "104")
		return &DICOMListenerProperties{
			SourceBase:   b,
			SoCloseDelay: 50,
			ReleaseTo:    5,
			RequestTo:    5,
			IdleTo:       60,
			Reaper:       10,
			SndPDULen:    16,
			RcvPDULen:    16,
			BufSize:      1,
			TCPDelay:     true,
			NoClientAuth: true,
			NoSSL2:       true,
			TLS:          "notls",
		}

	case SourceDatabaseReader:
		b := sourceBase(kind)
		b.PollConnectorProperties = DefaultPollConnectorProperties()
		return &DatabaseReaderProperties{
			SourceBase:         b,
			CacheResults:       true,
			KeepConnectionOpen: true,
			UpdateMode:         1,
			RetryCount:         3,
			RetryInterval:      10000,
			FetchSize:          1000,
			Encoding:           DefaultEncoding,
		}

	case SourceFileReader:
		b := sourceBase(kind)
		b.PollConnectorProperties = DefaultPollConnectorProperties()
		return &FileReaderProperties{
			SourceBase:            b,
			Scheme:                "FILE",
			FileFilter:            "*",
			IgnoreDot:             true,
			Anonymous:             true,
			Username:              "anonymous",
			Password:              "anonymous",
			Timeout:               10000,
			Secure:                true,
			Passive:               true,
			ValidateConnection:    true,
			AfterProcessingAction: "NONE",
			ErrorReadingAction:    "NONE",
			ErrorResponseAction:   "AFTER_PROCESSING",
			CheckFileAge:          true,
			FileAge:               1000,
			IgnoreFileSizeMaximum: true,
			SortBy:                "date",
			CharsetEncoding:       DefaultEncoding,
		}

	case SourceHTTPListener:
		b := sourceBase(kind)
		b.PluginProperties = noneHTTPAuth()
		b.ListenerConnectorProperties = listener("0.0.0.0", "80")
		return &HTTPListenerProperties{
			SourceBase:           b,
			ParseMultipart:       true,
			BinaryMimeTypes:      DefaultBinaryMimes,
			BinaryMimeTypesRegex: true,
			ResponseContentType:  "text/plain",
			ResponseHeaders:      NewMap[ListEntry](),
			Charset:              "UTF-8",
			Timeout:              30000,
		}

	case SourceJMSListener:
		return &JMSListenerProperties{
			SourceBase:              sourceBase(kind),
			JMSSettings:             JMSSettings{ConnectionProperties: NewMap[StringEntry]()},
			ReconnectIntervalMillis: 10000,
		}

	case SourceJavaScriptReader:
		b := sourceBase(kind)
		b.PollConnectorProperties = DefaultPollConnectorProperties()
		return &JavaScriptReaderProperties{SourceBase: b}

	case SourceTCPListener:
		b := sourceBase(kind)
		b.ListenerConnectorProperties = listener("0.0.0.0", "6661")
		b.SourceConnectorProperties.ResponseVariable = "Auto-generate (After source transformer)"
		b.SourceConnectorProperties.FirstResponse = true
		return &TCPListenerProperties{
			SourceBase:                 b,
			TransmissionModeProperties: DefaultTransmissionMode(),
			ServerMode:                 true,
			ReconnectInterval:          5000,
			BufferSize:                 65536,
			MaxConnections:             10,
			KeepConnectionOpen:         true,
			CharsetEncoding:            DefaultEncoding,
		}

	case SourceWebServiceListener:
		b := sourceBase(kind)
		b.PluginProperties = noneHTTPAuth()
		b.ListenerConnectorProperties = listener("0.0.0.0", "8081")
		return &WebServiceListenerProperties{
			SourceBase:  b,
			ClassName:   "com.mirth.connect.connectors.ws.DefaultAcceptMessage",
			ServiceName: "Mirth",
			SOAPBinding: "DEFAULT",
		}
	}
	return nil
}

// DefaultDestinationConnectorProperties is the queue/retry block new
// destinations start with.
func DefaultDestinationConnectorProperties() *DestinationConnectorProperties {
	return &DestinationConnectorProperties{
		Version:             ConnectorVersion,
		RetryIntervalMillis: 10000,
		ThreadCount:         1,
		ResourceIDs:         DefaultResourceIDs(),
		ReattachAttachments: true,
	}
}

func destinationBase(kind DestinationKind) DestinationBase {
	class, _ := DestinationClass(kind)
	return DestinationBase{
		Class:                          class,
		Version:                        ConnectorVersion,
		DestinationConnectorProperties: DefaultDestinationConnectorProperties(),
	}
}

// DefaultDestinationProperties returns the fully-populated property set of a
// destination kind, or nil for a kind the console does not model.
func DefaultDestinationProperties(kind DestinationKind) DestinationProperties {
	b := destinationBase(kind)
	switch kind {
	case DestinationChannelWriter:
		return &ChannelWriterProperties{
			DestinationBase: b,
			ChannelID:       "none",
			ChannelTemplate: String(DefaultMessageTemplate),
		}

	case DestinationDICOMSender:
		return &DICOMSenderProperties{
			DestinationBase: b,
			Host:            "127.0.0.1",
			Port:            "104",
			Template:        "${DICOMMESSAGE}",
			AcceptTo:        5000,
			BufSize:         1,
			Priority:        "med",
			RcvPDULen:       16,
			Reaper:          10,
			ReleaseTo:       5,
			RspTo:           60,
			ShutdownDelay:   1000,
			SndPDULen:       16,
			SoCloseDelay:    50,
			TCPDelay:        true,
			NoClientAuth:    true,
			NoSSL2:          true,
			TLS:             "notls",
		}

	case DestinationDatabaseWriter:
		return &DatabaseWriterProperties{DestinationBase: b}

	case DestinationDocumentWriter:
		return &DocumentWriterProperties{
			DestinationBase: b,
			DocumentType:    "pdf",
			Output:          "FILE",
			PageWidth:       "8.5",
			PageHeight:      "11",
			PageUnit:        "INCHES",
		}

	case DestinationFileWriter:
		return &FileWriterProperties{
			DestinationBase:    b,
			Scheme:             "FILE",
			Anonymous:          true,
			Username:           "anonymous",
			Password:           "anonymous",
			Timeout:            10000,
			KeepConnectionOpen: true,
			Secure:             true,
			Passive:            true,
			ValidateConnection: true,
			OutputAppend:       true,
			CharsetEncoding:    DefaultEncoding,
		}

	case DestinationHTTPSender:
		return &HTTPSenderProperties{
			DestinationBase:              b,
			Method:                       "post",
			Headers:                      NewMap[ListEntry](),
			Parameters:                   NewMap[ListEntry](),
			ResponseParseMultipart:       true,
			ResponseBinaryMimeTypes:      DefaultBinaryMimes,
			ResponseBinaryMimeTypesRegex: true,
			AuthenticationType:           "Basic",
			ContentType:                  "text/plain",
			Charset:                      "UTF-8",
			SocketTimeout:                30000,
		}

	case DestinationJMSSender:
		return &JMSSenderProperties{
			DestinationBase: b,
			JMSSettings:     JMSSettings{ConnectionProperties: NewMap[StringEntry]()},
			Template:        DefaultMessageTemplate,
		}

	case DestinationJavaScriptWriter:
		return &JavaScriptWriterProperties{DestinationBase: b, Script: String("")}

	case DestinationSMTPSender:
		return &SMTPSenderProperties{
			DestinationBase: b,
			SMTPPort:        "25",
			LocalAddress:    "0.0.0.0",
			LocalPort:       "0",
			Timeout:         5000,
			Encryption:      "none",
			Headers:         NewMap[StringEntry](),
			CharsetEncoding: DefaultEncoding,
			Attachments:     &SMTPAttachments{},
		}

	case DestinationTCPSender:
		return &TCPSenderProperties{
			DestinationBase:            b,
			TransmissionModeProperties: DefaultTransmissionMode(),
			RemoteAddress:              "127.0.0.1",
			RemotePort:                 "6660",
			LocalAddress:               "0.0.0.0",
			LocalPort:                  "0",
			SendTimeout:                5000,
			BufferSize:                 65536,
			MaxConnections:             10,
			ResponseTimeout:            5000,
			QueueOnResponseTimeout:     true,
			CharsetEncoding:            DefaultEncoding,
			Template:                   DefaultMessageTemplate,
		}

	case DestinationWebServiceSender:
		return &WebServiceSenderProperties{
			DestinationBase:    b,
			Operation:          "Press Get Operations",
			SocketTimeout:      30000,
			Headers:            NewMap[ListEntry](),
			AttachmentNames:    &Strings{},
			AttachmentContents: &Strings{},
			AttachmentTypes:    &Strings{},
		}
	}
	return nil
}

func rawTransformer() *Transformer {
	props := json.RawMessage(`{"@class":"` + rawDataTypeClass + `","@version":"` + ChannelVersion +
		`","batchProperties":{"@class":"` + rawBatchClass + `","@version":"` + ChannelVersion +
		`","splitType":"JavaScript","batchScript":null}}`)
	template := json.RawMessage(`{"@encoding":"base64"}`)
	return &Transformer{
		Version:            ChannelVersion,
		InboundTemplate:    template,
		OutboundTemplate:   template,
		InboundDataType:    "RAW",
		OutboundDataType:   "RAW",
		InboundProperties:  props,
		OutboundProperties: props,
	}
}

// NewSourceConnector returns a source connector of the given kind.
func NewSourceConnector(kind SourceKind) *SourceConnector {
	return &SourceConnector{
		Version:         ChannelVersion,
		Name:            "sourceConnector",
		Properties:      DefaultSourceProperties(kind),
		Transformer:     rawTransformer(),
		Filter:          &Filter{Version: ChannelVersion},
		TransportName:   string(kind),
		Mode:            ModeSource,
		Enabled:         true,
		WaitForPrevious: true,
	}
}

// NewDestinationConnector returns an enabled destination connector of the given kind.
func NewDestinationConnector(metaDataID int64, name string, kind DestinationKind) *DestinationConnector {
	return &DestinationConnector{
		Version:             ChannelVersion,
		MetaDataID:          Int(metaDataID),
		Name:                name,
		Properties:          DefaultDestinationProperties(kind),
		Transformer:         rawTransformer(),
		ResponseTransformer: rawTransformer(),
		Filter:              &Filter{Version: ChannelVersion},
		TransportName:       string(kind),
		Mode:                ModeDestination,
		Enabled:             true,
		WaitForPrevious:     true,
	}
}

// DefaultChannelProperties returns the channel-wide settings new channels start with.
func DefaultChannelProperties() *ChannelProperties {
	return &ChannelProperties{
		Version:               ChannelVersion,
		ClearGlobalChannelMap: true,
		MessageStorageMode:    "DEVELOPMENT",
		InitialState:          "STARTED",
		StoreAttachments:      true,
		AttachmentProperties:  &AttachmentProperties{Version: ChannelVersion, Type: "None"},
		ResourceIDs:           DefaultResourceIDs(),
	}
}

// DefaultExportData returns export metadata for a channel the engine has not stored yet.
func DefaultExportData() *ExportData {
	return &ExportData{
		Metadata: &Metadata{
			Enabled:         true,
			PruningSettings: &PruningSettings{ArchiveEnabled: true},
		},
	}
}

// NewChannel builds a channel with a Channel Reader source and one Channel
// Writer destination, ready to be created on the engine.
func NewChannel(name string) *Channel {
	return &Channel{
		Version:         ChannelVersion,
		ID:              uuid.NewString(),
		NextMetaDataID:  2,
		Name:            name,
		Description:     "",
		SourceConnector: NewSourceConnector(SourceChannelReader),
		DestinationConnectors: &DestinationConnectors{
			Connector: List[*DestinationConnector]{NewDestinationConnector(1, "Destination 1", DestinationChannelWriter)},
		},
		Properties: DefaultChannelProperties(),
		ExportData: DefaultExportData(),
	}
}

// Hydrate returns a copy of c in which every nested object the update
// operations write through exists. Present values are kept; missing subtrees
// are filled from the defaults of the connector's kind. The input is not modified.
func Hydrate(c *Channel) *Channel {
	if c == nil {
		return nil
	}
	out := *c

	if out.Properties == nil {
		out.Properties = DefaultChannelProperties()
	} else if out.Properties.AttachmentProperties == nil {
		p := *out.Properties
		p.AttachmentProperties = &AttachmentProperties{Version: ChannelVersion, Type: "None"}
		out.Properties = &p
	}

	if out.ExportData == nil {
		out.ExportData = DefaultExportData()
	} else if out.ExportData.Metadata == nil || out.ExportData.Metadata.PruningSettings == nil {
		e := *out.ExportData
		if e.Metadata == nil {
			e.Metadata = DefaultExportData().Metadata
		} else {
			m := *e.Metadata
			m.PruningSettings = &PruningSettings{}
			e.Metadata = &m
		}
		out.ExportData = &e
	}

	out.SourceConnector = hydrateSource(out.SourceConnector)

	if out.DestinationConnectors == nil || out.DestinationConnectors.Connector == nil {
		out.DestinationConnectors = &DestinationConnectors{Connector: List[*DestinationConnector]{}}
	}
	var changed bool
	dests := make(List[*DestinationConnector], len(out.DestinationConnectors.Connector))
	for i, d := range out.DestinationConnectors.Connector {
		dests[i] = hydrateDestination(d)
		changed = changed || dests[i] != d
	}
	if changed {
		out.DestinationConnectors = &DestinationConnectors{Connector: dests}
	}
	return &out
}

func hydrateSource(s *SourceConnector) *SourceConnector {
	if s == nil {
		return NewSourceConnector(SourceChannelReader)
	}
	if s.Properties == nil {
		defaults := DefaultSourceProperties(SourceKind(s.TransportName))
		if defaults == nil {
			return s
		}
		out := *s
		out.Properties = defaults
		return hydrateSource(&out)
	}
	if s.Properties.Common() == nil {
		return s
	}
	kind := s.Properties.Kind()
	want := DefaultSourceProperties(kind).Common()
	common := s.Properties.Common()
	if common.SourceConnectorProperties != nil &&
		(common.ListenerConnectorProperties != nil || want.ListenerConnectorProperties == nil) &&
		(common.PollConnectorProperties != nil || want.PollConnectorProperties == nil) &&
		s.Filter != nil && s.Transformer != nil && s.TransportName == string(kind) {
		return s
	}

	out := *s
	out.TransportName = string(kind)
	props := s.Properties.CloneSource()
	base := props.Common()
	if base.SourceConnectorProperties == nil {
		base.SourceConnectorProperties = want.SourceConnectorProperties
	}
	if base.ListenerConnectorProperties == nil {
		base.ListenerConnectorProperties = want.ListenerConnectorProperties
	}
	if base.PollConnectorProperties == nil {
		base.PollConnectorProperties = want.PollConnectorProperties
	}
	out.Properties = props
	if out.Filter == nil {
		out.Filter = &Filter{Version: ChannelVersion}
	}
	if out.Transformer == nil {
		out.Transformer = rawTransformer()
	}
	return &out
}

func hydrateDestination(d *DestinationConnector) *DestinationConnector {
	if d == nil {
		return nil
	}
	if d.Properties == nil {
		defaults := DefaultDestinationProperties(DestinationKind(d.TransportName))
		if defaults == nil {
			return d
		}
		out := *d
		out.Properties = defaults
		return hydrateDestination(&out)
	}
	if d.Properties.Common() == nil {
		return d
	}
	kind := d.Properties.Kind()
	if d.Properties.Common().DestinationConnectorProperties != nil &&
		d.Filter != nil && d.Transformer != nil && d.TransportName == string(kind) {
		return d
	}

	out := *d
	out.TransportName = string(kind)
	props := d.Properties.CloneDestination()
	if props.Common().DestinationConnectorProperties == nil {
		props.Common().DestinationConnectorProperties = DefaultDestinationConnectorProperties()
	}
	out.Properties = props
	if out.Filter == nil {
		out.Filter = &Filter{Version: ChannelVersion}
	}
	if out.Transformer == nil {
		out.Transformer = rawTransformer()
	}
	return &out
}
