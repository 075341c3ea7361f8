package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/relaycore/channel-console/internal/model"
)

var (
	// ErrUnknownAction is returned for an action type with no registered operation.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidValue is returned when an action value does not decode to the
	// operation's value type.
	ErrInvalidValue = errors.New("invalid action value")
	// ErrMissingTarget is returned when a destination action has no metaDataId.
	ErrMissingTarget = errors.New("action requires metaDataId")
)

// Action names one edit and carries its value. MetaDataID addresses a
// destination; filter and transformer actions treat a nil MetaDataID as the source.
type Action struct {
	Type       string          `json:"type"`
	MetaDataID *int64          `json:"metaDataId,omitempty"`
	Value      json.RawMessage `json:"value"`
}

type op func(c *model.Channel, a Action) (*model.Channel, error)

// Apply runs the operation registered for a.Type.
func Apply(c *model.Channel, a Action) (*model.Channel, error) {
	fn, ok := actions[a.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}
	return fn(c, a)
}

// ActionTypes returns every registered action type, sorted.
func ActionTypes() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func decode[V any](a Action) (V, error) {
	var v V
	if len(a.Value) == 0 {
		return v, fmt.Errorf("%w: %s: missing value", ErrInvalidValue, a.Type)
	}
	if err := json.Unmarshal(a.Value, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", ErrInvalidValue, a.Type, err)
	}
	return v, nil
}

func target(a Action) int64 {
	if a.MetaDataID == nil {
		return SourceTarget
	}
	return *a.MetaDataID
}

func channelOp[V any](set func(*model.Channel, V) *model.Channel) op {
	return func(c *model.Channel, a Action) (*model.Channel, error) {
		v, err := decode[V](a)
		if err != nil {
			return nil, err
		}
		return set(c, v), nil
	}
}

func sourceOp[P model.SourceProperties, V any](set func(P, V)) op {
	return channelOp(func(c *model.Channel, v V) *model.Channel {
		return UpdateSource(c, func(p P) { set(p, v) })
	})
}

func destinationOp[V any](set func(*model.Channel, int64, V) *model.Channel) op {
	return func(c *model.Channel, a Action) (*model.Channel, error) {
		if a.MetaDataID == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingTarget, a.Type)
		}
		v, err := decode[V](a)
		if err != nil {
			return nil, err
		}
		return set(c, *a.MetaDataID, v), nil
	}
}

func destinationField[P model.DestinationProperties, V any](set func(P, V)) op {
	return destinationOp(func(c *model.Channel, id int64, v V) *model.Channel {
		return UpdateDestination(c, id, func(p P) { set(p, v) })
	})
}

func targetOp[V any](set func(*model.Channel, int64, V) *model.Channel) op {
	return func(c *model.Channel, a Action) (*model.Channel, error) {
		v, err := decode[V](a)
		if err != nil {
			return nil, err
		}
		return set(c, target(a), v), nil
	}
}

// jmsField registers a JMS connection setting for both the listener and the sender.
func jmsField[V any](m map[string]op, name string, set func(*model.JMSSettings, V)) {
	m["source.jmsListener."+name] = sourceOp(func(p *jmsListener, v V) { set(&p.JMSSettings, v) })
	m["destination.jmsSender."+name] = destinationField(func(p *jmsSender, v V) { set(&p.JMSSettings, v) })
}

type (
	dicomListener      = model.DICOMListenerProperties
	databaseReader     = model.DatabaseReaderProperties
	fileReader         = model.FileReaderProperties
	httpListener       = model.HTTPListenerProperties
	jmsListener        = model.JMSListenerProperties
	javaScriptReader   = model.JavaScriptReaderProperties
	tcpListener        = model.TCPListenerProperties
	webServiceListener = model.WebServiceListenerProperties
	channelWriter      = model.ChannelWriterProperties
	dicomSender        = model.DICOMSenderProperties
	databaseWriter     = model.DatabaseWriterProperties
	documentWriter     = model.DocumentWriterProperties
	fileWriter         = model.FileWriterProperties
	httpSender         = model.HTTPSenderProperties
	jmsSender          = model.JMSSenderProperties
	javaScriptWriter   = model.JavaScriptWriterProperties
	smtpSender         = model.SMTPSenderProperties
	tcpSender          = model.TCPSenderProperties
	webServiceSender   = model.WebServiceSenderProperties
)

// newDestination is the value of destination.add.
type newDestination struct {
	Name          string `json:"name"`
	TransportName string `json:"transportName"`
}

var actions = buildActions()

func buildActions() map[string]op {
	m := map[string]op{
		// Channel.
		"channel.name":                           channelOp(SetName),
		"channel.description":                    channelOp(SetDescription),
		"channel.enabled":                        channelOp(SetEnabled),
		"channel.clearGlobalChannelMap":          channelOp(SetClearGlobalChannelMap),
		"channel.initialState":                   channelOp(SetInitialState),
		"channel.attachmentType":                 channelOp(SetAttachmentType),
		"channel.storeAttachments":               channelOp(SetStoreAttachments),
		"channel.messageStorageMode":             channelOp(SetMessageStorageMode),
		"channel.encryptData":                    channelOp(SetEncryptData),
		"channel.encryptAttachments":             channelOp(SetEncryptAttachments),
		"channel.encryptCustomMetaData":          channelOp(SetEncryptCustomMetaData),
		"channel.removeContentOnCompletion":      channelOp(SetRemoveContentOnCompletion),
		"channel.removeOnlyFilteredOnCompletion": channelOp(SetRemoveOnlyFilteredOnCompletion),
		"channel.removeAttachmentsOnCompletion":  channelOp(SetRemoveAttachmentsOnCompletion),
		"channel.pruneMetaDataDays":              channelOp(SetPruneMetaDataDays),
		"channel.pruneContentDays":               channelOp(SetPruneContentDays),
		"channel.archiveEnabled":                 channelOp(SetArchiveEnabled),
		"channel.pruneErroredMessages":           channelOp(SetPruneErroredMessages),
		"channel.metaDataColumns":                channelOp(SetMetaDataColumns),
		"channel.tags":                           channelOp(SetChannelTags),
		"channel.preprocessingScript":            channelOp(SetPreprocessingScript),
		"channel.postprocessingScript":           channelOp(SetPostprocessingScript),
		"channel.deployScript":                   channelOp(SetDeployScript),
		"channel.undeployScript":                 channelOp(SetUndeployScript),

		// Source connector, any variant.
		"source.responseVariable":       channelOp(SetResponseVariable),
		"source.respondAfterProcessing": channelOp(SetRespondAfterProcessing),
		"source.processBatch":           channelOp(SetProcessBatch),
		"source.firstResponse":          channelOp(SetFirstResponse),
		"source.processingThreads":      channelOp(SetProcessingThreads),
		"source.queueBufferSize":        channelOp(SetSourceQueueBufferSize),
		"source.listener.host":          channelOp(SetListenerHost),
		"source.listener.port":          channelOp(SetListenerPort),
		"source.poll.pollingType":       channelOp(SetPollingType),
		"source.poll.pollingFrequency":  channelOp(SetPollingFrequency),
		"source.poll.pollingHour":       channelOp(SetPollingHour),
		"source.poll.pollingMinute":     channelOp(SetPollingMinute),
		"source.poll.pollOnStart":       channelOp(SetPollOnStart),
		"source.poll.cronJobs":          channelOp(SetCronJobs),

		// DICOM Listener.
		"source.dicomListener.applicationEntity":      sourceOp(func(p *dicomListener, v *string) { p.ApplicationEntity = v }),
		"source.dicomListener.localHost":              sourceOp(func(p *dicomListener, v *string) { p.LocalHost = v }),
		"source.dicomListener.localPort":              sourceOp(func(p *dicomListener, v *model.Text) { p.LocalPort = v }),
		"source.dicomListener.localApplicationEntity": sourceOp(func(p *dicomListener, v *string) { p.LocalApplicationEntity = v }),
		"source.dicomListener.async":                  sourceOp(func(p *dicomListener, v model.Int) { p.Async = v }),
		"source.dicomListener.pdv1":                   sourceOp(func(p *dicomListener, v bool) { p.PDV1 = v }),
		"source.dicomListener.reaper":                 sourceOp(func(p *dicomListener, v model.Int) { p.Reaper = v }),
		"source.dicomListener.sndpdulen":              sourceOp(func(p *dicomListener, v model.Int) { p.SndPDULen = v }),
		"source.dicomListener.rcvpdulen":              sourceOp(func(p *dicomListener, v model.Int) { p.RcvPDULen = v }),
		"source.dicomListener.releaseTo":              sourceOp(func(p *dicomListener, v model.Int) { p.ReleaseTo = v }),
		"source.dicomListener.requestTo":              sourceOp(func(p *dicomListener, v model.Int) { p.RequestTo = v }),
		"source.dicomListener.idleTo":                 sourceOp(func(p *dicomListener, v model.Int) { p.IdleTo = v }),
		"source.dicomListener.soCloseDelay":           sourceOp(func(p *dicomListener, v model.Int) { p.SoCloseDelay = v }),
		"source.dicomListener.sosndbuf":               sourceOp(func(p *dicomListener, v model.Int) { p.SoSndBuf = v }),
		"source.dicomListener.sorcvbuf":               sourceOp(func(p *dicomListener, v model.Int) { p.SoRcvBuf = v }),
		"source.dicomListener.bufSize":                sourceOp(func(p *dicomListener, v model.Int) { p.BufSize = v }),
		"source.dicomListener.rspDelay":               sourceOp(func(p *dicomListener, v model.Int) { p.RspDelay = v }),
		"source.dicomListener.bigEndian":              sourceOp(func(p *dicomListener, v bool) { p.BigEndian = v }),
		"source.dicomListener.defts":                  sourceOp(func(p *dicomListener, v bool) { p.DefTS = v }),
		"source.dicomListener.nativeData":             sourceOp(func(p *dicomListener, v bool) { p.NativeData = v }),
		"source.dicomListener.tcpDelay":               sourceOp(func(p *dicomListener, v bool) { p.TCPDelay = v }),
		"source.dicomListener.dest":                   sourceOp(func(p *dicomListener, v *string) { p.Dest = v }),
		"source.dicomListener.tls":                    sourceOp(func(p *dicomListener, v string) { p.TLS = v }),
		"source.dicomListener.noClientAuth":           sourceOp(func(p *dicomListener, v bool) { p.NoClientAuth = v }),
		"source.dicomListener.nossl2":                 sourceOp(func(p *dicomListener, v bool) { p.NoSSL2 = v }),
		"source.dicomListener.keyStore":               sourceOp(func(p *dicomListener, v *string) { p.KeyStore = v }),
		"source.dicomListener.keyStorePW":             sourceOp(func(p *dicomListener, v *string) { p.KeyStorePW = v }),
		"source.dicomListener.keyPW":                  sourceOp(func(p *dicomListener, v *string) { p.KeyPW = v }),
		"source.dicomListener.trustStore":             sourceOp(func(p *dicomListener, v *string) { p.TrustStore = v }),
		"source.dicomListener.trustStorePW":           sourceOp(func(p *dicomListener, v *string) { p.TrustStorePW = v }),

		// Database Reader.
		"source.databaseReader.driver":             sourceOp(func(p *databaseReader, v *string) { p.Driver = v }),
		"source.databaseReader.url":                sourceOp(func(p *databaseReader, v *string) { p.URL = v }),
		"source.databaseReader.username":           sourceOp(func(p *databaseReader, v *string) { p.Username = v }),
		"source.databaseReader.password":           sourceOp(func(p *databaseReader, v *string) { p.Password = v }),
		"source.databaseReader.select":             sourceOp(func(p *databaseReader, v *string) { p.Select = v }),
		"source.databaseReader.update":             sourceOp(func(p *databaseReader, v *string) { p.Update = v }),
		"source.databaseReader.useScript":          sourceOp(func(p *databaseReader, v bool) { p.UseScript = v }),
		"source.databaseReader.aggregateResults":   sourceOp(func(p *databaseReader, v bool) { p.AggregateResults = v }),
		"source.databaseReader.cacheResults":       sourceOp(func(p *databaseReader, v bool) { p.CacheResults = v }),
		"source.databaseReader.keepConnectionOpen": sourceOp(func(p *databaseReader, v bool) { p.KeepConnectionOpen = v }),
		"source.databaseReader.updateMode":         sourceOp(func(p *databaseReader, v model.Int) { p.UpdateMode = v }),
		"source.databaseReader.retryCount":         sourceOp(func(p *databaseReader, v model.Int) { p.RetryCount = v }),
		"source.databaseReader.retryInterval":      sourceOp(func(p *databaseReader, v model.Int) { p.RetryInterval = v }),
		"source.databaseReader.fetchSize":          sourceOp(func(p *databaseReader, v model.Int) { p.FetchSize = v }),
		"source.databaseReader.encoding":           sourceOp(func(p *databaseReader, v string) { p.Encoding = v }),

		// File Reader.
		"source.fileReader.scheme":                sourceOp(func(p *fileReader, v string) { p.Scheme = v }),
		"source.fileReader.host":                  sourceOp(func(p *fileReader, v *string) { p.Host = v }),
		"source.fileReader.fileFilter":            sourceOp(func(p *fileReader, v string) { p.FileFilter = v }),
		"source.fileReader.regex":                 sourceOp(func(p *fileReader, v bool) { p.Regex = v }),
		"source.fileReader.directoryRecursion":    sourceOp(func(p *fileReader, v bool) { p.DirectoryRecursion = v }),
		"source.fileReader.ignoreDot":             sourceOp(func(p *fileReader, v bool) { p.IgnoreDot = v }),
		"source.fileReader.anonymous":             sourceOp(func(p *fileReader, v bool) { p.Anonymous = v }),
		"source.fileReader.username":              sourceOp(func(p *fileReader, v string) { p.Username = v }),
		"source.fileReader.password":              sourceOp(func(p *fileReader, v string) { p.Password = v }),
		"source.fileReader.timeout":               sourceOp(func(p *fileReader, v model.Int) { p.Timeout = v }),
		"source.fileReader.secure":                sourceOp(func(p *fileReader, v bool) { p.Secure = v }),
		"source.fileReader.passive":               sourceOp(func(p *fileReader, v bool) { p.Passive = v }),
		"source.fileReader.validateConnection":    sourceOp(func(p *fileReader, v bool) { p.ValidateConnection = v }),
		"source.fileReader.afterProcessingAction": sourceOp(func(p *fileReader, v string) { p.AfterProcessingAction = v }),
		"source.fileReader.moveToDirectory":       sourceOp(func(p *fileReader, v *string) { p.MoveToDirectory = v }),
		"source.fileReader.moveToFileName":        sourceOp(func(p *fileReader, v *string) { p.MoveToFileName = v }),
		"source.fileReader.errorReadingAction":    sourceOp(func(p *fileReader, v string) { p.ErrorReadingAction = v }),
		"source.fileReader.errorResponseAction":   sourceOp(func(p *fileReader, v string) { p.ErrorResponseAction = v }),
		"source.fileReader.errorMoveToDirectory":  sourceOp(func(p *fileReader, v *string) { p.ErrorMoveToDirectory = v }),
		"source.fileReader.errorMoveToFileName":   sourceOp(func(p *fileReader, v *string) { p.ErrorMoveToFileName = v }),
		"source.fileReader.checkFileAge":          sourceOp(func(p *fileReader, v bool) { p.CheckFileAge = v }),
		"source.fileReader.fileAge":               sourceOp(func(p *fileReader, v model.Int) { p.FileAge = v }),
		"source.fileReader.fileSizeMinimum":       sourceOp(func(p *fileReader, v model.Int) { p.FileSizeMinimum = v }),
		"source.fileReader.fileSizeMaximum":       sourceOp(func(p *fileReader, v *model.Int) { p.FileSizeMaximum = v }),
		"source.fileReader.ignoreFileSizeMaximum": sourceOp(func(p *fileReader, v bool) { p.IgnoreFileSizeMaximum = v }),
		"source.fileReader.sortBy":                sourceOp(func(p *fileReader, v string) { p.SortBy = v }),
		"source.fileReader.binary":                sourceOp(func(p *fileReader, v bool) { p.Binary = v }),
		"source.fileReader.charsetEncoding":       sourceOp(func(p *fileReader, v string) { p.CharsetEncoding = v }),

		// HTTP Listener.
		"source.httpListener.xmlBody":                    sourceOp(func(p *httpListener, v bool) { p.XMLBody = v }),
		"source.httpListener.parseMultipart":             sourceOp(func(p *httpListener, v bool) { p.ParseMultipart = v }),
		"source.httpListener.includeMetadata":            sourceOp(func(p *httpListener, v bool) { p.IncludeMetadata = v }),
		"source.httpListener.binaryMimeTypes":            sourceOp(func(p *httpListener, v string) { p.BinaryMimeTypes = v }),
		"source.httpListener.binaryMimeTypesRegex":       sourceOp(func(p *httpListener, v bool) { p.BinaryMimeTypesRegex = v }),
		"source.httpListener.responseContentType":        sourceOp(func(p *httpListener, v string) { p.ResponseContentType = v }),
		"source.httpListener.responseDataTypeBinary":     sourceOp(func(p *httpListener, v bool) { p.ResponseDataTypeBinary = v }),
		"source.httpListener.responseStatusCode":         sourceOp(func(p *httpListener, v *string) { p.ResponseStatusCode = v }),
		"source.httpListener.responseHeaders":            sourceOp(func(p *httpListener, v *model.Map[model.ListEntry]) { p.ResponseHeaders = v }),
		"source.httpListener.responseHeadersVariable":    sourceOp(func(p *httpListener, v *string) { p.ResponseHeadersVariable = v }),
		"source.httpListener.useResponseHeadersVariable": sourceOp(func(p *httpListener, v bool) { p.UseResponseHeadersVariable = v }),
		"source.httpListener.charset":                    sourceOp(func(p *httpListener, v string) { p.Charset = v }),
		"source.httpListener.contextPath":                sourceOp(func(p *httpListener, v *string) { p.ContextPath = v }),
		"source.httpListener.timeout":                    sourceOp(func(p *httpListener, v model.Int) { p.Timeout = v }),
		"source.httpListener.staticResources": sourceOp(func(p *httpListener, v []model.StaticResource) {
			p.StaticResources = &model.StaticResources{Resource: v}
		}),

		// JMS Listener; the shared connection settings are added below.
		"source.jmsListener.selector":                sourceOp(func(p *jmsListener, v *string) { p.Selector = v }),
		"source.jmsListener.reconnectIntervalMillis": sourceOp(func(p *jmsListener, v model.Int) { p.ReconnectIntervalMillis = v }),
		"source.jmsListener.durableTopic":            sourceOp(func(p *jmsListener, v bool) { p.DurableTopic = v }),

		"source.javaScriptReader.script": sourceOp(func(p *javaScriptReader, v *string) { p.Script = v }),

		// TCP Listener.
		"source.tcpListener.transmissionMode":       channelOp(SetSourceTransmissionMode),
		"source.tcpListener.serverMode":             sourceOp(func(p *tcpListener, v bool) { p.ServerMode = v }),
		"source.tcpListener.remoteAddress":          sourceOp(func(p *tcpListener, v *string) { p.RemoteAddress = v }),
		"source.tcpListener.remotePort":             sourceOp(func(p *tcpListener, v *model.Text) { p.RemotePort = v }),
		"source.tcpListener.overrideLocalBinding":   sourceOp(func(p *tcpListener, v bool) { p.OverrideLocalBinding = v }),
		"source.tcpListener.reconnectInterval":      sourceOp(func(p *tcpListener, v model.Int) { p.ReconnectInterval = v }),
		"source.tcpListener.receiveTimeout":         sourceOp(func(p *tcpListener, v model.Int) { p.ReceiveTimeout = v }),
		"source.tcpListener.bufferSize":             sourceOp(func(p *tcpListener, v model.Int) { p.BufferSize = v }),
		"source.tcpListener.maxConnections":         sourceOp(func(p *tcpListener, v model.Int) { p.MaxConnections = v }),
		"source.tcpListener.keepConnectionOpen":     sourceOp(func(p *tcpListener, v bool) { p.KeepConnectionOpen = v }),
		"source.tcpListener.dataTypeBinary":         sourceOp(func(p *tcpListener, v bool) { p.DataTypeBinary = v }),
		"source.tcpListener.charsetEncoding":        sourceOp(func(p *tcpListener, v string) { p.CharsetEncoding = v }),
		"source.tcpListener.respondOnNewConnection": sourceOp(func(p *tcpListener, v model.Int) { p.RespondOnNewConnection = v }),
		"source.tcpListener.responseAddress":        sourceOp(func(p *tcpListener, v *string) { p.ResponseAddress = v }),
		"source.tcpListener.responsePort":           sourceOp(func(p *tcpListener, v *model.Text) { p.ResponsePort = v }),

		// Web Service Listener.
		"source.webServiceListener.className":   sourceOp(func(p *webServiceListener, v string) { p.ClassName = v }),
		"source.webServiceListener.serviceName": sourceOp(func(p *webServiceListener, v string) { p.ServiceName = v }),
		"source.webServiceListener.soapBinding": sourceOp(func(p *webServiceListener, v string) { p.SOAPBinding = v }),

		// Destination connector, any variant.
		"destination.name":                     destinationOp(SetDestinationName),
		"destination.enabled":                  destinationOp(SetDestinationEnabled),
		"destination.waitForPrevious":          destinationOp(SetDestinationWaitForPrevious),
		"destination.validateResponse":         destinationOp(SetValidateResponse),
		"destination.reattachAttachments":      destinationOp(SetReattachAttachments),
		"destination.retryCount":               destinationOp(SetRetryCount),
		"destination.retryIntervalMillis":      destinationOp(SetRetryIntervalMillis),
		"destination.rotate":                   destinationOp(SetRotate),
		"destination.threadCount":              destinationOp(SetThreadCount),
		"destination.queueBufferSize":          destinationOp(SetDestinationQueueBufferSize),
		"destination.regenerateTemplate":       destinationOp(SetRegenerateTemplate),
		"destination.includeFilterTransformer": destinationOp(SetIncludeFilterTransformer),

		// Channel Writer.
		"destination.channelWriter.channelId":       destinationField(func(p *channelWriter, v string) { p.ChannelID = v }),
		"destination.channelWriter.channelTemplate": destinationField(func(p *channelWriter, v *string) { p.ChannelTemplate = v }),
		"destination.channelWriter.mapVariables": destinationField(func(p *channelWriter, v []string) {
			p.MapVariables = &model.Strings{String: v}
		}),

		// DICOM Sender.
		"destination.dicomSender.host":                   destinationField(func(p *dicomSender, v string) { p.Host = v }),
		"destination.dicomSender.port":                   destinationField(func(p *dicomSender, v model.Text) { p.Port = v }),
		"destination.dicomSender.applicationEntity":      destinationField(func(p *dicomSender, v *string) { p.ApplicationEntity = v }),
		"destination.dicomSender.localHost":              destinationField(func(p *dicomSender, v *string) { p.LocalHost = v }),
		"destination.dicomSender.localPort":              destinationField(func(p *dicomSender, v *model.Text) { p.LocalPort = v }),
		"destination.dicomSender.localApplicationEntity": destinationField(func(p *dicomSender, v *string) { p.LocalApplicationEntity = v }),
		"destination.dicomSender.template":               destinationField(func(p *dicomSender, v string) { p.Template = v }),
		"destination.dicomSender.acceptTo":               destinationField(func(p *dicomSender, v model.Int) { p.AcceptTo = v }),
		"destination.dicomSender.async":                  destinationField(func(p *dicomSender, v model.Int) { p.Async = v }),
		"destination.dicomSender.bufSize":                destinationField(func(p *dicomSender, v model.Int) { p.BufSize = v }),
		"destination.dicomSender.connectTo":              destinationField(func(p *dicomSender, v model.Int) { p.ConnectTo = v }),
		"destination.dicomSender.priority":               destinationField(func(p *dicomSender, v string) { p.Priority = v }),
		"destination.dicomSender.passcode":               destinationField(func(p *dicomSender, v *string) { p.Passcode = v }),
		"destination.dicomSender.pdv1":                   destinationField(func(p *dicomSender, v bool) { p.PDV1 = v }),
		"destination.dicomSender.rcvpdulen":              destinationField(func(p *dicomSender, v model.Int) { p.RcvPDULen = v }),
		"destination.dicomSender.reaper":                 destinationField(func(p *dicomSender, v model.Int) { p.Reaper = v }),
		"destination.dicomSender.releaseTo":              destinationField(func(p *dicomSender, v model.Int) { p.ReleaseTo = v }),
		"destination.dicomSender.rspTo":                  destinationField(func(p *dicomSender, v model.Int) { p.RspTo = v }),
		"destination.dicomSender.shutdownDelay":          destinationField(func(p *dicomSender, v model.Int) { p.ShutdownDelay = v }),
		"destination.dicomSender.sndpdulen":              destinationField(func(p *dicomSender, v model.Int) { p.SndPDULen = v }),
		"destination.dicomSender.soCloseDelay":           destinationField(func(p *dicomSender, v model.Int) { p.SoCloseDelay = v }),
		"destination.dicomSender.sorcvbuf":               destinationField(func(p *dicomSender, v model.Int) { p.SoRcvBuf = v }),
		"destination.dicomSender.sosndbuf":               destinationField(func(p *dicomSender, v model.Int) { p.SoSndBuf = v }),
		"destination.dicomSender.stgcmt":                 destinationField(func(p *dicomSender, v bool) { p.StgCmt = v }),
		"destination.dicomSender.tcpDelay":               destinationField(func(p *dicomSender, v bool) { p.TCPDelay = v }),
		"destination.dicomSender.ts1":                    destinationField(func(p *dicomSender, v bool) { p.TS1 = v }),
		"destination.dicomSender.uidnegrsp":              destinationField(func(p *dicomSender, v bool) { p.UIDNegRsp = v }),
		"destination.dicomSender.username":               destinationField(func(p *dicomSender, v *string) { p.Username = v }),
		"destination.dicomSender.keyPW":                  destinationField(func(p *dicomSender, v *string) { p.KeyPW = v }),
		"destination.dicomSender.keyStore":               destinationField(func(p *dicomSender, v *string) { p.KeyStore = v }),
		"destination.dicomSender.keyStorePW":             destinationField(func(p *dicomSender, v *string) { p.KeyStorePW = v }),
		"destination.dicomSender.noClientAuth":           destinationField(func(p *dicomSender, v bool) { p.NoClientAuth = v }),
		"destination.dicomSender.nossl2":                 destinationField(func(p *dicomSender, v bool) { p.NoSSL2 = v }),
		"destination.dicomSender.tls":                    destinationField(func(p *dicomSender, v string) { p.TLS = v }),
		"destination.dicomSender.trustStore":             destinationField(func(p *dicomSender, v *string) { p.TrustStore = v }),
		"destination.dicomSender.trustStorePW":           destinationField(func(p *dicomSender, v *string) { p.TrustStorePW = v }),

		// Database Writer.
		"destination.databaseWriter.driver":    destinationField(func(p *databaseWriter, v *string) { p.Driver = v }),
		"destination.databaseWriter.url":       destinationField(func(p *databaseWriter, v *string) { p.URL = v }),
		"destination.databaseWriter.username":  destinationField(func(p *databaseWriter, v *string) { p.Username = v }),
		"destination.databaseWriter.password":  destinationField(func(p *databaseWriter, v *string) { p.Password = v }),
		"destination.databaseWriter.query":     destinationField(func(p *databaseWriter, v *string) { p.Query = v }),
		"destination.databaseWriter.useScript": destinationField(func(p *databaseWriter, v bool) { p.UseScript = v }),

		// Document Writer.
		"destination.documentWriter.host":          destinationField(func(p *documentWriter, v string) { p.Host = v }),
		"destination.documentWriter.outputPattern": destinationField(func(p *documentWriter, v string) { p.OutputPattern = v }),
		"destination.documentWriter.documentType":  destinationField(func(p *documentWriter, v string) { p.DocumentType = v }),
		"destination.documentWriter.encrypt":       destinationField(func(p *documentWriter, v bool) { p.Encrypt = v }),
		"destination.documentWriter.output":        destinationField(func(p *documentWriter, v string) { p.Output = v }),
		"destination.documentWriter.password":      destinationField(func(p *documentWriter, v *string) { p.Password = v }),
		"destination.documentWriter.pageWidth":     destinationField(func(p *documentWriter, v model.Text) { p.PageWidth = v }),
		"destination.documentWriter.pageHeight":    destinationField(func(p *documentWriter, v model.Text) { p.PageHeight = v }),
		"destination.documentWriter.pageUnit":      destinationField(func(p *documentWriter, v string) { p.PageUnit = v }),
		"destination.documentWriter.template":      destinationField(func(p *documentWriter, v string) { p.Template = v }),

		// File Writer.
		"destination.fileWriter.scheme":             destinationField(func(p *fileWriter, v string) { p.Scheme = v }),
		"destination.fileWriter.host":               destinationField(func(p *fileWriter, v string) { p.Host = v }),
		"destination.fileWriter.outputPattern":      destinationField(func(p *fileWriter, v string) { p.OutputPattern = v }),
		"destination.fileWriter.anonymous":          destinationField(func(p *fileWriter, v bool) { p.Anonymous = v }),
		"destination.fileWriter.username":           destinationField(func(p *fileWriter, v string) { p.Username = v }),
		"destination.fileWriter.password":           destinationField(func(p *fileWriter, v string) { p.Password = v }),
		"destination.fileWriter.timeout":            destinationField(func(p *fileWriter, v model.Int) { p.Timeout = v }),
		"destination.fileWriter.keepConnectionOpen": destinationField(func(p *fileWriter, v bool) { p.KeepConnectionOpen = v }),
		"destination.fileWriter.maxIdleTime":        destinationField(func(p *fileWriter, v model.Int) { p.MaxIdleTime = v }),
		"destination.fileWriter.secure":             destinationField(func(p *fileWriter, v bool) { p.Secure = v }),
		"destination.fileWriter.passive":            destinationField(func(p *fileWriter, v bool) { p.Passive = v }),
		"destination.fileWriter.validateConnection": destinationField(func(p *fileWriter, v bool) { p.ValidateConnection = v }),
		"destination.fileWriter.outputAppend":       destinationField(func(p *fileWriter, v bool) { p.OutputAppend = v }),
		"destination.fileWriter.errorOnExists":      destinationField(func(p *fileWriter, v bool) { p.ErrorOnExists = v }),
		"destination.fileWriter.temporary":          destinationField(func(p *fileWriter, v bool) { p.Temporary = v }),
		"destination.fileWriter.binary":             destinationField(func(p *fileWriter, v bool) { p.Binary = v }),
		"destination.fileWriter.charsetEncoding":    destinationField(func(p *fileWriter, v string) { p.CharsetEncoding = v }),
		"destination.fileWriter.template":           destinationField(func(p *fileWriter, v string) { p.Template = v }),

		// HTTP Sender.
		"destination.httpSender.host":                         destinationField(func(p *httpSender, v string) { p.Host = v }),
		"destination.httpSender.useProxyServer":               destinationField(func(p *httpSender, v bool) { p.UseProxyServer = v }),
		"destination.httpSender.proxyAddress":                 destinationField(func(p *httpSender, v *string) { p.ProxyAddress = v }),
		"destination.httpSender.proxyPort":                    destinationField(func(p *httpSender, v *model.Text) { p.ProxyPort = v }),
		"destination.httpSender.method":                       destinationField(func(p *httpSender, v string) { p.Method = v }),
		"destination.httpSender.headers":                      destinationField(func(p *httpSender, v *model.Map[model.ListEntry]) { p.Headers = v }),
		"destination.httpSender.parameters":                   destinationField(func(p *httpSender, v *model.Map[model.ListEntry]) { p.Parameters = v }),
		"destination.httpSender.useHeadersVariable":           destinationField(func(p *httpSender, v bool) { p.UseHeadersVariable = v }),
		"destination.httpSender.headersVariable":              destinationField(func(p *httpSender, v *string) { p.HeadersVariable = v }),
		"destination.httpSender.useParametersVariable":        destinationField(func(p *httpSender, v bool) { p.UseParametersVariable = v }),
		"destination.httpSender.parametersVariable":           destinationField(func(p *httpSender, v *string) { p.ParametersVariable = v }),
		"destination.httpSender.responseXmlBody":              destinationField(func(p *httpSender, v bool) { p.ResponseXMLBody = v }),
		"destination.httpSender.responseParseMultipart":       destinationField(func(p *httpSender, v bool) { p.ResponseParseMultipart = v }),
		"destination.httpSender.responseIncludeMetadata":      destinationField(func(p *httpSender, v bool) { p.ResponseIncludeMetadata = v }),
		"destination.httpSender.responseBinaryMimeTypes":      destinationField(func(p *httpSender, v string) { p.ResponseBinaryMimeTypes = v }),
		"destination.httpSender.responseBinaryMimeTypesRegex": destinationField(func(p *httpSender, v bool) { p.ResponseBinaryMimeTypesRegex = v }),
		"destination.httpSender.multipart":                    destinationField(func(p *httpSender, v bool) { p.Multipart = v }),
		"destination.httpSender.useAuthentication":            destinationField(func(p *httpSender, v bool) { p.UseAuthentication = v }),
		"destination.httpSender.authenticationType":           destinationField(func(p *httpSender, v string) { p.AuthenticationType = v }),
		"destination.httpSender.usePreemptiveAuthentication":  destinationField(func(p *httpSender, v bool) { p.UsePreemptiveAuthentication = v }),
		"destination.httpSender.username":                     destinationField(func(p *httpSender, v string) { p.Username = v }),
		"destination.httpSender.password":                     destinationField(func(p *httpSender, v string) { p.Password = v }),
		"destination.httpSender.content":                      destinationField(func(p *httpSender, v *string) { p.Content = v }),
		"destination.httpSender.contentType":                  destinationField(func(p *httpSender, v string) { p.ContentType = v }),
		"destination.httpSender.dataTypeBinary":               destinationField(func(p *httpSender, v bool) { p.DataTypeBinary = v }),
		"destination.httpSender.charset":                      destinationField(func(p *httpSender, v string) { p.Charset = v }),
		"destination.httpSender.socketTimeout":                destinationField(func(p *httpSender, v model.Int) { p.SocketTimeout = v }),

		"destination.jmsSender.template":       destinationField(func(p *jmsSender, v string) { p.Template = v }),
		"destination.javaScriptWriter.script": destinationField(func(p *javaScriptWriter, v *string) { p.Script = v }),

		// SMTP Sender.
		"destination.smtpSender.smtpHost":                 destinationField(func(p *smtpSender, v *string) { p.SMTPHost = v }),
		"destination.smtpSender.smtpPort":                 destinationField(func(p *smtpSender, v model.Text) { p.SMTPPort = v }),
		"destination.smtpSender.overrideLocalBinding":     destinationField(func(p *smtpSender, v bool) { p.OverrideLocalBinding = v }),
		"destination.smtpSender.localAddress":             destinationField(func(p *smtpSender, v string) { p.LocalAddress = v }),
		"destination.smtpSender.localPort":                destinationField(func(p *smtpSender, v model.Text) { p.LocalPort = v }),
		"destination.smtpSender.timeout":                  destinationField(func(p *smtpSender, v model.Int) { p.Timeout = v }),
		"destination.smtpSender.encryption":               destinationField(func(p *smtpSender, v string) { p.Encryption = v }),
		"destination.smtpSender.authentication":           destinationField(func(p *smtpSender, v bool) { p.Authentication = v }),
		"destination.smtpSender.username":                 destinationField(func(p *smtpSender, v *string) { p.Username = v }),
		"destination.smtpSender.password":                 destinationField(func(p *smtpSender, v *string) { p.Password = v }),
		"destination.smtpSender.to":                       destinationField(func(p *smtpSender, v *string) { p.To = v }),
		"destination.smtpSender.from":                     destinationField(func(p *smtpSender, v *string) { p.From = v }),
		"destination.smtpSender.cc":                       destinationField(func(p *smtpSender, v *string) { p.CC = v }),
		"destination.smtpSender.bcc":                      destinationField(func(p *smtpSender, v *string) { p.BCC = v }),
		"destination.smtpSender.replyTo":                  destinationField(func(p *smtpSender, v *string) { p.ReplyTo = v }),
		"destination.smtpSender.headers":                  destinationField(func(p *smtpSender, v *model.Map[model.StringEntry]) { p.Headers = v }),
		"destination.smtpSender.headersVariable":          destinationField(func(p *smtpSender, v *string) { p.HeadersVariable = v }),
		"destination.smtpSender.isUseHeadersVariable":     destinationField(func(p *smtpSender, v bool) { p.IsUseHeadersVariable = v }),
		"destination.smtpSender.subject":                  destinationField(func(p *smtpSender, v *string) { p.Subject = v }),
		"destination.smtpSender.charsetEncoding":          destinationField(func(p *smtpSender, v string) { p.CharsetEncoding = v }),
		"destination.smtpSender.html":                     destinationField(func(p *smtpSender, v bool) { p.HTML = v }),
		"destination.smtpSender.body":                     destinationField(func(p *smtpSender, v *string) { p.Body = v }),
		"destination.smtpSender.attachmentsVariable":      destinationField(func(p *smtpSender, v *string) { p.AttachmentsVariable = v }),
		"destination.smtpSender.isUseAttachmentsVariable": destinationField(func(p *smtpSender, v bool) { p.IsUseAttachmentsVariable = v }),
		"destination.smtpSender.attachments": destinationField(func(p *smtpSender, v []model.SMTPAttachment) {
			p.Attachments = &model.SMTPAttachments{Attachment: v}
		}),

		// TCP Sender.
		"destination.tcpSender.transmissionMode":       destinationOp(SetDestinationTransmissionMode),
		"destination.tcpSender.serverMode":             destinationField(func(p *tcpSender, v bool) { p.ServerMode = v }),
		"destination.tcpSender.remoteAddress":          destinationField(func(p *tcpSender, v string) { p.RemoteAddress = v }),
		"destination.tcpSender.remotePort":             destinationField(func(p *tcpSender, v model.Text) { p.RemotePort = v }),
		"destination.tcpSender.overrideLocalBinding":   destinationField(func(p *tcpSender, v bool) { p.OverrideLocalBinding = v }),
		"destination.tcpSender.localAddress":           destinationField(func(p *tcpSender, v string) { p.LocalAddress = v }),
		"destination.tcpSender.localPort":              destinationField(func(p *tcpSender, v model.Text) { p.LocalPort = v }),
		"destination.tcpSender.sendTimeout":            destinationField(func(p *tcpSender, v model.Int) { p.SendTimeout = v }),
		"destination.tcpSender.bufferSize":             destinationField(func(p *tcpSender, v model.Int) { p.BufferSize = v }),
		"destination.tcpSender.maxConnections":         destinationField(func(p *tcpSender, v model.Int) { p.MaxConnections = v }),
		"destination.tcpSender.keepConnectionOpen":     destinationField(func(p *tcpSender, v bool) { p.KeepConnectionOpen = v }),
		"destination.tcpSender.checkRemoteHost":        destinationField(func(p *tcpSender, v bool) { p.CheckRemoteHost = v }),
		"destination.tcpSender.responseTimeout":        destinationField(func(p *tcpSender, v model.Int) { p.ResponseTimeout = v }),
		"destination.tcpSender.ignoreResponse":         destinationField(func(p *tcpSender, v bool) { p.IgnoreResponse = v }),
		"destination.tcpSender.queueOnResponseTimeout": destinationField(func(p *tcpSender, v bool) { p.QueueOnResponseTimeout = v }),
		"destination.tcpSender.dataTypeBinary":         destinationField(func(p *tcpSender, v bool) { p.DataTypeBinary = v }),
		"destination.tcpSender.charsetEncoding":        destinationField(func(p *tcpSender, v string) { p.CharsetEncoding = v }),
		"destination.tcpSender.template":               destinationField(func(p *tcpSender, v string) { p.Template = v }),

		// Web Service Sender.
		"destination.webServiceSender.wsdlUrl":              destinationField(func(p *webServiceSender, v *string) { p.WSDLURL = v }),
		"destination.webServiceSender.service":              destinationField(func(p *webServiceSender, v *string) { p.Service = v }),
		"destination.webServiceSender.port":                 destinationField(func(p *webServiceSender, v *string) { p.Port = v }),
		"destination.webServiceSender.operation":            destinationField(func(p *webServiceSender, v string) { p.Operation = v }),
		"destination.webServiceSender.locationURI":          destinationField(func(p *webServiceSender, v *string) { p.LocationURI = v }),
		"destination.webServiceSender.socketTimeout":        destinationField(func(p *webServiceSender, v model.Int) { p.SocketTimeout = v }),
		"destination.webServiceSender.useAuthentication":    destinationField(func(p *webServiceSender, v bool) { p.UseAuthentication = v }),
		"destination.webServiceSender.username":             destinationField(func(p *webServiceSender, v *string) { p.Username = v }),
		"destination.webServiceSender.password":             destinationField(func(p *webServiceSender, v *string) { p.Password = v }),
		"destination.webServiceSender.envelope":             destinationField(func(p *webServiceSender, v *string) { p.Envelope = v }),
		"destination.webServiceSender.oneWay":               destinationField(func(p *webServiceSender, v bool) { p.OneWay = v }),
		"destination.webServiceSender.headers":              destinationField(func(p *webServiceSender, v *model.Map[model.ListEntry]) { p.Headers = v }),
		"destination.webServiceSender.headersVariable":      destinationField(func(p *webServiceSender, v *string) { p.HeadersVariable = v }),
		"destination.webServiceSender.isUseHeadersVariable": destinationField(func(p *webServiceSender, v bool) { p.IsUseHeadersVariable = v }),
		"destination.webServiceSender.useMtom":              destinationField(func(p *webServiceSender, v bool) { p.UseMTOM = v }),
		"destination.webServiceSender.soapAction":           destinationField(func(p *webServiceSender, v *string) { p.SOAPAction = v }),

		// Filters and transformers; a nil metaDataId addresses the source.
		"filter.rules":      targetOp(SetFilterRules),
		"transformer.steps": targetOp(SetTransformerSteps),
	}

	jmsField(m, "useJndi", func(s *model.JMSSettings, v bool) { s.UseJNDI = v })
	jmsField(m, "jndiProviderUrl", func(s *model.JMSSettings, v *string) { s.JNDIProviderURL = v })
	jmsField(m, "jndiInitialContextFactory", func(s *model.JMSSettings, v *string) { s.JNDIInitialContextFactory = v })
	jmsField(m, "jndiConnectionFactoryName", func(s *model.JMSSettings, v *string) { s.JNDIConnectionFactoryName = v })
	jmsField(m, "connectionFactoryClass", func(s *model.JMSSettings, v *string) { s.ConnectionFactoryClass = v })
	jmsField(m, "connectionProperties", func(s *model.JMSSettings, v *model.Map[model.StringEntry]) { s.ConnectionProperties = v })
	jmsField(m, "username", func(s *model.JMSSettings, v *string) { s.Username = v })
	jmsField(m, "password", func(s *model.JMSSettings, v *string) { s.Password = v })
	jmsField(m, "destinationName", func(s *model.JMSSettings, v *string) { s.DestinationName = v })
	jmsField(m, "topic", func(s *model.JMSSettings, v bool) { s.Topic = v })
	jmsField(m, "clientId", func(s *model.JMSSettings, v *string) { s.ClientID = v })

	// Operations whose values are checked against a fixed set.
	m["source.type"] = func(c *model.Channel, a Action) (*model.Channel, error) {
		kind, err := decode[model.SourceKind](a)
		if err != nil {
			return nil, err
		}
		if _, ok := model.SourceClass(kind); !ok {
			return nil, fmt.Errorf("%w: source type %q", ErrInvalidValue, kind)
		}
		return SetSourceType(c, kind), nil
	}
	m["destination.type"] = destinationChecked(func(c *model.Channel, id int64, kind model.DestinationKind) (*model.Channel, bool) {
		if _, ok := model.DestinationClass(kind); !ok {
			return nil, false
		}
		return SetDestinationType(c, id, kind), true
	})
	m["destination.queueMode"] = destinationChecked(func(c *model.Channel, id int64, mode QueueMode) (*model.Channel, bool) {
		if _, _, ok := mode.Flags(); !ok {
			return nil, false
		}
		return SetQueueMode(c, id, mode), true
	})
	m["destination.fileWriter.fileExists"] = destinationChecked(func(c *model.Channel, id int64, policy FileExistsPolicy) (*model.Channel, bool) {
		if _, _, ok := policy.Flags(); !ok {
			return nil, false
		}
		return SetFileExistsPolicy(c, id, policy), true
	})
	m["destination.add"] = func(c *model.Channel, a Action) (*model.Channel, error) {
		nd, err := decode[newDestination](a)
		if err != nil {
			return nil, err
		}
		kind := model.DestinationKind(nd.TransportName)
		if kind == "" {
			kind = model.DestinationChannelWriter
		}
		if _, ok := model.DestinationClass(kind); !ok {
			return nil, fmt.Errorf("%w: destination type %q", ErrInvalidValue, kind)
		}
		out, _ := AddDestination(c, nd.Name, kind)
		return out, nil
	}
	m["destination.remove"] = func(c *model.Channel, a Action) (*model.Channel, error) {
		if a.MetaDataID == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingTarget, a.Type)
		}
		return RemoveDestination(c, *a.MetaDataID), nil
	}
	return m
}

func destinationChecked[V any](set func(*model.Channel, int64, V) (*model.Channel, bool)) op {
	return func(c *model.Channel, a Action) (*model.Channel, error) {
		if a.MetaDataID == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingTarget, a.Type)
		}
		v, err := decode[V](a)
		if err != nil {
			return nil, err
		}
		out, ok := set(c, *a.MetaDataID, v)
		if !ok {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, a.Type, v)
		}
		return out, nil
	}
}
