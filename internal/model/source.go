package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SourceKind is the transportName of a source connector.
type SourceKind string

const (
	SourceChannelReader      SourceKind = "Channel Reader"
	SourceDICOMListener      SourceKind = "DICOM Listener"
	SourceDatabaseReader     SourceKind = "Database Reader"
	SourceFileReader         SourceKind = "File Reader"
	SourceHTTPListener       SourceKind = "HTTP Listener"
	SourceJMSListener        SourceKind = "JMS Listener"
	SourceJavaScriptReader   SourceKind = "JavaScript Reader"
	SourceTCPListener        SourceKind = "TCP Listener"
	SourceWebServiceListener SourceKind = "Web Service Listener"
)

// SourceProperties is the tagged union of source connector property sets.
type SourceProperties interface {
	// Kind reports the variant; "" for a class the console does not model.
	Kind() SourceKind
	// Common returns the shared sub-objects, or nil for an unmodeled class.
	Common() *SourceBase
	// CloneSource returns a shallow copy whose nested pointers are shared.
	CloneSource() SourceProperties
}

// SourceBase holds what every source variant carries.
type SourceBase struct {
	Class                       string                       `json:"@class"`
	Version                     string                       `json:"@version,omitempty"`
	PluginProperties            json.RawMessage              `json:"pluginProperties"`
	ListenerConnectorProperties *ListenerConnectorProperties `json:"listenerConnectorProperties,omitempty"`
	PollConnectorProperties     *PollConnectorProperties     `json:"pollConnectorProperties,omitempty"`
	SourceConnectorProperties   *SourceConnectorProperties   `json:"sourceConnectorProperties"`
	Extra                       Extra                        `json:"-"`
}

func (b *SourceBase) Common() *SourceBase { return b }

// SourceConnectorProperties holds response and batching behaviour.
type SourceConnectorProperties struct {
	Version                string            `json:"@version,omitempty"`
	ResponseVariable       string            `json:"responseVariable"`
	RespondAfterProcessing bool              `json:"respondAfterProcessing"`
	ProcessBatch           bool              `json:"processBatch"`
	FirstResponse          bool              `json:"firstResponse"`
	ProcessingThreads      Int               `json:"processingThreads"`
	ResourceIDs            *Map[StringEntry] `json:"resourceIds"`
	QueueBufferSize        Int               `json:"queueBufferSize"`
	Extra                  Extra             `json:"-"`
}

type sourceConnectorPropertiesAlias SourceConnectorProperties

func (p *SourceConnectorProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*sourceConnectorPropertiesAlias)(p), &p.Extra)
}

func (p SourceConnectorProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(sourceConnectorPropertiesAlias(p), p.Extra)
}

// ListenerConnectorProperties is the bind address of listening sources.
type ListenerConnectorProperties struct {
	Version string `json:"@version,omitempty"`
	Host    string `json:"host"`
	Port    Text   `json:"port"`
}

// PollConnectorProperties is the schedule of polling sources.
type PollConnectorProperties struct {
	Version                         string        `json:"@version,omitempty"`
	PollingType                     string        `json:"pollingType"` // INTERVAL, TIME, CRON
	PollOnStart                     bool          `json:"pollOnStart"`
	PollingFrequency                Int           `json:"pollingFrequency"` // Milliseconds
	PollingHour                     Int           `json:"pollingHour"`
	PollingMinute                   Int           `json:"pollingMinute"`
	CronJobs                        *CronJobs     `json:"cronJobs"`
	PollConnectorPropertiesAdvanced *PollAdvanced `json:"pollConnectorPropertiesAdvanced"`
}

// CronJobs wraps the cron schedule list.
type CronJobs struct {
	CronProperty List[CronProperty] `json:"cronProperty"`
}

// UnmarshalJSON also accepts the misspelled "cronProperity" key older clients wrote.
func (c *CronJobs) UnmarshalJSON(b []byte) error {
	var raw struct {
		CronProperty  List[CronProperty] `json:"cronProperty"`
		CronProperity List[CronProperty] `json:"cronProperity"`
	}
	if isEmptyJSON(bytes.TrimSpace(b)) {
		return nil
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	c.CronProperty = raw.CronProperty
	if len(c.CronProperty) == 0 {
		c.CronProperty = raw.CronProperity
	}
	return nil
}

// CronProperty is one cron schedule.
type CronProperty struct {
	Description string `json:"description"`
	Expression  string `json:"expression"`
}

// PollAdvanced restricts when interval polling is active.
type PollAdvanced struct {
	Weekly         bool      `json:"weekly"`
	InactiveDays   *Booleans `json:"inactiveDays"`
	DayOfMonth     Int       `json:"dayOfMonth"`
	AllDay         bool      `json:"allDay"`
	StartingHour   Int       `json:"startingHour"`
	StartingMinute Int       `json:"startingMinute"`
	EndingHour     Int       `json:"endingHour"`
	EndingMinute   Int       `json:"endingMinute"`
}

// Booleans is the engine's {"boolean": [...]} wrapper.
type Booleans struct {
	Boolean List[bool] `json:"boolean"`
}

// TransmissionModeProperties frames TCP payloads. The MLLP fields are absent in
// basic frame mode.
type TransmissionModeProperties struct {
	Class               string `json:"@class"`
	PluginPointName     string `json:"pluginPointName"` // Basic, MLLP
	StartOfMessageBytes Text   `json:"startOfMessageBytes"`
	EndOfMessageBytes   Text   `json:"endOfMessageBytes"`
	UseMLLPv2           *bool  `json:"useMLLPv2,omitempty"`
	AckBytes            Text   `json:"ackBytes,omitempty"`
	NackBytes           Text   `json:"nackBytes,omitempty"`
	MaxRetries          *Int   `json:"maxRetries,omitempty"`
	Extra               Extra  `json:"-"`
}

type transmissionModeAlias TransmissionModeProperties

func (p *TransmissionModeProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*transmissionModeAlias)(p), &p.Extra)
}

func (p TransmissionModeProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(transmissionModeAlias(p), p.Extra)
}

// JMSSettings is the connection block shared by the JMS listener and sender.
type JMSSettings struct {
	UseJNDI                   bool              `json:"useJndi"`
	JNDIProviderURL           *string           `json:"jndiProviderUrl"`
	JNDIInitialContextFactory *string           `json:"jndiInitialContextFactory"`
	JNDIConnectionFactoryName *string           `json:"jndiConnectionFactoryName"`
	ConnectionFactoryClass    *string           `json:"connectionFactoryClass"`
	ConnectionProperties      *Map[StringEntry] `json:"connectionProperties"`
	Username                  *string           `json:"username"`
	Password                  *string           `json:"password"`
	DestinationName           *string           `json:"destinationName"`
	Topic                     bool              `json:"topic"`
	ClientID                  *string           `json:"clientId"`
}

// ChannelReaderProperties receives messages routed from other channels.
type ChannelReaderProperties struct {
	SourceBase
}

// DICOMListenerProperties receives DICOM associations.
type DICOMListenerProperties struct {
	SourceBase
	ApplicationEntity      *string `json:"applicationEntity"`
	LocalHost              *string `json:"localHost"`
	LocalPort              *Text   `json:"localPort"`
	LocalApplicationEntity *string `json:"localApplicationEntity"`
	SoCloseDelay           Int     `json:"soCloseDelay"`
	ReleaseTo              Int     `json:"releaseTo"`
	RequestTo              Int     `json:"requestTo"`
	IdleTo                 Int     `json:"idleTo"`
	Reaper                 Int     `json:"reaper"`
	RspDelay               Int     `json:"rspDelay"`
	PDV1                   bool    `json:"pdv1"`
	SndPDULen              Int     `json:"sndpdulen"`
	RcvPDULen              Int     `json:"rcvpdulen"`
	Async                  Int     `json:"async"`
	BigEndian              bool    `json:"bigEndian"`
	BufSize                Int     `json:"bufSize"`
	DefTS                  bool    `json:"defts"`
	Dest                   *string `json:"dest"`
	NativeData             bool    `json:"nativeData"`
	SoRcvBuf               Int     `json:"sorcvbuf"`
	SoSndBuf               Int     `json:"sosndbuf"`
	TCPDelay               bool    `json:"tcpDelay"`
	KeyPW                  *string `json:"keyPW"`
	KeyStore               *string `json:"keyStore"`
	KeyStorePW             *string `json:"keyStorePW"`
	NoClientAuth           bool    `json:"noClientAuth"`
	NoSSL2                 bool    `json:"nossl2"`
	TLS                    string  `json:"tls"`
	TrustStore             *string `json:"trustStore"`
	TrustStorePW           *string `json:"trustStorePW"`
}

// DatabaseReaderProperties polls a database.
type DatabaseReaderProperties struct {
	SourceBase
	Driver             *string `json:"driver"`
	URL                *string `json:"url"`
	Username           *string `json:"username"`
	Password           *string `json:"password"`
	Select             *string `json:"select"`
	Update             *string `json:"update"`
	UseScript          bool    `json:"useScript"`
	AggregateResults   bool    `json:"aggregateResults"`
	CacheResults       bool    `json:"cacheResults"`
	KeepConnectionOpen bool    `json:"keepConnectionOpen"`
	UpdateMode         Int     `json:"updateMode"`
	RetryCount         Int     `json:"retryCount"`
	RetryInterval      Int     `json:"retryInterval"`
	FetchSize          Int     `json:"fetchSize"`
	Encoding           string  `json:"encoding"`
}

// FileReaderProperties polls a local or remote directory.
type FileReaderProperties struct {
	SourceBase
	Scheme                string          `json:"scheme"` // FILE, FTP, SFTP, S3, SMB, WEBDAV
	SchemeProperties      json.RawMessage `json:"schemeProperties,omitempty"`
	Host                  *string         `json:"host"`
	FileFilter            string          `json:"fileFilter"`
	Regex                 bool            `json:"regex"`
	DirectoryRecursion    bool            `json:"directoryRecursion"`
	IgnoreDot             bool            `json:"ignoreDot"`
	Anonymous             bool            `json:"anonymous"`
	Username              string          `json:"username"`
	Password              string          `json:"password"`
	Timeout               Int             `json:"timeout"`
	Secure                bool            `json:"secure"`
	Passive               bool            `json:"passive"`
	ValidateConnection    bool            `json:"validateConnection"`
	AfterProcessingAction string          `json:"afterProcessingAction"` // NONE, MOVE, DELETE
	MoveToDirectory       *string         `json:"moveToDirectory"`
	MoveToFileName        *string         `json:"moveToFileName"`
	ErrorReadingAction    string          `json:"errorReadingAction"`
	ErrorResponseAction   string          `json:"errorResponseAction"`
	ErrorMoveToDirectory  *string         `json:"errorMoveToDirectory"`
	ErrorMoveToFileName   *string         `json:"errorMoveToFileName"`
	CheckFileAge          bool            `json:"checkFileAge"`
	FileAge               Int             `json:"fileAge"`
	FileSizeMinimum       Int             `json:"fileSizeMinimum"`
	FileSizeMaximum       *Int            `json:"fileSizeMaximum"`
	IgnoreFileSizeMaximum bool            `json:"ignoreFileSizeMaximum"`
	SortBy                string          `json:"sortBy"`
	Binary                bool            `json:"binary"`
	CharsetEncoding       string          `json:"charsetEncoding"`
}

// HTTPListenerProperties serves an HTTP endpoint.
type HTTPListenerProperties struct {
	SourceBase
	XMLBody                    bool             `json:"xmlBody"`
	ParseMultipart             bool             `json:"parseMultipart"`
	IncludeMetadata            bool             `json:"includeMetadata"`
	BinaryMimeTypes            string           `json:"binaryMimeTypes"`
	BinaryMimeTypesRegex       bool             `json:"binaryMimeTypesRegex"`
	ResponseContentType        string           `json:"responseContentType"`
	ResponseDataTypeBinary     bool             `json:"responseDataTypeBinary"`
	ResponseStatusCode         *string          `json:"responseStatusCode"`
	ResponseHeaders            *Map[ListEntry]  `json:"responseHeaders"`
	ResponseHeadersVariable    *string          `json:"responseHeadersVariable"`
	UseResponseHeadersVariable bool             `json:"useResponseHeadersVariable"`
	Charset                    string           `json:"charset"`
	ContextPath                *string          `json:"contextPath"`
	Timeout                    Int              `json:"timeout"`
	StaticResources            *StaticResources `json:"staticResources"`
}

// StaticResources wraps the static resources an HTTP listener serves.
type StaticResources struct {
	Resource List[StaticResource] `json:"com.mirth.connect.connectors.http.HttpStaticResource"`
}

// StaticResource is one static path served by an HTTP listener.
type StaticResource struct {
	ContextPath  string `json:"contextPath"`
	ResourceType string `json:"resourceType"` // FILE, DIRECTORY, CUSTOM
	Value        string `json:"value"`
	ContentType  string `json:"contentType"`
}

// JMSListenerProperties consumes a JMS queue or topic.
type JMSListenerProperties struct {
	SourceBase
	JMSSettings
	Selector                *string `json:"selector"`
	ReconnectIntervalMillis Int     `json:"reconnectIntervalMillis"`
	DurableTopic            bool    `json:"durableTopic"`
}

// JavaScriptReaderProperties polls by running a script.
type JavaScriptReaderProperties struct {
	SourceBase
	Script *string `json:"script"`
}

// TCPListenerProperties accepts or opens raw TCP connections.
type TCPListenerProperties struct {
	SourceBase
	TransmissionModeProperties *TransmissionModeProperties `json:"transmissionModeProperties"`
	ServerMode                 bool                        `json:"serverMode"`
	RemoteAddress              *string                     `json:"remoteAddress"`
	RemotePort                 *Text                       `json:"remotePort"`
	OverrideLocalBinding       bool                        `json:"overrideLocalBinding"`
	ReconnectInterval          Int                         `json:"reconnectInterval"`
	ReceiveTimeout             Int                         `json:"receiveTimeout"`
	BufferSize                 Int                         `json:"bufferSize"`
	MaxConnections             Int                         `json:"maxConnections"`
	KeepConnectionOpen         bool                        `json:"keepConnectionOpen"`
	DataTypeBinary             bool                        `json:"dataTypeBinary"`
	CharsetEncoding            string                      `json:"charsetEncoding"`
	RespondOnNewConnection     Int                         `json:"respondOnNewConnection"`
	ResponseAddress            *string                     `json:"responseAddress"`
	ResponsePort               *Text                       `json:"responsePort"`
}

// WebServiceListenerProperties serves a SOAP endpoint.
type WebServiceListenerProperties struct {
	SourceBase
	ClassName   string `json:"className"`
	ServiceName string `json:"serviceName"`
	SOAPBinding string `json:"soapBinding"` // DEFAULT, SOAP11HTTP, SOAP12HTTP
}

// RawSourceProperties keeps a properties object of an unknown class verbatim.
type RawSourceProperties struct {
	Class string
	Raw   json.RawMessage
}

func (r *RawSourceProperties) Kind() SourceKind              { return "" }
func (r *RawSourceProperties) Common() *SourceBase           { return nil }
func (r *RawSourceProperties) CloneSource() SourceProperties { c := *r; return &c }

func (r RawSourceProperties) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw, nil
}

type (
	channelReaderAlias      ChannelReaderProperties
	dicomListenerAlias      DICOMListenerProperties
	databaseReaderAlias     DatabaseReaderProperties
	fileReaderAlias         FileReaderProperties
	httpListenerAlias       HTTPListenerProperties
	jmsListenerAlias        JMSListenerProperties
	javaScriptReaderAlias   JavaScriptReaderProperties
	tcpListenerAlias        TCPListenerProperties
	webServiceListenerAlias WebServiceListenerProperties
)

func (p *ChannelReaderProperties) Kind() SourceKind      { return SourceChannelReader }
func (p *DICOMListenerProperties) Kind() SourceKind      { return SourceDICOMListener }
func (p *DatabaseReaderProperties) Kind() SourceKind     { return SourceDatabaseReader }
func (p *FileReaderProperties) Kind() SourceKind         { return SourceFileReader }
func (p *HTTPListenerProperties) Kind() SourceKind       { return SourceHTTPListener }
func (p *JMSListenerProperties) Kind() SourceKind        { return SourceJMSListener }
func (p *JavaScriptReaderProperties) Kind() SourceKind   { return SourceJavaScriptReader }
func (p *TCPListenerProperties) Kind() SourceKind        { return SourceTCPListener }
func (p *WebServiceListenerProperties) Kind() SourceKind { return SourceWebServiceListener }

func (p *ChannelReaderProperties) CloneSource() SourceProperties      { c := *p; return &c }
func (p *DICOMListenerProperties) CloneSource() SourceProperties      { c := *p; return &c }
func (p *DatabaseReaderProperties) CloneSource() SourceProperties     { c := *p; return &c }
func (p *FileReaderProperties) CloneSource() SourceProperties         { c := *p; return &c }
func (p *HTTPListenerProperties) CloneSource() SourceProperties       { c := *p; return &c }
func (p *JMSListenerProperties) CloneSource() SourceProperties        { c := *p; return &c }
func (p *JavaScriptReaderProperties) CloneSource() SourceProperties   { c := *p; return &c }
func (p *TCPListenerProperties) CloneSource() SourceProperties        { c := *p; return &c }
func (p *WebServiceListenerProperties) CloneSource() SourceProperties { c := *p; return &c }

func (p *ChannelReaderProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*channelReaderAlias)(p), &p.Extra)
}
func (p ChannelReaderProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(channelReaderAlias(p), p.Extra)
}

func (p *DICOMListenerProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*dicomListenerAlias)(p), &p.Extra)
}
func (p DICOMListenerProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(dicomListenerAlias(p), p.Extra)
}

func (p *DatabaseReaderProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*databaseReaderAlias)(p), &p.Extra)
}
func (p DatabaseReaderProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(databaseReaderAlias(p), p.Extra)
}

func (p *FileReaderProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*fileReaderAlias)(p), &p.Extra)
}
func (p FileReaderProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(fileReaderAlias(p), p.Extra)
}

func (p *HTTPListenerProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*httpListenerAlias)(p), &p.Extra)
}
func (p HTTPListenerProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(httpListenerAlias(p), p.Extra)
}

func (p *JMSListenerProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*jmsListenerAlias)(p), &p.Extra)
}
func (p JMSListenerProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(jmsListenerAlias(p), p.Extra)
}

func (p *JavaScriptReaderProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*javaScriptReaderAlias)(p), &p.Extra)
}
func (p JavaScriptReaderProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(javaScriptReaderAlias(p), p.Extra)
}

func (p *TCPListenerProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*tcpListenerAlias)(p), &p.Extra)
}
func (p TCPListenerProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(tcpListenerAlias(p), p.Extra)
}

func (p *WebServiceListenerProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*webServiceListenerAlias)(p), &p.Extra)
}
func (p WebServiceListenerProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(webServiceListenerAlias(p), p.Extra)
}

type sourceVariant struct {
	kind  SourceKind
	class string
	zero  func() SourceProperties
}

var sourceVariants = []sourceVariant{
	{SourceChannelReader, "com.mirth.connect.connectors.vm.VmReceiverProperties", func() SourceProperties { return &ChannelReaderProperties{} }},
	{SourceDICOMListener, "com.mirth.connect.connectors.dimse.DICOMReceiverProperties", func() SourceProperties { return &DICOMListenerProperties{} }},
	{SourceDatabaseReader, "com.mirth.connect.connectors.jdbc.DatabaseReceiverProperties", func() SourceProperties { return &DatabaseReaderProperties{} }},
	{SourceFileReader, "com.mirth.connect.connectors.file.FileReceiverProperties", func() SourceProperties { return &FileReaderProperties{} }},
	{SourceHTTPListener, "com.mirth.connect.connectors.http.HttpReceiverProperties", func() SourceProperties { return &HTTPListenerProperties{} }},
	{SourceJMSListener, "com.mirth.connect.connectors.jms.JmsReceiverProperties", func() SourceProperties { return &JMSListenerProperties{} }},
	{SourceJavaScriptReader, "com.mirth.connect.connectors.js.JavaScriptReceiverProperties", func() SourceProperties { return &JavaScriptReaderProperties{} }},
	{SourceTCPListener, "com.mirth.connect.connectors.tcp.TcpReceiverProperties", func() SourceProperties { return &TCPListenerProperties{} }},
	{SourceWebServiceListener, "com.mirth.connect.connectors.ws.WebServiceReceiverProperties", func() SourceProperties { return &WebServiceListenerProperties{} }},
}

// SourceKinds lists every modeled source kind in display order.
func SourceKinds() []SourceKind {
	kinds := make([]SourceKind, len(sourceVariants))
	for i, v := range sourceVariants {
		kinds[i] = v.kind
	}
	return kinds
}

// SourceClass returns the @class of a source kind.
func SourceClass(kind SourceKind) (string, bool) {
	for _, v := range sourceVariants {
		if v.kind == kind {
			return v.class, true
		}
	}
	return "", false
}

// DecodeSourceProperties selects the variant by @class. Unknown classes decode
// to *RawSourceProperties; null decodes to nil.
func DecodeSourceProperties(b []byte) (SourceProperties, error) {
	b = bytes.TrimSpace(b)
	if isEmptyJSON(b) {
		return nil, nil
	}
	var head struct {
		Class string `json:"@class"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, fmt.Errorf("decode source class: %w", err)
	}
	for _, v := range sourceVariants {
		if v.class == head.Class {
			p := v.zero()
			if err := json.Unmarshal(b, p); err != nil {
				return nil, fmt.Errorf("decode %s: %w", v.kind, err)
			}
			return p, nil
		}
	}
	return &RawSourceProperties{Class: head.Class, Raw: append(json.RawMessage(nil), b...)}, nil
}
