package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DestinationKind is the transportName of a destination connector.
type DestinationKind string

const (
	DestinationChannelWriter    DestinationKind = "Channel Writer"
	DestinationDICOMSender      DestinationKind = "DICOM Sender"
	DestinationDatabaseWriter   DestinationKind = "Database Writer"
	DestinationDocumentWriter   DestinationKind = "Document Writer"
	DestinationFileWriter       DestinationKind = "File Writer"
	DestinationHTTPSender       DestinationKind = "HTTP Sender"
	DestinationJMSSender        DestinationKind = "JMS Sender"
	DestinationJavaScriptWriter DestinationKind = "JavaScript Writer"
	DestinationSMTPSender       DestinationKind = "SMTP Sender"
	DestinationTCPSender        DestinationKind = "TCP Sender"
	DestinationWebServiceSender DestinationKind = "Web Service Sender"
)

// DestinationProperties is the tagged union of destination property sets.
type DestinationProperties interface {
	Kind() DestinationKind
	Common() *DestinationBase
	CloneDestination() DestinationProperties
}

// DestinationBase holds what every destination variant carries.
type DestinationBase struct {
	Class                          string                          `json:"@class"`
	Version                        string                          `json:"@version,omitempty"`
	PluginProperties               json.RawMessage                 `json:"pluginProperties"`
	DestinationConnectorProperties *DestinationConnectorProperties `json:"destinationConnectorProperties"`
	Extra                          Extra                           `json:"-"`
}

func (b *DestinationBase) Common() *DestinationBase { return b }

// DestinationConnectorProperties holds queueing and retry behaviour.
type DestinationConnectorProperties struct {
	Version                  string            `json:"@version,omitempty"`
	QueueEnabled             bool              `json:"queueEnabled"`
	SendFirst                bool              `json:"sendFirst"`
	RetryIntervalMillis      Int               `json:"retryIntervalMillis"`
	RegenerateTemplate       bool              `json:"regenerateTemplate"`
	RetryCount               Int               `json:"retryCount"`
	Rotate                   bool              `json:"rotate"`
	IncludeFilterTransformer bool              `json:"includeFilterTransformer"`
	ThreadCount              Int               `json:"threadCount"`
	ThreadAssignmentVariable *string           `json:"threadAssignmentVariable"`
	ValidateResponse         bool              `json:"validateResponse"`
	ResourceIDs              *Map[StringEntry] `json:"resourceIds"`
	QueueBufferSize          Int               `json:"queueBufferSize"`
	ReattachAttachments      bool              `json:"reattachAttachments"`
	Extra                    Extra             `json:"-"`
}

type destinationConnectorPropertiesAlias DestinationConnectorProperties

func (p *DestinationConnectorProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*destinationConnectorPropertiesAlias)(p), &p.Extra)
}

func (p DestinationConnectorProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(destinationConnectorPropertiesAlias(p), p.Extra)
}

// ChannelWriterProperties routes messages to another channel.
type ChannelWriterProperties struct {
	DestinationBase
	ChannelID       string   `json:"channelId"` // "none" when unset
	ChannelTemplate *string  `json:"channelTemplate"`
	MapVariables    *Strings `json:"mapVariables"`
}

// DICOMSenderProperties sends DICOM objects to a peer.
type DICOMSenderProperties struct {
	DestinationBase
	Host                   string  `json:"host"`
	Port                   Text    `json:"port"`
	ApplicationEntity      *string `json:"applicationEntity"`
	LocalHost              *string `json:"localHost"`
	LocalPort              *Text   `json:"localPort"`
	LocalApplicationEntity *string `json:"localApplicationEntity"`
	Template               string  `json:"template"`
	AcceptTo               Int     `json:"acceptTo"`
	Async                  Int     `json:"async"`
	BufSize                Int     `json:"bufSize"`
	ConnectTo              Int     `json:"connectTo"`
	Priority               string  `json:"priority"`
	Passcode               *string `json:"passcode"`
	PDV1                   bool    `json:"pdv1"`
	RcvPDULen              Int     `json:"rcvpdulen"`
	Reaper                 Int     `json:"reaper"`
	ReleaseTo              Int     `json:"releaseTo"`
	RspTo                  Int     `json:"rspTo"`
	ShutdownDelay          Int     `json:"shutdownDelay"`
	SndPDULen              Int     `json:"sndpdulen"`
	SoCloseDelay           Int     `json:"soCloseDelay"`
	SoRcvBuf               Int     `json:"sorcvbuf"`
	SoSndBuf               Int     `json:"sosndbuf"`
	StgCmt                 bool    `json:"stgcmt"`
	TCPDelay               bool    `json:"tcpDelay"`
	TS1                    bool    `json:"ts1"`
	UIDNegRsp              bool    `json:"uidnegrsp"`
	Username               *string `json:"username"`
	KeyPW                  *string `json:"keyPW"`
	KeyStore               *string `json:"keyStore"`
	KeyStorePW             *string `json:"keyStorePW"`
	NoClientAuth           bool    `json:"noClientAuth"`
	NoSSL2                 bool    `json:"nossl2"`
	TLS                    string  `json:"tls"`
	TrustStore             *string `json:"trustStore"`
	TrustStorePW           *string `json:"trustStorePW"`
}

// DatabaseWriterProperties executes a statement or script per message.
type DatabaseWriterProperties struct {
	DestinationBase
	Driver    *string `json:"driver"`
	URL       *string `json:"url"`
	Username  *string `json:"username"`
	Password  *string `json:"password"`
	Query     *string `json:"query"`
	UseScript bool    `json:"useScript"`
}

// DocumentWriterProperties renders a PDF or RTF document.
type DocumentWriterProperties struct {
	DestinationBase
	Host          string  `json:"host"`
	OutputPattern string  `json:"outputPattern"`
	DocumentType  string  `json:"documentType"` // pdf, rtf
	Encrypt       bool    `json:"encrypt"`
	Output        string  `json:"output"` // FILE, ATTACHMENT, BOTH
	Password      *string `json:"password"`
	PageWidth     Text    `json:"pageWidth"`
	PageHeight    Text    `json:"pageHeight"`
	PageUnit      string  `json:"pageUnit"`
	Template      string  `json:"template"`
}

// FileWriterProperties writes a file to a local or remote directory.
type FileWriterProperties struct {
	DestinationBase
	Scheme             string          `json:"scheme"`
	SchemeProperties   json.RawMessage `json:"schemeProperties,omitempty"`
	Host               string          `json:"host"`
	OutputPattern      string          `json:"outputPattern"`
	Anonymous          bool            `json:"anonymous"`
	Username           string          `json:"username"`
	Password           string          `json:"password"`
	Timeout            Int             `json:"timeout"`
	KeepConnectionOpen bool            `json:"keepConnectionOpen"`
	MaxIdleTime        Int             `json:"maxIdleTime"`
	Secure             bool            `json:"secure"`
	Passive            bool            `json:"passive"`
	ValidateConnection bool            `json:"validateConnection"`
	OutputAppend       bool            `json:"outputAppend"`
	ErrorOnExists      bool            `json:"errorOnExists"`
	Temporary          bool            `json:"temporary"`
	Binary             bool            `json:"binary"`
	CharsetEncoding    string          `json:"charsetEncoding"`
	Template           string          `json:"template"`
}

// HTTPSenderProperties sends an HTTP request per message.
type HTTPSenderProperties struct {
	DestinationBase
	Host                         string          `json:"host"`
	UseProxyServer               bool            `json:"useProxyServer"`
	ProxyAddress                 *string         `json:"proxyAddress"`
	ProxyPort                    *Text           `json:"proxyPort"`
	Method                       string          `json:"method"`
	Headers                      *Map[ListEntry] `json:"headers"`
	Parameters                   *Map[ListEntry] `json:"parameters"`
	UseHeadersVariable           bool            `json:"useHeadersVariable"`
	HeadersVariable              *string         `json:"headersVariable"`
	UseParametersVariable        bool            `json:"useParametersVariable"`
	ParametersVariable           *string         `json:"parametersVariable"`
	ResponseXMLBody              bool            `json:"responseXmlBody"`
	ResponseParseMultipart       bool            `json:"responseParseMultipart"`
	ResponseIncludeMetadata      bool            `json:"responseIncludeMetadata"`
	ResponseBinaryMimeTypes      string          `json:"responseBinaryMimeTypes"`
	ResponseBinaryMimeTypesRegex bool            `json:"responseBinaryMimeTypesRegex"`
	Multipart                    bool            `json:"multipart"`
	UseAuthentication            bool            `json:"useAuthentication"`
	AuthenticationType           string          `json:"authenticationType"` // Basic, Digest
	UsePreemptiveAuthentication  bool            `json:"usePreemptiveAuthentication"`
	Username                     string          `json:"username"`
	Password                     string          `json:"password"`
	Content                      *string         `json:"content"`
	ContentType                  string          `json:"contentType"`
	DataTypeBinary               bool            `json:"dataTypeBinary"`
	Charset                      string          `json:"charset"`
	SocketTimeout                Int             `json:"socketTimeout"`
}

// JMSSenderProperties publishes to a JMS queue or topic.
type JMSSenderProperties struct {
	DestinationBase
	JMSSettings
	Template string `json:"template"`
}

// JavaScriptWriterProperties runs a script per message.
type JavaScriptWriterProperties struct {
	DestinationBase
	Script *string `json:"script"`
}

// SMTPSenderProperties sends an email per message.
type SMTPSenderProperties struct {
	DestinationBase
	SMTPHost                 *string           `json:"smtpHost"`
	SMTPPort                 Text              `json:"smtpPort"`
	OverrideLocalBinding     bool              `json:"overrideLocalBinding"`
	LocalAddress             string            `json:"localAddress"`
	LocalPort                Text              `json:"localPort"`
	Timeout                  Int               `json:"timeout"`
	Encryption               string            `json:"encryption"` // none, SSL, TLS
	Authentication           bool              `json:"authentication"`
	Username                 *string           `json:"username"`
	Password                 *string           `json:"password"`
	To                       *string           `json:"to"`
	From                     *string           `json:"from"`
	CC                       *string           `json:"cc"`
	BCC                      *string           `json:"bcc"`
	ReplyTo                  *string           `json:"replyTo"`
	Headers                  *Map[StringEntry] `json:"headers"`
	HeadersVariable          *string           `json:"headersVariable"`
	IsUseHeadersVariable     bool              `json:"isUseHeadersVariable"`
	Subject                  *string           `json:"subject"`
	CharsetEncoding          string            `json:"charsetEncoding"`
	HTML                     bool              `json:"html"`
	Body                     *string           `json:"body"`
	Attachments              *SMTPAttachments  `json:"attachments"`
	AttachmentsVariable      *string           `json:"attachmentsVariable"`
	IsUseAttachmentsVariable bool              `json:"isUseAttachmentsVariable"`
}

// SMTPAttachments wraps the attachment list of an SMTP sender.
type SMTPAttachments struct {
	Attachment List[SMTPAttachment] `json:"com.mirth.connect.connectors.smtp.Attachment"`
}

// SMTPAttachment is one email attachment.
type SMTPAttachment struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	MimeType string `json:"mimeType"`
}

// TCPSenderProperties sends over a raw TCP connection.
type TCPSenderProperties struct {
	DestinationBase
	TransmissionModeProperties *TransmissionModeProperties `json:"transmissionModeProperties"`
	ServerMode                 bool                        `json:"serverMode"`
	RemoteAddress              string                      `json:"remoteAddress"`
	RemotePort                 Text                        `json:"remotePort"`
	OverrideLocalBinding       bool                        `json:"overrideLocalBinding"`
	LocalAddress               string                      `json:"localAddress"`
	LocalPort                  Text                        `json:"localPort"`
	SendTimeout                Int                         `json:"sendTimeout"`
	BufferSize                 Int                         `json:"bufferSize"`
	MaxConnections             Int                         `json:"maxConnections"`
	KeepConnectionOpen         bool                        `json:"keepConnectionOpen"`
	CheckRemoteHost            bool                        `json:"checkRemoteHost"`
	ResponseTimeout            Int                         `json:"responseTimeout"`
	IgnoreResponse             bool                        `json:"ignoreResponse"`
	QueueOnResponseTimeout     bool                        `json:"queueOnResponseTimeout"`
	DataTypeBinary             bool                        `json:"dataTypeBinary"`
	CharsetEncoding            string                      `json:"charsetEncoding"`
	Template                   string                      `json:"template"`
}

// WebServiceSenderProperties invokes a SOAP operation.
type WebServiceSenderProperties struct {
	DestinationBase
	WSDLURL              *string         `json:"wsdlUrl"`
	Service              *string         `json:"service"`
	Port                 *string         `json:"port"`
	Operation            string          `json:"operation"`
	LocationURI          *string         `json:"locationURI"`
	SocketTimeout        Int             `json:"socketTimeout"`
	UseAuthentication    bool            `json:"useAuthentication"`
	Username             *string         `json:"username"`
	Password             *string         `json:"password"`
	Envelope             *string         `json:"envelope"`
	OneWay               bool            `json:"oneWay"`
	Headers              *Map[ListEntry] `json:"headers"`
	HeadersVariable      *string         `json:"headersVariable"`
	IsUseHeadersVariable bool            `json:"isUseHeadersVariable"`
	UseMTOM              bool            `json:"useMtom"`
	AttachmentNames      *Strings        `json:"attachmentNames"`
	AttachmentContents   *Strings        `json:"attachmentContents"`
	AttachmentTypes      *Strings        `json:"attachmentTypes"`
	SOAPAction           *string         `json:"soapAction"`
	WSDLDefinitionMap    json.RawMessage `json:"wsdlDefinitionMap,omitempty"`
}

// RawDestinationProperties keeps a properties object of an unknown class verbatim.
type RawDestinationProperties struct {
	Class string
	Raw   json.RawMessage
}

func (r *RawDestinationProperties) Kind() DestinationKind                   { return "" }
func (r *RawDestinationProperties) Common() *DestinationBase                { return nil }
func (r *RawDestinationProperties) CloneDestination() DestinationProperties { c := *r; return &c }

func (r RawDestinationProperties) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw, nil
}

type (
	channelWriterAlias    ChannelWriterProperties
	dicomSenderAlias      DICOMSenderProperties
	databaseWriterAlias   DatabaseWriterProperties
	documentWriterAlias   DocumentWriterProperties
	fileWriterAlias       FileWriterProperties
	httpSenderAlias       HTTPSenderProperties
	jmsSenderAlias        JMSSenderProperties
	javaScriptWriterAlias JavaScriptWriterProperties
	smtpSenderAlias       SMTPSenderProperties
	tcpSenderAlias        TCPSenderProperties
	webServiceSenderAlias WebServiceSenderProperties
)

func (p *ChannelWriterProperties) Kind() DestinationKind    { return DestinationChannelWriter }
func (p *DICOMSenderProperties) Kind() DestinationKind      { return DestinationDICOMSender }
func (p *DatabaseWriterProperties) Kind() DestinationKind   { return DestinationDatabaseWriter }
func (p *DocumentWriterProperties) Kind() DestinationKind   { return DestinationDocumentWriter }
func (p *FileWriterProperties) Kind() DestinationKind       { return DestinationFileWriter }
func (p *HTTPSenderProperties) Kind() DestinationKind       { return DestinationHTTPSender }
func (p *JMSSenderProperties) Kind() DestinationKind        { return DestinationJMSSender }
func (p *JavaScriptWriterProperties) Kind() DestinationKind { return DestinationJavaScriptWriter }
func (p *SMTPSenderProperties) Kind() DestinationKind       { return DestinationSMTPSender }
func (p *TCPSenderProperties) Kind() DestinationKind        { return DestinationTCPSender }
func (p *WebServiceSenderProperties) Kind() DestinationKind { return DestinationWebServiceSender }

func (p *ChannelWriterProperties) CloneDestination() DestinationProperties    { c := *p; return &c }
func (p *DICOMSenderProperties) CloneDestination() DestinationProperties      { c := *p; return &c }
func (p *DatabaseWriterProperties) CloneDestination() DestinationProperties   { c := *p; return &c }
func (p *DocumentWriterProperties) CloneDestination() DestinationProperties   { c := *p; return &c }
func (p *FileWriterProperties) CloneDestination() DestinationProperties       { c := *p; return &c }
func (p *HTTPSenderProperties) CloneDestination() DestinationProperties       { c := *p; return &c }
func (p *JMSSenderProperties) CloneDestination() DestinationProperties        { c := *p; return &c }
func (p *JavaScriptWriterProperties) CloneDestination() DestinationProperties { c := *p; return &c }
func (p *SMTPSenderProperties) CloneDestination() DestinationProperties       { c := *p; return &c }
func (p *TCPSenderProperties) CloneDestination() DestinationProperties        { c := *p; return &c }
func (p *WebServiceSenderProperties) CloneDestination() DestinationProperties { c := *p; return &c }

func (p *ChannelWriterProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*channelWriterAlias)(p), &p.Extra)
}
func (p ChannelWriterProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(channelWriterAlias(p), p.Extra)
}

func (p *DICOMSenderProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*dicomSenderAlias)(p), &p.Extra)
}
func (p DICOMSenderProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(dicomSenderAlias(p), p.Extra)
}

func (p *DatabaseWriterProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*databaseWriterAlias)(p), &p.Extra)
}
func (p DatabaseWriterProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(databaseWriterAlias(p), p.Extra)
}

func (p *DocumentWriterProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*documentWriterAlias)(p), &p.Extra)
}
func (p DocumentWriterProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(documentWriterAlias(p), p.Extra)
}

func (p *FileWriterProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*fileWriterAlias)(p), &p.Extra)
}
func (p FileWriterProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(fileWriterAlias(p), p.Extra)
}

func (p *HTTPSenderProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*httpSenderAlias)(p), &p.Extra)
}
func (p HTTPSenderProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(httpSenderAlias(p), p.Extra)
}

func (p *JMSSenderProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*jmsSenderAlias)(p), &p.Extra)
}
func (p JMSSenderProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(jmsSenderAlias(p), p.Extra)
}

func (p *JavaScriptWriterProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*javaScriptWriterAlias)(p), &p.Extra)
}
func (p JavaScriptWriterProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(javaScriptWriterAlias(p), p.Extra)
}

func (p *SMTPSenderProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*smtpSenderAlias)(p), &p.Extra)
}
func (p SMTPSenderProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(smtpSenderAlias(p), p.Extra)
}

func (p *TCPSenderProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*tcpSenderAlias)(p), &p.Extra)
}
func (p TCPSenderProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(tcpSenderAlias(p), p.Extra)
}

func (p *WebServiceSenderProperties) UnmarshalJSON(b []byte) error {
	return decodeObject(b, (*webServiceSenderAlias)(p), &p.Extra)
}
func (p WebServiceSenderProperties) MarshalJSON() ([]byte, error) {
	return encodeObject(webServiceSenderAlias(p), p.Extra)
}

type destinationVariant struct {
	kind  DestinationKind
	class string
	zero  func() DestinationProperties
}

var destinationVariants = []destinationVariant{
	{DestinationChannelWriter, "com.mirth.connect.connectors.vm.VmDispatcherProperties", func() DestinationProperties { return &ChannelWriterProperties{} }},
	{DestinationDICOMSender, "com.mirth.connect.connectors.dimse.DICOMDispatcherProperties", func() DestinationProperties { return &DICOMSenderProperties{} }},
	{DestinationDatabaseWriter, "com.mirth.connect.connectors.jdbc.DatabaseDispatcherProperties", func() DestinationProperties { return &DatabaseWriterProperties{} }},
	{DestinationDocumentWriter, "com.mirth.connect.connectors.doc.DocumentDispatcherProperties", func() DestinationProperties { return &DocumentWriterProperties{} }},
	{DestinationFileWriter, "com.mirth.connect.connectors.file.FileDispatcherProperties", func() DestinationProperties { return &FileWriterProperties{} }},
	{DestinationHTTPSender, "com.mirth.connect.connectors.http.HttpDispatcherProperties", func() DestinationProperties { return &HTTPSenderProperties{} }},
	{DestinationJMSSender, "com.mirth.connect.connectors.jms.JmsDispatcherProperties", func() DestinationProperties { return &JMSSenderProperties{} }},
	{DestinationJavaScriptWriter, "com.mirth.connect.connectors.js.JavaScriptDispatcherProperties", func() DestinationProperties { return &JavaScriptWriterProperties{} }},
	{DestinationSMTPSender, "com.mirth.connect.connectors.smtp.SmtpDispatcherProperties", func() DestinationProperties { return &SMTPSenderProperties{} }},
	{DestinationTCPSender, "com.mirth.connect.connectors.tcp.TcpDispatcherProperties", func() DestinationProperties { return &TCPSenderProperties{} }},
	{DestinationWebServiceSender, "com.mirth.connect.connectors.ws.WebServiceDispatcherProperties", func() DestinationProperties { return &WebServiceSenderProperties{} }},
}

// DestinationKinds lists every modeled destination kind in display order.
func DestinationKinds() []DestinationKind {
	kinds := make([]DestinationKind, len(destinationVariants))
	for i, v := range destinationVariants {
		kinds[i] = v.kind
	}
	return kinds
}

// DestinationClass returns the @class of a destination kind.
func DestinationClass(kind DestinationKind) (string, bool) {
	for _, v := range destinationVariants {
		if v.kind == kind {
			return v.class, true
		}
	}
	return "", false
}

// DecodeDestinationProperties selects the variant by @class. Unknown classes
// decode to *RawDestinationProperties; null decodes to nil.
func DecodeDestinationProperties(b []byte) (DestinationProperties, error) {
	b = bytes.TrimSpace(b)
	if isEmptyJSON(b) {
		return nil, nil
	}
	var head struct {
		Class string `json:"@class"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, fmt.Errorf("decode destination class: %w", err)
	}
	for _, v := range destinationVariants {
		if v.class == head.Class {
			p := v.zero()
			if err := json.Unmarshal(b, p); err != nil {
				return nil, fmt.Errorf("decode %s: %w", v.kind, err)
			}
			return p, nil
		}
	}
	return &RawDestinationProperties{Class: head.Class, Raw: append(json.RawMessage(nil), b...)}, nil
}
