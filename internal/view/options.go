package view

import (
	"github.com/relaycore/channel-console/internal/channel"
	"github.com/relaycore/channel-console/internal/model"
)

// Option is one entry of a select or radio group.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// File transfer schemes of the file reader and writer.
const (
	SchemeFile   = "FILE"
	SchemeFTP    = "FTP"
	SchemeSFTP   = "SFTP"
	SchemeS3     = "AMAZON S3"
	SchemeSMB    = "SMB"
	SchemeWebDAV = "WEBDAV"
)

var (
	Schemes = []Option{
		{SchemeFile, "file"},
		{SchemeFTP, "ftp"},
		{SchemeSFTP, "sftp"},
		{SchemeS3, "Amazon S3"},
		{SchemeSMB, "smb"},
		{SchemeWebDAV, "webdav"},
	}

	SourceQueue = []Option{
		{"off", "OFF (Respond after processing)"},
		{"on", "ON (Respond before processing)"},
	}

	ScheduleTypes = []Option{
		{"INTERVAL", "Interval"},
		{"TIME", "Time"},
		{"CRON", "Cron"},
	}

	IntervalUnits = []Option{
		{UnitMilliseconds, "milliseconds"},
		{UnitSeconds, "seconds"},
		{UnitMinutes, "minutes"},
		{UnitHours, "hours"},
	}

	AuthenticationTypes = []Option{
		{"None", "None"},
		{"Basic Authentication", "Basic Authentication"},
		{"Digest Authentication", "Digest Authentication"},
		{"Javascript", "Javascript"},
		{"Custom Java Class", "Custom Java Class"},
		{"OAuth 2.0 Token Verification", "OAuth 2.0 Token Verification"},
	}

	AfterProcessingActions = []Option{
		{"NONE", "None"},
		{"MOVE", "Move"},
		{"DELETE", "Delete"},
	}

	ErrorReadingActions = AfterProcessingActions

	ErrorResponseActions = []Option{
		{"AFTER_PROCESSING", "After Processing Action"},
		{"MOVE", "Move"},
		{"DELETE", "Delete"},
	}

	SortBy = []Option{
		{"date", "Date"},
		{"name", "Name"},
		{"size", "Size"},
	}

	DatabaseDrivers = []Option{
		{"blank", "Please Select One"},
		{"com.mysql.cj.jdbc.Driver", "MySQL"},
		{"oracle.jdbc.driver.OracleDriver", "Oracle"},
		{"org.postgresql.Driver", "PostgreSQL"},
		{"net.sourceforge.jtds.jdbc.Driver", "SQL Server /Sybase (jTDS)"},
		{"com.microsoft.sqlserver.jdbc.SQLServerDriver", "Microsoft SQL Server"},
		{"org.sqlite.JDBC", "SQLite"},
		{"custom", "Custom"},
	}

	Encodings = []Option{
		{model.DefaultEncoding, "Default"},
		{"Big5", "Big5"},
		{"UTF-8", "UTF-8"},
	}

	TransmissionModes = []Option{
		{"Basic", "Basic TCP"},
		{"MLLP", "MLLP"},
	}

	MessageStorageModes = []Option{
		{"DEVELOPMENT", "Development"},
		{"PRODUCTION", "Production"},
		{"RAW", "RAW"},
		{"METADATA", "Metadata"},
		{"DISABLED", "Disabled"},
	}

	InitialStates = []Option{
		{"STARTED", "Started"},
		{"PAUSED", "Paused"},
		{"STOPPED", "Stopped"},
	}

	AttachmentTypes = []Option{
		{"None", "None"},
		{"Entire Message", "Entire Message"},
		{"Regex", "Regex"},
		{"DICOM", "DICOM"},
		{"JavaScript", "JavaScript"},
		{"Custom", "Custom"},
	}

	QueueModes = []Option{
		{string(channel.QueueNever), "Never"},
		{string(channel.QueueOnFailure), "On Failure"},
		{string(channel.QueueAlways), "Always"},
	}

	FileExistsPolicies = []Option{
		{string(channel.FileExistsAppend), "Append"},
		{string(channel.FileExistsOverwrite), "Overwrite"},
		{string(channel.FileExistsError), "Error"},
	}
)

// SourceTypes lists the source connector kinds.
func SourceTypes() []Option {
	kinds := model.SourceKinds()
	out := make([]Option, len(kinds))
	for i, k := range kinds {
		out[i] = Option{string(k), string(k)}
	}
	return out
}

// DestinationTypes lists the destination connector kinds.
func DestinationTypes() []Option {
	kinds := model.DestinationKinds()
	out := make([]Option, len(kinds))
	for i, k := range kinds {
		out[i] = Option{string(k), string(k)}
	}
	return out
}

// SchemeControls reports which file connector controls accept input.
type SchemeControls struct {
	AdvancedOptions    bool `json:"advancedOptions"`
	Anonymous          bool `json:"anonymous"`
	Credentials        bool `json:"credentials"`
	Timeout            bool `json:"timeout"`
	Secure             bool `json:"secure"`
	Passive            bool `json:"passive"`
	ValidateConnection bool `json:"validateConnection"`
}

// SchemeLabels are the scheme-dependent labels of a file connector form.
type SchemeLabels struct {
	Host     string         `json:"host"`
	Username string         `json:"username"`
	Password string         `json:"password"`
	Advanced string         `json:"advanced"`
	Controls SchemeControls `json:"controls"`
}

// LabelsForScheme selects labels and enabled controls for a file connector
// scheme. Unknown schemes get empty host text and "<None>" advanced options.
func LabelsForScheme(scheme string, anonymous bool) SchemeLabels {
	l := SchemeLabels{Username: "Username:", Password: "Password:", Advanced: "<None>"}
	switch scheme {
	case SchemeFile:
		l.Host = "Directory:"
	case SchemeFTP:
		l.Host = "ftp://"
		l.Advanced = "Initial Commands:"
	case SchemeSFTP:
		l.Host = "sftp://"
		l.Advanced = "Password Authentication / Hostname Checking Ask"
	case SchemeS3:
		l.Host = "S3 Bucket:"
		l.Username = "AWS Access Key ID:"
		l.Password = "AWS Secret Access Key:"
		l.Advanced = "Using region us-east-1, Default Credential Provider Chain"
	case SchemeSMB:
		l.Host = "smb://"
		l.Advanced = "Using SMB v2.0.2 - SMB v3.1.1"
	case SchemeWebDAV:
		l.Host = "https://"
	}

	c := &l.Controls
	c.AdvancedOptions = scheme != SchemeFile && scheme != SchemeWebDAV
	c.Timeout = c.AdvancedOptions
	c.Anonymous = scheme != SchemeFile && scheme != SchemeSFTP && scheme != SchemeSMB
	c.Credentials = scheme != SchemeFile && scheme != SchemeFTP && !(scheme == SchemeS3 && anonymous)
	c.Secure = scheme == SchemeWebDAV
	c.Passive = scheme == SchemeFTP
	c.ValidateConnection = scheme == SchemeFTP
	return l
}

// StorageSummary describes what a message storage mode keeps.
type StorageSummary struct {
	Content  string `json:"content"`
	Metadata string `json:"metadata"`
	Delivery string `json:"delivery"`
}

// StorageFor returns the storage summary of a message storage mode, or the
// zero value for an unknown mode.
func StorageFor(mode string) StorageSummary {
	switch mode {
	case "DEVELOPMENT":
		return StorageSummary{"All", "All", "On"}
	case "PRODUCTION":
		return StorageSummary{"Raw, Encoded, Sent, Response, Maps", "All", "On"}
	case "RAW":
		return StorageSummary{"Raw", "All", "Reprocess only"}
	case "METADATA":
		return StorageSummary{"None", "All", "Off"}
	case "DISABLED":
		return StorageSummary{"None", "None", "Off"}
	}
	return StorageSummary{}
}

// Polling interval units.
const (
	UnitMilliseconds = "milliseconds"
	UnitSeconds      = "seconds"
	UnitMinutes      = "minutes"
	UnitHours        = "hours"
)

var unitMillis = map[string]int64{
	UnitMilliseconds: 1,
	UnitSeconds:      1000,
	UnitMinutes:      60 * 1000,
	UnitHours:        60 * 60 * 1000,
}

// IntervalUnit expresses ms in the largest unit that divides it evenly.
func IntervalUnit(ms int64) (value int64, unit string) {
	if ms == 0 {
		return 0, UnitSeconds
	}
	for _, u := range []string{UnitHours, UnitMinutes, UnitSeconds} {
		if ms%unitMillis[u] == 0 {
			return ms / unitMillis[u], u
		}
	}
	return ms, UnitMilliseconds
}

// IntervalMillis converts value in unit back to milliseconds. Unknown units
// are taken as milliseconds.
func IntervalMillis(value int64, unit string) int64 {
	if m, ok := unitMillis[unit]; ok {
		return value * m
	}
	return value
}

// Options is every option set, keyed by name, with the labels of one scheme.
type Options struct {
	Sets   map[string][]Option `json:"sets"`
	Scheme SchemeLabels        `json:"scheme"`
}

// AllOptions collects the option sets the channel editor renders.
func AllOptions(scheme string, anonymous bool) Options {
	return Options{
		Sets: map[string][]Option{
			"sourceTypes":            SourceTypes(),
			"destinationTypes":       DestinationTypes(),
			"schemes":                Schemes,
			"sourceQueue":            SourceQueue,
			"scheduleTypes":          ScheduleTypes,
			"intervalUnits":          IntervalUnits,
			"authenticationTypes":    AuthenticationTypes,
			"afterProcessingActions": AfterProcessingActions,
			"errorReadingActions":    ErrorReadingActions,
			"errorResponseActions":   ErrorResponseActions,
			"sortBy":                 SortBy,
			"databaseDrivers":        DatabaseDrivers,
			"encodings":              Encodings,
			"transmissionModes":      TransmissionModes,
			"messageStorageModes":    MessageStorageModes,
			"initialStates":          InitialStates,
			"attachmentTypes":        AttachmentTypes,
			"queueModes":             QueueModes,
			"fileExistsPolicies":     FileExistsPolicies,
		},
		Scheme: LabelsForScheme(scheme, anonymous),
	}
}
