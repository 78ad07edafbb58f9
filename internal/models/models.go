// Package models holds the domain entities described in spec.md §3.
package models

import "time"

type Project struct {
	ID         int32
	PublicKey  *string
	Name       *string
	CreatedAt  time.Time
}

type Archive struct {
	Hash              string
	ProjectID         int32
	CompressedPayload []byte
	OriginalSize      *int32
	CreatedAt         time.Time
}

type QueueItem struct {
	ID          int32
	ArchiveHash string
	CreatedAt   time.Time
}

type QueueError struct {
	ID          int32
	ArchiveHash string
	Error       string
	CreatedAt   time.Time
}

// DictionaryKind identifies one of the 20 single-column lookup tables.
type DictionaryKind string

const (
	KindPlatform        DictionaryKind = "platform"
	KindEnvironment     DictionaryKind = "environment"
	KindOSName          DictionaryKind = "os_name"
	KindOSVersion       DictionaryKind = "os_version"
	KindManufacturer    DictionaryKind = "manufacturer"
	KindBrand           DictionaryKind = "brand"
	KindModel           DictionaryKind = "model"
	KindChipset         DictionaryKind = "chipset"
	KindLocale          DictionaryKind = "locale"
	KindTimezone        DictionaryKind = "timezone"
	KindConnectionType  DictionaryKind = "connection_type"
	KindOrientation     DictionaryKind = "orientation"
	KindAppName         DictionaryKind = "app_name"
	KindAppVersion      DictionaryKind = "app_version"
	KindAppBuild        DictionaryKind = "app_build"
	KindUserExternalID  DictionaryKind = "user_external_id"
	KindExceptionType   DictionaryKind = "exception_type"
	KindSessionStatus   DictionaryKind = "session_status"
	KindSessionRelease  DictionaryKind = "session_release"
	KindSessionEnv      DictionaryKind = "session_environment"
)

// AllDictionaryKinds enumerates every single-column dictionary table, used by
// ruminate to know which tables hold derived (as opposed to source-of-truth) state.
var AllDictionaryKinds = []DictionaryKind{
	KindPlatform, KindEnvironment, KindOSName, KindOSVersion,
	KindManufacturer, KindBrand, KindModel, KindChipset,
	KindLocale, KindTimezone, KindConnectionType, KindOrientation,
	KindAppName, KindAppVersion, KindAppBuild, KindUserExternalID,
	KindExceptionType, KindSessionStatus, KindSessionRelease, KindSessionEnv,
}

type DeviceSpecs struct {
	ID             int32
	ScreenWidth    *int32
	ScreenHeight   *int32
	ScreenDensity  *float32
	ScreenDPI      *int32
	ProcessorCount *int32
	MemorySize     *int64
	Archs          *string // JSON-encoded sorted list
}

type ExceptionMessage struct {
	ID    int32
	Hash  string
	Value string
}

type Stacktrace struct {
	ID              int32
	Hash            string
	FingerprintHash *string
	FramesJSON      string
}

type Issue struct {
	ID              int32
	FingerprintHash string
	ExceptionTypeID *int32
	Title           *string
	FirstSeen       time.Time
	LastSeen        time.Time
	EventCount      int32
}

type Session struct {
	ID            int32
	ProjectID     int32
	SID           string
	Init          bool
	StartedAt     time.Time
	Timestamp     time.Time
	Errors        int32
	StatusID      int32
	ReleaseID     *int32
	EnvironmentID *int32
}

// Report is the fully-digested, fully-indexed row (spec.md §3).
type Report struct {
	ID                int32
	EventID           string
	ArchiveHash       string
	Timestamp         int64
	ReceivedAt        time.Time
	ProjectID         int32
	PlatformID        *int32
	EnvironmentID     *int32
	OSNameID          *int32
	OSVersionID       *int32
	ManufacturerID    *int32
	BrandID           *int32
	ModelID           *int32
	ChipsetID         *int32
	DeviceSpecsID     *int32
	LocaleID          *int32
	TimezoneID        *int32
	ConnectionTypeID  *int32
	OrientationID     *int32
	AppNameID         *int32
	AppVersionID      *int32
	AppBuildID        *int32
	UserExternalIDID  *int32
	ExceptionTypeID   *int32
	ExceptionMsgID    *int32
	IssueID           *int32
	StacktraceID      *int32
	SessionID         *int32
}

// HealthStats is the operational-counts snapshot served by GET /health.
type HealthStats struct {
	Archives     int64
	Reports      int64
	Queue        int64
	Regurgitated int64
	Orphaned     int64
	UpdatedAt    time.Time
}
