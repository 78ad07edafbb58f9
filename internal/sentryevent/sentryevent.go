// Package sentryevent decodes Sentry event JSON and exposes the semantic
// accessors the digest use-case relies on (spec.md §4.3).
package sentryevent

import (
	"encoding/json"
	"strings"
)

// Event is a partially-typed view over an event payload. Unknown fields are
// preserved in Raw for accessors that need structural walks the named fields
// don't cover.
type Event struct {
	EventID     string          `json:"event_id"`
	Timestamp   string          `json:"timestamp"`
	Platform    string          `json:"platform"`
	Environment string          `json:"environment"`
	Release     string          `json:"release"`
	Dist        string          `json:"dist"`
	Contexts    json.RawMessage `json:"contexts"`
	User        json.RawMessage `json:"user"`
	Exception   *exceptionBlock `json:"exception"`
	SDK         *sdkBlock       `json:"sdk"`
	Raw         json.RawMessage `json:"-"`
}

type exceptionBlock struct {
	Values []ExceptionValue `json:"values"`
}

// ExceptionValue is one entry of event.exception.values.
type ExceptionValue struct {
	Type       string       `json:"type"`
	Value      string       `json:"value"`
	Stacktrace *stacktrace  `json:"stacktrace"`
}

type stacktrace struct {
	Frames []Frame `json:"frames"`
}

// Frame is one stack frame.
type Frame struct {
	Filename string `json:"filename"`
	Function string `json:"function"`
	Lineno   *int   `json:"lineno"`
	InApp    *bool  `json:"in_app"`
}

type sdkBlock struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Parse decodes raw event JSON, tolerant of missing fields.
func Parse(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	ev.Raw = data
	return &ev, nil
}

type appContext struct {
	AppName    string `json:"app_name"`
	AppVersion string `json:"app_version"`
	AppBuild   string `json:"app_build"`
}

type osContext struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type deviceContext struct {
	Manufacturer   string   `json:"manufacturer"`
	Brand          string   `json:"brand"`
	Model          string   `json:"model"`
	Chipset        string   `json:"chipset"`
	ScreenWidth    *int32   `json:"screen_width"`
	ScreenHeight   *int32   `json:"screen_height"`
	ScreenDensity  *float32 `json:"screen_density"`
	ScreenDPI      *int32   `json:"screen_dpi"`
	ProcessorCount *int32   `json:"processor_count"`
	MemorySize     *int64   `json:"memory_size"`
	Archs          []string `json:"archs"`
	Locale         string   `json:"locale"`
	Timezone       string   `json:"timezone"`
	ConnectionType string   `json:"connection_type"`
	Orientation    string   `json:"orientation"`
}

type cultureContext struct {
	Locale   string `json:"locale"`
	Timezone string `json:"timezone"`
}

type contexts struct {
	App     *appContext     `json:"app"`
	OS      *osContext      `json:"os"`
	Device  *deviceContext  `json:"device"`
	Culture *cultureContext `json:"culture"`
}

func (e *Event) parsedContexts() contexts {
	var c contexts
	if len(e.Contexts) > 0 {
		_ = json.Unmarshal(e.Contexts, &c)
	}
	return c
}

// AppInfo is the (name, version, build) triple returned by ExtractAppInfo.
type AppInfo struct {
	Name    *string
	Version *string
	Build   *string
}

// ExtractAppInfo prefers contexts.app.{app_name,app_version,app_build} over
// fields parsed from release of form "identifier@version+build".
func (e *Event) ExtractAppInfo() AppInfo {
	c := e.parsedContexts()

	var info AppInfo
	if c.App != nil {
		if c.App.AppName != "" {
			info.Name = ptr(c.App.AppName)
		}
		if c.App.AppVersion != "" {
			info.Version = ptr(c.App.AppVersion)
		}
		if c.App.AppBuild != "" {
			info.Build = ptr(c.App.AppBuild)
		}
	}

	if info.Name == nil || info.Version == nil || info.Build == nil {
		name, version, build := parseRelease(e.Release)
		if info.Name == nil && name != "" {
			info.Name = ptr(name)
		}
		if info.Version == nil && version != "" {
			info.Version = ptr(version)
		}
		if info.Build == nil {
			if build != "" {
				info.Build = ptr(build)
			} else if e.Dist != "" {
				info.Build = ptr(e.Dist)
			}
		}
	}

	return info
}

// parseRelease splits "identifier@version+build": first on '@' to separate
// the identifier from version+build, then the remainder on '+'.
func parseRelease(release string) (identifier, version, build string) {
	if release == "" {
		return "", "", ""
	}
	atParts := strings.SplitN(release, "@", 2)
	identifier = atParts[0]
	if len(atParts) == 1 {
		return identifier, "", ""
	}
	plusParts := strings.SplitN(atParts[1], "+", 2)
	version = plusParts[0]
	if len(plusParts) == 2 {
		build = plusParts[1]
	}
	return identifier, version, build
}

// OSInfo is the (name, version) pair returned by ExtractOSInfo.
type OSInfo struct {
	Name    *string
	Version *string
}

func (e *Event) ExtractOSInfo() OSInfo {
	c := e.parsedContexts()
	var info OSInfo
	if c.OS != nil {
		if c.OS.Name != "" {
			info.Name = ptr(c.OS.Name)
		}
		if c.OS.Version != "" {
			info.Version = ptr(c.OS.Version)
		}
	}
	return info
}

// DeviceInfo holds device identity and the device-specs tuple.
type DeviceInfo struct {
	Manufacturer *string
	Brand        *string
	Model        *string
	Chipset      *string
	Specs        DeviceSpecsInfo
}

// DeviceSpecsInfo is the full tuple used as the DeviceSpecs dictionary key.
type DeviceSpecsInfo struct {
	ScreenWidth    *int32
	ScreenHeight   *int32
	ScreenDensity  *float32
	ScreenDPI      *int32
	ProcessorCount *int32
	MemorySize     *int64
	Archs          []string
}

func (e *Event) ExtractDeviceInfo() DeviceInfo {
	c := e.parsedContexts()
	var info DeviceInfo
	if c.Device != nil {
		d := c.Device
		if d.Manufacturer != "" {
			info.Manufacturer = ptr(d.Manufacturer)
		}
		if d.Brand != "" {
			info.Brand = ptr(d.Brand)
		}
		if d.Model != "" {
			info.Model = ptr(d.Model)
		}
		if d.Chipset != "" {
			info.Chipset = ptr(d.Chipset)
		}
		info.Specs = DeviceSpecsInfo{
			ScreenWidth:    d.ScreenWidth,
			ScreenHeight:   d.ScreenHeight,
			ScreenDensity:  d.ScreenDensity,
			ScreenDPI:      d.ScreenDPI,
			ProcessorCount: d.ProcessorCount,
			MemorySize:     d.MemorySize,
			Archs:          d.Archs,
		}
	}
	return info
}

// LocaleInfo is the (locale, timezone, connection_type, orientation) group
// returned by ExtractLocaleInfo.
type LocaleInfo struct {
	Locale         *string
	Timezone       *string
	ConnectionType *string
	Orientation    *string
}

// ExtractLocaleInfo prefers culture.locale over device.locale, and
// culture.timezone over device.timezone. connection_type and orientation
// have no culture-level equivalent and come from device alone.
func (e *Event) ExtractLocaleInfo() LocaleInfo {
	c := e.parsedContexts()
	var info LocaleInfo

	if c.Culture != nil && c.Culture.Locale != "" {
		info.Locale = ptr(c.Culture.Locale)
	} else if c.Device != nil && c.Device.Locale != "" {
		info.Locale = ptr(c.Device.Locale)
	}

	if c.Culture != nil && c.Culture.Timezone != "" {
		info.Timezone = ptr(c.Culture.Timezone)
	} else if c.Device != nil && c.Device.Timezone != "" {
		info.Timezone = ptr(c.Device.Timezone)
	}

	if c.Device != nil {
		if c.Device.ConnectionType != "" {
			info.ConnectionType = ptr(c.Device.ConnectionType)
		}
		if c.Device.Orientation != "" {
			info.Orientation = ptr(c.Device.Orientation)
		}
	}

	return info
}

// ExtractInAppFrames returns the ordered frames whose in_app is explicitly true.
func (e *Event) ExtractInAppFrames() []Frame {
	if e.Exception == nil || len(e.Exception.Values) == 0 {
		return nil
	}
	st := e.Exception.Values[0].Stacktrace
	if st == nil {
		return nil
	}
	var out []Frame
	for _, f := range st.Frames {
		if f.InApp != nil && *f.InApp {
			out = append(out, f)
		}
	}
	return out
}

// ExtractAllFrames returns every frame of the first exception value, in order.
func (e *Event) ExtractAllFrames() []Frame {
	if e.Exception == nil || len(e.Exception.Values) == 0 {
		return nil
	}
	st := e.Exception.Values[0].Stacktrace
	if st == nil {
		return nil
	}
	return st.Frames
}

// ErrorInfo is the (type, message) pair returned by ExtractErrorInfo.
type ErrorInfo struct {
	Type    *string
	Message *string
}

func (e *Event) ExtractErrorInfo() ErrorInfo {
	var info ErrorInfo
	if e.Exception == nil || len(e.Exception.Values) == 0 {
		return info
	}
	v := e.Exception.Values[0]
	if v.Type != "" {
		info.Type = ptr(v.Type)
	}
	if v.Value != "" {
		info.Message = ptr(v.Value)
	}
	return info
}

// SDKInfo is the (name, version) pair returned by ExtractSDKInfo.
type SDKInfo struct {
	Name    *string
	Version *string
}

func (e *Event) ExtractSDKInfo() SDKInfo {
	var info SDKInfo
	if e.SDK == nil {
		return info
	}
	if e.SDK.Name != "" {
		info.Name = ptr(e.SDK.Name)
	}
	if e.SDK.Version != "" {
		info.Version = ptr(e.SDK.Version)
	}
	return info
}

type userBlock struct {
	ID string `json:"id"`
}

// ExtractUserExternalID returns user.id, if present (§4.10 step 6).
func (e *Event) ExtractUserExternalID() *string {
	if len(e.User) == 0 {
		return nil
	}
	var u userBlock
	if err := json.Unmarshal(e.User, &u); err != nil || u.ID == "" {
		return nil
	}
	return ptr(u.ID)
}

func ptr[T any](v T) *T { return &v }
