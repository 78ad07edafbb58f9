package sentryevent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractAppInfoPrefersContextsOverRelease(t *testing.T) {
	raw := []byte(`{
		"release": "rel-id@1.2.3+45",
		"contexts": {"app": {"app_name": "MyApp", "app_version": "9.9.9"}}
	}`)
	ev, err := Parse(raw)
	require.NoError(t, err)

	info := ev.ExtractAppInfo()
	require.Equal(t, "MyApp", *info.Name)
	require.Equal(t, "9.9.9", *info.Version)
	require.Equal(t, "45", *info.Build)
}

func TestExtractAppInfoFallsBackToRelease(t *testing.T) {
	raw := []byte(`{"release": "rel-id@1.2.3+45"}`)
	ev, err := Parse(raw)
	require.NoError(t, err)

	info := ev.ExtractAppInfo()
	require.Equal(t, "rel-id", *info.Name)
	require.Equal(t, "1.2.3", *info.Version)
	require.Equal(t, "45", *info.Build)
}

func TestExtractAppInfoBuildFallsBackToDist(t *testing.T) {
	raw := []byte(`{"release": "rel-id@1.2.3", "dist": "77"}`)
	ev, err := Parse(raw)
	require.NoError(t, err)

	info := ev.ExtractAppInfo()
	require.Equal(t, "77", *info.Build)
}

func TestExtractLocaleInfoPrefersCultureOverDevice(t *testing.T) {
	raw := []byte(`{
		"contexts": {
			"culture": {"locale": "en-US", "timezone": "America/New_York"},
			"device": {"locale": "fr-FR", "timezone": "Europe/Paris"}
		}
	}`)
	ev, err := Parse(raw)
	require.NoError(t, err)

	info := ev.ExtractLocaleInfo()
	require.Equal(t, "en-US", *info.Locale)
	require.Equal(t, "America/New_York", *info.Timezone)
}

func TestExtractLocaleInfoFallsBackToDevice(t *testing.T) {
	raw := []byte(`{"contexts": {"device": {"locale": "fr-FR", "timezone": "Europe/Paris"}}}`)
	ev, err := Parse(raw)
	require.NoError(t, err)

	info := ev.ExtractLocaleInfo()
	require.Equal(t, "fr-FR", *info.Locale)
	require.Equal(t, "Europe/Paris", *info.Timezone)
}

func TestExtractInAppFramesOnlyTrue(t *testing.T) {
	raw := []byte(`{
		"exception": {"values": [{
			"type": "Crash", "value": "boom",
			"stacktrace": {"frames": [
				{"filename": "a.go", "function": "foo", "lineno": 10, "in_app": true},
				{"filename": "vendor.go", "function": "bar", "lineno": 20, "in_app": false},
				{"filename": "b.go", "function": "baz", "lineno": 30}
			]}
		}]}
	}`)
	ev, err := Parse(raw)
	require.NoError(t, err)

	frames := ev.ExtractInAppFrames()
	require.Len(t, frames, 1)
	require.Equal(t, "a.go", frames[0].Filename)

	all := ev.ExtractAllFrames()
	require.Len(t, all, 3)
}

func TestExtractErrorAndSDKInfo(t *testing.T) {
	raw := []byte(`{
		"exception": {"values": [{"type": "ValueError", "value": "bad input"}]},
		"sdk": {"name": "sentry.go", "version": "1.0.0"}
	}`)
	ev, err := Parse(raw)
	require.NoError(t, err)

	errInfo := ev.ExtractErrorInfo()
	require.Equal(t, "ValueError", *errInfo.Type)
	require.Equal(t, "bad input", *errInfo.Message)

	sdk := ev.ExtractSDKInfo()
	require.Equal(t, "sentry.go", *sdk.Name)
	require.Equal(t, "1.0.0", *sdk.Version)
}

func TestExtractUserExternalID(t *testing.T) {
	ev, err := Parse([]byte(`{"user": {"id": "u-123", "email": "a@b.com"}}`))
	require.NoError(t, err)
	require.Equal(t, "u-123", *ev.ExtractUserExternalID())

	ev2, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	require.Nil(t, ev2.ExtractUserExternalID())
}

func TestExtractInfoToleratesMissingFields(t *testing.T) {
	ev, err := Parse([]byte(`{}`))
	require.NoError(t, err)

	require.Nil(t, ev.ExtractAppInfo().Name)
	require.Nil(t, ev.ExtractOSInfo().Name)
	require.Nil(t, ev.ExtractDeviceInfo().Manufacturer)
	require.Nil(t, ev.ExtractLocaleInfo().Locale)
	require.Empty(t, ev.ExtractInAppFrames())
	require.Nil(t, ev.ExtractErrorInfo().Type)
	require.Nil(t, ev.ExtractSDKInfo().Name)
}
