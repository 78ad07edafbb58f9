package envelope

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseImplicitLengthItem(t *testing.T) {
	data := []byte("{\"event_id\":\"abc\"}\n{\"type\":\"event\"}\n{\"message\":\"boom\"}\n")

	env, ok := Parse(data)
	require.True(t, ok)
	require.Equal(t, "abc", env.Header.EventID)
	require.Len(t, env.Items, 1)

	payload, found := env.FindEventPayload()
	require.True(t, found)
	require.JSONEq(t, `{"message":"boom"}`, string(payload))
}

func TestParseExplicitLengthItem(t *testing.T) {
	payload := `{"message":"boom"}`
	itemHeader := []byte(`{"type":"event","length":18}`)

	data := append([]byte("{\"event_id\":\"abc\"}\n"), itemHeader...)
	data = append(data, '\n')
	data = append(data, []byte(payload)...)
	data = append(data, '\n')

	env, ok := Parse(data)
	require.True(t, ok)
	require.Len(t, env.Items, 1)

	got, found := env.FindEventPayload()
	require.True(t, found)
	require.Equal(t, payload, string(got))
}

func TestParseMultipleSessionItems(t *testing.T) {
	data := []byte(
		"{\"event_id\":\"abc\"}\n" +
			"{\"type\":\"session\"}\n{\"sid\":\"s1\",\"init\":true}\n" +
			"{\"type\":\"session\"}\n{\"sid\":\"s2\",\"init\":false}\n",
	)

	env, ok := Parse(data)
	require.True(t, ok)

	sessions := env.FindSessionPayloads()
	require.Len(t, sessions, 2)
	require.JSONEq(t, `{"sid":"s1","init":true}`, string(sessions[0]))
	require.JSONEq(t, `{"sid":"s2","init":false}`, string(sessions[1]))
}

func TestParseMalformedHeaderReturnsFalse(t *testing.T) {
	_, ok := Parse([]byte("not json\n"))
	require.False(t, ok)
}

func TestParseExplicitLengthOverrunReturnsFalse(t *testing.T) {
	data := []byte("{\"event_id\":\"abc\"}\n{\"type\":\"event\",\"length\":9999}\n{\"short\":1}\n")
	_, ok := Parse(data)
	require.False(t, ok)
}

func TestParseNoItemsYieldsEmptySlice(t *testing.T) {
	env, ok := Parse([]byte("{\"event_id\":\"abc\"}\n"))
	require.True(t, ok)
	require.Empty(t, env.Items)

	_, found := env.FindEventPayload()
	require.False(t, found)
}
