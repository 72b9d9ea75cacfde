package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want Domain
		ok   bool
	}{
		{raw: "example.com", want: "example.com", ok: true},
		{raw: "  https://Example.com/  ", want: "Example.com", ok: true},
		{raw: "HTTP://foo.org", want: "foo.org", ok: true},
		{raw: "http://bar.net/path/", want: "bar.net/path", ok: true},
		{raw: "https://https://nested.io//", want: "nested.io", ok: true},
		{raw: "a.b", ok: false},
		{raw: "localhost", ok: false},
		{raw: "https://", ok: false},
		{raw: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Normalize(tt.raw)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"example.com",
		"https://example.com/",
		"http://http://example.com//",
		" HTTPS://Mixed.Case.org/ ",
		"https://x.io/ /",
	}
	for _, raw := range inputs {
		first, ok := Normalize(raw)
		require.True(t, ok, raw)
		second, ok := Normalize(string(first))
		require.True(t, ok, raw)
		require.Equal(t, first, second, raw)
	}
}

func TestDomainSetDeduplicates(t *testing.T) {
	set := NewDomainSet("a.com", "b.com")

	require.False(t, set.Add("a.com"))
	require.Equal(t, []Domain{"a.com", "b.com"}, set.List())

	d, added := set.AddRaw("https://a.com/")
	require.Equal(t, Domain("a.com"), d)
	require.False(t, added)
	require.Equal(t, 2, set.Len())

	_, added = set.AddRaw("nope")
	require.False(t, added)

	d, added = set.AddRaw("http://c.com")
	require.True(t, added)
	require.Equal(t, Domain("c.com"), d)
	require.Equal(t, []string{"a.com", "b.com", "c.com"}, set.Strings())
}

func TestDomainSetRemoveAndClear(t *testing.T) {
	set := NewDomainSet("a.com", "b.com", "c.com")

	require.True(t, set.Remove("b.com"))
	require.False(t, set.Remove("b.com"))
	require.False(t, set.Contains("b.com"))
	require.Equal(t, []Domain{"a.com", "c.com"}, set.List())

	set.Clear()
	require.Zero(t, set.Len())
	require.True(t, set.Add("a.com"))
}

func TestCleanURL(t *testing.T) {
	require.Equal(t, "example.com", CleanURL("https://www.example.com/"))
	require.Equal(t, "Example.com", CleanURL("http://WWW.Example.com"))
	require.Equal(t, "www2.example.com", CleanURL("www2.example.com"))
}

func TestStatusJSON(t *testing.T) {
	var payload struct {
		Status Status `json:"status_code"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"status_code":503}`), &payload))
	require.Equal(t, StatusCode(503), payload.Status)
	require.Equal(t, 5, payload.Status.Class())

	require.NoError(t, json.Unmarshal([]byte(`{"status_code":"404"}`), &payload))
	require.Equal(t, StatusCode(404), payload.Status)

	require.NoError(t, json.Unmarshal([]byte(`{"status_code":"ERROR"}`), &payload))
	require.Equal(t, StatusError(), payload.Status)
	require.False(t, payload.Status.IsNumeric())

	require.NoError(t, json.Unmarshal([]byte(`{"status_code":null}`), &payload))
	require.Equal(t, StatusLabelUnknown, payload.Status.String())

	out, err := json.Marshal(StatusError())
	require.NoError(t, err)
	require.JSONEq(t, `"ERROR"`, string(out))

	out, err = json.Marshal(StatusCode(200))
	require.NoError(t, err)
	require.Equal(t, `200`, string(out))
}
