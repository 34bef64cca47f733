package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{1, "0h 0m 1s"},
		{59, "0h 0m 59s"},
		{60, "0h 1m 0s"},
		{3600, "1h 0m 0s"},
		{3661, "1h 1m 1s"},
		{90061, "25h 1m 1s"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatDuration(tc.seconds), "seconds=%d", tc.seconds)
	}
}

func TestDomainOf(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://sub.example.com/path", "sub.example.com"},
		{"https://example.com", "example.com"},
		{"http://localhost:8080/a/b", "localhost:8080"},
		{"https://www.example.com/", "www.example.com"},
		{"ftp://files.host/x", "files.host"},
		{"example.com/path", "ample.com"},
		{"ab", ""},
	}
	for _, tc := range tests {
		t.Run(tc.url, func(t *testing.T) {
			assert.Equal(t, tc.want, DomainOf(tc.url))
		})
	}
}
