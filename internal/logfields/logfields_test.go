package logfields

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHelperKeys(t *testing.T) {
	cases := []struct {
		name    string
		wantKey string
		wantVal string
		got     func() (string, string)
	}{
		{"Store", KeyStore, "lotteries", func() (string, string) { a := Store("lotteries"); return a.Key, a.Value.String() }},
		{"Consumer", KeyConsumer, "table", func() (string, string) { a := Consumer("table"); return a.Key, a.Value.String() }},
		{"Failure", KeyFailure, "rate_limited", func() (string, string) { a := Failure("rate_limited"); return a.Key, a.Value.String() }},
		{"PatchKey", KeyPatchKey, "k1", func() (string, string) { a := PatchKey("k1"); return a.Key, a.Value.String() }},
		{"EntityID", KeyEntityID, "0xabc", func() (string, string) { a := EntityID("0xabc"); return a.Key, a.Value.String() }},
		{"Subject", KeySubject, "lotwatch.revalidate", func() (string, string) { a := Subject("lotwatch.revalidate"); return a.Key, a.Value.String() }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, val := tc.got()
			assert.Equal(t, tc.wantKey, key)
			assert.Equal(t, tc.wantVal, val)
		})
	}
}

func TestDelayAndError(t *testing.T) {
	d := Delay(2500 * time.Millisecond)
	assert.Equal(t, KeyDelayMS, d.Key)
	assert.Equal(t, int64(2500), d.Value.Int64())

	assert.Equal(t, "", Error(nil).Value.String())
	assert.Equal(t, "boom", Error(errors.New("boom")).Value.String())
}
