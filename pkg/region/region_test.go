package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_KnownNames(t *testing.T) {
	tests := map[string]string{
		"Oregon":     "us-west-2",
		"Virginia":   "us-east-1",
		"California": "us-west-1",
		"Seoul":      "ap-northeast-2",
		"Tokyo":      "ap-northeast-1",
		"Singapore":  "ap-southeast-1",
	}

	for spoken, want := range tests {
		t.Run(spoken, func(t *testing.T) {
			assert.Equal(t, want, Resolve(spoken))
			assert.True(t, Known(spoken))
		})
	}
}

func TestResolve_FallsBackToDefault(t *testing.T) {
	for _, spoken := range []string{"", "Ohio", "oregon", "TOKYO", " Seoul", "us-west-2"} {
		assert.Equal(t, Default, Resolve(spoken), "spoken=%q", spoken)
		assert.False(t, Known(spoken), "spoken=%q", spoken)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.Equal(t, "ap-northeast-2", Resolve("Seoul"))
		assert.Equal(t, Default, Resolve("Mars"))
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"California", "Oregon", "Seoul", "Singapore", "Tokyo", "Virginia"}, Names())
}
