package push

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		code string
		want FailureCategory
	}{
		{"UNREGISTERED", FailureInvalidToken},
		{"NOT_FOUND", FailureInvalidToken},
		{"INVALID_ARGUMENT", FailureInvalidToken},
		{"EndpointDisabled", FailureInvalidToken},
		{"PlatformApplicationDisabled", FailureInvalidToken},
		{"UNAVAILABLE", FailureTemporary},
		{"INTERNAL", FailureTemporary},
		{"QUOTA_EXCEEDED", FailureTemporary},
		{"ThrottledException", FailureTemporary},
		{"ServiceUnavailable", FailureTemporary},
		{"SOMETHING_NEW", FailureUnknown},
		{"", FailureUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.code))
		})
	}
}

func TestFailureCategoryString(t *testing.T) {
	assert.Equal(t, "invalid_token", FailureInvalidToken.String())
	assert.Equal(t, "temporary", FailureTemporary.String())
	assert.Equal(t, "unknown", FailureUnknown.String())
}
