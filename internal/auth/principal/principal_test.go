package principal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		p    Principal
		ok   bool
	}{
		{"institute", Institute("inst-1"), true},
		{"student", Student("inst-1", "stu-1"), true},
		{"institute without id", Institute(""), false},
		{"student without student id", Principal{Kind: KindStudent, InstituteID: "inst-1"}, false},
		{"institute carrying student id", Principal{Kind: KindInstitute, InstituteID: "inst-1", StudentID: "stu-1"}, false},
		{"unknown kind", Principal{Kind: "admin", InstituteID: "inst-1"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrMalformed)
			}
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Student("inst-1", "stu-1"))
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.True(t, p.IsStudent())
	assert.Equal(t, "stu-1", p.StudentID)
}
