package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEnvelope(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		valid     bool
		errorPath string
	}{
		{
			name:  "empty list",
			raw:   `{"applications": []}`,
			valid: true,
		},
		{
			name:  "null list",
			raw:   `{"applications": null}`,
			valid: true,
		},
		{
			name: "full record",
			raw: `{"applications": [{
				"id": "a1", "jobTitle": "Backend Engineer", "company": "Acme", "location": "Remote",
				"appliedDate": "2026-01-02T10:00:00.123456789Z", "lastUpdated": "2026-01-03T10:00:00Z",
				"status": "interview", "salary": {"min": 100, "max": 120, "currency": "USD"},
				"interviewDate": "2026-01-10T15:00:00+01:00"
			}]}`,
			valid: true,
		},
		{
			name:      "missing envelope key",
			raw:       `{"items": []}`,
			valid:     false,
			errorPath: "(root)",
		},
		{
			name: "unknown status",
			raw: `{"applications": [{
				"id": "a1", "jobTitle": "t", "company": "c", "location": "l",
				"appliedDate": "2026-01-02T10:00:00Z", "lastUpdated": "2026-01-02T10:00:00Z",
				"status": "ghosted"
			}]}`,
			valid:     false,
			errorPath: "applications.0.status",
		},
		{
			name: "bad timestamp",
			raw: `{"applications": [{
				"id": "a1", "jobTitle": "t", "company": "c", "location": "l",
				"appliedDate": "yesterday", "lastUpdated": "2026-01-02T10:00:00Z",
				"status": "applied"
			}]}`,
			valid:     false,
			errorPath: "applications.0.appliedDate",
		},
		{
			name: "missing id",
			raw: `{"applications": [{
				"jobTitle": "t", "company": "c", "location": "l",
				"appliedDate": "2026-01-02T10:00:00Z", "lastUpdated": "2026-01-02T10:00:00Z",
				"status": "applied"
			}]}`,
			valid:     false,
			errorPath: "applications.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ValidateEnvelope([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid, result.GetErrorMessages())
			if tt.errorPath != "" {
				assert.True(t, result.HasErrors(tt.errorPath), result.GetErrorMessages())
			}
		})
	}
}

func TestValidateEnvelope_NotJSON(t *testing.T) {
	_, err := ValidateEnvelope([]byte(`{not json`))
	assert.Error(t, err)
}

func TestValidateNewApplication(t *testing.T) {
	result, err := ValidateNewApplication(map[string]interface{}{
		"jobTitle": "Backend Engineer",
		"company":  "Acme",
		"location": "Remote",
		"jobUrl":   "https://acme.example/jobs/1",
	})
	require.NoError(t, err)
	assert.True(t, result.Valid)

	result, err = ValidateNewApplication(map[string]interface{}{
		"jobTitle": "   ",
		"company":  "Acme",
		"location": "Remote",
		"jobUrl":   "ftp://nope",
	})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, result.HasErrors("jobTitle"))
	assert.True(t, result.HasErrors("jobUrl"))
	assert.Len(t, result.GetErrorMessages(), 2)
}

func TestValidateApplicationPatch(t *testing.T) {
	result, err := ValidateApplicationPatch(map[string]interface{}{"company": "Globex Corp"})
	require.NoError(t, err)
	assert.True(t, result.Valid)

	result, err = ValidateApplicationPatch(map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, result.Valid, "absent fields are left alone")

	result, err = ValidateApplicationPatch(map[string]interface{}{
		"jobTitle": "",
		"location": "",
		"jobUrl":   "mailto:jobs@example.com",
	})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, result.HasErrors("jobTitle"))
	assert.True(t, result.HasErrors("location"))
	assert.True(t, result.HasErrors("jobUrl"))
}
