package trend_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendpush/trendpush/internal/trend"
)

func TestValidate_AppliesDefaults(t *testing.T) {
	event, err := trend.Validate(map[string]any{
		"contentType": "match",
		"contentId":   "42",
	})
	require.NoError(t, err)

	assert.Equal(t, "match", event.ContentType)
	assert.Equal(t, "42", event.ContentID)
	assert.Equal(t, trend.DefaultTitle, event.Title)
	assert.Equal(t, trend.DefaultMessage, event.Message)
	assert.Empty(t, event.Team)
}

func TestValidate_KeepsProvidedText(t *testing.T) {
	event, err := trend.Validate(map[string]any{
		"contentType": "video",
		"contentId":   "v-1",
		"title":       "Last over thriller",
		"message":     "Watch the final ball",
		"team":        "india",
	})
	require.NoError(t, err)

	assert.Equal(t, "Last over thriller", event.Title)
	assert.Equal(t, "Watch the final ball", event.Message)
	assert.Equal(t, "india", event.Team)
}

func TestValidate_RejectsMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		raw    map[string]any
		fields []string
	}{
		{"nil payload", nil, []string{"contentType", "contentId"}},
		{"empty payload", map[string]any{}, []string{"contentType", "contentId"}},
		{"missing contentId", map[string]any{"contentType": "match"}, []string{"contentId"}},
		{"missing contentType", map[string]any{"contentId": "42"}, []string{"contentType"}},
		{"empty strings", map[string]any{"contentType": "", "contentId": ""}, []string{"contentType", "contentId"}},
		{"wrong types", map[string]any{"contentType": true, "contentId": []any{"42"}}, []string{"contentType", "contentId"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := trend.Validate(tt.raw)
			require.Error(t, err)
			assert.Nil(t, event)
			assert.True(t, errors.Is(err, trend.ErrInvalid))

			var verr *trend.ValidationError
			require.ErrorAs(t, err, &verr)

			fields := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
				assert.Equal(t, "required", f.Code)
			}
			assert.ElementsMatch(t, tt.fields, fields)
		})
	}
}

func TestValidate_AcceptsNumericIDs(t *testing.T) {
	event, err := trend.Validate(map[string]any{
		"contentType": "match",
		"contentId":   json.Number("42"),
	})
	require.NoError(t, err)
	assert.Equal(t, "42", event.ContentID)

	event, err = trend.Validate(map[string]any{
		"contentType": "match",
		"contentId":   float64(7),
	})
	require.NoError(t, err)
	assert.Equal(t, "7", event.ContentID)
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name     string
		event    trend.Event
		expected trend.Audience
		topic    string
	}{
		{
			name:     "team scoped",
			event:    trend.Event{ContentType: "match", ContentID: "42", Team: "india"},
			expected: trend.TeamAudience("india"),
			topic:    "team_india",
		},
		{
			name:     "global",
			event:    trend.Event{ContentType: "match", ContentID: "42"},
			expected: trend.Global(),
			topic:    "trending",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audience := trend.Route(&tt.event)
			assert.Equal(t, tt.expected, audience)
			assert.Equal(t, tt.topic, audience.Topic())

			// Same input, same audience.
			assert.Equal(t, audience, trend.Route(&tt.event))
		})
	}
}

func TestRoute_FromValidatedPayload(t *testing.T) {
	event, err := trend.Validate(map[string]any{"contentType": "match", "contentId": "42", "team": "india"})
	require.NoError(t, err)

	audience := trend.Route(event)
	assert.Equal(t, trend.AudienceTeam, audience.Kind)
	assert.Equal(t, "india", audience.Team)
	assert.Equal(t, "team(india)", audience.String())
}

func TestRoute_NilEvent(t *testing.T) {
	assert.Equal(t, trend.Global(), trend.Route(nil))
	assert.Equal(t, "global", trend.Global().String())
}
