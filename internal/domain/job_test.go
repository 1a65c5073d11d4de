package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageIndex(t *testing.T) {
	assert.Equal(t, 0, StageIndex(StatusQueued))
	assert.Equal(t, 6, StageIndex(StatusComplete))
	assert.Equal(t, -1, StageIndex(StatusFailed))
	assert.Equal(t, -1, StageIndex("bogus"))
}

func TestStageReached(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		minStage string
		want     bool
	}{
		{"exactly at stage", StatusNormalizing, MinStageParsed, true},
		{"past stage", StatusComplete, MinStageParsed, true},
		{"before stage", StatusParsing, MinStageParsed, false},
		{"queued reaches nothing", StatusQueued, MinStageParsed, false},
		{"complete reaches forecast", StatusComplete, MinStageForecast, true},
		{"forecasting does not reach forecast", StatusForecasting, MinStageForecast, false},
		{"failed reaches nothing", StatusFailed, MinStageParsed, false},
		{"unknown status reaches nothing", "bogus", MinStageParsed, false},
		{"unknown min stage never reached", StatusComplete, "bogus", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StageReached(tt.status, tt.minStage))
		})
	}
}
