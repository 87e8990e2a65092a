package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSource_Valid(t *testing.T) {
	for _, s := range []Source{SourceAppointment, SourceDiseaseAlert, SourceWeatherAlert, SourceGeneric} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Source("").Valid())
	assert.False(t, Source("billing").Valid())
}

func TestSeverity_Valid(t *testing.T) {
	for _, s := range []Severity{"", SeverityInfo, SeverityWarning, SeverityDanger, SeverityExtreme} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Severity("critical").Valid())
}
