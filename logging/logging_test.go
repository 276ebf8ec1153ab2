package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	SetupTo(&buf, true, false)
	defer SetupTo(&bytes.Buffer{}, false, false)

	log.Debug().Msg("hidden")
	log.Info().Int("rows", 3).Msg("written")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "written", entry["message"])
	assert.Equal(t, float64(3), entry["rows"])
	assert.Contains(t, entry, "time")
}

func TestSetupDebugLevel(t *testing.T) {
	SetupTo(&bytes.Buffer{}, false, true)
	defer SetupTo(&bytes.Buffer{}, false, false)

	assert.Equal(t, zerolog.DebugLevel, log.Logger.GetLevel())
}
