package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_JSON(t *testing.T) {
	var cfg struct {
		Poll Duration `json:"poll"`
		Raw  Duration `json:"raw"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"poll":"45s","raw":1000}`), &cfg))
	assert.Equal(t, 45*time.Second, cfg.Poll.Duration)
	assert.Equal(t, time.Microsecond, cfg.Raw.Duration)

	out, err := json.Marshal(cfg.Poll)
	require.NoError(t, err)
	assert.JSONEq(t, `"45s"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"poll":"soon"}`), &cfg))
	assert.Error(t, json.Unmarshal([]byte(`{"poll":true}`), &cfg))
}

func TestDuration_YAML(t *testing.T) {
	var cfg struct {
		Debounce Duration `yaml:"debounce"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("debounce: 3s\n"), &cfg))
	assert.Equal(t, 3*time.Second, cfg.Debounce.Duration)

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Equal(t, "debounce: 3s\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("debounce: [1]\n"), &cfg))
}
