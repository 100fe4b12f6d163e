package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetList(t *testing.T) {
	t.Setenv("BASE_DOMAINS", " scuole.example.com, ,localhost ")
	assert.Equal(t, []string{"scuole.example.com", "localhost"}, getList("BASE_DOMAINS", ""))
	assert.Equal(t, []string{"www", "admin"}, getList("UNSET_LIST_KEY", "www,admin"))
}

func TestGetDuration(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "0")
	assert.Equal(t, time.Duration(0), getDuration("SWEEP_INTERVAL", time.Minute))

	t.Setenv("SWEEP_INTERVAL", "nonsense")
	assert.Equal(t, time.Minute, getDuration("SWEEP_INTERVAL", time.Minute))

	t.Setenv("SWEEP_INTERVAL", "90s")
	assert.Equal(t, 90*time.Second, getDuration("SWEEP_INTERVAL", time.Minute))
}

func TestGetInt(t *testing.T) {
	t.Setenv("TRIAL_DAYS", "14")
	assert.Equal(t, 14, getInt("TRIAL_DAYS", 30))
	t.Setenv("TRIAL_DAYS", "x")
	assert.Equal(t, 30, getInt("TRIAL_DAYS", 30))
}
