package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 3, cfg.Enrollment.MaxDecisionAttempts)
	assert.Equal(t, 2*time.Minute, cfg.QueueViews.CacheTTL)
	assert.False(t, cfg.QueueViews.CacheEnabled)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ENROLLMENT_MAX_DECISION_ATTEMPTS", 0)
	v.Set("QUEUE_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	v.Set("ENABLE_QUEUE_CACHE", true)

	cfg := fromViper(v)
	assert.Equal(t, 3, cfg.Enrollment.MaxDecisionAttempts)
	assert.Equal(t, 2*time.Minute, cfg.QueueViews.CacheTTL)
	assert.True(t, cfg.QueueViews.CacheEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, time.Second, parseDuration("", time.Second))
	assert.Equal(t, 5*time.Minute, parseDuration("5m", time.Second))
	assert.Equal(t, time.Second, parseDuration("five", time.Second))
}
