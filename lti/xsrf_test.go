package lti

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestXSRFTokenRoundTrip(t *testing.T) {
	m := NewXSRFManager([]byte("secret"))
	token := m.CreateToken("action")
	assert.True(t, m.ValidToken(token, "action"))
}

func TestXSRFTokenRejectedForOtherAction(t *testing.T) {
	m := NewXSRFManager([]byte("secret"))
	token := m.CreateToken("action")
	assert.False(t, m.ValidToken(token, "other-action"))
}

func TestXSRFTokenRejectedWithOtherSecret(t *testing.T) {
	token := NewXSRFManager([]byte("secret")).CreateToken("action")
	assert.False(t, NewXSRFManager([]byte("other")).ValidToken(token, "action"))
}

func TestXSRFTokenRejectedWhenExpired(t *testing.T) {
	m := NewXSRFManager([]byte("secret"))
	token := m.createToken("action", time.Now().Add(-25*time.Hour))
	assert.False(t, m.ValidToken(token, "action"))
}

func TestXSRFTokenRejectedWhenMalformed(t *testing.T) {
	m := NewXSRFManager([]byte("secret"))
	assert.False(t, m.ValidToken("", "action"))
	assert.False(t, m.ValidToken("no-slash", "action"))
	assert.False(t, m.ValidToken("notanumber/digest", "action"))
}
