package logger

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func captureLog(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	flags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(prev)
		log.SetFlags(flags)
	}()
	fn()
	return buf.String()
}

func TestFormatFieldsIsSorted(t *testing.T) {
	got := formatFields(Fields{"b": 2, "a": "x", "c": 1.5})
	assert.Equal(t, "{a=x, b=2, c=1.50}", got)
	assert.Equal(t, "", formatFields(nil))
}

func TestLevels(t *testing.T) {
	out := captureLog(t, func() {
		Info("scanned", Fields{"files": 3})
		Warn("skipped file", Fields{"path": "bad.mid"})
		Debug("window", nil)
		Error("decode failed", errors.New("boom"), Fields{"fingerprint": "abc"})
	})

	assert.Contains(t, out, "[INFO] scanned {files=3}")
	assert.Contains(t, out, "[WARN] skipped file {path=bad.mid}")
	assert.Contains(t, out, "[DEBUG] window")
	assert.Contains(t, out, "[ERROR] decode failed: boom {fingerprint=abc}")
}

func TestWithContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/generations", nil)
	c.Set("request_id", "req-1")
	c.Set("subject", "ci-bot")

	fields := WithContext(c)
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/api/v1/generations", fields["path"])
	assert.Equal(t, "ci-bot", fields["subject"])
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "250ms", HumanDuration(250*time.Millisecond))
	assert.Equal(t, "2 minutes 3 seconds", HumanDuration(2*time.Minute+3*time.Second+400*time.Millisecond))
}

func TestLogCorpusScan(t *testing.T) {
	out := captureLog(t, func() {
		LogCorpusScan("corpus", 10, 1, 4200, 2048, 1500*time.Millisecond)
	})
	assert.Contains(t, out, "size=2.0 kB")
	assert.Contains(t, out, "tokens=4200")
}
