package logx

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRespectsDebugFlag(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, Config{Debug: false})
	logger.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %s", buf.String())
	}

	logger = New(&buf, Config{Debug: true})
	logger.Debug().Str("op", "login").Msg("visible")
	out := buf.String()
	if !strings.Contains(out, `"message":"visible"`) {
		t.Fatalf("debug line missing: %s", out)
	}
	if !strings.Contains(out, `"op":"login"`) {
		t.Fatalf("field missing: %s", out)
	}
}
