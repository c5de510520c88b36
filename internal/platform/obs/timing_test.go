package obs

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestTimeLogsErrorsEvenWhenQuiet(t *testing.T) {
	buf := captureLog(t)
	SetLevel(LevelQuiet)

	ctx := WithRequestID(context.Background(), "abc")
	func() (err error) {
		defer Time(ctx, "op.ok")(&err)
		return nil
	}()
	func() (err error) {
		defer Time(ctx, "op.fail")(&err)
		return errors.New("boom")
	}()

	out := buf.String()
	if strings.Contains(out, "op=op.ok") {
		t.Errorf("quiet level must suppress successful timings: %q", out)
	}
	if !strings.Contains(out, "req_id=abc op=op.fail") || !strings.Contains(out, "err=boom") {
		t.Errorf("missing failure line: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"": LevelInfo, "quiet": LevelQuiet, "DEBUG": LevelDebug, "info": LevelInfo}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Errorf("expected error for unknown level")
	}
}

func TestDebugfGated(t *testing.T) {
	buf := captureLog(t)
	Debugf(context.Background(), "msg=%s", "hidden")
	SetLevel(LevelDebug)
	Debugf(context.Background(), "msg=%s", "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "msg=shown") {
		t.Errorf("unexpected output %q", out)
	}
}
