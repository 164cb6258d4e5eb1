package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// TestParseLevel はログレベル文字列の変換を検証する。
func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{input: "debug", want: zapcore.DebugLevel},
		{input: " WARN ", want: zapcore.WarnLevel},
		{input: "error", want: zapcore.ErrorLevel},
		{input: "", want: zapcore.InfoLevel},
		{input: "verbose", want: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestNew はロガーを生成できることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	for _, level := range []string{"info", "debug"} {
		l, err := New(level)
		if err != nil {
			t.Fatalf("New(%q)でエラーが発生: %v", level, err)
		}
		if !l.Core().Enabled(ParseLevel(level)) {
			t.Errorf("New(%q) のロガーが %s レベルを出力しない", level, level)
		}
	}
}
