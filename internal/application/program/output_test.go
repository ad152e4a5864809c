package program

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/litvis-go/internal/domain"
)

func TestParseFailure(t *testing.T) {
	region := domain.Region{Start: domain.Point{Line: 8, Column: 5}, End: domain.Point{Line: 8, Column: 6}}
	tests := []struct {
		name   string
		stdout string
		stderr string
		want   []domain.RawCompilerError
	}{
		{
			name:   "elm 0.19 compile errors",
			stderr: `{"type":"compile-errors","errors":[{"path":"P.elm","name":"P","problems":[{"title":"NAMING ERROR","region":{"start":{"line":8,"column":5},"end":{"line":8,"column":6}},"message":["I cannot find a '", {"bold":false,"string":"x"}, "' variable."]}]}]}`,
			want:   []domain.RawCompilerError{{Overview: "NAMING ERROR", Details: "I cannot find a 'x' variable.", Region: region}},
		},
		{
			name:   "legacy array",
			stdout: "Compiling...\n" + `[{"tag":"NAMING ERROR","overview":"Cannot find variable x","details":"Maybe a typo?","region":{"start":{"line":8,"column":5},"end":{"line":8,"column":6}}}]`,
			want:   []domain.RawCompilerError{{Overview: "Cannot find variable x", Details: "Maybe a typo?", Region: region}},
		},
		{
			name:   "general error",
			stderr: `{"type":"error","path":"elm.json","title":"MISSING DEPENDENCY","message":["You need elm/json."]}`,
			want:   []domain.RawCompilerError{{Overview: "MISSING DEPENDENCY", Details: "You need elm/json."}},
		},
		{
			name:   "last structured line wins",
			stdout: `[{"overview":"first","details":"","region":{"start":{"line":1,"column":1},"end":{"line":1,"column":1}}}]`,
			stderr: `[{"overview":"second","details":"","region":{"start":{"line":8,"column":5},"end":{"line":8,"column":6}}}]`,
			want:   []domain.RawCompilerError{{Overview: "second", Region: region}},
		},
		{
			name:   "plain text banner",
			stderr: "\x1b[36m-- NAMING ERROR ---------------------------------------------- P.elm\x1b[0m\n\nI cannot find a `x` variable:\n",
			want:   []domain.RawCompilerError{{Overview: "NAMING ERROR", Details: "I cannot find a `x` variable:"}},
		},
		{
			name:   "plain text",
			stderr: "  elm: command not found  \n",
			want:   []domain.RawCompilerError{{Overview: "compilation failed", Details: "elm: command not found"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseFailure(tt.stdout, tt.stderr)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("parseFailure() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSuccessSeparatesDebugLog(t *testing.T) {
	values, debugLog, err := parseSuccess("x: 1\r\n\ntrace: [1,2]\n{\"x\":\"1\",\"y\":\"[1,2]\"}\n")
	if err != nil {
		t.Fatalf("parseSuccess() error = %v", err)
	}
	if diff := cmp.Diff(map[string]string{"x": "1", "y": "[1,2]"}, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"x: 1", "trace: [1,2]"}, debugLog); diff != "" {
		t.Fatalf("debug log mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSuccessRejectsMissingOutput(t *testing.T) {
	if _, _, err := parseSuccess(""); err == nil {
		t.Fatal("expected error for empty output")
	}
	if _, _, err := parseSuccess("not json"); err == nil {
		t.Fatal("expected error for undecodable output")
	}
}
