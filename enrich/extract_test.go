package enrich

import (
	"testing"

	json "github.com/goccy/go-json"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "bare object",
			response: `{"RCA_Category": "Networking", "RCA_Reason": "Misconfigured SG"}`,
			want:     `{"RCA_Category": "Networking", "RCA_Reason": "Misconfigured SG"}`,
		},
		{
			name:     "json fence",
			response: "Here is the classification:\n```json\n{\"RCA_Category\": \"Networking\"}\n```\nLet me know.",
			want:     `{"RCA_Category": "Networking"}`,
		},
		{
			name:     "plain fence",
			response: "```\n{\"RCA_Category\": \"Networking\"}\n```",
			want:     `{"RCA_Category": "Networking"}`,
		},
		{
			name:     "surrounding prose",
			response: `Based on the summary, {"RCA_Category": "Storage"} is my answer.`,
			want:     `{"RCA_Category": "Storage"}`,
		},
		{
			name:     "first of several objects",
			response: `{"RCA_Category": "Storage"} {"RCA_Category": "Compute"}`,
			want:     `{"RCA_Category": "Storage"}`,
		},
		{
			name:     "nested object stays balanced",
			response: `{"outer": {"inner": "v"}, "k": "w"} trailing`,
			want:     `{"outer": {"inner": "v"}, "k": "w"}`,
		},
		{
			name:     "missing comma between pairs",
			response: `{"RCA_Category": "Networking" "RCA_Reason": "Misconfigured SG"}`,
			want:     `{"RCA_Category": "Networking","RCA_Reason": "Misconfigured SG"}`,
		},
		{
			name:     "trailing comma",
			response: `{"RCA_Category": "Networking",}`,
			want:     `{"RCA_Category": "Networking"}`,
		},
		{
			name:     "control characters stripped",
			response: "{\"RCA_Reason\": \"line one\x00 line two\"}",
			want:     `{"RCA_Reason": "line one line two"}`,
		},
		{
			name:     "no object at all",
			response: "  I cannot classify this case.  ",
			want:     "I cannot classify this case.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.response); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.response, got, tt.want)
			}
		})
	}
}

func TestExtractJSONRepairsParseableOutput(t *testing.T) {
	// The repaired output of the common fault cases must actually decode.
	responses := []string{
		"```json\n{\"RCA_Category\": \"Networking\",\n \"RCA_Reason\": \"ACL change\"}\n```",
		`{"RCA_Category": "Networking" "RCA_Reason": "ACL change"}`,
		`{"RCA_Category": "Networking", "RCA_Reason": "ACL change",}`,
	}
	for _, response := range responses {
		var out map[string]string
		if err := json.Unmarshal([]byte(ExtractJSON(response)), &out); err != nil {
			t.Errorf("repaired output of %q does not decode: %v", response, err)
			continue
		}
		if out["RCA_Category"] != "Networking" {
			t.Errorf("lost category in %q", response)
		}
	}
}
