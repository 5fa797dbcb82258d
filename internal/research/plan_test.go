package research

import "testing"

func TestParseAngles(t *testing.T) {
	cases := []struct {
		name     string
		response string
		want     []string
	}{
		{
			name:     "clean array",
			response: `["history of X", "X in 2026", "criticism of X"]`,
			want:     []string{"history of X", "X in 2026", "criticism of X"},
		},
		{
			name:     "fenced with prose",
			response: "Here are the angles:\n```json\n[\"alpha\", \"beta\"]\n```\nGood luck!",
			want:     []string{"alpha", "beta"},
		},
		{
			name:     "clamped to five",
			response: `["a", "b", "c", "d", "e", "f", "g"]`,
			want:     []string{"a", "b", "c", "d", "e"},
		},
		{
			name:     "duplicates and blanks dropped",
			response: `["same", "SAME", "", "  ", "other"]`,
			want:     []string{"same", "other"},
		},
		{
			name:     "not json",
			response: "I think you should search for cats [maybe dogs",
			want:     nil,
		},
		{
			name:     "no array at all",
			response: "Just search for the topic directly.",
			want:     nil,
		},
		{
			name:     "array of objects",
			response: `[{"query": "a"}]`,
			want:     nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseAngles(tc.response)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("angle[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}
