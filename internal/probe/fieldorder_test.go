package probe

import "testing"

func TestClassifyFieldOrder(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		expected string
	}{
		{
			name:     "tff dominant",
			output:   "[Parsed_idet_0 @ 0x1] Multi frame detection: TFF:   150 BFF:     2 Progressive:    48 Undetermined:     0",
			expected: FieldOrderTFF,
		},
		{
			name:     "bff dominant",
			output:   "[Parsed_idet_0 @ 0x1] Multi frame detection: TFF:     3 BFF:   120 Progressive:    77 Undetermined:     0",
			expected: FieldOrderBFF,
		},
		{
			name:     "both counts at threshold classify progressive",
			output:   "[Parsed_idet_0 @ 0x1] Multi frame detection: TFF:    10 BFF:    10 Progressive:   180 Undetermined:     0",
			expected: FieldOrderProgressive,
		},
		{
			name:     "zero interlaced frames classify progressive",
			output:   "[Parsed_idet_0 @ 0x1] Multi frame detection: TFF:     0 BFF:     0 Progressive:   200 Undetermined:     0",
			expected: FieldOrderProgressive,
		},
		{
			name:     "tie above threshold resolves bff",
			output:   "Multi frame detection: TFF:    50 BFF:    50 Progressive:     0",
			expected: FieldOrderBFF,
		},
		{
			name:     "no summary line",
			output:   "frame=  200 fps=0.0 q=-0.0 size=  121500kB time=00:00:08.00",
			expected: FieldOrderUnknown,
		},
		{
			name:     "empty output",
			output:   "",
			expected: FieldOrderUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyFieldOrder(tt.output); got != tt.expected {
				t.Fatalf("ClassifyFieldOrder() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDurationSeconds(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		expected float64
		ok       bool
	}{
		{
			name:     "format duration preferred",
			result:   Result{Format: Format{Duration: "12.5"}, Streams: []Stream{{Duration: "99.0"}}},
			expected: 12.5,
			ok:       true,
		},
		{
			name:     "stream fallback when format missing",
			result:   Result{Streams: []Stream{{Duration: ""}, {Duration: "4.25"}}},
			expected: 4.25,
			ok:       true,
		},
		{
			name:   "zero durations are not ok",
			result: Result{Format: Format{Duration: "0"}, Streams: []Stream{{Duration: "0.0"}}},
			ok:     false,
		},
		{
			name:   "unparseable durations are not ok",
			result: Result{Format: Format{Duration: "N/A"}},
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.result.DurationSeconds()
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.expected {
				t.Fatalf("duration = %v, want %v", got, tt.expected)
			}
		})
	}
}
