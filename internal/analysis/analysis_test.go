package analysis

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestDecodeListVariants(t *testing.T) {
	tests := []struct {
		name string
		json string
		want []string
	}{
		{"missing", `{}`, []string{}},
		{"null", `{"possible_conditions": null}`, []string{}},
		{"string", `{"possible_conditions": "Tension headache"}`, []string{"Tension headache"}},
		{"empty string", `{"possible_conditions": ""}`, []string{}},
		{"strings", `{"possible_conditions": ["Flu", "Cold"]}`, []string{"Flu", "Cold"}},
		{"objects", `{"possible_conditions": [{"condition": "Flu", "reasoning": "fever and aches"}]}`, []string{"Flu: fever and aches"}},
		{"name fallback", `{"possible_conditions": [{"name": "Cold"}]}`, []string{"Cold: "}},
		{"unknown name", `{"possible_conditions": [{"reasoning": "vague"}]}`, []string{"Unknown: vague"}},
		{"number", `{"possible_conditions": 3}`, []string{}},
		{"object", `{"possible_conditions": {"condition": "Flu"}}`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Decode([]byte(tt.json))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(a.PossibleConditions, tt.want) {
				t.Fatalf("conditions = %#v, want %#v", a.PossibleConditions, tt.want)
			}
		})
	}
}

func TestDecodeObjectKeyPreference(t *testing.T) {
	raw := `{
		"recommended_actions": [{"action": "Rest"}, {"step": "Hydrate"}, {"other": 1}],
		"self_care_tips": [{"tip": "Sleep"}, {"recommendation": "Tea"}],
		"red_flags": [{"flag": "Stiff neck"}, {"warning": "Confusion"}, "Rash"]
	}`
	a, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if want := []string{"Rest", "Hydrate", `{"other": 1}`}; !reflect.DeepEqual(a.RecommendedActions, want) {
		t.Fatalf("actions = %#v, want %#v", a.RecommendedActions, want)
	}
	if want := []string{"Sleep", "Tea"}; !reflect.DeepEqual(a.SelfCareTips, want) {
		t.Fatalf("tips = %#v, want %#v", a.SelfCareTips, want)
	}
	if want := []string{"Stiff neck", "Confusion", "Rash"}; !reflect.DeepEqual(a.RedFlags, want) {
		t.Fatalf("red flags = %#v, want %#v", a.RedFlags, want)
	}
}

func TestDecodeSeverity(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"missing", `{}`, ""},
		{"string", `{"severity_assessment": "Mild"}`, "Mild"},
		{"object", `{"severity_assessment": {"level": "High", "explanation": "chest pain"}}`, "High - chest pain"},
		{"reasoning fallback", `{"severity_assessment": {"level": "Low", "reasoning": "stable"}}`, "Low - stable"},
		{"no level", `{"severity_assessment": {}}`, "Unknown - "},
		{"number", `{"severity_assessment": 4}`, "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Decode([]byte(tt.json))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if a.SeverityAssessment != tt.want {
				t.Fatalf("severity = %q, want %q", a.SeverityAssessment, tt.want)
			}
		})
	}
}

func TestDecodeWhenToSeekCare(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"missing", `{}`, ""},
		{"string", `{"when_to_seek_emergency_care": "Call 112 if worse"}`, "Call 112 if worse"},
		{"list", `{"when_to_seek_emergency_care": ["Call 112.", "Do not drive."]}`, "Call 112. Do not drive."},
		{
			"object",
			`{"when_to_seek_emergency_care": {"instruction": "Go to the ER.", "circumstances": ["fainting", "chest pain"]}}`,
			"Go to the ER. Circumstances: fainting, chest pain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Decode([]byte(tt.json))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if a.WhenToSeekCare != tt.want {
				t.Fatalf("when to seek care = %q, want %q", a.WhenToSeekCare, tt.want)
			}
		})
	}
}

func TestDecodeCodeFence(t *testing.T) {
	raw := "```json\n{\"red_flags\": \"High fever\"}\n```"
	a, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if want := []string{"High fever"}; !reflect.DeepEqual(a.RedFlags, want) {
		t.Fatalf("red flags = %#v, want %#v", a.RedFlags, want)
	}
	if a.ConfidenceLevel != DefaultConfidence {
		t.Fatalf("confidence = %q", a.ConfidenceLevel)
	}
}

func TestDecodeInvalid(t *testing.T) {
	for _, raw := range []string{"", "not json", "[1, 2]", `"text"`} {
		if _, err := Decode([]byte(raw)); !errors.Is(err, ErrInvalidAnalysis) {
			t.Fatalf("Decode(%q) err = %v, want ErrInvalidAnalysis", raw, err)
		}
	}
}

func TestAnalysisJSONShape(t *testing.T) {
	a, err := Decode([]byte(`{"when_to_seek_emergency_care": "now"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	out, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["when_to_seek_care"] != "now" {
		t.Fatalf("when_to_seek_care = %v", m["when_to_seek_care"])
	}
	if _, ok := m["when_to_seek_emergency_care"]; ok {
		t.Fatal("input key leaked into output")
	}
	if conds, ok := m["possible_conditions"].([]any); !ok || len(conds) != 0 {
		t.Fatalf("possible_conditions = %#v, want empty list", m["possible_conditions"])
	}
}
