// Package analysis normalises the symptom-analysis JSON returned by the LLM.
//
// The model does not reliably follow the requested shape: list fields come
// back as strings, lists of strings or lists of objects, and the scalar fields
// as strings or objects. Decode accepts every variant seen in practice and
// produces one canonical Analysis.
package analysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultConfidence is reported for every decoded analysis.
const DefaultConfidence = "moderate"

// ErrInvalidAnalysis is returned when the response is not a JSON object.
var ErrInvalidAnalysis = errors.New("invalid analysis response")

// Analysis is the canonical form handed to the consultation layer.
type Analysis struct {
	PossibleConditions []string `json:"possible_conditions"`
	SeverityAssessment string   `json:"severity_assessment"`
	RecommendedActions []string `json:"recommended_actions"`
	WhenToSeekCare     string   `json:"when_to_seek_care"`
	SelfCareTips       []string `json:"self_care_tips"`
	RedFlags           []string `json:"red_flags"`
	ConfidenceLevel    string   `json:"confidence_level"`
}

// Decode parses raw LLM output. A surrounding markdown code fence is ignored.
func Decode(raw []byte) (*Analysis, error) {
	body := stripFence(string(raw))
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidAnalysis)
	}
	doc := gjson.Parse(body)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: expected object, got %s", ErrInvalidAnalysis, doc.Type)
	}

	return &Analysis{
		PossibleConditions: decodeList(doc.Get("possible_conditions"), renderCondition),
		SeverityAssessment: decodeSeverity(doc.Get("severity_assessment")),
		RecommendedActions: decodeList(doc.Get("recommended_actions"), pick("action", "step")),
		WhenToSeekCare:     decodeWhenToSeek(doc.Get("when_to_seek_emergency_care")),
		SelfCareTips:       decodeList(doc.Get("self_care_tips"), pick("tip", "recommendation")),
		RedFlags:           decodeList(doc.Get("red_flags"), pick("flag", "warning")),
		ConfidenceLevel:    DefaultConfidence,
	}, nil
}

// decodeList accepts a string, or an array whose object items are rendered.
// Anything else yields an empty list.
func decodeList(v gjson.Result, render func(gjson.Result) string) []string {
	out := []string{}
	switch {
	case v.Type == gjson.String:
		if s := v.String(); s != "" {
			out = append(out, s)
		}
	case v.IsArray():
		for _, item := range v.Array() {
			if item.IsObject() {
				out = append(out, render(item))
				continue
			}
			out = append(out, item.String())
		}
	}
	return out
}

func renderCondition(obj gjson.Result) string {
	name := first(obj, "condition", "name")
	if name == "" {
		name = "Unknown"
	}
	return name + ": " + first(obj, "reasoning")
}

// pick renders an object through the first present key, or its raw JSON.
func pick(keys ...string) func(gjson.Result) string {
	return func(obj gjson.Result) string {
		for _, k := range keys {
			if f := obj.Get(k); f.Exists() && f.Type != gjson.Null {
				return f.String()
			}
		}
		return obj.Raw
	}
}

func decodeSeverity(v gjson.Result) string {
	switch {
	case !v.Exists(), v.Type == gjson.Null:
		return ""
	case v.IsObject():
		level := first(v, "level")
		if level == "" {
			level = "Unknown"
		}
		return level + " - " + first(v, "explanation", "reasoning")
	default:
		return v.String()
	}
}

func decodeWhenToSeek(v gjson.Result) string {
	switch {
	case !v.Exists(), v.Type == gjson.Null:
		return ""
	case v.IsObject():
		var circumstances []string
		for _, c := range v.Get("circumstances").Array() {
			circumstances = append(circumstances, c.String())
		}
		return first(v, "instruction") + " Circumstances: " + strings.Join(circumstances, ", ")
	case v.IsArray():
		parts := make([]string, 0, len(v.Array()))
		for _, p := range v.Array() {
			parts = append(parts, p.String())
		}
		return strings.Join(parts, " ")
	default:
		return v.String()
	}
}

// first returns the first non-null value among keys, or "".
func first(obj gjson.Result, keys ...string) string {
	for _, k := range keys {
		if f := obj.Get(k); f.Exists() && f.Type != gjson.Null {
			return f.String()
		}
	}
	return ""
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
