// Package e2e provides end-to-end tests over a small medical knowledge base.
package e2e

import (
	"fmt"
	"strings"
)

// sectionDelimiter separates sections inside a knowledge document.
const sectionDelimiter = "\n====================\n"

// Section is one titled block of a knowledge document.
type Section struct {
	Title string
	Body  string
}

// KnowledgeDoc is one condition file; Source is the file stem.
type KnowledgeDoc struct {
	Source   string
	Sections []Section
}

// Text renders the document in the knowledge-base file layout.
func (d KnowledgeDoc) Text() string {
	parts := make([]string, len(d.Sections))
	for i, s := range d.Sections {
		parts[i] = s.Title + "\n" + s.Body
	}
	return strings.Join(parts, sectionDelimiter)
}

// QueryTestCase defines a query and the source that must appear among its results.
type QueryTestCase struct {
	Query          string
	ExpectedSource string
	Description    string
}

// Corpus holds documents and query test cases for E2E tests.
type Corpus struct {
	Documents []KnowledgeDoc
	TestCases []QueryTestCase
}

// BuildCorpus returns the knowledge documents and one query per condition. Each query
// repeats words that only appear in its condition's symptom section.
func BuildCorpus() *Corpus {
	conditions := []struct {
		source, symptoms, treatment, query string
	}{
		{"migraine", "Throbbing unilateral headache with nausea, photophobia and visual aura.", "Dark quiet room, triptans, hydration.", "throbbing headache aura photophobia"},
		{"influenza", "Sudden fever, chills, myalgia and dry cough lasting several days.", "Rest, fluids, antivirals within 48 hours.", "sudden fever chills myalgia"},
		{"asthma", "Wheezing, chest tightness and shortness of breath triggered by allergens.", "Inhaled bronchodilators and corticosteroids.", "wheezing chest tightness"},
		{"gastroenteritis", "Watery diarrhea, vomiting and abdominal cramps after contaminated food.", "Oral rehydration salts and bland diet.", "watery diarrhea vomiting cramps"},
		{"appendicitis", "Periumbilical pain migrating to the right lower quadrant with rebound tenderness.", "Urgent surgical evaluation.", "periumbilical pain rebound tenderness"},
		{"urinary_tract_infection", "Burning urination, urgency, frequency and cloudy urine.", "Antibiotics and increased water intake.", "burning urination urgency cloudy"},
		{"conjunctivitis", "Red itchy eyes with sticky discharge and crusted eyelids.", "Warm compresses and antibiotic drops if bacterial.", "itchy eyes sticky discharge eyelids"},
		{"sinusitis", "Facial pressure, purulent nasal discharge and congestion behind the cheekbones.", "Saline irrigation and decongestants.", "facial pressure purulent nasal congestion"},
		{"anemia", "Fatigue, pallor, brittle nails and dizziness on standing.", "Iron supplementation after identifying the cause.", "pallor brittle nails dizziness"},
		{"shingles", "Painful blistering rash in a dermatomal band on one side of the torso.", "Antivirals started early and analgesics.", "painful blistering rash dermatomal"},
	}

	c := &Corpus{}
	for _, cond := range conditions {
		c.Documents = append(c.Documents, KnowledgeDoc{
			Source: cond.source,
			Sections: []Section{
				{Title: "Symptoms", Body: cond.symptoms},
				{Title: "Treatment", Body: cond.treatment},
			},
		})
		c.TestCases = append(c.TestCases, QueryTestCase{
			Query:          cond.query,
			ExpectedSource: cond.source,
			Description:    fmt.Sprintf("query %q should return %s", cond.query, cond.source),
		})
	}
	return c
}
