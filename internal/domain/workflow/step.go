package workflow

import "strings"

// Step is the workflow cursor.
type Step string

const (
	StepPersonalData   Step = "personal_data"
	StepScreening      Step = "screening"
	StepMedicalHistory Step = "medical_history"
	StepPhysicalExam   Step = "physical_exam"
	StepDeclaration    Step = "declaration"
	StepCompleted      Step = "completed"
	StepCancelled      Step = "cancelled"
	StepDeferred       Step = "deferred"
)

// Terminal reports whether no further step follows s.
func (s Step) Terminal() bool {
	return s == StepCompleted || s == StepCancelled || s == StepDeferred
}

// ParseStep accepts both the underscore and the hyphenated form used in URLs.
func ParseStep(raw string) (Step, bool) {
	s := Step(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_"))
	switch s {
	case StepPersonalData, StepScreening, StepMedicalHistory, StepPhysicalExam, StepDeclaration:
		return s, true
	}
	return "", false
}

// Flow is the sequence of steps a registration walks through.
type Flow string

const (
	// FlowStaff is the full five-step intake.
	FlowStaff Flow = "staff"
	// FlowAdmin is the abbreviated admin registration: personal data and a
	// combined medical history, then the declaration.
	FlowAdmin Flow = "admin"
)

var flowSteps = map[Flow][]Step{
	FlowStaff: {StepPersonalData, StepScreening, StepMedicalHistory, StepPhysicalExam, StepDeclaration},
	FlowAdmin: {StepPersonalData, StepMedicalHistory, StepDeclaration},
}

// Steps returns the data-entry steps of f in order. An unknown flow is
// treated as the staff flow.
func (f Flow) Steps() []Step {
	if steps, ok := flowSteps[f]; ok {
		return steps
	}
	return flowSteps[FlowStaff]
}

func (f Flow) index(s Step) int {
	for i, st := range f.Steps() {
		if st == s {
			return i
		}
	}
	return -1
}

// Contains reports whether s is one of the flow's steps.
func (f Flow) Contains(s Step) bool { return f.index(s) >= 0 }

// Next is the step after s; the last step leads to completed.
func (f Flow) Next(s Step) Step {
	steps := f.Steps()
	i := f.index(s)
	if i < 0 || i == len(steps)-1 {
		return StepCompleted
	}
	return steps[i+1]
}

// Previous is the step before s, or personal data for the first step.
func (f Flow) Previous(s Step) Step {
	i := f.index(s)
	if i <= 0 {
		return StepPersonalData
	}
	return f.Steps()[i-1]
}
