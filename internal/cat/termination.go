package cat

// StopReason names the rule that ended an exam.
type StopReason string

const (
	ReasonNone              StopReason = ""
	ReasonMaxLength         StopReason = "max_length"
	ReasonConfidence        StopReason = "confidence"
	ReasonContentPlan       StopReason = "content_plan_exhausted"
	ReasonItemBankExhausted StopReason = "item_bank_exhausted"
	ReasonForced            StopReason = "forced"
	ReasonAbandoned         StopReason = "abandoned"
)

// State is the part of a session the stopping rules look at.
type State struct {
	ItemsAnswered int
	Theta         float64
	StandardError float64
	Coverage      Coverage
}

// Decision is the output of ShouldStop.
type Decision struct {
	Stop    bool       `json:"stop"`
	Verdict Verdict    `json:"verdict,omitempty"`
	Reason  StopReason `json:"reason,omitempty"`
}

// ShouldStop evaluates the stopping rules in order; the first match wins.
//
//  1. maximum length reached
//  2. minimum length met, SE below threshold, minimum content coverage met
//     and the confidence interval entirely on one side of the cut score
//  3. minimum length met and every domain quota delivered
func ShouldStop(plan ExamPlan, st State) Decision {
	if st.ItemsAnswered >= plan.MaxItems {
		return Decision{Stop: true, Verdict: plan.VerdictFor(st.Theta), Reason: ReasonMaxLength}
	}

	if st.ItemsAnswered < plan.MinItems {
		return Decision{}
	}

	if st.StandardError < plan.SEThreshold && plan.MinimumCoverageMet(st.Coverage) {
		half := plan.Z() * st.StandardError
		switch {
		case st.Theta-half > plan.PassingStandard:
			return Decision{Stop: true, Verdict: VerdictPass, Reason: ReasonConfidence}
		case st.Theta+half < plan.PassingStandard:
			return Decision{Stop: true, Verdict: VerdictFail, Reason: ReasonConfidence}
		}
	}

	if plan.ContentPlanMet(st.Coverage) {
		return Decision{Stop: true, Verdict: plan.VerdictFor(st.Theta), Reason: ReasonContentPlan}
	}

	return Decision{}
}
