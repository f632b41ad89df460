package worker

// ResumeMode is the item-level policy governing whether a transfer may
// resume, per spec.md §4.1's "REST negotiation" contract.
type ResumeMode int

const (
	// ResumeOrOverwrite falls back to overwrite if REST fails.
	ResumeOrOverwrite ResumeMode = iota
	// ResumeOnly is fatal to the item if REST fails.
	ResumeOnly
	// OverwriteOnly never attempts REST.
	OverwriteOnly
)

// ResumeDecision is the outcome of negotiating a resume for one attempt.
type ResumeDecision int

const (
	// DecisionSkipResume: don't send REST at all, just transfer from
	// the start (either because the policy forbids it, or because the
	// opened file is too small to bother with). An overlap that covers
	// the whole file is not a skip: it sends REST 0.
	DecisionSkipResume ResumeDecision = iota
	// DecisionSendRest: send REST <offset> and expect a 350.
	DecisionSendRest
	// DecisionRestFailedFallbackOverwrite: REST failed, but policy
	// allows falling back to a full overwrite.
	DecisionRestFailedFallbackOverwrite
	// DecisionRestFailedFatal: REST failed and the item must fail.
	DecisionRestFailedFatal
)

// NegotiateResume decides whether/how to attempt a resume before sending
// RETR/STOR, per spec.md §4.1:
//   - if openedFileSize < resumeMinFileSize, resume is skipped entirely;
//   - if resumeOverlap >= openedFileSize, REST 0 is issued (whole file
//     re-read and verified, i.e. resume-from-beginning);
//   - otherwise REST (openedFileSize - resumeOverlap) is issued.
func NegotiateResume(mode ResumeMode, openedFileSize, resumeMinFileSize, resumeOverlap int64) (decision ResumeDecision, offset int64) {
	if mode == OverwriteOnly {
		return DecisionSkipResume, 0
	}

	if openedFileSize < resumeMinFileSize {
		return DecisionSkipResume, 0
	}

	if resumeOverlap >= openedFileSize {
		return DecisionSendRest, 0
	}

	return DecisionSendRest, openedFileSize - resumeOverlap
}

// HandleRestFailure decides what happens to the item when a sent REST
// command fails (the server replies with something other than 350), per
// spec.md §4.1's REST-negotiation contract.
func HandleRestFailure(mode ResumeMode) ResumeDecision {
	if mode == ResumeOnly {
		return DecisionRestFailedFatal
	}

	return DecisionRestFailedFallbackOverwrite
}
