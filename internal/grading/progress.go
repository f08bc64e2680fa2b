package grading

// GradingProgress reports the percentage of (submission, question) pairs that
// carry a recorded grade. The value is truncated, not rounded, and capped at 100.
func GradingProgress(totalSubmissions, totalQuestions, gradedPairs int) int {
	if totalSubmissions <= 0 || totalQuestions <= 0 || gradedPairs <= 0 {
		return 0
	}

	pairs := totalSubmissions * totalQuestions
	percentage := (100 * gradedPairs) / pairs
	if percentage > 100 {
		return 100
	}
	return percentage
}
