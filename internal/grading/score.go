// Package grading holds the rubric scoring rules shared by the grading
// services: score calculation, selection validation, progress and summary
// statistics. Everything here is pure and operates on already-fetched data.
package grading

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/bargeh-api/internal/models"
)

// ComputeTotal applies the selected rubric deltas to a question's max points
// and clamps the result into [0, maxPoints]. An empty selection yields full credit.
func ComputeTotal(maxPoints decimal.Decimal, selected []models.RubricItem) decimal.Decimal {
	deltaSum := decimal.Zero
	for _, item := range selected {
		deltaSum = deltaSum.Add(item.DeltaPoints)
	}

	return clamp(maxPoints.Add(deltaSum), decimal.Zero, maxPoints)
}

// ValidateSelection resolves candidate rubric item ids against the items
// owned by the question. Every id must point at an active item of that
// question and appear only once.
func ValidateSelection(question models.Question, items []models.RubricItem, candidateIDs []uint) ([]models.RubricItem, error) {
	owned := make(map[uint]models.RubricItem, len(items))
	for _, item := range items {
		if item.QuestionID != question.ID || !item.IsActive {
			continue
		}
		owned[item.ID] = item
	}

	resolved := make([]models.RubricItem, 0, len(candidateIDs))
	seen := make(map[uint]struct{}, len(candidateIDs))
	for _, id := range candidateIDs {
		item, ok := owned[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		resolved = append(resolved, item)
	}

	if len(resolved) != len(candidateIDs) {
		return nil, fmt.Errorf("%w: %d of %d items resolved for question %d", ErrInvalidSelection, len(resolved), len(candidateIDs), question.ID)
	}

	return resolved, nil
}

// pointsLimit is the exclusive bound of point columns stored as numeric(6,2).
var pointsLimit = decimal.NewFromInt(10000)

// ValidateMaxPoints rejects negative question point values and values the
// point columns cannot hold.
func ValidateMaxPoints(maxPoints decimal.Decimal) error {
	if maxPoints.IsNegative() {
		return fmt.Errorf("%w: max points must not be negative (got %s)", ErrInvalidRange, maxPoints.String())
	}
	if maxPoints.GreaterThanOrEqual(pointsLimit) {
		return fmt.Errorf("%w: max points must be below %s (got %s)", ErrInvalidRange, pointsLimit.String(), maxPoints.String())
	}
	return nil
}

// ValidateDelta rejects rubric adjustments the point columns cannot hold.
func ValidateDelta(delta decimal.Decimal) error {
	if delta.Abs().GreaterThanOrEqual(pointsLimit) {
		return fmt.Errorf("%w: delta points must be within (-%s, %s) (got %s)", ErrInvalidRange, pointsLimit.String(), pointsLimit.String(), delta.String())
	}
	return nil
}

// AssignmentTotal sums the max points of every question in an assignment.
func AssignmentTotal(questions []models.Question) decimal.Decimal {
	total := decimal.Zero
	for _, question := range questions {
		total = total.Add(question.MaxPoints)
	}
	return total
}

func clamp(value, lower, upper decimal.Decimal) decimal.Decimal {
	if value.GreaterThan(upper) {
		value = upper
	}
	if value.LessThan(lower) {
		value = lower
	}
	return value
}
