package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Course{},
		&CourseMembership{},
		&Assignment{},
		&Question{},
		&RubricItem{},
		&Submission{},
		&SubmissionPageMap{},
		&SubmissionGrade{},
		&ActivityLog{},
	}
}
