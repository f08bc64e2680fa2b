package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bargeh-api/internal/models"
)

func TestCourseRepositoryCreateAddsOwnerMembership(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCourseRepository(db)
	ctx := context.Background()

	owner := models.User{Email: "prof@example.com", Name: "Prof", IsInstructor: true}
	student := models.User{Email: "stu@example.com", Name: "Stu"}
	require.NoError(t, db.Create(&owner).Error)
	require.NoError(t, db.Create(&student).Error)

	course := models.Course{Title: "Databases", InviteCode: "ABCD1234", Term: models.TermFall, Year: 2026, OwnerID: &owner.ID}
	membership := models.CourseMembership{UserID: owner.ID, Role: models.MembershipInstructor}
	require.NoError(t, repo.Create(ctx, &course, &membership))
	require.Equal(t, course.ID, membership.CourseID)

	other := models.Course{Title: "Compilers", InviteCode: "ZZZZ0000", Term: models.TermSpring, Year: 2026}
	require.NoError(t, repo.Create(ctx, &other, nil))

	found, err := repo.GetByInviteCode(ctx, " abcd1234 ")
	require.NoError(t, err)
	require.Equal(t, course.ID, found.ID)

	exists, err := repo.InviteCodeExists(ctx, "ZZZZ0000")
	require.NoError(t, err)
	require.True(t, exists)

	mine, err := repo.List(ctx, CourseFilter{MemberID: &owner.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	require.NoError(t, repo.CreateMembership(ctx, &models.CourseMembership{UserID: student.ID, CourseID: course.ID, Role: models.MembershipStudent}))
	require.Error(t, repo.CreateMembership(ctx, &models.CourseMembership{UserID: student.ID, CourseID: course.ID, Role: models.MembershipStudent}))

	roster, err := repo.ListMemberships(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	require.Equal(t, "Prof", roster[0].User.Name)

	all, err := repo.List(ctx, CourseFilter{Search: "comp"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "Compilers", all[0].Title)
}
